package noteservice

import (
	"context"
	"path"
	"sort"
	"strings"

	"github.com/starford/notegraph/internal/linkindex"
	"github.com/starford/notegraph/internal/models"
)

const (
	searchLimit     = 50
	matchesPerNote  = 3
	maxContextChars = 200
)

// Search finds notes containing query, case-insensitively, and reports up
// to three matching lines per note with one line of context either side.
func (s *Service) Search(_ context.Context, query string) ([]models.SearchHit, error) {
	if strings.TrimSpace(query) == "" {
		return []models.SearchHit{}, nil
	}
	results, err := s.db.Search(query, searchLimit)
	if err != nil {
		return nil, err
	}
	hits := make([]models.SearchHit, 0, len(results))
	for _, r := range results {
		hits = append(hits, models.SearchHit{
			Path:    r.Path,
			Name:    strings.TrimSuffix(path.Base(r.Path), noteExt),
			Snippet: r.Snippet,
			Matches: lineMatches(r.Body, query),
		})
	}
	return hits, nil
}

// lineMatches returns the first matching lines of body. Line numbers are
// 1-indexed.
func lineMatches(body, query string) []models.LineMatch {
	q := strings.ToLower(query)
	lines := strings.Split(body, "\n")
	out := []models.LineMatch{}
	for i, line := range lines {
		if !strings.Contains(strings.ToLower(line), q) {
			continue
		}
		start := max(0, i-1)
		end := min(len(lines), i+2)
		out = append(out, models.LineMatch{
			LineNumber: i + 1,
			Context:    truncate(strings.Join(lines[start:end], "\n"), maxContextChars),
		})
		if len(out) == matchesPerNote {
			break
		}
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// ListTags returns how many notes carry each tag.
func (s *Service) ListTags(_ context.Context) (map[string]int, error) {
	return s.db.TagCounts()
}

// Graph returns every note as a node and every wikilink as an edge, marking
// edges whose target resolves to an existing note.
func (s *Service) Graph(ctx context.Context) (models.Graph, error) {
	listing, err := s.ListNotes(ctx)
	if err != nil {
		return models.Graph{}, err
	}
	links, err := s.db.Links()
	if err != nil {
		return models.Graph{}, err
	}
	ix := linkindex.Build(listing.Notes)

	g := models.Graph{Nodes: []models.GraphNode{}, Edges: []models.GraphEdge{}}
	for _, n := range listing.Notes {
		if n.Type != models.TypeNote {
			continue
		}
		g.Nodes = append(g.Nodes, models.GraphNode{ID: n.Path, Label: n.Stem()})
	}
	sort.Slice(g.Nodes, func(i, j int) bool { return g.Nodes[i].ID < g.Nodes[j].ID })
	for _, l := range links {
		g.Edges = append(g.Edges, models.GraphEdge{
			From:     l.Source,
			To:       l.Target,
			Resolved: ix.Exists(l.Target),
		})
	}
	return g, nil
}
