package noteservice

import (
	"context"
	"path"
	"sort"

	"github.com/starford/notegraph/internal/linkindex"
	"github.com/starford/notegraph/internal/models"
	"github.com/starford/notegraph/internal/render"
	"github.com/starford/notegraph/internal/validate"
)

// Problem is a single finding of CheckVault.
type Problem struct {
	Path   string `json:"path"`
	Target string `json:"target,omitempty"`
	Reason string `json:"reason"`
}

// Report lists broken wikilinks and invalid names across the vault.
type Report struct {
	BrokenLinks  []Problem `json:"broken_links"`
	InvalidNames []Problem `json:"invalid_names"`
}

// Count returns the total number of findings.
func (r Report) Count() int {
	return len(r.BrokenLinks) + len(r.InvalidNames)
}

// RenderNote renders the note at p to sanitized HTML, resolving wikilinks
// against the current vault listing.
func (s *Service) RenderNote(ctx context.Context, p string) (string, error) {
	content, err := s.GetNoteContent(ctx, p)
	if err != nil {
		return "", err
	}
	listing, err := s.ListNotes(ctx)
	if err != nil {
		return "", err
	}
	folder := path.Dir(p)
	if folder == "." {
		folder = ""
	}
	return render.HTML(content, folder, linkindex.Build(listing.Notes)), nil
}

// CheckVault reports wikilinks that resolve to no note and files or
// folders whose names would be rejected on creation.
func (s *Service) CheckVault(ctx context.Context) (Report, error) {
	listing, err := s.ListNotes(ctx)
	if err != nil {
		return Report{}, err
	}
	links, err := s.db.Links()
	if err != nil {
		return Report{}, err
	}

	rep := Report{BrokenLinks: []Problem{}, InvalidNames: []Problem{}}
	ix := linkindex.Build(listing.Notes)
	for _, l := range links {
		if ix.Exists(l.Target) {
			continue
		}
		rep.BrokenLinks = append(rep.BrokenLinks, Problem{Path: l.Source, Target: l.Target, Reason: "unresolved wikilink"})
	}

	check := func(p string) {
		if res := validate.Path(p); !res.Valid {
			rep.InvalidNames = append(rep.InvalidNames, Problem{Path: p, Reason: res.Err().Error()})
		}
	}
	for _, f := range listing.Folders {
		check(f)
	}
	for _, n := range listing.Notes {
		if n.Type == models.TypeNote {
			check(n.Path)
		}
	}

	sort.Slice(rep.BrokenLinks, func(i, j int) bool {
		a, b := rep.BrokenLinks[i], rep.BrokenLinks[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		return a.Target < b.Target
	})
	sort.Slice(rep.InvalidNames, func(i, j int) bool { return rep.InvalidNames[i].Path < rep.InvalidNames[j].Path })
	return rep, nil
}
