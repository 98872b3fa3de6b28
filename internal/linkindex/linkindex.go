// Package linkindex resolves wikilink targets against the current note list.
//
// An Index is built once per note list and never updated in place. Lookups
// are constant time: every addressing form a wikilink may use is
// precomputed into one of five maps.
package linkindex

import (
	"strings"

	"github.com/starford/notegraph/internal/models"
)

const ext = ".md"

// Index holds the lookup tables. Map values are the note path a key resolves to.
type Index struct {
	exact      map[string]string // "Projects/Plan.md", "Projects/Plan"
	lower      map[string]string // "projects/plan.md", "projects/plan"
	names      map[string]string // "Plan.md", "Plan"
	lowerNames map[string]string // "plan.md", "plan"
	suffixes   map[string]string // "/plan", "/projects/plan.md", ...
}

// Build indexes notes. Entries of other types (images) are skipped. When two
// notes share a key the first one wins.
func Build(notes []models.Note) *Index {
	ix := &Index{
		exact:      make(map[string]string, len(notes)*2),
		lower:      make(map[string]string, len(notes)*2),
		names:      make(map[string]string, len(notes)*2),
		lowerNames: make(map[string]string, len(notes)*2),
		suffixes:   make(map[string]string, len(notes)*2),
	}
	for _, n := range notes {
		if n.Type != "" && n.Type != models.TypeNote {
			continue
		}
		ix.add(n.Path)
	}
	return ix
}

func (ix *Index) add(p string) {
	bare := strings.TrimSuffix(p, ext)
	lowerP, lowerBare := strings.ToLower(p), strings.ToLower(bare)

	put(ix.exact, p, p)
	put(ix.exact, bare, p)
	put(ix.lower, lowerP, p)
	put(ix.lower, lowerBare, p)

	name := p
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		name = p[i+1:]
	}
	nameBare := strings.TrimSuffix(name, ext)
	put(ix.names, name, p)
	put(ix.names, nameBare, p)
	put(ix.lowerNames, strings.ToLower(name), p)
	put(ix.lowerNames, strings.ToLower(nameBare), p)

	// Every trailing run of segments, so [[folder/Note]] resolves for
	// deeper/folder/Note.md as well.
	for i := 0; i < len(lowerP); i++ {
		if lowerP[i] != '/' {
			continue
		}
		put(ix.suffixes, lowerP[i:], p)
		put(ix.suffixes, strings.TrimSuffix(lowerP[i:], ext), p)
	}
	put(ix.suffixes, "/"+lowerP, p)
	put(ix.suffixes, "/"+lowerBare, p)
}

func put(m map[string]string, k, v string) {
	if _, ok := m[k]; !ok {
		m[k] = v
	}
}

// Resolve returns the path of the note target refers to. The caller strips
// any #anchor first. The second result is false when nothing matches.
func (ix *Index) Resolve(target string) (string, bool) {
	if ix == nil {
		return "", false
	}
	t := strings.ToLower(strings.TrimSpace(target))
	for _, c := range [2]string{t, t + ext} {
		if p, ok := ix.exact[c]; ok {
			return p, true
		}
		if p, ok := ix.lower[c]; ok {
			return p, true
		}
		if p, ok := ix.names[c]; ok {
			return p, true
		}
		if p, ok := ix.lowerNames[c]; ok {
			return p, true
		}
		if p, ok := ix.suffixes["/"+c]; ok {
			return p, true
		}
	}
	return "", false
}

// Exists reports whether target resolves to a note. An empty target is a
// self-link and always exists.
func (ix *Index) Exists(target string) bool {
	if strings.TrimSpace(target) == "" {
		return true
	}
	_, ok := ix.Resolve(target)
	return ok
}

// Len returns the number of distinct keys across all tables.
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.exact) + len(ix.lower) + len(ix.names) + len(ix.lowerNames) + len(ix.suffixes)
}
