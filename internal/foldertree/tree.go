// Package foldertree builds the nested folder view of a flat vault listing.
package foldertree

import (
	"sort"
	"strings"

	"github.com/starford/notegraph/internal/models"
)

// Folder is one node of the tree. The root has an empty Name and Path.
type Folder struct {
	Name      string             `json:"name"`
	Path      string             `json:"path"`
	Children  map[string]*Folder `json:"children"`
	Notes     []models.Note      `json:"notes"`
	NoteCount int                `json:"noteCount"`
}

func newFolder(name, path string) *Folder {
	return &Folder{
		Name:     name,
		Path:     path,
		Children: make(map[string]*Folder),
		Notes:    []models.Note{},
	}
}

// Build assembles the tree from every known folder path (empty folders
// included) and the notes. Output is fully determined by the inputs.
func Build(notes []models.Note, folders []string) *Folder {
	root := newFolder("", "")

	for _, f := range folders {
		root.ensure(f)
	}
	for _, n := range notes {
		node := root
		if n.Folder != "" {
			node = root.ensure(n.Folder)
		}
		node.Notes = append(node.Notes, n)
	}
	root.sortNotes()
	root.count()
	return root
}

// ensure walks the segments of p, creating missing nodes, and returns the
// terminal node.
func (f *Folder) ensure(p string) *Folder {
	node := f
	for _, seg := range strings.Split(p, "/") {
		if seg == "" {
			continue
		}
		child, ok := node.Children[seg]
		if !ok {
			childPath := seg
			if node.Path != "" {
				childPath = node.Path + "/" + seg
			}
			child = newFolder(seg, childPath)
			node.Children[seg] = child
		}
		node = child
	}
	return node
}

func (f *Folder) sortNotes() {
	sort.SliceStable(f.Notes, func(i, j int) bool {
		a, b := strings.ToLower(f.Notes[i].Name), strings.ToLower(f.Notes[j].Name)
		if a != b {
			return a < b
		}
		return f.Notes[i].Path < f.Notes[j].Path
	})
	for _, c := range f.Children {
		c.sortNotes()
	}
}

func (f *Folder) count() int {
	n := len(f.Notes)
	for _, c := range f.Children {
		n += c.count()
	}
	f.NoteCount = n
	return n
}

// SortedChildren returns children ordered case-insensitively by name.
func (f *Folder) SortedChildren() []*Folder {
	out := make([]*Folder, 0, len(f.Children))
	for _, c := range f.Children {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := strings.ToLower(out[i].Name), strings.ToLower(out[j].Name)
		if a != b {
			return a < b
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Find returns the node at path p, or nil.
func (f *Folder) Find(p string) *Folder {
	node := f
	for _, seg := range strings.Split(p, "/") {
		if seg == "" {
			continue
		}
		node = node.Children[seg]
		if node == nil {
			return nil
		}
	}
	return node
}

// Walk visits f and its descendants depth-first in SortedChildren order.
// Returning false from fn skips the node's children.
func (f *Folder) Walk(fn func(*Folder) bool) {
	if !fn(f) {
		return
	}
	for _, c := range f.SortedChildren() {
		c.Walk(fn)
	}
}
