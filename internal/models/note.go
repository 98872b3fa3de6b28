// Package models defines the domain types shared across notegraph packages.
package models

import (
	"path"
	"strings"
	"time"
)

// Vault entry types.
const (
	TypeNote  = "note"
	TypeImage = "image"
)

// Note is one entry of the vault listing. Images found in attachment
// folders are listed with the same shape and Type set to TypeImage.
type Note struct {
	Path     string    `json:"path"`
	Name     string    `json:"name"`
	Folder   string    `json:"folder"`
	Tags     []string  `json:"tags,omitempty"`
	Modified time.Time `json:"modified"`
	Size     int64     `json:"size"`
	Type     string    `json:"type"`
}

// NewNote derives Name and Folder from a slash-separated vault path.
func NewNote(p string, modified time.Time, size int64) Note {
	folder := path.Dir(p)
	if folder == "." {
		folder = ""
	}
	return Note{
		Path:     p,
		Name:     path.Base(p),
		Folder:   folder,
		Modified: modified,
		Size:     size,
		Type:     TypeNote,
	}
}

// Stem returns the note name without its .md extension.
func (n Note) Stem() string {
	return strings.TrimSuffix(n.Name, ".md")
}

// Listing is a flat snapshot of the vault.
type Listing struct {
	Notes   []Note   `json:"notes"`
	Folders []string `json:"folders"`
}

// NoteMetadata is the lightweight record used to detect changed files.
type NoteMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
	Size      int64     `json:"size"`
}

// FileInfo describes a stored note on disk.
type FileInfo struct {
	Modified time.Time `json:"modified"`
	Size     int64     `json:"size"`
	Lines    int       `json:"lines"`
}

// LineMatch is one matching line of a search hit.
type LineMatch struct {
	LineNumber int    `json:"line_number"`
	Context    string `json:"context"`
}

// SearchHit is a note matching a search query.
type SearchHit struct {
	Path    string      `json:"path"`
	Name    string      `json:"name"`
	Snippet string      `json:"snippet"`
	Matches []LineMatch `json:"matches"`
}

// GraphNode is a note in the link graph.
type GraphNode struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// GraphEdge is a wikilink from one note to a raw target.
type GraphEdge struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Resolved bool   `json:"resolved"`
}

// Graph is the full link graph of the vault.
type Graph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}
