// Package noteservice implements the note storage collaborator over the vault
// file system and the SQLite catalog.
package noteservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/starford/notegraph/internal/apperr"
	"github.com/starford/notegraph/internal/checksum"
	"github.com/starford/notegraph/internal/index"
	"github.com/starford/notegraph/internal/models"
	"github.com/starford/notegraph/internal/parser"
	"github.com/starford/notegraph/internal/storage"
	"github.com/starford/notegraph/internal/validate"
)

const noteExt = ".md"

// NoteDetail is the full representation of a note.
type NoteDetail struct {
	Path        string          `json:"path"`
	Title       string          `json:"title"`
	Content     string          `json:"content"`
	Checksum    string          `json:"checksum"`
	Tags        []string        `json:"tags"`
	Links       []string        `json:"links"`
	Frontmatter map[string]any  `json:"frontmatter,omitempty"`
	Backlinks   []string        `json:"backlinks"`
	Metadata    models.FileInfo `json:"metadata"`
}

// Service coordinates storage and catalog operations.
type Service struct {
	store  storage.Provider
	db     index.NoteIndex
	logger *slog.Logger
}

// NewService creates a new note service. A nil logger uses slog.Default.
func NewService(store storage.Provider, db index.NoteIndex, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, db: db, logger: logger}
}

// Store exposes the underlying vault storage.
func (s *Service) Store() storage.Provider { return s.store }

// NotePath validates p segment by segment and appends the note extension
// when the final segment has none.
func NotePath(p string) (string, error) {
	res := validate.Path(p)
	if !res.Valid {
		return "", fmt.Errorf("noteservice: note path: %w", res.Err())
	}
	clean := res.Sanitized
	if path.Ext(clean) == "" {
		clean += noteExt
	}
	return clean, nil
}

// FolderPath validates a folder path.
func FolderPath(p string) (string, error) {
	res := validate.Path(p)
	if !res.Valid {
		return "", fmt.Errorf("noteservice: folder path: %w", res.Err())
	}
	return res.Sanitized, nil
}

func notFound(err error) error {
	if storage.IsNotExist(err) {
		return fmt.Errorf("%w: %w", apperr.ErrNotFound, err)
	}
	return err
}

// ListNotes returns every note and attachment image with catalog tags
// attached, plus every folder.
func (s *Service) ListNotes(_ context.Context) (models.Listing, error) {
	listing, err := s.store.Listing()
	if err != nil {
		return models.Listing{}, err
	}
	tags, err := s.db.NoteTags()
	if err != nil {
		return models.Listing{}, err
	}
	for i := range listing.Notes {
		if t, ok := tags[listing.Notes[i].Path]; ok && len(t) > 0 {
			listing.Notes[i].Tags = t
		}
	}
	return listing, nil
}

// GetNoteContent returns the raw content of a note.
func (s *Service) GetNoteContent(_ context.Context, p string) (string, error) {
	data, err := s.store.Read(p)
	if err != nil {
		return "", notFound(err)
	}
	return string(data), nil
}

// GetNote reads a note and enriches it with parse results, file metadata and
// backlinks.
func (s *Service) GetNote(_ context.Context, p string) (*NoteDetail, error) {
	data, err := s.store.Read(p)
	if err != nil {
		return nil, notFound(err)
	}
	return s.buildNoteDetail(p, data)
}

// NoteExists reports whether a note file exists at p.
func (s *Service) NoteExists(_ context.Context, p string) bool {
	return s.store.Exists(p)
}

// SaveNote creates or overwrites a note and reindexes it. It returns the
// refreshed listing entry for the note.
func (s *Service) SaveNote(_ context.Context, p, content string) (models.Note, error) {
	return s.write(p, []byte(content))
}

// UpdateNote overwrites an existing note only when ifMatch agrees with the
// checksum of the stored content.
func (s *Service) UpdateNote(_ context.Context, p, content, ifMatch string) (models.Note, error) {
	existing, err := s.store.Read(p)
	if err != nil {
		return models.Note{}, notFound(err)
	}
	if !checksum.Matches(ifMatch, existing) {
		return models.Note{}, fmt.Errorf("noteservice: update %s: %w", p, apperr.ErrConflict)
	}
	return s.write(p, []byte(content))
}

func (s *Service) write(p string, data []byte) (models.Note, error) {
	if err := s.store.Write(p, data); err != nil {
		return models.Note{}, err
	}
	if err := s.IndexFile(p, data); err != nil {
		return models.Note{}, err
	}
	return s.entry(p, parser.Parse(data).Tags)
}

func (s *Service) entry(p string, tags []string) (models.Note, error) {
	info, err := s.store.Stat(p)
	if err != nil {
		return models.Note{}, notFound(err)
	}
	n := models.NewNote(p, info.Modified, info.Size)
	n.Tags = tags
	return n, nil
}

// DeleteNote removes a note from storage and the catalog.
func (s *Service) DeleteNote(_ context.Context, p string) error {
	if err := s.store.Delete(p); err != nil {
		return notFound(err)
	}
	return s.db.DeleteNote(p)
}

// MoveNote renames a note. It fails with apperr.ErrAlreadyExists when the
// target is taken.
func (s *Service) MoveNote(_ context.Context, oldPath, newPath string) (models.Note, error) {
	target, err := NotePath(newPath)
	if err != nil {
		return models.Note{}, err
	}
	if err := s.store.Move(oldPath, target); err != nil {
		return models.Note{}, notFound(err)
	}
	if err := s.db.DeleteNote(oldPath); err != nil {
		s.logger.Warn("noteservice: drop moved note", slog.String("path", oldPath), slog.String("error", err.Error()))
	}
	data, err := s.store.Read(target)
	if err != nil {
		return models.Note{}, err
	}
	if err := s.IndexFile(target, data); err != nil {
		return models.Note{}, err
	}
	return s.entry(target, parser.Parse(data).Tags)
}

// IndexFile parses data and upserts it into the catalog.
func (s *Service) IndexFile(p string, data []byte) error {
	return index.IndexFile(s.db, p, data)
}

// Backlinks returns all note paths that link to the note at p.
func (s *Service) Backlinks(_ context.Context, p string) ([]string, error) {
	bl, err := s.db.Backlinks(p)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(bl), nil
}

// buildNoteDetail constructs a NoteDetail from raw data without re-reading the file.
func (s *Service) buildNoteDetail(p string, data []byte) (*NoteDetail, error) {
	res := parser.Parse(data)
	bl, err := s.db.Backlinks(p)
	if err != nil {
		return nil, err
	}
	info, err := s.store.Stat(p)
	if err != nil {
		return nil, notFound(err)
	}
	return &NoteDetail{
		Path:        p,
		Title:       res.Title,
		Content:     string(data),
		Checksum:    checksum.Sum(data),
		Tags:        nonNilSlice(res.Tags),
		Links:       nonNilSlice(res.Links),
		Frontmatter: res.Frontmatter,
		Backlinks:   nonNilSlice(bl),
		Metadata:    info,
	}, nil
}

// IsNote reports whether p names a markdown note.
func IsNote(p string) bool {
	return strings.EqualFold(path.Ext(p), noteExt)
}

// IsValidation reports whether err came from name or path validation.
func IsValidation(err error) bool {
	var verr *validate.Error
	return errors.As(err, &verr)
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
