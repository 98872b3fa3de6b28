package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/notegraph/internal/models"
	"github.com/starford/notegraph/internal/noteservice"
	"github.com/starford/notegraph/internal/outline"
	"github.com/starford/notegraph/internal/validate"
)

// SaveNoteRequest is the request body for creating or updating a note.
type SaveNoteRequest struct {
	Content string `json:"content" example:"# Hello\nWorld"`
}

func (r SaveNoteRequest) Validate() error { return nil }

// MoveRequest moves a note or folder.
type MoveRequest struct {
	From string `json:"from" example:"inbox/idea.md" validate:"required"`
	To   string `json:"to" example:"projects/idea.md" validate:"required"`
}

func (r MoveRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.From, validation.Required, validate.PathRule),
		validation.Field(&r.To, validation.Required, validate.PathRule),
	)
}

// FolderRequest names a folder to create.
type FolderRequest struct {
	Path string `json:"path" example:"projects/2024" validate:"required"`
}

func (r FolderRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Path, validation.Required, validate.PathRule),
	)
}

// RenameFolderRequest gives a folder a new name in place.
type RenameFolderRequest struct {
	Path string `json:"path" example:"projects/old" validate:"required"`
	Name string `json:"name" example:"new" validate:"required"`
}

func (r RenameFolderRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Path, validation.Required, validate.PathRule),
		validation.Field(&r.Name, validation.Required, validate.NameRule),
	)
}

// ContentRequest carries markdown for the stateless content tools. Path is
// optional and only locates relative images.
type ContentRequest struct {
	Path    string `json:"path,omitempty" example:"projects/plan.md"`
	Content string `json:"content" example:"# Plan"`
}

func (r ContentRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Path, validate.PathRule),
	)
}

// ValidateRequest checks either a single name or a full path.
type ValidateRequest struct {
	Name string `json:"name,omitempty" example:"My Note"`
	Path string `json:"path,omitempty" example:"folder/My Note.md"`
}

func (r ValidateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.When(r.Path == "", validation.Required.Error("name or path is required"))),
	)
}

// OpenSessionRequest opens a note in the editing session.
type OpenSessionRequest struct {
	Path string `json:"path" example:"projects/plan.md" validate:"required"`
}

func (r OpenSessionRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Path, validation.Required, validate.PathRule),
	)
}

// EditSessionRequest replaces the session buffer.
type EditSessionRequest struct {
	SessionID string `json:"session_id" validate:"required"`
	Content   string `json:"content"`
	Cursor    int    `json:"cursor"`
}

func (r EditSessionRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.SessionID, validation.Required),
		validation.Field(&r.Cursor, validation.Min(0)),
	)
}

// HighlightRequest starts a search inside the preview.
type HighlightRequest struct {
	Term string `json:"term" example:"todo"`
}

func (r HighlightRequest) Validate() error { return nil }

// NoteDetail is the full note response type (aliased from the domain layer).
type NoteDetail = noteservice.NoteDetail

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []models.SearchHit `json:"results" validate:"required"`
}

// BacklinksResponse lists notes linking to Path.
type BacklinksResponse struct {
	Path      string   `json:"path" example:"projects/plan.md"`
	Backlinks []string `json:"backlinks" validate:"required"`
}

// RenderResponse is rendered, sanitized HTML.
type RenderResponse struct {
	HTML string `json:"html"`
}

// OutlineResponse lists the headings of a document.
type OutlineResponse struct {
	Headings []outline.Heading `json:"headings" validate:"required"`
}

// FrontmatterResponse is the parsed metadata block of a document.
type FrontmatterResponse struct {
	Metadata map[string]any `json:"metadata"`
	Tags     []string       `json:"tags"`
}

// FolderResponse echoes the normalized folder path.
type FolderResponse struct {
	Path string `json:"path" example:"projects/2024"`
}

// ConfigResponse is the public client configuration.
type ConfigResponse struct {
	Name          string         `json:"name" example:"notegraph"`
	Tagline       string         `json:"tagline"`
	Version       string         `json:"version" example:"0.1.0"`
	SearchEnabled bool           `json:"searchEnabled"`
	Security      SecurityConfig `json:"security"`
}

// SecurityConfig tells clients whether to send a bearer token.
type SecurityConfig struct {
	Enabled bool `json:"enabled"`
}
