package api

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/notegraph/internal/attachments"
	"github.com/starford/notegraph/internal/library"
	"github.com/starford/notegraph/internal/models"
	"github.com/starford/notegraph/internal/noteservice"
	"github.com/starford/notegraph/internal/session"
)

// Handler holds API route handlers.
type Handler struct {
	svc      *noteservice.Service
	lib      *library.Library
	sess     *session.Session
	images   *attachments.Store
	settings Settings
}

// NewHandler creates a new Handler.
func NewHandler(d Deps) *Handler {
	return &Handler{
		svc:      d.Notes,
		lib:      d.Library,
		sess:     d.Session,
		images:   d.Images,
		settings: d.Settings,
	}
}

// wildcardPath extracts the path after the route prefix.
// Supports encoded slashes from OpenAPI clients (e.g. topics%2Fnote.md).
func wildcardPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// notePath extracts and normalizes the note path from the URL. It writes a
// 400 response and returns false when the path is missing or invalid.
func notePath(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := wildcardPath(r)
	if raw == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return "", false
	}
	p, err := noteservice.NotePath(raw)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return "", false
	}
	return p, true
}

// reload refreshes the library after structural vault changes. The change
// itself already succeeded, so failures are only logged.
func (h *Handler) reload(ctx context.Context) {
	if err := h.lib.Reload(ctx); err != nil {
		slog.Warn("api: library reload failed", slog.String("error", err.Error()))
	}
}

// Config handles GET /api/config.
//
//	@Summary		Client configuration
//	@Tags			config
//	@Produce		json
//	@Success		200	{object}	ConfigResponse
//	@Security		BearerAuth
//	@Router			/config [get]
func (h *Handler) Config(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, ConfigResponse{
		Name:          h.settings.Name,
		Tagline:       h.settings.Tagline,
		Version:       h.settings.Version,
		SearchEnabled: h.settings.SearchEnabled,
		Security:      SecurityConfig{Enabled: h.settings.AuthEnabled},
	})
}

// ListNotes handles GET /api/notes.
//
//	@Summary		List notes, attachment images and folders
//	@Tags			notes
//	@Produce		json
//	@Success		200	{object}	models.Listing
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	listing, err := h.svc.ListNotes(r.Context())
	if err != nil {
		writeError(w, "list notes", err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

// GetNote handles GET /api/notes/*.
//
//	@Summary		Get a single note by path
//	@Tags			notes
//	@Produce		json
//	@Param			path	path		string	true	"Note path"
//	@Success		200		{object}	NoteDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{path} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	path, ok := notePath(w, r)
	if !ok {
		return
	}
	note, err := h.svc.GetNote(r.Context(), path)
	if err != nil {
		writeError(w, "get note", err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// SaveNote handles POST /api/notes/*. A missing ".md" extension is added.
// When If-Match is sent the note must exist and match the checksum.
//
//	@Summary		Create or update a note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			path		path	string			true	"Note path"
//	@Param			If-Match	header	string			false	"SHA-256 checksum for optimistic concurrency"
//	@Param			body		body	SaveNoteRequest	true	"Note content"
//	@Success		200			{object}	NoteDetail
//	@Success		201			{object}	NoteDetail
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{path} [post]
func (h *Handler) SaveNote(w http.ResponseWriter, r *http.Request) {
	path, ok := notePath(w, r)
	if !ok {
		return
	}
	var req SaveNoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	existed := h.svc.NoteExists(r.Context(), path)
	var (
		note models.Note
		err  error
	)
	if ifMatch := r.Header.Get("If-Match"); ifMatch != "" {
		note, err = h.svc.UpdateNote(r.Context(), path, req.Content, ifMatch)
	} else {
		note, err = h.svc.SaveNote(r.Context(), path, req.Content)
	}
	if err != nil {
		writeError(w, "save note", err)
		return
	}
	h.lib.UpdateNote(note)

	detail, err := h.svc.GetNote(r.Context(), path)
	if err != nil {
		writeError(w, "save note", err)
		return
	}
	status := http.StatusOK
	if !existed {
		status = http.StatusCreated
	}
	writeJSON(w, status, detail)
}

// DeleteNote handles DELETE /api/notes/*.
//
//	@Summary		Delete a note
//	@Tags			notes
//	@Param			path	path	string	true	"Note path"
//	@Success		204		"Note deleted"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{path} [delete]
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	path, ok := notePath(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteNote(r.Context(), path); err != nil {
		writeError(w, "delete note", err)
		return
	}
	h.reload(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// MoveNote handles POST /api/notes/move.
//
//	@Summary		Move or rename a note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		MoveRequest	true	"Source and target paths"
//	@Success		200		{object}	models.Note
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/move [post]
func (h *Handler) MoveNote(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	from, err := noteservice.NotePath(req.From)
	if err != nil {
		writeError(w, "move note", err)
		return
	}
	note, err := h.svc.MoveNote(r.Context(), from, req.To)
	if err != nil {
		writeError(w, "move note", err)
		return
	}
	h.reload(r.Context())
	writeJSON(w, http.StatusOK, note)
}

// CreateFolder handles POST /api/folders.
//
//	@Summary		Create a folder
//	@Tags			folders
//	@Accept			json
//	@Produce		json
//	@Param			body	body		FolderRequest	true	"Folder path"
//	@Success		201		{object}	FolderResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/folders [post]
func (h *Handler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	var req FolderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.svc.CreateFolder(r.Context(), req.Path)
	if err != nil {
		writeError(w, "create folder", err)
		return
	}
	h.reload(r.Context())
	writeJSON(w, http.StatusCreated, FolderResponse{Path: p})
}

// MoveFolder handles POST /api/folders/move.
//
//	@Summary		Move a folder with its contents
//	@Tags			folders
//	@Accept			json
//	@Produce		json
//	@Param			body	body		MoveRequest	true	"Source and target paths"
//	@Success		200		{object}	FolderResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/folders/move [post]
func (h *Handler) MoveFolder(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.svc.MoveFolder(r.Context(), req.From, req.To)
	if err != nil {
		writeError(w, "move folder", err)
		return
	}
	h.reload(r.Context())
	writeJSON(w, http.StatusOK, FolderResponse{Path: p})
}

// RenameFolder handles POST /api/folders/rename.
//
//	@Summary		Rename a folder in place
//	@Tags			folders
//	@Accept			json
//	@Produce		json
//	@Param			body	body		RenameFolderRequest	true	"Folder and new name"
//	@Success		200		{object}	FolderResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/folders/rename [post]
func (h *Handler) RenameFolder(w http.ResponseWriter, r *http.Request) {
	var req RenameFolderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.svc.RenameFolder(r.Context(), req.Path, req.Name)
	if err != nil {
		writeError(w, "rename folder", err)
		return
	}
	h.reload(r.Context())
	writeJSON(w, http.StatusOK, FolderResponse{Path: p})
}

// DeleteFolder handles DELETE /api/folders/*.
//
//	@Summary		Delete a folder and everything in it
//	@Tags			folders
//	@Param			path	path	string	true	"Folder path"
//	@Success		204		"Folder deleted"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/folders/{path} [delete]
func (h *Handler) DeleteFolder(w http.ResponseWriter, r *http.Request) {
	p := wildcardPath(r)
	if p == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	if err := h.svc.DeleteFolder(r.Context(), p); err != nil {
		writeError(w, "delete folder", err)
		return
	}
	h.reload(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// Tree handles GET /api/tree.
//
//	@Summary		Nested folder tree of the library
//	@Tags			library
//	@Produce		json
//	@Success		200	{object}	foldertree.Folder
//	@Security		BearerAuth
//	@Router			/tree [get]
func (h *Handler) Tree(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.lib.Tree())
}

// Tags handles GET /api/tags.
//
//	@Summary		Tag usage counts
//	@Tags			library
//	@Produce		json
//	@Success		200	{object}	map[string]int
//	@Security		BearerAuth
//	@Router			/tags [get]
func (h *Handler) Tags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.svc.ListTags(r.Context())
	if err != nil {
		writeError(w, "list tags", err)
		return
	}
	writeJSON(w, http.StatusOK, tags)
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across notes
//	@Tags			search
//	@Produce		json
//	@Param			q	query		string	true	"Search query"
//	@Success		200	{object}	SearchResponse
//	@Failure		400	{object}	errResponse
//	@Failure		403	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	if !h.settings.SearchEnabled {
		writeJSON(w, http.StatusForbidden, errorBody("search is disabled"))
		return
	}
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	hits, err := h.svc.Search(r.Context(), q)
	if err != nil {
		slog.Error("search failed", slog.String("query", q), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: hits})
}

// Graph handles GET /api/graph.
//
//	@Summary		Get the wikilink graph
//	@Tags			graph
//	@Produce		json
//	@Success		200	{object}	models.Graph
//	@Security		BearerAuth
//	@Router			/graph [get]
func (h *Handler) Graph(w http.ResponseWriter, r *http.Request) {
	g, err := h.svc.Graph(r.Context())
	if err != nil {
		writeError(w, "graph", err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// Backlinks handles GET /api/backlinks/*.
//
//	@Summary		Notes linking to a note
//	@Tags			graph
//	@Produce		json
//	@Param			path	path		string	true	"Note path"
//	@Success		200		{object}	BacklinksResponse
//	@Security		BearerAuth
//	@Router			/backlinks/{path} [get]
func (h *Handler) Backlinks(w http.ResponseWriter, r *http.Request) {
	path, ok := notePath(w, r)
	if !ok {
		return
	}
	bl, err := h.svc.Backlinks(r.Context(), path)
	if err != nil {
		writeError(w, "backlinks", err)
		return
	}
	writeJSON(w, http.StatusOK, BacklinksResponse{Path: path, Backlinks: bl})
}
