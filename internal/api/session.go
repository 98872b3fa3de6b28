package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/notegraph/internal/noteservice"
	"github.com/starford/notegraph/internal/session"
)

// SessionState handles GET /api/session.
//
//	@Summary		Current editing session
//	@Tags			session
//	@Produce		json
//	@Success		200	{object}	session.State
//	@Security		BearerAuth
//	@Router			/session [get]
func (h *Handler) SessionState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.sess.State())
}

// OpenSession handles POST /api/session/open. Unsaved edits of the
// previously open note are saved first.
//
//	@Summary		Open a note for editing
//	@Tags			session
//	@Accept			json
//	@Produce		json
//	@Param			body	body		OpenSessionRequest	true	"Note path"
//	@Success		200		{object}	session.State
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/session/open [post]
func (h *Handler) OpenSession(w http.ResponseWriter, r *http.Request) {
	var req OpenSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := noteservice.NotePath(req.Path)
	if err != nil {
		writeError(w, "open session", err)
		return
	}
	st, err := h.sess.Open(r.Context(), p)
	if err != nil {
		writeError(w, "open session", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// EditSession handles PUT /api/session/content.
//
//	@Summary		Replace the edit buffer
//	@Tags			session
//	@Accept			json
//	@Produce		json
//	@Param			body	body		EditSessionRequest	true	"Buffer content"
//	@Success		200		{object}	session.State
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/session/content [put]
func (h *Handler) EditSession(w http.ResponseWriter, r *http.Request) {
	var req EditSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	st, err := h.sess.Edit(req.SessionID, req.Content, req.Cursor)
	if err != nil {
		writeError(w, "edit session", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// SaveSession handles POST /api/session/save.
//
//	@Summary		Save the buffer now
//	@Tags			session
//	@Produce		json
//	@Success		200	{object}	session.State
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/session/save [post]
func (h *Handler) SaveSession(w http.ResponseWriter, r *http.Request) {
	h.respondState(w, "save session")(h.sess.Save(r.Context()))
}

// Undo handles POST /api/session/undo.
//
//	@Summary		Undo the last edit
//	@Tags			session
//	@Produce		json
//	@Success		200	{object}	session.State
//	@Security		BearerAuth
//	@Router			/session/undo [post]
func (h *Handler) Undo(w http.ResponseWriter, r *http.Request) {
	h.respondState(w, "undo")(h.sess.Undo(r.Context()))
}

// Redo handles POST /api/session/redo.
//
//	@Summary		Redo the last undone edit
//	@Tags			session
//	@Produce		json
//	@Success		200	{object}	session.State
//	@Security		BearerAuth
//	@Router			/session/redo [post]
func (h *Handler) Redo(w http.ResponseWriter, r *http.Request) {
	h.respondState(w, "redo")(h.sess.Redo(r.Context()))
}

func (h *Handler) respondState(w http.ResponseWriter, op string) func(session.State, error) {
	return func(st session.State, err error) {
		if err != nil {
			writeError(w, op, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

// CloseSession handles POST /api/session/close.
//
//	@Summary		Save and close the open note
//	@Tags			session
//	@Produce		json
//	@Success		200	{object}	session.State
//	@Security		BearerAuth
//	@Router			/session/close [post]
func (h *Handler) CloseSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sess.Close(r.Context()))
}

// Preview handles GET /api/session/preview.
//
//	@Summary		Rendered buffer with search marks
//	@Tags			session
//	@Produce		json
//	@Success		200	{object}	session.Preview
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/session/preview [get]
func (h *Handler) Preview(w http.ResponseWriter, _ *http.Request) {
	p, err := h.sess.Preview()
	if err != nil {
		writeError(w, "preview", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Highlight handles POST /api/session/highlight.
//
//	@Summary		Search inside the preview
//	@Tags			session
//	@Accept			json
//	@Produce		json
//	@Param			body	body		HighlightRequest	true	"Search term"
//	@Success		200		{object}	highlight.State
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/session/highlight [post]
func (h *Handler) Highlight(w http.ResponseWriter, r *http.Request) {
	var req HighlightRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	st, err := h.sess.Highlight(req.Term)
	if err != nil {
		writeError(w, "highlight", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// NextMatch handles POST /api/session/highlight/next.
func (h *Handler) NextMatch(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.sess.NextMatch())
}

// PreviousMatch handles POST /api/session/highlight/previous.
func (h *Handler) PreviousMatch(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.sess.PreviousMatch())
}

// ScrollToMatch handles POST /api/session/highlight/{index}.
func (h *Handler) ScrollToMatch(w http.ResponseWriter, r *http.Request) {
	i, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("index must be a number"))
		return
	}
	writeJSON(w, http.StatusOK, h.sess.ScrollToMatch(i))
}

// ClearHighlight handles DELETE /api/session/highlight.
func (h *Handler) ClearHighlight(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.sess.ClearHighlight())
}
