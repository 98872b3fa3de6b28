package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/starford/notegraph/internal/apperr"
	"github.com/starford/notegraph/internal/attachments"
	"github.com/starford/notegraph/internal/validate"
)

// maxUploadBytes leaves room for multipart framing around the image.
const maxUploadBytes = attachments.MaxSize + 1<<20

// ServeImage handles GET /api/images/*.
//
//	@Summary		Serve an image from the vault
//	@Tags			images
//	@Param			path	path	string	true	"Image path"
//	@Success		200		"Image bytes"
//	@Failure		400		{object}	errResponse
//	@Failure		403		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/images/{path} [get]
func (h *Handler) ServeImage(w http.ResponseWriter, r *http.Request) {
	p := wildcardPath(r)
	abs, err := h.images.Resolve(p)
	switch {
	case errors.Is(err, attachments.ErrUnsupported):
		writeJSON(w, http.StatusBadRequest, errorBody("not an image"))
		return
	case errors.Is(err, apperr.ErrInvalidPath):
		writeJSON(w, http.StatusForbidden, errorBody("forbidden"))
		return
	case err != nil:
		writeError(w, "serve image", err)
		return
	}
	info, err := os.Stat(abs)
	if err != nil || info.IsDir() {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	http.ServeFile(w, r, abs)
}

// UploadImage handles POST /api/upload-image (multipart/form-data, fields
// "file" and "note_path").
//
//	@Summary		Upload an image next to a note
//	@Tags			images
//	@Accept			mpfd
//	@Produce		json
//	@Param			file		formData	file	true	"Image"
//	@Param			note_path	formData	string	false	"Note the image belongs to"
//	@Success		201			{object}	attachments.Saved
//	@Failure		400			{object}	errResponse
//	@Failure		413			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/upload-image [post]
func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	notePath := r.FormValue("note_path")
	if notePath != "" {
		if res := validate.Path(notePath); !res.Valid {
			writeJSON(w, http.StatusBadRequest, errorBody(res.Err().Error()))
			return
		}
	}

	data, err := io.ReadAll(io.LimitReader(file, attachments.MaxSize+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read file"))
		return
	}

	saved, err := h.images.Save(notePath, header.Filename, data)
	switch {
	case errors.Is(err, attachments.ErrTooLarge):
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody(err.Error()))
		return
	case errors.Is(err, attachments.ErrUnsupported), errors.Is(err, attachments.ErrMismatch):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	case err != nil:
		writeError(w, "upload image", err)
		return
	}
	slog.Info("api: image uploaded", slog.String("path", saved.Path), slog.Int64("size", saved.Size))
	writeJSON(w, http.StatusCreated, saved)
}
