package api

import (
	"net/http"
	"path"

	"github.com/starford/notegraph/internal/frontmatter"
	"github.com/starford/notegraph/internal/outline"
	"github.com/starford/notegraph/internal/render"
	"github.com/starford/notegraph/internal/validate"
)

// Render handles POST /api/render.
//
//	@Summary		Render markdown to sanitized HTML
//	@Tags			content
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ContentRequest	true	"Markdown and optional note path"
//	@Success		200		{object}	RenderResponse
//	@Security		BearerAuth
//	@Router			/render [post]
func (h *Handler) Render(w http.ResponseWriter, r *http.Request) {
	var req ContentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	folder := ""
	if req.Path != "" {
		if folder = path.Dir(req.Path); folder == "." {
			folder = ""
		}
	}
	writeJSON(w, http.StatusOK, RenderResponse{HTML: render.HTML(req.Content, folder, h.lib)})
}

// Outline handles POST /api/outline.
//
//	@Summary		Extract the heading outline
//	@Tags			content
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ContentRequest	true	"Markdown"
//	@Success		200		{object}	OutlineResponse
//	@Security		BearerAuth
//	@Router			/outline [post]
func (h *Handler) Outline(w http.ResponseWriter, r *http.Request) {
	var req ContentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	headings := outline.Extract(req.Content)
	if headings == nil {
		headings = []outline.Heading{}
	}
	writeJSON(w, http.StatusOK, OutlineResponse{Headings: headings})
}

// Frontmatter handles POST /api/frontmatter.
//
//	@Summary		Parse the frontmatter block
//	@Tags			content
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ContentRequest	true	"Markdown"
//	@Success		200		{object}	FrontmatterResponse
//	@Security		BearerAuth
//	@Router			/frontmatter [post]
func (h *Handler) Frontmatter(w http.ResponseWriter, r *http.Request) {
	var req ContentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	meta := frontmatter.Parse(req.Content)
	if meta == nil {
		meta = frontmatter.Metadata{}
	}
	writeJSON(w, http.StatusOK, FrontmatterResponse{
		Metadata: meta,
		Tags:     frontmatter.ParseTags(req.Content),
	})
}

// Validate handles POST /api/validate. A path is checked segment by
// segment; otherwise the single name is checked.
//
//	@Summary		Check a file or folder name
//	@Tags			content
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ValidateRequest	true	"Name or path"
//	@Success		200		{object}	validate.Result
//	@Security		BearerAuth
//	@Router			/validate [post]
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Path != "" {
		writeJSON(w, http.StatusOK, validate.Path(req.Path))
		return
	}
	writeJSON(w, http.StatusOK, validate.Name(req.Name))
}
