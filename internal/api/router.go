package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/notegraph/internal/attachments"
	"github.com/starford/notegraph/internal/library"
	"github.com/starford/notegraph/internal/noteservice"
	"github.com/starford/notegraph/internal/session"
)

// Settings is the part of the configuration the API exposes or enforces.
type Settings struct {
	Name          string
	Tagline       string
	Version       string
	SearchEnabled bool
	AuthEnabled   bool
	Token         string
}

// Deps are the services behind the routes. Events, if non-nil, is mounted
// at GET /events inside the auth group.
type Deps struct {
	Notes    *noteservice.Service
	Library  *library.Library
	Session  *session.Session
	Images   *attachments.Store
	Events   http.Handler
	Settings Settings
}

// NewRouter creates a chi router with all API routes mounted.
func NewRouter(d Deps) chi.Router {
	h := NewHandler(d)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(d.Settings.AuthEnabled, d.Settings.Token))

	r.Get("/config", h.Config)

	// Notes CRUD.
	r.Get("/notes", h.ListNotes)
	r.Post("/notes/move", h.MoveNote)
	r.Get("/notes/*", h.GetNote)
	r.Post("/notes/*", h.SaveNote)
	r.Delete("/notes/*", h.DeleteNote)

	// Folders.
	r.Post("/folders", h.CreateFolder)
	r.Post("/folders/move", h.MoveFolder)
	r.Post("/folders/rename", h.RenameFolder)
	r.Delete("/folders/*", h.DeleteFolder)

	// Library views.
	r.Get("/tree", h.Tree)
	r.Get("/tags", h.Tags)
	r.Get("/search", h.Search)
	r.Get("/graph", h.Graph)
	r.Get("/backlinks/*", h.Backlinks)

	// Stateless content tools.
	r.Post("/render", h.Render)
	r.Post("/outline", h.Outline)
	r.Post("/frontmatter", h.Frontmatter)
	r.Post("/validate", h.Validate)

	// Images.
	r.Get("/images/*", h.ServeImage)
	r.Post("/upload-image", h.UploadImage)

	// Editing session.
	r.Route("/session", func(r chi.Router) {
		r.Get("/", h.SessionState)
		r.Post("/open", h.OpenSession)
		r.Put("/content", h.EditSession)
		r.Post("/save", h.SaveSession)
		r.Post("/undo", h.Undo)
		r.Post("/redo", h.Redo)
		r.Post("/close", h.CloseSession)
		r.Get("/preview", h.Preview)
		r.Post("/highlight", h.Highlight)
		r.Post("/highlight/next", h.NextMatch)
		r.Post("/highlight/previous", h.PreviousMatch)
		r.Post("/highlight/{index}", h.ScrollToMatch)
		r.Delete("/highlight", h.ClearHighlight)
	})

	// SSE endpoint (protected by same auth middleware).
	if d.Events != nil {
		r.Get("/events", d.Events.ServeHTTP)
	}

	return r
}
