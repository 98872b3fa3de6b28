// Package session is the open-note controller: it owns the edit buffer of
// the note being edited and drives history, autosave, derived metadata,
// preview rendering and search highlighting from it.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/notegraph/internal/apperr"
	"github.com/starford/notegraph/internal/autosave"
	"github.com/starford/notegraph/internal/frontmatter"
	"github.com/starford/notegraph/internal/highlight"
	"github.com/starford/notegraph/internal/history"
	"github.com/starford/notegraph/internal/models"
	"github.com/starford/notegraph/internal/render"
)

var (
	// ErrNotOpen is returned by operations that need an open note.
	ErrNotOpen = fmt.Errorf("session: no note open: %w", apperr.ErrNotFound)
	// ErrStale is returned for edits carrying an outdated session id.
	ErrStale = fmt.Errorf("session: stale session id: %w", apperr.ErrConflict)
)

// Store is the note storage collaborator.
type Store interface {
	GetNoteContent(ctx context.Context, path string) (string, error)
	SaveNote(ctx context.Context, path, content string) (models.Note, error)
}

// Library resolves wikilinks and receives refreshed note metadata after
// saves.
type Library interface {
	Exists(target string) bool
	UpdateNote(n models.Note)
}

// Publisher announces saved notes.
type Publisher interface {
	PublishNoteEvent(kind, path string)
}

// Session holds at most one open note. It is safe for concurrent use.
//
// Lock order: the session lock may be held while taking the autosave
// machine's lock, never the reverse. SaveNow and Flush call back into the
// session and must be invoked without the session lock.
type Session struct {
	store   Store
	library Library
	pub     Publisher
	logger  *slog.Logger

	hist     *history.Manager
	machine  *autosave.Machine
	renderer *render.Renderer
	hl       *highlight.Engine
	tags     *frontmatter.TagCache

	mu              sync.Mutex
	id              string
	path            string
	content         string
	cursor          int
	applyingHistory bool
	derived         Derived
	savedAt         time.Time
	saveErr         string
}

// Option configures a Session.
type Option func(*config)

type config struct {
	logger    *slog.Logger
	pub       Publisher
	limit     int
	machine   []autosave.Option
	imageBase string
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
		c.machine = append(c.machine, autosave.WithLogger(l))
	}
}

// WithPublisher sets where note.saved events go.
func WithPublisher(p Publisher) Option {
	return func(c *config) { c.pub = p }
}

// WithHistoryLimit bounds the undo stack.
func WithHistoryLimit(n int) Option {
	return func(c *config) { c.limit = n }
}

// WithAutosave passes options to the autosave machine.
func WithAutosave(opts ...autosave.Option) Option {
	return func(c *config) { c.machine = append(c.machine, opts...) }
}

// WithImageBase sets the URL prefix for preview images.
func WithImageBase(base string) Option {
	return func(c *config) { c.imageBase = base }
}

type nopPublisher struct{}

func (nopPublisher) PublishNoteEvent(string, string) {}

// New creates a session with no open note.
func New(store Store, library Library, opts ...Option) *Session {
	cfg := config{logger: slog.Default(), pub: nopPublisher{}, limit: history.DefaultLimit, imageBase: render.DefaultImageBase}
	for _, o := range opts {
		o(&cfg)
	}
	s := &Session{
		store:   store,
		library: library,
		pub:     cfg.pub,
		logger:  cfg.logger,
		hist:    history.New(cfg.limit),
		renderer: render.New(
			render.WithLogger(cfg.logger),
			render.WithImageBase(cfg.imageBase),
		),
		hl:   highlight.NewEngine(),
		tags: frontmatter.NewTagCache(),
	}
	s.machine = autosave.New(autosave.StoreFunc(s.persist), (*source)(s), cfg.machine...)
	s.derived = derive("", nil)
	return s
}

// persist writes through the store and refreshes library metadata.
func (s *Session) persist(ctx context.Context, p, content string) error {
	n, err := s.store.SaveNote(ctx, p, content)
	if err != nil {
		return err
	}
	s.library.UpdateNote(n)
	s.pub.PublishNoteEvent("saved", p)
	return nil
}

// Open flushes unsaved edits of the current note and loads p. A failed
// flush aborts the open so the unsaved buffer stays in place. When p
// cannot be read the session is reset to the empty state.
func (s *Session) Open(ctx context.Context, p string) (State, error) {
	if err := s.machine.Flush(ctx); err != nil {
		return s.State(), fmt.Errorf("session: save before open: %w", err)
	}
	content, err := s.store.GetNoteContent(ctx, p)
	if err != nil {
		s.reset()
		return s.State(), err
	}

	s.mu.Lock()
	s.machine.Cancel()
	s.id = uuid.NewString()
	s.path = p
	s.content = content
	s.cursor = 0
	s.savedAt = time.Time{}
	s.saveErr = ""
	s.hist.Reset(content)
	s.renderer.Reset(folderOf(p))
	s.hl.Clear()
	s.derived = derive(content, s.tags)
	s.mu.Unlock()

	s.logger.Debug("session: opened", slog.String("path", p))
	return s.State(), nil
}

// Close saves pending edits and empties the session. A failed save is
// logged and does not keep the note open.
func (s *Session) Close(ctx context.Context) State {
	if err := s.machine.Flush(ctx); err != nil {
		s.logger.Warn("session: save on close failed", slog.String("error", err.Error()))
	}
	s.reset()
	return s.State()
}

func (s *Session) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.machine.Cancel()
	s.id = ""
	s.path = ""
	s.content = ""
	s.cursor = 0
	s.savedAt = time.Time{}
	s.saveErr = ""
	s.hist.Clear()
	s.renderer.Reset("")
	s.hl.Clear()
	s.derived = derive("", nil)
}

// Edit replaces the buffer with content typed by the user.
func (s *Session) Edit(id, content string, cursor int) (State, error) {
	s.mu.Lock()
	if s.path == "" {
		s.mu.Unlock()
		return s.State(), ErrNotOpen
	}
	if id != s.id {
		s.mu.Unlock()
		return s.State(), ErrStale
	}
	s.setContentLocked(content, cursor)
	s.mu.Unlock()
	return s.State(), nil
}

// setContentLocked installs new buffer content. Outside history transitions
// it is the edit hook: it marks history dirty and restarts the autosave
// debounce.
func (s *Session) setContentLocked(content string, cursor int) {
	changed := content != s.content
	s.content = content
	s.cursor = cursor
	s.derived = derive(content, s.tags)
	if changed {
		s.hl.Clear()
	}
	if s.applyingHistory {
		return
	}
	s.hist.MarkDirty()
	s.machine.Touch()
}

// Undo restores the previous history entry and saves it immediately.
func (s *Session) Undo(ctx context.Context) (State, error) {
	return s.travel(ctx, s.hist.Undo)
}

// Redo reapplies the next history entry and saves it immediately.
func (s *Session) Redo(ctx context.Context) (State, error) {
	return s.travel(ctx, s.hist.Redo)
}

func (s *Session) travel(ctx context.Context, step func(string, int) (history.Snapshot, bool)) (State, error) {
	s.mu.Lock()
	if s.path == "" {
		s.mu.Unlock()
		return s.State(), ErrNotOpen
	}
	snap, ok := step(s.content, s.cursor)
	if !ok {
		s.mu.Unlock()
		return s.State(), nil
	}
	s.applyingHistory = true
	s.setContentLocked(snap.Content, snap.Cursor)
	s.applyingHistory = false
	s.mu.Unlock()

	if err := s.machine.SaveNow(ctx); err != nil {
		return s.State(), err
	}
	return s.State(), nil
}

// Save persists the buffer now, bypassing the debounce.
func (s *Session) Save(ctx context.Context) (State, error) {
	if !s.IsOpen() {
		return s.State(), ErrNotOpen
	}
	if err := s.machine.SaveNow(ctx); err != nil {
		return s.State(), err
	}
	return s.State(), nil
}

// IsOpen reports whether a note is open.
func (s *Session) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path != ""
}

// InvalidatePreview drops the cached preview, e.g. after the note list
// changed and wikilinks may resolve differently.
func (s *Session) InvalidatePreview() {
	s.renderer.Invalidate()
}

func folderOf(p string) string {
	dir := path.Dir(p)
	if dir == "." {
		return ""
	}
	return dir
}

// source adapts Session to autosave.Source.
type source Session

func (src *source) Snapshot() (string, string, bool) {
	s := (*Session)(src)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.path == "" {
		return "", "", false
	}
	s.hist.Commit(s.content, s.cursor)
	return s.path, s.content, true
}

func (src *source) Saved(p, _ string, at time.Time) {
	s := (*Session)(src)
	s.mu.Lock()
	defer s.mu.Unlock()
	if p != s.path {
		return
	}
	s.savedAt = at
	s.saveErr = ""
}

func (src *source) Failed(p string, err error) {
	s := (*Session)(src)
	s.mu.Lock()
	defer s.mu.Unlock()
	if p != s.path {
		return
	}
	s.saveErr = err.Error()
}
