// Package library owns the loaded note list and everything derived from it:
// the wikilink index, the folder tree and tag counts.
package library

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/starford/notegraph/internal/foldertree"
	"github.com/starford/notegraph/internal/linkindex"
	"github.com/starford/notegraph/internal/models"
)

// DefaultReloadDelay is how long ScheduleReload waits for further changes.
const DefaultReloadDelay = 300 * time.Millisecond

// Lister supplies the flat vault snapshot.
type Lister interface {
	ListNotes(ctx context.Context) (models.Listing, error)
}

// Library is safe for concurrent use. Derived structures are rebuilt
// wholesale whenever the note list changes and are read-only afterwards.
type Library struct {
	lister Lister
	logger *slog.Logger
	delay  time.Duration

	mu      sync.RWMutex
	notes   []models.Note
	folders []string
	byPath  map[string]int
	index   *linkindex.Index
	tree    *foldertree.Folder
	tags    map[string]int
	gen     uint64

	timerMu   sync.Mutex
	timer     *time.Timer
	listeners []func(gen uint64)
}

// Option configures a Library.
type Option func(*Library)

// WithReloadDelay sets the ScheduleReload debounce.
func WithReloadDelay(d time.Duration) Option {
	return func(l *Library) { l.delay = d }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Library) { l.logger = logger }
}

// New returns an empty library. Call Reload to load the vault.
func New(lister Lister, opts ...Option) *Library {
	l := &Library{lister: lister, delay: DefaultReloadDelay, logger: slog.Default()}
	for _, o := range opts {
		o(l)
	}
	l.install(models.Listing{})
	return l
}

// OnReload registers fn to run after every rebuild with the new generation.
func (l *Library) OnReload(fn func(gen uint64)) {
	l.timerMu.Lock()
	l.listeners = append(l.listeners, fn)
	l.timerMu.Unlock()
}

// Reload fetches the note list and rebuilds the index, tree and tag counts.
func (l *Library) Reload(ctx context.Context) error {
	listing, err := l.lister.ListNotes(ctx)
	if err != nil {
		return err
	}
	gen := l.install(listing)
	l.logger.Debug("library: reloaded",
		slog.Int("notes", len(listing.Notes)),
		slog.Int("folders", len(listing.Folders)))
	l.notify(gen)
	return nil
}

// ScheduleReload coalesces bursts of vault changes into one Reload after
// the configured delay.
func (l *Library) ScheduleReload() {
	l.timerMu.Lock()
	defer l.timerMu.Unlock()
	if l.timer != nil {
		l.timer.Stop()
	}
	l.timer = time.AfterFunc(l.delay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := l.Reload(ctx); err != nil {
			l.logger.Warn("library: reload failed", slog.String("error", err.Error()))
		}
	})
}

// Close cancels a scheduled reload.
func (l *Library) Close() {
	l.timerMu.Lock()
	defer l.timerMu.Unlock()
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
}

func (l *Library) notify(gen uint64) {
	l.timerMu.Lock()
	fns := append([]func(uint64){}, l.listeners...)
	l.timerMu.Unlock()
	for _, fn := range fns {
		fn(gen)
	}
}

// install replaces the note list and rebuilds everything derived from it.
func (l *Library) install(listing models.Listing) uint64 {
	notes := append([]models.Note(nil), listing.Notes...)
	folders := append([]string(nil), listing.Folders...)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.setLocked(notes, folders)
	return l.gen
}

func (l *Library) setLocked(notes []models.Note, folders []string) {
	byPath := make(map[string]int, len(notes))
	for i, n := range notes {
		byPath[n.Path] = i
	}
	l.notes = notes
	l.folders = folders
	l.byPath = byPath
	l.index = linkindex.Build(notes)
	l.tree = foldertree.Build(notes, folders)
	l.tags = countTags(notes)
	l.gen++
}

func countTags(notes []models.Note) map[string]int {
	out := make(map[string]int)
	for _, n := range notes {
		for _, t := range n.Tags {
			out[t]++
		}
	}
	return out
}

// UpdateNote refreshes the cached metadata of one note after a save. An
// existing note keeps its link index entry and only the tree and tag counts
// are rebuilt; a note not yet in the list triggers a full rebuild.
func (l *Library) UpdateNote(n models.Note) {
	l.mu.Lock()
	i, ok := l.byPath[n.Path]
	if ok {
		notes := append([]models.Note(nil), l.notes...)
		notes[i] = n
		l.notes = notes
		l.tree = foldertree.Build(notes, l.folders)
		l.tags = countTags(notes)
		l.mu.Unlock()
		return
	}
	notes := append(append([]models.Note(nil), l.notes...), n)
	sort.SliceStable(notes, func(a, b int) bool { return notes[a].Modified.After(notes[b].Modified) })
	l.setLocked(notes, l.folders)
	gen := l.gen
	l.mu.Unlock()
	l.notify(gen)
}

// Index returns the wikilink index of the current note list.
func (l *Library) Index() *linkindex.Index {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.index
}

// Exists reports whether a wikilink target resolves to a loaded note.
func (l *Library) Exists(target string) bool {
	return l.Index().Exists(target)
}

// Tree returns the folder tree of the current note list.
func (l *Library) Tree() *foldertree.Folder {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.tree
}

// Notes returns a copy of the note list.
func (l *Library) Notes() []models.Note {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]models.Note(nil), l.notes...)
}

// Folders returns a copy of the folder list.
func (l *Library) Folders() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]string(nil), l.folders...)
}

// Note returns the cached entry for path.
func (l *Library) Note(path string) (models.Note, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	i, ok := l.byPath[path]
	if !ok {
		return models.Note{}, false
	}
	return l.notes[i], true
}

// Tags returns tag counts over the loaded notes.
func (l *Library) Tags() map[string]int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]int, len(l.tags))
	for k, v := range l.tags {
		out[k] = v
	}
	return out
}

// Generation increments on every rebuild.
func (l *Library) Generation() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.gen
}
