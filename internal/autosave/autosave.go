// Package autosave debounces editor changes into single persistence calls.
//
// Every Touch restarts one timer. When it fires, the Source commits its
// pending history and hands back the content to persist, which goes to the
// Store. Saves never overlap: a save requested while one is in flight is
// queued and runs once more with the newest content afterwards.
package autosave

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultDelay     = time.Second
	DefaultIndicator = 2 * time.Second
)

// Timer is a pending callback that can be cancelled.
type Timer interface {
	Stop() bool
}

// Clock abstracts time so tests can drive the debounce deterministically.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// Store persists note content.
type Store interface {
	Save(ctx context.Context, path, content string) error
}

// StoreFunc adapts a function to Store.
type StoreFunc func(ctx context.Context, path, content string) error

func (f StoreFunc) Save(ctx context.Context, path, content string) error { return f(ctx, path, content) }

// Source is the editing session the machine saves for. The machine never
// holds its own lock while calling it.
type Source interface {
	// Snapshot commits pending history and returns what to persist. ok is
	// false when no note is open.
	Snapshot() (path, content string, ok bool)
	// Saved is called after content was persisted.
	Saved(path, content string, at time.Time)
	// Failed is called when persisting failed.
	Failed(path string, err error)
}

// Machine is the autosave state machine for one editing session.
type Machine struct {
	store     Store
	source    Source
	clock     Clock
	delay     time.Duration
	indicator time.Duration
	logger    *slog.Logger

	mu        sync.Mutex
	timer     Timer
	timerSeq  uint64
	gen       uint64
	savedGen  uint64
	saving    bool
	queued    bool
	done      chan struct{}
	showSaved bool
	showTimer Timer
	lastErr   error
}

// Option configures a Machine.
type Option func(*Machine)

// WithDelay sets the debounce delay.
func WithDelay(d time.Duration) Option {
	return func(m *Machine) {
		if d > 0 {
			m.delay = d
		}
	}
}

// WithIndicator sets how long the saved indicator stays on.
func WithIndicator(d time.Duration) Option {
	return func(m *Machine) {
		if d > 0 {
			m.indicator = d
		}
	}
}

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(m *Machine) { m.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Machine) { m.logger = l }
}

// New creates a Machine saving source through store.
func New(store Store, source Source, opts ...Option) *Machine {
	m := &Machine{
		store:     store,
		source:    source,
		clock:     realClock{},
		delay:     DefaultDelay,
		indicator: DefaultIndicator,
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Touch records an edit and restarts the debounce timer.
func (m *Machine) Touch() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gen++
	m.stopTimerLocked()
	seq := m.timerSeq
	m.timer = m.clock.AfterFunc(m.delay, func() { m.fire(seq) })
}

func (m *Machine) fire(seq uint64) {
	m.mu.Lock()
	if seq != m.timerSeq || m.timer == nil {
		// Stopped or restarted after the callback was already scheduled.
		m.mu.Unlock()
		return
	}
	m.timer = nil
	m.mu.Unlock()
	// The error is already reported through Source.Failed.
	_ = m.save(context.Background())
}

// SaveNow bypasses the debounce and persists immediately. If a save is in
// flight the request is queued behind it and nil is returned.
func (m *Machine) SaveNow(ctx context.Context) error {
	m.mu.Lock()
	m.stopTimerLocked()
	m.mu.Unlock()
	return m.save(ctx)
}

// Flush waits for an in-flight save and then persists anything unsaved. It
// is used before the session switches away from a note.
func (m *Machine) Flush(ctx context.Context) error {
	m.mu.Lock()
	pending := m.timer != nil
	m.stopTimerLocked()
	done := m.done
	m.mu.Unlock()

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if pending || m.Dirty() {
		return m.save(ctx)
	}
	return nil
}

// Cancel drops a pending debounce without saving and forgets unsaved state.
func (m *Machine) Cancel() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopTimerLocked()
	m.savedGen = m.gen
	m.queued = false
	m.lastErr = nil
}

func (m *Machine) save(ctx context.Context) error {
	m.mu.Lock()
	if m.saving {
		m.queued = true
		m.mu.Unlock()
		return nil
	}
	m.saving = true
	m.done = make(chan struct{})
	m.mu.Unlock()

	for {
		m.mu.Lock()
		gen := m.gen
		m.mu.Unlock()

		path, content, ok := m.source.Snapshot()
		var err error
		if ok {
			err = m.store.Save(ctx, path, content)
		}
		now := m.clock.Now()

		m.mu.Lock()
		switch {
		case err != nil:
			m.lastErr = err
		case ok:
			if gen > m.savedGen {
				m.savedGen = gen
			}
			m.lastErr = nil
			m.showSavedLocked()
		default:
			m.savedGen = m.gen
		}
		again := m.queued && err == nil
		m.queued = false
		if !again {
			m.saving = false
			close(m.done)
			m.done = nil
		}
		m.mu.Unlock()

		switch {
		case err != nil:
			m.logger.Warn("autosave: save failed", slog.String("path", path), slog.String("error", err.Error()))
			m.source.Failed(path, err)
		case ok:
			m.source.Saved(path, content, now)
		}
		if !again {
			return err
		}
	}
}

func (m *Machine) showSavedLocked() {
	m.showSaved = true
	if m.showTimer != nil {
		m.showTimer.Stop()
	}
	m.showTimer = m.clock.AfterFunc(m.indicator, func() {
		m.mu.Lock()
		m.showSaved = false
		m.showTimer = nil
		m.mu.Unlock()
	})
}

func (m *Machine) stopTimerLocked() {
	m.timerSeq++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// Dirty reports whether edits exist that have not been persisted.
func (m *Machine) Dirty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen != m.savedGen
}

// Pending reports whether the debounce timer is running.
func (m *Machine) Pending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timer != nil
}

// Saving reports whether a save is in flight.
func (m *Machine) Saving() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saving
}

// SavedIndicator reports whether the transient "saved" marker is on.
func (m *Machine) SavedIndicator() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.showSaved
}

// LastError returns the error of the most recent failed save, cleared by
// the next successful one.
func (m *Machine) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}
