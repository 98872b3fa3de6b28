// Package history keeps a bounded undo/redo stack of committed note states.
//
// Edits only mark the manager dirty; a snapshot is taken on Commit, which the
// autosave machine calls right before persisting. The first entry is the
// load-time baseline and is never undone past.
package history

import "sync"

// DefaultLimit is the maximum number of undo entries kept.
const DefaultLimit = 50

// Snapshot is one committed editor state.
type Snapshot struct {
	Content string `json:"content"`
	Cursor  int    `json:"cursor"`
}

// Manager is safe for concurrent use.
type Manager struct {
	mu    sync.Mutex
	limit int
	undo  []Snapshot
	redo  []Snapshot
	dirty bool
}

// New returns a manager holding at most limit undo entries. A limit below 1
// uses DefaultLimit.
func New(limit int) *Manager {
	if limit < 1 {
		limit = DefaultLimit
	}
	return &Manager{limit: limit}
}

// Reset drops all history and installs content as the baseline at cursor 0.
func (m *Manager) Reset(content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.undo = []Snapshot{{Content: content}}
	m.redo = nil
	m.dirty = false
}

// Clear drops all history without a baseline, for a closed note.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.undo, m.redo = nil, nil
	m.dirty = false
}

// MarkDirty records that an edit happened since the last commit.
func (m *Manager) MarkDirty() {
	m.mu.Lock()
	m.dirty = true
	m.mu.Unlock()
}

// Dirty reports whether an edit is pending a commit.
func (m *Manager) Dirty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dirty
}

// Commit turns the pending edit into an undo entry. It reports whether an
// entry was pushed; unchanged content only clears the dirty flag.
func (m *Manager) Commit(content string, cursor int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commitLocked(content, cursor)
}

func (m *Manager) commitLocked(content string, cursor int) bool {
	if !m.dirty {
		return false
	}
	m.dirty = false
	if n := len(m.undo); n > 0 && m.undo[n-1].Content == content {
		return false
	}
	m.undo = append(m.undo, Snapshot{Content: content, Cursor: cursor})
	if over := len(m.undo) - m.limit; over > 0 {
		m.undo = append(m.undo[:0:0], m.undo[over:]...)
	}
	m.redo = nil
	return true
}

// Undo commits any pending edit, then steps back one entry and returns the
// state to apply. ok is false when only the baseline remains.
func (m *Manager) Undo(content string, cursor int) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commitLocked(content, cursor)
	if len(m.undo) <= 1 {
		return Snapshot{}, false
	}
	top := m.undo[len(m.undo)-1]
	m.undo = m.undo[:len(m.undo)-1]
	m.redo = append(m.redo, top)
	return m.undo[len(m.undo)-1], true
}

// Redo commits any pending edit, then re-applies the most recently undone
// entry. ok is false when there is nothing to redo.
func (m *Manager) Redo(content string, cursor int) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commitLocked(content, cursor)
	if len(m.redo) == 0 {
		return Snapshot{}, false
	}
	top := m.redo[len(m.redo)-1]
	m.redo = m.redo[:len(m.redo)-1]
	m.undo = append(m.undo, top)
	return top, true
}

// CanUndo reports whether Undo would move.
func (m *Manager) CanUndo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.undo) > 1
}

// CanRedo reports whether Redo would move.
func (m *Manager) CanRedo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.redo) > 0
}

// UndoLen returns the number of undo entries, baseline included.
func (m *Manager) UndoLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.undo)
}

// RedoLen returns the number of redo entries.
func (m *Manager) RedoLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.redo)
}
