package session

import (
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/starford/notegraph/internal/frontmatter"
	"github.com/starford/notegraph/internal/highlight"
	"github.com/starford/notegraph/internal/outline"
)

const wordsPerMinute = 200

// Stats are simple counts over the buffer.
type Stats struct {
	Words          int `json:"words"`
	Characters     int `json:"characters"`
	Lines          int `json:"lines"`
	ReadingMinutes int `json:"readingMinutes"`
}

// Derived is recomputed synchronously on every content change.
type Derived struct {
	Outline  []outline.Heading    `json:"outline"`
	Metadata frontmatter.Metadata `json:"metadata"`
	Tags     []string             `json:"tags"`
	Stats    Stats                `json:"stats"`
}

func derive(content string, tags *frontmatter.TagCache) Derived {
	d := Derived{
		Outline:  outline.Extract(content),
		Metadata: frontmatter.Parse(content),
		Tags:     []string{},
		Stats:    stats(content),
	}
	if d.Outline == nil {
		d.Outline = []outline.Heading{}
	}
	if tags != nil {
		d.Tags = tags.Tags(content)
	}
	return d
}

func stats(content string) Stats {
	words := len(strings.Fields(content))
	lines := 0
	if content != "" {
		lines = strings.Count(content, "\n") + 1
		if strings.HasSuffix(content, "\n") {
			lines--
		}
	}
	return Stats{
		Words:          words,
		Characters:     utf8.RuneCountInString(content),
		Lines:          lines,
		ReadingMinutes: int(math.Ceil(float64(words) / wordsPerMinute)),
	}
}

// State is a snapshot of the session for clients.
type State struct {
	ID        string          `json:"sessionId"`
	Path      string          `json:"path"`
	Open      bool            `json:"open"`
	Content   string          `json:"content"`
	Cursor    int             `json:"cursor"`
	Dirty     bool            `json:"dirty"`
	Saving    bool            `json:"saving"`
	Saved     bool            `json:"saved"`
	SavedAt   *time.Time      `json:"savedAt,omitempty"`
	Error     string          `json:"error,omitempty"`
	CanUndo   bool            `json:"canUndo"`
	CanRedo   bool            `json:"canRedo"`
	Derived   Derived         `json:"derived"`
	Highlight highlight.State `json:"highlight"`
}

// State returns a snapshot of the session.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := State{
		ID:        s.id,
		Path:      s.path,
		Open:      s.path != "",
		Content:   s.content,
		Cursor:    s.cursor,
		Dirty:     s.hist.Dirty() || s.machine.Dirty(),
		Saving:    s.machine.Saving(),
		Saved:     s.machine.SavedIndicator(),
		Error:     s.saveErr,
		CanUndo:   s.hist.CanUndo(),
		CanRedo:   s.hist.CanRedo(),
		Derived:   s.derived,
		Highlight: s.hl.State(),
	}
	if !s.savedAt.IsZero() {
		at := s.savedAt
		st.SavedAt = &at
	}
	return st
}

// Preview is the rendered buffer with search marks applied.
type Preview struct {
	HTML      string          `json:"html"`
	Highlight highlight.State `json:"highlight"`
}

// Preview renders the buffer. Rendering is memoized on the buffer content.
func (s *Session) Preview() (Preview, error) {
	html, err := s.render()
	if err != nil {
		return Preview{}, err
	}
	st := s.hl.State()
	if st.Total == 0 {
		return Preview{HTML: html, Highlight: st}, nil
	}
	marked, err := highlight.Apply(html, st)
	if err != nil {
		return Preview{}, err
	}
	return Preview{HTML: marked, Highlight: st}, nil
}

func (s *Session) render() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.path == "" {
		return "", ErrNotOpen
	}
	return s.renderer.Render(s.content, s.library), nil
}

// Highlight searches the rendered preview for term. An empty term clears
// the search.
func (s *Session) Highlight(term string) (highlight.State, error) {
	html, err := s.render()
	if err != nil {
		return s.hl.State(), err
	}
	return s.hl.Highlight(html, term)
}

// NextMatch moves to the following match, wrapping around.
func (s *Session) NextMatch() highlight.State { return s.hl.Next() }

// PreviousMatch moves to the preceding match, wrapping around.
func (s *Session) PreviousMatch() highlight.State { return s.hl.Previous() }

// ScrollToMatch makes match i current; out-of-range values are ignored.
func (s *Session) ScrollToMatch(i int) highlight.State { return s.hl.ScrollTo(i) }

// ClearHighlight removes the search.
func (s *Session) ClearHighlight() highlight.State { return s.hl.Clear() }
