// Package highlight finds search-term occurrences in rendered preview HTML
// and marks them.
//
// Matching is a pure computation over the visible text nodes (Find); Apply is
// the thin adapter that wraps the matches in <mark> elements. Text inside
// code, pre, script and style elements is never matched.
package highlight

import (
	"strings"
	"sync"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// MarkClass is the class of every highlight element; the current match
// additionally carries ActiveClass.
const (
	MarkClass   = "search-highlight"
	ActiveClass = "active"
)

// Match is one occurrence. Start and End are rune offsets into the
// concatenation of all searchable text nodes.
type Match struct {
	Index int    `json:"index"`
	Start int    `json:"start"`
	End   int    `json:"end"`
	Text  string `json:"text"`
}

// State is the engine's observable state.
type State struct {
	Term    string  `json:"term"`
	Total   int     `json:"total"`
	Current int     `json:"currentIndex"`
	Matches []Match `json:"matches"`
}

func emptyState() State {
	return State{Current: -1, Matches: []Match{}}
}

// Find returns the non-overlapping, case-insensitive occurrences of term.
func Find(rendered, term string) ([]Match, error) {
	matches := []Match{}
	needle := lowerRunes(term)
	if strings.TrimSpace(term) == "" {
		return matches, nil
	}
	body, err := parseBody(rendered)
	if err != nil {
		return nil, err
	}
	offset := 0
	for _, n := range textNodes(body) {
		runes := []rune(n.Data)
		for _, span := range scan(runes, needle) {
			matches = append(matches, Match{
				Index: len(matches),
				Start: offset + span[0],
				End:   offset + span[1],
				Text:  string(runes[span[0]:span[1]]),
			})
		}
		offset += len(runes)
	}
	return matches, nil
}

// Apply wraps every occurrence of s.Term in rendered with a mark element.
// The match at s.Current is also marked active. A zero state returns
// rendered unchanged.
func Apply(rendered string, s State) (string, error) {
	needle := lowerRunes(s.Term)
	if strings.TrimSpace(s.Term) == "" {
		return rendered, nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rendered))
	if err != nil {
		return "", err
	}
	body := doc.Find("body")
	if body.Length() == 0 {
		return rendered, nil
	}

	ordinal := 0
	for _, n := range textNodes(body.Nodes[0]) {
		runes := []rune(n.Data)
		spans := scan(runes, needle)
		if len(spans) == 0 {
			continue
		}
		parent := n.Parent
		last := 0
		for _, span := range spans {
			if span[0] > last {
				parent.InsertBefore(textNode(string(runes[last:span[0]])), n)
			}
			parent.InsertBefore(markNode(string(runes[span[0]:span[1]]), ordinal == s.Current), n)
			ordinal++
			last = span[1]
		}
		if last < len(runes) {
			parent.InsertBefore(textNode(string(runes[last:])), n)
		}
		parent.RemoveChild(n)
	}
	return body.Html()
}

func parseBody(rendered string) (*html.Node, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rendered))
	if err != nil {
		return nil, err
	}
	body := doc.Find("body")
	if body.Length() == 0 {
		return doc.Nodes[0], nil
	}
	return body.Nodes[0], nil
}

func skipped(a atom.Atom) bool {
	switch a {
	case atom.Code, atom.Pre, atom.Script, atom.Style:
		return true
	}
	return false
}

// textNodes lists searchable text nodes in document order.
func textNodes(root *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			switch c.Type {
			case html.TextNode:
				out = append(out, c)
			case html.ElementNode:
				if !skipped(c.DataAtom) {
					walk(c)
				}
			}
		}
	}
	walk(root)
	return out
}

// scan returns [start, end) rune spans of needle in haystack. The scan
// resumes after each full match.
func scan(haystack, needle []rune) [][2]int {
	n := len(needle)
	if n == 0 || len(haystack) < n {
		return nil
	}
	lower := make([]rune, len(haystack))
	for i, r := range haystack {
		lower[i] = unicode.ToLower(r)
	}
	var spans [][2]int
	for i := 0; i+n <= len(lower); {
		if runesEqual(lower[i:i+n], needle) {
			spans = append(spans, [2]int{i, i + n})
			i += n
			continue
		}
		i++
	}
	return spans
}

func runesEqual(a, b []rune) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func lowerRunes(s string) []rune {
	r := []rune(s)
	for i := range r {
		r[i] = unicode.ToLower(r[i])
	}
	return r
}

func textNode(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

func markNode(s string, active bool) *html.Node {
	class := MarkClass
	if active {
		class += " " + ActiveClass
	}
	m := &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Mark,
		Data:     "mark",
		Attr:     []html.Attribute{{Key: "class", Val: class}},
	}
	m.AppendChild(textNode(s))
	return m
}

// Engine tracks matches and the current position for one preview.
type Engine struct {
	mu    sync.Mutex
	state State
}

// NewEngine returns an engine with no active search.
func NewEngine() *Engine {
	return &Engine{state: emptyState()}
}

// Highlight searches rendered for term and makes the first match current.
func (e *Engine) Highlight(rendered, term string) (State, error) {
	matches, err := Find(rendered, term)
	if err != nil {
		return e.State(), err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(matches) == 0 && strings.TrimSpace(term) == "" {
		e.state = emptyState()
		return e.snapshotLocked(), nil
	}
	e.state = State{Term: term, Total: len(matches), Current: -1, Matches: matches}
	if len(matches) > 0 {
		e.state.Current = 0
	}
	return e.snapshotLocked(), nil
}

// Next advances the current match, wrapping to the first.
func (e *Engine) Next() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.Total > 0 {
		e.state.Current = (e.state.Current + 1) % e.state.Total
	}
	return e.snapshotLocked()
}

// Previous moves the current match back, wrapping to the last.
func (e *Engine) Previous() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.Total > 0 {
		e.state.Current = (e.state.Current - 1 + e.state.Total) % e.state.Total
	}
	return e.snapshotLocked()
}

// ScrollTo makes match i current. Out-of-range indexes are ignored.
func (e *Engine) ScrollTo(i int) State {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i >= 0 && i < e.state.Total {
		e.state.Current = i
	}
	return e.snapshotLocked()
}

// Clear removes the search.
func (e *Engine) Clear() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = emptyState()
	return e.snapshotLocked()
}

// State returns a copy of the current state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() State {
	s := e.state
	s.Matches = append([]Match(nil), e.state.Matches...)
	if s.Matches == nil {
		s.Matches = []Match{}
	}
	return s
}
