// Package outline extracts the heading structure of a note.
package outline

import (
	"regexp"
	"strconv"
	"strings"
)

// Heading is one ATX heading of a note.
type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
	Slug  string `json:"slug"`
	// Line is 1-indexed over the raw content, frontmatter included.
	Line int `json:"line"`
}

var (
	headingRe   = regexp.MustCompile(`^(#{1,6}) (.+)$`)
	nonSlugRe   = regexp.MustCompile(`[^\w\s-]`)
	spaceRunRe  = regexp.MustCompile(`\s+`)
	hyphenRunRe = regexp.MustCompile(`-+`)
)

// Extract returns the headings of content in document order. Headings inside
// the leading frontmatter block or fenced code are ignored.
func Extract(content string) []Heading {
	lines := strings.Split(content, "\n")
	out := []Heading{}
	slugs := NewSlugger()

	start := frontmatterEnd(lines)
	var fence string
	for i := start; i < len(lines); i++ {
		line := strings.TrimSuffix(lines[i], "\r")
		trimmed := strings.TrimSpace(line)

		if marker := fenceMarker(trimmed); marker != "" {
			switch {
			case fence == "":
				fence = marker
			case marker == fence:
				fence = ""
			}
			continue
		}
		if fence != "" {
			continue
		}

		m := headingRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		text := strings.TrimSpace(m[2])
		if text == "" {
			continue
		}
		out = append(out, Heading{
			Level: len(m[1]),
			Text:  text,
			Slug:  slugs.Slug(text),
			Line:  i + 1,
		})
	}
	return out
}

// frontmatterEnd returns the index of the first line after a closed leading
// frontmatter block, or 0.
func frontmatterEnd(lines []string) int {
	if len(lines) == 0 || strings.TrimSuffix(lines[0], "\r") != "---" {
		return 0
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimSuffix(lines[i], "\r") == "---" {
			return i + 1
		}
	}
	return 0
}

func fenceMarker(trimmed string) string {
	switch {
	case strings.HasPrefix(trimmed, "```"):
		return "```"
	case strings.HasPrefix(trimmed, "~~~"):
		return "~~~"
	}
	return ""
}

// Slugify converts heading text to its base anchor slug.
func Slugify(text string) string {
	s := strings.ToLower(text)
	s = nonSlugRe.ReplaceAllString(s, "")
	s = spaceRunRe.ReplaceAllString(s, "-")
	return hyphenRunRe.ReplaceAllString(s, "-")
}

// Slugger hands out unique slugs: the first use of a base slug is returned
// as is, later ones get "-1", "-2", ...
type Slugger struct {
	seen map[string]int
}

// NewSlugger returns a Slugger with no slugs issued.
func NewSlugger() *Slugger {
	return &Slugger{seen: make(map[string]int)}
}

// Slug returns the next unique slug for text.
func (s *Slugger) Slug(text string) string {
	base := Slugify(text)
	n, ok := s.seen[base]
	s.seen[base] = n + 1
	if !ok {
		return base
	}
	return base + "-" + strconv.Itoa(n)
}
