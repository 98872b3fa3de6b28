// Package parser extracts the indexable parts of a note: frontmatter,
// wikilink targets, tags and title.
package parser

import (
	"regexp"
	"strings"

	"github.com/starford/notegraph/internal/frontmatter"
	"github.com/starford/notegraph/internal/outline"
)

var (
	wikilinkRe   = regexp.MustCompile(`\[\[([^\[\]\n]*)\]\]`)
	codeSpanRe   = regexp.MustCompile("`[^`\n]*`")
	fenceOpeners = []string{"```", "~~~"}
)

// Result holds the output of parsing a Markdown file.
type Result struct {
	Frontmatter frontmatter.Metadata
	Body        string
	Links       []string
	Tags        []string
	Title       string
}

// Parse analyses raw Markdown. It never fails: malformed frontmatter is left
// in the body, as the renderer does.
func Parse(data []byte) *Result {
	content := string(data)
	body := frontmatter.Strip(content)
	fm := frontmatter.Parse(content)
	return &Result{
		Frontmatter: fm,
		Body:        body,
		Links:       extractLinks(body),
		Tags:        frontmatter.ParseTags(content),
		Title:       deriveTitle(fm, content),
	}
}

// extractLinks returns deduplicated wikilink targets with labels and anchors
// removed. Links inside fenced code and code spans are ignored.
func extractLinks(body string) []string {
	seen := make(map[string]struct{})
	var out []string
	inFence := ""
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if marker := fence(trimmed); marker != "" {
			switch {
			case inFence == "":
				inFence = marker
			case marker == inFence:
				inFence = ""
			}
			continue
		}
		if inFence != "" {
			continue
		}
		line = codeSpanRe.ReplaceAllString(line, "")
		for _, m := range wikilinkRe.FindAllStringSubmatch(line, -1) {
			target := Target(m[1])
			if target == "" {
				continue
			}
			if _, ok := seen[target]; ok {
				continue
			}
			seen[target] = struct{}{}
			out = append(out, target)
		}
	}
	return out
}

func fence(trimmed string) string {
	for _, f := range fenceOpeners {
		if strings.HasPrefix(trimmed, f) {
			return f
		}
	}
	return ""
}

// Target reduces the inner text of a wikilink to the note it points at:
// "Plan#Goals|the plan" becomes "Plan". Inside tables the separator is
// written "\|".
func Target(inner string) string {
	target, _, _ := strings.Cut(inner, "|")
	target = strings.TrimSuffix(target, `\`)
	target, _, _ = strings.Cut(target, "#")
	return strings.TrimSpace(target)
}

// deriveTitle returns the frontmatter "title" if present, otherwise the first
// H1 heading outside code, otherwise empty string.
func deriveTitle(fm frontmatter.Metadata, content string) string {
	if s, ok := fm["title"].(string); ok && s != "" {
		return s
	}
	for _, h := range outline.Extract(content) {
		if h.Level == 1 {
			return h.Text
		}
	}
	return ""
}
