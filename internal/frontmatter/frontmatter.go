// Package frontmatter reads the leading "---" metadata block of a note.
//
// The block uses a small YAML-like subset: "key: value" lines, inline
// "[a, b]" lists, and indented "- item" or continuation lines under a bare
// "key:". Values are coerced to []string, bool, float64 or string.
package frontmatter

import (
	"regexp"
	"strconv"
	"strings"
)

const delim = "---"

// Metadata is a parsed frontmatter block.
type Metadata map[string]any

var numberRe = regexp.MustCompile(`^-?\d+(\.\d+)?$`)

// Split separates the frontmatter block from the body. The block must open
// on the very first line and be closed by a later "---" line; otherwise ok
// is false and body is the whole content.
func Split(content string) (block, body string, ok bool) {
	first, rest, _ := cutLine(content)
	if first != delim {
		return "", content, false
	}
	offset := 0
	for {
		line, next, more := cutLine(rest[offset:])
		if line == delim {
			block = rest[:offset]
			if more {
				body = next
			}
			return strings.TrimSuffix(block, "\n"), body, true
		}
		if !more {
			return "", content, false
		}
		offset = len(rest) - len(next)
	}
}

// cutLine returns the first line of s without its line ending, and the
// remainder after the newline.
func cutLine(s string) (line, rest string, found bool) {
	line, rest, found = strings.Cut(s, "\n")
	return strings.TrimSuffix(line, "\r"), rest, found
}

// Strip removes a closed leading frontmatter block. Unclosed blocks are left
// in place.
func Strip(content string) string {
	_, body, ok := Split(content)
	if !ok {
		return content
	}
	return body
}

// Parse returns the frontmatter of content, or nil when there is no closed
// block.
func Parse(content string) Metadata {
	block, _, ok := Split(content)
	if !ok {
		return nil
	}
	return parseBlock(block)
}

func parseBlock(block string) Metadata {
	meta := Metadata{}
	lines := splitLines(block)
	for i := 0; i < len(lines); i++ {
		key, value, ok := keyValue(lines[i])
		if !ok {
			continue
		}
		if value != "" {
			meta[key] = coerce(value)
			continue
		}
		items, consumed := collect(lines[i+1:])
		i += consumed
		meta[key] = items.value()
	}
	return meta
}

func splitLines(block string) []string {
	if block == "" {
		return nil
	}
	lines := strings.Split(block, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// keyValue splits a top-level "key: value" line. Indented lines, comments
// and lines without a colon are not keys.
func keyValue(line string) (key, value string, ok bool) {
	if line == "" || isIndented(line) || strings.HasPrefix(line, "#") {
		return "", "", false
	}
	key, value, ok = strings.Cut(line, ":")
	if !ok {
		return "", "", false
	}
	key = strings.TrimSpace(key)
	if key == "" || strings.HasPrefix(key, "- ") {
		return "", "", false
	}
	return key, strings.TrimSpace(value), true
}

func isIndented(line string) bool {
	return strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")
}

func isListItem(line string) bool {
	t := strings.TrimSpace(line)
	return t == "-" || strings.HasPrefix(t, "- ")
}

// multiline accumulates the lines under a bare "key:".
type multiline struct {
	list  []string
	text  []string
	isSeq bool
}

func (m multiline) value() any {
	if m.isSeq {
		return m.list
	}
	if len(m.text) == 0 {
		return ""
	}
	return coerceScalar(strings.Join(m.text, " "))
}

// collect gathers indented or list lines following a bare key and reports
// how many lines it consumed.
func collect(lines []string) (multiline, int) {
	var m multiline
	n := 0
	for _, line := range lines {
		if !isIndented(line) && !isListItem(line) {
			break
		}
		if strings.TrimSpace(line) == "" {
			break
		}
		n++
		t := strings.TrimSpace(line)
		if isListItem(line) && (m.isSeq || len(m.text) == 0) {
			m.isSeq = true
			item := strings.TrimSpace(strings.TrimPrefix(t, "-"))
			m.list = append(m.list, unquote(item))
			continue
		}
		if m.isSeq && len(m.list) > 0 {
			last := len(m.list) - 1
			m.list[last] = strings.TrimSpace(m.list[last] + " " + unquote(t))
			continue
		}
		m.text = append(m.text, t)
	}
	return m, n
}

// coerce applies the inline coercion order: bracket list, bool, number,
// quoted or bare string.
func coerce(value string) any {
	if strings.HasPrefix(value, "[") && strings.HasSuffix(value, "]") {
		return inlineList(value[1 : len(value)-1])
	}
	return coerceScalar(value)
}

func coerceScalar(value string) any {
	switch strings.ToLower(value) {
	case "true":
		return true
	case "false":
		return false
	}
	if numberRe.MatchString(value) {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return unquote(value)
}

func inlineList(inner string) []string {
	out := []string{}
	for _, part := range strings.Split(inner, ",") {
		item := unquote(strings.TrimSpace(part))
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}

func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
