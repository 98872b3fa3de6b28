package frontmatter

import (
	"sort"
	"strings"
	"sync"
)

// TagCache extracts the "tags" key and remembers the result for the last
// frontmatter block it saw, so repeated calls on an edited note only re-scan
// when the block itself changed.
type TagCache struct {
	mu     sync.Mutex
	block  string
	tags   []string
	valid  bool
	parses int
}

// NewTagCache returns an empty cache.
func NewTagCache() *TagCache {
	return &TagCache{}
}

var defaultTags = NewTagCache()

// Tags extracts tags using a process-wide cache.
func Tags(content string) []string {
	return defaultTags.Tags(content)
}

// Tags returns the deduplicated, sorted, lowercased tags of content. The
// returned slice must not be modified.
func (c *TagCache) Tags(content string) []string {
	block, _, ok := Split(content)
	if !ok {
		return []string{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.valid && c.block == block {
		return c.tags
	}
	c.parses++
	c.block = block
	c.tags = scanTags(block)
	c.valid = true
	return c.tags
}

// scanTags walks the block only until the tags key is resolved.
func scanTags(block string) []string {
	lines := splitLines(block)
	for i := 0; i < len(lines); i++ {
		key, value, ok := keyValue(lines[i])
		if !ok || !strings.EqualFold(key, "tags") {
			continue
		}
		var raw []string
		switch {
		case strings.HasPrefix(value, "[") && strings.HasSuffix(value, "]"):
			raw = inlineList(value[1 : len(value)-1])
		case value != "":
			raw = strings.FieldsFunc(unquote(value), func(r rune) bool {
				return r == ',' || r == ' ' || r == '\t'
			})
		default:
			m, _ := collect(lines[i+1:])
			raw = append(m.list, m.text...)
		}
		return normalizeTags(raw)
	}
	return []string{}
}

// normalizeTags lowercases, strips a leading '#', drops empties, dedups and
// sorts.
func normalizeTags(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, t := range raw {
		t = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(unquote(strings.TrimSpace(t))), "#"))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// ParseTags extracts tags from content without consulting any cache. Bulk
// callers such as the indexer use it so they do not evict the cached block of
// the note being edited.
func ParseTags(content string) []string {
	block, _, ok := Split(content)
	if !ok {
		return []string{}
	}
	return scanTags(block)
}
