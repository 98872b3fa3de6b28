package render

import (
	"bytes"
	"fmt"
	"html"
	"net/url"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// Resolver reports whether a wikilink target names an existing note.
// *linkindex.Index satisfies it.
type Resolver interface {
	Exists(target string) bool
}

var resolverKey = parser.NewContextKey()

// KindWikilink is the AST kind of a [[target|label]] link.
var KindWikilink = ast.NewNodeKind("Wikilink")

// Wikilink is an inline [[target]] or [[target|label]] reference.
type Wikilink struct {
	ast.BaseInline
	Target string
	Label  string
	Broken bool
}

// Kind implements ast.Node.
func (n *Wikilink) Kind() ast.NodeKind { return KindWikilink }

// Dump implements ast.Node.
func (n *Wikilink) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{
		"Target": n.Target,
		"Label":  n.Label,
		"Broken": strconv.FormatBool(n.Broken),
	}, nil)
}

type wikilinkParser struct{}

func (wikilinkParser) Trigger() []byte { return []byte{'['} }

func (wikilinkParser) Parse(_ ast.Node, block text.Reader, pc parser.Context) ast.Node {
	line, _ := block.PeekLine()
	if len(line) < 4 || line[0] != '[' || line[1] != '[' {
		return nil
	}
	end := bytes.Index(line[2:], []byte("]]"))
	if end < 0 {
		return nil
	}
	inner := string(line[2 : 2+end])
	if strings.ContainsAny(inner, "[]\n") {
		return nil
	}
	block.Advance(end + 4)

	target, label, hasLabel := cutLabel(inner)
	target = strings.TrimSpace(target)
	if !hasLabel || strings.TrimSpace(label) == "" {
		label = target
	}
	if strings.TrimSpace(label) == "" {
		label = "[[" + inner + "]]"
	}

	base, _, _ := strings.Cut(target, "#")
	broken := false
	if res, ok := pc.Get(resolverKey).(Resolver); ok && strings.TrimSpace(base) != "" {
		broken = !res.Exists(base)
	}
	return &Wikilink{Target: target, Label: strings.TrimSpace(label), Broken: broken}
}

// cutLabel splits target from label at the first "|", which may be written
// as "\|" inside a table row.
func cutLabel(inner string) (target, label string, ok bool) {
	i := strings.IndexByte(inner, '|')
	if i < 0 {
		return inner, "", false
	}
	target = inner[:i]
	if strings.HasSuffix(target, `\`) {
		target = target[:len(target)-1]
	}
	return target, inner[i+1:], true
}

type wikilinkRenderer struct{}

func (wikilinkRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(KindWikilink, renderWikilink)
}

func renderWikilink(w util.BufWriter, _ []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*Wikilink)
	class := "wikilink"
	if n.Broken {
		class += " wikilink-broken"
	}
	_, err := fmt.Fprintf(w, `<a href="%s" class="%s" data-target="%s">%s</a>`,
		html.EscapeString(wikilinkHref(n.Target)),
		class,
		html.EscapeString(n.Target),
		html.EscapeString(n.Label))
	return ast.WalkSkipChildren, err
}

// wikilinkHref escapes each path segment of the target and its anchor. An
// empty target links to the current page.
func wikilinkHref(target string) string {
	if target == "" {
		return "#"
	}
	base, anchor, hasAnchor := strings.Cut(target, "#")
	segs := strings.Split(base, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	href := strings.Join(segs, "/")
	if hasAnchor {
		href += "#" + url.PathEscape(anchor)
	}
	return href
}

type wikilinkExtension struct{}

// Extend registers the wikilink parser ahead of the standard link parser.
func (wikilinkExtension) Extend(m goldmark.Markdown) {
	m.Parser().AddOptions(parser.WithInlineParsers(util.Prioritized(wikilinkParser{}, 199)))
	m.Renderer().AddOptions(renderer.WithNodeRenderers(util.Prioritized(wikilinkRenderer{}, 199)))
}

// escapeWikilinkPipes rewrites "|" inside [[...]] spans as "\|" so a GFM
// table row does not split a labelled wikilink into two cells. Fenced code,
// indented code and code spans are left untouched.
func escapeWikilinkPipes(body string) string {
	if !strings.Contains(body, "[[") || !strings.Contains(body, "|") {
		return body
	}
	lines := strings.Split(body, "\n")
	fence := ""
	indented := false
	for i, line := range lines {
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
		if strings.HasPrefix(line, "    ") || strings.HasPrefix(line, "\t") {
			if indented || i == 0 || strings.TrimSpace(lines[i-1]) == "" {
				indented = true
				continue
			}
		} else if trimmed != "" {
			indented = false
		}
		if strings.Contains(line, "[[") && strings.Contains(line, "|") {
			lines[i] = escapeLinePipes(line)
		}
	}
	return strings.Join(lines, "\n")
}

func fenceMarker(trimmed string) string {
	for _, m := range []string{"```", "~~~"} {
		if strings.HasPrefix(trimmed, m) {
			return m
		}
	}
	return ""
}

func escapeLinePipes(line string) string {
	var b strings.Builder
	b.Grow(len(line) + 4)
	for i := 0; i < len(line); {
		switch {
		case line[i] == '`':
			n := 1
			for i+n < len(line) && line[i+n] == '`' {
				n++
			}
			run := line[i : i+n]
			end := strings.Index(line[i+n:], run)
			if end < 0 {
				b.WriteString(run)
				i += n
				continue
			}
			stop := i + n + end + n
			b.WriteString(line[i:stop])
			i = stop
		case strings.HasPrefix(line[i:], "[["):
			end := strings.Index(line[i+2:], "]]")
			inner := ""
			if end >= 0 {
				inner = line[i+2 : i+2+end]
			}
			if end < 0 || strings.ContainsAny(inner, "[]") {
				b.WriteByte('[')
				i++
				continue
			}
			b.WriteString("[[")
			for j := 0; j < len(inner); j++ {
				if inner[j] == '|' && (j == 0 || inner[j-1] != '\\') {
					b.WriteByte('\\')
				}
				b.WriteByte(inner[j])
			}
			b.WriteString("]]")
			i += 2 + end + 2
		default:
			b.WriteByte(line[i])
			i++
		}
	}
	return b.String()
}
