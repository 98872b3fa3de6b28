// Package render turns note markdown into sanitized preview HTML.
//
// The pipeline is: strip frontmatter, convert with goldmark (GFM, hard line
// breaks, wikilinks), sanitize with bluemonday, then post-process the tree
// with goquery (external links, image URLs, code highlighting, diagrams and
// heading anchors). A Renderer memoizes its last result.
package render

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/starford/notegraph/internal/frontmatter"
)

// EmptyPreview is returned for blank content.
const EmptyPreview = `<p class="empty-preview">Nothing to preview</p>`

// DefaultImageBase is the URL prefix for vault images.
const DefaultImageBase = "/api/images/"

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM, wikilinkExtension{}),
	goldmark.WithRendererOptions(gmhtml.WithHardWraps(), gmhtml.WithUnsafe()),
)

// Renderer renders notes of one folder. It is safe for concurrent use.
type Renderer struct {
	imageBase string
	logger    *slog.Logger

	mu      sync.Mutex
	folder  string
	memoOK  bool
	memoIn  string
	memoOut string
	renders int
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithFolder sets the vault folder relative image paths resolve against.
func WithFolder(folder string) Option {
	return func(r *Renderer) { r.folder = strings.Trim(folder, "/") }
}

// WithImageBase overrides DefaultImageBase.
func WithImageBase(base string) Option {
	return func(r *Renderer) { r.imageBase = base }
}

// WithLogger sets the logger used for non-fatal post-processing failures.
func WithLogger(l *slog.Logger) Option {
	return func(r *Renderer) { r.logger = l }
}

// New creates a Renderer.
func New(opts ...Option) *Renderer {
	r := &Renderer{imageBase: DefaultImageBase, logger: slog.Default()}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Reset points the renderer at another folder and drops the memo.
func (r *Renderer) Reset(folder string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.folder = strings.Trim(folder, "/")
	r.memoOK = false
	r.memoIn, r.memoOut = "", ""
}

// Invalidate drops the memo so the next call re-renders even for identical
// content, e.g. after the set of existing notes changed.
func (r *Renderer) Invalidate() {
	r.mu.Lock()
	r.memoOK = false
	r.mu.Unlock()
}

// Render returns preview HTML for raw. links decides which wikilinks are
// broken; nil treats every link as resolved.
func (r *Renderer) Render(raw string, links Resolver) string {
	if strings.TrimSpace(raw) == "" {
		return EmptyPreview
	}

	r.mu.Lock()
	if r.memoOK && r.memoIn == raw {
		out := r.memoOut
		r.mu.Unlock()
		return out
	}
	folder := r.folder
	r.mu.Unlock()

	out := r.render(raw, folder, links)

	r.mu.Lock()
	r.renders++
	if r.folder == folder {
		r.memoOK = true
		r.memoIn, r.memoOut = raw, out
	}
	r.mu.Unlock()
	return out
}

func (r *Renderer) render(raw, folder string, links Resolver) string {
	body := escapeWikilinkPipes(frontmatter.Strip(raw))

	pctx := parser.NewContext()
	if links != nil {
		pctx.Set(resolverKey, links)
	}
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(body), &buf, parser.WithContext(pctx)); err != nil {
		r.logger.Warn("render: convert", slog.String("error", err.Error()))
		return ""
	}

	clean := policy.SanitizeBytes(buf.Bytes())
	out, err := r.postProcess(clean, folder)
	if err != nil {
		r.logger.Warn("render: post-process", slog.String("error", err.Error()))
		return string(clean)
	}
	return out
}

// StripFrontmatter returns content without its leading frontmatter block.
func StripFrontmatter(content string) string {
	return frontmatter.Strip(content)
}

// HTML renders content once without memoization.
func HTML(content, folder string, links Resolver) string {
	return New(WithFolder(folder)).Render(content, links)
}
