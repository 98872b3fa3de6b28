package render

import (
	"bytes"
	"errors"
	"html"
	"log/slog"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"

	"github.com/starford/notegraph/internal/outline"
)

var (
	errNoLexer    = errors.New("no lexer")
	codeFormatter = chromahtml.New(chromahtml.WithClasses(true))
)

func (r *Renderer) postProcess(sanitized []byte, folder string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(sanitized))
	if err != nil {
		return "", err
	}
	body := doc.Find("body")

	body.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if isExternal(href) {
			a.SetAttr("target", "_blank")
			a.SetAttr("rel", "noopener noreferrer")
		}
	})

	body.Find("img").Each(func(_ int, img *goquery.Selection) {
		if src, ok := img.Attr("src"); ok {
			if rewritten, changed := r.imageSrc(src, folder); changed {
				img.SetAttr("src", rewritten)
			}
		}
		if alt, ok := img.Attr("alt"); ok && alt != "" {
			if _, has := img.Attr("title"); !has {
				img.SetAttr("title", alt)
			}
		}
	})

	body.Find("pre > code").Each(func(_ int, code *goquery.Selection) {
		lang := codeLanguage(code)
		if lang == "" {
			return
		}
		pre := code.Parent()
		src := code.Text()
		switch lang {
		case "mermaid":
			pre.ReplaceWithHtml(`<div class="mermaid">` + html.EscapeString(src) + `</div>`)
		case "math":
			pre.ReplaceWithHtml(`<div class="math math-display">` + html.EscapeString(src) + `</div>`)
		default:
			highlighted, err := highlightCode(lang, src)
			if err != nil {
				if !errors.Is(err, errNoLexer) {
					r.logger.Warn("render: highlight", slog.String("lang", lang), slog.String("error", err.Error()))
				}
				return
			}
			pre.ReplaceWithHtml(highlighted)
		}
	})

	slugs := outline.NewSlugger()
	body.Find("h1, h2, h3, h4, h5, h6").Each(func(_ int, h *goquery.Selection) {
		h.SetAttr("id", slugs.Slug(strings.TrimSpace(h.Text())))
	})

	return body.Html()
}

func codeLanguage(code *goquery.Selection) string {
	class, _ := code.Attr("class")
	for _, c := range strings.Fields(class) {
		if lang, ok := strings.CutPrefix(c, "language-"); ok {
			return strings.ToLower(lang)
		}
	}
	return ""
}

func highlightCode(lang, src string) (string, error) {
	lexer := lexers.Get(lang)
	if lexer == nil {
		return "", errNoLexer
	}
	it, err := chroma.Coalesce(lexer).Tokenise(nil, src)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	if err := codeFormatter.Format(&b, styles.Fallback, it); err != nil {
		return "", err
	}
	return b.String(), nil
}

func isExternal(href string) bool {
	lower := strings.ToLower(href)
	return strings.HasPrefix(lower, "http://") ||
		strings.HasPrefix(lower, "https://") ||
		strings.HasPrefix(lower, "//")
}

// imageSrc maps a relative image reference to the image endpoint. Absolute
// URLs, data URIs, root paths and references escaping the vault are kept.
func (r *Renderer) imageSrc(src, folder string) (string, bool) {
	if src == "" || strings.HasPrefix(src, "/") || strings.HasPrefix(strings.ToLower(src), "data:") {
		return src, false
	}
	if u, err := url.Parse(src); err == nil && u.Scheme != "" {
		return src, false
	}

	rel := src
	if folder != "" {
		rel = folder + "/" + src
	}
	cleaned := path.Clean(rel)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return src, false
	}

	segs := strings.Split(cleaned, "/")
	for i, s := range segs {
		if dec, err := url.PathUnescape(s); err == nil {
			s = dec
		}
		segs[i] = url.PathEscape(s)
	}
	return r.imageBase + strings.Join(segs, "/"), true
}
