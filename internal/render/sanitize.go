package render

import (
	"regexp"

	"github.com/microcosm-cc/bluemonday"
)

var policy = newPolicy()

func newPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	// External links get their rel attribute in post-processing.
	p.RequireNoFollowOnLinks(false)
	p.AllowDataURIImages()
	p.AllowAttrs("class").Matching(regexp.MustCompile(`^wikilink( wikilink-broken)?$`)).OnElements("a")
	p.AllowAttrs("data-target").OnElements("a")
	p.AllowAttrs("class").Matching(regexp.MustCompile(`^language-[\w+#.-]+$`)).OnElements("code")
	p.AllowAttrs("type").Matching(regexp.MustCompile(`^checkbox$`)).OnElements("input")
	p.AllowAttrs("checked", "disabled").OnElements("input")
	return p
}
