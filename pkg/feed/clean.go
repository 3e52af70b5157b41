package feed

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	cdataRe     = regexp.MustCompile(`(?s)<!\[CDATA\[(.*?)\]\]>`)
	stripPolicy = bluemonday.StrictPolicy()
)

// cleanText unwraps CDATA, strips markup, decodes entities and collapses whitespace
func cleanText(s string) string {
	if s == "" {
		return ""
	}
	s = unwrapCDATA(s)
	// keep word boundaries when tags are removed, "<p>a</p><p>b</p>" should give "a b"
	s = strings.ReplaceAll(s, "<", " <")
	s = stripPolicy.Sanitize(s)
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}

// cleanLink unwraps CDATA and decodes entities of a link value
func cleanLink(s string) string {
	return strings.TrimSpace(html.UnescapeString(unwrapCDATA(s)))
}

func unwrapCDATA(s string) string {
	return cdataRe.ReplaceAllString(s, "$1")
}
