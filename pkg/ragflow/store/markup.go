package store

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// plainText strips every tag; scraped article bodies often keep inline markup.
var plainText = bluemonday.StrictPolicy()

// StripMarkup returns s without HTML tags or entity escapes.
func StripMarkup(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}
	return strings.TrimSpace(html.UnescapeString(plainText.Sanitize(s)))
}
