// internal/app/system/htmlsanitize/htmlsanitize.go
//
// Package htmlsanitize strips unsafe HTML from user-authored rich text
// (lead comments, broker descriptions) before it is stored. The policy
// allows common formatting, lists, tables, and links; scripts, iframes,
// inline styles, and event handlers are removed.
package htmlsanitize

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var policy = buildPolicy()

func buildPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowElements("u", "s", "sub", "sup", "mark")
	p.AllowAttrs("class").OnElements("table", "thead", "tbody", "tr", "th", "td")
	p.AllowAttrs("colspan", "rowspan").OnElements("th", "td")
	return p
}

// Sanitize returns s with unsafe HTML removed.
func Sanitize(s string) string {
	if s == "" {
		return ""
	}
	return policy.Sanitize(s)
}

// IsPlainText reports whether s contains no HTML tags at all.
func IsPlainText(s string) bool {
	return !strings.ContainsAny(s, "<>")
}
