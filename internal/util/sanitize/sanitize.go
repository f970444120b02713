// Package sanitize cleans untrusted text before it is stored or shown
// to dashboard users.
package sanitize

import (
	"html"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

var htmlPolicy = bluemonday.StrictPolicy()

// Text strips HTML tags and control characters from notification text
// and limits the length. The result is plain text safe to render in
// the dashboard.
func Text(s string, maxLen int) string {
	// Strip HTML tags, then decode entities bluemonday may have encoded.
	s = htmlPolicy.Sanitize(s)
	s = html.UnescapeString(s)

	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)

	s = strings.TrimSpace(s)
	if runes := []rune(s); len(runes) > maxLen {
		s = string(runes[:maxLen])
	}
	return s
}
