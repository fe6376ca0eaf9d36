// Package htmlsanitize strips markup from user-supplied text before it is
// stored and echoed back to other members of a workspace.
package htmlsanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// PlainText removes every tag from s, drops script and style bodies, and
// returns trimmed text with entities decoded.
func PlainText(s string) string {
	if s == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(strict.Sanitize(s)))
}
