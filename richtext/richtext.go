// Package richtext renders assistant message bodies to ANSI-styled
// terminal output. The backend embeds a small inline-HTML subset in its
// replies (<br>, <strong>, <em>); bodies are normalized to markdown and
// rendered with goldmark and lipgloss.
package richtext

import (
	"regexp"
	"strings"

	"github.com/sejinpk/maru"
)

var (
	brTag     = regexp.MustCompile(`(?i)<br\s*/?>`)
	strongTag = regexp.MustCompile(`(?i)</?(?:strong|b)>`)
	emTag     = regexp.MustCompile(`(?i)</?(?:em|i)>`)
	anyTag    = regexp.MustCompile(`<[^>]*>`)
	spaces    = regexp.MustCompile(`\s+`)
)

// Render converts a message body to ANSI-styled terminal output,
// word-wrapped to width.
func Render(source string, width int, theme maru.Theme) string {
	if source == "" {
		return ""
	}
	if width <= 0 {
		width = 80
	}
	r := newRenderer(theme)
	return r.render([]byte(normalize(source)), width)
}

// Plain strips markup from a message body and collapses whitespace.
// Used for sidebar previews.
func Plain(source string) string {
	s := brTag.ReplaceAllString(source, " ")
	s = anyTag.ReplaceAllString(s, "")
	s = spaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// normalize rewrites the backend's inline-HTML subset as markdown. Each
// <br> becomes a hard line break; consecutive breaks produce a blank line
// and therefore a paragraph break.
func normalize(s string) string {
	s = brTag.ReplaceAllString(s, "  \n")
	s = strongTag.ReplaceAllString(s, "**")
	s = emTag.ReplaceAllString(s, "*")
	return s
}
