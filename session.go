package maru

import (
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/rivo/uniseg"
)

// Session is one conversation thread as listed by the backend. The
// directory owns these; only the preview fields change after creation,
// refreshed when a send completes.
type Session struct {
	ID          string
	Title       string
	LastMessage string
	LastDate    time.Time
	CreatedAt   time.Time
}

// PreviewWidth is the default display width for sidebar previews.
const PreviewWidth = 36

// Preview returns LastMessage truncated to width display cells.
func (s Session) Preview(width int) string {
	return Truncate(s.LastMessage, width)
}

// Truncate cuts s to at most width display cells, appending an ellipsis
// when anything was removed. Width is measured per grapheme cluster so
// double-width (CJK) text truncates correctly.
func Truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= width {
		return s
	}
	const ellipsis = "…"
	budget := width - runewidth.StringWidth(ellipsis)
	var out []byte
	used := 0
	g := uniseg.NewGraphemes(s)
	for g.Next() {
		cluster := g.Str()
		w := runewidth.StringWidth(cluster)
		if used+w > budget {
			break
		}
		out = append(out, cluster...)
		used += w
	}
	return string(out) + ellipsis
}
