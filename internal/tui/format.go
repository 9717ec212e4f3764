package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/pdfchat/internal/index"
	"github.com/fyrsmithlabs/pdfchat/internal/qaerr"
)

// FormatDuration formats d as "X.Xms" below one second and "X.Xs" above.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%.1fms", float64(d)/float64(time.Millisecond))
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

// FormatSource renders a retrieved chunk as "[0.873] p.3 snippet...", with
// the snippet collapsed to one line and cut to width runes.
func FormatSource(m index.Match, width int) string {
	page := "p.?"
	if m.Chunk.Page > 0 {
		page = fmt.Sprintf("p.%d", m.Chunk.Page)
	}
	return fmt.Sprintf("[%.3f] %s %s", m.Score, page, Snippet(m.Chunk.Text, width))
}

// Snippet collapses whitespace and truncates s to at most width runes.
func Snippet(s string, width int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if width <= 0 || len(r) <= width {
		return s
	}
	if width <= 3 {
		return string(r[:width])
	}
	return string(r[:width-3]) + "..."
}

// describeError appends a hint for failures the user can act on.
func describeError(err error) string {
	switch qaerr.KindOf(err) {
	case qaerr.KindGeneration, qaerr.KindEmbeddingService:
		return err.Error() + " (the conversation is unchanged, try again)"
	case qaerr.KindPromptAssembly:
		return err.Error() + " (rephrase the question)"
	default:
		return err.Error()
	}
}
