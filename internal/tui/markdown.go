package tui

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
)

// markdownWrap is the word-wrap width for rendered replies.
const markdownWrap = 80

var (
	glamourRenderer     *glamour.TermRenderer //nolint:gochecknoglobals // cached renderer for performance
	glamourRendererOnce sync.Once             //nolint:gochecknoglobals // sync.Once for renderer initialization
)

func getGlamourRenderer() *glamour.TermRenderer {
	glamourRendererOnce.Do(func() {
		opts := []glamour.TermRendererOption{glamour.WithWordWrap(markdownWrap)}
		if HasColorSupport() {
			opts = append(opts, glamour.WithAutoStyle())
		} else {
			opts = append(opts, glamour.WithStandardStyle("notty"))
		}
		if r, err := glamour.NewTermRenderer(opts...); err == nil {
			glamourRenderer = r
		}
	})
	return glamourRenderer
}

// RenderMarkdown renders model output for the terminal. It falls back to
// the raw text when rendering fails.
func RenderMarkdown(text string) string {
	plain := strings.TrimRight(text, "\n") + "\n"
	r := getGlamourRenderer()
	if r == nil {
		return plain
	}
	out, err := r.Render(text)
	if err != nil {
		return plain
	}
	return out
}
