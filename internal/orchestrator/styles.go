package orchestrator

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorBlue     = lipgloss.Color("#89b4fa")
	colorGreen    = lipgloss.Color("#a6e3a1")
	colorRed      = lipgloss.Color("#f38ba8")
	colorPeach    = lipgloss.Color("#fab387")
	colorOverlay1 = lipgloss.Color("#7f849c")
)

// styles renders console text for one writer. Colors are dropped when the
// writer is not a terminal.
type styles struct {
	prompt lipgloss.Style
	ok     lipgloss.Style
	fail   lipgloss.Style
	warn   lipgloss.Style
	dim    lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		prompt: r.NewStyle().Foreground(colorBlue).Bold(true),
		ok:     r.NewStyle().Foreground(colorGreen),
		fail:   r.NewStyle().Foreground(colorRed),
		warn:   r.NewStyle().Foreground(colorPeach),
		dim:    r.NewStyle().Foreground(colorOverlay1),
	}
}
