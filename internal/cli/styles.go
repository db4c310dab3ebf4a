package cli

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

var (
	accent  = lipgloss.Color("#D97706")
	dim     = lipgloss.Color("#6B7280")
	warning = lipgloss.Color("#F59E0B")
)

// styles renders for one writer, so output that is not a terminal stays
// plain text.
type styles struct {
	title lipgloss.Style
	dim   lipgloss.Style
	warn  lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		title: r.NewStyle().Bold(true).Foreground(accent),
		dim:   r.NewStyle().Foreground(dim),
		warn:  r.NewStyle().Foreground(warning).Bold(true),
	}
}
