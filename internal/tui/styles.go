package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorAccent  = lipgloss.Color("#8BC34A")
	colorMuted   = lipgloss.Color("#6b7a90")
	colorWarning = lipgloss.Color("#FFC107")
	colorDone    = lipgloss.Color("#4db6ac")
)

// Styles holds the lipgloss styles used by the review screens.
type Styles struct {
	Header   lipgloss.Style
	Title    lipgloss.Style
	Muted    lipgloss.Style
	Warning  lipgloss.Style
	Selected lipgloss.Style
	Done     lipgloss.Style
	Footer   lipgloss.Style
}

// DefaultStyles returns the standard palette.
func DefaultStyles() Styles {
	return Styles{
		Header:   lipgloss.NewStyle().Bold(true).Foreground(colorAccent).MarginBottom(1),
		Title:    lipgloss.NewStyle().Bold(true),
		Muted:    lipgloss.NewStyle().Foreground(colorMuted),
		Warning:  lipgloss.NewStyle().Foreground(colorWarning),
		Selected: lipgloss.NewStyle().Bold(true).Foreground(colorAccent),
		Done:     lipgloss.NewStyle().Foreground(colorDone),
		Footer:   lipgloss.NewStyle().Foreground(colorMuted).MarginTop(1),
	}
}
