package tui

import "github.com/charmbracelet/lipgloss"

// Styles contains the lipgloss styles used by the search view.
type Styles struct {
	Title     lipgloss.Style
	Muted     lipgloss.Style
	Error     lipgloss.Style
	Selected  lipgloss.Style
	Normal    lipgloss.Style
	Highlight lipgloss.Style
	ToggleOn  lipgloss.Style
	ToggleOff lipgloss.Style
}

// DefaultStyles returns the default colour scheme.
func DefaultStyles() *Styles {
	return &Styles{
		Title:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED")),
		Muted:     lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086")),
		Error:     lipgloss.NewStyle().Foreground(lipgloss.Color("#F38BA8")),
		Selected:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#06B6D4")),
		Normal:    lipgloss.NewStyle().Foreground(lipgloss.Color("#CDD6F4")),
		Highlight: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#1E1E2E")).Background(lipgloss.Color("#F9E2AF")),
		ToggleOn:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#A6E3A1")),
		ToggleOff: lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086")),
	}
}
