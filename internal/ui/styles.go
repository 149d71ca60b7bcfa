package ui

import "github.com/charmbracelet/lipgloss"

// Color palette, single lime accent.
const (
	ColorLime     = "154" // primary accent, bright lime green
	ColorLimeDim  = "106" // dimmed lime for secondary accents
	ColorWhite    = "255" // headers, important text
	ColorGray     = "245" // secondary text, labels
	ColorDarkGray = "238" // separators
	ColorRed      = "196" // errors
	ColorYellow   = "220" // warnings
)

// Styles holds the render styles for search output.
type Styles struct {
	Header  lipgloss.Style
	Rank    lipgloss.Style
	ID      lipgloss.Style
	Score   lipgloss.Style
	Label   lipgloss.Style
	Snippet lipgloss.Style
	Dim     lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
}

// DefaultStyles returns styled components for terminal output.
func DefaultStyles() Styles {
	return Styles{
		Header:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorLime)),
		Rank:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorWhite)),
		ID:      lipgloss.NewStyle().Foreground(lipgloss.Color(ColorLime)),
		Score:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorLimeDim)),
		Label:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGray)),
		Snippet: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorWhite)),
		Dim:     lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDarkGray)),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorRed)),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorYellow)),
	}
}

// NoColorStyles returns unstyled components for plain mode.
func NoColorStyles() Styles {
	return Styles{
		Header:  lipgloss.NewStyle(),
		Rank:    lipgloss.NewStyle(),
		ID:      lipgloss.NewStyle(),
		Score:   lipgloss.NewStyle(),
		Label:   lipgloss.NewStyle(),
		Snippet: lipgloss.NewStyle(),
		Dim:     lipgloss.NewStyle(),
		Error:   lipgloss.NewStyle(),
		Warning: lipgloss.NewStyle(),
	}
}

// GetStyles returns the appropriate styles for the color preference.
func GetStyles(noColor bool) Styles {
	if noColor {
		return NoColorStyles()
	}
	return DefaultStyles()
}
