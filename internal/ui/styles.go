package ui

import "github.com/charmbracelet/lipgloss"

// Color palette (ANSI 256). One accent keeps the panel readable on both
// light and dark terminals.
const (
	ColorAccent    = "81"  // Sky blue, primary accent
	ColorAccentDim = "67"  // Inactive stages
	ColorWhite     = "255" // Headers
	ColorGray      = "245" // Labels
	ColorDarkGray  = "238" // Borders, separators
	ColorRed       = "196" // Errors
	ColorYellow    = "220" // Warnings
)

// Styles holds all UI styles for TUI rendering.
type Styles struct {
	Header   lipgloss.Style
	Success  lipgloss.Style
	Warning  lipgloss.Style
	Error    lipgloss.Style
	Dim      lipgloss.Style
	Stage    lipgloss.Style
	Active   lipgloss.Style
	Progress lipgloss.Style

	Border    lipgloss.Style
	Panel     lipgloss.Style
	Sparkline lipgloss.Style
	Speed     lipgloss.Style
	Label     lipgloss.Style
}

// DefaultStyles returns styled components for TUI mode.
func DefaultStyles() Styles {
	return Styles{
		Header:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorAccent)),
		Success:  lipgloss.NewStyle().Foreground(lipgloss.Color(ColorAccent)),
		Warning:  lipgloss.NewStyle().Foreground(lipgloss.Color(ColorYellow)),
		Error:    lipgloss.NewStyle().Foreground(lipgloss.Color(ColorRed)),
		Dim:      lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDarkGray)),
		Stage:    lipgloss.NewStyle().Foreground(lipgloss.Color(ColorAccentDim)),
		Active:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorAccent)),
		Progress: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorAccent)),

		Border: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDarkGray)),
		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(ColorDarkGray)).
			Padding(0, 1),
		Sparkline: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorAccent)),
		Speed:     lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGray)),
		Label:     lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGray)),
	}
}

// NoColorStyles returns unstyled components.
func NoColorStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{
		Header:    plain,
		Success:   plain,
		Warning:   plain,
		Error:     plain,
		Dim:       plain,
		Stage:     plain,
		Active:    plain,
		Progress:  plain,
		Border:    plain,
		Panel:     plain,
		Sparkline: plain,
		Speed:     plain,
		Label:     plain,
	}
}

// GetStyles returns the appropriate styles based on color preference.
func GetStyles(noColor bool) Styles {
	if noColor {
		return NoColorStyles()
	}
	return DefaultStyles()
}
