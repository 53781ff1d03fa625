// Package report renders scan results for the terminal.
package report

import "github.com/charmbracelet/lipgloss"

// Palette holds the colors of a theme.
type Palette struct {
	Header  lipgloss.TerminalColor
	Muted   lipgloss.TerminalColor
	Success lipgloss.TerminalColor
	Warning lipgloss.TerminalColor
	Error   lipgloss.TerminalColor
}

// Icons prefix issue lines by severity.
type Icons struct {
	Critical string
	Warning  string
	Info     string
}

// Theme is a palette plus icons.
type Theme struct {
	Colors Palette
	Icons  Icons
	Bold   bool
}

// DefaultTheme uses adaptive colors for light and dark terminals.
func DefaultTheme() Theme {
	return Theme{
		Colors: Palette{
			Header:  lipgloss.AdaptiveColor{Light: "#005F87", Dark: "#5FAFFF"},
			Muted:   lipgloss.AdaptiveColor{Light: "#6C6C6C", Dark: "#8A8A8A"},
			Success: lipgloss.AdaptiveColor{Light: "#008700", Dark: "#5FD75F"},
			Warning: lipgloss.AdaptiveColor{Light: "#AF8700", Dark: "#FFD75F"},
			Error:   lipgloss.AdaptiveColor{Light: "#D70000", Dark: "#FF5F5F"},
		},
		Icons: Icons{Critical: "✖", Warning: "▲", Info: "•"},
		Bold:  true,
	}
}

// MonochromeTheme emits no escape sequences, for CI logs and pipes.
func MonochromeTheme() Theme {
	return Theme{
		Colors: Palette{
			Header:  lipgloss.NoColor{},
			Muted:   lipgloss.NoColor{},
			Success: lipgloss.NoColor{},
			Warning: lipgloss.NoColor{},
			Error:   lipgloss.NoColor{},
		},
		Icons: Icons{Critical: "[x]", Warning: "[!]", Info: "[-]"},
	}
}
