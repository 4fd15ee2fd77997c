package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Colors used throughout the TUI.
var (
	ColorRed     = lipgloss.Color("#FF0000")
	ColorGreen   = lipgloss.Color("#00FF00")
	ColorYellow  = lipgloss.Color("#FFFF00")
	ColorCyan    = lipgloss.Color("#00FFFF")
	ColorGray    = lipgloss.Color("#666666")
	ColorDimGray = lipgloss.Color("#444444")
	ColorWhite   = lipgloss.Color("#FFFFFF")
	ColorMagenta = lipgloss.Color("#FF00FF")
	ColorNavy    = lipgloss.Color("#1C2A4A")
)

// Base styles reused by UI components.
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorCyan)

	StatusStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	ListeningDotStyle = lipgloss.NewStyle().
				Foreground(ColorRed).
				Bold(true)

	PausedDotStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorRed).
			Bold(true)

	ErrorTextStyle = lipgloss.NewStyle().
			Foreground(ColorRed)

	BannerStyle = lipgloss.NewStyle().
			Foreground(ColorMagenta).
			Bold(true)

	ProgressFilledStyle = lipgloss.NewStyle().
				Foreground(ColorGreen)

	ProgressEmptyStyle = lipgloss.NewStyle().
				Foreground(ColorGray)

	DimStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	FooterKeyStyle = lipgloss.NewStyle().
			Foreground(ColorYellow).
			Bold(true)

	FooterDescStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	DividerStyle = lipgloss.NewStyle().
			Foreground(ColorDimGray)
)

// Outline row styles, one per segment status.
var (
	PendingStyle = lipgloss.NewStyle().
			Foreground(ColorWhite)

	CurrentStyle = lipgloss.NewStyle().
			Foreground(ColorYellow).
			Bold(true)

	CoveredStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	SkippedStyle = lipgloss.NewStyle().
			Foreground(ColorDimGray).
			Strikethrough(true)
)

// RowStyle returns the style for a row visual-state class such as
// "covered" or "current active".
func RowStyle(class string) lipgloss.Style {
	fields := strings.Fields(class)
	if len(fields) == 0 {
		return PendingStyle
	}

	var style lipgloss.Style
	switch fields[0] {
	case "current":
		style = CurrentStyle
	case "covered":
		style = CoveredStyle
	case "skipped":
		style = SkippedStyle
	default:
		style = PendingStyle
	}

	for _, f := range fields[1:] {
		if f == "active" {
			style = style.Background(ColorNavy)
		}
	}
	return style
}
