// Package ui provides terminal output styling for the terminus CLI.
package ui

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	// Colors
	Text   = lipgloss.Color("#cdd6f4")
	Red    = lipgloss.Color("#f38ba8")
	Green  = lipgloss.Color("#a6e3a1")
	Yellow = lipgloss.Color("#f9e2af")
	Blue   = lipgloss.Color("#89b4fa")
	Gray   = lipgloss.Color("#6c7086")

	// Styles for different message types
	ErrorStyle = lipgloss.NewStyle().
			Foreground(Red).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(Yellow).
			Bold(true)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(Green).
			Bold(true)

	InfoStyle = lipgloss.NewStyle().
			Foreground(Blue)

	SubtleStyle = lipgloss.NewStyle().
			Foreground(Gray)

	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Underline(true)
)

// Error returns red, bold error text
func Error(text string) string {
	return ErrorStyle.Render(text)
}

// Warning returns yellow, bold warning text
func Warning(text string) string {
	return WarningStyle.Render(text)
}

// Success returns green, bold success text
func Success(text string) string {
	return SuccessStyle.Render(text)
}

// Info returns blue info text
func Info(text string) string {
	return InfoStyle.Render(text)
}

// Subtle returns gray subtle text
func Subtle(text string) string {
	return SubtleStyle.Render(text)
}

// Header returns bold, underlined header text
func Header(text string) string {
	return HeaderStyle.Render(text)
}
