package main

import "github.com/charmbracelet/lipgloss"

// Styles degrade to plain text when stdout is not a terminal.
var (
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	totalStyle  = lipgloss.NewStyle().Bold(true)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#00AF00"))
	failStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF5F5F"))
)
