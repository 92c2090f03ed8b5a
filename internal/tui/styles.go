package tui

import "github.com/charmbracelet/lipgloss"

type styles struct {
	title    lipgloss.Style
	status   lipgloss.Style
	notice   lipgloss.Style
	failure  lipgloss.Style
	cursor   lipgloss.Style
	help     lipgloss.Style
	picker   lipgloss.Style
	selected lipgloss.Style
}

func newStyles() styles {
	return styles{
		title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("69")),
		status:   lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		notice:   lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		failure:  lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		cursor:   lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true),
		help:     lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		picker:   lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("69")).Padding(0, 1),
		selected: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
	}
}
