package report

import "github.com/charmbracelet/lipgloss"

type styles struct {
	title      lipgloss.Style
	network    lipgloss.Style
	header     lipgloss.Style
	box        lipgloss.Style
	key        lipgloss.Style
	value      lipgloss.Style
	empty      lipgloss.Style
	info       lipgloss.Style
	success    lipgloss.Style
	warning    lipgloss.Style
	failure    lipgloss.Style
	donation   lipgloss.Style
	stamp      lipgloss.Style
	help       lipgloss.Style
	barBracket lipgloss.Style
	barFill    lipgloss.Style
	barEmpty   lipgloss.Style
}

func newStyles() styles {
	return styles{
		title:      lipgloss.NewStyle().Bold(true),
		network:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99")),
		header:     lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		box:        lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63")).Padding(0, 1),
		key:        lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
		value:      lipgloss.NewStyle().Foreground(lipgloss.Color("81")),
		empty:      lipgloss.NewStyle().Faint(true),
		info:       lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		success:    lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		warning:    lipgloss.NewStyle().Foreground(lipgloss.Color("208")),
		failure:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
		donation:   lipgloss.NewStyle().Foreground(lipgloss.Color("213")),
		stamp:      lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		help:       lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Margin(1, 0),
		barBracket: lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		barFill:    lipgloss.NewStyle().Foreground(lipgloss.Color("159")),
		barEmpty:   lipgloss.NewStyle().Foreground(lipgloss.Color("238")),
	}
}
