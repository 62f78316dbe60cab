package main

import (
	"fmt"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

// Table styles
var (
	tableTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170"))

	tableDimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	kvLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	kvValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))
)

// renderTable creates and renders a styled table
func renderTable(title string, columns []table.Column, rows []table.Row) string {
	if len(rows) == 0 {
		return ""
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithHeight(len(rows)+1),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true).
		Foreground(lipgloss.Color("229"))
	s.Selected = lipgloss.NewStyle() // No selection highlighting for static display
	s.Cell = s.Cell.Foreground(lipgloss.Color("252"))
	t.SetStyles(s)

	var output string
	if title != "" {
		output = tableTitleStyle.Render(title) + "\n\n"
	}
	output += t.View()

	return output
}

// printTable is a convenience function that prints a table directly
func printTable(title string, columns []table.Column, rows []table.Row) {
	fmt.Println(renderTable(title, columns, rows))
}

// printEmptyMessage prints a styled empty state message
func printEmptyMessage(message string) {
	fmt.Println(tableDimStyle.Render(message))
}

type keyValue struct {
	key   string
	value string
}

// printKeyValues prints an aligned label/value block.
func printKeyValues(pairs []keyValue) {
	width := 0
	for _, p := range pairs {
		if len(p.key) > width {
			width = len(p.key)
		}
	}
	for _, p := range pairs {
		label := fmt.Sprintf("%-*s", width+2, p.key+":")
		fmt.Println("  " + kvLabelStyle.Render(label) + kvValueStyle.Render(p.value))
	}
}
