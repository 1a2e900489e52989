package ui

import "github.com/charmbracelet/lipgloss"

var (
	dangerStyle = lipgloss.NewStyle().
			Border(lipgloss.ThickBorder()).
			BorderForeground(lipgloss.Color("196")).
			Padding(0, 1)

	warningStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("214")).
			Padding(0, 1)

	headlineStyle = lipgloss.NewStyle().Bold(true)
)

func dangerBox(headline, detail string) string {
	return dangerStyle.Render(headlineStyle.Render(headline) + "\n" + detail)
}

func warningBox(headline, detail string) string {
	return warningStyle.Render(headlineStyle.Render(headline) + "\n" + detail)
}
