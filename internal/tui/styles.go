package tui

import "github.com/charmbracelet/lipgloss"

// Styles
var (
	baseFg    = lipgloss.Color("#E6E6E6")
	baseDimFg = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#6B7280"}
	accentFg  = lipgloss.Color("#7C3AED")
	warnFg    = lipgloss.Color("#F59E0B")
	errFg     = lipgloss.Color("#EF4444")
	okFg      = lipgloss.Color("#22C55E")
	borderCol = lipgloss.Color("#243141")

	appStyle    = lipgloss.NewStyle().Foreground(baseFg)
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(borderCol).Padding(0, 1)
	promptStyle = boxStyle.BorderForeground(warnFg)
	errorStyle  = boxStyle.BorderForeground(errFg).Foreground(errFg)
	titleStyle  = lipgloss.NewStyle().Foreground(accentFg).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(baseDimFg)
	toolStyle   = lipgloss.NewStyle().Foreground(warnFg).Bold(true)
)

// statusColor tints backend task statuses in the dashboard.
func statusColor(status string) lipgloss.Style {
	switch status {
	case "SUCCESS":
		return lipgloss.NewStyle().Foreground(okFg)
	case "FAILURE", "ERROR":
		return lipgloss.NewStyle().Foreground(errFg)
	case "PENDING", "STARTED", "RETRY":
		return lipgloss.NewStyle().Foreground(warnFg)
	}
	return dimStyle
}
