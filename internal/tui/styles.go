package tui

import "github.com/charmbracelet/lipgloss"

// Adaptive colours so the transcript stays readable on light terminals.
var (
	accentColor = lipgloss.AdaptiveColor{Light: "25", Dark: "45"}
	mutedColor  = lipgloss.AdaptiveColor{Light: "242", Dark: "245"}
	frameColor  = lipgloss.AdaptiveColor{Light: "250", Dark: "238"}
	errorColor  = lipgloss.AdaptiveColor{Light: "160", Dark: "203"}
	okColor     = lipgloss.AdaptiveColor{Light: "28", Dark: "78"}
)

func boxed() lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(frameColor).
		Padding(0, 1)
}

var (
	headerStyle     = lipgloss.NewStyle().Bold(true).Reverse(true).Foreground(accentColor).Padding(0, 1)
	questionStyle   = lipgloss.NewStyle().Bold(true).Foreground(accentColor)
	answerStyle     = lipgloss.NewStyle()
	dimStyle        = lipgloss.NewStyle().Foreground(mutedColor)
	errorStyle      = lipgloss.NewStyle().Bold(true).Foreground(errorColor)
	statusStyle     = lipgloss.NewStyle().Foreground(okColor)
	spinnerStyle    = lipgloss.NewStyle().Foreground(accentColor)
	footerStyle     = dimStyle
	footerKeyStyle  = questionStyle
	transcriptStyle = boxed()
	inputStyle      = boxed()
)
