package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorFgPrimary = lipgloss.Color("#ABB2BF")
	colorFgMuted   = lipgloss.Color("#636B78")
	colorRed       = lipgloss.Color("#E06C75")
	colorGreen     = lipgloss.Color("#98C379")
	colorYellow    = lipgloss.Color("#E5C07B")
	colorBlue      = lipgloss.Color("#61AFEF")
	colorMagenta   = lipgloss.Color("#C678DD")
	colorBorder    = lipgloss.Color("#3F4451")
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(colorBlue).
			Bold(true).
			PaddingLeft(1)

	stageStyle = lipgloss.NewStyle().
			Foreground(colorMagenta).
			Bold(true)

	stageFailedStyle = lipgloss.NewStyle().
				Foreground(colorRed).
				Bold(true)

	stageReadyStyle = lipgloss.NewStyle().
			Foreground(colorGreen).
			Bold(true)

	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	paneTitleStyle = lipgloss.NewStyle().
			Foreground(colorMagenta).
			Bold(true)

	selectedStyle = lipgloss.NewStyle().
			Foreground(colorYellow).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(colorFgMuted)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorRed)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(colorFgPrimary).
			PaddingLeft(1)
)
