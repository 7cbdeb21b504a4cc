package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/waftester/csrfprobe/pkg/report"
)

// Color palette
var (
	Primary   = lipgloss.Color("#7D56F4") // Purple - brand color
	Secondary = lipgloss.Color("#00D4AA") // Cyan/Teal

	Success = lipgloss.Color("#00D26A") // Bright green
	Warning = lipgloss.Color("#FFB800") // Amber
	Error   = lipgloss.Color("#FF3838") // Red
	Muted   = lipgloss.Color("#6B7280") // Gray

	// Status colors
	Pass    = lipgloss.Color("#00D26A")
	Fail    = lipgloss.Color("#FF3838")
	Errored = lipgloss.Color("#FFB800")
	Skipped = lipgloss.Color("#6B7280")

	// HTTP status code colors
	Status2xx = lipgloss.Color("#00D26A")
	Status3xx = lipgloss.Color("#4D96FF")
	Status4xx = lipgloss.Color("#FFD93D")
	Status5xx = lipgloss.Color("#FF3838")
)

// Pre-configured styles
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(Primary).
			Padding(0, 1)

	BannerStyle = lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true)

	VersionStyle = lipgloss.NewStyle().
			Foreground(Secondary).
			Bold(true)

	SectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Bold(true).
			MarginTop(1)

	ConfigLabelStyle = lipgloss.NewStyle().
				Foreground(Muted).
				Width(15)

	ConfigValueStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#FAFAFA"))

	StatLabelStyle = lipgloss.NewStyle().
			Foreground(Muted)

	StatValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Bold(true)

	BracketStyle = lipgloss.NewStyle().
			Foreground(Muted)

	PassStyle = lipgloss.NewStyle().
			Foreground(Pass).
			Bold(true)

	FailStyle = lipgloss.NewStyle().
			Foreground(Fail).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(Errored).
			Bold(true)

	SkippedStyle = lipgloss.NewStyle().
			Foreground(Skipped).
			Italic(true)

	DividerStyle = lipgloss.NewStyle().
			Foreground(Muted)

	HelpStyle = lipgloss.NewStyle().
			Foreground(Muted).
			Italic(true)

	URLStyle = lipgloss.NewStyle().
			Foreground(Secondary).
			Underline(true)
)

// StatusStyle returns the style for an assertion status.
func StatusStyle(s report.Status) lipgloss.Style {
	switch s {
	case report.StatusPass:
		return PassStyle
	case report.StatusFail:
		return FailStyle
	case report.StatusError:
		return ErrorStyle
	case report.StatusSkipped:
		return SkippedStyle
	default:
		return lipgloss.NewStyle().Foreground(Muted)
	}
}

// StatusCodeStyle returns the appropriate style for HTTP status codes
func StatusCodeStyle(code int) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)
	switch {
	case code >= 200 && code < 300:
		return base.Foreground(Status2xx)
	case code >= 300 && code < 400:
		return base.Foreground(Status3xx)
	case code >= 400 && code < 500:
		return base.Foreground(Status4xx)
	case code >= 500:
		return base.Foreground(Status5xx)
	default:
		return base.Foreground(Muted)
	}
}
