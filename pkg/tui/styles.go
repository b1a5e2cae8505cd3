// Package tui provides the dashboard and shared styling used by the
// bubbletea fleet view and the readline shell banner.
package tui

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Color palette shared by the dashboard panes and the shell banner.
var (
	ColorPrimary = lipgloss.Color("#cc7700")
	ColorMuted   = lipgloss.Color("#888888")
	ColorPanel   = lipgloss.Color("#555555")
	ColorWarn    = lipgloss.Color("#aaaa00")
	ColorError   = lipgloss.Color("#cc3333")
	ColorOK      = lipgloss.Color("#00aa55")
	ColorText    = lipgloss.Color("#dddddd")
)

var (
	PrimaryText = lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)
	MutedText   = lipgloss.NewStyle().Foreground(ColorMuted)
	WarnText    = lipgloss.NewStyle().Bold(true).Foreground(ColorWarn)
	ErrorText   = lipgloss.NewStyle().Bold(true).Foreground(ColorError)
	OKText      = lipgloss.NewStyle().Bold(true).Foreground(ColorOK)
	NormalText  = lipgloss.NewStyle().Foreground(ColorText)
	PanelText   = lipgloss.NewStyle().Foreground(ColorPanel)

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorPanel).
			Padding(0, 1)

	FooterStyle = lipgloss.NewStyle().Foreground(ColorMuted)
)

// BrandName is the tool's command name.
const (
	BrandName = "golemmcp"
)

// Banner returns a short startup banner for the shell and version subcommands.
func Banner(version string) string {
	var b strings.Builder
	b.WriteString(PrimaryText.Render("golem-mcp"))
	if version != "" {
		b.WriteString(" ")
		b.WriteString(MutedText.Render(version))
	}
	b.WriteString("\n")
	return b.String()
}

// TerminalWidth returns the current terminal width, defaulting to 80.
func TerminalWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return 80
	}
	return w
}

// TerminalHeight returns the current terminal height, defaulting to 24.
func TerminalHeight() int {
	_, h, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || h <= 0 {
		return 24
	}
	return h
}
