package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Docs blue for the DOCENT banner.
const docsBlue = "#0078D4"

// DOCENT ASCII art (filled block style).
var docentArt = []string{
	"  ██████╗  ██████╗  ██████╗███████╗███╗   ██╗████████╗",
	"  ██╔══██╗██╔═══██╗██╔════╝██╔════╝████╗  ██║╚══██╔══╝",
	"  ██║  ██║██║   ██║██║     █████╗  ██╔██╗ ██║   ██║   ",
	"  ██║  ██║██║   ██║██║     ██╔══╝  ██║╚██╗██║   ██║   ",
	"  ██████╔╝╚██████╔╝╚██████╗███████╗██║ ╚████║   ██║   ",
	"  ╚═════╝  ╚═════╝  ╚═════╝╚══════╝╚═╝  ╚═══╝   ╚═╝   ",
}

// Styles contains all lipgloss styles for the TUI.
type Styles struct {
	Banner    lipgloss.Style
	User      lipgloss.Style
	Assistant lipgloss.Style
	System    lipgloss.Style
	Tips      lipgloss.Style
	Error     lipgloss.Style
	Prompt    lipgloss.Style
	Separator lipgloss.Style // Horizontal line separator
	StatusBar lipgloss.Style
}

// DefaultStyles returns the default style configuration.
func DefaultStyles() Styles {
	return Styles{
		Banner:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(docsBlue)),
		User:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")),
		Assistant: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
		System:    lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("240")),
		Tips:      lipgloss.NewStyle().Foreground(lipgloss.Color("255")),
		Error:     lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		Prompt:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")),
		Separator: lipgloss.NewStyle().Foreground(lipgloss.Color("240")), // Gray separator line
		StatusBar: lipgloss.NewStyle().Foreground(lipgloss.Color("250")), // Light gray, no background
	}
}

// RenderBanner returns the DOCENT ASCII art banner as a styled string.
func (s Styles) RenderBanner() string {
	var b strings.Builder
	for _, line := range docentArt {
		_, _ = b.WriteString(s.Banner.Render(line))
		_, _ = b.WriteString("\n")
	}
	return b.String()
}

// welcomeTips contains getting started tips displayed under the banner.
var welcomeTips = []string{
	"Tips for getting started:",
	"  • Ask about Microsoft Learn content: Azure, .NET, Teams, anything documented",
	"  • The agent searches official documentation and cites what it finds",
	"  • Use /help to see available commands, /new to start a fresh conversation",
	"  • Press Ctrl+C to cancel, Ctrl+D to exit",
}

// RenderWelcomeTips returns styled welcome tips.
func (s Styles) RenderWelcomeTips() string {
	var b strings.Builder
	for _, tip := range welcomeTips {
		_, _ = b.WriteString(s.Tips.Render(tip))
		_, _ = b.WriteString("\n")
	}
	return b.String()
}
