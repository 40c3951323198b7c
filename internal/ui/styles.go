// Package ui renders labtohub console output.
// Colors adapt to light and dark terminals.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	ColorPass = lipgloss.AdaptiveColor{Light: "#86b300", Dark: "#c2d94c"}
	ColorWarn = lipgloss.AdaptiveColor{Light: "#f2ae49", Dark: "#ffb454"}
	ColorFail = lipgloss.AdaptiveColor{Light: "#f07171", Dark: "#f07178"}
	ColorMute = lipgloss.AdaptiveColor{Light: "#828c99", Dark: "#6c7680"}
	ColorLink = lipgloss.AdaptiveColor{Light: "#399ee6", Dark: "#59c2ff"}
)

var (
	PassStyle   = lipgloss.NewStyle().Foreground(ColorPass)
	WarnStyle   = lipgloss.NewStyle().Foreground(ColorWarn)
	FailStyle   = lipgloss.NewStyle().Foreground(ColorFail)
	MutedStyle  = lipgloss.NewStyle().Foreground(ColorMute)
	AccentStyle = lipgloss.NewStyle().Foreground(ColorLink)
	HeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorLink)
)

const (
	IconPass = "✓"
	IconWarn = "⚠"
	IconFail = "✗"
	IconSkip = "-"
	IconInfo = "ℹ"
)

func RenderPass(s string) string   { return PassStyle.Render(s) }
func RenderWarn(s string) string   { return WarnStyle.Render(s) }
func RenderFail(s string) string   { return FailStyle.Render(s) }
func RenderMuted(s string) string  { return MutedStyle.Render(s) }
func RenderAccent(s string) string { return AccentStyle.Render(s) }

// RenderHeader renders a section header in uppercase.
func RenderHeader(s string) string {
	return HeaderStyle.Render(strings.ToUpper(s))
}

// Message formats one progress line. Dry-run lines are muted.
func Message(msg string) string {
	if strings.HasPrefix(msg, "[dry-run]") {
		return RenderMuted(IconSkip) + " " + RenderMuted(msg)
	}
	return RenderPass(IconPass) + " " + msg
}

// Warning formats one warning line. Indented continuation lines keep their
// indentation and get no icon.
func Warning(msg string) string {
	if strings.HasPrefix(msg, "\t") {
		return "  " + RenderWarn(strings.TrimPrefix(msg, "\t"))
	}
	return RenderWarn(IconWarn) + " " + msg
}

// Row is one label/value pair in a summary table.
type Row struct {
	Label string
	Value int
}

// RenderSummary renders rows as an aligned two-column block under title.
// Zero rows are shown muted.
func RenderSummary(title string, rows []Row) string {
	width := 0
	for _, r := range rows {
		if len(r.Label) > width {
			width = len(r.Label)
		}
	}
	var b strings.Builder
	b.WriteString(RenderHeader(title))
	b.WriteString("\n")
	for _, r := range rows {
		line := fmt.Sprintf("  %-*s  %d", width, r.Label, r.Value)
		if r.Value == 0 {
			line = RenderMuted(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}
