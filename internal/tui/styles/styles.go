// Package styles holds the lipgloss palette shared by every view. Colors
// adapt to light and dark terminal backgrounds.
package styles

import (
	"github.com/charmbracelet/lipgloss"

	"ollamabench/internal/report"
)

type color = lipgloss.AdaptiveColor

var (
	ColorPrimary   = color{Light: "#5A3FD1", Dark: "#8C6CFF"}
	ColorSecondary = color{Light: "#0A8F5A", Dark: "#2BD38A"} // throughput, success
	ColorError     = color{Light: "#C8244F", Dark: "#FF6B8B"}
	ColorWarning   = color{Light: "#B26B00", Dark: "#FFB347"}
	ColorRAM       = color{Light: "#1F6FB8", Dark: "#6CB6FF"}
	ColorText      = color{Light: "#1C1C1C", Dark: "#ECECEC"}
	ColorSubtle    = color{Light: "#8A8A8A", Dark: "#7C7C7C"}
	ColorBorder    = color{Light: "#D0D0D0", Dark: "#3A3A3A"}
	ColorBg        = color{Light: "#FFFFFF", Dark: "#151515"}
	ColorHighlight = color{Light: "#B9B9B9", Dark: "#4A4A4A"}
	ColorBanner    = color{Light: "#D63C7A", Dark: "#F25D94"}
)

func fg(c lipgloss.TerminalColor) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c)
}

func bordered(b lipgloss.Border, c lipgloss.TerminalColor) lipgloss.Style {
	return lipgloss.NewStyle().Border(b).BorderForeground(c)
}

// underlined draws only the bottom edge of b.
func underlined(c lipgloss.TerminalColor) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(c)
}

var (
	Text    = fg(ColorText)
	Subtle  = fg(ColorSubtle)
	Value   = fg(ColorSecondary).Bold(true)
	Active  = fg(ColorPrimary).Bold(true)
	RAM     = fg(ColorRAM)
	Error   = fg(ColorError)
	Warn    = fg(ColorWarning)
	Success = fg(ColorSecondary).Bold(true)

	Title = underlined(ColorSubtle).Foreground(ColorPrimary).Bold(true).Padding(0, 1)

	Panel = bordered(lipgloss.RoundedBorder(), ColorBorder).Padding(1, 2)
	Box   = bordered(lipgloss.RoundedBorder(), ColorBorder).Padding(0, 1).Margin(0, 1)

	InputActive = bordered(lipgloss.ThickBorder(), ColorPrimary).Padding(0, 1)
	InputNormal = bordered(lipgloss.RoundedBorder(), ColorBorder).Padding(0, 1)

	TabBase   = Subtle.Padding(0, 2)
	TabActive = underlined(ColorPrimary).Foreground(ColorPrimary).Bold(true).Padding(0, 2)

	FooterBase = lipgloss.NewStyle().Height(1).Padding(0, 1)

	keyName = Text.Bold(true)
)

// RenderKey renders one footer shortcut as "<key> desc".
func RenderKey(key, desc string) string {
	return keyName.Render("<"+key+">") + " " + Subtle.Render(desc)
}

// ForLevel picks the style for a stress warning.
func ForLevel(l report.Level) lipgloss.Style {
	if l == report.LevelCritical {
		return Error.Bold(true)
	}
	return Warn
}
