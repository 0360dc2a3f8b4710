package banner

import (
	"github.com/charmbracelet/lipgloss"

	"ollamabench/internal/tui/styles"
)

const ascii = `
        ____                      __                     __
  ___  / / /___ _____ ___  ____ _/ /_  ___  ____  _____/ /_
 / _ \/ / / __ '/ __ '__ \/ __ '/ __ \/ _ \/ __ \/ ___/ __ \
/  __/ / / /_/ / / / / / / /_/ / /_/ /  __/ / / / /__/ / / /
\___/_/_/\__,_/_/ /_/ /_/\__,_/_.___/\___/_/ /_/\___/_/ /_/ `

// GetString renders the banner with a tagline underneath.
func GetString() string {
	renderer := lipgloss.DefaultRenderer()

	art := renderer.NewStyle().
		Foreground(styles.ColorBanner).
		Bold(true).
		Render(ascii)
	tagline := renderer.NewStyle().
		Foreground(styles.ColorSubtle).
		Render("  load tests and resource profiles for local Ollama models")

	return "\n" + art + "\n" + tagline + "\n"
}
