package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var levels = []string{"▁", "▂", "▃", "▄", "▅", "▆", "▇", "█"}

// Sparkline draws the last Width values on one line, scaled to the largest
// visible value.
type Sparkline struct {
	Data   []float64
	Width  int
	Label  string
	Unit   string
	Format string // fmt verb for the latest value, e.g. "%.2f"
	Style  lipgloss.Style
}

func NewSparkline(width int, label, unit, format string, style lipgloss.Style) Sparkline {
	return Sparkline{
		Width:  width,
		Label:  label,
		Unit:   unit,
		Format: format,
		Style:  style,
		Data:   make([]float64, 0, width),
	}
}

func (s *Sparkline) Add(v float64) {
	s.Data = append(s.Data, v)
	if s.Width > 0 && len(s.Data) > s.Width {
		s.Data = s.Data[len(s.Data)-s.Width:]
	}
}

func (s *Sparkline) Reset() {
	s.Data = s.Data[:0]
}

func (s Sparkline) Max() float64 {
	var m float64
	for _, v := range s.Data {
		m = max(m, v)
	}
	return m
}

// Graph is the bar line without label, padded to Width.
func (s Sparkline) Graph() string {
	if s.Width <= 0 {
		return ""
	}
	top := s.Max()

	var g strings.Builder
	for _, v := range s.Data {
		idx := 0
		if top > 0 {
			idx = int(v / top * float64(len(levels)-1))
		}
		g.WriteString(levels[min(max(idx, 0), len(levels)-1)])
	}
	if pad := s.Width - len(s.Data); pad > 0 {
		g.WriteString(strings.Repeat(" ", pad))
	}
	return g.String()
}

func (s Sparkline) View() string {
	if s.Width <= 0 {
		return ""
	}
	label := s.Label
	if n := len(s.Data); n > 0 && s.Format != "" {
		label += " " + fmt.Sprintf(s.Format, s.Data[n-1]) + s.Unit
	}
	return s.Style.Render(label) + "\n" + s.Style.Render(s.Graph())
}
