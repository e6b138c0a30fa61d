// Package meter renders the solve-progress summary with a
// spring-animated completion bar.
package meter

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"

	"github.com/dsasheet/tui/internal/api"
	"github.com/dsasheet/tui/internal/theme"
)

// FPS is the animation tick rate shared with the app's tick loop.
const FPS = 30

// Model animates the completion fraction toward its target with a
// damped spring, so pushed statistics glide instead of jumping.
type Model struct {
	Width int

	spring harmonica.Spring
	pos    float64
	vel    float64
	target float64

	stats api.Statistics
	total int // total problems across all topics, 0 if unknown
}

// New creates a meter model.
func New() Model {
	return Model{
		spring: harmonica.NewSpring(harmonica.FPS(FPS), 8.0, 0.9),
	}
}

// SetStats updates the statistics and retargets the spring.
func (m *Model) SetStats(stats api.Statistics, totalProblems int) {
	m.stats = stats
	m.total = totalProblems
	if totalProblems > 0 {
		m.target = float64(stats.TotalSolved) / float64(totalProblems)
	} else {
		m.target = 0
	}
}

// Tick advances the animation one frame. Returns false once the bar has
// settled, letting the caller stop the tick loop.
func (m *Model) Tick() bool {
	m.pos, m.vel = m.spring.Update(m.pos, m.vel, m.target)
	if math.Abs(m.pos-m.target) < 0.001 && math.Abs(m.vel) < 0.001 {
		m.pos = m.target
		m.vel = 0
		return false
	}
	return true
}

// View renders the stats row and the animated bar.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}

	statStyle := lipgloss.NewStyle().Padding(0, 1)
	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")

	stats := []string{
		statStyle.Foreground(theme.ColorEasy).Render(
			fmt.Sprintf("Easy: %d", m.stats.EasySolved)),
		statStyle.Foreground(theme.ColorMedium).Render(
			fmt.Sprintf("Medium: %d", m.stats.MediumSolved)),
		statStyle.Foreground(theme.ColorHard).Render(
			fmt.Sprintf("Hard: %d", m.stats.HardSolved)),
		statStyle.Foreground(theme.ColorBright).Render(
			fmt.Sprintf("Total: %d", m.stats.TotalSolved)),
	}
	if m.stats.TotalTimeSpent > 0 {
		stats = append(stats, statStyle.Foreground(theme.ColorDimmed).Render(
			"Time: "+formatSeconds(m.stats.TotalTimeSpent)))
	}

	content := strings.Join(stats, sep)
	if m.total > 0 {
		content += sep + m.renderBar(width/3)
	}

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)
}

// renderBar draws the animated completion bar at the spring's current
// position, labeled with the real (target) percentage.
func (m Model) renderBar(barWidth int) string {
	if barWidth < 10 {
		barWidth = 10
	}
	labelWidth := 5
	fillWidth := barWidth - labelWidth

	pos := m.pos
	if pos < 0 {
		pos = 0
	}
	if pos > 1 {
		pos = 1
	}
	filled := int(pos * float64(fillWidth))
	empty := fillWidth - filled

	color := theme.MeterColor(m.target)
	bar := lipgloss.NewStyle().Foreground(color).Render(strings.Repeat("█", filled))
	bar += lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(strings.Repeat("░", empty))
	label := fmt.Sprintf(" %3.0f%%", m.target*100)

	return bar + lipgloss.NewStyle().Foreground(color).Render(label)
}

// formatSeconds renders accumulated practice time compactly.
func formatSeconds(s int) string {
	if s < 3600 {
		return fmt.Sprintf("%dm", s/60)
	}
	return fmt.Sprintf("%dh %dm", s/3600, (s%3600)/60)
}
