// Package problem renders a single problem as a scrollable overlay,
// with the markdown description rendered through glamour.
package problem

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/dsasheet/tui/internal/api"
	"github.com/dsasheet/tui/internal/theme"
)

const panelWidth = 76

// Model holds the detail overlay state.
type Model struct {
	Problem *api.Problem

	rendered []string // glamour output, split into lines
	offset   int
}

// New creates a detail model for the given problem and renders its
// description once up front.
func New(p *api.Problem) Model {
	m := Model{Problem: p}
	if p != nil {
		m.rendered = renderDescription(p.Description)
	}
	return m
}

// renderDescription runs the markdown through glamour. On renderer
// failure the raw text is shown instead of nothing.
func renderDescription(md string) []string {
	if strings.TrimSpace(md) == "" {
		return nil
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(panelWidth-6),
	)
	if err != nil {
		return strings.Split(md, "\n")
	}
	out, err := r.Render(md)
	if err != nil {
		return strings.Split(md, "\n")
	}
	return strings.Split(strings.TrimRight(out, "\n"), "\n")
}

// ScrollUp moves the viewport up.
func (m *Model) ScrollUp(n int) {
	m.offset -= n
	if m.offset < 0 {
		m.offset = 0
	}
}

// ScrollDown moves the viewport down.
func (m *Model) ScrollDown(n int) {
	m.offset += n
	if limit := len(m.rendered) - 1; m.offset > limit {
		m.offset = max(0, limit)
	}
}

// View renders the detail panel. Returns an empty string if no problem
// is set.
func (m Model) View(height int) string {
	if m.Problem == nil {
		return ""
	}
	p := m.Problem

	visible := height - 10
	if visible < 5 {
		visible = 5
	}

	var b strings.Builder

	title := theme.StyleHeader.Render(p.Title)
	b.WriteString(theme.SolvedGlyph(p.Solved) + " " + title + "  " + theme.DifficultyBadge(p.Difficulty) + "\n")
	b.WriteString(strings.Repeat("─", panelWidth-4) + "\n")

	if len(p.Tags) > 0 {
		b.WriteString(theme.StyleDimmed.Render("Tags: "+strings.Join(p.Tags, ", ")) + "\n")
	}
	if p.Link != "" {
		b.WriteString(theme.StyleDimmed.Render("Link: "+p.Link) + "\n")
	}
	b.WriteString("\n")

	if len(m.rendered) == 0 {
		b.WriteString(theme.StyleDimmed.Render("No description.") + "\n")
	} else {
		end := m.offset + visible
		if end > len(m.rendered) {
			end = len(m.rendered)
		}
		b.WriteString(strings.Join(m.rendered[m.offset:end], "\n") + "\n")
		if end < len(m.rendered) {
			b.WriteString(theme.StyleDimmed.Render(fmt.Sprintf(" ↓ %d more", len(m.rendered)-end)) + "\n")
		}
	}

	footer := "[s] toggle solved  [j/k] scroll  [esc] close"
	if p.Solved {
		footer = "[s] mark unsolved  [j/k] scroll  [esc] close"
	}
	b.WriteString("\n" + theme.StyleDimmed.Render(footer))

	return lipgloss.NewStyle().
		Width(panelWidth).
		Padding(0, 1).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(theme.DifficultyColor(p.Difficulty)).
		Render(b.String())
}
