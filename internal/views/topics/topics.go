// Package topics provides the topic catalog and per-topic problem list
// for the DSA Sheet TUI.
package topics

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dsasheet/tui/internal/api"
	"github.com/dsasheet/tui/internal/theme"
)

// Model holds the browse state: the topic catalog, and optionally an
// opened topic whose problems are listed.
type Model struct {
	Width  int
	Height int

	topics  []api.Topic
	current *api.Topic // nil while browsing the catalog

	topicIdx   int
	problemIdx int
}

// New creates an empty browse model.
func New() Model {
	return Model{}
}

// SetTopics replaces the catalog. Selection is clamped, not reset, so a
// refresh does not yank the cursor.
func (m *Model) SetTopics(topics []api.Topic) {
	m.topics = topics
	if m.topicIdx >= len(topics) {
		m.topicIdx = max(0, len(topics)-1)
	}
}

// OpenTopic switches to the problem list of a fully loaded topic.
func (m *Model) OpenTopic(t api.Topic) {
	m.current = &t
	m.problemIdx = 0
}

// RefreshTopic replaces the opened topic in place, keeping the cursor.
// No-op if a different (or no) topic is open.
func (m *Model) RefreshTopic(t api.Topic) {
	if m.current == nil || m.current.ID != t.ID {
		return
	}
	m.current = &t
	if m.problemIdx >= len(t.Problems) {
		m.problemIdx = max(0, len(t.Problems)-1)
	}
}

// CloseTopic returns to the catalog.
func (m *Model) CloseTopic() {
	m.current = nil
}

// Browsing reports whether the catalog (rather than a problem list) is
// showing.
func (m Model) Browsing() bool {
	return m.current == nil
}

// MoveUp moves the cursor up in whichever list is active.
func (m *Model) MoveUp() {
	if m.current != nil {
		if n := len(m.current.Problems); n > 0 {
			m.problemIdx = (m.problemIdx - 1 + n) % n
		}
		return
	}
	if n := len(m.topics); n > 0 {
		m.topicIdx = (m.topicIdx - 1 + n) % n
	}
}

// MoveDown moves the cursor down in whichever list is active.
func (m *Model) MoveDown() {
	if m.current != nil {
		if n := len(m.current.Problems); n > 0 {
			m.problemIdx = (m.problemIdx + 1) % n
		}
		return
	}
	if n := len(m.topics); n > 0 {
		m.topicIdx = (m.topicIdx + 1) % n
	}
}

// SelectedTopic returns the topic under the cursor, or nil.
func (m Model) SelectedTopic() *api.Topic {
	if len(m.topics) == 0 {
		return nil
	}
	return &m.topics[m.topicIdx]
}

// SelectedProblem returns the problem under the cursor, or nil when the
// catalog is showing.
func (m Model) SelectedProblem() *api.Problem {
	if m.current == nil || len(m.current.Problems) == 0 {
		return nil
	}
	return &m.current.Problems[m.problemIdx]
}

// View renders the catalog or the opened topic's problem list.
func (m Model) View() string {
	if m.current != nil {
		return m.renderProblems()
	}
	return m.renderCatalog()
}

// truncate shortens s to at most w runes, ellipsizing. Slicing by rune
// rather than byte keeps multibyte titles intact.
func truncate(s string, w int) string {
	r := []rune(s)
	if len(r) <= w {
		return s
	}
	return string(r[:w-1]) + "…"
}

func (m Model) renderCatalog() string {
	header := theme.StyleHeader.Render("  Topics")
	if len(m.topics) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left,
			header,
			theme.StyleDimmed.Render("  Loading topics..."),
		)
	}

	colName := 28
	colDesc := 44

	dimStyle := lipgloss.NewStyle().Foreground(theme.ColorDimmed)

	lines := []string{
		header,
		dimStyle.Render("  " + strings.Repeat("─", colName+colDesc+2)),
	}
	for i, t := range m.topics {
		prefix := "  "
		nameStyle := lipgloss.NewStyle().Foreground(theme.ColorBright).Width(colName)
		if i == m.topicIdx {
			prefix = "> "
			nameStyle = theme.StyleSelected.Width(colName)
		}
		desc := truncate(t.Description, colDesc-1)
		lines = append(lines, prefix+nameStyle.Render(t.Name)+dimStyle.Render(desc))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m Model) renderProblems() string {
	t := m.current
	solved := 0
	for _, p := range t.Problems {
		if p.Solved {
			solved++
		}
	}

	header := theme.StyleHeader.Render("  " + t.Name)
	count := theme.StyleDimmed.Render(fmt.Sprintf("  %d/%d solved", solved, len(t.Problems)))

	colTitle := 40
	colDiff := 5

	lines := []string{
		header + count,
		theme.StyleDimmed.Render("  " + strings.Repeat("─", colTitle+colDiff+12)),
	}

	if len(t.Problems) == 0 {
		lines = append(lines, theme.StyleDimmed.Render("  No problems in this topic"))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	for i, p := range t.Problems {
		prefix := "  "
		titleStyle := lipgloss.NewStyle().Foreground(theme.ColorBright).Width(colTitle)
		if i == m.problemIdx {
			prefix = "> "
			titleStyle = theme.StyleSelected.Width(colTitle)
		}

		title := truncate(p.Title, colTitle-1)

		tags := ""
		if len(p.Tags) > 0 {
			tags = theme.StyleDimmed.Render(" " + strings.Join(p.Tags, ","))
		}

		line := prefix + theme.SolvedGlyph(p.Solved) + " " +
			titleStyle.Render(title) + " " +
			theme.DifficultyBadge(p.Difficulty) + tags
		lines = append(lines, line)
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
