// Package events keeps a bounded in-memory log of client activity
// (channel lifecycle, session transitions, server pushes, request
// failures) and renders it as a scrollable overlay.
package events

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/dsasheet/tui/internal/theme"
)

const maxEntries = 200

// Kind classifies a log entry by the subsystem that produced it.
type Kind int

const (
	KindChannel Kind = iota
	KindSession
	KindPush
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindChannel:
		return "channel"
	case KindSession:
		return "session"
	case KindPush:
		return "push"
	case KindError:
		return "error"
	default:
		return "other"
	}
}

func (k Kind) color() lipgloss.Color {
	switch k {
	case KindChannel:
		return theme.ColorInfo
	case KindSession:
		return theme.ColorAccent
	case KindPush:
		return theme.ColorSuccess
	case KindError:
		return theme.ColorError
	default:
		return theme.ColorDimmed
	}
}

// Entry is a single recorded event.
type Entry struct {
	Time    time.Time
	Kind    Kind
	Message string
}

// Model holds the activity log and its viewport position.
type Model struct {
	Entries []Entry
	Offset  int // entries scrolled up from the live tail
}

// New creates an empty activity log.
func New() Model {
	return Model{}
}

// Record appends an entry, evicting the oldest past the cap, and snaps
// the viewport back to the tail so the newest entry is visible.
func (m *Model) Record(kind Kind, message string) {
	m.Entries = append(m.Entries, Entry{Time: time.Now(), Kind: kind, Message: message})
	if over := len(m.Entries) - maxEntries; over > 0 {
		m.Entries = m.Entries[over:]
	}
	m.Offset = 0
}

// ScrollUp moves the viewport toward older entries.
func (m *Model) ScrollUp(n int) {
	m.Offset = min(m.Offset+n, max(len(m.Entries)-1, 0))
}

// ScrollDown moves the viewport toward the live tail.
func (m *Model) ScrollDown(n int) {
	m.Offset = max(m.Offset-n, 0)
}

// summary counts entries per kind for the header line, e.g.
// "channel 3 · session 2 · error 1". Kinds with no entries are omitted.
func (m Model) summary() string {
	var counts [KindError + 1]int
	for _, e := range m.Entries {
		if e.Kind >= 0 && int(e.Kind) < len(counts) {
			counts[e.Kind]++
		}
	}
	var parts []string
	for k, n := range counts {
		if n > 0 {
			parts = append(parts, fmt.Sprintf("%s %d", Kind(k), n))
		}
	}
	return strings.Join(parts, " · ")
}

func panelStyle(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Width(width).
		Padding(1, 2).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder)
}

// View renders the activity log as an overlay panel sized to fit the
// given terminal dimensions.
func (m Model) View(width, height int) string {
	innerW := max(width-4, 20)
	visible := max(height-6, 3)

	title := theme.StyleHeader.Render(" ACTIVITY ")
	help := theme.StyleDimmed.Render("j/k:scroll  esc:close")

	if len(m.Entries) == 0 {
		body := theme.StyleDimmed.Render("  Nothing recorded yet.")
		return panelStyle(innerW).Render(
			lipgloss.JoinVertical(lipgloss.Left, title, "", body, "", help))
	}

	header := theme.StyleDimmed.Render(m.summary())

	end := max(len(m.Entries)-m.Offset, 0)
	start := max(end-visible, 0)

	lines := make([]string, 0, end-start)
	for _, e := range m.Entries[start:end] {
		ts := theme.StyleDimmed.Render(e.Time.Format("15:04:05"))
		label := lipgloss.NewStyle().Foreground(e.Kind.color()).Width(8).Render(e.Kind.String())
		lines = append(lines, ts+" "+label+" "+clip(e.Message, innerW-18))
	}

	body := strings.Join(lines, "\n")
	tail := ""
	if m.Offset > 0 {
		tail = theme.StyleDimmed.Render(fmt.Sprintf(" ↓ %d newer", m.Offset))
	}

	return panelStyle(innerW).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, header, body, tail, help))
}

// clip shortens s to at most w display runes, ellipsizing.
func clip(s string, w int) string {
	if w < 2 {
		return s
	}
	r := []rune(s)
	if len(r) <= w {
		return s
	}
	return string(r[:w-1]) + "…"
}
