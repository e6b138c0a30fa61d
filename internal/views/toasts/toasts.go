// Package toasts renders the active notification stack in the top-right
// corner of the screen.
package toasts

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dsasheet/tui/internal/api"
	"github.com/dsasheet/tui/internal/theme"
)

const toastWidth = 44

// View renders the given notifications as a vertical stack of panels,
// newest last. Returns an empty string when there is nothing to show.
func View(items []api.Notification) string {
	if len(items) == 0 {
		return ""
	}

	panels := make([]string, 0, len(items))
	for _, n := range items {
		panels = append(panels, renderToast(n))
	}
	return lipgloss.JoinVertical(lipgloss.Right, panels...)
}

func renderToast(n api.Notification) string {
	color := theme.NotificationColor(n.Type)
	glyph := lipgloss.NewStyle().Foreground(color).Render(theme.NotificationGlyph(n.Type))

	title := theme.StyleHeader.Render(n.Title)
	var b strings.Builder
	b.WriteString(glyph + " " + title)
	if n.Message != "" {
		b.WriteString("\n" + wrap(n.Message, toastWidth-4))
	}

	return lipgloss.NewStyle().
		Width(toastWidth).
		Padding(0, 1).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(color).
		Render(b.String())
}

// wrap breaks a message into lines no longer than width, splitting on
// spaces only.
func wrap(s string, width int) string {
	if width < 10 {
		width = 10
	}
	words := strings.Fields(s)
	var lines []string
	var cur string
	for _, w := range words {
		if cur == "" {
			cur = w
			continue
		}
		if len(cur)+1+len(w) > width {
			lines = append(lines, cur)
			cur = w
			continue
		}
		cur += " " + w
	}
	if cur != "" {
		lines = append(lines, cur)
	}
	return strings.Join(lines, "\n")
}
