package statusbar

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/dsasheet/tui/internal/channel"
	"github.com/dsasheet/tui/internal/session"
	"github.com/dsasheet/tui/internal/theme"
)

// Model holds the status bar state.
type Model struct {
	Session session.Snapshot
	Channel channel.State
	Width   int
}

// New creates a status bar model.
func New() Model {
	return Model{}
}

// View renders the status bar.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}

	var connStr string
	switch m.Channel {
	case channel.StateConnected:
		connStr = lipgloss.NewStyle().Foreground(theme.ColorHealthy).Render("● Live")
	case channel.StateConnecting:
		connStr = lipgloss.NewStyle().Foreground(theme.ColorWarning).Render("◌ Connecting...")
	case channel.StateReconnecting:
		connStr = lipgloss.NewStyle().Foreground(theme.ColorWarning).Render("◌ Reconnecting...")
	default:
		connStr = lipgloss.NewStyle().Foreground(theme.ColorDimmed).Render("○ Offline")
	}

	var userStr string
	switch {
	case m.Session.Status == session.StatusLoading:
		userStr = theme.StyleDimmed.Render("signing in...")
	case m.Session.Authenticated():
		u := m.Session.User
		userStr = theme.StyleHeader.Render(u.Name)
		if u.Statistics.TotalSolved > 0 {
			userStr += theme.StyleDimmed.Render(fmt.Sprintf("  %d solved", u.Statistics.TotalSolved))
		}
		if u.Statistics.CurrentStreak > 0 {
			userStr += lipgloss.NewStyle().Foreground(theme.ColorStreak).Render(
				fmt.Sprintf("  %d day streak", u.Statistics.CurrentStreak))
		}
	default:
		userStr = theme.StyleDimmed.Render("not signed in")
	}

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	content := theme.StyleHeader.Render("DSA Sheet") + sep + userStr + sep + connStr

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)
}
