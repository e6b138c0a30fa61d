// Package theme provides the Lip Gloss color palette and reusable styles
// for the DSA Sheet TUI. It is a leaf package with no internal imports
// to avoid import cycles.
package theme

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/dsasheet/tui/internal/api"
)

// Difficulty colors.
var (
	ColorEasy    = lipgloss.Color("#22c55e")
	ColorMedium  = lipgloss.Color("#d97706")
	ColorHard    = lipgloss.Color("#dc2626")
	ColorDefault = lipgloss.Color("#9ca3af")
)

// Notification colors.
var (
	ColorSuccess = lipgloss.Color("#16a34a")
	ColorInfo    = lipgloss.Color("#2563eb")
	ColorWarn    = lipgloss.Color("#d97706")
	ColorError   = lipgloss.Color("#dc2626")
)

// Progress meter thresholds.
var (
	ColorMeterLow  = lipgloss.Color("#4b5563") // <33%
	ColorMeterMid  = lipgloss.Color("#06b6d4") // 33-66%
	ColorMeterHigh = lipgloss.Color("#22c55e") // >66%
)

// UI chrome colors.
var (
	ColorBorder   = lipgloss.Color("#4b5563")
	ColorDimmed   = lipgloss.Color("#6b7280")
	ColorBright   = lipgloss.Color("#f9fafb")
	ColorAccent   = lipgloss.Color("#a855f7")
	ColorStreak   = lipgloss.Color("#f59e0b")
	ColorHealthy  = lipgloss.Color("#22c55e")
	ColorDanger   = lipgloss.Color("#dc2626")
	ColorWarning  = lipgloss.Color("#d97706")
	ColorSolved   = lipgloss.Color("#16a34a")
	ColorUnsolved = lipgloss.Color("#6b7280")
)

// DifficultyColor returns the color for a problem difficulty.
func DifficultyColor(d api.Difficulty) lipgloss.Color {
	switch d {
	case api.DifficultyEasy:
		return ColorEasy
	case api.DifficultyMedium:
		return ColorMedium
	case api.DifficultyHard:
		return ColorHard
	default:
		return ColorDefault
	}
}

// NotificationColor returns the color for a notification kind.
func NotificationColor(kind api.NotificationKind) lipgloss.Color {
	switch kind {
	case api.NotifySuccess:
		return ColorSuccess
	case api.NotifyInfo:
		return ColorInfo
	case api.NotifyWarning:
		return ColorWarn
	case api.NotifyError:
		return ColorError
	default:
		return ColorDimmed
	}
}

// MeterColor returns the color for a completion fraction.
func MeterColor(frac float64) lipgloss.Color {
	switch {
	case frac > 0.66:
		return ColorMeterHigh
	case frac > 0.33:
		return ColorMeterMid
	default:
		return ColorMeterLow
	}
}

// DifficultyBadge returns a colored short badge for a difficulty.
func DifficultyBadge(d api.Difficulty) string {
	style := lipgloss.NewStyle().Foreground(DifficultyColor(d))
	switch d {
	case api.DifficultyEasy:
		return style.Render("[E]")
	case api.DifficultyMedium:
		return style.Render("[M]")
	case api.DifficultyHard:
		return style.Render("[H]")
	default:
		return style.Render("[?]")
	}
}

// SolvedGlyph returns the marker shown next to a problem.
func SolvedGlyph(solved bool) string {
	if solved {
		return lipgloss.NewStyle().Foreground(ColorSolved).Render("✓")
	}
	return lipgloss.NewStyle().Foreground(ColorUnsolved).Render("○")
}

// NotificationGlyph returns the marker shown on a toast.
func NotificationGlyph(kind api.NotificationKind) string {
	switch kind {
	case api.NotifySuccess:
		return "✓"
	case api.NotifyWarning, api.NotifyError:
		return "!"
	default:
		return "•"
	}
}

// Reusable styles.
var (
	StyleBorder = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder)

	StyleHeader = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
		Foreground(ColorDimmed)

	StyleSelected = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorBright)

	StyleError = lipgloss.NewStyle().
		Foreground(ColorDanger)
)
