// Package theme provides the Lip Gloss color palette and reusable styles
// for the chat-rooms TUI. It is a leaf package with no internal imports
// to avoid import cycles.
package theme

import (
	"hash/fnv"

	"github.com/charmbracelet/lipgloss"
)

// Connection colors.
var (
	ColorConnecting = lipgloss.Color("#d97706")
	ColorOpen       = lipgloss.Color("#22c55e")
	ColorClosed     = lipgloss.Color("#dc2626")
)

// Session colors.
var (
	ColorAnonymous = lipgloss.Color("#6b7280")
	ColorJoining   = lipgloss.Color("#7c3aed")
	ColorJoined    = lipgloss.Color("#2563eb")
)

// Author palette. Each author name maps to one of these.
var authorColors = []lipgloss.Color{
	lipgloss.Color("#a855f7"),
	lipgloss.Color("#3b82f6"),
	lipgloss.Color("#06b6d4"),
	lipgloss.Color("#22c55e"),
	lipgloss.Color("#f59e0b"),
	lipgloss.Color("#ec4899"),
	lipgloss.Color("#10b981"),
	lipgloss.Color("#67e8f9"),
}

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorBg      = lipgloss.Color("#111827")
	ColorAccent  = lipgloss.Color("#3b82f6")
	ColorHealthy = lipgloss.Color("#22c55e")
	ColorWarning = lipgloss.Color("#d97706")
	ColorDanger  = lipgloss.Color("#dc2626")
)

// ConnectionColor returns the color for a connection state name.
func ConnectionColor(state string) lipgloss.Color {
	switch state {
	case "open":
		return ColorOpen
	case "connecting":
		return ColorConnecting
	case "closed":
		return ColorClosed
	default:
		return ColorDimmed
	}
}

// StatusColor returns the color for a session status name.
func StatusColor(status string) lipgloss.Color {
	switch status {
	case "joined":
		return ColorJoined
	case "joining":
		return ColorJoining
	default:
		return ColorAnonymous
	}
}

// AuthorColor returns a stable color for an author name.
func AuthorColor(name string) lipgloss.Color {
	h := fnv.New32a()
	h.Write([]byte(name))
	return authorColors[h.Sum32()%uint32(len(authorColors))]
}

// Reusable styles.
var (
	StyleBorder = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder)

	StyleFocused = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(ColorAccent)

	StyleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
			Foreground(ColorDimmed)

	StyleSelected = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)

	StyleError = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorDanger)

	StyleBanner = lipgloss.NewStyle().
			Padding(0, 1).
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(ColorDanger).
			Foreground(ColorDanger)
)

// StatusGlyph returns a Unicode glyph for a connection state name.
func StatusGlyph(state string) string {
	switch state {
	case "open":
		return "●"
	case "connecting":
		return "◌"
	case "closed":
		return "○"
	default:
		return "·"
	}
}
