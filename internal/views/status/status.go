package status

import (
	"fmt"
	"time"

	"github.com/SandroK0/chat-rooms/internal/session"
	"github.com/SandroK0/chat-rooms/internal/theme"
	"github.com/SandroK0/chat-rooms/internal/transport"
	"github.com/charmbracelet/lipgloss"
)

// Model holds the status bar state.
type Model struct {
	Conn    transport.State
	Session session.Session
	// Retry is the time left before the next connection attempt, zero
	// when none is scheduled.
	Retry  time.Duration
	Notice string
	Width  int
}

// New creates a status bar model.
func New() Model {
	return Model{Conn: transport.Connecting}
}

// View renders the status bar.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}

	conn := m.Conn.String()
	connStr := lipgloss.NewStyle().Foreground(theme.ConnectionColor(conn)).
		Render(theme.StatusGlyph(conn) + " " + conn)
	if m.Conn == transport.Closed && m.Retry > 0 {
		connStr += theme.StyleDimmed.Render(fmt.Sprintf(" (retry in %ds)", int(m.Retry.Round(time.Second)/time.Second)))
	}

	st := m.Session.Status.String()
	sessStr := lipgloss.NewStyle().Foreground(theme.StatusColor(st)).Render(st)
	if m.Session.RoomName != "" {
		sessStr += " " + theme.StyleHeader.Render("#"+m.Session.RoomName)
	}
	if m.Session.DisplayName != "" {
		sessStr += theme.StyleDimmed.Render(" as ") + m.Session.DisplayName
	}

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	content := connStr + sep + sessStr
	if m.Notice != "" {
		content += sep + theme.StyleError.Render(m.Notice)
	}

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)
}
