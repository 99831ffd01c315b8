// Package lobby renders the screen shown while not in a room: identity and
// new-room inputs, the room directory, and the live server error.
package lobby

import (
	"fmt"
	"strings"

	"github.com/SandroK0/chat-rooms/internal/session"
	"github.com/SandroK0/chat-rooms/internal/theme"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Field is the focusable part of the lobby.
type Field int

const (
	FieldUsername Field = iota
	FieldNewRoom
	FieldRooms
	fieldCount
)

// Model holds lobby state.
type Model struct {
	Username textinput.Model
	NewRoom  textinput.Model
	Width    int

	rooms    []string
	loaded   bool
	selected int
	focus    Field
}

// New creates a lobby with the username field focused.
func New() Model {
	user := textinput.New()
	user.Placeholder = "your name"
	user.CharLimit = session.MaxUsernameLength
	user.Prompt = "name › "
	user.Focus()

	room := textinput.New()
	room.Placeholder = "new room name"
	room.CharLimit = session.MaxRoomNameLength
	room.Prompt = "room › "

	return Model{Username: user, NewRoom: room}
}

// Focus returns the focused field.
func (m Model) Focus() Field { return m.focus }

// NextField moves focus to the next field.
func (m *Model) NextField() tea.Cmd {
	return m.SetFocus((m.focus + 1) % fieldCount)
}

// SetFocus focuses f and blurs the others.
func (m *Model) SetFocus(f Field) tea.Cmd {
	m.focus = f
	m.Username.Blur()
	m.NewRoom.Blur()
	switch f {
	case FieldUsername:
		return m.Username.Focus()
	case FieldNewRoom:
		return m.NewRoom.Focus()
	}
	return nil
}

// SetRooms replaces the room list, keeping the selection on the same name
// when it still exists.
func (m *Model) SetRooms(names []string) {
	current := m.SelectedRoom()
	m.rooms = names
	m.loaded = true
	m.selected = 0
	for i, n := range names {
		if n == current {
			m.selected = i
			break
		}
	}
}

// Rooms returns the listed room names.
func (m Model) Rooms() []string { return m.rooms }

// SelectNext moves the room selection down, wrapping.
func (m *Model) SelectNext() {
	if len(m.rooms) > 0 {
		m.selected = (m.selected + 1) % len(m.rooms)
	}
}

// SelectPrev moves the room selection up, wrapping.
func (m *Model) SelectPrev() {
	if len(m.rooms) > 0 {
		m.selected = (m.selected - 1 + len(m.rooms)) % len(m.rooms)
	}
}

// SelectedRoom returns the highlighted room, or "".
func (m Model) SelectedRoom() string {
	if m.selected < 0 || m.selected >= len(m.rooms) {
		return ""
	}
	return m.rooms[m.selected]
}

// Update forwards msg to the focused text input.
func (m *Model) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch m.focus {
	case FieldUsername:
		m.Username, cmd = m.Username.Update(msg)
	case FieldNewRoom:
		m.NewRoom, cmd = m.NewRoom.Update(msg)
	}
	return cmd
}

// View renders the lobby. listErr is the last directory failure, if any.
func (m Model) View(sess session.Session, fault *session.Fault, listErr error) string {
	width := m.Width
	if width < 40 {
		width = 40
	}
	inner := width - 4

	var sections []string
	sections = append(sections, theme.StyleHeader.Render(" CHAT ROOMS "))

	if fault != nil {
		sections = append(sections, theme.StyleBanner.Width(inner).Render("✗ "+fault.String()))
	}

	sections = append(sections,
		m.box(FieldUsername, inner, m.Username.View()),
		m.box(FieldNewRoom, inner, m.NewRoom.View()),
		m.box(FieldRooms, inner, m.roomList(listErr)),
	)

	current := "Not in a room"
	switch {
	case sess.Status == session.Joining:
		current = "Joining…"
	case sess.RoomName != "":
		current = fmt.Sprintf("In #%s as %s", sess.RoomName, sess.DisplayName)
	}
	if sess.DisplayName != "" && sess.RoomName == "" {
		current += theme.StyleDimmed.Render(" (name: " + sess.DisplayName + ")")
	}
	sections = append(sections, theme.StyleDimmed.Render("  "+current))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) box(f Field, width int, content string) string {
	style := theme.StyleBorder
	if m.focus == f {
		style = theme.StyleFocused
	}
	return style.Width(width).Render(content)
}

func (m Model) roomList(listErr error) string {
	var lines []string
	lines = append(lines, theme.StyleHeader.Render("Rooms"))

	switch {
	case !m.loaded && listErr == nil:
		lines = append(lines, theme.StyleDimmed.Render("  Loading rooms…"))
	case len(m.rooms) == 0:
		lines = append(lines, theme.StyleDimmed.Render("  No rooms yet. Create one above."))
	}
	for i, name := range m.rooms {
		prefix := "  "
		line := name
		if i == m.selected {
			prefix = "> "
			line = theme.StyleSelected.Render(name)
		}
		lines = append(lines, prefix+line)
	}
	if listErr != nil {
		lines = append(lines, theme.StyleError.Render("  listing failed: "+listErr.Error()))
	}
	return strings.Join(lines, "\n")
}
