// Package room renders the in-room screen: the transcript, with message
// bodies rendered as Markdown, and the message input.
package room

import (
	"math"
	"strings"
	"time"

	"github.com/SandroK0/chat-rooms/internal/session"
	"github.com/SandroK0/chat-rooms/internal/theme"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"
)

const (
	fps         = 60
	chromeLines = 6 // title, transcript border, input box
)

// FrameMsg advances the scroll animation by one frame.
type FrameMsg struct{}

// Model holds room screen state.
type Model struct {
	Input  textinput.Model
	Width  int
	Height int

	style    string
	renderer *glamour.TermRenderer
	wrap     int
	cache    map[string]string // message ID -> rendered block
	lines    []string

	spring    harmonica.Spring
	pos, vel  float64 // scroll offset in lines from the top
	target    float64
	follow    bool // keep the newest message in view
	animating bool
}

// New creates a room screen. style is a glamour standard style name
// ("dark", "light", "notty", ...).
func New(style string) Model {
	input := textinput.New()
	input.Placeholder = "say something (markdown ok)"
	input.CharLimit = session.MaxMessageLength
	input.Prompt = "› "
	input.Focus()

	return Model{
		Input:  input,
		style:  style,
		cache:  make(map[string]string),
		spring: harmonica.NewSpring(harmonica.FPS(fps), 8.0, 0.9),
		follow: true,
	}
}

// SetSize updates the screen size.
func (m *Model) SetSize(width, height int) {
	m.Width = width
	m.Height = height
	m.Input.Width = width - 8
}

// SetMessages re-renders the transcript from msgs and scrolls toward the
// newest message when following.
func (m *Model) SetMessages(msgs []session.Message) tea.Cmd {
	wrap := m.Width - 6
	if wrap < 20 {
		wrap = 20
	}
	if wrap != m.wrap || m.renderer == nil {
		m.wrap = wrap
		m.cache = make(map[string]string)
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(m.style),
			glamour.WithWordWrap(wrap),
		)
		if err != nil {
			r = nil
		}
		m.renderer = r
	}

	m.lines = m.lines[:0]
	for _, msg := range msgs {
		block, ok := m.cache[msg.ID]
		if !ok {
			block = m.renderMessage(msg)
			m.cache[msg.ID] = block
		}
		m.lines = append(m.lines, strings.Split(block, "\n")...)
	}

	if m.follow {
		return m.scrollTo(float64(m.maxOffset()))
	}
	if m.target > float64(m.maxOffset()) {
		return m.scrollTo(float64(m.maxOffset()))
	}
	return nil
}

func (m *Model) renderMessage(msg session.Message) string {
	author := lipgloss.NewStyle().Bold(true).Foreground(theme.AuthorColor(msg.Author)).Render(msg.Author)
	body := msg.Body
	if m.renderer != nil {
		if out, err := m.renderer.Render(msg.Body); err == nil {
			body = strings.Trim(out, "\n")
		}
	}
	return author + "\n" + body
}

// Reset drops the transcript, for when the session leaves its room.
func (m *Model) Reset() {
	m.lines = nil
	m.cache = make(map[string]string)
	m.pos, m.vel, m.target = 0, 0, 0
	m.follow = true
	m.animating = false
	m.Input.Reset()
}

// ScrollBy moves the scroll target by n lines (negative is up).
func (m *Model) ScrollBy(n int) tea.Cmd {
	target := m.target + float64(n)
	max := float64(m.maxOffset())
	if target < 0 {
		target = 0
	}
	if target > max {
		target = max
	}
	m.follow = target == max
	return m.scrollTo(target)
}

// PageSize returns the number of transcript lines visible at once.
func (m Model) PageSize() int {
	h := m.Height - chromeLines
	if h < 3 {
		h = 3
	}
	return h
}

// Offset returns the current scroll offset, rounded to whole lines.
func (m Model) Offset() int {
	return int(math.Round(m.pos))
}

// Animating reports whether a scroll animation is in progress.
func (m Model) Animating() bool { return m.animating }

func (m *Model) maxOffset() int {
	n := len(m.lines) - m.PageSize()
	if n < 0 {
		return 0
	}
	return n
}

func (m *Model) scrollTo(target float64) tea.Cmd {
	m.target = target
	if m.pos == target && m.vel == 0 {
		return nil
	}
	if m.animating {
		return nil
	}
	m.animating = true
	return frame()
}

// Animate advances the spring one frame. It returns nil once settled.
func (m *Model) Animate(FrameMsg) tea.Cmd {
	if !m.animating {
		return nil
	}
	m.pos, m.vel = m.spring.Update(m.pos, m.vel, m.target)
	if math.Abs(m.pos-m.target) < 0.05 && math.Abs(m.vel) < 0.05 {
		m.pos, m.vel = m.target, 0
		m.animating = false
		return nil
	}
	return frame()
}

func frame() tea.Cmd {
	return tea.Tick(time.Second/fps, func(time.Time) tea.Msg { return FrameMsg{} })
}

// Update forwards msg to the message input.
func (m *Model) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	m.Input, cmd = m.Input.Update(msg)
	return cmd
}

// View renders the room screen.
func (m Model) View(sess session.Session) string {
	width := m.Width
	if width < 40 {
		width = 40
	}
	inner := width - 4

	title := theme.StyleHeader.Render(" #"+sess.RoomName+" ") +
		theme.StyleDimmed.Render(" as "+sess.DisplayName)

	page := m.PageSize()
	var body string
	if len(m.lines) == 0 {
		body = theme.StyleDimmed.Render("  No messages yet.")
	} else {
		start := m.Offset()
		if max := m.maxOffset(); start > max {
			start = max
		}
		if start < 0 {
			start = 0
		}
		end := start + page
		if end > len(m.lines) {
			end = len(m.lines)
		}
		body = strings.Join(m.lines[start:end], "\n")
		if rest := len(m.lines) - end; rest > 0 {
			body += "\n" + theme.StyleDimmed.Render("  ↓ more below")
		}
	}

	transcript := theme.StyleBorder.Width(inner).Height(page).Render(body)
	input := theme.StyleFocused.Width(inner).Render(m.Input.View())
	return lipgloss.JoinVertical(lipgloss.Left, title, transcript, input)
}
