// Package app is the root Bubble Tea model. Its Update is the single
// consumer of every trigger: transport events, directory results, key
// presses, reconnect timers and log records. Background goroutines only
// post into channels that Update drains.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/SandroK0/chat-rooms/internal/directory"
	"github.com/SandroK0/chat-rooms/internal/logging"
	"github.com/SandroK0/chat-rooms/internal/session"
	"github.com/SandroK0/chat-rooms/internal/theme"
	"github.com/SandroK0/chat-rooms/internal/transport"
	"github.com/SandroK0/chat-rooms/internal/views/debug"
	"github.com/SandroK0/chat-rooms/internal/views/lobby"
	"github.com/SandroK0/chat-rooms/internal/views/room"
	"github.com/SandroK0/chat-rooms/internal/views/status"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Overlay identifies which modal is active.
type Overlay int

const (
	OverlayNone Overlay = iota
	OverlayDebug
)

// startMsg opens the first connection.
type startMsg struct{}

// Deps wires the model to the rest of the client. Logs may be nil.
type Deps struct {
	Transport *transport.Manager
	Session   *session.Machine
	Directory *directory.Directory
	Logs      *logging.TUIHandler
	Logger    *slog.Logger

	Endpoint      string
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	MarkdownStyle string
}

// changeLog collects session changes between Update calls.
type changeLog struct{ pending []session.Change }

func (c *changeLog) add(ch session.Change) { c.pending = append(c.pending, ch) }

func (c *changeLog) drain() []session.Change {
	out := c.pending
	c.pending = nil
	return out
}

// Model is the root Bubble Tea model.
type Model struct {
	ctx    context.Context
	cancel context.CancelFunc

	transport *transport.Manager
	machine   *session.Machine
	directory *directory.Directory
	logs      *logging.TUIHandler
	logger    *slog.Logger
	endpoint  string

	conn      *transport.Conn
	connState transport.State
	reconnect *reconnector
	changes   *changeLog

	keys    KeyMap
	width   int
	height  int
	overlay Overlay

	// Sub-views.
	statusBar status.Model
	lobby     lobby.Model
	room      room.Model
	debug     debug.Model
}

// New creates the root model. Nothing is dialed until Init runs.
func New(ctx context.Context, deps Deps) Model {
	ctx, cancel := context.WithCancel(ctx)
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	style := deps.MarkdownStyle
	if style == "" {
		style = "dark"
	}
	changes := &changeLog{}
	deps.Session.Subscribe(changes.add)

	m := Model{
		ctx:       ctx,
		cancel:    cancel,
		transport: deps.Transport,
		machine:   deps.Session,
		directory: deps.Directory,
		logs:      deps.Logs,
		logger:    logger,
		endpoint:  deps.Endpoint,
		connState: transport.Connecting,
		reconnect: newReconnector(deps.BaseDelay, deps.MaxDelay),
		changes:   changes,
		keys:      DefaultKeyMap(),
		statusBar: status.New(),
		lobby:     lobby.New(),
		room:      room.New(style),
		debug:     debug.New(),
	}
	m.statusBar.Session = m.machine.Session()
	return m
}

// Init starts the connection and the background listeners.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		func() tea.Msg { return startMsg{} },
		m.transport.Listen(m.ctx),
		m.directory.Listen(m.ctx),
	}
	if m.logs != nil {
		cmds = append(cmds, m.logs.Listen(m.ctx))
	}
	return tea.Batch(cmds...)
}

// Close tears down the current connection.
func (m Model) Close() {
	if m.conn != nil {
		m.conn.Close()
	}
	m.cancel()
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusBar.Width = msg.Width
		m.lobby.Width = msg.Width
		m.room.SetSize(msg.Width, msg.Height-6)

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			m.Close()
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m, cmd = m.handleKey(msg)
		cmds = append(cmds, cmd)

	case startMsg:
		m.connect()
		m.directory.Invalidate()

	case transport.Event:
		m.handleTransport(msg, &cmds)
		cmds = append(cmds, m.transport.Listen(m.ctx))

	case reconnectMsg:
		if m.reconnect.pending(msg.gen) && m.ctx.Err() == nil {
			m.reconnect.due = time.Time{}
			m.connect()
		}

	case countdownMsg:
		if m.reconnect.pending(msg.gen) {
			cmds = append(cmds, countdown(msg.gen))
		}

	case directory.Result:
		if m.directory.Apply(msg) {
			m.lobby.SetRooms(m.directory.Names())
		}
		cmds = append(cmds, m.directory.Listen(m.ctx))

	case logging.Record:
		m.debug.AddAt(msg.Time, debug.KindForLevel(msg.Level), msg.Summary)
		if m.logs != nil {
			cmds = append(cmds, m.logs.Listen(m.ctx))
		}

	case room.FrameMsg:
		cmds = append(cmds, m.room.Animate(msg))

	default:
		if m.inRoom() {
			cmds = append(cmds, m.room.Update(msg))
		} else {
			cmds = append(cmds, m.lobby.Update(msg))
		}
	}

	cmds = append(cmds, m.sync())
	return m, tea.Batch(cmds...)
}

func (m *Model) connect() {
	m.conn = m.transport.Connect(m.ctx, m.endpoint)
	m.connState = transport.Connecting
	m.machine.Attach(m.conn)
	m.logger.Info("connecting", "endpoint", m.endpoint, "conn", m.conn.ID())
}

func (m *Model) handleTransport(ev transport.Event, cmds *[]tea.Cmd) {
	if ev.Conn != m.conn {
		m.logger.Debug("dropping event from stale connection", "kind", ev.Kind, "conn", ev.Conn.ID())
		return
	}
	switch ev.Kind {
	case transport.EventOpened:
		m.connState = transport.Open
		m.reconnect.reset()
		m.logger.Info("connected", "conn", ev.Conn.ID())
		m.machine.Opened(ev.Conn)

	case transport.EventFrame:
		m.machine.Receive(ev.Conn, ev.Data)

	case transport.EventClosed:
		m.connState = transport.Closed
		m.machine.Closed(ev.Conn, ev.Err)
		if m.ctx.Err() != nil {
			return
		}
		d, cmd := m.reconnect.schedule(time.Now())
		m.logger.Info("reconnect scheduled", "in", d.Round(time.Millisecond))
		*cmds = append(*cmds, cmd)
	}
}

func (m Model) inRoom() bool {
	return m.machine.Session().Status == session.Joined
}

// sync copies machine state into the views and logs session changes.
func (m *Model) sync() tea.Cmd {
	var cmd tea.Cmd
	for _, c := range m.changes.drain() {
		m.debug.Add(debug.KindSession, describe(c))
		if c.From.Status == session.Joined && (c.To.Status != session.Joined || c.To.RoomName != c.From.RoomName) {
			m.room.Reset()
		}
	}

	sess := m.machine.Session()
	if sess.Status == session.Joined {
		cmd = m.room.SetMessages(m.machine.Messages())
	}
	m.statusBar.Session = sess
	m.statusBar.Conn = m.connState
	m.statusBar.Retry = 0
	if m.connState == transport.Closed {
		m.statusBar.Retry = m.reconnect.remaining(time.Now())
	}
	return cmd
}

func describe(c session.Change) string {
	s := fmt.Sprintf("%s → %s (%s)", c.From.Status, c.To.Status, c.Cause)
	if c.To.RoomName != "" {
		s += " #" + c.To.RoomName
	}
	return s
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	if m.overlay != OverlayNone {
		switch {
		case key.Matches(msg, m.keys.Escape), key.Matches(msg, m.keys.Debug):
			m.overlay = OverlayNone
		case key.Matches(msg, m.keys.Up):
			m.debug.ScrollUp(1)
		case key.Matches(msg, m.keys.Down):
			m.debug.ScrollDown(1)
		case key.Matches(msg, m.keys.PageUp):
			m.debug.ScrollUp(10)
		case key.Matches(msg, m.keys.PageDown):
			m.debug.ScrollDown(10)
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Debug):
		m.overlay = OverlayDebug
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		m.directory.Invalidate()
		return m, nil

	case key.Matches(msg, m.keys.Leave):
		m.report(m.machine.LeaveRoom())
		return m, nil

	case key.Matches(msg, m.keys.Escape):
		m.machine.DismissFault()
		m.statusBar.Notice = ""
		return m, nil
	}

	if m.inRoom() {
		return m.handleRoomKey(msg)
	}
	return m.handleLobbyKey(msg)
}

func (m Model) handleRoomKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Enter):
		if err := m.machine.SendMessage(m.room.Input.Value()); err != nil {
			m.report(err)
			return m, nil
		}
		m.report(nil)
		m.room.Input.Reset()
		return m, nil

	case key.Matches(msg, m.keys.PageUp):
		return m, m.room.ScrollBy(-m.room.PageSize())

	case key.Matches(msg, m.keys.PageDown):
		return m, m.room.ScrollBy(m.room.PageSize())
	}
	return m, m.room.Update(msg)
}

func (m Model) handleLobbyKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Tab):
		return m, m.lobby.NextField()

	case key.Matches(msg, m.keys.Up):
		m.lobby.SelectPrev()
		return m, nil

	case key.Matches(msg, m.keys.Down):
		m.lobby.SelectNext()
		return m, nil

	case key.Matches(msg, m.keys.Enter):
		user := m.lobby.Username.Value()
		if m.lobby.Focus() == lobby.FieldNewRoom {
			err := m.machine.CreateRoom(m.lobby.NewRoom.Value(), user)
			m.report(err)
			if err == nil {
				m.lobby.NewRoom.Reset()
			}
			return m, nil
		}
		m.report(m.machine.JoinRoom(m.lobby.SelectedRoom(), user))
		return m, nil
	}
	return m, m.lobby.Update(msg)
}

// report shows a local precondition failure in the status bar, or clears
// it on success.
func (m *Model) report(err error) {
	if err == nil {
		m.statusBar.Notice = ""
		return
	}
	m.statusBar.Notice = err.Error()
	m.logger.Debug("action rejected", "error", err)
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	if m.overlay == OverlayDebug {
		return m.debug.View(m.width, m.height)
	}

	sections := []string{m.statusBar.View()}
	if m.connState == transport.Closed {
		sections = append(sections, m.renderDisconnected())
	}

	sess := m.machine.Session()
	if sess.Status == session.Joined {
		if f := m.machine.Fault(); f != nil {
			sections = append(sections, theme.StyleBanner.Render("✗ "+f.String()))
		}
		sections = append(sections,
			m.room.View(sess),
			theme.StyleDimmed.Render("  enter:send  pgup/pgdn:scroll  ctrl+l:leave  ctrl+d:debug  ctrl+c:quit"),
		)
	} else {
		sections = append(sections,
			m.lobby.View(sess, m.machine.Fault(), m.directory.Err()),
			theme.StyleDimmed.Render("  tab:field  ↑/↓:room  enter:join/create  ctrl+r:refresh  ctrl+l:leave  ctrl+d:debug  ctrl+c:quit"),
		)
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderDisconnected() string {
	msg := "Reconnecting…"
	if d := m.reconnect.remaining(time.Now()); d > 0 {
		msg = fmt.Sprintf("Reconnecting in %ds…", int(d.Round(time.Second)/time.Second))
	}
	return theme.StyleBanner.Render("DISCONNECTED  " + msg)
}
