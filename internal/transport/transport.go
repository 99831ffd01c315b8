// Package transport owns the single websocket connection to the chat-rooms
// server. It knows nothing about the protocol: it dials, reports lifecycle
// changes and raw frames, and writes frames it is handed.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
)

const (
	writeTimeout = 10 * time.Second
	pongTimeout  = 60 * time.Second
	pingInterval = 30 * time.Second

	eventBuffer = 64
)

// ErrNotOpen is returned by Send when the connection is not open.
var ErrNotOpen = errors.New("connection not open")

// State is the observable lifecycle of a Conn. It only moves forward.
type State int32

const (
	Connecting State = iota
	Open
	Closed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// EventKind tags a transport notification.
type EventKind int

const (
	EventOpened EventKind = iota + 1
	EventFrame
	EventClosed
)

func (k EventKind) String() string {
	switch k {
	case EventOpened:
		return "opened"
	case EventFrame:
		return "frame"
	case EventClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Event is a lifecycle notification or an inbound frame for one Conn.
// Events are delivered in order on Manager.Events.
type Event struct {
	Kind EventKind
	Conn *Conn
	Data []byte // EventFrame only
	Err  error  // EventClosed only; nil after a local Close
}

// Options tune a Manager. Zero values select defaults.
type Options struct {
	Dialer          *websocket.Dialer
	MaxMessageBytes int64
	Logger          *slog.Logger
}

// Manager creates connections and funnels all of their notifications into
// one channel, so a single consumer observes them in arrival order.
type Manager struct {
	dialer   *websocket.Dialer
	maxBytes int64
	logger   *slog.Logger

	events chan Event
	done   chan struct{}
	stop   sync.Once
	nextID atomic.Uint64
}

// NewManager returns a Manager.
func NewManager(opts Options) *Manager {
	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		dialer:   dialer,
		maxBytes: opts.MaxMessageBytes,
		logger:   logger,
		events:   make(chan Event, eventBuffer),
		done:     make(chan struct{}),
	}
}

// Events returns the notification channel shared by every Conn.
func (m *Manager) Events() <-chan Event {
	return m.events
}

// Listen returns a Bubble Tea command that waits for the next Event.
// Re-issue it after handling each Event.
func (m *Manager) Listen(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		select {
		case ev := <-m.events:
			return ev
		case <-ctx.Done():
			return nil
		case <-m.done:
			return nil
		}
	}
}

// Shutdown stops delivery of further events. Connections should be closed
// by their owner before calling it.
func (m *Manager) Shutdown() {
	m.stop.Do(func() { close(m.done) })
}

// Connect starts dialing endpoint and returns the new handle immediately in
// the Connecting state. Dial failures are reported as an EventClosed.
func (m *Manager) Connect(ctx context.Context, endpoint string) *Conn {
	ctx, cancel := context.WithCancel(ctx)
	c := &Conn{
		id:       m.nextID.Add(1),
		endpoint: endpoint,
		manager:  m,
		cancel:   cancel,
	}
	go c.run(ctx)
	return c
}

func (m *Manager) emit(ev Event) {
	select {
	case m.events <- ev:
	case <-m.done:
	}
}

// Conn is one connection attempt. Once Closed it stays closed; retrying
// means calling Manager.Connect again.
type Conn struct {
	id       uint64
	endpoint string
	manager  *Manager
	cancel   context.CancelFunc

	state atomic.Int32

	mu      sync.Mutex
	writeMu sync.Mutex // serialises all conn writes (ping, frames)
	ws      *websocket.Conn

	closeOnce sync.Once
	cause     error // first failure; nil after a local Close
}

// ID returns a process-unique handle number.
func (c *Conn) ID() uint64 { return c.id }

// Endpoint returns the dialed URL.
func (c *Conn) Endpoint() string { return c.endpoint }

// State returns the current lifecycle state.
func (c *Conn) State() State { return State(c.state.Load()) }

// Send writes one text frame. It does not queue or retry.
func (c *Conn) Send(frame []byte) error {
	if c.State() != Open {
		return ErrNotOpen
	}
	c.mu.Lock()
	ws := c.ws
	c.mu.Unlock()
	if ws == nil {
		return ErrNotOpen
	}

	c.writeMu.Lock()
	ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	err := ws.WriteMessage(websocket.TextMessage, frame)
	c.writeMu.Unlock()
	if err != nil {
		c.finish(fmt.Errorf("write: %w", err))
		return err
	}
	return nil
}

// Close tears the connection down. It is safe to call more than once and
// from any state.
func (c *Conn) Close() error {
	c.finish(nil)
	return nil
}

// run is the only goroutine that emits events for c.
func (c *Conn) run(ctx context.Context) {
	defer c.emitClosed()
	logger := c.manager.logger.With("conn", c.id)

	ws, _, err := c.manager.dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		logger.Debug("dial failed", "endpoint", c.endpoint, "error", err)
		c.finish(fmt.Errorf("dial %s: %w", c.endpoint, err))
		return
	}
	if c.manager.maxBytes > 0 {
		ws.SetReadLimit(c.manager.maxBytes)
	}

	c.mu.Lock()
	if c.State() == Closed {
		c.mu.Unlock()
		ws.Close()
		return
	}
	c.ws = ws
	c.state.Store(int32(Open))
	c.mu.Unlock()

	logger.Debug("connected", "endpoint", c.endpoint)
	c.manager.emit(Event{Kind: EventOpened, Conn: c})

	go c.pingLoop(ctx, ws)
	c.readLoop(ws)
}

func (c *Conn) readLoop(ws *websocket.Conn) {
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(pongTimeout))
		return nil
	})
	ws.SetReadDeadline(time.Now().Add(pongTimeout))

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			c.finish(fmt.Errorf("read: %w", err))
			return
		}
		if c.State() != Open {
			return
		}
		c.manager.emit(Event{Kind: EventFrame, Conn: c, Data: data})
	}
}

// pingLoop sends periodic pings on the given connection. It exits when the
// context is cancelled or a ping fails.
func (c *Conn) pingLoop(ctx context.Context, ws *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.writeMu.Lock()
			ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			err := ws.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// finish moves the handle to Closed exactly once. A nil cause marks a
// local Close.
func (c *Conn) finish(cause error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.state.Store(int32(Closed))
		c.cause = cause
		ws := c.ws
		c.mu.Unlock()

		c.cancel()
		if ws == nil {
			return
		}
		if cause == nil {
			c.writeMu.Lock()
			ws.SetWriteDeadline(time.Now().Add(time.Second))
			ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			c.writeMu.Unlock()
		}
		ws.Close()
	})
}

func (c *Conn) emitClosed() {
	c.finish(nil)
	c.mu.Lock()
	cause := c.cause
	c.mu.Unlock()
	if cause != nil {
		c.manager.logger.Debug("connection closed", "conn", c.id, "error", cause)
	}
	c.manager.emit(Event{Kind: EventClosed, Conn: c, Err: cause})
}
