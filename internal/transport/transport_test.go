package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// newTestServer starts a websocket server that runs handler for each
// connection and returns its ws:// URL.
func newTestServer(t *testing.T, handler func(*websocket.Conn)) string {
	t.Helper()
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer c.Close()
		handler(c)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager(Options{})
	t.Cleanup(m.Shutdown)
	return m
}

func nextEvent(t *testing.T, m *Manager) Event {
	t.Helper()
	select {
	case ev := <-m.Events():
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for transport event")
	}
	return Event{}
}

// drainUntilBlocked waits on the server side until the client goes away.
func drainUntilBlocked(c *websocket.Conn) {
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			return
		}
	}
}

func TestConnectOpensAndEchoes(t *testing.T) {
	url := newTestServer(t, func(c *websocket.Conn) {
		for {
			mt, data, err := c.ReadMessage()
			if err != nil {
				return
			}
			if err := c.WriteMessage(mt, data); err != nil {
				return
			}
		}
	})
	m := newTestManager(t)

	conn := m.Connect(context.Background(), url)
	t.Cleanup(func() { conn.Close() })

	ev := nextEvent(t, m)
	if ev.Kind != EventOpened || ev.Conn != conn {
		t.Fatalf("first event = %v for conn %d, want opened for conn %d", ev.Kind, ev.Conn.ID(), conn.ID())
	}
	if conn.State() != Open {
		t.Fatalf("State() = %v, want open", conn.State())
	}

	if err := conn.Send([]byte(`{"eventType":"x","data":{}}`)); err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	ev = nextEvent(t, m)
	if ev.Kind != EventFrame {
		t.Fatalf("event = %v, want frame", ev.Kind)
	}
	if string(ev.Data) != `{"eventType":"x","data":{}}` {
		t.Errorf("frame = %s", ev.Data)
	}
}

func TestFramesArriveInOrder(t *testing.T) {
	const n = 50
	url := newTestServer(t, func(c *websocket.Conn) {
		for i := 0; i < n; i++ {
			if err := c.WriteMessage(websocket.TextMessage, []byte(strconv.Itoa(i))); err != nil {
				return
			}
		}
		drainUntilBlocked(c)
	})
	m := newTestManager(t)
	conn := m.Connect(context.Background(), url)
	t.Cleanup(func() { conn.Close() })

	if ev := nextEvent(t, m); ev.Kind != EventOpened {
		t.Fatalf("first event = %v, want opened", ev.Kind)
	}
	for i := 0; i < n; i++ {
		ev := nextEvent(t, m)
		if ev.Kind != EventFrame {
			t.Fatalf("event %d = %v, want frame", i, ev.Kind)
		}
		if got := string(ev.Data); got != strconv.Itoa(i) {
			t.Fatalf("frame %d = %q, want %q", i, got, strconv.Itoa(i))
		}
	}
}

func TestDialFailureReportsClosed(t *testing.T) {
	m := newTestManager(t)

	conn := m.Connect(context.Background(), "ws://127.0.0.1:1/ws")
	ev := nextEvent(t, m)
	if ev.Kind != EventClosed {
		t.Fatalf("event = %v, want closed", ev.Kind)
	}
	if ev.Err == nil {
		t.Error("closed after dial failure should carry an error")
	}
	if conn.State() != Closed {
		t.Errorf("State() = %v, want closed", conn.State())
	}
	if err := conn.Send([]byte("x")); !errors.Is(err, ErrNotOpen) {
		t.Errorf("Send() on closed conn = %v, want ErrNotOpen", err)
	}
}

func TestServerCloseReportsClosed(t *testing.T) {
	url := newTestServer(t, func(c *websocket.Conn) {})
	m := newTestManager(t)

	conn := m.Connect(context.Background(), url)
	if ev := nextEvent(t, m); ev.Kind != EventOpened {
		t.Fatalf("first event = %v, want opened", ev.Kind)
	}
	ev := nextEvent(t, m)
	if ev.Kind != EventClosed || ev.Conn != conn {
		t.Fatalf("event = %v, want closed for this conn", ev.Kind)
	}
	if ev.Err == nil {
		t.Error("remote close should carry an error")
	}
	if err := conn.Send([]byte("x")); !errors.Is(err, ErrNotOpen) {
		t.Errorf("Send() after remote close = %v, want ErrNotOpen", err)
	}
}

func TestLocalCloseEmitsSingleClosed(t *testing.T) {
	url := newTestServer(t, drainUntilBlocked)
	m := newTestManager(t)

	conn := m.Connect(context.Background(), url)
	if ev := nextEvent(t, m); ev.Kind != EventOpened {
		t.Fatalf("first event = %v, want opened", ev.Kind)
	}

	conn.Close()
	conn.Close()

	ev := nextEvent(t, m)
	if ev.Kind != EventClosed {
		t.Fatalf("event = %v, want closed", ev.Kind)
	}
	if ev.Err != nil {
		t.Errorf("local close Err = %v, want nil", ev.Err)
	}

	select {
	case extra := <-m.Events():
		t.Fatalf("unexpected event after closed: %v", extra.Kind)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestCloseWhileConnecting(t *testing.T) {
	m := newTestManager(t)
	// Non-routable address: the dial hangs until the context is cancelled.
	conn := m.Connect(context.Background(), "ws://10.255.255.1:81/ws")
	conn.Close()

	ev := nextEvent(t, m)
	if ev.Kind != EventClosed {
		t.Fatalf("event = %v, want closed", ev.Kind)
	}
	if conn.State() != Closed {
		t.Errorf("State() = %v, want closed", conn.State())
	}
}

func TestConnectionsGetDistinctIDs(t *testing.T) {
	m := newTestManager(t)
	a := m.Connect(context.Background(), "ws://127.0.0.1:1/ws")
	b := m.Connect(context.Background(), "ws://127.0.0.1:1/ws")
	if a.ID() == b.ID() {
		t.Errorf("IDs should differ, both %d", a.ID())
	}
	nextEvent(t, m)
	nextEvent(t, m)
}

func TestListenReturnsNilAfterShutdown(t *testing.T) {
	m := NewManager(Options{})
	m.Shutdown()
	if msg := m.Listen(context.Background())(); msg != nil {
		t.Errorf("Listen after Shutdown = %v, want nil", msg)
	}
}

func TestStateString(t *testing.T) {
	tests := map[State]string{
		Connecting: "connecting",
		Open:       "open",
		Closed:     "closed",
		State(9):   "unknown",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", s, got, want)
		}
	}
}
