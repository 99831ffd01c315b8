package lobby

import (
	"errors"
	"strings"
	"testing"

	"github.com/SandroK0/chat-rooms/internal/session"
)

func TestNextFieldCycles(t *testing.T) {
	m := New()
	if m.Focus() != FieldUsername {
		t.Fatalf("initial focus = %d, want username", m.Focus())
	}
	want := []Field{FieldNewRoom, FieldRooms, FieldUsername}
	for _, w := range want {
		m.NextField()
		if m.Focus() != w {
			t.Errorf("focus = %d, want %d", m.Focus(), w)
		}
	}
	if !m.Username.Focused() || m.NewRoom.Focused() {
		t.Error("only the username input should be focused")
	}
}

func TestSetRoomsKeepsSelection(t *testing.T) {
	m := New()
	m.SetRooms([]string{"alpha", "beta", "gamma"})
	m.SelectNext()
	if got := m.SelectedRoom(); got != "beta" {
		t.Fatalf("SelectedRoom() = %q, want beta", got)
	}

	m.SetRooms([]string{"aardvark", "alpha", "beta"})
	if got := m.SelectedRoom(); got != "beta" {
		t.Errorf("SelectedRoom() after refresh = %q, want beta", got)
	}

	m.SetRooms([]string{"delta"})
	if got := m.SelectedRoom(); got != "delta" {
		t.Errorf("SelectedRoom() after removal = %q, want delta", got)
	}
}

func TestSelectionWraps(t *testing.T) {
	m := New()
	m.SetRooms([]string{"alpha", "beta"})
	m.SelectPrev()
	if got := m.SelectedRoom(); got != "beta" {
		t.Errorf("SelectPrev() from top = %q, want beta", got)
	}
	m.SelectNext()
	if got := m.SelectedRoom(); got != "alpha" {
		t.Errorf("SelectNext() from bottom = %q, want alpha", got)
	}
}

func TestSelectedRoomEmpty(t *testing.T) {
	m := New()
	m.SelectNext()
	if got := m.SelectedRoom(); got != "" {
		t.Errorf("SelectedRoom() = %q, want empty", got)
	}
}

func TestViewStates(t *testing.T) {
	m := New()
	m.Width = 80

	v := m.View(session.Session{}, nil, nil)
	if !strings.Contains(v, "Loading rooms") {
		t.Error("view before first listing should say loading")
	}
	if !strings.Contains(v, "Not in a room") {
		t.Error("view should show the current membership")
	}

	m.SetRooms(nil)
	if v := m.View(session.Session{}, nil, nil); !strings.Contains(v, "No rooms yet") {
		t.Error("empty listing should say no rooms")
	}

	m.SetRooms([]string{"alpha"})
	fault := &session.Fault{Code: "RoomNotFound", Message: "no such room"}
	v = m.View(session.Session{DisplayName: "bob"}, fault, errors.New("connection refused"))
	for _, want := range []string{"alpha", "RoomNotFound", "connection refused", "bob"} {
		if !strings.Contains(v, want) {
			t.Errorf("view should contain %q", want)
		}
	}
}
