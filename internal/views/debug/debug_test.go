package debug

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestAddEntry(t *testing.T) {
	m := New()
	m.Add(KindSession, "anonymous -> joining")
	if len(m.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(m.Entries))
	}
	if m.Entries[0].Kind != KindSession {
		t.Errorf("expected kind %q, got %q", KindSession, m.Entries[0].Kind)
	}
}

func TestAddAtKeepsTimestamp(t *testing.T) {
	m := New()
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	m.AddAt(at, KindInfo, "connected")
	if !m.Entries[0].Time.Equal(at) {
		t.Errorf("Time = %v, want %v", m.Entries[0].Time, at)
	}

	m.AddAt(time.Time{}, KindInfo, "zero time")
	if m.Entries[1].Time.IsZero() {
		t.Error("zero time should be replaced with now")
	}
}

func TestMaxEntries(t *testing.T) {
	m := New()
	for i := 0; i < maxEntries+50; i++ {
		m.Add(KindInfo, "msg")
	}
	if len(m.Entries) != maxEntries {
		t.Errorf("expected %d entries, got %d", maxEntries, len(m.Entries))
	}
}

func TestScrollUpDown(t *testing.T) {
	m := New()
	for i := 0; i < 20; i++ {
		m.Add(KindInfo, "msg")
	}
	if m.Offset != 0 {
		t.Fatal("expected offset 0 after adds")
	}

	m.ScrollUp(5)
	if m.Offset != 5 {
		t.Errorf("expected offset 5, got %d", m.Offset)
	}

	m.ScrollDown(3)
	if m.Offset != 2 {
		t.Errorf("expected offset 2, got %d", m.Offset)
	}

	m.ScrollDown(10) // shouldn't go below 0
	if m.Offset != 0 {
		t.Errorf("expected offset 0, got %d", m.Offset)
	}
}

func TestScrollUpCapped(t *testing.T) {
	m := New()
	for i := 0; i < 5; i++ {
		m.Add(KindInfo, "msg")
	}
	m.ScrollUp(100)
	if m.Offset != 4 { // max is len-1
		t.Errorf("expected offset 4, got %d", m.Offset)
	}
}

func TestKindForLevel(t *testing.T) {
	tests := []struct {
		level slog.Level
		want  string
	}{
		{slog.LevelDebug, KindDebug},
		{slog.LevelInfo, KindInfo},
		{slog.LevelWarn, KindWarn},
		{slog.LevelError, KindError},
		{slog.LevelError + 4, KindError},
	}
	for _, tt := range tests {
		if got := KindForLevel(tt.level); got != tt.want {
			t.Errorf("KindForLevel(%v) = %q, want %q", tt.level, got, tt.want)
		}
	}
}

func TestViewEmpty(t *testing.T) {
	m := New()
	v := m.View(80, 20)
	if !strings.Contains(v, "No events") {
		t.Error("empty view should show 'No events' message")
	}
}

func TestViewWithEntries(t *testing.T) {
	m := New()
	m.Add(KindInfo, "connected")
	m.Add(KindError, "timeout")
	v := m.View(80, 20)
	if !strings.Contains(v, "connected") {
		t.Error("view should contain 'connected'")
	}
	if !strings.Contains(v, "timeout") {
		t.Error("view should contain 'timeout'")
	}
}

func TestAddResetsScroll(t *testing.T) {
	m := New()
	for i := 0; i < 10; i++ {
		m.Add(KindInfo, "msg")
	}
	m.ScrollUp(5)
	m.Add(KindInfo, "new")
	if m.Offset != 0 {
		t.Error("adding entry should reset scroll to 0")
	}
}
