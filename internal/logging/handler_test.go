package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFormatIncludesAttrs(t *testing.T) {
	h := NewTUIHandler(slog.LevelDebug)
	derived := h.WithAttrs([]slog.Attr{slog.String("conn", "3")}).(*TUIHandler)

	rec := slog.NewRecord(time.Unix(0, 0), slog.LevelWarn, "discarding malformed frame", 0)
	rec.AddAttrs(slog.String("error", "missing token"))

	got := derived.format(rec)
	want := "discarding malformed frame (conn=3, error=missing token)"
	if got.Summary != want {
		t.Errorf("Summary = %q, want %q", got.Summary, want)
	}
	if got.Level != slog.LevelWarn {
		t.Errorf("Level = %v, want WARN", got.Level)
	}
}

func TestFormatGroupsPrefixRecordAttrs(t *testing.T) {
	h := NewTUIHandler(slog.LevelDebug).WithGroup("session").(*TUIHandler)
	rec := slog.NewRecord(time.Now(), slog.LevelInfo, "change", 0)
	rec.AddAttrs(slog.String("to", "joined"))

	if got := h.format(rec).Summary; got != "change (session.to=joined)" {
		t.Errorf("Summary = %q", got)
	}
}

func TestEnabledRespectsLevel(t *testing.T) {
	h := NewTUIHandler(slog.LevelInfo)
	if h.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug should be disabled at info level")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Error("error should be enabled at info level")
	}
}

func TestHandleQueuesForListen(t *testing.T) {
	h := NewTUIHandler(slog.LevelDebug)
	slog.New(h).With("conn", 1).Info("connected")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg := h.Listen(ctx)()
	rec, ok := msg.(Record)
	if !ok {
		t.Fatalf("Listen() = %T, want Record", msg)
	}
	if rec.Summary != "connected (conn=1)" {
		t.Errorf("Summary = %q", rec.Summary)
	}
}

func TestHandleDropsWhenFull(t *testing.T) {
	h := NewTUIHandler(slog.LevelDebug)
	logger := slog.New(h)
	for i := 0; i < recordBuffer+10; i++ {
		logger.Debug("spam")
	}
	if got := h.Dropped(); got != 10 {
		t.Errorf("Dropped() = %d, want 10", got)
	}
}

func TestListenStopsOnCancel(t *testing.T) {
	h := NewTUIHandler(slog.LevelDebug)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if msg := h.Listen(ctx)(); msg != nil {
		t.Errorf("Listen() after cancel = %v, want nil", msg)
	}
}

func TestFanout(t *testing.T) {
	var debugBuf, errorBuf bytes.Buffer
	logger := slog.New(Fanout{
		slog.NewTextHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&errorBuf, &slog.HandlerOptions{Level: slog.LevelError}),
	}).With("component", "test")

	logger.Debug("quiet")
	logger.Error("loud")

	if !strings.Contains(debugBuf.String(), "quiet") || !strings.Contains(debugBuf.String(), "loud") {
		t.Errorf("debug handler output = %q", debugBuf.String())
	}
	if strings.Contains(errorBuf.String(), "quiet") || !strings.Contains(errorBuf.String(), "loud") {
		t.Errorf("error handler output = %q", errorBuf.String())
	}
	if !strings.Contains(errorBuf.String(), "component=test") {
		t.Errorf("attrs not propagated: %q", errorBuf.String())
	}
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "rooms.log")
	h, f, err := OpenFile(path, slog.LevelInfo)
	if err != nil {
		t.Fatalf("OpenFile() error: %v", err)
	}
	slog.New(h).Info("connected", "endpoint", "ws://localhost:8080/ws")
	f.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var rec map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &rec); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if rec["msg"] != "connected" || rec["endpoint"] != "ws://localhost:8080/ws" {
		t.Errorf("record = %v", rec)
	}
}
