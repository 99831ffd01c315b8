// Package logging routes slog records into the Bubble Tea program, and
// optionally to a JSON log file alongside it.
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Record is delivered to the program for every enabled log record.
type Record struct {
	Time    time.Time
	Level   slog.Level
	Summary string
}

const recordBuffer = 256

// TUIHandler is a slog.Handler that queues records for the Bubble Tea
// program, which drains them through Listen. Handle never blocks: it runs
// on whatever goroutine logs, including the program's own Update, so a
// full queue drops the record and counts it. Handlers derived via
// WithAttrs/WithGroup share the queue.
type TUIHandler struct {
	level   slog.Leveler
	records chan Record
	dropped *atomic.Uint64
	attrs   []slog.Attr
	groups  []string
}

func NewTUIHandler(level slog.Leveler) *TUIHandler {
	return &TUIHandler{
		level:   level,
		records: make(chan Record, recordBuffer),
		dropped: &atomic.Uint64{},
	}
}

// Listen returns a Bubble Tea command that waits for the next Record.
// Re-issue it after handling each Record.
func (h *TUIHandler) Listen(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		select {
		case rec := <-h.records:
			return rec
		case <-ctx.Done():
			return nil
		}
	}
}

// Dropped returns how many records were discarded because the queue was
// full.
func (h *TUIHandler) Dropped() uint64 {
	return h.dropped.Load()
}

func (h *TUIHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *TUIHandler) Handle(_ context.Context, record slog.Record) error {
	select {
	case h.records <- h.format(record):
	default:
		h.dropped.Add(1)
	}
	return nil
}

// format renders "message (key=value, ...)".
func (h *TUIHandler) format(record slog.Record) Record {
	prefix := ""
	if len(h.groups) > 0 {
		prefix = strings.Join(h.groups, ".") + "."
	}
	var parts []string
	for _, attr := range h.attrs {
		parts = append(parts, fmt.Sprintf("%s=%s", attr.Key, attr.Value))
	}
	record.Attrs(func(attr slog.Attr) bool {
		parts = append(parts, fmt.Sprintf("%s%s=%s", prefix, attr.Key, attr.Value))
		return true
	})

	summary := record.Message
	if len(parts) > 0 {
		summary += " (" + strings.Join(parts, ", ") + ")"
	}
	return Record{Time: record.Time, Level: record.Level, Summary: summary}
}

func (h *TUIHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TUIHandler{
		level:   h.level,
		records: h.records,
		dropped: h.dropped,
		attrs:   append(clone(h.attrs), attrs...),
		groups:  clone(h.groups),
	}
}

func (h *TUIHandler) WithGroup(name string) slog.Handler {
	return &TUIHandler{
		level:   h.level,
		records: h.records,
		dropped: h.dropped,
		attrs:   clone(h.attrs),
		groups:  append(clone(h.groups), name),
	}
}

func clone[T any](s []T) []T {
	if s == nil {
		return nil
	}
	out := make([]T, len(s))
	copy(out, s)
	return out
}

// Fanout sends each record to every handler enabled for its level.
type Fanout []slog.Handler

func (hs Fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range hs {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (hs Fanout) Handle(ctx context.Context, record slog.Record) error {
	for _, h := range hs {
		if h.Enabled(ctx, record.Level) {
			if err := h.Handle(ctx, record.Clone()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (hs Fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	derived := make(Fanout, len(hs))
	for i, h := range hs {
		derived[i] = h.WithAttrs(attrs)
	}
	return derived
}

func (hs Fanout) WithGroup(name string) slog.Handler {
	derived := make(Fanout, len(hs))
	for i, h := range hs {
		derived[i] = h.WithGroup(name)
	}
	return derived
}

// OpenFile opens path for appending JSON log records. The caller closes
// the returned file.
func OpenFile(path string, level slog.Leveler) (slog.Handler, *os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level}), f, nil
}
