package directory

import (
	"context"
	"log/slog"
	"sort"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"
)

// Fetcher performs one room-listing query.
type Fetcher interface {
	Fetch(ctx context.Context) (Rooms, error)
}

// Result is the outcome of one background fetch.
type Result struct {
	Seq   uint64
	Rooms Rooms
	Err   error
}

// Directory owns the room snapshot. Fetches run in the background and
// report back through Listen; only Apply mutates the snapshot, so it is
// called from the UI loop.
type Directory struct {
	ctx     context.Context
	fetcher Fetcher
	logger  *slog.Logger
	results chan Result
	seq     atomic.Uint64

	applied  uint64
	snapshot Rooms
	lastErr  error
}

// New creates a Directory. ctx bounds every background fetch.
func New(ctx context.Context, fetcher Fetcher, logger *slog.Logger) *Directory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Directory{
		ctx:     ctx,
		fetcher: fetcher,
		logger:  logger,
		results: make(chan Result, 8),
	}
}

// Invalidate starts a new fetch without waiting for it.
func (d *Directory) Invalidate() {
	seq := d.seq.Add(1)
	go func() {
		rooms, err := d.fetcher.Fetch(d.ctx)
		select {
		case d.results <- Result{Seq: seq, Rooms: rooms, Err: err}:
		case <-d.ctx.Done():
		}
	}()
}

// Listen returns a Bubble Tea command that waits for the next Result.
func (d *Directory) Listen(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		select {
		case r := <-d.results:
			return r
		case <-ctx.Done():
			return nil
		}
	}
}

// Apply folds a Result into the snapshot. A successful result replaces the
// snapshot wholesale; a failed one keeps the previous snapshot. Results
// older than one already applied are dropped. It reports whether the
// snapshot changed.
func (d *Directory) Apply(r Result) bool {
	if r.Seq <= d.applied {
		return false
	}
	d.applied = r.Seq
	if r.Err != nil {
		d.lastErr = r.Err
		d.logger.Warn("room listing failed", "error", r.Err)
		return false
	}
	d.lastErr = nil
	d.snapshot = r.Rooms
	return true
}

// Snapshot returns the last successful listing, or nil before the first.
func (d *Directory) Snapshot() Rooms {
	return d.snapshot
}

// Names returns the room names of the snapshot in sorted order.
func (d *Directory) Names() []string {
	names := make([]string, 0, len(d.snapshot))
	for name := range d.snapshot {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Err returns the error of the most recent applied fetch, if it failed.
func (d *Directory) Err() error {
	return d.lastErr
}
