package app

import (
	"time"

	"github.com/cenkalti/backoff/v5"
	tea "github.com/charmbracelet/bubbletea"
)

// reconnectMsg fires when a scheduled reconnect is due.
type reconnectMsg struct{ gen uint64 }

// countdownMsg refreshes the retry countdown in the status bar.
type countdownMsg struct{ gen uint64 }

// reconnector schedules connection attempts with exponential backoff. Each
// schedule or reset bumps gen, so timers from an older schedule are
// recognised and ignored.
type reconnector struct {
	policy *backoff.ExponentialBackOff
	gen    uint64
	due    time.Time
}

func newReconnector(base, max time.Duration) *reconnector {
	policy := backoff.NewExponentialBackOff()
	if base > 0 {
		policy.InitialInterval = base
	}
	if max > 0 {
		policy.MaxInterval = max
	}
	policy.Reset()
	return &reconnector{policy: policy}
}

// schedule picks the next delay and returns the timer commands for it.
func (r *reconnector) schedule(now time.Time) (time.Duration, tea.Cmd) {
	d := r.policy.NextBackOff()
	r.gen++
	r.due = now.Add(d)
	gen := r.gen
	return d, tea.Batch(
		tea.Tick(d, func(time.Time) tea.Msg { return reconnectMsg{gen: gen} }),
		countdown(gen),
	)
}

// reset returns to the initial delay after a successful open.
func (r *reconnector) reset() {
	r.policy.Reset()
	r.gen++
	r.due = time.Time{}
}

// pending reports whether gen belongs to the current schedule.
func (r *reconnector) pending(gen uint64) bool {
	return gen == r.gen && !r.due.IsZero()
}

// remaining returns the time left before the scheduled attempt.
func (r *reconnector) remaining(now time.Time) time.Duration {
	if r.due.IsZero() || now.After(r.due) {
		return 0
	}
	return r.due.Sub(now)
}

func countdown(gen uint64) tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg { return countdownMsg{gen: gen} })
}
