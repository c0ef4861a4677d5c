// Package suppression collapses logically identical notifications sent within
// a rolling time window.
package suppression

import (
	"sync"
	"time"
)

// DefaultWindow is the interval within which a repeated key is suppressed.
const DefaultWindow = 90 * time.Second

// DefaultSweepFactor sets how many windows an idle entry survives before a
// sweep removes it.
const DefaultSweepFactor = 10

// Window records the last admission time per key. The zero value is not
// usable; construct with New.
type Window struct {
	mu        sync.Mutex
	seen      map[string]time.Time
	window    time.Duration
	retention time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// Option configures a Window.
type Option func(*Window)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(w *Window) {
		w.now = now
	}
}

// WithSweepFactor keeps idle entries for factor windows. Values below one are
// ignored.
func WithSweepFactor(factor int) Option {
	return func(w *Window) {
		if factor >= 1 {
			w.retention = time.Duration(factor) * w.window
		}
	}
}

// New creates a Window. A non-positive window falls back to DefaultWindow.
func New(window time.Duration, opts ...Option) *Window {
	if window <= 0 {
		window = DefaultWindow
	}
	w := &Window{
		seen:      make(map[string]time.Time),
		window:    window,
		retention: DefaultSweepFactor * window,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.lastSweep = w.now()
	return w
}

// Admit reports whether key may be dispatched now. An admitted key has its
// timestamp refreshed; a suppressed key keeps the timestamp of its last
// admission. The check and the write happen under one lock.
func (w *Window) Admit(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	w.sweepLocked(now)

	if last, ok := w.seen[key]; ok && now.Sub(last) < w.window {
		return false
	}
	w.seen[key] = now
	return true
}

// Len returns the number of tracked keys.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.seen)
}

// Duration returns the suppression interval.
func (w *Window) Duration() time.Duration {
	return w.window
}

// sweepLocked drops entries idle for longer than the retention period, at
// most once per window.
func (w *Window) sweepLocked(now time.Time) {
	if now.Sub(w.lastSweep) < w.window {
		return
	}
	w.lastSweep = now
	for key, ts := range w.seen {
		if now.Sub(ts) > w.retention {
			delete(w.seen, key)
		}
	}
}
