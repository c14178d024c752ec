// Package notify delivers short user-facing messages, with optional
// debouncing so rapid-fire store mutations collapse into one notification.
package notify

import (
	"sync"
	"time"
)

type Notifier interface {
	Notify(message string)
}

// Func adapts a function to the Notifier interface.
type Func func(message string)

func (f Func) Notify(message string) { f(message) }

// Discard drops every message. Useful in tests and non-interactive runs.
var Discard Notifier = Func(func(string) {})

// Debouncer coalesces messages arriving within a window into a single
// delivery of the last message. Intermediate messages are dropped, not
// merged; callers rely on that last-write-wins behaviour.
type Debouncer struct {
	next   Notifier
	window time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	pending string
}

func NewDebouncer(next Notifier, window time.Duration) *Debouncer {
	return &Debouncer{next: next, window: window}
}

func (d *Debouncer) Notify(message string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pending = message
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.fire)
}

func (d *Debouncer) fire() {
	d.mu.Lock()
	message := d.pending
	d.pending = ""
	d.timer = nil
	d.mu.Unlock()

	if message != "" {
		d.next.Notify(message)
	}
}

// Flush delivers any pending message immediately.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.mu.Unlock()
	d.fire()
}
