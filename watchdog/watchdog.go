// Package watchdog models the hardware watchdog capability the link
// nodes rely on for fault recovery. The supervisory code only ever
// feeds the watchdog; expiry handling belongs to the environment and
// is never reachable from a fault path.
package watchdog

import (
	"sync"
	"time"
)

// Watchdog is the feed-only capability handed to supervisory code.
type Watchdog interface {
	Feed()
}

// Timer is a software watchdog for hosts without a hardware one. When
// the timeout elapses without a Feed, the expiry handler runs exactly
// once; the production handler persists the reset cause and terminates
// the process so the service manager restarts it, which is the closest
// host analog of a hardware reset.
type Timer struct {
	mu       sync.Mutex
	timeout  time.Duration
	timer    *time.Timer
	onExpire func()
	started  bool
	expired  bool
}

// New creates a stopped watchdog timer. onExpire runs on the timer
// goroutine when the deadline is missed.
func New(timeout time.Duration, onExpire func()) *Timer {
	return &Timer{
		timeout:  timeout,
		onExpire: onExpire,
	}
}

// Start arms the watchdog. The first deadline is one full timeout away.
func (t *Timer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.started {
		return
	}
	t.started = true
	t.timer = time.AfterFunc(t.timeout, t.expire)
}

// Feed pushes the deadline out by one timeout. Feeding an expired or
// stopped watchdog has no effect, as with real hardware after reset
// has been latched.
func (t *Timer) Feed() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.started || t.expired {
		return
	}
	t.timer.Reset(t.timeout)
}

// Stop disarms the watchdog. Used only during orderly shutdown.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
	}
	t.started = false
}

// Expired reports whether the deadline was missed.
func (t *Timer) Expired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.expired
}

// Timeout returns the configured timeout.
func (t *Timer) Timeout() time.Duration {
	return t.timeout
}

func (t *Timer) expire() {
	t.mu.Lock()
	if t.expired || !t.started {
		t.mu.Unlock()
		return
	}
	t.expired = true
	handler := t.onExpire
	t.mu.Unlock()

	if handler != nil {
		handler()
	}
}

var _ Watchdog = (*Timer)(nil)
