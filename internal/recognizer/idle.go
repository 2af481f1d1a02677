// SPDX-License-Identifier: MIT

package recognizer

import (
	"sync"
	"time"
)

// IdleTimer fires once after grace elapses with no intervening Cancel,
// invoking onExpire exactly once. Start and Cancel may be called
// concurrently and any number of times; only the last pending Start before
// expiry matters.
type IdleTimer struct {
	grace    time.Duration
	onExpire func()

	mu    sync.Mutex
	timer *time.Timer
}

// NewIdleTimer creates an IdleTimer that calls onExpire after grace of
// uncancelled idleness. It does not start counting down until Start is
// called.
func NewIdleTimer(grace time.Duration, onExpire func()) *IdleTimer {
	return &IdleTimer{grace: grace, onExpire: onExpire}
}

// Start begins (or restarts) the countdown. Calling Start while already
// counting down resets it, matching on_connect's "cancel any running
// countdown" contract when paired with Cancel at connect time and
// Start again once the last session leaves.
func (t *IdleTimer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(t.grace, t.onExpire)
}

// Cancel stops a pending countdown, if any. It is safe to call when no
// countdown is running.
func (t *IdleTimer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
