package battle

import (
	"sync"
	"time"
)

// ExpiryTimer fires a callback once after a duration unless stopped first.
// It is safe for concurrent use.
type ExpiryTimer struct {
	mu    sync.Mutex
	timer *time.Timer
	done  bool
}

// NewExpiryTimer creates and starts a timer that calls onExpire after d.
// onExpire is called in a separate goroutine.
//
// Precondition: d > 0; onExpire must not be nil.
// Postcondition: onExpire will be called unless Stop wins the race first.
func NewExpiryTimer(d time.Duration, onExpire func()) *ExpiryTimer {
	et := &ExpiryTimer{}
	et.mu.Lock()
	defer et.mu.Unlock()
	et.timer = time.AfterFunc(d, func() {
		if et.claim() {
			onExpire()
		}
	})
	return et
}

// claim marks the timer finished and reports whether the caller won.
func (et *ExpiryTimer) claim() bool {
	et.mu.Lock()
	defer et.mu.Unlock()
	if et.done {
		return false
	}
	et.done = true
	return true
}

// Stop prevents the callback from firing. Safe to call multiple times.
//
// Postcondition: Returns true iff this call stopped the timer before it
// expired; exactly one of Stop and expiry ever wins.
func (et *ExpiryTimer) Stop() bool {
	if !et.claim() {
		return false
	}
	et.mu.Lock()
	et.timer.Stop()
	et.mu.Unlock()
	return true
}
