package connection

import (
	"math"
	"time"
)

// State is the lifecycle state of an identity's stream.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateOpen
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// ReconnectState tracks consecutive failed connections for one identity.
// A successful open resets it; every unexpected close consumes one attempt.
type ReconnectState struct {
	Attempts     int
	MaxAttempts  int
	BaseInterval time.Duration
}

// Next consumes an attempt and returns the delay before it. The second
// result is false once MaxAttempts have been used, and Attempts is left
// unchanged.
func (r *ReconnectState) Next() (time.Duration, bool) {
	if r.Attempts >= r.MaxAttempts {
		return 0, false
	}
	r.Attempts++
	return r.delay(), true
}

// Reset clears the attempt count.
func (r *ReconnectState) Reset() {
	r.Attempts = 0
}

// Exhausted reports whether no attempts remain.
func (r *ReconnectState) Exhausted() bool {
	return r.Attempts >= r.MaxAttempts
}

// delay returns BaseInterval * 2^Attempts, saturating instead of overflowing.
func (r *ReconnectState) delay() time.Duration {
	d := r.BaseInterval
	for i := 0; i < r.Attempts; i++ {
		if d > math.MaxInt64/2 {
			return time.Duration(math.MaxInt64)
		}
		d *= 2
	}
	return d
}
