package workflow

import "time"

// Backoff is the retry delay policy: base << attempt, capped. Deterministic
// given the attempt number; no jitter.
type Backoff struct {
	Base time.Duration
	Cap  time.Duration
}

// DefaultBackoff matches the documented contract: 100ms base, 5s cap.
var DefaultBackoff = Backoff{Base: 100 * time.Millisecond, Cap: 5 * time.Second}

// Delay returns the wait before re-readying a task. attempt counts completed
// attempts, starting at 1 for the first retry.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := b.Base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= b.Cap {
			return b.Cap
		}
	}
	if b.Cap > 0 && d > b.Cap {
		return b.Cap
	}
	return d
}
