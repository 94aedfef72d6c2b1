package deepdub

import "time"

// backoff is the reconnect delay schedule, carried as a plain value so
// retry behavior stays deterministic and testable without real timing.
type backoff struct {
	attempt int
	base    time.Duration
	max     time.Duration
	budget  int
}

func newBackoff(limits StreamLimits) backoff {
	return backoff{
		base:   limits.BackoffBase,
		max:    limits.BackoffMax,
		budget: limits.MaxConnectAttempts,
	}
}

// next consumes one attempt and returns the delay to wait before it.
// ok is false once the budget is exhausted. The first attempt has no
// delay; subsequent delays double up to the cap.
func (b *backoff) next() (delay time.Duration, ok bool) {
	if b.attempt >= b.budget {
		return 0, false
	}
	if b.attempt > 0 {
		delay = b.base << (b.attempt - 1)
		if delay > b.max || delay <= 0 {
			delay = b.max
		}
	}
	b.attempt++
	return delay, true
}

// reset restores the full budget after a healthy connection.
func (b *backoff) reset() {
	b.attempt = 0
}

// attempts returns how many attempts have been consumed.
func (b *backoff) attempts() int {
	return b.attempt
}
