package retry

import (
	"fmt"
	"sync"
	"time"

	bankerr "bankd/internal/errors"
)

// Breaker counts consecutive failures of a repeating operation such as
// Accept.  Each failure also yields a pause that doubles up to MaxPause,
// so a flapping listener does not spin.  Once MaxFailures failures happen
// in a row the breaker trips and reports ErrCircuitOpen; a success in
// between resets the count.
type Breaker struct {
	MaxFailures int
	MinPause    time.Duration
	MaxPause    time.Duration
	OnTrip      func(failures int, last error)

	mu       sync.Mutex
	failures int
	pause    time.Duration
	tripped  bool
}

// NewBreaker returns a breaker that trips after maxFailures consecutive
// failures.
func NewBreaker(maxFailures int) *Breaker {
	return &Breaker{
		MaxFailures: maxFailures,
		MinPause:    5 * time.Millisecond,
		MaxPause:    time.Second,
	}
}

// Success resets the failure run.
func (b *Breaker) Success() {
	b.mu.Lock()
	b.failures = 0
	b.pause = 0
	b.mu.Unlock()
}

// Failure records err.  It returns how long the caller should pause
// before the next attempt, or an error wrapping ErrCircuitOpen when the
// breaker has tripped.
func (b *Breaker) Failure(err error) (time.Duration, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	if b.MaxFailures > 0 && b.failures >= b.MaxFailures {
		if !b.tripped && b.OnTrip != nil {
			b.OnTrip(b.failures, err)
		}
		b.tripped = true
		return 0, fmt.Errorf("%w: %d consecutive failures, last: %v",
			bankerr.ErrCircuitOpen, b.failures, err)
	}

	switch {
	case b.pause == 0:
		b.pause = b.MinPause
	case b.pause < b.MaxPause:
		b.pause *= 2
	}
	if b.pause > b.MaxPause {
		b.pause = b.MaxPause
	}
	return b.pause, nil
}

// Failures returns the current consecutive failure count.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// Tripped reports whether the breaker has tripped.
func (b *Breaker) Tripped() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tripped
}
