package retry

import (
	"context"
	"time"

	wbfretry "github.com/wb-go/wbf/retry"
)

// DefaultStrategy drives the dbpg and kafka retry helpers.
var DefaultStrategy = wbfretry.Strategy{
	Attempts: 3,
	Delay:    2 * time.Second,
	Backoff:  2.0,
}

// Backoff is a bounded exponential backoff: attempt n sleeps
// Base * Factor^n before retrying. Sleep is injectable so the schedule is
// testable without waiting.
type Backoff struct {
	Attempts int
	Base     time.Duration
	Factor   float64
	Sleep    func(time.Duration)
}

// Do runs fn up to Attempts times, sleeping between attempts. It returns
// nil on the first success, the last error once attempts are exhausted, or
// the context error if the context ends first.
func (b Backoff) Do(ctx context.Context, fn func() error) error {
	sleep := b.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	attempts := b.Attempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	delay := b.Base
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if attempt > 0 {
			sleep(delay)
			delay = time.Duration(float64(delay) * b.Factor)
		}
		if lastErr = fn(); lastErr == nil {
			return nil
		}
	}
	return lastErr
}
