package resilience

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/Strob0t/Warden/internal/domain"
)

// RetryPolicy bounds exponential backoff for transient store errors.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Retry runs fn up to MaxAttempts times, backing off exponentially with
// jitter between attempts. Only domain.ErrUnavailable is retried;
// deterministic business errors return immediately.
func (p RetryPolicy) Retry(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(p.delay(attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err = fn(ctx)
		if err == nil || !errors.Is(err, domain.ErrUnavailable) {
			return err
		}
	}
	return err
}

// delay computes the backoff before the given attempt (1-based), capped at
// MaxDelay, with up to 50% jitter.
func (p RetryPolicy) delay(attempt int) time.Duration {
	d := p.BaseDelay << (attempt - 1)
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	if d <= 0 {
		return 0
	}
	return d/2 + rand.N(d/2+1)
}
