// Package backoff bounds how hard the rescheduler leans on the Todoist API
// when it misbehaves. Every outbound call runs under a Policy that retries
// transient failures with jittered exponential delays.
package backoff

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/avast/retry-go"
	"go.uber.org/zap"
)

const (
	defaultAttempts = 3
	baseDelay       = time.Second
	ceilingDelay    = 2 * time.Minute
)

// Policy retries failed operations a bounded number of times.
type Policy struct {
	attempts uint
	delay    time.Duration
	maxDelay time.Duration
	log      *zap.SugaredLogger
}

// New builds a Policy from the environment. RETRY_ATTEMPTS caps the total
// number of tries per operation and defaults to 3; unparseable or
// non-positive values fall back to the default with a warning.
func New(log *zap.SugaredLogger) *Policy {
	attempts := defaultAttempts
	if raw := os.Getenv("RETRY_ATTEMPTS"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			log.Warnw("ignoring invalid RETRY_ATTEMPTS", "value", raw)
		} else {
			attempts = n
		}
	}
	return &Policy{
		attempts: uint(attempts),
		delay:    baseDelay,
		maxDelay: ceilingDelay,
		log:      log,
	}
}

// Do runs fn until it succeeds, the attempt budget runs out, or ctx is
// cancelled. Delays between tries grow exponentially with random jitter,
// capped at two minutes.
//
// Expectations:
//   - fn runs exactly once when it succeeds immediately
//   - fn runs at most `attempts` times
//   - The error of the final attempt is returned as-is, not an aggregate
//   - A cancelled ctx stops the retry loop at the next delay
func (p *Policy) Do(ctx context.Context, op string, fn func() error) error {
	attempt := 0
	return retry.Do(
		func() error {
			attempt++
			p.log.Debugw("attempting operation", "op", op, "attempt", attempt)
			if err := fn(); err != nil {
				p.log.Debugw("operation failed", "op", op, "attempt", attempt, "error", err)
				return err
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(p.attempts),
		retry.Delay(p.delay),
		retry.MaxDelay(p.maxDelay),
		retry.MaxJitter(p.delay),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.LastErrorOnly(true),
	)
}
