// Package backoff retries a live collaborator call at a fixed,
// limiter-paced interval under a bounded attempt budget, per spec.md §7 ("retry with
// backoff up to a bounded budget"). Grounded on
// exchanges/request/limit.go's use of golang.org/x/time/rate to pace
// outbound calls — here repurposed from request pacing to retry
// spacing, since the live façade's concern is "don't hammer a
// struggling venue," the same motivation behind BasicLimit.Limit.
package backoff

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/quantforge/barstream/internal/xerrors"
)

// Policy bounds how many attempts a retried call gets and how the
// limiter between attempts is paced.
type Policy struct {
	MaxAttempts int
	// Limiter paces the interval between successive attempts; a nil
	// Limiter results in an immediate retry with no pacing.
	Limiter *rate.Limiter
}

// NewPolicy builds a Policy whose Limiter allows one attempt per
// interval (burst 1), mirroring request.NewRateLimit's single-action
// shape.
func NewPolicy(maxAttempts int, interval time.Duration) Policy {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return Policy{MaxAttempts: maxAttempts, Limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Retryable reports whether err is the kind of transient collaborator
// failure worth retrying (spec.md §6's ErrRateLimited/ErrConnectivityLost)
// as opposed to a business-rule rejection that will never succeed on
// retry.
func Retryable(err error) bool {
	return errors.Is(err, xerrors.ErrRateLimited) || errors.Is(err, xerrors.ErrConnectivityLost)
}

// Do calls fn up to p.MaxAttempts times, waiting on p.Limiter between
// attempts, stopping as soon as fn succeeds, ctx is canceled, or fn
// returns a non-retryable error. A non-retryable error or ctx's error
// is returned as is; on exhaustion the final attempt's error is
// returned wrapped with the attempt count.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if attempt > 0 && p.Limiter != nil {
			if err := p.Limiter.Wait(ctx); err != nil {
				return err
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if !Retryable(err) {
			return err
		}
	}
	return errors.Wrapf(lastErr, "exhausted %d attempts", p.MaxAttempts)
}
