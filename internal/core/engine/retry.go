package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/portraitforge/portraitforge/internal/core"
)

// Default retry settings.
const (
	DefaultMaxAttempts    = 3
	DefaultInitialBackoff = 2 * time.Second
	DefaultMaxDelay       = time.Minute
)

// AttemptFunc performs one provider call. attempt starts at 1.
type AttemptFunc func(ctx context.Context, attempt int) core.Outcome

// RetryPolicy retries retryable outcomes with linear backoff.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration

	// MaxDelay caps provider-suggested delays. Zero leaves them uncapped.
	MaxDelay time.Duration

	Sleep   func(ctx context.Context, d time.Duration) error
	OnRetry func(attempt int, outcome core.Outcome, wait time.Duration)
}

// DefaultRetryPolicy returns the default policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    DefaultMaxAttempts,
		InitialBackoff: DefaultInitialBackoff,
		MaxDelay:       DefaultMaxDelay,
	}
}

// Execute runs fn until it succeeds, fails terminally or the attempt budget is spent.
// It returns the final outcome and the number of attempts made. A success or
// terminal outcome is returned as-is; exhaustion yields a terminal outcome wrapping
// core.ErrRetriesExhausted and the last failure.
func (p RetryPolicy) Execute(ctx context.Context, fn AttemptFunc) (core.Outcome, int) {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var last core.Outcome
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		outcome := fn(ctx, attempt)
		if outcome.Kind != core.OutcomeRetryable {
			return outcome, attempt
		}
		last = outcome
		if attempt == maxAttempts {
			break
		}

		wait := p.delay(attempt, outcome)
		if p.OnRetry != nil {
			p.OnRetry(attempt, outcome, wait)
		}
		if err := p.sleep(ctx, wait); err != nil {
			return core.Terminal(core.NewError(core.KindNetworkOrProtocol, "retry wait interrupted", err)), attempt
		}
	}

	return core.Terminal(&core.Error{
		Kind:    core.KindRetriesExhausted,
		Message: fmt.Sprintf("retries exhausted after %d attempts", maxAttempts),
		Err:     last.Err,
	}), maxAttempts
}

// delay returns the wait between attempt and attempt+1.
func (p RetryPolicy) delay(attempt int, outcome core.Outcome) time.Duration {
	if outcome.SuggestedDelay > 0 {
		if p.MaxDelay > 0 && outcome.SuggestedDelay > p.MaxDelay {
			return p.MaxDelay
		}
		return outcome.SuggestedDelay
	}
	if p.InitialBackoff <= 0 {
		return 0
	}
	return p.InitialBackoff * time.Duration(attempt)
}

func (p RetryPolicy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	return sleepContext(ctx, d)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
