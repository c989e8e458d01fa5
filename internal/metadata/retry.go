package metadata

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// RetryPolicy configures backoff on rate-limited responses.
type RetryPolicy struct {
	InitialDelay time.Duration
	MaxRetries   int
	Multiplier   float64
}

// DefaultRetryPolicy waits 5s, 10s, then 20s before giving up.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		InitialDelay: 5 * time.Second,
		MaxRetries:   3,
		Multiplier:   2.0,
	}
}

// withRateLimitRetry calls fn until it succeeds, returns an error that is not
// a rate limit, or the retry budget is spent. The last error is returned;
// callers classify it.
func withRateLimitRetry(ctx context.Context, logger zerolog.Logger, name string, policy RetryPolicy, fn func() error) error {
	delay := policy.InitialDelay

	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 0 {
				logger.Info().Str("operation", name).Int("retries", attempt).Msg("Request succeeded after retry")
			}
			return nil
		}
		if !isRateLimited(err) || attempt >= policy.MaxRetries {
			return err
		}

		logger.Warn().
			Str("operation", name).
			Int("attempt", attempt+1).
			Int("maxRetries", policy.MaxRetries).
			Dur("nextRetryIn", delay).
			Msg("Rate limited, will retry")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * policy.Multiplier)
	}
}
