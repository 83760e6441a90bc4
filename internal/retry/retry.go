package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/appdraft/appdraft/internal/log"
)

// Config bounds a retried operation: how many attempts and how the jittered
// exponential wait between them grows.
type Config struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Logger          log.Logger
}

func (c *Config) defaults() {
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 3
	}
	if c.InitialInterval == 0 {
		c.InitialInterval = time.Second
	}
	if c.MaxInterval == 0 {
		c.MaxInterval = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
}

// Do runs op until it succeeds, the attempt budget is spent, or ctx is done.
// retryable decides whether an error is transient; a nil predicate retries
// everything. Non-retryable errors abort immediately and are returned as-is.
func Do(ctx context.Context, cfg Config, name string, op func() error, retryable func(error) bool) error {
	cfg.defaults()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cfg.InitialInterval
	bo.MaxInterval = cfg.MaxInterval
	// MaxAttempts counts executions, WithMaxRetries counts re-executions.
	wrapped := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(cfg.MaxAttempts-1)), ctx)

	attempt := 0
	return backoff.RetryNotify(
		func() error {
			attempt++
			err := op()
			if err == nil {
				return nil
			}
			if retryable != nil && !retryable(err) {
				return backoff.Permanent(err)
			}
			return err
		},
		wrapped,
		func(err error, wait time.Duration) {
			cfg.Logger.Warningf("%s attempt %d failed, retrying in %s: %v", name, attempt, wait, err)
		},
	)
}
