package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appdraft/appdraft/internal/retry"
)

func TestDo(t *testing.T) {
	cfg := retry.Config{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}

	tests := map[string]struct {
		op          func(calls *int) error
		retryable   func(error) bool
		expErr      bool
		expCalls    int
	}{
		"Immediate success runs once": {
			op:       func(calls *int) error { return nil },
			expCalls: 1,
		},
		"Transient failures are retried until success": {
			op: func(calls *int) error {
				if *calls < 3 {
					return errors.New("transient")
				}
				return nil
			},
			expCalls: 3,
		},
		"Budget exhaustion returns the last error": {
			op:       func(calls *int) error { return errors.New("always") },
			expErr:   true,
			expCalls: 3,
		},
		"Non-retryable errors abort on first attempt": {
			op:        func(calls *int) error { return errors.New("fatal") },
			retryable: func(error) bool { return false },
			expErr:    true,
			expCalls:  1,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			calls := 0
			err := retry.Do(context.Background(), cfg, "test-op", func() error {
				calls++
				return tt.op(&calls)
			}, tt.retryable)

			if tt.expErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.expCalls, calls)
		})
	}
}

func TestDoContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := retry.Do(ctx, retry.Config{MaxAttempts: 5, InitialInterval: time.Millisecond}, "cancelled-op", func() error {
		calls++
		return errors.New("transient")
	}, nil)

	require.Error(t, err)
	assert.LessOrEqual(t, calls, 1)
}
