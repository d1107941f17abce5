package social

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robalyx/reciprocal/internal/metrics"
	"github.com/robalyx/reciprocal/pkg/utils"
	"go.uber.org/zap"
)

// MinRateLimitWait is the shortest wait before retrying a rate-limited call.
// It applies when the announced reset is already in the past.
const MinRateLimitWait = time.Second

// WaitMode selects how a call site reacts to a rate limit.
type WaitMode int

const (
	// FailFast returns the rate-limit error immediately.
	FailFast WaitMode = iota
	// BlockUntilReset waits for the announced reset and retries.
	BlockUntilReset
)

func (m WaitMode) String() string {
	switch m {
	case FailFast:
		return "fail_fast"
	case BlockUntilReset:
		return "block_until_reset"
	default:
		return fmt.Sprintf("WaitMode(%d)", int(m))
	}
}

// Caller runs API operations under a rate-limit policy. Waits happen on the
// injected clock and only suspend the calling goroutine.
type Caller struct {
	clock  clockwork.Clock
	logger *zap.Logger
}

// NewCaller creates a Caller.
func NewCaller(clock clockwork.Clock, logger *zap.Logger) *Caller {
	return &Caller{
		clock:  clock,
		logger: logger.Named("caller"),
	}
}

// Call runs op and handles rate-limit errors according to mode. Any other
// error is returned unchanged without retrying.
func Call[T any](
	ctx context.Context, c *Caller, mode WaitMode, name string, op func(context.Context) (T, error),
) (T, error) {
	for {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}

		var rateErr *RateLimitError
		if !errors.As(err, &rateErr) {
			return result, err
		}

		metrics.RateLimited.WithLabelValues(mode.String()).Inc()

		if mode == FailFast {
			c.logger.Info("Rate limited, failing fast",
				zap.String("call", name),
				zap.Time("resetAt", rateErr.ResetAt))

			return result, fmt.Errorf("%s: %w", name, err)
		}

		wait := max(rateErr.ResetAt.Sub(c.clock.Now()), MinRateLimitWait)

		c.logger.Warn("Rate limited, waiting for reset",
			zap.String("call", name),
			zap.Time("resetAt", rateErr.ResetAt),
			zap.Duration("wait", wait))

		if utils.ContextSleep(ctx, c.clock, wait) == utils.SleepCancelled {
			var zero T
			return zero, fmt.Errorf("%s: %w", name, ctx.Err())
		}
	}
}
