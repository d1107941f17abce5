package utils

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// SleepResult represents the outcome of a context-aware sleep operation.
type SleepResult int

const (
	// SleepCompleted indicates the sleep duration completed normally.
	SleepCompleted SleepResult = iota
	// SleepCancelled indicates the context was cancelled during sleep.
	SleepCancelled
)

// ContextSleep sleeps on the given clock while respecting context cancellation.
func ContextSleep(ctx context.Context, clock clockwork.Clock, duration time.Duration) SleepResult {
	if duration <= 0 {
		if ctx.Err() != nil {
			return SleepCancelled
		}

		return SleepCompleted
	}

	timer := clock.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-timer.Chan():
		return SleepCompleted
	case <-ctx.Done():
		return SleepCancelled
	}
}

// ContextSleepWithLog is ContextSleep that logs cancelMessage when the
// context is cancelled.
func ContextSleepWithLog(
	ctx context.Context, clock clockwork.Clock, duration time.Duration, logger *zap.Logger, cancelMessage string,
) SleepResult {
	result := ContextSleep(ctx, clock, duration)
	if result == SleepCancelled && logger != nil && cancelMessage != "" {
		logger.Info(cancelMessage)
	}

	return result
}

// ContextSleepUntil waits until the target time on the given clock.
func ContextSleepUntil(ctx context.Context, clock clockwork.Clock, target time.Time) SleepResult {
	return ContextSleep(ctx, clock, target.Sub(clock.Now()))
}

// ContextGuard checks if the context is cancelled and returns true if so.
// This is useful at the beginning of loops or before starting long-running operations.
func ContextGuard(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// ContextGuardWithLog checks if the context is cancelled and logs a message if so.
func ContextGuardWithLog(ctx context.Context, logger *zap.Logger, cancelMessage string) bool {
	if !ContextGuard(ctx) {
		return false
	}

	if logger != nil && cancelMessage != "" {
		logger.Info(cancelMessage)
	}

	return true
}

// PacingSleep waits between two destructive actions.
// Returns true if the caller should continue, false if the context was cancelled.
func PacingSleep(
	ctx context.Context, clock clockwork.Clock, duration time.Duration, logger *zap.Logger, workerName string,
) bool {
	result := ContextSleepWithLog(ctx, clock, duration, logger,
		"Context cancelled during pacing delay, stopping "+workerName)
	return result == SleepCompleted
}
