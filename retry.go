// SPDX-License-Identifier: GPL-3.0-or-later

package dnsqos

import (
	"context"
	"time"
)

// RetryPolicy decides how many times the [*Prober] attempts each
// domain probe and how long it waits between attempts.
type RetryPolicy interface {
	// MaxAttempts returns the maximum number of attempts, which
	// is always at least one.
	MaxAttempts() int

	// Backoff returns how long to wait before the given attempt,
	// where the first retry is attempt number one.
	Backoff(attempt int) time.Duration
}

// NoRetry is the default [RetryPolicy]: a single attempt.
type NoRetry struct{}

var _ RetryPolicy = NoRetry{}

// MaxAttempts implements [RetryPolicy].
func (NoRetry) MaxAttempts() int {
	return 1
}

// Backoff implements [RetryPolicy].
func (NoRetry) Backoff(attempt int) time.Duration {
	return 0
}

// ConstantRetry is a [RetryPolicy] with a constant delay between attempts.
type ConstantRetry struct {
	// Attempts is the maximum number of attempts. Values
	// smaller than one are treated as one.
	Attempts int

	// Delay is the delay between attempts.
	Delay time.Duration
}

var _ RetryPolicy = ConstantRetry{}

// MaxAttempts implements [RetryPolicy].
func (cr ConstantRetry) MaxAttempts() int {
	return max(cr.Attempts, 1)
}

// Backoff implements [RetryPolicy].
func (cr ConstantRetry) Backoff(attempt int) time.Duration {
	return cr.Delay
}

// sleepContext sleeps for delay or until ctx is done, whichever happens first.
func sleepContext(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
