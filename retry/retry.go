/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package retry provides backoff policies which define delays between repeated attempts of a failing operation
// (e.g. a background sweep of expired cache entries).
package retry

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy creates a new backoff.BackOff for every sequence of attempts.
type Policy interface {
	NewBackOff() backoff.BackOff
}

// PolicyFunc is an adapter to allow the use of ordinary functions as Policy.
type PolicyFunc func() backoff.BackOff

// NewBackOff implements Policy.
func (f PolicyFunc) NewBackOff() backoff.BackOff {
	return f()
}

// ExponentialBackoffPolicy makes delays grow exponentially (x1.5 each attempt, with jitter).
type ExponentialBackoffPolicy struct {
	initialInterval time.Duration
	maxAttempts     int
}

// NewExponentialBackoffPolicy returns an exponential backoff policy.
// Zero maxRetryAttempts means that the backoff never stops (no max elapsed time as well).
func NewExponentialBackoffPolicy(initialInterval time.Duration, maxRetryAttempts int) ExponentialBackoffPolicy {
	return ExponentialBackoffPolicy{initialInterval: initialInterval, maxAttempts: maxRetryAttempts}
}

// NewBackOff implements Policy.
func (p ExponentialBackoffPolicy) NewBackOff() backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.initialInterval
	if p.maxAttempts <= 0 {
		eb.MaxElapsedTime = 0
	}
	return limitAttempts(eb, p.maxAttempts)
}

// ConstantBackoffPolicy makes all delays equal.
type ConstantBackoffPolicy struct {
	interval    time.Duration
	maxAttempts int
}

// NewConstantBackoffPolicy returns a constant backoff policy. Zero maxRetryAttempts means no limit.
func NewConstantBackoffPolicy(interval time.Duration, maxRetryAttempts int) ConstantBackoffPolicy {
	return ConstantBackoffPolicy{interval: interval, maxAttempts: maxRetryAttempts}
}

// NewBackOff implements Policy.
func (p ConstantBackoffPolicy) NewBackOff() backoff.BackOff {
	return limitAttempts(backoff.NewConstantBackOff(p.interval), p.maxAttempts)
}

func limitAttempts(b backoff.BackOff, maxAttempts int) backoff.BackOff {
	if maxAttempts > 0 {
		b = backoff.WithMaxRetries(b, uint64(maxAttempts))
	}
	b.Reset()
	return b
}

// WithDelayCap wraps the policy so that no delay exceeds maxDelay().
// When the underlying backoff stops, maxDelay() is returned instead of backoff.Stop,
// so attempts continue at the capped pace. maxDelay is evaluated on every call and may change over time.
func WithDelayCap(p Policy, maxDelay func() time.Duration) Policy {
	return PolicyFunc(func() backoff.BackOff {
		return &cappedBackOff{delegate: p.NewBackOff(), maxDelay: maxDelay}
	})
}

type cappedBackOff struct {
	delegate backoff.BackOff
	maxDelay func() time.Duration
}

func (b *cappedBackOff) NextBackOff() time.Duration {
	limit := b.maxDelay()
	delay := b.delegate.NextBackOff()
	if delay == backoff.Stop || delay > limit {
		return limit
	}
	return delay
}

func (b *cappedBackOff) Reset() {
	b.delegate.Reset()
}
