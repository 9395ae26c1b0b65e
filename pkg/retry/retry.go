// Package retry implements the §4.8 database retry discipline: bounded
// exponential backoff around a durable operation, wrapping
// github.com/cenkalti/backoff/v4 rather than hand-rolling a retry loop.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy bounds retries with an exponential backoff schedule. The defaults
// match spec §4.8: 3 retries, delays of roughly 50ms / 200ms / 800ms.
type Policy struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	Multiplier      float64
}

// Default is the database retry policy named in §4.8.
var Default = Policy{
	MaxRetries:      3,
	InitialInterval: 50 * time.Millisecond,
	Multiplier:      4,
}

// Do runs fn, retrying on error per the policy. After retries are
// exhausted, the last error propagates to the caller.
func (p Policy) Do(ctx context.Context, fn func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.Multiplier = p.Multiplier
	b.MaxElapsedTime = 0 // bounded by MaxRetries below, not wall time

	bounded := backoff.WithMaxRetries(b, p.MaxRetries)
	withCtx := backoff.WithContext(bounded, ctx)

	return backoff.Retry(fn, withCtx)
}

// Do runs fn under the default database retry policy.
func Do(ctx context.Context, fn func() error) error {
	return Default.Do(ctx, fn)
}
