/*
Copyright 2026 Brightline Collections.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package retry implements an exponential-backoff-with-full-jitter policy
// built on top of github.com/sethvargo/go-retry's Backoff/Do primitives.
// go-retry's own semantics — an error only triggers another attempt when it
// is explicitly wrapped in retry.RetryableError, any other error (nil or
// not) ends the loop — make it straightforward to guarantee a
// ServiceUnavailable from the breaker is never retried: the composer in
// Protect simply never wraps it.
package retry

import (
	"context"
	"math/rand"
	"time"

	orcherrors "github.com/brightline/collections-orchestrator/internal/errors"
	goretry "github.com/sethvargo/go-retry"
)

// Config holds a retry policy's tunables.
type Config struct {
	MaxAttempts     uint64
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	ExponentialBase float64
	// Retryable reports whether err should be retried. Defaults to "never"
	// when nil, which makes Protect behave like a pass-through.
	Retryable func(err error) bool
}

// DefaultConfig is the general-purpose retry default.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:     3,
		BaseDelay:       1 * time.Second,
		MaxDelay:        30 * time.Second,
		ExponentialBase: 2.0,
		Retryable:       DefaultRetryable,
	}
}

// DatabaseConfig is the database-flavored variant (5 attempts by default).
func DatabaseConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxAttempts = 5
	return cfg
}

// ExternalServiceConfig is the external-service variant (3 attempts, longer
// base delay, base 2.5).
func ExternalServiceConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxAttempts = 3
	cfg.BaseDelay = 2 * time.Second
	cfg.ExponentialBase = 2.5
	return cfg
}

// DefaultRetryable implements the default retryable-kind set: network,
// timeout, and database errors. A *orcherrors.AppError whose Type is
// ServiceUnavailable is never retryable — the breaker is authoritative.
// An error that is not a *orcherrors.AppError is treated as retryable.
func DefaultRetryable(err error) bool {
	ae, ok := orcherrors.As(err)
	if !ok {
		return true
	}
	switch ae.Type {
	case orcherrors.ErrorTypeServiceUnavail:
		return false
	case orcherrors.ErrorTypeNetwork, orcherrors.ErrorTypeTimeout, orcherrors.ErrorTypeDatabase:
		return true
	default:
		return false
	}
}

// fullJitterBackoff wraps an underlying exponential backoff and scales each
// delay by a uniform [0,1) multiplier — the full-jitter default.
type fullJitterBackoff struct {
	inner goretry.Backoff
	rnd   func() float64
}

func (f *fullJitterBackoff) Next() (time.Duration, bool) {
	d, stop := f.inner.Next()
	if stop {
		return 0, true
	}
	return time.Duration(float64(d) * f.rnd()), false
}

// exponentialBackoff grows by cfg.ExponentialBase per attempt. go-retry's own
// NewExponential always doubles; the external-service variant needs base
// 2.5, so the growth curve is computed here and the rest of the pipeline
// (capping, max-retries, full jitter) still composes through go-retry's
// combinators.
type exponentialBackoff struct {
	base    time.Duration
	factor  float64
	attempt int
}

func (e *exponentialBackoff) Next() (time.Duration, bool) {
	d := float64(e.base) * pow(e.factor, e.attempt)
	e.attempt++
	return time.Duration(d), false
}

func pow(base float64, exp int) float64 {
	result := 1.0
	for i := 0; i < exp; i++ {
		result *= base
	}
	return result
}

func newBackoff(cfg Config) goretry.Backoff {
	base := &exponentialBackoff{base: cfg.BaseDelay, factor: cfg.ExponentialBase}
	b := goretry.WithCappedDuration(cfg.MaxDelay, base)
	b = goretry.WithMaxRetries(cfg.MaxAttempts-1, b)
	return &fullJitterBackoff{inner: b, rnd: rand.Float64}
}

// Policy is a configured retry policy ready to wrap operations.
type Policy struct {
	cfg Config
}

// New creates a Policy from cfg.
func New(cfg Config) *Policy {
	if cfg.Retryable == nil {
		cfg.Retryable = func(error) bool { return false }
	}
	return &Policy{cfg: cfg}
}

// Do runs op, retrying per the policy until it succeeds, attempts are
// exhausted, or op returns a non-retryable error.
func (p *Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	b := newBackoff(p.cfg)
	return goretry.Do(ctx, b, func(ctx context.Context) error {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if p.cfg.Retryable(err) {
			return goretry.RetryableError(err)
		}
		return err
	})
}

// Protect composes retry(circuit(op)) for a protected client call.
// Composition the other way (retry inside the breaker) is forbidden because
// retried failures would flap the breaker's counters.
type Breaker interface {
	Invoke(ctx context.Context, op func(ctx context.Context) error) error
}

func Protect(cb Breaker, p *Policy, op func(ctx context.Context) error) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return p.Do(ctx, func(ctx context.Context) error {
			return cb.Invoke(ctx, op)
		})
	}
}
