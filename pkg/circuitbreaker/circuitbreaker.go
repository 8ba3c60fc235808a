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

// Package circuitbreaker implements a per-dependency failure gate: a
// closed/open/half-open state machine with independent failure and
// success thresholds and a bounded half-open concurrency cap. The standard
// breaker libraries in the surrounding corpus (sony/gobreaker in particular)
// conflate "calls allowed while probing" with "successes required to close";
// this component needs them independent, so the state machine is hand-rolled
// here instead — see DESIGN.md for the fuller justification.
package circuitbreaker

import (
	"context"
	"sync"
	"time"

	orcherrors "github.com/brightline/collections-orchestrator/internal/errors"
	"github.com/sirupsen/logrus"
)

// State is one of the breaker's three states.
type State string

const (
	StateClosed   State = "Closed"
	StateOpen     State = "Open"
	StateHalfOpen State = "HalfOpen"
)

// Config holds the breaker's tunables (the cb_* configuration options).
type Config struct {
	FailureThreshold int
	SuccessThreshold int
	Timeout          time.Duration
	HalfOpenMaxCalls int
	RingSize         int
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 3,
		Timeout:          60 * time.Second,
		HalfOpenMaxCalls: 5,
		RingSize:         100,
	}
}

// Metrics is the breaker's rolling call/latency bookkeeping.
type Metrics struct {
	Total            int64
	Succeeded        int64
	Failed           int64
	OpenCount        int64
	LastStateChange  time.Time
	MeanLatencyMS    float64
}

// FailureRate returns Failed/Total, or 0 when no calls have been made.
func (m Metrics) FailureRate() float64 {
	if m.Total == 0 {
		return 0
	}
	return float64(m.Failed) / float64(m.Total)
}

// Status is a snapshot of the breaker's current state, safe to read
// concurrently and to embed in a ServiceUnavailable error.
type Status struct {
	ServiceName          string
	State                State
	ConsecutiveFailures  int
	ConsecutiveSuccesses int
	LastFailureAt        *time.Time
	HalfOpenInFlight     int
	Metrics              Metrics
}

// Operation is the caller-supplied unary function the breaker wraps.
type Operation func(ctx context.Context) error

// Breaker is a single named circuit breaker.
type Breaker struct {
	mu sync.Mutex

	name   string
	cfg    Config
	logger logrus.FieldLogger

	state                State
	consecutiveFailures  int
	consecutiveSuccesses int
	lastFailureAt        *time.Time
	halfOpenInFlight     int
	lastStateChange      time.Time

	metrics     Metrics
	latencyRing []time.Duration
	ringPos     int

	nowFn func() time.Time
}

// New creates a breaker in the Closed state.
func New(name string, cfg Config, logger logrus.FieldLogger) *Breaker {
	if cfg.RingSize <= 0 {
		cfg.RingSize = 100
	}
	if logger == nil {
		logger = logrus.New()
	}
	now := time.Now()
	return &Breaker{
		name:            name,
		cfg:             cfg,
		logger:          logger,
		state:           StateClosed,
		lastStateChange: now,
		nowFn:           time.Now,
	}
}

func (b *Breaker) now() time.Time {
	if b.nowFn != nil {
		return b.nowFn()
	}
	return time.Now()
}

// Name returns the breaker's service name.
func (b *Breaker) Name() string { return b.name }

// Status returns a snapshot of the breaker's current state.
func (b *Breaker) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.statusLocked()
}

func (b *Breaker) statusLocked() Status {
	return Status{
		ServiceName:          b.name,
		State:                b.state,
		ConsecutiveFailures:  b.consecutiveFailures,
		ConsecutiveSuccesses: b.consecutiveSuccesses,
		LastFailureAt:        b.lastFailureAt,
		HalfOpenInFlight:     b.halfOpenInFlight,
		Metrics:              b.metrics,
	}
}

// Reset forces the breaker back to Closed with all counters zeroed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transitionLocked(StateClosed)
	b.consecutiveFailures = 0
	b.consecutiveSuccesses = 0
	b.halfOpenInFlight = 0
	b.lastFailureAt = nil
}

func (b *Breaker) transitionLocked(to State) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	b.lastStateChange = b.now()
	b.metrics.LastStateChange = b.lastStateChange
	if to == StateOpen {
		b.metrics.OpenCount++
	}
	b.logger.WithFields(logrus.Fields{
		"breaker": b.name,
		"from":    from,
		"to":      to,
	}).Info("circuit breaker state transition")
}

// admit decides, under lock, whether a call may proceed right now. It
// returns the decision plus whether this call is a half-open probe (so the
// caller knows to decrement halfOpenInFlight on completion).
func (b *Breaker) admit() (allowed bool, halfOpenProbe bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true, false
	case StateOpen:
		if b.lastFailureAt != nil && b.now().Sub(*b.lastFailureAt) >= b.cfg.Timeout {
			b.transitionLocked(StateHalfOpen)
			b.consecutiveSuccesses = 0
			b.halfOpenInFlight = 0
			// fall through to HalfOpen admission below
		} else {
			return false, false
		}
		fallthrough
	case StateHalfOpen:
		if b.halfOpenInFlight >= b.cfg.HalfOpenMaxCalls {
			return false, false
		}
		b.halfOpenInFlight++
		return true, true
	}
	return false, false
}

func (b *Breaker) recordLatencyLocked(d time.Duration) {
	if cap(b.latencyRing) == 0 {
		b.latencyRing = make([]time.Duration, 0, b.cfg.RingSize)
	}
	if len(b.latencyRing) < b.cfg.RingSize {
		b.latencyRing = append(b.latencyRing, d)
	} else {
		b.latencyRing[b.ringPos] = d
		b.ringPos = (b.ringPos + 1) % b.cfg.RingSize
	}
	var sum time.Duration
	for _, v := range b.latencyRing {
		sum += v
	}
	b.metrics.MeanLatencyMS = float64(sum.Milliseconds()) / float64(len(b.latencyRing))
}

func (b *Breaker) onResult(halfOpenProbe bool, err error, latency time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.metrics.Total++
	b.recordLatencyLocked(latency)

	if halfOpenProbe {
		b.halfOpenInFlight--
		if b.halfOpenInFlight < 0 {
			b.halfOpenInFlight = 0
		}
	}

	if err == nil {
		b.metrics.Succeeded++
		switch b.state {
		case StateClosed:
			b.consecutiveFailures = 0
		case StateHalfOpen:
			b.consecutiveSuccesses++
			if b.consecutiveSuccesses >= b.cfg.SuccessThreshold {
				b.transitionLocked(StateClosed)
				b.consecutiveFailures = 0
				b.consecutiveSuccesses = 0
				b.halfOpenInFlight = 0
			}
		}
		return
	}

	b.metrics.Failed++
	now := b.now()
	switch b.state {
	case StateClosed:
		b.consecutiveFailures++
		if b.consecutiveFailures >= b.cfg.FailureThreshold {
			b.transitionLocked(StateOpen)
			b.lastFailureAt = &now
		}
	case StateHalfOpen:
		b.transitionLocked(StateOpen)
		b.lastFailureAt = &now
		b.consecutiveSuccesses = 0
		b.halfOpenInFlight = 0
	}
}

// Invoke runs op if the breaker's state permits it, short-circuiting with a
// ServiceUnavailable error otherwise. The breaker never retries; C2 is
// responsible for retrying.
func (b *Breaker) Invoke(ctx context.Context, op Operation) error {
	allowed, halfOpenProbe := b.admit()
	if !allowed {
		return orcherrors.ServiceUnavailable(b.name).WithDetailsf("circuit breaker open: %s", b.statusSummary())
	}

	start := b.now()
	err := op(ctx)
	b.onResult(halfOpenProbe, err, b.now().Sub(start))
	return err
}

func (b *Breaker) statusSummary() string {
	s := b.Status()
	return string(s.State)
}
