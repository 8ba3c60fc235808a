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

package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	orcherrors "github.com/brightline/collections-orchestrator/internal/errors"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"
)

func TestCircuitBreaker(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Circuit Breaker Suite")
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.FatalLevel)
	return l
}

func fail(ctx context.Context) error    { return errors.New("boom") }
func succeed(ctx context.Context) error { return nil }

var _ = Describe("Circuit Breaker state machine", func() {
	var logger *logrus.Logger

	BeforeEach(func() {
		logger = testLogger()
	})

	It("initializes Closed with zeroed counters", func() {
		b := New("svc", DefaultConfig(), logger)
		s := b.Status()
		Expect(s.State).To(Equal(StateClosed))
		Expect(s.ConsecutiveFailures).To(Equal(0))
		Expect(s.ConsecutiveSuccesses).To(Equal(0))
	})

	It("trips to Open after exactly failure_threshold consecutive failures (I: boundary)", func() {
		cfg := DefaultConfig()
		cfg.FailureThreshold = 3
		b := New("svc", cfg, logger)

		Expect(b.Invoke(context.Background(), fail)).To(HaveOccurred())
		Expect(b.Status().State).To(Equal(StateClosed))
		Expect(b.Invoke(context.Background(), fail)).To(HaveOccurred())
		Expect(b.Status().State).To(Equal(StateClosed))
		Expect(b.Invoke(context.Background(), fail)).To(HaveOccurred())
		Expect(b.Status().State).To(Equal(StateOpen))
	})

	It("resets consecutive_failures to 0 on every success while Closed", func() {
		b := New("svc", DefaultConfig(), logger)
		_ = b.Invoke(context.Background(), fail)
		Expect(b.Status().ConsecutiveFailures).To(Equal(1))
		_ = b.Invoke(context.Background(), succeed)
		Expect(b.Status().ConsecutiveFailures).To(Equal(0))
	})

	It("short-circuits with ServiceUnavailable while Open, without invoking the operation", func() {
		cfg := DefaultConfig()
		cfg.FailureThreshold = 1
		b := New("svc", cfg, logger)
		Expect(b.Invoke(context.Background(), fail)).To(HaveOccurred())
		Expect(b.Status().State).To(Equal(StateOpen))

		called := false
		err := b.Invoke(context.Background(), func(ctx context.Context) error {
			called = true
			return nil
		})
		Expect(called).To(BeFalse())
		ae, ok := orcherrors.As(err)
		Expect(ok).To(BeTrue())
		Expect(ae.Type).To(Equal(orcherrors.ErrorTypeServiceUnavail))
	})

	It("transitions Open to HalfOpen once the reset timeout elapses, then closes after success_threshold successes", func() {
		cfg := DefaultConfig()
		cfg.FailureThreshold = 1
		cfg.SuccessThreshold = 2
		cfg.Timeout = 10 * time.Millisecond
		b := New("svc", cfg, logger)

		Expect(b.Invoke(context.Background(), fail)).To(HaveOccurred())
		Expect(b.Status().State).To(Equal(StateOpen))

		time.Sleep(20 * time.Millisecond)

		Expect(b.Invoke(context.Background(), succeed)).ToNot(HaveOccurred())
		Expect(b.Status().State).To(Equal(StateHalfOpen))

		Expect(b.Invoke(context.Background(), succeed)).ToNot(HaveOccurred())
		Expect(b.Status().State).To(Equal(StateClosed))
		Expect(b.Status().ConsecutiveFailures).To(Equal(0))
	})

	It("any single failure in HalfOpen immediately reopens the breaker (invariant I1)", func() {
		cfg := DefaultConfig()
		cfg.FailureThreshold = 1
		cfg.Timeout = 10 * time.Millisecond
		b := New("svc", cfg, logger)

		Expect(b.Invoke(context.Background(), fail)).To(HaveOccurred())
		time.Sleep(20 * time.Millisecond)
		Expect(b.Invoke(context.Background(), fail)).To(HaveOccurred())
		Expect(b.Status().State).To(Equal(StateOpen))
	})

	It("rejects calls beyond half_open_max_calls while probing", func() {
		cfg := DefaultConfig()
		cfg.FailureThreshold = 1
		cfg.Timeout = 10 * time.Millisecond
		cfg.HalfOpenMaxCalls = 2
		cfg.SuccessThreshold = 100
		b := New("svc", cfg, logger)

		Expect(b.Invoke(context.Background(), fail)).To(HaveOccurred())
		time.Sleep(20 * time.Millisecond)

		release := make(chan struct{})
		var wg sync.WaitGroup
		results := make([]error, 3)
		for i := 0; i < 3; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i] = b.Invoke(context.Background(), func(ctx context.Context) error {
					<-release
					return nil
				})
			}(i)
		}
		// Give the goroutines a moment to all reach admit().
		time.Sleep(20 * time.Millisecond)
		close(release)
		wg.Wait()

		rejected := 0
		for _, err := range results {
			if err != nil {
				if ae, ok := orcherrors.As(err); ok && ae.Type == orcherrors.ErrorTypeServiceUnavail {
					rejected++
				}
			}
		}
		Expect(rejected).To(Equal(1))
	})

	It("computes a rolling mean latency from the last 100 calls", func() {
		b := New("svc", DefaultConfig(), logger)
		for i := 0; i < 5; i++ {
			_ = b.Invoke(context.Background(), succeed)
		}
		Expect(b.Status().Metrics.Total).To(Equal(int64(5)))
		Expect(b.Status().Metrics.MeanLatencyMS).To(BeNumerically(">=", 0))
	})

	It("Reset forces Closed with zeroed counters", func() {
		cfg := DefaultConfig()
		cfg.FailureThreshold = 1
		b := New("svc", cfg, logger)
		_ = b.Invoke(context.Background(), fail)
		Expect(b.Status().State).To(Equal(StateOpen))

		b.Reset()
		s := b.Status()
		Expect(s.State).To(Equal(StateClosed))
		Expect(s.ConsecutiveFailures).To(Equal(0))
		Expect(s.HalfOpenInFlight).To(Equal(0))
	})
})
