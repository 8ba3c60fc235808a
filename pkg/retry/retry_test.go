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

package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	orcherrors "github.com/brightline/collections-orchestrator/internal/errors"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestRetry(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Retry Policy Suite")
}

var _ = Describe("Retry policy", func() {
	It("retries a retryable error up to max_attempts then gives up", func() {
		cfg := DefaultConfig()
		cfg.MaxAttempts = 3
		cfg.BaseDelay = time.Millisecond
		cfg.MaxDelay = 5 * time.Millisecond
		cfg.Retryable = func(error) bool { return true }
		p := New(cfg)

		attempts := 0
		err := p.Do(context.Background(), func(ctx context.Context) error {
			attempts++
			return errors.New("transient")
		})

		Expect(err).To(HaveOccurred())
		Expect(attempts).To(Equal(3))
	})

	It("stops retrying as soon as the operation succeeds", func() {
		cfg := DefaultConfig()
		cfg.BaseDelay = time.Millisecond
		cfg.MaxDelay = 5 * time.Millisecond
		cfg.Retryable = func(error) bool { return true }
		p := New(cfg)

		attempts := 0
		err := p.Do(context.Background(), func(ctx context.Context) error {
			attempts++
			if attempts < 2 {
				return errors.New("transient")
			}
			return nil
		})

		Expect(err).ToNot(HaveOccurred())
		Expect(attempts).To(Equal(2))
	})

	It("never retries a ServiceUnavailable error from the circuit breaker (invariant I2)", func() {
		cfg := DefaultConfig()
		cfg.BaseDelay = time.Millisecond
		cfg.Retryable = DefaultRetryable
		p := New(cfg)

		attempts := 0
		err := p.Do(context.Background(), func(ctx context.Context) error {
			attempts++
			return orcherrors.ServiceUnavailable("llm")
		})

		Expect(err).To(HaveOccurred())
		Expect(attempts).To(Equal(1))
	})

	It("does not retry a non-retryable business error", func() {
		cfg := DefaultConfig()
		cfg.Retryable = DefaultRetryable
		p := New(cfg)

		attempts := 0
		err := p.Do(context.Background(), func(ctx context.Context) error {
			attempts++
			return orcherrors.Validation("bad input")
		})

		Expect(err).To(HaveOccurred())
		Expect(attempts).To(Equal(1))
	})

	Describe("composition", func() {
		type fakeBreaker struct {
			calls int
			err   error
		}

		It("Protect composes retry(circuit(op)) so breaker rejection short-circuits without further retries", func() {
			cfg := DefaultConfig()
			cfg.BaseDelay = time.Millisecond
			cfg.Retryable = DefaultRetryable
			p := New(cfg)

			fb := &fakeBreaker{err: orcherrors.ServiceUnavailable("sms")}
			invoke := func(ctx context.Context, op func(ctx context.Context) error) error {
				fb.calls++
				return fb.err
			}

			protected := Protect(breakerFunc(invoke), p, func(ctx context.Context) error {
				return nil
			})

			err := protected(context.Background())
			Expect(err).To(HaveOccurred())
			Expect(fb.calls).To(Equal(1))
		})
	})
})

type breakerFunc func(ctx context.Context, op func(ctx context.Context) error) error

func (f breakerFunc) Invoke(ctx context.Context, op func(ctx context.Context) error) error {
	return f(ctx, op)
}
