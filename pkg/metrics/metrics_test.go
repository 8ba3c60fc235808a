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

package metrics

import (
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Metrics Sink Suite")
}

var _ = Describe("Sink", func() {
	It("registers and increments a counter, observable through the registry", func() {
		s := New()
		s.IncCounter("workflows_completed_total", "completed workflows")
		s.IncCounter("workflows_completed_total", "completed workflows")

		count := testutil.CollectAndCount(s.Registry(), "workflows_completed_total")
		Expect(count).To(Equal(1))
	})

	It("sets a gauge to its last value", func() {
		s := New()
		s.SetGauge("queue_depth", "pending approvals", 3)
		s.SetGauge("queue_depth", "pending approvals", 7)
		families, err := s.Registry().Gather()
		Expect(err).ToNot(HaveOccurred())
		Expect(families).ToNot(BeEmpty())
		Expect(testutil.ToFloat64(s.gauges["queue_depth"])).To(Equal(7.0))
	})

	It("computes percentile summaries from recorded histogram samples", func() {
		s := New()
		for _, v := range []float64{10, 20, 30, 40, 50} {
			s.ObserveHistogram("llm_latency_ms", "LLM latency", v)
		}
		summary := s.Summary("llm_latency_ms", time.Hour)
		Expect(summary.Count).To(Equal(5))
		Expect(summary.P50).To(BeNumerically(">=", 10))
		Expect(summary.P99).To(Equal(50.0))
	})

	It("excludes points recorded before the requested window", func() {
		s := New()
		base := time.Now()
		s.nowFn = func() time.Time { return base.Add(-2 * time.Hour) }
		s.ObserveHistogram("llm_latency_ms", "LLM latency", 999)
		s.nowFn = func() time.Time { return base }
		s.ObserveHistogram("llm_latency_ms", "LLM latency", 10)

		summary := s.Summary("llm_latency_ms", time.Minute)
		Expect(summary.Count).To(Equal(1))
	})

	It("Dashboard returns a summary per metric with recorded samples", func() {
		s := New()
		s.IncCounter("a_total", "a")
		s.SetGauge("b_gauge", "b", 1)
		dash := s.Dashboard()
		Expect(len(dash)).To(Equal(2))
	})

	It("Expose renders Prometheus text exposition format", func() {
		s := New()
		s.IncCounter("workflows_completed_total", "completed workflows")
		body, err := s.Expose()
		Expect(err).ToNot(HaveOccurred())
		Expect(string(body)).To(ContainSubstring("workflows_completed_total"))
	})
})
