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

// Package metrics implements the metrics sink on top of
// github.com/prometheus/client_golang: counters, gauges, and histograms are
// registered once via promauto against a package-local registry, and
// Expose renders that registry in the text exposition format. Every
// recorded value is also appended to a bounded per-name series of
// timestamped points; Summary and Dashboard compute their ad-hoc window
// aggregates from that series, not from the registry.
package metrics

import (
	"bytes"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

const (
	windowPoints      = 10000
	histogramCapacity = 1000
)

type point struct {
	value float64
	at    time.Time
}

// Sink is the orchestrator's metrics registry and ad-hoc aggregation layer.
type Sink struct {
	registry *prometheus.Registry

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
	series     map[string][]point
	samples    map[string][]float64

	nowFn func() time.Time
}

// New creates a Sink with its own prometheus.Registry, so multiple Sinks
// (e.g. in tests) never collide on the default global registry.
func New() *Sink {
	return &Sink{
		registry:   prometheus.NewRegistry(),
		counters:   map[string]*prometheus.CounterVec{},
		gauges:     map[string]*prometheus.GaugeVec{},
		histograms: map[string]*prometheus.HistogramVec{},
		series:     map[string][]point{},
		samples:    map[string][]float64{},
		nowFn:      time.Now,
	}
}

func (s *Sink) now() time.Time {
	if s.nowFn != nil {
		return s.nowFn()
	}
	return time.Now()
}

func (s *Sink) counter(name, help string, labels []string) *prometheus.CounterVec {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.counters[name]; ok {
		return c
	}
	c := promauto.With(s.registry).NewCounterVec(prometheus.CounterOpts{
		Name: name,
		Help: help,
	}, labels)
	s.counters[name] = c
	return c
}

func (s *Sink) gauge(name, help string, labels []string) *prometheus.GaugeVec {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.gauges[name]; ok {
		return g
	}
	g := promauto.With(s.registry).NewGaugeVec(prometheus.GaugeOpts{
		Name: name,
		Help: help,
	}, labels)
	s.gauges[name] = g
	return g
}

func (s *Sink) histogram(name, help string, labels []string) *prometheus.HistogramVec {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.histograms[name]; ok {
		return h
	}
	h := promauto.With(s.registry).NewHistogramVec(prometheus.HistogramOpts{
		Name:    name,
		Help:    help,
		Buckets: prometheus.DefBuckets,
	}, labels)
	s.histograms[name] = h
	return h
}

// IncCounter increments a monotonic counter, registering it on first use.
func (s *Sink) IncCounter(name, help string, labelValues ...string) {
	labels := labelNames(len(labelValues))
	s.counter(name, help, labels).WithLabelValues(labelValues...).Inc()
	s.recordSeries(name, 1)
}

// SetGauge sets a last-value gauge, registering it on first use.
func (s *Sink) SetGauge(name, help string, value float64, labelValues ...string) {
	labels := labelNames(len(labelValues))
	s.gauge(name, help, labels).WithLabelValues(labelValues...).Set(value)
	s.recordSeries(name, value)
}

// ObserveHistogram records a sample into a histogram, registering it on
// first use, and appends it to the bounded per-name series read by
// Summary() and to a bounded sample ring.
func (s *Sink) ObserveHistogram(name, help string, value float64, labelValues ...string) {
	labels := labelNames(len(labelValues))
	s.histogram(name, help, labels).WithLabelValues(labelValues...).Observe(value)
	s.recordSeries(name, value)

	s.mu.Lock()
	defer s.mu.Unlock()
	samples := s.samples[name]
	if len(samples) >= histogramCapacity {
		samples = samples[1:]
	}
	s.samples[name] = append(samples, value)
}

func (s *Sink) recordSeries(name string, value float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	series := s.series[name]
	if len(series) >= windowPoints {
		series = series[1:]
	}
	s.series[name] = append(series, point{value: value, at: s.now()})
}

// labelNames synthesizes positional label names (l0, l1, ...) so callers can
// pass label values without predeclaring a schema per metric.
func labelNames(n int) []string {
	if n == 0 {
		return nil
	}
	names := make([]string, n)
	for i := range names {
		names[i] = "l" + string(rune('0'+i))
	}
	return names
}

// Summary is the aggregation returned by Summary(name, window).
type Summary struct {
	Name  string
	Count int
	P50   float64
	P90   float64
	P99   float64
	Rate  float64 // count per second over window
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p * float64(len(sorted)-1)))
	return sorted[idx]
}

// Summary computes p50/p90/p99 and a per-second rate from the points
// recorded for name within the last window.
func (s *Sink) Summary(name string, window time.Duration) Summary {
	s.mu.Lock()
	series := append([]point(nil), s.series[name]...)
	s.mu.Unlock()

	cutoff := s.now().Add(-window)
	var values []float64
	for _, p := range series {
		if p.at.After(cutoff) {
			values = append(values, p.value)
		}
	}
	sort.Float64s(values)

	rate := 0.0
	if window > 0 {
		rate = float64(len(values)) / window.Seconds()
	}

	return Summary{
		Name:  name,
		Count: len(values),
		P50:   percentile(values, 0.50),
		P90:   percentile(values, 0.90),
		P99:   percentile(values, 0.99),
		Rate:  rate,
	}
}

// Dashboard returns a Summary over the last 5 minutes for every metric with
// recorded samples.
func (s *Sink) Dashboard() []Summary {
	s.mu.Lock()
	names := make([]string, 0, len(s.series))
	for name := range s.series {
		names = append(names, name)
	}
	s.mu.Unlock()

	sort.Strings(names)
	summaries := make([]Summary, 0, len(names))
	for _, name := range names {
		summaries = append(summaries, s.Summary(name, 5*time.Minute))
	}
	return summaries
}

// Expose renders the registry's collected metrics in Prometheus text
// exposition format, via the library's own expfmt writer.
func (s *Sink) Expose() ([]byte, error) {
	families, err := s.registry.Gather()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	encoder := expfmt.NewEncoder(&buf, expfmt.FmtText)
	for _, mf := range families {
		if err := encoder.Encode(mf); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// Registry exposes the underlying prometheus.Registry, e.g. for mounting
// promhttp.HandlerFor at D7's ingress layer.
func (s *Sink) Registry() *prometheus.Registry {
	return s.registry
}
