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

// Package degradation implements an aggregate health controller: it
// watches per-service levels (fed by circuitbreaker.Status elsewhere in the
// pipeline), derives one of five operating modes, gates operations against
// that mode, and defers what it can't run right now.
package degradation

import (
	"sort"
	"sync"
	"time"
)

// Mode is one of the controller's five operating modes, ordered from most to
// least permissive.
type Mode string

const (
	ModeFull      Mode = "Full"
	ModePartial   Mode = "Partial"
	ModeReadOnly  Mode = "ReadOnly"
	ModeOffline   Mode = "Offline"
	ModeEmergency Mode = "Emergency"
)

// OpKind distinguishes a read from a write from an emergency-exempt op, for
// gating purposes.
type OpKind string

const (
	OpRead      OpKind = "read"
	OpWrite     OpKind = "write"
	OpEmergency OpKind = "emergency"
)

// ServiceHealth is the raw signal the controller derives a level from.
type ServiceHealth struct {
	Available        bool
	CircuitOpen      bool
	ErrorRate        float64
	ResponseTime     time.Duration
	Critical         bool
}

// Level maps a ServiceHealth observation to a [0,1] degradation level.
func Level(h ServiceHealth) float64 {
	if !h.Available || h.CircuitOpen {
		return 1.0
	}
	if h.ErrorRate >= 0.5 {
		return 0.8
	}
	if h.ErrorRate >= 0.2 {
		return 0.5
	}
	if h.ResponseTime > 5*time.Second {
		return 0.3
	}
	return 0.1 * h.ErrorRate
}

// FallbackFunc synthesizes a result in place of calling the real service.
type FallbackFunc func() (result any, err error)

// Decision is the Gate's verdict for one operation.
type Decision struct {
	Allowed      bool
	ShouldQueue  bool
	FallbackUsed bool
	Result       any
	Err          error
	Reason       string
}

// Observer is notified of mode transitions. Observer errors never abort
// other observers.
type Observer func(from, to Mode)

// deferredOp is one entry in the deferred FIFO queue.
type deferredOp struct {
	service  string
	priority int
	attempts int
	op       func() error
}

// Controller is the degradation controller singleton for the process.
type Controller struct {
	mu sync.Mutex

	levels    map[string]float64
	critical  map[string]bool
	fallbacks map[string]FallbackFunc
	mode      Mode
	observers []Observer
	queue     []*deferredOp

	nowFn func() time.Time
}

// New creates a Controller starting in Full mode with no known services.
func New() *Controller {
	return &Controller{
		levels:    map[string]float64{},
		critical:  map[string]bool{},
		fallbacks: map[string]FallbackFunc{},
		mode:      ModeFull,
		nowFn:     time.Now,
	}
}

// RegisterFallback installs a fallback handler for service, invoked by the
// gate when the service is fully degraded but a fallback exists.
func (c *Controller) RegisterFallback(service string, fn FallbackFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fallbacks[service] = fn
}

// Observe watches f's future mode transitions.
func (c *Controller) Observe(f Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, f)
}

// Mode returns the controller's current mode.
func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// UpdateStatus records a fresh health observation for service and
// recomputes the aggregate mode, firing observers on a transition.
func (c *Controller) UpdateStatus(service string, h ServiceHealth) {
	c.mu.Lock()
	level := Level(h)
	c.levels[service] = level
	c.critical[service] = h.Critical
	from := c.mode
	to := c.selectModeLocked()
	c.mode = to
	observers := append([]Observer(nil), c.observers...)
	c.mu.Unlock()

	if from != to {
		for _, obs := range observers {
			obs(from, to)
		}
	}
}

// selectModeLocked derives the operating mode from the current per-service
// levels. Caller must hold c.mu.
func (c *Controller) selectModeLocked() Mode {
	total := len(c.levels)
	if total == 0 {
		return ModeFull
	}
	var criticalDegraded, anyDegraded int
	for svc, lvl := range c.levels {
		if lvl > 0.8 {
			anyDegraded++
			if c.critical[svc] {
				criticalDegraded++
			}
		}
	}
	t := float64(total)
	switch {
	case criticalDegraded >= 2 || float64(anyDegraded) >= 0.7*t:
		return ModeEmergency
	case criticalDegraded >= 1 || float64(anyDegraded) >= 0.5*t:
		return ModeOffline
	case float64(anyDegraded) >= 0.3*t:
		return ModeReadOnly
	case anyDegraded > 0:
		return ModePartial
	default:
		return ModeFull
	}
}

// CanExecute is the controller's gate: given the current mode and the kind
// of operation being attempted against service, it decides whether to allow,
// queue, reject, or fall back.
func (c *Controller) CanExecute(service string, kind OpKind) Decision {
	c.mu.Lock()
	mode := c.mode
	level := c.levels[service]
	fallback, hasFallback := c.fallbacks[service]
	c.mu.Unlock()

	if level >= 1.0 && hasFallback {
		result, err := fallback()
		return Decision{Allowed: true, FallbackUsed: true, Result: result, Err: err, Reason: "fallback"}
	}

	switch mode {
	case ModeFull, ModePartial:
		return Decision{Allowed: true, Reason: string(mode)}
	case ModeReadOnly:
		if kind == OpWrite {
			return Decision{Allowed: false, ShouldQueue: true, Reason: "read-only mode defers writes"}
		}
		return Decision{Allowed: true, Reason: string(mode)}
	case ModeOffline:
		return Decision{Allowed: false, ShouldQueue: true, Reason: "offline mode defers all operations"}
	case ModeEmergency:
		if kind == OpEmergency {
			return Decision{Allowed: true, Reason: string(mode)}
		}
		return Decision{Allowed: false, ShouldQueue: false, Reason: "emergency mode rejects non-emergency operations"}
	}
	return Decision{Allowed: true}
}

// Defer enqueues op for later retry, ordered by priority (higher first,
// FIFO within the same priority).
func (c *Controller) Defer(service string, priority int, op func() error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue = append(c.queue, &deferredOp{service: service, priority: priority, op: op})
	sort.SliceStable(c.queue, func(i, j int) bool {
		return c.queue[i].priority > c.queue[j].priority
	})
}

// QueueLen reports the number of operations currently deferred.
func (c *Controller) QueueLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Drain attempts every deferred operation once, in priority order,
// discarding any that have already failed 3 times.
func (c *Controller) Drain() (succeeded, discarded int) {
	c.mu.Lock()
	pending := c.queue
	c.queue = nil
	c.mu.Unlock()

	var retained []*deferredOp
	for _, d := range pending {
		if err := d.op(); err != nil {
			d.attempts++
			if d.attempts >= 3 {
				discarded++
				continue
			}
			retained = append(retained, d)
			continue
		}
		succeeded++
	}

	c.mu.Lock()
	c.queue = append(retained, c.queue...)
	sort.SliceStable(c.queue, func(i, j int) bool {
		return c.queue[i].priority > c.queue[j].priority
	})
	c.mu.Unlock()
	return succeeded, discarded
}
