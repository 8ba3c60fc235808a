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

// Package timeout implements the conversation timeout monitor: an in-memory
// registry of per-workflow deadlines, scanned periodically for warnings and
// expirations.
package timeout

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/brightline/collections-orchestrator/pkg/domain"
)

// WarningWindow is the lead time before expiry at which a warning fires.
const WarningWindow = 6 * time.Hour

// ScanResult is check()'s return value: the workflows that expired this
// scan, and the ones that crossed into the warning window.
type ScanResult struct {
	Expired  []domain.WorkflowTimeout
	Warnings []domain.WorkflowTimeout
}

// Monitor is the in-memory timeout registry.
type Monitor struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*domain.WorkflowTimeout
	nowFn   func() time.Time
}

// New creates an empty Monitor.
func New() *Monitor {
	return &Monitor{
		entries: map[uuid.UUID]*domain.WorkflowTimeout{},
		nowFn:   time.Now,
	}
}

func (m *Monitor) now() time.Time {
	if m.nowFn != nil {
		return m.nowFn()
	}
	return time.Now()
}

// Start registers a new workflow timeout, or resets an existing one, at
// workflow start or after every outbound AI response (upsert semantics).
func (m *Monitor) Start(workflowID uuid.UUID, customerPhone string, threshold time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.entries[workflowID] = &domain.WorkflowTimeout{
		WorkflowID:     workflowID,
		CustomerPhone:  customerPhone,
		LastAIResponse: now,
		Threshold:      threshold,
		State:          domain.TimeoutActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// UpdateOnResponse resets the clock for workflowID after a new AI response,
// clearing any warning flag. A no-op if the workflow isn't registered.
func (m *Monitor) UpdateOnResponse(workflowID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[workflowID]
	if !ok {
		return
	}
	now := m.now()
	e.LastAIResponse = now
	e.UpdatedAt = now
	e.State = domain.TimeoutActive
	e.WarningSent = false
}

// MarkEscalated records that workflowID's expiry has already triggered an
// escalation. Idempotent: calling it twice has no additional effect
// (invariant I4).
func (m *Monitor) MarkEscalated(workflowID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[workflowID]
	if !ok {
		return
	}
	e.EscalationTriggered = true
	e.State = domain.TimeoutEscalated
	e.UpdatedAt = m.now()
}

// Remove deletes workflowID's entry on workflow termination.
func (m *Monitor) Remove(workflowID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, workflowID)
}

// Get returns a copy of workflowID's entry, if registered.
func (m *Monitor) Get(workflowID uuid.UUID) (domain.WorkflowTimeout, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[workflowID]
	if !ok {
		return domain.WorkflowTimeout{}, false
	}
	return *e, true
}

// Check runs the periodic scan: entries past their threshold and not yet
// escalated are marked Expired; entries within the warning window that
// haven't yet warned are marked Warning.
func (m *Monitor) Check() ScanResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var result ScanResult
	for _, e := range m.entries {
		remaining := e.LastAIResponse.Add(e.Threshold).Sub(now)
		switch {
		case remaining <= 0 && !e.EscalationTriggered:
			e.State = domain.TimeoutExpired
			e.UpdatedAt = now
			result.Expired = append(result.Expired, *e)
		case remaining > 0 && remaining <= WarningWindow && !e.WarningSent:
			e.WarningSent = true
			e.State = domain.TimeoutWarning
			e.UpdatedAt = now
			result.Warnings = append(result.Warnings, *e)
		}
	}
	return result
}

// Cleanup removes escalated entries whose CreatedAt is older than age (the
// 7-day sweep); entries that never escalated are kept.
func (m *Monitor) Cleanup(age time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for id, e := range m.entries {
		if e.EscalationTriggered && now.Sub(e.CreatedAt) > age {
			delete(m.entries, id)
			removed++
		}
	}
	return removed
}

// Len reports the number of registered entries.
func (m *Monitor) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Run blocks, invoking onScan every scanInterval until ctx-equivalent stop
// is closed. The caller typically runs this in its own goroutine.
func (m *Monitor) Run(stop <-chan struct{}, scanInterval time.Duration, onScan func(ScanResult)) {
	ticker := time.NewTicker(scanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			onScan(m.Check())
		}
	}
}
