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

// Package approval implements the approval queue: a pending-reply store
// guarded by one queue-wide mutex, an append-only audit log, and a manager action
// state machine that is guaranteed to apply exactly once per entry.
package approval

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	orcherrors "github.com/brightline/collections-orchestrator/internal/errors"
	"github.com/brightline/collections-orchestrator/pkg/domain"
)

// SMSSender sends the final reply text to the customer.
type SMSSender interface {
	Send(ctx context.Context, conversationID, text string) error
}

// EscalationHandoff routes an Escalate action to C8 as a Manual event.
type EscalationHandoff interface {
	FromManual(ctx context.Context, workflowID uuid.UUID, customerPhone string, reason domain.TriggerReason) error
}

// AuditStore persists AuditRecords.
type AuditStore interface {
	Append(ctx context.Context, record domain.AuditRecord) error
}

// Queue is the in-memory approval queue. The map here is the unit of
// locking and the only copy of the entries: nothing writes them to D5's
// postgres approval store, so they do not survive a process restart.
// Audit records go to the AuditStore.
type Queue struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*domain.QueueEntry

	sms        SMSSender
	escalation EscalationHandoff
	audit      AuditStore
	nowFn      func() time.Time
}

// New creates an empty Queue wired to its collaborators.
func New(sms SMSSender, escalation EscalationHandoff, audit AuditStore) *Queue {
	return &Queue{
		entries:    map[uuid.UUID]*domain.QueueEntry{},
		sms:        sms,
		escalation: escalation,
		audit:      audit,
		nowFn:      time.Now,
	}
}

func (q *Queue) now() time.Time {
	if q.nowFn != nil {
		return q.nowFn()
	}
	return time.Now()
}

// Enqueue creates a Pending entry for a candidate reply awaiting manager
// review and returns its id.
func (q *Queue) Enqueue(workflowID uuid.UUID, conversationID, tenantMessage, aiReply string, confidence float64) uuid.UUID {
	q.mu.Lock()
	defer q.mu.Unlock()
	entry := &domain.QueueEntry{
		ID:             uuid.New(),
		WorkflowID:     workflowID,
		ConversationID: conversationID,
		TenantMessage:  tenantMessage,
		AIReply:        aiReply,
		Confidence:     confidence,
		Status:         domain.ApprovalPending,
		CreatedAt:      q.now(),
	}
	q.entries[entry.ID] = entry
	return entry.ID
}

// Get returns a copy of the entry, if present.
func (q *Queue) Get(queueID uuid.UUID) (domain.QueueEntry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.entries[queueID]
	if !ok {
		return domain.QueueEntry{}, false
	}
	return *e, true
}

// Action applies a manager's decision to queueID. A queue entry is actioned
// exactly once: a second call returns AlreadyActioned.
func (q *Queue) Action(ctx context.Context, queueID uuid.UUID, action domain.ManagerAction) error {
	var newStatus domain.ApprovalStatus
	switch action.Kind {
	case domain.ActionApprove:
		newStatus = domain.ApprovalApproved
	case domain.ActionModify:
		newStatus = domain.ApprovalModified
	case domain.ActionEscalate:
		newStatus = domain.ApprovalEscalated
	case domain.ActionReject:
		newStatus = domain.ApprovalExpired
	default:
		return orcherrors.Validation("unknown manager action kind")
	}

	q.mu.Lock()
	entry, ok := q.entries[queueID]
	if !ok {
		q.mu.Unlock()
		return orcherrors.New(orcherrors.ErrorTypeNotFound, "approval queue entry not found")
	}
	if entry.Status != domain.ApprovalPending {
		q.mu.Unlock()
		return orcherrors.AlreadyActioned(queueID.String())
	}
	// Reserve the entry's final status under lock before doing any
	// collaborator I/O, so a concurrent second Action call sees
	// non-Pending immediately and fails fast instead of racing past this
	// check into its own side effects.
	entry.ManagerAction = &action
	entry.Status = newStatus
	aiReply := entry.AIReply
	conversationID := entry.ConversationID
	workflowID := entry.WorkflowID
	q.mu.Unlock()

	var (
		finalReply string
		sendErr    error
	)

	switch action.Kind {
	case domain.ActionApprove:
		finalReply = aiReply
		if q.sms != nil {
			sendErr = q.sms.Send(ctx, conversationID, finalReply)
		}
	case domain.ActionModify:
		finalReply = action.ModifiedText
		if q.sms != nil {
			sendErr = q.sms.Send(ctx, conversationID, finalReply)
		}
	case domain.ActionEscalate:
		if q.escalation != nil {
			sendErr = q.escalation.FromManual(ctx, workflowID, conversationID, domain.ReasonDissatisfaction)
		}
	case domain.ActionReject:
		// no send
	}

	q.mu.Lock()
	now := q.now()
	entry.FinalReply = finalReply
	entry.ActionedBy = action.Actor
	entry.ActionedAt = &now
	q.mu.Unlock()

	if q.audit != nil {
		record := domain.AuditRecord{
			ID:            uuid.New(),
			QueueEntryID:  queueID,
			Action:        action.Kind,
			OriginalReply: entry.AIReply,
			FinalReply:    finalReply,
			Reason:        action.Reason,
			Actor:         action.Actor,
			CreatedAt:     now,
		}
		if auditErr := q.audit.Append(ctx, record); auditErr != nil && sendErr == nil {
			sendErr = auditErr
		}
	}

	return sendErr
}

// SweepExpired marks Pending entries older than ceiling as eligible for
// auto-escalation and returns them; this is the approval timeout, distinct
// from C7's conversation timeout.
func (q *Queue) SweepExpired(ceiling time.Duration) []domain.QueueEntry {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	var due []domain.QueueEntry
	for _, e := range q.entries {
		if e.Status == domain.ApprovalPending && now.Sub(e.CreatedAt) > ceiling {
			e.Status = domain.ApprovalExpired
			due = append(due, *e)
		}
	}
	return due
}
