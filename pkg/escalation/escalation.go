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

// Package escalation implements the escalation engine: it turns trigger
// detections, timeout expirations, and manual requests into
// EscalationEvents and fans each one out to the tenant-data service, the SMS
// gateway, and internal operators on a best-effort, ordered basis.
package escalation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/brightline/collections-orchestrator/pkg/domain"
)

// Persister records an EscalationEvent durably.
type Persister interface {
	Persist(ctx context.Context, event domain.EscalationEvent) error
}

// TenantNotifier tells the tenant-data service a human has taken over.
type TenantNotifier interface {
	NotifyHandoff(ctx context.Context, workflowID uuid.UUID) error
}

// SMSPauser pauses outbound SMS for a workflow mid-escalation.
type SMSPauser interface {
	Pause(ctx context.Context, workflowID uuid.UUID) error
}

// OperatorNotifier alerts internal operators.
type OperatorNotifier interface {
	NotifyOperators(ctx context.Context, event domain.EscalationEvent) error
	NotifyWarning(ctx context.Context, timeout domain.WorkflowTimeout) error
}

// TimeoutMarker is the subset of C7 the engine calls back into.
type TimeoutMarker interface {
	MarkEscalated(workflowID uuid.UUID)
}

// Engine is the escalation engine.
type Engine struct {
	persister Persister
	tenant    TenantNotifier
	sms       SMSPauser
	operators OperatorNotifier
	timeouts  TimeoutMarker
	logger    logrus.FieldLogger
	nowFn     func() time.Time
}

// New creates an Engine wired to its collaborators.
func New(persister Persister, tenant TenantNotifier, sms SMSPauser, operators OperatorNotifier, timeouts TimeoutMarker, logger logrus.FieldLogger) *Engine {
	if logger == nil {
		logger = logrus.New()
	}
	return &Engine{
		persister: persister,
		tenant:    tenant,
		sms:       sms,
		operators: operators,
		timeouts:  timeouts,
		logger:    logger,
		nowFn:     time.Now,
	}
}

func (e *Engine) now() time.Time {
	if e.nowFn != nil {
		return e.nowFn()
	}
	return time.Now()
}

// FromTrigger builds an event for an inbound message whose trigger analysis
// crossed the should_escalate threshold, then fans it out.
func (e *Engine) FromTrigger(ctx context.Context, workflowID uuid.UUID, customerPhone string, primary domain.Trigger) error {
	event := domain.EscalationEvent{
		ID:            uuid.New(),
		WorkflowID:    workflowID,
		CustomerPhone: customerPhone,
		Kind:          domain.EscalationTriggerBased,
		Reason:        primary.Reason,
		Confidence:    primary.Confidence,
		MatchedText:   primary.MatchedText,
		Timestamp:     e.now(),
	}
	return e.trigger(ctx, event)
}

// FromTimeout builds an event for a workflow whose conversation timeout
// expired, then fans it out and marks the timeout escalated.
func (e *Engine) FromTimeout(ctx context.Context, entry domain.WorkflowTimeout) error {
	event := domain.EscalationEvent{
		ID:            uuid.New(),
		WorkflowID:    entry.WorkflowID,
		CustomerPhone: entry.CustomerPhone,
		Kind:          domain.EscalationTimeoutBased,
		Reason:        domain.ReasonDissatisfaction,
		Confidence:    1.0,
		MatchedText:   "timeout exceeded",
		Timestamp:     e.now(),
	}
	err := e.trigger(ctx, event)
	if e.timeouts != nil {
		e.timeouts.MarkEscalated(entry.WorkflowID)
	}
	return err
}

// FromManual builds a manually requested escalation event, then fans it out.
func (e *Engine) FromManual(ctx context.Context, workflowID uuid.UUID, customerPhone string, reason domain.TriggerReason) error {
	event := domain.EscalationEvent{
		ID:            uuid.New(),
		WorkflowID:    workflowID,
		CustomerPhone: customerPhone,
		Kind:          domain.EscalationManual,
		Reason:        reason,
		Confidence:    1.0,
		Timestamp:     e.now(),
	}
	return e.trigger(ctx, event)
}

// trigger runs the ordered, best-effort fan-out. A step failure is logged
// and does not undo earlier steps; the event itself always stands.
func (e *Engine) trigger(ctx context.Context, event domain.EscalationEvent) error {
	event.Status = domain.EscalationStatusCompleted
	var firstErr error

	record := func(step string, err error) {
		if err == nil {
			return
		}
		event.Status = domain.EscalationStatusPartial
		if firstErr == nil {
			firstErr = err
		}
		e.logger.WithFields(logrus.Fields{
			"workflow_id": event.WorkflowID,
			"step":        step,
			"error":       err,
		}).Warn("escalation fan-out step failed")
	}

	if e.persister != nil {
		record("persist", e.persister.Persist(ctx, event))
	}
	if e.tenant != nil {
		record("notify_tenant", e.tenant.NotifyHandoff(ctx, event.WorkflowID))
	}
	if e.sms != nil {
		record("pause_sms", e.sms.Pause(ctx, event.WorkflowID))
	}
	if e.operators != nil {
		record("notify_operators", e.operators.NotifyOperators(ctx, event))
	}
	if event.Kind == domain.EscalationTriggerBased && e.timeouts != nil {
		e.timeouts.MarkEscalated(event.WorkflowID)
	}

	return firstErr
}

// Warn emits the lighter, step-4-only notification for a C7 warning entry;
// it causes no state transition.
func (e *Engine) Warn(ctx context.Context, entry domain.WorkflowTimeout) error {
	if e.operators == nil {
		return nil
	}
	if err := e.operators.NotifyWarning(ctx, entry); err != nil {
		e.logger.WithFields(logrus.Fields{
			"workflow_id": entry.WorkflowID,
		}).Warn("timeout warning notification failed")
		return err
	}
	return nil
}
