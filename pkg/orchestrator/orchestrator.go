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

// Package orchestrator implements C10: the per-message pipeline that
// composes the tenant/LLM/SMS egress clients (each wrapped in
// circuitbreaker+retry by the entrypoint; the degradation controller is
// consulted only for the tenant-context fallback after a ServiceUnavailable
// error) with the trigger detector, payment-plan
// extractor/validator, timeout monitor, escalation engine, approval queue,
// and metrics sink.
package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	orcherrors "github.com/brightline/collections-orchestrator/internal/errors"
	"github.com/brightline/collections-orchestrator/pkg/degradation"
	"github.com/brightline/collections-orchestrator/pkg/domain"
	"github.com/brightline/collections-orchestrator/pkg/metrics"
	"github.com/brightline/collections-orchestrator/pkg/paymentplan"
	"github.com/brightline/collections-orchestrator/pkg/trigger"
)

// TenantFetcher abstracts D1, already wrapped by the caller in protected().
type TenantFetcher interface {
	Fetch(ctx context.Context, tenantID string) (string, error)
}

// HistoryFetcher abstracts D3's conversation history read, already wrapped
// in protected().
type HistoryFetcher interface {
	Fetch(ctx context.Context, conversationID string) ([]string, error)
}

// ReplyGenerator abstracts D2, already wrapped in protected().
type ReplyGenerator interface {
	Generate(ctx context.Context, tenantContext string, history []string, message string) (domain.CandidateReply, error)
}

// ReplySender abstracts D3's send, already wrapped in protected().
type ReplySender interface {
	Send(ctx context.Context, conversationID, text string) error
}

// TimeoutRegistrar is the subset of C7 the orchestrator drives directly.
type TimeoutRegistrar interface {
	Start(workflowID uuid.UUID, customerPhone string, threshold time.Duration)
	Remove(workflowID uuid.UUID)
}

// ApprovalEnqueuer is the subset of C9 the orchestrator drives.
type ApprovalEnqueuer interface {
	Enqueue(workflowID uuid.UUID, conversationID, tenantMessage, aiReply string, confidence float64) uuid.UUID
}

// Escalator is the subset of C8 the orchestrator drives.
type Escalator interface {
	FromTrigger(ctx context.Context, workflowID uuid.UUID, customerPhone string, primary domain.Trigger) error
}

// WorkflowStore persists Workflow rows; mirrors D5's WorkflowStore.
type WorkflowStore interface {
	Save(ctx context.Context, w *domain.Workflow) error
}

// Config is the orchestrator's routing configuration.
type Config struct {
	AutoApprovalThreshold   float64
	ManualApprovalThreshold float64
	EscalationTimeout       time.Duration
}

// Orchestrator is C10.
type Orchestrator struct {
	tenant    TenantFetcher
	history   HistoryFetcher
	llm       ReplyGenerator
	sms       ReplySender
	timeouts  TimeoutRegistrar
	approvals ApprovalEnqueuer
	escalate  Escalator
	store     WorkflowStore
	degrade   *degradation.Controller
	metrics   *metrics.Sink
	logger    logrus.FieldLogger

	cfg   Config
	nowFn func() time.Time
}

// New constructs an Orchestrator wired to its collaborators.
func New(tenant TenantFetcher, history HistoryFetcher, llm ReplyGenerator, sms ReplySender,
	timeouts TimeoutRegistrar, approvals ApprovalEnqueuer, escalate Escalator, store WorkflowStore,
	degrade *degradation.Controller, sink *metrics.Sink, logger logrus.FieldLogger, cfg Config) *Orchestrator {
	if logger == nil {
		logger = logrus.New()
	}
	return &Orchestrator{
		tenant: tenant, history: history, llm: llm, sms: sms,
		timeouts: timeouts, approvals: approvals, escalate: escalate, store: store,
		degrade: degrade, metrics: sink, logger: logger, cfg: cfg, nowFn: time.Now,
	}
}

func (o *Orchestrator) now() time.Time {
	if o.nowFn != nil {
		return o.nowFn()
	}
	return time.Now()
}

func (o *Orchestrator) count(name string) {
	if o.metrics != nil {
		o.metrics.IncCounter(name, name)
	}
}

// Result is Ingest's outcome: the final workflow plus whatever candidate
// reply was produced, for callers that want to inspect the decision.
type Result struct {
	Workflow *domain.Workflow
	Reply    *domain.CandidateReply
	Plan     *domain.PaymentPlan
	Report   *domain.ValidationReport
}

// Ingest runs the full tenant-lookup, history-fetch, reply-generation,
// trigger-scan, and routing pipeline for one inbound message.
func (o *Orchestrator) Ingest(ctx context.Context, msg domain.InboundMessage) (Result, error) {
	now := o.now()
	wf := domain.NewWorkflow(msg.TenantID, msg.ConversationID, now)
	result := Result{Workflow: wf}

	o.count("workflows_received_total")

	// Step 2.
	wf.SetStatus(domain.WorkflowProcessing, now)
	o.persist(ctx, wf)

	// Step 3: tenant context, with C3 fallback on ServiceUnavailable.
	tenantContext, err := o.fetchTenantContext(ctx, msg.TenantID)
	if err != nil {
		return o.fail(ctx, wf, err)
	}

	// Step 4: conversation history.
	history, err := o.history.Fetch(ctx, msg.ConversationID)
	if err != nil {
		return o.fail(ctx, wf, err)
	}

	// Step 5: generate a candidate reply.
	reply, err := o.llm.Generate(ctx, tenantContext, history, msg.Content)
	if err != nil {
		return o.fail(ctx, wf, err)
	}
	result.Reply = &reply

	// Step 6: triggers on the inbound text, payment plan on (inbound, reply).
	triggers := trigger.Scan(msg.Content)
	plan := paymentplan.Extract(msg.Content, domain.PlanSourceTenantMessage, now)
	if plan == nil {
		plan = paymentplan.Extract(reply.Content, domain.PlanSourceAIResponse, now)
	}
	var report domain.ValidationReport
	if plan != nil {
		report = paymentplan.Validate(plan, now, paymentplan.ValidationContext{})
		result.Plan = plan
		result.Report = &report
	}

	escalateWins := trigger.ShouldEscalate(triggers, trigger.Threshold)

	// Step 7: route on confidence.
	switch {
	case reply.Confidence >= o.cfg.AutoApprovalThreshold && !escalateWins:
		if err := o.sms.Send(ctx, msg.ConversationID, reply.Content); err != nil {
			return o.fail(ctx, wf, err)
		}
		o.timeouts.Start(wf.ID, msg.PhoneNumber, o.cfg.EscalationTimeout)
		wf.SetStatus(domain.WorkflowCompleted, o.now())
		o.count("workflows_auto_sent_total")
	case reply.Confidence >= o.cfg.ManualApprovalThreshold && reply.Confidence < o.cfg.AutoApprovalThreshold && !escalateWins:
		o.approvals.Enqueue(wf.ID, msg.ConversationID, msg.Content, reply.Content, reply.Confidence)
		wf.SetStatus(domain.WorkflowAwaitingApproval, o.now())
		o.count("workflows_queued_for_approval_total")
	default:
		primary, ok := trigger.Primary(triggers)
		if !ok {
			primary = domain.Trigger{Reason: domain.ReasonDissatisfaction, Confidence: 1 - reply.Confidence}
		}
		_ = o.escalate.FromTrigger(ctx, wf.ID, msg.PhoneNumber, primary)
		wf.SetStatus(domain.WorkflowEscalated, o.now())
		o.count("workflows_escalated_total")
	}

	// Step 8: payment-plan status can override, but only when step 7 put the
	// reply in the approval queue.
	if plan != nil && wf.Status == domain.WorkflowAwaitingApproval {
		if report.IsAutoApprovable {
			wf.SetStatus(domain.WorkflowPaymentPlanApproved, o.now())
		} else {
			wf.SetStatus(domain.WorkflowPaymentPlanNeedsReview, o.now())
		}
	}

	// Step 9: escalation wins over auto-send and approval. Step 7 already
	// routes every escalateWins message to its escalation branch, so this
	// only acts if the workflow is not Escalated by this point.
	if escalateWins && wf.Status != domain.WorkflowEscalated {
		primary, ok := trigger.Primary(triggers)
		if ok {
			_ = o.escalate.FromTrigger(ctx, wf.ID, msg.PhoneNumber, primary)
			wf.SetStatus(domain.WorkflowEscalated, o.now())
			o.count("workflows_escalated_total")
		}
	}

	o.persist(ctx, wf)
	return result, nil
}

func (o *Orchestrator) fetchTenantContext(ctx context.Context, tenantID string) (string, error) {
	tc, err := o.tenant.Fetch(ctx, tenantID)
	if err == nil {
		return tc, nil
	}
	if !orcherrors.IsType(err, orcherrors.ErrorTypeServiceUnavail) || o.degrade == nil {
		return "", err
	}
	decision := o.degrade.CanExecute("tenant-data", degradation.OpRead)
	if decision.FallbackUsed {
		if s, ok := decision.Result.(string); ok {
			return s, decision.Err
		}
	}
	return "", err
}

func (o *Orchestrator) fail(ctx context.Context, wf *domain.Workflow, err error) (Result, error) {
	wf.Error = err.Error()
	wf.SetStatus(domain.WorkflowFailed, o.now())
	o.persist(ctx, wf)
	o.count("workflows_failed_total")
	return Result{Workflow: wf}, err
}

func (o *Orchestrator) persist(ctx context.Context, wf *domain.Workflow) {
	if o.store == nil {
		return
	}
	if err := o.store.Save(ctx, wf); err != nil {
		o.logger.WithFields(logrus.Fields{"workflow_id": wf.ID, "error": err}).Warn("failed to persist workflow")
	}
}

// Retry re-enters the pipeline for a previously Failed or Escalated
// workflow (or any workflow when force is true).
func (o *Orchestrator) Retry(ctx context.Context, wf *domain.Workflow, msg domain.InboundMessage, reason string, force bool) (Result, error) {
	if !force && wf.Status != domain.WorkflowFailed && wf.Status != domain.WorkflowEscalated {
		return Result{Workflow: wf}, orcherrors.New(orcherrors.ErrorTypeWorkflow, "retry not allowed from current status").
			WithDetailsf("status=%s", wf.Status)
	}
	wf.SetStatus(domain.WorkflowProcessing, o.now())
	wf.Metadata["retry_reason"] = reason
	o.persist(ctx, wf)
	return o.Ingest(ctx, msg)
}
