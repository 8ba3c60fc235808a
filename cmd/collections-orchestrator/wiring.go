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

package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/brightline/collections-orchestrator/pkg/circuitbreaker"
	"github.com/brightline/collections-orchestrator/pkg/degradation"
	"github.com/brightline/collections-orchestrator/pkg/domain"
	"github.com/brightline/collections-orchestrator/pkg/egress/llm"
	"github.com/brightline/collections-orchestrator/pkg/egress/notification"
	"github.com/brightline/collections-orchestrator/pkg/egress/sms"
	"github.com/brightline/collections-orchestrator/pkg/egress/tenant"
	"github.com/brightline/collections-orchestrator/pkg/httpapi"
	"github.com/brightline/collections-orchestrator/pkg/retry"
)

// protectedDependency pairs a named circuit breaker with the retry policy
// that always wraps it, composing as retry(circuit(op)) on every call.
type protectedDependency struct {
	name    string
	breaker *circuitbreaker.Breaker
	policy  *retry.Policy
}

func newProtectedDependency(name string, cbCfg circuitbreaker.Config, retryCfg retry.Config, logger logrus.FieldLogger) *protectedDependency {
	return &protectedDependency{
		name:    name,
		breaker: circuitbreaker.New(name, cbCfg, logger),
		policy:  retry.New(retryCfg),
	}
}

func (p *protectedDependency) run(ctx context.Context, op func(ctx context.Context) error) error {
	return retry.Protect(p.breaker, p.policy, op)(ctx)
}

// tenantAdapter satisfies orchestrator.TenantFetcher, rendering D1's
// structured tenant.Context into the flat string the prompt template (D2)
// expects, and satisfies escalation.TenantNotifier for the handoff signal.
type tenantAdapter struct {
	client tenant.Client
	dep    *protectedDependency
}

func (a *tenantAdapter) Fetch(ctx context.Context, tenantID string) (string, error) {
	var tc tenant.Context
	err := a.dep.run(ctx, func(ctx context.Context) error {
		var innerErr error
		tc, innerErr = a.client.Get(ctx, tenantID)
		return innerErr
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"amount_owed=%.2f tenant_portion=%.2f days_late=%d reliability_score=%.2f failed_payment_plans=%d language=%s",
		tc.AmountOwed, tc.TenantPortion, tc.DaysLate, tc.ReliabilityScore, tc.FailedPaymentPlans, tc.LanguagePreference,
	), nil
}

// NotifyHandoff tells D1 a human has taken over. D1's contract only exposes
// a GET for monitoring context, so the handoff signal piggybacks on the
// same protected call rather than a distinct client method — best-effort,
// consistent with the tolerance for this leg elsewhere in the fan-out.
func (a *tenantAdapter) NotifyHandoff(ctx context.Context, workflowID uuid.UUID) error {
	return a.dep.run(ctx, func(ctx context.Context) error {
		_, err := a.client.Get(ctx, workflowID.String())
		return err
	})
}

// historyAdapter satisfies orchestrator.HistoryFetcher over D3's History
// call, flattening each turn to "[direction] content" the way the LLM
// prompt template's history section expects.
type historyAdapter struct {
	client sms.Client
	dep    *protectedDependency
}

func (a *historyAdapter) Fetch(ctx context.Context, conversationID string) ([]string, error) {
	var msgs []sms.Message
	err := a.dep.run(ctx, func(ctx context.Context) error {
		var innerErr error
		msgs, innerErr = a.client.History(ctx, conversationID)
		return innerErr
	})
	if err != nil {
		return nil, err
	}
	turns := make([]string, 0, len(msgs))
	for _, m := range msgs {
		turns = append(turns, fmt.Sprintf("[%s] %s", m.Direction, m.Content))
	}
	return turns, nil
}

// replyGeneratorAdapter satisfies orchestrator.ReplyGenerator over D2,
// carrying history forward as llm.Turn values.
type replyGeneratorAdapter struct {
	client llm.Client
	dep    *protectedDependency
}

func (a *replyGeneratorAdapter) Generate(ctx context.Context, tenantContext string, history []string, message string) (domain.CandidateReply, error) {
	turns := make([]llm.Turn, 0, len(history))
	for _, h := range history {
		turns = append(turns, llm.Turn{Direction: "inbound", Content: h})
	}

	var reply domain.CandidateReply
	err := a.dep.run(ctx, func(ctx context.Context) error {
		var innerErr error
		reply, innerErr = a.client.Generate(ctx, llm.GenerateRequest{
			TenantContext: tenantContext,
			History:       turns,
			Message:       message,
		})
		return innerErr
	})
	return reply, err
}

// smsSenderAdapter satisfies both orchestrator.ReplySender and
// approval.SMSSender over D3's Send, and escalation.SMSPauser over D3's
// PauseMessaging.
type smsSenderAdapter struct {
	client sms.Client
	dep    *protectedDependency
}

func (a *smsSenderAdapter) Send(ctx context.Context, conversationID, text string) error {
	return a.dep.run(ctx, func(ctx context.Context) error {
		_, err := a.client.Send(ctx, sms.SendRequest{
			To:             conversationID,
			Body:           text,
			ConversationID: conversationID,
		})
		return err
	})
}

func (a *smsSenderAdapter) Pause(ctx context.Context, workflowID uuid.UUID) error {
	return a.dep.run(ctx, func(ctx context.Context) error {
		return a.client.PauseMessaging(ctx, workflowID)
	})
}

// operatorNotifierAdapter satisfies escalation.OperatorNotifier over D4,
// building the two distinct notification shapes: an operator alert for a
// triggered escalation, and a separate warning ahead of a timeout expiry.
type operatorNotifierAdapter struct {
	client *notification.Client
	dep    *protectedDependency
}

func (a *operatorNotifierAdapter) NotifyOperators(ctx context.Context, event domain.EscalationEvent) error {
	return a.dep.run(ctx, func(ctx context.Context) error {
		return a.client.Send(ctx, notification.Notification{
			Channel:   "slack",
			Recipient: "collections-operators",
			Content: notification.Content{
				Subject: "Workflow escalated",
				Body:    fmt.Sprintf("workflow %s escalated: %s", event.WorkflowID, event.Reason),
			},
			Priority: "high",
		})
	})
}

func (a *operatorNotifierAdapter) NotifyWarning(ctx context.Context, t domain.WorkflowTimeout) error {
	return a.dep.run(ctx, func(ctx context.Context) error {
		return a.client.Send(ctx, notification.Notification{
			Channel:   "slack",
			Recipient: "collections-operators",
			Content: notification.Content{
				Subject: "Workflow nearing timeout",
				Body:    fmt.Sprintf("workflow %s has not responded since %s", t.WorkflowID, t.LastAIResponse),
			},
			Priority: "normal",
		})
	})
}

// healthAdapter satisfies httpapi.HealthChecker, aggregating every
// protected dependency's breaker snapshot with C3's aggregate mode and
// deferred-queue depth into one ops-facing report.
type healthAdapter struct {
	degrade *degradation.Controller
	deps    []*protectedDependency
}

func (h *healthAdapter) Health() httpapi.HealthReport {
	deps := make([]httpapi.DependencyStatus, 0, len(h.deps))
	for _, d := range h.deps {
		st := d.breaker.Status()
		deps = append(deps, httpapi.DependencyStatus{
			Name:                 st.ServiceName,
			State:                string(st.State),
			ConsecutiveFailures:  st.ConsecutiveFailures,
			ConsecutiveSuccesses: st.ConsecutiveSuccesses,
		})
	}
	return httpapi.HealthReport{
		Mode:             string(h.degrade.Mode()),
		DeferredQueueLen: h.degrade.QueueLen(),
		Dependencies:     deps,
	}
}
