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

package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	orcherrors "github.com/brightline/collections-orchestrator/internal/errors"
	"github.com/brightline/collections-orchestrator/pkg/domain"
)

// messageRequest is the wire shape of POST /v1/messages.
type messageRequest struct {
	TenantID       string `json:"tenant_id" validate:"required"`
	PhoneNumber    string `json:"phone_number" validate:"required"`
	Content        string `json:"content" validate:"required"`
	ConversationID string `json:"conversation_id" validate:"required"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}

	msg := domain.InboundMessage{
		TenantID:       req.TenantID,
		PhoneNumber:    req.PhoneNumber,
		Content:        req.Content,
		ConversationID: req.ConversationID,
		Timestamp:      time.Now(),
	}

	result, err := s.ingest.Ingest(r.Context(), msg)
	if err != nil {
		RespondAppError(w, err)
		return
	}
	Respond(w, http.StatusAccepted, result)
}

// approvalActionRequest is the wire shape of POST /v1/approvals/{id}/actions.
type approvalActionRequest struct {
	Kind         string `json:"kind" validate:"required,oneof=Approve Modify Escalate Reject"`
	ModifiedText string `json:"modified_text,omitempty"`
	Reason       string `json:"reason,omitempty"`
	Actor        string `json:"actor" validate:"required"`
}

func (s *Server) handleApprovalAction(w http.ResponseWriter, r *http.Request) {
	queueID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondAppError(w, orcherrors.Validation("id must be a valid UUID"))
		return
	}

	var req approvalActionRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}

	action := domain.ManagerAction{
		Kind:         domain.ManagerActionKind(req.Kind),
		ModifiedText: req.ModifiedText,
		Reason:       req.Reason,
		Actor:        req.Actor,
	}

	if err := s.approvals.Action(r.Context(), queueID, action); err != nil {
		RespondAppError(w, err)
		return
	}
	Respond(w, http.StatusOK, nil)
}

// escalationRequest is the wire shape of POST /v1/escalations.
type escalationRequest struct {
	WorkflowID    string `json:"workflow_id" validate:"required"`
	CustomerPhone string `json:"customer_phone" validate:"required"`
	Reason        string `json:"reason" validate:"required,oneof=Anger LegalRequest Complaint Confusion Dissatisfaction"`
}

func (s *Server) handleManualEscalation(w http.ResponseWriter, r *http.Request) {
	var req escalationRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}

	workflowID, err := uuid.Parse(req.WorkflowID)
	if err != nil {
		RespondAppError(w, orcherrors.Validation("workflow_id must be a valid UUID"))
		return
	}

	if err := s.escalation.FromManual(r.Context(), workflowID, req.CustomerPhone, domain.TriggerReason(req.Reason)); err != nil {
		RespondAppError(w, err)
		return
	}
	Respond(w, http.StatusOK, nil)
}

// retryRequest is the wire shape of POST /v1/workflows/{id}/retry. The
// original InboundMessage isn't retained by the workflow record, so a retry
// caller resubmits the content to re-run; this mirrors how a manager would
// retry via the same channel the original message came in on.
type retryRequest struct {
	PhoneNumber string `json:"phone_number" validate:"required"`
	Content     string `json:"content" validate:"required"`
	Reason      string `json:"reason" validate:"required"`
	Force       bool   `json:"force"`
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondAppError(w, orcherrors.Validation("id must be a valid UUID"))
		return
	}

	var req retryRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}

	wf, err := s.workflows.Get(r.Context(), id)
	if err != nil {
		RespondAppError(w, err)
		return
	}

	msg := domain.InboundMessage{
		TenantID:       wf.TenantID,
		PhoneNumber:    req.PhoneNumber,
		Content:        req.Content,
		ConversationID: wf.ConversationID,
		Timestamp:      time.Now(),
	}

	result, err := s.retry.Retry(r.Context(), wf, msg, req.Reason, req.Force)
	if err != nil {
		RespondAppError(w, err)
		return
	}
	Respond(w, http.StatusAccepted, result)
}

// DependencyStatus is one egress dependency's breaker snapshot, as surfaced
// by GET /health/dependencies.
type DependencyStatus struct {
	Name                 string `json:"name"`
	State                string `json:"state"`
	ConsecutiveFailures  int    `json:"consecutive_failures"`
	ConsecutiveSuccesses int    `json:"consecutive_successes"`
}

// HealthReport is the ops-facing snapshot GET /health/detailed returns:
// the controller's current operating mode, how much work is sitting in its
// deferred queue, and each dependency's breaker state.
type HealthReport struct {
	Mode             string              `json:"mode"`
	DeferredQueueLen int                 `json:"deferred_queue_len"`
	Dependencies     []DependencyStatus  `json:"dependencies"`
}

// handleHealth is the bare liveness probe: if the process can answer HTTP at
// all, it reports ok. It never depends on egress state, so a load balancer
// can use it without tripping on a degraded dependency.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	Respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleHealthDetailed reports the full mode/queue/dependency snapshot.
func (s *Server) handleHealthDetailed(w http.ResponseWriter, r *http.Request) {
	Respond(w, http.StatusOK, s.health.Health())
}

// handleHealthDependencies reports just the per-dependency breaker states,
// for callers that only care which egress call is currently gated.
func (s *Server) handleHealthDependencies(w http.ResponseWriter, r *http.Request) {
	Respond(w, http.StatusOK, s.health.Health().Dependencies)
}
