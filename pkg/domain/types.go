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

// Package domain holds the entities shared across the orchestrator's
// components. Each entity is owned by exactly one component; everyone else
// references it only by id.
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WorkflowStatus enumerates a Workflow's lifecycle states.
type WorkflowStatus string

const (
	WorkflowReceived                WorkflowStatus = "Received"
	WorkflowProcessing              WorkflowStatus = "Processing"
	WorkflowAwaitingApproval        WorkflowStatus = "AwaitingApproval"
	WorkflowSent                    WorkflowStatus = "Sent"
	WorkflowEscalated               WorkflowStatus = "Escalated"
	WorkflowFailed                  WorkflowStatus = "Failed"
	WorkflowCompleted               WorkflowStatus = "Completed"
	WorkflowPaymentPlanDetected     WorkflowStatus = "PaymentPlanDetected"
	WorkflowPaymentPlanApproved     WorkflowStatus = "PaymentPlanApproved"
	WorkflowPaymentPlanNeedsReview  WorkflowStatus = "PaymentPlanNeedsReview"
)

// IsTerminal reports whether status is one of the terminal states that
// require CompletedAt to be set.
func (s WorkflowStatus) IsTerminal() bool {
	switch s {
	case WorkflowSent, WorkflowCompleted, WorkflowFailed, WorkflowEscalated:
		return true
	default:
		return false
	}
}

// Workflow is the persistent record of one inbound-to-terminal interaction.
type Workflow struct {
	ID             uuid.UUID
	ConversationID string
	TenantID       string
	Status         WorkflowStatus
	StartedAt      time.Time
	UpdatedAt      time.Time
	CompletedAt    *time.Time
	Error          string
	Metadata       map[string]string
}

// NewWorkflow creates a Workflow in the Received state.
func NewWorkflow(tenantID, conversationID string, now time.Time) *Workflow {
	return &Workflow{
		ID:             uuid.New(),
		ConversationID: conversationID,
		TenantID:       tenantID,
		Status:         WorkflowReceived,
		StartedAt:      now,
		UpdatedAt:      now,
		Metadata:       map[string]string{},
	}
}

// SetStatus transitions the workflow to status, stamping CompletedAt exactly
// when status is terminal.
func (w *Workflow) SetStatus(status WorkflowStatus, now time.Time) {
	w.Status = status
	w.UpdatedAt = now
	if status.IsTerminal() {
		t := now
		w.CompletedAt = &t
	} else {
		w.CompletedAt = nil
	}
}

// InboundMessage is the immutable customer text message that starts a
// pipeline run.
type InboundMessage struct {
	TenantID       string
	PhoneNumber    string
	Content        string
	ConversationID string
	Timestamp      time.Time
}

// TriggerReason enumerates the escalation trigger classes detected by C4.
type TriggerReason string

const (
	ReasonAnger          TriggerReason = "Anger"
	ReasonLegalRequest    TriggerReason = "LegalRequest"
	ReasonComplaint       TriggerReason = "Complaint"
	ReasonConfusion       TriggerReason = "Confusion"
	ReasonDissatisfaction TriggerReason = "Dissatisfaction"
)

// PatternKind distinguishes a regex match from a keyword match.
type PatternKind string

const (
	PatternKindRegex   PatternKind = "regex"
	PatternKindKeyword PatternKind = "keyword"
)

// Trigger is one detected escalation signal.
type Trigger struct {
	Reason      TriggerReason
	Confidence  float64
	MatchedText string
	PatternKind PatternKind
}

// PlanSource distinguishes where a payment plan was extracted from.
type PlanSource string

const (
	PlanSourceTenantMessage PlanSource = "TenantMessage"
	PlanSourceAIResponse    PlanSource = "AIResponse"
)

// ConfidenceLevel is C5/C6's coarse confidence bucket.
type ConfidenceLevel string

const (
	ConfidenceLow    ConfidenceLevel = "Low"
	ConfidenceMedium ConfidenceLevel = "Medium"
	ConfidenceHigh   ConfidenceLevel = "High"
)

// PaymentPlan is an extracted (and possibly partial) payment plan.
type PaymentPlan struct {
	WeeklyAmount    *decimal.Decimal
	DurationWeeks   *int
	StartDate       *time.Time
	ConfidenceLevel ConfidenceLevel
	ConfidenceScore float64
	Source          PlanSource
	PatternsMatched []string
}

// ValidationStatus is the outcome of C6's business-rule check.
type ValidationStatus string

const (
	ValidationValid        ValidationStatus = "Valid"
	ValidationInvalid      ValidationStatus = "Invalid"
	ValidationNeedsReview  ValidationStatus = "NeedsReview"
	ValidationAutoApproved ValidationStatus = "AutoApproved"
)

// ValidationReport is C6's output.
type ValidationReport struct {
	Status            ValidationStatus
	IsValid           bool
	IsAutoApprovable  bool
	Errors            []string
	Warnings          []string
	Summary           string
}

// CandidateReply is the LLM's immutable candidate response.
type CandidateReply struct {
	Content     string
	Confidence  float64
	Language    string
	ModelID     string
	LatencyMS   int64
	PaymentPlan *PaymentPlan
	Triggers    []Trigger
}

// ApprovalStatus enumerates an Approval Queue Entry's lifecycle.
type ApprovalStatus string

const (
	ApprovalPending   ApprovalStatus = "Pending"
	ApprovalApproved  ApprovalStatus = "Approved"
	ApprovalModified  ApprovalStatus = "Modified"
	ApprovalEscalated ApprovalStatus = "Escalated"
	ApprovalAutoSent  ApprovalStatus = "AutoSent"
	ApprovalExpired   ApprovalStatus = "Expired"
)

// ManagerActionKind tags the variant value a manager submits for a queue
// entry.
type ManagerActionKind string

const (
	ActionApprove  ManagerActionKind = "Approve"
	ActionModify   ManagerActionKind = "Modify"
	ActionEscalate ManagerActionKind = "Escalate"
	ActionReject   ManagerActionKind = "Reject"
)

// ManagerAction carries only the fields its Kind requires.
type ManagerAction struct {
	Kind         ManagerActionKind
	ModifiedText string
	Reason       string
	Actor        string
}

// QueueEntry is an Approval Queue Entry.
type QueueEntry struct {
	ID             uuid.UUID
	WorkflowID     uuid.UUID
	ConversationID string
	TenantMessage  string
	AIReply        string
	Confidence     float64
	Status         ApprovalStatus
	ManagerAction  *ManagerAction
	FinalReply     string
	ActionedBy     string
	ActionedAt     *time.Time
	CreatedAt      time.Time
}

// AuditRecord is one append-only audit log entry for a queue entry.
type AuditRecord struct {
	ID            uuid.UUID
	QueueEntryID  uuid.UUID
	Action        ManagerActionKind
	OriginalReply string
	FinalReply    string
	Reason        string
	Actor         string
	CreatedAt     time.Time
}

// TimeoutState enumerates a Workflow Timeout's lifecycle.
type TimeoutState string

const (
	TimeoutActive     TimeoutState = "Active"
	TimeoutWarning    TimeoutState = "Warning"
	TimeoutExpired    TimeoutState = "Expired"
	TimeoutEscalated  TimeoutState = "Escalated"
)

// WorkflowTimeout is C7's per-workflow deadline record.
type WorkflowTimeout struct {
	WorkflowID          uuid.UUID
	CustomerPhone       string
	LastAIResponse      time.Time
	Threshold           time.Duration
	State               TimeoutState
	WarningSent         bool
	EscalationTriggered bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// EscalationKind enumerates what caused an escalation.
type EscalationKind string

const (
	EscalationTriggerBased EscalationKind = "TriggerBased"
	EscalationTimeoutBased EscalationKind = "TimeoutBased"
	EscalationManual       EscalationKind = "Manual"
)

// EscalationStatus tracks an EscalationEvent's fan-out outcome.
type EscalationStatus string

const (
	EscalationStatusCompleted EscalationStatus = "Completed"
	EscalationStatusPartial   EscalationStatus = "Partial"
)

// EscalationEvent is an immutable record of one escalation.
type EscalationEvent struct {
	ID            uuid.UUID
	WorkflowID    uuid.UUID
	CustomerPhone string
	Kind          EscalationKind
	Reason        TriggerReason
	Confidence    float64
	MatchedText   string
	Timestamp     time.Time
	Status        EscalationStatus
}
