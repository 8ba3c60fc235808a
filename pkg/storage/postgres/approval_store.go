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

package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	orcherrors "github.com/brightline/collections-orchestrator/internal/errors"
	"github.com/brightline/collections-orchestrator/pkg/domain"
)

type approvalRow struct {
	ID             uuid.UUID       `db:"id"`
	WorkflowID     uuid.UUID       `db:"workflow_id"`
	ConversationID string          `db:"conversation_id"`
	TenantMessage  string          `db:"tenant_message"`
	AIReply        string          `db:"ai_reply"`
	Confidence     float64         `db:"confidence"`
	Status         string          `db:"status"`
	ManagerAction  json.RawMessage `db:"manager_action"`
	FinalReply     string          `db:"final_reply"`
	ActionedBy     string          `db:"actioned_by"`
	ActionedAt     *time.Time      `db:"actioned_at"`
	CreatedAt      time.Time       `db:"created_at"`
}

// ApprovalStore is C9's persistence boundary (owner: approval_queue table).
type ApprovalStore struct {
	db *sqlx.DB
}

// NewApprovalStore constructs an ApprovalStore over db.
func NewApprovalStore(db *sqlx.DB) *ApprovalStore {
	return &ApprovalStore{db: db}
}

// Save upserts a queue entry by id.
func (s *ApprovalStore) Save(ctx context.Context, e *domain.QueueEntry) error {
	var action json.RawMessage
	if e.ManagerAction != nil {
		encoded, err := json.Marshal(e.ManagerAction)
		if err != nil {
			return orcherrors.Wrap(err, orcherrors.ErrorTypeInternal, "marshaling manager action")
		}
		action = encoded
	}

	const query = `
		INSERT INTO approval_queue (id, workflow_id, conversation_id, tenant_message, ai_reply, confidence, status, manager_action, final_reply, actioned_by, actioned_at, created_at)
		VALUES (:id, :workflow_id, :conversation_id, :tenant_message, :ai_reply, :confidence, :status, :manager_action, :final_reply, :actioned_by, :actioned_at, :created_at)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			manager_action = EXCLUDED.manager_action,
			final_reply = EXCLUDED.final_reply,
			actioned_by = EXCLUDED.actioned_by,
			actioned_at = EXCLUDED.actioned_at`

	params := map[string]any{
		"id":              e.ID,
		"workflow_id":     e.WorkflowID,
		"conversation_id": e.ConversationID,
		"tenant_message":  e.TenantMessage,
		"ai_reply":        e.AIReply,
		"confidence":      e.Confidence,
		"status":          string(e.Status),
		"manager_action":  action,
		"final_reply":     e.FinalReply,
		"actioned_by":     e.ActionedBy,
		"actioned_at":     e.ActionedAt,
		"created_at":      e.CreatedAt,
	}

	if _, err := s.db.NamedExecContext(ctx, query, params); err != nil {
		return orcherrors.Wrap(err, orcherrors.ErrorTypeDatabase, "saving approval queue entry")
	}
	return nil
}

// Get fetches a queue entry by id.
func (s *ApprovalStore) Get(ctx context.Context, id uuid.UUID) (*domain.QueueEntry, error) {
	var row approvalRow
	err := s.db.GetContext(ctx, &row, `SELECT id, workflow_id, conversation_id, tenant_message, ai_reply, confidence, status, manager_action, final_reply, actioned_by, actioned_at, created_at FROM approval_queue WHERE id = $1`, id)
	if err != nil {
		return nil, orcherrors.Wrap(err, orcherrors.ErrorTypeDatabase, "fetching approval queue entry")
	}

	e := &domain.QueueEntry{
		ID:             row.ID,
		WorkflowID:     row.WorkflowID,
		ConversationID: row.ConversationID,
		TenantMessage:  row.TenantMessage,
		AIReply:        row.AIReply,
		Confidence:     row.Confidence,
		Status:         domain.ApprovalStatus(row.Status),
		FinalReply:     row.FinalReply,
		ActionedBy:     row.ActionedBy,
		ActionedAt:     row.ActionedAt,
		CreatedAt:      row.CreatedAt,
	}
	if len(row.ManagerAction) > 0 {
		var action domain.ManagerAction
		if err := json.Unmarshal(row.ManagerAction, &action); err != nil {
			return nil, orcherrors.Wrap(err, orcherrors.ErrorTypeInternal, "unmarshaling manager action")
		}
		e.ManagerAction = &action
	}
	return e, nil
}

// AuditStore is C9's append-only log (owner: audit_log table).
type AuditStore struct {
	db *sqlx.DB
}

// NewAuditStore constructs an AuditStore over db.
func NewAuditStore(db *sqlx.DB) *AuditStore {
	return &AuditStore{db: db}
}

// Append inserts one immutable audit record.
func (s *AuditStore) Append(ctx context.Context, rec domain.AuditRecord) error {
	const query = `
		INSERT INTO audit_log (id, queue_entry_id, action, original_reply, final_reply, reason, actor, created_at)
		VALUES (:id, :queue_entry_id, :action, :original_reply, :final_reply, :reason, :actor, :created_at)`

	params := map[string]any{
		"id":             rec.ID,
		"queue_entry_id": rec.QueueEntryID,
		"action":         string(rec.Action),
		"original_reply": rec.OriginalReply,
		"final_reply":    rec.FinalReply,
		"reason":         rec.Reason,
		"actor":          rec.Actor,
		"created_at":     rec.CreatedAt,
	}

	if _, err := s.db.NamedExecContext(ctx, query, params); err != nil {
		return orcherrors.Wrap(err, orcherrors.ErrorTypeDatabase, "appending audit record")
	}
	return nil
}
