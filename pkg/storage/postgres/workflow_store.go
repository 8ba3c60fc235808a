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
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	orcherrors "github.com/brightline/collections-orchestrator/internal/errors"
	"github.com/brightline/collections-orchestrator/pkg/domain"
)

// workflowRow mirrors the workflows table for sqlx struct-scanning.
type workflowRow struct {
	ID             uuid.UUID       `db:"id"`
	ConversationID string          `db:"conversation_id"`
	TenantID       string          `db:"tenant_id"`
	Status         string          `db:"status"`
	StartedAt      time.Time       `db:"started_at"`
	UpdatedAt      time.Time       `db:"updated_at"`
	CompletedAt    *time.Time      `db:"completed_at"`
	Error          string          `db:"error"`
	Metadata       json.RawMessage `db:"metadata"`
}

// WorkflowStore is C10's persistence boundary (owner: workflows table).
type WorkflowStore struct {
	db *sqlx.DB
}

// NewWorkflowStore constructs a WorkflowStore over db.
func NewWorkflowStore(db *sqlx.DB) *WorkflowStore {
	return &WorkflowStore{db: db}
}

// Save upserts a workflow row by id, matching C10's "persist" steps.
func (s *WorkflowStore) Save(ctx context.Context, w *domain.Workflow) error {
	metadata, err := json.Marshal(w.Metadata)
	if err != nil {
		return orcherrors.Wrap(err, orcherrors.ErrorTypeInternal, "marshaling workflow metadata")
	}

	const query = `
		INSERT INTO workflows (id, conversation_id, tenant_id, status, started_at, updated_at, completed_at, error, metadata)
		VALUES (:id, :conversation_id, :tenant_id, :status, :started_at, :updated_at, :completed_at, :error, :metadata)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at,
			completed_at = EXCLUDED.completed_at,
			error = EXCLUDED.error,
			metadata = EXCLUDED.metadata`

	params := map[string]any{
		"id":              w.ID,
		"conversation_id": w.ConversationID,
		"tenant_id":       w.TenantID,
		"status":          string(w.Status),
		"started_at":      w.StartedAt,
		"updated_at":      w.UpdatedAt,
		"completed_at":    w.CompletedAt,
		"error":           w.Error,
		"metadata":        metadata,
	}

	if _, err := s.db.NamedExecContext(ctx, query, params); err != nil {
		return orcherrors.Wrap(err, orcherrors.ErrorTypeDatabase, "saving workflow")
	}
	return nil
}

// Get fetches a workflow by id.
func (s *WorkflowStore) Get(ctx context.Context, id uuid.UUID) (*domain.Workflow, error) {
	var row workflowRow
	err := s.db.GetContext(ctx, &row, `SELECT id, conversation_id, tenant_id, status, started_at, updated_at, completed_at, error, metadata FROM workflows WHERE id = $1`, id)
	if err != nil {
		return nil, orcherrors.Wrap(err, orcherrors.ErrorTypeDatabase, fmt.Sprintf("fetching workflow %s", id))
	}

	var metadata map[string]string
	if len(row.Metadata) > 0 {
		if err := json.Unmarshal(row.Metadata, &metadata); err != nil {
			return nil, orcherrors.Wrap(err, orcherrors.ErrorTypeInternal, "unmarshaling workflow metadata")
		}
	}

	return &domain.Workflow{
		ID:             row.ID,
		ConversationID: row.ConversationID,
		TenantID:       row.TenantID,
		Status:         domain.WorkflowStatus(row.Status),
		StartedAt:      row.StartedAt,
		UpdatedAt:      row.UpdatedAt,
		CompletedAt:    row.CompletedAt,
		Error:          row.Error,
		Metadata:       metadata,
	}, nil
}
