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
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	orcherrors "github.com/brightline/collections-orchestrator/internal/errors"
	"github.com/brightline/collections-orchestrator/pkg/domain"
)

type timeoutRow struct {
	WorkflowID          uuid.UUID `db:"workflow_id"`
	CustomerPhone       string    `db:"customer_phone"`
	LastAIResponse      time.Time `db:"last_ai_response"`
	ThresholdSeconds    int64     `db:"threshold_seconds"`
	State               string    `db:"state"`
	WarningSent         bool      `db:"warning_sent"`
	EscalationTriggered bool      `db:"escalation_triggered"`
	CreatedAt           time.Time `db:"created_at"`
	UpdatedAt           time.Time `db:"updated_at"`
}

// TimeoutStore gives C7's in-memory registry a durable mirror (owner:
// workflow_timeouts table) so a process restart does not lose in-flight
// deadlines.
type TimeoutStore struct {
	db *sqlx.DB
}

// NewTimeoutStore constructs a TimeoutStore over db.
func NewTimeoutStore(db *sqlx.DB) *TimeoutStore {
	return &TimeoutStore{db: db}
}

// Save upserts a timeout row by workflow id.
func (s *TimeoutStore) Save(ctx context.Context, t domain.WorkflowTimeout) error {
	const query = `
		INSERT INTO workflow_timeouts (workflow_id, customer_phone, last_ai_response, threshold_seconds, state, warning_sent, escalation_triggered, created_at, updated_at)
		VALUES (:workflow_id, :customer_phone, :last_ai_response, :threshold_seconds, :state, :warning_sent, :escalation_triggered, :created_at, :updated_at)
		ON CONFLICT (workflow_id) DO UPDATE SET
			last_ai_response = EXCLUDED.last_ai_response,
			state = EXCLUDED.state,
			warning_sent = EXCLUDED.warning_sent,
			escalation_triggered = EXCLUDED.escalation_triggered,
			updated_at = EXCLUDED.updated_at`

	params := map[string]any{
		"workflow_id":          t.WorkflowID,
		"customer_phone":       t.CustomerPhone,
		"last_ai_response":     t.LastAIResponse,
		"threshold_seconds":    int64(t.Threshold / time.Second),
		"state":                string(t.State),
		"warning_sent":         t.WarningSent,
		"escalation_triggered": t.EscalationTriggered,
		"created_at":           t.CreatedAt,
		"updated_at":           t.UpdatedAt,
	}

	if _, err := s.db.NamedExecContext(ctx, query, params); err != nil {
		return orcherrors.Wrap(err, orcherrors.ErrorTypeDatabase, "saving workflow timeout")
	}
	return nil
}

// Remove deletes a timeout row, mirroring C7's Remove.
func (s *TimeoutStore) Remove(ctx context.Context, workflowID uuid.UUID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM workflow_timeouts WHERE workflow_id = $1`, workflowID); err != nil {
		return orcherrors.Wrap(err, orcherrors.ErrorTypeDatabase, "removing workflow timeout")
	}
	return nil
}

// ListActive loads every non-terminal timeout row, used to repopulate C7's
// in-memory registry on process start.
func (s *TimeoutStore) ListActive(ctx context.Context) ([]domain.WorkflowTimeout, error) {
	var rows []timeoutRow
	err := s.db.SelectContext(ctx, &rows, `SELECT workflow_id, customer_phone, last_ai_response, threshold_seconds, state, warning_sent, escalation_triggered, created_at, updated_at FROM workflow_timeouts WHERE state != $1`, string(domain.TimeoutExpired))
	if err != nil {
		return nil, orcherrors.Wrap(err, orcherrors.ErrorTypeDatabase, "listing active workflow timeouts")
	}

	out := make([]domain.WorkflowTimeout, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.WorkflowTimeout{
			WorkflowID:          r.WorkflowID,
			CustomerPhone:       r.CustomerPhone,
			LastAIResponse:      r.LastAIResponse,
			Threshold:           time.Duration(r.ThresholdSeconds) * time.Second,
			State:               domain.TimeoutState(r.State),
			WarningSent:         r.WarningSent,
			EscalationTriggered: r.EscalationTriggered,
			CreatedAt:           r.CreatedAt,
			UpdatedAt:           r.UpdatedAt,
		})
	}
	return out, nil
}
