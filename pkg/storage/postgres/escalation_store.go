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

	"github.com/jmoiron/sqlx"

	orcherrors "github.com/brightline/collections-orchestrator/internal/errors"
	"github.com/brightline/collections-orchestrator/pkg/domain"
)

// EscalationStore is C8's persistence boundary (owner: escalations table).
type EscalationStore struct {
	db *sqlx.DB
}

// NewEscalationStore constructs an EscalationStore over db.
func NewEscalationStore(db *sqlx.DB) *EscalationStore {
	return &EscalationStore{db: db}
}

// Persist inserts one immutable escalation event, satisfying C8's Persister
// collaborator interface.
func (s *EscalationStore) Persist(ctx context.Context, e domain.EscalationEvent) error {
	const query = `
		INSERT INTO escalations (id, workflow_id, customer_phone, kind, reason, confidence, matched_text, status, created_at)
		VALUES (:id, :workflow_id, :customer_phone, :kind, :reason, :confidence, :matched_text, :status, :created_at)`

	params := map[string]any{
		"id":             e.ID,
		"workflow_id":    e.WorkflowID,
		"customer_phone": e.CustomerPhone,
		"kind":           string(e.Kind),
		"reason":         string(e.Reason),
		"confidence":     e.Confidence,
		"matched_text":   e.MatchedText,
		"status":         string(e.Status),
		"created_at":     e.Timestamp,
	}

	if _, err := s.db.NamedExecContext(ctx, query, params); err != nil {
		return orcherrors.Wrap(err, orcherrors.ErrorTypeDatabase, "persisting escalation event")
	}
	return nil
}
