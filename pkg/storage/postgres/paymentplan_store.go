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

// PaymentPlanStore is C6's persistence boundary (owner: payment_plan_attempts
// table) — one row per validated extraction attempt, kept for audit even
// when the plan itself was rejected.
type PaymentPlanStore struct {
	db *sqlx.DB
}

// NewPaymentPlanStore constructs a PaymentPlanStore over db.
func NewPaymentPlanStore(db *sqlx.DB) *PaymentPlanStore {
	return &PaymentPlanStore{db: db}
}

// Record inserts one attempt row for workflowID.
func (s *PaymentPlanStore) Record(ctx context.Context, workflowID uuid.UUID, report domain.ValidationReport) error {
	encoded, err := json.Marshal(report)
	if err != nil {
		return orcherrors.Wrap(err, orcherrors.ErrorTypeInternal, "marshaling validation report")
	}

	const query = `
		INSERT INTO payment_plan_attempts (id, workflow_id, status, report, created_at)
		VALUES (:id, :workflow_id, :status, :report, :created_at)`

	params := map[string]any{
		"id":          uuid.New(),
		"workflow_id": workflowID,
		"status":      string(report.Status),
		"report":      encoded,
		"created_at":  time.Now(),
	}

	if _, err := s.db.NamedExecContext(ctx, query, params); err != nil {
		return orcherrors.Wrap(err, orcherrors.ErrorTypeDatabase, "recording payment plan attempt")
	}
	return nil
}
