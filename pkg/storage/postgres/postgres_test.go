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
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/brightline/collections-orchestrator/pkg/domain"
)

func TestPostgres(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Postgres Storage Suite")
}

func newMockDB() (*sqlx.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	Expect(err).ToNot(HaveOccurred())
	return sqlx.NewDb(db, "postgres"), mock
}

var _ = Describe("WorkflowStore", func() {
	It("upserts a workflow row", func() {
		db, mock := newMockDB()
		store := NewWorkflowStore(db)

		mock.ExpectExec("INSERT INTO workflows").WillReturnResult(sqlmock.NewResult(0, 1))

		wf := domain.NewWorkflow("tenant-1", "conv-1", time.Now())
		Expect(store.Save(context.Background(), wf)).To(Succeed())
		Expect(mock.ExpectationsWereMet()).To(Succeed())
	})

	It("fetches a workflow by id", func() {
		db, mock := newMockDB()
		store := NewWorkflowStore(db)

		id := uuid.New()
		rows := sqlmock.NewRows([]string{"id", "conversation_id", "tenant_id", "status", "started_at", "updated_at", "completed_at", "error", "metadata"}).
			AddRow(id, "conv-1", "tenant-1", "Processing", time.Now(), time.Now(), nil, "", []byte(`{}`))
		mock.ExpectQuery("SELECT (.+) FROM workflows WHERE id = \\$1").WithArgs(id).WillReturnRows(rows)

		wf, err := store.Get(context.Background(), id)
		Expect(err).ToNot(HaveOccurred())
		Expect(wf.ID).To(Equal(id))
		Expect(wf.Status).To(Equal(domain.WorkflowProcessing))
	})
})

var _ = Describe("ApprovalStore and AuditStore", func() {
	It("upserts an approval queue entry", func() {
		db, mock := newMockDB()
		store := NewApprovalStore(db)

		mock.ExpectExec("INSERT INTO approval_queue").WillReturnResult(sqlmock.NewResult(0, 1))

		entry := &domain.QueueEntry{ID: uuid.New(), WorkflowID: uuid.New(), Status: domain.ApprovalPending, CreatedAt: time.Now()}
		Expect(store.Save(context.Background(), entry)).To(Succeed())
	})

	It("appends an audit record", func() {
		db, mock := newMockDB()
		store := NewAuditStore(db)

		mock.ExpectExec("INSERT INTO audit_log").WillReturnResult(sqlmock.NewResult(0, 1))

		rec := domain.AuditRecord{ID: uuid.New(), QueueEntryID: uuid.New(), Action: domain.ActionApprove, Actor: "manager-1", CreatedAt: time.Now()}
		Expect(store.Append(context.Background(), rec)).To(Succeed())
	})
})

var _ = Describe("EscalationStore", func() {
	It("persists an escalation event", func() {
		db, mock := newMockDB()
		store := NewEscalationStore(db)

		mock.ExpectExec("INSERT INTO escalations").WillReturnResult(sqlmock.NewResult(0, 1))

		event := domain.EscalationEvent{ID: uuid.New(), WorkflowID: uuid.New(), Kind: domain.EscalationTriggerBased, Reason: domain.ReasonAnger, Timestamp: time.Now(), Status: domain.EscalationStatusCompleted}
		Expect(store.Persist(context.Background(), event)).To(Succeed())
	})
})

var _ = Describe("TimeoutStore", func() {
	It("upserts and removes a timeout row", func() {
		db, mock := newMockDB()
		store := NewTimeoutStore(db)

		mock.ExpectExec("INSERT INTO workflow_timeouts").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("DELETE FROM workflow_timeouts").WillReturnResult(sqlmock.NewResult(0, 1))

		wfID := uuid.New()
		t := domain.WorkflowTimeout{WorkflowID: wfID, CustomerPhone: "+1", LastAIResponse: time.Now(), Threshold: 36 * time.Hour, State: domain.TimeoutActive, CreatedAt: time.Now(), UpdatedAt: time.Now()}
		Expect(store.Save(context.Background(), t)).To(Succeed())
		Expect(store.Remove(context.Background(), wfID)).To(Succeed())
	})
})

var _ = Describe("PaymentPlanStore", func() {
	It("records a validation attempt", func() {
		db, mock := newMockDB()
		store := NewPaymentPlanStore(db)

		mock.ExpectExec("INSERT INTO payment_plan_attempts").WillReturnResult(sqlmock.NewResult(0, 1))

		report := domain.ValidationReport{Status: domain.ValidationNeedsReview}
		Expect(store.Record(context.Background(), uuid.New(), report)).To(Succeed())
	})
})
