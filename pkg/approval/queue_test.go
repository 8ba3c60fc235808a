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

package approval

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	orcherrors "github.com/brightline/collections-orchestrator/internal/errors"
	"github.com/brightline/collections-orchestrator/pkg/domain"
)

func TestApprovalQueue(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Approval Queue Suite")
}

type fakeSMS struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeSMS) Send(ctx context.Context, conversationID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return nil
}

type fakeEscalation struct {
	calls int
}

func (f *fakeEscalation) FromManual(ctx context.Context, workflowID uuid.UUID, customerPhone string, reason domain.TriggerReason) error {
	f.calls++
	return nil
}

type fakeAudit struct {
	mu      sync.Mutex
	records []domain.AuditRecord
}

func (f *fakeAudit) Append(ctx context.Context, record domain.AuditRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, record)
	return nil
}

var _ = Describe("Queue", func() {
	It("enqueues a Pending entry", func() {
		q := New(&fakeSMS{}, &fakeEscalation{}, &fakeAudit{})
		id := q.Enqueue(uuid.New(), "conv-1", "please help", "Here's a reply", 0.6)
		e, ok := q.Get(id)
		Expect(ok).To(BeTrue())
		Expect(e.Status).To(Equal(domain.ApprovalPending))
	})

	It("Approve sends ai_reply and records Approved", func() {
		sms := &fakeSMS{}
		audit := &fakeAudit{}
		q := New(sms, &fakeEscalation{}, audit)
		id := q.Enqueue(uuid.New(), "conv-1", "msg", "the reply", 0.6)

		err := q.Action(context.Background(), id, domain.ManagerAction{Kind: domain.ActionApprove, Actor: "mgr1"})
		Expect(err).ToNot(HaveOccurred())

		e, _ := q.Get(id)
		Expect(e.Status).To(Equal(domain.ApprovalApproved))
		Expect(e.FinalReply).To(Equal("the reply"))
		Expect(sms.sent).To(ConsistOf("the reply"))
		Expect(audit.records).To(HaveLen(1))
	})

	It("Modify sends modified_text and records Modified", func() {
		sms := &fakeSMS{}
		q := New(sms, &fakeEscalation{}, &fakeAudit{})
		id := q.Enqueue(uuid.New(), "conv-1", "msg", "original", 0.6)

		err := q.Action(context.Background(), id, domain.ManagerAction{
			Kind: domain.ActionModify, ModifiedText: "edited text", Actor: "mgr1",
		})
		Expect(err).ToNot(HaveOccurred())

		e, _ := q.Get(id)
		Expect(e.Status).To(Equal(domain.ApprovalModified))
		Expect(e.FinalReply).To(Equal("edited text"))
		Expect(sms.sent).To(ConsistOf("edited text"))
	})

	It("Escalate hands off to C8 as Manual with no send", func() {
		sms := &fakeSMS{}
		esc := &fakeEscalation{}
		q := New(sms, esc, &fakeAudit{})
		id := q.Enqueue(uuid.New(), "conv-1", "msg", "reply", 0.6)

		err := q.Action(context.Background(), id, domain.ManagerAction{
			Kind: domain.ActionEscalate, Reason: "needs human review", Actor: "mgr1",
		})
		Expect(err).ToNot(HaveOccurred())

		e, _ := q.Get(id)
		Expect(e.Status).To(Equal(domain.ApprovalEscalated))
		Expect(sms.sent).To(BeEmpty())
		Expect(esc.calls).To(Equal(1))
	})

	It("Reject sends nothing and records Expired", func() {
		sms := &fakeSMS{}
		q := New(sms, &fakeEscalation{}, &fakeAudit{})
		id := q.Enqueue(uuid.New(), "conv-1", "msg", "reply", 0.6)

		err := q.Action(context.Background(), id, domain.ManagerAction{Kind: domain.ActionReject, Actor: "mgr1"})
		Expect(err).ToNot(HaveOccurred())

		e, _ := q.Get(id)
		Expect(e.Status).To(Equal(domain.ApprovalExpired))
		Expect(sms.sent).To(BeEmpty())
	})

	It("actions an entry exactly once, returning AlreadyActioned on a second attempt", func() {
		q := New(&fakeSMS{}, &fakeEscalation{}, &fakeAudit{})
		id := q.Enqueue(uuid.New(), "conv-1", "msg", "reply", 0.6)

		Expect(q.Action(context.Background(), id, domain.ManagerAction{Kind: domain.ActionApprove, Actor: "mgr1"})).ToNot(HaveOccurred())
		err := q.Action(context.Background(), id, domain.ManagerAction{Kind: domain.ActionReject, Actor: "mgr2"})

		Expect(err).To(HaveOccurred())
		ae, ok := orcherrors.As(err)
		Expect(ok).To(BeTrue())
		Expect(ae.Code).To(Equal("ORC_409_ALREADY_ACTIONED"))
	})

	It("applies exactly one of N concurrent actions on the same entry", func() {
		q := New(&fakeSMS{}, &fakeEscalation{}, &fakeAudit{})
		id := q.Enqueue(uuid.New(), "conv-1", "msg", "reply", 0.6)

		var wg sync.WaitGroup
		results := make([]error, 5)
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i] = q.Action(context.Background(), id, domain.ManagerAction{Kind: domain.ActionApprove, Actor: "mgr"})
			}(i)
		}
		wg.Wait()

		succeeded := 0
		for _, err := range results {
			if err == nil {
				succeeded++
			}
		}
		Expect(succeeded).To(Equal(1))
	})

	It("sweeps Pending entries older than the ceiling", func() {
		q := New(&fakeSMS{}, &fakeEscalation{}, &fakeAudit{})
		old := time.Now().Add(-48 * time.Hour)
		q.nowFn = func() time.Time { return old }
		id := q.Enqueue(uuid.New(), "conv-1", "msg", "reply", 0.6)
		q.nowFn = time.Now

		due := q.SweepExpired(24 * time.Hour)
		found := false
		for _, e := range due {
			if e.ID == id {
				found = true
			}
		}
		Expect(found).To(BeTrue())
	})
})
