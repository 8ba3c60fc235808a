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

package escalation

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	"github.com/brightline/collections-orchestrator/pkg/domain"
)

func TestEscalation(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Escalation Engine Suite")
}

type stepCall struct {
	name string
}

type fakeCollaborators struct {
	persisted []domain.EscalationEvent
	handoffs  []uuid.UUID
	pauses    []uuid.UUID
	operators []domain.EscalationEvent
	warnings  []domain.WorkflowTimeout
	marked    []uuid.UUID

	failOn map[string]error
	calls  []stepCall
}

func newFakes() *fakeCollaborators {
	return &fakeCollaborators{failOn: map[string]error{}}
}

func (f *fakeCollaborators) Persist(ctx context.Context, event domain.EscalationEvent) error {
	f.calls = append(f.calls, stepCall{"persist"})
	if err := f.failOn["persist"]; err != nil {
		return err
	}
	f.persisted = append(f.persisted, event)
	return nil
}

func (f *fakeCollaborators) NotifyHandoff(ctx context.Context, workflowID uuid.UUID) error {
	f.calls = append(f.calls, stepCall{"notify_tenant"})
	if err := f.failOn["notify_tenant"]; err != nil {
		return err
	}
	f.handoffs = append(f.handoffs, workflowID)
	return nil
}

func (f *fakeCollaborators) Pause(ctx context.Context, workflowID uuid.UUID) error {
	f.calls = append(f.calls, stepCall{"pause_sms"})
	if err := f.failOn["pause_sms"]; err != nil {
		return err
	}
	f.pauses = append(f.pauses, workflowID)
	return nil
}

func (f *fakeCollaborators) NotifyOperators(ctx context.Context, event domain.EscalationEvent) error {
	f.calls = append(f.calls, stepCall{"notify_operators"})
	if err := f.failOn["notify_operators"]; err != nil {
		return err
	}
	f.operators = append(f.operators, event)
	return nil
}

func (f *fakeCollaborators) NotifyWarning(ctx context.Context, timeout domain.WorkflowTimeout) error {
	f.warnings = append(f.warnings, timeout)
	return nil
}

func (f *fakeCollaborators) MarkEscalated(workflowID uuid.UUID) {
	f.marked = append(f.marked, workflowID)
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.FatalLevel)
	return l
}

var _ = Describe("Engine", func() {
	It("fans out a trigger-based escalation in order and marks the timeout escalated", func() {
		f := newFakes()
		e := New(f, f, f, f, f, testLogger())
		wfID := uuid.New()

		err := e.FromTrigger(context.Background(), wfID, "+15555550100", domain.Trigger{
			Reason:      domain.ReasonLegalRequest,
			Confidence:  0.9,
			MatchedText: "my lawyer",
		})

		Expect(err).ToNot(HaveOccurred())
		Expect(f.persisted).To(HaveLen(1))
		Expect(f.handoffs).To(ConsistOf(wfID))
		Expect(f.pauses).To(ConsistOf(wfID))
		Expect(f.operators).To(HaveLen(1))
		Expect(f.marked).To(ConsistOf(wfID))

		names := make([]string, len(f.calls))
		for i, c := range f.calls {
			names[i] = c.name
		}
		Expect(names).To(Equal([]string{"persist", "notify_tenant", "pause_sms", "notify_operators"}))
	})

	It("does not mark_escalated for a Manual escalation", func() {
		f := newFakes()
		e := New(f, f, f, f, f, testLogger())
		wfID := uuid.New()

		err := e.FromManual(context.Background(), wfID, "+15555550100", domain.ReasonComplaint)
		Expect(err).ToNot(HaveOccurred())
		Expect(f.marked).To(BeEmpty())
	})

	It("continues the fan-out after a step failure, reporting it without undoing prior steps", func() {
		f := newFakes()
		f.failOn["pause_sms"] = errors.New("sms gateway down")
		e := New(f, f, f, f, f, testLogger())
		wfID := uuid.New()

		err := e.FromTrigger(context.Background(), wfID, "+15555550100", domain.Trigger{
			Reason:     domain.ReasonAnger,
			Confidence: 0.9,
		})

		Expect(err).To(HaveOccurred())
		Expect(f.persisted).To(HaveLen(1))
		Expect(f.handoffs).To(ConsistOf(wfID))
		Expect(f.pauses).To(BeEmpty())
		Expect(f.operators).To(HaveLen(1))
		Expect(f.marked).To(ConsistOf(wfID))
	})

	It("emits only the lighter NotifyWarning step for a C7 warning, with no state transition", func() {
		f := newFakes()
		e := New(f, f, f, f, f, testLogger())
		entry := domain.WorkflowTimeout{WorkflowID: uuid.New()}

		err := e.Warn(context.Background(), entry)
		Expect(err).ToNot(HaveOccurred())
		Expect(f.warnings).To(HaveLen(1))
		Expect(f.marked).To(BeEmpty())
	})
})
