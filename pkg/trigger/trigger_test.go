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

package trigger

import (
	"testing"

	"github.com/brightline/collections-orchestrator/pkg/domain"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestTrigger(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Trigger Detector Suite")
}

var _ = Describe("Scan", func() {
	It("detects a legal-request trigger from a lawyer mention", func() {
		triggers := Scan("I already talked to my lawyer about this.")
		Expect(triggers).ToNot(BeEmpty())
		Expect(triggers[0].Reason).To(Equal(domain.ReasonLegalRequest))
	})

	It("boosts anger confidence when a supervisor cue is present", func() {
		withCue := Scan("This is ridiculous, let me speak to your supervisor.")
		withoutCue := Scan("This is ridiculous honestly.")

		var withConf, withoutConf float64
		for _, t := range withCue {
			if t.Reason == domain.ReasonAnger {
				withConf = t.Confidence
			}
		}
		for _, t := range withoutCue {
			if t.Reason == domain.ReasonAnger {
				withoutConf = t.Confidence
			}
		}
		Expect(withConf).To(BeNumerically(">", withoutConf))
	})

	It("deduplicates repeated matches, keeping the higher confidence", func() {
		triggers := Scan("I am furious. I am furious.")
		count := 0
		for _, t := range triggers {
			if t.MatchedText == "furious" {
				count++
			}
		}
		Expect(count).To(Equal(1))
	})

	It("clamps confidence to 1.0", func() {
		triggers := Scan("This is ridiculous and unacceptable, let me speak to your supervisor manager higher-up!")
		for _, t := range triggers {
			Expect(t.Confidence).To(BeNumerically("<=", 1.0))
		}
	})

	It("sorts triggers by descending confidence", func() {
		triggers := Scan("I am confused and I am furious and I want my lawyer.")
		for i := 1; i < len(triggers); i++ {
			Expect(triggers[i-1].Confidence).To(BeNumerically(">=", triggers[i].Confidence))
		}
	})

	It("is deterministic across repeated calls on the same input", func() {
		msg := "This is ridiculous, I'm filing a complaint with the CFPB and talking to my attorney."
		a := Scan(msg)
		b := Scan(msg)
		Expect(a).To(Equal(b))
	})
})

var _ = Describe("ShouldEscalate", func() {
	It("escalates when a trigger meets the threshold", func() {
		triggers := []domain.Trigger{{Reason: domain.ReasonAnger, Confidence: 0.75}}
		Expect(ShouldEscalate(triggers, Threshold)).To(BeTrue())
	})

	It("escalates on any LegalRequest trigger regardless of confidence", func() {
		triggers := []domain.Trigger{{Reason: domain.ReasonLegalRequest, Confidence: 0.1}}
		Expect(ShouldEscalate(triggers, Threshold)).To(BeTrue())
	})

	It("does not escalate below threshold with no legal trigger", func() {
		triggers := []domain.Trigger{{Reason: domain.ReasonConfusion, Confidence: 0.3}}
		Expect(ShouldEscalate(triggers, Threshold)).To(BeFalse())
	})
})

var _ = Describe("Primary", func() {
	It("returns the highest-confidence trigger", func() {
		triggers := []domain.Trigger{
			{Reason: domain.ReasonConfusion, Confidence: 0.3},
			{Reason: domain.ReasonAnger, Confidence: 0.9},
		}
		p, ok := Primary(triggers)
		Expect(ok).To(BeTrue())
		Expect(p.Reason).To(Equal(domain.ReasonAnger))
	})

	It("reports false for an empty list", func() {
		_, ok := Primary(nil)
		Expect(ok).To(BeFalse())
	})
})
