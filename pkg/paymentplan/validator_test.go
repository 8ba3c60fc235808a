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

package paymentplan

import (
	"github.com/brightline/collections-orchestrator/pkg/domain"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
)

func amt(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func weeks(n int) *int { return &n }

var _ = Describe("Validate", func() {
	It("auto-approves a high-confidence plan within the fast-track bounds", func() {
		plan := &domain.PaymentPlan{
			WeeklyAmount:    amt(75),
			DurationWeeks:   weeks(6),
			ConfidenceLevel: domain.ConfidenceHigh,
		}
		report := Validate(plan, refNow, ValidationContext{})
		Expect(report.Status).To(Equal(domain.ValidationAutoApproved))
		Expect(report.IsAutoApprovable).To(BeTrue())
		Expect(report.IsValid).To(BeTrue())
	})

	It("flags weekly_amount outside [25,1000] as an error", func() {
		plan := &domain.PaymentPlan{
			WeeklyAmount:    amt(10),
			DurationWeeks:   weeks(6),
			ConfidenceLevel: domain.ConfidenceHigh,
		}
		report := Validate(plan, refNow, ValidationContext{})
		Expect(report.Status).To(Equal(domain.ValidationInvalid))
		Expect(report.Errors).ToNot(BeEmpty())
	})

	It("requires confidence_level at least Medium", func() {
		plan := &domain.PaymentPlan{
			WeeklyAmount:    amt(75),
			DurationWeeks:   weeks(6),
			ConfidenceLevel: domain.ConfidenceLow,
		}
		report := Validate(plan, refNow, ValidationContext{})
		Expect(report.Status).To(Equal(domain.ValidationInvalid))
	})

	It("warns on a short duration without making it an error", func() {
		plan := &domain.PaymentPlan{
			WeeklyAmount:    amt(75),
			DurationWeeks:   weeks(2),
			ConfidenceLevel: domain.ConfidenceMedium,
		}
		report := Validate(plan, refNow, ValidationContext{})
		Expect(report.IsValid).To(BeTrue())
		Expect(report.Warnings).ToNot(BeEmpty())
		Expect(report.Status).To(Equal(domain.ValidationNeedsReview))
	})

	It("warns on a long duration without making it an error", func() {
		plan := &domain.PaymentPlan{
			WeeklyAmount:    amt(75),
			DurationWeeks:   weeks(10),
			ConfidenceLevel: domain.ConfidenceMedium,
		}
		report := Validate(plan, refNow, ValidationContext{})
		Expect(report.IsValid).To(BeTrue())
		Expect(report.Warnings).ToNot(BeEmpty())
	})

	It("treats an absent start_date as an informational warning, not an error", func() {
		plan := &domain.PaymentPlan{
			WeeklyAmount:    amt(75),
			DurationWeeks:   weeks(6),
			ConfidenceLevel: domain.ConfidenceMedium,
		}
		report := Validate(plan, refNow, ValidationContext{})
		Expect(report.IsValid).To(BeTrue())
		Expect(report.Warnings).To(ContainElement(ContainSubstring("assuming immediate start")))
	})

	It("flags an out-of-range start_date as an error", func() {
		late := refNow.AddDate(0, 0, 60)
		plan := &domain.PaymentPlan{
			WeeklyAmount:    amt(75),
			DurationWeeks:   weeks(6),
			StartDate:       &late,
			ConfidenceLevel: domain.ConfidenceHigh,
		}
		report := Validate(plan, refNow, ValidationContext{})
		Expect(report.Status).To(Equal(domain.ValidationInvalid))
	})

	It("warns when weekly_amount exceeds 30% of average weekly income", func() {
		income := decimal.NewFromInt(400) // weekly ~92.4, 30% ~27.7
		plan := &domain.PaymentPlan{
			WeeklyAmount:    amt(75),
			DurationWeeks:   weeks(6),
			ConfidenceLevel: domain.ConfidenceMedium,
		}
		report := Validate(plan, refNow, ValidationContext{AverageMonthlyIncome: &income})
		Expect(report.Warnings).ToNot(BeEmpty())
	})

	It("warns when the plan covers less than 10% of the total balance annually", func() {
		balance := decimal.NewFromInt(100000)
		plan := &domain.PaymentPlan{
			WeeklyAmount:    amt(50),
			DurationWeeks:   weeks(6),
			ConfidenceLevel: domain.ConfidenceMedium,
		}
		report := Validate(plan, refNow, ValidationContext{TotalBalance: &balance})
		Expect(report.Warnings).ToNot(BeEmpty())
	})

	It("warns on existing payment plans and missed payments", func() {
		plan := &domain.PaymentPlan{
			WeeklyAmount:    amt(75),
			DurationWeeks:   weeks(6),
			ConfidenceLevel: domain.ConfidenceMedium,
		}
		report := Validate(plan, refNow, ValidationContext{ExistingPaymentPlans: 1, MissedPayments: 3})
		Expect(report.Warnings).To(HaveLen(3)) // absent start_date + existing plan + missed payments
	})

	It("does not auto-approve when duration exceeds 8 weeks even at high confidence", func() {
		plan := &domain.PaymentPlan{
			WeeklyAmount:    amt(75),
			DurationWeeks:   weeks(9),
			ConfidenceLevel: domain.ConfidenceHigh,
		}
		report := Validate(plan, refNow, ValidationContext{})
		Expect(report.IsAutoApprovable).To(BeFalse())
	})

	It("does not auto-approve below the $50 weekly floor", func() {
		plan := &domain.PaymentPlan{
			WeeklyAmount:    amt(30),
			DurationWeeks:   weeks(6),
			ConfidenceLevel: domain.ConfidenceHigh,
		}
		report := Validate(plan, refNow, ValidationContext{})
		Expect(report.IsAutoApprovable).To(BeFalse())
	})
})

var _ = Describe("Validate timing", func() {
	It("accepts a start_date exactly at the tomorrow boundary", func() {
		tomorrow := refNow.AddDate(0, 0, 1)
		plan := &domain.PaymentPlan{
			WeeklyAmount:    amt(75),
			DurationWeeks:   weeks(6),
			StartDate:       &tomorrow,
			ConfidenceLevel: domain.ConfidenceHigh,
		}
		report := Validate(plan, refNow, ValidationContext{})
		Expect(report.IsValid).To(BeTrue())
	})

	It("rejects a start_date of today (not tomorrow)", func() {
		plan := &domain.PaymentPlan{
			WeeklyAmount:    amt(75),
			DurationWeeks:   weeks(6),
			StartDate:       &refNow,
			ConfidenceLevel: domain.ConfidenceHigh,
		}
		report := Validate(plan, refNow, ValidationContext{})
		Expect(report.IsValid).To(BeFalse())
	})
})
