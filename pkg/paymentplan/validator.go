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
	"fmt"
	"time"

	"github.com/brightline/collections-orchestrator/pkg/domain"
	"github.com/shopspring/decimal"
)

// ValidationContext carries the optional caller-supplied figures that drive
// context-aware warnings.
type ValidationContext struct {
	AverageMonthlyIncome *decimal.Decimal
	TotalBalance         *decimal.Decimal
	ExistingPaymentPlans int
	MissedPayments       int
}

var (
	minWeekly   = decimal.NewFromInt(25)
	maxWeekly   = decimal.NewFromInt(1000)
	fourPoint33 = decimal.NewFromFloat(4.33)
	pointThirty = decimal.NewFromFloat(0.30)
	pointTen    = decimal.NewFromFloat(0.10)
)

// Validate applies the business rule table to plan, given the reference
// date now and optional ctx figures.
func Validate(plan *domain.PaymentPlan, now time.Time, ctx ValidationContext) domain.ValidationReport {
	var errs, warnings []string

	if plan.WeeklyAmount == nil || plan.WeeklyAmount.LessThan(minWeekly) || plan.WeeklyAmount.GreaterThan(maxWeekly) {
		errs = append(errs, "weekly_amount must be between $25.00 and $1000.00")
	}

	if plan.DurationWeeks == nil || *plan.DurationWeeks < 1 || *plan.DurationWeeks > 12 {
		errs = append(errs, "duration_weeks must be between 1 and 12")
	} else {
		if *plan.DurationWeeks <= 2 {
			warnings = append(warnings, "duration_weeks is unusually short")
		}
		if *plan.DurationWeeks >= 10 {
			warnings = append(warnings, "duration_weeks is unusually long")
		}
	}

	if plan.ConfidenceLevel == domain.ConfidenceLow {
		errs = append(errs, "confidence_level must be at least Medium")
	}

	if plan.StartDate == nil {
		warnings = append(warnings, "start_date absent, assuming immediate start")
	} else {
		earliest := now.AddDate(0, 0, 1)
		latest := now.AddDate(0, 0, 30)
		if plan.StartDate.Before(earliest) || plan.StartDate.After(latest) {
			errs = append(errs, "start_date must fall between tomorrow and 30 days from now")
		}
	}

	if plan.WeeklyAmount != nil {
		if ctx.AverageMonthlyIncome != nil {
			weeklyCap := ctx.AverageMonthlyIncome.Div(fourPoint33).Mul(pointThirty)
			if plan.WeeklyAmount.GreaterThan(weeklyCap) {
				warnings = append(warnings, "weekly_amount exceeds 30% of average weekly income")
			}
		}
		if ctx.TotalBalance != nil {
			annual := plan.WeeklyAmount.Mul(decimal.NewFromInt(12))
			floor := ctx.TotalBalance.Mul(pointTen)
			if annual.LessThan(floor) {
				warnings = append(warnings, "payment plan covers less than 10% of total balance over a year")
			}
		}
	}
	if ctx.ExistingPaymentPlans > 0 {
		warnings = append(warnings, fmt.Sprintf("customer has %d existing payment plan(s)", ctx.ExistingPaymentPlans))
	}
	if ctx.MissedPayments > 2 {
		warnings = append(warnings, fmt.Sprintf("customer has missed %d prior payments", ctx.MissedPayments))
	}

	autoApprovable := len(errs) == 0 &&
		plan.ConfidenceLevel == domain.ConfidenceHigh &&
		plan.WeeklyAmount != nil && plan.WeeklyAmount.GreaterThanOrEqual(decimal.NewFromInt(50)) &&
		plan.DurationWeeks != nil && *plan.DurationWeeks <= 8

	var status domain.ValidationStatus
	switch {
	case len(errs) > 0:
		status = domain.ValidationInvalid
	case autoApprovable:
		status = domain.ValidationAutoApproved
	case len(warnings) > 0:
		status = domain.ValidationNeedsReview
	default:
		status = domain.ValidationValid
	}

	return domain.ValidationReport{
		Status:           status,
		IsValid:          len(errs) == 0,
		IsAutoApprovable: autoApprovable,
		Errors:           errs,
		Warnings:         warnings,
		Summary:          summarize(status, errs, warnings),
	}
}

func summarize(status domain.ValidationStatus, errs, warnings []string) string {
	return fmt.Sprintf("%s (%d error(s), %d warning(s))", status, len(errs), len(warnings))
}
