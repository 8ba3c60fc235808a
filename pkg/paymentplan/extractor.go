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

// Package paymentplan implements the payment-plan extractor and validator:
// regex-driven extraction of a weekly amount, duration, and start date from
// free text, followed by business-rule validation.
package paymentplan

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/brightline/collections-orchestrator/pkg/domain"
	"github.com/shopspring/decimal"
)

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

var (
	combinedDollarWeeks = regexp.MustCompile(`(?i)\$(\d+(?:\.\d{2})?)\s*(?:per|a|/)\s*week\s*for\s*(\d+)\s*weeks?`)
	combinedWeeksDollar = regexp.MustCompile(`(?i)(\d+)\s*weeks?\s*at\s*\$(\d+(?:\.\d{2})?)\s*(?:per|a|/)?\s*week`)
	combinedDollarsWord = regexp.MustCompile(`(?i)(\d+(?:\.\d{2})?)\s*dollars?\s*weekly\s*for\s*(\d+)\s*weeks?`)

	amountPerWeek   = regexp.MustCompile(`(?i)\$(\d+(?:\.\d{2})?)\s*(?:per|a|/)\s*week`)
	amountDollars   = regexp.MustCompile(`(?i)(\d+(?:\.\d{2})?)\s*dollars?\s*(?:per|a|/)?\s*week`)
	monthlyPayments = regexp.MustCompile(`(?i)monthly\s*payments?\s*of\s*\$(\d+(?:\.\d{2})?)`)

	durationWeeks  = regexp.MustCompile(`(?i)(?:for\s*)?(\d+)\s*weeks?`)
	durationMonths = regexp.MustCompile(`(?i)(\d+)\s*months?`)

	startWeekday = regexp.MustCompile(`(?i)(?:starting|next|this|beginning)\s+(sunday|monday|tuesday|wednesday|thursday|friday|saturday)`)
	startTomorrow = regexp.MustCompile(`(?i)tomorrow`)

	aiResponsePattern = regexp.MustCompile(`(?i)PAYMENT_PLAN:\s*weekly=(\d+(?:\.\d{2})?),\s*weeks=(\d+)`)
)

func parseDecimal(s string) *decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	return &d
}

func parseInt(s string) *int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}

// resolveWeekday returns the next occurrence of day at or after today+1.
func resolveWeekday(today time.Time, day time.Weekday) time.Time {
	candidate := today.AddDate(0, 0, 1)
	for candidate.Weekday() != day {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}

// Extract runs a two-pass extraction against text, returning nil if the
// business pre-filter rejects the result or nothing was found. now is the
// reference date for resolving relative start dates.
func Extract(text string, source domain.PlanSource, now time.Time) *domain.PaymentPlan {
	if source == domain.PlanSourceAIResponse {
		if m := aiResponsePattern.FindStringSubmatch(text); m != nil {
			amt := parseDecimal(m[1])
			weeks := parseInt(m[2])
			plan := &domain.PaymentPlan{
				WeeklyAmount:    amt,
				DurationWeeks:   weeks,
				ConfidenceLevel: domain.ConfidenceHigh,
				ConfidenceScore: 0.95,
				Source:          domain.PlanSourceAIResponse,
				PatternsMatched: []string{"ai_distinguished"},
			}
			return prefilter(plan)
		}
	}

	plan := extractGeneral(text, now)
	if plan == nil {
		return nil
	}
	plan.Source = source
	if source == domain.PlanSourceAIResponse {
		plan.ConfidenceScore += 0.10
		if plan.ConfidenceScore > 1.0 {
			plan.ConfidenceScore = 1.0
		}
	}
	return prefilter(plan)
}

func prefilter(plan *domain.PaymentPlan) *domain.PaymentPlan {
	if plan.WeeklyAmount != nil && plan.WeeklyAmount.LessThan(decimal.NewFromInt(25)) {
		return nil
	}
	if plan.DurationWeeks != nil && *plan.DurationWeeks > 12 {
		return nil
	}
	return plan
}

func extractGeneral(text string, now time.Time) *domain.PaymentPlan {
	var (
		amount    *decimal.Decimal
		weeks     *int
		startDate *time.Time
		matched   []string
		score     float64
	)

	if m := combinedDollarWeeks.FindStringSubmatch(text); m != nil {
		amount = parseDecimal(m[1])
		weeks = parseInt(m[2])
		score = 0.80
		matched = append(matched, "combined_dollar_weeks")
	} else if m := combinedWeeksDollar.FindStringSubmatch(text); m != nil {
		weeks = parseInt(m[1])
		amount = parseDecimal(m[2])
		score = 0.80
		matched = append(matched, "combined_weeks_dollar")
	} else if m := combinedDollarsWord.FindStringSubmatch(text); m != nil {
		amount = parseDecimal(m[1])
		weeks = parseInt(m[2])
		score = 0.60
		matched = append(matched, "combined_dollars_word")
	}

	if amount == nil {
		if m := amountPerWeek.FindStringSubmatch(text); m != nil {
			amount = parseDecimal(m[1])
			matched = append(matched, "amount_per_week")
		} else if m := monthlyPayments.FindStringSubmatch(text); m != nil {
			amount = parseDecimal(m[1])
			matched = append(matched, "monthly_payments")
		} else if m := amountDollars.FindStringSubmatch(text); m != nil {
			amount = parseDecimal(m[1])
			matched = append(matched, "amount_dollars")
		}
	}

	if weeks == nil {
		if m := durationWeeks.FindStringSubmatch(text); m != nil {
			weeks = parseInt(m[1])
			matched = append(matched, "duration_weeks")
		} else if m := durationMonths.FindStringSubmatch(text); m != nil {
			months := parseInt(m[1])
			if months != nil {
				w := *months * 4
				weeks = &w
				matched = append(matched, "duration_months")
			}
		}
	}

	if startTomorrow.MatchString(text) {
		t := now.AddDate(0, 0, 1)
		startDate = &t
		matched = append(matched, "start_tomorrow")
	} else if m := startWeekday.FindStringSubmatch(text); m != nil {
		day := weekdays[strings.ToLower(m[1])]
		t := resolveWeekday(now, day)
		startDate = &t
		matched = append(matched, "start_weekday")
	}

	if amount == nil && weeks == nil {
		return nil
	}

	level := domain.ConfidenceLow
	if score == 0 {
		score = 0.6
	}
	switch {
	case amount != nil && weeks != nil && startDate != nil:
		level = domain.ConfidenceHigh
		if score < 0.9 {
			score = 0.9
		}
	case amount != nil && weeks != nil:
		level = domain.ConfidenceMedium
		if score < 0.7 {
			score = 0.7
		}
	default:
		level = domain.ConfidenceLow
	}

	return &domain.PaymentPlan{
		WeeklyAmount:    amount,
		DurationWeeks:   weeks,
		StartDate:       startDate,
		ConfidenceLevel: level,
		ConfidenceScore: score,
		PatternsMatched: matched,
	}
}
