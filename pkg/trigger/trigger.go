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

// Package trigger implements the escalation trigger scanner: five reason
// classes, each with regex and keyword signals, scored and deduplicated
// into a confidence-sorted list.
package trigger

import (
	"regexp"
	"sort"
	"strings"

	"github.com/brightline/collections-orchestrator/pkg/domain"
)

type classPatterns struct {
	reason         domain.TriggerReason
	regexes        []*regexp.Regexp
	baseRegex      float64
	keywords       []string
	strongKeywords []string
}

var supervisorCue = regexp.MustCompile(`(?i)supervisor|manager|higher.?up`)

var classes = []classPatterns{
	{
		reason: domain.ReasonAnger,
		regexes: []*regexp.Regexp{
			regexp.MustCompile(`(?i)this is (ridiculous|unacceptable|outrageous)`),
			regexp.MustCompile(`(?i)i('m| am) (furious|livid|so angry)`),
		},
		baseRegex: 0.70,
		keywords:  []string{"angry", "mad", "frustrated", "annoyed"},
		strongKeywords: []string{
			"furious", "livid", "screaming", "sick of this",
		},
	},
	{
		reason: domain.ReasonLegalRequest,
		regexes: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(my |a )?(lawyer|attorney)`),
			regexp.MustCompile(`(?i)cease and desist`),
			regexp.MustCompile(`(?i)(i('m| am) going to |i will )?sue (you|them)?`),
		},
		baseRegex: 0.85,
		keywords:  []string{"legal action", "lawsuit", "fdcpa", "fcra"},
		strongKeywords: []string{
			"cease and desist", "file a complaint with the attorney general",
		},
	},
	{
		reason: domain.ReasonComplaint,
		regexes: []*regexp.Regexp{
			regexp.MustCompile(`(?i)i('m| am) filing a complaint`),
			regexp.MustCompile(`(?i)report(ing)? (you|this) to`),
		},
		baseRegex: 0.70,
		keywords:  []string{"complaint", "bbb", "cfpb", "regulator"},
		strongKeywords: []string{
			"filing a complaint", "reporting you to the cfpb",
		},
	},
	{
		reason: domain.ReasonConfusion,
		regexes: []*regexp.Regexp{
			regexp.MustCompile(`(?i)i don'?t understand`),
			regexp.MustCompile(`(?i)what (does|is) this (mean|about)`),
		},
		baseRegex: 0.70,
		keywords:  []string{"confused", "don't get it", "unclear"},
		strongKeywords: []string{
			"i have no idea what's going on", "completely lost",
		},
	},
	{
		reason: domain.ReasonDissatisfaction,
		regexes: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(terrible|awful|horrible) (service|experience)`),
			regexp.MustCompile(`(?i)i('m| am) (done|finished) with (you|this)`),
		},
		baseRegex: 0.70,
		keywords:  []string{"disappointed", "unhappy", "dissatisfied"},
		strongKeywords: []string{
			"worst experience", "never using you again",
		},
	},
}

// Threshold is the default should_escalate confidence cutoff.
const Threshold = 0.7

func clamp(v float64) float64 {
	if v > 1.0 {
		return 1.0
	}
	return v
}

// Scan detects escalation triggers in message, deduplicated by (reason,
// lowercase matched text) with the higher-confidence match winning, sorted
// by descending confidence.
func Scan(message string) []domain.Trigger {
	lower := strings.ToLower(message)
	found := map[string]domain.Trigger{}

	record := func(t domain.Trigger) {
		key := string(t.Reason) + "|" + strings.ToLower(t.MatchedText)
		if existing, ok := found[key]; !ok || t.Confidence > existing.Confidence {
			found[key] = t
		}
	}

	for _, c := range classes {
		for _, re := range c.regexes {
			for _, m := range re.FindAllString(message, -1) {
				conf := c.baseRegex
				if len(m) > 10 {
					conf += 0.10
				}
				if !strings.ContainsAny(re.String(), "*+?") {
					conf += 0.05
				}
				if c.reason == domain.ReasonAnger && supervisorCue.MatchString(message) {
					conf += 0.10
				}
				record(domain.Trigger{
					Reason:      c.reason,
					Confidence:  clamp(conf),
					MatchedText: m,
					PatternKind: domain.PatternKindRegex,
				})
			}
		}

		for _, kw := range c.keywords {
			count := strings.Count(lower, kw)
			if count == 0 {
				continue
			}
			conf := 0.50
			for _, strong := range c.strongKeywords {
				if kw == strong {
					conf = 0.75
					break
				}
			}
			if count > 1 {
				conf += 0.10
			}
			record(domain.Trigger{
				Reason:      c.reason,
				Confidence:  clamp(conf),
				MatchedText: kw,
				PatternKind: domain.PatternKindKeyword,
			})
		}

		for _, kw := range c.strongKeywords {
			count := strings.Count(lower, kw)
			if count == 0 {
				continue
			}
			conf := 0.75
			if count > 1 {
				conf += 0.10
			}
			record(domain.Trigger{
				Reason:      c.reason,
				Confidence:  clamp(conf),
				MatchedText: kw,
				PatternKind: domain.PatternKindKeyword,
			})
		}
	}

	out := make([]domain.Trigger, 0, len(found))
	for _, t := range found {
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		if out[i].Reason != out[j].Reason {
			return out[i].Reason < out[j].Reason
		}
		return out[i].MatchedText < out[j].MatchedText
	})
	return out
}

// ShouldEscalate decides whether triggers warrant escalation: any trigger at
// or above threshold, or any LegalRequest trigger regardless of confidence.
func ShouldEscalate(triggers []domain.Trigger, threshold float64) bool {
	for _, t := range triggers {
		if t.Confidence >= threshold || t.Reason == domain.ReasonLegalRequest {
			return true
		}
	}
	return false
}

// Primary returns the highest-confidence trigger, or false if triggers is
// empty.
func Primary(triggers []domain.Trigger) (domain.Trigger, bool) {
	if len(triggers) == 0 {
		return domain.Trigger{}, false
	}
	best := triggers[0]
	for _, t := range triggers[1:] {
		if t.Confidence > best.Confidence {
			best = t
		}
	}
	return best, true
}
