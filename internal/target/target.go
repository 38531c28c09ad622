// Package target extracts measurable KPI targets from resolution text.
// The rule path segments text into sentences and clauses, runs an
// ordered pattern table over each clause and resolves values, units,
// years and indicator names from the match context.
package target

import (
	"fmt"
	"strconv"
	"strings"
)

// Type classifies a target.
type Type string

const (
	Quantitative Type = "QUANTITATIVE"
	Qualitative  Type = "QUALITATIVE"
	Milestone    Type = "MILESTONE"
)

// ParseType maps a stored or model-supplied string onto a known Type.
// Anything unrecognized is Quantitative.
func ParseType(s string) Type {
	switch Type(strings.ToUpper(strings.TrimSpace(s))) {
	case Qualitative:
		return Qualitative
	case Milestone:
		return Milestone
	default:
		return Quantitative
	}
}

// Target is one extracted KPI. At least one of Value, Min, Max is set;
// candidates without a parseable number are never emitted.
type Target struct {
	Type          Type              `json:"target_type"`
	NameVi        string            `json:"name_vi"`
	NameEn        string            `json:"name_en,omitempty"`
	Unit          string            `json:"unit,omitempty"`
	Value         *float64          `json:"target_value,omitempty"`
	Min           *float64          `json:"target_min,omitempty"`
	Max           *float64          `json:"target_max,omitempty"`
	Year          *int              `json:"target_year,omitempty"`
	BaselineValue *float64          `json:"baseline_value,omitempty"`
	BaselineYear  *int              `json:"baseline_year,omitempty"`
	RawTextVi     string            `json:"raw_text_vi"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

func (t *Target) setMeta(k, v string) {
	if t.Metadata == nil {
		t.Metadata = map[string]string{}
	}
	t.Metadata[k] = v
}

// Extract runs the rule-based extraction over one text blob, typically
// the content of a single leaf section. The result is order-stable:
// identical input yields an identical list.
func Extract(text string) []Target {
	var out []Target
	for _, sentence := range splitSentences(text) {
		for _, clause := range splitClauses(sentence) {
			out = append(out, extractClause(clause, sentence)...)
		}
	}
	return Dedup(out)
}

// Dedup collapses targets sharing (name, value, unit, min, max),
// keeping the first occurrence.
func Dedup(targets []Target) []Target {
	seen := make(map[string]bool, len(targets))
	var out []Target
	for _, t := range targets {
		k := dedupKey(t)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, t)
	}
	return out
}

func dedupKey(t Target) string {
	return fmt.Sprintf("%s|%s|%s|%s|%s", t.NameVi, fmtFloat(t.Value), t.Unit, fmtFloat(t.Min), fmtFloat(t.Max))
}

func fmtFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'g', -1, 64)
}
