// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package rules

import (
	"maps"

	"blur/internal/playbook"
)

// Report counts matches produced by one or more redaction calls.
// Reports are values: combine them with Merge, never mutate a shared one.
type Report struct {
	TotalMatches int            `json:"total_matches"`
	ByRuleType   map[string]int `json:"matches_by_rule_type"`
	ByRuleID     map[string]int `json:"matches_by_rule_id"`
}

// NewReport returns an empty report with initialized maps
func NewReport() Report {
	return Report{
		ByRuleType: map[string]int{},
		ByRuleID:   map[string]int{},
	}
}

// fragment returns a report holding count matches for rule.
// Non-positive counts produce an empty report.
func fragment(rule playbook.Rule, count int) Report {
	r := NewReport()
	if count <= 0 {
		return r
	}
	r.TotalMatches = count
	r.ByRuleType[string(rule.Type())] = count
	r.ByRuleID[rule.Meta().ID] = count
	return r
}

// Merge returns the field-wise sum of a and b. Neither argument is modified.
func Merge(a, b Report) Report {
	out := Report{
		TotalMatches: a.TotalMatches + b.TotalMatches,
		ByRuleType:   sumMaps(a.ByRuleType, b.ByRuleType),
		ByRuleID:     sumMaps(a.ByRuleID, b.ByRuleID),
	}
	return out
}

// MergeAll folds reports left to right
func MergeAll(reports ...Report) Report {
	out := NewReport()
	for _, r := range reports {
		out = Merge(out, r)
	}
	return out
}

func sumMaps(a, b map[string]int) map[string]int {
	out := make(map[string]int, len(a)+len(b))
	maps.Copy(out, a)
	for k, v := range b {
		out[k] += v
	}
	return out
}

// Empty reports whether no matches were recorded
func (r Report) Empty() bool {
	return r.TotalMatches == 0
}
