// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package rules applies a playbook's rules to a single string.
//
// Rule groups always run in the order allowlist, dictionary_entities,
// regex_patterns, keyword_list; inside a group rules run by ascending
// priority. Allowlisted spans are swapped for placeholder tokens before any
// other rule runs and restored at the end, so no later rule can alter them.
// A match that spans a placeholder only replaces the text around it.
// Each rule sees the output of the rules before it, including text inserted
// by an earlier REPLACE.
//
// Apply keeps no state between calls and never writes to the playbook, so
// independent strings can be processed concurrently.
package rules

import (
	"blur/internal/playbook"
)

// transformGroups are the rule groups that rewrite text, in execution order
var transformGroups = []playbook.RuleType{
	playbook.TypeDictionary,
	playbook.TypeRegex,
	playbook.TypeKeyword,
}

// Apply redacts text with pb and returns the result together with a match report.
//
// In dry-run mode the full pipeline runs on a private working copy so the
// report equals that of a live run, but the input is returned unchanged.
func Apply(text string, pb *playbook.Playbook, dryRun bool) (string, Report) {
	if pb == nil {
		return text, NewReport()
	}

	working, ph := protect(text, pb.RulesOfType(playbook.TypeAllowlist))

	report := NewReport()
	for _, group := range transformGroups {
		for _, rule := range pb.RulesOfType(group) {
			var frag Report
			working, frag = applyRule(working, rule, pb)
			report = Merge(report, frag)
		}
	}

	if dryRun {
		return text, report
	}
	return ph.restore(working), report
}
