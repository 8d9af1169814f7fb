// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package playbook

import (
	"cmp"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/dlclark/regexp2"
)

// RedactionMode controls how a MASK action renders a match
type RedactionMode string

const (
	// ModeFixedToken replaces a masked span with the rule template or a fixed token
	ModeFixedToken RedactionMode = "FIXED_TOKEN"
	// ModeSameLengthMask replaces a masked span with MaskChar repeated once per character
	ModeSameLengthMask RedactionMode = "SAME_LENGTH_MASK"
)

// RuleType identifies the matching method of a rule
type RuleType string

const (
	TypeAllowlist  RuleType = "allowlist"
	TypeDictionary RuleType = "dictionary_entities"
	TypeRegex      RuleType = "regex_patterns"
	TypeKeyword    RuleType = "keyword_list"
)

// ExecutionOrder is the fixed order in which rule groups run. Allowlist rules
// always run first so that the spans they protect are hidden from the others.
var ExecutionOrder = []RuleType{TypeAllowlist, TypeDictionary, TypeRegex, TypeKeyword}

// Action is what happens to a matched span
type Action string

const (
	ActionMask    Action = "MASK"
	ActionReplace Action = "REPLACE"
	ActionRemove  Action = "REMOVE"
)

const (
	// DefaultPriority is used when a rule does not declare one
	DefaultPriority = 100
	// DefaultMaskChar is used when a playbook does not declare one
	DefaultMaskChar = "*"
)

// RuleMeta holds the fields shared by every rule variant
type RuleMeta struct {
	ID                  string
	Name                string
	Enabled             bool
	Priority            int
	Action              Action
	ReplacementTemplate string
	CaseInsensitive     bool

	// Scope is parsed and kept but not consulted when rules are applied.
	Scope []string
}

// Rule is one policy unit. The concrete variants are AllowlistRule,
// DictionaryRule, RegexRule and KeywordRule.
type Rule interface {
	Meta() RuleMeta
	Type() RuleType
}

// Pattern is a compiled regular expression taken from a playbook entry
type Pattern struct {
	Source          string
	CaseInsensitive bool

	re *regexp2.Regexp
}

// CompilePattern compiles source. An empty source yields a Pattern that never matches.
func CompilePattern(source string, caseInsensitive bool) (Pattern, error) {
	p := Pattern{Source: source, CaseInsensitive: caseInsensitive}
	if source == "" {
		return p, nil
	}

	opts := regexp2.None
	if caseInsensitive {
		opts |= regexp2.IgnoreCase
	}
	re, err := regexp2.Compile(source, opts)
	if err != nil {
		return Pattern{}, fmt.Errorf("invalid pattern %q: %w", source, err)
	}
	p.re = re
	return p, nil
}

// Regexp returns the compiled expression, or nil for an empty pattern
func (p Pattern) Regexp() *regexp2.Regexp {
	return p.re
}

// AllowlistRule protects literal phrases and pattern matches from every later rule
type AllowlistRule struct {
	RuleMeta
	Phrases  []string
	Patterns []Pattern
}

func (r *AllowlistRule) Meta() RuleMeta { return r.RuleMeta }
func (r *AllowlistRule) Type() RuleType { return TypeAllowlist }

// DictionaryEntry maps an exact term to its replacement
type DictionaryEntry struct {
	Term        string
	Replacement string
}

// DictionaryRule substitutes exact terms. Entries keep the order they were declared in.
type DictionaryRule struct {
	RuleMeta
	Entries []DictionaryEntry

	compiled []*regexp.Regexp
}

// NewDictionaryRule builds a dictionary rule and compiles one literal matcher per entry
func NewDictionaryRule(meta RuleMeta, entries []DictionaryEntry) *DictionaryRule {
	r := &DictionaryRule{RuleMeta: meta, Entries: entries}
	r.compiled = make([]*regexp.Regexp, len(entries))
	for i, entry := range entries {
		if entry.Term == "" {
			continue
		}
		r.compiled[i] = regexp.MustCompile(literalExpr(meta.CaseInsensitive, entry.Term))
	}
	return r
}

func (r *DictionaryRule) Meta() RuleMeta { return r.RuleMeta }
func (r *DictionaryRule) Type() RuleType { return TypeDictionary }

// Matcher returns the literal matcher for entry i, or nil when the term is empty
func (r *DictionaryRule) Matcher(i int) *regexp.Regexp {
	if r.compiled == nil {
		// Built as a literal rather than through NewDictionaryRule.
		entry := r.Entries[i]
		if entry.Term == "" {
			return nil
		}
		return regexp.MustCompile(literalExpr(r.CaseInsensitive, entry.Term))
	}
	return r.compiled[i]
}

// RegexRule applies regular-expression patterns
type RegexRule struct {
	RuleMeta
	Patterns []Pattern
}

func (r *RegexRule) Meta() RuleMeta { return r.RuleMeta }
func (r *RegexRule) Type() RuleType { return TypeRegex }

// KeywordRule matches any of its keywords, combined into a single alternation
type KeywordRule struct {
	RuleMeta
	Keywords []string

	alternation *regexp.Regexp
}

// NewKeywordRule builds a keyword rule and compiles its alternation
func NewKeywordRule(meta RuleMeta, keywords []string) *KeywordRule {
	return &KeywordRule{
		RuleMeta:    meta,
		Keywords:    keywords,
		alternation: compileAlternation(meta.CaseInsensitive, keywords),
	}
}

func (r *KeywordRule) Meta() RuleMeta { return r.RuleMeta }
func (r *KeywordRule) Type() RuleType { return TypeKeyword }

// Alternation returns the compiled keyword alternation, or nil when there are no keywords
func (r *KeywordRule) Alternation() *regexp.Regexp {
	if r.alternation == nil && len(r.Keywords) > 0 {
		return compileAlternation(r.CaseInsensitive, r.Keywords)
	}
	return r.alternation
}

func compileAlternation(caseInsensitive bool, keywords []string) *regexp.Regexp {
	escaped := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		escaped = append(escaped, regexp.QuoteMeta(kw))
	}
	if len(escaped) == 0 {
		return nil
	}
	return regexp.MustCompile(literalExpr(caseInsensitive, "") + strings.Join(escaped, "|"))
}

// literalExpr returns an expression matching term literally. With an empty
// term it returns only the flag prefix, for callers that append their own body.
func literalExpr(caseInsensitive bool, term string) string {
	prefix := ""
	if caseInsensitive {
		prefix = "(?i)"
	}
	return prefix + regexp.QuoteMeta(term)
}

// Playbook is a named, versioned set of rules plus masking defaults.
// A Playbook built by New must not be modified afterwards; it may then be
// shared by any number of concurrent redaction calls.
type Playbook struct {
	Name          string
	Version       string
	RedactionMode RedactionMode
	MaskChar      string
	Rules         []Rule

	Description string
	UpdatedAt   string
	UpdatedBy   string

	ordered map[RuleType][]Rule
}

// New creates a playbook, filling defaults and precomputing rule order
func New(name, version string, mode RedactionMode, maskChar string, rules []Rule) *Playbook {
	if mode == "" {
		mode = ModeFixedToken
	}
	if maskChar == "" {
		maskChar = DefaultMaskChar
	}
	pb := &Playbook{
		Name:          name,
		Version:       version,
		RedactionMode: mode,
		MaskChar:      maskChar,
		Rules:         rules,
	}
	pb.ordered = make(map[RuleType][]Rule, len(ExecutionOrder))
	for _, t := range ExecutionOrder {
		pb.ordered[t] = orderRules(rules, t)
	}
	return pb
}

// RulesOfType returns the enabled rules of type t in ascending priority.
// Rules with equal priority keep their declaration order.
func (pb *Playbook) RulesOfType(t RuleType) []Rule {
	if pb.ordered != nil {
		if rules, ok := pb.ordered[t]; ok {
			return rules
		}
	}
	return orderRules(pb.Rules, t)
}

func orderRules(rules []Rule, t RuleType) []Rule {
	var selected []Rule
	for _, r := range rules {
		if r == nil || r.Type() != t || !r.Meta().Enabled {
			continue
		}
		selected = append(selected, r)
	}
	slices.SortStableFunc(selected, func(a, b Rule) int {
		return cmp.Compare(a.Meta().Priority, b.Meta().Priority)
	})
	return selected
}

// Identity returns "name@version" for logs
func (pb *Playbook) Identity() string {
	return pb.Name + "@" + pb.Version
}
