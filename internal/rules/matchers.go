// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package rules

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"blur/internal/playbook"

	"github.com/dlclark/regexp2"
)

// span is a match location in byte offsets, end exclusive
type span struct {
	start int
	end   int
}

// applyRule runs the matcher for rule against text. Rule variants this
// package does not know are passed through untouched.
func applyRule(text string, rule playbook.Rule, pb *playbook.Playbook) (string, Report) {
	switch r := rule.(type) {
	case *playbook.DictionaryRule:
		return applyDictionary(text, r, pb)
	case *playbook.RegexRule:
		return applyRegexPatterns(text, r, pb)
	case *playbook.KeywordRule:
		return applyKeywords(text, r, pb)
	default:
		return text, NewReport()
	}
}

func applyDictionary(text string, rule *playbook.DictionaryRule, pb *playbook.Playbook) (string, Report) {
	updated := text
	count := 0
	for i, entry := range rule.Entries {
		re := rule.Matcher(i)
		if re == nil {
			continue
		}
		spans := literalSpans(re, updated)
		if len(spans) == 0 {
			continue
		}

		var n int
		switch rule.Action {
		case playbook.ActionRemove:
			updated, n = substitute(updated, spans, func(string) string { return "" })
		case playbook.ActionReplace:
			replacement := entry.Replacement
			updated, n = substitute(updated, spans, func(string) string { return replacement })
		default:
			updated, n = substitute(updated, spans, func(m string) string { return replacementFor(m, rule, pb) })
		}
		count += n
	}
	return updated, fragment(rule, count)
}

func applyRegexPatterns(text string, rule *playbook.RegexRule, pb *playbook.Playbook) (string, Report) {
	updated := text
	count := 0
	for _, pattern := range rule.Patterns {
		re := pattern.Regexp()
		if re == nil {
			continue
		}
		spans := patternSpans(re, updated)
		if len(spans) == 0 {
			continue
		}
		var n int
		updated, n = substitute(updated, spans, func(m string) string { return replacementFor(m, rule, pb) })
		count += n
	}
	return updated, fragment(rule, count)
}

func applyKeywords(text string, rule *playbook.KeywordRule, pb *playbook.Playbook) (string, Report) {
	re := rule.Alternation()
	if re == nil {
		return text, NewReport()
	}
	spans := literalSpans(re, text)
	if len(spans) == 0 {
		return text, NewReport()
	}
	updated, n := substitute(text, spans, func(m string) string { return replacementFor(m, rule, pb) })
	return updated, fragment(rule, n)
}

func literalSpans(re *regexp.Regexp, text string) []span {
	locs := re.FindAllStringIndex(text, -1)
	spans := make([]span, len(locs))
	for i, loc := range locs {
		spans[i] = span{start: loc[0], end: loc[1]}
	}
	return spans
}

// patternSpans collects the leftmost non-overlapping matches of re.
// regexp2 reports positions in runes; they are converted to byte offsets here.
func patternSpans(re *regexp2.Regexp, text string) []span {
	m, err := re.FindStringMatch(text)
	if err != nil || m == nil {
		// err is only returned when a match timeout is configured and hit
		return nil
	}

	offsets := runeOffsets(text)
	var spans []span
	for m != nil {
		spans = append(spans, span{start: offsets[m.Index], end: offsets[m.Index+m.Length]})
		m, err = re.FindNextMatch(m)
		if err != nil {
			break
		}
	}
	return spans
}

// runeOffsets maps rune index to byte offset, with one extra entry for len(text)
func runeOffsets(text string) []int {
	offsets := make([]int, 0, len(text)+1)
	for i := range text {
		offsets = append(offsets, i)
	}
	return append(offsets, len(text))
}

// substitute rebuilds text with every span replaced by repl(matched text) and
// returns how many spans were replaced.
//
// A pattern such as `.+` can match across a placeholder. Placeholder runes
// inside a span are copied through unchanged and repl only sees the
// unprotected runs between them, so the protected text is restored intact.
// A span that covers nothing but placeholder runes is left alone and not
// counted.
func substitute(text string, spans []span, repl func(string) string) (string, int) {
	var b strings.Builder
	b.Grow(len(text))
	last, replaced := 0, 0
	for _, s := range spans {
		b.WriteString(text[last:s.start])
		last = s.end

		matched := text[s.start:s.end]
		if !strings.ContainsFunc(matched, isPlaceholderRune) {
			b.WriteString(repl(matched))
			replaced++
			continue
		}
		if replaceUnprotected(&b, matched, repl) {
			replaced++
		}
	}
	b.WriteString(text[last:])
	return b.String(), replaced
}

// replaceUnprotected writes matched to b with each run of ordinary runes
// passed through repl. It reports whether any such run existed.
func replaceUnprotected(b *strings.Builder, matched string, repl func(string) string) bool {
	found := false
	start := 0
	for i, r := range matched {
		if !isPlaceholderRune(r) {
			continue
		}
		if start < i {
			b.WriteString(repl(matched[start:i]))
			found = true
		}
		b.WriteRune(r)
		start = i + utf8.RuneLen(r)
	}
	if start < len(matched) {
		b.WriteString(repl(matched[start:]))
		found = true
	}
	return found
}
