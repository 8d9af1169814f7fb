// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package rules

import (
	"strconv"
	"strings"

	"blur/internal/playbook"
)

// Placeholder tokens are built entirely from Private Use Area runes so that
// no literal, keyword or \w/\d pattern written against real text can match
// inside one. The terminator keeps every token from being a prefix of another.
const (
	placeholderStart = '\uE000'
	placeholderEnd   = '\uE001'
	placeholderDigit = '\uE010'
)

// isPlaceholderRune reports whether r can be part of a placeholder token
func isPlaceholderRune(r rune) bool {
	return r == placeholderStart || r == placeholderEnd ||
		(r >= placeholderDigit && r <= placeholderDigit+9)
}

// placeholders records protected spans for a single Apply call
type placeholders struct {
	tokens    []string
	originals []string
}

func placeholderToken(n int) string {
	var b strings.Builder
	b.WriteRune(placeholderStart)
	for _, d := range strconv.Itoa(n) {
		b.WriteRune(placeholderDigit + (d - '0'))
	}
	b.WriteRune(placeholderEnd)
	return b.String()
}

func (p placeholders) add(token, original string) placeholders {
	return placeholders{
		tokens:    append(p.tokens, token),
		originals: append(p.originals, original),
	}
}

// restore puts every protected span back in a single pass
func (p placeholders) restore(text string) string {
	if len(p.tokens) == 0 {
		return text
	}
	pairs := make([]string, 0, 2*len(p.tokens))
	for i, token := range p.tokens {
		pairs = append(pairs, token, p.originals[i])
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

// protect hides every allowlisted span behind a placeholder. The counter is
// threaded through each step and never shared outside this call.
func protect(text string, allowlist []playbook.Rule) (string, placeholders) {
	working := text
	counter := 0
	var ph placeholders

	for _, rule := range allowlist {
		al, ok := rule.(*playbook.AllowlistRule)
		if !ok {
			continue
		}
		for _, phrase := range al.Phrases {
			working, counter, ph = protectPhrase(working, phrase, counter, ph)
		}
		for _, pattern := range al.Patterns {
			working, counter, ph = protectPattern(working, pattern, counter, ph)
		}
	}
	return working, ph
}

// protectPhrase replaces every literal occurrence of phrase with one shared token
func protectPhrase(text, phrase string, counter int, ph placeholders) (string, int, placeholders) {
	if phrase == "" || !strings.Contains(text, phrase) {
		return text, counter, ph
	}
	counter++
	token := placeholderToken(counter)
	return strings.ReplaceAll(text, phrase, token), counter, ph.add(token, phrase)
}

// protectPattern gives each match of pattern its own token
func protectPattern(text string, pattern playbook.Pattern, counter int, ph placeholders) (string, int, placeholders) {
	re := pattern.Regexp()
	if re == nil {
		return text, counter, ph
	}
	spans := patternSpans(re, text)
	if len(spans) == 0 {
		return text, counter, ph
	}

	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, s := range spans {
		counter++
		token := placeholderToken(counter)
		ph = ph.add(token, text[s.start:s.end])
		b.WriteString(text[last:s.start])
		b.WriteString(token)
		last = s.end
	}
	b.WriteString(text[last:])
	return b.String(), counter, ph
}
