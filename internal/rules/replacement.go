// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package rules

import (
	"strings"
	"unicode/utf8"

	"blur/internal/playbook"
)

const (
	defaultReplaceTemplate = "[BLURRED:{rule_name}]"
	defaultMaskToken       = "[BLURRED]"
)

// replacementFor renders the text that takes the place of matched under rule
func replacementFor(matched string, rule playbook.Rule, pb *playbook.Playbook) string {
	meta := rule.Meta()
	switch meta.Action {
	case playbook.ActionRemove:
		return ""
	case playbook.ActionReplace:
		template := meta.ReplacementTemplate
		if template == "" {
			template = defaultReplaceTemplate
		}
		return formatTemplate(template, meta)
	}

	if pb.RedactionMode == playbook.ModeSameLengthMask {
		maskChar := pb.MaskChar
		if maskChar == "" {
			maskChar = playbook.DefaultMaskChar
		}
		return strings.Repeat(maskChar, utf8.RuneCountInString(matched))
	}
	if meta.ReplacementTemplate != "" {
		return formatTemplate(meta.ReplacementTemplate, meta)
	}
	return defaultMaskToken
}

// formatTemplate expands {rule_name} and {rule_id}. Doubled braces produce a
// literal brace; any other braced field is copied through unchanged.
func formatTemplate(template string, meta playbook.RuleMeta) string {
	if !strings.ContainsAny(template, "{}") {
		return template
	}

	var b strings.Builder
	b.Grow(len(template))
	for i := 0; i < len(template); i++ {
		c := template[i]
		switch {
		case c == '{' && i+1 < len(template) && template[i+1] == '{':
			b.WriteByte('{')
			i++
		case c == '}' && i+1 < len(template) && template[i+1] == '}':
			b.WriteByte('}')
			i++
		case c == '{':
			end := strings.IndexByte(template[i:], '}')
			if end < 0 {
				b.WriteString(template[i:])
				return b.String()
			}
			field := template[i+1 : i+end]
			switch field {
			case "rule_name":
				b.WriteString(meta.Name)
			case "rule_id":
				b.WriteString(meta.ID)
			default:
				b.WriteString(template[i : i+end+1])
			}
			i += end
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
