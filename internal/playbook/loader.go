// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package playbook

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

var allowedPlaybookKeys = map[string]bool{
	"name":           true,
	"version":        true,
	"updated_at":     true,
	"updated_by":     true,
	"description":    true,
	"redaction_mode": true,
	"mask_char":      true,
	"rules":          true,
}

var allowedRuleKeys = map[string]bool{
	"id":                   true,
	"name":                 true,
	"type":                 true,
	"enabled":              true,
	"priority":             true,
	"action":               true,
	"replacement_template": true,
	"scope":                true,
	"patterns":             true,
	"phrases":              true,
	"case_insensitive":     true,
	"dictionary":           true,
	"keywords":             true,
}

// Error is returned for any playbook that fails to parse or validate
type Error struct {
	Path    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = msg + ": " + e.Cause.Error()
	}
	if e.Path != "" {
		return fmt.Sprintf("playbook %s: %s", e.Path, msg)
	}
	return "playbook: " + msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func errorf(format string, args ...interface{}) *Error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}

type rawPlaybook struct {
	Name          string    `yaml:"name"`
	Version       string    `yaml:"version"`
	UpdatedAt     string    `yaml:"updated_at"`
	UpdatedBy     string    `yaml:"updated_by"`
	Description   string    `yaml:"description"`
	RedactionMode string    `yaml:"redaction_mode"`
	MaskChar      string    `yaml:"mask_char"`
	Rules         yaml.Node `yaml:"rules"`
}

type rawPattern struct {
	Pattern         string `yaml:"pattern"`
	CaseInsensitive bool   `yaml:"case_insensitive"`
}

type rawRule struct {
	ID                  string       `yaml:"id"`
	Name                string       `yaml:"name"`
	Type                string       `yaml:"type"`
	Enabled             *bool        `yaml:"enabled"`
	Priority            *int         `yaml:"priority"`
	Action              string       `yaml:"action"`
	ReplacementTemplate string       `yaml:"replacement_template"`
	Scope               []string     `yaml:"scope"`
	Patterns            []rawPattern `yaml:"patterns"`
	Phrases             []string     `yaml:"phrases"`
	CaseInsensitive     bool         `yaml:"case_insensitive"`
	Dictionary          yaml.Node    `yaml:"dictionary"`
	Keywords            []string     `yaml:"keywords"`
}

// Load reads and validates the playbook at path
func Load(path string) (*Playbook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read playbook: %w", err)
	}
	pb, err := Parse(data)
	if err != nil {
		var perr *Error
		if errors.As(err, &perr) && perr.Path == "" {
			perr.Path = path
		}
		return nil, err
	}
	return pb, nil
}

// Parse validates a YAML playbook document and builds the policy model
func Parse(data []byte) (*Playbook, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &Error{Message: "invalid YAML", Cause: err}
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, errorf("playbook must be a mapping")
	}
	root := doc.Content[0]
	if err := checkKeys(root, allowedPlaybookKeys, "playbook"); err != nil {
		return nil, err
	}

	var raw rawPlaybook
	if err := root.Decode(&raw); err != nil {
		return nil, &Error{Message: "invalid playbook fields", Cause: err}
	}
	if raw.Name == "" || raw.Version == "" {
		return nil, errorf("playbook requires name and version")
	}

	mode := RedactionMode(raw.RedactionMode)
	switch mode {
	case "", ModeFixedToken, ModeSameLengthMask:
	default:
		return nil, errorf("invalid redaction_mode: %s", raw.RedactionMode)
	}

	var rules []Rule
	switch raw.Rules.Kind {
	case 0:
	case yaml.ScalarNode:
		if raw.Rules.Tag != "!!null" {
			return nil, errorf("rules must be a list")
		}
	case yaml.SequenceNode:
		for i, node := range raw.Rules.Content {
			rule, err := parseRule(node)
			if err != nil {
				var perr *Error
				if errors.As(err, &perr) {
					perr.Message = fmt.Sprintf("rule %d: %s", i, perr.Message)
				}
				return nil, err
			}
			rules = append(rules, rule)
		}
	default:
		return nil, errorf("rules must be a list")
	}

	pb := New(raw.Name, raw.Version, mode, raw.MaskChar, rules)
	pb.Description = raw.Description
	pb.UpdatedAt = raw.UpdatedAt
	pb.UpdatedBy = raw.UpdatedBy
	return pb, nil
}

func parseRule(node *yaml.Node) (Rule, error) {
	if node.Kind != yaml.MappingNode {
		return nil, errorf("rule must be a mapping")
	}
	if err := checkKeys(node, allowedRuleKeys, "rule"); err != nil {
		return nil, err
	}

	var raw rawRule
	if err := node.Decode(&raw); err != nil {
		return nil, &Error{Message: "invalid rule fields", Cause: err}
	}

	action := Action(raw.Action)
	switch action {
	case "":
		action = ActionMask
	case ActionMask, ActionReplace, ActionRemove:
	default:
		return nil, errorf("invalid action: %s", raw.Action)
	}

	meta := RuleMeta{
		ID:                  raw.ID,
		Name:                raw.Name,
		Enabled:             true,
		Priority:            DefaultPriority,
		Action:              action,
		ReplacementTemplate: raw.ReplacementTemplate,
		CaseInsensitive:     raw.CaseInsensitive,
		Scope:               raw.Scope,
	}
	if meta.Name == "" {
		meta.Name = meta.ID
	}
	if raw.Enabled != nil {
		meta.Enabled = *raw.Enabled
	}
	if raw.Priority != nil {
		meta.Priority = *raw.Priority
	}

	switch RuleType(raw.Type) {
	case TypeAllowlist:
		patterns, err := compilePatterns(raw.Patterns, meta.CaseInsensitive)
		if err != nil {
			return nil, err
		}
		return &AllowlistRule{RuleMeta: meta, Phrases: raw.Phrases, Patterns: patterns}, nil
	case TypeDictionary:
		entries, err := dictionaryEntries(&raw.Dictionary)
		if err != nil {
			return nil, err
		}
		return NewDictionaryRule(meta, entries), nil
	case TypeRegex:
		patterns, err := compilePatterns(raw.Patterns, meta.CaseInsensitive)
		if err != nil {
			return nil, err
		}
		return &RegexRule{RuleMeta: meta, Patterns: patterns}, nil
	case TypeKeyword:
		return NewKeywordRule(meta, raw.Keywords), nil
	default:
		return nil, errorf("invalid rule type: %s", raw.Type)
	}
}

func compilePatterns(raw []rawPattern, ruleCaseInsensitive bool) ([]Pattern, error) {
	patterns := make([]Pattern, 0, len(raw))
	for _, entry := range raw {
		p, err := CompilePattern(entry.Pattern, ruleCaseInsensitive || entry.CaseInsensitive)
		if err != nil {
			return nil, &Error{Message: "invalid pattern", Cause: err}
		}
		patterns = append(patterns, p)
	}
	return patterns, nil
}

// dictionaryEntries reads the dictionary mapping in document order
func dictionaryEntries(node *yaml.Node) ([]DictionaryEntry, error) {
	switch node.Kind {
	case 0:
		return nil, nil
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			return nil, nil
		}
	case yaml.MappingNode:
		entries := make([]DictionaryEntry, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, value := node.Content[i], node.Content[i+1]
			if key.Kind != yaml.ScalarNode || value.Kind != yaml.ScalarNode {
				return nil, errorf("dictionary entries must map strings to strings")
			}
			replacement := value.Value
			if value.Tag == "!!null" {
				replacement = ""
			}
			entries = append(entries, DictionaryEntry{Term: key.Value, Replacement: replacement})
		}
		return entries, nil
	}
	return nil, errorf("dictionary must be a mapping")
}

func checkKeys(node *yaml.Node, allowed map[string]bool, context string) error {
	var unknown []string
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		if !allowed[key] {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return errorf("unknown keys in %s: [%s]", context, strings.Join(unknown, ", "))
	}
	return nil
}

// List returns the playbook files in dir, sorted by name. A missing
// directory yields an empty list.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list playbooks: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// Find resolves ref to a playbook. ref may be a file path, a file name in
// dir with or without extension, or the name declared inside a playbook in dir.
func Find(dir, ref string) (*Playbook, error) {
	if ref == "" {
		return nil, errorf("no playbook selected")
	}

	candidates := []string{ref}
	if !filepath.IsAbs(ref) && !strings.ContainsRune(ref, filepath.Separator) {
		candidates = append(candidates,
			filepath.Join(dir, ref),
			filepath.Join(dir, ref+".yaml"),
			filepath.Join(dir, ref+".yml"),
		)
	}
	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return Load(candidate)
		}
	}

	files, err := List(dir)
	if err != nil {
		return nil, err
	}
	for _, file := range files {
		pb, err := Load(file)
		if err != nil {
			continue
		}
		if pb.Name == ref {
			return pb, nil
		}
	}
	return nil, errorf("playbook %q not found in %s", ref, dir)
}
