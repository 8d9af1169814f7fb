// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package plaintext

import (
	"blur/internal/playbook"
	"blur/internal/redactors"
	"blur/internal/rules"
)

// PlainTextRedactor implements redaction for plain text files
type PlainTextRedactor struct {
	*redactors.Processor
}

// NewPlainTextRedactor creates a new PlainTextRedactor
func NewPlainTextRedactor(opts redactors.Options) *PlainTextRedactor {
	ptr := &PlainTextRedactor{}
	ptr.Processor = redactors.NewProcessor("plaintext", "txt", ptr.Transform, opts)
	return ptr
}

// Transform decodes data, runs the engine once over the whole text and
// returns the result encoded as UTF-8
func (ptr *PlainTextRedactor) Transform(data []byte, pb *playbook.Playbook, dryRun bool) ([]byte, rules.Report, error) {
	text := DecodeText(data)
	redacted, report := rules.Apply(text, pb, dryRun)
	if dryRun {
		return nil, report, nil
	}
	return []byte(redacted), report, nil
}
