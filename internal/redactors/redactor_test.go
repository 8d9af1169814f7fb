// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package redactors

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blur/internal/audit"
	"blur/internal/playbook"
	"blur/internal/rules"
)

const upperPlaybook = `
name: Upper
version: "3"
rules:
  - id: secret
    type: keyword_list
    action: REPLACE
    keywords: [secret]
`

func testPlaybook(t *testing.T) *playbook.Playbook {
	t.Helper()
	pb, err := playbook.Parse([]byte(upperPlaybook))
	require.NoError(t, err)
	return pb
}

// engineTransform runs the rule engine over the whole input
func engineTransform(data []byte, pb *playbook.Playbook, dryRun bool) ([]byte, rules.Report, error) {
	out, report := rules.Apply(string(data), pb, dryRun)
	if dryRun {
		return nil, report, nil
	}
	return []byte(out), report, nil
}

type failingSink struct{}

func (failingSink) Log(audit.Entry) error { return errors.New("disk full") }

func writeInput(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestProcessor_WritesOutputAndAudits(t *testing.T) {
	sink := &audit.MemorySink{}
	proc := NewProcessor("test", "txt", engineTransform, Options{Audit: sink})
	input := writeInput(t, "my secret.txt", "a secret b")
	outDir := filepath.Join(t.TempDir(), "out")

	result, err := proc.Process(input, outDir, testPlaybook(t), false)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(outDir, "my_secret_blurred.txt"), result.OutputPath)
	assert.Equal(t, "a [BLURRED:secret] b", string(result.Output))
	written, err := os.ReadFile(result.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, result.Output, written)

	assert.Equal(t, sha256Hex([]byte("a secret b")), result.InputSHA256)
	assert.Equal(t, sha256Hex(written), result.OutputSHA256)
	assert.NotEmpty(t, result.ProcessingID)
	assert.Equal(t, 1, result.Report.TotalMatches)

	entries := sink.Entries()
	require.Len(t, entries, 1)
	entry := entries[0]
	assert.Equal(t, result.ProcessingID, entry.ProcessingID)
	assert.Equal(t, "my_secret.txt", entry.InputFilename)
	assert.Equal(t, "txt", entry.FileType)
	assert.Equal(t, "Upper", entry.PlaybookName)
	assert.Equal(t, "3", entry.PlaybookVersion)
	assert.False(t, entry.DryRun)
	assert.Equal(t, 1, entry.TotalMatches)
	assert.Equal(t, map[string]int{"keyword_list": 1}, entry.MatchesByCategory)
	assert.Equal(t, result.InputSHA256, entry.SHA256Input)
	assert.Equal(t, result.OutputSHA256, entry.SHA256Output)
	assert.NotEmpty(t, entry.OSUsername)
}

func TestProcessor_DryRunWritesNothing(t *testing.T) {
	sink := &audit.MemorySink{}
	proc := NewProcessor("test", "txt", engineTransform, Options{Audit: sink})
	input := writeInput(t, "doc.txt", "secret secret")
	outDir := filepath.Join(t.TempDir(), "out")

	result, err := proc.Process(input, outDir, testPlaybook(t), true)
	require.NoError(t, err)

	assert.Empty(t, result.OutputPath)
	assert.Nil(t, result.Output)
	assert.Empty(t, result.OutputSHA256)
	assert.Equal(t, 2, result.Report.TotalMatches)
	assert.NoDirExists(t, outDir)

	entries := sink.Entries()
	require.Len(t, entries, 1)
	assert.True(t, entries[0].DryRun)
	assert.Empty(t, entries[0].SHA256Output)
}

func TestProcessor_Errors(t *testing.T) {
	proc := NewProcessor("test", "txt", engineTransform, Options{})

	_, err := proc.Process(filepath.Join(t.TempDir(), "missing.txt"), t.TempDir(), testPlaybook(t), false)
	var rerr *RedactionError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, ErrorFileSystem, rerr.Type)
	assert.ErrorIs(t, err, os.ErrNotExist)

	broken := NewProcessor("test", "txt", func([]byte, *playbook.Playbook, bool) ([]byte, rules.Report, error) {
		return nil, rules.Report{}, errors.New("corrupt")
	}, Options{})
	_, err = broken.Process(writeInput(t, "x.txt", "x"), t.TempDir(), nil, false)
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, ErrorDocumentProcessing, rerr.Type)
	assert.Contains(t, err.Error(), "corrupt")
}

func TestProcessor_AuditFailureKeepsResult(t *testing.T) {
	proc := NewProcessor("test", "txt", engineTransform, Options{Audit: failingSink{}})
	outDir := t.TempDir()

	result, err := proc.Process(writeInput(t, "doc.txt", "secret"), outDir, testPlaybook(t), false)
	require.NotNil(t, result)
	var rerr *RedactionError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, ErrorAudit, rerr.Type)
	assert.True(t, rerr.Recoverable)
	assert.FileExists(t, result.OutputPath)
}

func TestProcessor_Identity(t *testing.T) {
	proc := NewProcessor("plaintext", "txt", engineTransform, Options{})
	assert.Equal(t, "plaintext", proc.GetName())
	assert.Equal(t, []string{".txt"}, proc.GetSupportedTypes())
	assert.True(t, strings.HasPrefix(proc.GetComponentName(), "plaintext"))

	var _ Redactor = proc
}

func TestRedactionError_Format(t *testing.T) {
	cause := errors.New("boom")
	err := NewRedactionError(ErrorFileSystem, "failed to write", "/x", "office_redactor", cause)

	assert.Equal(t, "[file_system] failed to write (file: /x, component: office_redactor): boom", err.Error())
	assert.Equal(t, cause, errors.Unwrap(err))
	assert.Equal(t, "audit", ErrorAudit.String())
	assert.False(t, NewRedactionError(ErrorConfiguration, "m", "", "c", nil).Recoverable)
}
