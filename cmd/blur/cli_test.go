// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blur/internal/config"
	"blur/internal/paths"
)

const testPlaybook = `
name: ssn
version: "2"
redaction_mode: SAME_LENGTH_MASK
rules:
  - id: ssn
    type: regex_patterns
    patterns:
      - pattern: '\d{3}-\d{2}-\d{4}'
  - id: codename
    type: keyword_list
    keywords: [Bluebird]
`

type cliEnv struct {
	work    string
	dataDir string
}

func setupCLI(t *testing.T) *cliEnv {
	t.Helper()
	env := &cliEnv{work: t.TempDir(), dataDir: t.TempDir()}
	t.Setenv(paths.DataDirEnv, env.dataDir)
	t.Setenv(config.ConfigEnv, "")
	t.Chdir(env.work)

	dir := filepath.Join(env.dataDir, "playbooks")
	require.NoError(t, os.MkdirAll(dir, 0700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ssn.yaml"), []byte(testPlaybook), 0600))
	return env
}

func (e *cliEnv) write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(e.work, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0700))
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestVersionCommand(t *testing.T) {
	setupCLI(t)

	out, _, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "blur ")

	out, _, err = runCLI(t, "version", "--json")
	require.NoError(t, err)
	var info map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.NotEmpty(t, info["version"])
}

func TestRedactCommand(t *testing.T) {
	env := setupCLI(t)
	env.write(t, "notes.txt", "SSN 123-45-6789 for Bluebird\n")

	out, _, err := runCLI(t, "redact", "--playbook", "ssn", "--output", "out", "notes.txt")
	require.NoError(t, err)
	assert.Contains(t, out, "notes.txt")
	assert.Contains(t, out, "Summary:")
	assert.Contains(t, out, "2 matches")

	data, err := os.ReadFile(filepath.Join(env.work, "out", "notes_blurred.txt"))
	require.NoError(t, err)
	assert.Equal(t, "SSN *********** for ********\n", string(data))

	// the run is recorded in the default audit database
	assert.FileExists(t, filepath.Join(env.dataDir, "audit.db"))
	out, _, err = runCLI(t, "audit", "--json")
	require.NoError(t, err)
	var records []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "notes.txt", records[0]["input_filename"])
	assert.Equal(t, "ssn", records[0]["playbook_name"])
	assert.EqualValues(t, 2, records[0]["total_matches"])
}

func TestRedactCommand_DryRunAndNoAudit(t *testing.T) {
	env := setupCLI(t)
	env.write(t, "notes.txt", "SSN 123-45-6789\n")

	out, _, err := runCLI(t, "redact", "-p", "ssn", "-o", "out", "--dry-run", "--no-audit", "notes.txt")
	require.NoError(t, err)
	assert.Contains(t, out, "1 matches (dry run)")
	assert.Contains(t, out, "nothing written")
	assert.NoFileExists(t, filepath.Join(env.work, "out", "notes_blurred.txt"))
	assert.NoFileExists(t, filepath.Join(env.dataDir, "audit.db"))
}

func TestRedactCommand_Glob(t *testing.T) {
	env := setupCLI(t)
	env.write(t, "inbox/a.txt", "123-45-6789")
	env.write(t, "inbox/nested/b.txt", "987-65-4321")

	_, _, err := runCLI(t, "redact", "-p", "ssn", "-o", "out", "--no-audit", "inbox/**/*.txt")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(env.work, "out", "a_blurred.txt"))
	assert.FileExists(t, filepath.Join(env.work, "out", "b_blurred.txt"))
}

func TestRedactCommand_Failures(t *testing.T) {
	env := setupCLI(t)
	env.write(t, "good.txt", "123-45-6789")
	env.write(t, "fake.docx", "not a zip")

	out, _, err := runCLI(t, "redact", "-p", "ssn", "-o", "out", "--no-audit", "good.txt", "fake.docx")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 documents failed")
	assert.Contains(t, out, "invalid_magic")
	assert.FileExists(t, filepath.Join(env.work, "out", "good_blurred.txt"))

	_, _, err = runCLI(t, "redact", "-p", "missing", "good.txt")
	assert.Error(t, err)

	_, _, err = runCLI(t, "redact", "good.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no playbook selected")

	_, _, err = runCLI(t, "redact", "-p", "ssn", "nothing/*.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no files match")
}

func TestRedactCommand_ConfigDefaults(t *testing.T) {
	env := setupCLI(t)
	env.write(t, "notes.txt", "123-45-6789")
	env.write(t, "blur.yaml", "defaults:\n  playbook: ssn\n  output_dir: from-config\naudit:\n  enabled: false\n")

	_, _, err := runCLI(t, "redact", "notes.txt")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(env.work, "from-config", "notes_blurred.txt"))
	assert.NoFileExists(t, filepath.Join(env.dataDir, "audit.db"))
}

func TestValidateCommand(t *testing.T) {
	env := setupCLI(t)
	env.write(t, "ok.txt", "hello")
	env.write(t, "bad.docx", "hello")

	out, _, err := runCLI(t, "validate", "ok.txt")
	require.NoError(t, err)
	assert.Contains(t, out, "ok.txt (txt, 5 bytes)")

	out, _, err = runCLI(t, "validate", "--json", "ok.txt", "bad.docx")
	require.Error(t, err)
	var reports []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &reports))
	require.Len(t, reports, 2)
	assert.Equal(t, true, reports[0]["valid"])
	assert.Equal(t, false, reports[1]["valid"])
	assert.Equal(t, "invalid_magic", reports[1]["error"])
}

func TestPlaybooksCommands(t *testing.T) {
	env := setupCLI(t)
	require.NoError(t, os.WriteFile(filepath.Join(env.dataDir, "playbooks", "broken.yaml"), []byte("name: [\n"), 0600))

	out, _, err := runCLI(t, "playbooks", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "ssn.yaml")
	assert.Contains(t, out, "SAME_LENGTH_MASK")
	assert.Contains(t, out, "broken.yaml")
	assert.Contains(t, out, "(invalid)")

	out, _, err = runCLI(t, "playbooks", "show", "ssn")
	require.NoError(t, err)
	assert.Contains(t, out, "ssn@2")
	assert.Contains(t, out, "regex_patterns")
	assert.Contains(t, out, "codename")

	_, _, err = runCLI(t, "playbooks", "show", "nope")
	assert.Error(t, err)
}

func TestPlaybooksList_Empty(t *testing.T) {
	env := setupCLI(t)
	require.NoError(t, os.RemoveAll(filepath.Join(env.dataDir, "playbooks")))

	out, _, err := runCLI(t, "playbooks", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No playbooks found")
}

func TestAuditCommand_Empty(t *testing.T) {
	setupCLI(t)

	out, _, err := runCLI(t, "audit")
	require.NoError(t, err)
	assert.Contains(t, out, "No audit entries")
}

func TestWatchCommand_Once(t *testing.T) {
	env := setupCLI(t)
	env.write(t, "drop/client.txt", "SSN 123-45-6789")

	out, _, err := runCLI(t, "watch", "--once", "-i", "drop", "-o", "done", "-p", "ssn")
	require.NoError(t, err)
	assert.Contains(t, out, "1 processed")

	data, err := os.ReadFile(filepath.Join(env.work, "done", "client_blurred.txt"))
	require.NoError(t, err)
	assert.Equal(t, "SSN ***********", string(data))
	assert.FileExists(t, filepath.Join(env.work, "drop", "processed", "client.txt"))
	assert.NoFileExists(t, filepath.Join(env.work, "drop", "client.txt"))
}

func TestWatchCommand_Errors(t *testing.T) {
	env := setupCLI(t)
	require.NoError(t, os.MkdirAll(filepath.Join(env.work, "drop"), 0700))

	_, _, err := runCLI(t, "watch", "--once", "-p", "ssn")
	assert.Error(t, err, "input and output directories are required")

	_, _, err = runCLI(t, "watch", "--once", "-i", "drop", "-o", "done", "-p", "missing")
	assert.Error(t, err)
}

func TestExpandInputs(t *testing.T) {
	env := setupCLI(t)
	env.write(t, "a.txt", "")
	env.write(t, "b.txt", "")

	files, err := expandInputs([]string{"b.txt", "*.txt", "plain.docx"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b.txt", "a.txt", "plain.docx"}, files)

	_, err = expandInputs([]string{"[.txt"})
	assert.Error(t, err)
}

func TestConfigFlagErrors(t *testing.T) {
	setupCLI(t)

	_, _, err := runCLI(t, "--config", "does-not-exist.yaml", "version")
	assert.Error(t, err)

	_, _, err = runCLI(t, "--log-level", "loud", "version")
	assert.Error(t, err)
}
