// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package paths

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataDirOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(DataDirEnv, dir)

	assert.Equal(t, dir, GetDataDir())
	assert.Equal(t, filepath.Join(dir, "playbooks"), GetPlaybooksDir())
	assert.Equal(t, filepath.Join(dir, "temp"), GetTempDir())
	assert.Equal(t, filepath.Join(dir, "audit.db"), GetAuditDBPath())
	assert.Equal(t, filepath.Join(dir, "config.yaml"), GetConfigFile())
}

func TestDataDirDefault(t *testing.T) {
	t.Setenv(DataDirEnv, "")
	assert.NotEmpty(t, GetDataDir())
	assert.Equal(t, filepath.Join(GetDataDir(), "playbooks"), GetPlaybooksDir())
}

func TestEnsureDataDirs(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	t.Setenv(DataDirEnv, dir)

	require.NoError(t, EnsureDataDirs())
	for _, d := range []string{dir, GetPlaybooksDir(), GetTempDir()} {
		info, err := os.Stat(d)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestResolvePath(t *testing.T) {
	resolved, err := ResolvePath("")
	require.NoError(t, err)
	assert.Empty(t, resolved)

	resolved, err = ResolvePath("a/../b")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(resolved))
	assert.Equal(t, "b", filepath.Base(resolved))

	_, err = ResolvePath("bad\x00name")
	if err != nil {
		var pve *PathValidationError
		assert.ErrorAs(t, err, &pve)
	}
}

func TestValidateWindowsPath(t *testing.T) {
	assert.NoError(t, validateWindowsPath(`C:\docs\in.docx`))
	assert.Error(t, validateWindowsPath(`C:\docs\in?.docx`))
	assert.Error(t, validateWindowsPath(`C:\docs:stream`))
}

func TestValidateUnixPath(t *testing.T) {
	assert.NoError(t, validateUnixPath("/tmp/in.docx"))
	assert.Error(t, validateUnixPath("/tmp/in\x00.docx"))
}
