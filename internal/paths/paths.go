// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package paths resolves the per-user locations blur reads and writes.
// Everything lives under one data directory which BLUR_DATA_DIR overrides.
package paths

import (
	"fmt"
	"os"
	"path/filepath"

	"blur/internal/platform"
)

// DataDirEnv overrides the data directory on every platform
const DataDirEnv = "BLUR_DATA_DIR"

// GetDataDir returns the blur data directory
func GetDataDir() string {
	// Check for explicit override first (works on all platforms)
	if dir := os.Getenv(DataDirEnv); dir != "" {
		return dir
	}

	return platform.GetPlatform().GetDataDir()
}

// GetPlaybooksDir returns the directory playbooks are listed from
func GetPlaybooksDir() string {
	return filepath.Join(GetDataDir(), "playbooks")
}

// GetTempDir returns the scratch directory under the data directory
func GetTempDir() string {
	return filepath.Join(GetDataDir(), "temp")
}

// GetAuditDBPath returns the path of the audit database
func GetAuditDBPath() string {
	return filepath.Join(GetDataDir(), "audit.db")
}

// GetConfigFile returns the path to the main config file
func GetConfigFile() string {
	return filepath.Join(GetDataDir(), "config.yaml")
}

// EnsureDataDirs creates the data, playbooks and temp directories with
// owner-only permissions
func EnsureDataDirs() error {
	for _, dir := range []string{GetDataDir(), GetPlaybooksDir(), GetTempDir()} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// ResolvePath returns the absolute, cleaned form of path. An empty path
// stays empty.
func ResolvePath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if err := ValidatePath(path); err != nil {
		return "", err
	}
	return filepath.Abs(filepath.Clean(path))
}

// ValidatePath validates a path for the current platform
func ValidatePath(path string) error {
	if path == "" {
		return nil // Empty path is valid
	}

	if platform.IsWindows() {
		return validateWindowsPath(path)
	}

	return validateUnixPath(path)
}

// validateWindowsPath validates a Windows path
func validateWindowsPath(path string) error {
	invalidChars := []rune{'<', '>', '"', '|', '?', '*'}
	for i, char := range path {
		// a colon is only valid as part of a drive letter (C:)
		if char == ':' && i != 1 {
			return &PathValidationError{Path: path, Reason: "contains invalid character: :"}
		}
		for _, invalid := range invalidChars {
			if char == invalid {
				return &PathValidationError{
					Path:   path,
					Reason: "contains invalid character: " + string(char),
				}
			}
		}
	}

	if len(path) > 32767 {
		return &PathValidationError{
			Path:   path,
			Reason: "path exceeds maximum length of 32,767 characters",
		}
	}

	return nil
}

// validateUnixPath validates a Unix path
func validateUnixPath(path string) error {
	for _, char := range path {
		if char == 0 {
			return &PathValidationError{
				Path:   path,
				Reason: "contains null byte",
			}
		}
	}

	return nil
}

// PathValidationError represents a path validation error
type PathValidationError struct {
	Path   string
	Reason string
}

func (e *PathValidationError) Error() string {
	return "invalid path '" + e.Path + "': " + e.Reason
}
