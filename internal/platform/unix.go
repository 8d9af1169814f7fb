// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package platform

import (
	"os"
	"path/filepath"
)

// UnixPlatform implements Platform for Linux, macOS and the BSDs
type UnixPlatform struct {
	darwin bool
}

// GetDataDir follows the XDG base directory layout, or
// ~/Library/Application Support on macOS
func (u *UnixPlatform) GetDataDir() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, AppName)
	}

	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "." + AppName
	}
	if u.darwin {
		return filepath.Join(home, "Library", "Application Support", AppName)
	}
	return filepath.Join(home, ".local", "share", AppName)
}

// GetTempDir returns the Unix temporary directory
func (u *UnixPlatform) GetTempDir() string {
	if tmpDir := os.Getenv("TMPDIR"); tmpDir != "" {
		return tmpDir
	}
	return "/tmp"
}

// SupportsCaseSensitivePaths reports false on macOS, whose default volumes
// are case-insensitive
func (u *UnixPlatform) SupportsCaseSensitivePaths() bool {
	return !u.darwin
}
