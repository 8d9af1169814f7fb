// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package platform

import (
	"runtime"
)

// AppName names the per-user data directory on every platform
const AppName = "blur"

// Platform defines the interface for platform-specific operations
type Platform interface {
	// GetDataDir returns the per-user application data directory
	GetDataDir() string
	GetTempDir() string
	SupportsCaseSensitivePaths() bool
}

// Config holds platform-specific configuration
type Config struct {
	OS                 string `json:"os"`
	Architecture       string `json:"architecture"`
	DataDirectory      string `json:"data_directory"`
	TempDirectory      string `json:"temp_directory"`
	CaseSensitivePaths bool   `json:"case_sensitive_paths"`
}

// GetPlatform returns the appropriate platform implementation for the current OS
func GetPlatform() Platform {
	switch runtime.GOOS {
	case "windows":
		return &WindowsPlatform{}
	case "darwin":
		return &UnixPlatform{darwin: true}
	default:
		return &UnixPlatform{}
	}
}

// GetConfig returns platform configuration for the current system
func GetConfig() *Config {
	platform := GetPlatform()
	return &Config{
		OS:                 runtime.GOOS,
		Architecture:       runtime.GOARCH,
		DataDirectory:      platform.GetDataDir(),
		TempDirectory:      platform.GetTempDir(),
		CaseSensitivePaths: platform.SupportsCaseSensitivePaths(),
	}
}

// IsWindows returns true if running on Windows
func IsWindows() bool {
	return runtime.GOOS == "windows"
}
