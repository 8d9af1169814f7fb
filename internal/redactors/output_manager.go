// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package redactors

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"blur/internal/observability"
)

const (
	// OutputSuffix is appended to the stem of every written document
	OutputSuffix = "_blurred"

	maxFilenameLength = 255
	fallbackFilename  = "file"
)

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// OutputManager owns every write of a processed document
type OutputManager struct {
	// observer handles observability and metrics
	observer *observability.StandardObserver
}

// NewOutputManager creates a new OutputManager
func NewOutputManager(observer *observability.StandardObserver) *OutputManager {
	if observer == nil {
		observer = observability.NopObserver()
	}
	return &OutputManager{observer: observer}
}

// SanitizeFilename trims name and replaces each run of characters outside
// [A-Za-z0-9._-] with a single underscore. The result is never empty and at
// most 255 bytes long.
func SanitizeFilename(name string) string {
	sanitized := unsafeFilenameChars.ReplaceAllString(strings.TrimSpace(name), "_")
	if sanitized == "" {
		sanitized = fallbackFilename
	}
	if len(sanitized) > maxFilenameLength {
		sanitized = sanitized[:maxFilenameLength]
	}
	return sanitized
}

// OutputName returns the file name a processed copy of inputPath is written under
func OutputName(inputPath string) string {
	base := filepath.Base(inputPath)
	ext := fileSuffix(base)
	return SanitizeFilename(strings.TrimSuffix(base, ext)) + OutputSuffix + ext
}

// fileSuffix returns the extension of name including the dot. A leading dot
// does not start an extension and neither does a trailing one, so ".txt" and
// "notes." have none.
func fileSuffix(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i <= 0 || i == len(name)-1 {
		return ""
	}
	return name[i:]
}

// EnsureDirectoryExists creates dir with owner-only permissions if it is missing
func (om *OutputManager) EnsureDirectoryExists(dir string) error {
	if dir == "" {
		return fmt.Errorf("path cannot be empty")
	}

	if info, err := os.Stat(dir); err == nil {
		if !info.IsDir() {
			return fmt.Errorf("path exists but is not a directory: %s", dir)
		}
		return nil
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// WriteAtomic writes data to path through a temporary file in the same
// directory that is synced and then renamed over path. Readers never see a
// partially written file and the temporary file is removed on any failure.
func (om *OutputManager) WriteAtomic(path string, data []byte) (err error) {
	finishTiming := om.observer.StartTiming("output_manager", "write_atomic", path)
	defer func() {
		finishTiming(err == nil, map[string]interface{}{
			"bytes": len(data),
		})
	}()

	dir := filepath.Dir(path)
	if err = om.EnsureDirectoryExists(dir); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync temporary file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temporary file: %w", err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	return nil
}

// GetComponentName returns the component name for observability
func (om *OutputManager) GetComponentName() string {
	return "output_manager"
}
