// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package platform

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"
)

// Windows error constants
const (
	ERROR_ACCESS_DENIED      = syscall.Errno(5)
	ERROR_SHARING_VIOLATION  = syscall.Errno(32)
	ERROR_LOCK_VIOLATION     = syscall.Errno(33)
	ERROR_PRIVILEGE_NOT_HELD = syscall.Errno(1314)
)

// FileError represents a file operation error with a user-facing hint
type FileError struct {
	OriginalError error
	Path          string
	Operation     string
	Suggestion    string
}

func (fe *FileError) Error() string {
	if fe.Suggestion != "" {
		return fmt.Sprintf("%s %s: %s. %s", fe.Operation, fe.Path, fe.OriginalError.Error(), fe.Suggestion)
	}
	return fmt.Sprintf("%s %s: %s", fe.Operation, fe.Path, fe.OriginalError.Error())
}

func (fe *FileError) Unwrap() error {
	return fe.OriginalError
}

// WrapFileError adds the path, the operation and, where one applies, a hint
func WrapFileError(err error, filePath string, operation string) error {
	if err == nil {
		return nil
	}

	fe := &FileError{OriginalError: err, Path: filePath, Operation: operation}
	switch {
	case IsLockedFileError(err):
		fe.Suggestion = "The file is being used by another process. Close any applications that might be using it and try again."
	case IsPermissionError(err):
		fe.Suggestion = "Check that you have read and write access to the file and its directory."
	}
	return fe
}

// IsLockedFileError reports errors caused by another process holding the
// file open, such as a sync client or an editor still writing it
func IsLockedFileError(err error) bool {
	if err == nil {
		return false
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		if IsWindows() {
			switch errno {
			case ERROR_SHARING_VIOLATION, ERROR_LOCK_VIOLATION:
				return true
			}
		} else {
			switch errno {
			case syscall.EBUSY, syscall.ETXTBSY, syscall.EAGAIN:
				return true
			}
		}
	}

	errMsg := strings.ToLower(err.Error())
	return strings.Contains(errMsg, "being used by another process") ||
		strings.Contains(errMsg, "resource busy")
}

// IsPermissionError reports access denied errors on every platform
func IsPermissionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrPermission) {
		return true
	}

	var errno syscall.Errno
	if IsWindows() && errors.As(err, &errno) {
		switch errno {
		case ERROR_ACCESS_DENIED, ERROR_PRIVILEGE_NOT_HELD:
			return true
		}
	}

	errMsg := strings.ToLower(err.Error())
	return strings.Contains(errMsg, "access denied") ||
		strings.Contains(errMsg, "access is denied") ||
		strings.Contains(errMsg, "permission denied")
}
