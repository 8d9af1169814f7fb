// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package validation rejects inputs that are missing, oversized or not the
// container they claim to be, before any document processing starts.
package validation

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrorCode identifies why an input was rejected
type ErrorCode string

const (
	CodeFileNotFound         ErrorCode = "file_not_found"
	CodeFileTooLarge         ErrorCode = "file_too_large"
	CodeInvalidMagic         ErrorCode = "invalid_magic"
	CodeInvalidZip           ErrorCode = "invalid_zip"
	CodeTooManyEntries       ErrorCode = "too_many_entries"
	CodeUncompressedLimit    ErrorCode = "uncompressed_limit"
	CodeMissingRequiredParts ErrorCode = "missing_required_parts"
	CodeReadError            ErrorCode = "read_error"
	CodeUnsupportedType      ErrorCode = "unsupported_type"
)

const (
	KindDocx = "docx"
	KindTxt  = "txt"
)

// Default limits
const (
	DefaultMaxInputBytes        = 20 * 1024 * 1024
	DefaultMaxUncompressedBytes = 200 * 1024 * 1024
	DefaultMaxEntries           = 5000
)

// txtProbeBytes is how much of a text file is read to prove it is readable
const txtProbeBytes = 4096

var zipMagic = []byte("PK")

// RequiredDocxParts must be present in every accepted .docx
var RequiredDocxParts = []string{"[Content_Types].xml", "word/document.xml"}

// Limits bounds accepted inputs
type Limits struct {
	MaxInputBytes        int64 `yaml:"max_input_bytes"`
	MaxUncompressedBytes int64 `yaml:"max_uncompressed_bytes"`
	MaxEntries           int   `yaml:"max_entries"`
}

// DefaultLimits returns the standard limits
func DefaultLimits() Limits {
	return Limits{
		MaxInputBytes:        DefaultMaxInputBytes,
		MaxUncompressedBytes: DefaultMaxUncompressedBytes,
		MaxEntries:           DefaultMaxEntries,
	}
}

func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.MaxInputBytes <= 0 {
		l.MaxInputBytes = d.MaxInputBytes
	}
	if l.MaxUncompressedBytes <= 0 {
		l.MaxUncompressedBytes = d.MaxUncompressedBytes
	}
	if l.MaxEntries <= 0 {
		l.MaxEntries = d.MaxEntries
	}
	return l
}

// Result is the outcome of Validate. Error is empty when Valid is set.
type Result struct {
	Valid     bool      `json:"valid"`
	Error     ErrorCode `json:"error,omitempty"`
	FileKind  string    `json:"file_kind,omitempty"`
	SizeBytes int64     `json:"size_bytes,omitempty"`
}

// Err returns nil for a valid result and an *Error otherwise
func (r Result) Err(path string) error {
	if r.Valid {
		return nil
	}
	return &Error{Path: path, Code: r.Error}
}

// Error reports a rejected input
type Error struct {
	Path string
	Code ErrorCode
}

func (e *Error) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Path, e.Code)
}

// KindOf returns the document kind for path's extension, or "" when unsupported
func KindOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".docx":
		return KindDocx
	case ".txt":
		return KindTxt
	default:
		return ""
	}
}

// Validate checks path against limits. Zero limit fields use the defaults.
func Validate(path string, limits Limits) Result {
	limits = limits.withDefaults()

	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return Result{Error: CodeFileNotFound}
	}

	kind := KindOf(path)
	if kind == "" {
		return Result{Error: CodeUnsupportedType, SizeBytes: info.Size()}
	}

	res := Result{FileKind: kind, SizeBytes: info.Size()}
	if info.Size() > limits.MaxInputBytes {
		res.Error = CodeFileTooLarge
		return res
	}

	switch kind {
	case KindDocx:
		res.Error = validateDocx(path, info.Size(), limits)
	case KindTxt:
		res.Error = validateTxt(path)
	}
	res.Valid = res.Error == ""
	return res
}

func validateDocx(path string, size int64, limits Limits) ErrorCode {
	f, err := os.Open(path)
	if err != nil {
		return CodeReadError
	}
	defer f.Close()

	magic := make([]byte, len(zipMagic))
	if _, err := io.ReadFull(f, magic); err != nil || !bytes.Equal(magic, zipMagic) {
		return CodeInvalidMagic
	}

	archive, err := zip.NewReader(f, size)
	if err != nil {
		return CodeInvalidZip
	}

	if len(archive.File) > limits.MaxEntries {
		return CodeTooManyEntries
	}

	var total uint64
	names := make(map[string]bool, len(archive.File))
	for _, file := range archive.File {
		total += file.UncompressedSize64
		names[file.Name] = true
	}
	if total > uint64(limits.MaxUncompressedBytes) {
		return CodeUncompressedLimit
	}

	for _, part := range RequiredDocxParts {
		if !names[part] {
			return CodeMissingRequiredParts
		}
	}
	return ""
}

func validateTxt(path string) ErrorCode {
	f, err := os.Open(path)
	if err != nil {
		return CodeReadError
	}
	defer f.Close()

	buf := make([]byte, txtProbeBytes)
	if _, err := f.Read(buf); err != nil && err != io.EOF {
		return CodeReadError
	}
	return ""
}
