// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package audit records one entry per processed document.
package audit

import (
	"os/user"
	"slices"
	"sync"
	"time"
)

// Entry describes one processing call
type Entry struct {
	ProcessingID      string         `json:"processing_id"`
	Timestamp         time.Time      `json:"timestamp_utc"`
	OSUsername        string         `json:"os_username"`
	InputFilename     string         `json:"input_filename"`
	FileType          string         `json:"file_type"`
	PlaybookName      string         `json:"playbook_name"`
	PlaybookVersion   string         `json:"playbook_version"`
	DryRun            bool           `json:"dry_run"`
	TotalMatches      int            `json:"total_matches"`
	MatchesByCategory map[string]int `json:"matches_by_category"`
	SHA256Input       string         `json:"sha256_input"`
	// SHA256Output is empty when no output was produced
	SHA256Output string `json:"sha256_output,omitempty"`
}

// Sink receives audit entries
type Sink interface {
	Log(entry Entry) error
}

// NopSink discards entries
type NopSink struct{}

func (NopSink) Log(Entry) error { return nil }

// MemorySink keeps entries in memory
type MemorySink struct {
	mu      sync.Mutex
	entries []Entry
}

func (m *MemorySink) Log(entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

// Entries returns a copy of everything logged so far
func (m *MemorySink) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.entries)
}

// CurrentUser returns the login name of the process owner, or "unknown"
func CurrentUser() string {
	u, err := user.Current()
	if err != nil || u.Username == "" {
		return "unknown"
	}
	return u.Username
}
