// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package hotfolder

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

const (
	// ProcessingPrefix marks a file the hot folder has claimed
	ProcessingPrefix = ".processing_"

	DefaultMaxConcurrency = 1
	DefaultStableFileWait = 1500 * time.Millisecond
	DefaultPollInterval   = time.Second
)

// Config configures a hot folder
type Config struct {
	Enabled      bool   `yaml:"enabled"`
	InputDir     string `yaml:"input_dir"`
	OutputDir    string `yaml:"output_dir"`
	ErrorDir     string `yaml:"error_dir"`
	ProcessedDir string `yaml:"processed_dir"`
	// Playbook is a playbook file path or a name resolved in the playbooks directory
	Playbook       string        `yaml:"playbook"`
	FileTypes      []string      `yaml:"file_types"`
	MaxConcurrency int           `yaml:"max_concurrency"`
	StableFileWait time.Duration `yaml:"stable_file_wait"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	IgnorePatterns []string      `yaml:"ignore_patterns"`
}

// DefaultConfig returns a disabled hot folder with the standard settings
func DefaultConfig() Config {
	return Config{
		FileTypes:      []string{"docx", "txt"},
		MaxConcurrency: DefaultMaxConcurrency,
		StableFileWait: DefaultStableFileWait,
		PollInterval:   DefaultPollInterval,
		IgnorePatterns: []string{"~$*", "*.tmp", ".DS_Store"},
	}
}

// WithDefaults fills unset fields. Processed and failed files go to
// subdirectories of the input directory unless configured otherwise, so a
// moved file is never picked up again.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if len(c.FileTypes) == 0 {
		c.FileTypes = d.FileTypes
	}
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = d.MaxConcurrency
	}
	if c.StableFileWait < 0 {
		c.StableFileWait = 0
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.IgnorePatterns == nil {
		c.IgnorePatterns = d.IgnorePatterns
	}
	if c.InputDir != "" {
		if c.ProcessedDir == "" {
			c.ProcessedDir = filepath.Join(c.InputDir, "processed")
		}
		if c.ErrorDir == "" {
			c.ErrorDir = filepath.Join(c.InputDir, "error")
		}
	}
	return c
}

// Validate checks that an enabled hot folder can run
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.InputDir == "" {
		return fmt.Errorf("hotfolder: input_dir is required")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("hotfolder: output_dir is required")
	}
	if filepath.Clean(c.InputDir) == filepath.Clean(c.OutputDir) {
		return fmt.Errorf("hotfolder: output_dir must differ from input_dir")
	}
	for _, pattern := range c.IgnorePatterns {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("hotfolder: invalid ignore pattern %q", pattern)
		}
	}
	return nil
}

// IsIgnored reports whether a file name matches one of the ignore patterns
func (c Config) IsIgnored(name string) bool {
	for _, pattern := range c.IgnorePatterns {
		if ok, _ := doublestar.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

// accepts reports whether name has one of the configured file types
func (c Config) accepts(name string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	if ext == "" {
		return false
	}
	for _, ft := range c.FileTypes {
		if strings.EqualFold(strings.TrimPrefix(ft, "."), ext) {
			return true
		}
	}
	return false
}
