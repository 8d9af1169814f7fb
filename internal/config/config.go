// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"blur/internal/hotfolder"
	"blur/internal/paths"
	"blur/internal/redactors"
	"blur/internal/validation"
)

// ConfigEnv names an explicit config file and takes precedence over the search
const ConfigEnv = "BLUR_CONFIG"

// Config represents the blur configuration file
type Config struct {
	// Default settings for the command line
	Defaults struct {
		Playbook  string `yaml:"playbook"`
		OutputDir string `yaml:"output_dir"`
		DryRun    bool   `yaml:"dry_run"`
		Workers   int    `yaml:"workers"`
		LogLevel  string `yaml:"log_level"`
		LogFormat string `yaml:"log_format"`
		NoColor   bool   `yaml:"no_color"`
	} `yaml:"defaults"`

	// Audit trail settings
	Audit struct {
		Enabled bool `yaml:"enabled"`
		// DBPath defaults to audit.db in the data directory
		DBPath string `yaml:"db_path"`
	} `yaml:"audit"`

	// Validation limits applied before a document is processed
	Validation validation.Limits `yaml:"validation"`

	Hotfolder hotfolder.Config `yaml:"hotfolder"`
}

// LoadConfig loads configuration from a YAML file. An empty path returns
// the defaults.
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	// Set default values
	config.Defaults.OutputDir = "./blurred"
	config.Defaults.Workers = redactors.DefaultWorkers
	config.Defaults.LogLevel = "info"
	config.Defaults.LogFormat = "console"
	config.Audit.Enabled = true
	config.Validation = validation.DefaultLimits()
	config.Hotfolder = hotfolder.DefaultConfig()

	if configPath != "" {
		cleanPath := filepath.Clean(configPath)
		data, err := os.ReadFile(cleanPath)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}

		defaultIgnorePatterns := config.Hotfolder.IgnorePatterns
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}

		// An explicit empty list disables ignore patterns; an absent key
		// keeps the defaults
		if containsField(data, "hotfolder", "ignore_patterns") {
			if config.Hotfolder.IgnorePatterns == nil {
				config.Hotfolder.IgnorePatterns = []string{}
			}
		} else {
			config.Hotfolder.IgnorePatterns = defaultIgnorePatterns
		}
	}

	ApplyPathDefaults(config)

	if err := ValidateConfig(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// LoadConfigOrDefault loads configFile, or the file FindConfigFile locates
// when configFile is empty, and falls back to the defaults on any error
func LoadConfigOrDefault(configFile string) *Config {
	configPath := configFile
	if configPath == "" {
		configPath = FindConfigFile()
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		// Fall back to defaults; callers should not crash on a missing/bad config file.
		cfg, _ = LoadConfig("")
	}
	return cfg
}

// FindConfigFile looks for a config file in the standard locations
func FindConfigFile() string {
	if explicit := os.Getenv(ConfigEnv); explicit != "" {
		return explicit
	}

	// Project-specific config in the current directory
	for _, name := range []string{"blur.yaml", "blur.yml", ".blur.yaml", ".blur.yml"} {
		if fileExists(name) {
			return name
		}
	}

	// Check standard location using platform-aware paths
	if standardConfig := paths.GetConfigFile(); fileExists(standardConfig) {
		return standardConfig
	}

	return ""
}

func fileExists(filename string) bool {
	info, err := os.Stat(filename)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// containsField checks if a nested field exists in the YAML data
func containsField(data []byte, path ...string) bool {
	var yamlData map[string]interface{}
	err := yaml.Unmarshal(data, &yamlData)
	if err != nil {
		return false
	}

	current := yamlData
	for i, key := range path {
		if i == len(path)-1 {
			_, exists := current[key]
			return exists
		}
		if next, ok := current[key].(map[string]interface{}); ok {
			current = next
		} else {
			return false
		}
	}
	return false
}

// ApplyPathDefaults expands environment variables in every configured path
// and fills the audit database location
func ApplyPathDefaults(config *Config) {
	config.Defaults.OutputDir = expandPath(config.Defaults.OutputDir)
	config.Defaults.Playbook = expandPath(config.Defaults.Playbook)

	config.Audit.DBPath = expandPath(config.Audit.DBPath)
	if config.Audit.DBPath == "" {
		config.Audit.DBPath = paths.GetAuditDBPath()
	}

	hf := &config.Hotfolder
	hf.InputDir = expandPath(hf.InputDir)
	hf.OutputDir = expandPath(hf.OutputDir)
	hf.ErrorDir = expandPath(hf.ErrorDir)
	hf.ProcessedDir = expandPath(hf.ProcessedDir)
	hf.Playbook = expandPath(hf.Playbook)
	if hf.Playbook == "" {
		hf.Playbook = config.Defaults.Playbook
	}
}

// expandPath resolves $VAR, ${VAR} and a leading ~ in path
func expandPath(path string) string {
	if path == "" {
		return ""
	}
	expanded := os.ExpandEnv(path)
	if expanded == "~" || (len(expanded) > 1 && expanded[0] == '~' && os.IsPathSeparator(expanded[1])) {
		if home, err := os.UserHomeDir(); err == nil {
			expanded = filepath.Join(home, expanded[1:])
		}
	}
	return filepath.Clean(expanded)
}

// ValidateConfig validates the configuration
func ValidateConfig(config *Config) error {
	switch config.Defaults.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q (want debug, info, warn or error)", config.Defaults.LogLevel)
	}

	switch config.Defaults.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log_format %q (want json or console)", config.Defaults.LogFormat)
	}

	if config.Defaults.Workers < 0 {
		return fmt.Errorf("workers must not be negative")
	}

	if config.Validation.MaxInputBytes < 0 || config.Validation.MaxUncompressedBytes < 0 || config.Validation.MaxEntries < 0 {
		return fmt.Errorf("validation limits must not be negative")
	}

	for name, path := range map[string]string{
		"defaults.output_dir":     config.Defaults.OutputDir,
		"audit.db_path":           config.Audit.DBPath,
		"hotfolder.input_dir":     config.Hotfolder.InputDir,
		"hotfolder.output_dir":    config.Hotfolder.OutputDir,
		"hotfolder.error_dir":     config.Hotfolder.ErrorDir,
		"hotfolder.processed_dir": config.Hotfolder.ProcessedDir,
	} {
		if err := paths.ValidatePath(path); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	return config.Hotfolder.Validate()
}
