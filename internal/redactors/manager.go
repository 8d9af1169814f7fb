// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package redactors

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"blur/internal/observability"
	"blur/internal/playbook"
	"blur/internal/rules"
)

// DefaultWorkers bounds ProcessBatch when no worker count is given
const DefaultWorkers = 4

// RedactionManager routes documents to the redactor registered for their extension
type RedactionManager struct {
	// redactors maps file extensions to their corresponding redactors
	redactors map[string]Redactor

	// observer handles observability and metrics
	observer *observability.StandardObserver

	// mutex protects concurrent access to redactors map
	mu sync.RWMutex

	// stats tracks redaction statistics
	stats *RedactionStats
}

// RedactionStats tracks statistics for redaction operations
type RedactionStats struct {
	mu sync.RWMutex

	TotalFiles      int64
	SuccessfulFiles int64
	FailedFiles     int64
	TotalMatches    int64
	ProcessingTime  time.Duration
	StartTime       time.Time
}

// StatsSnapshot is a copy of RedactionStats safe to read without locking
type StatsSnapshot struct {
	TotalFiles      int64
	SuccessfulFiles int64
	FailedFiles     int64
	TotalMatches    int64
	ProcessingTime  time.Duration
	StartTime       time.Time
}

// BatchRequest describes a ProcessBatch call
type BatchRequest struct {
	Files     []string
	OutputDir string
	Playbook  *playbook.Playbook
	DryRun    bool
	// Workers bounds concurrent documents; <= 0 means DefaultWorkers
	Workers int
}

// FileResult is the outcome for one file of a batch
type FileResult struct {
	InputPath    string
	Result       *Result
	Error        error
	RedactorUsed string
}

// BatchResult contains results in the order of BatchRequest.Files
type BatchResult struct {
	Results             []FileResult
	Report              rules.Report
	SuccessfulFiles     int
	FailedFiles         int
	TotalProcessingTime time.Duration
	Errors              *RedactionErrorCollection
}

// NewRedactionManager creates a new RedactionManager
func NewRedactionManager(observer *observability.StandardObserver) *RedactionManager {
	if observer == nil {
		observer = observability.NopObserver()
	}

	return &RedactionManager{
		redactors: make(map[string]Redactor),
		observer:  observer,
		stats:     &RedactionStats{StartTime: time.Now()},
	}
}

// RegisterRedactor registers a redactor for its supported file types
func (rm *RedactionManager) RegisterRedactor(redactor Redactor) error {
	if redactor == nil {
		return fmt.Errorf("redactor cannot be nil")
	}

	supportedTypes := redactor.GetSupportedTypes()
	if len(supportedTypes) == 0 {
		return fmt.Errorf("redactor must support at least one file type")
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	for _, fileType := range supportedTypes {
		rm.redactors[normalizeExtension(fileType)] = redactor
	}

	rm.logEvent("redactor_registered", true, map[string]interface{}{
		"redactor_name":   redactor.GetName(),
		"supported_types": supportedTypes,
	})
	return nil
}

// GetRedactorForFile returns the redactor registered for filePath's extension
func (rm *RedactionManager) GetRedactorForFile(filePath string) (Redactor, error) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	ext := strings.ToLower(filepath.Ext(filePath))
	if ext == "" {
		return nil, fmt.Errorf("file has no extension: %s", filePath)
	}

	redactor, exists := rm.redactors[ext]
	if !exists {
		return nil, fmt.Errorf("no redactor registered for file type: %s", ext)
	}
	return redactor, nil
}

// SupportedTypes returns every registered extension
func (rm *RedactionManager) SupportedTypes() []string {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	types := make([]string, 0, len(rm.redactors))
	for ext := range rm.redactors {
		types = append(types, ext)
	}
	return types
}

// Process handles a single document
func (rm *RedactionManager) Process(inputPath, outputDir string, pb *playbook.Playbook, dryRun bool) (*Result, error) {
	return rm.ProcessAs(inputPath, filepath.Base(inputPath), outputDir, pb, dryRun)
}

// ProcessAs handles a document stored under a temporary name. Routing and
// output naming use originalName.
func (rm *RedactionManager) ProcessAs(inputPath, originalName, outputDir string, pb *playbook.Playbook, dryRun bool) (*Result, error) {
	redactor, err := rm.GetRedactorForFile(originalName)
	if err != nil {
		rm.recordFailure()
		return nil, NewRedactionError(ErrorValidation, "unsupported document", inputPath, rm.GetComponentName(), err)
	}

	result, err := redactor.ProcessAs(inputPath, originalName, outputDir, pb, dryRun)
	rm.recordResult(result, err)
	return result, err
}

// ProcessBatch processes independent documents concurrently with at most
// req.Workers in flight. A failing document never stops the others; its
// error is reported in its FileResult. Cancelling ctx skips documents that
// have not started yet.
func (rm *RedactionManager) ProcessBatch(ctx context.Context, req BatchRequest) (*BatchResult, error) {
	if len(req.Files) == 0 {
		return nil, fmt.Errorf("batch request is empty")
	}

	workers := req.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	startTime := time.Now()
	rm.logEvent("batch_started", true, map[string]interface{}{
		"total_files": len(req.Files),
		"workers":     workers,
		"dry_run":     req.DryRun,
	})

	results := make([]FileResult, len(req.Files))
	collisions := rm.outputCollisions(req.Files)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, inputPath := range req.Files {
		if err, ok := collisions[i]; ok {
			rm.recordFailure()
			results[i] = FileResult{InputPath: inputPath, RedactorUsed: "none", Error: err}
			continue
		}
		g.Go(func() error {
			results[i] = rm.processInBatch(gctx, inputPath, req)
			return nil
		})
	}
	_ = g.Wait()

	batch := &BatchResult{
		Results:             results,
		Report:              rules.NewReport(),
		TotalProcessingTime: time.Since(startTime),
		Errors:              NewRedactionErrorCollection(),
	}
	for _, fr := range results {
		if fr.Result != nil {
			batch.Report = rules.Merge(batch.Report, fr.Result.Report)
		}
		if fr.Error == nil {
			batch.SuccessfulFiles++
			continue
		}
		batch.FailedFiles++
		var rerr *RedactionError
		if errors.As(fr.Error, &rerr) {
			batch.Errors.Add(*rerr)
		} else {
			batch.Errors.AddError(ErrorDocumentProcessing, "processing failed", fr.InputPath, rm.GetComponentName(), fr.Error)
		}
	}

	rm.logEvent("batch_completed", batch.FailedFiles == 0, map[string]interface{}{
		"total_files":      len(req.Files),
		"successful_files": batch.SuccessfulFiles,
		"failed_files":     batch.FailedFiles,
		"total_matches":    batch.Report.TotalMatches,
	})

	return batch, ctx.Err()
}

// outputCollisions finds batch entries whose output name is already claimed
// by an earlier entry. Names are compared case-insensitively so the result
// does not depend on the output filesystem. The first claimant is processed;
// every later one fails.
func (rm *RedactionManager) outputCollisions(files []string) map[int]error {
	claimed := make(map[string]string, len(files))
	collisions := make(map[int]error)
	for i, inputPath := range files {
		key := strings.ToLower(OutputName(inputPath))
		first, ok := claimed[key]
		if !ok {
			claimed[key] = inputPath
			continue
		}
		collisions[i] = NewRedactionError(ErrorValidation, "output name collides with another document in the batch",
			inputPath, rm.GetComponentName(), fmt.Errorf("%s is already written by %s", OutputName(inputPath), first))
	}
	return collisions
}

func (rm *RedactionManager) processInBatch(ctx context.Context, inputPath string, req BatchRequest) FileResult {
	fr := FileResult{InputPath: inputPath, RedactorUsed: "none"}
	if err := ctx.Err(); err != nil {
		fr.Error = err
		return fr
	}

	redactor, err := rm.GetRedactorForFile(inputPath)
	if err != nil {
		rm.recordFailure()
		fr.Error = NewRedactionError(ErrorValidation, "unsupported document", inputPath, rm.GetComponentName(), err)
		return fr
	}

	fr.RedactorUsed = redactor.GetName()
	fr.Result, fr.Error = redactor.Process(inputPath, req.OutputDir, req.Playbook, req.DryRun)
	rm.recordResult(fr.Result, fr.Error)
	return fr
}

// GetStats returns a copy of the current statistics
func (rm *RedactionManager) GetStats() StatsSnapshot {
	rm.stats.mu.RLock()
	defer rm.stats.mu.RUnlock()

	return StatsSnapshot{
		TotalFiles:      rm.stats.TotalFiles,
		SuccessfulFiles: rm.stats.SuccessfulFiles,
		FailedFiles:     rm.stats.FailedFiles,
		TotalMatches:    rm.stats.TotalMatches,
		ProcessingTime:  rm.stats.ProcessingTime,
		StartTime:       rm.stats.StartTime,
	}
}

func (rm *RedactionManager) recordFailure() {
	rm.updateStats(func(stats *RedactionStats) {
		stats.TotalFiles++
		stats.FailedFiles++
	})
}

func (rm *RedactionManager) recordResult(result *Result, err error) {
	rm.updateStats(func(stats *RedactionStats) {
		stats.TotalFiles++
		if err == nil {
			stats.SuccessfulFiles++
		} else {
			stats.FailedFiles++
		}
		if result != nil {
			stats.TotalMatches += int64(result.Report.TotalMatches)
			stats.ProcessingTime += result.ProcessingTime
		}
	})
}

// updateStats safely updates statistics
func (rm *RedactionManager) updateStats(updateFunc func(*RedactionStats)) {
	rm.stats.mu.Lock()
	defer rm.stats.mu.Unlock()
	updateFunc(rm.stats)
}

// logEvent logs an event using the observer
func (rm *RedactionManager) logEvent(operation string, success bool, metadata map[string]interface{}) {
	rm.observer.StartTiming(rm.GetComponentName(), operation, "")(success, metadata)
}

// GetComponentName returns the component name for observability
func (rm *RedactionManager) GetComponentName() string {
	return "redaction_manager"
}

func normalizeExtension(fileType string) string {
	normalized := strings.ToLower(fileType)
	if !strings.HasPrefix(normalized, ".") {
		normalized = "." + normalized
	}
	return normalized
}
