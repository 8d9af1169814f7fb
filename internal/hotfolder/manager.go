// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package hotfolder watches an input directory and redacts every document
// dropped into it.
//
// A file is claimed by renaming it to ".processing_<name>" in place, so
// concurrent scanners never handle the same document twice. After processing
// it is moved to the processed or error directory under its sanitized
// original name.
package hotfolder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"blur/internal/observability"
	"blur/internal/platform"
	"blur/internal/playbook"
	"blur/internal/redactors"
	"blur/internal/resilience"
	"blur/internal/validation"
)

// PlaybookLoader resolves the configured playbook reference
type PlaybookLoader func(ref string) (*playbook.Playbook, error)

// Options carries the collaborators of a Manager
type Options struct {
	Redaction    *redactors.RedactionManager
	LoadPlaybook PlaybookLoader
	Limits       validation.Limits
	Observer     *observability.StandardObserver
	// MoveRetry overrides resilience.FileMoveRetryConfig
	MoveRetry *resilience.RetryConfig
	// Breaker overrides the output circuit breaker settings
	Breaker *resilience.BreakerConfig
}

// Status is a snapshot of the hot folder counters
type Status struct {
	Running       bool
	Paused        bool
	LastProcessed string
	LastError     string
	SuccessCount  int
	FailureCount  int
}

// Manager runs a hot folder
type Manager struct {
	cfg       Config
	redaction *redactors.RedactionManager
	load      PlaybookLoader
	limits    validation.Limits
	observer  *observability.StandardObserver
	logger    *zap.Logger
	moveRetry resilience.RetryConfig

	// breaker opens while writes to the output directory keep failing so
	// that queued documents wait instead of being moved to the error dir
	breaker *resilience.CircuitBreaker

	// scanMu serializes scans triggered by the poll timer and by events
	scanMu sync.Mutex

	mu     sync.Mutex
	status Status
}

// NewManager creates a hot folder manager
func NewManager(cfg Config, opts Options) (*Manager, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Redaction == nil {
		return nil, fmt.Errorf("hotfolder: redaction manager is required")
	}
	if opts.LoadPlaybook == nil {
		return nil, fmt.Errorf("hotfolder: playbook loader is required")
	}
	if opts.Observer == nil {
		opts.Observer = observability.NopObserver()
	}

	m := &Manager{
		cfg:       cfg,
		redaction: opts.Redaction,
		load:      opts.LoadPlaybook,
		limits:    opts.Limits,
		observer:  opts.Observer,
		logger:    opts.Observer.Logger("hotfolder"),
		moveRetry: resilience.FileMoveRetryConfig(),
	}
	if opts.MoveRetry != nil {
		m.moveRetry = *opts.MoveRetry
	}

	breakerCfg := resilience.DefaultBreakerConfig("hotfolder_output")
	if opts.Breaker != nil {
		breakerCfg = *opts.Breaker
	}
	breakerCfg.IsFailure = m.isOutputFailure
	breakerCfg.OnStateChange = func(name string, from, to resilience.BreakerState) {
		m.logger.Warn("output breaker state changed",
			zap.String("breaker", name),
			zap.Stringer("from", from),
			zap.Stringer("to", to))
		m.setPaused(to == resilience.StateOpen)
	}
	m.breaker = resilience.NewCircuitBreaker(breakerCfg)

	return m, nil
}

// Config returns the effective configuration
func (m *Manager) Config() Config {
	return m.cfg
}

// Status returns a copy of the current counters
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Run scans the input directory until ctx is cancelled. Scans are triggered
// by file system events and by the poll interval, which also covers network
// shares where events are not delivered.
func (m *Manager) Run(ctx context.Context) error {
	if !m.cfg.Enabled {
		return fmt.Errorf("hotfolder is disabled")
	}
	if err := m.ensureDirs(); err != nil {
		return err
	}

	m.setRunning(true)
	defer m.setRunning(false)

	var events <-chan fsnotify.Event
	var watchErrors <-chan error
	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		if err = watcher.Add(m.cfg.InputDir); err != nil {
			_ = watcher.Close()
		}
	}
	if err != nil {
		m.logger.Warn("file events unavailable, polling only", zap.Error(err))
	} else {
		defer watcher.Close()
		events = watcher.Events
		watchErrors = watcher.Errors
	}

	m.logger.Info("hot folder started",
		zap.String("input_dir", m.cfg.InputDir),
		zap.String("output_dir", m.cfg.OutputDir),
		zap.Duration("poll_interval", m.cfg.PollInterval))

	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := m.ProcessOnce(ctx); err != nil && ctx.Err() == nil {
			m.logger.Warn("scan failed", zap.Error(err))
		}

		if !m.waitForTrigger(ctx, ticker.C, &events, &watchErrors) {
			m.logger.Info("hot folder stopped")
			return nil
		}
	}
}

// waitForTrigger blocks until the next scan is due. It returns false once
// ctx is cancelled.
func (m *Manager) waitForTrigger(ctx context.Context, tick <-chan time.Time, events *<-chan fsnotify.Event, watchErrors *<-chan error) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case <-tick:
			return true
		case ev, ok := <-*events:
			if !ok {
				*events = nil
				continue
			}
			if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) || ev.Has(fsnotify.Rename) {
				return true
			}
		case werr, ok := <-*watchErrors:
			if !ok {
				*watchErrors = nil
				continue
			}
			m.logger.Warn("watcher error", zap.Error(werr))
		}
	}
}

// ProcessOnce scans the input directory once and handles every stable
// candidate. It returns the number of documents that were processed
// successfully.
func (m *Manager) ProcessOnce(ctx context.Context) (int, error) {
	if !m.cfg.Enabled {
		return 0, nil
	}
	m.scanMu.Lock()
	defer m.scanMu.Unlock()

	if err := m.ensureDirs(); err != nil {
		return 0, err
	}

	candidates, err := m.candidates()
	if err != nil {
		return 0, err
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	stable, err := m.stableFiles(ctx, candidates)
	if err != nil {
		return 0, err
	}

	var (
		succeeded int
		countMu   sync.Mutex
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.MaxConcurrency)
	for _, path := range stable {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			err := m.breaker.Execute(gctx, func(ctx context.Context) error {
				return m.handleFile(ctx, path)
			})
			switch {
			case err == nil:
				countMu.Lock()
				succeeded++
				countMu.Unlock()
			case errors.Is(err, resilience.ErrBreakerOpen):
				m.logger.Debug("output unavailable, leaving file queued", zap.String("file_path", path))
			}
			return nil
		})
	}
	_ = g.Wait()

	return succeeded, ctx.Err()
}

// candidates lists input files in name order that are neither claimed,
// ignored nor of an unconfigured type
func (m *Manager) candidates() ([]string, error) {
	entries, err := os.ReadDir(m.cfg.InputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read input directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		name := entry.Name()
		if !entry.Type().IsRegular() {
			continue
		}
		if strings.HasPrefix(name, ProcessingPrefix) || m.cfg.IsIgnored(name) || !m.cfg.accepts(name) {
			continue
		}
		files = append(files, filepath.Join(m.cfg.InputDir, name))
	}
	return files, nil
}

type fileSnapshot struct {
	size    int64
	modTime time.Time
}

// stableFiles returns the candidates whose size and modification time did
// not change across the stable-file wait
func (m *Manager) stableFiles(ctx context.Context, candidates []string) ([]string, error) {
	before := make(map[string]fileSnapshot, len(candidates))
	for _, path := range candidates {
		if info, err := os.Stat(path); err == nil {
			before[path] = fileSnapshot{size: info.Size(), modTime: info.ModTime()}
		}
	}

	if m.cfg.StableFileWait > 0 {
		timer := time.NewTimer(m.cfg.StableFileWait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	var stable []string
	for _, path := range candidates {
		snap, ok := before[path]
		if !ok {
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.Size() == snap.size && info.ModTime().Equal(snap.modTime) {
			stable = append(stable, path)
		}
	}
	return stable, nil
}

// handleFile claims, validates, processes and files away one document. A
// file another scanner claimed first is skipped without error.
func (m *Manager) handleFile(ctx context.Context, path string) (err error) {
	name := filepath.Base(path)
	finishTiming := m.observer.StartTiming("hotfolder", "handle_file", path)
	defer func() {
		finishTiming(err == nil, nil)
	}()

	claimed := filepath.Join(filepath.Dir(path), ProcessingPrefix+name)
	if err := m.move(ctx, path, claimed); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	err = m.process(claimed, name)
	dest := m.cfg.ProcessedDir
	if err != nil {
		dest = m.cfg.ErrorDir
		m.logger.Warn("document failed",
			zap.String("file_name", name),
			zap.Error(err))
	}

	target := filepath.Join(dest, redactors.SanitizeFilename(name))
	if moveErr := m.move(ctx, claimed, target); moveErr != nil {
		m.logger.Error("failed to move claimed document",
			zap.String("from", claimed),
			zap.String("to", target),
			zap.Error(moveErr))
		if err == nil {
			err = moveErr
		}
	}

	m.record(name, err)
	return err
}

func (m *Manager) process(path, originalName string) error {
	if res := validation.Validate(path, m.limits); !res.Valid {
		return res.Err(originalName)
	}

	pb, err := m.load(m.cfg.Playbook)
	if err != nil {
		return fmt.Errorf("failed to load playbook: %w", err)
	}

	result, err := m.redaction.ProcessAs(path, originalName, m.cfg.OutputDir, pb, false)
	var rerr *redactors.RedactionError
	if errors.As(err, &rerr) && rerr.Type == redactors.ErrorAudit && result != nil {
		// the output is in place; the missing audit row is already logged
		return nil
	}
	if err != nil {
		return err
	}

	m.logger.Info("document redacted",
		zap.String("processing_id", result.ProcessingID),
		zap.String("file_name", originalName),
		zap.String("output_path", result.OutputPath),
		zap.Int("total_matches", result.Report.TotalMatches))
	return nil
}

// move renames src to dst, retrying while another process holds the file
func (m *Manager) move(ctx context.Context, src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0700); err != nil {
		return platform.WrapFileError(err, dst, "create directory")
	}
	err := resilience.RetryWithBackoff(ctx, m.moveRetry, func(ctx context.Context) error {
		return os.Rename(src, dst)
	})
	if err != nil {
		return platform.WrapFileError(err, src, "move")
	}
	return nil
}

func (m *Manager) ensureDirs() error {
	for _, dir := range []string{m.cfg.InputDir, m.cfg.OutputDir, m.cfg.ProcessedDir, m.cfg.ErrorDir} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return platform.WrapFileError(err, dir, "create directory")
		}
	}
	return nil
}

func (m *Manager) record(name string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status.LastProcessed = name
	if err != nil {
		m.status.FailureCount++
		m.status.LastError = err.Error()
		return
	}
	m.status.SuccessCount++
}

func (m *Manager) setRunning(running bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status.Running = running
}

func (m *Manager) setPaused(paused bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status.Paused = paused
}

// isOutputFailure counts failures to write into the output directory,
// which affect every queued document alike
func (m *Manager) isOutputFailure(err error) bool {
	var rerr *redactors.RedactionError
	if !errors.As(err, &rerr) || rerr.Type != redactors.ErrorFileSystem {
		return false
	}
	return filepath.Clean(filepath.Dir(rerr.FilePath)) == filepath.Clean(m.cfg.OutputDir)
}
