// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package redactors

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"blur/internal/audit"
	"blur/internal/observability"
	"blur/internal/playbook"
	"blur/internal/rules"
	"blur/internal/security"
)

// Redactor interface defines the contract for all redactor implementations
type Redactor interface {
	observability.Observable

	// GetName returns the name of the redactor
	GetName() string

	// GetSupportedTypes returns the file extensions this redactor can handle
	GetSupportedTypes() []string

	// Process redacts inputPath under pb. Unless dryRun is set the result is
	// written to outputDir under OutputName(inputPath).
	Process(inputPath, outputDir string, pb *playbook.Playbook, dryRun bool) (*Result, error)

	// ProcessAs is Process for a document whose file name on disk differs
	// from the name it was submitted under. Output naming and the audit
	// record use originalName.
	ProcessAs(inputPath, originalName, outputDir string, pb *playbook.Playbook, dryRun bool) (*Result, error)
}

// Result contains the results of a processing call
type Result struct {
	// ProcessingID identifies this call in logs and the audit trail
	ProcessingID string

	// InputPath is the processed document
	InputPath string

	// OutputPath is empty for dry runs
	OutputPath string

	// Output holds the written bytes; nil for dry runs
	Output []byte

	Report rules.Report

	InputSHA256  string
	OutputSHA256 string

	DryRun         bool
	ProcessingTime time.Duration
}

// TransformFunc turns the raw bytes of a document into redacted bytes. In a
// dry run the returned bytes are ignored and may be nil.
type TransformFunc func(data []byte, pb *playbook.Playbook, dryRun bool) ([]byte, rules.Report, error)

// Options carries the collaborators shared by all redactors
type Options struct {
	Output   *OutputManager
	Audit    audit.Sink
	Observer *observability.StandardObserver
}

func (o Options) withDefaults() Options {
	if o.Observer == nil {
		o.Observer = observability.NopObserver()
	}
	if o.Output == nil {
		o.Output = NewOutputManager(o.Observer)
	}
	if o.Audit == nil {
		o.Audit = audit.NopSink{}
	}
	return o
}

// Processor implements the file handling common to every document type:
// read, transform, write atomically, hash and audit. Format-specific
// redactors embed it and supply the transform.
type Processor struct {
	name      string
	fileType  string
	component string
	transform TransformFunc
	opts      Options
	username  string
}

// NewProcessor creates a Processor for one document type
func NewProcessor(name, fileType string, transform TransformFunc, opts Options) *Processor {
	return &Processor{
		name:      name,
		fileType:  fileType,
		component: name + "_redactor",
		transform: transform,
		opts:      opts.withDefaults(),
		username:  audit.CurrentUser(),
	}
}

// GetName returns the name of the redactor
func (p *Processor) GetName() string {
	return p.name
}

// GetSupportedTypes returns the file extensions this redactor can handle
func (p *Processor) GetSupportedTypes() []string {
	return []string{"." + p.fileType}
}

// GetComponentName returns the component name for observability
func (p *Processor) GetComponentName() string {
	return p.component
}

// Process implements Redactor. An audit failure is reported as an
// ErrorAudit RedactionError together with the otherwise complete Result.
func (p *Processor) Process(inputPath, outputDir string, pb *playbook.Playbook, dryRun bool) (*Result, error) {
	return p.ProcessAs(inputPath, filepath.Base(inputPath), outputDir, pb, dryRun)
}

// ProcessAs implements Redactor
func (p *Processor) ProcessAs(inputPath, originalName, outputDir string, pb *playbook.Playbook, dryRun bool) (result *Result, err error) {
	start := time.Now()
	finishTiming := p.opts.Observer.StartTiming(p.component, "process", inputPath)
	defer func() {
		metadata := map[string]interface{}{"dry_run": dryRun}
		if result != nil {
			metadata["processing_id"] = result.ProcessingID
			metadata["total_matches"] = result.Report.TotalMatches
		}
		if err != nil {
			metadata["error"] = err.Error()
		}
		finishTiming(err == nil, metadata)
	}()

	data, err := os.ReadFile(inputPath)
	if err != nil {
		return nil, NewRedactionError(ErrorFileSystem, "failed to read input", inputPath, p.component, err)
	}
	// transforms never return slices of their input
	defer security.Wipe(data)

	out, report, err := p.transform(data, pb, dryRun)
	if err != nil {
		return nil, NewRedactionError(ErrorDocumentProcessing, "failed to process document", inputPath, p.component, err)
	}

	result = &Result{
		ProcessingID: uuid.NewString(),
		InputPath:    inputPath,
		Report:       report,
		InputSHA256:  sha256Hex(data),
		DryRun:       dryRun,
	}

	if !dryRun {
		outputPath := filepath.Join(outputDir, OutputName(originalName))
		if err := p.opts.Output.WriteAtomic(outputPath, out); err != nil {
			return nil, NewRedactionError(ErrorFileSystem, "failed to write output", outputPath, p.component, err)
		}
		result.OutputPath = outputPath
		result.Output = out
		result.OutputSHA256 = sha256Hex(out)
	}
	result.ProcessingTime = time.Since(start)

	entry := audit.Entry{
		ProcessingID:      result.ProcessingID,
		Timestamp:         time.Now().UTC(),
		OSUsername:        p.username,
		InputFilename:     SanitizeFilename(originalName),
		FileType:          p.fileType,
		DryRun:            dryRun,
		TotalMatches:      report.TotalMatches,
		MatchesByCategory: report.ByRuleType,
		SHA256Input:       result.InputSHA256,
		SHA256Output:      result.OutputSHA256,
	}
	if pb != nil {
		entry.PlaybookName = pb.Name
		entry.PlaybookVersion = pb.Version
	}
	if err := p.opts.Audit.Log(entry); err != nil {
		p.opts.Observer.Logger(p.component).Warn("audit record not written",
			zap.String("processing_id", result.ProcessingID),
			zap.String("file_path", inputPath),
			zap.Error(err))
		return result, NewRedactionError(ErrorAudit, "failed to write audit record", inputPath, p.component, err)
	}

	return result, nil
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
