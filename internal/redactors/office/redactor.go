// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package office

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"blur/internal/cleaner"
	"blur/internal/observability"
	"blur/internal/playbook"
	"blur/internal/redactors"
	"blur/internal/rules"
)

const wordPrefix = "word/"

// OfficeRedactor implements redaction for WordprocessingML (.docx) documents:
// the container is cleaned of revisions, comments and author metadata, then
// every text node is passed through the rule engine on its own.
type OfficeRedactor struct {
	*redactors.Processor

	// observer handles observability and metrics
	observer *observability.StandardObserver
}

// OfficeZipContents holds the entries of an Office container in archive order
type OfficeZipContents struct {
	Parts    *cleaner.Parts
	Modified map[string]time.Time
}

// NewOfficeRedactor creates a new OfficeRedactor
func NewOfficeRedactor(opts redactors.Options) *OfficeRedactor {
	or := &OfficeRedactor{observer: opts.Observer}
	if or.observer == nil {
		or.observer = observability.NopObserver()
	}
	or.Processor = redactors.NewProcessor("office", "docx", or.Transform, opts)
	return or
}

// Transform cleans the container, redacts every w:t node and repacks the
// archive. Text split across runs is matched per run only.
func (or *OfficeRedactor) Transform(data []byte, pb *playbook.Playbook, dryRun bool) ([]byte, rules.Report, error) {
	contents, err := ReadContainer(data)
	if err != nil {
		return nil, rules.NewReport(), err
	}

	cleaned, stats := cleaner.Clean(contents.Parts)
	or.logCleanStats(stats)

	report := rules.NewReport()
	for _, name := range cleaned.Names() {
		if !isTextPart(name) {
			continue
		}
		raw, _ := cleaned.Get(name)
		updated, partReport, ok := redactPart(raw, pb, dryRun)
		if !ok {
			continue
		}
		report = rules.Merge(report, partReport)
		if updated != nil {
			cleaned.Set(name, updated)
		}
	}

	if dryRun {
		return nil, report, nil
	}

	out, err := WriteContainer(&OfficeZipContents{Parts: cleaned, Modified: contents.Modified})
	if err != nil {
		return nil, report, err
	}
	return out, report, nil
}

func isTextPart(name string) bool {
	return strings.HasPrefix(name, wordPrefix) && strings.HasSuffix(name, ".xml")
}

// redactPart applies the engine to every w:t node of one XML part. It
// returns nil bytes when nothing changed and ok=false when the part is not
// well-formed XML.
func redactPart(raw []byte, pb *playbook.Playbook, dryRun bool) ([]byte, rules.Report, bool) {
	doc, err := cleaner.ParseXML(raw)
	if err != nil {
		return nil, rules.Report{}, false
	}

	report := rules.NewReport()
	modified := false
	for _, node := range doc.FindElementsPath(cleaner.WordText) {
		text := node.Text()
		if text == "" {
			continue
		}
		redacted, nodeReport := rules.Apply(text, pb, dryRun)
		report = rules.Merge(report, nodeReport)
		if dryRun || redacted == text {
			continue
		}
		node.SetText(redacted)
		preserveSpace(node, redacted)
		modified = true
	}

	if !modified {
		return nil, report, true
	}
	out, err := cleaner.SerializeXML(doc)
	if err != nil {
		return nil, report, true
	}
	return out, report, true
}

// preserveSpace marks node so Word keeps leading or trailing whitespace
func preserveSpace(node *etree.Element, text string) {
	runes := []rune(text)
	if len(runes) == 0 {
		return
	}
	if !unicode.IsSpace(runes[0]) && !unicode.IsSpace(runes[len(runes)-1]) {
		return
	}
	if node.SelectAttr("xml:space") == nil {
		node.CreateAttr("xml:space", "preserve")
	}
}

// ReadContainer loads every entry of a zip archive in archive order
func ReadContainer(data []byte) (*OfficeZipContents, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open document archive: %w", err)
	}

	contents := &OfficeZipContents{
		Parts:    cleaner.NewParts(),
		Modified: make(map[string]time.Time, len(reader.File)),
	}
	for _, file := range reader.File {
		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open archive entry %s: %w", file.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read archive entry %s: %w", file.Name, err)
		}
		contents.Parts.Set(file.Name, content)
		contents.Modified[file.Name] = file.Modified
	}
	return contents, nil
}

// WriteContainer packs contents into a deflate-compressed zip archive,
// keeping entry order
func WriteContainer(contents *OfficeZipContents) ([]byte, error) {
	var buf bytes.Buffer
	zipWriter := zip.NewWriter(&buf)

	for _, name := range contents.Parts.Names() {
		content, _ := contents.Parts.Get(name)
		header := &zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: contents.Modified[name],
		}
		if strings.HasSuffix(name, "/") {
			header.Method = zip.Store
		}

		fileWriter, err := zipWriter.CreateHeader(header)
		if err != nil {
			return nil, fmt.Errorf("failed to create ZIP entry for %s: %w", name, err)
		}
		if _, err := fileWriter.Write(content); err != nil {
			return nil, fmt.Errorf("failed to write content for %s: %w", name, err)
		}
	}

	if err := zipWriter.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize archive: %w", err)
	}
	return buf.Bytes(), nil
}

func (or *OfficeRedactor) logCleanStats(stats cleaner.Stats) {
	logger := or.observer.Logger(or.GetComponentName())
	for _, name := range stats.Skipped {
		logger.Warn("part is not well-formed XML, left unchanged", zap.String("part", name))
	}
	or.observer.StartTiming(or.GetComponentName(), "clean", "")(true, map[string]interface{}{
		"deletions_removed":       stats.DeletionsRemoved,
		"insertions_unwrapped":    stats.InsertionsUnwrapped,
		"comment_anchors_removed": stats.CommentAnchorsRemoved,
		"metadata_fields_blanked": stats.MetadataFieldsBlanked,
		"removed_parts":           stats.RemovedParts,
	})
}
