// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package observability

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestStartTiming_LogsCompletion(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	obs := NewStandardObserver(ObservabilityDebug, zap.New(core))

	finish := obs.StartTiming("plaintext", "process", "/tmp/a.txt")
	finish(true, map[string]interface{}{"matches": 3})

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	assert.Equal(t, "plaintext", fields["component"])
	assert.Equal(t, "process", fields["operation"])
	assert.Equal(t, "/tmp/a.txt", fields["file_path"])
	assert.Equal(t, true, fields["success"])
}

func TestLogOperation_Levels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	metrics := NewStandardObserver(ObservabilityMetrics, zap.New(core))
	metrics.LogOperation(StandardObservabilityData{Component: "c", Operation: "ok", Success: true})
	metrics.LogOperation(StandardObservabilityData{Component: "c", Operation: "bad", Error: "boom"})

	require.Equal(t, 1, logs.Len(), "metrics level only reports failures")
	entry := logs.All()[0]
	assert.Equal(t, zapcore.WarnLevel, entry.Level)
	assert.Equal(t, "boom", entry.ContextMap()["error"])

	off := NewStandardObserver(ObservabilityOff, zap.New(core))
	off.LogOperation(StandardObservabilityData{Component: "c", Operation: "bad"})
	assert.Equal(t, 1, logs.Len())
}

func TestNopObserver(t *testing.T) {
	obs := NopObserver()
	assert.NotPanics(t, func() {
		obs.StartTiming("c", "op", "")(false, nil)
		obs.Logger("c").Info("discarded")
	})
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(LoggerConfig{Level: "warn", Format: "json", Output: &buf})
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", zap.String("k", "v"))
	require.NoError(t, logger.Sync())

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"k":"v"`)
	assert.Contains(t, out, `"timestamp"`)

	_, err = NewLogger(LoggerConfig{Level: "loud"})
	assert.Error(t, err)

	logger, err = NewLogger(LoggerConfig{Format: "console", Output: &buf})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
}
