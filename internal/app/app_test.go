package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/docshield/internal/domain/recovery"
	"github.com/GriffinCanCode/docshield/internal/domain/reporting"
	"github.com/GriffinCanCode/docshield/internal/domain/taxonomy"
	"github.com/GriffinCanCode/docshield/internal/infrastructure/config"
	"github.com/GriffinCanCode/docshield/internal/pipeline"
	"github.com/GriffinCanCode/docshield/internal/providers/document/documenttest"
	"github.com/GriffinCanCode/docshield/internal/providers/extract"
)

func TestConvertWithDefaults(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	documenttest.WriteFile(t, in, "notes.txt", []byte("plain notes\n"))
	documenttest.WriteFile(t, in, "image.png", []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\x00"))

	cfg := config.Default()
	cfg.Reporter.Path = filepath.Join(out, "reports", "errors.yaml")
	cfg.Reporter.Format = "yaml"

	a, err := New(cfg, nil)
	require.NoError(t, err)

	summary, err := a.Convert(context.Background(), in, filepath.Join(out, "converted"))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Converted)
	assert.Equal(t, 1, summary.Recovered)
	assert.True(t, summary.Succeeded())
	assert.Equal(t, 0, ExitCode(summary, nil))

	for _, f := range summary.Files {
		if f.Outcome == pipeline.OutcomeRecovered {
			assert.Equal(t, extract.DiagnosticStubName, f.Strategy)
		}
	}

	require.NoError(t, a.ExportReports())
	reports, err := reporting.LoadReports(cfg.Reporter.Path)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, taxonomy.KindUnsupportedFileType, reports[0].Kind)
}

func TestConvertWithoutStubSkips(t *testing.T) {
	in := t.TempDir()
	documenttest.WriteFile(t, in, "image.png", []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\x00"))

	cfg := config.Default()
	cfg.Fallback.DiagnosticStub = false
	a, err := New(cfg, nil)
	require.NoError(t, err)

	summary, err := a.Convert(context.Background(), in, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 1, ExitCode(summary, nil))
}

func TestNewAppliesRulesFile(t *testing.T) {
	rules := filepath.Join(t.TempDir(), "rules.toml")
	require.NoError(t, os.WriteFile(rules, []byte(`[[rules]]
kind = "unsupported_file_type"
actions = ["abort_batch"]
`), 0o644))

	cfg := config.Default()
	cfg.Recovery.RulesFile = rules
	a, err := New(cfg, nil)
	require.NoError(t, err)

	actions, _ := a.Recovery.Rules().Lookup(taxonomy.KindUnsupportedFileType)
	assert.Equal(t, []recovery.Action{recovery.ActionAbortBatch}, actions)

	in := t.TempDir()
	documenttest.WriteFile(t, in, "image.png", []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\x00"))
	summary, err := a.Convert(context.Background(), in, t.TempDir())
	assert.ErrorIs(t, err, recovery.ErrBatchAborted)
	assert.Equal(t, 3, ExitCode(summary, err))
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Recovery.RulesFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err := New(cfg, nil)
	assert.Error(t, err)

	cfg = config.Default()
	cfg.Breaker.FailureThreshold = 0
	_, err = New(cfg, nil)
	assert.ErrorContains(t, err, "invalid config")
}

func TestExportReportsWithoutPath(t *testing.T) {
	a, err := New(config.Default(), nil)
	require.NoError(t, err)
	assert.NoError(t, a.ExportReports())
}

func TestServer(t *testing.T) {
	a, err := New(config.Default(), nil)
	require.NoError(t, err)
	srv, err := a.Server()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8080", srv.Addr())
}

func TestExitCode(t *testing.T) {
	ok := &pipeline.Summary{Total: 2, Converted: 1, Recovered: 1}
	partial := &pipeline.Summary{Total: 2, Converted: 1, Failed: 1}

	tests := []struct {
		summary *pipeline.Summary
		err     error
		want    int
	}{
		{ok, nil, 0},
		{partial, nil, 1},
		{nil, errors.New("scan failed"), 2},
		{partial, fmt.Errorf("file x: %w", recovery.ErrBatchAborted), 3},
		{partial, context.Canceled, 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExitCode(tt.summary, tt.err), "summary=%+v err=%v", tt.summary, tt.err)
	}
}
