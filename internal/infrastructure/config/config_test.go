package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/docshield/internal/domain/recovery"
	"github.com/GriffinCanCode/docshield/internal/domain/taxonomy"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.False(t, cfg.Server.Enabled)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	assert.Equal(t, 5, cfg.Breaker.FailureThreshold)
	assert.Equal(t, 60*time.Second, cfg.Breaker.RecoveryTimeout)
	assert.Equal(t, 3, cfg.Fallback.MaxAttempts)
	assert.True(t, cfg.Fallback.DiagnosticStub)
	assert.Equal(t, "skip_file", cfg.Recovery.Intervention)
	assert.Equal(t, 1000, cfg.Reporter.Capacity)
	assert.Equal(t, "json", cfg.Reporter.Format)
	assert.Equal(t, int64(64<<20), cfg.Pipeline.MaxFileSize)

	require.NoError(t, cfg.Validate())
}

func TestLoadMatchesDefault(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"DOCSHIELD_PORT":                      "9000",
		"DOCSHIELD_SERVE":                     "true",
		"DOCSHIELD_LOG_LEVEL":                 "debug",
		"DOCSHIELD_LOG_DEV":                   "true",
		"DOCSHIELD_BREAKER_FAILURE_THRESHOLD": "2",
		"DOCSHIELD_BREAKER_RECOVERY_TIMEOUT":  "5s",
		"DOCSHIELD_RECOVERY_INTERVENTION":     "retry",
		"DOCSHIELD_RECOVERY_RETRY_RATE":       "2.5",
		"DOCSHIELD_REPORT_FORMAT":             "yaml",
		"DOCSHIELD_WORKERS":                   "4",
		"DOCSHIELD_INCLUDE":                   "**/*.pdf,**/*.html",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.True(t, cfg.Server.Enabled)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, 2, cfg.Breaker.FailureThreshold)
	assert.Equal(t, 5*time.Second, cfg.Breaker.RecoveryTimeout)
	assert.Equal(t, 2.5, cfg.Recovery.RetryRate)
	assert.Equal(t, "yaml", cfg.Reporter.Format)
	assert.Equal(t, 4, cfg.Pipeline.Workers)
	assert.Equal(t, []string{"**/*.pdf", "**/*.html"}, cfg.Pipeline.Include)

	action, err := cfg.InterventionAction()
	require.NoError(t, err)
	assert.Equal(t, recovery.ActionRetry, action)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unparseable", "DOCSHIELD_WORKERS", "many"},
		{"failure rate", "DOCSHIELD_BREAKER_FAILURE_RATE", "1.5"},
		{"report format", "DOCSHIELD_REPORT_FORMAT", "xml"},
		{"intervention", "DOCSHIELD_RECOVERY_INTERVENTION", "validate_first"},
		{"unknown action", "DOCSHIELD_RECOVERY_INTERVENTION", "pray"},
		{"negative workers", "DOCSHIELD_WORKERS", "-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)

			cfg := LoadOrDefault()
			assert.Equal(t, Default(), cfg)
		})
	}
}

func TestBreakerResilience(t *testing.T) {
	b := Default().Breaker
	b.WindowSize = 4
	b.Timeout = time.Second

	cfg := b.Resilience()
	assert.Equal(t, 4, cfg.WindowSize)
	assert.Equal(t, time.Second, cfg.TimeoutHint)
	assert.NotEmpty(t, cfg.ErrorWeights)
	assert.Equal(t, 1.0, cfg.DefaultWeight)
}

func writeRules(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadRules(t *testing.T) {
	want := []recovery.Rule{
		{Kind: taxonomy.KindFontDescriptor, Actions: []recovery.Action{recovery.ActionFallback, recovery.ActionSkipFile}},
		{Kind: taxonomy.KindPermission, Actions: []recovery.Action{recovery.ActionAbortBatch}},
	}

	t.Run("yaml", func(t *testing.T) {
		path := writeRules(t, "rules.yaml", `rules:
  - kind: font_descriptor
    actions: [fallback, skip_file]
  - kind: permission
    actions: [abort_batch]
`)
		rules, err := LoadRules(path)
		require.NoError(t, err)
		assert.Equal(t, want, rules)
	})

	t.Run("toml", func(t *testing.T) {
		path := writeRules(t, "rules.toml", `[[rules]]
kind = "font_descriptor"
actions = ["fallback", "skip_file"]

[[rules]]
kind = "permission"
actions = ["abort_batch"]
`)
		rules, err := LoadRules(path)
		require.NoError(t, err)
		assert.Equal(t, want, rules)
	})

	t.Run("unsupported extension", func(t *testing.T) {
		_, err := LoadRules(writeRules(t, "rules.ini", "rules="))
		assert.ErrorContains(t, err, "unsupported extension")
	})

	t.Run("empty", func(t *testing.T) {
		_, err := LoadRules(writeRules(t, "rules.yaml", "rules: []\n"))
		assert.ErrorContains(t, err, "no rules")
	})

	t.Run("missing", func(t *testing.T) {
		_, err := LoadRules(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestRuleTable(t *testing.T) {
	cfg := Default()
	table, err := cfg.RuleTable()
	require.NoError(t, err)
	actions, _ := table.Lookup(taxonomy.KindFontDescriptor)
	assert.Equal(t, recovery.ActionValidateFirst, actions[0])

	cfg.Recovery.RulesFile = writeRules(t, "rules.yaml", `rules:
  - kind: font_descriptor
    actions: [skip_file]
`)
	table, err = cfg.RuleTable()
	require.NoError(t, err)
	actions, matched := table.Lookup(taxonomy.KindFontDescriptor)
	assert.Equal(t, []recovery.Action{recovery.ActionSkipFile}, actions)
	assert.Equal(t, taxonomy.KindFontDescriptor, matched)

	cfg.Recovery.RulesFile = writeRules(t, "bad.yaml", `rules:
  - kind: font_descriptor
    actions: [dance]
`)
	_, err = cfg.RuleTable()
	assert.ErrorContains(t, err, "unknown recovery action")
}
