package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/seqguard/internal/breach"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"SEQGUARD_DB", "SEQGUARD_LOG_LEVEL", "SEQGUARD_BREACH_MODE",
		"SEQGUARD_EXIT_CODE", "SEQGUARD_GOLDEN_DIR",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func missing(t *testing.T) string {
	return filepath.Join(t.TempDir(), "absent.env")
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(missing(t))
	require.NoError(t, err)
	assert.Equal(t, Config{
		LogLevel:   "info",
		BreachMode: ModeTerminate,
		ExitCode:   breach.DefaultExitCode,
		GoldenDir:  "testdata/golden",
	}, cfg)
}

func TestLoad_Environment(t *testing.T) {
	clearEnv(t)
	t.Setenv("SEQGUARD_DB", "/tmp/runs.db")
	t.Setenv("SEQGUARD_LOG_LEVEL", "DEBUG")
	t.Setenv("SEQGUARD_BREACH_MODE", "record")
	t.Setenv("SEQGUARD_EXIT_CODE", "3")

	cfg, err := Load(missing(t))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/runs.db", cfg.DB)
	assert.Equal(t, ModeRecord, cfg.BreachMode)
	assert.Equal(t, 3, cfg.ExitCode)

	lvl, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)
}

func TestLoad_DotEnvFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("SEQGUARD_GOLDEN_DIR=golden\nSEQGUARD_EXIT_CODE=9\n"), 0o644))
	t.Cleanup(func() {
		os.Unsetenv("SEQGUARD_GOLDEN_DIR")
		os.Unsetenv("SEQGUARD_EXIT_CODE")
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "golden", cfg.GoldenDir)
	assert.Equal(t, 9, cfg.ExitCode)
}

func TestLoad_EnvironmentBeatsDotEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("SEQGUARD_EXIT_CODE", "5")
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("SEQGUARD_EXIT_CODE=9\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.ExitCode)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"mode", "SEQGUARD_BREACH_MODE", "panic"},
		{"level", "SEQGUARD_LOG_LEVEL", "loud"},
		{"exit code range", "SEQGUARD_EXIT_CODE", "300"},
		{"exit code type", "SEQGUARD_EXIT_CODE", "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.val)

			_, err := Load(missing(t))
			assert.Error(t, err)
		})
	}
}

func TestReporter(t *testing.T) {
	cfg := Config{BreachMode: ModeRecord, ExitCode: 134}
	_, ok := cfg.Reporter(nil).(*breach.Recorder)
	assert.True(t, ok)

	cfg.BreachMode = ModeTerminate
	cfg.ExitCode = 7
	term, ok := cfg.Reporter(slog.Default()).(*breach.Terminator)
	require.True(t, ok)
	assert.Equal(t, 7, term.Code)
}
