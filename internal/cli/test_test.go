//go:build !seqguard_release

package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestCommand_MissingArgs(t *testing.T) {
	out, err := execute(t, "test")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "no scenarios directory given")
}

func TestTestCommand_NonExistentDir(t *testing.T) {
	out, err := execute(t, "test", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "scenarios directory not found")
}

func TestTestCommand_EmptyDir(t *testing.T) {
	out, err := execute(t, "test", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")
}

func TestTestCommand_EmptyDirJSON(t *testing.T) {
	out, err := execute(t, "test", "--format", "json", t.TempDir())
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   RunSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 0, resp.Data.Total)
	assert.NotNil(t, resp.Data.Scenarios)
}

func TestTestCommand_BuiltinGoldens(t *testing.T) {
	out, err := execute(t, "test", "--builtin")
	require.NoError(t, err)
	assert.Contains(t, out, "Summary: 8 passed, 0 failed, 8 total")
}

func TestTestCommand_Filter(t *testing.T) {
	out, err := execute(t, "test", "--builtin", "--filter", "add_past_end*")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ add_past_end ")
	assert.Contains(t, out, "✓ add_past_end_counting ")
	assert.NotContains(t, out, "begin_const")
	assert.Contains(t, out, "2 total")

	_, err = execute(t, "test", "--builtin", "--filter", "[")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommand_UpdateThenCompare(t *testing.T) {
	scenarios := t.TempDir()
	golden := filepath.Join(t.TempDir(), "golden")
	writeFile(t, scenarios, "ok.yaml", okScenario)

	// No golden file yet: assertions only.
	out, err := execute(t, "test", scenarios, "--golden-dir", golden)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ ok")

	_, err = execute(t, "test", scenarios, "--golden-dir", golden, "--update")
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(golden, "ok.golden"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"scenario_name":"ok"`)

	out, err = execute(t, "test", scenarios, "--golden-dir", golden)
	require.NoError(t, err)
	assert.Contains(t, out, "1 passed")
}

func TestTestCommand_GoldenMismatch(t *testing.T) {
	scenarios := t.TempDir()
	golden := t.TempDir()
	writeFile(t, scenarios, "ok.yaml", okScenario)
	writeFile(t, golden, "ok.golden", `{"scenario_name":"ok","trace":[]}`)

	out, err := execute(t, "test", scenarios, "--golden-dir", golden)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "trace does not match golden file")

	out, err = execute(t, "test", scenarios, "--golden-dir", golden, "--format", "json")
	require.Error(t, err)
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeGoldenFailed, resp.Error.Code)
}

func TestTestCommand_FailingScenario(t *testing.T) {
	scenarios := t.TempDir()
	writeFile(t, scenarios, "missed.yml", missedBreachScenario)

	out, err := execute(t, "test", scenarios, "--golden-dir", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ missed_breach")
}
