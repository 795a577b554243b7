//go:build !seqguard_release

package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Regenerate with: go test ./internal/harness -run TestGolden -update
func TestGolden_Builtin(t *testing.T) {
	scenarios, err := Builtin()
	require.NoError(t, err)

	for _, sc := range scenarios {
		t.Run(sc.Name, func(t *testing.T) {
			require.NoError(t, RunWithGolden(t, sc))
		})
	}
}

func TestSnapshot_Canonical(t *testing.T) {
	sc, err := BuiltinScenario("begin_const")
	require.NoError(t, err)
	result, err := Run(sc)
	require.NoError(t, err)

	snap := NewSnapshot(sc.Name, result)
	data, err := snap.Marshal()
	require.NoError(t, err)

	want := `{"scenario_name":"begin_const",` +
		`"state":{"cap":3,"destroyed":false,"generation":0,"len":3,"values":[1,2,3]},` +
		`"trace":[{"generation":0,"index":0,"iterator":"i","op":"begin","seq":1},` +
		`{"generation":0,"iterator":"i","op":"deref","seq":2,"value":1}]}`
	assert.Equal(t, want, string(data))
}

func TestCheckGolden(t *testing.T) {
	dir := t.TempDir()
	sc, err := BuiltinScenario("realloc_invalidates")
	require.NoError(t, err)
	result, err := Run(sc)
	require.NoError(t, err)

	_, _, err = CheckGolden(dir, sc.Name, result)
	assert.ErrorIs(t, err, ErrNoGolden)

	require.NoError(t, WriteGolden(dir, sc.Name, result))
	ok, got, err := CheckGolden(dir, sc.Name, result)
	require.NoError(t, err)
	assert.True(t, ok)

	onDisk, err := os.ReadFile(filepath.Join(dir, "realloc_invalidates.golden"))
	require.NoError(t, err)
	assert.Equal(t, onDisk, got)

	require.NoError(t, os.WriteFile(GoldenPath(dir, sc.Name), []byte("{}"), 0644))
	ok, _, err = CheckGolden(dir, sc.Name, result)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCheckGolden_MatchesCheckedInFiles(t *testing.T) {
	scenarios, err := Builtin()
	require.NoError(t, err)

	for _, sc := range scenarios {
		result, err := Run(sc)
		require.NoError(t, err)
		ok, got, err := CheckGolden(GoldenDir, sc.Name, result)
		require.NoError(t, err, sc.Name)
		assert.True(t, ok, "%s: got %s", sc.Name, got)
	}
}
