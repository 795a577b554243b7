package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const validScenario = `
name: test_scenario
description: "Test scenario for validation"
allocator: counting
initial: [1, 2]
steps:
  - op: begin
    as: i
  - op: deref
    iter: i
    expect:
      value: 1
assertions:
  - type: trace_count
    op: deref
    count: 1
`

func TestLoadScenario_ValidFile(t *testing.T) {
	path := writeScenario(t, t.TempDir(), "test.yaml", validScenario)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, "Test scenario for validation", scenario.Description)
	assert.Equal(t, AllocCounting, scenario.Allocator)
	assert.Equal(t, []any{1, 2}, scenario.Initial)
	require.Len(t, scenario.Steps, 2)
	assert.Equal(t, OpBegin, scenario.Steps[0].Op)
	assert.Equal(t, "i", scenario.Steps[0].As)
	require.NotNil(t, scenario.Steps[1].Expect)
	assert.Equal(t, 1, scenario.Steps[1].Expect.Value)
	assert.Len(t, scenario.Assertions, 1)
	assert.Len(t, scenario.Digest, 64)
}

func TestLoadScenario_BreachKindSpellings(t *testing.T) {
	for _, kind := range []string{"OUT_OF_RANGE", "out_of_range"} {
		t.Run(kind, func(t *testing.T) {
			content := `
name: past_end
initial: [0]
steps:
  - op: begin
    as: i
  - op: advance
    iter: i
    delta: 2
    expect:
      breach: ` + kind + `
`
			path := writeScenario(t, t.TempDir(), "past_end.yaml", content)

			scenario, err := LoadScenario(path)
			require.NoError(t, err)
			require.NotNil(t, scenario.Steps[1].Expect)
			assert.Equal(t, kind, scenario.Steps[1].Expect.Breach)
		})
	}

	err := ValidateSchema([]byte("name: x\nsteps:\n  - op: begin\n    expect:\n      breach: Out_Of_Range\n"))
	assert.ErrorIs(t, err, ErrSchema)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "failed to read scenario file")
}

func TestLoadScenario_MalformedYAML(t *testing.T) {
	path := writeScenario(t, t.TempDir(), "bad.yaml", "name: [unterminated\n")
	_, err := LoadScenario(path)
	assert.ErrorContains(t, err, "failed to parse YAML")
}

func TestLoadScenario_UnknownFieldRejectedBySchema(t *testing.T) {
	content := validScenario + "assertion: typo\n"
	path := writeScenario(t, t.TempDir(), "typo.yaml", content)

	_, err := LoadScenario(path)
	assert.ErrorIs(t, err, ErrSchema)
}

func TestParseScenario_UnknownFieldRejected(t *testing.T) {
	_, err := ParseScenario([]byte(validScenario + "assertion: typo\n"))
	assert.ErrorContains(t, err, "failed to parse YAML")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "missing name",
			content: "description: d\nsteps:\n  - op: clear\n",
			want:    "name is required",
		},
		{
			name:    "missing description",
			content: "name: n\nsteps:\n  - op: clear\n",
			want:    "description is required",
		},
		{
			name:    "no steps",
			content: "name: n\ndescription: d\n",
			want:    "steps list is required",
		},
		{
			name:    "unknown op",
			content: "name: n\ndescription: d\nsteps:\n  - op: explode\n",
			want:    `unknown op "explode"`,
		},
		{
			name:    "iterator used before binding",
			content: "name: n\ndescription: d\nsteps:\n  - op: deref\n    iter: i\n",
			want:    `iterator "i" used before it is bound`,
		},
		{
			name:    "begin without as",
			content: "name: n\ndescription: d\nsteps:\n  - op: begin\n",
			want:    "as is required",
		},
		{
			name:    "as on a non-producing op",
			content: "name: n\ndescription: d\nsteps:\n  - op: clear\n    as: x\n",
			want:    "does not produce an iterator",
		},
		{
			name:    "append without value",
			content: "name: n\ndescription: d\nsteps:\n  - op: append\n",
			want:    "value is required",
		},
		{
			name:    "unknown breach kind",
			content: "name: n\ndescription: d\nsteps:\n  - op: clear\n    expect:\n      breach: BOOM\n",
			want:    "steps[0].expect",
		},
		{
			name:    "limited without budget",
			content: "name: n\ndescription: d\nallocator: limited\nsteps:\n  - op: clear\n",
			want:    "alloc_limit must be positive",
		},
		{
			name:    "unknown allocator",
			content: "name: n\ndescription: d\nallocator: arena\nsteps:\n  - op: clear\n",
			want:    `unknown allocator "arena"`,
		},
		{
			name:    "unknown element",
			content: "name: n\ndescription: d\nelement: float\nsteps:\n  - op: clear\n",
			want:    `unknown element type "float"`,
		},
		{
			name:    "unknown assertion",
			content: "name: n\ndescription: d\nsteps:\n  - op: clear\nassertions:\n  - type: vibes\n",
			want:    `unknown assertion type "vibes"`,
		},
		{
			name:    "trace_order without ops",
			content: "name: n\ndescription: d\nsteps:\n  - op: clear\nassertions:\n  - type: trace_order\n",
			want:    "ops list is required",
		},
		{
			name:    "final_state without expect",
			content: "name: n\ndescription: d\nsteps:\n  - op: clear\nassertions:\n  - type: final_state\n",
			want:    "expect is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateSchema(t *testing.T) {
	assert.NoError(t, ValidateSchema([]byte(validScenario)))

	bad := []struct {
		name    string
		content string
	}{
		{"empty document", ""},
		{"wrong delta type", "name: n\ndescription: d\nsteps:\n  - op: advance\n    iter: i\n    delta: two\n"},
		{"unknown op", "name: n\ndescription: d\nsteps:\n  - op: explode\n"},
		{"unknown breach kind", "name: n\ndescription: d\nsteps:\n  - op: clear\n    expect:\n      breach: BOOM\n"},
		{"negative capacity", "name: n\ndescription: d\ncapacity: -1\nsteps:\n  - op: clear\n"},
		{"upper-case name", "name: Bad\ndescription: d\nsteps:\n  - op: clear\n"},
		{"empty steps", "name: n\ndescription: d\nsteps: []\n"},
		{"unknown step field", "name: n\ndescription: d\nsteps:\n  - op: clear\n    iterator: i\n"},
	}
	for _, tt := range bad {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, ValidateSchema([]byte(tt.content)), ErrSchema)
		})
	}
}

func TestDigest_IgnoresFormatting(t *testing.T) {
	a := "name: n\ndescription: d\nsteps:\n  - op: clear\n"
	b := "# comment\ndescription: 'd'\nname:   n\nsteps: [{op: clear}]\n"

	da, err := Digest([]byte(a))
	require.NoError(t, err)
	db, err := Digest([]byte(b))
	require.NoError(t, err)
	assert.Equal(t, da, db)

	dc, err := Digest([]byte("name: n\ndescription: d\nsteps:\n  - op: destroy\n"))
	require.NoError(t, err)
	assert.NotEqual(t, da, dc)
}

func TestDigest_RejectsFloats(t *testing.T) {
	_, err := Digest([]byte("name: n\ncapacity: 1.5\n"))
	assert.Error(t, err)
}

func TestBuiltin(t *testing.T) {
	scenarios, err := Builtin()
	require.NoError(t, err)

	var names []string
	for _, sc := range scenarios {
		names = append(names, sc.Name)
		assert.NotEmpty(t, sc.Digest, sc.Name)
	}
	assert.Equal(t, []string{
		"add_past_end",
		"add_past_end_counting",
		"allocation_failure",
		"begin_const",
		"dead_store",
		"erase_strings",
		"in_place_append",
		"realloc_invalidates",
	}, names)
}

func TestBuiltinScenario(t *testing.T) {
	sc, err := BuiltinScenario("begin_const")
	require.NoError(t, err)
	assert.Equal(t, []any{1, 2, 3}, sc.Initial)

	_, err = BuiltinScenario("missing")
	assert.Error(t, err)
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "b.yaml", "name: b\ndescription: d\nsteps:\n  - op: clear\n")
	writeScenario(t, dir, "a.yml", "name: a\ndescription: d\nsteps:\n  - op: clear\n")
	writeScenario(t, dir, "notes.txt", "ignored")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0755))

	scenarios, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, scenarios, 2)
	assert.Equal(t, "a", scenarios[0].Name)
	assert.Equal(t, "b", scenarios[1].Name)
}

func TestLoadDir_PropagatesErrors(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "bad.yaml", "name: n\n")

	_, err := LoadDir(dir)
	assert.Error(t, err)

	_, err = LoadDir(filepath.Join(dir, "missing"))
	assert.ErrorContains(t, err, "failed to read scenario dir")
}
