package harness

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/seqguard/internal/canon"
)

// GoldenDir is where golden traces live, relative to the test's package.
const GoldenDir = "testdata/golden"

// TraceSnapshot captures the complete trace for a scenario execution.
// All fields use canonical JSON serialization for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string
	Trace        []TraceEvent
	State        FinalState
}

// NewSnapshot builds the snapshot of result under name.
func NewSnapshot(name string, result *Result) TraceSnapshot {
	return TraceSnapshot{
		ScenarioName: name,
		Trace:        result.Trace,
		State:        result.State,
	}
}

// toCanonicalMap converts the snapshot into values canon.Marshal accepts.
// Optional fields are omitted rather than written as null.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, ev := range s.Trace {
		m := map[string]any{
			"seq": ev.Seq,
			"op":  ev.Op,
		}
		if ev.Destroyed {
			m["destroyed"] = true
		} else {
			m["generation"] = ev.Generation
		}
		if ev.Iterator != "" {
			m["iterator"] = ev.Iterator
		}
		if ev.Index != nil {
			m["index"] = *ev.Index
		}
		if ev.Breach != "" {
			m["breach"] = ev.Breach
		}
		if ev.Value != nil {
			m["value"] = ev.Value
		}
		if ev.Error != "" {
			m["error"] = ev.Error
		}
		traceList[i] = m
	}

	state := map[string]any{
		"destroyed": s.State.Destroyed,
		"len":       s.State.Len,
		"cap":       s.State.Cap,
		"values":    append([]any{}, s.State.Values...),
	}
	if !s.State.Destroyed {
		state["generation"] = s.State.Generation
	}
	if s.State.Outstanding != nil {
		state["outstanding"] = *s.State.Outstanding
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         traceList,
		"state":         state,
	}
}

// Marshal returns the canonical JSON of the snapshot.
func (s *TraceSnapshot) Marshal() ([]byte, error) {
	return canon.Marshal(s.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares the given result's trace against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := NewSnapshot(scenarioName, result)
	traceJSON, err := snapshot.Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)
	return nil
}

// GoldenPath returns the golden file of a scenario inside dir.
func GoldenPath(dir, scenarioName string) string {
	return filepath.Join(dir, scenarioName+".golden")
}

// ErrNoGolden is returned by CheckGolden when the golden file is missing.
var ErrNoGolden = errors.New("golden file not found")

// CheckGolden compares result with its golden file outside of go test, in
// the same format RunWithGolden uses. It returns the canonical trace so
// callers can show or store it.
func CheckGolden(dir, scenarioName string, result *Result) (bool, []byte, error) {
	snapshot := NewSnapshot(scenarioName, result)
	got, err := snapshot.Marshal()
	if err != nil {
		return false, nil, err
	}
	want, err := os.ReadFile(GoldenPath(dir, scenarioName))
	if errors.Is(err, fs.ErrNotExist) {
		return false, got, fmt.Errorf("%w: %s", ErrNoGolden, GoldenPath(dir, scenarioName))
	}
	if err != nil {
		return false, got, fmt.Errorf("failed to read golden file: %w", err)
	}
	return bytes.Equal(want, got), got, nil
}

// WriteGolden writes result's canonical trace to its golden file.
func WriteGolden(dir, scenarioName string, result *Result) error {
	snapshot := NewSnapshot(scenarioName, result)
	data, err := snapshot.Marshal()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create golden dir: %w", err)
	}
	if err := os.WriteFile(GoldenPath(dir, scenarioName), data, 0o644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}
