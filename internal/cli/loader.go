package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/seqguard/internal/harness"
)

// LoadError represents an error that occurred while resolving scenarios.
type LoadError struct {
	Code    string
	Path    string
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Path, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// loadScenarios resolves scenario files and directories, plus the
// built-in set when builtin is set. Directories load every *.yaml and
// *.yml file in them.
func loadScenarios(paths []string, builtin bool) ([]*harness.Scenario, error) {
	var out []*harness.Scenario
	if builtin {
		scenarios, err := harness.Builtin()
		if err != nil {
			return nil, &LoadError{Code: ErrCodeLoadFailed, Message: "failed to load built-in scenarios", Err: err}
		}
		out = append(out, scenarios...)
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if errors.Is(err, os.ErrNotExist) {
			return nil, &LoadError{Code: ErrCodeNotFound, Path: path, Message: "not found", Err: err}
		}
		if err != nil {
			return nil, &LoadError{Code: ErrCodeNotFound, Path: path, Message: "cannot access", Err: err}
		}

		if info.IsDir() {
			scenarios, err := harness.LoadDir(path)
			if err != nil {
				return nil, scenarioLoadError(err)
			}
			out = append(out, scenarios...)
			continue
		}

		sc, err := harness.LoadScenario(path)
		if err != nil {
			return nil, scenarioLoadError(err)
		}
		out = append(out, sc)
	}
	return out, nil
}

// scenarioLoadError wraps a harness load error. Those already name the
// offending file.
func scenarioLoadError(err error) *LoadError {
	code := ErrCodeLoadFailed
	if errors.Is(err, harness.ErrSchema) {
		code = ErrCodeSchema
	}
	return &LoadError{Code: code, Message: err.Error(), Err: err}
}

// loadFailure turns a loadScenarios error into a command error.
func loadFailure(f *OutputFormatter, err error) error {
	var le *LoadError
	if errors.As(err, &le) {
		_ = f.Error(le.Code, le.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load scenarios", err)
	}
	return f.fail(ExitCommandError, ErrCodeGeneric, "failed to load scenarios", err)
}
