package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/seqguard/internal/harness"
)

// FileValidation is the validation outcome of one scenario file.
type FileValidation struct {
	Path   string `json:"path"`
	Name   string `json:"name,omitempty"`
	Digest string `json:"digest,omitempty"`
	Valid  bool   `json:"valid"`
	Code   string `json:"code,omitempty"`
	Error  string `json:"error,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid bool             `json:"valid"`
	Files []FileValidation `json:"files"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <scenario.yaml>...",
		Short: "Validate scenario files without running them",
		Long: `Check scenario files against the scenario schema, then decode them
strictly and verify that every iterator is bound before use.

Faster than run for development feedback: nothing is executed.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	result := ValidationResult{Valid: true, Files: make([]FileValidation, 0, len(paths))}
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return f.fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("file not found: %s", path), nil)
			}
			return f.fail(ExitCommandError, ErrCodeLoadFailed, fmt.Sprintf("cannot read %s", path), err)
		}

		f.VerboseLog("Validating %s", path)
		fv := validateFile(path, data)
		if !fv.Valid {
			result.Valid = false
		}
		result.Files = append(result.Files, fv)
	}

	if f.IsJSON() {
		code, msg := "", ""
		if !result.Valid {
			code, msg = firstInvalid(result.Files)
		}
		if err := f.Report(result, code, msg); err != nil {
			return err
		}
	} else {
		for _, fv := range result.Files {
			if fv.Valid {
				fmt.Fprintf(f.Writer, "✓ %s (%s)\n", fv.Path, fv.Name)
				continue
			}
			fmt.Fprintf(f.Writer, "✗ %s\n  %s: %s\n", fv.Path, fv.Code, fv.Error)
		}
	}

	if !result.Valid {
		// Validation failures = exit code 1 (test/validation failure)
		return NewExitError(ExitFailure, "validation failed")
	}
	if !f.IsJSON() {
		fmt.Fprintln(f.Writer, "✓ All scenarios valid")
	}
	return nil
}

// validateFile applies the schema first, then the strict decoder.
func validateFile(path string, data []byte) FileValidation {
	fv := FileValidation{Path: path}
	if err := harness.ValidateSchema(data); err != nil {
		fv.Code, fv.Error = ErrCodeSchema, err.Error()
		return fv
	}
	sc, err := harness.ParseScenario(data)
	if err != nil {
		fv.Code, fv.Error = ErrCodeLoadFailed, err.Error()
		return fv
	}
	fv.Valid = true
	fv.Name = sc.Name
	fv.Digest = sc.Digest
	return fv
}

func firstInvalid(files []FileValidation) (string, string) {
	for _, fv := range files {
		if !fv.Valid {
			return fv.Code, fmt.Sprintf("%s: %s", fv.Path, fv.Error)
		}
	}
	return "", ""
}
