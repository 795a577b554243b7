package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/seqguard/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Builtin   bool   // test the built-in scenarios
	GoldenDir string // golden trace directory
	Update    bool   // regenerate golden files
	Filter    string // scenario filter (glob pattern)
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test [scenarios-dir]",
		Short: "Run scenarios and compare golden traces",
		Long: `Run every scenario in a directory and compare its canonical trace
with the golden file <golden-dir>/<name>.golden.

A scenario passes when its expectations and assertions hold and its trace
matches the golden file. Scenarios without a golden file are checked by
assertions only. --update rewrites the golden files instead.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  seqguard test ./scenarios
  seqguard test ./scenarios --filter "stale_*"
  seqguard test ./scenarios --update
  seqguard test --builtin --golden-dir internal/harness/testdata/golden`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Builtin, "builtin", false, "test the built-in scenarios")
	cmd.Flags().StringVar(&opts.GoldenDir, "golden-dir", rootOpts.Config.GoldenDir, "golden trace directory")
	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, args []string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	if len(args) == 0 && !opts.Builtin {
		return f.fail(ExitCommandError, ErrCodeGeneric, "no scenarios directory given (pass a directory or --builtin)", nil)
	}
	for _, dir := range args {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			return f.fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("scenarios directory not found: %s", dir), nil)
		}
	}
	if opts.Filter != "" {
		if _, err := filepath.Match(opts.Filter, ""); err != nil {
			return f.fail(ExitCommandError, ErrCodeGeneric, "invalid filter pattern", err)
		}
	}

	scenarios, err := loadScenarios(args, opts.Builtin)
	if err != nil {
		return loadFailure(f, err)
	}

	summary := RunSummary{Scenarios: []ScenarioResult{}}
	for _, sc := range scenarios {
		if opts.Filter != "" {
			if ok, _ := filepath.Match(opts.Filter, sc.Name); !ok {
				continue
			}
		}
		sr := testScenario(opts, f, sc)
		if !f.IsJSON() {
			printScenario(f.Writer, sr)
		}
		summary.add(sr)
	}

	return outputSummary(f, summary, ErrCodeGoldenFailed)
}

// testScenario runs sc and checks or rewrites its golden trace.
func testScenario(opts *TestOptions, f *OutputFormatter, sc *harness.Scenario) ScenarioResult {
	res, err := harness.RunWithOptions(sc, harness.Options{Logger: opts.Logger})
	sr := summarize(sc, res, err)
	if err != nil {
		return sr
	}

	if opts.Update {
		if err := harness.WriteGolden(opts.GoldenDir, sc.Name, res); err != nil {
			sr.Pass = false
			sr.Errors = append(sr.Errors, fmt.Sprintf("failed to update golden file: %v", err))
			return sr
		}
		f.VerboseLog("Updated %s", harness.GoldenPath(opts.GoldenDir, sc.Name))
		return sr
	}

	match, _, err := harness.CheckGolden(opts.GoldenDir, sc.Name, res)
	switch {
	case errors.Is(err, harness.ErrNoGolden):
		f.VerboseLog("No golden file for %s, assertions only", sc.Name)
	case err != nil:
		sr.Pass = false
		sr.Errors = append(sr.Errors, fmt.Sprintf("golden comparison failed: %v", err))
	case !match:
		sr.Pass = false
		sr.Errors = append(sr.Errors, "trace does not match golden file (run with --update to regenerate)")
	}
	return sr
}
