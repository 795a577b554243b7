package cli

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/seqguard/internal/harness"
	"github.com/roach88/seqguard/internal/journal"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Builtin     bool   // include the built-in scenarios
	Database    string // journal path, empty disables journaling
	MetricsFile string // Prometheus textfile output, empty disables it
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name     string   `json:"name"`
	Digest   string   `json:"digest,omitempty"`
	Pass     bool     `json:"pass"`
	Steps    int      `json:"steps"`
	Halted   bool     `json:"halted,omitempty"`
	Breaches []string `json:"breaches,omitempty"`
	Errors   []string `json:"errors,omitempty"`
	RunID    string   `json:"run_id,omitempty"`
}

// RunSummary holds the results of a batch of scenarios.
type RunSummary struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

func (s *RunSummary) add(r ScenarioResult) {
	s.Scenarios = append(s.Scenarios, r)
	s.Total++
	if r.Pass {
		s.Passed++
	} else {
		s.Failed++
	}
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run [scenario.yaml | dir]...",
		Short: "Run scenarios against a recording reporter",
		Long: `Run iterator scenarios and report which passed.

Breaches are recorded rather than fatal: the first breach ends a scenario
the way a terminating reporter would end the process. Use probe to die
for real.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (missing files, journal errors, etc.)

Examples:
  seqguard run --builtin
  seqguard run ./scenarios/stale.yaml
  seqguard run ./scenarios --db ./seqguard.db --metrics-file ./seqguard.prom`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Builtin, "builtin", false, "include the built-in scenarios")
	cmd.Flags().StringVar(&opts.Database, "db", rootOpts.Config.DB, "record runs in this SQLite journal")
	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-file", "", "write breach counters to this Prometheus textfile")

	return cmd
}

func runScenarios(opts *RunOptions, paths []string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	if len(paths) == 0 && !opts.Builtin {
		return f.fail(ExitCommandError, ErrCodeGeneric, "no scenarios given (pass files, directories or --builtin)", nil)
	}
	scenarios, err := loadScenarios(paths, opts.Builtin)
	if err != nil {
		return loadFailure(f, err)
	}

	var j *journal.Journal
	if opts.Database != "" {
		j, err = journal.Open(opts.Database)
		if err != nil {
			return f.fail(ExitCommandError, ErrCodeJournal, "failed to open journal", err)
		}
		defer j.Close()
	}

	var (
		registry   *prometheus.Registry
		registerer prometheus.Registerer
	)
	if opts.MetricsFile != "" {
		registry = prometheus.NewRegistry()
		registerer = registry
	}

	summary := RunSummary{Scenarios: make([]ScenarioResult, 0, len(scenarios))}
	for _, sc := range scenarios {
		f.VerboseLog("Running %s", sc.Name)
		res, err := harness.RunWithOptions(sc, harness.Options{
			Logger:     opts.Logger,
			Registerer: registerer,
		})
		sr := summarize(sc, res, err)

		if j != nil && res != nil {
			run, err := j.RecordRun(cmd.Context(), journalRun(sc, res))
			if err != nil {
				return f.fail(ExitCommandError, ErrCodeJournal, "failed to record run", err)
			}
			sr.RunID = run.ID
		}

		if !f.IsJSON() {
			printScenario(f.Writer, sr)
		}
		summary.add(sr)
	}

	if registry != nil {
		if err := prometheus.WriteToTextfile(opts.MetricsFile, registry); err != nil {
			return f.fail(ExitCommandError, ErrCodeWriteFailed, "failed to write metrics file", err)
		}
		f.VerboseLog("Wrote metrics to %s", opts.MetricsFile)
	}

	return outputSummary(f, summary, ErrCodeRunFailed)
}

// summarize converts a harness result, or the error that prevented one,
// into a ScenarioResult.
func summarize(sc *harness.Scenario, res *harness.Result, err error) ScenarioResult {
	sr := ScenarioResult{Name: sc.Name, Digest: sc.Digest}
	if err != nil {
		sr.Errors = []string{fmt.Sprintf("execution failed: %v", err)}
		return sr
	}
	sr.Pass = res.Pass
	sr.Steps = res.Steps
	sr.Halted = res.Halted
	sr.Errors = res.Errors
	for _, b := range res.Breaches {
		sr.Breaches = append(sr.Breaches, string(b.Kind))
	}
	return sr
}

func journalRun(sc *harness.Scenario, res *harness.Result) journal.Run {
	run := journal.Run{
		Scenario: sc.Name,
		Digest:   sc.Digest,
		Pass:     res.Pass,
		Steps:    res.Steps,
		Errors:   res.Errors,
	}
	for _, b := range res.Breaches {
		run.Breaches = append(run.Breaches, journal.Breach{
			Kind:    string(b.Kind),
			Op:      b.Op,
			Message: b.Message,
		})
	}
	return run
}

func printScenario(w io.Writer, sr ScenarioResult) {
	mark := "✓"
	if !sr.Pass {
		mark = "✗"
	}
	fmt.Fprintf(w, "%s %s (%d steps", mark, sr.Name, sr.Steps)
	for _, k := range sr.Breaches {
		fmt.Fprintf(w, ", breach %s", k)
	}
	fmt.Fprintln(w, ")")
	for _, e := range sr.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}

// outputSummary writes the summary and returns ExitFailure when any
// scenario failed.
func outputSummary(f *OutputFormatter, summary RunSummary, failCode string) error {
	var failErr error
	if summary.Failed > 0 {
		failErr = NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", summary.Failed))
	}

	if f.IsJSON() {
		code, msg := "", ""
		if failErr != nil {
			code, msg = failCode, failErr.Error()
		}
		if err := f.Report(summary, code, msg); err != nil {
			return err
		}
		return failErr
	}

	if summary.Total == 0 {
		fmt.Fprintln(f.Writer, "No scenarios found.")
		return nil
	}
	fmt.Fprintln(f.Writer)
	fmt.Fprintf(f.Writer, "Summary: %d passed, %d failed, %d total\n", summary.Passed, summary.Failed, summary.Total)
	if failErr != nil {
		return failErr
	}
	fmt.Fprintln(f.Writer, "✓ All scenarios passed")
	return nil
}
