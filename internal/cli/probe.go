package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/seqguard/internal/breach"
	"github.com/roach88/seqguard/internal/harness"
)

// ProbeOptions holds flags for the probe command.
type ProbeOptions struct {
	*RootOptions
	Builtin  string // built-in scenario name
	ExitCode int
}

// NewProbeCommand creates the probe command.
func NewProbeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ProbeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "probe [scenario.yaml]",
		Short: "Run one scenario against the process-wide reporter",
		Long: `Run one scenario with breaches delivered to the process-wide reporter.

With the default terminate mode the first breach logs the breach and ends
the process with the configured exit code (134 unless SEQGUARD_EXIT_CODE
says otherwise). A scenario that expects a breach therefore passes when
the process dies with that code. --exit-code forces a terminating reporter
with the given code regardless of SEQGUARD_BREACH_MODE.

Examples:
  seqguard probe --builtin add_past_end; echo $?
  seqguard probe ./scenarios/stale.yaml --exit-code 3`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProbe(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Builtin, "builtin", "", "probe the named built-in scenario")
	cmd.Flags().IntVar(&opts.ExitCode, "exit-code", rootOpts.Config.ExitCode, "exit code of the terminating reporter")

	return cmd
}

func runProbe(opts *ProbeOptions, args []string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	sc, err := probeScenario(opts, args)
	if err != nil {
		return loadFailure(f, err)
	}

	reporter := breach.Current()
	if cmd.Flags().Changed("exit-code") {
		if opts.ExitCode < 0 || opts.ExitCode > 255 {
			return f.fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("exit code %d out of range", opts.ExitCode), nil)
		}
		t := breach.NewTerminator(opts.ExitCode)
		t.Logger = opts.Logger
		t.Exit = opts.Exit
		reporter = t
	}

	f.VerboseLog("Probing %s", sc.Name)
	res, err := harness.RunWithOptions(sc, harness.Options{
		Reporter: reporter,
		Logger:   opts.Logger,
	})
	sr := summarize(sc, res, err)

	// Still running: the reporter returned, or no breach happened.
	if f.IsJSON() {
		code, msg := "", ""
		if !sr.Pass {
			code, msg = ErrCodeRunFailed, "scenario failed"
		}
		if err := f.Report(sr, code, msg); err != nil {
			return err
		}
	} else {
		printScenario(f.Writer, sr)
	}
	if !sr.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", sc.Name))
	}
	return nil
}

func probeScenario(opts *ProbeOptions, args []string) (*harness.Scenario, error) {
	switch {
	case opts.Builtin != "" && len(args) > 0:
		return nil, &LoadError{Code: ErrCodeGeneric, Message: "pass a scenario file or --builtin, not both"}
	case opts.Builtin != "":
		sc, err := harness.BuiltinScenario(opts.Builtin)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: err.Error(), Err: err}
		}
		return sc, nil
	case len(args) == 1:
		scenarios, err := loadScenarios(args, false)
		if err != nil {
			return nil, err
		}
		if len(scenarios) != 1 {
			return nil, &LoadError{Code: ErrCodeGeneric, Path: args[0], Message: "probe takes exactly one scenario"}
		}
		return scenarios[0], nil
	default:
		return nil, &LoadError{Code: ErrCodeGeneric, Message: "no scenario given (pass a file or --builtin)"}
	}
}
