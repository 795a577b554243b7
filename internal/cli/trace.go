package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/seqguard/internal/harness"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Builtin string // built-in scenario name
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace [scenario.yaml]",
		Short: "Print the step trace of a scenario",
		Long: `Run one scenario and print its step trace and final store state.

The text form shows one line per step: the iterator bound or used, its
index, the store generation after the step and any breach. The JSON form
is the canonical snapshot stored in golden files.

Examples:
  seqguard trace --builtin realloc_invalidates
  seqguard trace ./scenarios/stale.yaml --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Builtin, "builtin", "", "trace the named built-in scenario")

	return cmd
}

func runTrace(opts *TraceOptions, args []string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	sc, err := probeScenario(&ProbeOptions{RootOptions: opts.RootOptions, Builtin: opts.Builtin}, args)
	if err != nil {
		return loadFailure(f, err)
	}

	res, err := harness.RunWithOptions(sc, harness.Options{Logger: opts.Logger})
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeLoadFailed, fmt.Sprintf("cannot run %s", sc.Name), err)
	}

	if f.IsJSON() {
		snap := harness.NewSnapshot(sc.Name, res)
		data, err := snap.Marshal()
		if err != nil {
			return f.fail(ExitCommandError, ErrCodeGeneric, "failed to marshal trace", err)
		}
		return f.Success(json.RawMessage(data))
	}

	printTrace(f.Writer, sc.Name, res)
	return nil
}

func printTrace(w io.Writer, name string, res *harness.Result) {
	fmt.Fprintf(w, "Scenario: %s\n\n", name)
	for _, ev := range res.Trace {
		fmt.Fprintf(w, "[%d] %s", ev.Seq, ev.Op)
		if ev.Iterator != "" {
			fmt.Fprintf(w, " %s", ev.Iterator)
		}
		if ev.Index != nil {
			fmt.Fprintf(w, " @%d", *ev.Index)
		}
		if ev.Value != nil {
			fmt.Fprintf(w, " = %v", ev.Value)
		}
		if ev.Destroyed {
			fmt.Fprint(w, " (destroyed)")
		} else {
			fmt.Fprintf(w, " (gen %d)", ev.Generation)
		}
		if ev.Breach != "" {
			fmt.Fprintf(w, " BREACH %s", ev.Breach)
		}
		if ev.Error != "" {
			fmt.Fprintf(w, " error: %s", ev.Error)
		}
		fmt.Fprintln(w)
	}

	st := res.State
	fmt.Fprintln(w)
	if st.Destroyed {
		fmt.Fprintln(w, "State: destroyed")
	} else {
		fmt.Fprintf(w, "State: len=%d cap=%d gen=%d values=%v\n", st.Len, st.Cap, st.Generation, st.Values)
	}
	if st.Outstanding != nil {
		fmt.Fprintf(w, "Outstanding: %d\n", *st.Outstanding)
	}
	if res.Halted {
		fmt.Fprintln(w, "Halted by breach")
	}
}
