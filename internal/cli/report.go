package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/seqguard/internal/journal"
)

// ReportOptions holds flags for the report command.
type ReportOptions struct {
	*RootOptions
	Database string
	Scenario string
	Limit    int
}

// JournalReport is the listing printed by report without a run ID.
type JournalReport struct {
	Runs     []journal.Run  `json:"runs"`
	Breaches map[string]int `json:"breaches"`
}

// NewReportCommand creates the report command.
func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "report [run-id]",
		Short: "Show journaled scenario runs",
		Long: `List runs recorded by "seqguard run --db", newest first, with breach
totals per kind. With a run ID, show that run and its breaches.

Examples:
  seqguard report --db ./seqguard.db
  seqguard report --db ./seqguard.db --scenario add_past_end --limit 5
  seqguard report --db ./seqguard.db 01923f8e-...`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", rootOpts.Config.DB, "path to the SQLite journal (required)")
	cmd.Flags().StringVar(&opts.Scenario, "scenario", "", "only list runs of this scenario")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum runs to list (0 = all)")

	return cmd
}

func runReport(opts *ReportOptions, args []string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	if opts.Database == "" {
		return f.fail(ExitCommandError, ErrCodeJournal, "--db is required (or set SEQGUARD_DB)", nil)
	}
	// Open would create a missing file.
	if _, err := os.Stat(opts.Database); errors.Is(err, os.ErrNotExist) {
		return f.fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("database not found: %s", opts.Database), nil)
	}

	j, err := journal.Open(opts.Database)
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeJournal, "failed to open journal", err)
	}
	defer j.Close()

	ctx := cmd.Context()
	if len(args) == 1 {
		run, err := j.GetRun(ctx, args[0])
		if err != nil {
			return f.fail(ExitCommandError, ErrCodeNotFound, "failed to get run", err)
		}
		if f.IsJSON() {
			return f.Success(run)
		}
		printRun(f.Writer, run)
		return nil
	}

	runs, err := j.ListRuns(ctx, opts.Scenario, opts.Limit)
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeJournal, "failed to list runs", err)
	}
	counts, err := j.BreachCounts(ctx)
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeJournal, "failed to count breaches", err)
	}

	if f.IsJSON() {
		return f.Success(JournalReport{Runs: runs, Breaches: counts})
	}
	printRuns(f.Writer, runs, counts)
	return nil
}

func printRuns(w io.Writer, runs []journal.Run, counts map[string]int) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}
	for _, r := range runs {
		status := "pass"
		if !r.Pass {
			status = "FAIL"
		}
		fmt.Fprintf(w, "#%d %s %-24s %s %d steps\n", r.Seq, r.ID, r.Scenario, status, r.Steps)
	}

	if len(counts) > 0 {
		kinds := make([]string, 0, len(counts))
		for k := range counts {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)

		parts := make([]string, len(kinds))
		for i, k := range kinds {
			parts[i] = fmt.Sprintf("%s=%d", k, counts[k])
		}
		fmt.Fprintf(w, "\nBreaches: %s\n", strings.Join(parts, " "))
	}
}

func printRun(w io.Writer, r journal.Run) {
	fmt.Fprintf(w, "Run:      %s (#%d)\n", r.ID, r.Seq)
	fmt.Fprintf(w, "Scenario: %s\n", r.Scenario)
	fmt.Fprintf(w, "Digest:   %s\n", r.Digest)
	fmt.Fprintf(w, "Pass:     %v\n", r.Pass)
	fmt.Fprintf(w, "Steps:    %d\n", r.Steps)
	for _, e := range r.Errors {
		fmt.Fprintf(w, "Error:    %s\n", e)
	}
	for _, b := range r.Breaches {
		fmt.Fprintf(w, "Breach %d: %s in %s: %s\n", b.Seq, b.Kind, b.Op, b.Message)
	}
}
