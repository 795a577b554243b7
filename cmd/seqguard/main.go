// Command seqguard runs iterator contract scenarios against a
// generation-checked sequence store.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/roach88/seqguard/internal/breach"
	"github.com/roach88/seqguard/internal/cli"
	"github.com/roach88/seqguard/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.ExitCommandError)
	}

	level, err := cfg.Level()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.ExitCommandError)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	breach.SetReporter(cfg.Reporter(logger))

	if err := cli.NewRootCommand(cfg, logger).Execute(); err != nil {
		// ExitErrors were already reported by the command.
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
