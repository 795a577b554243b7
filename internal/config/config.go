// Package config loads seqguard settings from the environment.
//
// A .env file in the working directory is read first when present; real
// environment variables always win over it.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/roach88/seqguard/internal/breach"
)

// Breach modes.
const (
	ModeTerminate = "terminate"
	ModeRecord    = "record"
)

var (
	ErrParsingConfig = errors.New("failed to parse config")
	ErrInvalidConfig = errors.New("invalid config")
)

// Config is the process configuration.
type Config struct {
	// DB is the run journal path. Empty disables the journal.
	DB string `env:"SEQGUARD_DB"`

	LogLevel string `env:"SEQGUARD_LOG_LEVEL" envDefault:"info"`

	// BreachMode selects the process-wide reporter: terminate or record.
	BreachMode string `env:"SEQGUARD_BREACH_MODE" envDefault:"terminate"`

	// ExitCode is the status a terminating reporter exits with.
	ExitCode int `env:"SEQGUARD_EXIT_CODE" envDefault:"134"`

	GoldenDir string `env:"SEQGUARD_GOLDEN_DIR" envDefault:"testdata/golden"`
}

// Load reads the given .env files (default ".env"), then parses the
// environment into a Config. Missing .env files are not an error.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, errors.Join(ErrParsingConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks enumerated fields.
func (c Config) Validate() error {
	switch c.BreachMode {
	case ModeTerminate, ModeRecord:
	default:
		return fmt.Errorf("%w: SEQGUARD_BREACH_MODE %q (want terminate or record)", ErrInvalidConfig, c.BreachMode)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.ExitCode < 0 || c.ExitCode > 255 {
		return fmt.Errorf("%w: SEQGUARD_EXIT_CODE %d out of range", ErrInvalidConfig, c.ExitCode)
	}
	return nil
}

// Level returns the configured slog level.
func (c Config) Level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("%w: SEQGUARD_LOG_LEVEL %q", ErrInvalidConfig, c.LogLevel)
	}
	return lvl, nil
}

// Reporter builds the process-wide breach reporter for the configured mode.
func (c Config) Reporter(logger *slog.Logger) breach.Reporter {
	if c.BreachMode == ModeRecord {
		return breach.NewRecorder()
	}
	t := breach.NewTerminator(c.ExitCode)
	t.Logger = logger
	return t
}
