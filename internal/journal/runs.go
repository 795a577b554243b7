package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/seqguard/internal/canon"
)

// Run is one journaled scenario execution.
type Run struct {
	// ID is a UUIDv7. RecordRun assigns one when empty.
	ID string `json:"id"`

	Scenario string `json:"scenario"`

	// Digest identifies the scenario content the run executed.
	Digest string `json:"digest"`

	Pass   bool     `json:"pass"`
	Steps  int      `json:"steps"`
	Errors []string `json:"errors,omitempty"`

	// Seq is the journal position, assigned by RecordRun.
	Seq int64 `json:"seq"`

	Breaches []Breach `json:"breaches,omitempty"`
}

// Breach is a journaled breach report.
type Breach struct {
	Seq     int64  `json:"seq"`
	Kind    string `json:"kind"`
	Op      string `json:"op"`
	Message string `json:"message"`
}

// RecordRun writes run and its breaches in one transaction and returns the
// run with ID and Seq filled in.
//
// Runs are not deduplicated: recording an ID that is
// already journaled fails on the primary key and writes nothing. Breaches
// without a Seq are numbered by their position in run.Breaches.
func (j *Journal) RecordRun(ctx context.Context, run Run) (Run, error) {
	if run.ID == "" {
		run.ID = uuid.Must(uuid.NewV7()).String()
	}

	errorsJSON, err := canon.Marshal(run.Errors)
	if err != nil {
		return Run{}, fmt.Errorf("record run: %w", err)
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, fmt.Errorf("record run: begin: %w", err)
	}
	defer tx.Rollback() // no-op after Commit

	// Seq is allocated inside the write transaction, and the pool holds a
	// single connection, so two runs can never share a position.
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM runs`).Scan(&run.Seq); err != nil {
		return Run{}, fmt.Errorf("record run: next seq: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, scenario, digest, pass, steps, errors, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.Scenario,
		run.Digest,
		boolToInt(run.Pass),
		run.Steps,
		string(errorsJSON),
		run.Seq,
	)
	if err != nil {
		return Run{}, fmt.Errorf("record run: %w", err)
	}

	for i := range run.Breaches {
		b := &run.Breaches[i]
		if b.Seq == 0 {
			b.Seq = int64(i + 1)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO breaches (run_id, seq, kind, op, message)
			VALUES (?, ?, ?, ?, ?)
		`, run.ID, b.Seq, b.Kind, b.Op, b.Message)
		if err != nil {
			return Run{}, fmt.Errorf("record breach %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("record run: commit: %w", err)
	}
	return run, nil
}

// ListRuns returns runs newest first. An empty scenario lists every
// scenario; a non-positive limit lists everything. Breaches are not loaded.
//
// Returns an empty slice (not nil) if no runs match.
func (j *Journal) ListRuns(ctx context.Context, scenario string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, scenario, digest, pass, steps, errors, seq
		FROM runs
		WHERE ? = '' OR scenario = ?
		ORDER BY seq DESC
		LIMIT ?
	`, scenario, scenario, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// GetRun returns one run with its breaches.
func (j *Journal) GetRun(ctx context.Context, id string) (Run, error) {
	row := j.db.QueryRowContext(ctx, `
		SELECT id, scenario, digest, pass, steps, errors, seq
		FROM runs
		WHERE id = ?
	`, id)
	run, err := scanRun(row)
	if err != nil {
		return Run{}, err
	}
	run.Breaches, err = j.RunBreaches(ctx, id)
	if err != nil {
		return Run{}, err
	}
	return run, nil
}

// RunBreaches returns the breaches of a run in report order.
func (j *Journal) RunBreaches(ctx context.Context, runID string) ([]Breach, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT seq, kind, op, message
		FROM breaches
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query breaches: %w", err)
	}
	defer rows.Close()

	breaches := []Breach{}
	for rows.Next() {
		var b Breach
		if err := rows.Scan(&b.Seq, &b.Kind, &b.Op, &b.Message); err != nil {
			return nil, fmt.Errorf("scan breach: %w", err)
		}
		breaches = append(breaches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate breaches: %w", err)
	}
	return breaches, nil
}

// BreachCounts returns the number of journaled breaches per kind.
func (j *Journal) BreachCounts(ctx context.Context) (map[string]int, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT kind, COUNT(*) FROM breaches GROUP BY kind ORDER BY kind
	`)
	if err != nil {
		return nil, fmt.Errorf("query breach counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scan breach count: %w", err)
		}
		counts[kind] = n
	}
	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var run Run
	var pass int
	var errorsJSON string
	err := row.Scan(&run.ID, &run.Scenario, &run.Digest, &pass, &run.Steps, &errorsJSON, &run.Seq)
	if err == sql.ErrNoRows {
		return Run{}, fmt.Errorf("run not found: %w", err)
	}
	if err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.Pass = pass == 1
	if err := json.Unmarshal([]byte(errorsJSON), &run.Errors); err != nil {
		return Run{}, fmt.Errorf("decode run errors: %w", err)
	}
	if len(run.Errors) == 0 {
		run.Errors = nil
	}
	return run, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
