// Package journal records every batch in a SQLite database so later runs
// can skip sources that were already converted with the same settings.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"squeeze/internal/logging"
	"squeeze/internal/processor"
)

const defaultTimeout = 5 * time.Second

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	operation TEXT NOT NULL,
	variant TEXT NOT NULL DEFAULT '',
	target INTEGER NOT NULL DEFAULT 0,
	started_at INTEGER NOT NULL,
	finished_at INTEGER,
	total INTEGER NOT NULL DEFAULT 0,
	converted INTEGER NOT NULL DEFAULT 0,
	copied INTEGER NOT NULL DEFAULT 0,
	skipped INTEGER NOT NULL DEFAULT 0,
	warnings INTEGER NOT NULL DEFAULT 0,
	errors INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS results (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	name TEXT NOT NULL,
	status TEXT NOT NULL,
	output TEXT NOT NULL DEFAULT '',
	source_size INTEGER NOT NULL DEFAULT 0,
	size INTEGER NOT NULL DEFAULT 0,
	config TEXT NOT NULL DEFAULT '',
	iterations INTEGER NOT NULL DEFAULT 0,
	error TEXT NOT NULL DEFAULT '',
	duration_ms INTEGER NOT NULL DEFAULT 0,
	FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_results_run ON results(run_id);

CREATE TABLE IF NOT EXISTS conversions (
	fingerprint TEXT NOT NULL,
	target INTEGER NOT NULL,
	variant TEXT NOT NULL,
	output TEXT NOT NULL,
	size INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (fingerprint, target, variant)
);
`

// Journal implements processor.Journal on SQLite.
type Journal struct {
	db   *sql.DB
	path string
}

// Run is one recorded batch.
type Run struct {
	ID        string
	Operation processor.Operation
	Variant   string
	Target    int64
	Started   time.Time
	// Finished is zero for a batch that never completed.
	Finished time.Time
	Summary  processor.Summary
}

// Entry is one stored JobResult.
type Entry struct {
	Name   string
	Status string
	Output string
	Size   int64
	Config string
	Error  string
}

// Open creates or opens the journal at path.
func Open(ctx context.Context, path string) (*Journal, error) {
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on", path)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close journal after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to journal: %w", err)
	}

	// Results arrive on a single collector goroutine.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close journal after schema failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize journal schema: %w", err)
	}

	logging.Debug("journal opened at %s", path)
	return &Journal{db: db, path: path}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

// BeginRun registers a new batch and returns its identifier.
func (j *Journal) BeginRun(ctx context.Context, op processor.Operation, variant string, target int64) (string, error) {
	id := uuid.NewString()
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO runs (id, operation, variant, target, started_at) VALUES (?, ?, ?, ?, ?)`,
		id, op.String(), variant, target, time.Now().Unix())
	if err != nil {
		return "", fmt.Errorf("begin run: %w", err)
	}
	return id, nil
}

// FinishRun stores the batch totals.
func (j *Journal) FinishRun(ctx context.Context, runID string, summary processor.Summary) error {
	_, err := j.db.ExecContext(ctx, `
		UPDATE runs SET finished_at = ?, total = ?, converted = ?, copied = ?, skipped = ?, warnings = ?, errors = ?
		WHERE id = ?`,
		time.Now().Unix(), summary.Total, summary.Converted, summary.Copied, summary.Skipped,
		summary.Warnings, summary.Errors, runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// Lookup finds the last conversion of the same content under the same
// target and encoder variant.
func (j *Journal) Lookup(ctx context.Context, fingerprint string, target int64, variant string) (processor.JournalEntry, bool, error) {
	var entry processor.JournalEntry
	err := j.db.QueryRowContext(ctx,
		`SELECT output, size FROM conversions WHERE fingerprint = ? AND target = ? AND variant = ?`,
		fingerprint, target, variant).Scan(&entry.Output, &entry.Size)
	if errors.Is(err, sql.ErrNoRows) {
		return processor.JournalEntry{}, false, nil
	}
	if err != nil {
		return processor.JournalEntry{}, false, fmt.Errorf("lookup: %w", err)
	}
	return entry, true, nil
}

// Record stores res under runID. Converted pictures with a fingerprint
// also become the reusable conversion for their content.
func (j *Journal) Record(ctx context.Context, runID, variant string, res processor.JobResult) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var config, errText string
	if res.Encoded {
		config = res.Config.String()
	}
	if res.Err != nil {
		errText = res.Err.Error()
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO results (run_id, name, status, output, source_size, size, config, iterations, error, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, res.Job.Name, res.Status.String(), res.Output, res.SourceSize, res.Size,
		config, res.Iterations, errText, res.Duration.Milliseconds()); err != nil {
		return fmt.Errorf("record result: %w", err)
	}

	if res.Status == processor.StatusConverted && res.Fingerprint != "" {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO conversions (fingerprint, target, variant, output, size, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (fingerprint, target, variant) DO UPDATE SET
				output = excluded.output, size = excluded.size, updated_at = excluded.updated_at`,
			res.Fingerprint, res.Target, variant, res.Output, res.Size, time.Now().Unix()); err != nil {
			return fmt.Errorf("record conversion: %w", err)
		}
	}

	return tx.Commit()
}

// Results lists the entries recorded for a run in insertion order.
func (j *Journal) Results(ctx context.Context, runID string) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT name, status, output, size, config, error FROM results WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("results: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Name, &e.Status, &e.Output, &e.Size, &e.Config, &e.Error); err != nil {
			return nil, fmt.Errorf("results: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Runs lists the most recent batches, newest first.
func (j *Journal) Runs(ctx context.Context, limit int) ([]Run, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, operation, variant, target, started_at, COALESCE(finished_at, 0),
			total, converted, copied, skipped, warnings, errors
		FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r                 Run
			op                string
			started, finished int64
			s                 = &r.Summary
		)
		if err := rows.Scan(&r.ID, &op, &r.Variant, &r.Target, &started, &finished,
			&s.Total, &s.Converted, &s.Copied, &s.Skipped, &s.Warnings, &s.Errors); err != nil {
			return nil, fmt.Errorf("runs: %w", err)
		}
		if r.Operation, err = processor.ParseOperation(op); err != nil {
			logging.Warn("journal: run %s: %v", r.ID, err)
			continue
		}
		r.Started = time.Unix(started, 0)
		if finished > 0 {
			r.Finished = time.Unix(finished, 0)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
