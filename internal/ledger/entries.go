package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Outcome describes how a copy attempt ended.
type Outcome string

const (
	OutcomeCopied Outcome = "copied"
	OutcomeFailed Outcome = "failed"
)

// Entry is one recorded copy attempt.
type Entry struct {
	ID          int64
	RunID       string
	Source      string
	Destination string
	Outcome     Outcome
	Bytes       int64
	Error       string
	ErrorKind   string
	Duration    time.Duration
	RecordedAt  time.Time
}

// Summary aggregates entries for a run or the whole history.
type Summary struct {
	Copied int64
	Failed int64
	Bytes  int64
}

// Filter narrows Recent. Zero values match everything.
type Filter struct {
	RunID   string
	Outcome Outcome
	Limit   int
}

const entryColumns = `id, run_id, source_path, destination_path, outcome, bytes,
    error_message, error_kind, duration_ms, recorded_at`

// Record inserts a copy attempt. RecordedAt defaults to now.
func (s *Store) Record(ctx context.Context, entry Entry) error {
	if entry.Outcome != OutcomeCopied && entry.Outcome != OutcomeFailed {
		return fmt.Errorf("record copy result: unknown outcome %q", entry.Outcome)
	}
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = time.Now()
	}
	_, err := s.execWithRetry(ctx,
		`INSERT INTO copy_results (
            run_id, source_path, destination_path, outcome, bytes,
            error_message, error_kind, duration_ms, recorded_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.RunID,
		entry.Source,
		nullableString(entry.Destination),
		string(entry.Outcome),
		entry.Bytes,
		nullableString(entry.Error),
		nullableString(entry.ErrorKind),
		entry.Duration.Milliseconds(),
		entry.RecordedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record copy result: %w", err)
	}
	return nil
}

// Recent returns the newest entries first.
func (s *Store) Recent(ctx context.Context, filter Filter) ([]Entry, error) {
	ctx = ensureContext(ctx)
	var (
		clauses []string
		args    []any
	)
	if filter.RunID != "" {
		clauses = append(clauses, "run_id = ?")
		args = append(args, filter.RunID)
	}
	if filter.Outcome != "" {
		clauses = append(clauses, "outcome = ?")
		args = append(args, string(filter.Outcome))
	}
	query := `SELECT ` + entryColumns + ` FROM copy_results`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list copy results: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Summarize totals the history, optionally restricted to one run.
func (s *Store) Summarize(ctx context.Context, runID string) (Summary, error) {
	ctx = ensureContext(ctx)
	query := `SELECT
            COALESCE(SUM(CASE WHEN outcome = 'copied' THEN 1 ELSE 0 END), 0),
            COALESCE(SUM(CASE WHEN outcome = 'failed' THEN 1 ELSE 0 END), 0),
            COALESCE(SUM(bytes), 0)
        FROM copy_results`
	var args []any
	if runID != "" {
		query += " WHERE run_id = ?"
		args = append(args, runID)
	}
	var summary Summary
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&summary.Copied, &summary.Failed, &summary.Bytes); err != nil {
		return Summary{}, fmt.Errorf("summarize copy results: %w", err)
	}
	return summary, nil
}

// Prune deletes entries recorded before cutoff and reports how many were removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execWithRetry(ctx,
		"DELETE FROM copy_results WHERE recorded_at < ?",
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("prune copy results: %w", err)
	}
	return res.RowsAffected()
}

func scanEntry(scanner interface{ Scan(dest ...any) error }) (Entry, error) {
	var (
		entry       Entry
		destination sql.NullString
		outcome     string
		errMessage  sql.NullString
		errKind     sql.NullString
		durationMS  int64
		recordedAt  string
	)
	if err := scanner.Scan(
		&entry.ID,
		&entry.RunID,
		&entry.Source,
		&destination,
		&outcome,
		&entry.Bytes,
		&errMessage,
		&errKind,
		&durationMS,
		&recordedAt,
	); err != nil {
		return Entry{}, fmt.Errorf("scan copy result: %w", err)
	}
	entry.Destination = destination.String
	entry.Outcome = Outcome(outcome)
	entry.Error = errMessage.String
	entry.ErrorKind = errKind.String
	entry.Duration = time.Duration(durationMS) * time.Millisecond
	ts, err := time.Parse(time.RFC3339Nano, recordedAt)
	if err != nil {
		return Entry{}, fmt.Errorf("parse recorded_at %q: %w", recordedAt, err)
	}
	entry.RecordedAt = ts
	return entry, nil
}
