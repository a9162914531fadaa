package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const runColumns = "id, status, stage, error_kind, error_message, audio_path, output_path, report_path, seed, tempo, entry_count, created_at, updated_at"

// CreateRun inserts a new run row.
func (s *Store) CreateRun(ctx context.Context, run *Run) error {
	if run == nil || run.ID == "" {
		return errors.New("create run: id is required")
	}
	now := time.Now().UTC()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	run.UpdatedAt = now
	_, err := s.execWithRetry(ctx, "INSERT INTO runs ("+runColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		run.ID,
		string(run.Status),
		nullableString(run.Stage),
		nullableString(run.ErrorKind),
		nullableString(run.ErrorMessage),
		run.AudioPath,
		nullableString(run.OutputPath),
		nullableString(run.ReportPath),
		run.Seed,
		run.Tempo,
		run.EntryCount,
		formatTime(run.CreatedAt),
		formatTime(run.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// UpdateRun persists the mutable fields of a run.
func (s *Store) UpdateRun(ctx context.Context, run *Run) error {
	if run == nil || run.ID == "" {
		return errors.New("update run: id is required")
	}
	run.UpdatedAt = time.Now().UTC()
	res, err := s.execWithRetry(ctx, `UPDATE runs SET status = ?, stage = ?, error_kind = ?, error_message = ?,
		output_path = ?, report_path = ?, tempo = ?, entry_count = ?, updated_at = ? WHERE id = ?`,
		string(run.Status),
		nullableString(run.Stage),
		nullableString(run.ErrorKind),
		nullableString(run.ErrorMessage),
		nullableString(run.OutputPath),
		nullableString(run.ReportPath),
		run.Tempo,
		run.EntryCount,
		formatTime(run.UpdatedAt),
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update run %s: not found", run.ID)
	}
	return nil
}

// GetRun fetches a run by id. Returns nil when it does not exist.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	var run *Run
	err := retryOnBusy(ctx, func() error {
		row := s.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", id)
		scanned, err := scanRun(row)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		run = scanned
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first. A limit <= 0 returns all runs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	query := "SELECT " + runColumns + " FROM runs ORDER BY created_at DESC, id"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	var runs []*Run
	err := retryOnBusy(ctx, func() error {
		runs = runs[:0]
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			run, err := scanRun(rows)
			if err != nil {
				return err
			}
			runs = append(runs, run)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		run          Run
		status       string
		stage        sql.NullString
		errorKind    sql.NullString
		errorMessage sql.NullString
		outputPath   sql.NullString
		reportPath   sql.NullString
		createdRaw   string
		updatedRaw   string
	)
	if err := scanner.Scan(
		&run.ID,
		&status,
		&stage,
		&errorKind,
		&errorMessage,
		&run.AudioPath,
		&outputPath,
		&reportPath,
		&run.Seed,
		&run.Tempo,
		&run.EntryCount,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	run.Status = RunStatus(status)
	run.Stage = stage.String
	run.ErrorKind = errorKind.String
	run.ErrorMessage = errorMessage.String
	run.OutputPath = outputPath.String
	run.ReportPath = reportPath.String
	if created, err := parseTimeString(createdRaw); err == nil {
		run.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		run.UpdatedAt = updated
	}
	return &run, nil
}
