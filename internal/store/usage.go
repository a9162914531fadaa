package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// RecordUsage increments the usage count of every clip in clipIDs (once per
// occurrence) and appends them to the cooldown history in order. The whole
// batch commits atomically.
func (s *Store) RecordUsage(ctx context.Context, runID string, clipIDs []string, at time.Time) error {
	if len(clipIDs) == 0 {
		return nil
	}
	if runID == "" {
		return errors.New("record usage: run id is required")
	}
	stamp := formatTime(at)
	return s.withWriteLock(ctx, func(tx *sql.Tx) error {
		upsert, err := tx.PrepareContext(ctx, `INSERT INTO clip_usage (clip_id, use_count, last_used_at) VALUES (?, 1, ?)
			ON CONFLICT(clip_id) DO UPDATE SET use_count = use_count + 1, last_used_at = excluded.last_used_at`)
		if err != nil {
			return fmt.Errorf("prepare usage upsert: %w", err)
		}
		defer upsert.Close()
		history, err := tx.PrepareContext(ctx, "INSERT INTO usage_history (clip_id, run_id, used_at) VALUES (?, ?, ?)")
		if err != nil {
			return fmt.Errorf("prepare usage history: %w", err)
		}
		defer history.Close()

		for _, id := range clipIDs {
			if id == "" {
				return errors.New("record usage: empty clip id")
			}
			if _, err := upsert.ExecContext(ctx, id, stamp); err != nil {
				return fmt.Errorf("increment usage for %s: %w", id, err)
			}
			if _, err := history.ExecContext(ctx, id, runID, stamp); err != nil {
				return fmt.Errorf("append usage history for %s: %w", id, err)
			}
		}
		return nil
	})
}

// Usage returns the persisted usage of the given clips. Clips never used are
// absent from the map.
func (s *Store) Usage(ctx context.Context, clipIDs []string) (map[string]Usage, error) {
	result := make(map[string]Usage, len(clipIDs))
	const batch = 500
	for start := 0; start < len(clipIDs); start += batch {
		end := min(start+batch, len(clipIDs))
		chunk := clipIDs[start:end]
		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}
		query := "SELECT clip_id, use_count, last_used_at FROM clip_usage WHERE clip_id IN (" + makePlaceholders(len(chunk)) + ")"
		if err := s.queryUsage(ctx, query, args, func(u Usage) { result[u.ClipID] = u }); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// AllUsage returns every clip with recorded usage, most used first.
func (s *Store) AllUsage(ctx context.Context) ([]Usage, error) {
	var out []Usage
	query := "SELECT clip_id, use_count, last_used_at FROM clip_usage ORDER BY use_count DESC, clip_id"
	if err := s.queryUsage(ctx, query, nil, func(u Usage) { out = append(out, u) }); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) queryUsage(ctx context.Context, query string, args []any, fn func(Usage)) error {
	return retryOnBusy(ctx, func() error {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("query usage: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var (
				u        Usage
				lastUsed sql.NullString
			)
			if err := rows.Scan(&u.ClipID, &u.Count, &lastUsed); err != nil {
				return fmt.Errorf("scan usage: %w", err)
			}
			u.LastUsedAt = parseNullTime(lastUsed)
			fn(u)
		}
		return rows.Err()
	})
}

// RecentClipIDs returns up to limit clip IDs from the cooldown history,
// oldest first, so the last element is the most recently used clip.
func (s *Store) RecentClipIDs(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}
	var ids []string
	err := retryOnBusy(ctx, func() error {
		ids = ids[:0]
		rows, err := s.db.QueryContext(ctx, "SELECT clip_id FROM usage_history ORDER BY id DESC LIMIT ?", limit)
		if err != nil {
			return fmt.Errorf("query usage history: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return fmt.Errorf("scan usage history: %w", err)
			}
			ids = append(ids, id)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
	return ids, nil
}

// ResetUsage clears usage counts and cooldown history.
func (s *Store) ResetUsage(ctx context.Context) (int64, error) {
	var removed int64
	err := s.withWriteLock(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM clip_usage")
		if err != nil {
			return fmt.Errorf("clear usage: %w", err)
		}
		removed, _ = res.RowsAffected()
		if _, err := tx.ExecContext(ctx, "DELETE FROM usage_history"); err != nil {
			return fmt.Errorf("clear usage history: %w", err)
		}
		return nil
	})
	return removed, err
}
