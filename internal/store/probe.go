package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// LookupProbe returns the cached probe for path when the file size and
// modification time still match.
func (s *Store) LookupProbe(ctx context.Context, path string, size int64, modTime time.Time) (Probe, bool, error) {
	var (
		p        Probe
		modRaw   string
		probed   string
		codec    sql.NullString
		notFound bool
	)
	err := retryOnBusy(ctx, func() error {
		row := s.db.QueryRowContext(ctx,
			"SELECT path, size_bytes, mod_time, duration, width, height, fps, codec, probed_at FROM clip_probe WHERE path = ?", path)
		err := row.Scan(&p.Path, &p.Size, &modRaw, &p.Duration, &p.Width, &p.Height, &p.FPS, &codec, &probed)
		if errors.Is(err, sql.ErrNoRows) {
			notFound = true
			return nil
		}
		return err
	})
	if err != nil {
		return Probe{}, false, fmt.Errorf("lookup probe: %w", err)
	}
	if notFound {
		return Probe{}, false, nil
	}
	p.Codec = codec.String
	p.ModTime, _ = parseTimeString(modRaw)
	p.ProbedAt, _ = parseTimeString(probed)
	if p.Size != size || !p.ModTime.Equal(modTime.UTC()) {
		return Probe{}, false, nil
	}
	return p, true, nil
}

// SaveProbe stores or replaces a probe result.
func (s *Store) SaveProbe(ctx context.Context, p Probe) error {
	if p.ProbedAt.IsZero() {
		p.ProbedAt = time.Now()
	}
	_, err := s.execWithRetry(ctx, `INSERT INTO clip_probe (path, size_bytes, mod_time, duration, width, height, fps, codec, probed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET size_bytes = excluded.size_bytes, mod_time = excluded.mod_time,
			duration = excluded.duration, width = excluded.width, height = excluded.height, fps = excluded.fps,
			codec = excluded.codec, probed_at = excluded.probed_at`,
		p.Path, p.Size, formatTime(p.ModTime), p.Duration, p.Width, p.Height, p.FPS, nullableString(p.Codec), formatTime(p.ProbedAt))
	if err != nil {
		return fmt.Errorf("save probe: %w", err)
	}
	return nil
}
