package library

import (
	"cmp"
	"context"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"slices"
	"sync"
	"time"

	"beatcut/internal/config"
	"beatcut/internal/logging"
	"beatcut/internal/services"
	"beatcut/internal/store"
)

// UsageStore persists clip usage counts and the cooldown history.
type UsageStore interface {
	Usage(ctx context.Context, clipIDs []string) (map[string]store.Usage, error)
	RecordUsage(ctx context.Context, runID string, clipIDs []string, at time.Time) error
	RecentClipIDs(ctx context.Context, limit int) ([]string, error)
}

// SkippedClip records a catalog entry that could not be used.
type SkippedClip struct {
	ID     string
	Path   string
	Reason string
}

// Index is the in-memory clip catalog joined with persisted usage.
type Index struct {
	mu      sync.RWMutex
	clips   []Clip
	byID    map[string]int
	usage   UsageStore
	skipped []SkippedClip
	source  string
	now     func() time.Time
}

// Open loads the configured library source, probes clips lacking metadata and
// merges persisted usage. The scanner database wins over the catalog file
// when both are configured.
func Open(ctx context.Context, cfg *config.Config, usage UsageStore, logger *slog.Logger) (*Index, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "library", "open", "Configuration unavailable", nil)
	}
	logger = logging.NewComponentLogger(logger, "library")

	var (
		clips  []Clip
		source string
		err    error
	)
	switch {
	case cfg.Library.ScanDB != "":
		source = cfg.Library.ScanDB
		clips, err = LoadScanDB(ctx, source)
	case cfg.Library.Catalog != "":
		source = cfg.Library.Catalog
		clips, err = LoadCatalog(source)
	default:
		err = services.Wrap(services.ErrLibrary, "library", "open", "No library source configured (set library.scan_db or library.catalog)", nil)
	}
	if err != nil {
		return nil, err
	}

	clips, missing := dropMissingFiles(clips)
	prober := &FFprobeProber{Binary: cfg.Encoding.FFprobeBinary, Logger: logger}
	if cache, ok := usage.(ProbeCache); ok {
		prober.Cache = cache
	}
	clips, unprobed := fillMetadata(ctx, prober, clips)
	skipped := append(missing, unprobed...)
	for _, s := range skipped {
		logging.WarnWithContext(logger, "clip skipped", "clip_skipped",
			logging.String("clip_id", s.ID),
			logging.String("path", s.Path),
			logging.String("reason", s.Reason),
			logging.String(logging.FieldErrorHint, "check the file exists and ffprobe can read it"),
			logging.String(logging.FieldImpact, "clip excluded from selection"),
		)
	}
	if len(clips) == 0 {
		return nil, services.Wrap(services.ErrLibrary, "library", "open",
			fmt.Sprintf("No usable clips in %s (%d skipped)", source, len(skipped)), nil)
	}

	idx, err := NewIndex(ctx, clips, usage)
	if err != nil {
		return nil, err
	}
	idx.skipped = skipped
	idx.source = source
	logger.Info("library loaded",
		logging.String("source", source),
		logging.Int("clips", idx.Len()),
		logging.Int("skipped", len(skipped)),
	)
	return idx, nil
}

// NewIndex builds an index over clips. Clip IDs must be unique.
func NewIndex(ctx context.Context, clips []Clip, usage UsageStore) (*Index, error) {
	sorted := slices.Clone(clips)
	slices.SortFunc(sorted, func(a, b Clip) int { return cmp.Compare(a.ID, b.ID) })
	byID := make(map[string]int, len(sorted))
	for i, clip := range sorted {
		if clip.ID == "" {
			return nil, services.Wrap(services.ErrLibrary, "library", "index", "Clip without id", nil)
		}
		if _, dup := byID[clip.ID]; dup {
			return nil, services.Wrap(services.ErrLibrary, "library", "index", fmt.Sprintf("Duplicate clip id %q", clip.ID), nil)
		}
		byID[clip.ID] = i
	}
	idx := &Index{clips: sorted, byID: byID, usage: usage, now: time.Now}
	if err := idx.refreshUsage(ctx); err != nil {
		return nil, err
	}
	return idx, nil
}

// Len returns the number of indexed clips.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.clips)
}

// Source names where the clips were loaded from.
func (idx *Index) Source() string {
	return idx.source
}

// Skipped lists entries dropped while loading.
func (idx *Index) Skipped() []SkippedClip {
	return slices.Clone(idx.skipped)
}

// Clip returns the clip with the given id.
func (idx *Index) Clip(id string) (Clip, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	i, ok := idx.byID[id]
	if !ok {
		return Clip{}, false
	}
	return cloneClip(idx.clips[i]), true
}

// ListCandidates returns a finite, restartable sequence of clips matching
// filter, ordered by id. Usage is re-read from the store so counts recorded by
// other runs are visible.
func (idx *Index) ListCandidates(ctx context.Context, filter Filter) (iter.Seq[Clip], error) {
	if err := idx.refreshUsage(ctx); err != nil {
		return nil, err
	}
	idx.mu.RLock()
	snapshot := slices.Clone(idx.clips)
	idx.mu.RUnlock()

	return func(yield func(Clip) bool) {
		for _, clip := range snapshot {
			if !filter.Match(clip) {
				continue
			}
			if !yield(cloneClip(clip)) {
				return
			}
		}
	}, nil
}

// RecordUsage increments the usage count of each clip, once per occurrence,
// and appends them to the cooldown history under runID.
func (idx *Index) RecordUsage(ctx context.Context, runID string, clipIDs ...string) error {
	if len(clipIDs) == 0 {
		return nil
	}
	idx.mu.RLock()
	for _, id := range clipIDs {
		if _, ok := idx.byID[id]; !ok {
			idx.mu.RUnlock()
			return services.Wrap(services.ErrLibrary, "library", "record usage", fmt.Sprintf("Unknown clip id %q", id), nil)
		}
	}
	idx.mu.RUnlock()

	at := idx.now().UTC()
	if idx.usage != nil {
		if err := idx.usage.RecordUsage(ctx, runID, clipIDs, at); err != nil {
			return services.Wrap(services.ErrLibrary, "library", "record usage", "Failed to persist usage", err)
		}
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, id := range clipIDs {
		clip := &idx.clips[idx.byID[id]]
		clip.UsageCount++
		clip.LastUsedAt = at
	}
	return nil
}

// RecentHistory returns up to limit most recently used clip ids, oldest first.
func (idx *Index) RecentHistory(ctx context.Context, limit int) ([]string, error) {
	if idx.usage == nil || limit <= 0 {
		return nil, nil
	}
	ids, err := idx.usage.RecentClipIDs(ctx, limit)
	if err != nil {
		return nil, services.Wrap(services.ErrLibrary, "library", "history", "Failed to read usage history", err)
	}
	return ids, nil
}

func (idx *Index) refreshUsage(ctx context.Context) error {
	if idx.usage == nil {
		return nil
	}
	idx.mu.RLock()
	ids := make([]string, len(idx.clips))
	for i, clip := range idx.clips {
		ids[i] = clip.ID
	}
	idx.mu.RUnlock()

	usage, err := idx.usage.Usage(ctx, ids)
	if err != nil {
		return services.Wrap(services.ErrLibrary, "library", "usage", "Failed to read usage counts", err)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	for i := range idx.clips {
		u, ok := usage[idx.clips[i].ID]
		if !ok {
			idx.clips[i].UsageCount = 0
			idx.clips[i].LastUsedAt = time.Time{}
			continue
		}
		idx.clips[i].UsageCount = u.Count
		idx.clips[i].LastUsedAt = u.LastUsedAt
	}
	return nil
}

func dropMissingFiles(clips []Clip) ([]Clip, []SkippedClip) {
	kept := make([]Clip, 0, len(clips))
	var skipped []SkippedClip
	for _, clip := range clips {
		info, err := os.Stat(clip.Path)
		switch {
		case err != nil:
			skipped = append(skipped, SkippedClip{ID: clip.ID, Path: clip.Path, Reason: "file not found"})
		case info.IsDir():
			skipped = append(skipped, SkippedClip{ID: clip.ID, Path: clip.Path, Reason: "path is a directory"})
		default:
			if clip.SizeBytes <= 0 {
				clip.SizeBytes = info.Size()
			}
			kept = append(kept, clip)
		}
	}
	return kept, skipped
}

func cloneClip(c Clip) Clip {
	c.Tags = slices.Clone(c.Tags)
	return c
}
