package library

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"beatcut/internal/logging"
	"beatcut/internal/media/ffprobe"
	"beatcut/internal/store"
)

// Prober fills in clip metadata from the media file.
type Prober interface {
	Probe(ctx context.Context, path string) (store.Probe, error)
}

// ProbeCache persists probe results between runs.
type ProbeCache interface {
	LookupProbe(ctx context.Context, path string, size int64, modTime time.Time) (store.Probe, bool, error)
	SaveProbe(ctx context.Context, p store.Probe) error
}

// inspect is the ffprobe runner. It is a package-level variable so tests can
// override it.
var inspect = ffprobe.Inspect

// SetInspectForTests overrides the ffprobe runner during tests.
func SetInspectForTests(fn func(context.Context, string, string) (ffprobe.Result, error)) func() {
	previous := inspect
	inspect = fn
	return func() {
		inspect = previous
	}
}

// FFprobeProber probes clips with ffprobe, consulting the cache first.
type FFprobeProber struct {
	Binary string
	Cache  ProbeCache
	Logger *slog.Logger
}

// Probe returns metadata for path. Cache failures are logged and ignored.
func (p *FFprobeProber) Probe(ctx context.Context, path string) (store.Probe, error) {
	info, err := os.Stat(path)
	if err != nil {
		return store.Probe{}, fmt.Errorf("stat clip: %w", err)
	}
	if info.IsDir() {
		return store.Probe{}, fmt.Errorf("stat clip: %s is a directory", path)
	}
	if p.Cache != nil {
		cached, ok, err := p.Cache.LookupProbe(ctx, path, info.Size(), info.ModTime())
		if err != nil {
			p.logger().Debug("probe cache lookup failed", logging.String("path", path), logging.Error(err))
		} else if ok {
			return cached, nil
		}
	}

	result, err := inspect(ctx, p.Binary, path)
	if err != nil {
		return store.Probe{}, err
	}
	probe := store.Probe{
		Path:     path,
		Size:     info.Size(),
		ModTime:  info.ModTime(),
		Duration: result.DurationSeconds(),
		ProbedAt: time.Now(),
	}
	if video, ok := result.VideoStream(); ok {
		probe.Width = video.Width
		probe.Height = video.Height
		probe.FPS = video.FrameRate()
		probe.Codec = video.CodecName
	}
	if probe.Duration <= 0 {
		return store.Probe{}, fmt.Errorf("probe %s: no duration reported", path)
	}
	if p.Cache != nil {
		if err := p.Cache.SaveProbe(ctx, probe); err != nil {
			p.logger().Debug("probe cache save failed", logging.String("path", path), logging.Error(err))
		}
	}
	return probe, nil
}

func (p *FFprobeProber) logger() *slog.Logger {
	if p.Logger == nil {
		return logging.NewNop()
	}
	return p.Logger
}

const probeWorkers = 4

// fillMetadata probes every clip missing a duration, using a small worker
// pool. Clips that cannot be probed are dropped and reported as skipped.
func fillMetadata(ctx context.Context, prober Prober, clips []Clip) ([]Clip, []SkippedClip) {
	needs := make([]int, 0, len(clips))
	for i, clip := range clips {
		if clip.Duration <= 0 || clip.Width <= 0 || clip.Height <= 0 {
			needs = append(needs, i)
		}
	}
	if len(needs) == 0 {
		return clips, nil
	}

	failures := make([]error, len(clips))
	if prober == nil {
		for _, i := range needs {
			if clips[i].Duration <= 0 {
				failures[i] = fmt.Errorf("duration unknown and no prober configured")
			}
		}
	} else {
		jobs := make(chan int)
		var wg sync.WaitGroup
		for w := 0; w < min(probeWorkers, len(needs)); w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range jobs {
					probe, err := prober.Probe(ctx, clips[i].Path)
					if err != nil {
						if clips[i].Duration <= 0 {
							failures[i] = err
						}
						continue
					}
					applyProbe(&clips[i], probe)
				}
			}()
		}
		for _, i := range needs {
			jobs <- i
		}
		close(jobs)
		wg.Wait()
	}

	kept := clips[:0:0]
	var skipped []SkippedClip
	for i, clip := range clips {
		if failures[i] != nil {
			skipped = append(skipped, SkippedClip{ID: clip.ID, Path: clip.Path, Reason: failures[i].Error()})
			continue
		}
		kept = append(kept, clip)
	}
	return kept, skipped
}

func applyProbe(clip *Clip, probe store.Probe) {
	if clip.Duration <= 0 {
		clip.Duration = probe.Duration
	}
	if clip.Width <= 0 || clip.Height <= 0 {
		clip.Width = probe.Width
		clip.Height = probe.Height
	}
	if clip.FPS <= 0 {
		clip.FPS = probe.FPS
	}
	if clip.Codec == "" {
		clip.Codec = probe.Codec
	}
	if clip.SizeBytes <= 0 {
		clip.SizeBytes = probe.Size
	}
}
