package render_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"beatcut/internal/library"
	"beatcut/internal/render"
	"beatcut/internal/services"
	"beatcut/internal/testsupport"
	"beatcut/internal/timeline"
)

type renderFixture struct {
	pipeline *render.Pipeline
	workRoot string
	job      render.Job
}

func newFixture(t *testing.T, script string, timeout time.Duration) renderFixture {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithFFmpegScript(script))
	clips := testsupport.WriteClipFiles(t, filepath.Join(t.TempDir(), "clips"), 2)
	audio := filepath.Join(t.TempDir(), "track.wav")
	testsupport.WriteFile(t, audio, 2048)

	edits := timeline.EditList{
		TrackDuration: 3,
		FrameInterval: 1.0 / 30,
		Entries: []timeline.EditEntry{
			{Index: 0, Clip: library.Clip{ID: "c01", Path: clips[0], Duration: 10}, SourceIn: 1, SourceOut: 3, Start: 0, Duration: 2},
			{Index: 1, Clip: library.Clip{ID: "c02", Path: clips[1], Duration: 0.4}, SourceIn: 0, SourceOut: 0.4, Start: 2, Duration: 1, Loop: true},
		},
	}
	encoder := render.NewFFmpegEncoder(cfg.Encoding.FFmpegBinary, nil)
	return renderFixture{
		pipeline: render.NewPipeline(encoder, cfg.Paths.WorkDir, timeout, nil),
		workRoot: cfg.Paths.WorkDir,
		job: render.Job{
			RunID:      "run-1",
			Edits:      edits,
			AudioPath:  audio,
			OutputPath: filepath.Join(cfg.Paths.OutputDir, "run-1.mp4"),
			Params:     render.ParamsFromConfig(cfg.Encoding),
		},
	}
}

func assertClean(t *testing.T, f renderFixture) {
	t.Helper()
	if _, err := os.Stat(f.job.OutputPath); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected no output at %s, stat err=%v", f.job.OutputPath, err)
	}
	entries, err := os.ReadDir(f.workRoot)
	if err != nil {
		t.Fatalf("read work root: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected workspace to be removed, found %d entries", len(entries))
	}
}

func TestPipelineRenderPublishesOutput(t *testing.T) {
	f := newFixture(t, testsupport.FakeFFmpegScript, time.Minute)

	var mu sync.Mutex
	var phases []string
	var last float64
	f.job.Progress = func(p render.Progress) {
		mu.Lock()
		defer mu.Unlock()
		if len(phases) == 0 || phases[len(phases)-1] != p.Phase {
			phases = append(phases, p.Phase)
		}
		if p.Percent < last {
			t.Errorf("progress went backwards: %.2f after %.2f", p.Percent, last)
		}
		last = p.Percent
	}

	result, err := f.pipeline.Render(context.Background(), f.job)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if result.OutputPath != f.job.OutputPath {
		t.Fatalf("unexpected output path %q", result.OutputPath)
	}
	data, err := os.ReadFile(result.OutputPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(data) != "encoded" || result.SizeBytes != int64(len(data)) {
		t.Fatalf("unexpected output %q (size %d)", data, result.SizeBytes)
	}
	if strings.Join(phases, ",") != "trim,concat,mux" {
		t.Fatalf("unexpected phases %v", phases)
	}
	if last != 100 {
		t.Fatalf("expected final progress 100, got %.2f", last)
	}
	entries, err := os.ReadDir(f.workRoot)
	if err != nil {
		t.Fatalf("read work root: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected workspace to be removed, found %d entries", len(entries))
	}
}

func TestPipelineRenderEncoderCrash(t *testing.T) {
	f := newFixture(t, testsupport.CrashingFFmpegScript, time.Minute)

	_, err := f.pipeline.Render(context.Background(), f.job)
	if err == nil {
		t.Fatal("expected render error")
	}
	if kind := services.Kind(err); kind != services.KindRender {
		t.Fatalf("expected RenderError, got %s (%v)", kind, err)
	}
	if services.IsTimeout(err) {
		t.Fatalf("crash should not be reported as timeout: %v", err)
	}
	assertClean(t, f)
}

func TestPipelineRenderTimeout(t *testing.T) {
	f := newFixture(t, testsupport.SlowFFmpegScript, 300*time.Millisecond)

	start := time.Now()
	_, err := f.pipeline.Render(context.Background(), f.job)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Fatalf("render did not stop promptly: %s", elapsed)
	}
	if services.Kind(err) != services.KindRender {
		t.Fatalf("expected RenderError, got %v", err)
	}
	if !services.IsTimeout(err) {
		t.Fatalf("expected timeout to be detectable, got %v", err)
	}
	assertClean(t, f)
}

func TestPipelineRenderCanceled(t *testing.T) {
	f := newFixture(t, testsupport.SlowFFmpegScript, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(200*time.Millisecond, cancel)
	_, err := f.pipeline.Render(ctx, f.job)
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled in chain, got %v", err)
	}
	if services.IsTimeout(err) {
		t.Fatalf("cancellation should not be reported as timeout: %v", err)
	}
	assertClean(t, f)
}

func TestPipelineRenderRejectsEmptyOutput(t *testing.T) {
	f := newFixture(t, testsupport.FakeFFmpegScript, time.Minute)
	encoder := render.EncoderFunc(func(_ context.Context, job render.Job) (string, error) {
		return job.OutputPath, os.WriteFile(job.OutputPath, nil, 0o644)
	})
	pipeline := render.NewPipeline(encoder, f.workRoot, 0, nil)

	_, err := pipeline.Render(context.Background(), f.job)
	if err == nil || !strings.Contains(err.Error(), "no output") {
		t.Fatalf("expected missing output error, got %v", err)
	}
	assertClean(t, f)
}

func TestPipelineRenderRejectsInvalidEdits(t *testing.T) {
	f := newFixture(t, testsupport.FakeFFmpegScript, time.Minute)
	f.job.Edits.Entries[1].Start = 2.5

	_, err := f.pipeline.Render(context.Background(), f.job)
	if services.Kind(err) != services.KindRender {
		t.Fatalf("expected RenderError, got %v", err)
	}
}

func TestParamsExtension(t *testing.T) {
	cases := map[string]string{"": ".mp4", "mkv": ".mkv", ".MOV": ".mov"}
	for container, want := range cases {
		if got := (render.Params{Container: container}).Extension(); got != want {
			t.Fatalf("Extension(%q) = %q, want %q", container, got, want)
		}
	}
}
