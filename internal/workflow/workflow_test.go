package workflow_test

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"beatcut/internal/audio"
	"beatcut/internal/config"
	"beatcut/internal/project"
	"beatcut/internal/render"
	"beatcut/internal/services"
	"beatcut/internal/store"
	"beatcut/internal/testsupport"
	"beatcut/internal/workflow"
)

// clickDecoder returns a 120 BPM click track instead of decoding path.
type clickDecoder struct {
	seconds float64
	err     error
	calls   int
}

func (d *clickDecoder) Decode(_ context.Context, _ string, sampleRate int) ([]float64, error) {
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	samples := make([]float64, int(d.seconds*float64(sampleRate)))
	clickLen := int(0.02 * float64(sampleRate))
	decay := 0.004 * float64(sampleRate)
	for c := 0.25; c < d.seconds-0.05; c += 0.5 {
		start := int(c * float64(sampleRate))
		for n := 0; n < clickLen && start+n < len(samples); n++ {
			samples[start+n] += math.Sin(2*math.Pi*1000*float64(n)/float64(sampleRate)) * math.Exp(-float64(n)/decay)
		}
	}
	return samples, nil
}

type fixture struct {
	cfg   *config.Config
	store *store.Store
	audio string
}

func newFixture(t *testing.T, script string, withLibrary bool) fixture {
	t.Helper()
	opts := []testsupport.ConfigOption{testsupport.WithFFmpegScript(script)}
	if withLibrary {
		clips := testsupport.WriteClipFiles(t, filepath.Join(t.TempDir(), "clips"), 6)
		opts = append(opts, testsupport.WithCatalog(testsupport.ClipCatalog(clips, 10, "dance", "neon")))
	}
	cfg := testsupport.NewConfig(t, opts...)
	audioPath := filepath.Join(t.TempDir(), "Night Drive.mp3")
	testsupport.WriteFile(t, audioPath, 2048)
	return fixture{cfg: cfg, store: testsupport.MustOpenStore(t, cfg), audio: audioPath}
}

func (f fixture) runner(decoder audio.Decoder) *workflow.Runner {
	return workflow.NewRunner(f.cfg, f.store, nil, workflow.WithDecoder(decoder))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func assertNoWorkspace(t *testing.T, cfg *config.Config) {
	t.Helper()
	entries, err := os.ReadDir(cfg.Paths.WorkDir)
	if err != nil {
		t.Fatalf("read work dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty work dir, found %d entries", len(entries))
	}
}

func TestRunCompletes(t *testing.T) {
	f := newFixture(t, testsupport.FakeFFmpegScript, true)
	var lastPercent float64
	res, err := f.runner(&clickDecoder{seconds: 12}).Run(context.Background(), workflow.Request{
		Source:   f.audio,
		Progress: func(p render.Progress) { lastPercent = p.Percent },
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Status != store.StatusDone {
		t.Fatalf("unexpected status %q", res.Status)
	}
	if res.Seed != 42 {
		t.Fatalf("expected configured seed, got %d", res.Seed)
	}
	wantPrefix := filepath.Join(f.cfg.Paths.OutputDir, "Night Drive-")
	if !strings.HasPrefix(res.OutputPath, wantPrefix) || filepath.Ext(res.OutputPath) != ".mp4" {
		t.Fatalf("unexpected output path %q", res.OutputPath)
	}
	if got := readFile(t, res.OutputPath); got != "encoded" {
		t.Fatalf("unexpected output contents %q", got)
	}
	if lastPercent != 100 {
		t.Fatalf("expected progress to reach 100, got %.1f", lastPercent)
	}
	assertNoWorkspace(t, f.cfg)

	reportText := readFile(t, res.ReportPath)
	if !strings.Contains(reportText, "Status:   Done") || !strings.Contains(reportText, "Edit list") {
		t.Fatalf("unexpected report:\n%s", reportText)
	}
	if len(res.Report.Timings) != 4 {
		t.Fatalf("expected timings for four stages, got %+v", res.Report.Timings)
	}

	ctx := context.Background()
	run, err := f.store.GetRun(ctx, res.RunID)
	if err != nil || run == nil {
		t.Fatalf("GetRun: run=%v err=%v", run, err)
	}
	if run.Status != store.StatusDone || run.ErrorKind != "" {
		t.Fatalf("unexpected run row %+v", run)
	}
	if run.EntryCount != len(res.Report.Entries) || run.EntryCount == 0 {
		t.Fatalf("entry count %d does not match report %d", run.EntryCount, len(res.Report.Entries))
	}
	if run.Tempo < 110 || run.Tempo > 130 {
		t.Fatalf("unexpected tempo %.1f", run.Tempo)
	}

	usage, err := f.store.AllUsage(ctx)
	if err != nil {
		t.Fatalf("AllUsage: %v", err)
	}
	total := 0
	for _, u := range usage {
		total += u.Count
	}
	if total != run.EntryCount {
		t.Fatalf("expected %d recorded uses, got %d", run.EntryCount, total)
	}
}

func TestRunRenderFailure(t *testing.T) {
	f := newFixture(t, testsupport.CrashingFFmpegScript, true)
	res, err := f.runner(&clickDecoder{seconds: 12}).Run(context.Background(), workflow.Request{Source: f.audio})
	if err == nil {
		t.Fatal("expected render failure")
	}
	if services.Kind(err) != services.KindRender {
		t.Fatalf("expected RenderError, got %v", err)
	}
	if res == nil || res.Status != store.StatusFailed || res.OutputPath != "" {
		t.Fatalf("unexpected result %+v", res)
	}
	assertNoWorkspace(t, f.cfg)

	entries, err := os.ReadDir(f.cfg.Paths.OutputDir)
	if err != nil {
		t.Fatalf("read output dir: %v", err)
	}
	if len(entries) != 1 || !strings.HasSuffix(entries[0].Name(), ".report.txt") {
		t.Fatalf("expected only the report in the output dir, got %v", entries)
	}
	reportText := readFile(t, res.ReportPath)
	if !strings.Contains(reportText, "Failed:   rendering (RenderError)") {
		t.Fatalf("report does not name the failure:\n%s", reportText)
	}

	ctx := context.Background()
	run, err := f.store.GetRun(ctx, res.RunID)
	if err != nil || run == nil {
		t.Fatalf("GetRun: run=%v err=%v", run, err)
	}
	if run.Status != store.StatusFailed || run.Stage != "rendering" || run.ErrorKind != services.KindRender {
		t.Fatalf("unexpected run row %+v", run)
	}
	usage, err := f.store.AllUsage(ctx)
	if err != nil {
		t.Fatalf("AllUsage: %v", err)
	}
	if len(usage) != 0 {
		t.Fatalf("failed run must not record usage, got %+v", usage)
	}
}

func TestRunStageFailures(t *testing.T) {
	tests := []struct {
		name    string
		library bool
		decoder *clickDecoder
		stage   string
		kind    string
	}{
		{
			name:    "unreadable audio",
			library: true,
			decoder: &clickDecoder{err: errors.New("invalid data found when processing input")},
			stage:   "analyzing",
			kind:    services.KindAnalysis,
		},
		{
			name:    "audio too short",
			library: true,
			decoder: &clickDecoder{seconds: 1},
			stage:   "analyzing",
			kind:    services.KindAnalysis,
		},
		{
			name:    "no library",
			decoder: &clickDecoder{seconds: 12},
			stage:   "selecting",
			kind:    services.KindLibrary,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, testsupport.FakeFFmpegScript, tt.library)
			res, err := f.runner(tt.decoder).Run(context.Background(), workflow.Request{Source: f.audio})
			if services.Kind(err) != tt.kind {
				t.Fatalf("expected %s, got %v", tt.kind, err)
			}
			if res.Report.FailedStage != tt.stage || res.Report.ErrorKind != tt.kind {
				t.Fatalf("unexpected report failure fields %+v", res.Report)
			}
			if _, err := os.Stat(res.ReportPath); err != nil {
				t.Fatalf("expected partial report: %v", err)
			}
		})
	}
}

func TestRunFromProject(t *testing.T) {
	f := newFixture(t, testsupport.FakeFFmpegScript, true)

	analyzer := audio.NewAnalyzer(f.cfg.Analysis, &clickDecoder{seconds: 12}, nil)
	track, err := analyzer.Analyze(context.Background(), f.audio)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	segments := audio.Segments(track, audio.SegmentOptions{Mode: audio.ModeBeat, TargetSegment: 1, Sensitivity: 1})
	manifest, err := project.Create(f.cfg.ProjectsDir(), f.audio, "Night Drive", project.NewAnalysis(track, segments, audio.ModeBeat), time.Now())
	if err != nil {
		t.Fatalf("project.Create: %v", err)
	}

	decoder := &clickDecoder{err: errors.New("decoder must not run")}
	res, err := f.runner(decoder).Run(context.Background(), workflow.Request{Source: manifest.Slug, Seed: 7})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if decoder.calls != 0 {
		t.Fatalf("project run should reuse the stored analysis, decoder ran %d times", decoder.calls)
	}
	if res.Seed != 7 || res.Report.Track == nil || res.Report.Track.Path != manifest.AudioPath {
		t.Fatalf("unexpected result %+v", res.Report.Track)
	}
}

func TestRunCanceledDuringRender(t *testing.T) {
	f := newFixture(t, testsupport.SlowFFmpegScript, true)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	var once sync.Once
	runner := workflow.NewRunner(f.cfg, f.store, nil,
		workflow.WithDecoder(&clickDecoder{seconds: 12}),
	)
	go func() {
		<-started
		time.Sleep(200 * time.Millisecond)
		cancel()
	}()
	res, err := runner.Run(ctx, workflow.Request{
		Source: f.audio,
		Progress: func(p render.Progress) {
			if p.Phase == "trim" {
				once.Do(func() { close(started) })
			}
		},
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if res.Status != store.StatusFailed {
		t.Fatalf("unexpected status %q", res.Status)
	}
	assertNoWorkspace(t, f.cfg)

	run, err := f.store.GetRun(context.Background(), res.RunID)
	if err != nil || run == nil || run.Status != store.StatusFailed {
		t.Fatalf("canceled run not persisted as failed: run=%+v err=%v", run, err)
	}
}

// cancelAfterUsage cancels the run context once usage for the rendered
// output has been recorded, the last step before reporting.
type cancelAfterUsage struct {
	*store.Store
	cancel context.CancelFunc
}

func (c cancelAfterUsage) RecordUsage(ctx context.Context, runID string, clipIDs []string, at time.Time) error {
	err := c.Store.RecordUsage(ctx, runID, clipIDs, at)
	c.cancel()
	return err
}

func TestRunCanceledAfterPublishStillCompletes(t *testing.T) {
	f := newFixture(t, testsupport.FakeFFmpegScript, true)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st := cancelAfterUsage{Store: f.store, cancel: cancel}
	runner := workflow.NewRunner(f.cfg, st, nil, workflow.WithDecoder(&clickDecoder{seconds: 12}))
	res, err := runner.Run(ctx, workflow.Request{Source: f.audio, Seed: 3})
	if err != nil {
		t.Fatalf("expected run to complete after publishing output, got %v", err)
	}
	if ctx.Err() == nil {
		t.Fatal("expected the context to be cancelled during the run")
	}
	if res.Status != store.StatusDone {
		t.Fatalf("expected status done, got %s", res.Status)
	}
	if _, err := os.Stat(res.OutputPath); err != nil {
		t.Fatalf("expected published output: %v", err)
	}
	if !strings.Contains(readFile(t, res.ReportPath), "Status:   Done") {
		t.Fatalf("expected a completed report at %s", res.ReportPath)
	}
	run, err := f.store.GetRun(context.Background(), res.RunID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.Status != store.StatusDone {
		t.Fatalf("expected persisted status done, got %s", run.Status)
	}
}

func TestRunRejectsBrokenProjectManifest(t *testing.T) {
	f := newFixture(t, testsupport.FakeFFmpegScript, true)
	dir := filepath.Join(f.cfg.ProjectsDir(), "broken-song")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "manifest.json"), []byte(`{"slug": `), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	decoder := &clickDecoder{seconds: 12}
	res, err := f.runner(decoder).Run(context.Background(), workflow.Request{Source: "broken-song"})
	if err == nil {
		t.Fatal("expected broken manifest to fail the run")
	}
	if services.Kind(err) != services.KindAnalysis {
		t.Fatalf("expected AnalysisError, got %s (%v)", services.Kind(err), err)
	}
	if !strings.Contains(err.Error(), "parse manifest") {
		t.Fatalf("expected the manifest parse error to surface, got %v", err)
	}
	if decoder.calls != 0 {
		t.Fatalf("decoder should not run for a project reference, got %d calls", decoder.calls)
	}
	if res.Status != store.StatusFailed {
		t.Fatalf("expected failed status, got %s", res.Status)
	}
}
