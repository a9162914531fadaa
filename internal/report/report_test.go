package report_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"beatcut/internal/audio"
	"beatcut/internal/library"
	"beatcut/internal/report"
	"beatcut/internal/services"
	"beatcut/internal/timeline"
)

func sampleEdits() *timeline.EditList {
	hd := library.Clip{ID: "c01", Name: "intro", Codec: "h264", Width: 1920, Height: 1080, SizeBytes: 2 << 20}
	hd2 := library.Clip{ID: "c02", Codec: "h264", Width: 1920, Height: 1080, SizeBytes: 1 << 20}
	uhd := library.Clip{ID: "c03", Codec: "hevc", Width: 3840, Height: 2160, SizeBytes: 8 << 20}
	return &timeline.EditList{
		TrackDuration: 4,
		Entries: []timeline.EditEntry{
			{Index: 0, Clip: hd, SourceIn: 1, SourceOut: 2, Start: 0, Duration: 1},
			{Index: 1, Clip: uhd, SourceIn: 0, SourceOut: 1, Start: 1, Duration: 1},
			{Index: 2, Clip: hd2, SourceIn: 0, SourceOut: 0.5, Start: 2, Duration: 1, Loop: true},
			{Index: 3, Clip: hd, SourceIn: 3, SourceOut: 4, Start: 3, Duration: 1},
		},
	}
}

func TestBuildSuccessfulRun(t *testing.T) {
	track := &audio.Track{Path: "/music/song.mp3", Duration: 4, Tempo: 120, Beats: make([]audio.Beat, 8)}
	r := report.Build(report.Input{
		RunID:      "run-1",
		Seed:       7,
		Track:      track,
		Edits:      sampleEdits(),
		Warnings:   []timeline.Warning{{Stage: "alignment", Code: timeline.WarnClipLooped, Message: "clip c02 looped"}},
		Timings:    []report.StageTiming{{Stage: "analyzing", Elapsed: time.Second}},
		OutputPath: "/out/run-1.mp4",
		OutputSize: 4096,
	})

	if r.Status != report.StatusDone || r.Failed() {
		t.Fatalf("unexpected status %q", r.Status)
	}
	if strings.Join(r.ClipsUsed, ",") != "c01,c03,c02" {
		t.Fatalf("unexpected clips used %v", r.ClipsUsed)
	}
	if len(r.Entries) != 4 || !r.Entries[2].Loop {
		t.Fatalf("unexpected entries %+v", r.Entries)
	}
	if len(r.Groups) != 2 {
		t.Fatalf("expected 2 groups, got %+v", r.Groups)
	}
	first := r.Groups[0]
	if first.Codec != "h264" || first.Resolution != "1920x1080" || first.Count != 2 || first.SizeBytes != 3<<20 {
		t.Fatalf("unexpected first group %+v", first)
	}
	if r.Track == nil || r.Track.Beats != 8 {
		t.Fatalf("unexpected track summary %+v", r.Track)
	}

	text := report.Render(r)
	for _, want := range []string{"beatcut run run-1", "Status:   Done", "/out/run-1.mp4 (4.0 KiB)", "120.0 BPM", "Edit list (4 cuts, 3 clips)", "1920x1080", "clip_looped", "Total"} {
		if !strings.Contains(text, want) {
			t.Fatalf("rendered report missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "Failed:") {
		t.Fatalf("successful report should not mention failure:\n%s", text)
	}
}

func TestBuildFailedRun(t *testing.T) {
	err := services.Wrap(services.ErrRender, "render", "encode", "Encoder failed", errors.New("exit status 1"))
	r := report.Build(report.Input{
		RunID:       "run-2",
		FailedStage: "rendering",
		Err:         err,
		Edits:       sampleEdits(),
		OutputPath:  "/out/run-2.mp4",
		OutputSize:  10,
	})
	if !r.Failed() {
		t.Fatal("expected failed report")
	}
	if r.ErrorKind != services.KindRender || r.FailedStage != "rendering" {
		t.Fatalf("unexpected failure fields %+v", r)
	}
	if r.OutputPath != "" {
		t.Fatalf("failed run must not report an output, got %q", r.OutputPath)
	}
	text := report.Render(r)
	if !strings.Contains(text, "Failed:   rendering (RenderError)") {
		t.Fatalf("rendered report missing failure line:\n%s", text)
	}
}

func TestBuildEarlyFailureHasNoTables(t *testing.T) {
	err := services.Wrap(services.ErrAnalysis, "analysis", "decode", "Audio unreadable", nil)
	r := report.Build(report.Input{RunID: "run-3", FailedStage: "analyzing", Err: err})
	if r.Track != nil || len(r.Entries) != 0 {
		t.Fatalf("expected empty report body, got %+v", r)
	}
	text := report.Render(r)
	if !strings.Contains(text, "AnalysisError") || strings.Contains(text, "Edit list") {
		t.Fatalf("unexpected rendering:\n%s", text)
	}
}

func TestRenderLimitsGroups(t *testing.T) {
	edits := &timeline.EditList{}
	for i := range 18 {
		clip := library.Clip{ID: string(rune('a' + i)), Codec: "h264", Width: 100 + i*2, Height: 100}
		edits.Entries = append(edits.Entries, timeline.EditEntry{Index: i, Clip: clip, SourceOut: 1, Start: float64(i), Duration: 1})
	}
	r := report.Build(report.Input{RunID: "run-4", Edits: edits})
	if len(r.Groups) != 18 {
		t.Fatalf("expected 18 groups, got %d", len(r.Groups))
	}
	if !strings.Contains(report.Render(r), "... and 3 more groups") {
		t.Fatal("expected truncated group listing")
	}
}

func TestWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "run-1.txt")
	r := report.Build(report.Input{RunID: "run-1"})
	if err := report.Write(path, r); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !strings.HasPrefix(string(data), "beatcut run run-1\n") {
		t.Fatalf("unexpected report contents %q", data)
	}

	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatalf("write blocker: %v", err)
	}
	if err := report.Write(filepath.Join(blocker, "run.txt"), r); err == nil {
		t.Fatal("expected error when the parent is a file")
	}
}

func TestTablePadsShortRowsAndAlignsRight(t *testing.T) {
	out := report.Table([]string{"Clip", "Uses", "Note"}, [][]string{{"alpha", "7"}, {"b", "12", "hot"}}, 1)
	lines := strings.Split(out, "\n")
	if len(lines) != 6 {
		t.Fatalf("expected 6 table lines, got %d:\n%s", len(lines), out)
	}
	if !strings.Contains(lines[3], "│    7 │") {
		t.Fatalf("expected right-aligned uses column, got %q", lines[3])
	}
	if !strings.Contains(lines[4], "│   12 │ hot  │") {
		t.Fatalf("expected full row, got %q", lines[4])
	}
	if strings.Count(lines[3], "│") != 4 {
		t.Fatalf("expected short row padded to three cells, got %q", lines[3])
	}
	if report.Table(nil, [][]string{{"x"}}) != "" {
		t.Fatal("expected empty table without headers")
	}
}
