package main

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"beatcut/internal/audio"
	"beatcut/internal/config"
	"beatcut/internal/project"
	"beatcut/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	audioPath  string
}

func setupCLITestEnv(t *testing.T, ffmpegScript string) *cliTestEnv {
	t.Helper()

	t.Setenv("HOME", t.TempDir())
	clips := testsupport.WriteClipFiles(t, filepath.Join(t.TempDir(), "clips"), 3)
	cfg := testsupport.NewConfig(t,
		testsupport.WithFFmpegScript(ffmpegScript),
		testsupport.WithCatalog(testsupport.ClipCatalog(clips, 8, "dance", "neon")),
	)
	configPath := filepath.Join(t.TempDir(), "beatcut.toml")
	writeTestConfig(t, configPath, cfg)

	audioPath := filepath.Join(t.TempDir(), "Night Drive.wav")
	testsupport.WriteFile(t, audioPath, 4096)
	return &cliTestEnv{cfg: cfg, configPath: configPath, audioPath: audioPath}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

// createProject analyzes a synthetic 120 BPM click track and stores it as a
// project, so generate can run without decoding audio through ffmpeg.
func createProject(t *testing.T, env *cliTestEnv) *project.Manifest {
	t.Helper()
	const seconds = 10.0
	sr := env.cfg.Analysis.SampleRate
	samples := make([]float64, int(seconds*float64(sr)))
	for c := 0.25; c < seconds-0.05; c += 0.5 {
		start := int(c * float64(sr))
		for n := 0; n < sr/50 && start+n < len(samples); n++ {
			samples[start+n] += math.Sin(2*math.Pi*1000*float64(n)/float64(sr)) * math.Exp(-float64(n)/(0.004*float64(sr)))
		}
	}
	track, err := audio.NewAnalyzer(env.cfg.Analysis, nil, nil).AnalyzeSamples(samples)
	if err != nil {
		t.Fatalf("AnalyzeSamples: %v", err)
	}
	segments := audio.Segments(track, audio.SegmentOptions{Mode: audio.ModeBeat, TargetSegment: 1, Sensitivity: 1})
	manifest, err := project.Create(env.cfg.ProjectsDir(), env.audioPath, "", project.NewAnalysis(track, segments, audio.ModeBeat), time.Now())
	if err != nil {
		t.Fatalf("project.Create: %v", err)
	}
	return manifest
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.FakeFFmpegScript)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, "clips.yaml")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init to refuse overwriting without --overwrite")
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}

	out, _, err = runCLI(t, []string{"config", "init", "--stdout"}, "")
	if err != nil {
		t.Fatalf("config init --stdout: %v", err)
	}
	requireContains(t, out, "short_clip_policy")

	out, _, err = runCLI(t, []string{"config", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "music_dir = ")
	requireContains(t, out, env.cfg.Paths.MusicDir)
}

func TestLibraryList(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.FakeFFmpegScript)

	out, _, err := runCLI(t, []string{"library", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("library list: %v", err)
	}
	requireContains(t, out, "c01")
	requireContains(t, out, "1280x720")
	requireContains(t, out, "3 of 3 clips")

	out, _, err = runCLI(t, []string{"library", "list", "--tag", "neon"}, env.configPath)
	if err != nil {
		t.Fatalf("library list --tag: %v", err)
	}
	requireContains(t, out, "1 of 3 clips")

	out, _, err = runCLI(t, []string{"library", "usage"}, env.configPath)
	if err != nil {
		t.Fatalf("library usage: %v", err)
	}
	requireContains(t, out, "No clip usage recorded")
}

func TestGenerateFromProject(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.FakeFFmpegScript)
	manifest := createProject(t, env)

	out, _, err := runCLI(t, []string{"generate", manifest.Slug, "--seed", "5", "--no-progress"}, env.configPath)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	requireContains(t, out, "(done)")
	requireContains(t, out, "Seed:   5")
	requireContains(t, out, "Output: "+env.cfg.Paths.OutputDir)

	out, _, err = runCLI(t, []string{"runs", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("runs list: %v", err)
	}
	requireContains(t, out, "done")

	var runID string
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "done") {
			fields := strings.FieldsFunc(line, func(r rune) bool { return r == '│' || r == ' ' })
			if len(fields) > 0 {
				runID = fields[0]
			}
		}
	}
	if runID == "" {
		t.Fatalf("no run id in runs list output:\n%s", out)
	}
	out, _, err = runCLI(t, []string{"runs", "show", runID, "--report"}, env.configPath)
	if err != nil {
		t.Fatalf("runs show: %v", err)
	}
	requireContains(t, out, "Status:   done")
	requireContains(t, out, "Status:   Done")
	requireContains(t, out, "Edit list")

	out, _, err = runCLI(t, []string{"library", "usage"}, env.configPath)
	if err != nil {
		t.Fatalf("library usage: %v", err)
	}
	requireContains(t, out, "c0")

	if _, _, err := runCLI(t, []string{"library", "reset-usage"}, env.configPath); err == nil {
		t.Fatal("expected reset-usage to require confirmation")
	}
	out, _, err = runCLI(t, []string{"library", "reset-usage", "--yes"}, env.configPath)
	if err != nil {
		t.Fatalf("library reset-usage: %v", err)
	}
	requireContains(t, out, "Cleared usage for")
}

func TestGenerateReportsRenderFailure(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.CrashingFFmpegScript)
	manifest := createProject(t, env)

	out, _, err := runCLI(t, []string{"generate", manifest.Slug, "--no-progress"}, env.configPath)
	if err == nil {
		t.Fatal("expected generate to fail")
	}
	requireContains(t, err.Error(), "render error")
	requireContains(t, out, "(failed)")
	requireContains(t, out, "Report: ")
}

func TestAnalyzeRejectsUndecodableAudio(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.FakeFFmpegScript)

	_, _, err := runCLI(t, []string{"analyze", env.audioPath}, env.configPath)
	if err == nil {
		t.Fatal("expected analysis to fail on empty decoder output")
	}
	requireContains(t, err.Error(), "analysis error")

	if _, _, err := runCLI(t, []string{"analyze", env.audioPath, "--mode", "bars"}, env.configPath); err == nil {
		t.Fatal("expected unsupported mode to be rejected")
	}
}

func TestAnalyzeListsMusicDirectory(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.FakeFFmpegScript)

	out, _, err := runCLI(t, []string{"analyze"}, env.configPath)
	if err != nil {
		t.Fatalf("analyze without tracks: %v", err)
	}
	requireContains(t, out, "No audio files in "+env.cfg.Paths.MusicDir)

	if err := os.MkdirAll(env.cfg.Paths.MusicDir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"b-side.flac", "a-side.mp3", "cover.jpg"} {
		if err := os.WriteFile(filepath.Join(env.cfg.Paths.MusicDir, name), make([]byte, 2048), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	out, _, err = runCLI(t, []string{"analyze", "--list"}, env.configPath)
	if err != nil {
		t.Fatalf("analyze --list: %v", err)
	}
	requireContains(t, out, "a-side.mp3")
	requireContains(t, out, "b-side.flac")
	requireContains(t, out, "2.0 KiB")
	if strings.Contains(out, "cover.jpg") {
		t.Fatalf("non-audio file listed:\n%s", out)
	}
	if strings.Index(out, "a-side.mp3") > strings.Index(out, "b-side.flac") {
		t.Fatalf("expected tracks sorted by name:\n%s", out)
	}

	_, _, err = runCLI(t, []string{"analyze", "3"}, env.configPath)
	if err == nil {
		t.Fatal("expected out-of-range track number to fail")
	}
	requireContains(t, err.Error(), "out of range")
}

func TestDoctorListsChecks(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.FakeFFmpegScript)

	// Free space on the test volume varies, so only the listing is checked.
	out, _, _ := runCLI(t, []string{"doctor"}, env.configPath)
	requireContains(t, out, "Clip library")
	requireContains(t, out, "FFmpeg")
}
