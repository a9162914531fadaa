package project_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"beatcut/internal/audio"
	"beatcut/internal/project"
)

func sampleAnalysis() project.Analysis {
	track := &audio.Track{
		SampleRate: 22050,
		HopLength:  512,
		Duration:   2,
		Tempo:      120,
		Beats: []audio.Beat{
			{Time: 0.5, Intensity: 1, LocalTempo: 120},
			{Time: 1.0, Intensity: 0.4, LocalTempo: 120},
			{Time: 1.5, Intensity: 0.8, LocalTempo: 120},
		},
		RMS: []float64{0.2, 1, 0.5},
	}
	segments := []audio.Segment{
		{Index: 0, Start: 0.5, End: 1, Duration: 0.5, Intensity: 1},
		{Index: 1, Start: 1, End: 2.25, Duration: 1.25, Intensity: 0.6},
	}
	return project.NewAnalysis(track, segments, audio.ModeBeat)
}

func TestCreateAndLoadProject(t *testing.T) {
	root := t.TempDir()
	source := filepath.Join(t.TempDir(), "My Song.MP3")
	if err := os.WriteFile(source, []byte("ID3 audio"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	created, err := project.Create(root, source, "", sampleAnalysis(), now)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Slug != "my-song" {
		t.Fatalf("unexpected slug %q", created.Slug)
	}
	if created.AudioPath != filepath.Join(root, "my-song", "audio.mp3") {
		t.Fatalf("unexpected audio path %q", created.AudioPath)
	}
	if data, err := os.ReadFile(created.AudioPath); err != nil || string(data) != "ID3 audio" {
		t.Fatalf("audio not copied: %q, %v", data, err)
	}

	timecodes, err := os.ReadFile(filepath.Join(root, "my-song", "timecodes.txt"))
	if err != nil {
		t.Fatalf("read timecodes: %v", err)
	}
	want := "# start_seconds,end_seconds,intensity\n0.500,1.000,1.000\n1.000,2.250,0.600"
	if string(timecodes) != want {
		t.Fatalf("unexpected timecodes:\n%s", timecodes)
	}

	for _, ref := range []string{"my-song", filepath.Join(root, "my-song"), filepath.Join(root, "my-song", "manifest.json")} {
		loaded, err := project.Load(root, ref)
		if err != nil {
			t.Fatalf("Load(%q): %v", ref, err)
		}
		if loaded.Name != "My Song" || !loaded.CreatedAt.Equal(now) {
			t.Fatalf("unexpected manifest %+v", loaded)
		}
		track := loaded.Track()
		if len(track.Beats) != 3 || track.Beats[2].Intensity != 0.8 || track.Tempo != 120 {
			t.Fatalf("unexpected track %+v", track)
		}
		if track.Path != created.AudioPath {
			t.Fatalf("unexpected track path %q", track.Path)
		}
	}
}

func TestLoadMissingProject(t *testing.T) {
	root := t.TempDir()
	_, err := project.Load(root, "nothing-here")
	if !errors.Is(err, project.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := project.Load(root, filepath.Join(root, "song.mp3")); !errors.Is(err, project.ErrNotFound) {
		t.Fatalf("audio path should not be treated as a project, got %v", err)
	}
}

func TestLoadRejectsBrokenManifests(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
		want     string
	}{
		{name: "corrupt json", manifest: `{"slug": "broken",`, want: "parse manifest"},
		{name: "no beats", manifest: `{"analysis": {"duration": 10, "beat_times": []}}`, want: "no beats"},
		{name: "beat past end", manifest: `{"analysis": {"duration": 2, "beat_times": [0.5, 2.5]}}`, want: "outside [0, 2.000]"},
		{name: "negative beat", manifest: `{"analysis": {"duration": 2, "beat_times": [-0.5, 1]}}`, want: "outside"},
		{name: "unordered beats", manifest: `{"analysis": {"duration": 2, "beat_times": [1, 0.5]}}`, want: "not after"},
		{name: "intensity mismatch", manifest: `{"analysis": {"duration": 2, "beat_times": [0.5, 1], "beat_intensity": [1]}}`, want: "beat intensities"},
		{name: "zero duration", manifest: `{"analysis": {"duration": 0, "beat_times": [0.5]}}`, want: "invalid duration"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			dir := filepath.Join(root, "broken")
			if err := os.MkdirAll(dir, 0o755); err != nil {
				t.Fatalf("mkdir: %v", err)
			}
			if err := os.WriteFile(filepath.Join(dir, "manifest.json"), []byte(tt.manifest), 0o644); err != nil {
				t.Fatalf("write manifest: %v", err)
			}
			_, err := project.Load(root, "broken")
			if err == nil || errors.Is(err, project.ErrNotFound) {
				t.Fatalf("expected a manifest error, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestFormatTimecodesEmpty(t *testing.T) {
	if got := project.FormatTimecodes(nil); got != "# start_seconds,end_seconds,intensity" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestListAndResolveMusic(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b-side.MP3", "a-track.wav", "notes.txt", "c.flac"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("audio"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "album.mp3"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	files, err := project.ListMusic(dir)
	if err != nil {
		t.Fatalf("ListMusic: %v", err)
	}
	var names []string
	for _, f := range files {
		names = append(names, f.Name)
	}
	if strings.Join(names, ",") != "a-track.wav,b-side.MP3,c.flac" {
		t.Fatalf("unexpected listing %v", names)
	}
	if files[0].SizeBytes != 5 {
		t.Fatalf("unexpected size %d", files[0].SizeBytes)
	}

	missing, err := project.ListMusic(filepath.Join(dir, "absent"))
	if err != nil || len(missing) != 0 {
		t.Fatalf("expected empty listing for missing dir, got %v, %v", missing, err)
	}

	tests := []struct {
		ref  string
		want string
	}{
		{ref: "2", want: filepath.Join(dir, "b-side.MP3")},
		{ref: "c.flac", want: filepath.Join(dir, "c.flac")},
		{ref: filepath.Join(dir, "a-track.wav"), want: filepath.Join(dir, "a-track.wav")},
		{ref: "my-project", want: "my-project"},
	}
	for _, tt := range tests {
		got, err := project.ResolveAudio(dir, tt.ref)
		if err != nil {
			t.Fatalf("ResolveAudio(%q): %v", tt.ref, err)
		}
		if got != tt.want {
			t.Fatalf("ResolveAudio(%q) = %q, want %q", tt.ref, got, tt.want)
		}
	}
	if _, err := project.ResolveAudio(dir, "9"); err == nil {
		t.Fatal("expected out-of-range track number to fail")
	}
}
