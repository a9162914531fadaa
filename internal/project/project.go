package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"beatcut/internal/audio"
	"beatcut/internal/fileutil"
	"beatcut/internal/textutil"
)

const (
	manifestName  = "manifest.json"
	timecodesName = "timecodes.txt"
	timecodesHead = "# start_seconds,end_seconds,intensity"
)

// ErrNotFound reports that no project matches a reference.
var ErrNotFound = errors.New("project not found")

// Analysis is the serialized form of an audio analysis.
type Analysis struct {
	SampleRate    int             `json:"sample_rate"`
	HopLength     int             `json:"hop_length"`
	Duration      float64         `json:"duration"`
	Tempo         float64         `json:"tempo"`
	BeatTimes     []float64       `json:"beat_times"`
	BeatIntensity []float64       `json:"beat_intensity"`
	LocalTempo    []float64       `json:"local_tempo"`
	Onsets        []float64       `json:"onsets"`
	RMSCurve      []float64       `json:"rms_curve"`
	Segments      []audio.Segment `json:"segments"`
	Mode          string          `json:"mode"`
}

// Manifest describes one project directory.
type Manifest struct {
	Name       string    `json:"name"`
	Slug       string    `json:"slug"`
	AudioPath  string    `json:"audio_path"`
	CreatedAt  time.Time `json:"created_at"`
	SourceFile string    `json:"source_file,omitempty"`
	Analysis   Analysis  `json:"analysis"`

	dir string
}

// Dir is the project directory the manifest was loaded from or saved to.
func (m *Manifest) Dir() string {
	return m.dir
}

// Track rebuilds the analyzed track from the manifest.
func (m *Manifest) Track() *audio.Track {
	a := m.Analysis
	beats := make([]audio.Beat, len(a.BeatTimes))
	for i, t := range a.BeatTimes {
		beats[i].Time = t
		if i < len(a.BeatIntensity) {
			beats[i].Intensity = a.BeatIntensity[i]
		}
		if i < len(a.LocalTempo) {
			beats[i].LocalTempo = a.LocalTempo[i]
		} else {
			beats[i].LocalTempo = a.Tempo
		}
	}
	return &audio.Track{
		Path:       m.AudioPath,
		SampleRate: a.SampleRate,
		HopLength:  a.HopLength,
		Duration:   a.Duration,
		Tempo:      a.Tempo,
		Beats:      beats,
		Onsets:     a.Onsets,
		RMS:        a.RMSCurve,
	}
}

// NewAnalysis flattens a track and its segments for the manifest.
func NewAnalysis(track *audio.Track, segments []audio.Segment, mode string) Analysis {
	a := Analysis{
		SampleRate:    track.SampleRate,
		HopLength:     track.HopLength,
		Duration:      track.Duration,
		Tempo:         track.Tempo,
		BeatTimes:     make([]float64, len(track.Beats)),
		BeatIntensity: make([]float64, len(track.Beats)),
		LocalTempo:    make([]float64, len(track.Beats)),
		Onsets:        track.Onsets,
		RMSCurve:      track.RMS,
		Segments:      segments,
		Mode:          mode,
	}
	for i, b := range track.Beats {
		a.BeatTimes[i] = b.Time
		a.BeatIntensity[i] = b.Intensity
		a.LocalTempo[i] = b.LocalTempo
	}
	return a
}

// Create copies source into root/<slug>/ and writes manifest.json and
// timecodes.txt. An existing project with the same slug is overwritten.
func Create(root, source, name string, analysis Analysis, now time.Time) (*Manifest, error) {
	absSource, err := filepath.Abs(source)
	if err != nil {
		return nil, fmt.Errorf("resolve audio path: %w", err)
	}
	if strings.TrimSpace(name) == "" {
		base := filepath.Base(absSource)
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	slug := textutil.Slugify(name, now)
	dir := filepath.Join(root, slug)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create project directory: %w", err)
	}

	audioPath := filepath.Join(dir, "audio"+strings.ToLower(filepath.Ext(absSource)))
	if err := fileutil.CopyFile(absSource, audioPath); err != nil {
		return nil, fmt.Errorf("copy audio into project: %w", err)
	}

	m := &Manifest{
		Name:       name,
		Slug:       slug,
		AudioPath:  audioPath,
		CreatedAt:  now.UTC(),
		SourceFile: absSource,
		Analysis:   analysis,
		dir:        dir,
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, manifestName), data, 0o644); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, timecodesName), []byte(FormatTimecodes(analysis.Segments)), 0o644); err != nil {
		return nil, fmt.Errorf("write timecodes: %w", err)
	}
	return m, nil
}

// Load resolves ref as a manifest file, a project directory, or a slug under
// root.
func Load(root, ref string) (*Manifest, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, ErrNotFound
	}
	candidates := []string{ref, filepath.Join(ref, manifestName)}
	if !strings.ContainsRune(ref, filepath.Separator) {
		candidates = append(candidates, filepath.Join(root, ref, manifestName))
	}
	for _, path := range candidates {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() || filepath.Base(path) != manifestName {
			continue
		}
		return readManifest(path)
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
}

func readManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	m.dir = filepath.Dir(path)
	if m.AudioPath != "" && !filepath.IsAbs(m.AudioPath) {
		m.AudioPath = filepath.Join(m.dir, m.AudioPath)
	}
	if err := m.Analysis.validate(); err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	return &m, nil
}

// validate checks what Track relies on: a positive duration and ascending
// beats inside [0, duration] with matching per-beat arrays.
func (a Analysis) validate() error {
	if a.Duration <= 0 || math.IsNaN(a.Duration) {
		return fmt.Errorf("invalid duration %v", a.Duration)
	}
	if len(a.BeatTimes) == 0 {
		return errors.New("no beats")
	}
	prev := -1.0
	for i, t := range a.BeatTimes {
		if math.IsNaN(t) || t < 0 || t > a.Duration {
			return fmt.Errorf("beat %d at %.3fs outside [0, %.3f]", i, t, a.Duration)
		}
		if t <= prev {
			return fmt.Errorf("beat %d at %.3fs is not after the previous beat", i, t)
		}
		prev = t
	}
	if n := len(a.BeatIntensity); n > 0 && n != len(a.BeatTimes) {
		return fmt.Errorf("%d beat intensities for %d beats", n, len(a.BeatTimes))
	}
	return nil
}

// FormatTimecodes renders segments as "start,end,intensity" lines with three
// decimals under a comment header.
func FormatTimecodes(segments []audio.Segment) string {
	var b strings.Builder
	b.WriteString(timecodesHead)
	for _, seg := range segments {
		fmt.Fprintf(&b, "\n%.3f,%.3f,%.3f", seg.Start, seg.End, seg.Intensity)
	}
	return b.String()
}
