package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir   string `toml:"data_dir"`
	WorkDir   string `toml:"work_dir"`
	OutputDir string `toml:"output_dir"`
	ReportDir string `toml:"report_dir"`
	LogDir    string `toml:"log_dir"`
	// MusicDir holds tracks offered by "beatcut analyze --list".
	MusicDir string `toml:"music_dir"`
}

// Library describes where clip metadata comes from.
type Library struct {
	// ScanDB points at the SQLite database maintained by the external library scanner.
	ScanDB string `toml:"scan_db"`
	// Catalog points at a YAML or JSON clip catalog. Used when ScanDB is empty.
	Catalog    string             `toml:"catalog"`
	TagWeights map[string]float64 `toml:"tag_weights"`
}

// Analysis contains audio analysis and segmentation settings.
type Analysis struct {
	SampleRate         int     `toml:"sample_rate"`
	FrameSize          int     `toml:"frame_size"`
	HopLength          int     `toml:"hop_length"`
	MinBPM             float64 `toml:"min_bpm"`
	MaxBPM             float64 `toml:"max_bpm"`
	StartBPM           float64 `toml:"start_bpm"`
	Tightness          float64 `toml:"tightness"`
	MinDurationSeconds float64 `toml:"min_duration_seconds"`
	SegmentMode        string  `toml:"segment_mode"`
	TargetSegment      float64 `toml:"target_segment"`
	Sensitivity        float64 `toml:"sensitivity"`
}

// Selection contains clip selection settings.
type Selection struct {
	Strategy       string   `toml:"strategy"`
	Cooldown       int      `toml:"cooldown"`
	Seed           int64    `toml:"seed"`
	Tags           []string `toml:"tags"`
	ExcludeTags    []string `toml:"exclude_tags"`
	MinClipSeconds float64  `toml:"min_clip_seconds"`
	MinHeight      int      `toml:"min_height"`
	Orientation    string   `toml:"orientation"`
}

// Alignment contains cut grid and trim settings.
type Alignment struct {
	BeatsPerCut     int     `toml:"beats_per_cut"`
	EnergyAdaptive  bool    `toml:"energy_adaptive"`
	HighEnergy      float64 `toml:"high_energy"`
	LowEnergy       float64 `toml:"low_energy"`
	MinBeatsPerCut  int     `toml:"min_beats_per_cut"`
	MaxBeatsPerCut  int     `toml:"max_beats_per_cut"`
	EdgeGuard       float64 `toml:"edge_guard"`
	ShortClipPolicy string  `toml:"short_clip_policy"`
}

// Encoding contains render pipeline settings for the external encoder.
type Encoding struct {
	FFmpegBinary   string `toml:"ffmpeg_binary"`
	FFprobeBinary  string `toml:"ffprobe_binary"`
	Width          int    `toml:"width"`
	Height         int    `toml:"height"`
	FPS            int    `toml:"fps"`
	VideoCodec     string `toml:"video_codec"`
	Preset         string `toml:"preset"`
	CRF            int    `toml:"crf"`
	AudioCodec     string `toml:"audio_codec"`
	AudioBitrate   string `toml:"audio_bitrate"`
	Container      string `toml:"container"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for beatcut.
//
// Configuration sections by subsystem:
//   - Paths: data, work, output, report, log and music directories
//   - Library: clip catalog source and tag weights
//   - Analysis: beat tracking and segmentation
//   - Selection: clip selection strategy and cooldown
//   - Alignment: cut grid and trim heuristics
//   - Encoding: ffmpeg binaries, output format and render timeout
//   - Logging: log format and level
type Config struct {
	Paths     Paths     `toml:"paths"`
	Library   Library   `toml:"library"`
	Analysis  Analysis  `toml:"analysis"`
	Selection Selection `toml:"selection"`
	Alignment Alignment `toml:"alignment"`
	Encoding  Encoding  `toml:"encoding"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("beatcut.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories a run writes into.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.DataDir, c.Paths.WorkDir, c.Paths.OutputDir, c.ProjectsDir()}
	if c.Paths.ReportDir != "" {
		dirs = append(dirs, c.Paths.ReportDir)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the usage and run history database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "beatcut.db")
}

// ProjectsDir returns the directory holding analyzed music projects.
func (c *Config) ProjectsDir() string {
	return filepath.Join(c.Paths.DataDir, "projects")
}

// RenderTimeout returns the encoder timeout. Zero disables the timeout.
func (c *Config) RenderTimeout() time.Duration {
	if c.Encoding.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.Encoding.TimeoutSeconds) * time.Second
}

// FrameInterval returns the duration of one output frame in seconds.
func (c *Config) FrameInterval() float64 {
	if c.Encoding.FPS <= 0 {
		return 1.0 / float64(defaultFPS)
	}
	return 1.0 / float64(c.Encoding.FPS)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// Sample returns the commented sample configuration.
func Sample() string {
	return sampleConfig
}

// CreateSample writes the sample configuration to path. An existing file is
// only replaced when overwrite is set; otherwise the error wraps fs.ErrExist.
func CreateSample(path string, overwrite bool) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !overwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	if _, err := f.WriteString(sampleConfig); err != nil {
		f.Close()
		return fmt.Errorf("write sample config: %w", err)
	}
	return f.Close()
}

// Encode renders the effective configuration, defaults and expanded paths
// included, as TOML.
func (c *Config) Encode() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}
