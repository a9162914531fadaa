package config

import (
	"errors"
	"fmt"
	"slices"
)

var (
	segmentModes      = []string{"beat", "onset", "uniform"}
	strategies        = []string{"weighted", "round_robin"}
	shortClipPolicies = []string{"replace", "loop", "replace_then_loop"}
	orientations      = []string{"", "landscape", "portrait"}
	logFormats        = []string{"console", "json"}
	logLevels         = []string{"debug", "info", "warn", "error"}
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateAnalysis(); err != nil {
		return err
	}
	if err := c.validateSelection(); err != nil {
		return err
	}
	if err := c.validateAlignment(); err != nil {
		return err
	}
	if err := c.validateEncoding(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateAnalysis() error {
	a := c.Analysis
	if a.SampleRate < 8000 {
		return errors.New("analysis.sample_rate must be at least 8000")
	}
	if a.FrameSize <= 0 || a.FrameSize&(a.FrameSize-1) != 0 {
		return errors.New("analysis.frame_size must be a positive power of two")
	}
	if a.HopLength <= 0 || a.HopLength > a.FrameSize {
		return errors.New("analysis.hop_length must be positive and no larger than frame_size")
	}
	if a.MinBPM <= 0 || a.MaxBPM <= a.MinBPM {
		return errors.New("analysis.min_bpm must be positive and below analysis.max_bpm")
	}
	if a.Tightness <= 0 {
		return errors.New("analysis.tightness must be positive")
	}
	if a.MinDurationSeconds < 0 {
		return errors.New("analysis.min_duration_seconds must be non-negative")
	}
	if !slices.Contains(segmentModes, a.SegmentMode) {
		return fmt.Errorf("analysis.segment_mode: unsupported value %q", a.SegmentMode)
	}
	return nil
}

func (c *Config) validateSelection() error {
	s := c.Selection
	if !slices.Contains(strategies, s.Strategy) {
		return fmt.Errorf("selection.strategy: unsupported value %q", s.Strategy)
	}
	if s.Cooldown < 0 {
		return errors.New("selection.cooldown must be non-negative")
	}
	if s.MinClipSeconds < 0 {
		return errors.New("selection.min_clip_seconds must be non-negative")
	}
	if s.MinHeight < 0 {
		return errors.New("selection.min_height must be non-negative")
	}
	if !slices.Contains(orientations, s.Orientation) {
		return fmt.Errorf("selection.orientation: unsupported value %q", s.Orientation)
	}
	for tag, weight := range c.Library.TagWeights {
		if weight < 0 {
			return fmt.Errorf("library.tag_weights.%s must be non-negative", tag)
		}
	}
	return nil
}

func (c *Config) validateAlignment() error {
	a := c.Alignment
	if a.BeatsPerCut <= 0 {
		return errors.New("alignment.beats_per_cut must be positive")
	}
	if a.MinBeatsPerCut > a.MaxBeatsPerCut {
		return errors.New("alignment.min_beats_per_cut must not exceed alignment.max_beats_per_cut")
	}
	if a.LowEnergy < 0 || a.HighEnergy > 1 || a.LowEnergy >= a.HighEnergy {
		return errors.New("alignment.low_energy and alignment.high_energy must satisfy 0 <= low < high <= 1")
	}
	if a.EdgeGuard < 0 || a.EdgeGuard >= 0.5 {
		return errors.New("alignment.edge_guard must be in [0, 0.5)")
	}
	if !slices.Contains(shortClipPolicies, a.ShortClipPolicy) {
		return fmt.Errorf("alignment.short_clip_policy: unsupported value %q", a.ShortClipPolicy)
	}
	return nil
}

func (c *Config) validateEncoding() error {
	e := c.Encoding
	if e.Width <= 0 || e.Height <= 0 {
		return errors.New("encoding.width and encoding.height must be positive")
	}
	if e.Width%2 != 0 || e.Height%2 != 0 {
		return errors.New("encoding.width and encoding.height must be even")
	}
	if e.FPS <= 0 || e.FPS > 240 {
		return errors.New("encoding.fps must be between 1 and 240")
	}
	if e.CRF < 0 || e.CRF > 63 {
		return errors.New("encoding.crf must be between 0 and 63")
	}
	if e.TimeoutSeconds < 0 {
		return errors.New("encoding.timeout_seconds must be non-negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !slices.Contains(logFormats, c.Logging.Format) {
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	if !slices.Contains(logLevels, c.Logging.Level) {
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
