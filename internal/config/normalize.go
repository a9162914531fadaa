package config

import (
	"fmt"
	"os"
	"slices"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeLibrary(); err != nil {
		return err
	}
	c.normalizeAnalysis()
	c.normalizeSelection()
	c.normalizeAlignment()
	c.normalizeEncoding()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		c.Paths.WorkDir = defaultWorkDir
	}
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.ReportDir, err = expandPath(strings.TrimSpace(c.Paths.ReportDir)); err != nil {
		return fmt.Errorf("paths.report_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.MusicDir) == "" {
		c.Paths.MusicDir = defaultMusicDir
	}
	if c.Paths.MusicDir, err = expandPath(c.Paths.MusicDir); err != nil {
		return fmt.Errorf("paths.music_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLibrary() error {
	if strings.TrimSpace(c.Library.ScanDB) == "" {
		if value, ok := os.LookupEnv("BEATCUT_SCAN_DB"); ok {
			c.Library.ScanDB = value
		}
	}
	if strings.TrimSpace(c.Library.Catalog) == "" {
		if value, ok := os.LookupEnv("BEATCUT_CATALOG"); ok {
			c.Library.Catalog = value
		}
	}
	var err error
	if c.Library.ScanDB, err = expandPath(strings.TrimSpace(c.Library.ScanDB)); err != nil {
		return fmt.Errorf("library.scan_db: %w", err)
	}
	if c.Library.Catalog, err = expandPath(strings.TrimSpace(c.Library.Catalog)); err != nil {
		return fmt.Errorf("library.catalog: %w", err)
	}
	if len(c.Library.TagWeights) > 0 {
		weights := make(map[string]float64, len(c.Library.TagWeights))
		for tag, weight := range c.Library.TagWeights {
			weights[normalizeTag(tag)] = weight
		}
		c.Library.TagWeights = weights
	}
	return nil
}

func (c *Config) normalizeAnalysis() {
	c.Analysis.SegmentMode = strings.ToLower(strings.TrimSpace(c.Analysis.SegmentMode))
	if c.Analysis.SegmentMode == "" {
		c.Analysis.SegmentMode = defaultSegmentMode
	}
	if c.Analysis.StartBPM <= 0 {
		c.Analysis.StartBPM = defaultStartBPM
	}
	if c.Analysis.Sensitivity <= 0 {
		c.Analysis.Sensitivity = defaultSensitivity
	}
	if c.Analysis.TargetSegment <= 0 {
		c.Analysis.TargetSegment = defaultTargetSegment
	}
}

func (c *Config) normalizeSelection() {
	c.Selection.Strategy = strings.ToLower(strings.TrimSpace(c.Selection.Strategy))
	if c.Selection.Strategy == "" {
		c.Selection.Strategy = defaultStrategy
	}
	c.Selection.Strategy = strings.ReplaceAll(c.Selection.Strategy, "-", "_")
	c.Selection.Tags = normalizeTags(c.Selection.Tags)
	c.Selection.ExcludeTags = normalizeTags(c.Selection.ExcludeTags)
	c.Selection.Orientation = strings.ToLower(strings.TrimSpace(c.Selection.Orientation))
	if c.Selection.Orientation == "any" {
		c.Selection.Orientation = ""
	}
}

func (c *Config) normalizeAlignment() {
	c.Alignment.ShortClipPolicy = strings.ToLower(strings.TrimSpace(c.Alignment.ShortClipPolicy))
	c.Alignment.ShortClipPolicy = strings.ReplaceAll(c.Alignment.ShortClipPolicy, "-", "_")
	if c.Alignment.ShortClipPolicy == "" {
		c.Alignment.ShortClipPolicy = defaultShortClipPolicy
	}
	if c.Alignment.MinBeatsPerCut <= 0 {
		c.Alignment.MinBeatsPerCut = defaultMinBeatsPerCut
	}
	if c.Alignment.MaxBeatsPerCut <= 0 {
		c.Alignment.MaxBeatsPerCut = defaultMaxBeatsPerCut
	}
}

func (c *Config) normalizeEncoding() {
	if strings.TrimSpace(c.Encoding.FFmpegBinary) == "" {
		if value, ok := os.LookupEnv("BEATCUT_FFMPEG"); ok && strings.TrimSpace(value) != "" {
			c.Encoding.FFmpegBinary = value
		} else {
			c.Encoding.FFmpegBinary = "ffmpeg"
		}
	}
	if strings.TrimSpace(c.Encoding.FFprobeBinary) == "" {
		if value, ok := os.LookupEnv("BEATCUT_FFPROBE"); ok && strings.TrimSpace(value) != "" {
			c.Encoding.FFprobeBinary = value
		} else {
			c.Encoding.FFprobeBinary = "ffprobe"
		}
	}
	c.Encoding.FFmpegBinary = strings.TrimSpace(c.Encoding.FFmpegBinary)
	c.Encoding.FFprobeBinary = strings.TrimSpace(c.Encoding.FFprobeBinary)
	c.Encoding.Container = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(c.Encoding.Container)), ".")
	if c.Encoding.Container == "" {
		c.Encoding.Container = defaultContainer
	}
	if strings.TrimSpace(c.Encoding.VideoCodec) == "" {
		c.Encoding.VideoCodec = defaultVideoCodec
	}
	if strings.TrimSpace(c.Encoding.AudioCodec) == "" {
		c.Encoding.AudioCodec = defaultAudioCodec
	}
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
		c.Logging.Format = "json"
	default:
		c.Logging.Format = format
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func normalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = normalizeTag(tag)
		if tag == "" || slices.Contains(out, tag) {
			continue
		}
		out = append(out, tag)
	}
	return out
}
