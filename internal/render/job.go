package render

import (
	"strings"

	"beatcut/internal/config"
	"beatcut/internal/timeline"
)

// Params are the output encoding settings.
type Params struct {
	Width        int
	Height       int
	FPS          int
	VideoCodec   string
	Preset       string
	CRF          int
	AudioCodec   string
	AudioBitrate string
	Container    string
}

// ParamsFromConfig copies the encoding section of the configuration.
func ParamsFromConfig(e config.Encoding) Params {
	return Params{
		Width:        e.Width,
		Height:       e.Height,
		FPS:          e.FPS,
		VideoCodec:   e.VideoCodec,
		Preset:       e.Preset,
		CRF:          e.CRF,
		AudioCodec:   e.AudioCodec,
		AudioBitrate: e.AudioBitrate,
		Container:    e.Container,
	}
}

// Extension returns the output file extension including the dot.
func (p Params) Extension() string {
	container := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(p.Container)), ".")
	if container == "" {
		container = "mp4"
	}
	return "." + container
}

// Progress reports encoder advancement.
type Progress struct {
	// Phase is "trim", "concat" or "mux".
	Phase   string
	Step    int
	Total   int
	Percent float64
}

// ProgressFunc receives progress updates. It is called from the goroutine
// reading encoder output and must not block.
type ProgressFunc func(Progress)

// Job is everything an encoder needs for one render.
type Job struct {
	RunID      string
	Edits      timeline.EditList
	AudioPath  string
	OutputPath string
	// WorkDir holds intermediate files. Set by Pipeline.
	WorkDir  string
	Params   Params
	Progress ProgressFunc
}

func (j Job) report(p Progress) {
	if j.Progress != nil {
		j.Progress(p)
	}
}
