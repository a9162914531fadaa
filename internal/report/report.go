package report

import (
	"cmp"
	"slices"
	"time"

	"beatcut/internal/audio"
	"beatcut/internal/services"
	"beatcut/internal/timeline"
)

// Run outcomes.
const (
	StatusDone   = "done"
	StatusFailed = "failed"
)

const maxGroups = 15

// StageTiming records how long one workflow stage ran.
type StageTiming struct {
	Stage   string        `json:"stage"`
	Elapsed time.Duration `json:"elapsed"`
}

// TrackSummary describes the analyzed audio.
type TrackSummary struct {
	Path     string  `json:"path"`
	Duration float64 `json:"duration"`
	Tempo    float64 `json:"tempo"`
	Beats    int     `json:"beats"`
}

// Entry is one placed clip on the output timeline.
type Entry struct {
	Index     int     `json:"index"`
	ClipID    string  `json:"clip_id"`
	ClipName  string  `json:"clip_name"`
	Start     float64 `json:"start"`
	Duration  float64 `json:"duration"`
	SourceIn  float64 `json:"source_in"`
	SourceOut float64 `json:"source_out"`
	Loop      bool    `json:"loop"`
}

// ClipGroup aggregates the distinct clips used per codec and resolution.
type ClipGroup struct {
	Codec      string `json:"codec"`
	Resolution string `json:"resolution"`
	Count      int    `json:"count"`
	SizeBytes  int64  `json:"size_bytes"`
}

// RunReport is the immutable outcome of one run.
type RunReport struct {
	RunID        string             `json:"run_id"`
	Status       string             `json:"status"`
	FailedStage  string             `json:"failed_stage,omitempty"`
	ErrorKind    string             `json:"error_kind,omitempty"`
	ErrorMessage string             `json:"error_message,omitempty"`
	Seed         int64              `json:"seed"`
	StartedAt    time.Time          `json:"started_at"`
	FinishedAt   time.Time          `json:"finished_at"`
	Track        *TrackSummary      `json:"track,omitempty"`
	Entries      []Entry            `json:"entries"`
	ClipsUsed    []string           `json:"clips_used"`
	Groups       []ClipGroup        `json:"groups"`
	Warnings     []timeline.Warning `json:"warnings"`
	Timings      []StageTiming      `json:"timings"`
	OutputPath   string             `json:"output_path,omitempty"`
	OutputSize   int64              `json:"output_size,omitempty"`
}

// Failed reports whether the run ended in the failed state.
func (r RunReport) Failed() bool {
	return r.Status == StatusFailed
}

// Input carries everything a run knows at the point the report is built.
// Track and Edits are nil when the run failed before producing them.
type Input struct {
	RunID       string
	Seed        int64
	StartedAt   time.Time
	FinishedAt  time.Time
	FailedStage string
	Err         error
	Track       *audio.Track
	Edits       *timeline.EditList
	Warnings    []timeline.Warning
	Timings     []StageTiming
	OutputPath  string
	OutputSize  int64
}

// Build assembles a RunReport. It copies every slice it keeps.
func Build(in Input) RunReport {
	r := RunReport{
		RunID:      in.RunID,
		Status:     StatusDone,
		Seed:       in.Seed,
		StartedAt:  in.StartedAt,
		FinishedAt: in.FinishedAt,
		Warnings:   slices.Clone(in.Warnings),
		Timings:    slices.Clone(in.Timings),
	}
	if in.Err != nil {
		r.Status = StatusFailed
		r.FailedStage = in.FailedStage
		r.ErrorKind = services.Kind(in.Err)
		r.ErrorMessage = in.Err.Error()
	} else {
		r.OutputPath = in.OutputPath
		r.OutputSize = in.OutputSize
	}
	if in.Track != nil {
		r.Track = &TrackSummary{
			Path:     in.Track.Path,
			Duration: in.Track.Duration,
			Tempo:    in.Track.Tempo,
			Beats:    len(in.Track.Beats),
		}
	}
	if in.Edits != nil {
		r.Entries, r.ClipsUsed, r.Groups = summarizeEdits(*in.Edits)
	}
	return r
}

func summarizeEdits(edits timeline.EditList) ([]Entry, []string, []ClipGroup) {
	entries := make([]Entry, 0, len(edits.Entries))
	seen := make(map[string]bool)
	var used []string
	groups := make(map[[2]string]*ClipGroup)
	for _, e := range edits.Entries {
		entries = append(entries, Entry{
			Index:     e.Index,
			ClipID:    e.Clip.ID,
			ClipName:  e.Clip.Name,
			Start:     e.Start,
			Duration:  e.Duration,
			SourceIn:  e.SourceIn,
			SourceOut: e.SourceOut,
			Loop:      e.Loop,
		})
		if seen[e.Clip.ID] {
			continue
		}
		seen[e.Clip.ID] = true
		used = append(used, e.Clip.ID)

		key := [2]string{e.Clip.Codec, e.Clip.Resolution()}
		if key[0] == "" {
			key[0] = "unknown"
		}
		g, ok := groups[key]
		if !ok {
			g = &ClipGroup{Codec: key[0], Resolution: key[1]}
			groups[key] = g
		}
		g.Count++
		g.SizeBytes += e.Clip.SizeBytes
	}

	out := make([]ClipGroup, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	slices.SortFunc(out, func(a, b ClipGroup) int {
		return cmp.Or(
			cmp.Compare(b.Count, a.Count),
			cmp.Compare(b.SizeBytes, a.SizeBytes),
			cmp.Compare(a.Codec, b.Codec),
			cmp.Compare(a.Resolution, b.Resolution),
		)
	})
	return entries, used, out
}
