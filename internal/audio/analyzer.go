package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"beatcut/internal/config"
	"beatcut/internal/logging"
	"beatcut/internal/services"
)

const (
	stageName   = "analysis"
	beatsPerBar = 4
)

// Analyzer extracts a Track from an audio file.
type Analyzer struct {
	cfg     config.Analysis
	decoder Decoder
	logger  *slog.Logger
}

// NewAnalyzer builds an analyzer. A nil decoder is not allowed.
func NewAnalyzer(cfg config.Analysis, decoder Decoder, logger *slog.Logger) *Analyzer {
	return &Analyzer{
		cfg:     cfg,
		decoder: decoder,
		logger:  logging.NewComponentLogger(logger, "audio"),
	}
}

// Analyze decodes path and analyzes the samples. Failures are AnalysisErrors.
func (a *Analyzer) Analyze(ctx context.Context, path string) (*Track, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, services.Wrap(services.ErrAnalysis, stageName, "open audio", "Audio file unreadable", err)
	}
	if info.IsDir() {
		return nil, services.Wrap(services.ErrAnalysis, stageName, "open audio", fmt.Sprintf("%s is a directory", path), nil)
	}
	if a.decoder == nil {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "decode audio", "No audio decoder configured", nil)
	}

	samples, err := a.decoder.Decode(ctx, path, a.cfg.SampleRate)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
			return nil, err
		}
		return nil, services.Wrap(services.ErrAnalysis, stageName, "decode audio", "Audio could not be decoded", err)
	}
	track, err := a.AnalyzeSamples(samples)
	if err != nil {
		return nil, err
	}
	track.Path = path
	a.logger.Info("audio analyzed",
		logging.String("path", path),
		logging.Float64("duration_seconds", track.Duration),
		logging.Float64("tempo_bpm", track.Tempo),
		logging.Int("beats", len(track.Beats)),
		logging.Int("onsets", len(track.Onsets)),
	)
	return track, nil
}

// AnalyzeSamples runs the analysis on already decoded mono samples.
func (a *Analyzer) AnalyzeSamples(samples []float64) (*Track, error) {
	sr := a.cfg.SampleRate
	hop := a.cfg.HopLength
	if len(samples) == 0 {
		return nil, services.Wrap(services.ErrAnalysis, stageName, "analyze", "Audio contains no samples", nil)
	}
	duration := float64(len(samples)) / float64(sr)
	if duration < a.cfg.MinDurationSeconds {
		return nil, services.Wrap(services.ErrAnalysis, stageName, "analyze",
			fmt.Sprintf("Audio is %.2fs, shorter than the %.2fs minimum", duration, a.cfg.MinDurationSeconds), nil)
	}

	feats := extractFeatures(samples, a.cfg.FrameSize, hop)
	frameRate := float64(sr) / float64(hop)

	tempo := estimateTempo(feats.onset, frameRate, a.cfg.MinBPM, a.cfg.MaxBPM, a.cfg.StartBPM)
	if tempo <= 0 {
		return nil, services.Wrap(services.ErrAnalysis, stageName, "tempo", "No periodic rhythm detected", nil)
	}
	if bar := beatsPerBar * 60 / tempo; duration < bar {
		return nil, services.Wrap(services.ErrAnalysis, stageName, "analyze",
			fmt.Sprintf("Audio is %.2fs, shorter than one bar (%.2fs at %.1f BPM)", duration, bar, tempo), nil)
	}

	frames := trackBeats(feats.onset, 60*frameRate/tempo, a.cfg.Tightness)
	if len(frames) == 0 {
		return nil, services.Wrap(services.ErrAnalysis, stageName, "beats", "No beats detected", nil)
	}

	strengths := make([]float64, len(frames))
	for i, f := range frames {
		strengths[i] = feats.onset[f]
	}
	strengths = normalizeMax(strengths)

	beats := make([]Beat, len(frames))
	for i, f := range frames {
		beats[i] = Beat{
			Time:      float64(f) / frameRate,
			Intensity: strengths[i],
		}
	}
	assignLocalTempo(beats, tempo)

	env := normalizeMax(feats.onset)
	peaks := pickPeaks(env, 3, 3, 10, 10, int(0.03*frameRate)+1, 0.07)
	onsets := make([]float64, len(peaks))
	for i, p := range peaks {
		onsets[i] = float64(p) / frameRate
	}

	return &Track{
		SampleRate: sr,
		HopLength:  hop,
		Duration:   duration,
		Tempo:      tempo,
		Beats:      beats,
		Onsets:     onsets,
		RMS:        normalizeMax(feats.rms),
	}, nil
}

// assignLocalTempo derives each beat's tempo from the interval to the next
// beat. The last beat repeats the previous value; a lone beat uses the global
// tempo.
func assignLocalTempo(beats []Beat, global float64) {
	for i := range beats {
		switch {
		case i+1 < len(beats) && beats[i+1].Time > beats[i].Time:
			beats[i].LocalTempo = 60 / (beats[i+1].Time - beats[i].Time)
		case i > 0:
			beats[i].LocalTempo = beats[i-1].LocalTempo
		default:
			beats[i].LocalTempo = global
		}
	}
}
