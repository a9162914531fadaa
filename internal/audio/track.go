package audio

import "math"

// Beat is one detected beat.
type Beat struct {
	Time       float64 `json:"time"`
	Intensity  float64 `json:"intensity"`
	LocalTempo float64 `json:"local_tempo"`
}

// Track is the analysis result for one audio file. All fields are immutable
// once returned.
type Track struct {
	Path       string    `json:"path,omitempty"`
	SampleRate int       `json:"sample_rate"`
	HopLength  int       `json:"hop_length"`
	Duration   float64   `json:"duration"`
	Tempo      float64   `json:"tempo"`
	Beats      []Beat    `json:"beats"`
	Onsets     []float64 `json:"onsets"`
	RMS        []float64 `json:"rms"`
}

// BeatTimes returns the beat positions in seconds.
func (t *Track) BeatTimes() []float64 {
	times := make([]float64, len(t.Beats))
	for i, b := range t.Beats {
		times[i] = b.Time
	}
	return times
}

// FrameRate is the number of analysis frames per second.
func (t *Track) FrameRate() float64 {
	if t.HopLength <= 0 {
		return 0
	}
	return float64(t.SampleRate) / float64(t.HopLength)
}

// EnergyAt returns the normalized RMS energy at sec, linearly interpolated and
// clamped to the curve's ends. Tracks without an energy curve report 0.5.
func (t *Track) EnergyAt(sec float64) float64 {
	if len(t.RMS) == 0 || t.FrameRate() <= 0 {
		return 0.5
	}
	pos := sec * t.FrameRate()
	if pos <= 0 {
		return t.RMS[0]
	}
	last := len(t.RMS) - 1
	if pos >= float64(last) {
		return t.RMS[last]
	}
	i := int(math.Floor(pos))
	frac := pos - float64(i)
	return t.RMS[i]*(1-frac) + t.RMS[i+1]*frac
}

// MeanEnergy averages the energy curve over [start, end).
func (t *Track) MeanEnergy(start, end float64) float64 {
	if len(t.RMS) == 0 || t.FrameRate() <= 0 || end <= start {
		return t.EnergyAt(start)
	}
	fr := t.FrameRate()
	lo := max(0, int(math.Floor(start*fr)))
	hi := min(len(t.RMS), int(math.Ceil(end*fr)))
	if hi <= lo {
		return t.EnergyAt(start)
	}
	var sum float64
	for _, v := range t.RMS[lo:hi] {
		sum += v
	}
	return sum / float64(hi-lo)
}
