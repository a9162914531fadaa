package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// Decoder produces mono PCM samples in [-1, 1] at sampleRate.
type Decoder interface {
	Decode(ctx context.Context, path string, sampleRate int) ([]float64, error)
}

// FFmpegDecoder decodes audio by piping 32-bit float PCM out of ffmpeg.
type FFmpegDecoder struct {
	Binary string
}

// Decode runs ffmpeg and converts its stdout to samples.
func (d FFmpegDecoder) Decode(ctx context.Context, path string, sampleRate int) ([]float64, error) {
	binaryPath := strings.TrimSpace(d.Binary)
	if binaryPath == "" {
		binaryPath = "ffmpeg"
	}
	if sampleRate <= 0 {
		return nil, errors.New("decode audio: sample rate must be positive")
	}
	args := []string{
		"-hide_banner", "-loglevel", "error", "-nostdin",
		"-i", path,
		"-vn", "-ac", "1", "-ar", strconv.Itoa(sampleRate),
		"-f", "f32le", "pipe:1",
	}
	cmd := exec.CommandContext(ctx, binaryPath, args...) //nolint:gosec
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg decode: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return decodeFloat32LE(output), nil
}

func decodeFloat32LE(data []byte) []float64 {
	samples := make([]float64, len(data)/4)
	for i := range samples {
		v := float64(math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:])))
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		samples[i] = v
	}
	return samples
}
