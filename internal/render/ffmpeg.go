package render

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"beatcut/internal/logging"
	"beatcut/internal/timeline"
)

const (
	stderrTailBytes = 4096
	killGrace       = 5 * time.Second
)

// Share of overall progress attributed to each phase.
const (
	trimShare   = 0.9
	concatShare = 0.03
)

// FFmpegEncoder renders with the ffmpeg command line tool.
type FFmpegEncoder struct {
	Binary string
	Logger *slog.Logger
}

// NewFFmpegEncoder builds an encoder for the given binary.
func NewFFmpegEncoder(binary string, logger *slog.Logger) *FFmpegEncoder {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &FFmpegEncoder{Binary: binary, Logger: logging.NewComponentLogger(logger, "ffmpeg")}
}

// Encode trims each entry into WorkDir, concatenates the pieces and muxes
// the track audio into job.OutputPath.
func (e *FFmpegEncoder) Encode(ctx context.Context, job Job) (string, error) {
	if len(job.Edits.Entries) == 0 {
		return "", fmt.Errorf("encode: empty edit list")
	}
	if job.WorkDir == "" {
		return "", fmt.Errorf("encode: work dir is required")
	}
	total := len(job.Edits.Entries)
	pieces := make([]string, 0, total)
	for i, entry := range job.Edits.Entries {
		piece := filepath.Join(job.WorkDir, fmt.Sprintf("seg-%04d.mkv", i))
		step := func(frac float64) {
			job.report(Progress{
				Phase:   "trim",
				Step:    i + 1,
				Total:   total,
				Percent: 100 * trimShare * (float64(i) + frac) / float64(total),
			})
		}
		step(0)
		if err := e.run(ctx, trimArgs(entry, job.Params, piece), entry.Duration, step); err != nil {
			return "", fmt.Errorf("trim entry %d (%s): %w", entry.Index, entry.Clip.ID, err)
		}
		pieces = append(pieces, piece)
	}

	listPath := filepath.Join(job.WorkDir, "concat.txt")
	if err := os.WriteFile(listPath, []byte(concatList(pieces)), 0o644); err != nil {
		return "", fmt.Errorf("write concat list: %w", err)
	}
	video := filepath.Join(job.WorkDir, "video.mkv")
	job.report(Progress{Phase: "concat", Step: 1, Total: 1, Percent: 100 * trimShare})
	if err := e.run(ctx, concatArgs(listPath, video), 0, nil); err != nil {
		return "", fmt.Errorf("concat: %w", err)
	}

	duration := job.Edits.Duration()
	mux := func(frac float64) {
		job.report(Progress{
			Phase:   "mux",
			Step:    1,
			Total:   1,
			Percent: min(100, 100*(trimShare+concatShare+(1-trimShare-concatShare)*frac)),
		})
	}
	if err := e.run(ctx, muxArgs(video, job.AudioPath, duration, job.Params, job.OutputPath), duration, mux); err != nil {
		return "", fmt.Errorf("mux audio: %w", err)
	}
	job.report(Progress{Phase: "mux", Step: 1, Total: 1, Percent: 100})
	return job.OutputPath, nil
}

func (e *FFmpegEncoder) run(ctx context.Context, args []string, expected float64, progress func(float64)) error {
	binary := strings.TrimSpace(e.Binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	configureProcessGroup(cmd)
	cmd.WaitDelay = killGrace

	stderr := &tailBuffer{max: stderrTailBytes}
	cmd.Stderr = stderr
	cmd.Stdout = &progressWriter{expected: expected, notify: progress}

	e.Logger.Debug("ffmpeg command", logging.String("args", strings.Join(args, " ")))
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("ffmpeg: %w", ctxErr)
		}
		return fmt.Errorf("ffmpeg: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func baseArgs() []string {
	return []string{"-hide_banner", "-loglevel", "error", "-nostdin", "-y"}
}

func trimArgs(entry timeline.EditEntry, p Params, output string) []string {
	args := baseArgs()
	if entry.Loop {
		args = append(args, "-stream_loop", "-1")
	}
	filter := (&filterChain{}).fit(p.Width, p.Height).fps(p.FPS)
	args = append(args,
		"-ss", formatSeconds(entry.SourceIn),
		"-i", entry.Clip.Path,
		"-t", formatSeconds(entry.Duration),
		"-vf", filter.String(),
		"-an",
	)
	args = append(args, videoCodecArgs(p)...)
	return append(args, "-progress", "pipe:1", output)
}

func concatArgs(listPath, output string) []string {
	args := baseArgs()
	return append(args, "-f", "concat", "-safe", "0", "-i", listPath, "-c", "copy", output)
}

func muxArgs(video, audio string, duration float64, p Params, output string) []string {
	args := baseArgs()
	args = append(args,
		"-i", video,
		"-i", audio,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", "copy",
	)
	codec := p.AudioCodec
	if codec == "" {
		codec = "aac"
	}
	args = append(args, "-c:a", codec)
	if p.AudioBitrate != "" {
		args = append(args, "-b:a", p.AudioBitrate)
	}
	if duration > 0 {
		args = append(args, "-t", formatSeconds(duration))
	}
	args = append(args, "-shortest")
	if strings.EqualFold(filepath.Ext(output), ".mp4") || strings.EqualFold(filepath.Ext(output), ".mov") {
		args = append(args, "-movflags", "+faststart")
	}
	return append(args, "-progress", "pipe:1", output)
}

func videoCodecArgs(p Params) []string {
	codec := p.VideoCodec
	if codec == "" {
		codec = "libx264"
	}
	args := []string{"-c:v", codec}
	if p.Preset != "" {
		args = append(args, "-preset", p.Preset)
	}
	args = append(args, "-crf", strconv.Itoa(p.CRF), "-pix_fmt", "yuv420p")
	return args
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

// progressWriter parses `-progress pipe:1` key=value lines.
type progressWriter struct {
	expected float64
	notify   func(float64)
	partial  []byte
}

func (w *progressWriter) Write(p []byte) (int, error) {
	if w.notify == nil {
		return len(p), nil
	}
	w.partial = append(w.partial, p...)
	for {
		idx := bytes.IndexByte(w.partial, '\n')
		if idx < 0 {
			break
		}
		w.handle(strings.TrimSpace(string(w.partial[:idx])))
		w.partial = w.partial[idx+1:]
	}
	return len(p), nil
}

func (w *progressWriter) handle(line string) {
	key, value, ok := strings.Cut(line, "=")
	if !ok {
		return
	}
	switch key {
	case "out_time_us", "out_time_ms":
		// out_time_ms is also reported in microseconds.
		us, err := strconv.ParseInt(value, 10, 64)
		if err != nil || w.expected <= 0 {
			return
		}
		frac := float64(us) / 1e6 / w.expected
		w.notify(min(max(frac, 0), 1))
	case "progress":
		if value == "end" {
			w.notify(1)
		}
	}
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
