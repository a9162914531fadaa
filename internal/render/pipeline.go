package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"beatcut/internal/fileutil"
	"beatcut/internal/logging"
	"beatcut/internal/services"
)

const stageName = "render"

// Result describes a published render.
type Result struct {
	OutputPath string
	SizeBytes  int64
	Elapsed    time.Duration
}

// Pipeline runs an Encoder inside a private workspace and publishes the
// output only when the encoder succeeded.
type Pipeline struct {
	encoder  Encoder
	workRoot string
	timeout  time.Duration
	logger   *slog.Logger
}

// NewPipeline constructs a pipeline. A zero timeout disables the deadline.
func NewPipeline(encoder Encoder, workRoot string, timeout time.Duration, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pipeline{
		encoder:  encoder,
		workRoot: workRoot,
		timeout:  timeout,
		logger:   logging.NewComponentLogger(logger, stageName),
	}
}

// Render encodes job. On any failure, including timeout and cancellation,
// nothing exists at job.OutputPath afterwards and the workspace is removed.
func (p *Pipeline) Render(ctx context.Context, job Job) (Result, error) {
	if p.encoder == nil {
		return Result{}, services.Wrap(services.ErrConfiguration, stageName, "render", "No encoder configured", nil)
	}
	if job.OutputPath == "" {
		return Result{}, services.Wrap(services.ErrRender, stageName, "render", "Output path is required", nil)
	}
	if err := job.Edits.Validate(); err != nil {
		return Result{}, services.Wrap(services.ErrRender, stageName, "validate edits", "Edit list rejected", err)
	}
	if _, err := os.Stat(job.AudioPath); err != nil {
		return Result{}, services.Wrap(services.ErrRender, stageName, "stat audio", "Audio track unavailable", err)
	}
	if err := os.MkdirAll(p.workRoot, 0o755); err != nil {
		return Result{}, services.Wrap(services.ErrRender, stageName, "prepare workspace", "Failed to create work directory", err)
	}
	workDir, err := os.MkdirTemp(p.workRoot, "render-*")
	if err != nil {
		return Result{}, services.Wrap(services.ErrRender, stageName, "prepare workspace", "Failed to create workspace", err)
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			logging.WarnWithContext(p.logger, "workspace cleanup failed", "render_cleanup",
				logging.String("work_dir", workDir),
				logging.Error(err),
			)
		}
	}()

	renderCtx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		renderCtx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	finalPath := job.OutputPath
	job.WorkDir = workDir
	job.OutputPath = filepath.Join(workDir, "output"+filepath.Ext(finalPath))

	start := time.Now()
	p.logger.Info("render started",
		logging.String("output", finalPath),
		logging.Int("entries", len(job.Edits.Entries)),
		logging.Float64("duration_seconds", job.Edits.Duration()),
	)
	produced, err := p.encoder.Encode(renderCtx, job)
	if err != nil {
		return Result{}, p.failure(ctx, renderCtx, err)
	}
	if ctxErr := renderCtx.Err(); ctxErr != nil {
		return Result{}, p.failure(ctx, renderCtx, ctxErr)
	}
	if produced == "" {
		produced = job.OutputPath
	}
	info, err := os.Stat(produced)
	if err != nil || info.Size() == 0 {
		if err == nil {
			err = errors.New("empty file")
		}
		return Result{}, services.Wrap(services.ErrRender, stageName, "verify output", "Encoder produced no output", err)
	}
	if err := fileutil.MoveFile(produced, finalPath); err != nil {
		_ = os.Remove(finalPath)
		return Result{}, services.Wrap(services.ErrRender, stageName, "publish output", "Failed to move output into place", err)
	}

	result := Result{OutputPath: finalPath, SizeBytes: info.Size(), Elapsed: time.Since(start)}
	p.logger.Info("render completed",
		logging.String("output", finalPath),
		logging.Int64("size_bytes", result.SizeBytes),
		logging.Duration("elapsed", result.Elapsed),
	)
	return result, nil
}

func (p *Pipeline) failure(parent, renderCtx context.Context, err error) error {
	switch {
	case parent.Err() != nil:
		return services.Wrap(services.ErrRender, stageName, "encode", "Render canceled", errors.Join(parent.Err(), err))
	case errors.Is(renderCtx.Err(), context.DeadlineExceeded):
		return services.Wrap(services.ErrRender, stageName, "encode",
			fmt.Sprintf("Render exceeded timeout of %s", p.timeout),
			errors.Join(services.ErrTimeout, err))
	default:
		return services.Wrap(services.ErrRender, stageName, "encode", "Encoder failed", err)
	}
}
