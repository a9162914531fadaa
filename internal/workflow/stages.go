package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"time"

	"beatcut/internal/aligner"
	"beatcut/internal/audio"
	"beatcut/internal/library"
	"beatcut/internal/logging"
	"beatcut/internal/preflight"
	"beatcut/internal/project"
	"beatcut/internal/render"
	"beatcut/internal/report"
	"beatcut/internal/selector"
	"beatcut/internal/services"
	"beatcut/internal/store"
	"beatcut/internal/timeline"
)

// runState is everything one run accumulates while moving through stages.
type runState struct {
	runner  *Runner
	req     Request
	run     *store.Run
	rng     *rand.Rand
	logger  *slog.Logger
	started time.Time

	track    *audio.Track
	index    *library.Index
	pool     []library.Clip
	aligner  *aligner.Aligner
	plan     timeline.Plan
	edits    *timeline.EditList
	output   render.Result
	warnings []timeline.Warning
	timings  []report.StageTiming
	report   report.RunReport
}

func (rs *runState) stage(ctx context.Context, status store.RunStatus, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rs.run.Status = status
	rs.run.Stage = string(status)
	stageCtx := services.WithStage(ctx, string(status))
	logger := logging.WithContext(stageCtx, rs.runner.logger)
	if err := rs.runner.store.UpdateRun(stageCtx, rs.run); err != nil {
		logger.Warn("run transition not persisted",
			logging.String(logging.FieldEventType, "run_update_failed"),
			logging.String(logging.FieldErrorHint, "check the database at data_dir"),
			logging.Error(err),
		)
	}
	logger.Info("stage started", logging.String(logging.FieldEventType, "stage_start"))

	start := time.Now()
	err := fn(stageCtx)
	elapsed := time.Since(start)
	rs.timings = append(rs.timings, report.StageTiming{Stage: string(status), Elapsed: elapsed})
	if err != nil {
		return err
	}
	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Duration("elapsed", elapsed),
	)
	return nil
}

func (rs *runState) analyze(ctx context.Context) error {
	cfg := rs.runner.cfg
	manifest, err := project.Load(cfg.ProjectsDir(), rs.req.Source)
	switch {
	case err == nil:
		rs.track = manifest.Track()
		rs.run.AudioPath = rs.track.Path
		rs.logger.Info("using analyzed project",
			logging.String("project", manifest.Slug),
			logging.Float64("tempo_bpm", rs.track.Tempo),
			logging.Int("beats", len(rs.track.Beats)),
		)
		return nil
	case !errors.Is(err, project.ErrNotFound):
		return services.Wrap(services.ErrAnalysis, "analysis", "load project",
			"Project manifest is unusable", err)
	}
	analyzer := audio.NewAnalyzer(cfg.Analysis, rs.runner.decoder, rs.logger)
	track, err := analyzer.Analyze(ctx, rs.req.Source)
	if err != nil {
		return err
	}
	rs.track = track
	rs.run.Tempo = track.Tempo
	return nil
}

func (rs *runState) selectClips(ctx context.Context) error {
	cfg := rs.runner.cfg
	rs.run.Tempo = rs.track.Tempo

	idx, err := library.Open(ctx, cfg, rs.runner.store, rs.logger)
	if err != nil {
		return err
	}
	rs.index = idx
	for _, s := range idx.Skipped() {
		rs.warn("library", timeline.WarnClipSkipped, fmt.Sprintf("clip %s skipped: %s", s.ID, s.Reason))
	}

	sel := cfg.Selection
	candidates, err := idx.ListCandidates(ctx, library.Filter{
		Tags:        sel.Tags,
		ExcludeTags: sel.ExcludeTags,
		MinDuration: sel.MinClipSeconds,
		MinHeight:   sel.MinHeight,
		Orientation: sel.Orientation,
	})
	if err != nil {
		return err
	}
	rs.pool = slices.Collect(candidates)

	history, err := idx.RecentHistory(ctx, sel.Cooldown)
	if err != nil {
		return err
	}

	rs.aligner = aligner.New(cfg.Alignment, cfg.Encoding.FPS)
	plan, err := selector.Select(selector.Request{
		Slots:          rs.aligner.CutGrid(rs.track),
		TrackDuration:  rs.track.Duration,
		NominalSegment: cfg.Analysis.TargetSegment,
		Strategy:       sel.Strategy,
		Cooldown:       sel.Cooldown,
		TagWeights:     cfg.Library.TagWeights,
		Tags:           sel.Tags,
		History:        history,
	}, rs.pool, rs.rng)
	if err != nil {
		return err
	}
	rs.plan = plan
	rs.warnings = append(rs.warnings, plan.Warnings...)
	rs.logger.Info("clips selected",
		logging.Int("pool", len(rs.pool)),
		logging.Int("segments", len(plan.Segments)),
		logging.Int("cooldown", plan.Cooldown),
	)
	return nil
}

func (rs *runState) align(context.Context) error {
	edits, warnings, err := rs.aligner.Align(rs.track, rs.plan, rs.pool, rs.rng)
	if err != nil {
		return err
	}
	rs.edits = &edits
	rs.run.EntryCount = len(edits.Entries)
	rs.warnings = append(rs.warnings, warnings...)
	return nil
}

func (rs *runState) render(ctx context.Context) error {
	cfg := rs.runner.cfg
	params := render.ParamsFromConfig(cfg.Encoding)
	outputPath := rs.req.OutputPath
	if outputPath == "" {
		outputPath = defaultOutputPath(cfg.Paths.OutputDir, rs.track.Path, rs.run.ID, params.Extension())
	}

	need := estimateRenderBytes(rs.edits.Duration(), params)
	if check := preflight.CheckFreeSpace("Output space", cfg.Paths.OutputDir, need); !check.Passed {
		rs.warn("render", timeline.WarnLowDiskSpace, check.Detail)
	}

	sampler := logging.NewProgressSampler(10)
	progress := func(p render.Progress) {
		if sampler.ShouldLog(p.Percent, p.Phase) {
			rs.logger.Info("render progress",
				logging.String(logging.FieldEventType, "render_progress"),
				logging.String("phase", p.Phase),
				logging.Int("step", p.Step),
				logging.Int("total", p.Total),
				logging.Float64("percent", p.Percent),
			)
		}
		if rs.req.Progress != nil {
			rs.req.Progress(p)
		}
	}

	pipeline := render.NewPipeline(rs.runner.encoder, cfg.Paths.WorkDir, cfg.RenderTimeout(), rs.logger)
	result, err := pipeline.Render(ctx, render.Job{
		RunID:      rs.run.ID,
		Edits:      *rs.edits,
		AudioPath:  rs.track.Path,
		OutputPath: outputPath,
		Params:     params,
		Progress:   progress,
	})
	if err != nil {
		return err
	}
	rs.output = result
	rs.run.OutputPath = result.OutputPath

	if err := rs.index.RecordUsage(ctx, rs.run.ID, rs.edits.ClipIDs()...); err != nil {
		rs.warn("render", timeline.WarnUsageRecord, err.Error())
	}
	return nil
}

func (rs *runState) writeReport(context.Context) error {
	rs.report = report.Build(rs.reportInput(nil, ""))
	rs.persistReport()
	return nil
}

func (rs *runState) reportInput(err error, failedStage string) report.Input {
	return report.Input{
		RunID:       rs.run.ID,
		Seed:        rs.run.Seed,
		StartedAt:   rs.started,
		FinishedAt:  rs.runner.now(),
		FailedStage: failedStage,
		Err:         err,
		Track:       rs.track,
		Edits:       rs.edits,
		Warnings:    rs.warnings,
		Timings:     rs.timings,
		OutputPath:  rs.output.OutputPath,
		OutputSize:  rs.output.SizeBytes,
	}
}

// persistReport writes the report; failure to write is only a warning.
func (rs *runState) persistReport() {
	path := rs.req.ReportPath
	if path == "" {
		path = defaultReportPath(rs.runner.cfg.Paths.ReportDir, rs.runner.cfg.Paths.OutputDir, rs.output.OutputPath, rs.run.ID)
	}
	if err := report.Write(path, rs.report); err != nil {
		rs.warn("report", timeline.WarnReportWrite, err.Error())
		logging.WarnWithContext(rs.logger, "report not written", "report_write_failed",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check report_dir permissions"),
			logging.String(logging.FieldImpact, "run outcome is only available in logs and run history"),
		)
		return
	}
	rs.run.ReportPath = path
}

func (rs *runState) warn(stage, code, message string) {
	rs.warnings = append(rs.warnings, timeline.Warning{Stage: stage, Code: code, Message: message})
}

func (rs *runState) finish(ctx context.Context) (*Result, error) {
	rs.run.Status = store.StatusDone
	rs.run.Stage = ""
	if err := rs.runner.store.UpdateRun(ctx, rs.run); err != nil {
		rs.logger.Warn("run completion not persisted", logging.Error(err))
	}
	rs.logger.Info("run completed",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.String("output", rs.run.OutputPath),
		logging.String("report", rs.run.ReportPath),
		logging.Int("entries", rs.run.EntryCount),
		logging.Int("warnings", len(rs.warnings)),
		logging.Duration("elapsed", rs.runner.now().Sub(rs.started)),
	)
	return rs.result(), nil
}

// fail moves the run to the failed state, writes the partial report and
// returns stageErr unchanged.
func (rs *runState) fail(ctx context.Context, status store.RunStatus, stageErr error) (*Result, error) {
	kind := services.Kind(stageErr)
	logging.ErrorWithContext(logging.WithContext(services.WithStage(ctx, string(status)), rs.runner.logger),
		"stage failed", "stage_failure",
		logging.String(logging.FieldErrorKind, kind),
		logging.Error(stageErr),
	)

	rs.output = render.Result{}
	rs.run.OutputPath = ""
	rs.report = report.Build(rs.reportInput(stageErr, string(status)))
	rs.persistReport()

	rs.run.Status = store.StatusFailed
	rs.run.Stage = string(status)
	rs.run.ErrorKind = kind
	rs.run.ErrorMessage = stageErr.Error()
	persistCtx := context.WithoutCancel(ctx)
	if err := rs.runner.store.UpdateRun(persistCtx, rs.run); err != nil {
		if errors.Is(err, context.Canceled) {
			rs.logger.Debug("run failure not persisted during shutdown")
		} else {
			rs.logger.Error("failed to persist run failure", logging.Error(err))
		}
	}
	return rs.result(), stageErr
}

func (rs *runState) result() *Result {
	return &Result{
		RunID:      rs.run.ID,
		Seed:       rs.run.Seed,
		Status:     rs.run.Status,
		OutputPath: rs.run.OutputPath,
		ReportPath: rs.run.ReportPath,
		Report:     rs.report,
	}
}
