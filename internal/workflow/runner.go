package workflow

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"beatcut/internal/audio"
	"beatcut/internal/config"
	"beatcut/internal/library"
	"beatcut/internal/logging"
	"beatcut/internal/render"
	"beatcut/internal/report"
	"beatcut/internal/services"
	"beatcut/internal/store"
)

// Store is the persistence the runner needs: clip usage for the library
// index and the run history rows.
type Store interface {
	library.UsageStore
	CreateRun(ctx context.Context, run *store.Run) error
	UpdateRun(ctx context.Context, run *store.Run) error
}

// Request describes one run.
type Request struct {
	// Source is an audio file or a reference to an analyzed project.
	Source string
	// OutputPath overrides the generated output location.
	OutputPath string
	// ReportPath overrides the generated report location.
	ReportPath string
	// Seed overrides selection.seed when non-zero.
	Seed     int64
	Progress render.ProgressFunc
}

// Result summarizes a finished run. It is returned for failed runs too.
type Result struct {
	RunID      string
	Seed       int64
	Status     store.RunStatus
	OutputPath string
	ReportPath string
	Report     report.RunReport
}

// Runner executes runs against one configuration and store.
type Runner struct {
	cfg     *config.Config
	store   Store
	logger  *slog.Logger
	decoder audio.Decoder
	encoder render.Encoder
	now     func() time.Time
	newID   func() string
}

// Option customizes a Runner.
type Option func(*Runner)

// WithDecoder replaces the ffmpeg audio decoder.
func WithDecoder(d audio.Decoder) Option {
	return func(r *Runner) { r.decoder = d }
}

// WithEncoder replaces the ffmpeg render encoder.
func WithEncoder(e render.Encoder) Option {
	return func(r *Runner) { r.encoder = e }
}

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// NewRunner builds a runner. The store must stay open for the runner's
// lifetime.
func NewRunner(cfg *config.Config, st Store, logger *slog.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	r := &Runner{
		cfg:    cfg,
		store:  st,
		logger: logging.NewComponentLogger(logger, "workflow"),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
	if cfg != nil {
		r.decoder = audio.FFmpegDecoder{Binary: cfg.Encoding.FFmpegBinary}
		r.encoder = render.NewFFmpegEncoder(cfg.Encoding.FFmpegBinary, logger)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes one run to completion. The returned error carries the kind of
// the failed stage; the Result is populated as far as the run got.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	if r.cfg == nil || r.store == nil {
		return nil, services.Wrap(services.ErrConfiguration, "workflow", "run", "Runner requires configuration and store", nil)
	}
	if err := r.cfg.EnsureDirectories(); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "workflow", "prepare directories", "Failed to create directories", err)
	}

	seed := req.Seed
	if seed == 0 {
		seed = r.cfg.Selection.Seed
	}
	if seed == 0 {
		seed = randomSeed()
	}

	rs := &runState{
		runner:  r,
		req:     req,
		rng:     NewRand(seed),
		started: r.now(),
		run: &store.Run{
			ID:        r.newID(),
			Status:    store.StatusAnalyzing,
			AudioPath: req.Source,
			Seed:      seed,
		},
	}
	ctx = services.WithRunID(ctx, rs.run.ID)
	rs.logger = logging.WithContext(ctx, r.logger)

	if err := r.store.CreateRun(ctx, rs.run); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "workflow", "create run", "Failed to record run", err)
	}
	rs.logger.Info("run started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.String("source", req.Source),
		logging.Int64("seed", seed),
	)

	stages := []struct {
		status store.RunStatus
		fn     func(context.Context) error
	}{
		{store.StatusAnalyzing, rs.analyze},
		{store.StatusSelecting, rs.selectClips},
		{store.StatusAligning, rs.align},
		{store.StatusRendering, rs.render},
	}
	for _, st := range stages {
		if err := rs.stage(ctx, st.status, st.fn); err != nil {
			return rs.fail(ctx, st.status, err)
		}
	}
	// The output is published by now; a late cancel must not turn a finished
	// render into a failed run.
	ctx = context.WithoutCancel(ctx)
	if err := rs.stage(ctx, store.StatusReporting, rs.writeReport); err != nil {
		return rs.fail(ctx, store.StatusReporting, err)
	}
	return rs.finish(ctx)
}

// NewRand returns the deterministic random source used for a seed.
func NewRand(seed int64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
}

func randomSeed() int64 {
	for {
		if seed := int64(rand.Uint64() >> 1); seed != 0 {
			return seed
		}
	}
}
