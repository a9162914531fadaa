package preflight

import (
	"context"

	"beatcut/internal/config"
)

// MinWorkSpaceBytes is the free space below which the work directory check fails.
const MinWorkSpaceBytes = 2 << 30

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir),
		CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir),
		CheckFreeSpace("Work volume", cfg.Paths.WorkDir, MinWorkSpaceBytes),
		CheckLibrarySource(cfg),
	}
	if cfg.Paths.ReportDir != "" {
		results = append(results, CheckDirectoryAccess("Report directory", cfg.Paths.ReportDir))
	}
	return append(results, CheckSystemDeps(ctx, cfg)...)
}
