package preflight

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"beatcut/internal/config"
)

const versionProbeTimeout = 5 * time.Second

// Binary names an external tool and whether a run can proceed without it.
type Binary struct {
	Name     string
	Command  string
	Optional bool
}

// CheckBinary resolves b.Command on PATH and asks it for its version banner.
// A missing optional binary passes with a note; a binary that resolves but
// cannot report a version fails even when optional, since it would fail the
// same way mid-run.
func CheckBinary(ctx context.Context, b Binary) Result {
	command := strings.TrimSpace(b.Command)
	if command == "" {
		return Result{Name: b.Name, Passed: b.Optional, Detail: "command not configured"}
	}
	resolved, err := exec.LookPath(command)
	if err != nil {
		detail := fmt.Sprintf("%q not found on PATH", command)
		if b.Optional {
			detail += " (optional)"
		}
		return Result{Name: b.Name, Passed: b.Optional, Detail: detail}
	}

	ctx, cancel := context.WithTimeout(ctx, versionProbeTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, resolved, "-version").Output()
	if err != nil {
		return Result{Name: b.Name, Detail: fmt.Sprintf("%s (error: -version: %v)", resolved, err)}
	}
	banner := firstLine(out)
	if banner == "" {
		return Result{Name: b.Name, Passed: true, Detail: resolved}
	}
	return Result{Name: b.Name, Passed: true, Detail: fmt.Sprintf("%s (%s)", resolved, banner)}
}

// CheckSystemDeps evaluates the external binaries the render pipeline and
// clip probing need. ffprobe only matters when clips are probed from a scan
// database.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []Result {
	binaries := []Binary{
		{Name: "FFmpeg", Command: cfg.Encoding.FFmpegBinary},
		{Name: "FFprobe", Command: cfg.Encoding.FFprobeBinary, Optional: cfg.Library.ScanDB == ""},
	}
	results := make([]Result, 0, len(binaries))
	for _, b := range binaries {
		results = append(results, CheckBinary(ctx, b))
	}
	return results
}

// firstLine trims a banner like "ffmpeg version 7.1 Copyright (c) ..." down
// to its version part.
func firstLine(out []byte) string {
	line, _, _ := bytes.Cut(out, []byte{'\n'})
	text := strings.TrimSpace(string(line))
	if i := strings.Index(text, " Copyright"); i > 0 {
		text = text[:i]
	}
	return text
}
