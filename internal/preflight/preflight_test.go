package preflight

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"beatcut/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	result := CheckDirectoryAccess("test", t.TempDir())
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if result := CheckDirectoryAccess("test", f); result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckFreeSpace(t *testing.T) {
	dir := t.TempDir()
	if result := CheckFreeSpace("tmp", dir, 1); !result.Passed {
		t.Fatalf("expected pass with 1 byte minimum, got %s", result.Detail)
	}
	if result := CheckFreeSpace("tmp", dir, 1<<62); result.Passed {
		t.Fatalf("expected failure with huge minimum, got %s", result.Detail)
	}
	if result := CheckFreeSpace("tmp", filepath.Join(dir, "missing"), 1); result.Passed {
		t.Fatal("expected failure for missing path")
	}
}

func TestCheckLibrarySource(t *testing.T) {
	cfg := config.Default()
	if result := CheckLibrarySource(&cfg); result.Passed {
		t.Fatal("expected failure without a configured source")
	}
	catalog := filepath.Join(t.TempDir(), "clips.yaml")
	if err := os.WriteFile(catalog, []byte("clips: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg.Library.Catalog = catalog
	if result := CheckLibrarySource(&cfg); !result.Passed {
		t.Fatalf("expected pass for catalog, got %s", result.Detail)
	}
}

func TestRunAllReportsMissingBinaries(t *testing.T) {
	cfg := config.Default()
	dir := t.TempDir()
	cfg.Paths.DataDir = dir
	cfg.Paths.WorkDir = dir
	cfg.Paths.OutputDir = dir
	cfg.Encoding.FFmpegBinary = "definitely-not-ffmpeg"
	cfg.Encoding.FFprobeBinary = "definitely-not-ffprobe"

	results := RunAll(context.Background(), &cfg)
	byName := map[string]Result{}
	for _, r := range results {
		byName[r.Name] = r
	}
	if byName["FFmpeg"].Passed {
		t.Fatal("expected ffmpeg check to fail")
	}
	if !byName["FFprobe"].Passed {
		t.Fatal("expected ffprobe to be optional when no scan database is configured")
	}
	if !byName["Data directory"].Passed {
		t.Fatalf("expected data directory to pass: %s", byName["Data directory"].Detail)
	}
}

func TestCheckBinaryReportsVersionBanner(t *testing.T) {
	dir := t.TempDir()
	ffmpeg := filepath.Join(dir, "ffmpeg")
	script := "#!/bin/sh\necho 'ffmpeg version 7.1 Copyright (c) 2000-2024 the FFmpeg developers'\necho 'built with gcc'\n"
	if err := os.WriteFile(ffmpeg, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	broken := filepath.Join(dir, "broken")
	if err := os.WriteFile(broken, []byte("#!/bin/sh\nexit 3\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	result := CheckBinary(ctx, Binary{Name: "FFmpeg", Command: ffmpeg})
	if !result.Passed {
		t.Fatalf("expected pass, got %s", result.Detail)
	}
	if want := ffmpeg + " (ffmpeg version 7.1)"; result.Detail != want {
		t.Fatalf("detail = %q, want %q", result.Detail, want)
	}

	if result := CheckBinary(ctx, Binary{Name: "Broken", Command: broken, Optional: true}); result.Passed {
		t.Fatalf("expected a binary that fails -version to fail even when optional: %s", result.Detail)
	}
	if result := CheckBinary(ctx, Binary{Name: "Missing", Command: "clearly-not-present-binary", Optional: true}); !result.Passed {
		t.Fatalf("expected missing optional binary to pass, got %s", result.Detail)
	}
	if result := CheckBinary(ctx, Binary{Name: "Unset", Command: "  "}); result.Passed || result.Detail != "command not configured" {
		t.Fatalf("unexpected result for unset command: %#v", result)
	}
}
