package workflow

import (
	"path/filepath"
	"strings"

	"beatcut/internal/render"
	"beatcut/internal/textutil"
)

// Bits per pixel assumed when estimating the space a render needs. The
// intermediate segments roughly double the final size.
const (
	estimateBitsPerPixel = 0.1
	intermediateFactor   = 2
	minRenderBytes       = 64 << 20
)

// defaultOutputPath names the output after the track and the run so that
// concurrent runs never collide.
func defaultOutputPath(outputDir, trackPath, runID, ext string) string {
	stem := strings.TrimSuffix(filepath.Base(trackPath), filepath.Ext(trackPath))
	name := textutil.SanitizeFileName(stem)
	if name == "" {
		name = "beatcut"
	}
	return filepath.Join(outputDir, name+"-"+shortID(runID)+ext)
}

// defaultReportPath prefers report_dir, then the output's directory next to
// the output file, then the output directory.
func defaultReportPath(reportDir, outputDir, outputPath, runID string) string {
	switch {
	case reportDir != "":
		return filepath.Join(reportDir, runID+".report.txt")
	case outputPath != "":
		return strings.TrimSuffix(outputPath, filepath.Ext(outputPath)) + ".report.txt"
	default:
		return filepath.Join(outputDir, runID+".report.txt")
	}
}

func shortID(runID string) string {
	if len(runID) > 8 {
		return runID[:8]
	}
	return runID
}

func estimateRenderBytes(seconds float64, p render.Params) uint64 {
	bytesPerSecond := float64(p.Width*p.Height*p.FPS) * estimateBitsPerPixel / 8
	need := uint64(seconds * bytesPerSecond * intermediateFactor)
	return max(need, minRenderBytes)
}
