package testsupport

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile creates path with size bytes of filler, creating parent
// directories. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, bytes.Repeat([]byte{0x42}, int(max(size, 1))), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteClipFiles creates count placeholder clip files named clip-01.mp4,
// clip-02.mp4, ... under dir and returns their paths.
func WriteClipFiles(t testing.TB, dir string, count int) []string {
	t.Helper()

	paths := make([]string, 0, count)
	for i := 1; i <= count; i++ {
		path := filepath.Join(dir, fmt.Sprintf("clip-%02d.mp4", i))
		WriteFile(t, path, 1024)
		paths = append(paths, path)
	}
	return paths
}

// ClipCatalog renders a YAML catalog for the given clip paths. Every clip gets
// the same duration and a 1280x720 resolution; tags cycle through tags when
// provided.
func ClipCatalog(paths []string, duration float64, tags ...string) string {
	var buf bytes.Buffer
	buf.WriteString("clips:\n")
	for i, path := range paths {
		fmt.Fprintf(&buf, "  - id: c%02d\n    path: %q\n    duration: %g\n    width: 1280\n    height: 720\n    codec: h264\n", i+1, path, duration)
		if len(tags) > 0 {
			fmt.Fprintf(&buf, "    tags: [%s]\n", tags[i%len(tags)])
		}
	}
	return buf.String()
}
