package render

import (
	"fmt"
	"strings"
)

// filterChain assembles a comma separated ffmpeg video filter graph.
type filterChain struct {
	filters []string
}

// fit scales into width x height keeping the aspect ratio and pads the rest
// with black bars.
func (c *filterChain) fit(width, height int) *filterChain {
	if width <= 0 || height <= 0 {
		return c
	}
	c.filters = append(c.filters,
		fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease", width, height),
		fmt.Sprintf("pad=%d:%d:(ow-iw)/2:(oh-ih)/2", width, height),
		"setsar=1",
	)
	return c
}

func (c *filterChain) fps(fps int) *filterChain {
	if fps <= 0 {
		return c
	}
	c.filters = append(c.filters, fmt.Sprintf("fps=%d", fps))
	return c
}

func (c *filterChain) String() string {
	return strings.Join(c.filters, ",")
}

// concatList renders a concat demuxer list. Single quotes inside paths are
// closed, escaped and reopened.
func concatList(paths []string) string {
	var b strings.Builder
	for _, path := range paths {
		b.WriteString("file '")
		b.WriteString(strings.ReplaceAll(path, "'", `'\''`))
		b.WriteString("'\n")
	}
	return b.String()
}
