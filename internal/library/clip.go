package library

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Clip is one source video available for cutting.
type Clip struct {
	ID         string
	Path       string
	Name       string
	Duration   float64
	Width      int
	Height     int
	FPS        float64
	Codec      string
	SizeBytes  int64
	Tags       []string
	UsageCount int
	LastUsedAt time.Time
}

// HasTag reports whether the clip carries tag (case-insensitive).
func (c Clip) HasTag(tag string) bool {
	tag = strings.ToLower(strings.TrimSpace(tag))
	return slices.Contains(c.Tags, tag)
}

// Orientation returns "landscape", "portrait", or "" when dimensions are unknown.
func (c Clip) Orientation() string {
	switch {
	case c.Width <= 0 || c.Height <= 0:
		return ""
	case c.Height > c.Width:
		return "portrait"
	default:
		return "landscape"
	}
}

// Resolution formats the clip dimensions as WIDTHxHEIGHT.
func (c Clip) Resolution() string {
	if c.Width <= 0 || c.Height <= 0 {
		return "unknown"
	}
	return fmt.Sprintf("%dx%d", c.Width, c.Height)
}

// Filter narrows the candidate pool. Zero values disable a criterion.
type Filter struct {
	// Tags matches clips carrying any of the tags.
	Tags        []string
	ExcludeTags []string
	MinDuration float64
	MaxDuration float64
	MinHeight   int
	Orientation string
}

// Match reports whether the clip satisfies every criterion.
func (f Filter) Match(c Clip) bool {
	if f.MinDuration > 0 && c.Duration < f.MinDuration {
		return false
	}
	if f.MaxDuration > 0 && c.Duration > f.MaxDuration {
		return false
	}
	if f.MinHeight > 0 && c.Height < f.MinHeight {
		return false
	}
	if f.Orientation != "" && c.Orientation() != "" && c.Orientation() != f.Orientation {
		return false
	}
	for _, tag := range f.ExcludeTags {
		if c.HasTag(tag) {
			return false
		}
	}
	if len(f.Tags) == 0 {
		return true
	}
	for _, tag := range f.Tags {
		if c.HasTag(tag) {
			return true
		}
	}
	return false
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" || slices.Contains(out, tag) {
			continue
		}
		out = append(out, tag)
	}
	slices.Sort(out)
	return out
}

// heightTag names the vertical resolution class, e.g. "1080p".
func heightTag(height int) string {
	if height <= 0 {
		return ""
	}
	return fmt.Sprintf("%dp", height)
}
