package store

import (
	"strings"
	"time"
)

// RunStatus is the state of a run in the workflow state machine.
type RunStatus string

const (
	StatusAnalyzing RunStatus = "analyzing"
	StatusSelecting RunStatus = "selecting"
	StatusAligning  RunStatus = "aligning"
	StatusRendering RunStatus = "rendering"
	StatusReporting RunStatus = "reporting"
	StatusDone      RunStatus = "done"
	StatusFailed    RunStatus = "failed"
)

var allStatuses = []RunStatus{
	StatusAnalyzing,
	StatusSelecting,
	StatusAligning,
	StatusRendering,
	StatusReporting,
	StatusDone,
	StatusFailed,
}

// ParseStatus converts a string into a known RunStatus.
func ParseStatus(value string) (RunStatus, bool) {
	normalized := RunStatus(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// Terminal reports whether no further transitions follow the status.
func (s RunStatus) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

// Usage is the persisted selection history of one clip.
type Usage struct {
	ClipID     string
	Count      int
	LastUsedAt time.Time
}

// Probe is cached ffprobe metadata for a clip file. Entries are keyed by path
// and invalidated when the file size or modification time changes.
type Probe struct {
	Path     string
	Size     int64
	ModTime  time.Time
	Duration float64
	Width    int
	Height   int
	FPS      float64
	Codec    string
	ProbedAt time.Time
}

// Run is one row of run history.
type Run struct {
	ID           string
	Status       RunStatus
	Stage        string
	ErrorKind    string
	ErrorMessage string
	AudioPath    string
	OutputPath   string
	ReportPath   string
	Seed         int64
	Tempo        float64
	EntryCount   int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
