package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Stage failure markers. Every error that aborts a run carries exactly one of
// the first five so the run report can name the failure kind.
var (
	ErrAnalysis  = errors.New("analysis error")
	ErrLibrary   = errors.New("library error")
	ErrSelection = errors.New("selection error")
	ErrAlignment = errors.New("alignment error")
	ErrRender    = errors.New("render error")

	ErrExternalTool  = errors.New("external tool error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
)

// Error kinds reported for failed runs.
const (
	KindAnalysis  = "AnalysisError"
	KindLibrary   = "LibraryError"
	KindSelection = "SelectionError"
	KindAlignment = "AlignmentError"
	KindRender    = "RenderError"
	KindCanceled  = "Canceled"
	KindUnknown   = "Error"
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		if err == nil {
			return errors.New(detail)
		}
		return fmt.Errorf("%s: %w", detail, err)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind maps an error to the name of its failure kind.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAnalysis):
		return KindAnalysis
	case errors.Is(err, ErrLibrary):
		return KindLibrary
	case errors.Is(err, ErrSelection):
		return KindSelection
	case errors.Is(err, ErrAlignment):
		return KindAlignment
	case errors.Is(err, ErrRender):
		return KindRender
	case errors.Is(err, context.Canceled):
		return KindCanceled
	default:
		return KindUnknown
	}
}

// IsTimeout reports whether err was caused by an exceeded deadline.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
