// Package shaderr defines the error taxonomy shared across the shadow
// computation pipeline.
package shaderr

import "fmt"

// Kind classifies a pipeline failure for callers that need to branch on it
// (e.g. a UI distinguishing a bad AOI from a cancelled run).
type Kind int

const (
	// Config covers malformed dates, empty AOIs, mismatched DTM/DSM shapes,
	// an AOI outside the raster, or a degenerate clip window.
	Config Kind = iota
	// Io covers raster/polygon read or write failures.
	Io
	// Format covers a reloaded raster missing required bands.
	Format
	// Cancelled covers cooperative cancellation between timestamps.
	Cancelled
)

func (k Kind) String() string {
	switch k {
	case Config:
		return "config"
	case Io:
		return "io"
	case Format:
		return "format"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Error is a pipeline failure tagged with the stage that raised it and its
// Kind, so the orchestrator can always surface one message string with the
// failing stage prefixed (spec.md §7).
type Error struct {
	Stage string
	Kind  Kind
	Err   error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Stage, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a tagged Error, wrapping err (which may be nil).
func New(stage string, kind Kind, err error) *Error {
	return &Error{Stage: stage, Kind: kind, Err: err}
}

// Configf builds a Config error with a formatted message.
func Configf(stage, format string, args ...interface{}) *Error {
	return New(stage, Config, fmt.Errorf(format, args...))
}
