package room

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies a RuntimeError for recovery policy and audit output.
type ErrorCategory string

const (
	// CategoryLayout covers solve failures and invalid rectangles.
	CategoryLayout ErrorCategory = "layout"
	// CategoryRender covers write/flush failures on the output sink.
	CategoryRender ErrorCategory = "render"
	// CategoryPlugin covers errors reported by plugin hooks.
	CategoryPlugin ErrorCategory = "plugin"
	// CategoryState covers shared resource map contract violations.
	CategoryState ErrorCategory = "state"
	// CategoryConfig covers illegal runtime configuration.
	CategoryConfig ErrorCategory = "config"
)

// RuntimeError is the structured error value carried through the
// Error → RecoverOrFatal → Fatal path. Plugins may flip Recoverable and
// patch fields while handling the RecoverOrFatal phase.
type RuntimeError struct {
	Category    ErrorCategory
	Source      string
	Message     string
	Recoverable bool
	Data        map[string]any
}

func (e *RuntimeError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("%s error from %s: %s", e.Category, e.Source, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Category, e.Message)
}

// auditFields returns the wire shape required for Error/Fatal stages.
func (e *RuntimeError) auditFields() Fields {
	return Fields{F("error", Fields{
		F("category", string(e.Category)),
		F("source", e.Source),
		F("message", e.Message),
		F("recoverable", e.Recoverable),
	})}
}

// Shared resource map failures.
var (
	ErrResourceExists  = errors.New("resource already exists")
	ErrResourceMissing = errors.New("resource missing")
	ErrResourceType    = errors.New("resource type mismatch")
)

// ZoneNotFoundError reports a content write against a zone id that is not
// present in the current layout solve.
type ZoneNotFoundError struct {
	Zone ZoneID
}

func (e *ZoneNotFoundError) Error() string {
	return fmt.Sprintf("zone %q not found", e.Zone)
}

// SolveError reports an invalid layout solve result.
type SolveError struct {
	Zone   ZoneID
	Rect   Rect
	Size   Size
	Reason string
}

func (e *SolveError) Error() string {
	if e.Zone != "" {
		return fmt.Sprintf("layout solve: zone %q %+v within %dx%d: %s",
			e.Zone, e.Rect, e.Size.Width, e.Size.Height, e.Reason)
	}
	return fmt.Sprintf("layout solve: %s", e.Reason)
}
