package schema

import "fmt"

// FieldError reports a single schema invariant violation.
// Path is a dotted field path from the event root (e.g. "track.name");
// Reason is human-readable and stable enough to assert on.
type FieldError struct {
	Path   string
	Reason string
}

// Error implements the error interface.
func (e *FieldError) Error() string {
	if e.Path == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

// NewFieldError creates a FieldError with a formatted reason.
func NewFieldError(path, format string, args ...any) *FieldError {
	return &FieldError{Path: path, Reason: fmt.Sprintf(format, args...)}
}

// prefix returns a copy of the error with a path segment prepended.
// Entity-level validators report paths relative to the entity; the
// event constructor anchors them at the event root.
func (e *FieldError) prefix(segment string) *FieldError {
	if e == nil {
		return nil
	}
	path := segment
	if e.Path != "" {
		path = segment + "." + e.Path
	}
	return &FieldError{Path: path, Reason: e.Reason}
}
