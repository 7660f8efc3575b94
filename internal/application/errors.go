package application

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrEventNotFound is returned when the targeted event does not exist.
	ErrEventNotFound = errors.New("application: event not found")
)

// InvalidIntervalError reports a time range whose start is not strictly
// before its end. User-correctable.
type InvalidIntervalError struct {
	Start time.Time
	End   time.Time
}

// Error implements the error interface.
func (e *InvalidIntervalError) Error() string {
	return fmt.Sprintf("invalid interval: start %s must be before end %s",
		e.Start.Format(time.RFC3339), e.End.Format(time.RFC3339))
}

// ConflictError reports that a proposed interval overlaps an existing event
// in one of the touched day buckets. It carries the conflicting event's
// identity and time range for diagnostics. User-correctable, distinct from
// InvalidIntervalError.
type ConflictError struct {
	EventID string
	Name    string
	Start   time.Time
	End     time.Time
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	return fmt.Sprintf("scheduling conflict with event %q (%s) from %s to %s",
		e.Name, e.EventID, e.Start.Format(time.RFC3339), e.End.Format(time.RFC3339))
}

// ValidationError captures field level validation issues that callers can
// surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}
