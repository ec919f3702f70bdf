package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSceneNotFound is returned when a scene id or scene entity id has no stored record.
var ErrSceneNotFound = errors.New("scene not found")

// ErrEntityNotFound is returned by state providers when an entity id does not resolve.
var ErrEntityNotFound = errors.New("entity not found")

// ErrNoValidEntities is the reason reported when a create request captures nothing.
var ErrNoValidEntities = errors.New("no valid entities found")

// ValidationError reports a missing or malformed field in a service call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid request: " + e.Reason
	}
	return fmt.Sprintf("invalid request: %s: %s", e.Field, e.Reason)
}

// NewValidationError builds a ValidationError.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// CaptureFailure is one entity that could not be captured.
type CaptureFailure struct {
	EntityID string `json:"entity_id"`
	Reason   string `json:"reason"`
}

// PartialCaptureError lists the entities skipped during capture.
// The scene is still built from the entities that succeeded.
type PartialCaptureError struct {
	Failures []CaptureFailure
}

func (e *PartialCaptureError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = f.EntityID + " (" + f.Reason + ")"
	}
	return fmt.Sprintf("could not capture %d entities: %s", len(e.Failures), strings.Join(parts, ", "))
}

// EntityIDs returns the failed identifiers in order.
func (e *PartialCaptureError) EntityIDs() []string {
	ids := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		ids[i] = f.EntityID
	}
	return ids
}

// ActivationFailure is a single entity that rejected its restored state.
// It is reported in an ActivationReport, never returned as an error for the batch.
type ActivationFailure struct {
	EntityID string `json:"entity_id"`
	Reason   string `json:"reason"`
}

// PersistenceError wraps a durable write or read that could not complete.
type PersistenceError struct {
	Op      string
	SceneID string
	Err     error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s %q: %v", e.Op, e.SceneID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsPersistence reports whether err is (or wraps) a PersistenceError.
func IsPersistence(err error) bool {
	var p *PersistenceError
	return errors.As(err, &p)
}
