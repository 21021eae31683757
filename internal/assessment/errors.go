package assessment

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSessionNotFound is returned when no session has the given id.
var ErrSessionNotFound = errors.New("session not found")

// FieldError is one rejected intake field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError rejects malformed input. Nothing was changed.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

func invalid(field, msg string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: msg}}}
}

// GradingFailure wraps an error from scoring or a capability (question
// generation, classification, code execution). The session is unchanged
// and the same call can be retried.
type GradingFailure struct {
	SessionID string
	Stage     Stage
	Err       error
}

func (e *GradingFailure) Error() string {
	return fmt.Sprintf("grading %s failed: %v", e.Stage, e.Err)
}

func (e *GradingFailure) Unwrap() error {
	return e.Err
}

// StageMismatchError rejects answers for a stage other than the current one.
type StageMismatchError struct {
	SessionID string
	Current   Stage
	Submitted Stage
}

func (e *StageMismatchError) Error() string {
	return fmt.Sprintf("session %s is at %s, not %s", e.SessionID, e.Current, e.Submitted)
}

// SessionTerminatedError rejects any change to a completed or terminated
// session.
type SessionTerminatedError struct {
	SessionID string
	Stage     Stage
}

func (e *SessionTerminatedError) Error() string {
	return fmt.Sprintf("session %s has ended (%s)", e.SessionID, e.Stage)
}
