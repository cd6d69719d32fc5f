package domain

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists indicates a uniqueness constraint was violated.
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalidTransition is returned when a stage change is not in the transition table.
	ErrInvalidTransition = errors.New("invalid stage transition")
	// ErrStageConflict is returned when the stored stage changed underneath a compare-and-set.
	ErrStageConflict = errors.New("stage changed concurrently")
)

// ValidationError carries per-field messages for rejected input.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func NewValidationError(message string, fields map[string]string) *ValidationError {
	return &ValidationError{Message: message, Fields: fields}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return e.Message + " (" + strings.Join(parts, ", ") + ")"
}

// IsValidation reports whether err wraps a *ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// MessageError attaches a customer-facing message to an underlying error
// without changing how it classifies.
type MessageError struct {
	Message string
	Err     error
}

func (e *MessageError) Error() string {
	return e.Message + ": " + e.Err.Error()
}

func (e *MessageError) Unwrap() error {
	return e.Err
}

// WithMessage wraps err with msg. A nil err stays nil.
func WithMessage(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &MessageError{Message: msg, Err: err}
}

// UserMessage returns the outermost customer-facing message carried by err.
func UserMessage(err error) (string, bool) {
	var m *MessageError
	if errors.As(err, &m) {
		return m.Message, true
	}
	var v *ValidationError
	if errors.As(err, &v) {
		return v.Message, true
	}
	return "", false
}
