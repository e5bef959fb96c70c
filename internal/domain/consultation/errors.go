package consultation

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound               = errors.New("consultation not found")
	ErrConcurrentModification = errors.New("consultation was modified by another request")
	// ErrForbidden is returned when the actor is neither the owning patient
	// nor the assigned doctor.
	ErrForbidden = errors.New("not permitted to access this consultation")
)

type ValidationCode string

const (
	CodeMissingAttachment     ValidationCode = "MissingAttachment"
	CodeMissingRequiredField  ValidationCode = "MissingRequiredField"
	CodeInvalidTimeRange      ValidationCode = "InvalidTimeRange"
	CodeAvailabilityNotFound  ValidationCode = "AvailabilityNotFound"
	CodeOutsideAvailableHours ValidationCode = "OutsideAvailableHours"
)

type ValidationError struct {
	Code    ValidationCode `json:"code"`
	Message string         `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func invalid(code ValidationCode, format string, args ...any) *ValidationError {
	return &ValidationError{Code: code, Message: fmt.Sprintf(format, args...)}
}

type TransitionCode string

const (
	CodeIllegalTransition TransitionCode = "IllegalTransition"
	CodeUnauthorized      TransitionCode = "Unauthorized"
)

type TransitionError struct {
	Code      TransitionCode `json:"code"`
	Current   Status         `json:"current"`
	Action    Action         `json:"action"`
	Permitted []Action       `json:"permitted"`
}

func (e *TransitionError) Error() string {
	if e.Code == CodeUnauthorized {
		return fmt.Sprintf("%s: only the assigned doctor may %s this consultation", e.Code, e.Action)
	}
	names := make([]string, len(e.Permitted))
	for i, a := range e.Permitted {
		names[i] = string(a)
	}
	permitted := "none"
	if len(names) > 0 {
		permitted = strings.Join(names, ", ")
	}
	return fmt.Sprintf("%s: cannot %s a consultation in status %s (permitted: %s)", e.Code, e.Action, e.Current, permitted)
}

// PersistenceError wraps a store failure with the operation that hit it.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("consultation store: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
