package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target carries the same code, so clones and wraps of a
// sentinel still match it with errors.Is.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*Error)
	if !ok || t == nil {
		return false
	}
	return t.Code == e.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// WrapAs wraps err using the code and status of a predefined error.
func WrapAs(base *Error, err error, message string) *Error {
	if message == "" {
		message = base.Message
	}
	return &Error{Code: base.Code, Status: base.Status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")

	ErrUnknownScheduleType    = New("UNKNOWN_SCHEDULE_TYPE", http.StatusUnprocessableEntity, "unknown schedule type")
	ErrSurveyLoad             = New("SURVEY_LOAD_ERROR", http.StatusBadGateway, "failed to load survey export")
	ErrLogQuery               = New("LOG_QUERY_ERROR", http.StatusBadGateway, "log query failed")
	ErrLogServiceUnavailable  = New("LOG_SERVICE_UNAVAILABLE", http.StatusServiceUnavailable, "log service unavailable")
	ErrParticipantNotFound    = New("PARTICIPANT_NOT_FOUND", http.StatusNotFound, "participant not found")
	ErrAmbiguousIdentity      = New("AMBIGUOUS_IDENTITY", http.StatusUnprocessableEntity, "participant identity is ambiguous")
	ErrParticipantStore       = New("PARTICIPANT_STORE_ERROR", http.StatusBadGateway, "participant store request failed")
	ErrMessagingGateway       = New("MESSAGING_GATEWAY_ERROR", http.StatusBadGateway, "failed to send message")
	ErrReferenceTableMissing  = New("REFERENCE_TABLE_ERROR", http.StatusBadGateway, "failed to load participant reference table")
	ErrEvaluationTimedOut     = New("EVALUATION_TIMEOUT", http.StatusGatewayTimeout, "compliance evaluation timed out")
	ErrParticipantIDConflicts = New("PARTICIPANT_EXISTS", http.StatusConflict, "participant already registered")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// Clonef is Clone with a formatted message.
func Clonef(err *Error, format string, args ...interface{}) *Error {
	return Clone(err, fmt.Sprintf(format, args...))
}
