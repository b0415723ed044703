package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is an error that maps onto an HTTP status and a public name/message.
type Error struct {
	Name    string
	Message string
	Status  int
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Name, e.Message, e.cause)
	}
	return e.Name + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Error names as they appear in response bodies
const (
	NameValidation      = "ValidationError"
	NameAuthorization   = "AuthorizationError"
	NameForbidden       = "ForbiddenError"
	NameNotFound        = "NotFoundError"
	NameConflict        = "ConflictError"
	NameReconciliation  = "ReconciliationError"
	NamePayloadTooLarge = "PayloadTooLargeError"
	NameQuery           = "QueryError"
)

func ValidationError(format string, args ...any) *Error {
	return &Error{Name: NameValidation, Message: fmt.Sprintf(format, args...), Status: http.StatusBadRequest}
}

func AuthorizationError(message string) *Error {
	return &Error{Name: NameAuthorization, Message: message, Status: http.StatusUnauthorized}
}

func ForbiddenError(message string) *Error {
	return &Error{Name: NameForbidden, Message: message, Status: http.StatusForbidden}
}

func NotFoundError(resource string) *Error {
	return &Error{Name: NameNotFound, Message: resource + " not found", Status: http.StatusNotFound}
}

func ConflictError(message string) *Error {
	return &Error{Name: NameConflict, Message: message, Status: http.StatusConflict}
}

func PayloadTooLargeError(message string) *Error {
	return &Error{Name: NamePayloadTooLarge, Message: message, Status: http.StatusRequestEntityTooLarge}
}

// ReconciliationError reports an affected-row count that did not match the
// expected set size during a multi-step update.
func ReconciliationError(op string, expected, affected int64) *Error {
	return &Error{
		Name:    NameReconciliation,
		Message: fmt.Sprintf("%s affected %d rows, expected %d", op, affected, expected),
		Status:  http.StatusConflict,
	}
}

// QueryError wraps a data-store failure. The cause is logged, never returned to clients.
func QueryError(op string, err error) *Error {
	return &Error{Name: NameQuery, Message: op, Status: http.StatusInternalServerError, cause: err}
}

// IsName reports whether err is an *Error with the given name
func IsName(err error, name string) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Name == name
}
