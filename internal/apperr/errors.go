// Package apperr defines the error kinds that cross the service boundary.
// Handlers translate them into HTTP status codes; anything else is a 500.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
)

// ValidationError reports a missing or malformed request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func Validation(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// NotFoundError reports an absent customer, invoice, attendance log, etc.
type NotFoundError struct {
	Resource string
	Message  string
}

func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Resource + " not found"
}

func NotFound(resource string) error {
	return &NotFoundError{Resource: resource}
}

func NotFoundf(resource, format string, args ...interface{}) error {
	return &NotFoundError{Resource: resource, Message: fmt.Sprintf(format, args...)}
}

// ConflictError carries the identity of the entity that caused the conflict
// so the client can show it instead of retrying.
type ConflictError struct {
	Message string
	Details map[string]interface{}
}

func (e *ConflictError) Error() string {
	return e.Message
}

func Conflict(message string, details map[string]interface{}) error {
	return &ConflictError{Message: message, Details: details}
}

// ExternalServiceError wraps a failure of the renderer, object storage, etc.
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}

func External(service string, err error) error {
	return &ExternalServiceError{Service: service, Err: err}
}

// ErrUnauthorized rejects a login with unknown credentials.
var ErrUnauthorized = errors.New("invalid login or password")

// StockMismatchError blocks an attendance submission whose balance is not zero.
type StockMismatchError struct {
	Dispatched decimal.Decimal
	Returned   decimal.Decimal
	Delivered  decimal.Decimal
	Balance    decimal.Decimal
}

func (e *StockMismatchError) Error() string {
	return fmt.Sprintf("stock mismatch: dispatched %s, returned %s, delivered %s (balance %s)",
		e.Dispatched.String(), e.Returned.String(), e.Delivered.String(), e.Balance.String())
}

// StatusCode maps an error to the HTTP status the handlers respond with.
func StatusCode(err error) int {
	var (
		validation *ValidationError
		notFound   *NotFoundError
		conflict   *ConflictError
		mismatch   *StockMismatchError
		external   *ExternalServiceError
	)
	switch {
	case errors.As(err, &validation), errors.As(err, &mismatch):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &conflict):
		return http.StatusConflict
	case errors.As(err, &external):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Details returns the structured payload an error exposes to clients, if any.
func Details(err error) map[string]interface{} {
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		return conflict.Details
	}
	var mismatch *StockMismatchError
	if errors.As(err, &mismatch) {
		return map[string]interface{}{
			"dispatched": mismatch.Dispatched,
			"returned":   mismatch.Returned,
			"delivered":  mismatch.Delivered,
			"balance":    mismatch.Balance,
		}
	}
	var validation *ValidationError
	if errors.As(err, &validation) && validation.Field != "" {
		return map[string]interface{}{"field": validation.Field}
	}
	return nil
}

// PublicMessage returns the message safe to show to clients.
// Unclassified errors never leak their text.
func PublicMessage(err error) string {
	var external *ExternalServiceError
	if errors.As(err, &external) {
		return external.Service + " unavailable"
	}
	if StatusCode(err) == http.StatusInternalServerError {
		return "internal server error"
	}
	return err.Error()
}
