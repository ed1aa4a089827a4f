// Package apperr defines the typed errors surfaced by the payment core and how they map onto HTTP.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

type Kind string

const (
	KindValidation        Kind = "VALIDATION_ERROR"
	KindNotFound          Kind = "NOT_FOUND"
	KindConflict          Kind = "CONFLICT"
	KindOwnershipMismatch Kind = "OWNERSHIP_MISMATCH"
	KindInvalidState      Kind = "INVALID_STATE"
	KindAlreadyRefunded   Kind = "ALREADY_REFUNDED"
	KindUnauthorized      Kind = "UNAUTHORIZED"
	KindInternal          Kind = "INTERNAL_ERROR"
)

// StatusCode maps a kind to its HTTP status. Every client-side failure other
// than a missing resource or missing credentials is a 400.
func (k Kind) StatusCode() int {
	switch k {
	case KindValidation, KindConflict, KindOwnershipMismatch, KindInvalidState, KindAlreadyRefunded:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) StatusCode() int {
	return e.Kind.StatusCode()
}

func (e *Error) WithDetails(details map[string]any) *Error {
	clone := e.clone()
	for k, v := range details {
		clone.Details[k] = v
	}
	return clone
}

func (e *Error) WithError(err error) *Error {
	clone := e.clone()
	clone.Err = err
	return clone
}

func (e *Error) clone() *Error {
	clone := *e
	clone.Details = make(map[string]any, len(e.Details))
	for k, v := range e.Details {
		clone.Details[k] = v
	}
	return &clone
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return New(kind, fmt.Sprintf(format, args...))
}

func Wrap(err error, kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Validation(message string) *Error {
	return New(KindValidation, message)
}

// NotFound names the missing resource, e.g. NotFound("card").
func NotFound(resource string) *Error {
	return &Error{
		Kind:    KindNotFound,
		Message: resource + " not found",
		Details: map[string]any{"resource": resource},
	}
}

func Conflict(message string) *Error {
	return New(KindConflict, message)
}

func Internal(err error) *Error {
	return Wrap(err, KindInternal, "internal error")
}

// As extracts the *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of err, KindInternal for untyped errors.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// FromError converts any error into an *Error suitable for a response body.
func FromError(err error) *Error {
	if e, ok := As(err); ok {
		return e
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return FromValidation(err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Wrap(err, KindInternal, "request canceled")
	}
	return Internal(err)
}

// FromValidation turns validator failures into a ValidationError listing each field.
func FromValidation(err error) *Error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return Wrap(err, KindValidation, "invalid request")
	}

	fields := make([]map[string]string, 0, len(verrs))
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg := describe(fe)
		fields = append(fields, map[string]string{"field": fe.Field(), "message": msg})
		msgs = append(msgs, msg)
	}
	return &Error{
		Kind:    KindValidation,
		Message: strings.Join(msgs, "; "),
		Details: map[string]any{"fields": fields},
		Err:     err,
	}
}

func describe(fe validator.FieldError) string {
	f := fe.Field()
	switch fe.Tag() {
	case "required":
		return f + " is required"
	case "email":
		return f + " must be a valid email"
	case "min":
		return fmt.Sprintf("%s must be at least %s", f, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", f, fe.Param())
	case "len":
		return fmt.Sprintf("%s must have exactly %s characters", f, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", f, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", f, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", f, fe.Param())
	case "uuid":
		return f + " must be a valid UUID"
	case "numeric":
		return f + " must contain digits only"
	case "alpha":
		return f + " must contain letters only"
	default:
		return fmt.Sprintf("%s failed %q validation", f, fe.Tag())
	}
}
