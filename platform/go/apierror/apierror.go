// Package apierror defines the error taxonomy shared by every HTTP surface.
// All internal failures are normalized into an Error before they reach a
// client; handlers never write provider-specific error shapes.
package apierror

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Code identifies one entry of the taxonomy.
type Code string

const (
	CodeValidation          Code = "VALIDATION_ERROR"
	CodeUnauthorized        Code = "UNAUTHORIZED"
	CodeAPIKeyRequired      Code = "API_KEY_REQUIRED"
	CodeAPIKeyInvalidFormat Code = "API_KEY_INVALID_FORMAT"
	CodeAPIKeyInvalid       Code = "API_KEY_INVALID"
	CodeAPIKeyExpired       Code = "API_KEY_EXPIRED"
	CodeForbidden           Code = "FORBIDDEN"
	CodeInsufficientPerms   Code = "INSUFFICIENT_PERMISSIONS"
	CodeInsufficientTier    Code = "INSUFFICIENT_TIER"
	CodeNotFound            Code = "NOT_FOUND"
	CodeRouteNotFound       Code = "ROUTE_NOT_FOUND"
	CodeConflict            Code = "CONFLICT"
	CodeDuplicateEntry      Code = "DUPLICATE_ENTRY"
	CodeRateLimitExceeded   Code = "RATE_LIMIT_EXCEEDED"
	CodeDatabase            Code = "DATABASE_ERROR"
	CodeForeignKey          Code = "FOREIGN_KEY_VIOLATION"
	CodeCheckViolation      Code = "CHECK_VIOLATION"
	CodeServiceUnavailable  Code = "SERVICE_UNAVAILABLE"
	CodeInternal            Code = "INTERNAL_SERVER_ERROR"
)

// statusByCode fixes the HTTP status for every taxonomy code.
var statusByCode = map[Code]int{
	CodeValidation:          http.StatusBadRequest,
	CodeUnauthorized:        http.StatusUnauthorized,
	CodeAPIKeyRequired:      http.StatusUnauthorized,
	CodeAPIKeyInvalidFormat: http.StatusUnauthorized,
	CodeAPIKeyInvalid:       http.StatusUnauthorized,
	CodeAPIKeyExpired:       http.StatusUnauthorized,
	CodeForbidden:           http.StatusForbidden,
	CodeInsufficientPerms:   http.StatusForbidden,
	CodeInsufficientTier:    http.StatusForbidden,
	CodeNotFound:            http.StatusNotFound,
	CodeRouteNotFound:       http.StatusNotFound,
	CodeConflict:            http.StatusConflict,
	CodeDuplicateEntry:      http.StatusConflict,
	CodeRateLimitExceeded:   http.StatusTooManyRequests,
	CodeDatabase:            http.StatusInternalServerError,
	CodeForeignKey:          http.StatusInternalServerError,
	CodeCheckViolation:      http.StatusInternalServerError,
	CodeServiceUnavailable:  http.StatusServiceUnavailable,
	CodeInternal:            http.StatusInternalServerError,
}

// Error is the single tagged error variant carried through the pipeline.
// Details is optional structured context that is safe to expose to clients.
type Error struct {
	Code    Code           `json:"code"`
	Message string         `json:"message"`
	Field   string         `json:"field,omitempty"`
	Details map[string]any `json:"details,omitempty"`

	// cause is kept for logs only and never serialized.
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Status returns the HTTP status fixed by the taxonomy.
func (e *Error) Status() int {
	if status, ok := statusByCode[e.Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// WithField attaches the offending request field.
func (e *Error) WithField(field string) *Error {
	e.Field = field
	return e
}

// WithDetails attaches client-safe structured context.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// WithCause records the underlying error for logging.
func (e *Error) WithCause(cause error) *Error {
	e.cause = cause
	return e
}

// New builds an Error for an arbitrary taxonomy code.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Validation(message string) *Error   { return New(CodeValidation, message) }
func Unauthorized(message string) *Error { return New(CodeUnauthorized, message) }
func Forbidden(message string) *Error    { return New(CodeForbidden, message) }
func NotFound(message string) *Error     { return New(CodeNotFound, message) }
func Conflict(message string) *Error     { return New(CodeConflict, message) }
func Internal(message string) *Error     { return New(CodeInternal, message) }
func Database(message string) *Error     { return New(CodeDatabase, message) }

// FromErr normalizes any error thrown deeper in the stack into a taxonomy
// Error. Known shapes (validator violations, Postgres constraint codes,
// context cancellation, an already-typed *Error) map to their entry; the
// rest collapse to INTERNAL_SERVER_ERROR with the cause withheld from the
// client-visible message.
func FromErr(err error) *Error {
	if err == nil {
		return nil
	}

	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var invalid validator.ValidationErrors
	if errors.As(err, &invalid) {
		first := invalid[0]
		return Validation(fmt.Sprintf("field %q failed on the %q rule", first.Field(), first.Tag())).
			WithField(first.Field()).
			WithCause(err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return New(CodeDuplicateEntry, "a record with these values already exists").WithCause(err)
		case "23503":
			return New(CodeForeignKey, "referenced record does not exist").WithCause(err)
		case "23514":
			return New(CodeCheckViolation, "record violates a data constraint").WithCause(err)
		default:
			return Database("database query failed").WithCause(err)
		}
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return NotFound("resource not found").WithCause(err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return New(CodeServiceUnavailable, "upstream call timed out").WithCause(err)
	}

	return Internal("something went wrong").WithCause(err)
}
