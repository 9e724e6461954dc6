// Package apierror maps domain failures onto HTTP responses. Every error body
// has the shape {"message": string, "errors"?: {field: [messages]}}.
package apierror

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/communityhub/platform/internal/access"
	"github.com/communityhub/platform/internal/db/repositories"
	"github.com/communityhub/platform/internal/services"
	"github.com/communityhub/platform/internal/validation"
)

// Error is an HTTP-facing failure with a client-safe message.
type Error struct {
	Status  int
	Message string
	Fields  map[string][]string
}

func (e *Error) Error() string { return e.Message }

// Body is the JSON error envelope.
type Body struct {
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

func newError(status int, msg string) *Error {
	return &Error{Status: status, Message: msg}
}

// Validation builds a 422 with field-level messages.
func Validation(fields map[string][]string) *Error {
	return &Error{Status: http.StatusUnprocessableEntity, Message: "Validation failed", Fields: fields}
}

// Invalid builds a 422 without field details.
func Invalid(msg string) *Error { return newError(http.StatusUnprocessableEntity, msg) }

// Unauthenticated builds a 401.
func Unauthenticated(msg string) *Error { return newError(http.StatusUnauthorized, msg) }

// Forbidden builds a 403.
func Forbidden(msg string) *Error { return newError(http.StatusForbidden, msg) }

// NotFound builds a 404.
func NotFound(msg string) *Error { return newError(http.StatusNotFound, msg) }

// Conflict builds a 409.
func Conflict(msg string) *Error { return newError(http.StatusConflict, msg) }

// TooManyRequests builds a 429.
func TooManyRequests(msg string) *Error { return newError(http.StatusTooManyRequests, msg) }

// Unavailable builds a 503 for a feature that is not configured.
func Unavailable(msg string) *Error { return newError(http.StatusServiceUnavailable, msg) }

// Invariant builds a 400 for a request that would break a data invariant.
func Invariant(msg string) *Error { return newError(http.StatusBadRequest, msg) }

// FromBinding converts a gin binding error into a validation error.
func FromBinding(err error) *Error {
	fields, _ := validation.FieldErrors(err)
	return Validation(fields)
}

// Classify maps err onto an *Error. Unknown errors become a generic 500.
func Classify(err error) *Error {
	var apiErr *Error
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.Is(err, access.ErrUnauthenticated):
		return Unauthenticated("You must sign in")
	case errors.Is(err, access.ErrNotMember):
		return Forbidden("You are not a member of this community")
	case errors.Is(err, access.ErrInsufficientRole), errors.Is(err, services.ErrForbidden):
		return Forbidden("You do not have permission to do this")
	case errors.Is(err, services.ErrLastPrivileged):
		return Invariant("Cannot remove the last privileged administrator")
	case errors.Is(err, services.ErrInvalidRole):
		return Validation(map[string][]string{"role": {"is not a valid role"}})
	case errors.Is(err, services.ErrInvalidLimit):
		return Validation(map[string][]string{"limit": {"must be between 1 and 100"}})
	case errors.Is(err, services.ErrMemberNotFound):
		return NotFound("Member not found")
	case errors.Is(err, services.ErrProfileNotFound):
		return NotFound("Profile not found")
	case errors.Is(err, repositories.ErrDuplicate):
		return Conflict("A record with this value already exists")
	case errors.Is(err, repositories.ErrEventFull):
		return Conflict("This event is full")
	}
	return newError(http.StatusInternalServerError, "Internal server error")
}

// Respond writes err as JSON. 500s are logged with the request id; the client
// only sees the generic message.
func Respond(c *gin.Context, err error) {
	apiErr := Classify(err)
	if apiErr.Status >= http.StatusInternalServerError {
		slog.Error("request failed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"request_id", c.GetString("request_id"),
			"error", err)
	}
	c.JSON(apiErr.Status, Body{Message: apiErr.Message, Errors: apiErr.Fields})
}

// Abort writes err as JSON and stops the handler chain.
func Abort(c *gin.Context, err error) {
	Respond(c, err)
	c.Abort()
}
