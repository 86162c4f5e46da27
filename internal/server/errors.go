package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/smallbiznis/servicehub/internal/authorization"
	bookingdomain "github.com/smallbiznis/servicehub/internal/booking/domain"
	catalogdomain "github.com/smallbiznis/servicehub/internal/catalog/domain"
	identitydomain "github.com/smallbiznis/servicehub/internal/identity/domain"
	reviewdomain "github.com/smallbiznis/servicehub/internal/review/domain"
	statsdomain "github.com/smallbiznis/servicehub/internal/stats/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

// Sentinels that render as a 400 with a single field entry derived from the
// error code.
var badRequestErrors = []error{
	ErrInvalidRequest,
	identitydomain.ErrInvalidName,
	identitydomain.ErrInvalidEmail,
	identitydomain.ErrInvalidPassword,
	identitydomain.ErrInvalidRole,
	identitydomain.ErrInvalidProfile,
	catalogdomain.ErrInvalidTitle,
	catalogdomain.ErrInvalidDescription,
	catalogdomain.ErrInvalidCategory,
	catalogdomain.ErrInvalidRate,
	catalogdomain.ErrInvalidDuration,
	catalogdomain.ErrInvalidTags,
	bookingdomain.ErrInvalidScheduledDate,
	bookingdomain.ErrInvalidDuration,
	bookingdomain.ErrInvalidNotes,
	bookingdomain.ErrInvalidAddress,
	bookingdomain.ErrInvalidStatus,
	bookingdomain.ErrInvalidRole,
	reviewdomain.ErrInvalidRating,
	reviewdomain.ErrInvalidComment,
	statsdomain.ErrInvalidRole,
}

var unauthorizedErrors = []error{
	ErrUnauthorized,
	identitydomain.ErrUnauthorized,
	identitydomain.ErrInvalidCredentials,
	identitydomain.ErrInactiveUser,
}

var forbiddenErrors = []error{
	ErrForbidden,
	authorization.ErrForbidden,
	authorization.ErrInvalidRole,
	catalogdomain.ErrForbidden,
	catalogdomain.ErrInvalidProvider,
	bookingdomain.ErrForbidden,
	reviewdomain.ErrForbidden,
}

var notFoundErrors = []error{
	ErrNotFound,
	identitydomain.ErrNotFound,
	catalogdomain.ErrNotFound,
	bookingdomain.ErrNotFound,
	bookingdomain.ErrServiceNotFound,
	reviewdomain.ErrNotFound,
	reviewdomain.ErrBookingNotFound,
	reviewdomain.ErrProviderNotFound,
	statsdomain.ErrNotFound,
	gorm.ErrRecordNotFound,
}

var conflictErrors = []error{
	identitydomain.ErrEmailTaken,
	bookingdomain.ErrConflict,
	reviewdomain.ErrConflict,
}

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{{Field: field, Code: code, Message: message}},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{Type: "internal_error", Message: "internal server error"}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if sentinel, ok := matchOneOf(err, badRequestErrors); ok {
		code := sentinel.Error()
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{{
				Field:   validationErrorField(code),
				Code:    code,
				Message: validationErrorMessage(code),
			}},
		}
	}

	switch {
	case isOneOf(err, unauthorizedErrors):
		return http.StatusUnauthorized, errorPayload{Type: "unauthorized", Message: "unauthorized"}
	case isOneOf(err, forbiddenErrors):
		return http.StatusForbidden, errorPayload{Type: "forbidden", Message: "forbidden"}
	case isOneOf(err, notFoundErrors):
		return http.StatusNotFound, errorPayload{Type: "not_found", Message: "not found"}
	case errors.Is(err, bookingdomain.ErrInvalidTransition):
		return http.StatusConflict, errorPayload{Type: "invalid_transition", Message: "status change not allowed"}
	case errors.Is(err, reviewdomain.ErrInvalidState):
		return http.StatusConflict, errorPayload{Type: "invalid_state", Message: "only completed bookings can be reviewed"}
	case isOneOf(err, conflictErrors):
		return http.StatusConflict, errorPayload{Type: "conflict", Message: conflictMessage(err)}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{Type: "rate_limited", Message: "too many requests"}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{Type: "service_unavailable", Message: "service unavailable"}
	default:
		return http.StatusInternalServerError, errorPayload{Type: "internal_error", Message: "internal server error"}
	}
}

// classifyErrorForLog feeds the request logger the rendered type and code.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	return payload.Type, code
}

func isOneOf(err error, targets []error) bool {
	_, ok := matchOneOf(err, targets)
	return ok
}

func matchOneOf(err error, targets []error) (error, bool) {
	for _, target := range targets {
		if errors.Is(err, target) {
			return target, true
		}
	}
	return nil, false
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		out := &ValidationErrors{Errors: make([]ValidationError, 0, len(fieldErrs))}
		for _, fe := range fieldErrs {
			field := toSnake(fe.Field())
			out.Errors = append(out.Errors, ValidationError{
				Field:   field,
				Code:    "invalid_" + field,
				Message: "failed on " + fe.Tag(),
			})
		}
		return out
	}
	return nil
}

func conflictMessage(err error) string {
	switch {
	case errors.Is(err, identitydomain.ErrEmailTaken):
		return "email already registered"
	case errors.Is(err, reviewdomain.ErrConflict):
		return "booking already reviewed"
	default:
		return "conflict"
	}
}

func validationErrorField(code string) string {
	switch code {
	case ErrInvalidRequest.Error():
		return "request"
	case bookingdomain.ErrInvalidAddress.Error():
		return "customer_address"
	}
	return strings.TrimPrefix(code, "invalid_")
}

func validationErrorMessage(code string) string {
	switch code {
	case ErrInvalidRequest.Error():
		return "invalid request"
	case bookingdomain.ErrInvalidScheduledDate.Error():
		return "scheduled date must be in the future"
	default:
		return "invalid value"
	}
}

func toSnake(name string) string {
	var b strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
