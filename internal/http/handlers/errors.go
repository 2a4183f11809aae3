// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// This file centralizes symbolic error code constants that are mapped to HTTP
// responses (via the `fail()` helper in this package), and the translation of
// service sentinel errors into those codes (`failErr`).
//
// Conventions:
//   - Codes are lowercase, snake_case, and domain-agnostic unless explicitly noted.
//   - Generic codes (e.g., bad_request, unauthorized, conflict) mirror common HTTP
//     status semantics to aid interoperability.
//   - Anything not recognized as a client error is a 500 with an opaque message;
//     the cause is logged, never returned.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "conflict",
//	  "message": "status transition not allowed"
//	}
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/thaihand/carry-backend/internal/auth"
	"github.com/thaihand/carry-backend/internal/http/middleware"
	"github.com/thaihand/carry-backend/internal/services"
	"github.com/thaihand/carry-backend/internal/storage"
)

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeTooLarge     = "payload_too_large"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeUnavailable  = "service_unavailable"
	ErrCodeInternal     = "internal_error"

	ErrCodeMethodNotAllowed = "method_not_allowed"
)

const msgInternal = "internal server error"

// IsAuthError reports whether err means the caller failed to prove who they
// are, as opposed to the server failing to check.
func IsAuthError(err error) bool {
	return errors.Is(err, auth.ErrInvalidToken) ||
		errors.Is(err, services.ErrInvalidToken) ||
		errors.Is(err, services.ErrInvalidCredentials) ||
		errors.Is(err, auth.ErrUpstreamRejected) ||
		errors.Is(err, auth.ErrUpstreamUnavailable) ||
		errors.Is(err, auth.ErrUnknownProvider)
}

// failErr maps a service error to the response envelope. Unknown errors are
// logged with the request-scoped logger and reported as opaque 500s.
func failErr(c *gin.Context, err error) {
	switch {
	case IsAuthError(err):
		if errors.Is(err, auth.ErrUpstreamUnavailable) {
			lg := middleware.LoggerFrom(c)
			lg.Warn().Err(err).Msg("identity provider unavailable")
		}
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, authMessage(err))
	case errors.Is(err, services.ErrRequestNotFound),
		errors.Is(err, services.ErrOfferNotFound),
		errors.Is(err, services.ErrRouteNotFound),
		errors.Is(err, services.ErrUserNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, services.ErrInvalidStatus),
		errors.Is(err, services.ErrValidation):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, services.ErrUsernameTaken),
		errors.Is(err, services.ErrInvalidTransition):
		fail(c, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, services.ErrForbidden):
		fail(c, http.StatusForbidden, ErrCodeForbidden, err.Error())
	case errors.Is(err, services.ErrUnsupported),
		errors.Is(err, storage.ErrDisabled):
		fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, err.Error())
	default:
		lg := middleware.LoggerFrom(c)
		lg.Error().Err(err).Msg("unhandled service error")
		fail(c, http.StatusInternalServerError, ErrCodeInternal, msgInternal)
	}
}

func authMessage(err error) string {
	switch {
	case errors.Is(err, services.ErrInvalidCredentials):
		return "incorrect username or password"
	case errors.Is(err, auth.ErrUnknownProvider):
		return "unsupported provider"
	case errors.Is(err, auth.ErrUpstreamRejected), errors.Is(err, auth.ErrUpstreamUnavailable):
		return "could not verify provider token"
	}
	return "invalid token"
}

// bindFail reports a request-binding error as 400, listing the failing
// fields in Details when the validator produced them.
func bindFail(c *gin.Context, err error) {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}
	details := make([]FieldError, 0, len(ve))
	names := make([]string, 0, len(ve))
	for _, fe := range ve {
		field := fieldName(fe)
		details = append(details, FieldError{Field: field, Rule: fe.Tag()})
		names = append(names, field)
	}
	failWith(c, http.StatusBadRequest, ErrCodeBadRequest,
		fmt.Sprintf("invalid fields: %s", strings.Join(names, ", ")), details)
}

// fieldName lowercases the struct field name to match the JSON key style.
func fieldName(fe validator.FieldError) string {
	return toSnake(fe.Field())
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
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
