package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thaihand/carry-backend/internal/http/middleware"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	// Echo of X-Request-ID, for matching a client report to server logs.
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// One of the ErrCode constants.
	Code    string `json:"code" example:"not_found"`
	Message string `json:"message" example:"request not found"`
	// Set when a JSON body failed validation.
	Details []FieldError `json:"details,omitempty"`
}

// FieldError names one request field that failed validation and the rule it broke.
type FieldError struct {
	Field string `json:"field" example:"title"`
	Rule  string `json:"rule"  example:"required"`
}

// Fail aborts with an ErrorResponse. The router uses it for 404 and 405.
func Fail(c *gin.Context, status int, code, msg string) { failWith(c, status, code, msg, nil) }

func fail(c *gin.Context, status int, code, msg string) { failWith(c, status, code, msg, nil) }

// failWith aborts with an ErrorResponse carrying field details. Server-side
// failures are logged; client errors are left to the access log.
func failWith(c *gin.Context, status int, code, msg string, details []FieldError) {
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Msg(msg)
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
		Details:   details,
	})
}

// ok writes body as JSON.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}
