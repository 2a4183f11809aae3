// Package middleware holds the Gin middleware shared by every API route:
// correlation IDs, access logging, panic recovery, authentication,
// idempotent replays, rate limiting, metrics and security headers.
//
// Handlers and services log through the request-scoped zerolog logger that
// the access loggers attach; see LoggerFrom and zerolog.Ctx.
package middleware

import (
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	requestIDKey    = "requestID"
	requestIDHeader = "X-Request-ID"
	loggerKey       = "logger"

	maxRequestIDLength = 64
	maxQueryLogLength  = 2048
)

// RequestID reuses a well-formed incoming X-Request-ID or mints a UUID, and
// echoes it on the response. IDs with characters outside [A-Za-z0-9._-] or
// longer than 64 bytes are replaced so they cannot forge log lines.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if !validRequestID(rid) {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

func validRequestID(s string) bool {
	if s == "" || len(s) > maxRequestIDLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		switch b := s[i]; {
		case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9':
		case b == '-', b == '_', b == '.':
		default:
			return false
		}
	}
	return true
}

// Logger is the verbose access log used in debug mode. It records the raw
// query string and client details; production uses RedactingLogger.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := routeOf(c)

		l := requestLogger(c, path).With().
			Str("remote_ip", c.ClientIP()).
			Str("user_agent", c.Request.UserAgent()).
			Str("query", truncate(c.Request.URL.RawQuery, maxQueryLogLength)).
			Int64("bytes_in", c.Request.ContentLength).
			Logger()
		attachLogger(c, l)

		c.Next()

		ev := accessEvent(l, c, path)
		if ev == nil {
			return
		}
		if len(c.Errors) > 0 {
			ev = ev.Str("errors", c.Errors.String())
		}
		ev.Dur("latency", time.Since(start)).
			Int("bytes_out", c.Writer.Size()).
			Msg("request")
	}
}

// requestLogger builds the base logger every access log line shares.
func requestLogger(c *gin.Context, path string) zerolog.Logger {
	rid, _ := c.Get(requestIDKey)
	return log.With().
		Str("request_id", asString(rid)).
		Str("method", c.Request.Method).
		Str("path", path).
		Logger()
}

// attachLogger stores l for LoggerFrom and on the request context for
// zerolog.Ctx in services.
func attachLogger(c *gin.Context, l zerolog.Logger) {
	c.Set(loggerKey, &l)
	c.Request = c.Request.WithContext(l.WithContext(c.Request.Context()))
}

// accessEvent picks the level for a finished request. Long-polls that ended
// normally (delivered, timed out or abandoned by the client) are routine and
// go to debug. The user id is added when auth middleware identified one.
func accessEvent(l zerolog.Logger, c *gin.Context, path string) *zerolog.Event {
	status := c.Writer.Status()
	var ev *zerolog.Event
	switch {
	case len(c.Errors) > 0, status >= 500:
		ev = l.Error()
	case isLongPoll(path) && (status == http.StatusOK || status == StatusClientClosed):
		ev = l.Debug()
	case status >= 400:
		ev = l.Warn()
	default:
		ev = l.Info()
	}
	if ev == nil {
		return nil
	}
	if v, ok := c.Get(ctxKeyUserID); ok {
		ev = ev.Str("user_id", asString(v))
	}
	return ev.Int("status", status)
}

// StatusClientClosed is recorded for a long-poll whose client disconnected
// before the wait ended.
const StatusClientClosed = 499

// routeOf returns the matched route template, or the raw path on a miss.
func routeOf(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return c.Request.URL.Path
}

// Recovery turns a panic into the standard 500 error body and logs the stack.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			rid, _ := c.Get(requestIDKey)
			LoggerFrom(c).Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Msg("panic recovered")

			if c.Writer.Written() {
				c.Abort()
				return
			}
			c.Header(requestIDHeader, asString(rid))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"request_id": asString(rid),
				"code":       "internal_error",
				"message":    "internal server error",
			})
		}()
		c.Next()
	}
}

// LoggerFrom returns the request-scoped logger, or the global logger when no
// access logger ran.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.With().Logger()
	return &l
}

// asString renders a context value (string or int id) for logging.
func asString(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	}
	return ""
}

// truncate cuts s to max bytes plus an ellipsis; max <= 0 disables it.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
