package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactingLogger_MasksIdentityAndCredentials(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), RedactingLogger(RedactOptions{MaskHeaders: []string{"Idempotency-Key"}}))
	r.GET("/my-orders", func(c *gin.Context) { c.String(http.StatusOK, "[]") })

	req := httptest.NewRequest(http.MethodGet,
		"/my-orders?email=buyer@example.com&status=pending&note=call+081-234-5678", nil)
	req.Header.Set("Authorization", "Bearer secret")
	req.Header.Set("Cookie", "sid=topsecret")
	req.Header.Set("Idempotency-Key", "k-1")
	req.Header.Set("X-Trace", "id=123e4567-e89b-12d3-a456-426614174000 from a@b.com")
	r.ServeHTTP(httptest.NewRecorder(), req)

	line := accessLine(t, logLines(t, buf), "/my-orders")
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "http_request", line["message"])
	assert.Equal(t, "email=[REDACTED]&note=call [REDACTED:phone]&status=pending", line["query"])

	headers, ok := line["headers"].(map[string]any)
	require.True(t, ok, "headers: %v", line["headers"])
	assert.Equal(t, "[REDACTED]", headers["Authorization"])
	assert.Equal(t, "[REDACTED]", headers["Cookie"])
	assert.Equal(t, "[REDACTED]", headers["Idempotency-Key"])
	assert.Equal(t, "id=[REDACTED:id] from [REDACTED:email]", headers["X-Trace"])
	assert.NotContains(t, buf.String(), "buyer@example.com")
	assert.NotContains(t, buf.String(), "topsecret")
}

func TestRedactingLogger_LongPollAndErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), RedactingLogger(RedactOptions{}))
	r.GET("/api/notifications/longpoll", func(c *gin.Context) { c.AbortWithStatus(StatusClientClosed) })
	r.GET("/api/requests/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.PUT("/api/requests/:id", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/notifications/longpoll?user_email=x@y.io", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/requests/9", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPut, "/api/requests/9", nil))

	lines := logLines(t, buf)
	poll := accessLine(t, lines, "/api/notifications/longpoll")
	assert.Equal(t, "debug", poll["level"])
	assert.Equal(t, "user_email=[REDACTED]", poll["query"])

	var levels []string
	for _, l := range lines {
		if l["path"] == "/api/requests/:id" {
			levels = append(levels, l["level"].(string))
		}
	}
	assert.Equal(t, []string{"warn", "error"}, levels)
}

func TestRedactQuery(t *testing.T) {
	mask := lowerSet(DefaultMaskParams)

	assert.Empty(t, redactQuery("", mask))
	assert.Equal(t, "USER_EMAIL=[REDACTED]&skip=0", redactQuery("skip=0&USER_EMAIL=a%40b.co", mask))
	assert.Equal(t, "tag=a&tag=b", redactQuery("tag=a&tag=b", mask))
	assert.Equal(t, "q=[REDACTED:email]", redactQuery("q=who@where.org", mask))
	// Malformed escapes fall back to scrubbing the raw string.
	assert.Equal(t, "x=%zz&[REDACTED:email]", redactQuery("x=%zz&a@b.co", mask))
}

func TestScrub(t *testing.T) {
	assert.Empty(t, scrub(""))
	assert.Equal(t, "from [REDACTED:email]", scrub("from a.b+tag@example.com"))
	assert.Equal(t, "[REDACTED:id]", scrub("123e4567-e89b-12d3-a456-426614174000"))
	assert.Equal(t, "call [REDACTED:phone]", scrub("call 555-123-4567"))
	assert.Equal(t, "route BKK-NRT", scrub("route BKK-NRT"))
}
