package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var logs bytes.Buffer
	scoped := zerolog.New(&logs)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Header("X-Request-ID", "rid-7")
		c.Set("logger", &scoped)
		c.Next()
	})
	r.GET("/missing", func(c *gin.Context) { Fail(c, http.StatusNotFound, ErrCodeNotFound, "request not found") })
	r.POST("/invalid", func(c *gin.Context) {
		failWith(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body",
			[]FieldError{{Field: "title", Rule: "required"}})
	})
	r.GET("/broken", func(c *gin.Context) { fail(c, http.StatusInternalServerError, ErrCodeInternal, msgInternal) })

	cases := []struct {
		method, path string
		status       int
		want         ErrorResponse
		logged       bool
	}{
		{http.MethodGet, "/missing", http.StatusNotFound,
			ErrorResponse{RequestID: "rid-7", Code: "not_found", Message: "request not found"}, false},
		{http.MethodPost, "/invalid", http.StatusBadRequest,
			ErrorResponse{RequestID: "rid-7", Code: "bad_request", Message: "invalid request body",
				Details: []FieldError{{Field: "title", Rule: "required"}}}, false},
		{http.MethodGet, "/broken", http.StatusInternalServerError,
			ErrorResponse{RequestID: "rid-7", Code: "internal_error", Message: "internal server error"}, true},
	}
	for _, tc := range cases {
		logs.Reset()
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(tc.method, tc.path, nil))

		require.Equal(t, tc.status, w.Code, tc.path)
		var got ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, tc.want, got, tc.path)
		if tc.logged {
			assert.Contains(t, logs.String(), `"level":"error"`)
			assert.Contains(t, logs.String(), `"code":"internal_error"`)
		} else {
			assert.Empty(t, logs.String(), "client errors are not logged here")
		}
	}
}

func TestOK(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	ok(c, http.StatusCreated, gin.H{"id": 3, "status": "pending"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"id":3,"status":"pending"}`, w.Body.String())
}

func TestErrorResponse_OmitsEmptyFields(t *testing.T) {
	b, err := json.Marshal(ErrorResponse{Code: "conflict", Message: "status transition not allowed"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"code":"conflict","message":"status transition not allowed"}`, string(b))
}
