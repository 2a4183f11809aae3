package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/thaihand/carry-backend/internal/domain"
)

var errBadToken = errors.New("bad token")

type stubAuth struct {
	user *domain.User
	err  error
	seen string
}

func (s *stubAuth) Authenticate(_ context.Context, token string) (*domain.User, string, error) {
	s.seen = token
	if s.err != nil {
		return nil, "", s.err
	}
	return s.user, "local", nil
}

func newAuthRouter(a Authenticator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequireAuth(a, func(err error) bool { return errors.Is(err, errBadToken) }))
	r.GET("/me", func(c *gin.Context) {
		u, err := MustUser(c)
		if err != nil {
			c.Status(http.StatusTeapot)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"id":       u.ID,
			"uid":      c.GetInt("userID"),
			"provider": c.GetString("authProvider"),
		})
	})
	return r
}

func TestRequireAuth_MissingHeader(t *testing.T) {
	a := &stubAuth{user: &domain.User{ID: 1}}
	r := newAuthRouter(a)

	for _, h := range []string{"", "Basic abc", "Bearer", "Bearer    "} {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if h != "" {
			req.Header.Set("Authorization", h)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: status = %d", h, w.Code)
		}
		if !strings.Contains(w.Body.String(), `"code":"unauthorized"`) {
			t.Fatalf("header %q: body = %s", h, w.Body.String())
		}
	}
	if a.seen != "" {
		t.Fatalf("authenticator should not be called, saw %q", a.seen)
	}
}

func TestRequireAuth_InvalidToken(t *testing.T) {
	r := newAuthRouter(&stubAuth{err: errBadToken})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer nope")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestRequireAuth_LookupFailureIs500(t *testing.T) {
	r := newAuthRouter(&stubAuth{err: errors.New("db down")})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"code":"internal_error"`) {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestRequireAuth_SetsUser(t *testing.T) {
	a := &stubAuth{user: &domain.User{ID: 7, Email: "a@b.com"}}
	r := newAuthRouter(a)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "bearer  tok-1 ")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	if a.seen != "tok-1" {
		t.Fatalf("token = %q", a.seen)
	}
	body := w.Body.String()
	if !strings.Contains(body, `"id":7`) || !strings.Contains(body, `"uid":7`) || !strings.Contains(body, `"provider":"local"`) {
		t.Fatalf("body = %s", body)
	}
}

func TestCurrentUser_Absent(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if _, ok := CurrentUser(c); ok {
		t.Fatal("expected no user")
	}
	if _, err := MustUser(c); !errors.Is(err, ErrNoUser) {
		t.Fatalf("err = %v", err)
	}
	c.Set("user", (*domain.User)(nil))
	if _, ok := CurrentUser(c); ok {
		t.Fatal("nil user should not count")
	}
}
