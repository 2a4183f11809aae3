package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/thaihand/carry-backend/internal/domain"
)

// Context keys populated by RequireAuth. ctxKeyUser holds the *domain.User
// handlers work with; ctxKeyUserID is the plain id the other middleware keys on.
const (
	ctxKeyUserID   = "userID"
	ctxKeyUser     = "user"
	ctxKeyProvider = "authProvider"
)

// Authenticator resolves a bearer token to a user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.User, string, error)
}

// RequireAuth rejects requests without a valid bearer token with a 401 JSON
// envelope. Lookup failures other than bad tokens produce a 500.
func RequireAuth(a Authenticator, isAuthErr func(error) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortAuth(c, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}
		u, provider, err := a.Authenticate(c.Request.Context(), token)
		if err != nil {
			if isAuthErr == nil || isAuthErr(err) {
				abortAuth(c, http.StatusUnauthorized, "unauthorized", "invalid token")
				return
			}
			LoggerFrom(c).Error().Err(err).Msg("authenticate")
			abortAuth(c, http.StatusInternalServerError, "internal_error", "internal server error")
			return
		}
		c.Set(ctxKeyUserID, u.ID)
		c.Set(ctxKeyUser, u)
		c.Set(ctxKeyProvider, provider)
		c.Next()
	}
}

// CurrentUser returns the user stored by RequireAuth.
func CurrentUser(c *gin.Context) (*domain.User, bool) {
	v, ok := c.Get(ctxKeyUser)
	if !ok {
		return nil, false
	}
	u, ok := v.(*domain.User)
	return u, ok && u != nil
}

// ErrNoUser is returned by MustUser when RequireAuth did not run.
var ErrNoUser = errors.New("no authenticated user in context")

// MustUser is CurrentUser returning an error instead of a flag.
func MustUser(c *gin.Context) (*domain.User, error) {
	if u, ok := CurrentUser(c); ok {
		return u, nil
	}
	return nil, ErrNoUser
}

func bearerToken(h string) (string, bool) {
	h = strings.TrimSpace(h)
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return "", false
	}
	tok := strings.TrimSpace(h[7:])
	return tok, tok != ""
}

func abortAuth(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"request_id": c.Writer.Header().Get(requestIDHeader),
		"code":       code,
		"message":    msg,
	})
}
