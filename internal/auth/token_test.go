package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenService_IssueVerify(t *testing.T) {
	svc := NewTokenService("secret", 30*time.Minute, "carry-backend")

	tok, err := svc.Issue(Claims{Subject: "a@example.com", Provider: "google", UserID: 7})
	require.NoError(t, err)
	require.NotEmpty(t, tok)

	c, err := svc.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", c.Subject)
	assert.Equal(t, "google", c.Provider)
	assert.Equal(t, 7, c.UserID)
}

func TestTokenService_IssueRejectsEmptySubject(t *testing.T) {
	svc := NewTokenService("secret", time.Minute, "")
	_, err := svc.Issue(Claims{Subject: "  "})
	require.Error(t, err)
}

func TestTokenService_VerifyFailures(t *testing.T) {
	svc := NewTokenService("secret", 30*time.Minute, "carry-backend")
	good, err := svc.Issue(Claims{Subject: "a@example.com"})
	require.NoError(t, err)

	expiredSvc := NewTokenService("secret", 30*time.Minute, "carry-backend")
	expiredSvc.now = func() time.Time { return time.Now().Add(-time.Hour) }
	expired, err := expiredSvc.Issue(Claims{Subject: "a@example.com"})
	require.NoError(t, err)

	otherSecret, err := NewTokenService("other", time.Minute, "").Issue(Claims{Subject: "a@example.com"})
	require.NoError(t, err)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
		Subject:   "a@example.com",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:  "a@example.com",
		IssuedAt: jwt.NewNumericDate(time.Now()),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "a@example.com"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"expired", expired},
		{"no expiry", noExp},
		{"wrong secret", otherSecret},
		{"unexpected algorithm", hs512},
		{"alg none", none},
		{"malformed", "not.a.jwt"},
		{"empty", ""},
		{"tampered", good[:len(good)-2] + "xx"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Verify(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestTokenService_AcceptsFrontendTokenWithEmailClaim(t *testing.T) {
	// Tokens minted elsewhere with the shared secret may carry only email.
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"email": "b@example.com",
		"exp":   time.Now().Add(time.Minute).Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	c, err := NewTokenService("secret", time.Minute, "").Verify(tok)
	require.NoError(t, err)
	assert.Empty(t, c.Subject)
	assert.Equal(t, "b@example.com", c.Email)
}

func TestPassword_HashAndCheck(t *testing.T) {
	h, err := HashPassword("hunter2")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2", h)
	assert.True(t, CheckPassword(h, "hunter2"))
	assert.False(t, CheckPassword(h, "hunter3"))
	assert.False(t, CheckPassword("", ""))
}
