// Package auth issues and verifies bearer tokens, hashes passwords, and
// verifies third-party access tokens (Google, LINE) during token exchange.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for any token that fails verification: bad
// signature, unexpected algorithm, malformed structure, or expiry.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the verified content of a bearer token.
type Claims struct {
	Subject  string // sub; an email for backend-issued tokens
	Email    string // email, set by some upstream issuers
	Provider string // google, line, or empty for password logins
	UserID   int
}

type jwtClaims struct {
	Email    string `json:"email,omitempty"`
	Provider string `json:"provider,omitempty"`
	UserID   int    `json:"user_id,omitempty"`
	jwt.RegisteredClaims
}

// TokenService signs HS256 tokens with a shared secret.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// NewTokenService returns a TokenService. ttl must be positive.
func NewTokenService(secret string, ttl time.Duration, issuer string) *TokenService {
	return &TokenService{secret: []byte(secret), ttl: ttl, issuer: issuer, now: time.Now}
}

// TTL returns the validity period of issued tokens.
func (s *TokenService) TTL() time.Duration { return s.ttl }

// Issue signs a token for c, valid for the configured TTL.
func (s *TokenService) Issue(c Claims) (string, error) {
	if strings.TrimSpace(c.Subject) == "" {
		return "", errors.New("auth: empty subject")
	}
	now := s.now()
	claims := jwtClaims{
		Email:    c.Email,
		Provider: c.Provider,
		UserID:   c.UserID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.Subject,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, algorithm and expiry and returns the claims. A
// token without an exp claim is rejected.
// Tokens without an issuer are accepted so that tokens minted by the web
// frontend with the same secret keep working.
func (s *TokenService) Verify(token string) (Claims, error) {
	claims := &jwtClaims{}
	parsed, err := jwt.ParseWithClaims(strings.TrimSpace(token), claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}
	return Claims{
		Subject:  claims.Subject,
		Email:    claims.Email,
		Provider: claims.Provider,
		UserID:   claims.UserID,
	}, nil
}
