// Package services – IdentityService
//
// IdentityService maps verified token claims to a stored User, creating the
// user on first sight. It also backs registration, password login, and the
// third-party token exchange.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/thaihand/carry-backend/internal/auth"
	"github.com/thaihand/carry-backend/internal/domain"
	"github.com/thaihand/carry-backend/internal/repo"
)

// TokenIssuer signs and verifies bearer tokens.
type TokenIssuer interface {
	Issue(c auth.Claims) (string, error)
	Verify(token string) (auth.Claims, error)
}

// ProviderRegistry verifies third-party access tokens by provider name.
type ProviderRegistry interface {
	Verify(ctx context.Context, provider, accessToken string) (auth.Identity, error)
}

// IdentityService resolves token claims to users.
type IdentityService struct {
	DB        *gorm.DB
	Tokens    TokenIssuer
	Providers ProviderRegistry

	// PseudoDomains maps providers that expose no email to the domain used
	// for synthesized addresses, e.g. "line" -> "line.me".
	PseudoDomains map[string]string
}

// NewIdentityService wires an IdentityService with LINE pseudo-emails under lineDomain.
func NewIdentityService(db *gorm.DB, tokens TokenIssuer, providers ProviderRegistry, lineDomain string) *IdentityService {
	return &IdentityService{
		DB:            db,
		Tokens:        tokens,
		Providers:     providers,
		PseudoDomains: map[string]string{auth.ProviderLine: lineDomain},
	}
}

// Authenticate verifies a bearer token and resolves its user.
func (s *IdentityService) Authenticate(ctx context.Context, token string) (*domain.User, string, error) {
	c, err := s.Tokens.Verify(token)
	if err != nil {
		return nil, "", err
	}
	return s.ResolveOrCreate(ctx, c)
}

// ResolveOrCreate returns the user identified by c, creating it if absent,
// together with the provider tag. Repeated calls with the same claims return
// the same user.
func (s *IdentityService) ResolveOrCreate(ctx context.Context, c auth.Claims) (*domain.User, string, error) {
	email, username, ok := s.identityFromClaims(c)
	if !ok {
		return nil, "", ErrInvalidToken
	}
	u, err := s.findOrCreate(ctx, email, username)
	if err != nil {
		return nil, "", err
	}
	return u, c.Provider, nil
}

// identityFromClaims derives (email, username) from claims.
func (s *IdentityService) identityFromClaims(c auth.Claims) (email, username string, ok bool) {
	for _, cand := range []string{c.Subject, c.Email} {
		if looksLikeEmail(cand) {
			e := strings.TrimSpace(cand)
			return e, e, true
		}
	}
	provider := strings.ToLower(strings.TrimSpace(c.Provider))
	subject := strings.TrimSpace(c.Subject)
	if provider == "" || subject == "" {
		return "", "", false
	}
	dom, known := s.PseudoDomains[provider]
	if !known || dom == "" {
		return "", "", false
	}
	return PseudoEmail(subject, dom), PseudoUsername(provider, subject), true
}

// PseudoEmail synthesizes an address for a provider that exposes only an
// opaque id.
func PseudoEmail(subject, dom string) string { return subject + "@" + dom }

// PseudoUsername synthesizes a username for a provider-only identity.
func PseudoUsername(provider, subject string) string {
	return provider + "_user_" + subject
}

func looksLikeEmail(s string) bool {
	s = strings.TrimSpace(s)
	at := strings.LastIndex(s, "@")
	return at > 0 && at < len(s)-1 && !strings.ContainsAny(s, " \t\r\n")
}

func (s *IdentityService) findOrCreate(ctx context.Context, email, username string) (*domain.User, error) {
	u, err := repo.GetUserByEmail(ctx, s.DB, email)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}

	nu := &domain.User{Email: email, Username: username}
	err = repo.CreateUser(ctx, s.DB, nu)
	if err == nil {
		return nu, nil
	}
	if !errors.Is(err, repo.ErrDuplicate) {
		return nil, err
	}

	// Lost a race with a concurrent first sight of the same identity, or the
	// username belongs to someone else.
	if u, gerr := repo.GetUserByEmail(ctx, s.DB, email); gerr == nil {
		return u, nil
	}
	nu = &domain.User{Email: email, Username: username + "_" + uuid.NewString()[:8]}
	if err := repo.CreateUser(ctx, s.DB, nu); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return repo.GetUserByEmail(ctx, s.DB, email)
		}
		return nil, err
	}
	return nu, nil
}

// Register creates a password user. Username and email must be unused.
func (s *IdentityService) Register(ctx context.Context, email, username, password string) (*domain.User, error) {
	email, username = strings.TrimSpace(email), strings.TrimSpace(username)
	if username == "" || !looksLikeEmail(email) {
		return nil, fmt.Errorf("%w: username and a valid email are required", ErrValidation)
	}
	if _, err := repo.GetUserByUsername(ctx, s.DB, username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}

	var hash string
	if password != "" {
		h, err := auth.HashPassword(password)
		if err != nil {
			return nil, err
		}
		hash = h
	}
	u := &domain.User{Email: email, Username: username, HashedPassword: hash}
	if err := repo.CreateUser(ctx, s.DB, u); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}
	return u, nil
}

// Login checks a username (or email) and password and returns a bearer token.
func (s *IdentityService) Login(ctx context.Context, username, password string) (string, error) {
	username = strings.TrimSpace(username)
	u, err := repo.GetUserByUsername(ctx, s.DB, username)
	if errors.Is(err, repo.ErrNotFound) && looksLikeEmail(username) {
		u, err = repo.GetUserByEmail(ctx, s.DB, username)
	}
	if errors.Is(err, repo.ErrNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}
	if !auth.CheckPassword(u.HashedPassword, password) {
		return "", ErrInvalidCredentials
	}
	return s.Tokens.Issue(auth.Claims{Subject: u.Email, UserID: u.ID})
}

// Exchange verifies a third-party access token, resolves or creates the
// user, and returns a backend bearer token for them.
func (s *IdentityService) Exchange(ctx context.Context, provider, accessToken string) (string, *domain.User, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if strings.TrimSpace(accessToken) == "" {
		return "", nil, fmt.Errorf("%w: accessToken is required", ErrValidation)
	}
	id, err := s.Providers.Verify(ctx, provider, accessToken)
	if err != nil {
		return "", nil, err
	}
	u, _, err := s.ResolveOrCreate(ctx, auth.Claims{Subject: id.Subject, Email: id.Email, Provider: provider})
	if err != nil {
		return "", nil, err
	}
	tok, err := s.Tokens.Issue(auth.Claims{Subject: u.Email, Provider: provider, UserID: u.ID})
	if err != nil {
		return "", nil, err
	}
	return tok, u, nil
}
