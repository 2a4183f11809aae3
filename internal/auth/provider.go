package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Provider names accepted by token exchange.
const (
	ProviderGoogle = "google"
	ProviderLine   = "line"
)

var (
	// ErrUpstreamRejected means the provider answered but refused the token.
	ErrUpstreamRejected = errors.New("provider rejected token")
	// ErrUpstreamUnavailable means the provider could not be reached.
	ErrUpstreamUnavailable = errors.New("provider unavailable")
	// ErrUnknownProvider is returned for a provider name with no verifier.
	ErrUnknownProvider = errors.New("unknown provider")
)

// Identity is what a provider vouches for. Email may be empty for providers
// that only expose an opaque id.
type Identity struct {
	Provider string
	Subject  string
	Email    string
}

// ProviderVerifier validates a third-party access token.
type ProviderVerifier interface {
	Verify(ctx context.Context, accessToken string) (Identity, error)
}

// Verifiers maps provider names to their verifier.
type Verifiers map[string]ProviderVerifier

// Verify dispatches to the named provider.
func (v Verifiers) Verify(ctx context.Context, provider, accessToken string) (Identity, error) {
	pv, ok := v[strings.ToLower(strings.TrimSpace(provider))]
	if !ok {
		return Identity{}, ErrUnknownProvider
	}
	return pv.Verify(ctx, accessToken)
}

// GoogleVerifier calls the OAuth2 token-info endpoint.
type GoogleVerifier struct {
	Client       *http.Client
	TokenInfoURL string
}

func (g GoogleVerifier) Verify(ctx context.Context, accessToken string) (Identity, error) {
	u, err := url.Parse(g.TokenInfoURL)
	if err != nil {
		return Identity{}, fmt.Errorf("google tokeninfo url: %w", err)
	}
	q := u.Query()
	q.Set("access_token", accessToken)
	u.RawQuery = q.Encode()

	var body struct {
		Email string `json:"email"`
		Sub   string `json:"sub"`
	}
	if err := getJSON(ctx, g.Client, u.String(), "", &body); err != nil {
		return Identity{}, err
	}
	if strings.TrimSpace(body.Email) == "" {
		return Identity{}, fmt.Errorf("%w: no email in token info", ErrUpstreamRejected)
	}
	return Identity{Provider: ProviderGoogle, Subject: body.Sub, Email: body.Email}, nil
}

// LineVerifier calls the LINE profile endpoint with the access token.
type LineVerifier struct {
	Client     *http.Client
	ProfileURL string
}

func (l LineVerifier) Verify(ctx context.Context, accessToken string) (Identity, error) {
	var body struct {
		UserID string `json:"userId"`
	}
	if err := getJSON(ctx, l.Client, l.ProfileURL, accessToken, &body); err != nil {
		return Identity{}, err
	}
	if strings.TrimSpace(body.UserID) == "" {
		return Identity{}, fmt.Errorf("%w: no userId in profile", ErrUpstreamRejected)
	}
	return Identity{Provider: ProviderLine, Subject: body.UserID}, nil
}

func getJSON(ctx context.Context, client *http.Client, rawURL, bearer string, out any) error {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: status %d", ErrUpstreamRejected, resp.StatusCode)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(out); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrUpstreamRejected, err)
	}
	return nil
}
