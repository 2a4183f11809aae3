// Auth HTTP handlers.
//
//   - POST /auth/register   (create a password account)
//   - POST /auth/login      (password login, form or JSON body)
//   - POST /auth/exchange   (third-party access token -> backend token)
//   - GET  /auth/providers  (enabled sign-in providers)
//   - GET  /users/me        (current user, auth)
package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

//
// DTOs
//

// RegisterRequest is the JSON payload for creating an account.
type RegisterRequest struct {
	Email    string `json:"email"    binding:"required,email,max=255" example:"somchai@example.com"`
	Username string `json:"username" binding:"required,min=1,max=255" example:"somchai"`
	Password string `json:"password" binding:"required,min=6,max=72"  example:"s3cret-pass"`
}

// LoginRequest carries password credentials. Both form and JSON bodies bind.
type LoginRequest struct {
	Username string `form:"username" json:"username" binding:"required" example:"somchai"`
	Password string `form:"password" json:"password" binding:"required" example:"s3cret-pass"`
}

// ExchangeRequest carries a third-party access token.
type ExchangeRequest struct {
	Provider    string `json:"provider"    binding:"required" example:"google"`
	AccessToken string `json:"accessToken" binding:"required" example:"ya29.a0Af..."`
}

// UserResponse is the public view of a user.
type UserResponse struct {
	ID       int     `json:"id"       example:"1"`
	Username string  `json:"username" example:"somchai"`
	Email    string  `json:"email"    example:"somchai@example.com"`
	Image    *string `json:"image,omitempty"`
}

// TokenResponse is returned by password login.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type" example:"bearer"`
	ExpiresIn   int    `json:"expires_in,omitempty" example:"1800"`
}

// ExchangeResponse is returned by token exchange.
type ExchangeResponse struct {
	AccessToken string       `json:"accessToken"`
	ExpiresIn   int          `json:"expiresIn,omitempty" example:"1800"`
	User        UserResponse `json:"user"`
}

// ProviderInfo describes one sign-in provider.
type ProviderInfo struct {
	ID   string `json:"id"   example:"line"`
	Name string `json:"name" example:"Line"`
	Type string `json:"type" example:"oauth"`
}

//
// Handlers
//

// Register godoc
// @ID          register
// @Summary     Register a password account
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.RegisterRequest  true  "Account"
// @Success     201   {object}  handlers.UserResponse
// @Failure     400   {object}  handlers.ErrorResponse  "Invalid fields"
// @Failure     409   {object}  handlers.ErrorResponse  "Username or email taken"
// @Router      /auth/register [post]
func (h *Handlers) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFail(c, err)
		return
	}
	u, err := h.identity.Register(c.Request.Context(), req.Email, req.Username, req.Password)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, UserResponse{ID: u.ID, Username: u.Username, Email: u.Email, Image: u.Image})
}

// Login godoc
// @ID          login
// @Summary     Password login
// @Description Accepts form-encoded or JSON credentials; username may also be the account email.
// @Tags        Auth
// @Accept      x-www-form-urlencoded,json
// @Produce     json
// @Param       username  formData  string  true  "Username or email"
// @Param       password  formData  string  true  "Password"
// @Success     200  {object}  handlers.TokenResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Incorrect username or password"
// @Router      /auth/login [post]
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	b := binding.Form
	if strings.HasPrefix(c.ContentType(), binding.MIMEJSON) {
		b = binding.JSON
	}
	if err := c.ShouldBindWith(&req, b); err != nil {
		bindFail(c, err)
		return
	}
	tok, err := h.identity.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, TokenResponse{AccessToken: tok, TokenType: "bearer", ExpiresIn: h.expiresIn()})
}

// Exchange godoc
// @ID          exchangeToken
// @Summary     Exchange a provider access token
// @Description Verifies a Google or LINE access token and returns a backend bearer token, creating the user on first sign-in.
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.ExchangeRequest  true  "Provider token"
// @Success     200   {object}  handlers.ExchangeResponse
// @Failure     400   {object}  handlers.ErrorResponse
// @Failure     401   {object}  handlers.ErrorResponse  "Provider rejected or unreachable"
// @Router      /auth/exchange [post]
func (h *Handlers) Exchange(c *gin.Context) {
	var req ExchangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFail(c, err)
		return
	}
	tok, u, err := h.identity.Exchange(c.Request.Context(), req.Provider, req.AccessToken)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ExchangeResponse{
		AccessToken: tok,
		ExpiresIn:   h.expiresIn(),
		User:        UserResponse{ID: u.ID, Username: u.Username, Email: u.Email, Image: u.Image},
	})
}

// Providers godoc
// @ID          listProviders
// @Summary     List sign-in providers
// @Tags        Auth
// @Produce     json
// @Success     200  {object}  map[string]handlers.ProviderInfo
// @Router      /auth/providers [get]
func (h *Handlers) Providers(c *gin.Context) {
	out := make(map[string]ProviderInfo, len(h.providers))
	for _, p := range h.providers {
		out[p] = ProviderInfo{ID: p, Name: providerName(p), Type: "oauth"}
	}
	ok(c, http.StatusOK, out)
}

// expiresIn is the token lifetime in whole seconds, 0 when unknown.
func (h *Handlers) expiresIn() int { return int(h.tokenTTL / time.Second) }

func providerName(p string) string {
	if p == "" {
		return p
	}
	return strings.ToUpper(p[:1]) + p[1:]
}

// Me godoc
// @ID          currentUser
// @Summary     Current user
// @Tags        Auth
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.UserResponse
// @Failure     401  {object}  handlers.ErrorResponse
// @Router      /users/me [get]
func (h *Handlers) Me(c *gin.Context) {
	u, okUser := currentUser(c)
	if !okUser {
		return
	}
	ok(c, http.StatusOK, UserResponse{ID: u.ID, Username: u.Username, Email: u.Email, Image: u.Image})
}
