// Package handlers exposes the REST surface of the carry marketplace.
//
// Handlers are transport-thin: they bind and validate input, call application
// services, and translate results (or sentinel errors) into HTTP responses.
package handlers

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/thaihand/carry-backend/internal/domain"
	"github.com/thaihand/carry-backend/internal/http/middleware"
	"github.com/thaihand/carry-backend/internal/services"
	"github.com/thaihand/carry-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// IdentityService backs registration, password login and token exchange.
type IdentityService interface {
	Register(ctx context.Context, email, username, password string) (*domain.User, error)
	Login(ctx context.Context, username, password string) (string, error)
	Exchange(ctx context.Context, provider, accessToken string) (string, *domain.User, error)
}

// RequestService defines carry-request operations consumed by HTTP handlers.
type RequestService interface {
	CreateIdempotent(ctx context.Context, user *domain.User, in services.RequestInput, key string) (*domain.Request, bool, error)
	Get(ctx context.Context, id int) (*domain.Request, error)
	List(ctx context.Context, skip, limit int) ([]domain.Request, error)
	ListForOffer(ctx context.Context, offerID int) ([]domain.Request, error)
	ListByEmail(ctx context.Context, email string) ([]domain.Request, error)
	Update(ctx context.Context, userID, id int, p services.RequestPatch) (*domain.Request, error)
	Delete(ctx context.Context, userID, id int) error
	UpdateStatus(ctx context.Context, actorID, id int, status string) (*domain.Request, error)
}

// OfferService defines offer and marketplace operations.
type OfferService interface {
	Create(ctx context.Context, userID int, in services.OfferInput) (*domain.Offer, error)
	Get(ctx context.Context, id int) (*domain.Offer, error)
	List(ctx context.Context, skip, limit int) ([]services.OfferListing, error)
	Search(ctx context.Context, q string, limit int) ([]services.SearchHit, error)
	Update(ctx context.Context, userID, id int, p services.OfferPatch) (*domain.Offer, error)
	Delete(ctx context.Context, userID, id int) error
	ListByEmail(ctx context.Context, email string) ([]domain.Offer, error)
	GetForUser(ctx context.Context, userID, id int) (*domain.Offer, error)
}

// RouteService defines route posting operations.
type RouteService interface {
	Create(ctx context.Context, userID int, r domain.Route) (*domain.Route, error)
	List(ctx context.Context, skip, limit int) ([]domain.Route, error)
	Delete(ctx context.Context, userID, id int) error
}

// NotificationService reads the notification feed.
type NotificationService interface {
	ListForEmail(ctx context.Context, email string) ([]services.NotificationView, error)
	LongPoll(ctx context.Context, email, lastTime string) ([]services.NotificationView, error)
}

// ImageStore persists uploaded images and returns their public URL.
type ImageStore interface {
	Put(ctx context.Context, filename, contentType string, r io.Reader, size int64) (string, error)
}

//
// Handler wiring
//

// Deps lists the services the handlers depend on.
type Deps struct {
	Identity      IdentityService
	Requests      RequestService
	Offers        OfferService
	Routes        RouteService
	Notifications NotificationService
	Images        ImageStore

	// Providers names the enabled third-party sign-in providers.
	Providers []string
	// MaxUploadBytes caps the size of one uploaded image.
	MaxUploadBytes int64
	// TokenTTL is reported to clients as the lifetime of issued tokens.
	TokenTTL time.Duration
	// Now is the clock for health responses; time.Now when nil.
	Now func() time.Time
}

// Handlers groups the HTTP endpoints.
type Handlers struct {
	identity IdentityService
	requests RequestService
	offers   OfferService
	routes   RouteService
	notes    NotificationService
	images   ImageStore

	providers []string
	maxUpload int64
	tokenTTL  time.Duration
	now       func() time.Time
}

// New constructs a Handlers instance bound to the given services.
func New(d Deps) *Handlers {
	h := &Handlers{
		identity:  d.Identity,
		requests:  d.Requests,
		offers:    d.Offers,
		routes:    d.Routes,
		notes:     d.Notifications,
		images:    d.Images,
		providers: d.Providers,
		maxUpload: d.MaxUploadBytes,
		tokenTTL:  d.TokenTTL,
		now:       d.Now,
	}
	if h.now == nil {
		h.now = time.Now
	}
	if h.maxUpload <= 0 {
		h.maxUpload = 5 << 20
	}
	return h
}

//
// Helpers
//

const (
	defaultLimit = 100
	maxLimit     = 100
)

// clampPagination parses skip and limit query params. limit is bounded to
// [1, maxLimit]; a negative skip becomes 0.
func clampPagination(c *gin.Context) (skip, limit int) {
	skip = utils.AtoiDefault(c.Query("skip"), 0)
	if skip < 0 {
		skip = 0
	}
	limit = utils.AtoiDefault(c.Query("limit"), defaultLimit)
	if limit < 1 {
		limit = 1
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return
}

// idParam parses a positive integer path parameter, writing a 400 when it
// is not one.
func idParam(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, name+" must be a positive integer")
		return 0, false
	}
	return id, true
}

// currentUser returns the authenticated user or writes a 401.
func currentUser(c *gin.Context) (*domain.User, bool) {
	u, err := middleware.MustUser(c)
	if err != nil {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return nil, false
	}
	return u, true
}

// OKResponse acknowledges a mutation that returns no resource.
type OKResponse struct {
	OK bool `json:"ok" example:"true"`
}
