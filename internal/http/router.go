// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, idempotency, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic router setup; all infrastructure injected through Deps
package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/thaihand/carry-backend/internal/auth"
	"github.com/thaihand/carry-backend/internal/config"
	"github.com/thaihand/carry-backend/internal/docs"
	"github.com/thaihand/carry-backend/internal/feed"
	"github.com/thaihand/carry-backend/internal/history"
	"github.com/thaihand/carry-backend/internal/http/handlers"
	"github.com/thaihand/carry-backend/internal/http/middleware"
	"github.com/thaihand/carry-backend/internal/observability"
	"github.com/thaihand/carry-backend/internal/repo"
	"github.com/thaihand/carry-backend/internal/services"
	"github.com/thaihand/carry-backend/internal/storage"
)

// Deps carries the infrastructure built by main. Zero-valued optional fields
// fall back to no-op implementations.
type Deps struct {
	DB        *gorm.DB
	Schema    repo.Schema
	Hub       *feed.Hub          // nil: a private hub is created
	History   history.Recorder   // nil: status changes are not archived
	Images    storage.ImageStore // nil: uploads answer 503
	Verifiers auth.Verifiers     // third-party token verifiers by provider
}

// longPollPath is excluded from gzip so an empty poll response is not held
// back by the compressor.
const longPollPath = "/notifications/longpoll"

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. The API is served both at the root and under cfg.APIBasePath so
// that clients using either prefix keep working.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: structured logs, PII scrubbed outside debug mode
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. CORS and Security headers
//  8. gzip (long-poll excluded)
//
// On authenticated routes RequireAuth runs first, then the idempotency
// validator (so replays can bypass), then the per-user rate limiter.
// Public routes are rate limited per IP.
func RegisterRoutes(r *gin.Engine, d Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName, otelgin.WithFilter(observability.TraceFilter)))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging; full detail only in local debug mode
	if cfg.GinMode == gin.DebugMode {
		r.Use(middleware.Logger())
	} else {
		r.Use(middleware.RedactingLogger(middleware.RedactOptions{
			MaskHeaders: []string{"X-API-Key", middleware.HeaderIdempotencyKey},
		}))
	}

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit; uploads get their own larger cap
	r.Use(limitBody(1<<20, "/uploads", cfg.Storage.MaxUploadBytes+(1<<20)))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) CORS posture (safe defaults: allow all if none configured)
	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderIdempotencyKey},
		ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "Idempotent-Replay"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header.
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.CORS.AllowedOrigins
		corsCfg.AllowCredentials = true
	}
	r.Use(cors.New(corsCfg))

	// Security headers; per-user routes are never cached
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:      cfg.Security.EnableHSTS,
		HSTSMaxAge:      cfg.Security.HSTSMaxAge,
		EnablePolicy:    true,
		PrivateSegments: middleware.DefaultPrivateSegments,
	}))

	prefixes := []string{""}
	if base := cfg.APIBasePath; base != "" && base != "/" {
		prefixes = append(prefixes, strings.TrimRight(base, "/"))
	}

	// 8) Compression, except for long-poll responses
	noGzip := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		noGzip = append(noGzip, p+longPollPath)
	}
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths(noGzip)))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = cfg.APIBasePath
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler,
			ginSwagger.URL("/swagger/doc.json"),
			ginSwagger.DefaultModelsExpandDepth(0),
		))
	}

	// Dependency injection: services <- repo/db/hub
	hub := d.Hub
	if hub == nil {
		hub = feed.NewHub()
	}
	images := d.Images
	if images == nil {
		images = storage.Disabled{}
	}
	tokens := auth.NewTokenService(cfg.Auth.Secret, cfg.Auth.TokenTTL, cfg.Auth.Issuer)
	identity := services.NewIdentityService(d.DB, tokens, d.Verifiers, cfg.Providers.LineEmailDomain)

	notes := services.NewNotificationService(d.DB, d.Schema, hub, cfg.LongPoll.Timeout, cfg.LongPoll.Interval)
	notes.DedupWindow = cfg.Notify.DedupWindow
	if cfg.Notify.DefaultSenderImage != "" {
		notes.DefaultSenderImage = cfg.Notify.DefaultSenderImage
	}

	reqs := services.NewRequestService(d.DB, d.Schema, notes)
	reqs.IdempotencyTTL = cfg.IdempotencyTTL
	if d.History != nil {
		reqs.History = d.History
	}

	providers := make([]string, 0, len(d.Verifiers))
	for _, p := range []string{auth.ProviderGoogle, auth.ProviderLine} {
		if _, ok := d.Verifiers[p]; ok {
			providers = append(providers, p)
		}
	}

	h := handlers.New(handlers.Deps{
		Identity:       identity,
		Requests:       reqs,
		Offers:         services.NewOfferService(d.DB, d.Schema),
		Routes:         &services.RouteService{DB: d.DB},
		Notifications:  notes,
		Images:         images,
		Providers:      providers,
		MaxUploadBytes: cfg.Storage.MaxUploadBytes,
		TokenTTL:       tokens.TTL(),
	})

	// Liveness/health
	r.GET("/health", h.Health)

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	authMW := []gin.HandlerFunc{
		middleware.RequireAuth(identity, handlers.IsAuthError),
		middleware.IdempotencyValidator(middleware.IdempotencyOptions{
			MaxLen: 128,
			Scope:  createScope,
		}, reqs.HasReplay),
		rl.Handler(),
	}

	for _, p := range prefixes {
		mountAPI(groupWithPrefix(r, p), h, rl.Handler(), authMW)
	}
}

// mountAPI registers every API endpoint on g.
func mountAPI(g *gin.RouterGroup, h *handlers.Handlers, public gin.HandlerFunc, authMW []gin.HandlerFunc) {
	pub := g.Group("", public)
	{
		pub.POST("/auth/register", h.Register)
		pub.POST("/auth/login", h.Login)
		pub.POST("/auth/exchange", h.Exchange)
		pub.GET("/auth/providers", h.Providers)

		pub.GET("/requests", h.ListRequests)
		pub.GET("/requests/:id", h.GetRequest)
		pub.GET("/my-orders", h.MyOrders)

		pub.GET("/offers", h.ListOffers)
		pub.GET("/offers/:id", h.GetOffer)
		pub.GET("/offers/:id/requests", h.ListOfferRequests)
		pub.GET("/my-carry-orders", h.MyCarryOrders)
		pub.GET("/my-carry-orders/:id", h.MyCarryOrder)
		pub.GET("/marketplace", h.SearchMarketplace)

		pub.GET("/routes", h.ListRoutes)

		pub.GET("/notifications", h.ListNotifications)
		pub.GET(longPollPath, h.LongPollNotifications)
	}

	priv := g.Group("", authMW...)
	{
		priv.GET("/users/me", h.Me)

		priv.POST("/requests", h.CreateRequest)
		priv.PUT("/requests/:id", h.UpdateRequest)
		priv.DELETE("/requests/:id", h.DeleteRequest)
		priv.PATCH("/requests/:id/status", h.UpdateRequestStatus)

		priv.POST("/offers", h.CreateOffer)
		priv.PUT("/offers/:id", h.UpdateOffer)
		priv.DELETE("/offers/:id", h.DeleteOffer)

		priv.POST("/routes", h.CreateRoute)
		priv.DELETE("/routes/:id", h.DeleteRoute)

		priv.POST("/uploads", h.UploadImage)
	}
}

// createScope names the idempotent operation behind a request; only request
// creation is replayable.
func createScope(c *gin.Context) string {
	if c.Request.Method == http.MethodPost && strings.HasSuffix(c.FullPath(), "/requests") {
		return services.ScopeCreateRequest
	}
	return ""
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Paths ending in
// exceptSuffix get exceptMax instead. Requests exceeding the cap will cause
// downstream body reads to error.
func limitBody(maxBytes int64, exceptSuffix string, exceptMax int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := maxBytes
		if exceptSuffix != "" && strings.HasSuffix(c.Request.URL.Path, exceptSuffix) {
			limit = exceptMax
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
