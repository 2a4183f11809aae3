package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/thaihand/carry-backend/internal/auth"
	"github.com/thaihand/carry-backend/internal/domain"
	"github.com/thaihand/carry-backend/internal/feed"
	"github.com/thaihand/carry-backend/internal/http/middleware"
	"github.com/thaihand/carry-backend/internal/repo"
	"github.com/thaihand/carry-backend/internal/services"
)

// ---------- fakes ----------

type fakeVerifier struct {
	id  auth.Identity
	err error
}

func (f fakeVerifier) Verify(context.Context, string) (auth.Identity, error) { return f.id, f.err }

type fakeImages struct {
	name, contentType string
	size              int64
	err               error
}

func (f *fakeImages) Put(_ context.Context, name, ct string, r io.Reader, size int64) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	_, _ = io.Copy(io.Discard, r)
	f.name, f.contentType, f.size = name, ct, size
	return "https://img.test/" + name, nil
}

// ---------- test environment ----------

type testEnv struct {
	db     *gorm.DB
	r      *gin.Engine
	tokens *auth.TokenService
	notes  *services.NotificationService
	images *fakeImages
}

func newHandlerDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "handlers.db") + "?_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// newEnv wires real services over SQLite behind the same middleware the
// server uses for authentication and idempotency.
func newEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := newHandlerDB(t)
	sc := repo.FullSchema
	tokens := auth.NewTokenService("handler-secret", time.Minute, "carry-test")
	ids := services.NewIdentityService(db, tokens, auth.Verifiers{
		auth.ProviderGoogle: fakeVerifier{id: auth.Identity{Provider: auth.ProviderGoogle, Subject: "g-1", Email: "g@example.com"}},
		auth.ProviderLine:   fakeVerifier{err: auth.ErrUpstreamRejected},
	}, "line.me")
	notes := services.NewNotificationService(db, sc, feed.NewHub(), 300*time.Millisecond, 20*time.Millisecond)
	reqs := services.NewRequestService(db, sc, notes)
	offers := services.NewOfferService(db, sc)
	images := &fakeImages{}

	h := New(Deps{
		Identity:       ids,
		Requests:       reqs,
		Offers:         offers,
		Routes:         &services.RouteService{DB: db},
		Notifications:  notes,
		Images:         images,
		Providers:      []string{auth.ProviderGoogle, auth.ProviderLine},
		MaxUploadBytes: 1 << 10,
		TokenTTL:       tokens.TTL(),
		Now:            func() time.Time { return time.Date(2025, 3, 9, 12, 0, 0, 0, time.UTC) },
	})

	r := gin.New()
	r.Use(middleware.RequestID())
	mount(r, h,
		middleware.RequireAuth(ids, IsAuthError),
		middleware.IdempotencyValidator(middleware.IdempotencyOptions{
			Scope: func(c *gin.Context) string {
				if c.Request.Method == http.MethodPost && c.FullPath() == "/requests" {
					return services.ScopeCreateRequest
				}
				return ""
			},
		}, reqs.HasReplay),
	)
	return &testEnv{db: db, r: r, tokens: tokens, notes: notes, images: images}
}

// mount registers the routes under test the way the server router does.
func mount(r *gin.Engine, h *Handlers, authMW, idem gin.HandlerFunc) {
	r.GET("/health", h.Health)
	r.POST("/auth/register", h.Register)
	r.POST("/auth/login", h.Login)
	r.POST("/auth/exchange", h.Exchange)
	r.GET("/auth/providers", h.Providers)
	r.GET("/requests", h.ListRequests)
	r.GET("/requests/:id", h.GetRequest)
	r.GET("/offers", h.ListOffers)
	r.GET("/offers/:id", h.GetOffer)
	r.GET("/offers/:id/requests", h.ListOfferRequests)
	r.GET("/marketplace", h.SearchMarketplace)
	r.GET("/my-orders", h.MyOrders)
	r.GET("/my-carry-orders", h.MyCarryOrders)
	r.GET("/my-carry-orders/:id", h.MyCarryOrder)
	r.GET("/routes", h.ListRoutes)
	r.GET("/notifications", h.ListNotifications)
	r.GET("/notifications/longpoll", h.LongPollNotifications)

	a := r.Group("/", authMW, idem)
	a.GET("/users/me", h.Me)
	a.POST("/requests", h.CreateRequest)
	a.PUT("/requests/:id", h.UpdateRequest)
	a.DELETE("/requests/:id", h.DeleteRequest)
	a.PATCH("/requests/:id/status", h.UpdateRequestStatus)
	a.POST("/offers", h.CreateOffer)
	a.PUT("/offers/:id", h.UpdateOffer)
	a.DELETE("/offers/:id", h.DeleteOffer)
	a.POST("/routes", h.CreateRoute)
	a.DELETE("/routes/:id", h.DeleteRoute)
	a.POST("/uploads", h.UploadImage)
}

func (e *testEnv) user(t *testing.T, username, email string) (*domain.User, string) {
	t.Helper()
	u := &domain.User{Username: username, Email: email}
	if err := repo.CreateUser(context.Background(), e.db, u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	tok, err := e.tokens.Issue(auth.Claims{Subject: email, UserID: u.ID})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return u, tok
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any, hdr ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			rd = bytes.NewBufferString(b)
		default:
			raw, err := json.Marshal(b)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			rd = bytes.NewReader(raw)
		}
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func ptr[T any](v T) *T { return &v }
