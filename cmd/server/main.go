// Command server runs the carry marketplace HTTP API.
//
// @title                      Carry Backend API
// @version                    1.0
// @description                Carry-request marketplace: requests, offers, routes and notification long-poll.
// @BasePath                   /api
// @securityDefinitions.apikey BearerAuth
// @in                         header
// @name                       Authorization
// @description                Type "Bearer" followed by a space and the token.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/thaihand/carry-backend/internal/auth"
	"github.com/thaihand/carry-backend/internal/config"
	"github.com/thaihand/carry-backend/internal/feed"
	"github.com/thaihand/carry-backend/internal/history"
	httpapi "github.com/thaihand/carry-backend/internal/http"
	"github.com/thaihand/carry-backend/internal/observability"
	"github.com/thaihand/carry-backend/internal/repo"
	"github.com/thaihand/carry-backend/internal/storage"
	"github.com/thaihand/carry-backend/internal/sysutil"
)

const (
	shutdownGrace   = 5 * time.Second
	janitorInterval = time.Hour
)

func main() {
	if err := run(); err != nil {
		log.Error().Err(err).Msg("server exited")
		os.Exit(1)
	}
}

func run() error {
	loadDotenv()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger := sysutil.ConfigureLogger(cfg.LogLevel, cfg.LogPretty, nil)
	version := sysutil.Version()
	if cfg.DefaultSecret() {
		logger.Warn().Msg("JWT_SECRET is not set; tokens are signed with the built-in placeholder")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			logger.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := repo.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}()
	if cfg.DBAutoMigrate {
		if err := repo.AutoMigrate(db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	schema := repo.DetectSchema(db)
	logger.Info().
		Bool("postgres", cfg.IsPostgres()).
		Bool("request_status", schema.RequestStatus).
		Bool("notification_request_id", schema.NotificationRequestID).
		Bool("offer_pricing", schema.OfferPricing).
		Msg("database ready")

	prometheus.MustRegister(observability.NewTableCollector(db, 2*time.Second))

	recorder, closeHistory, err := openHistory(ctx, cfg.Mongo, logger)
	if err != nil {
		return err
	}
	defer closeHistory()

	images, err := openImages(ctx, cfg.Storage, logger)
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: cfg.Providers.HTTPTimeout}
	verifiers := auth.Verifiers{
		auth.ProviderGoogle: auth.GoogleVerifier{Client: client, TokenInfoURL: cfg.Providers.GoogleTokenInfoURL},
		auth.ProviderLine:   auth.LineVerifier{Client: client, ProfileURL: cfg.Providers.LineProfileURL},
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{
		DB:        db,
		Schema:    schema,
		Hub:       feed.NewHub(),
		History:   recorder,
		Images:    images,
		Verifiers: verifiers,
	}, cfg)

	go purgeIdempotency(ctx, db, janitorInterval, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Str("version", version).Str("base_path", cfg.APIBasePath).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	// Pending long-polls are allowed to run out their timeout.
	logger.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), cfg.LongPoll.Timeout+shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// loadDotenv loads the first .env found in the working directory or its
// parents. Variables already set in the environment win.
func loadDotenv() {
	for _, p := range []string{".env", filepath.Join("..", ".env"), filepath.Join("..", "..", ".env")} {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
			return
		}
	}
}

// openHistory connects the status-history sink when MONGO_URI is set.
func openHistory(ctx context.Context, cfg config.MongoConfig, logger zerolog.Logger) (history.Recorder, func(), error) {
	if cfg.URI == "" {
		logger.Info().Msg("status history disabled")
		return history.Nop{}, func() {}, nil
	}
	client, err := history.Connect(ctx, cfg.URI)
	if err != nil {
		return nil, nil, err
	}
	logger.Info().Str("database", cfg.Database).Msg("status history enabled")
	return history.NewMongoRecorder(client, cfg.Database), func() {
		dctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := client.Disconnect(dctx); err != nil {
			logger.Warn().Err(err).Msg("mongo disconnect")
		}
	}, nil
}

// openImages connects object storage when MINIO_ENDPOINT is set.
func openImages(ctx context.Context, cfg config.StorageConfig, logger zerolog.Logger) (storage.ImageStore, error) {
	if cfg.Endpoint == "" {
		logger.Info().Msg("image uploads disabled")
		return storage.Disabled{}, nil
	}
	store, err := storage.NewMinio(ctx, storage.Config{
		Endpoint:      cfg.Endpoint,
		AccessKey:     cfg.AccessKey,
		SecretKey:     cfg.SecretKey,
		Bucket:        cfg.Bucket,
		Region:        cfg.Region,
		UseSSL:        cfg.UseSSL,
		PublicBaseURL: cfg.PublicBaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("object storage: %w", err)
	}
	return store, nil
}

// purgeIdempotency deletes expired idempotency records every interval until
// ctx is done.
func purgeIdempotency(ctx context.Context, db *gorm.DB, every time.Duration, logger zerolog.Logger) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := repo.PurgeExpiredIdempotency(ctx, db, now.UTC())
			if err != nil {
				logger.Warn().Err(err).Msg("purge idempotency")
				continue
			}
			if n > 0 {
				logger.Debug().Int64("rows", n).Msg("purged idempotency keys")
			}
		}
	}
}
