// Package config loads the server configuration from environment variables.
// Every variable has a default; a variable that is set but malformed is an
// error rather than a silent fallback.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const defaultSecret = "changeme"

// CORSConfig lists the browser origins allowed to call the API. Empty
// allows any origin without credentials.
type CORSConfig struct {
	AllowedOrigins []string // CORS_ALLOWED_ORIGINS (ALLOWED_ORIGINS accepted)
}

// SecurityConfig controls Strict-Transport-Security on HTTPS responses.
type SecurityConfig struct {
	EnableHSTS bool          // ENABLE_HSTS
	HSTSMaxAge time.Duration // HSTS_MAX_AGE
}

// OTELConfig configures trace export over OTLP gRPC.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT, host:port of the collector
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE, plaintext gRPC
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG, fraction of root spans kept
}

// AuthConfig holds bearer token settings.
type AuthConfig struct {
	Secret   string        // JWT_SECRET (NEXTAUTH_SECRET accepted)
	TokenTTL time.Duration // TOKEN_TTL
	Issuer   string        // TOKEN_ISSUER
}

// ProviderConfig holds third-party token verification endpoints.
type ProviderConfig struct {
	GoogleTokenInfoURL string        // GOOGLE_TOKENINFO_URL
	LineProfileURL     string        // LINE_PROFILE_URL
	LineEmailDomain    string        // LINE_EMAIL_DOMAIN, used for pseudo-emails
	HTTPTimeout        time.Duration // PROVIDER_HTTP_TIMEOUT
}

// LongPollConfig tunes the notification long-poll loop.
type LongPollConfig struct {
	Timeout  time.Duration // LONGPOLL_TIMEOUT
	Interval time.Duration // LONGPOLL_INTERVAL
}

// NotifyConfig tunes notification appends and enrichment.
type NotifyConfig struct {
	DedupWindow        time.Duration // NOTIFY_DEDUP_WINDOW; 0 = only same-instant duplicates
	DefaultSenderImage string        // SENDER_IMAGE_DEFAULT
}

// StorageConfig configures MinIO/S3 image uploads. Empty Endpoint disables uploads.
type StorageConfig struct {
	Endpoint       string // MINIO_ENDPOINT
	AccessKey      string // MINIO_ACCESS_KEY
	SecretKey      string // MINIO_SECRET_KEY
	Bucket         string // MINIO_BUCKET
	Region         string // MINIO_REGION
	UseSSL         bool   // MINIO_USE_SSL
	PublicBaseURL  string // MINIO_PUBLIC_URL, prefix for returned object URLs
	MaxUploadBytes int64  // UPLOAD_MAX_BYTES
}

// MongoConfig configures the request status-history sink. Empty URI disables it.
type MongoConfig struct {
	URI      string
	Database string
}

// Config is the full server configuration, built once by Load.
type Config struct {
	Port              string        // PORT
	ReadTimeout       time.Duration // READ_TIMEOUT
	ReadHeaderTimeout time.Duration // READ_HEADER_TIMEOUT
	WriteTimeout      time.Duration // WRITE_TIMEOUT; must outlast LongPoll.Timeout
	IdleTimeout       time.Duration // IDLE_TIMEOUT
	MaxHeaderBytes    int           // MAX_HEADER_BYTES
	GinMode           string        // GIN_MODE: debug, release or test

	LogLevel       string // LOG_LEVEL
	LogPretty      bool   // LOG_PRETTY, console output instead of JSON
	SwaggerEnabled bool   // SWAGGER_ENABLED
	APIBasePath    string // API_BASE_PATH; routes are also served at the root

	DatabaseURL   string // DATABASE_URL, SQLite path or postgres:// URL
	DBAutoMigrate bool   // DB_AUTO_MIGRATE; off when attaching to an existing schema

	RateRPS   float64 // RATE_RPS, tokens per second; 0 disables limiting
	RateBurst int     // RATE_BURST

	CORS     CORSConfig
	Security SecurityConfig

	IdempotencyTTL time.Duration // IDEMPOTENCY_TTL, lifetime of a stored Idempotency-Key

	Auth      AuthConfig
	Providers ProviderConfig
	LongPoll  LongPollConfig
	Notify    NotifyConfig
	Storage   StorageConfig
	Mongo     MongoConfig
	OTEL      OTELConfig
}

// Load reads the environment, normalizes values and validates the result.
// All problems are reported together.
func Load() (Config, error) {
	e := &env{}
	cfg := Config{
		Port:              e.str("PORT", "8000"),
		ReadTimeout:       e.dur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: e.dur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      e.dur("WRITE_TIMEOUT", 40*time.Second),
		IdleTimeout:       e.dur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    e.int("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(e.str("GIN_MODE", "release")),

		LogLevel:       strings.ToLower(e.str("LOG_LEVEL", "info")),
		LogPretty:      e.bool("LOG_PRETTY", false),
		SwaggerEnabled: e.bool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(e.str("API_BASE_PATH", "/api")),

		DatabaseURL:   e.str("DATABASE_URL", "app.db"),
		DBAutoMigrate: e.bool("DB_AUTO_MIGRATE", true),

		RateRPS:   e.float("RATE_RPS", 10),
		RateBurst: e.int("RATE_BURST", 20),

		CORS: CORSConfig{
			AllowedOrigins: splitCSV(e.first("", "CORS_ALLOWED_ORIGINS", "ALLOWED_ORIGINS")),
		},
		Security: SecurityConfig{
			EnableHSTS: e.bool("ENABLE_HSTS", false),
			HSTSMaxAge: e.dur("HSTS_MAX_AGE", 180*24*time.Hour),
		},
		IdempotencyTTL: e.dur("IDEMPOTENCY_TTL", 24*time.Hour),

		Auth: AuthConfig{
			Secret:   e.first(defaultSecret, "JWT_SECRET", "NEXTAUTH_SECRET"),
			TokenTTL: e.dur("TOKEN_TTL", 30*time.Minute),
			Issuer:   e.str("TOKEN_ISSUER", "carry-backend"),
		},
		Providers: ProviderConfig{
			GoogleTokenInfoURL: e.str("GOOGLE_TOKENINFO_URL", "https://www.googleapis.com/oauth2/v3/tokeninfo"),
			LineProfileURL:     e.str("LINE_PROFILE_URL", "https://api.line.me/v2/profile"),
			LineEmailDomain:    strings.ToLower(e.str("LINE_EMAIL_DOMAIN", "line.me")),
			HTTPTimeout:        e.dur("PROVIDER_HTTP_TIMEOUT", 10*time.Second),
		},
		LongPoll: LongPollConfig{
			Timeout:  e.dur("LONGPOLL_TIMEOUT", 25*time.Second),
			Interval: e.dur("LONGPOLL_INTERVAL", 2*time.Second),
		},
		Notify: NotifyConfig{
			DedupWindow:        e.dur("NOTIFY_DEDUP_WINDOW", 10*time.Second),
			DefaultSenderImage: e.str("SENDER_IMAGE_DEFAULT", "/thaihand-logo.png"),
		},
		Storage: StorageConfig{
			Endpoint:       e.str("MINIO_ENDPOINT", ""),
			AccessKey:      e.str("MINIO_ACCESS_KEY", ""),
			SecretKey:      e.str("MINIO_SECRET_KEY", ""),
			Bucket:         e.str("MINIO_BUCKET", "carry-images"),
			Region:         e.str("MINIO_REGION", ""),
			UseSSL:         e.bool("MINIO_USE_SSL", false),
			PublicBaseURL:  strings.TrimRight(e.str("MINIO_PUBLIC_URL", ""), "/"),
			MaxUploadBytes: int64(e.int("UPLOAD_MAX_BYTES", 5<<20)),
		},
		Mongo: MongoConfig{
			URI:      e.str("MONGO_URI", ""),
			Database: e.str("MONGO_DATABASE", "carry"),
		},
		OTEL: OTELConfig{
			Enabled:     e.bool("OTEL_ENABLED", false),
			Endpoint:    e.str("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    e.bool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: e.str("OTEL_SERVICE_NAME", "carry-backend"),
			SampleRatio: e.float("OTEL_TRACES_SAMPLER_ARG", 1),
		},
	}

	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	return cfg, errors.Join(append(e.errs, cfg.validate()...)...)
}

func (c Config) validate() []error {
	var errs []error
	check := func(ok bool, msg string) {
		if !ok {
			errs = append(errs, errors.New(msg))
		}
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		errs = append(errs, fmt.Errorf("LOG_LEVEL %q is not one of debug, info, warn, error, fatal, panic", c.LogLevel))
	}
	check(strings.TrimSpace(c.Port) != "", "PORT must not be empty")
	check(c.ReadTimeout > 0 && c.ReadHeaderTimeout > 0 && c.WriteTimeout > 0 && c.IdleTimeout > 0,
		"server timeouts must be positive")
	check(c.MaxHeaderBytes > 0, "MAX_HEADER_BYTES must be > 0")
	check(strings.TrimSpace(c.DatabaseURL) != "", "DATABASE_URL must not be empty")
	check(c.RateRPS >= 0, "RATE_RPS must be >= 0")
	check(c.RateBurst >= 1, "RATE_BURST must be >= 1")
	check(c.Security.HSTSMaxAge >= 0, "HSTS_MAX_AGE must be >= 0")
	check(c.IdempotencyTTL > 0, "IDEMPOTENCY_TTL must be > 0")
	check(strings.TrimSpace(c.Auth.Secret) != "", "JWT_SECRET must not be empty")
	check(c.Auth.TokenTTL > 0, "TOKEN_TTL must be > 0")
	check(c.Providers.HTTPTimeout > 0, "PROVIDER_HTTP_TIMEOUT must be > 0")

	// A poll must be able to wait out its full timeout without the server
	// cutting the response.
	check(c.LongPoll.Timeout > 0 && c.LongPoll.Interval > 0, "LONGPOLL_TIMEOUT and LONGPOLL_INTERVAL must be > 0")
	check(c.LongPoll.Interval <= c.LongPoll.Timeout, "LONGPOLL_INTERVAL must not exceed LONGPOLL_TIMEOUT")
	check(c.WriteTimeout > c.LongPoll.Timeout, "WRITE_TIMEOUT must be greater than LONGPOLL_TIMEOUT")

	check(c.Notify.DedupWindow >= 0, "NOTIFY_DEDUP_WINDOW must be >= 0")
	check(c.Storage.Endpoint == "" || strings.TrimSpace(c.Storage.Bucket) != "",
		"MINIO_BUCKET must not be empty when MINIO_ENDPOINT is set")
	check(c.Storage.MaxUploadBytes > 0, "UPLOAD_MAX_BYTES must be > 0")
	check(c.OTEL.SampleRatio >= 0 && c.OTEL.SampleRatio <= 1, "OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	return errs
}

// DefaultSecret reports whether the token secret is still the built-in placeholder.
func (c Config) DefaultSecret() bool { return c.Auth.Secret == defaultSecret }

// IsPostgres reports whether DatabaseURL points at PostgreSQL rather than a SQLite file.
func (c Config) IsPostgres() bool {
	u := strings.ToLower(c.DatabaseURL)
	return strings.HasPrefix(u, "postgres://") || strings.HasPrefix(u, "postgresql://")
}

// env reads typed variables and remembers every value it could not parse.
type env struct {
	errs []error
}

// lookup returns the trimmed value of k, or false when unset or blank.
func (e *env) lookup(k string) (string, bool) {
	v, ok := os.LookupEnv(k)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (e *env) bad(k, v, want string) {
	e.errs = append(e.errs, fmt.Errorf("%s=%q: want %s", k, v, want))
}

func (e *env) str(k, def string) string {
	if v, ok := e.lookup(k); ok {
		return v
	}
	return def
}

// first returns the first set variable among keys, else def.
func (e *env) first(def string, keys ...string) string {
	for _, k := range keys {
		if v, ok := e.lookup(k); ok {
			return v
		}
	}
	return def
}

func (e *env) float(k string, def float64) float64 {
	v, ok := e.lookup(k)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.bad(k, v, "a number")
		return def
	}
	return f
}

func (e *env) int(k string, def int) int {
	v, ok := e.lookup(k)
	if !ok {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		e.bad(k, v, "an integer")
		return def
	}
	return i
}

func (e *env) bool(k string, def bool) bool {
	v, ok := e.lookup(k)
	if !ok {
		return def
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	}
	e.bad(k, v, "a boolean")
	return def
}

// dur accepts Go durations ("25s", "1h30m") or bare whole seconds ("25").
func (e *env) dur(k string, def time.Duration) time.Duration {
	v, ok := e.lookup(k)
	if !ok {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	e.bad(k, v, "a duration such as 25s")
	return def
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// normalizeBasePath returns p with one leading slash and no trailing slash;
// empty means root.
func normalizeBasePath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	return "/" + p
}
