// Package repo is the GORM data layer: free functions over *gorm.DB for
// users, requests, offers, routes, notifications and idempotency records,
// plus connection setup for SQLite and PostgreSQL.
package repo

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/thaihand/carry-backend/internal/domain"
)

// Pool sizes per driver. SQLite serializes writers, so it gets fewer.
type poolLimits struct {
	maxOpen, maxIdle int
	idleTime         time.Duration
	lifetime         time.Duration
}

var (
	sqlitePool   = poolLimits{maxOpen: 10, maxIdle: 10, idleTime: 5 * time.Minute, lifetime: 30 * time.Minute}
	postgresPool = poolLimits{maxOpen: 25, maxIdle: 10, idleTime: 5 * time.Minute, lifetime: 30 * time.Minute}
)

func (p poolLimits) apply(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxOpenConns(p.maxOpen)
	sqlDB.SetMaxIdleConns(p.maxIdle)
	sqlDB.SetConnMaxIdleTime(p.idleTime)
	sqlDB.SetConnMaxLifetime(p.lifetime)
	return nil
}

// sqlitePragmas run on every new connection, not just the first one.
var sqlitePragmas = []string{
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"foreign_keys(1)",
	"busy_timeout(5000)",
}

// slowQuery is the threshold above which GORM logs a statement at warn.
const slowQuery = 1500 * time.Millisecond

// gormConfig routes GORM's own logging (slow queries, errors) through the
// global zerolog logger.
func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger: logger.New(&log.Logger, logger.Config{
			SlowThreshold:             slowQuery,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	}
}

// Open connects to PostgreSQL when dsn is a postgres:// URL and to a SQLite
// file otherwise. Query tracing is attached in both cases.
func Open(dsn string) (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)
	if isPostgresURL(dsn) {
		db, err = OpenPostgres(dsn)
	} else {
		db, err = OpenSQLite(dsn)
	}
	if err != nil {
		return nil, err
	}
	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, fmt.Errorf("gorm tracing: %w", err)
	}
	return db, nil
}

func isPostgresURL(dsn string) bool {
	low := strings.ToLower(dsn)
	return strings.HasPrefix(low, "postgres://") || strings.HasPrefix(low, "postgresql://")
}

// OpenPostgres opens a pooled PostgreSQL connection.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(localSSLMode(dsn)), gormConfig())
	if err != nil {
		return nil, err
	}
	if err := postgresPool.apply(db); err != nil {
		return nil, err
	}
	return db, nil
}

// localSSLMode adds sslmode=disable to URLs pointing at the local host that
// do not choose a mode themselves.
func localSSLMode(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return dsn
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
	default:
		return dsn
	}
	q := u.Query()
	if q.Get("sslmode") != "" {
		return dsn
	}
	q.Set("sslmode", "disable")
	u.RawQuery = q.Encode()
	return u.String()
}

// OpenSQLite opens or creates a SQLite database. The parent directory must
// already exist; without that check the driver reports a misleading
// "out of memory" error on some platforms.
func OpenSQLite(path string) (*gorm.DB, error) {
	file, _, _ := strings.Cut(path, "?")
	if !strings.HasPrefix(file, "file:") {
		if dir := filepath.Dir(file); dir != "." {
			if _, err := os.Stat(dir); err != nil {
				return nil, err
			}
		}
	}

	db, err := gorm.Open(sqlite.Open(sqliteDSN(path)), gormConfig())
	if err != nil {
		return nil, err
	}
	if err := sqlitePool.apply(db); err != nil {
		return nil, err
	}
	return db, nil
}

// sqliteDSN appends the connection pragmas to path.
func sqliteDSN(path string) string {
	var b strings.Builder
	b.WriteString(path)
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	for _, p := range sqlitePragmas {
		b.WriteString(sep)
		b.WriteString("_pragma=")
		b.WriteString(p)
		sep = "&"
	}
	return b.String()
}

// AutoMigrate creates missing tables, columns and indexes. It never drops or
// narrows existing columns, so it is safe against a database created by
// earlier deployments.
func AutoMigrate(db *gorm.DB) error {
	if db == nil {
		return errors.New("repo: nil database")
	}
	return db.AutoMigrate(domain.Models()...)
}
