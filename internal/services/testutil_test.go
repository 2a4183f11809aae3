package services

import (
	"context"
	"path/filepath"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/thaihand/carry-backend/internal/domain"
	"github.com/thaihand/carry-backend/internal/repo"
)

// newSvcDB opens a migrated file-backed SQLite database. A file (rather than
// a shared in-memory cache) lets tests write while a long-poll is reading.
func newSvcDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "svc.db") + "?_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func mkUser(t *testing.T, db *gorm.DB, username, email string) *domain.User {
	t.Helper()
	u := &domain.User{Username: username, Email: email}
	if err := repo.CreateUser(context.Background(), db, u); err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return u
}

func mkOffer(t *testing.T, db *gorm.DB, o domain.Offer) *domain.Offer {
	t.Helper()
	if err := repo.CreateOffer(context.Background(), db, repo.FullSchema, &o); err != nil {
		t.Fatalf("create offer: %v", err)
	}
	return &o
}

func ptr[T any](v T) *T { return &v }
