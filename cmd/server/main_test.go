package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/thaihand/carry-backend/internal/config"
	"github.com/thaihand/carry-backend/internal/domain"
	"github.com/thaihand/carry-backend/internal/history"
	"github.com/thaihand/carry-backend/internal/repo"
	"github.com/thaihand/carry-backend/internal/storage"
)

func TestOpenHistory_DisabledWithoutURI(t *testing.T) {
	rec, closeFn, err := openHistory(context.Background(), config.MongoConfig{}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, history.Nop{}, rec)
	closeFn()
}

func TestOpenImages_DisabledWithoutEndpoint(t *testing.T) {
	store, err := openImages(context.Background(), config.StorageConfig{}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, storage.Disabled{}, store)
}

func TestLoadDotenv_EnvironmentWins(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("CARRY_DOTENV_A=file\nCARRY_DOTENV_B=file\n"), 0o600))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		_ = os.Chdir(wd)
		_ = os.Unsetenv("CARRY_DOTENV_B")
	})
	t.Setenv("CARRY_DOTENV_A", "env")

	loadDotenv()
	assert.Equal(t, "env", os.Getenv("CARRY_DOTENV_A"))
	assert.Equal(t, "file", os.Getenv("CARRY_DOTENV_B"))
}

func TestPurgeIdempotency_RemovesExpired(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "main.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, repo.AutoMigrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	ctx := context.Background()
	_, err = repo.CreateIdempotency(ctx, db, 1, "requests.create", "old", 1, 201, -time.Minute)
	require.NoError(t, err)
	_, err = repo.CreateIdempotency(ctx, db, 1, "requests.create", "fresh", 2, 201, time.Hour)
	require.NoError(t, err)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		purgeIdempotency(runCtx, db, 10*time.Millisecond, zerolog.Nop())
		close(done)
	}()

	assert.Eventually(t, func() bool {
		var n int64
		db.Model(&domain.Idempotency{}).Count(&n)
		return n == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop on cancel")
	}
}
