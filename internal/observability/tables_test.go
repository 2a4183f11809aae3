package observability

import (
	"context"
	"strings"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/thaihand/carry-backend/internal/domain"
	"github.com/thaihand/carry-backend/internal/repo"
)

func openDB(t *testing.T, name string, migrate bool) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if migrate {
		if err := repo.AutoMigrate(db); err != nil {
			t.Fatalf("migrate: %v", err)
		}
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestTableCollector_ExportsStats(t *testing.T) {
	db := openDB(t, "tables_ok", true)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := repo.CreateOffer(ctx, db, repo.FullSchema, &domain.Offer{RouteFrom: "Tokyo"}); err != nil {
			t.Fatalf("create offer: %v", err)
		}
	}

	want := `
# HELP carry_table_rows Number of rows per marketplace table.
# TYPE carry_table_rows gauge
carry_table_rows{table="offers"} 2
carry_table_rows{table="requests"} 0
`
	if err := testutil.CollectAndCompare(NewTableCollector(db, 0), strings.NewReader(want), "carry_table_rows"); err != nil {
		t.Fatal(err)
	}
}

func TestTableCollector_SkipsFailingTables(t *testing.T) {
	db := openDB(t, "tables_missing", false)
	if n := testutil.CollectAndCount(NewTableCollector(db, 0)); n != 0 {
		t.Fatalf("expected no metrics without tables, got %d", n)
	}
}
