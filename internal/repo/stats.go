// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries exported as
// table gauges on /metrics.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/thaihand/carry-backend/internal/domain"
)

// TableStats summarizes a table: row count and the highest id. Any insert or
// delete changes at least one of them.
type TableStats struct {
	Count int64
	MaxID int
}

func tableStats(ctx context.Context, db *gorm.DB, model any) (TableStats, error) {
	var st TableStats
	q := db.WithContext(ctx).Model(model)
	if err := q.Count(&st.Count).Error; err != nil {
		return TableStats{}, err
	}
	if st.Count == 0 {
		return st, nil
	}
	var row struct{ ID int }
	if err := db.WithContext(ctx).Model(model).Select("id").Order("id DESC").Limit(1).Scan(&row).Error; err != nil {
		return TableStats{}, err
	}
	st.MaxID = row.ID
	return st, nil
}

// OffersStats returns TableStats for offers.
func OffersStats(ctx context.Context, db *gorm.DB) (TableStats, error) {
	return tableStats(ctx, db, &domain.Offer{})
}

// RequestsStats returns TableStats for requests.
func RequestsStats(ctx context.Context, db *gorm.DB) (TableStats, error) {
	return tableStats(ctx, db, &domain.Request{})
}
