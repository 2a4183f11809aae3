package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/thaihand/carry-backend/internal/domain"
)

func CreateRoute(ctx context.Context, db *gorm.DB, r *domain.Route) error {
	return db.WithContext(ctx).Create(r).Error
}

func GetRoute(ctx context.Context, db *gorm.DB, id int) (*domain.Route, error) {
	var r domain.Route
	if err := db.WithContext(ctx).First(&r, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

func ListRoutes(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Route, error) {
	var out []domain.Route
	err := db.WithContext(ctx).Order("id").Offset(offset).Limit(limit).Find(&out).Error
	return out, err
}

func DeleteRoute(ctx context.Context, db *gorm.DB, id int) error {
	res := db.WithContext(ctx).Delete(&domain.Route{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
