package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/thaihand/carry-backend/internal/domain"
)

// CreateOffer inserts o, leaving out columns the attached schema lacks.
func CreateOffer(ctx context.Context, db *gorm.DB, sc Schema, o *domain.Offer) error {
	return omit(db.WithContext(ctx), sc.offerOmit()).Create(o).Error
}

// GetOffer fetches an offer by id or returns ErrNotFound.
func GetOffer(ctx context.Context, db *gorm.DB, id int) (*domain.Offer, error) {
	var o domain.Offer
	if err := db.WithContext(ctx).First(&o, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

// ListOffers returns a page of offers ordered by id.
func ListOffers(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Offer, error) {
	var out []domain.Offer
	err := db.WithContext(ctx).Order("id").Offset(offset).Limit(limit).Find(&out).Error
	return out, err
}

// ListOffersByUser returns every offer posted by userID, newest first.
func ListOffersByUser(ctx context.Context, db *gorm.DB, userID int) ([]domain.Offer, error) {
	var out []domain.Offer
	err := db.WithContext(ctx).Where("user_id = ?", userID).Order("id desc").Find(&out).Error
	return out, err
}

// GetOfferForUser fetches an offer only if userID owns it.
func GetOfferForUser(ctx context.Context, db *gorm.DB, id, userID int) (*domain.Offer, error) {
	var o domain.Offer
	if err := db.WithContext(ctx).First(&o, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

// UpdateOffer applies a partial update keyed by column name.
func UpdateOffer(ctx context.Context, db *gorm.DB, id int, fields map[string]any) error {
	if len(fields) == 0 {
		_, err := GetOffer(ctx, db, id)
		return err
	}
	res := db.WithContext(ctx).Model(&domain.Offer{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteOffer removes an offer. Requests that referenced it keep their
// carrier snapshot.
func DeleteOffer(ctx context.Context, db *gorm.DB, id int) error {
	res := db.WithContext(ctx).Delete(&domain.Offer{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
