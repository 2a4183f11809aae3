package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/thaihand/carry-backend/internal/domain"
)

// CreateRequest inserts r, leaving out columns the attached schema lacks.
func CreateRequest(ctx context.Context, db *gorm.DB, sc Schema, r *domain.Request) error {
	return omit(db.WithContext(ctx), sc.requestOmit()).Create(r).Error
}

// GetRequest fetches a request by id or returns ErrNotFound.
func GetRequest(ctx context.Context, db *gorm.DB, id int) (*domain.Request, error) {
	var r domain.Request
	if err := db.WithContext(ctx).First(&r, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// ListRequests returns a page of requests ordered by id.
func ListRequests(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Request, error) {
	var out []domain.Request
	err := db.WithContext(ctx).Order("id").Offset(offset).Limit(limit).Find(&out).Error
	return out, err
}

// ListRequestsByUser returns every request owned by userID, newest first.
func ListRequestsByUser(ctx context.Context, db *gorm.DB, userID int) ([]domain.Request, error) {
	var out []domain.Request
	err := db.WithContext(ctx).Where("user_id = ?", userID).Order("id desc").Find(&out).Error
	return out, err
}

// ListRequestsByOffer returns the requests placed against offerID.
func ListRequestsByOffer(ctx context.Context, db *gorm.DB, offerID int) ([]domain.Request, error) {
	var out []domain.Request
	err := db.WithContext(ctx).Where("offer_id = ?", offerID).Order("id").Find(&out).Error
	return out, err
}

// CountRequestsByOffers returns the number of requests per offer id.
func CountRequestsByOffers(ctx context.Context, db *gorm.DB, offerIDs []int) (map[int]int, error) {
	out := make(map[int]int, len(offerIDs))
	if len(offerIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		OfferID int
		N       int
	}
	err := db.WithContext(ctx).
		Model(&domain.Request{}).
		Select("offer_id, COUNT(*) AS n").
		Where("offer_id IN ?", offerIDs).
		Group("offer_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.OfferID] = r.N
	}
	return out, nil
}

// UpdateRequest applies a partial update keyed by column name. Returns
// ErrNotFound when no row matched.
func UpdateRequest(ctx context.Context, db *gorm.DB, id int, fields map[string]any) error {
	if len(fields) == 0 {
		_, err := GetRequest(ctx, db, id)
		return err
	}
	res := db.WithContext(ctx).Model(&domain.Request{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteRequest removes a request. Returns ErrNotFound when no row matched.
func DeleteRequest(ctx context.Context, db *gorm.DB, id int) error {
	res := db.WithContext(ctx).Delete(&domain.Request{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// LatestOfferRequestNotBy returns the newest request that references an offer
// and was not made by userID. Used to guess the sender of notifications that
// carry no request link.
func LatestOfferRequestNotBy(ctx context.Context, db *gorm.DB, userID int) (*domain.Request, error) {
	var r domain.Request
	err := db.WithContext(ctx).
		Where("offer_id IS NOT NULL AND user_id <> ?", userID).
		Order("id desc").
		First(&r).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// RequestsByID loads the given requests keyed by id.
func RequestsByID(ctx context.Context, db *gorm.DB, ids []int) (map[int]domain.Request, error) {
	out := make(map[int]domain.Request, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []domain.Request
	if err := db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.ID] = r
	}
	return out, nil
}
