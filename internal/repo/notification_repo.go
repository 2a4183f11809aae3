package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/thaihand/carry-backend/internal/domain"
)

// CreateNotification appends n, leaving out columns the attached schema lacks.
func CreateNotification(ctx context.Context, db *gorm.DB, sc Schema, n *domain.Notification) error {
	return omit(db.WithContext(ctx), sc.notificationOmit()).Create(n).Error
}

// NotificationsAfter returns the user's notifications whose created_at sorts
// strictly after since, oldest first. The comparison is lexical; callers
// re-check chronologically.
func NotificationsAfter(ctx context.Context, db *gorm.DB, userID int, since string) ([]domain.Notification, error) {
	var out []domain.Notification
	err := db.WithContext(ctx).
		Where("user_id = ? AND created_at > ?", userID, since).
		Order("created_at asc").
		Order("id asc").
		Find(&out).Error
	return out, err
}

// HasUnreadDuplicate reports whether an unread notification with the same
// message was written for userID at or after since.
func HasUnreadDuplicate(ctx context.Context, db *gorm.DB, userID int, message, since string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("user_id = ? AND message = ? AND is_read = 0 AND created_at >= ?", userID, message, since).
		Count(&n).Error
	return n > 0, err
}
