package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rentesla/mobile-backend/internal/logger"
	"github.com/rentesla/mobile-backend/internal/types"
)

type NotificationRepo interface {
	Create(ctx context.Context, tx *gorm.DB, notification *types.Notification) (*types.Notification, error)
	GetByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit int) ([]*types.Notification, error)
	// MarkRead returns false when no row matched the id and owner.
	MarkRead(ctx context.Context, tx *gorm.DB, notificationID, userID uuid.UUID) (bool, error)
}

type notificationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewNotificationRepo(db *gorm.DB, baseLog *logger.Logger) NotificationRepo {
	return &notificationRepo{db: db, log: baseLog.With("repo", "NotificationRepo")}
}

func (nr *notificationRepo) Create(ctx context.Context, tx *gorm.DB, notification *types.Notification) (*types.Notification, error) {
	transaction := tx
	if transaction == nil {
		transaction = nr.db
	}
	if err := transaction.WithContext(ctx).Create(notification).Error; err != nil {
		return nil, err
	}
	return notification, nil
}

func (nr *notificationRepo) GetByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit int) ([]*types.Notification, error) {
	transaction := tx
	if transaction == nil {
		transaction = nr.db
	}
	if limit <= 0 {
		limit = 100
	}
	var results []*types.Notification
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (nr *notificationRepo) MarkRead(ctx context.Context, tx *gorm.DB, notificationID, userID uuid.UUID) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = nr.db
	}
	res := transaction.WithContext(ctx).
		Model(&types.Notification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Update("read", true)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
