package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/rentesla/mobile-backend/internal/logger"
	"github.com/rentesla/mobile-backend/internal/repos"
	"github.com/rentesla/mobile-backend/internal/types"
)

// NotificationFeed is the read side of notifications: the persisted feed
// a client pages through, plus read receipts.
type NotificationFeed interface {
	List(ctx context.Context, userID uuid.UUID, limit int) ([]*types.Notification, error)
	MarkRead(ctx context.Context, notificationID, userID uuid.UUID) error
}

type notificationFeed struct {
	log              *logger.Logger
	notificationRepo repos.NotificationRepo
}

func NewNotificationFeed(log *logger.Logger, notificationRepo repos.NotificationRepo) NotificationFeed {
	return &notificationFeed{
		log:              log.With("service", "NotificationFeed"),
		notificationRepo: notificationRepo,
	}
}

func (nf *notificationFeed) List(ctx context.Context, userID uuid.UUID, limit int) ([]*types.Notification, error) {
	return nf.notificationRepo.GetByUser(ctx, nil, userID, limit)
}

func (nf *notificationFeed) MarkRead(ctx context.Context, notificationID, userID uuid.UUID) error {
	updated, err := nf.notificationRepo.MarkRead(ctx, nil, notificationID, userID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if !updated {
		return fmt.Errorf("%w: notification not found", ErrValidation)
	}
	return nil
}
