package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rentesla/mobile-backend/internal/logger"
	"github.com/rentesla/mobile-backend/internal/repos"
	"github.com/rentesla/mobile-backend/internal/types"
)

// acceptedKinds are the document kinds that can complete a user's
// verification on their own.
var acceptedKinds = []types.DocumentType{
	types.DocumentTypeDrivingLicense,
	types.DocumentTypeIdentityCard,
	types.DocumentTypePassport,
}

// VerificationAggregator owns the derived documentVerified flag on the
// user row. Nothing else writes it.
type VerificationAggregator interface {
	IsFullyVerified(ctx context.Context, userID uuid.UUID) (bool, error)
	// Recompute re-derives the flag from the user's approved documents
	// and persists it only when it changed. A false-to-true transition
	// emits one verification-complete notification.
	Recompute(ctx context.Context, userID uuid.UUID) error
}

type verificationAggregator struct {
	db           *gorm.DB
	log          *logger.Logger
	userRepo     repos.UserRepo
	documentRepo repos.DocumentRepo
	notifier     Notifier
}

func NewVerificationAggregator(db *gorm.DB, log *logger.Logger, userRepo repos.UserRepo, documentRepo repos.DocumentRepo, notifier Notifier) VerificationAggregator {
	return &verificationAggregator{
		db:           db,
		log:          log.With("service", "VerificationAggregator"),
		userRepo:     userRepo,
		documentRepo: documentRepo,
		notifier:     notifier,
	}
}

func (va *verificationAggregator) IsFullyVerified(ctx context.Context, userID uuid.UUID) (bool, error) {
	for _, kind := range acceptedKinds {
		approved, err := va.documentRepo.HasApproved(ctx, nil, userID, kind)
		if err != nil {
			return false, fmt.Errorf("check approved %s: %w", kind, err)
		}
		if approved {
			return true, nil
		}
	}
	return false, nil
}

func (va *verificationAggregator) Recompute(ctx context.Context, userID uuid.UUID) error {
	verified, err := va.IsFullyVerified(ctx, userID)
	if err != nil {
		return err
	}

	user, err := va.userRepo.GetByID(ctx, nil, userID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return ErrUserNotFound
	}
	if user.DocumentVerified == verified {
		return nil
	}

	err = va.userRepo.UpdateFields(ctx, nil, userID, map[string]any{
		"document_verified": verified,
		"updated_at":        time.Now(),
	})
	if err != nil {
		return fmt.Errorf("update verification flag: %w", err)
	}

	if verified {
		va.log.Info("User verification completed", "userID", userID)
		va.notifier.NotifyUser(ctx, userID, NotificationVerificationComplete, map[string]any{
			"user_id": userID.String(),
		})
	} else {
		va.log.Info("User verification revoked", "userID", userID)
	}
	return nil
}
