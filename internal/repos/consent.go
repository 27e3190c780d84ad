package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rentesla/mobile-backend/internal/logger"
	"github.com/rentesla/mobile-backend/internal/types"
)

type ConsentRepo interface {
	Create(ctx context.Context, tx *gorm.DB, consent *types.Consent) (*types.Consent, error)
	GetByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Consent, error)
	GetActiveByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Consent, error)
	HasActive(ctx context.Context, tx *gorm.DB, userID uuid.UUID, consentType types.ConsentType) (bool, error)
	// RevokeActive marks every active row of the given type revoked and
	// returns the number of rows touched.
	RevokeActive(ctx context.Context, tx *gorm.DB, userID uuid.UUID, consentType types.ConsentType) (int64, error)
	CountGivenSince(ctx context.Context, tx *gorm.DB, consentType types.ConsentType, since time.Time) (int64, error)
}

type consentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewConsentRepo(db *gorm.DB, baseLog *logger.Logger) ConsentRepo {
	return &consentRepo{db: db, log: baseLog.With("repo", "ConsentRepo")}
}

func (cr *consentRepo) Create(ctx context.Context, tx *gorm.DB, consent *types.Consent) (*types.Consent, error) {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}
	if err := transaction.WithContext(ctx).Create(consent).Error; err != nil {
		return nil, err
	}
	return consent, nil
}

func (cr *consentRepo) GetByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Consent, error) {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}
	var results []*types.Consent
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("given_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (cr *consentRepo) GetActiveByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Consent, error) {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}
	var results []*types.Consent
	if err := transaction.WithContext(ctx).
		Where("user_id = ? AND status = ? AND revoked_at IS NULL", userID, types.ConsentStatusGiven).
		Order("given_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (cr *consentRepo) HasActive(ctx context.Context, tx *gorm.DB, userID uuid.UUID, consentType types.ConsentType) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}
	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.Consent{}).
		Where("user_id = ? AND type = ? AND status = ? AND revoked_at IS NULL",
			userID, consentType, types.ConsentStatusGiven).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (cr *consentRepo) RevokeActive(ctx context.Context, tx *gorm.DB, userID uuid.UUID, consentType types.ConsentType) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}
	now := time.Now()
	result := transaction.WithContext(ctx).
		Model(&types.Consent{}).
		Where("user_id = ? AND type = ? AND status = ? AND revoked_at IS NULL",
			userID, consentType, types.ConsentStatusGiven).
		Updates(map[string]any{
			"status":     types.ConsentStatusRevoked,
			"revoked_at": now,
			"updated_at": now,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (cr *consentRepo) CountGivenSince(ctx context.Context, tx *gorm.DB, consentType types.ConsentType, since time.Time) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}
	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.Consent{}).
		Where("type = ? AND status = ? AND given_at >= ?", consentType, types.ConsentStatusGiven, since).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
