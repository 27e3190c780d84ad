package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rentesla/mobile-backend/internal/logger"
	"github.com/rentesla/mobile-backend/internal/types"
)

// DocumentRepo is the sole write path for document rows. It does not
// enforce state-machine edges; the pipeline and admin review do.
type DocumentRepo interface {
	Create(ctx context.Context, tx *gorm.DB, doc *types.Document) (*types.Document, error)
	GetByID(ctx context.Context, tx *gorm.DB, documentID uuid.UUID) (*types.Document, error)
	GetByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Document, error)
	GetByUserTypeFace(ctx context.Context, tx *gorm.DB, userID uuid.UUID, docType types.DocumentType, face types.DocumentFace) ([]*types.Document, error)
	GetByStatus(ctx context.Context, tx *gorm.DB, status types.DocumentStatus) ([]*types.Document, error)
	GetWithConfidenceBelow(ctx context.Context, tx *gorm.DB, threshold float64) ([]*types.Document, error)
	CountAll(ctx context.Context, tx *gorm.DB) (int64, error)
	CountByStatus(ctx context.Context, tx *gorm.DB, status types.DocumentStatus) (int64, error)
	CountByAutoApproved(ctx context.Context, tx *gorm.DB, autoApproved bool) (int64, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, documentID uuid.UUID, fields map[string]any) error
	// UpdateFieldsIfPending applies fields only while the row still exists
	// in PENDING. Returns false when the row was superseded or already
	// transitioned, so late OCR completions become no-ops.
	UpdateFieldsIfPending(ctx context.Context, tx *gorm.DB, documentID uuid.UUID, fields map[string]any) (bool, error)
	Delete(ctx context.Context, tx *gorm.DB, documentID uuid.UUID) error
	DeleteByUserTypeFace(ctx context.Context, tx *gorm.DB, userID uuid.UUID, docType types.DocumentType, face types.DocumentFace) (int64, error)
	HasApproved(ctx context.Context, tx *gorm.DB, userID uuid.UUID, docType types.DocumentType) (bool, error)
}

type documentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDocumentRepo(db *gorm.DB, baseLog *logger.Logger) DocumentRepo {
	return &documentRepo{db: db, log: baseLog.With("repo", "DocumentRepo")}
}

func (dr *documentRepo) Create(ctx context.Context, tx *gorm.DB, doc *types.Document) (*types.Document, error) {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}
	if err := transaction.WithContext(ctx).Create(doc).Error; err != nil {
		return nil, err
	}
	return doc, nil
}

func (dr *documentRepo) GetByID(ctx context.Context, tx *gorm.DB, documentID uuid.UUID) (*types.Document, error) {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}
	var doc types.Document
	if err := transaction.WithContext(ctx).
		Where("id = ?", documentID).
		First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &doc, nil
}

func (dr *documentRepo) GetByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Document, error) {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}
	var results []*types.Document
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (dr *documentRepo) GetByUserTypeFace(ctx context.Context, tx *gorm.DB, userID uuid.UUID, docType types.DocumentType, face types.DocumentFace) ([]*types.Document, error) {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}
	var results []*types.Document
	if err := transaction.WithContext(ctx).
		Where("user_id = ? AND type = ? AND face = ?", userID, docType, face).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (dr *documentRepo) GetByStatus(ctx context.Context, tx *gorm.DB, status types.DocumentStatus) ([]*types.Document, error) {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}
	var results []*types.Document
	if err := transaction.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (dr *documentRepo) GetWithConfidenceBelow(ctx context.Context, tx *gorm.DB, threshold float64) ([]*types.Document, error) {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}
	var results []*types.Document
	if err := transaction.WithContext(ctx).
		Where("ocr_confidence < ? AND status IN ?", threshold,
			[]types.DocumentStatus{types.DocumentStatusPending, types.DocumentStatusNeedsReview}).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (dr *documentRepo) CountAll(ctx context.Context, tx *gorm.DB) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}
	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.Document{}).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (dr *documentRepo) CountByStatus(ctx context.Context, tx *gorm.DB, status types.DocumentStatus) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}
	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.Document{}).
		Where("status = ?", status).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (dr *documentRepo) CountByAutoApproved(ctx context.Context, tx *gorm.DB, autoApproved bool) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}
	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.Document{}).
		Where("auto_approved = ?", autoApproved).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (dr *documentRepo) UpdateFields(ctx context.Context, tx *gorm.DB, documentID uuid.UUID, fields map[string]any) error {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}
	return transaction.WithContext(ctx).
		Model(&types.Document{}).
		Where("id = ?", documentID).
		Updates(fields).Error
}

func (dr *documentRepo) UpdateFieldsIfPending(ctx context.Context, tx *gorm.DB, documentID uuid.UUID, fields map[string]any) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}
	res := transaction.WithContext(ctx).
		Model(&types.Document{}).
		Where("id = ? AND status = ?", documentID, types.DocumentStatusPending).
		Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (dr *documentRepo) Delete(ctx context.Context, tx *gorm.DB, documentID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}
	return transaction.WithContext(ctx).
		Where("id = ?", documentID).
		Delete(&types.Document{}).Error
}

func (dr *documentRepo) DeleteByUserTypeFace(ctx context.Context, tx *gorm.DB, userID uuid.UUID, docType types.DocumentType, face types.DocumentFace) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}
	res := transaction.WithContext(ctx).
		Where("user_id = ? AND type = ? AND face = ?", userID, docType, face).
		Delete(&types.Document{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (dr *documentRepo) HasApproved(ctx context.Context, tx *gorm.DB, userID uuid.UUID, docType types.DocumentType) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}
	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.Document{}).
		Where("user_id = ? AND type = ? AND status = ?", userID, docType, types.DocumentStatusApproved).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
