package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rentesla/mobile-backend/internal/logger"
	"github.com/rentesla/mobile-backend/internal/repos"
	"github.com/rentesla/mobile-backend/internal/types"
)

// DocumentPipeline accepts identity-document uploads, supersedes prior
// submissions of the same (user, kind, face), runs OCR asynchronously
// under a deadline, applies the verification policy and transitions the
// document row. A given upload is written at most twice by the pipeline:
// once on creation and once on OCR completion or timeout.
type DocumentPipeline interface {
	Upload(ctx context.Context, userID uuid.UUID, docType types.DocumentType, face types.DocumentFace, image []byte, fileName, fileType string) (*types.Document, error)
	UploadBase64(ctx context.Context, userID uuid.UUID, docType types.DocumentType, face types.DocumentFace, base64Image, fileName string) (*types.Document, error)
	GetDocument(ctx context.Context, documentID, callerUserID uuid.UUID) (*types.Document, error)
	ListDocuments(ctx context.Context, userID uuid.UUID) ([]*types.Document, error)
	DeleteDocument(ctx context.Context, documentID, callerUserID uuid.UUID) error
	// StartWorkers launches the OCR worker pool; workers stop when ctx
	// is cancelled.
	StartWorkers(ctx context.Context)
}

type ocrTask struct {
	documentID uuid.UUID
	userID     uuid.UUID
}

type documentPipeline struct {
	db           *gorm.DB
	log          *logger.Logger
	cfg          OCRConfig
	userRepo     repos.UserRepo
	documentRepo repos.DocumentRepo
	extractor    TextExtractor
	policy       *VerificationPolicy
	aggregator   VerificationAggregator
	notifier     Notifier
	tasks        chan ocrTask
}

func NewDocumentPipeline(
	db *gorm.DB,
	log *logger.Logger,
	cfg OCRConfig,
	userRepo repos.UserRepo,
	documentRepo repos.DocumentRepo,
	extractor TextExtractor,
	aggregator VerificationAggregator,
	notifier Notifier,
) DocumentPipeline {
	return &documentPipeline{
		db:           db,
		log:          log.With("service", "DocumentPipeline"),
		cfg:          cfg,
		userRepo:     userRepo,
		documentRepo: documentRepo,
		extractor:    extractor,
		policy:       NewVerificationPolicy(cfg),
		aggregator:   aggregator,
		notifier:     notifier,
		tasks:        make(chan ocrTask, 1024),
	}
}

func (p *documentPipeline) Upload(ctx context.Context, userID uuid.UUID, docType types.DocumentType, face types.DocumentFace, image []byte, fileName, fileType string) (*types.Document, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("%w: empty image payload", ErrValidation)
	}
	encoded := base64.StdEncoding.EncodeToString(image)
	return p.createAndSchedule(ctx, userID, docType, face, encoded, fileName, fileType, int64(len(image)))
}

func (p *documentPipeline) UploadBase64(ctx context.Context, userID uuid.UUID, docType types.DocumentType, face types.DocumentFace, base64Image, fileName string) (*types.Document, error) {
	// Mobile clients send data URIs; strip the prefix before storing.
	if idx := strings.Index(base64Image, ","); idx >= 0 && strings.HasPrefix(base64Image, "data:") {
		base64Image = base64Image[idx+1:]
	}
	raw, err := base64.StdEncoding.DecodeString(base64Image)
	if err != nil {
		return nil, fmt.Errorf("%w: image is not valid base64", ErrValidation)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty image payload", ErrValidation)
	}
	return p.createAndSchedule(ctx, userID, docType, face, base64Image, fileName, "image/jpeg", int64(len(raw)))
}

func (p *documentPipeline) createAndSchedule(ctx context.Context, userID uuid.UUID, docType types.DocumentType, face types.DocumentFace, imageBase64, fileName, fileType string, fileSize int64) (*types.Document, error) {
	user, err := p.userRepo.GetByID(ctx, nil, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	doc := &types.Document{
		UserID:      userID,
		Type:        docType,
		Face:        face,
		Status:      types.DocumentStatusPending,
		ImageBase64: imageBase64,
		FileName:    fileName,
		FileType:    fileType,
		FileSize:    fileSize,
	}

	// Supersession: the delete and insert share one transaction so a
	// concurrent upload for the same tuple linearises against it.
	err = p.inTx(ctx, func(tx *gorm.DB) error {
		deleted, err := p.documentRepo.DeleteByUserTypeFace(ctx, tx, userID, docType, face)
		if err != nil {
			return fmt.Errorf("supersede existing documents: %w", err)
		}
		if deleted > 0 {
			p.log.Info("Superseded prior documents", "userID", userID, "type", docType, "face", face, "count", deleted)
		}
		if _, err := p.documentRepo.Create(ctx, tx, doc); err != nil {
			return fmt.Errorf("create document: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.notifier.NotifyUser(ctx, userID, NotificationDocumentUploaded, map[string]any{
		"document_id": doc.ID.String(),
		"type":        string(docType),
	})
	p.notifier.NotifyAdmins(ctx, NotificationNewDocumentUpload, map[string]any{
		"document_id": doc.ID.String(),
		"user_id":     userID.String(),
		"type":        string(docType),
	})

	p.tasks <- ocrTask{documentID: doc.ID, userID: userID}
	p.log.Info("Document queued for OCR", "documentID", doc.ID, "userID", userID, "type", docType, "face", face)
	return doc, nil
}

func (p *documentPipeline) GetDocument(ctx context.Context, documentID, callerUserID uuid.UUID) (*types.Document, error) {
	doc, err := p.documentRepo.GetByID(ctx, nil, documentID)
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}
	if doc.UserID != callerUserID {
		return nil, fmt.Errorf("%w: document belongs to another user", ErrForbidden)
	}
	return doc, nil
}

func (p *documentPipeline) ListDocuments(ctx context.Context, userID uuid.UUID) ([]*types.Document, error) {
	return p.documentRepo.GetByUser(ctx, nil, userID)
}

func (p *documentPipeline) DeleteDocument(ctx context.Context, documentID, callerUserID uuid.UUID) error {
	doc, err := p.documentRepo.GetByID(ctx, nil, documentID)
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}
	if doc == nil {
		return ErrDocumentNotFound
	}
	if doc.UserID != callerUserID {
		return fmt.Errorf("%w: document belongs to another user", ErrForbidden)
	}
	if err := p.documentRepo.Delete(ctx, nil, documentID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if err := p.aggregator.Recompute(ctx, callerUserID); err != nil {
		return fmt.Errorf("recompute verification: %w", err)
	}
	return nil
}

func (p *documentPipeline) StartWorkers(ctx context.Context) {
	for i := 0; i < p.cfg.WorkerCount; i++ {
		go func(worker int) {
			log := p.log.With("worker", worker)
			for {
				select {
				case <-ctx.Done():
					return
				case task := <-p.tasks:
					p.processTask(ctx, log, task)
				}
			}
		}(i)
	}
	p.log.Info("OCR workers started", "count", p.cfg.WorkerCount)
}

type extractOutcome struct {
	res *ExtractionResult
	err error
}

func (p *documentPipeline) processTask(ctx context.Context, log *logger.Logger, task ocrTask) {
	// The row may have been superseded or deleted since the task was
	// queued; a stale task is dropped silently.
	doc, err := p.documentRepo.GetByID(ctx, nil, task.documentID)
	if err != nil {
		log.Error("Failed to load document for OCR", "documentID", task.documentID, "error", err)
		return
	}
	if doc == nil || doc.Status != types.DocumentStatusPending {
		log.Debug("Dropping stale OCR task", "documentID", task.documentID)
		return
	}

	user, err := p.userRepo.GetByID(ctx, nil, doc.UserID)
	if err != nil || user == nil {
		log.Error("Failed to load user for OCR", "documentID", doc.ID, "userID", doc.UserID, "error", err)
		return
	}

	image, err := base64.StdEncoding.DecodeString(doc.ImageBase64)
	if err != nil {
		p.completeRejected(ctx, log, doc, user, "OCR processing failed: stored image is not valid base64")
		return
	}

	started := time.Now()
	tctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	outcomes := make(chan extractOutcome, 1)
	go func() {
		res, err := p.extractor.Extract(tctx, image, doc.Type)
		outcomes <- extractOutcome{res: res, err: err}
	}()

	select {
	case <-tctx.Done():
		if ctx.Err() != nil {
			// Shutdown, not a task timeout; leave the row Pending.
			return
		}
		p.completeTimeout(ctx, log, doc, user)
	case out := <-outcomes:
		if out.err != nil {
			if tctx.Err() != nil && ctx.Err() == nil {
				p.completeTimeout(ctx, log, doc, user)
				return
			}
			p.completeRejected(ctx, log, doc, user, "OCR processing failed: "+out.err.Error())
			return
		}
		log.Info("OCR extraction completed", "documentID", doc.ID, "elapsed", time.Since(started), "confidence", out.res.Confidence)
		p.completeWithResult(ctx, log, doc, user, out.res)
	}
}

func (p *documentPipeline) completeTimeout(ctx context.Context, log *logger.Logger, doc *types.Document, user *types.User) {
	seconds := int(p.cfg.Timeout.Seconds())
	reason := fmt.Sprintf("ocr_timeout_%ds", seconds)
	applied, err := p.documentRepo.UpdateFieldsIfPending(ctx, nil, doc.ID, map[string]any{
		"status":           types.DocumentStatusNeedsReview,
		"rejection_reason": reason,
		"ocr_confidence":   0.0,
		"auto_approved":    false,
		"updated_at":       time.Now(),
	})
	if err != nil {
		log.Error("Failed to record OCR timeout", "documentID", doc.ID, "error", err)
		return
	}
	if !applied {
		log.Debug("OCR timeout for superseded document, dropping", "documentID", doc.ID)
		return
	}
	log.Warn("OCR timed out, document sent to manual review", "documentID", doc.ID, "timeoutSeconds", seconds)

	p.notifier.NotifyAdmins(ctx, NotificationAdminReviewNeeded, map[string]any{
		"document_id": doc.ID.String(),
		"user_id":     user.ID.String(),
		"reason":      reason,
	})
	p.notifier.NotifyUser(ctx, user.ID, NotificationDocumentNeedsReview, map[string]any{
		"document_id": doc.ID.String(),
	})
}

func (p *documentPipeline) completeRejected(ctx context.Context, log *logger.Logger, doc *types.Document, user *types.User, reason string) {
	applied, err := p.documentRepo.UpdateFieldsIfPending(ctx, nil, doc.ID, map[string]any{
		"status":           types.DocumentStatusRejected,
		"rejection_reason": reason,
		"ocr_confidence":   0.0,
		"auto_approved":    false,
		"updated_at":       time.Now(),
	})
	if err != nil {
		log.Error("Failed to record OCR failure", "documentID", doc.ID, "error", err)
		return
	}
	if !applied {
		log.Debug("OCR failure for superseded document, dropping", "documentID", doc.ID)
		return
	}
	log.Warn("OCR failed, document rejected", "documentID", doc.ID, "reason", reason)

	p.notifier.NotifyUser(ctx, user.ID, NotificationDocumentRejected, map[string]any{
		"document_id": doc.ID.String(),
		"reason":      reason,
	})
}

func (p *documentPipeline) completeWithResult(ctx context.Context, log *logger.Logger, doc *types.Document, user *types.User, res *ExtractionResult) {
	extracted, err := json.Marshal(types.ExtractedFields{
		Name:           res.FirstName,
		Surname:        res.LastName,
		IdentityNumber: res.IdentityNumber,
		LicenseNumber:  res.LicenseNumber,
		PassportNumber: res.PassportNumber,
		BirthDate:      res.BirthDate,
		ExpiryDate:     res.ExpiryDate,
	})
	if err != nil {
		extracted = []byte(`{}`)
	}

	decision := p.policy.Evaluate(res, user)
	fields := map[string]any{
		"ocr_confidence": res.Confidence,
		"extracted":      extracted,
		"raw_text":       res.RawText,
		"updated_at":     time.Now(),
	}

	switch decision.Outcome {
	case PolicyAutoApprove:
		fields["status"] = types.DocumentStatusApproved
		fields["auto_approved"] = true
	default:
		fields["status"] = types.DocumentStatusNeedsReview
		fields["auto_approved"] = false
		fields["rejection_reason"] = decision.Reason
	}

	applied, err := p.documentRepo.UpdateFieldsIfPending(ctx, nil, doc.ID, fields)
	if err != nil {
		log.Error("Failed to record OCR completion", "documentID", doc.ID, "error", err)
		return
	}
	if !applied {
		log.Debug("OCR completion for superseded document, dropping", "documentID", doc.ID)
		return
	}

	if decision.Outcome == PolicyAutoApprove {
		log.Info("Document auto-approved", "documentID", doc.ID, "confidence", res.Confidence)
		if err := p.aggregator.Recompute(ctx, user.ID); err != nil {
			log.Error("Failed to recompute verification after auto-approval", "userID", user.ID, "error", err)
		}
		p.notifier.NotifyUser(ctx, user.ID, NotificationDocumentApproved, map[string]any{
			"document_id":   doc.ID.String(),
			"auto_approved": true,
		})
		return
	}

	log.Info("Document sent to manual review", "documentID", doc.ID, "reason", decision.Reason)
	p.notifier.NotifyAdmins(ctx, NotificationAdminReviewNeeded, map[string]any{
		"document_id": doc.ID.String(),
		"user_id":     user.ID.String(),
		"reason":      decision.Reason,
	})
	p.notifier.NotifyUser(ctx, user.ID, NotificationDocumentNeedsReview, map[string]any{
		"document_id": doc.ID.String(),
	})
}

func (p *documentPipeline) inTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if p.db == nil {
		return fn(nil)
	}
	return p.db.WithContext(ctx).Transaction(fn)
}
