package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rentesla/mobile-backend/internal/logger"
	"github.com/rentesla/mobile-backend/internal/match"
	"github.com/rentesla/mobile-backend/internal/repos"
	"github.com/rentesla/mobile-backend/internal/types"
)

type ReviewDecision string

const (
	ReviewApprove ReviewDecision = "APPROVE"
	ReviewReject  ReviewDecision = "REJECT"
)

func ParseReviewDecision(s string) (ReviewDecision, error) {
	switch ReviewDecision(strings.ToUpper(strings.TrimSpace(s))) {
	case ReviewApprove:
		return ReviewApprove, nil
	case ReviewReject:
		return ReviewReject, nil
	default:
		return "", fmt.Errorf("%w: unknown review decision %q", ErrValidation, s)
	}
}

type BulkReviewItem struct {
	DocumentID uuid.UUID `json:"document_id"`
	Error      string    `json:"error,omitempty"`
}

type BulkReviewResult struct {
	SuccessCount int              `json:"success_count"`
	FailureCount int              `json:"failure_count"`
	Message      string           `json:"message"`
	Failures     []BulkReviewItem `json:"failures,omitempty"`
}

// VerificationCheck is one line of the manual-review report: a single
// comparison between registration data and OCR output.
type VerificationCheck struct {
	Name     string `json:"name"`
	Expected string `json:"expected,omitempty"`
	Found    string `json:"found,omitempty"`
	Passed   bool   `json:"passed"`
}

type VerificationDetails struct {
	DocumentID     uuid.UUID             `json:"document_id"`
	DocumentType   types.DocumentType    `json:"document_type"`
	DocumentFace   types.DocumentFace    `json:"document_face"`
	Status         types.DocumentStatus  `json:"status"`
	OcrConfidence  *float64              `json:"ocr_confidence,omitempty"`
	UploadedAt     time.Time             `json:"uploaded_at"`
	UserID         uuid.UUID             `json:"user_id"`
	UserFullName   string                `json:"user_full_name"`
	UserEmail      string                `json:"user_email"`
	IdentityNumber string                `json:"identity_number"`
	Extracted      types.ExtractedFields `json:"extracted"`
	Checks         []VerificationCheck   `json:"checks"`
	AllChecksPass  bool                  `json:"all_checks_pass"`
}

type ReviewStatistics struct {
	Total            int64 `json:"total"`
	Pending          int64 `json:"pending"`
	Approved         int64 `json:"approved"`
	Rejected         int64 `json:"rejected"`
	NeedsReview      int64 `json:"needs_review"`
	AutoApproved     int64 `json:"auto_approved"`
	ManuallyReviewed int64 `json:"manually_reviewed"`
}

// AdminReviewService is the manual side of the verification pipeline:
// listing the review queue, resolving documents the policy could not,
// and reporting on pipeline throughput.
type AdminReviewService interface {
	ListNeedsReview(ctx context.Context) ([]*types.Document, error)
	ListLowConfidence(ctx context.Context, threshold float64) ([]*types.Document, error)
	Review(ctx context.Context, documentID, adminID uuid.UUID, decision ReviewDecision, reason string) (*types.Document, error)
	BulkReview(ctx context.Context, documentIDs []uuid.UUID, adminID uuid.UUID, decision ReviewDecision, reason string) (*BulkReviewResult, error)
	VerificationDetails(ctx context.Context, documentID uuid.UUID) (*VerificationDetails, error)
	Statistics(ctx context.Context) (*ReviewStatistics, error)
	// StartPendingSummary emits a periodic admin digest of documents
	// waiting for manual review. It returns immediately; the loop stops
	// when ctx is cancelled.
	StartPendingSummary(ctx context.Context, interval time.Duration)
}

type adminReviewService struct {
	log          *logger.Logger
	cfg          OCRConfig
	userRepo     repos.UserRepo
	documentRepo repos.DocumentRepo
	aggregator   VerificationAggregator
	notifier     Notifier
}

func NewAdminReviewService(
	log *logger.Logger,
	cfg OCRConfig,
	userRepo repos.UserRepo,
	documentRepo repos.DocumentRepo,
	aggregator VerificationAggregator,
	notifier Notifier,
) AdminReviewService {
	return &adminReviewService{
		log:          log.With("service", "AdminReviewService"),
		cfg:          cfg,
		userRepo:     userRepo,
		documentRepo: documentRepo,
		aggregator:   aggregator,
		notifier:     notifier,
	}
}

func (s *adminReviewService) ListNeedsReview(ctx context.Context) ([]*types.Document, error) {
	return s.documentRepo.GetByStatus(ctx, nil, types.DocumentStatusNeedsReview)
}

func (s *adminReviewService) ListLowConfidence(ctx context.Context, threshold float64) ([]*types.Document, error) {
	if threshold <= 0 || threshold > 1 {
		return nil, fmt.Errorf("%w: threshold must be in (0, 1]", ErrValidation)
	}
	return s.documentRepo.GetWithConfidenceBelow(ctx, nil, threshold)
}

func (s *adminReviewService) Review(ctx context.Context, documentID, adminID uuid.UUID, decision ReviewDecision, reason string) (*types.Document, error) {
	doc, err := s.documentRepo.GetByID(ctx, nil, documentID)
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}

	fields := map[string]any{
		"auto_approved": false,
		"reviewed_by":   adminID,
		"updated_at":    time.Now(),
	}
	switch decision {
	case ReviewApprove:
		fields["status"] = types.DocumentStatusApproved
		fields["rejection_reason"] = ""
	case ReviewReject:
		if strings.TrimSpace(reason) == "" {
			reason = "rejected_by_admin"
		}
		fields["status"] = types.DocumentStatusRejected
		fields["rejection_reason"] = reason
	default:
		return nil, fmt.Errorf("%w: unknown review decision %q", ErrValidation, decision)
	}

	if err := s.documentRepo.UpdateFields(ctx, nil, documentID, fields); err != nil {
		return nil, fmt.Errorf("update document: %w", err)
	}
	s.log.Info("Document reviewed", "documentID", documentID, "adminID", adminID, "decision", decision)

	if decision == ReviewApprove {
		if err := s.aggregator.Recompute(ctx, doc.UserID); err != nil {
			s.log.Error("Failed to recompute verification after review", "userID", doc.UserID, "error", err)
		}
		s.notifier.NotifyUser(ctx, doc.UserID, NotificationDocumentApproved, map[string]any{
			"document_id":   documentID.String(),
			"auto_approved": false,
		})
	} else {
		if err := s.aggregator.Recompute(ctx, doc.UserID); err != nil {
			s.log.Error("Failed to recompute verification after review", "userID", doc.UserID, "error", err)
		}
		s.notifier.NotifyUser(ctx, doc.UserID, NotificationDocumentRejected, map[string]any{
			"document_id": documentID.String(),
			"reason":      reason,
		})
	}

	return s.documentRepo.GetByID(ctx, nil, documentID)
}

// BulkReview applies one decision to many documents. Failures are
// isolated per element; one missing row does not abort the batch.
func (s *adminReviewService) BulkReview(ctx context.Context, documentIDs []uuid.UUID, adminID uuid.UUID, decision ReviewDecision, reason string) (*BulkReviewResult, error) {
	if len(documentIDs) == 0 {
		return nil, fmt.Errorf("%w: no document ids given", ErrValidation)
	}

	result := &BulkReviewResult{}
	for _, id := range documentIDs {
		if _, err := s.Review(ctx, id, adminID, decision, reason); err != nil {
			result.FailureCount++
			result.Failures = append(result.Failures, BulkReviewItem{DocumentID: id, Error: err.Error()})
			s.log.Warn("Bulk review element failed", "documentID", id, "error", err)
			continue
		}
		result.SuccessCount++
	}
	verb := "approval"
	if decision == ReviewReject {
		verb = "rejection"
	}
	result.Message = fmt.Sprintf("Bulk %s completed. Success: %d, Failed: %d", verb, result.SuccessCount, result.FailureCount)
	return result, nil
}

func (s *adminReviewService) StartPendingSummary(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.emitPendingSummary(ctx)
			}
		}
	}()
	s.log.Info("Pending summary digest started", "interval", interval)
}

func (s *adminReviewService) emitPendingSummary(ctx context.Context) {
	count, err := s.documentRepo.CountByStatus(ctx, nil, types.DocumentStatusNeedsReview)
	if err != nil {
		s.log.Error("Failed to count documents for pending summary", "error", err)
		return
	}
	if count == 0 {
		return
	}
	s.notifier.NotifyAdmins(ctx, NotificationPendingSummary, map[string]any{
		"pending_count": count,
	})
}

func (s *adminReviewService) VerificationDetails(ctx context.Context, documentID uuid.UUID) (*VerificationDetails, error) {
	doc, err := s.documentRepo.GetByID(ctx, nil, documentID)
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}
	user, err := s.userRepo.GetByID(ctx, nil, doc.UserID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	extracted := doc.ExtractedFields()

	confidenceFound := "none"
	confidencePassed := false
	if doc.OcrConfidence != nil {
		confidenceFound = fmt.Sprintf("%.2f", *doc.OcrConfidence)
		confidencePassed = *doc.OcrConfidence >= s.cfg.ConfidenceThreshold
	}

	checks := []VerificationCheck{
		{
			Name:     "confidence_threshold",
			Expected: fmt.Sprintf("%.2f", s.cfg.ConfidenceThreshold),
			Found:    confidenceFound,
			Passed:   confidencePassed,
		},
		{
			Name:     "identity_number",
			Expected: user.IdentityNumber,
			Found:    extracted.IdentityNumber,
			Passed:   match.IdentityEquals(user.IdentityNumber, extracted.IdentityNumber),
		},
		{
			Name:     "first_name",
			Expected: user.FirstName,
			Found:    extracted.Name,
			Passed:   match.NamesMatch(user.FirstName, extracted.Name),
		},
		{
			Name:     "last_name",
			Expected: user.LastName,
			Found:    extracted.Surname,
			Passed:   match.NamesMatch(user.LastName, extracted.Surname),
		},
	}
	all := true
	for _, c := range checks {
		if !c.Passed {
			all = false
			break
		}
	}

	return &VerificationDetails{
		DocumentID:     doc.ID,
		DocumentType:   doc.Type,
		DocumentFace:   doc.Face,
		Status:         doc.Status,
		OcrConfidence:  doc.OcrConfidence,
		UploadedAt:     doc.CreatedAt,
		UserID:         user.ID,
		UserFullName:   user.FullName(),
		UserEmail:      user.Email,
		IdentityNumber: user.IdentityNumber,
		Extracted:      extracted,
		Checks:         checks,
		AllChecksPass:  all,
	}, nil
}

func (s *adminReviewService) Statistics(ctx context.Context) (*ReviewStatistics, error) {
	stats := &ReviewStatistics{}
	var err error
	if stats.Total, err = s.documentRepo.CountAll(ctx, nil); err != nil {
		return nil, err
	}
	if stats.Pending, err = s.documentRepo.CountByStatus(ctx, nil, types.DocumentStatusPending); err != nil {
		return nil, err
	}
	if stats.Approved, err = s.documentRepo.CountByStatus(ctx, nil, types.DocumentStatusApproved); err != nil {
		return nil, err
	}
	if stats.Rejected, err = s.documentRepo.CountByStatus(ctx, nil, types.DocumentStatusRejected); err != nil {
		return nil, err
	}
	if stats.NeedsReview, err = s.documentRepo.CountByStatus(ctx, nil, types.DocumentStatusNeedsReview); err != nil {
		return nil, err
	}
	if stats.AutoApproved, err = s.documentRepo.CountByAutoApproved(ctx, nil, true); err != nil {
		return nil, err
	}
	// Manual reviews are terminal rows an admin touched.
	stats.ManuallyReviewed = stats.Approved + stats.Rejected - stats.AutoApproved
	if stats.ManuallyReviewed < 0 {
		stats.ManuallyReviewed = 0
	}
	return stats, nil
}
