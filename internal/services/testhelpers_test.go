package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/rentesla/mobile-backend/internal/logger"
	"github.com/rentesla/mobile-backend/internal/types"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New() error = %v", err)
	}
	return log
}

// fakeUserRepo and fakeDocumentRepo back the service tests with plain
// maps; the tx parameter is ignored.

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*types.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uuid.UUID]*types.User)}
}

func (f *fakeUserRepo) add(user *types.User) *types.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	f.users[user.ID] = user
	return user
}

func (f *fakeUserRepo) Create(ctx context.Context, tx *gorm.DB, user *types.User) (*types.User, error) {
	return f.add(user), nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[userID], nil
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, tx *gorm.DB, email string) (*types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (f *fakeUserRepo) GetAdmins(ctx context.Context, tx *gorm.DB) ([]*types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var admins []*types.User
	for _, u := range f.users {
		if u.Role == types.UserRoleAdmin {
			admins = append(admins, u)
		}
	}
	return admins, nil
}

func (f *fakeUserRepo) EmailExists(ctx context.Context, tx *gorm.DB, email string) (bool, error) {
	u, _ := f.GetByEmail(ctx, tx, email)
	return u != nil, nil
}

func (f *fakeUserRepo) IdentityNumberExists(ctx context.Context, tx *gorm.DB, identityNumber string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.IdentityNumber == identityNumber {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUserRepo) UpdateFields(ctx context.Context, tx *gorm.DB, userID uuid.UUID, fields map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return fmt.Errorf("user %s not found", userID)
	}
	if v, ok := fields["document_verified"].(bool); ok {
		u.DocumentVerified = v
	}
	if v, ok := fields["push_token"].(string); ok {
		u.PushToken = v
	}
	return nil
}

type fakeDocumentRepo struct {
	mu   sync.Mutex
	docs map[uuid.UUID]*types.Document
}

func newFakeDocumentRepo() *fakeDocumentRepo {
	return &fakeDocumentRepo{docs: make(map[uuid.UUID]*types.Document)}
}

func (f *fakeDocumentRepo) get(id uuid.UUID) *types.Document {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[id]
	if !ok {
		return nil
	}
	copied := *d
	return &copied
}

func (f *fakeDocumentRepo) Create(ctx context.Context, tx *gorm.DB, doc *types.Document) (*types.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}
	stored := *doc
	f.docs[doc.ID] = &stored
	return doc, nil
}

func (f *fakeDocumentRepo) GetByID(ctx context.Context, tx *gorm.DB, documentID uuid.UUID) (*types.Document, error) {
	return f.get(documentID), nil
}

func (f *fakeDocumentRepo) GetByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.Document
	for _, d := range f.docs {
		if d.UserID == userID {
			copied := *d
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeDocumentRepo) GetByUserTypeFace(ctx context.Context, tx *gorm.DB, userID uuid.UUID, docType types.DocumentType, face types.DocumentFace) ([]*types.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.Document
	for _, d := range f.docs {
		if d.UserID == userID && d.Type == docType && d.Face == face {
			copied := *d
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeDocumentRepo) GetByStatus(ctx context.Context, tx *gorm.DB, status types.DocumentStatus) ([]*types.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.Document
	for _, d := range f.docs {
		if d.Status == status {
			copied := *d
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeDocumentRepo) GetWithConfidenceBelow(ctx context.Context, tx *gorm.DB, threshold float64) ([]*types.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.Document
	for _, d := range f.docs {
		if d.OcrConfidence == nil || *d.OcrConfidence >= threshold {
			continue
		}
		if d.Status != types.DocumentStatusPending && d.Status != types.DocumentStatusNeedsReview {
			continue
		}
		copied := *d
		out = append(out, &copied)
	}
	return out, nil
}

func (f *fakeDocumentRepo) CountAll(ctx context.Context, tx *gorm.DB) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.docs)), nil
}

func (f *fakeDocumentRepo) CountByStatus(ctx context.Context, tx *gorm.DB, status types.DocumentStatus) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, d := range f.docs {
		if d.Status == status {
			n++
		}
	}
	return n, nil
}

func (f *fakeDocumentRepo) CountByAutoApproved(ctx context.Context, tx *gorm.DB, autoApproved bool) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, d := range f.docs {
		if d.AutoApproved == autoApproved {
			n++
		}
	}
	return n, nil
}

func (f *fakeDocumentRepo) applyFields(d *types.Document, fields map[string]any) {
	if v, ok := fields["status"].(types.DocumentStatus); ok {
		d.Status = v
	}
	if v, ok := fields["rejection_reason"].(string); ok {
		d.RejectionReason = v
	}
	if v, ok := fields["ocr_confidence"].(float64); ok {
		conf := v
		d.OcrConfidence = &conf
	}
	if v, ok := fields["auto_approved"].(bool); ok {
		d.AutoApproved = v
	}
	if v, ok := fields["extracted"].([]byte); ok {
		d.Extracted = datatypes.JSON(v)
	}
	if v, ok := fields["raw_text"].(string); ok {
		d.RawText = v
	}
	if v, ok := fields["reviewed_by"].(uuid.UUID); ok {
		reviewer := v
		d.ReviewedBy = &reviewer
	}
}

func (f *fakeDocumentRepo) UpdateFields(ctx context.Context, tx *gorm.DB, documentID uuid.UUID, fields map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[documentID]
	if !ok {
		return fmt.Errorf("document %s not found", documentID)
	}
	f.applyFields(d, fields)
	return nil
}

func (f *fakeDocumentRepo) UpdateFieldsIfPending(ctx context.Context, tx *gorm.DB, documentID uuid.UUID, fields map[string]any) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[documentID]
	if !ok || d.Status != types.DocumentStatusPending {
		return false, nil
	}
	f.applyFields(d, fields)
	return true, nil
}

func (f *fakeDocumentRepo) Delete(ctx context.Context, tx *gorm.DB, documentID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.docs, documentID)
	return nil
}

func (f *fakeDocumentRepo) DeleteByUserTypeFace(ctx context.Context, tx *gorm.DB, userID uuid.UUID, docType types.DocumentType, face types.DocumentFace) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, d := range f.docs {
		if d.UserID == userID && d.Type == docType && d.Face == face {
			delete(f.docs, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeDocumentRepo) HasApproved(ctx context.Context, tx *gorm.DB, userID uuid.UUID, docType types.DocumentType) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.docs {
		if d.UserID == userID && d.Type == docType && d.Status == types.DocumentStatusApproved {
			return true, nil
		}
	}
	return false, nil
}

// fakeConsentRepo keeps consent rows in a slice.

type fakeConsentRepo struct {
	mu       sync.Mutex
	consents []*types.Consent
}

func newFakeConsentRepo() *fakeConsentRepo {
	return &fakeConsentRepo{}
}

func (f *fakeConsentRepo) Create(ctx context.Context, tx *gorm.DB, consent *types.Consent) (*types.Consent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if consent.ID == uuid.Nil {
		consent.ID = uuid.New()
	}
	f.consents = append(f.consents, consent)
	return consent, nil
}

func (f *fakeConsentRepo) GetByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Consent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.Consent
	for _, c := range f.consents {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeConsentRepo) GetActiveByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Consent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.Consent
	for _, c := range f.consents {
		if c.UserID == userID && c.Active() {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeConsentRepo) HasActive(ctx context.Context, tx *gorm.DB, userID uuid.UUID, consentType types.ConsentType) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.consents {
		if c.UserID == userID && c.Type == consentType && c.Active() {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeConsentRepo) RevokeActive(ctx context.Context, tx *gorm.DB, userID uuid.UUID, consentType types.ConsentType) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	var revoked int64
	for _, c := range f.consents {
		if c.UserID == userID && c.Type == consentType && c.Active() {
			c.Status = types.ConsentStatusRevoked
			c.RevokedAt = &now
			revoked++
		}
	}
	return revoked, nil
}

func (f *fakeConsentRepo) CountGivenSince(ctx context.Context, tx *gorm.DB, consentType types.ConsentType, since time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, c := range f.consents {
		if c.Type == consentType && c.Status == types.ConsentStatusGiven && !c.GivenAt.Before(since) {
			count++
		}
	}
	return count, nil
}

// fakeNotifier records notifications for assertions.

type sentNotification struct {
	UserID  uuid.UUID
	Kind    NotificationKind
	Payload map[string]any
	Admin   bool
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{}
}

func (f *fakeNotifier) NotifyUser(ctx context.Context, userID uuid.UUID, kind NotificationKind, payload map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentNotification{UserID: userID, Kind: kind, Payload: payload})
}

func (f *fakeNotifier) NotifyAdmins(ctx context.Context, kind NotificationKind, payload map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentNotification{Kind: kind, Payload: payload, Admin: true})
}

func (f *fakeNotifier) kinds() []NotificationKind {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]NotificationKind, 0, len(f.sent))
	for _, s := range f.sent {
		out = append(out, s.Kind)
	}
	return out
}

func (f *fakeNotifier) firstOfKind(kind NotificationKind) (sentNotification, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sent {
		if s.Kind == kind {
			return s, true
		}
	}
	return sentNotification{}, false
}

func (f *fakeNotifier) countKind(kind NotificationKind) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.sent {
		if s.Kind == kind {
			n++
		}
	}
	return n
}

// fakeExtractor returns a scripted result, optionally after a delay.

type fakeExtractor struct {
	res   *ExtractionResult
	err   error
	delay time.Duration
}

func (f *fakeExtractor) Extract(ctx context.Context, image []byte, docType types.DocumentType) (*ExtractionResult, error) {
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	res := *f.res
	return &res, nil
}
