package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rentesla/mobile-backend/internal/handlers"
	"github.com/rentesla/mobile-backend/internal/logger"
	"github.com/rentesla/mobile-backend/internal/middleware"
	"github.com/rentesla/mobile-backend/internal/services"
	"github.com/rentesla/mobile-backend/internal/types"
)

// stubAuthService resolves fixed tokens so routing tests can exercise
// the auth middleware without real JWTs.
type stubAuthService struct {
	tokens map[string]struct {
		id   uuid.UUID
		role string
	}
}

func (s *stubAuthService) Signup(ctx context.Context, input services.SignupInput) (*types.User, string, error) {
	return nil, "", nil
}

func (s *stubAuthService) Login(ctx context.Context, email, password string) (*types.User, string, error) {
	return nil, "", nil
}

func (s *stubAuthService) ParseToken(tokenString string) (uuid.UUID, string, error) {
	entry, ok := s.tokens[tokenString]
	if !ok {
		return uuid.Nil, "", services.ErrValidation
	}
	return entry.id, entry.role, nil
}

type stubPipeline struct {
	services.DocumentPipeline
	docsByUser map[uuid.UUID][]*types.Document
}

func (s *stubPipeline) ListDocuments(ctx context.Context, userID uuid.UUID) ([]*types.Document, error) {
	return s.docsByUser[userID], nil
}

type stubAggregator struct {
	services.VerificationAggregator
	verified map[uuid.UUID]bool
}

func (s *stubAggregator) IsFullyVerified(ctx context.Context, userID uuid.UUID) (bool, error) {
	return s.verified[userID], nil
}

type stubAdminReview struct {
	services.AdminReviewService
}

func newTestRouter(t *testing.T, targetUser uuid.UUID) (*gin.Engine, string, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New() error = %v", err)
	}

	adminID := uuid.New()
	userID := uuid.New()
	auth := &stubAuthService{tokens: map[string]struct {
		id   uuid.UUID
		role string
	}{
		"admin-token": {adminID, string(types.UserRoleAdmin)},
		"user-token":  {userID, string(types.UserRoleUser)},
	}}

	docID := uuid.New()
	pipeline := &stubPipeline{docsByUser: map[uuid.UUID][]*types.Document{
		targetUser: {{ID: docID, UserID: targetUser, Status: types.DocumentStatusApproved}},
	}}
	aggregator := &stubAggregator{verified: map[uuid.UUID]bool{targetUser: true}}

	router := NewRouter(RouterConfig{
		AuthHandler:         handlers.NewAuthHandler(auth),
		AuthMiddleware:      middleware.NewAuthMiddleware(log, auth),
		UserHandler:         handlers.NewUserHandler(nil),
		DocumentHandler:     handlers.NewDocumentHandler(pipeline, &stubAdminReview{}, aggregator, services.OCRConfig{ConfidenceThreshold: 0.8}),
		ConsentHandler:      handlers.NewConsentHandler(nil),
		NotificationHandler: handlers.NewNotificationHandler(nil),
		SSEHandler:          handlers.NewSSEHandler(nil),
	})
	return router, "admin-token", "user-token"
}

func doRequest(router *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestAdminUserDocumentRoutes(t *testing.T) {
	target := uuid.New()
	router, adminToken, userToken := newTestRouter(t, target)

	rec := doRequest(router, http.MethodGet, "/api/admin/users/"+target.String()+"/documents", adminToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin list status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), target.String()) {
		t.Errorf("admin list body = %s, want target user's documents", rec.Body.String())
	}

	rec = doRequest(router, http.MethodGet, "/api/admin/users/"+target.String()+"/verification-status", adminToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"verified":true`) {
		t.Errorf("admin status body = %s, want verified true", rec.Body.String())
	}

	rec = doRequest(router, http.MethodGet, "/api/admin/users/"+target.String()+"/documents", userToken)
	if rec.Code != http.StatusForbidden {
		t.Errorf("non-admin list status = %d, want 403", rec.Code)
	}

	rec = doRequest(router, http.MethodGet, "/api/admin/users/"+target.String()+"/documents", "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous list status = %d, want 401", rec.Code)
	}

	rec = doRequest(router, http.MethodGet, "/api/admin/users/not-a-uuid/documents", adminToken)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad user id status = %d, want 400", rec.Code)
	}
}
