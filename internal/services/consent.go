package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rentesla/mobile-backend/internal/logger"
	"github.com/rentesla/mobile-backend/internal/repos"
	"github.com/rentesla/mobile-backend/internal/types"
)

// ConsentInput is one legal text decision from the client. Only given
// consents are persisted; declining leaves no row.
type ConsentInput struct {
	Type  types.ConsentType
	Given bool
	Text  string
}

// ConsentStatus summarises a user's active consents. CanProceed gates
// rental flows on the two mandatory texts.
type ConsentStatus struct {
	KVKK         bool `json:"kvkk_consent"`
	OpenConsent  bool `json:"open_consent"`
	Location     bool `json:"location_consent"`
	Notification bool `json:"notification_consent"`
	Marketing    bool `json:"marketing_consent"`
	CanProceed   bool `json:"can_proceed"`
}

type ConsentStatistics struct {
	KVKKConsents     int64  `json:"kvkk_consents"`
	OpenConsents     int64  `json:"open_consents"`
	LocationConsents int64  `json:"location_consents"`
	Period           string `json:"period"`
}

type ConsentService interface {
	Submit(ctx context.Context, userID uuid.UUID, consents []ConsentInput, ipAddress, userAgent string) error
	List(ctx context.Context, userID uuid.UUID) ([]*types.Consent, error)
	ListActive(ctx context.Context, userID uuid.UUID) ([]*types.Consent, error)
	Status(ctx context.Context, userID uuid.UUID) (*ConsentStatus, error)
	Revoke(ctx context.Context, userID uuid.UUID, consentType types.ConsentType) error
	Statistics(ctx context.Context) (*ConsentStatistics, error)
}

type consentService struct {
	log         *logger.Logger
	userRepo    repos.UserRepo
	consentRepo repos.ConsentRepo
}

func NewConsentService(log *logger.Logger, userRepo repos.UserRepo, consentRepo repos.ConsentRepo) ConsentService {
	return &consentService{
		log:         log.With("service", "ConsentService"),
		userRepo:    userRepo,
		consentRepo: consentRepo,
	}
}

const consentTextVersion = "1.0"

func (cs *consentService) Submit(ctx context.Context, userID uuid.UUID, consents []ConsentInput, ipAddress, userAgent string) error {
	if len(consents) == 0 {
		return fmt.Errorf("%w: no consents given", ErrValidation)
	}
	user, err := cs.userRepo.GetByID(ctx, nil, userID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return ErrUserNotFound
	}

	for _, c := range consents {
		if _, ok := types.ParseConsentType(string(c.Type)); !ok {
			return fmt.Errorf("%w: unknown consent type %q", ErrValidation, c.Type)
		}
		if !c.Given {
			continue
		}
		if _, err := cs.consentRepo.Create(ctx, nil, &types.Consent{
			UserID:      userID,
			Type:        c.Type,
			Status:      types.ConsentStatusGiven,
			ConsentText: c.Text,
			Version:     consentTextVersion,
			IPAddress:   ipAddress,
			UserAgent:   userAgent,
			GivenAt:     time.Now(),
		}); err != nil {
			return fmt.Errorf("store consent: %w", err)
		}
	}
	cs.log.Info("Consents submitted", "userID", userID, "count", len(consents))
	return nil
}

func (cs *consentService) List(ctx context.Context, userID uuid.UUID) ([]*types.Consent, error) {
	return cs.consentRepo.GetByUser(ctx, nil, userID)
}

func (cs *consentService) ListActive(ctx context.Context, userID uuid.UUID) ([]*types.Consent, error) {
	return cs.consentRepo.GetActiveByUser(ctx, nil, userID)
}

func (cs *consentService) Status(ctx context.Context, userID uuid.UUID) (*ConsentStatus, error) {
	status := &ConsentStatus{}
	checks := []struct {
		consentType types.ConsentType
		target      *bool
	}{
		{types.ConsentTypeKVKK, &status.KVKK},
		{types.ConsentTypeOpenConsent, &status.OpenConsent},
		{types.ConsentTypeLocation, &status.Location},
		{types.ConsentTypeNotification, &status.Notification},
		{types.ConsentTypeMarketing, &status.Marketing},
	}
	for _, c := range checks {
		active, err := cs.consentRepo.HasActive(ctx, nil, userID, c.consentType)
		if err != nil {
			return nil, fmt.Errorf("check consent %s: %w", c.consentType, err)
		}
		*c.target = active
	}
	status.CanProceed = status.KVKK && status.OpenConsent
	return status, nil
}

func (cs *consentService) Revoke(ctx context.Context, userID uuid.UUID, consentType types.ConsentType) error {
	if _, ok := types.ParseConsentType(string(consentType)); !ok {
		return fmt.Errorf("%w: unknown consent type %q", ErrValidation, consentType)
	}
	revoked, err := cs.consentRepo.RevokeActive(ctx, nil, userID, consentType)
	if err != nil {
		return fmt.Errorf("revoke consent: %w", err)
	}
	if revoked == 0 {
		return fmt.Errorf("%w: no active %s consent", ErrValidation, consentType)
	}
	cs.log.Info("Consent revoked", "userID", userID, "type", consentType)
	return nil
}

func (cs *consentService) Statistics(ctx context.Context) (*ConsentStatistics, error) {
	since := time.Now().AddDate(0, -1, 0)
	stats := &ConsentStatistics{Period: "Last 30 days"}
	counts := []struct {
		consentType types.ConsentType
		target      *int64
	}{
		{types.ConsentTypeKVKK, &stats.KVKKConsents},
		{types.ConsentTypeOpenConsent, &stats.OpenConsents},
		{types.ConsentTypeLocation, &stats.LocationConsents},
	}
	for _, c := range counts {
		count, err := cs.consentRepo.CountGivenSince(ctx, nil, c.consentType, since)
		if err != nil {
			return nil, fmt.Errorf("count consents %s: %w", c.consentType, err)
		}
		*c.target = count
	}
	return stats, nil
}
