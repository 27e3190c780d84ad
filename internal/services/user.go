package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rentesla/mobile-backend/internal/logger"
	"github.com/rentesla/mobile-backend/internal/repos"
	"github.com/rentesla/mobile-backend/internal/types"
)

type UserService interface {
	GetByID(ctx context.Context, userID uuid.UUID) (*types.User, error)
	UpdatePushToken(ctx context.Context, userID uuid.UUID, pushToken string) error
}

type userService struct {
	log      *logger.Logger
	userRepo repos.UserRepo
}

func NewUserService(log *logger.Logger, userRepo repos.UserRepo) UserService {
	return &userService{log: log.With("service", "UserService"), userRepo: userRepo}
}

func (us *userService) GetByID(ctx context.Context, userID uuid.UUID) (*types.User, error) {
	user, err := us.userRepo.GetByID(ctx, nil, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (us *userService) UpdatePushToken(ctx context.Context, userID uuid.UUID, pushToken string) error {
	pushToken = strings.TrimSpace(pushToken)
	if pushToken == "" {
		return fmt.Errorf("%w: push token is required", ErrValidation)
	}
	user, err := us.userRepo.GetByID(ctx, nil, userID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return ErrUserNotFound
	}
	return us.userRepo.UpdateFields(ctx, nil, userID, map[string]any{
		"push_token": pushToken,
		"updated_at": time.Now(),
	})
}
