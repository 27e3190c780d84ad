package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/rentesla/mobile-backend/internal/logger"
	"github.com/rentesla/mobile-backend/internal/repos"
	"github.com/rentesla/mobile-backend/internal/types"
)

var identityNumberInputRe = regexp.MustCompile(`^\d{10,20}$`)

type JWTClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type SignupInput struct {
	Email          string `json:"email"`
	Password       string `json:"password"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	IdentityNumber string `json:"identityNumber"`
	PushToken      string `json:"pushToken"`
}

type AuthService interface {
	Signup(ctx context.Context, input SignupInput) (*types.User, string, error)
	Login(ctx context.Context, email, password string) (*types.User, string, error)
	// ParseToken validates a signed token and returns the subject user id
	// and role claim.
	ParseToken(tokenString string) (uuid.UUID, string, error)
}

type authService struct {
	db           *gorm.DB
	log          *logger.Logger
	userRepo     repos.UserRepo
	jwtSecretKey string
	accessTTL    time.Duration
}

func NewAuthService(db *gorm.DB, log *logger.Logger, userRepo repos.UserRepo, jwtSecretKey string, accessTTL time.Duration) AuthService {
	return &authService{
		db:           db,
		log:          log.With("service", "AuthService"),
		userRepo:     userRepo,
		jwtSecretKey: jwtSecretKey,
		accessTTL:    accessTTL,
	}
}

func (as *authService) Signup(ctx context.Context, input SignupInput) (*types.User, string, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	identityNumber := strings.TrimSpace(input.IdentityNumber)

	if email == "" || !strings.Contains(email, "@") {
		return nil, "", fmt.Errorf("%w: invalid email", ErrValidation)
	}
	if len(input.Password) < 6 {
		return nil, "", fmt.Errorf("%w: password must be at least 6 characters", ErrValidation)
	}
	if strings.TrimSpace(input.FirstName) == "" || strings.TrimSpace(input.LastName) == "" {
		return nil, "", fmt.Errorf("%w: first and last name are required", ErrValidation)
	}
	if !identityNumberInputRe.MatchString(identityNumber) {
		return nil, "", fmt.Errorf("%w: identity number must be 10-20 digits", ErrValidation)
	}

	exists, err := as.userRepo.EmailExists(ctx, nil, email)
	if err != nil {
		return nil, "", fmt.Errorf("check email: %w", err)
	}
	if exists {
		return nil, "", fmt.Errorf("%w: email already registered", ErrValidation)
	}
	exists, err = as.userRepo.IdentityNumberExists(ctx, nil, identityNumber)
	if err != nil {
		return nil, "", fmt.Errorf("check identity number: %w", err)
	}
	if exists {
		return nil, "", fmt.Errorf("%w: identity number already registered", ErrValidation)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	user := &types.User{
		ID:             uuid.New(),
		Email:          email,
		Password:       string(hashed),
		FirstName:      strings.TrimSpace(input.FirstName),
		LastName:       strings.TrimSpace(input.LastName),
		IdentityNumber: identityNumber,
		PushToken:      strings.TrimSpace(input.PushToken),
		Role:           types.UserRoleUser,
	}
	if _, err := as.userRepo.Create(ctx, nil, user); err != nil {
		return nil, "", fmt.Errorf("create user: %w", err)
	}
	as.log.Info("User registered", "userID", user.ID, "email", email)

	token, err := as.generateAccessToken(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

func (as *authService) Login(ctx context.Context, email, password string) (*types.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := as.userRepo.GetByEmail(ctx, nil, email)
	if err != nil {
		return nil, "", fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return nil, "", fmt.Errorf("%w: invalid credentials", ErrValidation)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, "", fmt.Errorf("%w: invalid credentials", ErrValidation)
	}
	token, err := as.generateAccessToken(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

func (as *authService) generateAccessToken(user *types.User) (string, error) {
	claims := JWTClaims{
		Role: string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(as.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(as.jwtSecretKey))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (as *authService) ParseToken(tokenString string) (uuid.UUID, string, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(as.jwtSecretKey), nil
	})
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("parse token: %w", err)
	}
	claims, ok := parsed.Claims.(*JWTClaims)
	if !ok || !parsed.Valid {
		return uuid.Nil, "", fmt.Errorf("invalid or expired token")
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("invalid user id in token: %w", err)
	}
	return userID, claims.Role, nil
}
