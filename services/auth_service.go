package services

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"storefront-service/common/auth"
	apperrors "storefront-service/common/errors"
	"storefront-service/models"
	"storefront-service/repository"
)

// AuthService handles customer accounts and session tokens.
type AuthService interface {
	Signup(ctx context.Context, req *models.SignupRequest) (*models.User, error)
	Login(ctx context.Context, req *models.LoginRequest) (string, *models.User, error)
}

type authServiceImpl struct {
	users     repository.UserRepository
	tokens    *auth.TokenManager
	passwords *PasswordValidator
	logger    *zap.Logger
}

func NewAuthService(users repository.UserRepository, tokens *auth.TokenManager, logger *zap.Logger) AuthService {
	return &authServiceImpl{
		users:     users,
		tokens:    tokens,
		passwords: NewPasswordValidator(),
		logger:    logger,
	}
}

func (s *authServiceImpl) Signup(ctx context.Context, req *models.SignupRequest) (*models.User, error) {
	if err := s.passwords.ValidatePassword(req.Password); err != nil {
		return nil, apperrors.ErrValidation.With(err.Error())
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, apperrors.ErrConflict.With("Email already exists")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.ErrInternal.Wrap(err)
	}

	user := &models.User{
		Email:    email,
		Name:     strings.TrimSpace(req.Name),
		Password: string(hashed),
		Role:     models.RoleUser,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if isDuplicate(err) {
			return nil, apperrors.ErrConflict.With("Email already exists")
		}
		s.logger.Error("Failed to create user", zap.Error(err))
		return nil, apperrors.ErrInternal.Wrap(err)
	}

	s.logger.Info("User signed up", zap.String("user_id", user.ID.String()))
	return user, nil
}

// Login checks the credentials and issues an access token.
func (s *authServiceImpl) Login(ctx context.Context, req *models.LoginRequest) (string, *models.User, error) {
	invalid := apperrors.ErrUnauthorized.With("Invalid email or password")

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, invalid
		}
		return "", nil, apperrors.ErrInternal.Wrap(err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return "", nil, invalid
	}

	token, err := s.tokens.Issue(user.ID.String(), user.Role)
	if err != nil {
		s.logger.Error("Failed to issue token", zap.Error(err))
		return "", nil, apperrors.ErrInternal.Wrap(err)
	}
	return token, user, nil
}
