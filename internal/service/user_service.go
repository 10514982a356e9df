// internal/service/user_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"finflow-ledger/internal/auth"
	"finflow-ledger/internal/domain"
	"finflow-ledger/internal/repository"
	"finflow-ledger/internal/util"
)

// UserService registers users and exchanges credentials for access tokens.
type UserService interface {
	Register(ctx context.Context, username, password string) (*domain.User, error)
	Login(ctx context.Context, username, password string) (token string, expiresAt time.Time, err error)
	GetUser(ctx context.Context, id int64) (*domain.User, error)
	Refresh(ctx context.Context, userID int64) (token string, expiresAt time.Time, err error)
}

type userService struct {
	dbExecutor repository.DBExecutor
	userRepo   repository.UserRepository
	tokens     *auth.TokenManager
	params     auth.Argon2Params
	logger     *slog.Logger
}

// NewUserService creates a new instance of UserService.
func NewUserService(
	dbExecutor repository.DBExecutor,
	userRepo repository.UserRepository,
	tokens *auth.TokenManager,
	params auth.Argon2Params,
	logger *slog.Logger,
) UserService {
	if logger == nil {
		logger = slog.Default()
	}
	return &userService{
		dbExecutor: dbExecutor,
		userRepo:   userRepo,
		tokens:     tokens,
		params:     params,
		logger:     logger,
	}
}

func (s *userService) Register(ctx context.Context, username, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("register: %w: username is required", util.ErrInvalidInput)
	}

	hash, err := auth.HashPassword(password, s.params)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	user := domain.NewUser(username, hash)
	if err := s.userRepo.CreateUser(ctx, s.dbExecutor, user); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	s.logger.Info("User registered", "user_id", user.ID, "username", user.Username)
	return user, nil
}

// Login verifies the credentials and issues a token. Unknown users and wrong passwords
// produce the same error.
func (s *userService) Login(ctx context.Context, username, password string) (string, time.Time, error) {
	user, err := s.userRepo.GetUserByUsername(ctx, s.dbExecutor, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, util.ErrUserNotFound) {
			return "", time.Time{}, fmt.Errorf("login: %w", util.ErrInvalidCredentials)
		}
		return "", time.Time{}, fmt.Errorf("login: %w", err)
	}
	if !auth.VerifyPassword(password, user.PasswordHash) {
		return "", time.Time{}, fmt.Errorf("login: %w", util.ErrInvalidCredentials)
	}

	token, expiresAt, err := s.tokens.Issue(user.ID)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("login: %w", err)
	}
	return token, expiresAt, nil
}

func (s *userService) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.userRepo.GetUserByID(ctx, s.dbExecutor, id)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// Refresh issues a fresh token for a caller that already holds a valid one.
// A user removed since the old token was issued gets no new token.
func (s *userService) Refresh(ctx context.Context, userID int64) (string, time.Time, error) {
	if _, err := s.userRepo.GetUserByID(ctx, s.dbExecutor, userID); err != nil {
		if errors.Is(err, util.ErrUserNotFound) {
			return "", time.Time{}, fmt.Errorf("refresh: %w", util.ErrUnauthorized)
		}
		return "", time.Time{}, fmt.Errorf("refresh: %w", err)
	}

	token, expiresAt, err := s.tokens.Issue(userID)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("refresh: %w", err)
	}
	s.logger.Debug("Access token refreshed", "user_id", userID)
	return token, expiresAt, nil
}
