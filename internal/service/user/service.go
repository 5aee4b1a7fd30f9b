package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/cardloop/users-api/internal/domain"
	"github.com/cardloop/users-api/internal/repository"
	"github.com/cardloop/users-api/pkg/config"
	"github.com/cardloop/users-api/pkg/crypto"
	jwtpkg "github.com/cardloop/users-api/pkg/jwt"
)

// Rejections surfaced to callers. Anything else coming out of the service is
// an internal failure whose cause stays in the logs.
var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
)

// Service implements the account lifecycle: registration, login, and
// session-gated CRUD on user records.
type Service struct {
	users  repository.UserRepository
	logger *slog.Logger
	cfg    config.Config
}

// New constructs a Service.
func New(users repository.UserRepository, logger *slog.Logger, cfg config.Config) Service {
	return Service{users: users, logger: logger, cfg: cfg}
}

// CreateInput carries the fields for a new account.
type CreateInput struct {
	Name     string
	Email    string
	Username string
	Password string
}

// UpdateInput carries a partial account update. Empty fields are skipped; an
// empty string cannot clear a stored value.
type UpdateInput struct {
	Name     string
	Email    string
	Username string
	Password string
}

// Create registers an account and issues a session token for it.
//
// The email existence check happens before the insert, so two concurrent
// creates can both pass it; the unique index on email then rejects the loser
// and the failure still surfaces as ErrEmailTaken.
func (s Service) Create(ctx context.Context, in CreateInput) (*domain.User, string, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	_, err := s.users.GetUserByEmail(ctx, in.Email)
	switch {
	case err == nil:
		return nil, "", ErrEmailTaken
	case !errors.Is(err, repository.ErrNotFound):
		s.logger.Error("email lookup failed", "error", err)
		return nil, "", fmt.Errorf("check email: %w", err)
	}

	hash, err := crypto.HashPassword(in.Password)
	if err != nil {
		s.logger.Error("password hashing failed", "error", err)
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		ID:        uuid.NewString(),
		Name:      in.Name,
		Email:     in.Email,
		Username:  in.Username,
		Password:  hash,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, "", ErrEmailTaken
		}
		s.logger.Error("user insert failed", "error", err)
		return nil, "", fmt.Errorf("create user: %w", err)
	}

	token, err := s.issueSession(user.ID)
	if err != nil {
		return nil, "", err
	}
	s.logger.Info("user registered", "user_id", user.ID)
	return user, token, nil
}

// Login authenticates by email and password and issues a session token.
func (s Service) Login(ctx context.Context, email, password string) (*domain.User, string, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "", err
		}
		s.logger.Error("email lookup failed", "error", err)
		return nil, "", fmt.Errorf("find user: %w", err)
	}
	if len(user.Password) > 0 && !crypto.VerifyPassword(user.Password, password) {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.issueSession(user.ID)
	if err != nil {
		return nil, "", err
	}
	s.logger.Info("user logged in", "user_id", user.ID)
	return user, token, nil
}

// Authorize verifies a session token and returns the bound user ID. Absent,
// tampered, malformed, and expired tokens all collapse to ErrUnauthorized.
func (s Service) Authorize(token string) (string, error) {
	if token == "" {
		return "", ErrUnauthorized
	}
	userID, err := jwtpkg.Verify(token, s.cfg.JWTSecret)
	if err != nil {
		s.logger.Warn("session verification failed", "error", err)
		return "", ErrUnauthorized
	}
	return userID, nil
}

// List returns every account.
func (s Service) List(ctx context.Context) ([]domain.User, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	users, err := s.users.ListUsers(ctx)
	if err != nil {
		s.logger.Error("user list failed", "error", err)
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// Get returns one account by ID.
func (s Service) Get(ctx context.Context, callerID, id string) (*domain.User, error) {
	if err := s.checkScope(callerID, id); err != nil {
		return nil, err
	}
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		s.logger.Error("user fetch failed", "error", err, "user_id", id)
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// Update applies the non-empty fields of in to the account and returns the
// result. A supplied password is re-hashed before it reaches the store.
func (s Service) Update(ctx context.Context, callerID, id string, in UpdateInput) (*domain.User, error) {
	if err := s.checkScope(callerID, id); err != nil {
		return nil, err
	}
	update := domain.UserUpdate{
		Name:     in.Name,
		Email:    in.Email,
		Username: in.Username,
	}
	if in.Password != "" {
		hash, err := crypto.HashPassword(in.Password)
		if err != nil {
			s.logger.Error("password hashing failed", "error", err)
			return nil, fmt.Errorf("hash password: %w", err)
		}
		update.Password = hash
	}

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	user, err := s.users.UpdateUser(ctx, id, update)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, err
		case errors.Is(err, repository.ErrDuplicateEmail):
			return nil, ErrEmailTaken
		}
		s.logger.Error("user update failed", "error", err, "user_id", id)
		return nil, fmt.Errorf("update user: %w", err)
	}
	s.logger.Info("user updated", "user_id", id)
	return user, nil
}

// Remove deletes the account and returns its prior state. Deleting an absent
// account fails with ErrNotFound, on repeat too.
func (s Service) Remove(ctx context.Context, callerID, id string) (*domain.User, error) {
	if err := s.checkScope(callerID, id); err != nil {
		return nil, err
	}
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	user, err := s.users.DeleteUser(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		s.logger.Error("user delete failed", "error", err, "user_id", id)
		return nil, fmt.Errorf("delete user: %w", err)
	}
	s.logger.Info("user deleted", "user_id", id)
	return user, nil
}

func (s Service) issueSession(userID string) (string, error) {
	token, err := jwtpkg.Issue(userID, s.cfg.JWTSecret, s.cfg.SessionTTL)
	if err != nil {
		s.logger.Error("session signing failed", "error", err)
		return "", fmt.Errorf("issue session: %w", err)
	}
	return token, nil
}

// checkScope enforces session-to-target scoping when configured. The default
// keeps the source behavior: any valid session may act on any account.
func (s Service) checkScope(callerID, targetID string) error {
	if s.cfg.RestrictToOwnAccount && callerID != targetID {
		return ErrUnauthorized
	}
	return nil
}

func (s Service) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.StoreTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.cfg.StoreTimeout)
}
