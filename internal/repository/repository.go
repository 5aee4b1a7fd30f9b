package repository

import (
	"context"

	"github.com/cardloop/users-api/internal/domain"
)

// UserRepository persists accounts.
type UserRepository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	// UpdateUser applies the non-empty fields of update and returns the
	// resulting row, or ErrNotFound when no such user exists.
	UpdateUser(ctx context.Context, id string, update domain.UserUpdate) (*domain.User, error)
	// DeleteUser removes the user and returns its prior state, or
	// ErrNotFound when no such user exists.
	DeleteUser(ctx context.Context, id string) (*domain.User, error)
}
