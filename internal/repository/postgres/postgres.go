package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cardloop/users-api/internal/domain"
	"github.com/cardloop/users-api/internal/repository"
)

// Repository implements persistence interfaces on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New constructs a Repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ repository.UserRepository = (*Repository)(nil)

const uniqueViolation = "23505"

// CreateUser inserts a user.
func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	const query = `INSERT INTO users (id, name, email, username, password, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.pool.Exec(ctx, query, user.ID, user.Name, user.Email, user.Username, user.Password, user.CreatedAt)
	if isUniqueViolation(err) {
		return repository.ErrDuplicateEmail
	}
	return err
}

// GetUserByEmail fetches a user by email.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	const query = `SELECT id, name, email, username, password, created_at FROM users WHERE email = $1`
	return scanUser(r.pool.QueryRow(ctx, query, email))
}

// GetUserByID retrieves a user by identifier.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `SELECT id, name, email, username, password, created_at FROM users WHERE id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

// ListUsers returns every registered account, newest first.
func (r *Repository) ListUsers(ctx context.Context) ([]domain.User, error) {
	const query = `SELECT id, name, email, username, password, created_at FROM users
		ORDER BY created_at DESC, id`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Username, &u.Password, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdateUser applies the non-empty fields of update and returns the resulting
// row. With nothing to apply it degenerates to a lookup, preserving the
// not-found check.
func (r *Repository) UpdateUser(ctx context.Context, id string, update domain.UserUpdate) (*domain.User, error) {
	if update.Empty() {
		return r.GetUserByID(ctx, id)
	}
	query, args := buildUserUpdate(id, update)
	user, err := scanUser(r.pool.QueryRow(ctx, query, args...))
	if isUniqueViolation(err) {
		return nil, repository.ErrDuplicateEmail
	}
	return user, err
}

// DeleteUser removes a user and returns its prior state.
func (r *Repository) DeleteUser(ctx context.Context, id string) (*domain.User, error) {
	const query = `DELETE FROM users WHERE id = $1
		RETURNING id, name, email, username, password, created_at`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

// buildUserUpdate assembles the dynamic SET clause for a partial update.
// Callers guarantee at least one field is set.
func buildUserUpdate(id string, update domain.UserUpdate) (string, []any) {
	assignments := make([]string, 0, 4)
	args := []any{id}
	set := func(column string, value any) {
		args = append(args, value)
		assignments = append(assignments, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if update.Name != "" {
		set("name", update.Name)
	}
	if update.Email != "" {
		set("email", update.Email)
	}
	if update.Username != "" {
		set("username", update.Username)
	}
	if len(update.Password) > 0 {
		set("password", update.Password)
	}
	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = $1
		RETURNING id, name, email, username, password, created_at`, strings.Join(assignments, ", "))
	return query, args
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Username, &u.Password, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
