package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rpggio/casereview/internal/domain/credential"
	"github.com/rpggio/casereview/internal/repository"
)

// UserRepository implements credential.Repository for SQLite
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// Get retrieves a user by username
func (r *UserRepository) Get(ctx context.Context, username string) (*credential.User, error) {
	query := `
		SELECT username, password_hash, is_admin, created_at
		FROM users
		WHERE username = ?
	`

	var user credential.User
	err := r.db.QueryRowContext(ctx, query, username).Scan(
		&user.Username,
		&user.PasswordHash,
		&user.IsAdmin,
		&user.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// List returns all users ordered by username
func (r *UserRepository) List(ctx context.Context) ([]credential.User, error) {
	query := `
		SELECT username, password_hash, is_admin, created_at
		FROM users
		ORDER BY username ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []credential.User
	for rows.Next() {
		var user credential.User
		if err := rows.Scan(&user.Username, &user.PasswordHash, &user.IsAdmin, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	return users, rows.Err()
}

// Create inserts a new user
func (r *UserRepository) Create(ctx context.Context, user *credential.User) error {
	query := `
		INSERT INTO users (username, password_hash, is_admin, created_at)
		VALUES (?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query, user.Username, user.PasswordHash, user.IsAdmin, createdAt(user))
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// Upsert inserts a user or replaces the password and admin flag of an
// existing one
func (r *UserRepository) Upsert(ctx context.Context, user *credential.User) error {
	query := `
		INSERT INTO users (username, password_hash, is_admin, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(username) DO UPDATE SET
			password_hash = excluded.password_hash,
			is_admin = excluded.is_admin
	`

	_, err := r.db.ExecContext(ctx, query, user.Username, user.PasswordHash, user.IsAdmin, createdAt(user))
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}

	return nil
}

func createdAt(user *credential.User) time.Time {
	if user.CreatedAt.IsZero() {
		return time.Now()
	}
	return user.CreatedAt
}
