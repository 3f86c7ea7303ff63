package credential

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/rpggio/casereview/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

// Service verifies logins and manages accounts.
type Service struct {
	repo   Repository
	logger *slog.Logger
	cost   int
}

// NewService creates a new credential service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger, cost: bcrypt.DefaultCost}
}

// WithCost overrides the bcrypt cost; tests use bcrypt.MinCost.
func (s *Service) WithCost(cost int) *Service {
	s.cost = cost
	return s
}

// CreateRequest defines account creation inputs.
type CreateRequest struct {
	Username string
	Password string
	IsAdmin  bool
}

// Authenticate checks a username/password pair. It returns
// ErrInvalidCredentials without distinguishing unknown users from wrong
// passwords.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*User, error) {
	if username == "" {
		return nil, ErrInvalidCredentials
	}
	user, err := s.repo.Get(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("loading user: %w", err)
	}
	if !IsHash(user.PasswordHash) {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "credential row holds no password hash; re-import the table", "username", username)
		}
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// Exists reports whether username names an account.
func (s *Service) Exists(ctx context.Context, username string) (bool, error) {
	if username == "" {
		return false, nil
	}
	_, err := s.repo.Get(ctx, username)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("loading user: %w", err)
}

// List returns every account without password material.
func (s *Service) List(ctx context.Context) ([]UserSummary, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	summaries := make([]UserSummary, 0, len(users))
	for _, u := range users {
		summaries = append(summaries, UserSummary{Username: u.Username, IsAdmin: u.IsAdmin})
	}
	return summaries, nil
}

// Create adds a new account, hashing its password.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*User, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		return nil, ErrInvalidInput
	}
	if err := checkUsername(username); err != nil {
		return nil, err
	}
	hash, err := s.hash(req.Password)
	if err != nil {
		return nil, err
	}
	user := &User{
		Username:     username,
		PasswordHash: hash,
		IsAdmin:      req.IsAdmin,
		CreatedAt:    time.Now(),
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return user, nil
}

// Import upserts rows from a flat credential table. When the table has no
// admin column, the first row is promoted to admin. Plaintext passwords are
// hashed; existing hashes are kept as is.
func (s *Service) Import(ctx context.Context, rows []TableRow, hasAdminColumn bool) (int, error) {
	imported := 0
	for i, row := range rows {
		username := strings.TrimSpace(row.Username)
		if username == "" || row.Password == "" {
			continue
		}
		if err := checkUsername(username); err != nil {
			if s.logger != nil {
				s.logger.WarnContext(ctx, "skipping credential row", "row", i+1, "error", err)
			}
			continue
		}
		hash := row.Password
		if !IsHash(hash) {
			var err error
			hash, err = s.hash(row.Password)
			if err != nil {
				return imported, err
			}
		}
		isAdmin := row.IsAdmin
		if !hasAdminColumn && i == 0 {
			isAdmin = true
		}
		user := &User{
			Username:     username,
			PasswordHash: hash,
			IsAdmin:      isAdmin,
			CreatedAt:    time.Now(),
		}
		if err := s.repo.Upsert(ctx, user); err != nil {
			return imported, fmt.Errorf("importing user %q: %w", username, err)
		}
		imported++
	}
	return imported, nil
}

// checkUsername rejects names reserved for system audit logs and names with
// control characters.
func checkUsername(username string) error {
	if strings.HasPrefix(username, "_") {
		return fmt.Errorf("%w: username %q is reserved", ErrInvalidInput, username)
	}
	if strings.IndexFunc(username, unicode.IsControl) >= 0 {
		return fmt.Errorf("%w: username contains control characters", ErrInvalidInput)
	}
	return nil
}

func (s *Service) hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

// IsHash reports whether value looks like a bcrypt hash.
func IsHash(value string) bool {
	if len(value) != 60 {
		return false
	}
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}
