package diagnosis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rpggio/casereview/internal/repository"
)

// Service handles diagnosis reads and writes.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService creates a new diagnosis service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Get returns the stored text and whether one exists.
func (s *Service) Get(ctx context.Context, username, caseID string) (string, bool, error) {
	text, err := s.repo.Get(ctx, username, caseID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("getting diagnosis: %w", err)
	}
	return text, true, nil
}

// Set upserts the diagnosis text; the last write wins.
func (s *Service) Set(ctx context.Context, username, caseID, text string) error {
	if username == "" || caseID == "" {
		return ErrInvalidInput
	}
	if err := s.repo.Set(ctx, username, caseID, text); err != nil {
		return fmt.Errorf("saving diagnosis: %w", err)
	}
	return nil
}

// Delete removes a diagnosis.
func (s *Service) Delete(ctx context.Context, username, caseID string) error {
	if err := s.repo.Delete(ctx, username, caseID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrDiagnosisNotFound
		}
		return fmt.Errorf("deleting diagnosis: %w", err)
	}
	return nil
}

// ListForUser returns case -> text for one user. Unknown users yield an
// empty map.
func (s *Service) ListForUser(ctx context.Context, username string) (map[string]string, error) {
	entries, err := s.repo.ListForUser(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("listing diagnoses: %w", err)
	}
	if entries == nil {
		entries = map[string]string{}
	}
	return entries, nil
}
