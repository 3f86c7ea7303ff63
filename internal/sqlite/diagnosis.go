package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rpggio/casereview/internal/repository"
)

// DiagnosisRepository implements diagnosis.Repository for SQLite
type DiagnosisRepository struct {
	db *DB
}

// NewDiagnosisRepository creates a new DiagnosisRepository
func NewDiagnosisRepository(db *DB) *DiagnosisRepository {
	return &DiagnosisRepository{db: db}
}

// Get retrieves the diagnosis text of one user for one case
func (r *DiagnosisRepository) Get(ctx context.Context, username, caseID string) (string, error) {
	query := `SELECT text FROM diagnoses WHERE username = ? AND case_id = ?`

	var text string
	err := r.db.QueryRowContext(ctx, query, username, caseID).Scan(&text)
	if err == sql.ErrNoRows {
		return "", repository.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get diagnosis: %w", err)
	}

	return text, nil
}

// Set stores the diagnosis text, replacing any previous text
func (r *DiagnosisRepository) Set(ctx context.Context, username, caseID, text string) error {
	query := `
		INSERT INTO diagnoses (username, case_id, text, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(username, case_id) DO UPDATE SET
			text = excluded.text,
			updated_at = excluded.updated_at
	`

	if _, err := r.db.ExecContext(ctx, query, username, caseID, text, time.Now()); err != nil {
		return fmt.Errorf("failed to set diagnosis: %w", err)
	}

	return nil
}

// Delete removes a diagnosis
func (r *DiagnosisRepository) Delete(ctx context.Context, username, caseID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM diagnoses WHERE username = ? AND case_id = ?`, username, caseID)
	if err != nil {
		return fmt.Errorf("failed to delete diagnosis: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete diagnosis: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// ListForUser returns case -> text for every diagnosis of a user
func (r *DiagnosisRepository) ListForUser(ctx context.Context, username string) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT case_id, text FROM diagnoses WHERE username = ?`, username)
	if err != nil {
		return nil, fmt.Errorf("failed to list diagnoses: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var caseID, text string
		if err := rows.Scan(&caseID, &text); err != nil {
			return nil, fmt.Errorf("failed to scan diagnosis: %w", err)
		}
		out[caseID] = text
	}

	return out, rows.Err()
}
