package diagnosis

import "context"

// Repository provides persistence for diagnoses. Set is an upsert.
type Repository interface {
	Get(ctx context.Context, username, caseID string) (string, error)
	Set(ctx context.Context, username, caseID, text string) error
	Delete(ctx context.Context, username, caseID string) error
	ListForUser(ctx context.Context, username string) (map[string]string, error)
}
