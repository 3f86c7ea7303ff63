package review

import (
	"context"

	"github.com/rpggio/casereview/internal/domain/audit"
	"github.com/rpggio/casereview/internal/domain/catalog"
	"github.com/rpggio/casereview/internal/domain/credential"
)

// Catalog lists cases, phases and slices.
type Catalog interface {
	ListCases(ctx context.Context) []string
	ListPhases(ctx context.Context, caseID string) []string
	ListSlices(ctx context.Context, caseID, phaseID string) []catalog.SliceRef
}

// Authenticator verifies logins and lists accounts.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (*credential.User, error)
	Exists(ctx context.Context, username string) (bool, error)
	List(ctx context.Context) ([]credential.UserSummary, error)
}

// DiagnosisStore reads and writes diagnoses.
type DiagnosisStore interface {
	Get(ctx context.Context, username, caseID string) (string, bool, error)
	Set(ctx context.Context, username, caseID, text string) error
	ListForUser(ctx context.Context, username string) (map[string]string, error)
}

// AuditLog appends and reads audit events.
type AuditLog interface {
	KeyFor(username string) string
	Append(ctx context.Context, key string, event *audit.Event) error
	ReadAll(ctx context.Context, key string) ([]audit.Event, error)
	Keys(ctx context.Context) ([]string, error)
	Load(ctx context.Context, key string) (int, error)
	Flush(ctx context.Context, key string) error
}
