package sheet

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/rpggio/casereview/internal/domain/credential"
	"github.com/rpggio/casereview/internal/repository"
)

const usersSheet = "Users"

var userColumns = []string{"username", "password", "is_admin"}

// UserTable implements credential.Repository on a users.xlsx workbook. The
// file stays the source of truth: it is re-read whenever its modification
// time changes.
type UserTable struct {
	path   string
	logger *slog.Logger

	mu      sync.Mutex
	modTime time.Time
	users   []credential.User
}

// NewUserTable creates a table backed by path.
func NewUserTable(path string, logger *slog.Logger) *UserTable {
	return &UserTable{path: path, logger: logger}
}

// Path returns the workbook path.
func (t *UserTable) Path() string {
	return t.path
}

// Get retrieves a user by username.
func (t *UserTable) Get(ctx context.Context, username string) (*credential.User, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.refresh(ctx); err != nil {
		return nil, err
	}
	for _, u := range t.users {
		if u.Username == username {
			user := u
			return &user, nil
		}
	}
	return nil, repository.ErrNotFound
}

// List returns all users ordered by username.
func (t *UserTable) List(ctx context.Context) ([]credential.User, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.refresh(ctx); err != nil {
		return nil, err
	}
	users := append([]credential.User(nil), t.users...)
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

// Create adds a user and rewrites the workbook.
func (t *UserTable) Create(ctx context.Context, user *credential.User) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.refresh(ctx); err != nil {
		return err
	}
	for _, u := range t.users {
		if u.Username == user.Username {
			return repository.ErrConflict
		}
	}
	return t.save(append(append([]credential.User(nil), t.users...), *user))
}

// Upsert adds a user or replaces an existing row, then rewrites the workbook.
func (t *UserTable) Upsert(ctx context.Context, user *credential.User) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.refresh(ctx); err != nil {
		return err
	}
	users := append([]credential.User(nil), t.users...)
	replaced := false
	for i := range users {
		if users[i].Username == user.Username {
			users[i].PasswordHash = user.PasswordHash
			users[i].IsAdmin = user.IsAdmin
			replaced = true
		}
	}
	if !replaced {
		users = append(users, *user)
	}
	return t.save(users)
}

func (t *UserTable) refresh(ctx context.Context) error {
	info, err := os.Stat(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			t.users = nil
			t.modTime = time.Time{}
			return nil
		}
		return fmt.Errorf("checking credential table: %w", err)
	}
	if !t.modTime.IsZero() && info.ModTime().Equal(t.modTime) {
		return nil
	}

	rows, hasAdmin, err := ReadTable(t.path)
	if err != nil {
		return err
	}
	users := make([]credential.User, 0, len(rows))
	for i, row := range rows {
		if !credential.IsHash(row.Password) && t.logger != nil {
			t.logger.WarnContext(ctx, "credential row holds no password hash; run reviewctl users import", "username", row.Username)
		}
		isAdmin := row.IsAdmin
		if !hasAdmin && i == 0 {
			isAdmin = true
		}
		users = append(users, credential.User{
			Username:     row.Username,
			PasswordHash: row.Password,
			IsAdmin:      isAdmin,
			CreatedAt:    info.ModTime(),
		})
	}
	t.users = users
	t.modTime = info.ModTime()
	if t.logger != nil {
		t.logger.DebugContext(ctx, "loaded credential table", "path", t.path, "users", len(users))
	}
	return nil
}

func (t *UserTable) save(users []credential.User) error {
	rows := make([][]any, 0, len(users))
	for _, u := range users {
		admin := "false"
		if u.IsAdmin {
			admin = "true"
		}
		rows = append(rows, []any{u.Username, u.PasswordHash, admin})
	}
	if err := writeWorkbook(t.path, usersSheet, userColumns, rows); err != nil {
		return fmt.Errorf("writing credential table: %w", err)
	}
	t.users = users
	if info, err := os.Stat(t.path); err == nil {
		t.modTime = info.ModTime()
	}
	return nil
}

// ReadTable parses a credential workbook. The header must name username and
// password columns; is_admin is optional and its presence is reported.
// Rows without a username are skipped.
func ReadTable(path string) ([]credential.TableRow, bool, error) {
	rows, err := readRows(path)
	if err != nil {
		return nil, false, err
	}
	if len(rows) == 0 {
		return nil, false, nil
	}

	idx := headerIndex(rows[0])
	userCol, ok := idx["username"]
	if !ok {
		return nil, false, fmt.Errorf("%s: missing username column", path)
	}
	passCol, ok := idx["password"]
	if !ok {
		return nil, false, fmt.Errorf("%s: missing password column", path)
	}
	adminCol, hasAdmin := idx["is_admin"]

	var out []credential.TableRow
	for _, row := range rows[1:] {
		username := cell(row, userCol)
		if username == "" {
			continue
		}
		tr := credential.TableRow{Username: username, Password: cell(row, passCol)}
		if hasAdmin {
			tr.IsAdmin = parseBool(cell(row, adminCol))
		}
		out = append(out, tr)
	}
	return out, hasAdmin, nil
}
