package audit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rpggio/casereview/internal/domain/audit"
	"github.com/rpggio/casereview/internal/repository/mocks"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func fixedClock(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}

func TestAuditService_KeyFor(t *testing.T) {
	perUser := audit.NewService(&mocks.AuditRepository{}, audit.ScopePerUser, nil)
	require.Equal(t, "user1", perUser.KeyFor("user1"))
	require.Equal(t, audit.UnattributedKey, perUser.KeyFor(""))

	global := audit.NewService(&mocks.AuditRepository{}, audit.ScopeGlobal, nil)
	require.Equal(t, audit.GlobalKey, global.KeyFor("user1"))
	require.Equal(t, audit.GlobalKey, global.KeyFor(""))
}

func TestAuditService_AppendStrictlyIncreasing(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	earlier := now.Add(-time.Hour)

	repo := &mocks.AuditRepository{}
	repo.On("List", ctx, "user1").Return([]audit.Event{{Timestamp: now}}, nil).Once()
	repo.On("Append", ctx, "user1", mock.Anything).Return(nil)

	svc := audit.NewService(repo, audit.ScopePerUser, nil).WithClock(fixedClock(earlier))

	first := &audit.Event{Username: "user1", Action: audit.ActionOpenCase}
	second := &audit.Event{Username: "user1", Action: audit.ActionChangeSlice}
	require.NoError(t, svc.Append(ctx, "user1", first))
	require.NoError(t, svc.Append(ctx, "user1", second))

	require.True(t, first.Timestamp.After(now))
	require.True(t, second.Timestamp.After(first.Timestamp))
	require.Equal(t, "user1", first.LogKey)
	repo.AssertNumberOfCalls(t, "List", 1)
}

func TestAuditService_AppendValidation(t *testing.T) {
	ctx := context.Background()
	svc := audit.NewService(&mocks.AuditRepository{}, audit.ScopePerUser, nil)

	require.ErrorIs(t, svc.Append(ctx, "user1", nil), audit.ErrInvalidInput)
	require.ErrorIs(t, svc.Append(ctx, "user1", &audit.Event{}), audit.ErrInvalidInput)
	require.ErrorIs(t, svc.Append(ctx, "", &audit.Event{Action: audit.ActionLogout}), audit.ErrInvalidInput)
}

func TestAuditService_AppendFailureKeepsLastTimestamp(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	repo := &mocks.AuditRepository{}
	repo.On("List", ctx, "user1").Return([]audit.Event{}, nil)
	repo.On("Append", ctx, "user1", mock.MatchedBy(func(e *audit.Event) bool {
		return e.Action == audit.ActionLogout
	})).Return(errors.New("read-only file system"))
	repo.On("Append", ctx, "user1", mock.MatchedBy(func(e *audit.Event) bool {
		return e.Action == audit.ActionLogin
	})).Return(nil)

	svc := audit.NewService(repo, audit.ScopePerUser, nil).WithClock(fixedClock(now))
	err := svc.Append(ctx, "user1", &audit.Event{Action: audit.ActionLogout})
	require.ErrorContains(t, err, "read-only")

	ev := &audit.Event{Action: audit.ActionLogin}
	require.NoError(t, svc.Append(ctx, "user1", ev))
	require.Equal(t, now, ev.Timestamp)
}

func TestAuditService_LoadAndKeys(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.AuditRepository{}
	repo.On("List", ctx, "user1").Return([]audit.Event{
		{Seq: 1, Action: audit.ActionLogin},
		{Seq: 2, Action: audit.ActionLogout},
	}, nil)
	repo.On("Keys", ctx).Return([]string{"user1", "user2"}, nil)

	svc := audit.NewService(repo, audit.ScopePerUser, nil)
	n, err := svc.Load(ctx, "user1")
	require.NoError(t, err)
	require.Equal(t, 2, n)

	keys, err := svc.Keys(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"user1", "user2"}, keys)

	require.NoError(t, svc.Flush(ctx, "user1"))
}

func TestParseScope(t *testing.T) {
	scope, err := audit.ParseScope("global")
	require.NoError(t, err)
	require.Equal(t, audit.ScopeGlobal, scope)

	_, err = audit.ParseScope("team")
	require.ErrorIs(t, err, audit.ErrInvalidScope)
}
