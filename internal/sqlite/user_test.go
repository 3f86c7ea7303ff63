package sqlite

import (
	"context"
	"testing"

	"github.com/rpggio/casereview/internal/domain/credential"
	"github.com/rpggio/casereview/internal/repository"
	"github.com/stretchr/testify/require"
)

func TestUserRepository_CreateAndGet(t *testing.T) {
	db := NewTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	err := repo.Create(ctx, &credential.User{Username: "admin", PasswordHash: "hash-a", IsAdmin: true})
	require.NoError(t, err)

	user, err := repo.Get(ctx, "admin")
	require.NoError(t, err)
	require.Equal(t, "admin", user.Username)
	require.Equal(t, "hash-a", user.PasswordHash)
	require.True(t, user.IsAdmin)
	require.False(t, user.CreatedAt.IsZero())

	err = repo.Create(ctx, &credential.User{Username: "admin", PasswordHash: "other"})
	require.ErrorIs(t, err, repository.ErrConflict)

	_, err = repo.Get(ctx, "ghost")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUserRepository_UpsertAndList(t *testing.T) {
	db := NewTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, &credential.User{Username: "user2", PasswordHash: "h2"}))
	require.NoError(t, repo.Upsert(ctx, &credential.User{Username: "user1", PasswordHash: "h1"}))
	require.NoError(t, repo.Upsert(ctx, &credential.User{Username: "user2", PasswordHash: "h2b", IsAdmin: true}))

	users, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	require.Equal(t, "user1", users[0].Username)
	require.Equal(t, "user2", users[1].Username)
	require.Equal(t, "h2b", users[1].PasswordHash)
	require.True(t, users[1].IsAdmin)
}
