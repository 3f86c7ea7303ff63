package sqlite

import (
	"context"
	"testing"

	"github.com/rpggio/casereview/internal/repository"
	"github.com/stretchr/testify/require"
)

func TestDiagnosisRepository_SetGet(t *testing.T) {
	db := NewTestDB(t)
	repo := NewDiagnosisRepository(db)
	ctx := context.Background()

	_, err := repo.Get(ctx, "user1", "CASE01")
	require.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, repo.Set(ctx, "user1", "CASE01", "first"))
	require.NoError(t, repo.Set(ctx, "user1", "CASE01", "second"))
	require.NoError(t, repo.Set(ctx, "user1", "CASE02", ""))
	require.NoError(t, repo.Set(ctx, "user2", "CASE01", "other"))

	text, err := repo.Get(ctx, "user1", "CASE01")
	require.NoError(t, err)
	require.Equal(t, "second", text)

	all, err := repo.ListForUser(ctx, "user1")
	require.NoError(t, err)
	require.Equal(t, map[string]string{"CASE01": "second", "CASE02": ""}, all)

	none, err := repo.ListForUser(ctx, "nobody")
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestDiagnosisRepository_Delete(t *testing.T) {
	db := NewTestDB(t)
	repo := NewDiagnosisRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "user1", "CASE01", "text"))
	require.NoError(t, repo.Delete(ctx, "user1", "CASE01"))
	require.ErrorIs(t, repo.Delete(ctx, "user1", "CASE01"), repository.ErrNotFound)
}
