package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func setupDB(t *testing.T) *DB {
	t.Helper()

	ctx := context.Background()
	db, err := New(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate(ctx))

	return db
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := setupDB(t)
	require.NoError(t, db.Migrate(context.Background()))
}

func TestCredentialsRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewCredentialRepository(setupDB(t))

	// 初始为空
	access, err := repo.AccessToken(ctx)
	require.NoError(t, err)
	require.Empty(t, access)

	require.NoError(t, repo.SetTokens(ctx, "AT", "RT"))

	access, err = repo.AccessToken(ctx)
	require.NoError(t, err)
	require.Equal(t, "AT", access)

	refresh, err := repo.RefreshToken(ctx)
	require.NoError(t, err)
	require.Equal(t, "RT", refresh)

	// 覆盖写
	require.NoError(t, repo.SetTokens(ctx, "AT2", "RT2"))
	access, err = repo.AccessToken(ctx)
	require.NoError(t, err)
	require.Equal(t, "AT2", access)
}

func TestCredentialsClear(t *testing.T) {
	ctx := context.Background()
	repo := NewCredentialRepository(setupDB(t))

	require.NoError(t, repo.SetTokens(ctx, "AT", "RT"))
	require.NoError(t, repo.Clear(ctx))

	access, err := repo.AccessToken(ctx)
	require.NoError(t, err)
	require.Empty(t, access)

	refresh, err := repo.RefreshToken(ctx)
	require.NoError(t, err)
	require.Empty(t, refresh)
}

func TestSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewSnapshotRepository(setupDB(t))

	require.NoError(t, repo.Save(ctx, "rastreamento", []byte(`{"version":1}`)))

	body, err := repo.Load(ctx, "rastreamento")
	require.NoError(t, err)
	require.JSONEq(t, `{"version":1}`, string(body))

	// 整体覆盖
	require.NoError(t, repo.Save(ctx, "rastreamento", []byte(`{"version":2}`)))
	body, err = repo.Load(ctx, "rastreamento")
	require.NoError(t, err)
	require.JSONEq(t, `{"version":2}`, string(body))
}

func TestSnapshotNotFound(t *testing.T) {
	ctx := context.Background()
	repo := NewSnapshotRepository(setupDB(t))

	_, err := repo.Load(ctx, "missing")
	require.ErrorIs(t, err, ErrSnapshotNotFound)
}

func TestSnapshotDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewSnapshotRepository(setupDB(t))

	require.NoError(t, repo.Save(ctx, "rastreamento", []byte(`{}`)))
	require.NoError(t, repo.Delete(ctx, "rastreamento"))

	_, err := repo.Load(ctx, "rastreamento")
	require.ErrorIs(t, err, ErrSnapshotNotFound)
}
