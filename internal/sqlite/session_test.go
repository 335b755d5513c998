package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rpggio/timeline/internal/domain/session"
	"github.com/rpggio/timeline/internal/repository"
)

func newSession(id, keyHash, username string, createdAt time.Time) *session.Session {
	return &session.Session{
		ID:                id,
		KeyHash:           keyHash,
		PreferredUsername: username,
		AccessToken:       "token-" + id,
		CreatedAt:         createdAt,
	}
}

func TestSessionRepository_CreateGet(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewSessionRepository(db)
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, repo.Create(ctx, newSession("s1", "h1", "jane@example.com", now)))

	loaded, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, "h1", loaded.KeyHash)
	require.Equal(t, "jane@example.com", loaded.PreferredUsername)
	require.Equal(t, "token-s1", loaded.AccessToken)
	require.True(t, now.Equal(loaded.CreatedAt))
	require.Nil(t, loaded.LastUsed)
	require.Nil(t, loaded.RevokedAt)

	byHash, err := repo.GetByKeyHash(ctx, "h1")
	require.NoError(t, err)
	require.Equal(t, "s1", byHash.ID)
}

func TestSessionRepository_NoUsername(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewSessionRepository(db)

	require.NoError(t, repo.Create(ctx, newSession("s1", "h1", "", time.Now())))

	loaded, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	require.Empty(t, loaded.PreferredUsername)
}

func TestSessionRepository_NotFound(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewSessionRepository(db)

	_, err := repo.Get(ctx, "missing")
	require.ErrorIs(t, err, repository.ErrNotFound)
	_, err = repo.GetByKeyHash(ctx, "missing")
	require.ErrorIs(t, err, repository.ErrNotFound)
	require.ErrorIs(t, repo.Touch(ctx, "missing", time.Now()), repository.ErrNotFound)
	require.ErrorIs(t, repo.Revoke(ctx, "missing", time.Now()), repository.ErrNotFound)
}

func TestSessionRepository_DuplicateKey(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewSessionRepository(db)

	require.NoError(t, repo.Create(ctx, newSession("s1", "h1", "", time.Now())))
	err := repo.Create(ctx, newSession("s2", "h1", "", time.Now()))
	require.ErrorIs(t, err, repository.ErrConflict)
}

func TestSessionRepository_TouchRevoke(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewSessionRepository(db)
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, repo.Create(ctx, newSession("s1", "h1", "", now)))
	require.NoError(t, repo.Touch(ctx, "s1", now.Add(time.Minute)))
	require.NoError(t, repo.Revoke(ctx, "s1", now.Add(2*time.Minute)))
	require.NoError(t, repo.Revoke(ctx, "s1", now.Add(time.Hour)))

	loaded, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, loaded.LastUsed)
	require.True(t, now.Add(time.Minute).Equal(*loaded.LastUsed))
	require.NotNil(t, loaded.RevokedAt)
	require.True(t, now.Add(2*time.Minute).Equal(*loaded.RevokedAt))
	require.True(t, loaded.Revoked())
}

func TestSessionRepository_List(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewSessionRepository(db)
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, repo.Create(ctx, newSession("old", "h1", "", now.Add(-time.Hour))))
	require.NoError(t, repo.Create(ctx, newSession("new", "h2", "", now)))

	sessions, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	require.Equal(t, "new", sessions[0].ID)
	require.Equal(t, "old", sessions[1].ID)
}
