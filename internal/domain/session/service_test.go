package session_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rpggio/timeline/internal/domain/session"
	"github.com/rpggio/timeline/internal/identity"
	"github.com/rpggio/timeline/internal/repository"
	"github.com/rpggio/timeline/internal/repository/mocks"
)

func TestSessionService_Create(t *testing.T) {
	ctx := context.Background()
	sessionsRepo := &mocks.SessionRepository{}

	var stored *session.Session
	sessionsRepo.On("Create", ctx, mock.AnythingOfType("*session.Session")).
		Run(func(args mock.Arguments) { stored = args.Get(1).(*session.Session) }).
		Return(nil)

	svc := session.NewService(sessionsRepo, nil)
	result, err := svc.Create(ctx, session.CreateRequest{
		PreferredUsername: " jane@example.com ",
		AccessToken:       "graph-token",
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.Key)
	require.NotEmpty(t, result.Session.ID)
	require.Equal(t, session.HashKey(result.Key), stored.KeyHash)
	require.NotEqual(t, result.Key, stored.KeyHash)
	require.Equal(t, "jane@example.com", stored.PreferredUsername)
	require.Equal(t, "graph-token", stored.AccessToken)
	sessionsRepo.AssertExpectations(t)
}

func TestSessionService_Create_RequiresToken(t *testing.T) {
	sessionsRepo := &mocks.SessionRepository{}
	svc := session.NewService(sessionsRepo, nil)

	_, err := svc.Create(context.Background(), session.CreateRequest{PreferredUsername: "a@b.c"})
	require.ErrorIs(t, err, session.ErrInvalidInput)
	sessionsRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSessionService_Resolve(t *testing.T) {
	ctx := context.Background()
	sessionsRepo := &mocks.SessionRepository{}
	sessionsRepo.On("GetByKeyHash", ctx, session.HashKey("key-1")).Return(&session.Session{
		ID:                "s1",
		PreferredUsername: "jane@example.com",
		AccessToken:       "graph-token",
	}, nil)
	sessionsRepo.On("Touch", ctx, "s1", mock.AnythingOfType("time.Time")).Return(nil)

	svc := session.NewService(sessionsRepo, nil)
	id, err := svc.Resolve(ctx, "key-1")
	require.NoError(t, err)
	require.True(t, id.Authenticated())
	require.Equal(t, "s1", id.SessionID)
	require.Equal(t, "graph-token", id.AccessToken)
	require.Equal(t, identity.SomeEmail("jane@example.com"), identity.ResolveEmail(identity.NoEmail, id))
}

func TestSessionService_Resolve_NoClaim(t *testing.T) {
	ctx := context.Background()
	sessionsRepo := &mocks.SessionRepository{}
	sessionsRepo.On("GetByKeyHash", ctx, session.HashKey("key-1")).Return(&session.Session{
		ID:          "s1",
		AccessToken: "graph-token",
	}, nil)
	sessionsRepo.On("Touch", ctx, "s1", mock.Anything).Return(errors.New("disk full"))

	svc := session.NewService(sessionsRepo, nil)
	id, err := svc.Resolve(ctx, "key-1")
	require.NoError(t, err)
	require.Equal(t, identity.NoEmail, identity.ResolveEmail(identity.NoEmail, id))
}

func TestSessionService_Resolve_Failures(t *testing.T) {
	ctx := context.Background()
	revokedAt := time.Now()

	sessionsRepo := &mocks.SessionRepository{}
	sessionsRepo.On("GetByKeyHash", ctx, session.HashKey("missing")).Return(nil, repository.ErrNotFound)
	sessionsRepo.On("GetByKeyHash", ctx, session.HashKey("revoked")).Return(&session.Session{
		ID:        "s2",
		RevokedAt: &revokedAt,
	}, nil)

	svc := session.NewService(sessionsRepo, nil)

	_, err := svc.Resolve(ctx, "")
	require.ErrorIs(t, err, session.ErrInvalidInput)

	_, err = svc.Resolve(ctx, "missing")
	require.ErrorIs(t, err, session.ErrSessionNotFound)

	_, err = svc.Resolve(ctx, "revoked")
	require.ErrorIs(t, err, session.ErrSessionRevoked)
	sessionsRepo.AssertNotCalled(t, "Touch", mock.Anything, mock.Anything, mock.Anything)
}

func TestSessionService_Revoke(t *testing.T) {
	ctx := context.Background()
	sessionsRepo := &mocks.SessionRepository{}
	sessionsRepo.On("Revoke", ctx, "s1", mock.Anything).Return(nil)
	sessionsRepo.On("Revoke", ctx, "nope", mock.Anything).Return(repository.ErrNotFound)

	svc := session.NewService(sessionsRepo, nil)
	require.NoError(t, svc.Revoke(ctx, "s1"))
	require.ErrorIs(t, svc.Revoke(ctx, "nope"), session.ErrSessionNotFound)
	require.ErrorIs(t, svc.Revoke(ctx, ""), session.ErrInvalidInput)
}
