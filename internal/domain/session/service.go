package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rpggio/timeline/internal/identity"
	"github.com/rpggio/timeline/internal/repository"
)

// Service handles session operations.
type Service struct {
	sessions SessionRepository
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a new session service.
func NewService(sessions SessionRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		sessions: sessions,
		logger:   logger,
		now:      time.Now,
	}
}

// CreateRequest describes a new session.
type CreateRequest struct {
	// PreferredUsername becomes the preferred_username claim. Empty means
	// the session carries no email claim.
	PreferredUsername string
	AccessToken       string
}

// CreateResult holds the stored session and the key to present. The key is
// only available here.
type CreateResult struct {
	Session *Session
	Key     string
}

// Create stores a new session and returns its bearer key.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	if strings.TrimSpace(req.AccessToken) == "" {
		return nil, fmt.Errorf("%w: access token is required", ErrInvalidInput)
	}

	key := uuid.NewString()
	sess := &Session{
		ID:                uuid.NewString(),
		KeyHash:           HashKey(key),
		PreferredUsername: strings.TrimSpace(req.PreferredUsername),
		AccessToken:       req.AccessToken,
		CreatedAt:         s.now().UTC(),
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	s.logger.Info("session created", "session_id", sess.ID, "preferred_username", sess.PreferredUsername)
	return &CreateResult{Session: sess, Key: key}, nil
}

// Resolve returns the identity behind a bearer key.
func (s *Service) Resolve(ctx context.Context, key string) (*identity.Identity, error) {
	if key == "" {
		return nil, ErrInvalidInput
	}
	sess, err := s.sessions.GetByKeyHash(ctx, HashKey(key))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("loading session: %w", err)
	}
	if sess.Revoked() {
		return nil, ErrSessionRevoked
	}

	if err := s.sessions.Touch(ctx, sess.ID, s.now().UTC()); err != nil {
		s.logger.Warn("failed to record session use", "session_id", sess.ID, "error", err)
	}

	claims := map[string]string{}
	if sess.PreferredUsername != "" {
		claims[identity.PreferredUsernameClaim] = sess.PreferredUsername
	}
	return &identity.Identity{
		SessionID:   sess.ID,
		Claims:      claims,
		AccessToken: sess.AccessToken,
	}, nil
}

// Revoke ends a session. Revoking twice is not an error.
func (s *Service) Revoke(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidInput
	}
	if err := s.sessions.Revoke(ctx, id, s.now().UTC()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("revoking session: %w", err)
	}
	s.logger.Info("session revoked", "session_id", id)
	return nil
}

// List returns every stored session, newest first.
func (s *Service) List(ctx context.Context) ([]Session, error) {
	sessions, err := s.sessions.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	return sessions, nil
}

// HashKey returns the stored form of a session key.
func HashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
