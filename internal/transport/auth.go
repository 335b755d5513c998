package transport

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/rpggio/timeline/internal/identity"
)

// ErrUnauthorized indicates invalid credentials.
var ErrUnauthorized = errors.New("unauthorized")

// IdentityResolver resolves the identity behind a bearer session key.
type IdentityResolver interface {
	Resolve(ctx context.Context, key string) (*identity.Identity, error)
}

// SessionRevoker ends a stored session.
type SessionRevoker interface {
	Revoke(ctx context.Context, id string) error
}

// BearerToken returns the bearer token of the request, if any.
func BearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
}

// IdentityMiddleware attaches the caller's identity to the request context.
// Requests without a bearer token continue anonymously; an unknown or
// revoked token is rejected.
func IdentityMiddleware(resolver IdentityResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			id, err := resolver.Resolve(r.Context(), token)
			if err != nil || !id.Authenticated() {
				logger.Debug("rejected bearer token", "path", r.URL.Path, "error", err)
				w.Header().Set("WWW-Authenticate", "Bearer")
				http.Error(w, "invalid bearer token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(identity.WithIdentity(r.Context(), id)))
		})
	}
}

// challenger asks the caller to sign in again: the response gets a bearer
// challenge and a 401 status, and the session that failed is revoked.
type challenger struct {
	w          http.ResponseWriter
	id         *identity.Identity
	sessions   SessionRevoker
	logger     *slog.Logger
	challenged bool
}

func (c *challenger) Challenge(ctx context.Context) {
	if c.challenged {
		return
	}
	c.challenged = true
	c.w.Header().Set("WWW-Authenticate", "Bearer")
	if c.sessions == nil || !c.id.Authenticated() {
		return
	}
	if err := c.sessions.Revoke(ctx, c.id.SessionID); err != nil {
		c.logger.Warn("failed to revoke session", "session_id", c.id.SessionID, "error", err)
	}
}

func (c *challenger) status() int {
	if c.challenged {
		return http.StatusUnauthorized
	}
	return http.StatusOK
}
