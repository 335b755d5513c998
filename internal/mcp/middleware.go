package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rpggio/timeline/internal/identity"
)

// ErrUnauthorized indicates a missing or invalid session key.
var ErrUnauthorized = errors.New("unauthorized")

// authMiddleware resolves the bearer session key of every request into an
// identity. Protocol handshake methods pass through.
func authMiddleware(sessions SessionService) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			if method == "initialize" || method == "ping" || strings.HasPrefix(method, "notifications/") {
				return next(ctx, method, req)
			}

			extra := req.GetExtra()
			if extra == nil || extra.Header == nil {
				return nil, fmt.Errorf("%w: missing headers", ErrUnauthorized)
			}

			auth := extra.Header.Get("Authorization")
			key := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			if key == "" {
				return nil, fmt.Errorf("%w: missing bearer token", ErrUnauthorized)
			}
			if sessions == nil {
				return nil, fmt.Errorf("%w: no session store", ErrUnauthorized)
			}

			id, err := sessions.Resolve(ctx, key)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
			}
			if !id.Authenticated() {
				return nil, fmt.Errorf("%w: invalid bearer token", ErrUnauthorized)
			}

			return next(identity.WithIdentity(ctx, id), method, req)
		}
	}
}
