package mcp

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rpggio/timeline/internal/domain/activity"
	"github.com/rpggio/timeline/internal/graph"
	"github.com/rpggio/timeline/internal/identity"
)

// GraphService defines the primary provider operations needed by MCP.
type GraphService interface {
	UserProfile(ctx context.Context, c *graph.Client, email identity.Email, ch graph.Challenger) string
	UserPhoto(ctx context.Context, c *graph.Client, email identity.Email, ch graph.Challenger) string
	UserCalendar(ctx context.Context, c *graph.Client, email identity.Email, ch graph.Challenger) string
	UserInsights(ctx context.Context, c *graph.Client, email identity.Email, ch graph.Challenger) string
	UserFiles(ctx context.Context, c *graph.Client, email identity.Email, ch graph.Challenger) string
	UserReceivedMail(ctx context.Context, c *graph.Client, email identity.Email, ch graph.Challenger) string
	UserSentMail(ctx context.Context, c *graph.Client, email identity.Email, ch graph.Challenger) string
	Source(c *graph.Client) activity.PrimarySource
}

// TimelineService defines timeline operations needed by MCP.
type TimelineService interface {
	Timeline(ctx context.Context, primary activity.PrimarySource, email identity.Email) ([]activity.Item, error)
}

// DocumentService defines secondary provider operations needed by MCP.
type DocumentService interface {
	RecentDocuments(ctx context.Context, email identity.Email) (string, error)
}

// SessionService resolves and revokes stored sessions.
type SessionService interface {
	Resolve(ctx context.Context, key string) (*identity.Identity, error)
	Revoke(ctx context.Context, id string) error
}

// Services contains all domain services needed by MCP.
type Services struct {
	Graph     GraphService
	Timeline  TimelineService
	Documents DocumentService
	Sessions  SessionService
	Clients   func(id *identity.Identity) *graph.Client
}

// Config contains server configuration.
type Config struct {
	Services Services
	Logger   *slog.Logger
	Version  string
}

// NewServer creates and configures an MCP server with all tools and middleware.
func NewServer(cfg Config) *sdkmcp.Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "timeline",
		Version: version,
	}, &sdkmcp.ServerOptions{
		Instructions: serverInstructions,
		Logger:       logger,
	})

	registerDocResources(server)

	// Middleware added last runs first, so auth wraps the inbound log.
	server.AddReceivingMiddleware(trafficLoggingMiddleware(logger, "inbound"))
	server.AddReceivingMiddleware(authMiddleware(cfg.Services.Sessions))
	server.AddSendingMiddleware(trafficLoggingMiddleware(logger, "outbound"))

	registerTools(server, cfg.Services, logger)

	return server
}

// NewHTTPHandler serves the MCP server over streamable HTTP.
func NewHTTPHandler(server *sdkmcp.Server) http.Handler {
	return sdkmcp.NewStreamableHTTPHandler(
		func(*http.Request) *sdkmcp.Server { return server },
		&sdkmcp.StreamableHTTPOptions{
			SessionTimeout: 30 * time.Minute,
		},
	)
}
