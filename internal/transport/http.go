package transport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rpggio/timeline/internal/domain/activity"
	"github.com/rpggio/timeline/internal/graph"
	"github.com/rpggio/timeline/internal/identity"
)

// PrimaryAdapter renders the caller's primary provider resources.
type PrimaryAdapter interface {
	UserProfile(ctx context.Context, c *graph.Client, email identity.Email, ch graph.Challenger) string
	UserPhoto(ctx context.Context, c *graph.Client, email identity.Email, ch graph.Challenger) string
	UserCalendar(ctx context.Context, c *graph.Client, email identity.Email, ch graph.Challenger) string
	UserInsights(ctx context.Context, c *graph.Client, email identity.Email, ch graph.Challenger) string
	UserFiles(ctx context.Context, c *graph.Client, email identity.Email, ch graph.Challenger) string
	UserReceivedMail(ctx context.Context, c *graph.Client, email identity.Email, ch graph.Challenger) string
	UserSentMail(ctx context.Context, c *graph.Client, email identity.Email, ch graph.Challenger) string
	Source(c *graph.Client) activity.PrimarySource
}

// TimelineBuilder merges the caller's activity into one timeline.
type TimelineBuilder interface {
	Timeline(ctx context.Context, primary activity.PrimarySource, email identity.Email) ([]activity.Item, error)
}

// DocumentAdapter reads the caller's recent documents.
type DocumentAdapter interface {
	RecentDocuments(ctx context.Context, email identity.Email) (string, error)
}

// ClientFactory builds the primary provider handle for an identity.
type ClientFactory func(id *identity.Identity) *graph.Client

// Services holds everything the view handlers call.
type Services struct {
	Graph     PrimaryAdapter
	Timeline  TimelineBuilder
	Documents DocumentAdapter
	Clients   ClientFactory
	Sessions  SessionRevoker
}

// Config wires the HTTP server.
type Config struct {
	Services Services
	Resolver IdentityResolver
	// MCP is mounted at /mcp when set.
	MCP    http.Handler
	Logger *slog.Logger
}

// Server serves the timeline views.
type Server struct {
	services Services
	logger   *slog.Logger
}

// NewServer creates an HTTP server router with middleware.
func NewServer(cfg Config) *chi.Mux {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	srv := &Server{services: cfg.Services, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", srv.handleHealth)
	if cfg.MCP != nil {
		r.Handle("/mcp", cfg.MCP)
		r.Handle("/mcp/*", cfg.MCP)
	}

	r.Group(func(r chi.Router) {
		if cfg.Resolver != nil {
			r.Use(IdentityMiddleware(cfg.Resolver, logger))
		}
		r.Get("/", srv.handleHome)
		r.Get("/timeline", srv.handleTimeline)
		r.Get("/calendar", srv.graphView(TitleCalendar, true, PrimaryAdapter.UserCalendar))
		r.Get("/insights", srv.graphView(TitleInsights, false, PrimaryAdapter.UserInsights))
		r.Get("/files", srv.graphView(TitleFiles, false, PrimaryAdapter.UserFiles))
		r.Get("/mail/received", srv.graphView(TitleReceivedMail, false, PrimaryAdapter.UserReceivedMail))
		r.Get("/mail/sent", srv.graphView(TitleSentMail, false, PrimaryAdapter.UserSentMail))
		r.Get("/documents", srv.handleDocuments)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
