package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/rpggio/timeline/internal/config"
	"github.com/rpggio/timeline/internal/domain/activity"
	"github.com/rpggio/timeline/internal/domain/session"
	"github.com/rpggio/timeline/internal/graph"
	"github.com/rpggio/timeline/internal/identity"
	"github.com/rpggio/timeline/internal/imanage"
	"github.com/rpggio/timeline/internal/mcp"
	"github.com/rpggio/timeline/internal/sqlite"
	"github.com/rpggio/timeline/internal/tracehttp"
	"github.com/rpggio/timeline/internal/transport"
)

var version = "dev"

func main() {
	app := &cli.App{
		Name:    "timeline",
		Usage:   "Serve a merged activity timeline from Microsoft Graph and iManage.",
		Version: version,
		Commands: []*cli.Command{
			serveCommand(),
			sessionCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("application failed", "error", err)
		os.Exit(1)
	}
}

// runtime holds what every command needs: configuration, a logger and the
// session store.
type runtime struct {
	cfg      config.Config
	logger   *slog.Logger
	db       *sqlite.DB
	sessions *session.Service
	closers  []io.Closer
}

func setup() (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	rt := &runtime{cfg: cfg}

	logWriter := io.Writer(os.Stderr)
	if cfg.Log.Path != "" {
		fileWriter, file, err := newLogFileWriter(cfg.Log.Path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "log file error: %v\n", err)
		} else {
			rt.closers = append(rt.closers, file)
			logWriter = fileWriter
		}
	}
	rt.logger = slog.New(slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))

	if err := ensureDBDir(cfg.DB.Path); err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to prepare database path: %w", err)
	}
	db, err := sqlite.New(cfg.DB.Path)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	rt.db = db
	rt.closers = append(rt.closers, db)

	if err := db.RunMigrations(); err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	rt.sessions = session.NewService(sqlite.NewSessionRepository(db), rt.logger)
	return rt, nil
}

func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		_ = rt.closers[i].Close()
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP views and the MCP endpoint.",
		Action: func(c *cli.Context) error {
			rt, err := setup()
			if err != nil {
				return err
			}
			defer rt.Close()
			return serve(c.Context, rt)
		},
	}
}

func serve(ctx context.Context, rt *runtime) error {
	cfg, logger := rt.cfg, rt.logger

	graphTransport := http.DefaultTransport
	imanageTransport := imanage.NewTransport(cfg.IManage.InsecureSkipVerify)
	if cfg.IManage.InsecureSkipVerify {
		logger.Warn("iManage certificate validation is disabled", "base_url", cfg.IManage.BaseURL)
	}
	if cfg.Log.TraceHTTP {
		graphTransport = tracehttp.Wrap(graphTransport, logger.With("provider", "graph"))
		imanageTransport = tracehttp.Wrap(imanageTransport, logger.With("provider", "imanage"))
	}
	if cfg.IManage.BaseURL == "" {
		logger.Warn("iManage base_url not set; documents and timeline requests will fail")
	}

	graphSvc := graph.NewService(logger)
	documents := imanage.NewService(imanage.Options{
		BaseURL:      cfg.IManage.BaseURL,
		ClientID:     cfg.IManage.ClientID,
		ClientSecret: cfg.IManage.ClientSecret,
		Scope:        cfg.IManage.Scope,
		UserPassword: cfg.IManage.UserPassword,
		GrantType:    cfg.IManage.GrantType,
		Transport:    imanageTransport,
	}, logger)
	timelineSvc := activity.NewService(documents, logger)
	clients := func(id *identity.Identity) *graph.Client {
		return graph.NewClient(id.AccessToken, graph.ClientOptions{
			BaseURL:     cfg.Graph.BaseURL,
			BetaBaseURL: cfg.Graph.BetaBaseURL,
			Transport:   graphTransport,
		})
	}

	var mcpHandler http.Handler
	if cfg.MCP.Enabled {
		mcpServer := mcp.NewServer(mcp.Config{
			Services: mcp.Services{
				Graph:     graphSvc,
				Timeline:  timelineSvc,
				Documents: documents,
				Sessions:  rt.sessions,
				Clients:   clients,
			},
			Logger:  logger,
			Version: version,
		})
		mcpHandler = mcp.NewHTTPHandler(mcpServer)
	}

	router := transport.NewServer(transport.Config{
		Services: transport.Services{
			Graph:     graphSvc,
			Timeline:  timelineSvc,
			Documents: documents,
			Clients:   clients,
			Sessions:  rt.sessions,
		},
		Resolver: rt.sessions,
		MCP:      mcpHandler,
		Logger:   logger,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", addr, "mcp", cfg.MCP.Enabled)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	return waitForShutdown(ctx, logger, httpServer, errCh)
}

func sessionCommand() *cli.Command {
	return &cli.Command{
		Name:  "session",
		Usage: "Manage stored sessions.",
		Subcommands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Store a provider access token and print the session key.",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Usage: "preferred_username claim of the session"},
					&cli.StringFlag{Name: "token", Usage: "Microsoft Graph access token", EnvVars: []string{"TIMELINE_ACCESS_TOKEN"}, Required: true},
				},
				Action: func(c *cli.Context) error {
					rt, err := setup()
					if err != nil {
						return err
					}
					defer rt.Close()

					result, err := rt.sessions.Create(c.Context, session.CreateRequest{
						PreferredUsername: c.String("email"),
						AccessToken:       c.String("token"),
					})
					if err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "session: %s\nkey:     %s\n", result.Session.ID, result.Key)
					return nil
				},
			},
			{
				Name:  "revoke",
				Usage: "Revoke a session.",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id", Usage: "session id", Required: true},
				},
				Action: func(c *cli.Context) error {
					rt, err := setup()
					if err != nil {
						return err
					}
					defer rt.Close()
					return rt.sessions.Revoke(c.Context, c.String("id"))
				},
			},
			{
				Name:  "list",
				Usage: "List stored sessions.",
				Action: func(c *cli.Context) error {
					rt, err := setup()
					if err != nil {
						return err
					}
					defer rt.Close()

					sessions, err := rt.sessions.List(c.Context)
					if err != nil {
						return err
					}
					return printSessions(c.App.Writer, sessions)
				},
			},
		},
	}
}

func printSessions(w io.Writer, sessions []session.Session) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tEMAIL\tCREATED\tLAST USED\tSTATUS")
	for _, s := range sessions {
		lastUsed := "-"
		if s.LastUsed != nil {
			lastUsed = s.LastUsed.Format(time.RFC3339)
		}
		status := "active"
		if s.Revoked() {
			status = "revoked"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", s.ID, s.PreferredUsername, s.CreatedAt.Format(time.RFC3339), lastUsed, status)
	}
	return tw.Flush()
}

func ensureDBDir(path string) error {
	if path == ":memory:" || path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func waitForShutdown(ctx context.Context, logger *slog.Logger, server *http.Server, errCh <-chan error) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err, ok := <-errCh:
		if ok && err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logger.Info("shutting down")
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	return nil
}
