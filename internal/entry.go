// Package internal provides the main application initialization and runtime logic.
package internal

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
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/hikelog/internal/api"
	"github.com/starford/hikelog/internal/calendar"
	"github.com/starford/hikelog/internal/hikeservice"
	"github.com/starford/hikelog/internal/inbox"
	"github.com/starford/hikelog/internal/live"
	"github.com/starford/hikelog/internal/mcpserver"
	"github.com/starford/hikelog/internal/photos"
	"github.com/starford/hikelog/internal/store"
)

// components are the pieces every command needs.
type components struct {
	logger *slog.Logger
	conn   *store.Connector
	photos *photos.Store
	svc    *hikeservice.Service
}

func (c *components) Close() {
	if err := c.conn.Close(); err != nil {
		c.logger.Warn("close database failed", slog.String("error", err.Error()))
	}
}

// setup applies opts, configures logging and opens the store and
// collaborators. notifier may be nil.
func setup(ctx context.Context, notifier hikeservice.Notifier, opts ...Option) (*components, *Config, error) {
	app := &application{logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, nil, fmt.Errorf("config is required")
	}
	cfg := app.config

	logger := newLogger(app.logOutput, cfg.App.LogLevel)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("sqlite_driver", cfg.SQLite.Driver),
		slog.String("photos_dir", cfg.Photos.Dir),
		slog.Bool("inbox_enabled", cfg.Inbox.Enabled),
		slog.String("calendar_platform", cfg.Calendar.Platform),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure the database directory exists.
	if err := os.MkdirAll(filepath.Dir(cfg.SQLite.Path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create database dir: %w", err)
	}

	conn := store.NewConnector(cfg.SQLite.StoreConfig())
	db, err := conn.Conn(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("init store: %w", err)
	}

	ps, err := photos.NewStore(cfg.Photos.Dir)
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("init photos: %w", err)
	}

	adder, err := calendar.New(cfg.Calendar.Platform, cfg.Calendar.Dir)
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("init calendar: %w", err)
	}

	svc := hikeservice.NewService(db, notifier,
		hikeservice.WithPhotos(ps),
		hikeservice.WithCalendar(adder),
		hikeservice.WithLogger(logger),
	)
	return &components{logger: logger, conn: conn, photos: ps, svc: svc}, cfg, nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// Run starts the HTTP server, the live hike list and, when enabled, the
// import inbox. It returns after a shutdown signal or a fatal error.
func Run(ctx context.Context, opts ...Option) error {
	broker := live.NewBroker()
	defer broker.Close()

	c, cfg, err := setup(ctx, broker, opts...)
	if err != nil {
		return err
	}
	defer c.Close()
	logger := c.logger

	hikes := live.NewHikeList(broker, c.svc.ListHikes, logger)

	apiRouter := api.NewRouter(c.svc, broker, c.photos, cfg.Auth.AuthEnabled(), cfg.Auth.Token)
	apiRouter.Get("/live/hikes", api.LiveHikes(hikes))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := c.conn.Conn(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		return hikes.Run(gCtx)
	})

	if cfg.Inbox.Enabled {
		g.Go(func() error {
			return inbox.Watch(gCtx, cfg.Inbox.Dir, c.svc, logger, nil)
		})
	}

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		// Stop the list and the inbox too.
		cancel()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the MCP tools over stdio until the client disconnects.
func RunMCP(ctx context.Context, opts ...Option) error {
	c, _, err := setup(ctx, nil, opts...)
	if err != nil {
		return err
	}
	defer c.Close()

	c.logger.Info("MCP server starting on stdio")
	return mcpserver.New(c.svc).ServeStdio()
}

// Export writes the shareable text of one hike to w.
func Export(ctx context.Context, id int64, w io.Writer, opts ...Option) error {
	c, _, err := setup(ctx, nil, opts...)
	if err != nil {
		return err
	}
	defer c.Close()

	text, err := c.svc.ExportHike(ctx, id)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, text)
	return err
}

// Import stores the hike encoded in text.
func Import(ctx context.Context, text string, opts ...Option) (hikeservice.ImportResult, error) {
	c, _, err := setup(ctx, nil, opts...)
	if err != nil {
		return hikeservice.ImportResult{}, err
	}
	defer c.Close()

	return c.svc.ImportFromText(ctx, text), nil
}
