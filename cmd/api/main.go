package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/Otise/opendatakit.build/config"
	"github.com/Otise/opendatakit.build/internal/auth"
	"github.com/Otise/opendatakit.build/internal/handler"
	"github.com/Otise/opendatakit.build/internal/repository"
	"github.com/Otise/opendatakit.build/internal/session"
	"github.com/Otise/opendatakit.build/pkg/database"
	"github.com/Otise/opendatakit.build/pkg/health"
	"github.com/Otise/opendatakit.build/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.NewWithSentry(logger.SentryConfig{
		DSN:         cfg.Sentry.DSN,
		Environment: cfg.Sentry.Environment,
	}, handler.RequestIDExtractor())
	slog.SetDefault(log)
	defer sentry.Flush(2 * time.Second)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// database
	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.Migrate(ctx, db, log); err != nil {
		return err
	}

	// sessions
	sessions, closeSessions, err := openSessionStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeSessions()

	tokens, err := auth.NewTokenIssuer(cfg.JWT.Secret)
	if err != nil {
		return err
	}

	users := repository.NewUserRepository(db)
	h := handler.NewHandler(handler.Dependencies{
		Users:    users,
		Forms:    repository.NewFormRepository(db),
		Auth:     auth.NewPasswordStrategy(users),
		Sessions: sessions,
		Tokens:   tokens,
		Cookie: handler.CookieConfig{
			Name:   cfg.Session.CookieName,
			Domain: cfg.Session.CookieDomain,
			Secure: cfg.Session.CookieSecure,
		},
		SessionTTL: cfg.JWT.Expiration,
		Checks: health.Checks{
			"database": db.Ping,
			"sessions": sessions.Ping,
		},
		Logger: log,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server started",
			slog.String("addr", srv.Addr),
			slog.String("db_driver", db.Driver),
			slog.String("session_store", cfg.Session.Store),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

// openSessionStore builds the configured session backend. In-memory sessions
// are pruned on a cron schedule; Redis expires keys itself.
func openSessionStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (session.Store, func(), error) {
	switch cfg.Session.Store {
	case "redis":
		client, err := database.ConnectRedis(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			if err := client.Close(); err != nil {
				log.Warn("close redis", slog.String("error", err.Error()))
			}
		}
		return session.NewRedis(client, ""), closeFn, nil

	default:
		store := session.NewMemory()

		c := cron.New()
		if _, err := c.AddFunc(cfg.Session.PruneSchedule, func() {
			if n := store.Prune(time.Now()); n > 0 {
				log.Info("expired sessions pruned", slog.Int("count", n))
			}
		}); err != nil {
			return nil, nil, fmt.Errorf("session prune schedule %q: %w", cfg.Session.PruneSchedule, err)
		}
		c.Start()

		return store, func() { <-c.Stop().Done() }, nil
	}
}
