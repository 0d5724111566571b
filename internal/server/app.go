// Package server wires storage, the session manager and the HTTP transport
// into a runnable application.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/iudanet/gophauth/internal/config"
	"github.com/iudanet/gophauth/internal/server/auth"
	"github.com/iudanet/gophauth/internal/server/handlers"
	"github.com/iudanet/gophauth/internal/server/jwt"
	"github.com/iudanet/gophauth/internal/server/mail"
	"github.com/iudanet/gophauth/internal/server/storage"
	"github.com/iudanet/gophauth/internal/server/storage/postgres"
	"github.com/iudanet/gophauth/internal/server/storage/sqlite"
)

// Store is a user storage backed by a database connection
type Store interface {
	storage.UserStorage
	Ping(ctx context.Context) error
	Close() error
}

// App is the configured server
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   Store
	mailer  mail.Sender
	service *auth.Service
	server  *http.Server
	version string
}

// Option configures an App
type Option func(*App)

// WithMailer replaces the mail sender chosen from the config
func WithMailer(sender mail.Sender) Option {
	return func(a *App) {
		a.mailer = sender
	}
}

// NewLogger builds the JSON server logger
func NewLogger(cfg *config.Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
}

// NewApp opens the store and builds the HTTP server
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, version string, opts ...Option) (*App, error) {
	app := &App{cfg: cfg, logger: logger, version: version}
	for _, opt := range opts {
		opt(app)
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.store = store

	codec, err := jwt.NewCodec(jwt.Config{
		Issuer:        cfg.TokenIssuer,
		AccessSecret:  []byte(cfg.AccessTokenSecret),
		RefreshSecret: []byte(cfg.RefreshTokenSecret),
		AccessTTL:     cfg.AccessTokenTTL,
		RefreshTTL:    cfg.RefreshTokenTTL,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("token codec: %w", err)
	}

	if app.mailer == nil {
		app.mailer = newMailer(cfg, logger)
	}

	app.service = auth.NewService(store, codec, app.mailer, logger, auth.Config{
		ResetTTL:     cfg.ResetTokenTTL,
		StoreTimeout: cfg.StoreTimeout,
	})

	app.server = &http.Server{
		Addr: cfg.Address,
		Handler: NewRouter(RouterConfig{
			Logger:     logger,
			Service:    app.service,
			Verifier:   codec,
			DB:         store,
			Cookie:     handlers.CookieConfig{TTL: cfg.RefreshTokenTTL, Secure: cfg.CookieSecure},
			CORSOrigin: cfg.CORSOrigin,
			Version:    version,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return app, nil
}

// Handler returns the root HTTP handler
func (a *App) Handler() http.Handler {
	return a.server.Handler
}

// Run sweeps stale reset tokens, serves HTTP until ctx is done and then
// shuts down gracefully
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	if _, err := a.service.SweepExpiredResets(ctx); err != nil {
		a.logger.WarnContext(ctx, "Startup sweep of reset tokens failed", slog.Any("error", err))
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("Starting HTTP server", slog.String("address", a.cfg.Address))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	return nil
}

// Close releases the store and pending timers without serving
func (a *App) Close() {
	a.close()
}

func (a *App) close() {
	a.service.Close()
	if err := a.store.Close(); err != nil {
		a.logger.Error("Failed to close store", slog.Any("error", err))
	}
}

func openStore(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.DatabaseDriver {
	case config.DriverPostgres:
		store, err := postgres.New(ctx, cfg.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("postgres store: %w", err)
		}
		return store, nil
	case config.DriverSQLite:
		store, err := sqlite.New(ctx, cfg.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("sqlite store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}
}

func newMailer(cfg *config.Config, logger *slog.Logger) mail.Sender {
	if cfg.MailProvider == config.MailProviderSendGrid {
		return mail.NewSendGridSender(mail.SendGridConfig{
			APIKey:   cfg.SendGridAPIKey,
			From:     cfg.MailFrom,
			FromName: cfg.MailFromName,
			ResetURL: cfg.ResetURL,
		}, logger)
	}
	return mail.NewConsoleSender(os.Stderr, cfg.ResetURL, logger)
}
