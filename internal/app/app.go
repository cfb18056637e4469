// Package app wires together store, auth, and transport layers.
package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/kurspanel/kurspanel-server/internal/auth"
	"github.com/kurspanel/kurspanel-server/internal/catalog"
	"github.com/kurspanel/kurspanel-server/internal/config"
	"github.com/kurspanel/kurspanel-server/internal/store/sqlite"
	transporthttp "github.com/kurspanel/kurspanel-server/internal/transport/http"
)

// App holds the assembled server and its resources.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	store           *sqlite.Store
	log             *zerolog.Logger
}

// New constructs the application with the provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath, logger)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")
	st.SetBacklog(cfg.ChatWindow)

	// Fee overrides only matter to embedded sync sessions, but a typo in the
	// config should fail startup, not a report months later.
	if _, err := catalog.Default().WithFees(cfg.Fees); err != nil {
		st.Close()
		return nil, fmt.Errorf("fee overrides: %w", err)
	}

	if err := seedSchools(cfg, st); err != nil {
		st.Close()
		return nil, fmt.Errorf("seed schools: %w", err)
	}

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.TokenTTL,
	}
	authService := auth.NewService(st, jwtConfig)

	server := transporthttp.NewServer(st, authService, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		store:           st,
		log:             logger,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// seedSchools provisions configured schools. Passwords from the config file
// are hashed here; existing rows keep their candidate counts.
func seedSchools(cfg *config.Config, st *sqlite.Store) error {
	if len(cfg.Schools) == 0 {
		return nil
	}

	seeds := make([]sqlite.Seed, 0, len(cfg.Schools))
	for _, s := range cfg.Schools {
		hash, err := auth.HashPassword(s.Password)
		if err != nil {
			return fmt.Errorf("hash password for %s: %w", s.ID, err)
		}
		seeds = append(seeds, sqlite.Seed{ID: s.ID, Name: s.Name, PasswordHash: hash})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return st.SeedSchools(ctx, seeds)
}

// cleanup closes the database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
