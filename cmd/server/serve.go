package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/bcnelson/position-admin/internal/api"
	"github.com/bcnelson/position-admin/internal/auth"
	"github.com/bcnelson/position-admin/internal/backfill"
	"github.com/bcnelson/position-admin/internal/master"
	"github.com/bcnelson/position-admin/internal/service"
	"github.com/bcnelson/position-admin/internal/telemetry"
	"github.com/bcnelson/position-admin/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the admin console and the sync-out export",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	env, err := setup()
	if err != nil {
		return err
	}
	defer env.Close()
	cfg, log := env.cfg, env.logger

	tel, err := telemetry.NewTelemetry(log)
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			log.Warn("telemetry shutdown", zap.Error(err))
		}
	}()

	// Master server client (or file shim for testing)
	var source master.PositionSource
	switch {
	case cfg.Sync.UseFileShim():
		log.Info("importing positions from file shim", zap.String("path", cfg.Sync.FileShim))
		source = master.NewFileShim(cfg.Sync.FileShim)
	case cfg.Sync.PositionsURL != "":
		client, err := master.New(master.Options{
			URL:      cfg.Sync.PositionsURL,
			APIKey:   cfg.Sync.APIKey,
			Timeout:  cfg.Sync.Timeout,
			Attempts: cfg.Sync.Attempts,
		}, log)
		if err != nil {
			return fmt.Errorf("initializing master client: %w", err)
		}
		source = client
	default:
		log.Info("no master server configured, imports disabled")
	}

	syncService, err := service.NewSyncService(env.store, source, log, tel.Meter)
	if err != nil {
		return fmt.Errorf("initializing sync service: %w", err)
	}

	bf, err := backfill.NewService(env.store, log, backfill.Options{
		BatchSize:           cfg.Backfill.BatchSize,
		PoliticianBatchSize: cfg.Backfill.PoliticianBatchSize,
		Meter:               tel.Meter,
	})
	if err != nil {
		return fmt.Errorf("initializing backfill service: %w", err)
	}

	secret, err := cfg.Session.SecretBytes()
	if err != nil {
		return err
	}
	sessions, err := auth.NewSessionManager(secret, cfg.Session.Duration, cfg.Session.Secure)
	if err != nil {
		return fmt.Errorf("initializing sessions: %w", err)
	}
	flashes, err := web.NewFlashStore(secret, cfg.Session.Secure)
	if err != nil {
		return fmt.Errorf("initializing flash messages: %w", err)
	}

	var oidc *web.OIDCComponents
	if cfg.OIDC.Enabled {
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		provider, err := auth.NewOIDCProvider(ctx,
			cfg.OIDC.IssuerURL,
			cfg.OIDC.ClientID,
			cfg.OIDC.ClientSecret,
			cfg.OIDC.RedirectURL,
			cfg.OIDC.GetScopes(),
			cfg.OIDC.GetAllowedDomains(),
		)
		cancel()
		if err != nil {
			return fmt.Errorf("initializing OIDC provider: %w", err)
		}
		stateStore, err := auth.NewStateStore(secret, cfg.Session.Secure)
		if err != nil {
			return fmt.Errorf("initializing OIDC state store: %w", err)
		}
		oidc = &web.OIDCComponents{Provider: provider, StateStore: stateStore}
		log.Info("OIDC sign-in enabled", zap.String("issuer", cfg.OIDC.IssuerURL))
	}

	webRouter, err := web.NewRouter(web.Options{
		Store:    env.store,
		Sync:     syncService,
		Backfill: bf,
		Sessions: sessions,
		Flashes:  flashes,
		OIDC:     oidc,
		Logger:   log,
		SyncURL:  cfg.Sync.PositionsURL,
		RootURL:  cfg.Server.RootURL,
	})
	if err != nil {
		return fmt.Errorf("creating web router: %w", err)
	}

	router, err := api.NewRouter(api.Options{
		Web:           webRouter,
		Sync:          syncService,
		Metrics:       tel.Handler(),
		Meter:         tel.Meter,
		Logger:        log,
		ExportLimiter: rate.NewLimiter(rate.Limit(cfg.Sync.ExportRPS), cfg.Sync.ExportBurst),
		ExportAPIKey:  cfg.Sync.ExportAPIKey,
	})
	if err != nil {
		return fmt.Errorf("creating router: %w", err)
	}

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Info("starting position admin", zap.String("addr", cfg.Server.Addr()), zap.String("version", version))

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("server stopped")
	return nil
}
