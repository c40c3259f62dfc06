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

	"agendabot-backend/internal/app"
	"agendabot-backend/internal/config"
	"agendabot-backend/internal/logging"
	"agendabot-backend/internal/messaging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := app.OpenStore(ctx, cfg.Store)
	if err != nil {
		logger.Error("failed to open store", "backend", cfg.Store.Backend, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	if cfg.Google.ClientID == "" {
		logger.Warn("GOOGLE_CLIENT_ID not set, calendar linking will fail")
	}
	if cfg.Messaging.APIKey == "" {
		logger.Warn("WASENDER_API_KEY not set, outbound messages will be rejected")
	}

	svc := app.NewServices(cfg, st, logger)

	// A webhook reply can wait out the full retry policy before the 200 is written.
	if budget := messaging.RetryBudget(cfg.Messaging.SendTimeout); cfg.HTTP.WriteTimeout < budget {
		logger.Warn("SERVER_WRITE_TIMEOUT is shorter than the send retry budget; slow replies will be acknowledged on a closed connection",
			"write_timeout", cfg.HTTP.WriteTimeout, "retry_budget", budget)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      app.NewRouter(cfg, svc, logger),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("🚀 agendabot backend starting", "addr", srv.Addr, "store", cfg.Store.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
	if err := svc.Callbacks.Wait(shutdownCtx); err != nil {
		logger.Warn("calendar link confirmations still pending", "error", err)
	}
	logger.Info("server stopped")
}
