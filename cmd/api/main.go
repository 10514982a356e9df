// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	app "finflow-ledger/internal"
	"finflow-ledger/internal/api/handler"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Cancelled on SIGINT/SIGTERM; also aborts a slow startup (DB ping, redis ping, broker dial).
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application := app.NewApplication()
	if err := application.Initialize(ctx); err != nil {
		application.Logger.Error("Failed to initialize application", "error", err)
		// Close whatever was opened before the failure.
		_ = application.Shutdown(context.Background())
		os.Exit(1)
	}
	cfg := application.Config

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      application.HTTPHandler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: handler.DefaultTimeout + 5*time.Second, // must outlast the router's request timeout
		IdleTimeout:  120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		application.Logger.Info("Starting ledger HTTP server",
			"port", cfg.ServerPort,
			"lock_backend", cfg.Lock.Backend,
			"lock_timeout", cfg.Lock.Timeout,
			"db_lock_timeout", cfg.DB.LockTimeout,
			"rates_file", cfg.RatesFile,
			"events_enabled", cfg.AMQP.URI != "",
		)
		serveErr <- server.ListenAndServe()
	}()

	exitCode := 0
	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			application.Logger.Error("HTTP server failed", "error", err)
			exitCode = 1
		}
	case <-ctx.Done():
		application.Logger.Info("Shutdown signal received, draining in-flight ledger operations...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Drain HTTP before closing the DB and lock backend.
	if err := server.Shutdown(shutdownCtx); err != nil {
		application.Logger.Error("HTTP server shutdown failed", "error", err)
		exitCode = 1
	}
	if err := application.Shutdown(shutdownCtx); err != nil {
		application.Logger.Error("Application shutdown failed", "error", err)
		exitCode = 1
	}

	if exitCode == 0 {
		application.Logger.Info("Ledger service stopped.")
	}
	os.Exit(exitCode)
}
