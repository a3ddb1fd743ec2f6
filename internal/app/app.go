// Package app provides application lifecycle management for the repository server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/stacklok/toolhive-repo-server/internal/config"
)

// RepoApp encapsulates all components needed to run the repository API server.
// It provides lifecycle management and graceful shutdown capabilities.
type RepoApp struct {
	config     *config.Config
	components *AppComponents
	httpServer *http.Server
}

// Start starts the HTTP server.
// This method blocks until the HTTP server stops or encounters an error.
func (app *RepoApp) Start() error {
	slog.Info("Server listening", "address", app.httpServer.Addr)
	if err := app.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	return nil
}

// StartWithListener serves on an existing listener, blocking like Start
func (app *RepoApp) StartWithListener(listener net.Listener) error {
	slog.Info("Server listening", "address", listener.Addr().String())
	if err := app.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	return nil
}

// Stop gracefully stops the application with the given timeout.
// Running clones are canceled first, then the HTTP server drains and telemetry is flushed.
func (app *RepoApp) Stop(timeout time.Duration) error {
	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error

	if err := app.components.CloneCoordinator.Shutdown(shutdownCtx); err != nil {
		slog.Error("Failed to stop clone coordinator", "error", err)
		errs = append(errs, fmt.Errorf("clone coordinator shutdown: %w", err))
	}

	if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server forced to shutdown: %w", err))
	}

	if app.components.Telemetry != nil {
		if err := app.components.Telemetry.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shutdown telemetry", "error", err)
			errs = append(errs, err)
		}
	}

	if len(errs) == 0 {
		slog.Info("Server shutdown complete")
	}
	return errors.Join(errs...)
}

// GetConfig returns the application configuration
func (app *RepoApp) GetConfig() *config.Config {
	return app.config
}

// GetHTTPServer returns the HTTP server (useful for testing to get the actual port)
func (app *RepoApp) GetHTTPServer() *http.Server {
	return app.httpServer
}

// GetComponents returns the application components
func (app *RepoApp) GetComponents() *AppComponents {
	return app.components
}
