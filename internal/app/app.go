// Package app provides application lifecycle management for recordsync.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/stacklok/recordsync/internal/config"
)

// SyncApp encapsulates all components needed to run the synchronizer
// It provides lifecycle management and graceful shutdown capabilities
type SyncApp struct {
	config     *config.Config
	components *AppComponents
	httpServer *http.Server

	// Lifecycle management
	ctx        context.Context
	cancelFunc context.CancelFunc
	closeOnce  sync.Once
}

// Start starts the application components (notification server and background sync)
// This method blocks until the HTTP server stops or encounters an error
func (app *SyncApp) Start() error {
	listener, err := net.Listen("tcp", app.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", app.httpServer.Addr, err)
	}
	return app.Serve(listener)
}

// Serve is Start on an existing listener
func (app *SyncApp) Serve(listener net.Listener) error {
	// Start sync coordinator in background
	go func() {
		if err := app.components.SyncCoordinator.Start(app.ctx); err != nil {
			slog.Error("Sync coordinator failed", "error", err)
		}
	}()

	// Start HTTP server (blocks until stopped)
	slog.Info("Server listening", "address", listener.Addr().String())
	if err := app.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	return nil
}

// RunOnce syncs recordTypes, all of them when none are given, without
// starting the notification server, and releases the app's resources.
func (app *SyncApp) RunOnce(ctx context.Context, recordTypes ...string) error {
	defer app.Close()
	return app.components.SyncCoordinator.RunOnce(ctx, recordTypes...)
}

// Stop gracefully stops the application with the given timeout
// It stops the sync coordinator, shuts down the HTTP server and releases the store
func (app *SyncApp) Stop(timeout time.Duration) error {
	slog.Info("Shutting down server...")

	// Stop sync coordinator first
	if err := app.components.SyncCoordinator.Stop(); err != nil {
		slog.Error("Failed to stop sync coordinator", "error", err)
	}

	// Graceful HTTP server shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := app.httpServer.Shutdown(shutdownCtx)
	app.Close()
	if err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	slog.Info("Server shutdown complete")
	return nil
}

// Close releases the targets and stops the store worker, which closes the store.
// It is safe to call more than once.
func (app *SyncApp) Close() {
	app.closeOnce.Do(func() {
		if app.cancelFunc != nil {
			app.cancelFunc()
		}
		if app.components.Engine != nil {
			app.components.Engine.Close()
		}
		if app.components.Storage != nil {
			app.components.Storage.Cleanup()
		}
	})
}

// GetConfig returns the application configuration
func (app *SyncApp) GetConfig() *config.Config {
	return app.config
}

// GetHTTPServer returns the HTTP server
func (app *SyncApp) GetHTTPServer() *http.Server {
	return app.httpServer
}

// Components returns the application components
func (app *SyncApp) Components() *AppComponents {
	return app.components
}
