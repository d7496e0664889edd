package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/stacklok/recordsync/internal/app"
	"github.com/stacklok/recordsync/internal/telemetry"
)

const (
	defaultGracefulTimeout = 30 * time.Second // Lets running fetch chains wind down
	telemetryFlushTimeout  = 5 * time.Second
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Sync continuously and receive change notifications",
		Long: `Start the sync daemon. Every configured record type is synced at startup,
again whenever its poll interval elapses, and whenever a change notification
naming its subscription arrives on the notification endpoint.`,
		RunE: runServe,
	}
	cmd.Flags().String("address", "", "Address to listen on (overrides notifications.address)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	address, err := cmd.Flags().GetString("address")
	if err != nil {
		return fmt.Errorf("failed to read address flag: %w", err)
	}
	if address == "" {
		address = cfg.Notifications.Address
	}

	tel, err := telemetry.New(ctx, telemetry.WithTelemetryConfig(cfg.Telemetry))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), telemetryFlushTimeout)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shut down telemetry", "error", err)
		}
	}()

	syncApp, err := app.NewSyncApp(ctx,
		app.WithConfig(cfg),
		app.WithAddress(address),
		app.WithMeterProvider(tel.MeterProvider()),
		app.WithTracerProvider(tel.TracerProvider()),
		app.WithMetricsHandler(tel.MetricsHandler()),
	)
	if err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- syncApp.Start()
	}()

	// Wait for interrupt signal or a server failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errChan:
		syncApp.Close()
		return err
	case sig := <-quit:
		slog.Info("Received signal", "signal", sig.String())
	}

	return syncApp.Stop(defaultGracefulTimeout)
}
