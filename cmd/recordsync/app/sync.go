package app

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/stacklok/recordsync/internal/app"
)

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync record types once and exit",
		Long: `Fetch every configured record type, or only those named with --record-type,
into the local store and exit. Sync status is recorded exactly as the daemon
records it. The command fails if any record type fails to sync.`,
		RunE: runSync,
	}
	cmd.Flags().StringSlice("record-type", nil, "Record type to sync (repeatable, default all)")
	return cmd
}

func runSync(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	recordTypes, err := cmd.Flags().GetStringSlice("record-type")
	if err != nil {
		return fmt.Errorf("failed to read record-type flag: %w", err)
	}

	syncApp, err := app.NewSyncApp(ctx, app.WithConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}

	if err := syncApp.RunOnce(ctx, recordTypes...); err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), "Sync completed")
	return err
}
