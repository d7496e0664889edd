package app

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/stacklok/recordsync/internal/status"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the sync status of every record type",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			persistence := status.NewFileStatusPersistence(cfg.Store.StatusDir)
			statuses, err := persistence.LoadAllStatus(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to load sync status: %w", err)
			}
			return renderStatus(cmd.OutOrStdout(), cfg.RecordTypeNames(), statuses)
		},
	}
}

// renderStatus prints one row per configured record type
func renderStatus(out io.Writer, recordTypes []string, statuses map[string]*status.SyncStatus) error {
	table := tablewriter.NewWriter(out)
	table.Header("Record Type", "Phase", "Records", "Last Sync", "Attempts", "Message")

	for _, rt := range recordTypes {
		s, ok := statuses[rt]
		if !ok || s == nil {
			if err := table.Append(rt, color.New(color.FgHiBlack).Sprint("Never"), "-", "-", "-", ""); err != nil {
				return err
			}
			continue
		}

		lastSync := "-"
		if s.LastSyncTime != nil {
			lastSync = s.LastSyncTime.Local().Format(time.DateTime)
		}
		if err := table.Append(
			rt,
			phaseColor(s.Phase).Sprint(string(s.Phase)),
			fmt.Sprint(s.RecordCount),
			lastSync,
			fmt.Sprint(s.AttemptCount),
			s.Message,
		); err != nil {
			return err
		}
	}
	return table.Render()
}

func phaseColor(phase status.SyncPhase) *color.Color {
	switch phase {
	case status.SyncPhaseComplete:
		return color.New(color.FgGreen)
	case status.SyncPhaseSyncing:
		return color.New(color.FgYellow)
	case status.SyncPhaseFailed:
		return color.New(color.FgRed)
	default:
		return color.New(color.Reset)
	}
}
