// Package state keeps the per-record-type sync status the process persists.
package state

import (
	"context"
	"errors"

	"github.com/stacklok/recordsync/internal/status"
)

// ErrUnknownRecordType is returned for a record type that was not initialized.
var ErrUnknownRecordType = errors.New("sync status not found")

// RecordTypeStateService provides methods for inspecting and updating the sync state of record types.
//
//go:generate mockgen -destination=mocks/mock_record_type_state_service.go -package=mocks github.com/stacklok/recordsync/internal/sync/state RecordTypeStateService
type RecordTypeStateService interface {
	// Initialize populates the state store with the set of record types.
	// It is intended to be called at startup, and it overwrites any
	// previous in-memory state.
	Initialize(ctx context.Context, recordTypes []string) error
	// ListSyncStatuses lists all available sync statuses.
	ListSyncStatuses(ctx context.Context) (map[string]*status.SyncStatus, error)
	// GetSyncStatus returns the status of one record type.
	GetSyncStatus(ctx context.Context, recordType string) (*status.SyncStatus, error)
	// UpdateSyncStatus replaces the status of one record type.
	UpdateSyncStatus(ctx context.Context, recordType string, syncStatus *status.SyncStatus) error
	// UpdateStatusAtomically fetches the current status, applies testAndUpdateFn
	// to it, and persists it if the function reports a change, as one atomic
	// action. It returns whether the status was modified.
	UpdateStatusAtomically(
		ctx context.Context,
		recordType string,
		testAndUpdateFn func(syncStatus *status.SyncStatus) bool,
	) (bool, error)
}
