package state

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stacklok/recordsync/internal/logging"
	"github.com/stacklok/recordsync/internal/status"
)

type fileStateService struct {
	statusPersistence status.StatusPersistence

	mu             sync.RWMutex
	cachedStatuses map[string]*status.SyncStatus
}

// NewFileStateService creates a state service cached in memory and persisted through statusPersistence
func NewFileStateService(statusPersistence status.StatusPersistence) RecordTypeStateService {
	return &fileStateService{
		statusPersistence: statusPersistence,
		cachedStatuses:    make(map[string]*status.SyncStatus),
	}
}

func (f *fileStateService) Initialize(ctx context.Context, recordTypes []string) error {
	statuses := make(map[string]*status.SyncStatus, len(recordTypes))
	for _, rt := range recordTypes {
		statuses[rt] = f.loadOrInitializeStatus(ctx, rt)
	}

	f.mu.Lock()
	f.cachedStatuses = statuses
	f.mu.Unlock()
	return nil
}

func (f *fileStateService) ListSyncStatuses(_ context.Context) (map[string]*status.SyncStatus, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	result := make(map[string]*status.SyncStatus, len(f.cachedStatuses))
	for rt, syncStatus := range f.cachedStatuses {
		if syncStatus != nil {
			statusCopy := *syncStatus
			result[rt] = &statusCopy
		}
	}
	return result, nil
}

func (f *fileStateService) GetSyncStatus(_ context.Context, recordType string) (*status.SyncStatus, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	syncStatus, exists := f.cachedStatuses[recordType]
	if !exists || syncStatus == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRecordType, recordType)
	}
	statusCopy := *syncStatus
	return &statusCopy, nil
}

func (f *fileStateService) UpdateStatusAtomically(
	ctx context.Context,
	recordType string,
	testAndUpdateFn func(syncStatus *status.SyncStatus) bool,
) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	syncStatus, exists := f.cachedStatuses[recordType]
	if !exists || syncStatus == nil {
		return false, fmt.Errorf("%w: %s", ErrUnknownRecordType, recordType)
	}

	// The callback works on a copy so a failed save leaves the cache untouched.
	working := *syncStatus
	if !testAndUpdateFn(&working) {
		return false, nil
	}
	if err := f.statusPersistence.SaveStatus(ctx, recordType, &working); err != nil {
		return false, err
	}
	f.cachedStatuses[recordType] = &working
	return true, nil
}

func (f *fileStateService) UpdateSyncStatus(ctx context.Context, recordType string, syncStatus *status.SyncStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.statusPersistence.SaveStatus(ctx, recordType, syncStatus); err != nil {
		return err
	}
	statusCopy := *syncStatus
	f.cachedStatuses[recordType] = &statusCopy
	return nil
}

func (f *fileStateService) loadOrInitializeStatus(ctx context.Context, recordType string) *status.SyncStatus {
	logger := logging.FromContext(ctx).With("record_type", recordType)

	syncStatus, err := f.statusPersistence.LoadStatus(ctx, recordType)
	if err != nil {
		logger.Warn("Failed to load sync status, initializing with defaults", "error", err)
		return &status.SyncStatus{
			Phase:   status.SyncPhaseFailed,
			Message: "No previous sync status found",
		}
	}

	switch {
	case syncStatus.Phase == "" && syncStatus.LastSyncTime == nil:
		logger.Info("No previous sync status found, initializing with defaults")
		syncStatus.Phase = status.SyncPhaseFailed
		syncStatus.Message = "No previous sync status found"
		if err := f.statusPersistence.SaveStatus(ctx, recordType, syncStatus); err != nil {
			logger.Warn("Failed to persist default sync status", "error", err)
		}
	case syncStatus.Phase == status.SyncPhaseSyncing:
		// Only one process holds the local store, so a Syncing status means
		// the previous run was interrupted.
		logger.Warn("Previous sync was interrupted, resetting to Failed")
		syncStatus.Phase = status.SyncPhaseFailed
		syncStatus.Message = "Previous sync was interrupted"
		if err := f.statusPersistence.SaveStatus(ctx, recordType, syncStatus); err != nil {
			logger.Warn("Failed to persist corrected sync status", "error", err)
		}
	}

	if syncStatus.LastSyncTime != nil {
		logger.Info("Loaded sync status",
			"phase", syncStatus.Phase,
			"last_sync", syncStatus.LastSyncTime.Format(time.RFC3339),
			"records", syncStatus.RecordCount)
	} else {
		logger.Info("Loaded sync status", "phase", syncStatus.Phase)
	}
	return syncStatus
}
