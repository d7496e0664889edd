package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/stacklok/recordsync/internal/logging"
	"github.com/stacklok/recordsync/internal/retry"
	"github.com/stacklok/recordsync/internal/status"
)

// ensureSubscriptions registers every record type's change subscription.
// A record type whose subscription cannot be saved still syncs on the poll interval.
func (c *defaultCoordinator) ensureSubscriptions(ctx context.Context, recordTypes []string) {
	logger := logging.FromContext(ctx)
	for _, rt := range recordTypes {
		if err := c.ensureSubscription(ctx, rt); err != nil {
			logger.Warn("Failed to register change subscription, relying on polling",
				"record_type", rt,
				"error", err)
			continue
		}
		logger.Info("Change subscription registered",
			"record_type", rt,
			"subscription_id", c.syncer.SubscriptionID(rt))
	}
}

// ensureSubscription retries transient subscription failures with exponential backoff
func (c *defaultCoordinator) ensureSubscription(ctx context.Context, recordType string) error {
	logger := logging.FromContext(ctx)
	classifier := retry.NewClassifier()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.subscriptionBackoff

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := c.syncer.EnsureSubscription(ctx, recordType)
		if err != nil && !classifier.IsTransient(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(c.subscriptionAttempts)),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Debug("Retrying change subscription",
				"record_type", recordType,
				"error", err,
				"next_attempt_in", next)
		}),
	)
	return err
}

// startSync moves recordType to Syncing and runs the sync in the background.
// A record type that is already syncing is marked pending and started again
// once the running sync ends. done, if set, receives the sync result.
func (c *defaultCoordinator) startSync(ctx context.Context, recordType string, done func(error)) {
	logger := logging.FromContext(ctx)
	finish := func(err error) {
		if done != nil {
			done(err)
		}
	}
	if err := ctx.Err(); err != nil {
		finish(err)
		return
	}

	startTime := c.now()
	var attemptCount int
	started, err := c.statusSvc.UpdateStatusAtomically(ctx, recordType, func(syncStatus *status.SyncStatus) bool {
		if syncStatus.IsSyncing() {
			return false
		}
		syncStatus.Phase = status.SyncPhaseSyncing
		syncStatus.Message = "Sync in progress"
		syncStatus.LastAttempt = &startTime
		syncStatus.AttemptCount++
		syncStatus.PollInterval = c.pollInterval.String()
		syncStatus.SubscriptionID = c.syncer.SubscriptionID(recordType)
		attemptCount = syncStatus.AttemptCount
		return true
	})
	if err != nil {
		logger.Error("Error updating sync status", "record_type", recordType, "error", err)
		finish(err)
		return
	}
	if !started {
		logger.Debug("Sync already in progress, queueing another run", "record_type", recordType)
		c.mu.Lock()
		c.pending[recordType] = struct{}{}
		c.mu.Unlock()
		finish(fmt.Errorf("%w: %s", ErrSyncInProgress, recordType))
		return
	}

	logger.Info("Starting sync operation", "record_type", recordType, "attempt", attemptCount)

	c.syncs.Add(1)
	go func() {
		defer c.syncs.Done()
		finish(c.performSync(ctx, recordType, startTime))

		c.mu.Lock()
		_, rerun := c.pending[recordType]
		delete(c.pending, recordType)
		c.mu.Unlock()
		if rerun && ctx.Err() == nil {
			_ = c.Trigger(recordType)
		}
	}()
}

// performSync fetches recordType and records the final status
func (c *defaultCoordinator) performSync(ctx context.Context, recordType string, startTime time.Time) error {
	logger := logging.FromContext(ctx)

	// Final status is written even after cancellation.
	statusCtx := context.WithoutCancel(ctx)

	syncErr := c.syncer.FetchRecordType(ctx, recordType)
	finished := c.now()
	duration := finished.Sub(startTime)

	count, counted := 0, false
	if syncErr == nil {
		count, counted = c.countRecords(statusCtx, recordType)
	}

	_, err := c.statusSvc.UpdateStatusAtomically(statusCtx, recordType, func(syncStatus *status.SyncStatus) bool {
		if syncErr != nil {
			syncStatus.Phase = status.SyncPhaseFailed
			syncStatus.Message = fmt.Sprintf("Sync failed: %v", syncErr)
			return true
		}
		syncStatus.Phase = status.SyncPhaseComplete
		syncStatus.Message = "Sync completed successfully"
		syncStatus.LastSyncTime = &finished
		syncStatus.LastSyncDuration = duration
		syncStatus.AttemptCount = 0
		if counted {
			syncStatus.RecordCount = count
		}
		return true
	})
	if err != nil {
		logger.Error("Error updating sync status", "record_type", recordType, "error", err)
	}

	if syncErr != nil {
		logger.Error("Sync failed", "record_type", recordType, "error", syncErr)
		return syncErr
	}
	logger.Info("Sync completed successfully", "record_type", recordType, "duration", duration)
	return nil
}

// countRecords reports the stored record count and records it as a metric
func (c *defaultCoordinator) countRecords(ctx context.Context, recordType string) (int, bool) {
	if c.recordCounter == nil {
		return 0, false
	}
	count, err := c.recordCounter(ctx, recordType)
	if err != nil {
		logging.FromContext(ctx).Warn("Failed to count stored records", "record_type", recordType, "error", err)
		return 0, false
	}
	c.syncMetrics.RecordStoredRecords(ctx, recordType, int64(count))
	return count, true
}
