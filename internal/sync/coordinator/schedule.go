package coordinator

import (
	"math/rand/v2"
	"time"

	"github.com/stacklok/recordsync/internal/status"
)

// nextCheckInterval returns the check interval with a random jitter applied,
// so several processes sharing a remote do not poll it in lockstep.
func (c *defaultCoordinator) nextCheckInterval() time.Duration {
	if c.checkJitter <= 0 {
		return c.checkInterval
	}
	//nolint:gosec // G404: Non-cryptographic randomness is sufficient for polling jitter
	jitterOffset := time.Duration(rand.Int64N(int64(2*c.checkJitter))) - c.checkJitter
	return c.checkInterval + jitterOffset
}

// isSyncDue reports whether the poll interval has elapsed since the last
// attempt, and when the next sync should happen.
func isSyncDue(interval time.Duration, syncStatus *status.SyncStatus, now time.Time) (bool, time.Time) {
	if syncStatus == nil || syncStatus.LastAttempt == nil {
		return true, now.Add(interval)
	}

	nextSyncTime := syncStatus.LastAttempt.Add(interval)
	if !now.Before(nextSyncTime) {
		// The one after this
		return true, now.Add(interval)
	}
	return false, nextSyncTime
}
