package status

import "time"

// SyncPhase represents the current phase of a record type's synchronization
type SyncPhase string

const (
	// SyncPhaseSyncing means a fetch chain is running
	SyncPhaseSyncing SyncPhase = "Syncing"

	// SyncPhaseComplete means the last fetch reached the final page
	SyncPhaseComplete SyncPhase = "Complete"

	// SyncPhaseFailed means the last fetch ended with a fatal error
	SyncPhaseFailed SyncPhase = "Failed"
)

// SyncStatus is the persisted synchronization state of one record type
type SyncStatus struct {
	// Phase represents the current synchronization phase
	Phase SyncPhase `json:"phase"`

	// Message provides additional information about the sync status
	Message string `json:"message,omitempty"`

	// LastAttempt is the timestamp of the last sync attempt
	LastAttempt *time.Time `json:"lastAttempt,omitempty"`

	// AttemptCount is the number of sync attempts since last success
	AttemptCount int `json:"attemptCount,omitempty"`

	// LastSyncTime is the timestamp of the last successful sync
	LastSyncTime *time.Time `json:"lastSyncTime,omitempty"`

	// LastSyncDuration is how long the last successful fetch chain took
	LastSyncDuration time.Duration `json:"lastSyncDuration,omitempty"`

	// RecordCount is the number of records in the local store after the last successful sync
	RecordCount int `json:"recordCount,omitempty"`

	// SubscriptionID is the change subscription registered for the record type
	SubscriptionID string `json:"subscriptionId,omitempty"`

	// PollInterval is the configured polling interval (e.g., "15m")
	PollInterval string `json:"pollInterval,omitempty"`
}

// IsSyncing reports whether a fetch is in progress.
func (s *SyncStatus) IsSyncing() bool {
	return s != nil && s.Phase == SyncPhaseSyncing
}
