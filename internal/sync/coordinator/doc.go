// Package coordinator runs record type synchronization in the background.
//
// The coordinator sits on top of the sync.Engine (through the sync.Syncer
// interface) and handles:
//
//   - Bootstrap: status initialization, local store registration and
//     change subscriptions, retried with exponential backoff
//   - An initial sync of every record type on startup
//   - Interval syncs driven by a jittered check ticker
//   - On-demand syncs requested with Trigger, for example by a change
//     notification
//   - Status persistence through state.RecordTypeStateService
//   - Graceful shutdown
//
// # Usage Example
//
//	coord := coordinator.New(engine, stateService,
//	    coordinator.WithPollInterval(15*time.Minute),
//	    coordinator.WithSyncMetrics(syncMetrics),
//	)
//
//	go func() {
//	    if err := coord.Start(ctx); err != nil {
//	        slog.Error("Coordinator failed", "error", err)
//	    }
//	}()
//
//	// ... on a change notification ...
//	_ = coord.Trigger("Note")
//
//	// Stop on shutdown
//	_ = coord.Stop()
//
// # Sync Decision Flow
//
//  1. The check ticker fires, or Trigger wakes the loop
//  2. For a tick, every record type whose last attempt is older than the
//     poll interval is due; for a trigger, the requested record type is
//  3. startSync moves the status to Syncing in one atomic update. A record
//     type that is already syncing is not started again; a trigger that
//     arrives meanwhile is remembered and runs once the current sync ends
//  4. The sync runs on its own goroutine and records Complete or Failed
//
// # Error Handling
//
// Failed syncs are logged and recorded as "Failed"; the coordinator keeps
// running and the record type is retried on the next due interval. Failing
// to register the local stores is the only error that stops Start.
package coordinator
