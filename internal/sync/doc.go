// Package sync pulls remote records into local targets.
//
// # Components
//
//   - Engine: owns the serialized worker and the targets. It is the entry
//     point used by the coordinator and the CLI.
//   - Fetcher: runs one fetch chain per record type. A chain requests pages
//     until the service returns no continuation cursor. It retries transient
//     failures after the suggested delay and stops on fatal ones.
//   - Registrar: saves one change-notification subscription per record type
//     under a fixed ID, so repeated registration is an upsert.
//   - Target: the local consumer of a record type (see internal/store).
//
// # Chains
//
// Each chain is a small state machine driven by its own goroutine:
//
//	Idle -> FetchingPage -> (AwaitingRetry -> FetchingPage)* -> Done | Failed
//
// Page completions and retry timers are delivered as events, so a chain of
// any length runs at constant stack depth. Every page, including a retried
// one, uses a new operation built from the chain's Position. A retried page
// reuses the position the failed page started from.
//
// Records are deep-copied into a RecordSnapshot and ingested on the worker
// before the page's completion is handled. Chains are independent: a fatal
// error in one does not affect the others.
package sync
