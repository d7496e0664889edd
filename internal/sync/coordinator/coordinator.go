package coordinator

import (
	"context"
	"errors"
	"fmt"
	"slices"
	gosync "sync"
	"time"

	"github.com/stacklok/recordsync/internal/logging"
	"github.com/stacklok/recordsync/internal/remote"
	pkgsync "github.com/stacklok/recordsync/internal/sync"
	"github.com/stacklok/recordsync/internal/sync/state"
	"github.com/stacklok/recordsync/internal/telemetry"
	"github.com/stacklok/recordsync/internal/versions"
)

const (
	// DefaultPollInterval is how old a record type's last attempt may get before it is synced again.
	DefaultPollInterval = 15 * time.Minute
	// DefaultSubscriptionAttempts bounds the subscription bootstrap retries per record type.
	DefaultSubscriptionAttempts = 5

	// baseCheckInterval is the base interval at which the coordinator looks for due syncs
	baseCheckInterval = time.Minute
	// checkJitter is the maximum random offset applied to the check interval
	checkJitter = 15 * time.Second
	// baseSubscriptionBackoff is the first delay between subscription attempts
	baseSubscriptionBackoff = time.Second
)

var (
	// ErrUnknownRecordType is returned by Trigger for a record type the coordinator does not sync.
	ErrUnknownRecordType = errors.New("unknown record type")

	// ErrSyncInProgress is reported by RunOnce for a record type that was already syncing.
	ErrSyncInProgress = errors.New("sync already in progress")
)

// Coordinator manages background synchronization of every record type
type Coordinator interface {
	// Start bootstraps the record types and runs the sync loop.
	// Blocks until the context is cancelled or bootstrap fails.
	Start(ctx context.Context) error

	// Trigger requests a sync of recordType without waiting for it.
	// Requests for a record type that is already queued are coalesced.
	Trigger(recordType string) error

	// RunOnce bootstraps and syncs recordTypes, all of them when none are
	// given, without starting the loop. It returns every sync failure.
	RunOnce(ctx context.Context, recordTypes ...string) error

	// Stop cancels the loop and waits for running syncs to finish
	Stop() error
}

// ServerInfoSource describes the remote service. *remote.Client implements it.
type ServerInfoSource interface {
	ServerInfo(ctx context.Context) (*remote.ServerInfo, error)
}

// RecordCounter reports how many records are stored locally for a record type.
type RecordCounter func(ctx context.Context, recordType string) (int, error)

// defaultCoordinator is the default implementation of Coordinator
type defaultCoordinator struct {
	syncer    pkgsync.Syncer
	statusSvc state.RecordTypeStateService
	known     map[string]struct{}

	pollInterval         time.Duration
	checkInterval        time.Duration
	checkJitter          time.Duration
	subscriptionAttempts int
	subscriptionBackoff  time.Duration
	recordCounter        RecordCounter
	serverInfo           ServerInfoSource
	now                  func() time.Time

	// Trigger bookkeeping
	mu        gosync.Mutex
	requested map[string]struct{}
	pending   map[string]struct{}
	wake      chan struct{}

	// Lifecycle management
	cancelFunc context.CancelFunc
	done       chan struct{}
	syncs      gosync.WaitGroup

	// Metrics
	syncMetrics *telemetry.SyncMetrics
}

// Option is a function that configures the coordinator
type Option func(*defaultCoordinator)

// WithSyncMetrics sets the sync metrics for the coordinator
func WithSyncMetrics(metrics *telemetry.SyncMetrics) Option {
	return func(c *defaultCoordinator) {
		c.syncMetrics = metrics
	}
}

// WithPollInterval sets how often each record type is synced without a trigger
func WithPollInterval(interval time.Duration) Option {
	return func(c *defaultCoordinator) {
		if interval > 0 {
			c.pollInterval = interval
		}
	}
}

// WithCheckInterval sets the base interval and jitter of the due-sync check
func WithCheckInterval(interval, jitter time.Duration) Option {
	return func(c *defaultCoordinator) {
		if interval > 0 {
			c.checkInterval = interval
		}
		if jitter >= 0 && jitter < interval {
			c.checkJitter = jitter
		}
	}
}

// WithSubscriptionRetry sets how many times, and with which first delay,
// a failing subscription is retried during bootstrap
func WithSubscriptionRetry(attempts int, initialBackoff time.Duration) Option {
	return func(c *defaultCoordinator) {
		if attempts > 0 {
			c.subscriptionAttempts = attempts
		}
		if initialBackoff > 0 {
			c.subscriptionBackoff = initialBackoff
		}
	}
}

// WithRecordCounter sets the function used to report stored record counts
func WithRecordCounter(counter RecordCounter) Option {
	return func(c *defaultCoordinator) {
		c.recordCounter = counter
	}
}

// WithServerInfo enables the remote API version check on startup
func WithServerInfo(source ServerInfoSource) Option {
	return func(c *defaultCoordinator) {
		c.serverInfo = source
	}
}

// New creates a new coordinator with injected dependencies
func New(syncer pkgsync.Syncer, statusSvc state.RecordTypeStateService, opts ...Option) Coordinator {
	c := &defaultCoordinator{
		syncer:               syncer,
		statusSvc:            statusSvc,
		known:                make(map[string]struct{}),
		pollInterval:         DefaultPollInterval,
		checkInterval:        baseCheckInterval,
		checkJitter:          checkJitter,
		subscriptionAttempts: DefaultSubscriptionAttempts,
		subscriptionBackoff:  baseSubscriptionBackoff,
		now:                  time.Now,
		requested:            make(map[string]struct{}),
		pending:              make(map[string]struct{}),
		wake:                 make(chan struct{}, 1),
		done:                 make(chan struct{}),
	}
	for _, rt := range syncer.RecordTypes() {
		c.known[rt] = struct{}{}
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Start bootstraps every record type and runs the coordinator loop
func (c *defaultCoordinator) Start(ctx context.Context) error {
	logger := logging.FromContext(ctx)
	recordTypes := c.syncer.RecordTypes()
	logger.Info("Starting background sync coordinator", "record_type_count", len(recordTypes))

	// Create cancellable context for this coordinator
	coordCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancelFunc = cancel
	c.mu.Unlock()
	defer func() {
		cancel()
		c.syncs.Wait()
		close(c.done)
		logger.Info("Background sync coordinator shutting down")
	}()

	if err := c.bootstrap(coordCtx, recordTypes); err != nil {
		return err
	}

	// Initial sync of everything
	for _, rt := range recordTypes {
		c.startSync(coordCtx, rt, nil)
	}

	checkInterval := c.nextCheckInterval()
	logger.Info("Configured coordinator check interval",
		"base_interval", c.checkInterval,
		"actual_interval", checkInterval,
		"poll_interval", c.pollInterval)

	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.processDueSyncs(coordCtx, recordTypes)

			// Recalculate interval with new jitter for next iteration
			ticker.Reset(c.nextCheckInterval())
		case <-c.wake:
			c.processRequested(coordCtx)
		case <-coordCtx.Done():
			logger.Info("Sync coordinator stopping")
			return nil
		}
	}
}

// RunOnce bootstraps every record type and syncs the requested ones
func (c *defaultCoordinator) RunOnce(ctx context.Context, recordTypes ...string) error {
	if len(recordTypes) == 0 {
		recordTypes = c.syncer.RecordTypes()
	}
	for _, rt := range recordTypes {
		if _, ok := c.known[rt]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownRecordType, rt)
		}
	}

	if err := c.bootstrap(ctx, c.syncer.RecordTypes()); err != nil {
		return err
	}

	var (
		wg   gosync.WaitGroup
		mu   gosync.Mutex
		errs []error
	)
	for _, rt := range recordTypes {
		wg.Add(1)
		c.startSync(ctx, rt, func(err error) {
			defer wg.Done()
			if err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		})
	}
	wg.Wait()
	c.syncs.Wait()
	return errors.Join(errs...)
}

// bootstrap loads the status of recordTypes, registers the local stores and
// ensures the change subscriptions. Only the first two can fail it.
func (c *defaultCoordinator) bootstrap(ctx context.Context, recordTypes []string) error {
	// Load or initialize sync status for all record types
	if err := c.statusSvc.Initialize(ctx, recordTypes); err != nil {
		return fmt.Errorf("failed to initialize record type sync status: %w", err)
	}

	c.checkServerVersion(ctx)

	if err := c.syncer.RegisterLocalStores(ctx); err != nil {
		return fmt.Errorf("failed to register local stores: %w", err)
	}

	c.ensureSubscriptions(ctx, recordTypes)
	return nil
}

// Trigger queues a sync of recordType and wakes the loop
func (c *defaultCoordinator) Trigger(recordType string) error {
	if _, ok := c.known[recordType]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRecordType, recordType)
	}

	c.mu.Lock()
	c.requested[recordType] = struct{}{}
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
	return nil
}

// Stop gracefully stops the coordinator
func (c *defaultCoordinator) Stop() error {
	c.mu.Lock()
	cancel := c.cancelFunc
	c.mu.Unlock()

	if cancel != nil {
		logging.FromContext(context.Background()).Info("Stopping sync coordinator")
		cancel()
		// Wait for coordinator to finish
		<-c.done
	}
	return nil
}

// processRequested starts every triggered record type
func (c *defaultCoordinator) processRequested(ctx context.Context) {
	c.mu.Lock()
	requested := make([]string, 0, len(c.requested))
	for rt := range c.requested {
		requested = append(requested, rt)
	}
	clear(c.requested)
	c.mu.Unlock()

	slices.Sort(requested)
	for _, rt := range requested {
		c.startSync(ctx, rt, nil)
	}
}

// processDueSyncs starts every record type whose poll interval has elapsed
func (c *defaultCoordinator) processDueSyncs(ctx context.Context, recordTypes []string) {
	logger := logging.FromContext(ctx)
	now := c.now()
	for _, rt := range recordTypes {
		syncStatus, err := c.statusSvc.GetSyncStatus(ctx, rt)
		if err != nil {
			logger.Error("Error getting sync status", "record_type", rt, "error", err)
			continue
		}
		due, next := isSyncDue(c.pollInterval, syncStatus, now)
		if !due {
			logger.Debug("Record type does not need sync", "record_type", rt, "next_sync", next)
			continue
		}
		c.startSync(ctx, rt, nil)
	}
}

// checkServerVersion warns when the remote service is older than supported
func (c *defaultCoordinator) checkServerVersion(ctx context.Context) {
	if c.serverInfo == nil {
		return
	}
	logger := logging.FromContext(ctx)

	info, err := c.serverInfo.ServerInfo(ctx)
	if err != nil {
		logger.Warn("Failed to fetch remote server info", "error", err)
		return
	}
	if !versions.IsSupportedAPIVersion(info.APIVersion) {
		logger.Warn("Remote API version is older than supported",
			"api_version", info.APIVersion,
			"minimum", versions.MinimumAPIVersion)
		return
	}
	logger.Debug("Remote API version supported", "api_version", info.APIVersion)
}
