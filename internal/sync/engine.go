package sync

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/stacklok/recordsync/internal/logging"
	"github.com/stacklok/recordsync/internal/remote"
	"github.com/stacklok/recordsync/internal/worker"
)

// Syncer is the part of the Engine the coordinator drives.
//
//go:generate mockgen -destination=mocks/mock_syncer.go -package=mocks github.com/stacklok/recordsync/internal/sync Syncer
type Syncer interface {
	// RecordTypes returns the synchronized record types in registration order.
	RecordTypes() []string
	// SubscriptionID returns the change subscription ID of a record type.
	SubscriptionID(recordType string) string
	// RegisterLocalStores prepares every target on the worker.
	RegisterLocalStores(ctx context.Context) error
	// EnsureSubscription registers one record type's subscription and waits for the result.
	EnsureSubscription(ctx context.Context, recordType string) error
	// FetchRecordType fetches every page of one record type.
	FetchRecordType(ctx context.Context, recordType string) error
}

var _ Syncer = (*Engine)(nil)

// Engine owns the worker and the targets, and runs fetches and subscription
// registration for them. Create one per process.
type Engine struct {
	worker    *worker.Worker
	fetcher   *Fetcher
	registrar *Registrar
	targets   map[string]Target
	order     []string
	// fetchLimit bounds concurrent chains in FetchAll; <= 0 means no limit.
	fetchLimit int

	mu     sync.Mutex
	closed bool
}

type engineOptions struct {
	worker      *worker.Worker
	workerOpts  []worker.Option
	fetcherOpts []FetcherOption
	fetchLimit  int
}

// EngineOption configures an Engine.
type EngineOption func(*engineOptions)

// WithWorker uses w instead of creating a worker. The engine stops it on Close.
func WithWorker(w *worker.Worker) EngineOption {
	return func(o *engineOptions) {
		o.worker = w
	}
}

// WithWorkerOptions configures the worker the engine creates.
func WithWorkerOptions(opts ...worker.Option) EngineOption {
	return func(o *engineOptions) {
		o.workerOpts = append(o.workerOpts, opts...)
	}
}

// WithFetcherOptions configures the engine's fetcher.
func WithFetcherOptions(opts ...FetcherOption) EngineOption {
	return func(o *engineOptions) {
		o.fetcherOpts = append(o.fetcherOpts, opts...)
	}
}

// WithFetchConcurrency bounds how many chains FetchAll runs at once.
func WithFetchConcurrency(n int) EngineOption {
	return func(o *engineOptions) {
		o.fetchLimit = n
	}
}

// NewEngine creates an engine for targets. Record types must be unique.
func NewEngine(db remote.Database, targets []Target, opts ...EngineOption) (*Engine, error) {
	if db == nil {
		return nil, errors.New("remote database is required")
	}

	o := &engineOptions{}
	for _, opt := range opts {
		opt(o)
	}

	e := &Engine{
		registrar:  NewRegistrar(db),
		targets:    make(map[string]Target, len(targets)),
		fetchLimit: o.fetchLimit,
	}
	for _, t := range targets {
		rt := t.RecordType()
		if rt == "" {
			return nil, errors.New("target has an empty record type")
		}
		if _, dup := e.targets[rt]; dup {
			return nil, fmt.Errorf("duplicate target for record type %q", rt)
		}
		e.targets[rt] = t
		e.order = append(e.order, rt)
	}

	e.worker = o.worker
	if e.worker == nil {
		e.worker = worker.New(o.workerOpts...)
	}
	e.fetcher = NewFetcher(db, e.worker, o.fetcherOpts...)
	return e, nil
}

// Worker returns the engine's worker.
func (e *Engine) Worker() *worker.Worker {
	return e.worker
}

// RecordTypes returns the record types in registration order.
func (e *Engine) RecordTypes() []string {
	return slices.Clone(e.order)
}

// SubscriptionID returns the change subscription ID of recordType.
func (e *Engine) SubscriptionID(recordType string) string {
	return SubscriptionID(e.registrar.db.Scope(), recordType)
}

// Target returns the target for recordType.
func (e *Engine) Target(recordType string) (Target, bool) {
	t, ok := e.targets[recordType]
	return t, ok
}

func (e *Engine) lookup(recordType string) (Target, error) {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return nil, ErrEngineClosed
	}
	t, ok := e.targets[recordType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRecordType, recordType)
	}
	return t, nil
}

// RegisterLocalStores calls RegisterWithLocalStore for every target on the worker.
func (e *Engine) RegisterLocalStores(ctx context.Context) error {
	var errs []error
	for _, rt := range e.order {
		t := e.targets[rt]
		var regErr error
		if err := e.worker.Submit(ctx, func() { regErr = t.RegisterWithLocalStore() }); err != nil {
			return fmt.Errorf("failed to register %s with local store: %w", rt, err)
		}
		if regErr != nil {
			errs = append(errs, fmt.Errorf("failed to register %s with local store: %w", rt, regErr))
		}
	}
	return errors.Join(errs...)
}

// RegisterSubscriptions registers every target's subscription without waiting.
func (e *Engine) RegisterSubscriptions(ctx context.Context) {
	for _, rt := range e.order {
		e.registrar.RegisterSubscription(ctx, e.targets[rt])
	}
}

// EnsureSubscription registers recordType's subscription and waits for the result.
func (e *Engine) EnsureSubscription(ctx context.Context, recordType string) error {
	t, err := e.lookup(recordType)
	if err != nil {
		return err
	}
	return e.registrar.RegisterSubscriptionSync(ctx, t)
}

// Fetch starts a fetch chain for recordType at pos. See Fetcher.Fetch.
func (e *Engine) Fetch(ctx context.Context, recordType string, pos Position, onComplete func(error)) error {
	t, err := e.lookup(recordType)
	if err != nil {
		return err
	}
	e.fetcher.Fetch(ctx, t, pos, onComplete)
	return nil
}

// FetchRecordType fetches every page of recordType and waits for the chain to end.
func (e *Engine) FetchRecordType(ctx context.Context, recordType string) error {
	done := make(chan error, 1)
	if err := e.Fetch(ctx, recordType, Start(), func(err error) { done <- err }); err != nil {
		return err
	}
	return <-done
}

// FetchAll runs one independent chain per record type, all record types when
// none are given, and waits for all of them. A failed chain does not stop the
// others; the returned error joins every failure in record type order.
func (e *Engine) FetchAll(ctx context.Context, recordTypes ...string) error {
	if len(recordTypes) == 0 {
		recordTypes = e.order
	}

	var g errgroup.Group
	if e.fetchLimit > 0 {
		g.SetLimit(e.fetchLimit)
	}
	// Wait only keeps the first error, so each chain also records its own.
	errs := make([]error, len(recordTypes))
	for i, rt := range recordTypes {
		g.Go(func() error {
			errs[i] = e.FetchRecordType(ctx, rt)
			return errs[i]
		})
	}
	if err := g.Wait(); err == nil {
		return nil
	}
	return errors.Join(errs...)
}

// Close releases every target on the worker and stops the worker. Chains
// still running end with ErrTargetReleased at their next page boundary.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()

	logger := logging.FromContext(context.Background())
	for _, rt := range e.order {
		t := e.targets[rt]
		e.fetcher.Release(rt)
		if err := e.worker.Submit(context.Background(), t.ReleaseResources); err != nil {
			logger.Warn("Failed to release target", "record_type", rt, "error", err)
		}
	}
	e.worker.Stop()
}
