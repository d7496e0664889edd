package sync

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/recordsync/internal/logging"
	"github.com/stacklok/recordsync/internal/remote"
	"github.com/stacklok/recordsync/internal/retry"
	"github.com/stacklok/recordsync/internal/telemetry"
	"github.com/stacklok/recordsync/internal/worker"
)

const (
	// DefaultPageSize is the number of records requested per page.
	DefaultPageSize = 150

	// TracerName is the name used for the fetch tracer
	TracerName = "github.com/stacklok/recordsync/sync"
)

// Submitter runs work on the serialized worker and waits for it.
type Submitter interface {
	Submit(ctx context.Context, fn worker.WorkItem) error
}

// RetryPolicy classifies page completions and arms retries.
type RetryPolicy interface {
	Classify(err error) retry.Outcome
	ScheduleRetry(after time.Duration, op func()) retry.Timer
}

// Fetcher runs paginated fetch chains. Every page is a new single-use
// operation; records are ingested on the worker before the page completes.
type Fetcher struct {
	db       remote.Database
	worker   Submitter
	policy   RetryPolicy
	pageSize int
	metrics  *telemetry.SyncMetrics
	tracer   trace.Tracer

	released sync.Map
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithPageSize sets the per-page record limit.
func WithPageSize(n int) FetcherOption {
	return func(f *Fetcher) {
		if n > 0 {
			f.pageSize = n
		}
	}
}

// WithRetryPolicy replaces the default classifier.
func WithRetryPolicy(p RetryPolicy) FetcherOption {
	return func(f *Fetcher) {
		f.policy = p
	}
}

// WithSyncMetrics records chain metrics.
func WithSyncMetrics(m *telemetry.SyncMetrics) FetcherOption {
	return func(f *Fetcher) {
		f.metrics = m
	}
}

// WithTracerProvider traces page requests.
func WithTracerProvider(tp trace.TracerProvider) FetcherOption {
	return func(f *Fetcher) {
		if tp != nil {
			f.tracer = tp.Tracer(TracerName)
		}
	}
}

// NewFetcher creates a fetcher that ingests through w.
func NewFetcher(db remote.Database, w Submitter, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		db:       db,
		worker:   w,
		policy:   retry.NewClassifier(),
		pageSize: DefaultPageSize,
		tracer:   otel.GetTracerProvider().Tracer(TracerName),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Release marks recordType's target as released. Pending retries for it end
// their chains with ErrTargetReleased and later ingests are skipped.
func (f *Fetcher) Release(recordType string) {
	f.released.Store(recordType, struct{}{})
}

func (f *Fetcher) isReleased(recordType string) bool {
	_, ok := f.released.Load(recordType)
	return ok
}

// Fetch starts a chain for target at pos and returns immediately. onComplete
// is called exactly once, with nil after the last page or a *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, target Target, pos Position, onComplete func(error)) {
	c := &chain{
		f:          f,
		ctx:        ctx,
		target:     target,
		recordType: target.RecordType(),
		onComplete: onComplete,
		events:     make(chan chainEvent, 1),
		logger:     logging.FromContext(ctx).With("record_type", target.RecordType()),
	}
	go c.run(pos)
}

type chainState int

const (
	stateIdle chainState = iota
	stateFetchingPage
	stateAwaitingRetry
	stateDone
	stateFailed
)

func (s chainState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateFetchingPage:
		return "fetching_page"
	case stateAwaitingRetry:
		return "awaiting_retry"
	case stateDone:
		return "done"
	case stateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s chainState) terminal() bool {
	return s == stateDone || s == stateFailed
}

type eventKind int

const (
	eventPageCompleted eventKind = iota
	eventRetryFired
)

type chainEvent struct {
	kind eventKind
	next *remote.Cursor
	err  error
}

// chain is one fetch of one record type. Its state is owned by the run
// goroutine. At most one event source (an operation or a retry timer) is
// outstanding at a time, so sends on events never block.
type chain struct {
	f          *Fetcher
	ctx        context.Context
	target     Target
	recordType string
	onComplete func(error)
	events     chan chainEvent
	logger     *slog.Logger

	state    chainState
	position Position
	timer    retry.Timer
	span     trace.Span
	started  time.Time

	pages    int
	retries  int
	ingested atomic.Int64
	failed   atomic.Int64

	// workerErr is the first failure of the worker itself. It ends the chain
	// when the page in flight completes.
	workerMu  sync.Mutex
	workerErr error
}

func (c *chain) setWorkerErr(err error) {
	c.workerMu.Lock()
	defer c.workerMu.Unlock()
	if c.workerErr == nil {
		c.workerErr = err
	}
}

func (c *chain) workerFailure() error {
	c.workerMu.Lock()
	defer c.workerMu.Unlock()
	return c.workerErr
}

func (c *chain) run(pos Position) {
	c.started = time.Now()
	c.position = pos
	c.logger.Debug("Fetch started", "position", pos.String())

	if pos.IsExhausted() {
		c.finish(nil)
		return
	}
	c.issue()

	for !c.state.terminal() {
		select {
		case ev := <-c.events:
			c.handle(ev)
		case <-c.ctx.Done():
			c.finish(c.ctx.Err())
		}
	}
}

// issue requests the page at the current position with a new operation.
func (c *chain) issue() {
	if c.f.isReleased(c.recordType) {
		c.finish(ErrTargetReleased)
		return
	}

	op := c.newOperation()
	c.state = stateFetchingPage

	cursor, hasCursor := c.position.Cursor()
	_, c.span = telemetry.StartSpan(c.ctx, c.f.tracer, "recordsync.fetch_page",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			telemetry.AttrRecordType.String(c.recordType),
			telemetry.AttrOperationID.String(op.ID),
			telemetry.AttrContinuation.Bool(hasCursor),
			telemetry.AttrPage.Int(c.pages+1),
			telemetry.AttrPageSize.Int(c.f.pageSize),
		),
	)
	c.logger.Debug("Requesting page", "operation", op.ID, "page", c.pages+1, "cursor", string(cursor))

	if err := c.f.db.Add(c.ctx, op); err != nil {
		c.handle(chainEvent{kind: eventPageCompleted, err: err})
	}
}

func (c *chain) newOperation() *remote.QueryOperation {
	var op *remote.QueryOperation
	if cursor, ok := c.position.Cursor(); ok {
		op = remote.NewContinuationOperation(cursor)
	} else {
		op = remote.NewQueryOperation(remote.Query{
			RecordType: c.recordType,
			Predicate:  remote.MatchAll,
		})
	}
	op.ID = uuid.NewString()
	op.ResultsLimit = c.f.pageSize
	op.Priority = remote.PriorityUtility
	op.RecordFetched = c.recordFetched
	op.QueryCompleted = func(next *remote.Cursor, err error) {
		c.events <- chainEvent{kind: eventPageCompleted, next: next, err: err}
	}
	return op
}

// recordFetched runs on the network goroutine. It returns only after the
// snapshot has been ingested, so a page's records land before it completes.
func (c *chain) recordFetched(rec *remote.Record) {
	snapshot := NewRecordSnapshot(rec)
	target := c.target
	recordType := c.recordType
	released := c.f.isReleased

	var ingestErr error
	err := c.f.worker.Submit(c.ctx, func() {
		if released(recordType) {
			ingestErr = ErrTargetReleased
			return
		}
		ingestErr = target.Ingest(snapshot)
	})
	if errors.Is(err, worker.ErrUnavailable) || errors.Is(err, worker.ErrStopped) {
		c.setWorkerErr(err)
		c.failed.Add(1)
		c.f.metrics.RecordIngested(c.ctx, c.recordType, false)
		c.logger.Error("Store worker unavailable, record not ingested", "record_id", snapshot.ID(), "error", err)
		return
	}
	if err == nil {
		err = ingestErr
	}

	if err != nil {
		c.failed.Add(1)
		c.f.metrics.RecordIngested(c.ctx, c.recordType, false)
		c.logger.Warn("Failed to ingest record", "record_id", snapshot.ID(), "error", err)
		return
	}
	c.ingested.Add(1)
	c.f.metrics.RecordIngested(c.ctx, c.recordType, true)
}

func (c *chain) handle(ev chainEvent) {
	if ev.kind == eventRetryFired {
		c.timer = nil
		c.issue()
		return
	}

	if err := c.workerFailure(); err != nil {
		c.finish(err)
		return
	}

	if c.span != nil && ev.err == nil {
		c.span.SetAttributes(telemetry.AttrHasCursor.Bool(ev.next != nil))
	}
	c.endSpan(ev.err)
	outcome := c.f.policy.Classify(ev.err)
	switch outcome.Kind {
	case retry.KindSuccess:
		c.pages++
		c.f.metrics.RecordPage(c.ctx, c.recordType)
		next := positionAfter(ev.next)
		if next.IsExhausted() {
			c.finish(nil)
			return
		}
		c.position = next
		c.issue()

	case retry.KindRetry:
		c.retries++
		c.state = stateAwaitingRetry
		c.f.metrics.RecordRetry(c.ctx, c.recordType)
		c.logger.Info("Page failed, retrying",
			"position", c.position.String(),
			"delay", outcome.Delay.String(),
			"error", ev.err,
		)
		events := c.events
		c.timer = c.f.policy.ScheduleRetry(outcome.Delay, func() {
			events <- chainEvent{kind: eventRetryFired}
		})

	default:
		c.finish(outcome.Err)
	}
}

func (c *chain) endSpan(err error) {
	if c.span == nil {
		return
	}
	telemetry.RecordError(c.span, err)
	c.span.End()
	c.span = nil
}

func (c *chain) finish(err error) {
	if c.state.terminal() {
		return
	}
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.endSpan(err)

	duration := time.Since(c.started)
	c.f.metrics.RecordChainDuration(c.ctx, c.recordType, duration, err == nil)

	if err != nil {
		c.state = stateFailed
		err = &FetchError{RecordType: c.recordType, Err: err}
		c.logger.Error("Fetch failed",
			"pages", c.pages,
			"records", c.ingested.Load(),
			"retries", c.retries,
			"error", err,
		)
	} else {
		c.state = stateDone
		c.logger.Info("Fetch completed",
			"pages", c.pages,
			"records", c.ingested.Load(),
			"ingest_failures", c.failed.Load(),
			"retries", c.retries,
			"duration", duration.String(),
		)
	}

	if c.onComplete != nil {
		c.onComplete(err)
	}
}
