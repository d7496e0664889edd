// Package worker provides a serialized execution context: a single long-lived
// goroutine, locked to one OS thread, that runs submitted work strictly one item
// at a time in submission order.
//
// Resources that may only be touched from one thread (for example a SQLite
// connection opened by the WithInit hook) are safe to use from work items.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultIdleThreshold is the iteration duration under which an iteration that
	// found no work is treated as a spin.
	DefaultIdleThreshold = 10 * time.Millisecond

	// DefaultIdleSleep is how long the loop sleeps after a spin before waiting again.
	DefaultIdleSleep = 20 * time.Millisecond
)

var (
	// ErrStopped is returned for work submitted after Stop, and for queued work
	// that was skipped because the worker stopped first.
	ErrStopped = errors.New("worker stopped")

	// ErrUnavailable indicates the worker's execution context could not be created
	// or is gone.
	ErrUnavailable = errors.New("worker execution context unavailable")

	// ErrExited is returned when the loop goroutine exited without Stop, for
	// example because a work item called runtime.Goexit.
	ErrExited = fmt.Errorf("%w: worker loop exited", ErrUnavailable)
)

// WorkItem is a deferred unit of work.
type WorkItem func()

// StartError is returned by Submit and Post when the execution context could not be created.
type StartError struct {
	Name string
	Err  error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("failed to start worker %s: %v", e.Name, e.Err)
}

// Unwrap exposes both ErrUnavailable and the init failure to errors.Is / errors.As.
func (e *StartError) Unwrap() []error {
	return []error{ErrUnavailable, e.Err}
}

// PanicError reports a work item that panicked. The worker keeps running.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("work item panicked: %v", e.Value)
}

const (
	taskPending int32 = iota
	taskRunning
	taskCancelled
)

type task struct {
	fn    WorkItem
	state atomic.Int32
	// done is nil for fire-and-forget work.
	done chan error
}

func (t *task) finish(err error) {
	if t.done != nil {
		t.done <- err
	}
}

// Worker owns one execution context and its work queue.
type Worker struct {
	name          string
	init          func() error
	shutdown      func() error
	idleThreshold time.Duration
	idleSleep     time.Duration
	logger        *slog.Logger

	mu        sync.Mutex
	queue     []*task
	closed    bool
	closedErr error

	wake     chan struct{}
	stopCh   chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	startOnce sync.Once
	startErr  error
	started   atomic.Bool
}

// Option configures a Worker.
type Option func(*Worker)

// WithName sets the worker name used in logs.
func WithName(name string) Option {
	return func(w *Worker) {
		w.name = name
	}
}

// WithInit sets a hook that runs on the worker's thread before the first item.
// If it fails the worker never starts and every submission returns a *StartError.
func WithInit(fn func() error) Option {
	return func(w *Worker) {
		w.init = fn
	}
}

// WithShutdown sets a hook that runs on the worker's thread after the loop has
// stopped. It only runs if the init hook succeeded; Stop returns after it.
func WithShutdown(fn func() error) Option {
	return func(w *Worker) {
		w.shutdown = fn
	}
}

// WithIdleBackoff configures spin protection.
func WithIdleBackoff(threshold, sleep time.Duration) Option {
	return func(w *Worker) {
		w.idleThreshold = threshold
		w.idleSleep = sleep
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

// New creates a worker. The execution context is started lazily by the first submission.
func New(opts ...Option) *Worker {
	w := &Worker{
		name:          fmt.Sprintf("recordsync-worker-%s", uuid.NewString()),
		idleThreshold: DefaultIdleThreshold,
		idleSleep:     DefaultIdleSleep,
		logger:        slog.Default(),
		wake:          make(chan struct{}, 1),
		stopCh:        make(chan struct{}),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Name returns the worker name.
func (w *Worker) Name() string {
	return w.name
}

// Submit enqueues fn and blocks until it has run on the worker.
//
// If ctx ends before fn starts, fn is skipped and ctx.Err() is returned. Once fn
// has started, Submit waits for it to finish. Submit must not be called from
// inside a work item; use Post there.
func (w *Worker) Submit(ctx context.Context, fn WorkItem) error {
	if err := w.start(); err != nil {
		return err
	}

	t := &task{fn: fn, done: make(chan error, 1)}
	if err := w.enqueue(t); err != nil {
		return err
	}

	select {
	case err := <-t.done:
		return err
	case <-ctx.Done():
		if t.state.CompareAndSwap(taskPending, taskCancelled) {
			return ctx.Err()
		}
		return <-t.done
	case <-w.done:
		// The loop finishes every task it took before closing done.
		if t.state.CompareAndSwap(taskPending, taskCancelled) {
			return w.closedError()
		}
		return <-t.done
	}
}

// Post enqueues fn without waiting for it to run.
func (w *Worker) Post(fn WorkItem) error {
	if err := w.start(); err != nil {
		return err
	}
	return w.enqueue(&task{fn: fn})
}

// Stop signals the loop to exit and waits for it. The item in flight completes;
// items still queued are skipped and their submitters receive ErrStopped.
// Stop must not be called from inside a work item.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
	if w.started.Load() {
		<-w.done
	} else {
		w.mu.Lock()
		w.close(ErrStopped)
		w.mu.Unlock()
	}
}

// close marks the queue closed. Callers hold mu.
func (w *Worker) close(err error) {
	if !w.closed {
		w.closed = true
		w.closedErr = err
	}
}

func (w *Worker) closedError() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closedErr != nil {
		return w.closedErr
	}
	return ErrStopped
}

func (w *Worker) start() error {
	select {
	case <-w.stopCh:
		return ErrStopped
	default:
	}

	w.startOnce.Do(func() {
		ready := make(chan error)
		w.started.Store(true)
		go w.run(ready)
		w.startErr = <-ready
	})
	return w.startErr
}

func (w *Worker) enqueue(t *task) error {
	w.mu.Lock()
	if w.closed {
		err := w.closedErr
		w.mu.Unlock()
		return err
	}
	w.queue = append(w.queue, t)
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
	return nil
}

func (w *Worker) run(ready chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(w.done)

	stopped := false
	defer func() {
		if !stopped {
			w.logger.Error("Worker loop exited unexpectedly", "worker", w.name)
			w.abandon(ErrExited)
		}
	}()

	if w.init != nil {
		if err := w.init(); err != nil {
			startErr := &StartError{Name: w.name, Err: err}
			w.mu.Lock()
			w.close(startErr)
			w.mu.Unlock()
			w.logger.Error("Worker failed to start", "worker", w.name, "error", err)
			stopped = true
			ready <- startErr
			return
		}
	}
	if w.shutdown != nil {
		defer func() {
			if err := w.shutdown(); err != nil {
				w.logger.Warn("Worker shutdown hook failed", "worker", w.name, "error", err)
			}
		}()
	}
	w.logger.Debug("Worker started", "worker", w.name)
	ready <- nil

	for {
		select {
		case <-w.stopCh:
			stopped = true
			w.abandon(ErrStopped)
			return
		case <-w.wake:
		}

		began := time.Now()
		ran := w.drain()
		if ran == 0 && time.Since(began) < w.idleThreshold {
			select {
			case <-time.After(w.idleSleep):
			case <-w.stopCh:
				stopped = true
				w.abandon(ErrStopped)
				return
			}
		}
	}
}

// drain swaps the queue out under the lock and runs the batch without it, so
// work items may enqueue more work.
func (w *Worker) drain() int {
	w.mu.Lock()
	batch := w.queue
	w.queue = nil
	w.mu.Unlock()

	ran, next := 0, 0
	// Runs only when the goroutine exits mid-batch.
	defer func() {
		for _, rest := range batch[next:] {
			if rest.state.CompareAndSwap(taskPending, taskCancelled) {
				rest.finish(ErrExited)
			}
		}
	}()

	for next < len(batch) {
		select {
		case <-w.stopCh:
			for _, rest := range batch[next:] {
				if rest.state.CompareAndSwap(taskPending, taskCancelled) {
					rest.finish(ErrStopped)
				}
			}
			next = len(batch)
			return ran
		default:
		}

		t := batch[next]
		next++
		if !t.state.CompareAndSwap(taskPending, taskRunning) {
			continue
		}
		w.runTask(t)
		ran++
	}
	return ran
}

// runTask reports ErrExited to the submitter if fn never returns.
func (w *Worker) runTask(t *task) {
	err := ErrExited
	defer func() {
		t.finish(err)
	}()
	err = w.execute(t.fn)
}

func (w *Worker) execute(fn WorkItem) (err error) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("Work item panicked", "worker", w.name, "panic", r)
			err = &PanicError{Value: r}
		}
	}()
	fn()
	return nil
}

func (w *Worker) abandon(reason error) {
	w.mu.Lock()
	w.close(reason)
	batch := w.queue
	w.queue = nil
	w.mu.Unlock()

	for _, t := range batch {
		if t.state.CompareAndSwap(taskPending, taskCancelled) {
			t.finish(reason)
		}
	}
	w.logger.Debug("Worker stopped", "worker", w.name, "skipped", len(batch))
}
