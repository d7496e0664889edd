package worker

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorker_SubmitRunsInSubmissionOrder(t *testing.T) {
	t.Parallel()

	w := New()
	defer w.Stop()

	var (
		mu  sync.Mutex
		log []int
	)
	for i := 0; i < 100; i++ {
		require.NoError(t, w.Submit(context.Background(), func() {
			mu.Lock()
			log = append(log, i)
			mu.Unlock()
		}))
	}

	expected := make([]int, 100)
	for i := range expected {
		expected[i] = i
	}
	assert.Equal(t, expected, log)
}

func TestWorker_PostPreservesOrder(t *testing.T) {
	t.Parallel()

	w := New()
	defer w.Stop()

	var log []int
	for i := 0; i < 50; i++ {
		require.NoError(t, w.Post(func() {
			log = append(log, i)
		}))
	}
	// Submit acts as a barrier: it runs after every posted item.
	require.NoError(t, w.Submit(context.Background(), func() {}))

	require.Len(t, log, 50)
	for i, v := range log {
		assert.Equal(t, i, v)
	}
}

func TestWorker_NeverRunsItemsConcurrently(t *testing.T) {
	t.Parallel()

	w := New()
	defer w.Stop()

	var (
		active  atomic.Int32
		maxSeen atomic.Int32
		wg      sync.WaitGroup
	)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				err := w.Submit(context.Background(), func() {
					n := active.Add(1)
					if n > maxSeen.Load() {
						maxSeen.Store(n)
					}
					time.Sleep(50 * time.Microsecond)
					active.Add(-1)
				})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxSeen.Load())
}

func TestWorker_SubmitBlocksUntilItemCompletes(t *testing.T) {
	t.Parallel()

	w := New()
	defer w.Stop()

	done := false
	require.NoError(t, w.Submit(context.Background(), func() {
		time.Sleep(10 * time.Millisecond)
		done = true
	}))
	assert.True(t, done)
}

func TestWorker_InitFailureIsReturnedSynchronously(t *testing.T) {
	t.Parallel()

	initErr := errors.New("cannot open store")
	calls := 0
	w := New(WithName("broken"), WithInit(func() error {
		calls++
		return initErr
	}))
	defer w.Stop()

	ran := false
	err := w.Submit(context.Background(), func() { ran = true })
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, initErr)

	var startErr *StartError
	require.ErrorAs(t, err, &startErr)
	assert.Equal(t, "broken", startErr.Name)

	// Later submissions report the same failure without retrying init.
	err = w.Post(func() { ran = true })
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.False(t, ran)
	assert.Equal(t, 1, calls)
}

func TestWorker_InitRunsOnWorkerBeforeFirstItem(t *testing.T) {
	t.Parallel()

	var order []string
	w := New(WithInit(func() error {
		order = append(order, "init")
		return nil
	}))
	defer w.Stop()

	require.NoError(t, w.Submit(context.Background(), func() {
		order = append(order, "work")
	}))
	assert.Equal(t, []string{"init", "work"}, order)
}

func TestWorker_ShutdownRunsOnWorkerAfterLastItem(t *testing.T) {
	t.Parallel()

	var order []string
	w := New(
		WithInit(func() error {
			order = append(order, "init")
			return nil
		}),
		WithShutdown(func() error {
			order = append(order, "shutdown")
			return errors.New("close failed")
		}),
	)

	require.NoError(t, w.Submit(context.Background(), func() {
		order = append(order, "work")
	}))
	w.Stop()

	// Stop waits for the loop, so order is safe to read here.
	assert.Equal(t, []string{"init", "work", "shutdown"}, order)
}

func TestWorker_ShutdownSkippedWhenInitFails(t *testing.T) {
	t.Parallel()

	shutdown := false
	w := New(
		WithInit(func() error { return errors.New("no database") }),
		WithShutdown(func() error {
			shutdown = true
			return nil
		}),
	)

	err := w.Submit(context.Background(), func() {})
	require.ErrorIs(t, err, ErrUnavailable)
	w.Stop()
	assert.False(t, shutdown)
}

func TestWorker_SubmitAfterStop(t *testing.T) {
	t.Parallel()

	t.Run("started worker", func(t *testing.T) {
		t.Parallel()

		w := New()
		require.NoError(t, w.Submit(context.Background(), func() {}))
		w.Stop()

		err := w.Submit(context.Background(), func() {})
		assert.ErrorIs(t, err, ErrStopped)
	})

	t.Run("never started worker", func(t *testing.T) {
		t.Parallel()

		w := New()
		w.Stop()

		assert.ErrorIs(t, w.Submit(context.Background(), func() {}), ErrStopped)
		assert.ErrorIs(t, w.Post(func() {}), ErrStopped)
	})

	t.Run("stop is idempotent", func(t *testing.T) {
		t.Parallel()

		w := New()
		require.NoError(t, w.Submit(context.Background(), func() {}))
		w.Stop()
		w.Stop()
	})
}

func TestWorker_StopLetsInFlightItemFinishAndSkipsQueued(t *testing.T) {
	t.Parallel()

	w := New()

	started := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool

	go func() {
		_ = w.Submit(context.Background(), func() {
			close(started)
			<-release
			finished.Store(true)
		})
	}()
	<-started

	var queuedRan atomic.Bool
	queuedErr := make(chan error, 1)
	go func() {
		queuedErr <- w.Submit(context.Background(), func() { queuedRan.Store(true) })
	}()
	// Give the second submission time to land in the queue.
	time.Sleep(20 * time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		w.Stop()
		close(stopped)
	}()
	time.Sleep(10 * time.Millisecond)
	close(release)

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}

	assert.True(t, finished.Load())
	assert.False(t, queuedRan.Load())
	assert.ErrorIs(t, <-queuedErr, ErrStopped)
}

func TestWorker_SubmitHonoursContextBeforeStart(t *testing.T) {
	t.Parallel()

	w := New()
	defer w.Stop()

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = w.Submit(context.Background(), func() {
			close(started)
			<-release
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	ran := false
	err := w.Submit(ctx, func() { ran = true })
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	// Barrier: everything queued before this has been handled.
	require.NoError(t, w.Submit(context.Background(), func() {}))
	assert.False(t, ran)
}

func TestWorker_PanicIsReportedAndWorkerSurvives(t *testing.T) {
	t.Parallel()

	w := New()
	defer w.Stop()

	err := w.Submit(context.Background(), func() { panic("boom") })
	var panicErr *PanicError
	require.ErrorAs(t, err, &panicErr)
	assert.Equal(t, "boom", panicErr.Value)

	ran := false
	require.NoError(t, w.Submit(context.Background(), func() { ran = true }))
	assert.True(t, ran)
}

func TestWorker_WorkItemMayPostMoreWork(t *testing.T) {
	t.Parallel()

	w := New()
	defer w.Stop()

	var log []string
	require.NoError(t, w.Submit(context.Background(), func() {
		log = append(log, "outer")
		assert.NoError(t, w.Post(func() {
			log = append(log, "inner")
		}))
	}))
	require.NoError(t, w.Submit(context.Background(), func() {}))

	assert.Equal(t, []string{"outer", "inner"}, log)
}

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	w := New()
	assert.Contains(t, w.Name(), "recordsync-worker-")
	assert.Equal(t, DefaultIdleThreshold, w.idleThreshold)
	assert.Equal(t, DefaultIdleSleep, w.idleSleep)

	named := New(WithName("store"), WithIdleBackoff(time.Millisecond, 2*time.Millisecond))
	assert.Equal(t, "store", named.Name())
	assert.Equal(t, time.Millisecond, named.idleThreshold)
	assert.Equal(t, 2*time.Millisecond, named.idleSleep)
}

func TestWorker_SubmitReturnsWhenLoopExits(t *testing.T) {
	t.Parallel()

	w := New()
	defer w.Stop()

	release := make(chan struct{})
	require.NoError(t, w.Post(func() {
		<-release
		runtime.Goexit()
	}))

	queued := make(chan error, 1)
	go func() {
		queued <- w.Submit(context.Background(), func() {})
	}()
	// Let the second item reach the queue behind the exiting one.
	time.Sleep(20 * time.Millisecond)
	close(release)

	select {
	case err := <-queued:
		require.ErrorIs(t, err, ErrExited)
		assert.ErrorIs(t, err, ErrUnavailable)
	case <-time.After(2 * time.Second):
		t.Fatal("Submit() still blocked after the worker loop exited")
	}

	done := make(chan error, 1)
	go func() {
		done <- w.Submit(context.Background(), func() {})
	}()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrExited)
	case <-time.After(2 * time.Second):
		t.Fatal("Submit() after the loop exited blocked")
	}
}

func TestWorker_SubmitOfExitingItemReturns(t *testing.T) {
	t.Parallel()

	w := New()
	defer w.Stop()

	done := make(chan error, 1)
	go func() {
		done <- w.Submit(context.Background(), func() { runtime.Goexit() })
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrExited)
	case <-time.After(2 * time.Second):
		t.Fatal("Submit() of an item that exited the loop never returned")
	}
	assert.ErrorIs(t, w.Submit(context.Background(), func() {}), ErrUnavailable)
}
