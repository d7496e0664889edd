package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stacklok/recordsync/internal/remote"
	"github.com/stacklok/recordsync/internal/remote/remotetest"
	"github.com/stacklok/recordsync/internal/retry"
)

var errMapping = errors.New("mapping failed")

type fakeTarget struct {
	recordType string
	failIDs    map[string]bool

	mu         sync.Mutex
	ingested   []RecordSnapshot
	registered int
	released   int
}

func newFakeTarget(recordType string) *fakeTarget {
	return &fakeTarget{recordType: recordType, failIDs: map[string]bool{}}
}

func (t *fakeTarget) RecordType() string { return t.recordType }

func (t *fakeTarget) Ingest(s RecordSnapshot) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failIDs[s.ID()] {
		return errMapping
	}
	t.ingested = append(t.ingested, s)
	return nil
}

func (t *fakeTarget) RegisterWithLocalStore() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.registered++
	return nil
}

func (t *fakeTarget) ReleaseResources() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.released++
}

func (t *fakeTarget) IDs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]string, len(t.ingested))
	for i, s := range t.ingested {
		ids[i] = s.ID()
	}
	return ids
}

func (t *fakeTarget) Snapshots() []RecordSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]RecordSnapshot(nil), t.ingested...)
}

// makePage builds n records with IDs <prefix>-0 .. <prefix>-(n-1).
func makePage(recordType, prefix string, n int) []*remote.Record {
	page := make([]*remote.Record, n)
	for i := range page {
		id := fmt.Sprintf("%s-%d", prefix, i)
		page[i] = remotetest.NewRecord(recordType, id, map[string]any{"n": float64(i), "prefix": prefix})
	}
	return page
}

func idsOf(pages ...[]*remote.Record) []string {
	var ids []string
	for _, p := range pages {
		for _, r := range p {
			ids = append(ids, r.ID)
		}
	}
	return ids
}

type stubTimer struct {
	stopped atomic.Bool
}

func (s *stubTimer) Stop() bool {
	return s.stopped.CompareAndSwap(false, true)
}

// immediateScheduler records requested delays and fires at once.
type immediateScheduler struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *immediateScheduler) ScheduleRetry(after time.Duration, op func()) retry.Timer {
	s.mu.Lock()
	s.delays = append(s.delays, after)
	s.mu.Unlock()
	op()
	return &stubTimer{}
}

func (s *immediateScheduler) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

// heldRetry is a retry captured by holdingScheduler.
type heldRetry struct {
	delay time.Duration
	fire  func()
	timer *stubTimer
}

// holdingScheduler hands scheduled retries to the test instead of firing them.
type holdingScheduler struct {
	scheduled chan heldRetry
}

func newHoldingScheduler() *holdingScheduler {
	return &holdingScheduler{scheduled: make(chan heldRetry, 8)}
}

func (s *holdingScheduler) ScheduleRetry(after time.Duration, op func()) retry.Timer {
	timer := &stubTimer{}
	s.scheduled <- heldRetry{delay: after, fire: op, timer: timer}
	return timer
}

func (s *holdingScheduler) next(t *testing.T) heldRetry {
	t.Helper()
	select {
	case h := <-s.scheduled:
		return h
	case <-time.After(2 * time.Second):
		t.Fatal("no retry was scheduled")
		return heldRetry{}
	}
}

// completion captures onComplete calls.
type completion struct {
	calls atomic.Int32
	done  chan error
}

func newCompletion() *completion {
	return &completion{done: make(chan error, 4)}
}

func (c *completion) onComplete(err error) {
	c.calls.Add(1)
	c.done <- err
}

// wait returns the chain's result and checks that it is reported only once.
func (c *completion) wait(t *testing.T) error {
	t.Helper()
	var err error
	select {
	case err = <-c.done:
	case <-time.After(5 * time.Second):
		t.Fatal("fetch did not complete")
	}
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, int32(1), c.calls.Load(), "onComplete must fire exactly once")
	return err
}

func fetch(t *testing.T, ctx context.Context, f *Fetcher, target Target, pos Position) error {
	t.Helper()
	c := newCompletion()
	f.Fetch(ctx, target, pos, c.onComplete)
	return c.wait(t)
}
