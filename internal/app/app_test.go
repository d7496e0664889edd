package app

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/recordsync/internal/remote"
	"github.com/stacklok/recordsync/internal/remote/remotetest"
	"github.com/stacklok/recordsync/internal/status"
	"github.com/stacklok/recordsync/internal/store"
	"github.com/stacklok/recordsync/internal/sync/coordinator"
)

func newTestRemote() *remotetest.Database {
	db := remotetest.New(remote.ScopePrivate)
	db.SetPages("Note",
		[]*remote.Record{
			remotetest.NewRecord("Note", "n1", map[string]any{"title": "one"}),
			remotetest.NewRecord("Note", "n2", map[string]any{"title": "two"}),
		},
		[]*remote.Record{
			remotetest.NewRecord("Note", "n3", map[string]any{"title": "three"}),
		},
	)
	db.SetPages("Tag", []*remote.Record{
		remotetest.NewRecord("Tag", "t1", map[string]any{"label": "home"}),
	})
	db.FailPage("Note", 1, &remote.Error{Code: remote.CodeServiceUnavailable, RetryAfter: time.Millisecond})
	return db
}

func TestSyncApp_RunOnce(t *testing.T) {
	t.Parallel()

	cfg := createTestAppConfig(t)
	remoteDB := newTestRemote()

	app, err := NewSyncApp(context.Background(), WithConfig(cfg), WithDatabase(remoteDB))
	require.NoError(t, err)

	require.NoError(t, app.RunOnce(context.Background()))
	assert.Equal(t, 2, remoteDB.SaveCount())

	// RunOnce released the store, so it can be opened again
	db, err := store.Open(cfg.Store.Path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	n, err := db.Count(context.Background(), "Note")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	n, err = db.Count(context.Background(), "Tag")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	persisted, err := status.NewFileStatusPersistence(cfg.Store.StatusDir).LoadAllStatus(context.Background())
	require.NoError(t, err)
	require.Contains(t, persisted, "Note")
	assert.Equal(t, status.SyncPhaseComplete, persisted["Note"].Phase)
	assert.Equal(t, 3, persisted["Note"].RecordCount)
	assert.Equal(t, "recordsync-private-Note", persisted["Note"].SubscriptionID)
}

func TestSyncApp_RunOnceReportsFailures(t *testing.T) {
	t.Parallel()

	cfg := createTestAppConfig(t)
	remoteDB := newTestRemote()
	remoteDB.FailPage("Tag", 0, &remote.Error{Code: remote.CodePermissionFailure})

	app, err := NewSyncApp(context.Background(), WithConfig(cfg), WithDatabase(remoteDB))
	require.NoError(t, err)

	err = app.RunOnce(context.Background(), "Tag")
	require.Error(t, err)
	assert.Equal(t, remote.CodePermissionFailure, remote.CodeOf(err))

	app2, err := NewSyncApp(context.Background(), WithConfig(cfg), WithDatabase(remoteDB))
	require.NoError(t, err)
	err = app2.RunOnce(context.Background(), "Missing")
	require.ErrorIs(t, err, coordinator.ErrUnknownRecordType)
}

func TestSyncApp_ServeAndStop(t *testing.T) {
	t.Parallel()

	cfg := createTestAppConfig(t)
	remoteDB := newTestRemote()

	app, err := NewSyncApp(context.Background(), WithConfig(cfg), WithDatabase(remoteDB))
	require.NoError(t, err)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	baseURL := fmt.Sprintf("http://%s", listener.Addr().String())

	errChan := make(chan error, 1)
	go func() {
		errChan <- app.Serve(listener)
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get(baseURL + "/health")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	svc := app.Components().StateService
	require.Eventually(t, func() bool {
		s, err := svc.GetSyncStatus(context.Background(), "Note")
		return err == nil && s.Phase == status.SyncPhaseComplete
	}, 5*time.Second, 20*time.Millisecond)

	before := len(remoteDB.RequestsFor("Tag"))
	resp, err := http.Post(baseURL+"/v1/notifications", "application/json",
		strings.NewReader(`{"subscriptionId":"recordsync-private-Tag"}`))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.Eventually(t, func() bool {
		return len(remoteDB.RequestsFor("Tag")) > before
	}, 5*time.Second, 20*time.Millisecond)

	resp, err = http.Post(baseURL+"/v1/notifications", "application/json",
		strings.NewReader(`{"recordType":"Missing"}`))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	require.NoError(t, app.Stop(5*time.Second))
	select {
	case err := <-errChan:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve() did not return after Stop()")
	}

	// Stop released the store lock
	db, err := store.Open(cfg.Store.Path)
	require.NoError(t, err)
	_ = db.Close()
}

func TestSyncApp_StartFailsOnBusyAddress(t *testing.T) {
	t.Parallel()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })

	app, err := NewSyncApp(context.Background(),
		WithConfig(createTestAppConfig(t)),
		WithDatabase(newTestRemote()),
		WithAddress(listener.Addr().String()),
	)
	require.NoError(t, err)
	t.Cleanup(app.Close)

	err = app.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to listen")
}
