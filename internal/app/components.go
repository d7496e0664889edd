package app

import (
	"github.com/stacklok/recordsync/internal/app/storage"
	recordsync "github.com/stacklok/recordsync/internal/sync"
	"github.com/stacklok/recordsync/internal/sync/coordinator"
	"github.com/stacklok/recordsync/internal/sync/state"
)

// AppComponents groups all application components
//
//nolint:revive // This name is fine
type AppComponents struct {
	// SyncCoordinator manages background synchronization
	SyncCoordinator coordinator.Coordinator

	// Engine owns the store worker and the record type targets
	Engine *recordsync.Engine

	// StateService tracks sync status per record type
	StateService state.RecordTypeStateService

	// Storage owns the local record store
	Storage storage.Factory
}
