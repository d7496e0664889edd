// Package storage provides factory functions for creating storage-dependent components.
// It keeps the sync status store and the record store rooted in the same
// configuration so the components created from it stay compatible.
package storage

import (
	"context"
	"fmt"

	"github.com/stacklok/recordsync/internal/config"
	"github.com/stacklok/recordsync/internal/store"
	recordsync "github.com/stacklok/recordsync/internal/sync"
	"github.com/stacklok/recordsync/internal/sync/state"
)

// Factory creates storage-dependent components as a family.
//
// The factory encapsulates the creation of:
// - RecordTypeStateService: Tracks sync status
// - DB: The local record store, opened later on the serialized worker
// - Targets: One sync target per configured record type
//
// It also manages the lifecycle of storage resources.
type Factory interface {
	// CreateStateService creates a state service for sync status tracking.
	CreateStateService(ctx context.Context) (state.RecordTypeStateService, error)

	// Store returns the local record store. It is not opened yet: the
	// store must be opened on the worker that ingests into it.
	Store() *store.DB

	// CreateTargets creates a target for every configured record type.
	CreateTargets() []recordsync.Target

	// Cleanup releases any resources held by this factory.
	// Should be called when the application shuts down.
	Cleanup()
}

// NewStorageFactory creates the storage factory for cfg.
func NewStorageFactory(cfg *config.Config) (Factory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	return NewLocalFactory(cfg)
}
