package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/stacklok/recordsync/internal/config"
	"github.com/stacklok/recordsync/internal/status"
	"github.com/stacklok/recordsync/internal/store"
	recordsync "github.com/stacklok/recordsync/internal/sync"
	"github.com/stacklok/recordsync/internal/sync/state"
)

// LocalFactory creates storage components backed by the local filesystem:
// a SQLite record store and one JSON status file per record type.
type LocalFactory struct {
	config *config.Config

	// Created once, shared by all components
	db                *store.DB
	statusPersistence status.StatusPersistence
}

var _ Factory = (*LocalFactory)(nil)

// NewLocalFactory creates a new local storage factory, ensuring the
// necessary directories exist.
func NewLocalFactory(cfg *config.Config) (*LocalFactory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	statusDir := cfg.Store.StatusDir
	if err := os.MkdirAll(statusDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create status directory %s: %w", statusDir, err)
	}
	storeDir := filepath.Dir(cfg.Store.Path)
	if err := os.MkdirAll(storeDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create store directory %s: %w", storeDir, err)
	}

	slog.Info("Creating local storage factory", "store_path", cfg.Store.Path, "status_dir", statusDir)

	return &LocalFactory{
		config:            cfg,
		db:                store.New(cfg.Store.Path),
		statusPersistence: status.NewFileStatusPersistence(statusDir),
	}, nil
}

// CreateStateService creates a file-based state service for sync status tracking.
func (f *LocalFactory) CreateStateService(_ context.Context) (state.RecordTypeStateService, error) {
	slog.Debug("Creating file-based state service")
	return state.NewFileStateService(f.statusPersistence), nil
}

// Store returns the unopened record store.
func (f *LocalFactory) Store() *store.DB {
	return f.db
}

// CreateTargets creates a store target for every configured record type.
func (f *LocalFactory) CreateTargets() []recordsync.Target {
	names := f.config.RecordTypeNames()
	targets := make([]recordsync.Target, 0, len(names))
	for _, name := range names {
		targets = append(targets, store.NewTarget(f.db, name))
	}
	return targets
}

// Cleanup closes the record store and releases its lock. The store worker
// normally closes it on its own thread when stopped, which makes this a no-op.
func (f *LocalFactory) Cleanup() {
	slog.Debug("Cleaning up local storage factory")
	if err := f.db.Close(); err != nil {
		slog.Warn("Failed to close record store", "error", err)
	}
}
