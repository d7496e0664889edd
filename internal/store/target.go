package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	recordsync "github.com/stacklok/recordsync/internal/sync"
)

// ErrReleased is returned by Ingest after ReleaseResources.
var ErrReleased = errors.New("target resources released")

// Target writes one record type into the store.
type Target struct {
	db         *DB
	recordType string

	stmt     *sql.Stmt
	released bool
}

var _ recordsync.Target = (*Target)(nil)

// NewTarget returns the target for recordType.
func NewTarget(db *DB, recordType string) *Target {
	return &Target{db: db, recordType: recordType}
}

// RecordType returns the record type the target stores.
func (t *Target) RecordType() string {
	return t.recordType
}

// RegisterWithLocalStore prepares the upsert statement.
func (t *Target) RegisterWithLocalStore() error {
	if t.db.db == nil {
		return ErrNotOpen
	}
	if t.stmt != nil {
		return nil
	}
	stmt, err := t.db.db.Prepare(upsertQuery)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert for %s: %w", t.recordType, err)
	}
	t.stmt = stmt
	t.released = false
	return nil
}

// Ingest upserts snapshot. A stored row with a later modification time wins.
func (t *Target) Ingest(snapshot recordsync.RecordSnapshot) error {
	if t.released {
		return ErrReleased
	}
	if t.stmt == nil {
		return fmt.Errorf("target %s is not registered with the local store", t.recordType)
	}

	fields := snapshot.Fields()
	if fields == nil {
		fields = map[string]any{}
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode fields of %s: %w", snapshot.ID(), err)
	}

	_, err = t.stmt.Exec(
		t.recordType,
		snapshot.ID(),
		snapshot.ChangeTag(),
		snapshot.Modified().UnixNano(),
		string(data),
		t.db.now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert %s/%s: %w", t.recordType, snapshot.ID(), err)
	}
	return nil
}

// ReleaseResources closes the prepared statement.
func (t *Target) ReleaseResources() {
	t.released = true
	if t.stmt != nil {
		_ = t.stmt.Close()
		t.stmt = nil
	}
}
