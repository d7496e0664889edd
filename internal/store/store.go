// Package store is the SQLite-backed local record store. A DB is opened on the
// sync worker's thread and every Target method runs there.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
)

var (
	// ErrLocked is returned by Open when another process holds the store.
	ErrLocked = errors.New("store is locked by another process")
	// ErrNotOpen is returned when the store is used before Open or after Close.
	ErrNotOpen = errors.New("store is not open")
	// ErrNotFound is returned by Get for a missing record.
	ErrNotFound = errors.New("record not found")
)

const schema = `
CREATE TABLE IF NOT EXISTS records (
	record_type TEXT NOT NULL,
	record_id   TEXT NOT NULL,
	change_tag  TEXT NOT NULL DEFAULT '',
	modified_at INTEGER NOT NULL,
	fields      TEXT NOT NULL DEFAULT '{}',
	synced_at   INTEGER NOT NULL,
	PRIMARY KEY (record_type, record_id)
);
CREATE INDEX IF NOT EXISTS idx_records_modified ON records (record_type, modified_at);
`

// upsertQuery keeps the stored row when it is newer than the incoming one.
const upsertQuery = `
INSERT INTO records (record_type, record_id, change_tag, modified_at, fields, synced_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (record_type, record_id) DO UPDATE SET
	change_tag  = excluded.change_tag,
	modified_at = excluded.modified_at,
	fields      = excluded.fields,
	synced_at   = excluded.synced_at
WHERE excluded.modified_at >= records.modified_at
`

// StoredRecord is a row of the records table.
type StoredRecord struct {
	RecordType string
	ID         string
	ChangeTag  string
	Modified   time.Time
	Fields     map[string]any
	SyncedAt   time.Time
}

// DB is a local record store backed by one SQLite file.
type DB struct {
	path string
	now  func() time.Time

	lock *flock.Flock
	db   *sql.DB
}

// Option configures a DB.
type Option func(*DB)

// WithClock overrides the clock used for synced_at.
func WithClock(now func() time.Time) Option {
	return func(d *DB) {
		d.now = now
	}
}

// New returns an unopened store for path.
func New(path string, opts ...Option) *DB {
	d := &DB{
		path: path,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Open creates and opens the store at path.
func Open(path string, opts ...Option) (*DB, error) {
	d := New(path, opts...)
	if err := d.Open(); err != nil {
		return nil, err
	}
	return d, nil
}

// Path returns the database file path.
func (d *DB) Path() string {
	return d.path
}

// Open takes an exclusive lock on <path>.lock, opens the database and creates
// the schema. It is meant to run as the worker's init hook.
func (d *DB) Open() error {
	if d.db != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(d.path), 0750); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	lock := flock.New(d.path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to lock store %s: %w", d.path, err)
	}
	if !locked {
		return fmt.Errorf("%w: %s", ErrLocked, d.path)
	}

	db, err := sql.Open("sqlite3", d.path)
	if err != nil {
		_ = lock.Unlock()
		return fmt.Errorf("failed to open sqlite3 database: %w", err)
	}
	// All access happens on the worker thread.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	d.lock = lock
	d.db = db
	return nil
}

// Close closes the database and releases the lock.
func (d *DB) Close() error {
	if d.db == nil {
		return nil
	}
	err := d.db.Close()
	if unlockErr := d.lock.Unlock(); unlockErr != nil {
		err = errors.Join(err, fmt.Errorf("failed to unlock store: %w", unlockErr))
	}
	d.db = nil
	d.lock = nil
	return err
}

// Count returns the number of stored records of recordType.
func (d *DB) Count(ctx context.Context, recordType string) (int, error) {
	if d.db == nil {
		return 0, ErrNotOpen
	}
	var n int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM records WHERE record_type = ?`, recordType).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s records: %w", recordType, err)
	}
	return n, nil
}

// Get returns one stored record.
func (d *DB) Get(ctx context.Context, recordType, id string) (*StoredRecord, error) {
	if d.db == nil {
		return nil, ErrNotOpen
	}

	var (
		rec              = StoredRecord{RecordType: recordType, ID: id}
		modified, synced int64
		fields           string
	)
	err := d.db.QueryRowContext(ctx, `
		SELECT change_tag, modified_at, fields, synced_at
		FROM records
		WHERE record_type = ? AND record_id = ?
	`, recordType, id).Scan(&rec.ChangeTag, &modified, &fields, &synced)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, recordType, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s/%s: %w", recordType, id, err)
	}

	if err := json.Unmarshal([]byte(fields), &rec.Fields); err != nil {
		return nil, fmt.Errorf("failed to decode fields of %s/%s: %w", recordType, id, err)
	}
	rec.Modified = time.Unix(0, modified).UTC()
	rec.SyncedAt = time.Unix(0, synced).UTC()
	return &rec, nil
}
