// Package remote models the cloud record service: records, paged query
// operations, change subscriptions, and the Database that executes them.
package remote

import (
	"context"
	"errors"
	"sort"
	"sync/atomic"
	"time"
)

// Scope selects which database of the remote service is addressed.
type Scope string

const (
	// ScopePublic is the database shared by all users of the application.
	ScopePublic Scope = "public"
	// ScopePrivate is the current user's database.
	ScopePrivate Scope = "private"
)

// Valid reports whether s is a known scope.
func (s Scope) Valid() bool {
	return s == ScopePublic || s == ScopePrivate
}

// Cursor is an opaque continuation token returned with a page of results.
type Cursor string

// Record is one remote record as delivered by the service.
type Record struct {
	Type      string         `json:"recordType"`
	ID        string         `json:"recordName"`
	ChangeTag string         `json:"recordChangeTag,omitempty"`
	Modified  time.Time      `json:"modified"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Keys returns the record's field names in sorted order.
func (r *Record) Keys() []string {
	keys := make([]string, 0, len(r.Fields))
	for k := range r.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Predicate filters the records a query or subscription matches.
type Predicate string

// MatchAll matches every record of a type.
const MatchAll Predicate = "TRUEPREDICATE"

// Query selects records of one type.
type Query struct {
	RecordType string
	Predicate  Predicate
}

// Priority is the scheduling hint sent with an operation.
type Priority string

const (
	// PriorityUtility is best effort background work.
	PriorityUtility Priority = "utility"
	// PriorityUserInitiated is work a user is waiting on.
	PriorityUserInitiated Priority = "user-initiated"
)

// ErrOperationReused is returned by Database.Add for an operation that was already added.
var ErrOperationReused = errors.New("query operation already added")

// ErrInvalidOperation is returned by Database.Add for an operation with neither a query nor a cursor.
var ErrInvalidOperation = errors.New("query operation needs a query or a cursor")

// QueryOperation requests one page of records. It is single-use: after it has
// been added to a Database it must not be added again. A follow-up page is
// requested with a new operation seeded from the returned cursor.
type QueryOperation struct {
	ID           string
	Query        *Query
	Cursor       Cursor
	ResultsLimit int
	Priority     Priority

	// RecordFetched is called once per record, in page order. The client does
	// not call QueryCompleted until every RecordFetched call has returned.
	RecordFetched func(*Record)
	// QueryCompleted is called once. next is nil when no more pages remain.
	QueryCompleted func(next *Cursor, err error)

	added atomic.Bool
}

// NewQueryOperation returns an operation that fetches the first page of q.
func NewQueryOperation(q Query) *QueryOperation {
	return &QueryOperation{Query: &q}
}

// NewContinuationOperation returns an operation that fetches the page after c.
func NewContinuationOperation(c Cursor) *QueryOperation {
	return &QueryOperation{Cursor: c}
}

// MarkAdded claims the operation for execution. Database implementations call
// it from Add.
func (op *QueryOperation) MarkAdded() error {
	if op.Query == nil && op.Cursor == "" {
		return ErrInvalidOperation
	}
	if !op.added.CompareAndSwap(false, true) {
		return ErrOperationReused
	}
	return nil
}

// SubscriptionOption selects which changes fire a notification.
type SubscriptionOption uint8

const (
	// FiresOnRecordCreation fires when a matching record is created.
	FiresOnRecordCreation SubscriptionOption = 1 << iota
	// FiresOnRecordUpdate fires when a matching record is updated.
	FiresOnRecordUpdate
	// FiresOnRecordDeletion fires when a matching record is deleted.
	FiresOnRecordDeletion
)

// Has reports whether o includes flag.
func (o SubscriptionOption) Has(flag SubscriptionOption) bool {
	return o&flag == flag
}

// Names returns the enabled trigger names, as sent on the wire.
func (o SubscriptionOption) Names() []string {
	var names []string
	if o.Has(FiresOnRecordCreation) {
		names = append(names, "create")
	}
	if o.Has(FiresOnRecordUpdate) {
		names = append(names, "update")
	}
	if o.Has(FiresOnRecordDeletion) {
		names = append(names, "delete")
	}
	return names
}

// Subscription asks the service to notify this client of changes to a record type.
type Subscription struct {
	ID             string
	RecordType     string
	Predicate      Predicate
	Options        SubscriptionOption
	SilentDelivery bool
}

// Database executes operations against one scope of the remote service.
//
//go:generate mockgen -destination=mocks/mock_database.go -package=mocks github.com/stacklok/recordsync/internal/remote Database
type Database interface {
	// Scope returns the database scope.
	Scope() Scope
	// Add starts op asynchronously and returns immediately. It fails without
	// invoking any callback when op cannot be started.
	Add(ctx context.Context, op *QueryOperation) error
	// SaveSubscription upserts sub by ID and reports the result to done.
	SaveSubscription(ctx context.Context, sub *Subscription, done func(error))
}
