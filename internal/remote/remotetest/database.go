// Package remotetest provides an in-memory remote.Database with scripted pages
// and injectable failures.
package remotetest

import (
	"context"
	"fmt"
	"maps"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/stacklok/recordsync/internal/remote"
)

// Request records one page request seen by the Database.
type Request struct {
	Op         *remote.QueryOperation
	RecordType string
	Page       int
	Cursor     remote.Cursor
}

// Database serves pages of records from memory.
type Database struct {
	scope remote.Scope

	mu        sync.Mutex
	pages     map[string][][]*remote.Record
	failures  map[string][]error
	requests  []Request
	subs      map[string]remote.Subscription
	saves     int
	subErrors []error

	// Scribble, when set, overwrites every delivered record after its
	// RecordFetched callback returns.
	Scribble bool
}

var _ remote.Database = (*Database)(nil)

// New creates an empty database for scope.
func New(scope remote.Scope) *Database {
	return &Database{
		scope:    scope,
		pages:    make(map[string][][]*remote.Record),
		failures: make(map[string][]error),
		subs:     make(map[string]remote.Subscription),
	}
}

// CursorFor returns the cursor the database hands out for a page.
func CursorFor(recordType string, page int) remote.Cursor {
	return remote.Cursor(fmt.Sprintf("%s/%d", recordType, page))
}

// NewRecord builds a record with a deterministic modification time.
func NewRecord(recordType, id string, fields map[string]any) *remote.Record {
	return &remote.Record{
		Type:      recordType,
		ID:        id,
		ChangeTag: "tag-" + id,
		Modified:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Fields:    fields,
	}
}

// Scope returns the database scope.
func (d *Database) Scope() remote.Scope {
	return d.scope
}

// SetPages scripts the pages returned for recordType. No pages means a single
// empty final page.
func (d *Database) SetPages(recordType string, pages ...[]*remote.Record) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pages[recordType] = pages
}

// FailPage queues errors returned, one per request, for a page before it succeeds.
func (d *Database) FailPage(recordType string, page int, errs ...error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := string(CursorFor(recordType, page))
	d.failures[key] = append(d.failures[key], errs...)
}

// FailSubscriptions queues errors returned, one per call, by SaveSubscription.
func (d *Database) FailSubscriptions(errs ...error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subErrors = append(d.subErrors, errs...)
}

// Requests returns every page request in arrival order.
func (d *Database) Requests() []Request {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Request(nil), d.requests...)
}

// RequestsFor returns the page requests for one record type.
func (d *Database) RequestsFor(recordType string) []Request {
	var out []Request
	for _, r := range d.Requests() {
		if r.RecordType == recordType {
			out = append(out, r)
		}
	}
	return out
}

// Subscriptions returns the saved subscriptions keyed by ID.
func (d *Database) Subscriptions() map[string]remote.Subscription {
	d.mu.Lock()
	defer d.mu.Unlock()
	return maps.Clone(d.subs)
}

// SaveCount returns how many SaveSubscription calls were made.
func (d *Database) SaveCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.saves
}

// Add serves op on a new goroutine.
func (d *Database) Add(ctx context.Context, op *remote.QueryOperation) error {
	if err := op.MarkAdded(); err != nil {
		return err
	}

	req := Request{Op: op, Cursor: op.Cursor}
	if op.Query != nil {
		req.RecordType = op.Query.RecordType
	} else {
		recordType, page, err := parseCursor(op.Cursor)
		if err != nil {
			go complete(op, nil, &remote.Error{Code: remote.CodeInvalidArguments, Message: err.Error()})
			return nil
		}
		req.RecordType, req.Page = recordType, page
	}

	d.mu.Lock()
	d.requests = append(d.requests, req)
	var failure error
	key := string(CursorFor(req.RecordType, req.Page))
	if errs := d.failures[key]; len(errs) > 0 {
		failure = errs[0]
		d.failures[key] = errs[1:]
	}
	pages := d.pages[req.RecordType]
	scribble := d.Scribble
	d.mu.Unlock()

	go func() {
		if err := ctx.Err(); err != nil {
			complete(op, nil, err)
			return
		}
		if failure != nil {
			complete(op, nil, failure)
			return
		}

		var records []*remote.Record
		if req.Page < len(pages) {
			records = pages[req.Page]
		}
		for _, rec := range records {
			delivered := cloneRecord(rec)
			if op.RecordFetched != nil {
				op.RecordFetched(delivered)
			}
			if scribble {
				delivered.ChangeTag = "scribbled"
				for k := range delivered.Fields {
					delivered.Fields[k] = "scribbled"
				}
			}
		}

		var next *remote.Cursor
		if req.Page+1 < len(pages) {
			c := CursorFor(req.RecordType, req.Page+1)
			next = &c
		}
		complete(op, next, nil)
	}()
	return nil
}

// SaveSubscription upserts sub by ID.
func (d *Database) SaveSubscription(_ context.Context, sub *remote.Subscription, done func(error)) {
	d.mu.Lock()
	d.saves++
	var err error
	if len(d.subErrors) > 0 {
		err = d.subErrors[0]
		d.subErrors = d.subErrors[1:]
	} else {
		d.subs[sub.ID] = *sub
	}
	d.mu.Unlock()

	go func() {
		if done != nil {
			done(err)
		}
	}()
}

func complete(op *remote.QueryOperation, next *remote.Cursor, err error) {
	if op.QueryCompleted != nil {
		op.QueryCompleted(next, err)
	}
}

func parseCursor(c remote.Cursor) (string, int, error) {
	s := string(c)
	i := strings.LastIndex(s, "/")
	if i <= 0 {
		return "", 0, fmt.Errorf("unknown cursor %q", s)
	}
	page, err := strconv.Atoi(s[i+1:])
	if err != nil {
		return "", 0, fmt.Errorf("unknown cursor %q", s)
	}
	return s[:i], page, nil
}

func cloneRecord(r *remote.Record) *remote.Record {
	out := *r
	out.Fields = maps.Clone(r.Fields)
	return &out
}
