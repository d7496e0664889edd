package sync

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/stacklok/recordsync/internal/remote"
)

// Target is a local consumer of one remote record type.
//
// Ingest, RegisterWithLocalStore and ReleaseResources are always called on the
// engine's worker, so implementations may hold thread-affine resources.
//
//go:generate mockgen -destination=mocks/mock_target.go -package=mocks github.com/stacklok/recordsync/internal/sync Target
type Target interface {
	// RecordType is the remote record type this target consumes.
	RecordType() string
	// Ingest maps one fetched record into local storage. An error is logged
	// and counted but does not stop the fetch.
	Ingest(snapshot RecordSnapshot) error
	// RegisterWithLocalStore prepares local storage before the first ingest.
	RegisterWithLocalStore() error
	// ReleaseResources releases local storage. No ingest follows it.
	ReleaseResources()
}

// RecordSnapshot is an immutable copy of a fetched record. It shares no
// memory with the record it was taken from.
type RecordSnapshot struct {
	recordType string
	id         string
	changeTag  string
	modified   time.Time
	fields     map[string]any
}

// NewRecordSnapshot deep-copies r.
func NewRecordSnapshot(r *remote.Record) RecordSnapshot {
	return RecordSnapshot{
		recordType: r.Type,
		id:         r.ID,
		changeTag:  r.ChangeTag,
		modified:   r.Modified,
		fields:     copyFields(r.Fields),
	}
}

// RecordType returns the record's type.
func (s RecordSnapshot) RecordType() string { return s.recordType }

// ID returns the record's identifier.
func (s RecordSnapshot) ID() string { return s.id }

// ChangeTag returns the service's version tag for the record.
func (s RecordSnapshot) ChangeTag() string { return s.changeTag }

// Modified returns the record's last modification time.
func (s RecordSnapshot) Modified() time.Time { return s.modified }

// Keys returns the field names in sorted order.
func (s RecordSnapshot) Keys() []string {
	return slices.Sorted(maps.Keys(s.fields))
}

// Field returns a copy of one field value.
func (s RecordSnapshot) Field(key string) (any, bool) {
	v, ok := s.fields[key]
	if !ok {
		return nil, false
	}
	return copyValue(v), true
}

// Fields returns a copy of every field.
func (s RecordSnapshot) Fields() map[string]any {
	return copyFields(s.fields)
}

func copyFields(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return copyFields(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = copyValue(e)
		}
		return out
	case []byte:
		return slices.Clone(t)
	case []string:
		return slices.Clone(t)
	case []float64:
		return slices.Clone(t)
	case []int64:
		return slices.Clone(t)
	default:
		// Scalars, strings and time.Time are values.
		return v
	}
}

// PositionKind distinguishes the three states of a Position.
type PositionKind int

const (
	// PositionStart requests the first page.
	PositionStart PositionKind = iota
	// PositionContinue requests the page after a cursor.
	PositionContinue
	// PositionExhausted means no pages remain.
	PositionExhausted
)

// Position says where a fetch chain is in a record type's result set.
type Position struct {
	kind   PositionKind
	cursor remote.Cursor
}

// Start is the position before the first page.
func Start() Position {
	return Position{kind: PositionStart}
}

// Continue is the position after the page that returned c.
func Continue(c remote.Cursor) Position {
	return Position{kind: PositionContinue, cursor: c}
}

// Exhausted is the position after the last page.
func Exhausted() Position {
	return Position{kind: PositionExhausted}
}

// positionAfter is the position following a page that returned next.
func positionAfter(next *remote.Cursor) Position {
	if next == nil || *next == "" {
		return Exhausted()
	}
	return Continue(*next)
}

// Kind returns the position's state.
func (p Position) Kind() PositionKind { return p.kind }

// Cursor returns the continuation cursor for PositionContinue.
func (p Position) Cursor() (remote.Cursor, bool) {
	return p.cursor, p.kind == PositionContinue
}

// IsExhausted reports whether no pages remain.
func (p Position) IsExhausted() bool { return p.kind == PositionExhausted }

func (p Position) String() string {
	switch p.kind {
	case PositionStart:
		return "start"
	case PositionContinue:
		return fmt.Sprintf("continue(%s)", p.cursor)
	case PositionExhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("Position(%d)", int(p.kind))
	}
}
