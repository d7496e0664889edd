package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/recordsync/internal/remote"
)

func TestNewRecordSnapshot_DeepCopies(t *testing.T) {
	t.Parallel()

	modified := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := &remote.Record{
		Type:      "Note",
		ID:        "n1",
		ChangeTag: "v7",
		Modified:  modified,
		Fields: map[string]any{
			"title":  "hello",
			"body":   []byte("raw"),
			"tags":   []any{"a", map[string]any{"k": "v"}},
			"meta":   map[string]any{"author": "kim", "refs": []string{"x"}},
			"weight": 1.5,
		},
	}

	snap := NewRecordSnapshot(rec)

	// Mutate everything reachable from the source record.
	rec.ID = "changed"
	rec.Fields["title"] = "changed"
	rec.Fields["body"].([]byte)[0] = 'X'
	rec.Fields["tags"].([]any)[0] = "changed"
	rec.Fields["tags"].([]any)[1].(map[string]any)["k"] = "changed"
	rec.Fields["meta"].(map[string]any)["author"] = "changed"
	rec.Fields["meta"].(map[string]any)["refs"].([]string)[0] = "changed"
	rec.Fields["extra"] = true

	assert.Equal(t, "Note", snap.RecordType())
	assert.Equal(t, "n1", snap.ID())
	assert.Equal(t, "v7", snap.ChangeTag())
	assert.Equal(t, modified, snap.Modified())
	assert.Equal(t, []string{"body", "meta", "tags", "title", "weight"}, snap.Keys())

	assert.Equal(t, map[string]any{
		"title":  "hello",
		"body":   []byte("raw"),
		"tags":   []any{"a", map[string]any{"k": "v"}},
		"meta":   map[string]any{"author": "kim", "refs": []string{"x"}},
		"weight": 1.5,
	}, snap.Fields())
}

func TestRecordSnapshot_AccessorsReturnCopies(t *testing.T) {
	t.Parallel()

	snap := NewRecordSnapshot(&remote.Record{
		Type:   "Note",
		ID:     "n1",
		Fields: map[string]any{"meta": map[string]any{"a": "b"}},
	})

	v, ok := snap.Field("meta")
	require.True(t, ok)
	v.(map[string]any)["a"] = "mutated"

	fields := snap.Fields()
	fields["meta"].(map[string]any)["a"] = "mutated"
	fields["new"] = 1

	again, _ := snap.Field("meta")
	assert.Equal(t, map[string]any{"a": "b"}, again)
	assert.Equal(t, []string{"meta"}, snap.Keys())

	_, ok = snap.Field("missing")
	assert.False(t, ok)
}

func TestRecordSnapshot_NilFields(t *testing.T) {
	t.Parallel()

	snap := NewRecordSnapshot(&remote.Record{Type: "Note", ID: "n1"})
	assert.Nil(t, snap.Fields())
	assert.Empty(t, snap.Keys())
}

func TestPosition(t *testing.T) {
	t.Parallel()

	start := Start()
	assert.Equal(t, PositionStart, start.Kind())
	_, ok := start.Cursor()
	assert.False(t, ok)
	assert.Equal(t, "start", start.String())

	cont := Continue("abc")
	assert.Equal(t, PositionContinue, cont.Kind())
	c, ok := cont.Cursor()
	assert.True(t, ok)
	assert.Equal(t, remote.Cursor("abc"), c)
	assert.Equal(t, "continue(abc)", cont.String())

	assert.True(t, Exhausted().IsExhausted())
	assert.Equal(t, "exhausted", Exhausted().String())

	next := remote.Cursor("next")
	empty := remote.Cursor("")
	assert.Equal(t, Continue("next"), positionAfter(&next))
	assert.True(t, positionAfter(nil).IsExhausted())
	assert.True(t, positionAfter(&empty).IsExhausted())
}
