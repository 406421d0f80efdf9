package buffer

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GabrielNunesIT/event-buffer/internal/model"
)

func TestBuffer_AppendPreservesOrder(t *testing.T) {
	b := New()
	assert.True(t, b.IsEmpty())

	b.Append(model.NewEvent("level_start", "level:3"))
	b.Append(model.NewEvent("level_start", "level:2"))
	b.Append(model.NewEvent("level_start", "level:3"))

	snap := b.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "level:3", snap[0].Data)
	assert.Equal(t, "level:2", snap[1].Data)
	assert.Equal(t, "level:3", snap[2].Data)
	assert.False(t, b.IsEmpty())
}

func TestBuffer_SnapshotIsIndependent(t *testing.T) {
	b := New()
	b.Append(model.NewEvent("a", "1"))

	snap := b.Snapshot()
	b.Append(model.NewEvent("b", "2"))
	snap[0] = model.NewEvent("x", "x")

	assert.Len(t, snap, 1)
	assert.Equal(t, []model.Event{{Type: "a", Data: "1"}, {Type: "b", Data: "2"}}, b.Snapshot())
}

func TestBuffer_DropThroughKeepsLaterAppends(t *testing.T) {
	b := New()
	b.Append(model.NewEvent("a", "1"))
	b.Append(model.NewEvent("b", "2"))

	sent, cursor := b.SnapshotCursor()
	require.Len(t, sent, 2)

	// Appended while the snapshot is "in flight".
	b.Append(model.NewEvent("c", "3"))

	left := b.DropThrough(cursor)
	assert.Equal(t, 1, left)
	assert.Equal(t, []model.Event{{Type: "c", Data: "3"}}, b.Snapshot())
}

func TestBuffer_DropThroughIsIdempotent(t *testing.T) {
	b := New()
	b.Append(model.NewEvent("a", "1"))
	_, cursor := b.SnapshotCursor()
	b.Append(model.NewEvent("b", "2"))

	assert.Equal(t, 1, b.DropThrough(cursor))
	assert.Equal(t, 1, b.DropThrough(cursor), "repeating a drop must not remove newer events")
	assert.Equal(t, []model.Event{{Type: "b", Data: "2"}}, b.Snapshot())
}

func TestBuffer_DropThroughAfterEviction(t *testing.T) {
	b := New(WithMaxEvents(3))
	b.Append(model.NewEvent("e", "1"))
	b.Append(model.NewEvent("e", "2"))

	_, cursor := b.SnapshotCursor() // covers e1, e2

	// While in flight, the bound evicts e1 and e2.
	b.Append(model.NewEvent("e", "3"))
	b.Append(model.NewEvent("e", "4"))
	b.Append(model.NewEvent("e", "5"))
	require.Equal(t, uint64(2), b.Evicted())

	// Nothing left of the delivered snapshot, so nothing else may go.
	assert.Equal(t, 3, b.DropThrough(cursor))
	assert.Equal(t, []model.Event{{Type: "e", Data: "3"}, {Type: "e", Data: "4"}, {Type: "e", Data: "5"}}, b.Snapshot())
}

func TestBuffer_DropThroughEverything(t *testing.T) {
	b := New()
	b.Append(model.NewEvent("a", "1"))
	_, cursor := b.SnapshotCursor()

	assert.Equal(t, 0, b.DropThrough(cursor))
	assert.True(t, b.IsEmpty())

	b.Append(model.NewEvent("b", "2"))
	_, next := b.SnapshotCursor()
	assert.Greater(t, next, cursor)
	assert.Equal(t, 0, b.DropThrough(next))
}

func TestBuffer_Prepend(t *testing.T) {
	b := New()
	b.Append(model.NewEvent("live", "1"))
	b.Prepend([]model.Event{model.NewEvent("restored", "1"), model.NewEvent("restored", "2")})

	assert.Equal(t, []model.Event{
		{Type: "restored", Data: "1"},
		{Type: "restored", Data: "2"},
		{Type: "live", Data: "1"},
	}, b.Snapshot())

	b.Prepend(nil)
	assert.Equal(t, 3, b.Len())
}

func TestBuffer_Clear(t *testing.T) {
	b := New()
	b.Append(model.NewEvent("a", "1"))
	b.Clear()
	assert.True(t, b.IsEmpty())
	assert.Empty(t, b.Snapshot())
}

func TestBuffer_MaxEventsEvictsOldest(t *testing.T) {
	b := New(WithMaxEvents(2))
	b.Append(model.NewEvent("e", "1"))
	b.Append(model.NewEvent("e", "2"))
	b.Append(model.NewEvent("e", "3"))

	assert.Equal(t, []model.Event{{Type: "e", Data: "2"}, {Type: "e", Data: "3"}}, b.Snapshot())
	assert.Equal(t, uint64(1), b.Evicted())
}

func TestBuffer_ConcurrentAppend(t *testing.T) {
	b := New()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				b.Append(model.NewEvent("w", fmt.Sprintf("%d:%d", w, i)))
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, 800, b.Len())
}
