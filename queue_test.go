package fsa

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueFIFOOrderingAcrossKinds(t *testing.T) {
	q := NewQueue(8)
	d := NewDico()
	q.EnqueueHeader(d, MagicObject, 0)
	q.EnqueueBlock(&Block{RealSize: 1, Data: []byte("a")})
	q.EnqueueHeader(d, MagicFileFooter, 0)

	kind, _, magic, _, _, _, err := q.DequeueFirst()
	require.NoError(t, err)
	assert.Equal(t, KindHeader, kind)
	assert.Equal(t, MagicObject, magic)

	b, num, err := q.FindFirstBlockTodo()
	require.NoError(t, err)
	require.NoError(t, q.ReplaceBlock(num, b, StatusDone))

	kind, _, _, _, block, _, err := q.DequeueFirst()
	require.NoError(t, err)
	assert.Equal(t, KindBlock, kind)
	assert.Equal(t, "a", string(block.Data))

	kind, _, magic, _, _, _, err = q.DequeueFirst()
	require.NoError(t, err)
	assert.Equal(t, KindHeader, kind)
	assert.Equal(t, MagicFileFooter, magic)
}

func TestQueueDequeueFirstReturnsEndOfQueueWhenDrained(t *testing.T) {
	q := NewQueue(8)
	q.SetEndOfQueue(true)
	_, _, _, _, _, _, err := q.DequeueFirst()
	assert.ErrorIs(t, err, ErrEndOfQueue)
}

func TestQueueEnqueueBlockBlocksUntilCapacityFrees(t *testing.T) {
	q := NewQueue(1)
	q.EnqueueBlock(&Block{RealSize: 1, Data: []byte("a")})

	done := make(chan struct{})
	go func() {
		q.EnqueueBlock(&Block{RealSize: 1, Data: []byte("b")})
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("second EnqueueBlock should have blocked while capacity was full")
	case <-time.After(50 * time.Millisecond):
	}

	b, num, err := q.FindFirstBlockTodo()
	require.NoError(t, err)
	require.NoError(t, q.ReplaceBlock(num, b, StatusDone))

	_, _, _, _, _, _, err = q.DequeueFirst()
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("EnqueueBlock did not unblock after a slot freed")
	}
}

func TestQueueDequeueHeaderBlockingRejectsBlockHead(t *testing.T) {
	q := NewQueue(8)
	q.EnqueueBlock(&Block{RealSize: 1, Data: []byte("a")})
	_, _, _, err := q.DequeueHeaderBlocking()
	assert.ErrorIs(t, err, ErrWrongType)
}

func TestQueueDequeueBlockBlockingRejectsHeaderHead(t *testing.T) {
	q := NewQueue(8)
	q.EnqueueHeader(NewDico(), MagicObject, 0)
	_, err := q.DequeueBlockBlocking()
	assert.ErrorIs(t, err, ErrWrongType)
}

func TestQueuePeekFirstReportsKindWithoutRemoving(t *testing.T) {
	q := NewQueue(8)
	q.EnqueueHeader(NewDico(), MagicObject, 0)
	kind, magic, err := q.PeekFirst()
	require.NoError(t, err)
	assert.Equal(t, KindHeader, kind)
	assert.Equal(t, MagicObject, magic)
	assert.Equal(t, 1, q.Count())
}

func TestQueuePeekFirstWaitsWhenEmptyAndNotEnded(t *testing.T) {
	q := NewQueue(8)
	_, _, err := q.PeekFirst()
	assert.ErrorIs(t, err, ErrWait)
}

func TestQueueDestroyFirstItemDropsBlockAndFreesCapacity(t *testing.T) {
	q := NewQueue(1)
	q.EnqueueBlock(&Block{RealSize: 1, Data: []byte("a")})
	q.DestroyFirstItem()
	assert.Equal(t, 0, q.Count())
	assert.Equal(t, 0, q.CountTodo())
	assert.Equal(t, 0, q.blocks)
}

func TestQueueFindFirstBlockTodoClaimsAtomically(t *testing.T) {
	q := NewQueue(8)
	q.EnqueueBlock(&Block{RealSize: 1, Data: []byte("a")})

	b, num, err := q.FindFirstBlockTodo()
	require.NoError(t, err)
	assert.Equal(t, "a", string(b.Data))
	assert.Equal(t, 0, q.CountTodo())

	_, _, err = q.FindFirstBlockTodo()
	assert.ErrorIs(t, err, ErrWait)

	require.NoError(t, q.ReplaceBlock(num, b, StatusDone))
	kind, _, _, _, got, _, err := q.DequeueFirst()
	require.NoError(t, err)
	assert.Equal(t, KindBlock, kind)
	assert.Equal(t, "a", string(got.Data))
}

func TestQueueReplaceBlockRejectsNonInProgress(t *testing.T) {
	q := NewQueue(8)
	num := q.EnqueueBlock(&Block{RealSize: 1, Data: []byte("a")})
	err := q.ReplaceBlock(num, &Block{RealSize: 1, Data: []byte("b")}, StatusDone)
	assert.ErrorIs(t, err, ErrInvalidArg)
}

func TestQueueDrainedReflectsEndOfQueueAndTodoState(t *testing.T) {
	q := NewQueue(8)
	assert.False(t, q.Drained())
	q.EnqueueBlock(&Block{RealSize: 1, Data: []byte("a")})
	q.SetEndOfQueue(true)
	assert.False(t, q.Drained())

	_, num, err := q.FindFirstBlockTodo()
	require.NoError(t, err)
	require.NoError(t, q.ReplaceBlock(num, &Block{RealSize: 1, Data: []byte("a")}, StatusDone))
	_, _, _, _, _, _, err = q.DequeueFirst()
	require.NoError(t, err)
	assert.True(t, q.Drained())
}

func TestQueueConcurrentProducersPreserveEachProducerOrder(t *testing.T) {
	q := NewQueue(64)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			q.EnqueueBlock(&Block{FsID: 0, RealSize: 1, Data: []byte{byte(i)}})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			q.EnqueueBlock(&Block{FsID: 1, RealSize: 1, Data: []byte{byte(i)}})
		}
	}()
	wg.Wait()
	q.SetEndOfQueue(true)

	for {
		b, num, err := q.FindFirstBlockTodo()
		if err == ErrWait {
			break
		}
		require.NoError(t, err)
		require.NoError(t, q.ReplaceBlock(num, b, StatusDone))
	}

	var lastByFs = map[uint16]int{0: -1, 1: -1}
	for {
		_, _, _, _, b, _, err := q.DequeueFirst()
		if err == ErrEndOfQueue {
			break
		}
		require.NoError(t, err)
		v := int(b.Data[0])
		assert.Greater(t, v, lastByFs[b.FsID])
		lastByFs[b.FsID] = v
	}
}
