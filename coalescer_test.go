package fsa

import (
	"crypto/md5"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoalescerCanFitRespectsByteBudget(t *testing.T) {
	c := NewCoalescer()
	assert.True(t, c.CanFit(MaxBlockSize))
	assert.False(t, c.CanFit(MaxBlockSize+1))
}

func TestCoalescerCanFitRespectsItemCount(t *testing.T) {
	c := NewCoalescer()
	for i := 0; i < MaxSmallCount; i++ {
		d := NewDico()
		require.NoError(t, c.Add(d, MagicObject, 0, []byte("x")))
	}
	assert.False(t, c.CanFit(1))
}

func TestCoalescerFlushEmitsHeadersThenOneBlock(t *testing.T) {
	q := NewQueue(8)
	c := NewCoalescer()

	d1 := NewDico()
	require.NoError(t, c.Add(d1, MagicObject, 0, []byte("aaa")))
	d2 := NewDico()
	require.NoError(t, c.Add(d2, MagicObject, 0, []byte("bb")))

	require.NoError(t, c.Flush(q, 0))
	assert.Equal(t, 0, c.Len())

	kind, _, _, _, _, _, err := q.DequeueFirst()
	require.NoError(t, err)
	assert.Equal(t, KindHeader, kind)

	kind, _, _, _, _, _, err = q.DequeueFirst()
	require.NoError(t, err)
	assert.Equal(t, KindHeader, kind)

	b, num, err := q.FindFirstBlockTodo()
	require.NoError(t, err)
	require.NoError(t, q.ReplaceBlock(num, b, StatusDone))

	kind, _, _, _, block, _, err := q.DequeueFirst()
	require.NoError(t, err)
	assert.Equal(t, KindBlock, kind)
	assert.Equal(t, "aaabb", string(block.Data))
}

func TestCoalescerFlushBackfillsMultiCount(t *testing.T) {
	q := NewQueue(8)
	c := NewCoalescer()

	d1 := NewDico()
	require.NoError(t, c.Add(d1, MagicObject, 0, []byte("a")))
	d2 := NewDico()
	require.NoError(t, c.Add(d2, MagicObject, 0, []byte("b")))
	require.NoError(t, c.Flush(q, 0))

	count, err := d1.GetU32(SectionStdAttr, AttrMultiCount)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), count)

	off2, err := d2.GetU32(SectionStdAttr, AttrMultiOffset)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), off2)
}

func TestCoalescerAddRecordsSubfileMD5(t *testing.T) {
	c := NewCoalescer()
	d := NewDico()
	require.NoError(t, c.Add(d, MagicObject, 0, []byte("hello")))

	got, err := d.GetBytes(SectionStdAttr, AttrMultiMD5)
	require.NoError(t, err)
	want := md5.Sum([]byte("hello"))
	assert.Equal(t, want[:], got)
}

func TestCoalescerFlushOnEmptyIsNoop(t *testing.T) {
	q := NewQueue(8)
	c := NewCoalescer()
	require.NoError(t, c.Flush(q, 0))
	assert.Equal(t, 0, q.Count())
}
