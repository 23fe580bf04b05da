package fsa

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHardlinkMapFirstInsertThenLookup(t *testing.T) {
	m := NewHardlinkMap()
	require.NoError(t, m.Insert(1, 100, "/a/f1"))

	target, err := m.Get(1, 100)
	require.NoError(t, err)
	assert.Equal(t, "/a/f1", target)
	assert.Equal(t, 1, m.Len())
}

func TestHardlinkMapMissIsNotFound(t *testing.T) {
	m := NewHardlinkMap()
	_, err := m.Get(1, 100)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHardlinkMapDuplicateInsertRejected(t *testing.T) {
	m := NewHardlinkMap()
	require.NoError(t, m.Insert(1, 100, "/a/f1"))
	err := m.Insert(1, 100, "/a/f2")
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestHardlinkMapDistinguishesDeviceAndInode(t *testing.T) {
	m := NewHardlinkMap()
	require.NoError(t, m.Insert(1, 100, "/a/f1"))
	require.NoError(t, m.Insert(2, 100, "/b/f1"))
	assert.Equal(t, 2, m.Len())
}
