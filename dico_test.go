package fsa

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDicoRoundTrip(t *testing.T) {
	d := NewDico()
	require.NoError(t, d.AddU8(SectionStdAttr, 1, 7))
	require.NoError(t, d.AddU32(SectionStdAttr, 2, 0xDEADBEEF))
	require.NoError(t, d.AddString(SectionStdAttr, 3, "hello"))
	require.NoError(t, d.AddBytes(SectionXAttr, 1, []byte{1, 2, 3}))

	buf := d.Serialize()
	parsed, err := ParseDico(buf)
	require.NoError(t, err)

	u8, err := parsed.GetU8(SectionStdAttr, 1)
	require.NoError(t, err)
	assert.Equal(t, uint8(7), u8)

	u32, err := parsed.GetU32(SectionStdAttr, 2)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xDEADBEEF), u32)

	s, err := parsed.GetString(SectionStdAttr, 3)
	require.NoError(t, err)
	assert.Equal(t, "hello", s)

	b, err := parsed.GetBytes(SectionXAttr, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, b)
}

func TestDicoDuplicateKeyRejected(t *testing.T) {
	d := NewDico()
	require.NoError(t, d.AddU8(SectionStdAttr, 1, 1))
	err := d.AddU8(SectionStdAttr, 1, 2)
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestDicoGetMissingKey(t *testing.T) {
	d := NewDico()
	_, err := d.GetU32(SectionStdAttr, 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDicoGetWrongType(t *testing.T) {
	d := NewDico()
	require.NoError(t, d.AddU8(SectionStdAttr, 1, 1))
	_, err := d.GetU32(SectionStdAttr, 1)
	assert.ErrorIs(t, err, ErrWrongType)
}

func TestParseDicoCorruptTruncated(t *testing.T) {
	_, err := ParseDico([]byte{0x01})
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestParseDicoCorruptOversizedLength(t *testing.T) {
	d := NewDico()
	require.NoError(t, d.AddString(SectionStdAttr, 1, "x"))
	buf := d.Serialize()
	// corrupt the declared size field of the first item to run past the buffer
	buf[6] = 0xFF
	buf[7] = 0xFF
	_, err := ParseDico(buf)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestDicoEachPreservesInsertionOrder(t *testing.T) {
	d := NewDico()
	require.NoError(t, d.AddU8(SectionStdAttr, 5, 1))
	require.NoError(t, d.AddU8(SectionStdAttr, 1, 2))
	require.NoError(t, d.AddU8(SectionStdAttr, 3, 3))

	var keys []uint16
	d.Each(func(section Section, key uint16, typ ValueType, value []byte) {
		keys = append(keys, key)
	})
	assert.Equal(t, []uint16{5, 1, 3}, keys)
}
