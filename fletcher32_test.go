package fsa

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFletcher32Empty(t *testing.T) {
	assert.Equal(t, uint32(0), Fletcher32(nil))
}

func TestFletcher32Deterministic(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")
	a := Fletcher32(data)
	b := Fletcher32(data)
	require.Equal(t, a, b)
}

func TestFletcher32DetectsBitFlip(t *testing.T) {
	data := []byte("fsarchiver attribute record payload")
	orig := Fletcher32(data)

	flipped := append([]byte(nil), data...)
	flipped[3] ^= 0x01
	assert.NotEqual(t, orig, Fletcher32(flipped))
}

func TestFletcher32OddLength(t *testing.T) {
	// exercises the zero-padded final byte path
	assert.NotPanics(t, func() { Fletcher32([]byte("odd")) })
}
