package fsa

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, algo CompAlgo) {
	t.Helper()
	raw := []byte(strings.Repeat("fsarchiver compressible payload data ", 64))

	b := &Block{RealSize: uint32(len(raw)), Data: append([]byte(nil), raw...)}
	require.NoError(t, CompressBlock(b, algo, 5, ""))

	require.NoError(t, DecompressBlock(b, ""))
	assert.False(t, b.Corrupt)
	assert.True(t, bytes.Equal(raw, b.Data))
}

func TestCodecRoundTripGZIP(t *testing.T) { roundTrip(t, CompGZIP) }
func TestCodecRoundTripLZMA(t *testing.T) { roundTrip(t, CompLZMA) }
func TestCodecRoundTripBZIP2(t *testing.T) { roundTrip(t, CompBZIP2) }
func TestCodecRoundTripLZO(t *testing.T) { roundTrip(t, CompLZO) }

func TestCodecIncompressibleFallsBackToStoredUncompressed(t *testing.T) {
	raw := []byte{0x01} // too short to shrink under any codec's framing overhead
	b := &Block{RealSize: uint32(len(raw)), Data: append([]byte(nil), raw...)}
	require.NoError(t, CompressBlock(b, CompGZIP, 5, ""))
	assert.Equal(t, CompNone, b.CompAlgo)
	assert.Equal(t, raw, b.Data)
}

func TestCodecRoundTripWithEncryption(t *testing.T) {
	raw := []byte(strings.Repeat("secret payload ", 32))
	b := &Block{RealSize: uint32(len(raw)), Data: append([]byte(nil), raw...)}
	require.NoError(t, CompressBlock(b, CompGZIP, 5, "hunter2"))
	assert.Equal(t, EncryptBlowfish, b.EncryptAlgo)

	require.NoError(t, DecompressBlock(b, "hunter2"))
	assert.Equal(t, raw, b.Data)
}

func TestCodecDecompressDetectsChecksumCorruption(t *testing.T) {
	raw := []byte(strings.Repeat("corrupt me please ", 16))
	b := &Block{RealSize: uint32(len(raw)), Data: append([]byte(nil), raw...)}
	require.NoError(t, CompressBlock(b, CompGZIP, 5, ""))

	b.Data[0] ^= 0xFF

	err := DecompressBlock(b, "")
	assert.ErrorIs(t, err, ErrCorrupt)
	assert.True(t, b.Corrupt)
}
