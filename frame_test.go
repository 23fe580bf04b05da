package fsa

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameWriterReaderRoundTripSingleVolume(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "test.fsa")

	w, err := NewFrameWriter(base, 0xABCD, 0, true)
	require.NoError(t, err)

	d1 := NewDico()
	require.NoError(t, d1.AddString(SectionStdAttr, AttrPath, "a/b"))
	require.NoError(t, w.AppendHeader(d1, MagicObject, 3))

	require.NoError(t, w.AppendBlock(&Block{
		FsID: 3, Offset: 0, RealSize: 5, ArchiveSize: 5,
		ArchiveChecksum: Fletcher32([]byte("hello")),
		Data:            []byte("hello"),
		CompAlgo:        CompNone,
	}))

	require.NoError(t, w.Finalize())

	r, err := OpenReader(base)
	require.NoError(t, err)
	defer r.Close()

	d, magic, fsID, err := r.NextHeader(false)
	require.NoError(t, err)
	assert.Equal(t, MagicObject, magic)
	assert.Equal(t, uint16(3), fsID)
	p, err := d.GetString(SectionStdAttr, AttrPath)
	require.NoError(t, err)
	assert.Equal(t, "a/b", p)

	bd, magic, fsID, err := r.NextHeader(false)
	require.NoError(t, err)
	assert.Equal(t, MagicBlockHeader, magic)
	assert.Equal(t, uint16(3), fsID)
	b, err := blockFromDico(bd, fsID)
	require.NoError(t, err)
	payload, err := r.NextBlockPayload(b.ArchiveSize)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(payload))

	_, _, _, err = r.NextHeader(false)
	assert.ErrorIs(t, err, io.EOF)
}

func TestFrameWriterSplitsAcrossVolumes(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "split.fsa")

	w, err := NewFrameWriter(base, 1, MinVolumeSize, true)
	require.NoError(t, err)

	big := make([]byte, MinVolumeSize/2)
	for i := range big {
		big[i] = byte(i)
	}
	for i := 0; i < 3; i++ {
		require.NoError(t, w.AppendBlock(&Block{
			FsID: 0, Offset: uint64(i), RealSize: uint32(len(big)),
			ArchiveSize:     uint32(len(big)),
			ArchiveChecksum: Fletcher32(big),
			Data:            big,
			CompAlgo:        CompNone,
		}))
	}
	require.NoError(t, w.Finalize())

	_, err = os.Stat(VolumePath(base, 0))
	require.NoError(t, err)
	_, err = os.Stat(VolumePath(base, 1))
	require.NoError(t, err, "writing 1.5 volumes worth of blocks should have rolled to a second volume file")
}

func TestFrameReaderResyncsPastInjectedGarbage(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "garbage.fsa")

	w, err := NewFrameWriter(base, 7, 0, true)
	require.NoError(t, err)
	d := NewDico()
	require.NoError(t, d.AddString(SectionStdAttr, AttrPath, "clean-record"))
	require.NoError(t, w.AppendHeader(d, MagicObject, 0))
	require.NoError(t, w.Finalize())

	path := VolumePath(base, 0)
	orig, err := os.ReadFile(path)
	require.NoError(t, err)

	// splice garbage bytes in front of the ObJt record to force the
	// reader to resync forward.
	garbage := []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x00, 0x11}
	idx := indexOfMagic(orig, MagicObject)
	require.Greater(t, idx, 0)
	spliced := append(append(append([]byte{}, orig[:idx]...), garbage...), orig[idx:]...)
	require.NoError(t, os.WriteFile(path, spliced, 0644))

	r, err := OpenReader(base)
	require.NoError(t, err)
	defer r.Close()

	got, magic, _, err := r.NextHeader(true)
	require.NoError(t, err)
	assert.Equal(t, MagicObject, magic)
	p, err := got.GetString(SectionStdAttr, AttrPath)
	require.NoError(t, err)
	assert.Equal(t, "clean-record", p)
}

func indexOfMagic(buf []byte, magic [4]byte) int {
	for i := 0; i+4 <= len(buf); i++ {
		if buf[i] == magic[0] && buf[i+1] == magic[1] && buf[i+2] == magic[2] && buf[i+3] == magic[3] {
			return i
		}
	}
	return -1
}
