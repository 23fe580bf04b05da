package fsa

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fsarchiver/fsa/fsadapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildSourceTree lays out a small directory tree exercising a
// subdirectory, a unique (large) regular file, several small
// coalesce-eligible files, a symlink, and a hardlink pair.
func buildSourceTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0755))

	big := make([]byte, smallFileThreshold+4096)
	for i := range big {
		big[i] = byte(i % 251)
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "big.bin"), big, 0644))

	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "small1.txt"), []byte("alpha"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "small2.txt"), []byte("beta"), 0644))

	require.NoError(t, os.Symlink("big.bin", filepath.Join(root, "link-to-big")))

	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "original.txt"), []byte("shared content"), 0644))
	require.NoError(t, os.Link(filepath.Join(root, "sub", "original.txt"), filepath.Join(root, "sub", "hardlink.txt")))

	return root
}

func TestProducerConsumerRoundTripDirectoryTree(t *testing.T) {
	srcRoot := buildSourceTree(t)
	workDir := t.TempDir()
	archivePath := filepath.Join(workDir, "roundtrip.fsa")
	destRoot := filepath.Join(workDir, "dest")

	opts := &Options{Workers: 2, CompLevel: 3}
	ctx := NewContext(opts)

	fw, err := NewFrameWriter(archivePath, RandomArchiveID(), 0, true)
	require.NoError(t, err)

	sources := []SaveSource{{Name: srcRoot, MountPath: srcRoot, Adapter: fsadapter.Dir{}}}
	producer := NewProducer(ctx, fw)
	require.NoError(t, producer.Save(ArchiveTypeDirectories, sources))

	assert.Equal(t, int64(0), ctx.Stats.ErrReg)
	assert.Equal(t, int64(0), ctx.Stats.ErrDir)
	assert.Equal(t, int64(0), ctx.Stats.ErrSym)
	assert.Equal(t, int64(0), ctx.Stats.ErrHardlink)
	assert.Equal(t, int64(4), ctx.Stats.CntReg) // big.bin, small1, small2, hardlink.txt
	assert.Equal(t, int64(1), ctx.Stats.CntHardlink)
	assert.Equal(t, int64(1), ctx.Stats.CntSym)
	assert.Equal(t, int64(1), ctx.Stats.CntDir) // "sub"

	restoreCtx := NewContext(&Options{Workers: 2})
	fr, err := OpenReader(archivePath)
	require.NoError(t, err)
	defer fr.Close()

	dests := []RestoreDest{{MountPath: destRoot, Adapter: fsadapter.Dir{}}}
	consumer := NewConsumer(restoreCtx, fr, dests)
	require.NoError(t, consumer.Restore())

	gotBig, err := os.ReadFile(filepath.Join(destRoot, "big.bin"))
	require.NoError(t, err)
	wantBig, err := os.ReadFile(filepath.Join(srcRoot, "big.bin"))
	require.NoError(t, err)
	assert.Equal(t, wantBig, gotBig)

	gotSmall1, err := os.ReadFile(filepath.Join(destRoot, "sub", "small1.txt"))
	require.NoError(t, err)
	assert.Equal(t, "alpha", string(gotSmall1))

	gotSmall2, err := os.ReadFile(filepath.Join(destRoot, "sub", "small2.txt"))
	require.NoError(t, err)
	assert.Equal(t, "beta", string(gotSmall2))

	target, err := os.Readlink(filepath.Join(destRoot, "link-to-big"))
	require.NoError(t, err)
	assert.Equal(t, "big.bin", target)

	origInfo, err := os.Stat(filepath.Join(destRoot, "sub", "original.txt"))
	require.NoError(t, err)
	linkInfo, err := os.Stat(filepath.Join(destRoot, "sub", "hardlink.txt"))
	require.NoError(t, err)
	assert.True(t, os.SameFile(origInfo, linkInfo))

	assert.Equal(t, int64(0), restoreCtx.Stats.ErrReg)
	assert.Equal(t, int64(0), restoreCtx.Stats.ErrDir)
	assert.Equal(t, int64(0), restoreCtx.Stats.ErrSym)
	assert.Equal(t, int64(0), restoreCtx.Stats.ErrHardlink)
	assert.Equal(t, int64(4), restoreCtx.Stats.CntReg)
	assert.Equal(t, int64(1), restoreCtx.Stats.CntHardlink)
	assert.Equal(t, int64(1), restoreCtx.Stats.CntSym)
	assert.Equal(t, int64(1), restoreCtx.Stats.CntDir)
}
