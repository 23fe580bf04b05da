package fsa

import (
	"crypto/md5"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyBlockRejectsOutOfOrderOffset(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.bin")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	require.NoError(t, err)
	defer f.Close()

	ctx := NewContext(&Options{Workers: 1})
	c := NewConsumer(ctx, nil, nil)
	c.cur = &openRegfile{f: f, path: path, hash: md5.New()}

	err = c.applyBlock(&Block{Offset: 4, Data: []byte("late")})
	assert.Error(t, err)
	assert.Equal(t, uint64(0), c.cur.nextOffset)

	require.NoError(t, c.applyBlock(&Block{Offset: 0, Data: []byte("head")}))
	assert.Equal(t, uint64(4), c.cur.nextOffset)
}

func TestApplyMultiBlockRejectsMD5Mismatch(t *testing.T) {
	destRoot := t.TempDir()
	ctx := NewContext(&Options{Workers: 1})
	c := NewConsumer(ctx, nil, []RestoreDest{{MountPath: destRoot}})

	wrong := md5.Sum([]byte("not hello"))
	h := &ObjectHeader{Path: "small.txt", Size: 5, Mode: 0644, MultiOffset: 0, MultiMD5: wrong[:]}
	c.pendingMulti = []pendingMultiFile{{fsID: 0, h: h}}

	require.NoError(t, c.applyMultiBlock(&Block{Data: []byte("hello")}))

	assert.Equal(t, int64(1), ctx.Stats.ErrReg)
	assert.Equal(t, int64(0), ctx.Stats.CntReg)
	_, statErr := os.Stat(filepath.Join(destRoot, "small.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestApplyMultiBlockAcceptsMatchingMD5(t *testing.T) {
	destRoot := t.TempDir()
	ctx := NewContext(&Options{Workers: 1})
	c := NewConsumer(ctx, nil, []RestoreDest{{MountPath: destRoot}})

	sum := md5.Sum([]byte("hello"))
	h := &ObjectHeader{Path: "small.txt", Size: 5, Mode: 0644, MultiOffset: 0, MultiMD5: sum[:]}
	c.pendingMulti = []pendingMultiFile{{fsID: 0, h: h}}

	require.NoError(t, c.applyMultiBlock(&Block{Data: []byte("hello")}))

	assert.Equal(t, int64(0), ctx.Stats.ErrReg)
	assert.Equal(t, int64(1), ctx.Stats.CntReg)
	got, err := os.ReadFile(filepath.Join(destRoot, "small.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))
}
