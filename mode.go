package fsa

import (
	"io/fs"
	"os"

	"golang.org/x/sys/unix"
)

// statInfo is the subset of a raw stat(2) result the producer/consumer
// need beyond what os.FileInfo already exposes: device id, inode
// number, link count, and allocated block count (for sparse
// detection, §4.8 "sparse files are detected by st_blocks * 512 <
// st_size"). Grounded on the teacher's use of golang.org/x/sys for
// low-level platform values (go.mod); raw struct stat access has no
// higher-level equivalent in the retrieval pack, so this goes through
// golang.org/x/sys/unix rather than the frozen standard-library
// syscall package.
type statInfo struct {
	Dev     uint64
	Ino     uint64
	Nlink   uint64
	Rdev    uint64
	Blocks  int64
	Mode    uint32
	Uid     uint32
	Gid     uint32
	Atime   int64
	Mtime   int64
}

func lstat(path string) (fs.FileInfo, *statInfo, error) {
	fi, err := os.Lstat(path)
	if err != nil {
		return nil, nil, err
	}
	var st unix.Stat_t
	if err := unix.Lstat(path, &st); err != nil {
		return nil, nil, err
	}
	info := &statInfo{
		Dev:    uint64(st.Dev),
		Ino:    uint64(st.Ino),
		Nlink:  uint64(st.Nlink),
		Rdev:   uint64(st.Rdev),
		Blocks: int64(st.Blocks),
		Mode:   st.Mode,
		Uid:    st.Uid,
		Gid:    st.Gid,
		Atime:  int64(st.Atim.Sec),
		Mtime:  int64(st.Mtim.Sec),
	}
	return fi, info, nil
}

// isSparse implements §4.8's detection rule: st_blocks * 512 < st_size.
func isSparse(st *statInfo, size int64) bool {
	return st.Blocks*512 < size
}

// devMajorMinor splits a raw rdev into (major, minor) for CHARDEV/
// BLOCKDEV records (§3 "rdev (device nodes)").
func devMajorMinor(rdev uint64) (major, minor uint32) {
	return unix.Major(rdev), unix.Minor(rdev)
}

// makeDev recombines (major, minor) into a raw dev_t for mknod on
// restore.
func makeDev(major, minor uint32) uint64 {
	return unix.Mkdev(major, minor)
}
