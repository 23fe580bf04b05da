package fsa

// hardlinkKey identifies one inode by (device, inode number) (§3, §4.2).
type hardlinkKey struct {
	dev uint64
	ino uint64
}

// HardlinkMap records the first relative path observed for a given
// (dev, ino) pair so later regular files sharing that inode are
// emitted as HARDLINK records instead of duplicate content (§3, §4.2,
// §8-P8). Grounded on the teacher's plain `map[uint32]uint32` id table
// in writer.go: a bare Go map guarded by the single-threaded caller,
// no external container library.
type HardlinkMap struct {
	m map[hardlinkKey]string
}

// NewHardlinkMap returns an empty map. Lifetime is per-filesystem on
// save (§3).
func NewHardlinkMap() *HardlinkMap {
	return &HardlinkMap{m: make(map[hardlinkKey]string)}
}

// Get returns the first path recorded for (dev, ino), or ErrNotFound.
func (h *HardlinkMap) Get(dev, ino uint64) (string, error) {
	p, ok := h.m[hardlinkKey{dev, ino}]
	if !ok {
		return "", ErrNotFound
	}
	return p, nil
}

// Insert records path as the first occurrence of (dev, ino). Returns
// ErrDuplicate if an entry already exists.
func (h *HardlinkMap) Insert(dev, ino uint64, path string) error {
	k := hardlinkKey{dev, ino}
	if _, ok := h.m[k]; ok {
		return ErrDuplicate
	}
	h.m[k] = path
	return nil
}

// Len reports the number of distinct inodes tracked.
func (h *HardlinkMap) Len() int {
	return len(h.m)
}
