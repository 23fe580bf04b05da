package fsa

import "crypto/md5"

// pendingSmallFile is one not-yet-flushed small file in the coalescer.
type pendingSmallFile struct {
	dico   *Dico
	magic  [4]byte
	fsID   uint16
	offset uint32
	size   uint32
}

// Coalescer accumulates headers and payloads of files below the
// small-file threshold until a shared data block is full, then
// flushes them atomically as one group (§3, §4.3, §8-P7).
//
// Grounded on the teacher's writer.go accumulation pattern, where the
// Writer gathers many logical inodes into memory before Finalize
// streams one physical layout; here the same shape batches multiple
// small files into one physical data block instead of one whole image.
type Coalescer struct {
	maxItems int
	maxBytes int

	pending []pendingSmallFile
	buf     []byte
	used    int
}

// NewCoalescer returns a coalescer with the spec's fixed limits
// (MaxSmallCount items, MaxBlockSize bytes).
func NewCoalescer() *Coalescer {
	return &Coalescer{
		maxItems: MaxSmallCount,
		maxBytes: MaxBlockSize,
		buf:      make([]byte, MaxBlockSize),
	}
}

// CanFit reports whether a file of the given size can be added without
// exceeding either limit (§4.3).
func (c *Coalescer) CanFit(size int) bool {
	return len(c.pending) < c.maxItems && c.used+size <= c.maxBytes
}

// Add appends header+bytes to the pending batch. The caller must have
// checked CanFit first. multi_offset and the sub-file's MD5 (so restfs
// can verify its slice of the shared block the way it verifies a
// REGFILE_UNIQUE's whole-file MD5) are written into the header's
// STDATTR section here, over data as handed in; multi_count is only
// known at Flush and is back-filled into every pending header then,
// per §4.3.
func (c *Coalescer) Add(d *Dico, magic [4]byte, fsID uint16, data []byte) error {
	offset := uint32(c.used)
	if err := d.AddU32(SectionStdAttr, AttrMultiOffset, offset); err != nil {
		return err
	}
	sum := md5.Sum(data)
	if err := d.AddBytes(SectionStdAttr, AttrMultiMD5, sum[:]); err != nil {
		return err
	}
	copy(c.buf[c.used:], data)
	c.used += len(data)
	c.pending = append(c.pending, pendingSmallFile{
		dico:   d,
		magic:  magic,
		fsID:   fsID,
		offset: offset,
		size:   uint32(len(data)),
	})
	return nil
}

// Len reports the number of pending small files.
func (c *Coalescer) Len() int {
	return len(c.pending)
}

// Flush writes multi_count into every pending header (only known now),
// enqueues the headers in order, then enqueues one shared data block
// carrying the concatenated payload, and resets the coalescer state
// (§4.3, §8-P7).
func (c *Coalescer) Flush(q *Queue, fsID uint16) error {
	if len(c.pending) == 0 {
		return nil
	}
	count := uint32(len(c.pending))
	for _, pf := range c.pending {
		if err := pf.dico.AddU32(SectionStdAttr, AttrMultiCount, count); err != nil {
			return err
		}
		q.EnqueueHeader(pf.dico, pf.magic, pf.fsID)
	}

	payload := make([]byte, c.used)
	copy(payload, c.buf[:c.used])
	q.EnqueueBlock(&Block{
		FsID:     fsID,
		Offset:   0,
		RealSize: uint32(c.used),
		Data:     payload,
		CompAlgo: CompNone,
	})

	c.pending = nil
	c.used = 0
	return nil
}
