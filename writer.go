package fsa

import (
	"fmt"
	"log"
	"os"

	"golang.org/x/sys/unix"
)

// FrameWriter owns the current volume file descriptor, the archive's
// base path, and the volume counter, and implements the splitting
// writer of §4.5. Grounded on the teacher's Writer in writer.go, which
// owns an io.Writer/WriterAt and an offset counter the same way;
// volume rollover generalizes the teacher's single-file offset
// bookkeeping to a sequence of files.
type FrameWriter struct {
	basePath  string
	archiveID uint32
	splitSize int64

	f       *os.File
	volNum  int
	offset  int64

	volumePaths []string
}

// NewFrameWriter creates (or truncates, if overwrite) volume 0 of a new
// archive.
func NewFrameWriter(basePath string, archiveID uint32, splitSize int64, overwrite bool) (*FrameWriter, error) {
	w := &FrameWriter{basePath: basePath, archiveID: archiveID, splitSize: splitSize}
	if err := w.openVolume(0, overwrite); err != nil {
		return nil, err
	}
	if err := w.writeVolumeHeader(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *FrameWriter) openVolume(n int, overwrite bool) error {
	path := VolumePath(w.basePath, n)
	flags := os.O_CREATE | os.O_WRONLY
	if overwrite {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return fmt.Errorf("fsa: create volume %s: %w", path, err)
	}
	w.f = f
	w.volNum = n
	w.offset = 0
	w.volumePaths = append(w.volumePaths, path)
	return nil
}

// CurrentPosition returns the byte offset within the current volume.
func (w *FrameWriter) CurrentPosition() int64 {
	return w.offset
}

// writeBuffer writes bytes to the current volume, mapping a short
// write to ErrNoSpace reported with the current free-space estimate
// (-1 when the filesystem cannot be queried) (§4.5).
func (w *FrameWriter) writeBuffer(buf []byte) error {
	if w.f == nil {
		return ErrNotOpen
	}
	n, err := w.f.Write(buf)
	if err != nil || n != len(buf) {
		var st unix.Statfs_t
		free := int64(-1)
		if unix.Fstatfs(int(w.f.Fd()), &st) == nil {
			free = int64(st.Bavail) * int64(st.Bsize)
		}
		return fmt.Errorf("%w: short write (%d of %d bytes, %d bytes free): %v", ErrNoSpace, n, len(buf), free, err)
	}
	w.offset += int64(n)
	return nil
}

// maybeSplit rolls to the next volume if writing nextLen more bytes
// would cross the configured split size (0 means never split), per
// §3/§4.5.
func (w *FrameWriter) maybeSplit(nextLen int) error {
	if w.splitSize <= 0 {
		return nil
	}
	if w.offset+int64(nextLen) <= w.splitSize {
		return nil
	}
	if err := w.writeVolumeFooter(false); err != nil {
		return err
	}
	if err := w.f.Close(); err != nil {
		return err
	}
	log.Printf("fsa: volume %d complete, rolling to volume %d", w.volNum, w.volNum+1)
	if err := w.openVolume(w.volNum+1, true); err != nil {
		return err
	}
	return w.writeVolumeHeader()
}

func (w *FrameWriter) writeVolumeHeader() error {
	d := NewDico()
	d.AddU32(SectionStdAttr, attrVolNum, uint32(w.volNum))
	return w.writeBuffer(encodeFrame(MagicVolumeHeader, w.archiveID, NullFsID, d.Serialize(), 4))
}

func (w *FrameWriter) writeVolumeFooter(lastVol bool) error {
	d := NewDico()
	lv := uint8(0)
	if lastVol {
		lv = 1
	}
	d.AddU8(SectionStdAttr, attrLastVol, lv)
	return w.writeBuffer(encodeFrame(MagicVolumeFooter, w.archiveID, NullFsID, d.Serialize(), 4))
}

// AppendHeader writes one header record (§4.5 step 1-3).
func (w *FrameWriter) AppendHeader(d *Dico, magic [4]byte, fsID uint16) error {
	attrBytes := d.Serialize()
	buf := encodeFrame(magic, w.archiveID, fsID, attrBytes, 4)
	if err := w.maybeSplit(len(buf)); err != nil {
		return err
	}
	return w.writeBuffer(buf)
}

// AppendBlock writes a BlKh header followed by the block's archive
// bytes (§4.5, §4.5 magic table).
func (w *FrameWriter) AppendBlock(b *Block) error {
	d := blockHeaderDico(b)
	attrBytes := d.Serialize()
	header := encodeFrame(MagicBlockHeader, w.archiveID, b.FsID, attrBytes, 4)
	total := len(header) + len(b.Data)
	if err := w.maybeSplit(total); err != nil {
		return err
	}
	if err := w.writeBuffer(header); err != nil {
		return err
	}
	return w.writeBuffer(b.Data)
}

// Finalize flushes, emits the final volume footer with last_vol=true,
// fsyncs, and closes (§4.5, "When the producer signals end-of-queue").
func (w *FrameWriter) Finalize() error {
	if err := w.writeVolumeFooter(true); err != nil {
		return err
	}
	if err := w.f.Sync(); err != nil {
		return err
	}
	return w.f.Close()
}

// Abort removes every volume file created by this writer (§4.8.6,
// §5 "On abort during save, the writer's partial volumes are
// unlinked").
func (w *FrameWriter) Abort() {
	if w.f != nil {
		w.f.Close()
	}
	for _, p := range w.volumePaths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			log.Printf("fsa: abort cleanup: remove %s: %s", p, err)
		}
	}
}

// Volume-header/footer STDATTR keys, distinct from object/block keys.
const (
	attrVolNum  uint16 = 2000 + iota
	attrLastVol
)
