package fsa

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
)

// FormatWire distinguishes the two wire format versions of §3. V1 is
// legacy and read-only; this build always writes V2.
type FormatWire int

const (
	FormatWireV2 FormatWire = iota
	FormatWireV1
)

// MissingVolumeFunc is called when the reader needs a volume file that
// is not present at its expected path and the archive is not marked
// last; it should return an alternate path to open, or an error to
// abort. This is the side-channel "missing volume" callback of §4.5,
// kept as a pure function so the CLI (not the core) owns the prompt.
type MissingVolumeFunc func(expectedPath string, volNum int) (altPath string, err error)

// FrameReader owns the current volume file descriptor, base path,
// volume counter, and detected wire format (§4.5). Grounded on the
// teacher's tableReader in tablereader.go, which also reads a
// length-prefixed, possibly-compressed chunk at a time from an
// io.ReaderAt; here the length prefix is attr_len and the chunk is
// Fletcher-32 checked instead of decompressed in place.
type FrameReader struct {
	basePath  string
	archiveID uint32
	haveID    bool
	format    FormatWire

	f      *os.File
	r      *bufio.Reader
	volNum int
	offset int64
	lastVol bool

	// corruptCount tallies records skipped during a resync or rejected
	// by a checksum/parse failure, surfaced to callers like archinfo
	// (§9 E5: archinfo must still print everything it can but report
	// that the archive was corrupt).
	corruptCount int

	OnMissingVolume MissingVolumeFunc
}

// CorruptCount reports how many records this reader has skipped due to
// an archive-id mismatch, a checksum failure, a malformed attribute
// record, or a resync past unrecognized bytes.
func (r *FrameReader) CorruptCount() int { return r.corruptCount }

// OpenReader opens volume 0 of basePath and sniffs the wire format by
// peeking the ArCh record's header under both the v1 (u16 attr_len)
// and v2 (u32 attr_len) hypotheses and keeping whichever makes the
// attribute record's Fletcher-32 checksum validate (§4.5 "open()
// sniffs... to decide v1 vs v2").
func OpenReader(basePath string) (*FrameReader, error) {
	r := &FrameReader{basePath: basePath}
	if err := r.openVolume(0); err != nil {
		return nil, err
	}
	if err := r.sniffFormat(); err != nil {
		return nil, err
	}
	return r, nil
}

// sniffFormat peeks (without consuming) enough of volume 0 to
// determine the attr_len width in force.
func (r *FrameReader) sniffFormat() error {
	peek, err := r.r.Peek(4096)
	if err != nil && err != io.EOF && len(peek) == 0 {
		return err
	}
	const prefix = 4 + 4 + 2 // magic + archive_id + fs_id

	if len(peek) >= prefix+4 {
		attrLen := int(binary.LittleEndian.Uint32(peek[prefix:]))
		if prefix+4+attrLen+4 <= len(peek) {
			attrBytes := peek[prefix+4 : prefix+4+attrLen]
			checksum := binary.LittleEndian.Uint32(peek[prefix+4+attrLen:])
			if Fletcher32(attrBytes) == checksum {
				r.format = FormatWireV2
				return nil
			}
		}
	}
	if len(peek) >= prefix+2 {
		attrLen := int(binary.LittleEndian.Uint16(peek[prefix:]))
		if prefix+2+attrLen+4 <= len(peek) {
			attrBytes := peek[prefix+2 : prefix+2+attrLen]
			checksum := binary.LittleEndian.Uint32(peek[prefix+2+attrLen:])
			if Fletcher32(attrBytes) == checksum {
				r.format = FormatWireV1
				return nil
			}
		}
	}
	// Default to the current format; NextHeader's per-record checksum
	// check will surface a clear corruption error if this guess is
	// wrong rather than silently misreading the archive.
	r.format = FormatWireV2
	return nil
}

func (r *FrameReader) openVolume(n int) error {
	path := VolumePath(r.basePath, n)
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	r.f = f
	r.r = bufio.NewReader(f)
	r.volNum = n
	r.offset = 0
	return nil
}

func (r *FrameReader) readByte() (byte, error) {
	b, err := r.r.ReadByte()
	if err == nil {
		r.offset++
	}
	return b, err
}

func (r *FrameReader) readFull(n int) ([]byte, error) {
	buf := make([]byte, n)
	read, err := io.ReadFull(r.r, buf)
	r.offset += int64(read)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// ArchiveID reports the archive id sniffed from the first header read,
// once known.
func (r *FrameReader) ArchiveID() uint32 { return r.archiveID }

// Format reports the wire format detected for this archive.
func (r *FrameReader) Format() FormatWire { return r.format }

// NextHeader reads the next record's frame and returns its attribute
// record, magic, and fs_id, per §4.5 next_header. allowResync permits
// forward, byte-at-a-time recovery when a magic mismatch is found
// (never seeks backward, per §9's design note on preserving this
// robustness property). Volume-header/footer records are consumed
// transparently: footers trigger rollover to the next volume (or EOF
// if last_vol) and the call loops to read the first record of the new
// volume.
func (r *FrameReader) NextHeader(allowResync bool) (d *Dico, magic [4]byte, fsID uint16, err error) {
	for {
		magic, err = r.readMagic(allowResync)
		if err != nil {
			return nil, [4]byte{}, 0, err
		}

		archiveIDBuf, err2 := r.readFull(4)
		if err2 != nil {
			return nil, [4]byte{}, 0, err2
		}
		archiveID := binary.LittleEndian.Uint32(archiveIDBuf)
		if !r.haveID {
			r.archiveID = archiveID
			r.haveID = true
		} else if archiveID != r.archiveID {
			log.Printf("fsa: archive id mismatch at offset %d, skipping record", r.offset)
			r.corruptCount++
			continue
		}

		fsIDBuf, err2 := r.readFull(2)
		if err2 != nil {
			return nil, [4]byte{}, 0, err2
		}
		fsID = binary.LittleEndian.Uint16(fsIDBuf)

		width := 4
		if r.format == FormatWireV1 {
			width = 2
		}
		lenBuf, err2 := r.readFull(width)
		if err2 != nil {
			return nil, [4]byte{}, 0, err2
		}
		var attrLen int
		if width == 2 {
			attrLen = int(binary.LittleEndian.Uint16(lenBuf))
		} else {
			attrLen = int(binary.LittleEndian.Uint32(lenBuf))
		}

		attrBytes, err2 := r.readFull(attrLen)
		if err2 != nil {
			return nil, [4]byte{}, 0, err2
		}
		checksumBuf, err2 := r.readFull(4)
		if err2 != nil {
			return nil, [4]byte{}, 0, err2
		}
		checksum := binary.LittleEndian.Uint32(checksumBuf)
		if Fletcher32(attrBytes) != checksum {
			log.Printf("fsa: checksum mismatch in record at volume %d, skipping", r.volNum)
			r.corruptCount++
			continue
		}

		parsed, perr := ParseDico(attrBytes)
		if perr != nil {
			log.Printf("fsa: corrupt attribute record, skipping: %s", perr)
			r.corruptCount++
			continue
		}

		switch magic {
		case MagicVolumeHeader:
			continue
		case MagicVolumeFooter:
			last, _ := parsed.GetU8(SectionStdAttr, attrLastVol)
			r.lastVol = last != 0
			if r.lastVol {
				return nil, [4]byte{}, 0, io.EOF
			}
			if err := r.rollToNextVolume(); err != nil {
				return nil, [4]byte{}, 0, err
			}
			continue
		}

		return parsed, magic, fsID, nil
	}
}

func (r *FrameReader) rollToNextVolume() error {
	r.f.Close()
	next := r.volNum + 1
	path := VolumePath(r.basePath, next)
	if _, err := os.Stat(path); err != nil {
		if r.OnMissingVolume != nil {
			alt, cerr := r.OnMissingVolume(path, next)
			if cerr != nil {
				return cerr
			}
			path = alt
		} else {
			return fmt.Errorf("%w: %s", ErrMissingVolume, path)
		}
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrMissingVolume, path)
	}
	r.f = f
	r.r = bufio.NewReader(f)
	r.volNum = next
	r.offset = 0
	return nil
}

// readMagic reads 4 bytes and, if they are not a recognized magic and
// allowResync is set, seeks forward one byte at a time (never
// backward) until a valid magic is found (§4.5, §9 design note).
func (r *FrameReader) readMagic(allowResync bool) ([4]byte, error) {
	var window [4]byte
	buf, err := r.readFull(4)
	if err != nil {
		return window, err
	}
	copy(window[:], buf)
	if magicKnown(window) || !allowResync {
		if !magicKnown(window) {
			return window, ErrCorrupt
		}
		return window, nil
	}

	skipped := 0
	for !magicKnown(window) {
		b, err := r.readByte()
		if err != nil {
			return window, err
		}
		copy(window[:3], window[1:])
		window[3] = b
		skipped++
	}
	log.Printf("fsa: resynced after skipping %d bytes at volume %d", skipped, r.volNum)
	r.corruptCount++
	return window, nil
}

// NextBlockPayload reads ArchiveSize bytes immediately following a
// BlKh header's attribute record (called by the consumer after
// NextHeader returns a BlKh magic).
func (r *FrameReader) NextBlockPayload(archiveSize uint32) ([]byte, error) {
	return r.readFull(int(archiveSize))
}

// Close closes the current volume file.
func (r *FrameReader) Close() error {
	if r.f == nil {
		return nil
	}
	return r.f.Close()
}

// DetectFormatFromHeader inspects a just-read ArCh dico's format
// string and records whether it is v1 (read-only) or v2.
func (r *FrameReader) DetectFormatFromHeader(d *Dico) error {
	s, err := d.GetString(SectionStdAttr, attrFormatString)
	if err != nil {
		return err
	}
	switch s {
	case FormatStringV2:
		r.format = FormatWireV2
	case FormatStringV1a, FormatStringV1b:
		r.format = FormatWireV1
	default:
		return errors.New("fsa: unrecognized archive format string")
	}
	return nil
}
