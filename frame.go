package fsa

import "encoding/binary"

// FormatString is the fixed 10-byte format identifier stored in the
// ArCh header (§3). The legacy v1 identifiers are accepted read-only
// (§4.9, SPEC_FULL.md open question 2).
const (
	FormatStringV2  = "FsArCh_002"
	FormatStringV1a = "FsArCh_001"
	FormatStringV1b = "FsArCh_00Y"
)

// MinVolumeSize is the smallest sensible split size (§8-P6); below this
// a single record plus its volume header/footer would not fit in one
// volume. NewFrameWriter does not check splitSize against it.
const MinVolumeSize = 1 << 20 // 1 MiB

// frameHeader is the fixed portion preceding the attribute bytes of
// every on-disk record (§3 "Record framing on disk").
type frameHeader struct {
	magic    [4]byte
	archiveID uint32
	fsID     uint16
}

// encodeFrame serializes one record: magic, archive_id, fs_id, a
// length-prefixed attribute record, and its Fletcher-32 checksum.
// attrLenWidth is 2 for the legacy v1 format (read-only) and 4 for the
// current v2 format this build always writes.
func encodeFrame(magic [4]byte, archiveID uint32, fsID uint16, attrBytes []byte, attrLenWidth int) []byte {
	checksum := Fletcher32(attrBytes)

	size := 4 + 4 + 2 + attrLenWidth + len(attrBytes) + 4
	buf := make([]byte, size)
	off := 0
	copy(buf[off:], magic[:])
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], archiveID)
	off += 4
	binary.LittleEndian.PutUint16(buf[off:], fsID)
	off += 2
	if attrLenWidth == 2 {
		binary.LittleEndian.PutUint16(buf[off:], uint16(len(attrBytes)))
	} else {
		binary.LittleEndian.PutUint32(buf[off:], uint32(len(attrBytes)))
	}
	off += attrLenWidth
	copy(buf[off:], attrBytes)
	off += len(attrBytes)
	binary.LittleEndian.PutUint32(buf[off:], checksum)
	return buf
}

// blockHeaderDico builds the BlKh record's attribute record,
// which carries the block's codec/size/checksum metadata; the raw
// ArchiveSize bytes of b.Data are appended by the caller immediately
// after (§4.5 magic table: "BlKh - immediately followed by block
// bytes").
func blockHeaderDico(b *Block) *Dico {
	d := NewDico()
	d.AddU64(SectionStdAttr, attrBlockOffset, b.Offset)
	d.AddU32(SectionStdAttr, attrBlockRealSize, b.RealSize)
	d.AddU8(SectionStdAttr, attrBlockCompAlgo, uint8(b.CompAlgo))
	d.AddU8(SectionStdAttr, attrBlockEncryptAlgo, uint8(b.EncryptAlgo))
	d.AddU32(SectionStdAttr, attrBlockArchiveSize, b.ArchiveSize)
	d.AddU32(SectionStdAttr, attrBlockChecksum, b.ArchiveChecksum)
	return d
}

func blockFromDico(d *Dico, fsID uint16) (*Block, error) {
	offset, err := d.GetU64(SectionStdAttr, attrBlockOffset)
	if err != nil {
		return nil, err
	}
	realSize, err := d.GetU32(SectionStdAttr, attrBlockRealSize)
	if err != nil {
		return nil, err
	}
	compAlgo, err := d.GetU8(SectionStdAttr, attrBlockCompAlgo)
	if err != nil {
		return nil, err
	}
	encAlgo, err := d.GetU8(SectionStdAttr, attrBlockEncryptAlgo)
	if err != nil {
		return nil, err
	}
	archiveSize, err := d.GetU32(SectionStdAttr, attrBlockArchiveSize)
	if err != nil {
		return nil, err
	}
	checksum, err := d.GetU32(SectionStdAttr, attrBlockChecksum)
	if err != nil {
		return nil, err
	}
	return &Block{
		FsID:            fsID,
		Offset:          offset,
		RealSize:        realSize,
		CompAlgo:        CompAlgo(compAlgo),
		EncryptAlgo:     EncryptAlgo(encAlgo),
		ArchiveSize:     archiveSize,
		ArchiveChecksum: checksum,
	}, nil
}

// Block header keys live in a private key range of SectionStdAttr,
// distinct from the object-record keys in magic.go.
const (
	attrBlockOffset uint16 = 1000 + iota
	attrBlockRealSize
	attrBlockCompAlgo
	attrBlockEncryptAlgo
	attrBlockArchiveSize
	attrBlockChecksum
)
