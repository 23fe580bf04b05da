package fsa

import "io/fs"

// ObjectHeader is the decoded STDATTR content of one ObJt record (§3).
type ObjectHeader struct {
	ObjectID   uint64
	Path       string
	Size       uint64
	Mode       uint32
	UID        uint32
	GID        uint32
	Atime      int64
	Mtime      int64
	Type       ObjType

	Rdev            uint64 // device nodes
	SymlinkTarget   string
	LinkTargetType  uint8 // 0 unknown, 1 file, 2 dir (NTFS-origin symlinks)
	HardlinkTarget  string
	Flags           uint32
	MultiCount      uint32
	MultiOffset     uint32
	MultiMD5        []byte
}

// BuildObjectDico returns a new Dico holding an ObjectHeader's STDATTR
// fields. Other sections are added to the returned Dico afterwards
// (the producer calls AddXAttrs on it before enqueuing it).
func BuildObjectDico(h *ObjectHeader) *Dico {
	d := NewDico()
	d.AddU64(SectionStdAttr, AttrObjectID, h.ObjectID)
	d.AddString(SectionStdAttr, AttrPath, h.Path)
	d.AddU64(SectionStdAttr, AttrSize, h.Size)
	d.AddU32(SectionStdAttr, AttrMode, h.Mode)
	d.AddU32(SectionStdAttr, AttrUID, h.UID)
	d.AddU32(SectionStdAttr, AttrGID, h.GID)
	d.AddU64(SectionStdAttr, AttrAtime, uint64(h.Atime))
	d.AddU64(SectionStdAttr, AttrMtime, uint64(h.Mtime))
	d.AddU32(SectionStdAttr, uint16(objTypeKey), uint32(h.Type))

	switch h.Type {
	case ObjCharDev, ObjBlockDev:
		d.AddU64(SectionStdAttr, AttrRdev, h.Rdev)
	case ObjSymlink:
		d.AddString(SectionStdAttr, AttrSymlinkTarget, h.SymlinkTarget)
		if h.LinkTargetType != 0 {
			d.AddU8(SectionStdAttr, AttrLinkTargetType, h.LinkTargetType)
		}
	case ObjHardlink:
		d.AddString(SectionStdAttr, AttrHardlinkTarget, h.HardlinkTarget)
	}
	if h.Flags != 0 {
		d.AddU32(SectionStdAttr, AttrFlags, h.Flags)
	}
	return d
}

// ParseObjectDico reverses the STDATTR fields of BuildObjectDico. The
// type is read from d directly since the caller needs it to decide how
// to dispatch before asking for type-specific fields.
func ParseObjectDico(d *Dico) (*ObjectHeader, error) {
	h := &ObjectHeader{}
	var err error
	if h.ObjectID, err = d.GetU64(SectionStdAttr, AttrObjectID); err != nil {
		return nil, err
	}
	if h.Path, err = d.GetString(SectionStdAttr, AttrPath); err != nil {
		return nil, err
	}
	if h.Size, err = d.GetU64(SectionStdAttr, AttrSize); err != nil {
		return nil, err
	}
	if h.Mode, err = d.GetU32(SectionStdAttr, AttrMode); err != nil {
		return nil, err
	}
	if h.UID, err = d.GetU32(SectionStdAttr, AttrUID); err != nil {
		return nil, err
	}
	if h.GID, err = d.GetU32(SectionStdAttr, AttrGID); err != nil {
		return nil, err
	}
	atime, err := d.GetU64(SectionStdAttr, AttrAtime)
	if err != nil {
		return nil, err
	}
	h.Atime = int64(atime)
	mtime, err := d.GetU64(SectionStdAttr, AttrMtime)
	if err != nil {
		return nil, err
	}
	h.Mtime = int64(mtime)

	typ, err := d.GetU32(SectionStdAttr, uint16(objTypeKey))
	if err != nil {
		return nil, err
	}
	h.Type = ObjType(typ)

	switch h.Type {
	case ObjCharDev, ObjBlockDev:
		h.Rdev, _ = d.GetU64(SectionStdAttr, AttrRdev)
	case ObjSymlink:
		h.SymlinkTarget, _ = d.GetString(SectionStdAttr, AttrSymlinkTarget)
		h.LinkTargetType, _ = d.GetU8(SectionStdAttr, AttrLinkTargetType)
	case ObjHardlink:
		h.HardlinkTarget, _ = d.GetString(SectionStdAttr, AttrHardlinkTarget)
	}
	h.Flags, _ = d.GetU32(SectionStdAttr, AttrFlags)
	h.MultiCount, _ = d.GetU32(SectionStdAttr, AttrMultiCount)
	h.MultiOffset, _ = d.GetU32(SectionStdAttr, AttrMultiOffset)
	h.MultiMD5, _ = d.GetBytes(SectionStdAttr, AttrMultiMD5)
	return h, nil
}

// objTypeKey is the STDATTR key carrying ObjType; kept distinct from
// the block/header key ranges in frame.go/writer.go.
const objTypeKey uint16 = 50

// modeFromFileInfo converts Go's fs.FileMode to a raw POSIX mode_t (as
// stored in STDATTR), with typeBitsFromFileMode supplying the file-type
// bits; this is the reverse of the teacher's mode.go, which converts
// squashfs's on-disk mode bits to fs.FileMode.
func modeFromFileInfo(fi fs.FileInfo) uint32 {
	return uint32(fi.Mode().Perm()) | typeBitsFromFileMode(fi.Mode())
}

func typeBitsFromFileMode(m fs.FileMode) uint32 {
	switch {
	case m&fs.ModeDir != 0:
		return 0o040000
	case m&fs.ModeSymlink != 0:
		return 0o120000
	case m&fs.ModeDevice != 0 && m&fs.ModeCharDevice != 0:
		return 0o020000
	case m&fs.ModeDevice != 0:
		return 0o060000
	case m&fs.ModeNamedPipe != 0:
		return 0o010000
	case m&fs.ModeSocket != 0:
		return 0o140000
	default:
		return 0o100000
	}
}

// Stats accumulates the §7 end-of-run counters, one cnt_*/err_* pair
// per object kind.
type Stats struct {
	CntReg, ErrReg           int64
	CntDir, ErrDir           int64
	CntSym, ErrSym           int64
	CntHardlink, ErrHardlink int64
	CntSpecial, ErrSpecial   int64

	Fatal error
}

// ExitNonZero implements SPEC_FULL.md's pinned exit-code rule: non-zero
// iff a fatal error occurred or any err_* counter is non-zero.
func (s *Stats) ExitNonZero() bool {
	return s.Fatal != nil ||
		s.ErrReg != 0 || s.ErrDir != 0 || s.ErrSym != 0 ||
		s.ErrHardlink != 0 || s.ErrSpecial != 0
}
