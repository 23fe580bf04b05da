package fsa

// Magic constants identifying record kinds on disk (§4.5). Exactly 4
// ASCII bytes each.
var (
	MagicVolumeHeader  = [4]byte{'F', 's', 'A', '0'}
	MagicVolumeFooter  = [4]byte{'F', 's', 'A', 'E'}
	MagicMainHeader    = [4]byte{'A', 'r', 'C', 'h'}
	MagicFsInfo        = [4]byte{'F', 's', 'I', 'n'}
	MagicFsContents    = [4]byte{'F', 's', 'Y', 's'}
	MagicDirsInfo      = [4]byte{'D', 'i', 'R', 's'}
	MagicObject        = [4]byte{'O', 'b', 'J', 't'}
	MagicBlockHeader   = [4]byte{'B', 'l', 'K', 'h'}
	MagicFileFooter    = [4]byte{'F', 'i', 'L', 'f'}
	MagicEndOfContents = [4]byte{'D', 'a', 'E', 'n'}
)

func magicKnown(m [4]byte) bool {
	switch m {
	case MagicVolumeHeader, MagicVolumeFooter, MagicMainHeader, MagicFsInfo,
		MagicFsContents, MagicDirsInfo, MagicObject, MagicBlockHeader,
		MagicFileFooter, MagicEndOfContents:
		return true
	}
	return false
}

// ObjType is the object_type field of an ObJt record (§3).
type ObjType uint32

const (
	ObjDir ObjType = iota + 1
	ObjSymlink
	ObjHardlink
	ObjCharDev
	ObjBlockDev
	ObjFifo
	ObjSocket
	ObjRegfileUnique
	ObjRegfileMulti
)

func (t ObjType) String() string {
	switch t {
	case ObjDir:
		return "DIR"
	case ObjSymlink:
		return "SYMLINK"
	case ObjHardlink:
		return "HARDLINK"
	case ObjCharDev:
		return "CHARDEV"
	case ObjBlockDev:
		return "BLOCKDEV"
	case ObjFifo:
		return "FIFO"
	case ObjSocket:
		return "SOCKET"
	case ObjRegfileUnique:
		return "REGFILE_UNIQUE"
	case ObjRegfileMulti:
		return "REGFILE_MULTI"
	}
	return "UNKNOWN"
}

// STDATTR keys (§3). CompAlgo/EncryptAlgo constants live in codec.go.
const (
	AttrObjectID uint16 = iota + 1
	AttrPath
	AttrSize
	AttrMode
	AttrUID
	AttrGID
	AttrAtime
	AttrMtime
	AttrRdev
	AttrSymlinkTarget
	AttrLinkTargetType
	AttrHardlinkTarget
	AttrFlags
	AttrMultiCount
	AttrMultiOffset
	AttrMultiMD5
)

// Flags bitset values (STDATTR "flags" key).
const (
	FlagSparse uint32 = 1 << iota
)
