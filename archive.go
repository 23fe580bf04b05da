package fsa

import "time"

// ArCh (main archive header) and FsIn (per-filesystem header) STDATTR
// keys (§3, §4.8 step 2-3, §4.9).
const (
	attrFormatString uint16 = 3000 + iota
	attrProgramVersion
	attrArchiveLabel
	attrCreatedAt
	attrArchiveType
	attrFsCount
	attrCompAlgo
	attrCompLevel
	attrEncryptAlgo
	attrMinReaderVersion
	attrCheckBuf
	attrCheckMD5

	attrFsLabel
	attrFsUUID
	attrFsBlockSize
	attrFsFeatures
	attrTotalCost
	attrFsName
)

// ArchiveType distinguishes a filesystems archive from a directories
// archive (§4.8: savefs emits FsIn headers, savedir emits DiRs).
type ArchiveType uint8

const (
	ArchiveTypeFilesystems ArchiveType = iota + 1
	ArchiveTypeDirectories
)

// MainHeader is the decoded content of an ArCh record.
type MainHeader struct {
	FormatString    string
	ProgramVersion  string
	Label           string
	CreatedAt       time.Time
	ArchiveType     ArchiveType
	FsCount         uint32
	CompAlgo        CompAlgo
	CompLevel       uint8
	EncryptAlgo     EncryptAlgo
	MinReaderVersion uint32

	Encrypted       bool
	CheckBuf        []byte
	CheckMD5        [16]byte
}

// BuildMainHeaderDico builds the ArCh dico described by §4.8 step 2,
// including the password-check token of §4.8.2/§8-P10 when a password
// is set.
func BuildMainHeaderDico(h *MainHeader, password string) (*Dico, error) {
	d := NewDico()
	d.AddString(SectionStdAttr, attrFormatString, FormatStringV2)
	d.AddString(SectionStdAttr, attrProgramVersion, h.ProgramVersion)
	d.AddString(SectionStdAttr, attrArchiveLabel, h.Label)
	d.AddU64(SectionStdAttr, attrCreatedAt, uint64(h.CreatedAt.Unix()))
	d.AddU8(SectionStdAttr, attrArchiveType, uint8(h.ArchiveType))
	d.AddU32(SectionStdAttr, attrFsCount, h.FsCount)
	d.AddU8(SectionStdAttr, attrCompAlgo, uint8(h.CompAlgo))
	d.AddU8(SectionStdAttr, attrCompLevel, h.CompLevel)
	d.AddU32(SectionStdAttr, attrMinReaderVersion, h.MinReaderVersion)

	if password != "" {
		checkBuf, checkMD5, err := NewPasswordCheck(password)
		if err != nil {
			return nil, err
		}
		d.AddU8(SectionStdAttr, attrEncryptAlgo, uint8(EncryptBlowfish))
		d.AddBytes(SectionStdAttr, attrCheckBuf, checkBuf)
		d.AddBytes(SectionStdAttr, attrCheckMD5, checkMD5[:])
	} else {
		d.AddU8(SectionStdAttr, attrEncryptAlgo, uint8(EncryptNone))
	}
	return d, nil
}

// ParseMainHeaderDico reverses BuildMainHeaderDico and validates the
// format string and minimum reader version (§4.9 ArCh handling).
func ParseMainHeaderDico(d *Dico) (*MainHeader, error) {
	h := &MainHeader{}
	fs, err := d.GetString(SectionStdAttr, attrFormatString)
	if err != nil {
		return nil, err
	}
	h.FormatString = fs
	switch fs {
	case FormatStringV2, FormatStringV1a, FormatStringV1b:
	default:
		return nil, ErrUnsupportedFeature
	}

	h.ProgramVersion, _ = d.GetString(SectionStdAttr, attrProgramVersion)
	h.Label, _ = d.GetString(SectionStdAttr, attrArchiveLabel)
	ts, err := d.GetU64(SectionStdAttr, attrCreatedAt)
	if err == nil {
		h.CreatedAt = time.Unix(int64(ts), 0)
	}
	at, err := d.GetU8(SectionStdAttr, attrArchiveType)
	if err != nil {
		return nil, err
	}
	h.ArchiveType = ArchiveType(at)
	h.FsCount, _ = d.GetU32(SectionStdAttr, attrFsCount)

	compAlgo, _ := d.GetU8(SectionStdAttr, attrCompAlgo)
	h.CompAlgo = CompAlgo(compAlgo)
	compLevel, _ := d.GetU8(SectionStdAttr, attrCompLevel)
	h.CompLevel = compLevel
	minReader, _ := d.GetU32(SectionStdAttr, attrMinReaderVersion)
	h.MinReaderVersion = minReader
	if minReader > FormatVersion {
		return h, ErrUnsupportedFeature
	}

	encAlgo, err := d.GetU8(SectionStdAttr, attrEncryptAlgo)
	if err == nil {
		h.EncryptAlgo = EncryptAlgo(encAlgo)
		h.Encrypted = h.EncryptAlgo != EncryptNone
	}
	if h.Encrypted {
		h.CheckBuf, _ = d.GetBytes(SectionStdAttr, attrCheckBuf)
		md5Bytes, _ := d.GetBytes(SectionStdAttr, attrCheckMD5)
		copy(h.CheckMD5[:], md5Bytes)
	}
	return h, nil
}

// FsInfo is the decoded content of an FsIn record (§3, §4.8 step 3.c).
type FsInfo struct {
	FsID      uint16
	Label     string
	UUID      string
	BlockSize uint32
	Features  string
	TotalCost uint64
	Name      string // source device path or source directory
}

// BuildFsInfoDico builds the FsIn dico.
func BuildFsInfoDico(info *FsInfo) *Dico {
	d := NewDico()
	d.AddString(SectionStdAttr, attrFsName, info.Name)
	d.AddString(SectionStdAttr, attrFsLabel, info.Label)
	d.AddString(SectionStdAttr, attrFsUUID, info.UUID)
	d.AddU32(SectionStdAttr, attrFsBlockSize, info.BlockSize)
	d.AddString(SectionStdAttr, attrFsFeatures, info.Features)
	d.AddU64(SectionStdAttr, attrTotalCost, info.TotalCost)
	return d
}

// ParseFsInfoDico reverses BuildFsInfoDico.
func ParseFsInfoDico(d *Dico, fsID uint16) *FsInfo {
	info := &FsInfo{FsID: fsID}
	info.Name, _ = d.GetString(SectionStdAttr, attrFsName)
	info.Label, _ = d.GetString(SectionStdAttr, attrFsLabel)
	info.UUID, _ = d.GetString(SectionStdAttr, attrFsUUID)
	info.BlockSize, _ = d.GetU32(SectionStdAttr, attrFsBlockSize)
	info.Features, _ = d.GetString(SectionStdAttr, attrFsFeatures)
	info.TotalCost, _ = d.GetU64(SectionStdAttr, attrTotalCost)
	return info
}

// PerFileFixedCost is the fixed per-file overhead added to a file's
// size when estimating total_cost for the progress bar (§4.8.b).
const PerFileFixedCost = 512
