package fsa

import (
	"fmt"
	"io"
	"time"
)

// PrintArchiveInfo implements archinfo (§4.10): it opens basePath
// read-only and pretty-prints the main header followed by every
// FsIn/DiRs header it finds, without materializing any file content.
// It returns the number of corrupt/skipped records encountered so the
// caller can still report every record it could read while exiting
// non-zero on a damaged archive (§9 E5).
func PrintArchiveInfo(w io.Writer, basePath string) (corrupt int, err error) {
	fr, err := OpenReader(basePath)
	if err != nil {
		return 0, err
	}
	defer fr.Close()

	for {
		d, magic, fsID, err := fr.NextHeader(true)
		if err != nil {
			if err == io.EOF {
				return fr.CorruptCount(), nil
			}
			return fr.CorruptCount(), err
		}

		switch magic {
		case MagicMainHeader:
			h, perr := ParseMainHeaderDico(d)
			if perr != nil && perr != ErrUnsupportedFeature {
				return fr.CorruptCount(), perr
			}
			printMainHeader(w, h)
			if perr == ErrUnsupportedFeature {
				fmt.Fprintf(w, "warning: archive requires reader version %d, this build is %d\n",
					h.MinReaderVersion, FormatVersion)
			}

		case MagicFsInfo, MagicDirsInfo:
			info := ParseFsInfoDico(d, fsID)
			printFsInfo(w, info)

		case MagicFsContents, MagicEndOfContents, MagicObject, MagicFileFooter:
			// archinfo reports headers only, not the object-level tree.
			_ = fsID
		}
	}
}

func printMainHeader(w io.Writer, h *MainHeader) {
	fmt.Fprintf(w, "Archive format:     %s\n", h.FormatString)
	fmt.Fprintf(w, "Program version:    %s\n", h.ProgramVersion)
	fmt.Fprintf(w, "Archive label:      %s\n", h.Label)
	fmt.Fprintf(w, "Created:            %s\n", h.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Archive type:       %s\n", archiveTypeString(h.ArchiveType))
	fmt.Fprintf(w, "Filesystems:        %d\n", h.FsCount)
	fmt.Fprintf(w, "Compression:        %s (level %d)\n", h.CompAlgo, h.CompLevel)
	fmt.Fprintf(w, "Encryption:         %s\n", h.EncryptAlgo)
	fmt.Fprintf(w, "Min reader version: %d\n\n", h.MinReaderVersion)
}

func printFsInfo(w io.Writer, info *FsInfo) {
	fmt.Fprintf(w, "Filesystem %d:\n", info.FsID)
	fmt.Fprintf(w, "  Source:      %s\n", info.Name)
	if info.Label != "" {
		fmt.Fprintf(w, "  Label:       %s\n", info.Label)
	}
	if info.UUID != "" {
		fmt.Fprintf(w, "  UUID:        %s\n", info.UUID)
	}
	if info.BlockSize != 0 {
		fmt.Fprintf(w, "  Block size:  %d\n", info.BlockSize)
	}
	if info.Features != "" {
		fmt.Fprintf(w, "  Features:    %s\n", info.Features)
	}
	fmt.Fprintf(w, "  Total cost:  %d\n\n", info.TotalCost)
}

func archiveTypeString(t ArchiveType) string {
	switch t {
	case ArchiveTypeFilesystems:
		return "filesystems"
	case ArchiveTypeDirectories:
		return "directories"
	}
	return "unknown"
}

// PrintProbe implements the supplemented `probe` command (SPEC_FULL.md
// "SUPPLEMENTED FEATURES"): it iterates the adapters registered with
// Register and reports each one whose Probe claims devpath or fails;
// adapters that do not claim it are not listed. When detailed is set it
// also prints a matching adapter's capabilities and required/forbidden
// mount options.
func PrintProbe(w io.Writer, devpath string, detailed bool) error {
	for _, a := range Registered() {
		ok, err := a.Probe(devpath)
		if err != nil {
			fmt.Fprintf(w, "%-12s error: %s\n", a.Name(), err)
			continue
		}
		if !ok {
			continue
		}
		fmt.Fprintf(w, "%-12s matches %s\n", a.Name(), devpath)
		if detailed {
			caps := a.Capabilities()
			fmt.Fprintf(w, "  xattr=%v acl=%v windows_attrs=%v symlink_target_type=%v experimental=%v\n",
				caps.Xattr, caps.ACL, caps.WindowsAttrs, caps.SymlinkTargetType, caps.Experimental)
			if req, forbid, err := a.RequiredMountOpts(devpath); err == nil {
				fmt.Fprintf(w, "  required mount opts=%v forbidden=%v\n", req, forbid)
			}
		}
	}
	return nil
}
