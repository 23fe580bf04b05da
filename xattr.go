package fsa

import (
	"log"
	"strings"

	"github.com/pkg/xattr"
)

// MaxXattrValueSize is the §4.8 limit: values larger than this are
// rejected with a warning and skipped rather than failing the file.
const MaxXattrValueSize = 64 * 1024

// winattrNames is the fixed list of NTFS-origin attributes read into
// the WINATTR section on NTFS source filesystems (§4.8).
var winattrNames = []string{
	"system.ntfs_attrib",
	"system.ntfs_times",
	"system.ntfs_acl",
}

// AddXAttrs enumerates a path's user.* extended attributes and records
// (name, value) pairs in the XATTR section (§4.8). Grounded on
// other_examples' R2DXT-goimagetool manifest, which pairs
// github.com/pkg/xattr with an archive-format writer the same way this
// producer does.
func AddXAttrs(d *Dico, path string) error {
	names, err := xattr.LList(path)
	if err != nil {
		if isUnsupported(err) {
			return nil
		}
		return err
	}
	var key uint16
	for _, name := range names {
		if !strings.HasPrefix(name, "user.") {
			continue
		}
		val, err := xattr.LGet(path, name)
		if err != nil {
			log.Printf("fsa: xattr %s on %s: %s", name, path, err)
			continue
		}
		if len(val) > MaxXattrValueSize {
			log.Printf("fsa: xattr %s on %s exceeds %d bytes, skipping", name, path, MaxXattrValueSize)
			continue
		}
		if err := d.AddString(SectionXAttr, key, name); err != nil {
			return err
		}
		key++
		if err := d.AddBytes(SectionXAttr, key, val); err != nil {
			return err
		}
		key++
	}
	return nil
}

// AddWinAttrs reads the fixed list of system.ntfs_* attributes into
// the WINATTR section when the source filesystem is NTFS-origin
// (§4.8).
func AddWinAttrs(d *Dico, path string) error {
	var key uint16
	for _, name := range winattrNames {
		val, err := xattr.LGet(path, name)
		if err != nil {
			continue
		}
		if err := d.AddString(SectionWinAttr, key, name); err != nil {
			return err
		}
		key++
		if err := d.AddBytes(SectionWinAttr, key, val); err != nil {
			return err
		}
		key++
	}
	return nil
}

// ApplyXAttrs restores the pairs recorded by AddXAttrs/AddWinAttrs via
// lsetxattr (§4.9 "apply xattrs and winattrs via lsetxattr").
func ApplyXAttrs(d *Dico, path string) error {
	if err := applySection(d, SectionXAttr, path); err != nil {
		return err
	}
	return applySection(d, SectionWinAttr, path)
}

func applySection(d *Dico, section Section, path string) error {
	var pendingName string
	have := false
	var err error
	d.Each(func(s Section, key uint16, typ ValueType, value []byte) {
		if s != section || err != nil {
			return
		}
		if typ == TypeString {
			pendingName = string(trimNUL(value))
			have = true
			return
		}
		if have {
			if setErr := xattr.LSet(path, pendingName, value); setErr != nil && !isUnsupported(setErr) {
				err = setErr
			}
			have = false
		}
	})
	return err
}

func trimNUL(b []byte) []byte {
	if len(b) > 0 && b[len(b)-1] == 0 {
		return b[:len(b)-1]
	}
	return b
}

func isUnsupported(err error) bool {
	return strings.Contains(err.Error(), "not supported") || strings.Contains(err.Error(), "no data available")
}
