package fsadapter

import (
	"fmt"
	"os"

	"github.com/fsarchiver/fsa"
)

// Dir treats a plain directory as the "filesystem": Probe is true for
// any existing directory, Mkfs is os.MkdirAll, Mount/Umount are no-ops. This is what
// savedir/restdir use internally (§4.8 "For savedir the flow is
// simpler... no mount management"), and what the package's own
// round-trip tests drive end-to-end without a real block device.
type Dir struct{}

func (Dir) Name() string { return "dir" }

func (Dir) Probe(devpath string) (bool, error) {
	info, err := os.Stat(devpath)
	if err != nil {
		return false, nil
	}
	return info.IsDir(), nil
}

func (Dir) GetInfo(d *fsa.Dico, dev string) error {
	return nil
}

func (Dir) Mkfs(d *fsa.Dico, dest string, opts fsa.MkfsOptions) error {
	return os.MkdirAll(dest, 0755)
}

func (Dir) Mount(dev, mnt string, info *fsa.Dico) error {
	if dev != mnt {
		return fmt.Errorf("fsadapter: Dir mount is a no-op and requires dev==mnt (got %q, %q)", dev, mnt)
	}
	return nil
}

func (Dir) Umount(dev, mnt string) error {
	return nil
}

func (Dir) RequiredMountOpts(dev string) ([]string, []string, error) {
	return nil, nil, nil
}

func (Dir) Capabilities() fsa.Capabilities {
	return fsa.Capabilities{Xattr: true, ACL: false, WindowsAttrs: false, SymlinkTargetType: false}
}

func init() {
	fsa.Register(Dir{})
}
