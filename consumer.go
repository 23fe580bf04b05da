package fsa

import (
	"crypto/md5"
	"fmt"
	"hash"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/schollz/progressbar/v2"
)

// RestoreDest is one restfs/restdir destination, parallel to the FsIn
// (or DiRs) order recorded by the producer (§4.9).
type RestoreDest struct {
	// MountPath is the directory the restored tree is written under:
	// for restdir this is the destination directory given on the
	// command line; for restfs it is where the newly made/mounted
	// filesystem is reachable.
	MountPath string
	Adapter   Adapter
	Mkfs      MkfsOptions
}

// Consumer implements restfs/restdir (§4.9).
type Consumer struct {
	ctx *Context
	fr  *FrameReader

	dests   []RestoreDest
	mainHdr *MainHeader

	cur            *openRegfile
	pendingRegfile *ObjectHeader
	pendingMulti   []pendingMultiFile

	progress *progressbar.ProgressBar
}

// pendingMultiFile is one coalesced small file awaiting the shared
// data block that the coalescer wrote it into (§4.3, §4.9).
type pendingMultiFile struct {
	fsID uint16
	h    *ObjectHeader
}

type openRegfile struct {
	f          *os.File
	path       string
	hash       hash.Hash
	wantMD5    [16]byte
	nextOffset uint64
}

// NewConsumer wraps a Context and FrameReader. dests is indexed by
// fs_id in the order FsIn/DiRs headers are expected to appear.
func NewConsumer(ctx *Context, fr *FrameReader, dests []RestoreDest) *Consumer {
	return &Consumer{ctx: ctx, fr: fr, dests: dests}
}

// Restore drives the full §4.9 pipeline: a reader goroutine pulls
// framed records off fr and feeds the queue, a decompression worker
// pool transforms blocks, and the apply loop (this goroutine) drains
// the queue in order and writes the restored tree.
func (c *Consumer) Restore() error {
	pool := NewWorkerPool(c.ctx.Options.Workers, false, CompNone, 0, c.ctx.Options.Password)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); pool.Run(c.ctx.Queue, c.ctx.Abort) }()

	var readErr error
	go func() {
		defer wg.Done()
		readErr = c.feed()
	}()

	applyErr := c.applyLoop()
	wg.Wait()

	if applyErr != nil {
		return applyErr
	}
	return readErr
}

// feed is the reader side: it turns framed records into queue items
// until end of archive, then marks end-of-queue so the apply loop and
// workers can drain and exit (§4.9, §5).
func (c *Consumer) feed() error {
	defer c.ctx.Queue.SetEndOfQueue(true)
	for {
		d, magic, fsID, err := c.fr.NextHeader(true)
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}

		if magic == MagicBlockHeader {
			b, berr := blockFromDico(d, fsID)
			if berr != nil {
				log.Printf("fsa: corrupt block header, skipping: %s", berr)
				continue
			}
			payload, perr := c.fr.NextBlockPayload(b.ArchiveSize)
			if perr != nil {
				return perr
			}
			b.Data = payload
			c.ctx.Queue.EnqueueBlock(b)
			continue
		}

		c.ctx.Queue.EnqueueHeader(d, magic, fsID)
	}
}

// applyLoop is the single-threaded restore side: it dequeues strictly
// in order (the guarantee drainQueueToWriter relies on for saving) and
// applies each header/block to the destination tree (§4.9, §5).
func (c *Consumer) applyLoop() error {
	for {
		kind, d, magic, fsID, block, _, err := c.ctx.Queue.DequeueFirst()
		if err == ErrEndOfQueue {
			return c.finish()
		}
		if err != nil {
			return err
		}
		if kind == KindBlock {
			if err := c.applyBlock(block); err != nil {
				log.Printf("fsa: apply block: %s", err)
				c.ctx.Stats.ErrReg++
			}
			continue
		}
		if err := c.applyHeader(magic, fsID, d); err != nil {
			return err
		}
		if c.ctx.Abort.IsSet() {
			return ErrAborted
		}
	}
}

func (c *Consumer) finish() error {
	if c.cur != nil {
		c.cur.f.Close()
		c.cur = nil
	}
	return nil
}

func (c *Consumer) dest(fsID uint16) *RestoreDest {
	idx := int(fsID)
	if fsID == NullFsID || idx < 0 || idx >= len(c.dests) {
		if len(c.dests) > 0 {
			return &c.dests[0]
		}
		return &RestoreDest{MountPath: "."}
	}
	return &c.dests[idx]
}

func (c *Consumer) applyHeader(magic [4]byte, fsID uint16, d *Dico) error {
	switch magic {
	case MagicMainHeader:
		h, err := ParseMainHeaderDico(d)
		if err != nil {
			return err
		}
		if h.Encrypted {
			if err := VerifyPasswordCheck(c.ctx.Options.Password, h.CheckBuf, h.CheckMD5); err != nil {
				return err
			}
		}
		c.mainHdr = h
		return nil

	case MagicFsInfo:
		info := ParseFsInfoDico(d, fsID)
		dest := c.dest(fsID)
		if dest.Adapter != nil {
			if err := dest.Adapter.Mkfs(d, dest.MountPath, dest.Mkfs); err != nil {
				return fmt.Errorf("fsa: mkfs %s: %w", dest.MountPath, err)
			}
			if err := dest.Adapter.Mount(dest.MountPath, dest.MountPath, d); err != nil {
				return fmt.Errorf("fsa: mount %s: %w", dest.MountPath, err)
			}
		}
		if info.TotalCost > 0 {
			c.progress = progressbar.New(int(info.TotalCost))
		}
		return nil

	case MagicDirsInfo:
		info := ParseFsInfoDico(d, NullFsID)
		if info.TotalCost > 0 {
			c.progress = progressbar.New(int(info.TotalCost))
		}
		return nil

	case MagicFsContents, MagicEndOfContents:
		return nil

	case MagicObject:
		h, err := ParseObjectDico(d)
		if err != nil {
			log.Printf("fsa: corrupt object header, skipping: %s", err)
			return nil
		}
		c.applyObject(fsID, h, d)
		if c.progress != nil {
			c.progress.Add(PerFileFixedCost + int(h.Size))
		}
		return nil

	case MagicFileFooter:
		c.applyFooter(d)
		return nil
	}
	return nil
}

func (c *Consumer) destPath(fsID uint16, rel string) string {
	return filepath.Join(c.dest(fsID).MountPath, filepath.FromSlash(rel))
}

func (c *Consumer) ensureParent(path string) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		log.Printf("fsa: mkdir %s: %s", filepath.Dir(path), err)
	}
}

func (c *Consumer) applyObject(fsID uint16, h *ObjectHeader, d *Dico) {
	dest := c.destPath(fsID, h.Path)

	switch h.Type {
	case ObjDir:
		if err := os.MkdirAll(dest, 0755); err != nil {
			log.Printf("fsa: mkdir %s: %s", dest, err)
			c.ctx.Stats.ErrDir++
			return
		}
		c.applyOwnerModeTime(dest, h, false)
		_ = ApplyXAttrs(d, dest)
		c.ctx.Stats.CntDir++

	case ObjSymlink:
		c.ensureParent(dest)
		if err := os.Symlink(h.SymlinkTarget, dest); err != nil {
			log.Printf("fsa: symlink %s: %s", dest, err)
			c.ctx.Stats.ErrSym++
			return
		}
		unix.Lchown(dest, int(h.UID), int(h.GID))
		c.ctx.Stats.CntSym++

	case ObjHardlink:
		c.ensureParent(dest)
		target := c.destPath(fsID, h.HardlinkTarget)
		if err := os.Link(target, dest); err != nil {
			log.Printf("fsa: hardlink %s -> %s: %s", dest, target, err)
			c.ctx.Stats.ErrHardlink++
			return
		}
		c.ctx.Stats.CntHardlink++

	case ObjCharDev, ObjBlockDev:
		c.ensureParent(dest)
		major, minor := devMajorMinor(h.Rdev)
		mode := uint32(0o600)
		if h.Type == ObjCharDev {
			mode |= unix.S_IFCHR
		} else {
			mode |= unix.S_IFBLK
		}
		if err := unix.Mknod(dest, mode, int(makeDev(major, minor))); err != nil {
			log.Printf("fsa: mknod %s: %s", dest, err)
			c.ctx.Stats.ErrSpecial++
			return
		}
		c.applyOwnerModeTime(dest, h, false)
		c.ctx.Stats.CntSpecial++

	case ObjFifo:
		c.ensureParent(dest)
		if err := unix.Mkfifo(dest, h.Mode&0o7777); err != nil {
			log.Printf("fsa: mkfifo %s: %s", dest, err)
			c.ctx.Stats.ErrSpecial++
			return
		}
		c.applyOwnerModeTime(dest, h, false)
		c.ctx.Stats.CntSpecial++

	case ObjSocket:
		c.ensureParent(dest)
		if err := unix.Mknod(dest, uint32(unix.S_IFSOCK|0o600), 0); err != nil {
			log.Printf("fsa: mknod (socket) %s: %s", dest, err)
			c.ctx.Stats.ErrSpecial++
			return
		}
		c.ctx.Stats.CntSpecial++

	case ObjRegfileUnique:
		c.ensureParent(dest)
		if c.cur != nil {
			c.cur.f.Close()
			c.cur = nil
		}
		f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(h.Mode&0o7777))
		if err != nil {
			log.Printf("fsa: create %s: %s", dest, err)
			c.ctx.Stats.ErrReg++
			return
		}
		_ = ApplyXAttrs(d, dest)
		if h.Size == 0 {
			f.Close()
			c.applyOwnerModeTime(dest, h, false)
			c.ctx.Stats.CntReg++
			return
		}
		c.cur = &openRegfile{f: f, path: dest, hash: md5.New()}
		c.pendingRegfile = h

	case ObjRegfileMulti:
		c.ensureParent(dest)
		f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(h.Mode&0o7777))
		if err != nil {
			log.Printf("fsa: create %s: %s", dest, err)
			c.ctx.Stats.ErrReg++
			return
		}
		_ = ApplyXAttrs(d, dest)
		f.Close()
		c.pendingMulti = append(c.pendingMulti, pendingMultiFile{fsID: fsID, h: h})
	}
}

func (c *Consumer) applyOwnerModeTime(path string, h *ObjectHeader, isSymlink bool) {
	if err := os.Chown(path, int(h.UID), int(h.GID)); err != nil && !os.IsPermission(err) {
		log.Printf("fsa: chown %s: %s", path, err)
	}
	if !isSymlink {
		if err := os.Chmod(path, os.FileMode(h.Mode&0o7777)); err != nil {
			log.Printf("fsa: chmod %s: %s", path, err)
		}
	}
	atime := time.Unix(h.Atime, 0)
	mtime := time.Unix(h.Mtime, 0)
	if err := os.Chtimes(path, atime, mtime); err != nil {
		log.Printf("fsa: chtimes %s: %s", path, err)
	}
}

func (c *Consumer) applyBlock(b *Block) error {
	if len(c.pendingMulti) > 0 {
		return c.applyMultiBlock(b)
	}
	if c.cur == nil {
		return fmt.Errorf("fsa: data block with no open file")
	}
	if uint64(b.Offset) != c.cur.nextOffset {
		return fmt.Errorf("fsa: out-of-order block for %s: got offset %d, want %d",
			c.cur.path, b.Offset, c.cur.nextOffset)
	}
	if _, err := c.cur.f.WriteAt(b.Data, int64(b.Offset)); err != nil {
		return err
	}
	c.cur.hash.Write(b.Data)
	c.cur.nextOffset += uint64(len(b.Data))
	return nil
}

func (c *Consumer) applyMultiBlock(b *Block) error {
	for _, pf := range c.pendingMulti {
		h := pf.h
		dest := c.destPath(pf.fsID, h.Path)
		start := h.MultiOffset
		end := start + uint32(h.Size)
		if end > uint32(len(b.Data)) {
			log.Printf("fsa: coalesced block too short for %s", h.Path)
			c.ctx.Stats.ErrReg++
			continue
		}
		sub := b.Data[start:end]
		if len(h.MultiMD5) == 16 {
			sum := md5.Sum(sub)
			if string(sum[:]) != string(h.MultiMD5) {
				log.Printf("fsa: md5 mismatch restoring coalesced file %s", h.Path)
				c.ctx.Stats.ErrReg++
				continue
			}
		}
		if err := os.WriteFile(dest, sub, os.FileMode(h.Mode&0o7777)); err != nil {
			log.Printf("fsa: write coalesced file %s: %s", dest, err)
			c.ctx.Stats.ErrReg++
			continue
		}
		c.applyOwnerModeTime(dest, h, false)
		c.ctx.Stats.CntReg++
	}
	c.pendingMulti = nil
	return nil
}

func (c *Consumer) applyFooter(d *Dico) {
	if c.cur == nil {
		return
	}
	sum, err := d.GetBytes(SectionStdAttr, attrFileMD5)
	if err == nil {
		got := c.cur.hash.Sum(nil)
		if string(got) != string(sum) {
			log.Printf("fsa: md5 mismatch restoring %s, truncating", c.cur.path)
			c.cur.f.Truncate(0)
			c.ctx.Stats.ErrReg++
		} else {
			c.ctx.Stats.CntReg++
		}
	}
	if h := c.pendingRegfile; h != nil {
		c.applyOwnerModeTime(c.cur.path, h, false)
		c.pendingRegfile = nil
	}
	c.cur.f.Close()
	c.cur = nil
}
