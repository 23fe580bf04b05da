package fsa

import (
	"crypto/md5"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path"
	"path/filepath"
	"sort"
	"sync"

	"github.com/schollz/progressbar/v2"
)

// SaveSource is one filesystem (savefs) or directory (savedir) to
// archive (§4.8).
type SaveSource struct {
	// Name is the source device path (savefs) or directory (savedir);
	// stored in the FsIn header.
	Name string
	// MountPath is where the source's contents are reachable for the
	// walk: for savedir this equals Name; for savefs it is the mount
	// point the adapter mounted Name onto.
	MountPath string
	Adapter   Adapter
}

// Producer implements savefs/savedir (§4.8).
type Producer struct {
	ctx   *Context
	fw    *FrameWriter
	progress *progressbar.ProgressBar

	// blockSize is the preferred_block_size levelPreset computed for
	// the run's compression level (§4.6); unique regular files are
	// chunked at this size rather than a fixed constant.
	blockSize int
}

// NewProducer wraps a Context and FrameWriter.
func NewProducer(ctx *Context, fw *FrameWriter) *Producer {
	return &Producer{ctx: ctx, fw: fw}
}

// RandomArchiveID generates the archive_id stored in the main header
// (§3), which readers use to detect a volume or record belonging to a
// different archive (§4.9). It must be unpredictable per archive, so
// it comes from crypto/rand rather than e.g. the creating process's PID.
func RandomArchiveID() uint32 {
	var buf [4]byte
	_, _ = rand.Read(buf[:])
	return binary.LittleEndian.Uint32(buf[:])
}

// Save runs the full pipeline of §4.8: writes the ArCh header, then
// for each source emits FsIn/DiRs + the tree walk, then DaEn, then
// signals end-of-queue and waits for the workers and writer to drain.
// archiveType distinguishes savefs (ArchiveTypeFilesystems, one FsIn
// per source) from savedir (ArchiveTypeDirectories, one DiRs header
// covering all sources).
func (p *Producer) Save(archiveType ArchiveType, sources []SaveSource) error {
	pool := NewWorkerPool(p.ctx.Options.Workers, true, p.compAlgo(), p.ctx.Options.CompLevel, p.ctx.Options.Password)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); pool.Run(p.ctx.Queue, p.ctx.Abort) }()

	var writeErr error
	go func() {
		defer wg.Done()
		writeErr = drainQueueToWriter(p.ctx.Queue, p.fw)
	}()

	runErr := p.run(archiveType, sources)

	p.ctx.Queue.SetEndOfQueue(true)
	wg.Wait()

	if runErr != nil {
		p.fw.Abort()
		return runErr
	}
	if writeErr != nil {
		p.fw.Abort()
		return writeErr
	}
	if err := p.fw.Finalize(); err != nil {
		return err
	}
	return nil
}

func (p *Producer) compAlgo() CompAlgo {
	algo, _, _ := levelPreset(p.ctx.Options.CompLevel)
	return algo
}

func (p *Producer) run(archiveType ArchiveType, sources []SaveSource) error {
	algo, level, blockSize := levelPreset(p.ctx.Options.CompLevel)
	p.blockSize = blockSize

	mainHeader := &MainHeader{
		ProgramVersion:   "fsa-1.0",
		Label:            p.ctx.Options.Label,
		CreatedAt:        p.ctx.Options.now(),
		ArchiveType:      archiveType,
		FsCount:          uint32(len(sources)),
		CompAlgo:         algo,
		CompLevel:        uint8(level),
		MinReaderVersion: FormatVersion,
	}
	archHeaderDico, err := BuildMainHeaderDico(mainHeader, p.ctx.Options.Password)
	if err != nil {
		return err
	}
	p.ctx.Queue.EnqueueHeader(archHeaderDico, MagicMainHeader, NullFsID)

	if archiveType == ArchiveTypeDirectories {
		var totalCost uint64
		for _, src := range sources {
			totalCost += estimateCost(src.MountPath, p.ctx.Options.Exclude)
		}
		p.progress = progressbar.New(int(totalCost))
		dirsInfo := BuildFsInfoDico(&FsInfo{TotalCost: totalCost})
		p.ctx.Queue.EnqueueHeader(dirsInfo, MagicDirsInfo, NullFsID)
	}

	for i, src := range sources {
		fsID := uint16(i)
		if err := p.saveOneSource(archiveType, fsID, src); err != nil {
			return err
		}
		if p.ctx.Abort.IsSet() {
			return ErrAborted
		}
	}
	return nil
}

func (p *Producer) saveOneSource(archiveType ArchiveType, fsID uint16, src SaveSource) error {
	if archiveType == ArchiveTypeFilesystems {
		if src.Adapter != nil {
			if err := src.Adapter.Mount(src.Name, src.MountPath, nil); err != nil {
				return fmt.Errorf("fsa: mount %s: %w", src.Name, err)
			}
			defer src.Adapter.Umount(src.Name, src.MountPath)
		}

		totalCost := estimateCost(src.MountPath, p.ctx.Options.Exclude)
		p.progress = progressbar.New(int(totalCost))

		info := &FsInfo{Name: src.Name, TotalCost: totalCost}
		if src.Adapter != nil {
			d := NewDico()
			_ = src.Adapter.GetInfo(d, src.Name)
			info.Label, _ = d.GetString(SectionStdAttr, attrFsLabel)
			info.UUID, _ = d.GetString(SectionStdAttr, attrFsUUID)
		}
		p.ctx.Queue.EnqueueHeader(BuildFsInfoDico(info), MagicFsInfo, fsID)
	}

	p.ctx.Queue.EnqueueHeader(NewDico(), MagicFsContents, fsID)

	hardlinks := NewHardlinkMap()
	coalescer := NewCoalescer()
	nextObjectID := new(uint64)

	rootDev := uint64(0)
	if fi, st, err := lstat(src.MountPath); err == nil {
		_ = fi
		rootDev = st.Dev
	}

	if err := p.walk(fsID, src.MountPath, "/", hardlinks, coalescer, nextObjectID, rootDev); err != nil {
		return err
	}

	p.ctx.Queue.EnqueueHeader(NewDico(), MagicEndOfContents, fsID)
	return nil
}

// walk recursively archives dirPath (whose archive-relative path is
// relPath), post-order: children are fully serialized before this
// directory's own ObJt record, "so that applying directory mtimes
// after populating them is straightforward" (§4.8).
func (p *Producer) walk(fsID uint16, dirPath, relPath string, hardlinks *HardlinkMap, coalescer *Coalescer, nextObjectID *uint64, rootDev uint64) error {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		log.Printf("fsa: read dir %s: %s", dirPath, err)
		p.ctx.Stats.ErrDir++
		return nil
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if p.ctx.Abort.IsSet() {
			return ErrAborted
		}
		full := filepath.Join(dirPath, entry.Name())
		rel := path.Join(relPath, entry.Name())
		if p.excluded(rel, entry.Name()) {
			continue
		}

		fi, st, err := lstat(full)
		if err != nil {
			log.Printf("fsa: stat %s: %s", full, err)
			p.ctx.Stats.ErrReg++
			continue
		}

		switch {
		case fi.IsDir():
			if st.Dev != rootDev {
				continue // cross-device boundaries are not followed (§4.8)
			}
			if err := p.walk(fsID, full, rel, hardlinks, coalescer, nextObjectID, rootDev); err != nil {
				return err
			}
			p.emitDir(fsID, full, rel, fi, st, nextObjectID)
			p.ctx.Stats.CntDir++

		case fi.Mode()&fs.ModeSymlink != 0:
			if err := p.emitSymlink(fsID, full, rel, fi, st, nextObjectID); err != nil {
				log.Printf("fsa: symlink %s: %s", full, err)
				p.ctx.Stats.ErrSym++
				continue
			}
			p.ctx.Stats.CntSym++

		case fi.Mode()&(fs.ModeDevice|fs.ModeCharDevice|fs.ModeNamedPipe|fs.ModeSocket) != 0:
			p.emitSpecial(fsID, rel, fi, st, nextObjectID)
			p.ctx.Stats.CntSpecial++

		default: // regular file
			hardlinksBefore := p.ctx.Stats.CntHardlink
			if err := p.emitRegular(fsID, full, rel, fi, st, hardlinks, coalescer, nextObjectID); err != nil {
				log.Printf("fsa: file %s: %s", full, err)
				p.ctx.Stats.ErrReg++
				continue
			}
			if p.ctx.Stats.CntHardlink == hardlinksBefore {
				p.ctx.Stats.CntReg++
			}
		}

		if p.progress != nil {
			p.progress.Add(PerFileFixedCost + int(fi.Size()))
		}
	}

	// Flush any small files coalesced at this directory level before
	// returning to the caller, which emits this directory's own ObJt
	// record next: otherwise a coalesced file's header could reach the
	// queue after its enclosing directory's, breaking the post-order
	// guarantee restfs/restdir relies on.
	return coalescer.Flush(p.ctx.Queue, fsID)
}

func (p *Producer) excluded(rel, base string) bool {
	return matchesAny(p.ctx.Options.Exclude, rel, base)
}

func (p *Producer) nextID(n *uint64) uint64 {
	*n++
	return *n
}

func baseHeader(typ ObjType, rel string, fi fs.FileInfo, st *statInfo, id uint64) *ObjectHeader {
	return &ObjectHeader{
		ObjectID: id,
		Path:     rel,
		Size:     uint64(fi.Size()),
		Mode:     modeFromFileInfo(fi),
		UID:      st.Uid,
		GID:      st.Gid,
		Atime:    st.Atime,
		Mtime:    st.Mtime,
		Type:     typ,
	}
}

func (p *Producer) emitDir(fsID uint16, full, rel string, fi fs.FileInfo, st *statInfo, nextObjectID *uint64) {
	h := baseHeader(ObjDir, rel, fi, st, p.nextID(nextObjectID))
	d := BuildObjectDico(h)
	if err := AddXAttrs(d, full); err != nil {
		log.Printf("fsa: xattrs %s: %s", full, err)
	}
	p.ctx.Queue.EnqueueHeader(d, MagicObject, fsID)
}

func (p *Producer) emitSymlink(fsID uint16, full, rel string, fi fs.FileInfo, st *statInfo, nextObjectID *uint64) error {
	target, err := os.Readlink(full)
	if err != nil {
		return err
	}
	h := baseHeader(ObjSymlink, rel, fi, st, p.nextID(nextObjectID))
	h.SymlinkTarget = target
	d := BuildObjectDico(h)
	p.ctx.Queue.EnqueueHeader(d, MagicObject, fsID)
	return nil
}

func (p *Producer) emitSpecial(fsID uint16, rel string, fi fs.FileInfo, st *statInfo, nextObjectID *uint64) {
	typ := ObjFifo
	switch {
	case fi.Mode()&fs.ModeSocket != 0:
		typ = ObjSocket
	case fi.Mode()&fs.ModeCharDevice != 0:
		typ = ObjCharDev
	case fi.Mode()&fs.ModeDevice != 0:
		typ = ObjBlockDev
	}
	h := baseHeader(typ, rel, fi, st, p.nextID(nextObjectID))
	h.Rdev = st.Rdev
	d := BuildObjectDico(h)
	p.ctx.Queue.EnqueueHeader(d, MagicObject, fsID)
}

// smallFileThreshold is the cutoff below which regular files with a
// single link are coalesced instead of given their own data block
// (§4.8 "size in (0, small_threshold)").
const smallFileThreshold = 32 * 1024

func (p *Producer) emitRegular(fsID uint16, full, rel string, fi fs.FileInfo, st *statInfo, hardlinks *HardlinkMap, coalescer *Coalescer, nextObjectID *uint64) error {
	if st.Nlink > 1 {
		if target, err := hardlinks.Get(st.Dev, st.Ino); err == nil {
			h := baseHeader(ObjHardlink, rel, fi, st, p.nextID(nextObjectID))
			h.HardlinkTarget = target
			d := BuildObjectDico(h)
			p.ctx.Queue.EnqueueHeader(d, MagicObject, fsID)
			p.ctx.Stats.CntHardlink++
			return nil
		}
		_ = hardlinks.Insert(st.Dev, st.Ino, rel)
	}

	size := fi.Size()
	if size > 0 && size < smallFileThreshold && st.Nlink == 1 {
		data, err := os.ReadFile(full)
		if err != nil {
			return err
		}
		if !coalescer.CanFit(len(data)) {
			if err := coalescer.Flush(p.ctx.Queue, fsID); err != nil {
				return err
			}
		}
		h := baseHeader(ObjRegfileMulti, rel, fi, st, p.nextID(nextObjectID))
		d := BuildObjectDico(h)
		_ = AddXAttrs(d, full)
		return coalescer.Add(d, MagicObject, fsID, data)
	}

	h := baseHeader(ObjRegfileUnique, rel, fi, st, p.nextID(nextObjectID))
	if isSparse(st, size) {
		h.Flags |= FlagSparse
	}
	d := BuildObjectDico(h)
	_ = AddXAttrs(d, full)
	p.ctx.Queue.EnqueueHeader(d, MagicObject, fsID)

	if size == 0 {
		return nil
	}

	f, err := os.Open(full)
	if err != nil {
		return err
	}
	defer f.Close()

	digest := md5.New()
	blockSize := p.blockSize
	if blockSize <= 0 {
		blockSize = 256 * 1024
	}
	buf := make([]byte, blockSize)
	var offset uint64
	for {
		n, rerr := f.Read(buf)
		if n > 0 {
			digest.Write(buf[:n])
			data := make([]byte, n)
			copy(data, buf[:n])
			p.ctx.Queue.EnqueueBlock(&Block{FsID: fsID, Offset: offset, RealSize: uint32(n), Data: data})
			offset += uint64(n)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return rerr
		}
	}

	footer := NewDico()
	sum := digest.Sum(nil)
	footer.AddBytes(SectionStdAttr, attrFileMD5, sum)
	p.ctx.Queue.EnqueueHeader(footer, MagicFileFooter, fsID)
	return nil
}

// attrFileMD5 is the STDATTR key carrying a FiLf record's whole-file
// MD5 (§3, §8-P2c).
const attrFileMD5 uint16 = 4000

// estimateCost sums PerFileFixedCost + file_size over the tree,
// published as FsIn/DiRs total_cost for the progress bar (§4.8.b).
func estimateCost(root string, exclude []string) uint64 {
	var total uint64
	filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if p != root {
			rel, rerr := filepath.Rel(root, p)
			if rerr == nil {
				rel = "/" + filepath.ToSlash(rel)
				if matchesAny(exclude, rel, d.Name()) {
					if d.IsDir() {
						return filepath.SkipDir
					}
					return nil
				}
			}
		}
		info, ierr := d.Info()
		if ierr != nil {
			return nil
		}
		total += PerFileFixedCost + uint64(info.Size())
		return nil
	})
	return total
}

func matchesAny(patterns []string, rel, base string) bool {
	for _, pat := range patterns {
		if ok, _ := path.Match(pat, base); ok {
			return true
		}
		if ok, _ := path.Match(pat, rel); ok {
			return true
		}
	}
	return false
}

// drainQueueToWriter is the writer role of §4.8/§5: the single thread
// that drains the queue strictly in enqueue order and appends each
// item to the volume set.
func drainQueueToWriter(q *Queue, fw *FrameWriter) error {
	for {
		kind, d, magic, fsID, block, _, err := q.DequeueFirst()
		if err == ErrEndOfQueue {
			return nil
		}
		if err != nil {
			return err
		}
		if kind == KindHeader {
			if err := fw.AppendHeader(d, magic, fsID); err != nil {
				return err
			}
			continue
		}
		if err := fw.AppendBlock(block); err != nil {
			return err
		}
	}
}
