package fsa

import "sync"

// ItemStatus is the lifecycle state of one queue item (§3, §4.4).
type ItemStatus int

const (
	StatusTodo ItemStatus = iota
	StatusInProgress
	StatusDone
)

// ItemKind distinguishes the two queue item variants (§3).
type ItemKind int

const (
	KindHeader ItemKind = iota
	KindBlock
)

// Block is the in-memory data block carried by a Block queue item
// (§3). Invariants: RealSize <= MaxBlockSize; ArchiveSize is the
// length of the bytes actually written to disk; ArchiveChecksum is the
// Fletcher-32 of those bytes; CompAlgo == CompNone iff compression was
// disabled or unprofitable (§3, §4.6).
type Block struct {
	FsID            uint16
	Offset          uint64
	RealSize        uint32
	Data            []byte
	CompAlgo        CompAlgo
	EncryptAlgo     EncryptAlgo
	CompressedSize  uint32
	ArchiveSize     uint32
	ArchiveChecksum uint32
	Corrupt         bool
}

// headerItem is the Header queue item variant: a Dico plus the framing
// fields needed to write or identify it (§3).
type headerItem struct {
	dico  *Dico
	magic [4]byte
	fsID  uint16
}

// queueItem is the tagged union of §3/§9's design note: a proper sum
// type instead of a struct with unused fields per variant.
type queueItem struct {
	itemNum int64
	kind    ItemKind
	status  ItemStatus
	header  headerItem
	block   *Block
}

// Queue is the bounded, thread-safe FIFO that is the single
// synchronization point between producer, compression workers, and the
// writer (§4.4, §5). Grounded on cosnicolaou/pbzip2's parallel.go
// producer/worker/writer split, adapted from that package's channel +
// heap reassembly to the spec's mutex+condvar, explicit-status
// contract: workers must be able to scan for "the earliest TODO block"
// and atomically claim it, which a plain channel cannot express.
type Queue struct {
	mu       sync.Mutex
	cond     *sync.Cond
	items    []*queueItem
	capacity int // in blocks; headers are unbounded
	blocks   int
	nextNum  int64
	endOfQ   bool
}

// NewQueue returns a queue bounded to capacity data blocks.
func NewQueue(capacity int) *Queue {
	q := &Queue{capacity: capacity}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// EnqueueHeader appends a header item, marked DONE immediately (§3,
// §4.4), and wakes any waiters.
func (q *Queue) EnqueueHeader(d *Dico, magic [4]byte, fsID uint16) int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	num := q.nextNum
	q.nextNum++
	q.items = append(q.items, &queueItem{
		itemNum: num,
		kind:    KindHeader,
		status:  StatusDone,
		header:  headerItem{dico: d, magic: magic, fsID: fsID},
	})
	q.cond.Broadcast()
	return num
}

// EnqueueBlock appends a block item marked TODO, blocking while the
// queue already holds capacity blocks (§4.4).
func (q *Queue) EnqueueBlock(b *Block) int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.blocks >= q.capacity {
		q.cond.Wait()
	}
	num := q.nextNum
	q.nextNum++
	q.items = append(q.items, &queueItem{
		itemNum: num,
		kind:    KindBlock,
		status:  StatusTodo,
		block:   b,
	})
	q.blocks++
	q.cond.Broadcast()
	return num
}

// SetEndOfQueue marks that the producer/reader has finished enqueuing;
// once set and the queue is empty, dequeue calls return ErrEndOfQueue.
func (q *Queue) SetEndOfQueue(flag bool) {
	q.mu.Lock()
	q.endOfQ = flag
	q.cond.Broadcast()
	q.mu.Unlock()
}

func (q *Queue) GetEndOfQueue() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.endOfQ
}

// DequeueFirst returns the head item once it is DONE, blocking
// otherwise; returns ErrEndOfQueue once end-of-queue is set and the
// queue is empty (§4.4). This is the single drain point that gives the
// writer/consumer the order-preservation guarantee of §5.
func (q *Queue) DequeueFirst() (kind ItemKind, header *Dico, magic [4]byte, fsID uint16, block *Block, itemNum int64, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		if len(q.items) == 0 {
			if q.endOfQ {
				return 0, nil, [4]byte{}, 0, nil, 0, ErrEndOfQueue
			}
			q.cond.Wait()
			continue
		}
		head := q.items[0]
		if head.status != StatusDone {
			q.cond.Wait()
			continue
		}
		q.items = q.items[1:]
		if head.kind == KindBlock {
			q.blocks--
			q.cond.Broadcast()
		}
		if head.kind == KindHeader {
			return KindHeader, head.header.dico, head.header.magic, head.header.fsID, nil, head.itemNum, nil
		}
		return KindBlock, nil, [4]byte{}, 0, head.block, head.itemNum, nil
	}
}

// DequeueHeaderBlocking waits until the head is a header and returns
// it, failing with ErrWrongType if the head is a block.
func (q *Queue) DequeueHeaderBlocking() (*Dico, [4]byte, uint16, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 {
		if q.endOfQ {
			return nil, [4]byte{}, 0, ErrEndOfQueue
		}
		q.cond.Wait()
	}
	head := q.items[0]
	if head.kind != KindHeader {
		return nil, [4]byte{}, 0, ErrWrongType
	}
	q.items = q.items[1:]
	return head.header.dico, head.header.magic, head.header.fsID, nil
}

// DequeueBlockBlocking is the block-side dual of
// DequeueHeaderBlocking.
func (q *Queue) DequeueBlockBlocking() (*Block, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 || (q.items[0].kind == KindBlock && q.items[0].status != StatusDone) {
		if len(q.items) == 0 && q.endOfQ {
			return nil, ErrEndOfQueue
		}
		q.cond.Wait()
	}
	head := q.items[0]
	if head.kind != KindBlock {
		return nil, ErrWrongType
	}
	q.items = q.items[1:]
	q.blocks--
	q.cond.Broadcast()
	return head.block, nil
}

// PeekFirst inspects the head item's kind and magic without removing
// it. Returns ErrEndOfQueue if the queue is empty and end-of-queue is
// set; returns ErrWait if the queue is merely momentarily empty.
func (q *Queue) PeekFirst() (kind ItemKind, magic [4]byte, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		if q.endOfQ {
			return 0, [4]byte{}, ErrEndOfQueue
		}
		return 0, [4]byte{}, ErrWait
	}
	head := q.items[0]
	if head.kind == KindHeader {
		return KindHeader, head.header.magic, nil
	}
	return KindBlock, [4]byte{}, nil
}

// DestroyFirstItem pops the head unconditionally, used during error
// teardown and to skip garbage during resync (§4.4, §4.9).
func (q *Queue) DestroyFirstItem() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return
	}
	head := q.items[0]
	q.items = q.items[1:]
	if head.kind == KindBlock {
		q.blocks--
		q.cond.Broadcast()
	}
}

// FindFirstBlockTodo scans for the earliest block in state TODO,
// atomically marks it IN_PROGRESS, and returns it together with its
// item number. Returns ErrWait if none is found yet (the caller should
// wait on the condvar, per §9's sign-off on replacing the source's
// short-sleep poll with a pure condvar wait).
func (q *Queue) FindFirstBlockTodo() (*Block, int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, it := range q.items {
		if it.kind == KindBlock && it.status == StatusTodo {
			it.status = StatusInProgress
			return it.block, it.itemNum, nil
		}
	}
	return nil, 0, ErrWait
}

// WaitForWork blocks until a TODO block might be available or
// end-of-queue is set. Workers call this after FindFirstBlockTodo
// returns ErrWait.
func (q *Queue) WaitForWork() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.endOfQ || q.hasTodoLocked() {
		return
	}
	q.cond.Wait()
}

func (q *Queue) hasTodoLocked() bool {
	for _, it := range q.items {
		if it.kind == KindBlock && it.status == StatusTodo {
			return true
		}
	}
	return false
}

// Drained reports whether no TODO block remains and end-of-queue is
// set; a worker uses this to decide whether to exit its loop (§4.7).
func (q *Queue) Drained() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.endOfQ && !q.hasTodoLocked()
}

// ReplaceBlock installs the transformed block back into the item
// identified by itemNum, only when it is currently IN_PROGRESS (§4.4).
func (q *Queue) ReplaceBlock(itemNum int64, b *Block, newStatus ItemStatus) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, it := range q.items {
		if it.kind == KindBlock && it.itemNum == itemNum {
			if it.status != StatusInProgress {
				return ErrInvalidArg
			}
			it.block = b
			it.status = newStatus
			q.cond.Broadcast()
			return nil
		}
	}
	return ErrInvalidArg
}

// Count returns the total number of items currently queued.
func (q *Queue) Count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// CountTodo returns the number of blocks still in state TODO.
func (q *Queue) CountTodo() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, it := range q.items {
		if it.kind == KindBlock && it.status == StatusTodo {
			n++
		}
	}
	return n
}
