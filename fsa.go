// Package fsa implements the fsarchiver core: the producer/consumer
// archive pipeline that moves typed items (object headers and data
// blocks) through a bounded queue between a scanning/restore thread, a
// pool of compression workers, and a single I/O thread that writes a
// framed, checksummed, optionally encrypted volume set.
package fsa

import "time"

// MaxBlockSize is the ceiling on a data block's real_size (§3), and the
// byte budget of the small-file coalescer (§4.3).
const MaxBlockSize = 900 * 1024

// MaxSmallCount bounds the number of headers the coalescer batches
// before a forced flush (§4.3).
const MaxSmallCount = 512

// FormatVersion is the wire format version this build writes (§3, §4.5).
// v1 is read-only; see reader.go.
const FormatVersion = 2

// NullFsID marks a record that applies to the whole archive rather
// than to one filesystem (§3).
const NullFsID = 0xFFFF

// Context carries the state that the source implementation kept in
// process-wide globals: the queue, options, and the single abort flag
// shared by every goroutine in a run (design note §9). It is passed by
// reference through producer/consumer/worker entry points instead of
// being read from package state.
type Context struct {
	Queue   *Queue
	Options *Options
	Abort   *AbortFlag

	Stats Stats
}

// Options mirrors the CLI surface of §6 in a form producer/consumer
// code can consume directly, independent of how the flags were parsed.
type Options struct {
	Label       string
	Overwrite   bool
	Verbose     int
	Debug       int
	AllowRWMount bool
	RelaxMountOpts bool
	Experimental bool
	Exclude     []string
	CompLevel   int // 1..9, §4.6
	SplitSize   int64 // bytes, 0 = never
	Workers     int // 1..32
	Password    string // "" = no encryption

	CreatedAt func() time.Time // injected for deterministic tests; defaults to time.Now
}

func (o *Options) now() time.Time {
	if o != nil && o.CreatedAt != nil {
		return o.CreatedAt()
	}
	return time.Now()
}

// NewContext builds a Context with a queue sized per opts.Workers
// (capacity in blocks, §4.4) and a fresh abort flag.
func NewContext(opts *Options) *Context {
	if opts == nil {
		opts = &Options{}
	}
	capacity := opts.Workers * 4
	if capacity < 8 {
		capacity = 8
	}
	return &Context{
		Queue:   NewQueue(capacity),
		Options: opts,
		Abort:   NewAbortFlag(),
	}
}
