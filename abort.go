package fsa

import "sync/atomic"

// AbortFlag is the single process-wide cancellation signal (§5, §9
// design note). It replaces the source's sigpending-polled global with
// a plain atomic set from a signal handler; producers test it between
// files, workers and the writer observe it alongside end-of-queue.
type AbortFlag struct {
	v int32
}

// NewAbortFlag returns a cleared flag.
func NewAbortFlag() *AbortFlag {
	return &AbortFlag{}
}

// Set raises the flag. Safe to call from a signal handler.
func (a *AbortFlag) Set() {
	atomic.StoreInt32(&a.v, 1)
}

// IsSet reports whether the flag has been raised.
func (a *AbortFlag) IsSet() bool {
	return atomic.LoadInt32(&a.v) != 0
}
