package fsa

import "errors"

// Package-specific error variables, usable with errors.Is(), grouped in
// one file the way the teacher groups ErrInvalidFile/ErrInvalidSuper/...
// in errors.go. These implement the taxonomy of spec.md §7.
var (
	// ErrEndOfQueue signals the drain side that the producer finished
	// and the queue is empty (§4.4).
	ErrEndOfQueue = errors.New("fsa: end of queue")

	// ErrNotOpen is returned for I/O attempted on a closed resource.
	ErrNotOpen = errors.New("fsa: resource not open")

	// ErrWait is returned by find_first_block_todo when no TODO block
	// is currently available (§4.4).
	ErrWait = errors.New("fsa: no work available yet")

	// ErrWrongType is returned when a dico lookup or queue dequeue
	// finds an item of the wrong kind.
	ErrWrongType = errors.New("fsa: wrong item type")

	// ErrInvalidArg marks programmer/caller misuse.
	ErrInvalidArg = errors.New("fsa: invalid argument")

	// ErrNotFound is a recoverable dico lookup miss (§4.1).
	ErrNotFound = errors.New("fsa: attribute not found")

	// ErrDuplicate is returned by Dico.Add and the hardlink map on a
	// duplicate key (§4.1, §4.2).
	ErrDuplicate = errors.New("fsa: duplicate key")

	// ErrBufTooSmall reports a caller buffer too small for a stored
	// value. The Dico getters take no caller buffer and do not return it.
	ErrBufTooSmall = errors.New("fsa: buffer too small")

	// ErrCorrupt marks a checksum mismatch or structural inconsistency
	// in a record; recoverable by forward resync or by skipping one
	// file (§4.1, §4.5, §7).
	ErrCorrupt = errors.New("fsa: corrupt record")

	// ErrNoSpace is returned when a volume write fails because the
	// underlying device is full (§7).
	ErrNoSpace = errors.New("fsa: no space left on device")

	// ErrPassword is returned when the stored password check fails
	// (§4.8.2, §8-P10).
	ErrPassword = errors.New("fsa: incorrect archive password")

	// ErrUnsupportedFeature is returned when an archive requires a
	// reader newer than this build (§4.9, §7).
	ErrUnsupportedFeature = errors.New("fsa: archive requires a newer reader")

	// ErrArchiveIDMismatch names a record whose archive_id does not match
	// the archive being read (§3). FrameReader does not return it: it logs
	// such a record, counts it in CorruptCount and skips it.
	ErrArchiveIDMismatch = errors.New("fsa: archive id mismatch")

	// ErrMissingVolume is returned by the reader when the next volume
	// file does not exist and the current volume is not the last one
	// (§4.5).
	ErrMissingVolume = errors.New("fsa: missing volume file")

	// ErrAborted is returned when a run is cancelled via the process
	// abort flag (§5).
	ErrAborted = errors.New("fsa: aborted")
)
