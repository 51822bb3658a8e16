// Package storage defines the narrow, pluggable storage back-end contract
// the rest of the engine is built against: random-read files for item and
// descriptor reads, append-only write files for ingest, and existence
// checks. Physical back-ends (local disk, object stores) live in
// sub-packages implementing this interface; the engine itself never talks
// to a filesystem or object store directly.
package storage

import "io"

// RandomReadFile supports sized, positioned reads - what the load worker
// needs to pull a keyframe-aligned byte range or a row-blob chunk without
// reading the whole item.
type RandomReadFile interface {
	Size() (int64, error)
	// ReadAt reads exactly len(dst) bytes starting at pos, or returns an
	// error (including io.EOF if the file is shorter than pos+len(dst)).
	ReadAt(dst []byte, pos int64) error
	io.Closer
}

// WriteFile supports append-only writes, the only write pattern the
// engine's own code performs (descriptor and item writers; ingest itself
// is out of scope).
type WriteFile interface {
	Append(p []byte) error
	io.Closer
}

// Backend is a pluggable storage back-end.
type Backend interface {
	// OpenRead opens path for random reads. It returns an error wrapping
	// retry.ErrPermanent if path does not exist.
	OpenRead(path string) (RandomReadFile, error)
	// OpenWrite opens (creating if necessary) path for appending.
	OpenWrite(path string) (WriteFile, error)
	// Exists reports whether path names an object, without opening it.
	Exists(path string) (bool, error)
}
