package mlog

import (
	"os"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"golang.org/x/sys/unix"
)

// Writer appends fixed-size records to a memory-mapped log. Exactly one
// writer owns a log; readers may tail it concurrently. On Close the dat file
// is truncated down to the written prefix to release unused disk space.
type Writer[T any] struct {
	base     string
	size     uint64
	capacity uint64
	data     []byte
	meta     []byte
	closed   bool
}

// NewWriter opens (or creates) `<base>.dat` and `<base>.meta`, pre-allocates
// the dat file to capacity records and maps both read-write.
func NewWriter[T any](base string, capacity uint64) (*Writer[T], error) {
	if capacity == 0 {
		return nil, ErrBadCapacity
	}
	size := recordSize[T]()

	datF, err := os.OpenFile(base+".dat", os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "open dat")
	}
	defer datF.Close()
	if err := unix.Ftruncate(int(datF.Fd()), int64(capacity*size)); err != nil {
		return nil, errors.Wrap(err, "ftruncate dat")
	}
	data, err := unix.Mmap(int(datF.Fd()), 0, int(capacity*size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, errors.Wrap(err, "mmap dat")
	}

	metaF, err := os.OpenFile(base+".meta", os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		_ = unix.Munmap(data)
		return nil, errors.Wrap(err, "open meta")
	}
	defer metaF.Close()
	if err := unix.Ftruncate(int(metaF.Fd()), MetaSize); err != nil {
		_ = unix.Munmap(data)
		return nil, errors.Wrap(err, "ftruncate meta")
	}
	meta, err := unix.Mmap(int(metaF.Fd()), 0, MetaSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = unix.Munmap(data)
		return nil, errors.Wrap(err, "mmap meta")
	}

	// A fresh meta file reads capacity 0; a reopened log keeps its cursor.
	if *metaCapacity(meta) == 0 {
		*metaCapacity(meta) = capacity
		metaCursor(meta).Store(0)
	}

	return &Writer[T]{
		base:     base,
		size:     size,
		capacity: capacity,
		data:     data,
		meta:     meta,
	}, nil
}

// Write copies one record at the write cursor and advances it. The cursor
// store has release ordering: a reader observing cursor n sees all record
// bytes at indices below n. Returns false when the pre-allocated capacity is
// exhausted; the caller drops the record and counts a warning.
func (w *Writer[T]) Write(rec *T) bool {
	cursor := metaCursor(w.meta).Load()
	if cursor >= w.capacity {
		return false
	}
	*recordAt[T](w.data, w.size, cursor) = *rec
	metaCursor(w.meta).Add(1)
	return true
}

// Count returns the number of committed records.
func (w *Writer[T]) Count() uint64 {
	return metaCursor(w.meta).Load()
}

// Capacity returns the pre-allocated record capacity.
func (w *Writer[T]) Capacity() uint64 { return w.capacity }

// Close unmaps both files and truncates the dat file to the written prefix.
func (w *Writer[T]) Close() error {
	if w.closed {
		return ErrClosed
	}
	w.closed = true
	cursor := metaCursor(w.meta).Load()
	if err := unix.Munmap(w.data); err != nil {
		return errors.Wrap(err, "munmap dat")
	}
	if err := unix.Munmap(w.meta); err != nil {
		return errors.Wrap(err, "munmap meta")
	}
	if err := os.Truncate(w.base+".dat", int64(cursor*w.size)); err != nil {
		return errors.Wrap(err, "truncate dat")
	}
	logs.Infof("mlog: %s closed, truncated to %d records", w.base, cursor)
	return nil
}
