package mlog

import (
	"os"

	"github.com/yanun0323/errors"
	"golang.org/x/sys/unix"
)

// Reader tails a memory-mapped log. It keeps a local cursor plus a cached
// copy of the writer's cursor so the hot path avoids atomic reloads; the
// cache is refreshed only when the local cursor catches up. All methods are
// non-blocking: exhaustion yields zero results.
type Reader[T any] struct {
	size     uint64
	capacity uint64
	data     []byte
	meta     []byte
	cursor   uint64
	cached   uint64
	closed   bool
}

// NewReader maps `<base>.dat` read-only. maxCapacity 0 maps at the
// writer-advertised capacity (finished logs); a non-zero value maps a fixed
// upper bound, which supports tailing a log the writer is still appending.
func NewReader[T any](base string, maxCapacity uint64) (*Reader[T], error) {
	size := recordSize[T]()

	metaF, err := os.Open(base + ".meta")
	if err != nil {
		return nil, errors.Wrap(err, "open meta")
	}
	defer metaF.Close()
	meta, err := unix.Mmap(int(metaF.Fd()), 0, MetaSize, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, errors.Wrap(err, "mmap meta")
	}

	capacity := maxCapacity
	if capacity == 0 {
		capacity = *metaCapacity(meta)
	}
	if capacity == 0 {
		_ = unix.Munmap(meta)
		return nil, ErrBadCapacity
	}

	datF, err := os.Open(base + ".dat")
	if err != nil {
		_ = unix.Munmap(meta)
		return nil, errors.Wrap(err, "open dat")
	}
	defer datF.Close()
	data, err := unix.Mmap(int(datF.Fd()), 0, int(capacity*size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		_ = unix.Munmap(meta)
		return nil, errors.Wrap(err, "mmap dat")
	}

	return &Reader[T]{
		size:     size,
		capacity: capacity,
		data:     data,
		meta:     meta,
		cached:   metaCursor(meta).Load(),
	}, nil
}

// available refreshes the cached write cursor when exhausted and reports
// whether records remain.
func (r *Reader[T]) available() bool {
	if r.cursor < r.cached {
		return true
	}
	r.cached = metaCursor(r.meta).Load()
	return r.cursor < r.cached
}

// Read copies the next record into out. Returns false when the log is
// exhausted.
func (r *Reader[T]) Read(out *T) bool {
	if !r.available() {
		return false
	}
	*out = *recordAt[T](r.data, r.size, r.cursor)
	r.cursor++
	return true
}

// ReadPtr returns a zero-copy pointer into the map, valid until the next
// reader call. Returns nil when the log is exhausted.
func (r *Reader[T]) ReadPtr() *T {
	if !r.available() {
		return nil
	}
	p := recordAt[T](r.data, r.size, r.cursor)
	r.cursor++
	if r.cursor+1 < r.cached {
		touch(&r.data[(r.cursor+1)*r.size])
	}
	return p
}

// ReadBatch fills out with up to len(out) contiguous record pointers and
// returns the count. Pointers are valid until the next reader call.
func (r *Reader[T]) ReadBatch(out []*T) int {
	if len(out) == 0 || !r.available() {
		return 0
	}
	n := r.cached - r.cursor
	if max := uint64(len(out)); n > max {
		n = max
	}
	for i := uint64(0); i < n; i++ {
		out[i] = recordAt[T](r.data, r.size, r.cursor+i)
		if r.cursor+i+4 < r.cached {
			touch(&r.data[(r.cursor+i+4)*r.size])
		}
	}
	r.cursor += n
	return int(n)
}

// Seek positions the local cursor at record n, clamped to the committed
// count.
func (r *Reader[T]) Seek(n uint64) {
	r.cached = metaCursor(r.meta).Load()
	if n > r.cached {
		n = r.cached
	}
	r.cursor = n
}

// SeekToEnd positions the local cursor after the last committed record, so
// subsequent reads observe only new data.
func (r *Reader[T]) SeekToEnd() {
	r.cached = metaCursor(r.meta).Load()
	r.cursor = r.cached
}

// TotalCount returns the writer's committed record count.
func (r *Reader[T]) TotalCount() uint64 {
	return metaCursor(r.meta).Load()
}

// Close unmaps the log.
func (r *Reader[T]) Close() error {
	if r.closed {
		return ErrClosed
	}
	r.closed = true
	if err := unix.Munmap(r.data); err != nil {
		return errors.Wrap(err, "munmap dat")
	}
	if err := unix.Munmap(r.meta); err != nil {
		return errors.Wrap(err, "munmap meta")
	}
	return nil
}

var touchSink byte

// touch pulls the record's first cache line ahead of use. Go has no prefetch
// intrinsic; a plain read is the portable equivalent.
func touch(p *byte) {
	touchSink = *p
}
