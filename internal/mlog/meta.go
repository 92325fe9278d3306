// Package mlog implements the memory-mapped persistent log of fixed-size
// records: a `<base>.dat` file holding a raw record array and a
// `<base>.meta` file holding a 4 KiB header with the capacity and a
// monotonic write cursor. The layout is bit-exact across recorders and read
// tools and assumes a little-endian host.
package mlog

import (
	"sync/atomic"
	"unsafe"

	"github.com/yanun0323/errors"
)

// MetaSize is the exact size of the `<base>.meta` header. Bytes 0-7 hold the
// little-endian write cursor, bytes 8-15 the capacity; the rest is
// zero-filled padding against false sharing.
const MetaSize = 4096

var (
	ErrClosed      = errors.New("mlog: closed")
	ErrBadCapacity = errors.New("mlog: capacity must be > 0")
)

const (
	metaCursorOff   = 0
	metaCapacityOff = 8
)

func metaCursor(meta []byte) *atomic.Uint64 {
	return (*atomic.Uint64)(unsafe.Pointer(&meta[metaCursorOff]))
}

func metaCapacity(meta []byte) *uint64 {
	return (*uint64)(unsafe.Pointer(&meta[metaCapacityOff]))
}

func recordSize[T any]() uint64 {
	var zero T
	return uint64(unsafe.Sizeof(zero))
}

func recordAt[T any](data []byte, size, index uint64) *T {
	return (*T)(unsafe.Pointer(&data[index*size]))
}
