package ring

import "sync/atomic"

type cell[T any] struct {
	seq atomic.Uint64
	val T
}

// MPMC is a bounded multi-producer, multi-consumer queue using per-cell
// sequence numbers. FIFO across producers and consumers; per-producer order
// is preserved. Wait-free in the absence of contention, lock-free under it.
type MPMC[T any] struct {
	cells []cell[T]
	mask  uint64
	_     [cacheLine - 32]byte

	enqueuePos atomic.Uint64
	_          [cacheLine - 8]byte

	dequeuePos atomic.Uint64
	_          [cacheLine - 8]byte
}

// NewMPMC allocates a queue of the given capacity. Capacity must be a power
// of two.
func NewMPMC[T any](capacity uint64) *MPMC[T] {
	if capacity == 0 || capacity&(capacity-1) != 0 {
		panic("ring: capacity must be a power of two")
	}
	q := &MPMC[T]{
		cells: make([]cell[T], capacity),
		mask:  capacity - 1,
	}
	for i := range q.cells {
		q.cells[i].seq.Store(uint64(i))
	}
	return q
}

// Cap returns the queue capacity.
func (q *MPMC[T]) Cap() uint64 { return q.mask + 1 }

// Enqueue appends one item. Returns false when the queue is full.
func (q *MPMC[T]) Enqueue(item T) bool {
	pos := q.enqueuePos.Load()
	for {
		c := &q.cells[pos&q.mask]
		seq := c.seq.Load()
		diff := int64(seq) - int64(pos)
		switch {
		case diff == 0:
			if q.enqueuePos.CompareAndSwap(pos, pos+1) {
				c.val = item
				c.seq.Store(pos + 1)
				return true
			}
			pos = q.enqueuePos.Load()
		case diff < 0:
			return false
		default:
			pos = q.enqueuePos.Load()
		}
	}
}

// Dequeue removes one item. Returns false when the queue is empty.
func (q *MPMC[T]) Dequeue() (T, bool) {
	pos := q.dequeuePos.Load()
	for {
		c := &q.cells[pos&q.mask]
		seq := c.seq.Load()
		diff := int64(seq) - int64(pos+1)
		switch {
		case diff == 0:
			if q.dequeuePos.CompareAndSwap(pos, pos+1) {
				item := c.val
				c.seq.Store(pos + q.mask + 1)
				return item, true
			}
			pos = q.dequeuePos.Load()
		case diff < 0:
			var zero T
			return zero, false
		default:
			pos = q.dequeuePos.Load()
		}
	}
}
