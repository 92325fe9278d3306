package snapshot

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"unsafe"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"golang.org/x/sys/unix"

	"github.com/Helloworld152/hft-eb/internal/schema"
)

// Magic identifies an initialised snapshot region ("SNAPSHOT").
const Magic uint64 = 0x534E415053484F54

// IDOffset maps instrument ids into the indirection table:
// table[id - IDOffset] holds the slot index, -1 when unused.
const IDOffset = 10_000_000

// TableLen is the indirection table length.
const TableLen = 65536

var (
	ErrBadMagic    = errors.New("snapshot: shm magic mismatch")
	ErrShmTooSmall = errors.New("snapshot: shm region too small")
)

// Region layout: magic u64, capacity u64, table [TableLen]int32, slot array
// [MaxSlots]slot, slot count u32.
const (
	magicOff    = 0
	capacityOff = 8
	tableOff    = 16
	slotsOff    = tableOff + TableLen*4
	countOff    = slotsOff + MaxSlots*slotSize
	regionSize  = countOff + 4
)

// Shm is the shared-memory backing. Exactly one process opens it as writer;
// readers map read-only. The writer lazily assigns a slot the first time it
// sees a new id; readers resolve ids through the indirection table.
type Shm struct {
	name     string
	isWriter bool
	data     []byte
	closed   bool
}

// NewShm opens (writer: creates and initialises; reader: validates) the
// named region under /dev/shm. Any leading path is stripped from the name.
func NewShm(name string, isWriter bool) (*Shm, error) {
	path := filepath.Join("/dev/shm", filepath.Base(name))

	flags := os.O_RDONLY
	if isWriter {
		flags = os.O_RDWR | os.O_CREATE
	}
	f, err := os.OpenFile(path, flags, 0o666)
	if err != nil {
		return nil, errors.Wrap(err, "open shm")
	}
	defer f.Close()

	if isWriter {
		if err := unix.Ftruncate(int(f.Fd()), regionSize); err != nil {
			return nil, errors.Wrap(err, "ftruncate shm")
		}
	} else {
		st, err := f.Stat()
		if err != nil {
			return nil, errors.Wrap(err, "stat shm")
		}
		if st.Size() < regionSize {
			return nil, ErrShmTooSmall
		}
	}

	prot := unix.PROT_READ
	if isWriter {
		prot |= unix.PROT_WRITE
	}
	data, err := unix.Mmap(int(f.Fd()), 0, regionSize, prot, unix.MAP_SHARED)
	if err != nil {
		return nil, errors.Wrap(err, "mmap shm")
	}

	s := &Shm{name: path, isWriter: isWriter, data: data}
	if isWriter {
		// Re-initialise on a fresh or foreign region.
		if s.magic() != Magic {
			s.initRegion()
		}
		logs.Infof("snapshot: shm writer attached to %s", path)
	} else if s.magic() != Magic {
		_ = unix.Munmap(data)
		return nil, ErrBadMagic
	}
	return s, nil
}

func (s *Shm) magic() uint64 {
	return *(*uint64)(unsafe.Pointer(&s.data[magicOff]))
}

func (s *Shm) table(off uint64) *atomic.Int32 {
	return (*atomic.Int32)(unsafe.Pointer(&s.data[tableOff+off*4]))
}

func (s *Shm) slot(idx int32) *slot {
	return (*slot)(unsafe.Pointer(&s.data[slotsOff+uint64(idx)*slotSize]))
}

func (s *Shm) count() *atomic.Uint32 {
	return (*atomic.Uint32)(unsafe.Pointer(&s.data[countOff]))
}

func (s *Shm) initRegion() {
	for i := range s.data {
		s.data[i] = 0
	}
	for i := uint64(0); i < TableLen; i++ {
		s.table(i).Store(-1)
	}
	*(*uint64)(unsafe.Pointer(&s.data[capacityOff])) = MaxSlots
	*(*uint64)(unsafe.Pointer(&s.data[magicOff])) = Magic
}

// Update publishes the latest tick for tick.ID, assigning a slot on first
// sight. Ids outside the table range, and ids beyond the slot capacity, are
// dropped.
func (s *Shm) Update(tick *schema.Tick) {
	if tick.ID < IDOffset {
		return
	}
	off := tick.ID - IDOffset
	if off >= TableLen {
		return
	}
	idx := s.table(off).Load()
	if idx < 0 {
		next := int32(s.count().Add(1)) - 1
		if next >= MaxSlots {
			return
		}
		s.table(off).Store(next)
		idx = next
	}
	s.slot(idx).write(tick)
}

// Get copies the latest tick for id. Ids never seen by the writer resolve to
// not-found.
func (s *Shm) Get(id uint64) (schema.Tick, bool) {
	if id < IDOffset {
		return schema.Tick{}, false
	}
	off := id - IDOffset
	if off >= TableLen {
		return schema.Tick{}, false
	}
	idx := s.table(off).Load()
	if idx < 0 || idx >= MaxSlots {
		return schema.Tick{}, false
	}
	return s.slot(idx).read()
}

// Clear resets the table, slots and count to the never-written state.
// Writer only.
func (s *Shm) Clear() {
	if !s.isWriter {
		return
	}
	for i := uint64(0); i < TableLen; i++ {
		s.table(i).Store(-1)
	}
	for i := int32(0); i < MaxSlots; i++ {
		s.slot(i).seq.Store(0)
	}
	s.count().Store(0)
}

// Close unmaps the region. The writer also unlinks it so readers fail fast
// instead of observing a stale session.
func (s *Shm) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if err := unix.Munmap(s.data); err != nil {
		return errors.Wrap(err, "munmap shm")
	}
	if s.isWriter {
		if err := os.Remove(s.name); err != nil && !os.IsNotExist(err) {
			return errors.Wrap(err, "unlink shm")
		}
	}
	return nil
}
