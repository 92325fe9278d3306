package snapshot

import "github.com/Helloworld152/hft-eb/internal/schema"

// Local keeps the slot array in process heap. The instrument id is the
// direct slot index; ids at or beyond MaxSlots are dropped silently.
type Local struct {
	slots [MaxSlots]slot
}

// NewLocal returns an empty private snapshot.
func NewLocal() *Local {
	return &Local{}
}

// Update publishes the latest tick for tick.ID.
func (l *Local) Update(tick *schema.Tick) {
	id := tick.ID
	if id >= MaxSlots {
		return
	}
	l.slots[id].write(tick)
}

// Get copies the latest tick for id.
func (l *Local) Get(id uint64) (schema.Tick, bool) {
	if id >= MaxSlots {
		return schema.Tick{}, false
	}
	return l.slots[id].read()
}

// Clear resets every slot to the never-written state.
func (l *Local) Clear() {
	for i := range l.slots {
		l.slots[i].seq.Store(0)
	}
}

// Close is a no-op for the private backing.
func (l *Local) Close() error { return nil }
