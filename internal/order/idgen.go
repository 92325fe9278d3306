package order

import (
	"fmt"
	"sync/atomic"
	"time"
)

// IDGen mints the two order identities: the 64-bit internal client id and
// the counter-visible 12-digit order reference.
type IDGen struct {
	nodeID uint32
	seq    atomic.Uint32
	refSeq atomic.Uint32
}

// NewIDGen returns a generator for the given node id (folded mod 100 into
// the client id). The ref counter starts at 1 and can only move forward.
func NewIDGen(nodeID uint32) *IDGen {
	g := &IDGen{nodeID: nodeID}
	g.refSeq.Store(1)
	return g
}

// NextID returns the next client id, laid out as the 18 decimal digits
// YYMMDDHHMMSS NN SSSS (NN = node id mod 100, SSSS = per-process sequence
// mod 10000). The value peaks below 2^63, so it fits uint64 through year
// 2099. More than 10000 ids within one second wrap the sequence; uniqueness
// holds per process at any realistic order rate.
func (g *IDGen) NextID() uint64 {
	now := time.Now()
	timePart := uint64(now.Year()%100)*1e10 +
		uint64(now.Month())*1e8 +
		uint64(now.Day())*1e6 +
		uint64(now.Hour())*1e4 +
		uint64(now.Minute())*1e2 +
		uint64(now.Second())
	seq := (g.seq.Add(1) - 1) % 10000
	return timePart*1e6 + uint64(g.nodeID%100)*1e4 + uint64(seq)
}

// NextRef returns the next order reference as a zero-padded 12-digit
// decimal string.
func (g *IDGen) NextRef() string {
	ref := g.refSeq.Add(1) - 1
	return fmt.Sprintf("%012d", ref)
}

// AdvanceRef raises the ref counter to at least start. The counter never
// decreases; a stale advance is a no-op.
func (g *IDGen) AdvanceRef(start uint32) {
	for {
		cur := g.refSeq.Load()
		if start <= cur {
			return
		}
		if g.refSeq.CompareAndSwap(cur, start) {
			return
		}
	}
}
