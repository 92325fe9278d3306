// Package obs collects lightweight hot-path counters: per-topic publish
// counts, drop counters for the capacity-exhaustion paths, and coarse
// latency stats. Everything is bare atomics; sampling a snapshot never
// stalls a producer.
package obs

import (
	"sync/atomic"
	"time"

	"github.com/Helloworld152/hft-eb/internal/bus"
)

const topicSlots = 32

// Metrics is the process-wide counter set.
type Metrics struct {
	published [topicSlots]uint64

	ringDrops      uint64
	logDrops       uint64
	broadcastDrops uint64

	tickLatency LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the current counter values.
type Snapshot struct {
	Published      map[string]uint64
	RingDrops      uint64
	LogDrops       uint64
	BroadcastDrops uint64
	TickLatency    LatencySnapshot
}

var defaultMetrics = &Metrics{}

// Default returns the process-wide metrics.
func Default() *Metrics { return defaultMetrics }

// IncPublished counts one publish on topic.
func (m *Metrics) IncPublished(topic bus.Topic) {
	if int(topic) < topicSlots {
		atomic.AddUint64(&m.published[topic], 1)
	}
}

// IncRingDrop counts a record dropped on a full ring.
func (m *Metrics) IncRingDrop() { atomic.AddUint64(&m.ringDrops, 1) }

// IncLogDrop counts a record dropped on a full mmap log.
func (m *Metrics) IncLogDrop() { atomic.AddUint64(&m.logDrops, 1) }

// IncBroadcastDrop counts a frame dropped on the broadcast ring.
func (m *Metrics) IncBroadcastDrop() { atomic.AddUint64(&m.broadcastDrops, 1) }

// ObserveTickLatency records one feed-to-dispatch latency sample.
func (m *Metrics) ObserveTickLatency(d time.Duration) { m.tickLatency.Observe(d) }

// Snapshot returns a copy of the current counter values.
func (m *Metrics) Snapshot() Snapshot {
	published := make(map[string]uint64)
	for i := range m.published {
		if v := atomic.LoadUint64(&m.published[i]); v > 0 {
			published[bus.Topic(i).String()] = v
		}
	}
	return Snapshot{
		Published:      published,
		RingDrops:      atomic.LoadUint64(&m.ringDrops),
		LogDrops:       atomic.LoadUint64(&m.logDrops),
		BroadcastDrops: atomic.LoadUint64(&m.broadcastDrops),
		TickLatency:    m.tickLatency.Snapshot(),
	}
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		min := atomic.LoadUint64(&l.min)
		if min != 0 && nanos >= min {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, min, nanos) {
			break
		}
	}
	for {
		max := atomic.LoadUint64(&l.max)
		if nanos <= max {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, max, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(atomic.LoadUint64(&l.min)),
		Max:   time.Duration(atomic.LoadUint64(&l.max)),
		Avg:   time.Duration(atomic.LoadUint64(&l.sum) / count),
	}
}
