// Package replay tails a recorded tick log and republishes it on the bus,
// feeding the same downstream path a live feed would: market-data publish
// plus snapshot update. The reader opens lazily and retries every second
// while the log does not exist yet, so the replayer can boot before the
// recorder.
package replay

import (
	"sync/atomic"
	"time"

	"github.com/yanun0323/logs"

	"github.com/Helloworld152/hft-eb/internal/bus"
	"github.com/Helloworld152/hft-eb/internal/engine"
	"github.com/Helloworld152/hft-eb/internal/mlog"
	"github.com/Helloworld152/hft-eb/internal/obs"
	"github.com/Helloworld152/hft-eb/internal/schema"
	"github.com/Helloworld152/hft-eb/internal/snapshot"
)

func init() {
	engine.Register("replay", func() engine.Module { return &Module{} })
}

const batchSize = 16

// Module replays a tick log onto the bus.
type Module struct {
	b       *bus.Bus
	base    string
	maxCap  uint64
	running atomic.Bool
	done    chan struct{}
}

// Init reads the data file path and the optional capacity bound.
func (m *Module) Init(b *bus.Bus, cfg engine.Config, _ engine.TimerService) error {
	m.b = b
	m.base = cfg.String("data_file", "")
	m.maxCap = cfg.Uint64("max_capacity", 0)
	if m.base == "" {
		logs.Errorf("replay: no data_file configured")
	}
	return nil
}

// Start launches the replay goroutine.
func (m *Module) Start() error {
	m.done = make(chan struct{})
	m.running.Store(true)
	go m.run()
	return nil
}

// Stop joins the replay goroutine and clears the market snapshot.
func (m *Module) Stop() error {
	m.running.Store(false)
	<-m.done
	snapshot.Default().Clear()
	return nil
}

func (m *Module) run() {
	defer close(m.done)
	if m.base == "" {
		return
	}

	var reader *mlog.Reader[schema.Tick]
	for m.running.Load() {
		r, err := mlog.NewReader[schema.Tick](m.base, m.maxCap)
		if err != nil {
			logs.Warnf("replay: open %s: %+v, retrying", m.base, err)
			m.sleep(time.Second)
			continue
		}
		reader = r
		break
	}
	if reader == nil {
		return
	}
	defer reader.Close()
	logs.Infof("replay: connected to %s, %d records committed", m.base, reader.TotalCount())

	metrics := obs.Default()
	snap := snapshot.Default()
	count := uint64(0)
	start := time.Now()
	reported := false
	batch := make([]*schema.Tick, batchSize)

	for m.running.Load() {
		n := reader.ReadBatch(batch)
		if n == 0 {
			if count > 0 && !reported {
				logs.Infof("replay: drained %d ticks in %s", count, time.Since(start))
				reported = true
			}
			time.Sleep(time.Millisecond)
			continue
		}
		reported = false
		for i := 0; i < n; i++ {
			tick := batch[i]
			snap.Update(tick)
			m.b.Publish(bus.TopicMarketData, tick)
			metrics.IncPublished(bus.TopicMarketData)
		}
		count += uint64(n)
	}
}

// sleep waits d, re-checking the running flag at a 100 ms grain so Stop
// never blocks on a full sleep.
func (m *Module) sleep(d time.Duration) {
	deadline := time.Now().Add(d)
	for m.running.Load() && time.Now().Before(deadline) {
		time.Sleep(100 * time.Millisecond)
	}
}
