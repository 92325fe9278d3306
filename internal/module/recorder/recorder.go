// Package recorder persists the market-data stream: bus ticks go into an
// SPSC ring on the feed thread and a dedicated goroutine drains the ring
// into the mmap tick log. Capacity exhaustion on either side drops the tick
// and bumps a warn counter; the log is provisioned for worst-case session
// size.
package recorder

import (
	"sync/atomic"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"github.com/Helloworld152/hft-eb/internal/bus"
	"github.com/Helloworld152/hft-eb/internal/engine"
	"github.com/Helloworld152/hft-eb/internal/mlog"
	"github.com/Helloworld152/hft-eb/internal/obs"
	"github.com/Helloworld152/hft-eb/internal/ring"
	"github.com/Helloworld152/hft-eb/internal/schema"
)

func init() {
	engine.Register("recorder", func() engine.Module { return &Module{} })
}

const ringCapacity = 65536

var ErrNoOutput = errors.New("recorder: no output_path configured")

// Module records ticks from the bus into an mmap log.
type Module struct {
	base     string
	capacity uint64

	rb      *ring.SPSC[schema.Tick]
	writer  *mlog.Writer[schema.Tick]
	running atomic.Bool
	done    chan struct{}
}

// Init opens the log writer and subscribes to market data.
func (m *Module) Init(b *bus.Bus, cfg engine.Config, _ engine.TimerService) error {
	m.base = cfg.String("output_path", "")
	if m.base == "" {
		return ErrNoOutput
	}
	m.capacity = cfg.Uint64("capacity", 50_000_000)

	w, err := mlog.NewWriter[schema.Tick](m.base, m.capacity)
	if err != nil {
		return errors.Wrap(err, "open tick log")
	}
	m.writer = w
	m.rb = ring.NewSPSC[schema.Tick](ringCapacity)

	metrics := obs.Default()
	b.Subscribe(bus.TopicMarketData, func(p any) {
		tick, ok := p.(*schema.Tick)
		if !ok {
			return
		}
		if !m.rb.Push(*tick) {
			metrics.IncRingDrop()
		}
	})
	return nil
}

// Start launches the persistence goroutine.
func (m *Module) Start() error {
	m.done = make(chan struct{})
	m.running.Store(true)
	go m.writeLoop()
	logs.Infof("recorder: writing %s (capacity %d)", m.base, m.capacity)
	return nil
}

// Stop drains the ring and closes the log, truncating it to the written
// prefix.
func (m *Module) Stop() error {
	m.running.Store(false)
	<-m.done
	return m.writer.Close()
}

func (m *Module) writeLoop() {
	defer close(m.done)
	metrics := obs.Default()
	warned := false
	for {
		batch := m.rb.Peek()
		if len(batch) == 0 {
			if !m.running.Load() {
				return
			}
			time.Sleep(time.Millisecond)
			continue
		}
		for i := range batch {
			if !m.writer.Write(&batch[i]) {
				metrics.IncLogDrop()
				if !warned {
					logs.Warnf("recorder: log %s full, dropping ticks", m.base)
					warned = true
				}
			}
		}
		m.rb.Advance(uint64(len(batch)))
	}
}
