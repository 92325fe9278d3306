// Package feedsim publishes a synthetic market-data stream on the bus, the
// stand-in for a live exchange market-data front-end.
package feedsim

import (
	"strings"
	"sync/atomic"
	"time"

	"github.com/yanun0323/logs"

	"github.com/Helloworld152/hft-eb/internal/bus"
	"github.com/Helloworld152/hft-eb/internal/engine"
	"github.com/Helloworld152/hft-eb/internal/feed"
	"github.com/Helloworld152/hft-eb/internal/obs"
	"github.com/Helloworld152/hft-eb/internal/schema"
	"github.com/Helloworld152/hft-eb/internal/snapshot"
)

func init() {
	engine.Register("feedsim", func() engine.Module { return &Module{} })
}

// Module generates ticks at a fixed rate and publishes them like a feed
// callback thread would.
type Module struct {
	b        *bus.Bus
	gen      *feed.Generator
	interval time.Duration
	running  atomic.Bool
	done     chan struct{}
}

// Init builds the generator from the configured ticker list.
func (m *Module) Init(b *bus.Bus, cfg engine.Config, _ engine.TimerService) error {
	m.b = b
	tickers := strings.Split(cfg.String("symbols", "rb2501"), ",")
	for i := range tickers {
		tickers[i] = strings.TrimSpace(tickers[i])
	}
	gen, err := feed.NewGenerator(tickers, cfg.Float("base_price", 4000))
	if err != nil {
		return err
	}
	m.gen = gen
	rate := cfg.Int("ticks_per_second", 100)
	if rate <= 0 {
		rate = 100
	}
	m.interval = time.Second / time.Duration(rate)
	return nil
}

// Start launches the feed goroutine.
func (m *Module) Start() error {
	m.done = make(chan struct{})
	m.running.Store(true)
	go m.run()
	logs.Infof("feedsim: publishing every %s", m.interval)
	return nil
}

// Stop joins the feed goroutine.
func (m *Module) Stop() error {
	m.running.Store(false)
	<-m.done
	return nil
}

func (m *Module) run() {
	defer close(m.done)
	var tick schema.Tick
	metrics := obs.Default()
	snap := snapshot.Default()
	for m.running.Load() {
		start := time.Now()
		m.gen.Next(&tick)
		snap.Update(&tick)
		m.b.Publish(bus.TopicMarketData, &tick)
		metrics.IncPublished(bus.TopicMarketData)
		metrics.ObserveTickLatency(time.Since(start))
		time.Sleep(m.interval)
	}
}
