// Package kline aggregates ticks into OHLCV candles. Ticks build the 1m bar
// directly; closed 1m bars cascade into 5m/15m/1h, closed 1h bars into 1d.
// Volume and turnover are interval deltas against the tick's cumulative
// counters; open interest is carried at interval end.
package kline

import (
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"github.com/Helloworld152/hft-eb/internal/bus"
	"github.com/Helloworld152/hft-eb/internal/engine"
	"github.com/Helloworld152/hft-eb/internal/mlog"
	"github.com/Helloworld152/hft-eb/internal/obs"
	"github.com/Helloworld152/hft-eb/internal/schema"
)

func init() {
	engine.Register("kline", func() engine.Module { return &Module{} })
}

// builder tracks one instrument's open bars and cumulative baselines.
type builder struct {
	current  map[schema.KlineInterval]*schema.Candle
	baseVol  map[schema.KlineInterval]int32
	baseTurn map[schema.KlineInterval]float64
}

// Module builds candles from the market-data stream.
type Module struct {
	b        *bus.Bus
	builders map[uint64]*builder

	outputBase string
	capacity   uint64
	writers    map[schema.KlineInterval]*mlog.Writer[schema.Candle]
}

// Init subscribes to market data and, when an output path is configured,
// opens per-interval candle logs.
func (m *Module) Init(b *bus.Bus, cfg engine.Config, _ engine.TimerService) error {
	m.b = b
	m.builders = make(map[uint64]*builder)
	m.outputBase = cfg.String("output_path", "")
	m.capacity = cfg.Uint64("capacity", 1_000_000)
	m.writers = make(map[schema.KlineInterval]*mlog.Writer[schema.Candle])

	if m.outputBase != "" {
		for _, iv := range []struct {
			tag      string
			interval schema.KlineInterval
		}{
			{"1m", schema.Kline1M},
			{"1h", schema.Kline1H},
			{"1d", schema.Kline1D},
		} {
			w, err := mlog.NewWriter[schema.Candle](m.outputBase+"_"+iv.tag, m.capacity)
			if err != nil {
				return errors.Wrapf(err, "open %s candle log", iv.tag)
			}
			m.writers[iv.interval] = w
		}
	}

	b.Subscribe(bus.TopicMarketData, func(p any) {
		if tick, ok := p.(*schema.Tick); ok {
			m.onTick(tick)
		}
	})
	return nil
}

// Start is a no-op; aggregation runs on the publishing thread.
func (m *Module) Start() error { return nil }

// Stop flushes open 1m bars and closes the candle logs.
func (m *Module) Stop() error {
	for _, bld := range m.builders {
		if bar, ok := bld.current[schema.Kline1M]; ok {
			m.publish(bar)
		}
	}
	for _, w := range m.writers {
		if err := w.Close(); err != nil {
			logs.Errorf("kline: close candle log: %+v", err)
		}
	}
	return nil
}

// intervalStart truncates an HHMMSSmmm update time to the containing
// interval's start.
func intervalStart(updateTime uint64, interval schema.KlineInterval) uint64 {
	hour := updateTime / 1e7
	minute := (updateTime / 1e5) % 100
	switch interval {
	case schema.Kline1D:
		return 0
	case schema.Kline1H:
		return hour * 1e7
	default:
		step := uint64(interval)
		return hour*1e7 + (minute/step*step)*1e5
	}
}

func (m *Module) onTick(tick *schema.Tick) {
	bld, ok := m.builders[tick.ID]
	if !ok {
		bld = &builder{
			current:  make(map[schema.KlineInterval]*schema.Candle),
			baseVol:  make(map[schema.KlineInterval]int32),
			baseTurn: make(map[schema.KlineInterval]float64),
		}
		m.builders[tick.ID] = bld
	}

	start := intervalStart(tick.UpdateTime, schema.Kline1M)
	bar, open := bld.current[schema.Kline1M]
	if open && bar.StartTime != start {
		closed := *bar
		m.publish(&closed)
		m.cascade(tick.ID, &closed)
		open = false
	}
	if !open {
		bar = m.newBar(tick, schema.Kline1M, start, bld)
		bld.current[schema.Kline1M] = bar
	}
	m.updateBar(bar, tick, bld)
}

// cascade folds a closed bar into the next coarser intervals.
func (m *Module) cascade(id uint64, closed *schema.Candle) {
	var targets []schema.KlineInterval
	switch closed.Interval {
	case schema.Kline1M:
		targets = []schema.KlineInterval{schema.Kline5M, schema.Kline15M, schema.Kline1H}
	case schema.Kline1H:
		targets = []schema.KlineInterval{schema.Kline1D}
	default:
		return
	}
	bld := m.builders[id]
	for _, interval := range targets {
		start := intervalStart(closed.StartTime, interval)
		bar, open := bld.current[interval]
		if open && bar.StartTime != start {
			done := *bar
			m.publish(&done)
			m.cascade(id, &done)
			open = false
		}
		if !open {
			fresh := *closed
			fresh.Interval = interval
			fresh.StartTime = start
			bld.current[interval] = &fresh
			continue
		}
		if closed.High > bar.High {
			bar.High = closed.High
		}
		if closed.Low < bar.Low {
			bar.Low = closed.Low
		}
		bar.Close = closed.Close
		bar.Volume += closed.Volume
		bar.Turnover += closed.Turnover
		bar.OpenInterest = closed.OpenInterest
	}
}

func (m *Module) newBar(tick *schema.Tick, interval schema.KlineInterval, start uint64, bld *builder) *schema.Candle {
	bld.baseVol[interval] = tick.Volume
	bld.baseTurn[interval] = tick.Turnover
	return &schema.Candle{
		Symbol:       tick.Symbol,
		ID:           tick.ID,
		TradingDay:   tick.TradingDay,
		StartTime:    start,
		Open:         tick.LastPrice,
		High:         tick.LastPrice,
		Low:          tick.LastPrice,
		Close:        tick.LastPrice,
		Interval:     interval,
		OpenInterest: tick.OpenInterest,
	}
}

func (m *Module) updateBar(bar *schema.Candle, tick *schema.Tick, bld *builder) {
	price := tick.LastPrice
	if price > bar.High {
		bar.High = price
	}
	if price < bar.Low {
		bar.Low = price
	}
	bar.Close = price
	if delta := tick.Volume - bld.baseVol[bar.Interval]; delta > 0 {
		bar.Volume = delta
	}
	if delta := tick.Turnover - bld.baseTurn[bar.Interval]; delta > 0 {
		bar.Turnover = delta
	}
	bar.OpenInterest = tick.OpenInterest
}

func (m *Module) publish(bar *schema.Candle) {
	m.b.Publish(bus.TopicKline, bar)
	obs.Default().IncPublished(bus.TopicKline)
	if w, ok := m.writers[bar.Interval]; ok {
		if !w.Write(bar) {
			obs.Default().IncLogDrop()
		}
	}
}
