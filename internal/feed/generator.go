// Package feed creates synthetic market data ticks for the recorder role
// and for driving the engine without a live exchange front-end.
package feed

import (
	"math"
	"time"

	"github.com/yanun0323/errors"

	"github.com/Helloworld152/hft-eb/internal/schema"
	"github.com/Helloworld152/hft-eb/internal/symbol"
)

var ErrNoSymbols = errors.New("feed: no symbols configured")

// instrument is one generated stream's state.
type instrument struct {
	ticker string
	id     uint64
	price  float64
	volume int32
	turn   float64
	oi     float64
	phase  float64
}

// Generator produces a deterministic round-robin tick stream over a set of
// instruments. Prices walk a slow sine around the base so candles have
// shape; cumulative counters only grow.
type Generator struct {
	instruments []*instrument
	index       int
	tradingDay  uint32
	step        float64
}

// NewGenerator builds a generator for the given tickers, resolving ids
// through the process registry.
func NewGenerator(tickers []string, basePrice float64) (*Generator, error) {
	if len(tickers) == 0 {
		return nil, ErrNoSymbols
	}
	now := time.Now()
	g := &Generator{
		tradingDay: uint32(now.Year()*10000 + int(now.Month())*100 + now.Day()),
	}
	reg := symbol.Default()
	for i, ticker := range tickers {
		g.instruments = append(g.instruments, &instrument{
			ticker: ticker,
			id:     reg.ID(ticker),
			price:  basePrice + float64(i)*10,
			oi:     10000,
		})
	}
	return g, nil
}

// Next fills out with the next synthetic tick and returns it.
func (g *Generator) Next(out *schema.Tick) *schema.Tick {
	inst := g.instruments[g.index]
	g.index = (g.index + 1) % len(g.instruments)

	inst.phase += 0.01
	g.step++
	inst.price += math.Sin(inst.phase) * 0.2
	vol := int32(1 + int(g.step)%5)
	inst.volume += vol
	inst.turn += inst.price * float64(vol)

	now := time.Now()
	*out = schema.Tick{
		ID:         inst.id,
		TradingDay: g.tradingDay,
		UpdateTime: uint64(now.Hour())*1e7 + uint64(now.Minute())*1e5 +
			uint64(now.Second())*1e3 + uint64(now.Nanosecond()/1e6),
		LastPrice:    inst.price,
		Volume:       inst.volume,
		Turnover:     inst.turn,
		OpenInterest: inst.oi,
		UpperLimit:   inst.price * 1.1,
		LowerLimit:   inst.price * 0.9,
		OpenPrice:    inst.price,
		HighPrice:    inst.price,
		LowPrice:     inst.price,
		PreClose:     inst.price,
	}
	schema.PutString(out.Symbol[:], inst.ticker)
	for i := 0; i < 5; i++ {
		out.BidPrice[i] = inst.price - float64(i+1)
		out.BidVolume[i] = 10 * int32(i+1)
		out.AskPrice[i] = inst.price + float64(i+1)
		out.AskVolume[i] = 10 * int32(i+1)
	}
	return out
}
