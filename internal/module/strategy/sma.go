package strategy

import (
	"strconv"

	"github.com/yanun0323/errors"

	"github.com/Helloworld152/hft-eb/internal/schema"
)

func init() {
	RegisterNode("sma", func() Node { return &smaNode{} })
}

// smaNode emits a rolling simple moving average of the last price as a
// factor signal for one instrument.
type smaNode struct {
	ctx    *Context
	ticker string
	window int

	prices []float64
	sum    float64
	next   int
	filled bool
}

func (n *smaNode) Init(ctx *Context, cfg map[string]string) error {
	n.ctx = ctx
	n.ticker = cfg["symbol"]
	if n.ticker == "" {
		return errors.New("sma node: symbol is required")
	}
	n.window = 20
	if w, ok := cfg["window"]; ok {
		v, err := strconv.Atoi(w)
		if err != nil || v <= 0 {
			return errors.Wrapf(errors.New("sma node: bad window"), "%q", w)
		}
		n.window = v
	}
	n.prices = make([]float64, n.window)
	return nil
}

func (n *smaNode) OnTick(tick *schema.Tick) {
	if tick.Ticker() != n.ticker {
		return
	}
	price := tick.LastPrice
	n.sum += price - n.prices[n.next]
	n.prices[n.next] = price
	n.next++
	if n.next == n.window {
		n.next = 0
		n.filled = true
	}
	if !n.filled {
		return
	}
	n.ctx.EmitSignal("sma_"+strconv.Itoa(n.window), n.ticker, n.sum/float64(n.window))
}

func (n *smaNode) OnOrder(*schema.OrderReturn) {}
