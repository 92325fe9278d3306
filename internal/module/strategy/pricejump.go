package strategy

import (
	"strconv"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"github.com/Helloworld152/hft-eb/internal/schema"
)

func init() {
	RegisterNode("price_jump", func() Node { return &priceJumpNode{} })
}

// priceJumpNode fires one order at the last price when the tick-over-tick return
// exceeds a threshold, following the jump. It re-arms only after its order
// reaches a terminal state.
type priceJumpNode struct {
	ctx       *Context
	ticker    string
	threshold float64
	volume    int32

	lastPrice float64
	inFlight  bool
	clientID  uint64
}

func (n *priceJumpNode) Init(ctx *Context, cfg map[string]string) error {
	n.ctx = ctx
	n.ticker = cfg["symbol"]
	if n.ticker == "" {
		return errors.New("price_jump node: symbol is required")
	}
	n.threshold = 0.01
	if t, ok := cfg["threshold"]; ok {
		v, err := strconv.ParseFloat(t, 64)
		if err != nil || v <= 0 {
			return errors.Wrapf(errors.New("price_jump node: bad threshold"), "%q", t)
		}
		n.threshold = v
	}
	n.volume = 1
	if v, ok := cfg["volume"]; ok {
		vol, err := strconv.Atoi(v)
		if err != nil || vol <= 0 {
			return errors.Wrapf(errors.New("price_jump node: bad volume"), "%q", v)
		}
		n.volume = int32(vol)
	}
	return nil
}

func (n *priceJumpNode) OnTick(tick *schema.Tick) {
	if tick.Ticker() != n.ticker {
		return
	}
	price := tick.LastPrice
	last := n.lastPrice
	n.lastPrice = price
	if last <= 0 || n.inFlight || price <= 0 {
		return
	}

	ret := (price - last) / last
	if ret > n.threshold || ret < -n.threshold {
		req := &schema.OrderRequest{
			ID:     tick.ID,
			Price:  price,
			Volume: n.volume,
			Offset: schema.OffsetOpen,
		}
		req.Symbol = tick.Symbol
		if ret > 0 {
			req.Direction = schema.DirBuy
		} else {
			req.Direction = schema.DirSell
		}
		n.inFlight = true
		n.ctx.SendOrder(req)
		n.clientID = req.ClientID
		n.ctx.EmitSignal("price_jump", n.ticker, ret)
		logs.Infof("strategy %s: jump %.4f on %s, sent %c %d @ %.2f",
			n.ctx.NodeID, ret, n.ticker, req.Direction, req.Volume, req.Price)
	}
}

func (n *priceJumpNode) OnOrder(rtn *schema.OrderReturn) {
	if !n.inFlight || rtn.ClientID != n.clientID {
		return
	}
	switch rtn.Status {
	case schema.StatusAllFilled, schema.StatusCancelled, schema.StatusRejected:
		n.inFlight = false
	}
}
