// Package monitor is the broadcast glue: bus events are squeezed through an
// MPMC ring on the publishing threads, and a drain goroutine formats them as
// JSON and pushes them to attached websocket clients. Clients can submit
// order and cancel frames, which re-enter the system as ordinary bus
// requests.
package monitor

import (
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"github.com/Helloworld152/hft-eb/internal/bus"
	"github.com/Helloworld152/hft-eb/internal/engine"
	"github.com/Helloworld152/hft-eb/internal/obs"
	"github.com/Helloworld152/hft-eb/internal/ring"
	"github.com/Helloworld152/hft-eb/internal/schema"
	"github.com/Helloworld152/hft-eb/internal/symbol"
)

func init() {
	engine.Register("monitor", func() engine.Module { return &Module{} })
}

const ringCapacity = 8192

// frame is one broadcast message.
type frame struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// orderCommand is the client-facing order/cancel frame.
type orderCommand struct {
	Type      string  `json:"type"`
	Symbol    string  `json:"symbol"`
	Direction string  `json:"direction"`
	Offset    string  `json:"offset"`
	Price     float64 `json:"price"`
	Volume    int32   `json:"volume"`
	Account   string  `json:"account"`
	ClientID  uint64  `json:"client_id"`
}

// Module broadcasts bus traffic to websocket clients.
type Module struct {
	b      *bus.Bus
	listen string

	rb      *ring.MPMC[frame]
	running atomic.Bool
	done    chan struct{}

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
	lastPos map[string]map[uint64]schema.PositionDetail

	server   *http.Server
	upgrader websocket.Upgrader
}

// Init subscribes the broadcast topics and prepares the websocket endpoint.
func (m *Module) Init(b *bus.Bus, cfg engine.Config, timer engine.TimerService) error {
	m.b = b
	m.listen = cfg.String("listen", "127.0.0.1:8801")
	m.rb = ring.NewMPMC[frame](ringCapacity)
	m.clients = make(map[*websocket.Conn]struct{})
	m.lastPos = make(map[string]map[uint64]schema.PositionDetail)
	m.upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	metrics := obs.Default()
	push := func(kind string, data any) {
		if !m.rb.Enqueue(frame{Type: kind, Data: data}) {
			metrics.IncBroadcastDrop()
		}
	}

	b.Subscribe(bus.TopicMarketData, func(p any) {
		if tick, ok := p.(*schema.Tick); ok {
			push("tick", tickFrame(tick))
		}
	})
	b.Subscribe(bus.TopicKline, func(p any) {
		if bar, ok := p.(*schema.Candle); ok {
			push("kline", klineFrame(bar))
		}
	})
	b.Subscribe(bus.TopicRtnOrder, func(p any) {
		if rtn, ok := p.(*schema.OrderReturn); ok {
			push("order", orderFrame(rtn))
		}
	})
	b.Subscribe(bus.TopicRtnTrade, func(p any) {
		if rtn, ok := p.(*schema.TradeReturn); ok {
			push("trade", tradeFrame(rtn))
		}
	})
	b.Subscribe(bus.TopicPosUpdate, func(p any) {
		if pos, ok := p.(*schema.PositionDetail); ok {
			m.rememberPosition(pos)
			push("position", positionFrame(pos))
		}
	})
	b.Subscribe(bus.TopicConnStatus, func(p any) {
		if cs, ok := p.(*schema.ConnectionStatus); ok {
			push("conn", map[string]any{
				"account": schema.CString(cs.AccountID[:]),
				"source":  schema.CString(cs.Source[:]),
				"state":   string(cs.State),
				"msg":     schema.CString(cs.Msg[:]),
			})
		}
	})
	b.Subscribe(bus.TopicLog, func(p any) {
		if rec, ok := p.(*schema.LogRecord); ok {
			push("log", map[string]any{
				"source": schema.CString(rec.Source[:]),
				"msg":    schema.CString(rec.Msg[:]),
			})
		}
	})
	b.Subscribe(bus.TopicSignal, func(p any) {
		if sig, ok := p.(*schema.SignalRecord); ok {
			push("signal", map[string]any{
				"node":   schema.CString(sig.NodeID[:]),
				"symbol": schema.CString(sig.Symbol[:]),
				"factor": schema.CString(sig.Factor[:]),
				"value":  sig.Value,
				"ts":     sig.Timestamp,
			})
		}
	})

	// One metrics line per minute keeps the drop counters observable.
	timer.AddTimer(60, func() {
		snap := obs.Default().Snapshot()
		logs.Infof("monitor: published=%v ring_drops=%d log_drops=%d broadcast_drops=%d",
			snap.Published, snap.RingDrops, snap.LogDrops, snap.BroadcastDrops)
	}, 0)
	return nil
}

// Start opens the websocket listener and launches the drain goroutine.
func (m *Module) Start() error {
	ln, err := net.Listen("tcp", m.listen)
	if err != nil {
		return errors.Wrap(err, "monitor listen")
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", m.handleWs)
	m.server = &http.Server{Handler: mux}
	go func() {
		if err := m.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			logs.Errorf("monitor: serve: %+v", err)
		}
	}()

	m.done = make(chan struct{})
	m.running.Store(true)
	go m.broadcastLoop()
	logs.Infof("monitor: websocket gateway on %s", m.listen)
	return nil
}

// Stop closes the listener, the clients and the drain goroutine.
func (m *Module) Stop() error {
	m.running.Store(false)
	<-m.done
	if m.server != nil {
		_ = m.server.Close()
	}
	m.mu.Lock()
	for c := range m.clients {
		_ = c.Close()
	}
	m.clients = make(map[*websocket.Conn]struct{})
	m.mu.Unlock()
	return nil
}

func (m *Module) handleWs(w http.ResponseWriter, r *http.Request) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logs.Warnf("monitor: upgrade: %+v", err)
		return
	}
	m.mu.Lock()
	m.clients[conn] = struct{}{}
	snapshotFrames := m.positionSnapshotLocked()
	m.mu.Unlock()

	// New clients get the current position book before the live stream.
	for _, f := range snapshotFrames {
		if data, err := sonic.Marshal(f); err == nil {
			_ = conn.WriteMessage(websocket.TextMessage, data)
		}
	}

	go m.readLoop(conn)
}

func (m *Module) readLoop(conn *websocket.Conn) {
	defer func() {
		m.mu.Lock()
		delete(m.clients, conn)
		m.mu.Unlock()
		_ = conn.Close()
	}()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var cmd orderCommand
		if err := sonic.Unmarshal(data, &cmd); err != nil {
			logs.Warnf("monitor: bad client frame: %+v", err)
			continue
		}
		m.handleCommand(&cmd)
	}
}

func (m *Module) handleCommand(cmd *orderCommand) {
	switch cmd.Type {
	case "order":
		req := &schema.OrderRequest{
			ID:     symbol.Default().ID(cmd.Symbol),
			Price:  cmd.Price,
			Volume: cmd.Volume,
		}
		schema.PutString(req.Symbol[:], cmd.Symbol)
		schema.PutString(req.AccountID[:], cmd.Account)
		if cmd.Direction != "" {
			req.Direction = cmd.Direction[0]
		}
		if cmd.Offset != "" {
			req.Offset = cmd.Offset[0]
		}
		m.b.Publish(bus.TopicOrderReq, req)
	case "cancel":
		req := &schema.CancelRequest{ClientID: cmd.ClientID}
		schema.PutString(req.AccountID[:], cmd.Account)
		m.b.Publish(bus.TopicCancelReq, req)
	default:
		logs.Warnf("monitor: unknown client frame type %q", cmd.Type)
	}
}

func (m *Module) broadcastLoop() {
	defer close(m.done)
	for {
		f, ok := m.rb.Dequeue()
		if !ok {
			if !m.running.Load() {
				return
			}
			time.Sleep(time.Millisecond)
			continue
		}
		data, err := sonic.Marshal(f)
		if err != nil {
			continue
		}
		m.mu.Lock()
		for c := range m.clients {
			if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
				_ = c.Close()
				delete(m.clients, c)
			}
		}
		m.mu.Unlock()
	}
}

func (m *Module) rememberPosition(pos *schema.PositionDetail) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account := pos.Account()
	byInstr, ok := m.lastPos[account]
	if !ok {
		byInstr = make(map[uint64]schema.PositionDetail)
		m.lastPos[account] = byInstr
	}
	byInstr[pos.ID] = *pos
}

func (m *Module) positionSnapshotLocked() []frame {
	frames := make([]frame, 0, 8)
	for _, byInstr := range m.lastPos {
		for _, pos := range byInstr {
			p := pos
			frames = append(frames, frame{Type: "position", Data: positionFrame(&p)})
		}
	}
	return frames
}

func tickFrame(t *schema.Tick) map[string]any {
	return map[string]any{
		"symbol":        t.Ticker(),
		"id":            t.ID,
		"trading_day":   t.TradingDay,
		"update_time":   t.UpdateTime,
		"last_price":    t.LastPrice,
		"volume":        t.Volume,
		"turnover":      t.Turnover,
		"open_interest": t.OpenInterest,
		"bid_price":     t.BidPrice[0],
		"bid_volume":    t.BidVolume[0],
		"ask_price":     t.AskPrice[0],
		"ask_volume":    t.AskVolume[0],
	}
}

func klineFrame(c *schema.Candle) map[string]any {
	return map[string]any{
		"symbol":     c.Ticker(),
		"interval":   int32(c.Interval),
		"start_time": c.StartTime,
		"open":       c.Open,
		"high":       c.High,
		"low":        c.Low,
		"close":      c.Close,
		"volume":     c.Volume,
		"turnover":   c.Turnover,
	}
}

func orderFrame(r *schema.OrderReturn) map[string]any {
	return map[string]any{
		"client_id": r.ClientID,
		"ref":       r.Ref(),
		"sys_id":    r.SysID(),
		"symbol":    schema.CString(r.Symbol[:]),
		"direction": string(r.Direction),
		"offset":    string(r.Offset),
		"price":     r.LimitPrice,
		"total":     r.VolumeTotal,
		"traded":    r.VolumeTraded,
		"status":    string(r.Status),
	}
}

func tradeFrame(r *schema.TradeReturn) map[string]any {
	return map[string]any{
		"client_id": r.ClientID,
		"trade_id":  schema.CString(r.TradeID[:]),
		"symbol":    schema.CString(r.Symbol[:]),
		"direction": string(r.Direction),
		"offset":    string(r.Offset),
		"price":     r.Price,
		"volume":    r.Volume,
	}
}

func positionFrame(p *schema.PositionDetail) map[string]any {
	return map[string]any{
		"account":  p.Account(),
		"symbol":   p.Ticker(),
		"long_td":  p.LongTd,
		"long_yd":  p.LongYd,
		"short_td": p.ShortTd,
		"short_yd": p.ShortYd,
		"net_pnl":  p.NetPnl,
	}
}
