// Package tradesim is the paper trader adapter. It stands in for the real
// counter at the exact interface the core sees: decorated orders come in on
// ORDER_SEND and CANCEL_SEND, raw returns and trades go back out, and query
// requests are answered from its own book. On start it reports LoggedIn with
// the counter's max order ref, which is how the order hub syncs its ref
// counter after a restart.
package tradesim

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yanun0323/logs"

	"github.com/Helloworld152/hft-eb/internal/bus"
	"github.com/Helloworld152/hft-eb/internal/engine"
	"github.com/Helloworld152/hft-eb/internal/schema"
)

func init() {
	engine.Register("tradesim", func() engine.Module { return &Module{} })
}

const sourceName = "trader"

// bookEntry is the simulator's resting-order state.
type bookEntry struct {
	req    schema.OrderRequest
	sysID  string
	filled int32
	done   bool
}

// Module simulates the trader counter.
type Module struct {
	b          *bus.Bus
	account    string
	fillOrders bool

	reconnectEvery int
	windowStart    string
	windowEnd      string

	mu        sync.Mutex
	book      map[string]*bookEntry // keyed by order ref
	positions map[uint64]*schema.PositionDetail
	sysSeq    atomic.Uint32
	tradeSeq  atomic.Uint32
	connected atomic.Bool
	maxRef    uint32
}

// Init subscribes the counter-facing topics and registers the reconnect
// timer.
func (m *Module) Init(b *bus.Bus, cfg engine.Config, timer engine.TimerService) error {
	m.b = b
	m.account = cfg.String("account", "SIM001")
	m.fillOrders = cfg.Bool("fill_orders", true)
	m.reconnectEvery = cfg.Int("reconnect_interval", 5)
	m.windowStart = cfg.String("reconnect_window_start", "")
	m.windowEnd = cfg.String("reconnect_window_end", "")
	m.maxRef = uint32(cfg.Int("max_order_ref", 1))
	m.book = make(map[string]*bookEntry)
	m.positions = make(map[uint64]*schema.PositionDetail)

	b.Subscribe(bus.TopicOrderSend, func(p any) {
		if req, ok := p.(*schema.OrderRequest); ok {
			m.onOrderSend(req)
		}
	})
	b.Subscribe(bus.TopicCancelSend, func(p any) {
		if req, ok := p.(*schema.CancelRequest); ok {
			m.onCancelSend(req)
		}
	})
	b.Subscribe(bus.TopicQryPos, func(p any) {
		if req, ok := p.(*schema.QueryRequest); ok {
			m.onQueryPositions(req)
		}
	})
	b.Subscribe(bus.TopicQryAcc, func(p any) {
		if req, ok := p.(*schema.QueryRequest); ok {
			m.onQueryAccount(req)
		}
	})

	// Reconnection is attempted at the reconnect interval, but only inside
	// the allowed time window.
	timer.AddTimer(m.reconnectEvery, m.tryReconnect, 0)
	return nil
}

// Start connects and reports login.
func (m *Module) Start() error {
	m.connect()
	return nil
}

// Stop publishes a stopped status.
func (m *Module) Stop() error {
	m.connected.Store(false)
	m.publishStatus(schema.ConnStopped, "simulator stopped")
	return nil
}

// Disconnect drops the simulated session; the reconnect timer restores it.
func (m *Module) Disconnect() {
	if m.connected.CompareAndSwap(true, false) {
		m.publishStatus(schema.ConnDisconnected, "simulated disconnect")
	}
}

func (m *Module) tryReconnect() {
	if m.connected.Load() {
		return
	}
	if !m.inWindow(time.Now().Format("15:04:05")) {
		return
	}
	m.connect()
}

func (m *Module) inWindow(now string) bool {
	if m.windowStart != "" && now < m.windowStart {
		return false
	}
	if m.windowEnd != "" && now > m.windowEnd {
		return false
	}
	return true
}

func (m *Module) connect() {
	m.connected.Store(true)
	m.mu.Lock()
	maxRef := m.maxRef
	m.mu.Unlock()
	m.publishStatus(schema.ConnLoggedIn, fmt.Sprintf("MaxOrderRef:%d", maxRef))
	logs.Infof("tradesim: logged in, max order ref %d", maxRef)
}

func (m *Module) publishStatus(state byte, msg string) {
	cs := &schema.ConnectionStatus{State: state}
	schema.PutString(cs.AccountID[:], m.account)
	schema.PutString(cs.Source[:], sourceName)
	schema.PutString(cs.Msg[:], msg)
	m.b.Publish(bus.TopicConnStatus, cs)
}

func (m *Module) onOrderSend(req *schema.OrderRequest) {
	if !m.connected.Load() {
		logs.Warnf("tradesim: order %s while disconnected, dropped", req.Ref())
		rec := &schema.LogRecord{}
		schema.PutString(rec.Source[:], sourceName)
		schema.PutString(rec.Msg[:], "order dropped: disconnected")
		m.b.Publish(bus.TopicLog, rec)
		return
	}
	ref := req.Ref()
	sysID := fmt.Sprintf("SIM%08d", m.sysSeq.Add(1))

	m.mu.Lock()
	m.book[ref] = &bookEntry{req: *req, sysID: sysID}
	m.mu.Unlock()

	rtn := m.orderReturn(req, sysID, schema.StatusResting, 0, "order accepted")
	m.b.Publish(bus.TopicRtnRawOrder, rtn)

	if !m.fillOrders {
		return
	}

	// Paper fill at the limit price, full volume, immediately.
	trade := &schema.TradeReturn{
		OrderRef:   rtn.OrderRef,
		OrderSysID: rtn.OrderSysID,
		ExchangeID: rtn.ExchangeID,
		AccountID:  rtn.AccountID,
		Symbol:     rtn.Symbol,
		ID:         rtn.ID,
		Direction:  rtn.Direction,
		Offset:     rtn.Offset,
		Price:      req.Price,
		Volume:     req.Volume,
	}
	schema.PutString(trade.TradeID[:], fmt.Sprintf("T%010d", m.tradeSeq.Add(1)))

	m.mu.Lock()
	entry := m.book[ref]
	entry.filled = req.Volume
	entry.done = true
	m.applyFillLocked(trade)
	m.mu.Unlock()

	filled := m.orderReturn(req, sysID, schema.StatusAllFilled, req.Volume, "all traded")
	m.b.Publish(bus.TopicRtnRawOrder, filled)
	m.b.Publish(bus.TopicRtnRawTrade, trade)
}

func (m *Module) onCancelSend(req *schema.CancelRequest) {
	ref := schema.CString(req.OrderRef[:])

	m.mu.Lock()
	entry, ok := m.book[ref]
	if ok && !entry.done {
		entry.done = true
	}
	m.mu.Unlock()

	if !ok {
		logs.Warnf("tradesim: cancel for unknown ref %s", ref)
		return
	}
	if entry.filled >= entry.req.Volume {
		logs.Warnf("tradesim: cancel for filled ref %s ignored", ref)
		return
	}
	rtn := m.orderReturn(&entry.req, entry.sysID, schema.StatusCancelled, entry.filled, "order cancelled")
	m.b.Publish(bus.TopicRtnRawOrder, rtn)
}

func (m *Module) orderReturn(req *schema.OrderRequest, sysID string, status byte, traded int32, msg string) *schema.OrderReturn {
	rtn := &schema.OrderReturn{
		OrderRef:     req.OrderRef,
		AccountID:    req.AccountID,
		Symbol:       req.Symbol,
		ID:           req.ID,
		Direction:    req.Direction,
		Offset:       req.Offset,
		LimitPrice:   req.Price,
		VolumeTotal:  req.Volume,
		VolumeTraded: traded,
		Status:       status,
	}
	schema.PutString(rtn.OrderSysID[:], sysID)
	schema.PutString(rtn.ExchangeID[:], exchangeOf(req.Ticker()))
	schema.PutString(rtn.StatusMsg[:], msg)
	return rtn
}

// applyFillLocked maintains the simulator's own book so query replies stay
// consistent with what it filled.
func (m *Module) applyFillLocked(trade *schema.TradeReturn) {
	pos, ok := m.positions[trade.ID]
	if !ok {
		pos = &schema.PositionDetail{ID: trade.ID}
		pos.Symbol = trade.Symbol
		pos.ExchangeID = trade.ExchangeID
		pos.AccountID = trade.AccountID
		m.positions[trade.ID] = pos
	}
	if trade.Direction == schema.DirBuy && trade.Offset == schema.OffsetOpen {
		pos.LongTd += trade.Volume
	} else if trade.Direction == schema.DirSell && trade.Offset == schema.OffsetOpen {
		pos.ShortTd += trade.Volume
	}
}

func (m *Module) onQueryPositions(req *schema.QueryRequest) {
	if req.Kind != schema.QueryPosition {
		return
	}
	m.mu.Lock()
	replies := make([]*schema.PositionDetail, 0, len(m.positions)*2)
	for _, pos := range m.positions {
		if pos.LongTd != 0 || pos.LongYd != 0 {
			long := *pos
			long.Direction = schema.PosiLong
			long.PositionDate = schema.PosDateBoth
			replies = append(replies, &long)
		}
		if pos.ShortTd != 0 || pos.ShortYd != 0 {
			short := *pos
			short.Direction = schema.PosiShort
			short.PositionDate = schema.PosDateBoth
			replies = append(replies, &short)
		}
	}
	m.mu.Unlock()

	for _, r := range replies {
		m.b.Publish(bus.TopicRspPos, r)
	}
}

func (m *Module) onQueryAccount(req *schema.QueryRequest) {
	if req.Kind != schema.QueryAccount {
		return
	}
	acc := &schema.AccountDetail{
		Balance:   1_000_000,
		Available: 900_000,
		Margin:    100_000,
	}
	schema.PutString(acc.BrokerID[:], "SIM")
	schema.PutString(acc.AccountID[:], m.account)
	m.b.Publish(bus.TopicAccUpdate, acc)
}

// exchangeOf derives the exchange code from a ticker prefix, enough for the
// simulator's close-today semantics to match the real venues.
func exchangeOf(ticker string) string {
	if ticker == "" {
		return "SIM"
	}
	switch ticker[0] {
	case 'a':
		if len(ticker) > 1 && ticker[1] == 'u' {
			return "SHFE"
		}
		return "DCE"
	case 'r', 'c', 'h', 'n', 'z':
		return "SHFE"
	case 's':
		return "INE"
	case 'i', 'j', 'm', 'p', 'y', 'l', 'v', 'e':
		return "DCE"
	default:
		return "CZCE"
	}
}
