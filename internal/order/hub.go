// Package order implements the order lifecycle hub: it mints client ids and
// counter references for outgoing requests, keeps the bidirectional mapping
// to exchange-assigned identifiers, decorates cancel requests, and re-keys
// raw counter returns to internal ids before they reach the rest of the
// system. Orders with refs the hub never minted are captured rather than
// dropped; they are externally originated (a manual order in another
// terminal).
package order

import (
	"strconv"
	"strings"
	"sync"

	"github.com/yanun0323/logs"

	"github.com/Helloworld152/hft-eb/internal/bus"
	"github.com/Helloworld152/hft-eb/internal/schema"
)

// maxOrderRefKey is the message fragment the trader adapter uses to report
// the counter's highest seen order ref at login.
const maxOrderRefKey = "MaxOrderRef:"

// traderSource tags connection status events originating from the trader
// adapter.
const traderSource = "trader"

// Context is the hub's view of one order for the life of the process.
type Context struct {
	Request    schema.OrderRequest
	OrderRef   string
	OrderSysID string
	Status     byte
}

// Hub owns the order id maps. All mutation paths hold the write lock; the
// trade-return fast path reads under the read lock.
type Hub struct {
	bus   *bus.Bus
	idGen *IDGen

	mu      sync.RWMutex
	orders  map[uint64]*Context
	refToID map[string]uint64
	sysToID map[string]uint64
}

// NewHub returns a hub publishing on b with ids from idGen.
func NewHub(b *bus.Bus, idGen *IDGen) *Hub {
	return &Hub{
		bus:     b,
		idGen:   idGen,
		orders:  make(map[uint64]*Context),
		refToID: make(map[string]uint64),
		sysToID: make(map[string]uint64),
	}
}

// Wire subscribes the hub's five intake topics.
func (h *Hub) Wire() {
	h.bus.Subscribe(bus.TopicOrderReq, func(p any) {
		if req, ok := p.(*schema.OrderRequest); ok {
			h.onOrderReq(req)
		}
	})
	h.bus.Subscribe(bus.TopicCancelReq, func(p any) {
		if req, ok := p.(*schema.CancelRequest); ok {
			h.onCancelReq(req)
		}
	})
	h.bus.Subscribe(bus.TopicRtnRawOrder, func(p any) {
		if rtn, ok := p.(*schema.OrderReturn); ok {
			h.onRawOrder(rtn)
		}
	})
	h.bus.Subscribe(bus.TopicRtnRawTrade, func(p any) {
		if rtn, ok := p.(*schema.TradeReturn); ok {
			h.onRawTrade(rtn)
		}
	})
	h.bus.Subscribe(bus.TopicConnStatus, func(p any) {
		if cs, ok := p.(*schema.ConnectionStatus); ok {
			h.onConnStatus(cs)
		}
	})
}

// Order returns a copy of the context for a client id.
func (h *Hub) Order(clientID uint64) (Context, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ctx, ok := h.orders[clientID]
	if !ok {
		return Context{}, false
	}
	return *ctx, true
}

// Count returns the number of tracked orders.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.orders)
}

// onOrderReq decorates a strategy request with a fresh client id and order
// ref, records the context, writes the ref back into the caller's struct and
// republishes on ORDER_SEND.
func (h *Hub) onOrderReq(req *schema.OrderRequest) {
	cid := h.idGen.NextID()
	req.ClientID = cid
	ref := h.idGen.NextRef()
	schema.PutString(req.OrderRef[:], ref)

	h.mu.Lock()
	h.orders[cid] = &Context{
		Request:  *req,
		OrderRef: ref,
		Status:   schema.StatusResting,
	}
	h.refToID[ref] = cid
	h.mu.Unlock()

	h.bus.Publish(bus.TopicOrderSend, req)
}

// onCancelReq copies the current ref and system id into the cancel request
// and republishes on CANCEL_SEND. Unknown client ids are logged and dropped.
func (h *Hub) onCancelReq(req *schema.CancelRequest) {
	h.mu.RLock()
	ctx, ok := h.orders[req.ClientID]
	if ok {
		schema.PutString(req.OrderRef[:], ctx.OrderRef)
		schema.PutString(req.OrderSysID[:], ctx.OrderSysID)
	}
	h.mu.RUnlock()

	if !ok {
		logs.Warnf("order hub: cancel for unknown client id %d dropped", req.ClientID)
		return
	}
	h.bus.Publish(bus.TopicCancelSend, req)
}

// onRawOrder resolves the client id by ref, capturing externally originated
// orders into a fresh context, binds the system id, stamps the return and
// republishes on RTN_ORDER.
func (h *Hub) onRawOrder(rtn *schema.OrderReturn) {
	ref := rtn.Ref()

	h.mu.Lock()
	cid, ok := h.refToID[ref]
	if !ok {
		cid = h.idGen.NextID()
		h.refToID[ref] = cid
		ctx := &Context{OrderRef: ref}
		ctx.Request.ClientID = cid
		ctx.Request.Symbol = rtn.Symbol
		ctx.Request.ID = rtn.ID
		ctx.Request.AccountID = rtn.AccountID
		ctx.Request.Direction = rtn.Direction
		ctx.Request.Offset = rtn.Offset
		ctx.Request.Price = rtn.LimitPrice
		ctx.Request.Volume = rtn.VolumeTotal
		h.orders[cid] = ctx
		logs.Infof("order hub: captured external order ref=%s symbol=%s cid=%d", ref, schema.CString(rtn.Symbol[:]), cid)
	}
	ctx := h.orders[cid]
	ctx.Status = rtn.Status
	if sysID := rtn.SysID(); sysID != "" {
		h.sysToID[sysID] = cid
		ctx.OrderSysID = sysID
	}
	h.mu.Unlock()

	rtn.ClientID = cid
	h.bus.Publish(bus.TopicRtnOrder, rtn)
}

// onRawTrade resolves the client id by system id first, then by ref, stamps
// the trade and republishes on RTN_TRADE. Trades with neither identifier are
// unreconcilable and dropped.
func (h *Hub) onRawTrade(rtn *schema.TradeReturn) {
	var cid uint64
	h.mu.RLock()
	if sysID := rtn.SysID(); sysID != "" {
		cid = h.sysToID[sysID]
	}
	if cid == 0 {
		cid = h.refToID[rtn.Ref()]
	}
	h.mu.RUnlock()

	if cid == 0 {
		logs.Warnf("order hub: trade %s without matching ref/sysid dropped", schema.CString(rtn.TradeID[:]))
		return
	}
	rtn.ClientID = cid
	h.bus.Publish(bus.TopicRtnTrade, rtn)
}

// onConnStatus advances the ref counter when the trader adapter logs in and
// reports the counter's max order ref.
func (h *Hub) onConnStatus(cs *schema.ConnectionStatus) {
	if cs.State != schema.ConnLoggedIn || schema.CString(cs.Source[:]) != traderSource {
		return
	}
	msg := schema.CString(cs.Msg[:])
	idx := strings.Index(msg, maxOrderRefKey)
	if idx < 0 {
		return
	}
	rest := msg[idx+len(maxOrderRefKey):]
	if end := strings.IndexFunc(rest, func(r rune) bool { return r < '0' || r > '9' }); end >= 0 {
		rest = rest[:end]
	}
	maxRef, err := strconv.ParseUint(rest, 10, 32)
	if err != nil {
		logs.Warnf("order hub: unparsable %s in %q", maxOrderRefKey, msg)
		return
	}
	h.idGen.AdvanceRef(uint32(maxRef) + 1)
	logs.Infof("order hub: ref counter synced to %d", maxRef+1)
}
