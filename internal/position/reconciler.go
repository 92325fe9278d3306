// Package position reconciles per-account, per-instrument futures positions
// from two sources: trade-driven deltas and periodic exchange query
// snapshots. SHFE and INE distinguish close-today from close-yesterday; on
// every other exchange a close consumes yesterday first and overflows into
// today.
package position

import (
	"sync"

	"github.com/yanun0323/logs"

	"github.com/Helloworld152/hft-eb/internal/bus"
	"github.com/Helloworld152/hft-eb/internal/engine"
	"github.com/Helloworld152/hft-eb/internal/schema"
)

func init() {
	engine.Register("position", func() engine.Module { return &Reconciler{} })
}

// closeTodayExchanges apply the explicit close-today/close-yesterday offset
// semantics.
var closeTodayExchanges = map[string]bool{
	"SHFE": true,
	"INE":  true,
}

// IsCloseTodayExchange reports whether exchange requires explicit
// close-today orders.
func IsCloseTodayExchange(exchange string) bool {
	return closeTodayExchanges[exchange]
}

// Reconciler folds trade returns and query replies into the nested
// account → instrument → position map and republishes the merged view.
type Reconciler struct {
	b     *bus.Bus
	timer engine.TimerService

	mu        sync.Mutex
	positions map[string]map[uint64]*schema.PositionDetail

	dumpPath    string
	queryEvery  int
	accPhase    int
	accountID   string
}

// Init subscribes the reconciler's inputs and registers the dump and query
// timers.
func (r *Reconciler) Init(b *bus.Bus, cfg engine.Config, timer engine.TimerService) error {
	r.b = b
	r.timer = timer
	r.positions = make(map[string]map[uint64]*schema.PositionDetail)
	r.dumpPath = cfg.String("dump_path", "data/pos.json")
	r.queryEvery = cfg.Int("query_interval", 30)
	r.accPhase = cfg.Int("account_phase", 3)
	r.accountID = cfg.String("account", "")

	b.Subscribe(bus.TopicRtnTrade, func(p any) {
		if rtn, ok := p.(*schema.TradeReturn); ok {
			r.onTrade(rtn)
		}
	})
	b.Subscribe(bus.TopicRspPos, func(p any) {
		if rsp, ok := p.(*schema.PositionDetail); ok {
			r.onQueryReply(rsp)
		}
	})
	b.Subscribe(bus.TopicCacheReset, func(p any) {
		if cr, ok := p.(*schema.CacheReset); ok {
			r.onCacheReset(cr)
		}
	})
	// Account updates are pure passthrough; the reconciler does not merge
	// them.

	timer.AddTimer(1, r.dump, 0)
	if r.queryEvery > 0 {
		// The account query is phase-shifted a few seconds behind the
		// position query so both stay under the counter's one-query-per-second
		// cap.
		timer.AddTimer(r.queryEvery, r.queryPositions, 0)
		timer.AddTimer(r.queryEvery, r.queryAccount, r.accPhase)
	}
	return nil
}

// Start is a no-op; the reconciler is event- and timer-driven.
func (r *Reconciler) Start() error { return nil }

// Stop performs one final dump.
func (r *Reconciler) Stop() error {
	r.dump()
	return nil
}

// Position returns a copy of the position for (account, instrument id).
func (r *Reconciler) Position(account string, id uint64) (schema.PositionDetail, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byInstr, ok := r.positions[account]
	if !ok {
		return schema.PositionDetail{}, false
	}
	pos, ok := byInstr[id]
	if !ok {
		return schema.PositionDetail{}, false
	}
	return *pos, true
}

// Seed installs a position directly, bypassing the trade path. Used by
// recovery and tests.
func (r *Reconciler) Seed(pos schema.PositionDetail) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.lookupLocked(pos.Account(), pos.ID)
	*p = pos
}

func (r *Reconciler) lookupLocked(account string, id uint64) *schema.PositionDetail {
	byInstr, ok := r.positions[account]
	if !ok {
		byInstr = make(map[uint64]*schema.PositionDetail)
		r.positions[account] = byInstr
	}
	pos, ok := byInstr[id]
	if !ok {
		pos = &schema.PositionDetail{ID: id}
		schema.PutString(pos.AccountID[:], account)
		byInstr[id] = pos
	}
	return pos
}

func (r *Reconciler) onTrade(rtn *schema.TradeReturn) {
	account := schema.CString(rtn.AccountID[:])
	exchange := schema.CString(rtn.ExchangeID[:])
	vol := rtn.Volume
	if vol <= 0 {
		return
	}

	r.mu.Lock()
	pos := r.lookupLocked(account, rtn.ID)
	if pos.Symbol[0] == 0 {
		pos.Symbol = rtn.Symbol
		pos.ExchangeID = rtn.ExchangeID
	}

	switch {
	case rtn.Direction == schema.DirBuy && rtn.Offset == schema.OffsetOpen:
		pos.LongTd += vol
	case rtn.Direction == schema.DirSell && rtn.Offset == schema.OffsetOpen:
		pos.ShortTd += vol
	case rtn.Direction == schema.DirSell:
		closeLeg(&pos.LongTd, &pos.LongYd, rtn.Offset, vol, exchange)
	case rtn.Direction == schema.DirBuy:
		closeLeg(&pos.ShortTd, &pos.ShortYd, rtn.Offset, vol, exchange)
	}
	clampLots(pos)
	out := *pos
	r.mu.Unlock()

	r.b.Publish(bus.TopicPosUpdate, &out)
}

// closeLeg applies a closing trade to one side. A close-today offset takes
// today exactly on any exchange; a plain close takes yesterday exactly on
// close-today exchanges, and everywhere else yesterday drains first and the
// remainder comes from today.
func closeLeg(td, yd *int32, offset byte, vol int32, exchange string) {
	if offset == schema.OffsetCloseToday {
		*td -= vol
		return
	}
	if IsCloseTodayExchange(exchange) {
		*yd -= vol
		return
	}
	if *yd >= vol {
		*yd -= vol
		return
	}
	remain := vol - *yd
	*yd = 0
	*td -= remain
}

// clampLots floors every lot count at zero. A clamp firing means upstream
// fed an inconsistent close; keep the state sane and move on.
func clampLots(pos *schema.PositionDetail) {
	if pos.LongTd < 0 {
		pos.LongTd = 0
	}
	if pos.LongYd < 0 {
		pos.LongYd = 0
	}
	if pos.ShortTd < 0 {
		pos.ShortTd = 0
	}
	if pos.ShortYd < 0 {
		pos.ShortYd = 0
	}
}

func (r *Reconciler) onQueryReply(rsp *schema.PositionDetail) {
	account := rsp.Account()
	exchange := rsp.Exchange()

	r.mu.Lock()
	pos := r.lookupLocked(account, rsp.ID)
	if pos.Symbol[0] == 0 {
		pos.Symbol = rsp.Symbol
		pos.ExchangeID = rsp.ExchangeID
	}

	long := rsp.Direction == schema.PosiLong || rsp.Direction == schema.PosiNet
	if IsCloseTodayExchange(exchange) {
		// Two-phase reply: each record replaces only its own bucket.
		switch rsp.PositionDate {
		case schema.PosDateToday:
			if long {
				pos.LongTd = rsp.LongTd
			} else {
				pos.ShortTd = rsp.ShortTd
			}
		case schema.PosDateYesterday:
			if long {
				pos.LongYd = rsp.LongYd
			} else {
				pos.ShortYd = rsp.ShortYd
			}
		default:
			if long {
				pos.LongTd, pos.LongYd = rsp.LongTd, rsp.LongYd
			} else {
				pos.ShortTd, pos.ShortYd = rsp.ShortTd, rsp.ShortYd
			}
		}
	} else if long {
		pos.LongTd, pos.LongYd = rsp.LongTd, rsp.LongYd
	} else {
		pos.ShortTd, pos.ShortYd = rsp.ShortTd, rsp.ShortYd
	}

	if long {
		pos.LongAvgPrice = rsp.LongAvgPrice
		pos.LongPnl = rsp.LongPnl
	} else {
		pos.ShortAvgPrice = rsp.ShortAvgPrice
		pos.ShortPnl = rsp.ShortPnl
	}
	pos.NetPnl = pos.LongPnl + pos.ShortPnl
	out := *pos
	r.mu.Unlock()

	r.b.Publish(bus.TopicPosUpdate, &out)
}

func (r *Reconciler) onCacheReset(cr *schema.CacheReset) {
	if cr.ResetType&schema.ResetPositions == 0 {
		return
	}
	account := schema.CString(cr.AccountID[:])

	r.mu.Lock()
	if account == "" {
		r.positions = make(map[string]map[uint64]*schema.PositionDetail)
	} else {
		delete(r.positions, account)
	}
	r.mu.Unlock()

	logs.Infof("position: cache reset account=%q day=%d reason=%s",
		account, cr.TradingDay, schema.CString(cr.Reason[:]))
}

func (r *Reconciler) queryPositions() {
	req := schema.QueryRequest{Kind: schema.QueryPosition}
	schema.PutString(req.AccountID[:], r.accountID)
	r.b.Publish(bus.TopicQryPos, &req)
}

func (r *Reconciler) queryAccount() {
	req := schema.QueryRequest{Kind: schema.QueryAccount}
	schema.PutString(req.AccountID[:], r.accountID)
	r.b.Publish(bus.TopicQryAcc, &req)
}
