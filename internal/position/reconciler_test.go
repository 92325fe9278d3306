package position

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/require"

	"github.com/Helloworld152/hft-eb/internal/bus"
	"github.com/Helloworld152/hft-eb/internal/engine"
	"github.com/Helloworld152/hft-eb/internal/schema"
)

func newReconciler(t *testing.T, b *bus.Bus) *Reconciler {
	t.Helper()
	r := &Reconciler{}
	cfg := engine.Config{Values: map[string]string{
		"dump_path":      filepath.Join(t.TempDir(), "pos.json"),
		"query_interval": "0",
	}}
	require.NoError(t, r.Init(b, cfg, engine.NewWheel()))
	return r
}

func seed(r *Reconciler, account, ticker, exchange string, id uint64, longTd, longYd int32) {
	pos := schema.PositionDetail{ID: id, LongTd: longTd, LongYd: longYd}
	schema.PutString(pos.AccountID[:], account)
	schema.PutString(pos.Symbol[:], ticker)
	schema.PutString(pos.ExchangeID[:], exchange)
	r.Seed(pos)
}

func trade(account, ticker, exchange string, id uint64, dir, offset byte, volume int32) *schema.TradeReturn {
	rtn := &schema.TradeReturn{ID: id, Direction: dir, Offset: offset, Volume: volume, Price: 100}
	schema.PutString(rtn.AccountID[:], account)
	schema.PutString(rtn.Symbol[:], ticker)
	schema.PutString(rtn.ExchangeID[:], exchange)
	return rtn
}

// SHFE distinguishes close-today from close-yesterday exactly; DCE closes
// yesterday first and overflows into today.
func TestCloseSemanticsSHFEvsDCE(t *testing.T) {
	b := bus.New()
	r := newReconciler(t, b)

	seed(r, "A", "rb2501", "SHFE", 1, 2, 3)
	b.Publish(bus.TopicRtnTrade, trade("A", "rb2501", "SHFE", 1, schema.DirSell, schema.OffsetClose, 2))
	pos, ok := r.Position("A", 1)
	require.True(t, ok)
	require.Equal(t, int32(2), pos.LongTd, "SHFE close leaves today untouched")
	require.Equal(t, int32(1), pos.LongYd)

	seed(r, "A", "i2501", "DCE", 2, 2, 3)
	b.Publish(bus.TopicRtnTrade, trade("A", "i2501", "DCE", 2, schema.DirSell, schema.OffsetClose, 4))
	pos, ok = r.Position("A", 2)
	require.True(t, ok)
	require.Equal(t, int32(1), pos.LongTd, "remainder comes from today")
	require.Equal(t, int32(0), pos.LongYd, "yesterday consumed first")
}

func TestCloseTodayTakesTodayExactly(t *testing.T) {
	b := bus.New()
	r := newReconciler(t, b)

	seed(r, "A", "rb2501", "SHFE", 1, 5, 3)
	b.Publish(bus.TopicRtnTrade, trade("A", "rb2501", "SHFE", 1, schema.DirSell, schema.OffsetCloseToday, 4))
	pos, _ := r.Position("A", 1)
	require.Equal(t, int32(1), pos.LongTd)
	require.Equal(t, int32(3), pos.LongYd)
}

func TestOpenAddsToToday(t *testing.T) {
	b := bus.New()
	r := newReconciler(t, b)

	b.Publish(bus.TopicRtnTrade, trade("A", "au2606", "SHFE", 3, schema.DirBuy, schema.OffsetOpen, 2))
	b.Publish(bus.TopicRtnTrade, trade("A", "au2606", "SHFE", 3, schema.DirSell, schema.OffsetOpen, 1))
	pos, ok := r.Position("A", 3)
	require.True(t, ok)
	require.Equal(t, int32(2), pos.LongTd)
	require.Equal(t, int32(1), pos.ShortTd)
}

func TestLotsClampAtZero(t *testing.T) {
	b := bus.New()
	r := newReconciler(t, b)

	seed(r, "A", "rb2501", "SHFE", 1, 1, 0)
	b.Publish(bus.TopicRtnTrade, trade("A", "rb2501", "SHFE", 1, schema.DirSell, schema.OffsetCloseToday, 5))
	pos, _ := r.Position("A", 1)
	require.Equal(t, int32(0), pos.LongTd, "inconsistent closes clamp, never go negative")
	require.Equal(t, int32(0), pos.LongYd)
}

func TestPosUpdatePublishedAfterChange(t *testing.T) {
	b := bus.New()
	r := newReconciler(t, b)

	var got *schema.PositionDetail
	b.Subscribe(bus.TopicPosUpdate, func(p any) { got = p.(*schema.PositionDetail) })

	b.Publish(bus.TopicRtnTrade, trade("A", "rb2501", "SHFE", 1, schema.DirBuy, schema.OffsetOpen, 3))
	require.NotNil(t, got)
	require.Equal(t, int32(3), got.LongTd)
	require.Equal(t, "A", got.Account())
}

func queryReply(account, ticker, exchange string, id uint64, dir, date byte, td, yd int32, pnl float64) *schema.PositionDetail {
	rsp := &schema.PositionDetail{ID: id, Direction: dir, PositionDate: date}
	if dir == schema.PosiShort {
		rsp.ShortTd, rsp.ShortYd, rsp.ShortPnl = td, yd, pnl
	} else {
		rsp.LongTd, rsp.LongYd, rsp.LongPnl = td, yd, pnl
	}
	schema.PutString(rsp.AccountID[:], account)
	schema.PutString(rsp.Symbol[:], ticker)
	schema.PutString(rsp.ExchangeID[:], exchange)
	return rsp
}

// Applying the same query reply twice must be identical to applying it once.
func TestQueryReplyIdempotent(t *testing.T) {
	b := bus.New()
	r := newReconciler(t, b)

	rsp := queryReply("A", "i2501", "DCE", 2, schema.PosiLong, schema.PosDateBoth, 4, 6, 150.0)
	b.Publish(bus.TopicRspPos, rsp)
	first, _ := r.Position("A", 2)

	b.Publish(bus.TopicRspPos, rsp)
	second, _ := r.Position("A", 2)
	require.Equal(t, first, second)
	require.Equal(t, int32(4), second.LongTd)
	require.Equal(t, int32(6), second.LongYd)
	require.Equal(t, 150.0, second.NetPnl)
}

// SHFE replies arrive two-phase per side; each phase replaces only its own
// bucket.
func TestQueryReplyTwoPhaseSHFE(t *testing.T) {
	b := bus.New()
	r := newReconciler(t, b)

	seed(r, "A", "rb2501", "SHFE", 1, 9, 9)
	b.Publish(bus.TopicRspPos, queryReply("A", "rb2501", "SHFE", 1, schema.PosiLong, schema.PosDateToday, 2, 0, 10.0))
	pos, _ := r.Position("A", 1)
	require.Equal(t, int32(2), pos.LongTd)
	require.Equal(t, int32(9), pos.LongYd, "yesterday bucket untouched by the today phase")

	b.Publish(bus.TopicRspPos, queryReply("A", "rb2501", "SHFE", 1, schema.PosiLong, schema.PosDateYesterday, 0, 5, 10.0))
	pos, _ = r.Position("A", 1)
	require.Equal(t, int32(2), pos.LongTd)
	require.Equal(t, int32(5), pos.LongYd)
}

func TestQueryReplyNetPnl(t *testing.T) {
	b := bus.New()
	r := newReconciler(t, b)

	b.Publish(bus.TopicRspPos, queryReply("A", "i2501", "DCE", 2, schema.PosiLong, schema.PosDateBoth, 1, 0, 100.0))
	b.Publish(bus.TopicRspPos, queryReply("A", "i2501", "DCE", 2, schema.PosiShort, schema.PosDateBoth, 2, 0, -30.0))
	pos, _ := r.Position("A", 2)
	require.Equal(t, 70.0, pos.NetPnl, "net pnl is the sum of both legs")
}

func TestCacheResetPurgesSubtree(t *testing.T) {
	b := bus.New()
	r := newReconciler(t, b)

	seed(r, "A", "rb2501", "SHFE", 1, 1, 1)
	seed(r, "B", "rb2501", "SHFE", 1, 2, 2)

	cr := &schema.CacheReset{ResetType: schema.ResetPositions}
	schema.PutString(cr.AccountID[:], "A")
	b.Publish(bus.TopicCacheReset, cr)

	_, ok := r.Position("A", 1)
	require.False(t, ok, "matching account purged")
	_, ok = r.Position("B", 1)
	require.True(t, ok, "other accounts retained")

	// Empty account id purges everything.
	cr = &schema.CacheReset{ResetType: schema.ResetPositions}
	b.Publish(bus.TopicCacheReset, cr)
	_, ok = r.Position("B", 1)
	require.False(t, ok)
}

func TestCacheResetRespectsTypeMask(t *testing.T) {
	b := bus.New()
	r := newReconciler(t, b)

	seed(r, "A", "rb2501", "SHFE", 1, 1, 1)
	cr := &schema.CacheReset{ResetType: 0}
	b.Publish(bus.TopicCacheReset, cr)
	_, ok := r.Position("A", 1)
	require.True(t, ok, "bit 0 unset leaves positions alone")
}

func TestDumpWritesJSON(t *testing.T) {
	b := bus.New()
	path := filepath.Join(t.TempDir(), "pos.json")
	r := &Reconciler{}
	cfg := engine.Config{Values: map[string]string{
		"dump_path":      path,
		"query_interval": "0",
	}}
	require.NoError(t, r.Init(b, cfg, engine.NewWheel()))

	seed(r, "A", "rb2501", "SHFE", 1, 2, 3)
	require.NoError(t, r.Stop())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var dump struct {
		Accounts []struct {
			AccountID string `json:"account_id"`
			Positions []struct {
				Symbol string `json:"symbol"`
				LongTd int32  `json:"long_td"`
				LongYd int32  `json:"long_yd"`
			} `json:"positions"`
		} `json:"accounts"`
		Timestamp  int64  `json:"timestamp"`
		UpdateTime string `json:"update_time"`
	}
	require.NoError(t, sonic.Unmarshal(data, &dump))
	require.Len(t, dump.Accounts, 1)
	require.Equal(t, "A", dump.Accounts[0].AccountID)
	require.Len(t, dump.Accounts[0].Positions, 1)
	require.Equal(t, "rb2501", dump.Accounts[0].Positions[0].Symbol)
	require.Equal(t, int32(2), dump.Accounts[0].Positions[0].LongTd)
	require.NotZero(t, dump.Timestamp)
}

func TestQueryTimersStaggered(t *testing.T) {
	b := bus.New()
	wheel := engine.NewWheel()
	r := &Reconciler{}
	cfg := engine.Config{Values: map[string]string{
		"dump_path":      filepath.Join(t.TempDir(), "pos.json"),
		"query_interval": "10",
		"account_phase":  "2",
	}}
	require.NoError(t, r.Init(b, cfg, wheel))

	var posTicks, accTicks []uint64
	b.Subscribe(bus.TopicQryPos, func(any) { posTicks = append(posTicks, wheel.TotalSeconds()) })
	b.Subscribe(bus.TopicQryAcc, func(any) { accTicks = append(accTicks, wheel.TotalSeconds()) })

	for i := 0; i < 22; i++ {
		wheel.Tick()
	}
	require.Equal(t, []uint64{10, 20}, posTicks)
	require.Equal(t, []uint64{2, 12, 22}, accTicks, "account queries are phase shifted off the position queries")
}
