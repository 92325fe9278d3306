package position

import (
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/logs"

	"github.com/Helloworld152/hft-eb/internal/schema"
)

// dumpPosition is one instrument row of the JSON dump.
type dumpPosition struct {
	Symbol     string  `json:"symbol"`
	ID         uint64  `json:"id"`
	ExchangeID string  `json:"exchange_id"`
	LongTd     int32   `json:"long_td"`
	LongYd     int32   `json:"long_yd"`
	LongAvg    float64 `json:"long_avg_price"`
	ShortTd    int32   `json:"short_td"`
	ShortYd    int32   `json:"short_yd"`
	ShortAvg   float64 `json:"short_avg_price"`
	NetPnl     float64 `json:"net_pnl"`
}

// dumpAccount groups one account's positions.
type dumpAccount struct {
	AccountID string         `json:"account_id"`
	Positions []dumpPosition `json:"positions"`
}

// dumpFile is the on-disk layout of the periodic position dump.
type dumpFile struct {
	Accounts   []dumpAccount `json:"accounts"`
	Timestamp  int64         `json:"timestamp"`
	UpdateTime string        `json:"update_time"`
}

// dump writes the whole position map to the dump path, atomically via a
// temp file rename, for out-of-process observability.
func (r *Reconciler) dump() {
	if r.dumpPath == "" {
		return
	}

	r.mu.Lock()
	out := dumpFile{
		Timestamp:  time.Now().Unix(),
		UpdateTime: time.Now().Format("2006-01-02 15:04:05"),
	}
	accounts := make([]string, 0, len(r.positions))
	for account := range r.positions {
		accounts = append(accounts, account)
	}
	sort.Strings(accounts)
	for _, account := range accounts {
		byInstr := r.positions[account]
		ids := make([]uint64, 0, len(byInstr))
		for id := range byInstr {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		acc := dumpAccount{AccountID: account}
		for _, id := range ids {
			p := byInstr[id]
			acc.Positions = append(acc.Positions, dumpPosition{
				Symbol:     schema.CString(p.Symbol[:]),
				ID:         p.ID,
				ExchangeID: p.Exchange(),
				LongTd:     p.LongTd,
				LongYd:     p.LongYd,
				LongAvg:    p.LongAvgPrice,
				ShortTd:    p.ShortTd,
				ShortYd:    p.ShortYd,
				ShortAvg:   p.ShortAvgPrice,
				NetPnl:     p.NetPnl,
			})
		}
		out.Accounts = append(out.Accounts, acc)
	}
	r.mu.Unlock()

	data, err := sonic.Marshal(out)
	if err != nil {
		logs.Errorf("position: marshal dump: %+v", err)
		return
	}
	dir := filepath.Dir(r.dumpPath)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logs.Errorf("position: mkdir dump dir: %+v", err)
			return
		}
	}
	tmp := r.dumpPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		logs.Errorf("position: write dump: %+v", err)
		return
	}
	if err := os.Rename(tmp, r.dumpPath); err != nil {
		logs.Errorf("position: rename dump: %+v", err)
	}
}
