// Package filedrop watches a drop directory for order CSV files and turns
// their rows into bus order requests. Direct rows fire once inside their
// time window; twap rows are sliced evenly across the window on the
// one-second tick. Consumed files are renamed with a .done suffix so a
// restart never double-submits.
package filedrop

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"github.com/Helloworld152/hft-eb/internal/bus"
	"github.com/Helloworld152/hft-eb/internal/engine"
	"github.com/Helloworld152/hft-eb/internal/schema"
	"github.com/Helloworld152/hft-eb/internal/symbol"
)

func init() {
	engine.Register("filedrop", func() engine.Module { return &Module{} })
}

var ErrBadRow = errors.New("filedrop: malformed row")

// Row is one parsed drop-file order line.
type Row struct {
	Ticker      string
	Direction   byte
	Offset      byte
	RefPrice    float64
	Volume      int32
	AccountID   string
	StartTime   string // HH:MM:SS
	EndTime     string // HH:MM:SS
	Algo        string // direct | twap
	IntervalSec int
}

// pending tracks a row not yet fully submitted.
type pending struct {
	row       Row
	remaining int32
	slice     int32
	nextTick  uint64
}

// Module polls a drop directory and publishes ORDER_REQ rows.
type Module struct {
	b   *bus.Bus
	dir string

	mu      sync.Mutex
	pending []*pending
	ticks   uint64
	clock   func() string
}

// Init creates the drop directory if missing and registers the one-second poll.
func (m *Module) Init(b *bus.Bus, cfg engine.Config, timer engine.TimerService) error {
	m.b = b
	m.dir = cfg.String("dir", "orders")
	m.clock = clockHHMMSS
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return errors.Wrap(err, "create drop dir")
	}
	timer.AddTimer(1, m.tick, 0)
	logs.Infof("filedrop: watching %s", m.dir)
	return nil
}

// Start is a no-op; the module is timer-driven.
func (m *Module) Start() error { return nil }

// Stop is a no-op; unconsumed files stay for the next session.
func (m *Module) Stop() error { return nil }

func (m *Module) tick() {
	m.scan()
	m.dispatch()
}

func (m *Module) scan() {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		logs.Warnf("filedrop: read dir: %+v", err)
		return
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".csv") {
			continue
		}
		path := filepath.Join(m.dir, e.Name())
		rows, err := ParseFile(path)
		if err != nil {
			logs.Errorf("filedrop: %s: %+v", path, err)
			_ = os.Rename(path, path+".bad")
			continue
		}
		m.mu.Lock()
		for _, row := range rows {
			p := &pending{row: row, remaining: row.Volume}
			if row.Algo == "twap" {
				slices := int32(1)
				if row.IntervalSec > 0 {
					if span := windowSeconds(row.StartTime, row.EndTime); span > 0 {
						slices = int32(span) / int32(row.IntervalSec)
					}
				}
				if slices < 1 {
					slices = 1
				}
				p.slice = (row.Volume + slices - 1) / slices
			} else {
				p.slice = row.Volume
			}
			m.pending = append(m.pending, p)
		}
		m.mu.Unlock()
		_ = os.Rename(path, path+".done")
		logs.Infof("filedrop: consumed %s (%d rows)", path, len(rows))
	}
}

func (m *Module) dispatch() {
	now := m.clock()

	m.mu.Lock()
	m.ticks++
	tick := m.ticks
	var due []*schema.OrderRequest
	kept := m.pending[:0]
	for _, p := range m.pending {
		if p.remaining <= 0 {
			continue
		}
		if p.row.StartTime != "" && now < p.row.StartTime {
			kept = append(kept, p)
			continue
		}
		if p.row.EndTime != "" && now > p.row.EndTime {
			logs.Warnf("filedrop: window expired for %s, %d lots unsent", p.row.Ticker, p.remaining)
			continue
		}
		if tick < p.nextTick {
			kept = append(kept, p)
			continue
		}
		vol := p.slice
		if vol > p.remaining {
			vol = p.remaining
		}
		p.remaining -= vol
		if p.row.IntervalSec > 0 {
			p.nextTick = tick + uint64(p.row.IntervalSec)
		}
		due = append(due, m.buildRequest(p.row, vol))
		if p.remaining > 0 {
			kept = append(kept, p)
		}
	}
	m.pending = kept
	m.mu.Unlock()

	for _, req := range due {
		m.b.Publish(bus.TopicOrderReq, req)
	}
}

func (m *Module) buildRequest(row Row, vol int32) *schema.OrderRequest {
	req := &schema.OrderRequest{
		ID:        symbol.Default().ID(row.Ticker),
		Direction: row.Direction,
		Offset:    row.Offset,
		Price:     row.RefPrice,
		Volume:    vol,
	}
	schema.PutString(req.Symbol[:], row.Ticker)
	schema.PutString(req.AccountID[:], row.AccountID)
	return req
}

// ParseFile reads one drop CSV: a header row, then
// ticker,direction,offset,ref_price,volume,account_id,start,end,algo[,interval].
func ParseFile(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open drop file")
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "parse drop file")
	}
	if len(records) < 2 {
		return nil, nil
	}

	rows := make([]Row, 0, len(records)-1)
	for _, rec := range records[1:] {
		row, err := parseRow(rec)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseRow(rec []string) (Row, error) {
	if len(rec) < 9 {
		return Row{}, errors.Wrapf(ErrBadRow, "want >= 9 fields, got %d", len(rec))
	}
	for i := range rec {
		rec[i] = strings.TrimSpace(rec[i])
	}
	price, err := strconv.ParseFloat(rec[3], 64)
	if err != nil {
		return Row{}, errors.Wrapf(ErrBadRow, "ref_price %q", rec[3])
	}
	vol, err := strconv.Atoi(rec[4])
	if err != nil || vol <= 0 {
		return Row{}, errors.Wrapf(ErrBadRow, "volume %q", rec[4])
	}
	dir, ok := parseFlag(rec[1], schema.DirBuy, schema.DirSell)
	if !ok {
		return Row{}, errors.Wrapf(ErrBadRow, "direction %q", rec[1])
	}
	offset, ok := parseFlag(rec[2], schema.OffsetOpen, schema.OffsetClose, schema.OffsetCloseToday)
	if !ok {
		return Row{}, errors.Wrapf(ErrBadRow, "offset %q", rec[2])
	}
	algo := rec[8]
	if algo != "direct" && algo != "twap" {
		return Row{}, errors.Wrapf(ErrBadRow, "algo %q", algo)
	}
	row := Row{
		Ticker:    rec[0],
		Direction: dir,
		Offset:    offset,
		RefPrice:  price,
		Volume:    int32(vol),
		AccountID: rec[5],
		StartTime: rec[6],
		EndTime:   rec[7],
		Algo:      algo,
	}
	if len(rec) >= 10 && rec[9] != "" {
		iv, err := strconv.Atoi(rec[9])
		if err != nil || iv < 0 {
			return Row{}, errors.Wrapf(ErrBadRow, "interval_sec %q", rec[9])
		}
		row.IntervalSec = iv
	}
	return row, nil
}

func parseFlag(s string, allowed ...byte) (byte, bool) {
	if len(s) != 1 {
		return 0, false
	}
	for _, b := range allowed {
		if s[0] == b {
			return b, true
		}
	}
	return 0, false
}

func clockHHMMSS() string {
	return time.Now().Format("15:04:05")
}

// windowSeconds returns the span of an HH:MM:SS window, 0 when either bound
// is missing or malformed.
func windowSeconds(start, end string) int {
	s, err1 := time.Parse("15:04:05", start)
	e, err2 := time.Parse("15:04:05", end)
	if err1 != nil || err2 != nil {
		return 0
	}
	span := int(e.Sub(s) / time.Second)
	if span < 0 {
		return 0
	}
	return span
}
