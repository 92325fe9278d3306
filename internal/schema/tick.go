package schema

// SymbolLen is the fixed width of ticker fields. Tickers are 1-31 bytes,
// NUL padded.
const SymbolLen = 32

// KlineInterval tags the aggregation period of a candle in minutes.
type KlineInterval int32

const (
	Kline1M  KlineInterval = 1
	Kline5M  KlineInterval = 5
	Kline15M KlineInterval = 15
	Kline1H  KlineInterval = 60
	Kline1D  KlineInterval = 1440
)

// Tick is one full-depth market data update. The layout is fixed and shared
// bit-exact between the in-process snapshot, the shared-memory snapshot and
// the on-disk tick log; it must stay free of pointers and Go-only types.
// Padded to a multiple of 64 bytes.
type Tick struct {
	Symbol     [SymbolLen]byte
	ID         uint64
	TradingDay uint32 // YYYYMMDD
	_          uint32
	UpdateTime uint64 // HHMMSSmmm

	LastPrice    float64
	Volume       int32 // cumulative within the trading day
	_            uint32
	Turnover     float64 // cumulative
	OpenInterest float64

	UpperLimit float64
	LowerLimit float64
	OpenPrice  float64
	HighPrice  float64
	LowPrice   float64
	PreClose   float64

	BidPrice  [5]float64
	BidVolume [5]int32
	_         uint32
	AskPrice  [5]float64
	AskVolume [5]int32
	_         uint32

	_ [56]byte
}

// Candle is one OHLCV bar. Volume and Turnover are deltas within the
// interval; OpenInterest is the value at interval end.
type Candle struct {
	Symbol       [SymbolLen]byte
	ID           uint64
	TradingDay   uint32 // YYYYMMDD
	_            uint32
	StartTime    uint64 // HHMMSSmmm, interval start
	Open         float64
	High         float64
	Low          float64
	Close        float64
	Volume       int32
	Interval     KlineInterval
	Turnover     float64
	OpenInterest float64
}

// Ticker returns the NUL-trimmed ticker string.
func (t *Tick) Ticker() string { return CString(t.Symbol[:]) }

// Ticker returns the NUL-trimmed ticker string.
func (c *Candle) Ticker() string { return CString(c.Symbol[:]) }
