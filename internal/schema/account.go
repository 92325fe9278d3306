package schema

// Raw position direction tags carried by query replies, counter convention.
const (
	PosiNet   byte = '1'
	PosiLong  byte = '2'
	PosiShort byte = '3'
)

// Position date tags carried by query replies. Close-today exchanges reply
// two-phase per side (today, then history); other exchanges reply one record
// covering both.
const (
	PosDateBoth      byte = '0'
	PosDateToday     byte = '1'
	PosDateYesterday byte = '2'
)

// PositionDetail is the per-account, per-instrument position state. The four
// lot counts are never negative. Direction and PositionDate are only set on
// query replies, where they tag which bucket the record covers.
type PositionDetail struct {
	AccountID  [AccountIDLen]byte
	Symbol     [SymbolLen]byte
	ID         uint64
	ExchangeID [ExchangeIDLen]byte

	LongTd       int32
	LongYd       int32
	LongAvgPrice float64
	LongPnl      float64

	ShortTd       int32
	ShortYd       int32
	ShortAvgPrice float64
	ShortPnl      float64

	NetPnl float64

	Direction    byte
	PositionDate byte
}

// AccountDetail is one funds snapshot for an account.
type AccountDetail struct {
	BrokerID    [AccountIDLen]byte
	AccountID   [AccountIDLen]byte
	Balance     float64
	Available   float64
	Margin      float64
	RealizedPnl float64
	FloatingPnl float64
}

// Connection states published on the ConnStatus topic.
const (
	ConnDisconnected  byte = '0'
	ConnConnected     byte = '1'
	ConnAuthenticated byte = '2'
	ConnLoggedIn      byte = '3'
	ConnAuthFailed    byte = '4'
	ConnLoginFailed   byte = '5'
	ConnStopped       byte = '6'
)

// ConnectionStatus reports an adapter connection transition.
type ConnectionStatus struct {
	AccountID [AccountIDLen]byte
	Source    [16]byte
	State     byte
	Msg       [128]byte
}

// SignalRecord is one factor value emitted by a strategy node.
type SignalRecord struct {
	NodeID    [16]byte
	Symbol    [SymbolLen]byte
	Factor    [32]byte
	Value     float64
	Timestamp int64
}

// Cache reset type bits.
const ResetPositions uint32 = 1 << 0

// CacheReset directs stateful consumers to purge part or all of their state
// at a session boundary. An empty AccountID means all accounts.
type CacheReset struct {
	AccountID  [AccountIDLen]byte
	TradingDay uint32
	ResetType  uint32
	Reason     [64]byte
}

// LogRecord is a free-form event published on the Log topic. Handlers that
// need to fail publish one of these and return instead of panicking through
// the bus.
type LogRecord struct {
	Source [16]byte
	Msg    [128]byte
}

// Query kinds.
const (
	QueryPosition byte = 'P'
	QueryAccount  byte = 'A'
)

// QueryRequest asks the trader adapter for a position or account snapshot.
type QueryRequest struct {
	AccountID [AccountIDLen]byte
	Kind      byte
}

// Account returns the NUL-trimmed account id.
func (p *PositionDetail) Account() string { return CString(p.AccountID[:]) }

// Ticker returns the NUL-trimmed ticker string.
func (p *PositionDetail) Ticker() string { return CString(p.Symbol[:]) }

// Exchange returns the NUL-trimmed exchange code.
func (p *PositionDetail) Exchange() string { return CString(p.ExchangeID[:]) }
