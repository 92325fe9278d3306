package schema

// Field widths shared with the counter-facing order structs.
const (
	OrderRefLen   = 13
	OrderSysIDLen = 21
	TradeIDLen    = 21
	AccountIDLen  = 16
	ExchangeIDLen = 9
	StatusMsgLen  = 81
)

// Order direction.
const (
	DirBuy  byte = 'B'
	DirSell byte = 'S'
)

// Offset flags. OffsetCloseToday is meaningful only on close-today exchanges
// (SHFE, INE).
const (
	OffsetOpen       byte = 'O'
	OffsetClose      byte = 'C'
	OffsetCloseToday byte = 'T'
)

// Order return status codes, counter convention.
const (
	StatusAllFilled     byte = '0'
	StatusPartialFilled byte = '1'
	StatusResting       byte = '3'
	StatusCancelled     byte = '5'
	StatusRejected      byte = '6'
)

// OrderRequest is a strategy's order intent. ClientID and OrderRef are zero
// until the order hub decorates the request.
type OrderRequest struct {
	ClientID  uint64
	OrderRef  [OrderRefLen]byte
	AccountID [AccountIDLen]byte
	Symbol    [SymbolLen]byte
	ID        uint64
	Direction byte
	Offset    byte
	Price     float64
	Volume    int32
}

// CancelRequest carries the client id of the order to cancel. OrderRef and
// OrderSysID are filled by the order hub before the request reaches the
// counter.
type CancelRequest struct {
	ClientID   uint64
	OrderRef   [OrderRefLen]byte
	OrderSysID [OrderSysIDLen]byte
	AccountID  [AccountIDLen]byte
	Symbol     [SymbolLen]byte
	ID         uint64
}

// OrderReturn is the counter's view of an order. Raw returns arrive with
// ClientID zero; the hub stamps it before republishing.
type OrderReturn struct {
	ClientID     uint64
	OrderRef     [OrderRefLen]byte
	OrderSysID   [OrderSysIDLen]byte
	ExchangeID   [ExchangeIDLen]byte
	AccountID    [AccountIDLen]byte
	Symbol       [SymbolLen]byte
	ID           uint64
	Direction    byte
	Offset       byte
	LimitPrice   float64
	VolumeTotal  int32
	VolumeTraded int32
	Status       byte
	StatusMsg    [StatusMsgLen]byte
}

// TradeReturn is one execution. Raw returns arrive with ClientID zero; the
// hub resolves it by system id first, then by order ref.
type TradeReturn struct {
	ClientID   uint64
	TradeID    [TradeIDLen]byte
	OrderRef   [OrderRefLen]byte
	OrderSysID [OrderSysIDLen]byte
	ExchangeID [ExchangeIDLen]byte
	AccountID  [AccountIDLen]byte
	Symbol     [SymbolLen]byte
	ID         uint64
	Direction  byte
	Offset     byte
	Price      float64
	Volume     int32
}

// Ticker returns the NUL-trimmed ticker string.
func (r *OrderRequest) Ticker() string { return CString(r.Symbol[:]) }

// Ref returns the NUL-trimmed order reference.
func (r *OrderRequest) Ref() string { return CString(r.OrderRef[:]) }

// Ref returns the NUL-trimmed order reference.
func (r *OrderReturn) Ref() string { return CString(r.OrderRef[:]) }

// SysID returns the NUL-trimmed exchange system id.
func (r *OrderReturn) SysID() string { return CString(r.OrderSysID[:]) }

// Ref returns the NUL-trimmed order reference.
func (r *TradeReturn) Ref() string { return CString(r.OrderRef[:]) }

// SysID returns the NUL-trimmed exchange system id.
func (r *TradeReturn) SysID() string { return CString(r.OrderSysID[:]) }
