// Package wire defines the fixed-layout binary protocol spoken by the
// gateway and the outbound event framing. All records are packed
// little-endian with an 11-byte common header: type tag, total length
// including the header, and a nanosecond timestamp.
package wire

import "math"

type MsgType byte

const (
	MsgAddOrder      MsgType = 'A'
	MsgAddIceberg    MsgType = 'I'
	MsgAddAON        MsgType = 'N'
	MsgCancelOrder   MsgType = 'X'
	MsgModifyOrder   MsgType = 'M'
	MsgExecute       MsgType = 'E'
	MsgAddStop       MsgType = 'S'
	MsgAddStopMarket MsgType = 'T'
	MsgHeartbeat     MsgType = 'H'
	MsgReset         MsgType = 'R'
	MsgSnapshotReq   MsgType = 'Q'
)

type Side byte

const (
	SideBuy  Side = 'B'
	SideSell Side = 'S'
)

// Time-in-force codes on the wire.
const (
	TIFGTC uint8 = 0
	TIFIOC uint8 = 1
	TIFFOK uint8 = 2
	TIFAON uint8 = 3
)

// Record sizes in bytes, header included.
const (
	HeaderSize     = 11
	AddOrderSize   = 44
	AddIcebergSize = 52
	AddAONSize     = 44
	CancelSize     = 19
	ModifySize     = 35
	ExecuteSize    = 45
	HeartbeatSize  = 11
	ResetSize      = 11

	// MaxMessageSize bounds any inbound frame the gateway accepts.
	MaxMessageSize = 256
)

type Header struct {
	Type      MsgType
	Length    uint16
	Timestamp uint64
}

type AddOrder struct {
	Header
	OrderID  uint64
	UserID   uint64
	Side     Side
	Price    int64
	Quantity int64
}

type AddIceberg struct {
	Header
	OrderID    uint64
	UserID     uint64
	Side       Side
	Price      int64
	TotalQty   int64
	VisibleQty int64
}

type AddAON struct {
	Header
	OrderID  uint64
	UserID   uint64
	Side     Side
	Price    int64
	Quantity int64
}

type Cancel struct {
	Header
	OrderID uint64
}

type Modify struct {
	Header
	OrderID     uint64
	NewPrice    int64
	NewQuantity int64
}

type Execute struct {
	Header
	OrderID     uint64
	UserID      uint64
	Side        Side
	Price       int64
	Quantity    int64
	TimeInForce uint8
}

func header(t MsgType, length int, ts uint64) Header {
	return Header{Type: t, Length: uint16(length), Timestamp: ts}
}

func NewAddOrder(ts, orderID, userID uint64, side Side, price, qty int64) AddOrder {
	return AddOrder{
		Header:   header(MsgAddOrder, AddOrderSize, ts),
		OrderID:  orderID,
		UserID:   userID,
		Side:     side,
		Price:    price,
		Quantity: qty,
	}
}

func NewAddIceberg(ts, orderID, userID uint64, side Side, price, total, visible int64) AddIceberg {
	return AddIceberg{
		Header:     header(MsgAddIceberg, AddIcebergSize, ts),
		OrderID:    orderID,
		UserID:     userID,
		Side:       side,
		Price:      price,
		TotalQty:   total,
		VisibleQty: visible,
	}
}

func NewAddAON(ts, orderID, userID uint64, side Side, price, qty int64) AddAON {
	return AddAON{
		Header:   header(MsgAddAON, AddAONSize, ts),
		OrderID:  orderID,
		UserID:   userID,
		Side:     side,
		Price:    price,
		Quantity: qty,
	}
}

func NewCancel(ts, orderID uint64) Cancel {
	return Cancel{Header: header(MsgCancelOrder, CancelSize, ts), OrderID: orderID}
}

func NewModify(ts, orderID uint64, price, qty int64) Modify {
	return Modify{
		Header:      header(MsgModifyOrder, ModifySize, ts),
		OrderID:     orderID,
		NewPrice:    price,
		NewQuantity: qty,
	}
}

func NewExecute(ts, orderID, userID uint64, side Side, price, qty int64, tif uint8) Execute {
	return Execute{
		Header:      header(MsgExecute, ExecuteSize, ts),
		OrderID:     orderID,
		UserID:      userID,
		Side:        side,
		Price:       price,
		Quantity:    qty,
		TimeInForce: tif,
	}
}

// NewMarketBuy encodes a market buy as an EXECUTE at the maximum
// representable price with TIF=IOC.
func NewMarketBuy(ts, orderID, userID uint64, qty int64) Execute {
	return NewExecute(ts, orderID, userID, SideBuy, math.MaxInt64, qty, TIFIOC)
}

// NewMarketSell mirrors NewMarketBuy at price 0.
func NewMarketSell(ts, orderID, userID uint64, qty int64) Execute {
	return NewExecute(ts, orderID, userID, SideSell, 0, qty, TIFIOC)
}

func NewHeartbeat(ts uint64) Header { return header(MsgHeartbeat, HeartbeatSize, ts) }
func NewReset(ts uint64) Header     { return header(MsgReset, ResetSize, ts) }
