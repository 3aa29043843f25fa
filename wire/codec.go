package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	ErrShortBuffer = errors.New("wire: short buffer")
	ErrBadLength   = errors.New("wire: header length mismatch")
)

var le = binary.LittleEndian

func putHeader(buf []byte, h Header) {
	buf[0] = byte(h.Type)
	le.PutUint16(buf[1:3], h.Length)
	le.PutUint64(buf[3:11], h.Timestamp)
}

// PeekHeader decodes the common header without consuming the frame.
func PeekHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, ErrShortBuffer
	}
	return Header{
		Type:      MsgType(b[0]),
		Length:    le.Uint16(b[1:3]),
		Timestamp: le.Uint64(b[3:11]),
	}, nil
}

func checkFrame(b []byte, want int, t MsgType) (Header, error) {
	h, err := PeekHeader(b)
	if err != nil {
		return Header{}, err
	}
	if h.Type != t {
		return Header{}, fmt.Errorf("wire: type %q, want %q", h.Type, t)
	}
	if int(h.Length) != want || len(b) < want {
		return Header{}, ErrBadLength
	}
	return h, nil
}

func (m AddOrder) Encode() []byte {
	buf := make([]byte, AddOrderSize)
	putHeader(buf, m.Header)
	le.PutUint64(buf[11:19], m.OrderID)
	le.PutUint64(buf[19:27], m.UserID)
	buf[27] = byte(m.Side)
	le.PutUint64(buf[28:36], uint64(m.Price))
	le.PutUint64(buf[36:44], uint64(m.Quantity))
	return buf
}

func DecodeAddOrder(b []byte) (AddOrder, error) {
	h, err := checkFrame(b, AddOrderSize, MsgAddOrder)
	if err != nil {
		return AddOrder{}, err
	}
	return AddOrder{
		Header:   h,
		OrderID:  le.Uint64(b[11:19]),
		UserID:   le.Uint64(b[19:27]),
		Side:     Side(b[27]),
		Price:    int64(le.Uint64(b[28:36])),
		Quantity: int64(le.Uint64(b[36:44])),
	}, nil
}

func (m AddIceberg) Encode() []byte {
	buf := make([]byte, AddIcebergSize)
	putHeader(buf, m.Header)
	le.PutUint64(buf[11:19], m.OrderID)
	le.PutUint64(buf[19:27], m.UserID)
	buf[27] = byte(m.Side)
	le.PutUint64(buf[28:36], uint64(m.Price))
	le.PutUint64(buf[36:44], uint64(m.TotalQty))
	le.PutUint64(buf[44:52], uint64(m.VisibleQty))
	return buf
}

func DecodeAddIceberg(b []byte) (AddIceberg, error) {
	h, err := checkFrame(b, AddIcebergSize, MsgAddIceberg)
	if err != nil {
		return AddIceberg{}, err
	}
	return AddIceberg{
		Header:     h,
		OrderID:    le.Uint64(b[11:19]),
		UserID:     le.Uint64(b[19:27]),
		Side:       Side(b[27]),
		Price:      int64(le.Uint64(b[28:36])),
		TotalQty:   int64(le.Uint64(b[36:44])),
		VisibleQty: int64(le.Uint64(b[44:52])),
	}, nil
}

func (m AddAON) Encode() []byte {
	buf := make([]byte, AddAONSize)
	putHeader(buf, m.Header)
	le.PutUint64(buf[11:19], m.OrderID)
	le.PutUint64(buf[19:27], m.UserID)
	buf[27] = byte(m.Side)
	le.PutUint64(buf[28:36], uint64(m.Price))
	le.PutUint64(buf[36:44], uint64(m.Quantity))
	return buf
}

func DecodeAddAON(b []byte) (AddAON, error) {
	h, err := checkFrame(b, AddAONSize, MsgAddAON)
	if err != nil {
		return AddAON{}, err
	}
	return AddAON{
		Header:   h,
		OrderID:  le.Uint64(b[11:19]),
		UserID:   le.Uint64(b[19:27]),
		Side:     Side(b[27]),
		Price:    int64(le.Uint64(b[28:36])),
		Quantity: int64(le.Uint64(b[36:44])),
	}, nil
}

func (m Cancel) Encode() []byte {
	buf := make([]byte, CancelSize)
	putHeader(buf, m.Header)
	le.PutUint64(buf[11:19], m.OrderID)
	return buf
}

func DecodeCancel(b []byte) (Cancel, error) {
	h, err := checkFrame(b, CancelSize, MsgCancelOrder)
	if err != nil {
		return Cancel{}, err
	}
	return Cancel{Header: h, OrderID: le.Uint64(b[11:19])}, nil
}

func (m Modify) Encode() []byte {
	buf := make([]byte, ModifySize)
	putHeader(buf, m.Header)
	le.PutUint64(buf[11:19], m.OrderID)
	le.PutUint64(buf[19:27], uint64(m.NewPrice))
	le.PutUint64(buf[27:35], uint64(m.NewQuantity))
	return buf
}

func DecodeModify(b []byte) (Modify, error) {
	h, err := checkFrame(b, ModifySize, MsgModifyOrder)
	if err != nil {
		return Modify{}, err
	}
	return Modify{
		Header:      h,
		OrderID:     le.Uint64(b[11:19]),
		NewPrice:    int64(le.Uint64(b[19:27])),
		NewQuantity: int64(le.Uint64(b[27:35])),
	}, nil
}

func (m Execute) Encode() []byte {
	buf := make([]byte, ExecuteSize)
	putHeader(buf, m.Header)
	le.PutUint64(buf[11:19], m.OrderID)
	le.PutUint64(buf[19:27], m.UserID)
	buf[27] = byte(m.Side)
	le.PutUint64(buf[28:36], uint64(m.Price))
	le.PutUint64(buf[36:44], uint64(m.Quantity))
	buf[44] = m.TimeInForce
	return buf
}

func DecodeExecute(b []byte) (Execute, error) {
	h, err := checkFrame(b, ExecuteSize, MsgExecute)
	if err != nil {
		return Execute{}, err
	}
	return Execute{
		Header:      h,
		OrderID:     le.Uint64(b[11:19]),
		UserID:      le.Uint64(b[19:27]),
		Side:        Side(b[27]),
		Price:       int64(le.Uint64(b[28:36])),
		Quantity:    int64(le.Uint64(b[36:44])),
		TimeInForce: b[44],
	}, nil
}

// EncodeHeaderOnly frames the bodyless message types (heartbeat,
// reset).
func EncodeHeaderOnly(h Header) []byte {
	buf := make([]byte, HeaderSize)
	putHeader(buf, h)
	return buf
}
