package wire

import (
	"fmt"

	"titan/domain/book"
)

// Outbound event framing: same 11-byte header shape as the inbound
// protocol, tags 'T' trade, 'A' accepted, 'C' cancelled.
const (
	OutTradeSize     = 43
	OutAcceptedSize  = 36
	OutCancelledSize = 27
)

// EncodeEvent frames an engine event for the journal and the Kafka
// publisher.
func EncodeEvent(e book.Event) []byte {
	switch e.Type {
	case book.EventTrade:
		buf := make([]byte, OutTradeSize)
		putHeader(buf, Header{Type: MsgType(e.Type), Length: OutTradeSize, Timestamp: e.Timestamp})
		le.PutUint64(buf[11:19], e.OrderID)
		le.PutUint64(buf[19:27], e.CounterID)
		le.PutUint64(buf[27:35], uint64(e.Price))
		le.PutUint64(buf[35:43], uint64(e.Qty))
		return buf
	case book.EventAccepted:
		buf := make([]byte, OutAcceptedSize)
		putHeader(buf, Header{Type: MsgType(e.Type), Length: OutAcceptedSize, Timestamp: e.Timestamp})
		le.PutUint64(buf[11:19], e.OrderID)
		buf[19] = e.Side
		le.PutUint64(buf[20:28], uint64(e.Price))
		le.PutUint64(buf[28:36], uint64(e.Qty))
		return buf
	case book.EventCancelled:
		buf := make([]byte, OutCancelledSize)
		putHeader(buf, Header{Type: MsgType(e.Type), Length: OutCancelledSize, Timestamp: e.Timestamp})
		le.PutUint64(buf[11:19], e.OrderID)
		le.PutUint64(buf[19:27], uint64(e.Qty))
		return buf
	default:
		return nil
	}
}

// DecodeEvent is the inverse of EncodeEvent, used by downstream
// consumers and tests.
func DecodeEvent(b []byte) (book.Event, error) {
	h, err := PeekHeader(b)
	if err != nil {
		return book.Event{}, err
	}
	if int(h.Length) > len(b) {
		return book.Event{}, ErrBadLength
	}
	switch book.EventType(h.Type) {
	case book.EventTrade:
		if h.Length != OutTradeSize {
			return book.Event{}, ErrBadLength
		}
		return book.Event{
			Type:      book.EventTrade,
			Timestamp: h.Timestamp,
			OrderID:   le.Uint64(b[11:19]),
			CounterID: le.Uint64(b[19:27]),
			Price:     int64(le.Uint64(b[27:35])),
			Qty:       int64(le.Uint64(b[35:43])),
		}, nil
	case book.EventAccepted:
		if h.Length != OutAcceptedSize {
			return book.Event{}, ErrBadLength
		}
		return book.Event{
			Type:      book.EventAccepted,
			Timestamp: h.Timestamp,
			OrderID:   le.Uint64(b[11:19]),
			Side:      b[19],
			Price:     int64(le.Uint64(b[20:28])),
			Qty:       int64(le.Uint64(b[28:36])),
		}, nil
	case book.EventCancelled:
		if h.Length != OutCancelledSize {
			return book.Event{}, ErrBadLength
		}
		return book.Event{
			Type:      book.EventCancelled,
			Timestamp: h.Timestamp,
			OrderID:   le.Uint64(b[11:19]),
			Qty:       int64(le.Uint64(b[19:27])),
		}, nil
	default:
		return book.Event{}, fmt.Errorf("wire: unknown event tag %q", h.Type)
	}
}
