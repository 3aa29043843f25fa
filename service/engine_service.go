package service

import (
	"fmt"

	"go.uber.org/zap"

	"titan/domain/book"
	"titan/infra/sequence"
	"titan/wire"
)

/*
EngineService is the ONLY write entry point into the matching core.

The gateway, ingest adapters and the replay driver all hand frames to
it; coordination between the wire codec, the book and the sequencer
happens here and nowhere else.
*/
type EngineService struct {
	book *book.Book
	seq  *sequence.Sequencer
	log  *zap.Logger
}

// New wires all dependencies. No globals.
func New(b *book.Book, seq *sequence.Sequencer, log *zap.Logger) *EngineService {
	if log == nil {
		log = zap.NewNop()
	}
	return &EngineService{book: b, seq: seq, log: log}
}

// Book exposes the engine for observers (broadcaster, metrics).
func (s *EngineService) Book() *book.Book { return s.book }

func tifFromWire(t uint8) book.TimeInForce {
	switch t {
	case wire.TIFIOC:
		return book.IOC
	case wire.TIFFOK:
		return book.FOK
	case wire.TIFAON:
		return book.AON
	default:
		return book.GTC
	}
}

// stamp fixes the event timestamp for the frame being applied. Frames
// without a timestamp get a sequencer tick so the event stream stays
// strictly ordered.
func (s *EngineService) stamp(ts uint64) {
	if ts == 0 {
		ts = s.seq.Next()
	}
	s.book.SetTimestamp(ts)
}

// Dispatch decodes one frame and applies it through the locked engine
// surface. Unknown or malformed frames are dropped with an error; the
// engine itself is never handed a bad message.
func (s *EngineService) Dispatch(frame []byte) error {
	return s.dispatch(frame, false)
}

// DispatchNoLock is Dispatch for the single-threaded replay path.
func (s *EngineService) DispatchNoLock(frame []byte) error {
	return s.dispatch(frame, true)
}

func (s *EngineService) dispatch(frame []byte, noLock bool) error {
	h, err := wire.PeekHeader(frame)
	if err != nil {
		return err
	}

	switch h.Type {
	case wire.MsgAddOrder:
		m, err := wire.DecodeAddOrder(frame)
		if err != nil {
			return err
		}
		s.stamp(m.Timestamp)
		if noLock {
			s.book.AddNoLock(m.OrderID, m.Side == wire.SideBuy, m.Price, m.Quantity, uint32(m.UserID))
		} else {
			s.book.Add(m.OrderID, m.Side == wire.SideBuy, m.Price, m.Quantity, uint32(m.UserID))
		}

	case wire.MsgAddIceberg:
		m, err := wire.DecodeAddIceberg(frame)
		if err != nil {
			return err
		}
		s.stamp(m.Timestamp)
		if noLock {
			s.book.AddIcebergNoLock(m.OrderID, m.Side == wire.SideBuy, m.Price, m.TotalQty, m.VisibleQty, uint32(m.UserID))
		} else {
			s.book.AddIceberg(m.OrderID, m.Side == wire.SideBuy, m.Price, m.TotalQty, m.VisibleQty, uint32(m.UserID))
		}

	case wire.MsgAddAON:
		m, err := wire.DecodeAddAON(frame)
		if err != nil {
			return err
		}
		s.stamp(m.Timestamp)
		if noLock {
			s.book.AddAONNoLock(m.OrderID, m.Side == wire.SideBuy, m.Price, m.Quantity, uint32(m.UserID))
		} else {
			s.book.AddAON(m.OrderID, m.Side == wire.SideBuy, m.Price, m.Quantity, uint32(m.UserID))
		}

	case wire.MsgCancelOrder:
		m, err := wire.DecodeCancel(frame)
		if err != nil {
			return err
		}
		s.stamp(m.Timestamp)
		if noLock {
			s.book.CancelNoLock(m.OrderID)
		} else {
			s.book.Cancel(m.OrderID)
		}

	case wire.MsgModifyOrder:
		// The wire MODIFY deliberately reduces to a cancel at the
		// ingest boundary; in-place modification is reachable through
		// the engine API only.
		m, err := wire.DecodeModify(frame)
		if err != nil {
			return err
		}
		s.stamp(m.Timestamp)
		if noLock {
			s.book.CancelNoLock(m.OrderID)
		} else {
			s.book.Cancel(m.OrderID)
		}

	case wire.MsgExecute:
		m, err := wire.DecodeExecute(frame)
		if err != nil {
			return err
		}
		s.stamp(m.Timestamp)
		if noLock {
			s.book.MatchNoLock(m.OrderID, m.Side == wire.SideBuy, m.Price, m.Quantity, uint32(m.UserID), tifFromWire(m.TimeInForce))
		} else {
			s.book.Match(m.OrderID, m.Side == wire.SideBuy, m.Price, m.Quantity, uint32(m.UserID), tifFromWire(m.TimeInForce))
		}

	case wire.MsgHeartbeat:
		// Keepalive only.

	case wire.MsgReset:
		if noLock {
			s.book.ResetNoLock()
		} else {
			s.book.Reset()
		}

	case wire.MsgAddStop, wire.MsgAddStopMarket, wire.MsgSnapshotReq:
		// Recognised tags without engine semantics; reject here so the
		// core never sees them.
		s.log.Warn("unsupported message type rejected", zap.String("type", string(h.Type)))

	default:
		return fmt.Errorf("service: unknown message type %q", h.Type)
	}
	return nil
}

// Flush drains the engine's partial event batch into the output ring.
func (s *EngineService) Flush() { s.book.Flush() }
