// Package kraken translates the Kraken v2 level-3 websocket feed into
// internal wire frames so recorded or live Kraken books can drive the
// engine.
package kraken

import (
	"encoding/json"
	"time"

	"titan/wire"
)

// Prices arrive as floats; ticks are price*100 (cent resolution) and
// quantities are scaled to 1e8 (satoshi resolution for BTC pairs).
const (
	priceMultiplier = 100
	qtyMultiplier   = 100_000_000
)

func priceToTicks(p float64) int64 { return int64(p*priceMultiplier + 0.5) }
func qtyToUnits(q float64) int64   { return int64(q*qtyMultiplier + 0.5) }

// idMapper assigns sequential uint64 ids to Kraken's string order ids
// so the engine's dense order index stays directly addressable.
type idMapper struct {
	ids  map[string]uint64
	next uint64
}

func newIDMapper() *idMapper {
	return &idMapper{ids: make(map[string]uint64)}
}

func (m *idMapper) getOrCreate(krakenID string) uint64 {
	if id, ok := m.ids[krakenID]; ok {
		return id
	}
	id := m.next
	m.next++
	m.ids[krakenID] = id
	return id
}

func (m *idMapper) get(krakenID string) (uint64, bool) {
	id, ok := m.ids[krakenID]
	return id, ok
}

type l3Message struct {
	Channel string   `json:"channel"`
	Type    string   `json:"type"`
	Data    []l3Book `json:"data"`
}

type l3Book struct {
	Symbol string    `json:"symbol"`
	Bids   []l3Event `json:"bids"`
	Asks   []l3Event `json:"asks"`
}

type l3Event struct {
	Event      string  `json:"event"` // add | modify | delete; empty in snapshots
	OrderID    string  `json:"order_id"`
	LimitPrice float64 `json:"limit_price"`
	OrderQty   float64 `json:"order_qty"`
	Timestamp  string  `json:"timestamp"`
}

func isoToNanos(iso string) uint64 {
	t, err := time.Parse(time.RFC3339Nano, iso)
	if err != nil {
		return 0
	}
	return uint64(t.UnixNano())
}

// Normalizer converts raw feed messages to wire frames. It is not
// safe for concurrent use; each bridge owns one.
type Normalizer struct {
	ids *idMapper
}

func NewNormalizer() *Normalizer {
	return &Normalizer{ids: newIDMapper()}
}

// Frames parses one feed message and returns the wire frames it maps
// to. Non-level3 messages and unknown events produce nothing.
func (n *Normalizer) Frames(raw []byte) [][]byte {
	var msg l3Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil
	}
	if msg.Channel != "level3" {
		return nil
	}

	var frames [][]byte
	for _, bk := range msg.Data {
		switch msg.Type {
		case "snapshot":
			// Snapshot orders are adds by definition.
			for _, ev := range bk.Bids {
				frames = appendAdd(frames, n.ids, ev, wire.SideBuy)
			}
			for _, ev := range bk.Asks {
				frames = appendAdd(frames, n.ids, ev, wire.SideSell)
			}
		case "update":
			for _, ev := range bk.Bids {
				frames = n.appendEvent(frames, ev, wire.SideBuy)
			}
			for _, ev := range bk.Asks {
				frames = n.appendEvent(frames, ev, wire.SideSell)
			}
		}
	}
	return frames
}

func appendAdd(frames [][]byte, ids *idMapper, ev l3Event, side wire.Side) [][]byte {
	if ev.OrderID == "" {
		return frames
	}
	m := wire.NewAddOrder(
		isoToNanos(ev.Timestamp),
		ids.getOrCreate(ev.OrderID),
		0,
		side,
		priceToTicks(ev.LimitPrice),
		qtyToUnits(ev.OrderQty),
	)
	return append(frames, m.Encode())
}

func (n *Normalizer) appendEvent(frames [][]byte, ev l3Event, side wire.Side) [][]byte {
	switch ev.Event {
	case "add":
		return appendAdd(frames, n.ids, ev, side)
	case "modify":
		id, ok := n.ids.get(ev.OrderID)
		if !ok {
			return frames
		}
		m := wire.NewModify(isoToNanos(ev.Timestamp), id,
			priceToTicks(ev.LimitPrice), qtyToUnits(ev.OrderQty))
		return append(frames, m.Encode())
	case "delete":
		id, ok := n.ids.get(ev.OrderID)
		if !ok {
			return frames
		}
		m := wire.NewCancel(isoToNanos(ev.Timestamp), id)
		return append(frames, m.Encode())
	default:
		return frames
	}
}
