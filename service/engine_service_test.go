package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"titan/domain/book"
	"titan/infra/sequence"
	"titan/wire"
)

func newTestService() (*EngineService, *book.Book) {
	bk := book.New(book.Config{
		PoolCapacity: 64,
		PriceLevels:  1024,
		RingSize:     1 << 12,
	})
	return New(bk, sequence.New(0), nil), bk
}

func drain(b *book.Book) []book.Event {
	b.Flush()
	var out []book.Event
	buf := make([]book.Event, 64)
	for {
		n := b.Output().PopBatch(buf)
		if n == 0 {
			return out
		}
		out = append(out, buf[:n]...)
	}
}

func TestDispatchAddCancelExecute(t *testing.T) {
	svc, bk := newTestService()

	require.NoError(t, svc.Dispatch(wire.NewAddOrder(100, 1, 9, wire.SideBuy, 500, 10).Encode()))
	require.NoError(t, svc.Dispatch(wire.NewAddOrder(101, 2, 9, wire.SideSell, 505, 3).Encode()))

	assert.Equal(t, int64(500), bk.BestBid())
	assert.Equal(t, int64(505), bk.BestAsk())

	// Aggressive execute sweeps the ask.
	require.NoError(t, svc.Dispatch(wire.NewExecute(102, 3, 9, wire.SideBuy, 505, 3, wire.TIFIOC).Encode()))
	assert.Equal(t, int64(book.NoAsk), bk.BestAsk())
	assert.Equal(t, uint64(1), bk.TradesExecuted())

	require.NoError(t, svc.Dispatch(wire.NewCancel(103, 1).Encode()))
	assert.Equal(t, 0, bk.OrderCount())
}

func TestDispatchIceberg(t *testing.T) {
	svc, bk := newTestService()

	require.NoError(t, svc.Dispatch(wire.NewAddIceberg(1, 7, 0, wire.SideBuy, 500, 100, 10).Encode()))
	assert.Equal(t, int64(10), bk.BestBidVolume())

	events := drain(bk)
	require.Len(t, events, 1)
	assert.Equal(t, int64(10), events[0].Qty, "accept shows the displayed quantity")
}

func TestWireModifyReducesToCancel(t *testing.T) {
	svc, bk := newTestService()

	require.NoError(t, svc.Dispatch(wire.NewAddOrder(1, 1, 0, wire.SideBuy, 500, 10).Encode()))
	require.NoError(t, svc.Dispatch(wire.NewModify(2, 1, 501, 20).Encode()))

	// Not re-added at the new price: the wire MODIFY is a cancel.
	assert.Equal(t, 0, bk.OrderCount())
	assert.Equal(t, int64(book.NoBid), bk.BestBid())
}

func TestResetAndHeartbeat(t *testing.T) {
	svc, bk := newTestService()

	require.NoError(t, svc.Dispatch(wire.NewAddOrder(1, 1, 0, wire.SideBuy, 500, 10).Encode()))
	require.NoError(t, svc.Dispatch(wire.EncodeHeaderOnly(wire.NewHeartbeat(5))))
	assert.Equal(t, 1, bk.OrderCount(), "heartbeat must not disturb the book")

	require.NoError(t, svc.Dispatch(wire.EncodeHeaderOnly(wire.NewReset(6))))
	assert.Equal(t, 0, bk.OrderCount())
}

func TestUnsupportedTagsRejectedQuietly(t *testing.T) {
	svc, bk := newTestService()

	stop := wire.Header{Type: wire.MsgAddStop, Length: wire.HeaderSize, Timestamp: 1}
	require.NoError(t, svc.Dispatch(wire.EncodeHeaderOnly(stop)))
	assert.Equal(t, 0, bk.OrderCount())

	unknown := wire.Header{Type: MsgTypeBogus, Length: wire.HeaderSize, Timestamp: 1}
	assert.Error(t, svc.Dispatch(wire.EncodeHeaderOnly(unknown)))
}

const MsgTypeBogus = wire.MsgType('z')

func TestZeroTimestampGetsSequencerStamp(t *testing.T) {
	svc, bk := newTestService()

	require.NoError(t, svc.Dispatch(wire.NewAddOrder(0, 1, 0, wire.SideBuy, 500, 10).Encode()))
	events := drain(bk)
	require.Len(t, events, 1)
	assert.NotZero(t, events[0].Timestamp)
}

func TestMalformedFrameNeverReachesEngine(t *testing.T) {
	svc, bk := newTestService()

	frame := wire.NewAddOrder(1, 1, 0, wire.SideBuy, 500, 10).Encode()
	assert.Error(t, svc.Dispatch(frame[:20]))
	assert.Error(t, svc.Dispatch(nil))
	assert.Equal(t, 0, bk.OrderCount())
	assert.Equal(t, uint64(0), bk.MessagesProcessed())
}

func TestMarketSellSweepsBids(t *testing.T) {
	svc, bk := newTestService()

	require.NoError(t, svc.Dispatch(wire.NewAddOrder(1, 1, 0, wire.SideBuy, 500, 5).Encode()))
	require.NoError(t, svc.Dispatch(wire.NewAddOrder(2, 2, 0, wire.SideBuy, 499, 5).Encode()))

	require.NoError(t, svc.Dispatch(wire.NewMarketSell(3, 3, 0, 10).Encode()))
	assert.Equal(t, 0, bk.OrderCount())
	assert.Equal(t, uint64(2), bk.TradesExecuted())
}
