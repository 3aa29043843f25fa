package wire

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"titan/domain/book"
)

func TestAddOrderLayout(t *testing.T) {
	m := NewAddOrder(7, 42, 9, SideBuy, 100, 25)
	buf := m.Encode()

	require.Len(t, buf, AddOrderSize)
	assert.Equal(t, byte('A'), buf[0])
	// length field is little-endian 44
	assert.Equal(t, byte(44), buf[1])
	assert.Equal(t, byte(0), buf[2])
	// timestamp at offset 3
	assert.Equal(t, byte(7), buf[3])
	// order id at offset 11
	assert.Equal(t, byte(42), buf[11])
	// side at offset 27
	assert.Equal(t, byte('B'), buf[27])

	got, err := DecodeAddOrder(buf)
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestDecodeRejectsTruncatedAndMislabelled(t *testing.T) {
	m := NewCancel(1, 5)
	buf := m.Encode()
	require.Len(t, buf, CancelSize)

	_, err := DecodeCancel(buf[:10])
	assert.ErrorIs(t, err, ErrShortBuffer)

	_, err = DecodeCancel(buf[:CancelSize-1])
	assert.ErrorIs(t, err, ErrBadLength)

	// Length field lies about the size.
	bad := append([]byte(nil), buf...)
	bad[1] = 200
	_, err = DecodeCancel(bad)
	assert.ErrorIs(t, err, ErrBadLength)

	// Wrong tag for the requested decoder.
	_, err = DecodeAddOrder(NewAddAON(1, 2, 3, SideSell, 10, 1).Encode())
	assert.Error(t, err)
}

func TestExecuteRoundTripAndMarketHelpers(t *testing.T) {
	m := NewExecute(99, 1, 2, SideSell, 101, 6, TIFFOK)
	got, err := DecodeExecute(m.Encode())
	require.NoError(t, err)
	assert.Equal(t, m, got)

	mb := NewMarketBuy(1, 10, 20, 5)
	assert.Equal(t, int64(math.MaxInt64), mb.Price)
	assert.Equal(t, TIFIOC, mb.TimeInForce)

	ms := NewMarketSell(1, 10, 20, 5)
	assert.Equal(t, int64(0), ms.Price)
	assert.Equal(t, SideSell, ms.Side)
}

func TestPeekHeaderStreamFraming(t *testing.T) {
	// Two frames back to back: the header length field drives framing.
	stream := append(NewAddOrder(1, 1, 1, SideBuy, 100, 10).Encode(),
		NewCancel(2, 1).Encode()...)

	h, err := PeekHeader(stream)
	require.NoError(t, err)
	assert.Equal(t, MsgAddOrder, h.Type)
	assert.Equal(t, uint16(AddOrderSize), h.Length)

	h2, err := PeekHeader(stream[h.Length:])
	require.NoError(t, err)
	assert.Equal(t, MsgCancelOrder, h2.Type)
	assert.Equal(t, uint16(CancelSize), h2.Length)
}

func TestIcebergCarriesBothQuantities(t *testing.T) {
	m := NewAddIceberg(5, 77, 3, SideSell, 250, 1000, 100)
	got, err := DecodeAddIceberg(m.Encode())
	require.NoError(t, err)
	assert.Equal(t, int64(1000), got.TotalQty)
	assert.Equal(t, int64(100), got.VisibleQty)
}

func TestEventFraming(t *testing.T) {
	cases := []struct {
		ev   book.Event
		size int
	}{
		{book.Event{Type: book.EventTrade, Timestamp: 9, OrderID: 1, CounterID: 2, Price: 100, Qty: 4}, OutTradeSize},
		{book.Event{Type: book.EventAccepted, Timestamp: 9, OrderID: 3, Side: 'B', Price: 101, Qty: 7}, OutAcceptedSize},
		{book.Event{Type: book.EventCancelled, Timestamp: 9, OrderID: 3, Qty: 7}, OutCancelledSize},
	}
	for _, tc := range cases {
		buf := EncodeEvent(tc.ev)
		require.Len(t, buf, tc.size, "tag %c", tc.ev.Type)
		got, err := DecodeEvent(buf)
		require.NoError(t, err)
		assert.Equal(t, tc.ev, got)
	}

	_, err := DecodeEvent([]byte{0xFF, 11, 0, 0, 0, 0, 0, 0, 0, 0, 0})
	assert.Error(t, err)
}
