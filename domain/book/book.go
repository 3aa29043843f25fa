package book

import (
	"math"
	"sync"

	"go.uber.org/zap"

	"titan/infra/ring"
)

const (
	// DefaultPriceLevels bounds the dense price domain in ticks.
	DefaultPriceLevels = 1 << 25
	// DefaultPoolCapacity sizes the order slab for peak open orders.
	DefaultPoolCapacity = 1 << 20
	// DefaultRingSize is the output ring capacity in events.
	DefaultRingSize = 1 << 20

	// NoAsk is the best-ask sentinel for an empty sell side.
	NoAsk = math.MaxInt64
	// NoBid is the best-bid sentinel for an empty buy side.
	NoBid = -1

	priceOffset = 0
)

// Config carries construction parameters. The zero value selects the
// defaults above with all event kinds emitted.
type Config struct {
	PoolCapacity    int
	PriceLevels     int64 // must be a multiple of 64
	RingSize        int   // power of two
	DisableRing     bool
	SuppressAccepts bool
	SuppressCancels bool
	IndexCapacity   int
	Logger          *zap.Logger // invariant diagnostics only, never the hot path
}

// Book is the matching engine for a single instrument. All mutating
// methods must run on one logical writer; the plain methods serialise
// through an RWMutex, the NoLock variants assume the caller is that
// single writer already.
type Book struct {
	mu sync.RWMutex

	priceLevels int64
	bidLevels   []PriceLevel
	askLevels   []PriceLevel
	bidBits     sideBitmap
	askBits     sideBitmap

	bestBid     int64
	bestAsk     int64
	bestBidWord int64
	bestAskWord int64

	bidLevelCount uint32
	askLevelCount uint32

	pool  *OrderPool
	index orderIndex

	activeOrders int

	out         *ring.Buffer[Event]
	useRing     bool
	emitAccepts bool
	emitCancels bool
	batch       [batchSize]Event
	batchLen    int

	now uint64

	messagesProcessed uint64
	tradesExecuted    uint64
	messagesDropped   uint64

	log *zap.Logger
}

// New builds an empty book. The price domain and pool are allocated up
// front so the hot path never touches the allocator.
func New(cfg Config) *Book {
	if cfg.PriceLevels == 0 {
		cfg.PriceLevels = DefaultPriceLevels
	}
	if cfg.PriceLevels%64 != 0 {
		panic("book: PriceLevels must be a multiple of 64")
	}
	if cfg.PoolCapacity == 0 {
		cfg.PoolCapacity = DefaultPoolCapacity
	}
	if cfg.RingSize == 0 {
		cfg.RingSize = DefaultRingSize
	}
	if cfg.IndexCapacity == 0 {
		cfg.IndexCapacity = cfg.PoolCapacity
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	b := &Book{
		priceLevels: cfg.PriceLevels,
		bidLevels:   make([]PriceLevel, cfg.PriceLevels),
		askLevels:   make([]PriceLevel, cfg.PriceLevels),
		bidBits:     newSideBitmap(cfg.PriceLevels),
		askBits:     newSideBitmap(cfg.PriceLevels),
		bestBid:     NoBid,
		bestAsk:     NoAsk,
		bestBidWord: -1,
		bestAskWord: 0,
		pool:        NewOrderPool(cfg.PoolCapacity),
		index:       newOrderIndex(cfg.IndexCapacity),
		out:         ring.New[Event](cfg.RingSize),
		useRing:     !cfg.DisableRing,
		emitAccepts: !cfg.SuppressAccepts,
		emitCancels: !cfg.SuppressCancels,
		log:         cfg.Logger,
	}
	for i := range b.bidLevels {
		b.bidLevels[i].reset()
	}
	for i := range b.askLevels {
		b.askLevels[i].reset()
	}
	return b
}

func (b *Book) priceIndex(price int64) int64 { return price - priceOffset }
func (b *Book) indexPrice(idx int64) int64   { return idx + priceOffset }

func (b *Book) inDomain(price int64) bool {
	return price >= priceOffset && price-priceOffset < b.priceLevels
}

// ---------- best-price tracking ----------

func (b *Book) updateBestBidAfterAdd(price int64) {
	idx := b.priceIndex(price)
	b.bidBits.set(idx)
	if b.bestBid < 0 || price > b.bestBid {
		b.bestBid = price
		b.bestBidWord = idx / 64
	}
}

func (b *Book) updateBestAskAfterAdd(price int64) {
	idx := b.priceIndex(price)
	b.askBits.set(idx)
	if b.bestAsk == NoAsk || price < b.bestAsk {
		b.bestAsk = price
		b.bestAskWord = idx / 64
	}
}

func (b *Book) updateBestBidAfterRemove(removedPrice int64) {
	idx := b.priceIndex(removedPrice)
	if b.bidLevels[idx].empty() {
		b.bidBits.clear(idx)
	}
	if removedPrice == b.bestBid {
		newBest := b.bidBits.findHighest(b.bestBidWord)
		if newBest >= 0 {
			b.bestBid = b.indexPrice(newBest)
			b.bestBidWord = newBest / 64
		} else {
			b.bestBid = NoBid
			b.bestBidWord = -1
		}
	}
}

func (b *Book) updateBestAskAfterRemove(removedPrice int64) {
	idx := b.priceIndex(removedPrice)
	if b.askLevels[idx].empty() {
		b.askBits.clear(idx)
	}
	if removedPrice == b.bestAsk {
		newBest := b.askBits.findLowest(b.bestAskWord)
		if newBest >= 0 {
			b.bestAsk = b.indexPrice(newBest)
			b.bestAskWord = newBest / 64
		} else {
			b.bestAsk = NoAsk
			b.bestAskWord = 0
		}
	}
}

// ---------- resting ----------

// restInternal places a record at its level and indexes it. It covers
// plain, iceberg and AON rests; visible/hidden/peak are already split
// by the caller.
func (b *Book) restInternal(orderID uint64, buy bool, price, visible, hidden, peak int64, aon bool, user uint32) {
	if !b.inDomain(price) {
		return
	}
	idx := b.priceIndex(price)

	levels := b.askLevels
	if buy {
		levels = b.bidLevels
	}
	level := &levels[idx]
	wasEmpty := level.empty()

	slot := b.pool.Allocate()
	o := b.pool.At(slot)
	o.ID = orderID
	o.User = user
	o.Price = price
	o.Qty = visible
	o.Hidden = hidden
	o.Peak = peak
	o.Flags = 0
	o.setBuy(buy)
	o.setAON(aon)
	o.Next = NullIndex
	o.Prev = NullIndex

	listPushBack(b.pool, level, slot)
	addLevelVolume(level, o)

	if wasEmpty {
		if buy {
			b.bidLevelCount++
			b.updateBestBidAfterAdd(price)
		} else {
			b.askLevelCount++
			b.updateBestAskAfterAdd(price)
		}
	}

	b.index.ensure(orderID)
	loc := &b.index.locs[orderID]
	loc.price = price
	loc.poolIdx = slot
	loc.flags = 0
	loc.setBuy(buy)
	loc.setActive(true)
	b.activeOrders++

	b.emitAccepted(orderID, buy, price, visible)
}

func (b *Book) addInternal(orderID uint64, buy bool, price, qty int64, user uint32) {
	b.restInternal(orderID, buy, price, qty, 0, 0, false, user)
}

func (b *Book) addIcebergInternal(orderID uint64, buy bool, price, totalQty, visibleQty int64, user uint32) {
	display := visibleQty
	if totalQty < display {
		display = totalQty
	}
	b.restInternal(orderID, buy, price, display, totalQty-display, visibleQty, false, user)
}

func (b *Book) addAONInternal(orderID uint64, buy bool, price, qty int64, user uint32) {
	b.restInternal(orderID, buy, price, qty, 0, 0, true, user)
}

// addClassify routes an add to the matcher when it would cross the
// opposite best, otherwise rests it.
func (b *Book) addClassify(orderID uint64, buy bool, price, qty int64, user uint32) {
	aggressive := false
	if buy {
		aggressive = b.bestAsk != NoAsk && price >= b.bestAsk
	} else {
		aggressive = b.bestBid >= 0 && price <= b.bestBid
	}
	if aggressive {
		b.matchInternal(orderID, buy, price, qty, user, GTC)
	} else {
		b.addInternal(orderID, buy, price, qty, user)
	}
}

// ---------- cancel / modify ----------

func (b *Book) cancelInternal(orderID uint64) {
	loc, ok := b.index.lookup(orderID)
	if !ok {
		return
	}
	if !b.inDomain(loc.price) {
		return
	}
	idx := b.priceIndex(loc.price)

	levels := b.askLevels
	if loc.isBuy() {
		levels = b.bidLevels
	}
	level := &levels[idx]

	o := b.pool.At(loc.poolIdx)
	cancelledQty := o.Qty + o.Hidden

	removeLevelVolume(level, o)
	listRemove(b.pool, level, loc.poolIdx)
	b.pool.Free(loc.poolIdx)

	if level.empty() {
		if loc.isBuy() {
			b.bidLevelCount--
			b.updateBestBidAfterRemove(loc.price)
		} else {
			b.askLevelCount--
			b.updateBestAskAfterRemove(loc.price)
		}
	}

	loc.setActive(false)
	b.activeOrders--

	b.emitCancelled(orderID, cancelledQty)
}

func (b *Book) modifyInternal(orderID uint64, newPrice, newQty int64) {
	loc, ok := b.index.lookup(orderID)
	if !ok {
		return
	}
	if !b.inDomain(loc.price) {
		return
	}
	idx := b.priceIndex(loc.price)

	levels := b.askLevels
	if loc.isBuy() {
		levels = b.bidLevels
	}
	level := &levels[idx]
	o := b.pool.At(loc.poolIdx)

	if newPrice == loc.price && newQty <= o.Qty {
		// Shrinking in place keeps the FIFO position.
		delta := newQty - o.Qty
		adjustLevelVolume(level, delta, 0, o.IsAON())
		o.Qty = newQty
		return
	}

	// Price move or size increase: cancel-then-add, losing time
	// priority. The replacement aggresses if it crosses.
	buy := loc.isBuy()
	user := o.User
	b.cancelInternal(orderID)
	b.addClassify(orderID, buy, newPrice, newQty, user)
}

// ---------- reset ----------

func (b *Book) resetInternal() {
	for i := range b.bidLevels {
		b.bidLevels[i].reset()
	}
	for i := range b.askLevels {
		b.askLevels[i].reset()
	}
	b.bidBits.resetAll()
	b.askBits.resetAll()
	b.bestBid = NoBid
	b.bestAsk = NoAsk
	b.bestBidWord = -1
	b.bestAskWord = 0
	b.bidLevelCount = 0
	b.askLevelCount = 0
	b.activeOrders = 0
	b.pool.Reset()
	b.index.deactivateAll()
}

// checkCrossed is the cheap post-operation invariant probe: a resting
// crossed book is a bug in the engine, not a client error. The one
// sanctioned exception is an infeasible AON rest, which sits across
// the spread until it becomes fillable or is cancelled.
func (b *Book) checkCrossed(op string) {
	if b.bestBid < 0 || b.bestAsk == NoAsk || b.bestBid < b.bestAsk {
		return
	}
	if b.bidLevels[b.priceIndex(b.bestBid)].AONVolume > 0 ||
		b.askLevels[b.priceIndex(b.bestAsk)].AONVolume > 0 {
		return
	}
	b.log.Error("crossed book after operation",
		zap.String("op", op),
		zap.Int64("best_bid", b.bestBid),
		zap.Int64("best_ask", b.bestAsk),
	)
}

// ---------- public mutators ----------

// Add submits a limit order: aggressive if it crosses the opposite
// best, resting otherwise.
func (b *Book) Add(orderID uint64, buy bool, price, qty int64, user uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.AddNoLock(orderID, buy, price, qty, user)
}

// AddNoLock is Add for the single-threaded replay surface.
func (b *Book) AddNoLock(orderID uint64, buy bool, price, qty int64, user uint32) {
	b.messagesProcessed++
	b.addClassify(orderID, buy, price, qty, user)
	b.checkCrossed("add")
}

// AddIceberg rests an iceberg order showing at most visibleQty at a
// time out of totalQty.
func (b *Book) AddIceberg(orderID uint64, buy bool, price, totalQty, visibleQty int64, user uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.AddIcebergNoLock(orderID, buy, price, totalQty, visibleQty, user)
}

func (b *Book) AddIcebergNoLock(orderID uint64, buy bool, price, totalQty, visibleQty int64, user uint32) {
	b.messagesProcessed++
	b.addIcebergInternal(orderID, buy, price, totalQty, visibleQty, user)
	b.checkCrossed("add_iceberg")
}

// AddAON rests an all-or-none order.
func (b *Book) AddAON(orderID uint64, buy bool, price, qty int64, user uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.AddAONNoLock(orderID, buy, price, qty, user)
}

func (b *Book) AddAONNoLock(orderID uint64, buy bool, price, qty int64, user uint32) {
	b.messagesProcessed++
	b.addAONInternal(orderID, buy, price, qty, user)
	b.checkCrossed("add_aon")
}

// Cancel removes a resting order; unknown or inactive ids are silent
// no-ops.
func (b *Book) Cancel(orderID uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.CancelNoLock(orderID)
}

func (b *Book) CancelNoLock(orderID uint64) {
	b.messagesProcessed++
	b.cancelInternal(orderID)
}

// Modify changes price and/or quantity. Shrinking at the same price
// keeps the FIFO position; anything else is cancel-then-add.
func (b *Book) Modify(orderID uint64, newPrice, newQty int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ModifyNoLock(orderID, newPrice, newQty)
}

func (b *Book) ModifyNoLock(orderID uint64, newPrice, newQty int64) {
	b.messagesProcessed++
	b.modifyInternal(orderID, newPrice, newQty)
	b.checkCrossed("modify")
}

// Match aggresses qty against the opposite side up to the limit price
// under the given time-in-force, returning the number of trades.
func (b *Book) Match(orderID uint64, buy bool, price, qty int64, user uint32, tif TimeInForce) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.MatchNoLock(orderID, buy, price, qty, user, tif)
}

func (b *Book) MatchNoLock(orderID uint64, buy bool, price, qty int64, user uint32, tif TimeInForce) int {
	b.messagesProcessed++
	n := b.matchInternal(orderID, buy, price, qty, user, tif)
	b.checkCrossed("match")
	return n
}

// Reset returns the engine to the empty state. Arrays keep their
// capacity.
func (b *Book) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ResetNoLock()
}

func (b *Book) ResetNoLock() {
	b.resetInternal()
}

// Flush drains the partial event batch into the output ring.
func (b *Book) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.flushBatch()
}

func (b *Book) FlushNoLock() { b.flushBatch() }

// SetTimestamp stamps subsequently emitted events. Called by the
// writer only.
func (b *Book) SetTimestamp(ts uint64) { b.now = ts }

// SetEmitAccepts toggles accept events; benchmarks suppress them.
func (b *Book) SetEmitAccepts(v bool) { b.emitAccepts = v }

// SetEmitCancels toggles cancel events.
func (b *Book) SetEmitCancels(v bool) { b.emitCancels = v }

// ---------- observers ----------

// Output exposes the event ring for the single consumer.
func (b *Book) Output() *ring.Buffer[Event] { return b.out }

// BestBid returns the highest resting buy price, or NoBid.
func (b *Book) BestBid() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.bestBid
}

// BestAsk returns the lowest resting sell price, or NoAsk.
func (b *Book) BestAsk() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.bestAsk
}

// BestBidVolume returns the visible volume at the best bid.
func (b *Book) BestBidVolume() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.bestBid < 0 {
		return 0
	}
	return b.bidLevels[b.priceIndex(b.bestBid)].VisibleVolume
}

// BestAskVolume returns the visible volume at the best ask.
func (b *Book) BestAskVolume() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.bestAsk == NoAsk {
		return 0
	}
	return b.askLevels[b.priceIndex(b.bestAsk)].VisibleVolume
}

// OrderCount returns the number of active resting orders.
func (b *Book) OrderCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.activeOrders
}

// BidLevels returns the number of non-empty bid levels.
func (b *Book) BidLevels() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return int(b.bidLevelCount)
}

// AskLevels returns the number of non-empty ask levels.
func (b *Book) AskLevels() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return int(b.askLevelCount)
}

func (b *Book) MessagesProcessed() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.messagesProcessed
}

func (b *Book) TradesExecuted() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.tradesExecuted
}

func (b *Book) MessagesDropped() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.messagesDropped
}

func (b *Book) PoolCapacity() int { return b.pool.Capacity() }

func (b *Book) PoolUsed() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.pool.Used()
}
