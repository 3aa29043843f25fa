package book

// availableAtLevel returns how much of remaining could fill at this
// level. Levels with no AON interest are answered from the aggregate;
// otherwise the FIFO is walked because an AON order contributes either
// all of its size or nothing.
func (b *Book) availableAtLevel(level *PriceLevel, remaining int64) int64 {
	if level.AONVolume == 0 {
		if remaining < level.TotalVolume {
			return remaining
		}
		return level.TotalVolume
	}
	var avail int64
	for cur := level.Head; cur != NullIndex && remaining > 0; {
		o := b.pool.At(cur)
		total := o.Qty + o.Hidden
		if o.IsAON() {
			if remaining >= total {
				avail += total
				remaining -= total
			}
		} else {
			fill := total
			if remaining < fill {
				fill = remaining
			}
			avail += fill
			remaining -= fill
		}
		cur = o.Next
	}
	return avail
}

// available is the feasibility probe for FOK and AON: the quantity an
// aggressor of the given side and limit could fill right now, without
// mutating anything. Levels are visited through the bitmap so a market
// sweep does not pay for the empty price domain.
func (b *Book) available(buy bool, limit, incoming int64) int64 {
	var avail int64
	remaining := incoming

	if buy {
		if b.bestAsk == NoAsk {
			return 0
		}
		hi := limit
		if max := b.indexPrice(b.priceLevels - 1); hi > max {
			hi = max
		}
		for p := b.bestAsk; p <= hi && remaining > 0; {
			level := &b.askLevels[b.priceIndex(p)]
			if !level.empty() {
				got := b.availableAtLevel(level, remaining)
				avail += got
				remaining -= got
			}
			next := b.askBits.nextAtOrAbove(b.priceIndex(p) + 1)
			if next < 0 {
				break
			}
			p = b.indexPrice(next)
		}
	} else {
		if b.bestBid < 0 {
			return 0
		}
		lo := limit
		if lo < priceOffset {
			lo = priceOffset
		}
		for p := b.bestBid; p >= lo && remaining > 0; {
			level := &b.bidLevels[b.priceIndex(p)]
			if !level.empty() {
				got := b.availableAtLevel(level, remaining)
				avail += got
				remaining -= got
			}
			prev := b.bidBits.prevAtOrBelow(b.priceIndex(p) - 1)
			if prev < 0 {
				break
			}
			p = b.indexPrice(prev)
		}
	}
	return avail
}

// nextAskLevel / nextBidLevel jump the walk cursor to the next
// non-empty level past p, or the sentinel when the side is exhausted.
func (b *Book) nextAskLevel(p int64) int64 {
	next := b.askBits.nextAtOrAbove(b.priceIndex(p) + 1)
	if next < 0 {
		return NoAsk
	}
	return b.indexPrice(next)
}

func (b *Book) nextBidLevel(p int64) int64 {
	return b.bidBits.prevAtOrBelow(b.priceIndex(p) - 1) // -1 maps to NoBid
}

// matchInternal runs the price-time walk for an aggressing order and
// handles the time-in-force residual. Returns the number of trades.
//
// The walk holds a price cursor rather than re-reading the best each
// round: a level whose remaining orders are all AON and too large is
// skipped in place (its orders keep their FIFO position), and the walk
// moves on to the next crossing level, which the feasibility probe may
// already have counted.
func (b *Book) matchInternal(orderID uint64, buy bool, price, qty int64, user uint32, tif TimeInForce) int {
	if tif == FOK {
		if b.available(buy, price, qty) < qty {
			return 0
		}
	}
	if tif == AON {
		if b.available(buy, price, qty) < qty {
			b.addAONInternal(orderID, buy, price, qty, user)
			return 0
		}
	}

	remaining := qty
	trades := 0

	var p int64
	if buy {
		p = b.bestAsk
	} else {
		p = b.bestBid
	}

	for remaining > 0 {
		if buy {
			if p == NoAsk || p > price {
				break
			}
		} else {
			if p < priceOffset || p < price {
				break
			}
		}

		var level *PriceLevel
		if buy {
			level = &b.askLevels[b.priceIndex(p)]
		} else {
			level = &b.bidLevels[b.priceIndex(p)]
		}

		if level.empty() {
			// Possible stale bit when best-index updates lag a
			// removal mid-operation; restore and move on.
			if buy {
				if p == b.bestAsk {
					b.updateBestAskAfterRemove(p)
				}
				p = b.nextAskLevel(p)
			} else {
				if p == b.bestBid {
					b.updateBestBidAfterRemove(p)
				}
				p = b.nextBidLevel(p)
			}
			continue
		}

		tradesBefore := trades
		cur := level.Head
		for cur != NullIndex && remaining > 0 {
			o := b.pool.At(cur)
			next := o.Next

			if o.IsAON() && remaining < o.Qty+o.Hidden {
				cur = next
				continue
			}

			tradeQty := o.Qty
			if remaining < tradeQty {
				tradeQty = remaining
			}

			buyID, sellID := orderID, o.ID
			if !buy {
				buyID, sellID = o.ID, orderID
			}
			b.emitTrade(buyID, sellID, p, tradeQty)
			trades++

			remaining -= tradeQty
			adjustLevelVolume(level, -tradeQty, 0, o.IsAON())
			o.Qty -= tradeQty

			if o.Qty == 0 {
				if o.Hidden > 0 {
					// Iceberg refresh: re-expose a chunk at the tail
					// of the same level, losing queue position.
					refill := o.Peak
					if refill <= 0 || refill > o.Hidden {
						refill = o.Hidden
					}
					removeLevelVolume(level, o)
					listRemove(b.pool, level, cur)
					o.Qty = refill
					o.Hidden -= refill
					listPushBack(b.pool, level, cur)
					addLevelVolume(level, o)
					if o.ID < uint64(len(b.index.locs)) {
						b.index.locs[o.ID].poolIdx = cur
					}
				} else {
					listRemove(b.pool, level, cur)
					if o.ID < uint64(len(b.index.locs)) {
						b.index.locs[o.ID].setActive(false)
						b.activeOrders--
					}
					b.pool.Free(cur)
				}
			}
			cur = next
		}

		if level.empty() {
			if buy {
				b.askLevelCount--
				b.updateBestAskAfterRemove(p)
				p = b.nextAskLevel(p)
			} else {
				b.bidLevelCount--
				b.updateBestBidAfterRemove(p)
				p = b.nextBidLevel(p)
			}
			continue
		}

		if trades == tradesBefore {
			// Nothing tradable here (AON orders needing more than we
			// have); leave the level intact and try the next price.
			if buy {
				p = b.nextAskLevel(p)
			} else {
				p = b.nextBidLevel(p)
			}
			continue
		}
		// Progress at a still non-empty level: refreshed icebergs may
		// have re-exposed quantity at the tail, walk it again.
	}

	if remaining > 0 {
		switch tif {
		case GTC:
			b.addInternal(orderID, buy, price, remaining, user)
		case AON:
			b.addAONInternal(orderID, buy, price, remaining, user)
		case IOC, FOK:
			// Residual discarded.
		}
	}
	return trades
}
