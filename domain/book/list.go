package book

// Intrusive doubly-linked FIFO. The level owns head/tail indices and
// each pool record owns its own next/prev, so append and detach are
// O(1) with no search. This queue is the only structure that preserves
// time priority within a level.

func listPushBack(p *OrderPool, l *PriceLevel, idx uint32) {
	node := p.At(idx)
	node.Next = NullIndex
	node.Prev = l.Tail

	if l.Tail != NullIndex {
		p.At(l.Tail).Next = idx
	} else {
		l.Head = idx
	}
	l.Tail = idx
	l.Count++
}

func listRemove(p *OrderPool, l *PriceLevel, idx uint32) {
	node := p.At(idx)

	if node.Prev != NullIndex {
		p.At(node.Prev).Next = node.Next
	} else {
		l.Head = node.Next
	}
	if node.Next != NullIndex {
		p.At(node.Next).Prev = node.Prev
	} else {
		l.Tail = node.Prev
	}
	node.Prev = NullIndex
	node.Next = NullIndex
	l.Count--
}
