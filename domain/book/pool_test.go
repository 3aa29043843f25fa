package book

import "testing"

func TestPoolAllocateFree(t *testing.T) {
	p := NewOrderPool(4)
	if p.Capacity() != 4 || p.FreeCount() != 4 {
		t.Fatalf("fresh pool: capacity=%d free=%d", p.Capacity(), p.FreeCount())
	}

	a := p.Allocate()
	b := p.Allocate()
	if a == b {
		t.Fatal("Allocate returned the same slot twice")
	}
	if p.Used() != 2 {
		t.Errorf("used = %d, want 2", p.Used())
	}

	p.At(a).Qty = 42
	p.Free(a)
	if p.At(a).Qty != 0 {
		t.Error("Free must zero the slot")
	}
	if p.FreeCount() != 3 {
		t.Errorf("free = %d, want 3", p.FreeCount())
	}
}

func TestPoolGrows(t *testing.T) {
	p := NewOrderPool(2)
	seen := map[uint32]bool{}
	for i := 0; i < 10; i++ {
		idx := p.Allocate()
		if seen[idx] {
			t.Fatalf("slot %d handed out twice", idx)
		}
		seen[idx] = true
	}
	if p.Capacity() < 10 {
		t.Errorf("capacity = %d after 10 allocations", p.Capacity())
	}
}

func TestPoolReset(t *testing.T) {
	p := NewOrderPool(8)
	for i := 0; i < 8; i++ {
		p.Allocate()
	}
	if p.FreeCount() != 0 {
		t.Fatal("expected exhausted pool")
	}
	p.Reset()
	if p.FreeCount() != 8 || p.Used() != 0 {
		t.Errorf("after reset: free=%d used=%d", p.FreeCount(), p.Used())
	}
}

func TestListFIFOOrder(t *testing.T) {
	p := NewOrderPool(8)
	var level PriceLevel
	level.reset()

	var idxs []uint32
	for i := 0; i < 3; i++ {
		idx := p.Allocate()
		p.At(idx).ID = uint64(i + 1)
		listPushBack(p, &level, idx)
		idxs = append(idxs, idx)
	}
	if level.Count != 3 {
		t.Fatalf("count = %d, want 3", level.Count)
	}

	// Remove the middle node; head and tail must survive.
	listRemove(p, &level, idxs[1])
	if level.Head != idxs[0] || level.Tail != idxs[2] {
		t.Errorf("head/tail = %d/%d, want %d/%d", level.Head, level.Tail, idxs[0], idxs[2])
	}
	if p.At(idxs[0]).Next != idxs[2] || p.At(idxs[2]).Prev != idxs[0] {
		t.Error("links not spliced around removed node")
	}

	listRemove(p, &level, idxs[0])
	listRemove(p, &level, idxs[2])
	if !level.empty() || level.Count != 0 {
		t.Error("level should be empty")
	}
}
