package ring

import "testing"

func TestPushPopSingle(t *testing.T) {
	r := New[int](8)
	if !r.Empty() {
		t.Fatal("fresh ring not empty")
	}
	if _, ok := r.TryPop(); ok {
		t.Fatal("pop from empty succeeded")
	}

	if !r.TryPush(42) {
		t.Fatal("push into empty ring failed")
	}
	v, ok := r.TryPop()
	if !ok || v != 42 {
		t.Fatalf("got %d/%v, want 42/true", v, ok)
	}
	if !r.Empty() {
		t.Error("ring not empty after drain")
	}
}

func TestCapacityOneSlotOpen(t *testing.T) {
	r := New[int](8)
	if r.Capacity() != 7 {
		t.Fatalf("capacity = %d, want 7", r.Capacity())
	}
	for i := 0; i < 7; i++ {
		if !r.TryPush(i) {
			t.Fatalf("push %d failed", i)
		}
	}
	if !r.Full() {
		t.Error("ring should be full")
	}
	if r.TryPush(99) {
		t.Error("push into full ring succeeded")
	}
}

func TestBatchShortWriteOnFull(t *testing.T) {
	r := New[int](8)
	src := make([]int, 20)
	for i := range src {
		src[i] = i
	}
	n := r.PushBatch(src)
	if n != 7 {
		t.Fatalf("pushed %d, want 7", n)
	}
	if r.PushBatch(src) != 0 {
		t.Error("push into full ring wrote records")
	}

	dst := make([]int, 20)
	got := r.PopBatch(dst)
	if got != 7 {
		t.Fatalf("popped %d, want 7", got)
	}
	for i := 0; i < got; i++ {
		if dst[i] != i {
			t.Fatalf("dst[%d] = %d", i, dst[i])
		}
	}
}

func TestWrapAround(t *testing.T) {
	r := New[int](8)
	dst := make([]int, 4)
	next := 0
	for round := 0; round < 10; round++ {
		src := []int{next, next + 1, next + 2, next + 3}
		if r.PushBatch(src) != 4 {
			t.Fatalf("round %d: short write", round)
		}
		if r.PopBatch(dst) != 4 {
			t.Fatalf("round %d: short read", round)
		}
		for i, v := range dst {
			if v != next+i {
				t.Fatalf("round %d: dst[%d] = %d, want %d", round, i, v, next+i)
			}
		}
		next += 4
	}
}

func TestSizeApprox(t *testing.T) {
	r := New[int](16)
	for i := 0; i < 5; i++ {
		r.TryPush(i)
	}
	if got := r.SizeApprox(); got != 5 {
		t.Errorf("size = %d, want 5", got)
	}
}

func TestSPSCTransfer(t *testing.T) {
	const total = 1 << 16
	r := New[uint64](1 << 10)

	done := make(chan uint64)
	go func() {
		var sum uint64
		buf := make([]uint64, 128)
		received := 0
		for received < total {
			n := r.PopBatch(buf)
			for i := 0; i < n; i++ {
				sum += buf[i]
			}
			received += n
		}
		done <- sum
	}()

	var want uint64
	for i := uint64(0); i < total; {
		if r.TryPush(i) {
			want += i
			i++
		}
	}
	if got := <-done; got != want {
		t.Errorf("sum = %d, want %d", got, want)
	}
}
