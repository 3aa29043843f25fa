package book

import "testing"

// Benchmarks run on the NoLock surface with accepts/cancels suppressed,
// the way the replay driver exercises the engine.

func newBenchBook(poolCap int) *Book {
	return New(Config{
		PoolCapacity:    poolCap,
		PriceLevels:     1 << 16,
		RingSize:        1 << 20,
		SuppressAccepts: true,
		SuppressCancels: true,
	})
}

func BenchmarkAddResting(b *testing.B) {
	bk := newBenchBook(max(b.N, 1<<20))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		// spread across 64 bid ticks, never crossing
		bk.AddNoLock(uint64(i+1), true, int64(1000+i&63), 10, 1)
	}
}

func BenchmarkAddCancel(b *testing.B) {
	bk := newBenchBook(1 << 20)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		id := uint64(i + 1)
		bk.AddNoLock(id, true, int64(1000+i&63), 10, 1)
		bk.CancelNoLock(id)
	}
}

func BenchmarkMatchSweep(b *testing.B) {
	bk := newBenchBook(1 << 20)
	for i := 0; i < 1<<16; i++ {
		bk.AddNoLock(uint64(i+1), false, int64(2000+i&255), 10, 1)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		bk.MatchNoLock(uint64(1<<20+i), true, 2255, 10, 2, IOC)
		if bk.AskLevels() == 0 {
			b.StopTimer()
			bk.ResetNoLock()
			for j := 0; j < 1<<16; j++ {
				bk.AddNoLock(uint64(j+1), false, int64(2000+j&255), 10, 1)
			}
			b.StartTimer()
		}
	}
}

func BenchmarkBestBidLookup(b *testing.B) {
	bk := newBenchBook(1 << 16)
	for i := 0; i < 1<<12; i++ {
		bk.AddNoLock(uint64(i+1), true, int64(1000+i&1023), 10, 1)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if bk.bestBid < 0 {
			b.Fatal("empty book")
		}
	}
}

func BenchmarkDepthSnapshot(b *testing.B) {
	bk := newBenchBook(1 << 16)
	for i := 0; i < 1<<14; i++ {
		if i%2 == 0 {
			bk.AddNoLock(uint64(i+1), true, int64(1000+i&511), 10, 1)
		} else {
			bk.AddNoLock(uint64(i+1), false, int64(2000+i&511), 10, 1)
		}
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		bids, asks := bk.Depth(10)
		if len(bids) == 0 || len(asks) == 0 {
			b.Fatal("empty snapshot")
		}
	}
}
