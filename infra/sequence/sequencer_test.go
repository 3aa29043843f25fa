package sequence

import "testing"

func TestSequencerMonotonic(t *testing.T) {
	s := New(0)
	if s.Current() != 0 {
		t.Fatalf("current = %d, want 0", s.Current())
	}
	if s.Next() != 1 || s.Next() != 2 {
		t.Error("Next not monotonic from start")
	}
	s.Reset(100)
	if s.Next() != 101 {
		t.Error("Reset not honoured")
	}
}
