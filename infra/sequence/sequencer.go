package sequence

import "sync/atomic"

// Sequencer generates strictly monotonic sequence IDs. The journal
// keys captured events with it, and the gateway falls back to it when
// an inbound frame carries no timestamp.
type Sequencer struct {
	next atomic.Uint64
}

// New creates a sequencer starting from a given value.
func New(start uint64) *Sequencer {
	s := &Sequencer{}
	s.next.Store(start)
	return s
}

// Next returns the next global sequence ID.
func (s *Sequencer) Next() uint64 {
	return s.next.Add(1)
}

// Current returns the last issued sequence.
func (s *Sequencer) Current() uint64 {
	return s.next.Load()
}

// Reset sets the sequencer to a specific value.
func (s *Sequencer) Reset(v uint64) {
	s.next.Store(v)
}
