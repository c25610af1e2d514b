package obs

import (
	"sync/atomic"
	"time"
)

// Sequencer hands out monotonically increasing numbers, used for WAL
// sequence numbers and trace ids.
type Sequencer struct {
	last atomic.Uint64
}

// NewSequencer returns a sequencer whose first Next is after+1. A zero
// after seeds from the wall clock so trace ids differ across runs.
func NewSequencer(after uint64, wallClockSeed bool) *Sequencer {
	s := &Sequencer{}
	if after == 0 && wallClockSeed {
		after = uint64(time.Now().UTC().UnixNano())
	}
	s.last.Store(after)
	return s
}

// Next returns the next number.
func (s *Sequencer) Next() uint64 {
	if s == nil {
		return 0
	}
	return s.last.Add(1)
}

// Last returns the last number handed out.
func (s *Sequencer) Last() uint64 {
	if s == nil {
		return 0
	}
	return s.last.Load()
}
