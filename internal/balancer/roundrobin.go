package balancer

import (
	"sync/atomic"
)

// RoundRobin walks the projection in order, one position per call
type RoundRobin struct {
	counter atomic.Uint64 // Next raw index to hand out
}

// NewRoundRobin creates a round-robin algorithm starting at position 0
func NewRoundRobin() *RoundRobin {
	return &RoundRobin{}
}

// NewRoundRobinAt creates a round-robin algorithm starting at start
func NewRoundRobinAt(start uint64) *RoundRobin {
	rr := &RoundRobin{}
	rr.counter.Store(start)
	return rr
}

// Next returns the pre-increment counter value.
// The counter wraps to 0 after math.MaxUint64; it never exhausts.
func (rr *RoundRobin) Next() (uint64, bool) {
	return rr.counter.Add(1) - 1, true
}

// Name returns the strategy name
func (rr *RoundRobin) Name() string {
	return "round-robin"
}
