package balancer

import (
	"math/rand/v2"
)

// Random picks uniformly distributed projection positions.
// Combined with a weight projection this yields weighted random selection.
type Random struct{}

// NewRandom creates a random algorithm
func NewRandom() *Random {
	return &Random{}
}

// Next returns a uniformly random raw index
func (r *Random) Next() (uint64, bool) {
	return rand.Uint64(), true
}

// Name returns the strategy name
func (r *Random) Name() string {
	return "random"
}
