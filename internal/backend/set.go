package backend

// Set is an immutable ordered collection of backends.
// Indices 0..Len()-1 are stable for the lifetime of the set, so a Set
// may be shared across goroutines without locking.
type Set struct {
	backends    []Backend
	totalWeight int
}

// NewSet validates backends and freezes a private copy of them.
// It fails with ErrEmptyBackendSet, ErrIndexOverflow, ErrInvalidWeight or
// ErrWeightOverflow and never returns a partial set.
func NewSet(backends []Backend) (*Set, error) {
	if len(backends) == 0 {
		return nil, ErrEmptyBackendSet
	}
	if len(backends) > MaxBackends {
		return nil, &OverflowError{Count: len(backends), Max: MaxBackends}
	}

	total := 0
	for i, b := range backends {
		if !b.Valid() {
			return nil, &WeightError{Index: i, Value: b.Value, Weight: b.Weight}
		}
		// Compare against the remaining room so the sum itself cannot overflow
		if b.Weight > MaxTotalWeight-total {
			return nil, &WeightOverflowError{Index: i, Value: b.Value, Weight: b.Weight, Max: MaxTotalWeight}
		}
		total += b.Weight
	}

	frozen := make([]Backend, len(backends))
	copy(frozen, backends)

	return &Set{
		backends:    frozen,
		totalWeight: total,
	}, nil
}

// Len returns the number of backends
func (s *Set) Len() int {
	return len(s.backends)
}

// At returns the backend stored at index i
func (s *Set) At(i int) Backend {
	return s.backends[i]
}

// Backends returns a copy of the backends in order
func (s *Set) Backends() []Backend {
	out := make([]Backend, len(s.backends))
	copy(out, s.backends)
	return out
}

// TotalWeight returns the sum of all backend weights
func (s *Set) TotalWeight() int {
	return s.totalWeight
}
