package balancer

import (
	"errors"
	"fmt"

	"github.com/Nash0810/weightsel/internal/backend"
)

// ErrAlgorithmExhausted is returned by Select when the algorithm has no further values
var ErrAlgorithmExhausted = errors.New("balancer: selection algorithm exhausted")

// ExhaustedError names the strategy that stopped producing indices
type ExhaustedError struct {
	Strategy string
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("balancer: selection algorithm %q exhausted", e.Strategy)
}

func (e *ExhaustedError) Unwrap() error {
	return ErrAlgorithmExhausted
}

// Option configures a Selector
type Option func(*Selector)

// WithLayout sets the projection layout (Contiguous by default).
// New fails with ErrUnknownLayout for any other value.
func WithLayout(layout Layout) Option {
	return func(s *Selector) {
		s.layout = layout
	}
}

// Selector picks backends in proportion to their weights.
//
// The backend set and projection are built once in New and only read
// afterwards; the algorithm is the only mutable state. Select is safe
// for concurrent use.
//
//	backends   = [(0,1), (1,2), (2,3)]
//	projection = [0, 1, 1, 2, 2, 2]
//	round robin yields 0, 1, 1, 2, 2, 2, 0, 1, 1, ...
type Selector struct {
	set        *backend.Set
	projection []uint16
	algorithm  Algorithm
	layout     Layout
	exhausted  *ExhaustedError // Returned as-is so Select never allocates
}

// New validates backends, builds the weight projection and binds algorithm.
// A nil algorithm gets a fresh RoundRobin. The same algorithm may be shared
// by several selectors.
func New(backends []backend.Backend, algorithm Algorithm, opts ...Option) (*Selector, error) {
	set, err := backend.NewSet(backends)
	if err != nil {
		return nil, err
	}

	if algorithm == nil {
		algorithm = NewRoundRobin()
	}

	s := &Selector{
		set:       set,
		algorithm: algorithm,
		layout:    Contiguous,
		exhausted: &ExhaustedError{Strategy: algorithm.Name()},
	}
	for _, opt := range opts {
		opt(s)
	}
	if !s.layout.valid() {
		return nil, fmt.Errorf("%w %d", ErrUnknownLayout, int(s.layout))
	}

	s.projection = project(set, s.layout)
	return s, nil
}

// SelectIndex returns the index of the next backend
func (s *Selector) SelectIndex() (int, error) {
	raw, ok := s.algorithm.Next()
	if !ok {
		return 0, s.exhausted
	}

	// projection is never empty, the set has at least one backend of weight >= 1
	return int(s.projection[raw%uint64(len(s.projection))]), nil
}

// Select returns the next backend
func (s *Selector) Select() (backend.Backend, error) {
	idx, err := s.SelectIndex()
	if err != nil {
		return backend.Backend{}, err
	}
	return s.set.At(idx), nil
}

// Len returns the number of backends
func (s *Selector) Len() int {
	return s.set.Len()
}

// Backend returns the backend at index i
func (s *Selector) Backend(i int) backend.Backend {
	return s.set.At(i)
}

// Backends returns a copy of the backend set in order
func (s *Selector) Backends() []backend.Backend {
	return s.set.Backends()
}

// Projection returns a copy of the weight projection
func (s *Selector) Projection() []uint16 {
	out := make([]uint16, len(s.projection))
	copy(out, s.projection)
	return out
}

// ProjectionLen returns the projection length, equal to TotalWeight
func (s *Selector) ProjectionLen() int {
	return len(s.projection)
}

// TotalWeight returns the sum of all backend weights
func (s *Selector) TotalWeight() int {
	return s.set.TotalWeight()
}

// Strategy returns the name of the selection algorithm
func (s *Selector) Strategy() string {
	return s.algorithm.Name()
}

// Layout returns the projection layout
func (s *Selector) Layout() Layout {
	return s.layout
}
