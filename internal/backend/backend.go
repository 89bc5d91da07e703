package backend

import (
	"errors"
	"fmt"
)

const (
	// MaxBackends is the largest set a projection can index with uint16 entries
	MaxBackends = 1 << 16

	// MaxTotalWeight bounds the sum of all weights in a set, and so the
	// projection length (2 bytes per entry, 32 MiB at the limit)
	MaxTotalWeight = 1 << 24
)

var (
	// ErrEmptyBackendSet is returned when a set is built from zero backends
	ErrEmptyBackendSet = errors.New("backend: empty backend set")

	// ErrInvalidWeight is returned when a backend weight is zero or negative
	ErrInvalidWeight = errors.New("backend: invalid weight")

	// ErrIndexOverflow is returned when a set holds more than MaxBackends backends
	ErrIndexOverflow = errors.New("backend: index overflow")

	// ErrWeightOverflow is returned when the weights of a set add up past MaxTotalWeight
	ErrWeightOverflow = errors.New("backend: weight overflow")
)

// Backend is a selectable target: an opaque identifier and its weight
type Backend struct {
	Value  string // Identifier the caller cares about (address, name, id)
	Weight int    // Relative share of selections, must be >= 1
}

// NewBackend creates a backend with the given identifier and weight
func NewBackend(value string, weight int) Backend {
	return Backend{
		Value:  value,
		Weight: weight,
	}
}

// Valid reports whether the backend can take part in selection
func (b Backend) Valid() bool {
	return b.Weight >= 1
}

func (b Backend) String() string {
	return fmt.Sprintf("%s(w=%d)", b.Value, b.Weight)
}

// WeightError identifies the backend that carried an invalid weight
type WeightError struct {
	Index  int
	Value  string
	Weight int
}

func (e *WeightError) Error() string {
	return fmt.Sprintf("backend: invalid weight %d for backend %d (%q): weight must be >= 1",
		e.Weight, e.Index, e.Value)
}

func (e *WeightError) Unwrap() error {
	return ErrInvalidWeight
}

// OverflowError reports a backend count beyond the projection index width
type OverflowError struct {
	Count int
	Max   int
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("backend: index overflow: %d backends exceeds limit of %d", e.Count, e.Max)
}

func (e *OverflowError) Unwrap() error {
	return ErrIndexOverflow
}

// WeightOverflowError identifies the backend whose weight pushed the total past Max
type WeightOverflowError struct {
	Index  int
	Value  string
	Weight int
	Max    int
}

func (e *WeightOverflowError) Error() string {
	return fmt.Sprintf("backend: weight overflow: weight %d for backend %d (%q) brings total weight past %d",
		e.Weight, e.Index, e.Value, e.Max)
}

func (e *WeightOverflowError) Unwrap() error {
	return ErrWeightOverflow
}
