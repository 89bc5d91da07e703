package balancer

import (
	"context"
	"fmt"
	"sync/atomic"
)

// Algorithm produces successive raw indices into a weight projection.
//
// Implementations must be safe for concurrent use. The Selector reduces
// every raw index modulo the projection length, so an algorithm needs no
// knowledge of projection size and may return any value in any order.
type Algorithm interface {
	// Next returns the next raw index.
	// ok is false when the algorithm has no further values.
	Next() (idx uint64, ok bool)

	// Name returns the algorithm name
	Name() string
}

// NewAlgorithm creates the algorithm registered under name
func NewAlgorithm(name string) (Algorithm, error) {
	switch name {
	case "round-robin", "":
		return NewRoundRobin(), nil
	case "random":
		return NewRandom(), nil
	default:
		return nil, fmt.Errorf("balancer: unknown strategy %q", name)
	}
}

// limited hands out at most n values from the wrapped algorithm
type limited struct {
	inner     Algorithm
	remaining atomic.Int64
}

// Limit wraps alg so that it exhausts after n successful draws
func Limit(alg Algorithm, n int64) Algorithm {
	l := &limited{inner: alg}
	l.remaining.Store(n)
	return l
}

func (l *limited) Next() (uint64, bool) {
	if l.remaining.Add(-1) < 0 {
		return 0, false
	}
	return l.inner.Next()
}

func (l *limited) Name() string {
	return l.inner.Name()
}

// cancellable stops handing out values once its context is done
type cancellable struct {
	ctx   context.Context
	inner Algorithm
}

// WithContext wraps alg so that it exhausts once ctx is cancelled
func WithContext(ctx context.Context, alg Algorithm) Algorithm {
	return &cancellable{ctx: ctx, inner: alg}
}

func (c *cancellable) Next() (uint64, bool) {
	if c.ctx.Err() != nil {
		return 0, false
	}
	return c.inner.Next()
}

func (c *cancellable) Name() string {
	return c.inner.Name()
}
