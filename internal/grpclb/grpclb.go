// Package grpclb exposes the weighted selector as a gRPC client-side balancer.
//
// Importing the package registers the "weighted_projection" policy. Resolvers
// attach weights to addresses with WithWeight; the policy is then selected
// through the service config:
//
//	grpc.WithDefaultServiceConfig(`{"loadBalancingConfig":[{"weighted_projection":{}}]}`)
package grpclb

import (
	"cmp"
	"slices"

	"github.com/samber/lo"
	grpcbalancer "google.golang.org/grpc/balancer"
	"google.golang.org/grpc/balancer/base"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/resolver"
	"google.golang.org/grpc/status"

	"github.com/Nash0810/weightsel/internal/backend"
	"github.com/Nash0810/weightsel/internal/balancer"
)

// Name is the load balancing policy name
const Name = "weighted_projection"

type weightKey struct{}

// WithWeight returns addr carrying weight for the weighted_projection policy.
// Addresses without a weight count as 1; weight 0 removes the address from selection.
func WithWeight(addr resolver.Address, weight int) resolver.Address {
	addr.BalancerAttributes = addr.BalancerAttributes.WithValue(weightKey{}, weight)
	return addr
}

func weightOf(addr resolver.Address) int {
	if w, ok := addr.BalancerAttributes.Value(weightKey{}).(int); ok {
		return w
	}
	return 1
}

// NewBuilder creates the balancer builder for the weighted_projection policy
func NewBuilder() grpcbalancer.Builder {
	return base.NewBalancerBuilder(Name, &pickerBuilder{}, base.Config{HealthCheck: true})
}

func init() {
	grpcbalancer.Register(NewBuilder())
}

type pickerBuilder struct{}

type readyConn struct {
	subConn grpcbalancer.SubConn
	addr    string
	weight  int
}

func (*pickerBuilder) Build(info base.PickerBuildInfo) grpcbalancer.Picker {
	if len(info.ReadySCs) == 0 {
		return base.NewErrPicker(grpcbalancer.ErrNoSubConnAvailable)
	}

	ready := make([]readyConn, 0, len(info.ReadySCs))
	for sc, sci := range info.ReadySCs {
		weight := weightOf(sci.Address)
		if weight == 0 {
			continue
		}
		ready = append(ready, readyConn{subConn: sc, addr: sci.Address.Addr, weight: weight})
	}
	if len(ready) == 0 {
		return base.NewErrPicker(grpcbalancer.ErrNoSubConnAvailable)
	}

	// Map iteration order is random; sort so equal inputs give equal projections
	slices.SortFunc(ready, func(a, b readyConn) int {
		return cmp.Compare(a.addr, b.addr)
	})

	backends := lo.Map(ready, func(rc readyConn, _ int) backend.Backend {
		return backend.NewBackend(rc.addr, rc.weight)
	})

	selector, err := balancer.New(backends, nil)
	if err != nil {
		return base.NewErrPicker(status.Error(codes.Unavailable, err.Error()))
	}

	return &picker{
		selector: selector,
		subConns: lo.Map(ready, func(rc readyConn, _ int) grpcbalancer.SubConn {
			return rc.subConn
		}),
	}
}

// picker holds subConns at the same indices as the selector's backends
type picker struct {
	selector *balancer.Selector
	subConns []grpcbalancer.SubConn
}

func (p *picker) Pick(grpcbalancer.PickInfo) (grpcbalancer.PickResult, error) {
	idx, err := p.selector.SelectIndex()
	if err != nil {
		return grpcbalancer.PickResult{}, status.Error(codes.Unavailable, err.Error())
	}
	return grpcbalancer.PickResult{SubConn: p.subConns[idx]}, nil
}
