package grpclb

import (
	"errors"
	"testing"

	grpcbalancer "google.golang.org/grpc/balancer"
	"google.golang.org/grpc/balancer/base"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/resolver"
	"google.golang.org/grpc/status"
)

// testSubConn is a SubConn stand-in identified by its address
type testSubConn struct {
	grpcbalancer.SubConn
	addr string
}

func buildInfo(weights map[string]int) (base.PickerBuildInfo, map[string]*testSubConn) {
	conns := make(map[string]*testSubConn)
	ready := make(map[grpcbalancer.SubConn]base.SubConnInfo)
	for addr, w := range weights {
		sc := &testSubConn{addr: addr}
		conns[addr] = sc
		a := resolver.Address{Addr: addr}
		if w >= 0 {
			a = WithWeight(a, w)
		}
		ready[sc] = base.SubConnInfo{Address: a}
	}
	return base.PickerBuildInfo{ReadySCs: ready}, conns
}

func pickAddr(t *testing.T, p grpcbalancer.Picker) string {
	t.Helper()
	res, err := p.Pick(grpcbalancer.PickInfo{FullMethodName: "/test.Service/Call"})
	if err != nil {
		t.Fatalf("Pick failed: %v", err)
	}
	return res.SubConn.(*testSubConn).addr
}

// TestRegistered verifies the policy is available by name
func TestRegistered(t *testing.T) {
	if grpcbalancer.Get(Name) == nil {
		t.Errorf("Balancer %q should be registered", Name)
	}
}

// TestPickerDistribution verifies picks follow address weights
func TestPickerDistribution(t *testing.T) {
	info, _ := buildInfo(map[string]int{
		"10.0.0.1:50051": 3,
		"10.0.0.2:50051": 1,
	})
	p := (&pickerBuilder{}).Build(info)

	counts := make(map[string]int)
	for i := 0; i < 40; i++ {
		counts[pickAddr(t, p)]++
	}

	if counts["10.0.0.1:50051"] != 30 || counts["10.0.0.2:50051"] != 10 {
		t.Errorf("Expected 30/10 split, got %v", counts)
	}
}

// TestPickerDeterministicOrder verifies the first cycle follows sorted addresses
func TestPickerDeterministicOrder(t *testing.T) {
	info, _ := buildInfo(map[string]int{
		"c:1": 1,
		"a:1": 2,
		"b:1": 1,
	})
	p := (&pickerBuilder{}).Build(info)

	want := []string{"a:1", "a:1", "b:1", "c:1"}
	for i, w := range want {
		if got := pickAddr(t, p); got != w {
			t.Errorf("Pick %d: expected %s, got %s", i, w, got)
		}
	}
}

// TestPickerDefaultWeight verifies addresses without a weight count once
func TestPickerDefaultWeight(t *testing.T) {
	info, _ := buildInfo(map[string]int{
		"a:1": -1, // no weight attribute
		"b:1": 1,
	})
	p := (&pickerBuilder{}).Build(info)

	counts := make(map[string]int)
	for i := 0; i < 10; i++ {
		counts[pickAddr(t, p)]++
	}
	if counts["a:1"] != 5 || counts["b:1"] != 5 {
		t.Errorf("Expected even split, got %v", counts)
	}
}

// TestPickerZeroWeightExcluded verifies weight 0 removes an address
func TestPickerZeroWeightExcluded(t *testing.T) {
	info, _ := buildInfo(map[string]int{
		"a:1": 0,
		"b:1": 2,
	})
	p := (&pickerBuilder{}).Build(info)

	for i := 0; i < 6; i++ {
		if got := pickAddr(t, p); got != "b:1" {
			t.Fatalf("Pick %d: expected b:1, got %s", i, got)
		}
	}
}

// TestPickerNoReadySubConns verifies an empty or all-excluded set asks gRPC to wait
func TestPickerNoReadySubConns(t *testing.T) {
	for _, weights := range []map[string]int{{}, {"a:1": 0}} {
		info, _ := buildInfo(weights)
		p := (&pickerBuilder{}).Build(info)

		_, err := p.Pick(grpcbalancer.PickInfo{})
		if !errors.Is(err, grpcbalancer.ErrNoSubConnAvailable) {
			t.Errorf("Expected ErrNoSubConnAvailable for %v, got %v", weights, err)
		}
	}
}

// TestPickerInvalidWeight verifies a negative weight fails picks as Unavailable
func TestPickerInvalidWeight(t *testing.T) {
	info, _ := buildInfo(map[string]int{"b:1": 1})
	sc := &testSubConn{addr: "a:1"}
	info.ReadySCs[sc] = base.SubConnInfo{Address: WithWeight(resolver.Address{Addr: "a:1"}, -4)}

	p := (&pickerBuilder{}).Build(info)
	_, err := p.Pick(grpcbalancer.PickInfo{})
	if status.Code(err) != codes.Unavailable {
		t.Errorf("Expected Unavailable, got %v", err)
	}
}
