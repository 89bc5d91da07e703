package balancer

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/Nash0810/weightsel/internal/backend"
)

func weighted(weights ...int) []backend.Backend {
	backends := make([]backend.Backend, len(weights))
	for i, w := range weights {
		backends[i] = backend.NewBackend(strconv.Itoa(i), w)
	}
	return backends
}

func selectValues(t *testing.T, s *Selector, n int) []string {
	t.Helper()
	values := make([]string, n)
	for i := range values {
		b, err := s.Select()
		if err != nil {
			t.Fatalf("Select %d failed: %v", i, err)
		}
		values[i] = b.Value
	}
	return values
}

// TestSelectorWeightedRoundRobin verifies the documented [1,2,3] cycle
func TestSelectorWeightedRoundRobin(t *testing.T) {
	s, err := New(weighted(1, 2, 3), NewRoundRobin())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	got := strings.Join(selectValues(t, s, 7), ",")
	if got != "0,1,1,2,2,2,0" {
		t.Errorf("Expected 0,1,1,2,2,2,0 got %s", got)
	}
}

// TestSelectorAlternates verifies equal weights alternate
func TestSelectorAlternates(t *testing.T) {
	s, err := New(weighted(1, 1), NewRoundRobin())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	got := strings.Join(selectValues(t, s, 6), ",")
	if got != "0,1,0,1,0,1" {
		t.Errorf("Expected 0,1,0,1,0,1 got %s", got)
	}
}

// TestSelectorEmpty verifies construction fails without backends
func TestSelectorEmpty(t *testing.T) {
	s, err := New(nil, NewRoundRobin())
	if !errors.Is(err, backend.ErrEmptyBackendSet) {
		t.Errorf("Expected ErrEmptyBackendSet, got %v", err)
	}
	if s != nil {
		t.Error("No selector should be returned on error")
	}
}

// TestSelectorZeroWeight verifies construction fails on weight 0
func TestSelectorZeroWeight(t *testing.T) {
	s, err := New(weighted(0), NewRoundRobin())
	if !errors.Is(err, backend.ErrInvalidWeight) {
		t.Errorf("Expected ErrInvalidWeight, got %v", err)
	}
	if s != nil {
		t.Error("No selector should be returned on error")
	}
}

// TestSelectorRejectsInvalidInput verifies every construction error path
func TestSelectorRejectsInvalidInput(t *testing.T) {
	overflow := make([]backend.Backend, backend.MaxBackends+1)
	for i := range overflow {
		overflow[i] = backend.NewBackend("b", 1)
	}

	cases := []struct {
		name     string
		backends []backend.Backend
		want     error
	}{
		{"empty", []backend.Backend{}, backend.ErrEmptyBackendSet},
		{"zero weight", weighted(1, 0, 1), backend.ErrInvalidWeight},
		{"negative weight", weighted(2, -3), backend.ErrInvalidWeight},
		{"overflow", overflow, backend.ErrIndexOverflow},
		{"huge weight", weighted(math.MaxInt), backend.ErrWeightOverflow},
		{"weight sum overflow", weighted(math.MaxInt, 2), backend.ErrWeightOverflow},
		{"total past bound", weighted(backend.MaxTotalWeight, 1), backend.ErrWeightOverflow},
	}

	for _, tc := range cases {
		s, err := New(tc.backends, nil)
		if !errors.Is(err, tc.want) {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
		if s != nil {
			t.Errorf("%s: selector returned alongside error", tc.name)
		}
	}
}

// TestSelectorUnknownLayout verifies layouts outside Contiguous and Smooth are rejected
func TestSelectorUnknownLayout(t *testing.T) {
	s, err := New(weighted(1, 2), nil, WithLayout(Layout(7)))
	if !errors.Is(err, ErrUnknownLayout) {
		t.Errorf("Expected ErrUnknownLayout, got %v", err)
	}
	if s != nil {
		t.Error("No selector should be returned on error")
	}

	for _, l := range []Layout{Contiguous, Smooth} {
		s, err := New(weighted(1, 2), nil, WithLayout(l))
		if err != nil {
			t.Fatalf("Layout %s: unexpected error %v", l, err)
		}
		if s.Layout() != l {
			t.Errorf("Expected layout %s, got %s", l, s.Layout())
		}
	}
}

// TestSelectorProportionality verifies exact shares over whole cycles
func TestSelectorProportionality(t *testing.T) {
	weights := []int{5, 1, 3, 7}
	total := 16

	for _, layout := range []Layout{Contiguous, Smooth} {
		s, err := New(weighted(weights...), NewRoundRobin(), WithLayout(layout))
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}

		cycles := 250
		counts := make([]int, len(weights))
		for i := 0; i < total*cycles; i++ {
			idx, err := s.SelectIndex()
			if err != nil {
				t.Fatalf("SelectIndex failed: %v", err)
			}
			counts[idx]++
		}

		for i, w := range weights {
			if counts[i] != w*cycles {
				t.Errorf("%s: backend %d selected %d times, expected %d", layout, i, counts[i], w*cycles)
			}
		}
	}
}

// TestSelectorCyclic verifies calls k and k+L pick the same backend
func TestSelectorCyclic(t *testing.T) {
	s, err := New(weighted(2, 3, 1, 4), NewRoundRobin())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	l := s.ProjectionLen()
	picks := make([]int, 5*l)
	for i := range picks {
		picks[i], _ = s.SelectIndex()
	}

	for k := 0; k+l < len(picks); k++ {
		if picks[k] != picks[k+l] {
			t.Fatalf("Call %d picked %d but call %d picked %d", k, picks[k], k+l, picks[k+l])
		}
	}
}

// TestSelectorRandomProportionality verifies random selection follows weights
func TestSelectorRandomProportionality(t *testing.T) {
	s, err := New(weighted(1, 3), NewRandom())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	counts := make([]int, 2)
	n := 40000
	for i := 0; i < n; i++ {
		idx, err := s.SelectIndex()
		if err != nil {
			t.Fatalf("SelectIndex failed: %v", err)
		}
		counts[idx]++
	}

	// Expected 25% / 75%, allow a generous margin
	share := float64(counts[0]) / float64(n)
	if share < 0.22 || share > 0.28 {
		t.Errorf("Backend 0 share = %.3f, expected ~0.25", share)
	}
}

// TestSelectorExhausted verifies exhaustion is surfaced per call and names the strategy
func TestSelectorExhausted(t *testing.T) {
	s, err := New(weighted(1, 1), Limit(NewRoundRobin(), 3))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := s.Select(); err != nil {
			t.Fatalf("Select %d failed early: %v", i, err)
		}
	}

	_, err = s.Select()
	if !errors.Is(err, ErrAlgorithmExhausted) {
		t.Fatalf("Expected ErrAlgorithmExhausted, got %v", err)
	}

	var eerr *ExhaustedError
	if !errors.As(err, &eerr) || eerr.Strategy != "round-robin" {
		t.Errorf("Error should name the strategy, got %v", err)
	}

	// The selector stays usable for reads after exhaustion
	if s.Len() != 2 || s.ProjectionLen() != 2 {
		t.Error("Selector state changed after exhaustion")
	}
}

// TestSelectorDefaultsToRoundRobin verifies a nil algorithm
func TestSelectorDefaultsToRoundRobin(t *testing.T) {
	s, err := New(weighted(1, 1), nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if s.Strategy() != "round-robin" {
		t.Errorf("Expected round-robin, got %s", s.Strategy())
	}
	if got := strings.Join(selectValues(t, s, 3), ","); got != "0,1,0" {
		t.Errorf("Expected 0,1,0 got %s", got)
	}
}

// TestSelectorSharedAlgorithm verifies two selectors advance one counter
func TestSelectorSharedAlgorithm(t *testing.T) {
	rr := NewRoundRobin()
	a, _ := New(weighted(1, 1, 1), rr)
	b, _ := New(weighted(1, 1, 1), rr)

	ia, _ := a.SelectIndex()
	ib, _ := b.SelectIndex()
	ia2, _ := a.SelectIndex()

	if ia != 0 || ib != 1 || ia2 != 2 {
		t.Errorf("Expected 0,1,2 from shared counter, got %d,%d,%d", ia, ib, ia2)
	}
}

// TestSelectorAccessors verifies read-only views do not alias internal state
func TestSelectorAccessors(t *testing.T) {
	s, err := New(weighted(1, 2, 3), nil, WithLayout(Smooth))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if s.Len() != 3 || s.TotalWeight() != 6 || s.ProjectionLen() != 6 {
		t.Errorf("Unexpected sizes: len=%d total=%d projection=%d", s.Len(), s.TotalWeight(), s.ProjectionLen())
	}
	if s.Layout() != Smooth {
		t.Errorf("Expected smooth layout, got %s", s.Layout())
	}
	if s.Backend(2).Weight != 3 {
		t.Errorf("Expected weight 3, got %d", s.Backend(2).Weight)
	}

	p := s.Projection()
	p[0] = 99
	if s.Projection()[0] == 99 {
		t.Error("Projection() exposes internal slice")
	}

	bs := s.Backends()
	bs[0].Weight = 99
	if s.Backend(0).Weight == 99 {
		t.Error("Backends() exposes internal slice")
	}
}

// TestSelectorConcurrency verifies concurrent callers split whole cycles exactly
func TestSelectorConcurrency(t *testing.T) {
	s, err := New(weighted(1, 2, 3), NewRoundRobin())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	var mu sync.Mutex
	counts := make([]int, 3)
	var wg sync.WaitGroup

	// 20 goroutines x 600 calls = 2000 full cycles of length 6
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]int, 3)
			for j := 0; j < 600; j++ {
				idx, err := s.SelectIndex()
				if err != nil {
					t.Error(err)
					return
				}
				local[idx]++
			}
			mu.Lock()
			for k := range local {
				counts[k] += local[k]
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	for i, want := range []int{2000, 4000, 6000} {
		if counts[i] != want {
			t.Errorf("Backend %d selected %d times, expected %d", i, counts[i], want)
		}
	}
}

// TestSelectDoesNotAllocate verifies the hot path is allocation free
func TestSelectDoesNotAllocate(t *testing.T) {
	s, err := New(weighted(1, 2, 3), NewRoundRobin())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	allocs := testing.AllocsPerRun(1000, func() {
		_, _ = s.Select()
	})
	if allocs != 0 {
		t.Errorf("Select allocated %.1f times per call", allocs)
	}

	exhausted, _ := New(weighted(1), Limit(NewRoundRobin(), 0))
	allocs = testing.AllocsPerRun(1000, func() {
		_, _ = exhausted.Select()
	})
	if allocs != 0 {
		t.Errorf("Exhausted Select allocated %.1f times per call", allocs)
	}
}

// BenchmarkSelect measures a single selection
func BenchmarkSelect(b *testing.B) {
	s, _ := New(weighted(5, 1, 3, 7, 2), NewRoundRobin())
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = s.Select()
	}
}

// BenchmarkSelectParallel measures selection under contention
func BenchmarkSelectParallel(b *testing.B) {
	s, _ := New(weighted(5, 1, 3, 7, 2), NewRoundRobin())
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _ = s.SelectIndex()
		}
	})
}
