package balancer

import (
	"errors"
	"fmt"
	"math"

	"github.com/Nash0810/weightsel/internal/backend"
)

// ErrUnknownLayout is returned for a layout other than Contiguous or Smooth
var ErrUnknownLayout = errors.New("balancer: unknown projection layout")

// Layout controls how a backend's occurrences are ordered in the projection.
// Both layouts place exactly Weight occurrences of every backend.
type Layout int

const (
	// Contiguous places each backend's occurrences next to each other
	Contiguous Layout = iota

	// Smooth interleaves occurrences using smooth weighted round robin (Nginx algorithm)
	Smooth
)

// String returns the config name of the layout
func (l Layout) String() string {
	switch l {
	case Contiguous:
		return "contiguous"
	case Smooth:
		return "smooth"
	default:
		return "unknown"
	}
}

// ParseLayout converts a config name into a Layout
func ParseLayout(name string) (Layout, error) {
	switch name {
	case "contiguous", "":
		return Contiguous, nil
	case "smooth":
		return Smooth, nil
	default:
		return Contiguous, fmt.Errorf("%w %q", ErrUnknownLayout, name)
	}
}

// Project expands set into a sequence of backend indices where index i
// appears set.At(i).Weight times, in backend order.
//
//	weights    = [1, 2, 3]
//	projection = [0, 1, 1, 2, 2, 2]
func Project(set *backend.Set) []uint16 {
	projection := make([]uint16, 0, set.TotalWeight())
	for i := 0; i < set.Len(); i++ {
		for w := 0; w < set.At(i).Weight; w++ {
			projection = append(projection, uint16(i))
		}
	}
	return projection
}

// ProjectSmooth builds a projection with the same occurrence counts as
// Project, interleaved so that short runs stay close to the weight ratio.
//
//	weights    = [1, 2, 3]
//	projection = [2, 1, 0, 2, 1, 2]
func ProjectSmooth(set *backend.Set) []uint16 {
	totalWeight := set.TotalWeight()
	projection := make([]uint16, totalWeight)
	currentWeights := make([]int, set.Len())

	for pos := range projection {
		selected := 0
		maxCurrentWeight := math.MinInt

		for i := range currentWeights {
			// Increase current weight by configured weight
			currentWeights[i] += set.At(i).Weight

			// Select backend with highest current weight, first one wins ties
			if currentWeights[i] > maxCurrentWeight {
				maxCurrentWeight = currentWeights[i]
				selected = i
			}
		}

		// Decrease selected backend's current weight by total weight
		currentWeights[selected] -= totalWeight
		projection[pos] = uint16(selected)
	}

	return projection
}

func (l Layout) valid() bool {
	return l == Contiguous || l == Smooth
}

func project(set *backend.Set, layout Layout) []uint16 {
	if layout == Smooth {
		return ProjectSmooth(set)
	}
	return Project(set)
}
