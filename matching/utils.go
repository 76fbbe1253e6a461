package matching

import (
	"math"

	"github.com/LdDl/featrack-go/featrack"
	"gonum.org/v1/gonum/floats"
)

// DescriptorDistance returns euclidean distance between two descriptors.
// Descriptors of different length (or empty ones) are infinitely far apart
func DescriptorDistance(a, b featrack.Descriptor) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}
	return floats.Distance(a, b, 2)
}

// similarity maps distance in [0, +Inf) to score in (0, 1]
func similarity(distance float64) float64 {
	return 1.0 / (1.0 + distance)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
