// Package vector provides distance helpers and exact nearest-neighbour search over small corpora.
package vector

import "math"

// L2Distance returns the Euclidean distance between a and b. Both must have the same length.
func L2Distance(a, b []float32) float64 {
	return math.Sqrt(SquaredL2Distance(a, b))
}

// SquaredL2Distance returns the squared Euclidean distance between a and b. Ranking by it
// is equivalent to ranking by L2Distance.
func SquaredL2Distance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

// L2Norm returns the L2 norm of a vector.
func L2Norm(x []float32) float64 {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}
