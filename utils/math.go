package utils

import "math"

// DefaultEpsilon is the tolerance used by Float64AlmostEqual callers that have no better one.
const DefaultEpsilon = 1e-9

// Float64AlmostEqual compares two float64s and returns if the difference between them is less
// than epsilon.
func Float64AlmostEqual(a, b, epsilon float64) bool {
	return math.Abs(a-b) < epsilon
}
