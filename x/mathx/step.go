package mathx

import "golang.org/x/exp/constraints"

// FloorStep rounds v down to a multiple of step. Negative v rounds toward
// zero. A non-positive step returns v unchanged.
func FloorStep[T constraints.Integer](v, step T) T {
	if step <= 0 {
		return v
	}
	return v - v%step
}
