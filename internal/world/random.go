package world

import (
	"math/rand/v2"

	"github.com/jakecoffman/cp"
)

// dice returns a value in [0, n).
func dice(rng *rand.Rand, n int) int {
	if n <= 0 {
		return 0
	}
	return rng.IntN(n)
}

func oneOf[T any](rng *rand.Rand, xs ...T) T {
	return xs[dice(rng, len(xs))]
}

// pointIn returns a uniform point inside bb shrunk by margin.
func pointIn(rng *rand.Rand, bb cp.BB, margin float64) cp.Vector {
	return cp.Vector{
		X: bb.L + margin + rng.Float64()*max(bb.R-bb.L-2*margin, 0),
		Y: bb.B + margin + rng.Float64()*max(bb.T-bb.B-2*margin, 0),
	}
}
