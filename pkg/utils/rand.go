package utils

import (
	"math/rand"
)

// NewRand returns a deterministic RNG for the given seed, or a time-seeded one
// when seed is zero. Design runs record their seed so results can be replayed.
func NewRand(seed int64) *rand.Rand {
	if seed == 0 {
		return rand.New(rand.NewSource(Timestamp()))
	}
	return rand.New(rand.NewSource(seed))
}

// Jitter adds uniform noise in [-amplitude, amplitude] to every element,
// clamping the result into [0, 1]. Used to break symmetry in uniform
// initial density fields.
func Jitter(values []float64, amplitude float64, rng *rand.Rand) {
	if amplitude <= 0 || rng == nil {
		return
	}
	for i := range values {
		values[i] = ClampFloat64(values[i]+amplitude*(2*rng.Float64()-1), 0, 1)
	}
}
