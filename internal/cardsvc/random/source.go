// Package random provides the randomness used to draw templates and roll stats.
package random

import (
	"math/rand/v2"
)

// Source yields uniform integers in [0, n). Implementations may panic when n <= 0.
type Source interface {
	IntN(n int) int
}

type globalSource struct{}

// New returns a Source backed by the runtime-seeded global generator. It is
// safe for concurrent use.
func New() Source {
	return globalSource{}
}

func (globalSource) IntN(n int) int {
	return rand.IntN(n)
}

// NewSeeded returns a deterministic Source. It is not safe for concurrent use.
func NewSeeded(seed uint64) Source {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// IntRange returns a uniform integer in the inclusive range [lo, hi].
func IntRange(src Source, lo, hi int) int {
	return lo + src.IntN(hi-lo+1)
}
