package core

import (
	"math/rand/v2"
)

// Sampler provides random sampling for rendering algorithms
// Can be swapped out for deterministic testing or different sampling patterns
type Sampler interface {
	Get1D() float64
	Get2D() Vec2
	Get3D() Vec3
}

// RandomSampler wraps a PCG random generator
type RandomSampler struct {
	random *rand.Rand
}

// NewRandomSampler creates a deterministic sampler from seed
func NewRandomSampler(seed uint64) *RandomSampler {
	return &RandomSampler{random: NewRand(seed, seed)}
}

// NewRand returns a PCG-backed generator. All stochastic components seed
// through here so runs are reproducible.
func NewRand(seed1, seed2 uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed1, seed2))
}

// Get1D returns a random float64 in [0, 1)
func (r *RandomSampler) Get1D() float64 {
	return r.random.Float64()
}

// Get2D returns two random float64 values in [0, 1)
func (r *RandomSampler) Get2D() Vec2 {
	return NewVec2(r.random.Float64(), r.random.Float64())
}

// Get3D returns three random float64 values in [0, 1)
func (r *RandomSampler) Get3D() Vec3 {
	return NewVec3(r.random.Float64(), r.random.Float64(), r.random.Float64())
}

// Shuffle returns a random permutation of [0, n) drawn from sampler
func Shuffle(n int, sampler Sampler) []int {
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	// Fisher-Yates
	for i := n - 1; i > 0; i-- {
		j := int(sampler.Get1D() * float64(i+1))
		if j > i {
			j = i
		}
		perm[i], perm[j] = perm[j], perm[i]
	}
	return perm
}
