package testutil

import (
	"math"
	"math/rand"
	"sync"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Uint64 returns a pseudo-random uint64.
func (r *RNG) Uint64() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Uint64()
}

// UniformViews generates a day vector with views uniform in [0, maxViews).
func (r *RNG) UniformViews(n int, maxViews uint64) []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	views := make([]uint64, n)
	for i := range views {
		views[i] = uint64(r.rand.Int63n(int64(maxViews)))
	}
	return views
}

// ZipfViews generates a day vector with a power-law view distribution:
// article ranks are shuffled, then rank k receives maxViews/k^s views.
// s=1.0 gives standard Zipf, s=1.5 a heavier tail. Real pageview traffic
// is distributed this way, so fixtures built from it stress the same
// top-K and scatter paths production data does.
func (r *RNG) ZipfViews(n int, s float64, maxViews uint64) []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	views := make([]uint64, n)
	perm := r.rand.Perm(n)
	for rank, i := range perm {
		views[i] = uint64(float64(maxViews) / math.Pow(float64(rank+1), s))
	}
	return views
}

// Spike copies views and multiplies the entries at the given indices,
// simulating a trending event between a baseline and an impact range.
func Spike(views []uint64, factor uint64, indices ...int) []uint64 {
	out := make([]uint64, len(views))
	copy(out, views)
	for _, i := range indices {
		out[i] *= factor
	}
	return out
}
