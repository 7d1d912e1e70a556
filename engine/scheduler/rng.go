package scheduler

import "math/rand"

// countingSource counts every value drawn from the underlying source.
type countingSource struct {
	src rand.Source
	n   int64
}

func (c *countingSource) Int63() int64 {
	c.n++
	return c.src.Int63()
}

func (c *countingSource) Seed(seed int64) {
	c.src.Seed(seed)
	c.n = 0
}

// RNG wraps math/rand.Rand with deterministic position tracking. The
// position is the number of values drawn from the source, so a seed and a
// position reproduce the stream exactly.
type RNG struct {
	seed int64
	src  *countingSource
	rand *rand.Rand
}

// NewRNG creates a new deterministic RNG from a seed.
func NewRNG(seed int64) *RNG {
	src := &countingSource{src: rand.NewSource(seed)}
	return &RNG{seed: seed, src: src, rand: rand.New(src)}
}

// Roll returns a uniformly distributed integer in [1, sides].
func (r *RNG) Roll(sides int) int {
	return int(r.rand.Int63n(int64(sides))) + 1
}

// Chance returns true with the given percent probability. 100 or more
// always succeeds without consuming a value.
func (r *RNG) Chance(percent int) bool {
	if percent >= 100 {
		return true
	}
	if percent <= 0 {
		return false
	}
	return r.Roll(100) <= percent
}

// Seed returns the seed the RNG was created with.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Position returns the number of values drawn since creation.
func (r *RNG) Position() int64 {
	return r.src.n
}

// RestoreRNG creates an RNG and advances it to the given position.
func RestoreRNG(seed int64, position int64) *RNG {
	rng := NewRNG(seed)
	for rng.src.n < position {
		rng.src.Int63()
	}
	return rng
}
