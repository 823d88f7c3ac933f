package boids

import (
	"math/rand/v2"

	"github.com/gogpu/boids/internal/gpu/flockcompute"
)

// Particle is one boid: position in [-1, 1]² and velocity per frame.
type Particle = flockcompute.Particle

// Stats summarizes a particle set.
type Stats = flockcompute.Stats

// RandomParticles returns n particles with uniform positions over the domain
// and velocity components uniform in [-maxSpeed, maxSpeed].
func RandomParticles(rng *rand.Rand, n int, maxSpeed float32) []Particle {
	return flockcompute.RandomParticles(rng, n, maxSpeed)
}

// Summarize computes centroid, speed and bounds statistics for ps.
func Summarize(ps []Particle) Stats {
	return flockcompute.Summarize(ps)
}
