// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package flockcompute

import "math/rand/v2"

// RandomParticles returns n particles with positions uniform in the domain
// and velocity components uniform in [-maxSpeed, maxSpeed].
func RandomParticles(rng *rand.Rand, n int, maxSpeed float32) []Particle {
	uniform := func() float32 { return rng.Float32()*2 - 1 }
	ps := make([]Particle, n)
	for i := range ps {
		ps[i] = Particle{
			X:  uniform(),
			Y:  uniform(),
			VX: uniform() * maxSpeed,
			VY: uniform() * maxSpeed,
		}
	}
	return ps
}
