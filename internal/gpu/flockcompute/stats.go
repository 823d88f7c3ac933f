// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package flockcompute

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Stats summarizes a particle set.
type Stats struct {
	Count       int
	CentroidX   float64
	CentroidY   float64
	MeanSpeed   float64
	SpeedStdDev float64

	// MaxAbsCoord is the largest |x| or |y| over all particles. Values above
	// DomainMax mean a particle left the domain.
	MaxAbsCoord float64
}

// Summarize computes Stats for ps. An empty set yields the zero Stats.
func Summarize(ps []Particle) Stats {
	if len(ps) == 0 {
		return Stats{}
	}
	xs := make([]float64, len(ps))
	ys := make([]float64, len(ps))
	speeds := make([]float64, len(ps))
	coords := make([]float64, 0, 2*len(ps))
	for i, p := range ps {
		xs[i] = float64(p.X)
		ys[i] = float64(p.Y)
		speeds[i] = math.Hypot(float64(p.VX), float64(p.VY))
		coords = append(coords, math.Abs(xs[i]), math.Abs(ys[i]))
	}

	s := Stats{
		Count:       len(ps),
		CentroidX:   stat.Mean(xs, nil),
		CentroidY:   stat.Mean(ys, nil),
		MeanSpeed:   stat.Mean(speeds, nil),
		MaxAbsCoord: floats.Max(coords),
	}
	if len(ps) > 1 {
		s.SpeedStdDev = stat.StdDev(speeds, nil)
	}
	return s
}
