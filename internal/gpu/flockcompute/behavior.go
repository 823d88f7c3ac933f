// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// CPU version of behavior.wgsl: neighbour steering read from the spatial
// hash, speed clamp, integration and wall handling.

package flockcompute

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Steering holds the per-rule velocity contributions for one particle.
// Each field is already scaled by its rule's force parameter.
type Steering struct {
	Separation mgl32.Vec2
	Alignment  mgl32.Vec2
	Cohesion   mgl32.Vec2
	Edge       mgl32.Vec2
}

// Total returns the sum of all contributions.
func (s Steering) Total() mgl32.Vec2 {
	return s.Separation.Add(s.Alignment).Add(s.Cohesion).Add(s.Edge)
}

// clampLen scales v down so its length does not exceed limit.
func clampLen(v mgl32.Vec2, limit float32) mgl32.Vec2 {
	l := v.Len()
	if l > limit && l > 0 {
		return v.Mul(limit / l)
	}
	return v
}

// steer returns the Reynolds steering vector toward dir: the desired
// velocity at max speed minus the current velocity, clamped to the max
// steering force. A zero direction yields zero.
func steer(dir, vel mgl32.Vec2, b Behavior) mgl32.Vec2 {
	l := dir.Len()
	if l == 0 {
		return mgl32.Vec2{}
	}
	desired := dir.Mul(b.MaxSpeed / l)
	return clampLen(desired.Sub(vel), b.MaxSteeringForce)
}

// edgePush returns the inward push on one axis for a coordinate within
// EdgeMargin of a wall.
func edgePush(v float32, b Behavior) float32 {
	strength := b.EdgeAvoidanceForce * b.MaxSpeed
	if d := v - (DomainMin + EdgeMargin); d < 0 {
		return strength * min(-d/EdgeMargin, 1)
	}
	if d := v - (DomainMax - EdgeMargin); d > 0 {
		return -strength * min(d/EdgeMargin, 1)
	}
	return 0
}

// Steer computes the steering contributions for particle i. Neighbours are
// read only from the 3x3 block of grid cells around the particle's cell;
// the particle set is never scanned directly.
func Steer(i int, ps []Particle, g Grid, b Behavior) Steering {
	self := ps[i]
	pos := mgl32.Vec2{self.X, self.Y}
	vel := mgl32.Vec2{self.VX, self.VY}

	var (
		away       mgl32.Vec2
		awayCount  int
		velSum     mgl32.Vec2
		centerSum  mgl32.Vec2
		neighbours int
	)

	cx, cy := CellOf(self.X, self.Y)
	for y := max(cy-1, 0); y <= min(cy+1, GridSize-1); y++ {
		for x := max(cx-1, 0); x <= min(cx+1, GridSize-1); x++ {
			for _, j := range g.Slots(CellIndex(x, y)) {
				if int(j) == i || int(j) >= len(ps) {
					continue
				}
				other := ps[j]
				opos := mgl32.Vec2{other.X, other.Y}
				delta := pos.Sub(opos)
				dist := delta.Len()

				if dist > 0 && dist < b.MaxSeparationDistance {
					away = away.Add(delta.Mul(1 / dist))
					awayCount++
				}
				if dist < b.VisualRange {
					velSum = velSum.Add(mgl32.Vec2{other.VX, other.VY})
					centerSum = centerSum.Add(opos)
					neighbours++
				}
			}
		}
	}

	var s Steering
	if awayCount > 0 {
		s.Separation = steer(away, vel, b).Mul(b.SeparationForce)
	}
	if neighbours > 0 {
		n := float32(neighbours)
		s.Alignment = steer(velSum.Mul(1/n), vel, b).Mul(b.AlignmentForce)
		s.Cohesion = steer(centerSum.Mul(1/n).Sub(pos), vel, b).Mul(b.CohesionForce)
	}
	s.Edge = mgl32.Vec2{edgePush(self.X, b), edgePush(self.Y, b)}
	return s
}

// Integrate applies the steering to p: the new velocity is clamped to the
// max speed, the position advances by it, and a position past a wall is
// clamped to the wall with that velocity component turned inward.
func Integrate(p Particle, s Steering, b Behavior) Particle {
	vel := clampLen(mgl32.Vec2{p.VX, p.VY}.Add(s.Total()), b.MaxSpeed)
	pos := mgl32.Vec2{p.X, p.Y}.Add(vel)

	for axis := 0; axis < 2; axis++ {
		switch {
		case pos[axis] < DomainMin:
			pos[axis] = DomainMin
			if vel[axis] < 0 {
				vel[axis] = -vel[axis]
			}
		case pos[axis] > DomainMax:
			pos[axis] = DomainMax
			if vel[axis] > 0 {
				vel[axis] = -vel[axis]
			}
		}
	}
	return Particle{X: pos[0], Y: pos[1], VX: vel[0], VY: vel[1]}
}
