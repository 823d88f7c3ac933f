// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package flockcompute

import "github.com/go-gl/mathgl/mgl32"

// TriangleVertices returns the three clip-space vertices drawn for p: the tip
// one size ahead along the heading and two base corners half a size behind
// and to the sides. Horizontal offsets are divided by aspect (width/height)
// so the triangle keeps its shape on non-square surfaces. A particle at rest
// points up.
func TriangleVertices(p Particle, size, aspect float32) [3]mgl32.Vec2 {
	heading := mgl32.Vec2{0, 1}
	if v := (mgl32.Vec2{p.VX, p.VY}); v.Len() > 0 {
		heading = v.Normalize()
	}
	side := mgl32.Vec2{-heading[1], heading[0]}

	offsets := [3]mgl32.Vec2{
		heading.Mul(size),
		heading.Mul(-size / 2).Add(side.Mul(size / 2)),
		heading.Mul(-size / 2).Sub(side.Mul(size / 2)),
	}

	if aspect <= 0 {
		aspect = 1
	}
	var out [3]mgl32.Vec2
	for k, off := range offsets {
		out[k] = mgl32.Vec2{p.X + off[0]/aspect, p.Y + off[1]}
	}
	return out
}
