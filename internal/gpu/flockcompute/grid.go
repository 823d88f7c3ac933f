// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// CPU versions of clear_hash.wgsl and build_hash.wgsl.

package flockcompute

import (
	"encoding/binary"
	"math"
)

// Grid is the spatial hash in its GPU word layout: GridSize*GridSize cells,
// each CellStride u32 words long. Word 0 of a cell is the occupancy counter,
// words 1..CellCapacity are particle indices.
type Grid []uint32

// NewGrid returns an all-zero grid.
func NewGrid() Grid {
	return make(Grid, GridSize*GridSize*CellStride)
}

// cellCoord maps one position component to a cell coordinate in [0, GridSize).
// Non-finite input lands in cell 0, matching the shader's clamp of an
// undefined float-to-int conversion.
func cellCoord(v float32) int {
	f := math.Floor(float64(v-DomainMin) / CellSize)
	if math.IsNaN(f) || f < 0 {
		return 0
	}
	if f > GridSize-1 {
		return GridSize - 1
	}
	return int(f)
}

// CellOf returns the cell coordinates containing the position (x, y).
func CellOf(x, y float32) (cx, cy int) {
	return cellCoord(x), cellCoord(y)
}

// CellIndex returns the linear cell index of (cx, cy).
func CellIndex(cx, cy int) int {
	return cy*GridSize + cx
}

// Count returns the occupancy counter of a cell.
func (g Grid) Count(cell int) uint32 {
	return g[cell*CellStride]
}

// Slots returns the particle indices stored in a cell.
func (g Grid) Slots(cell int) []uint32 {
	n := min(g.Count(cell), CellCapacity)
	base := cell*CellStride + 1
	return g[base : base+int(n)]
}

// Clear zeroes every cell counter. Stale slot contents are left in place;
// readers never look past the counter.
func (g Grid) Clear() {
	for cell := 0; cell < GridSize*GridSize; cell++ {
		g[cell*CellStride] = 0
	}
}

// Insert appends particle index i to the cell holding (x, y). The shader
// reserves a slot with atomicAdd and gives it back with atomicSub when the
// cell is full, so the counter settles at the capacity and the insertion is
// dropped.
func (g Grid) Insert(i uint32, x, y float32) bool {
	cell := CellIndex(CellOf(x, y))
	base := cell * CellStride
	slot := g[base]
	if slot >= CellCapacity {
		return false
	}
	g[base] = slot + 1
	g[base+1+int(slot)] = i
	return true
}

// Build inserts every particle into the grid in index order. The grid must
// have been cleared first.
func (g Grid) Build(ps []Particle) {
	for i, p := range ps {
		g.Insert(uint32(i), p.X, p.Y)
	}
}

// Bytes returns the grid in the little-endian layout of the hash buffer.
func (g Grid) Bytes() []byte {
	out := make([]byte, len(g)*4)
	for i, w := range g {
		binary.LittleEndian.PutUint32(out[i*4:], w)
	}
	return out
}
