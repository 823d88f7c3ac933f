package main

import (
	"fmt"
	"io"
	"os"

	"github.com/gocarina/gocsv"

	"github.com/gogpu/boids"
)

// particleRecord is one CSV row of the particle dump.
type particleRecord struct {
	Index int     `csv:"index"`
	X     float32 `csv:"x"`
	Y     float32 `csv:"y"`
	VX    float32 `csv:"vx"`
	VY    float32 `csv:"vy"`
}

func writeParticlesCSV(w io.Writer, ps []boids.Particle) error {
	records := make([]*particleRecord, len(ps))
	for i, p := range ps {
		records[i] = &particleRecord{Index: i, X: p.X, Y: p.Y, VX: p.VX, VY: p.VY}
	}
	return gocsv.Marshal(records, w)
}

func saveParticlesCSV(path string, ps []boids.Particle) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("particles csv: %w", err)
	}
	if err := writeParticlesCSV(f, ps); err != nil {
		f.Close()
		return fmt.Errorf("particles csv: %w", err)
	}
	return f.Close()
}
