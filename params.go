package boids

import (
	"fmt"
	"math"

	"github.com/gogpu/boids/internal/gpu/flockcompute"
)

// Params is the full set of user-tunable simulation parameters. It has two
// groups that are uploaded independently: the render shape (TriangleSize)
// and the behavior forces (all other fields).
type Params struct {
	// TriangleSize is the render size of one particle in clip space units.
	TriangleSize float32

	MaxSpeed              float32
	MaxSteeringForce      float32
	EdgeAvoidanceForce    float32
	SeparationForce       float32
	MaxSeparationDistance float32
	AlignmentForce        float32
	CohesionForce         float32
	VisualRange           float32
}

// DefaultParams returns the tuned defaults.
func DefaultParams() Params {
	b := flockcompute.DefaultBehavior()
	return Params{
		TriangleSize:          flockcompute.DefaultTriangleSize,
		MaxSpeed:              b.MaxSpeed,
		MaxSteeringForce:      b.MaxSteeringForce,
		EdgeAvoidanceForce:    b.EdgeAvoidanceForce,
		SeparationForce:       b.SeparationForce,
		MaxSeparationDistance: b.MaxSeparationDistance,
		AlignmentForce:        b.AlignmentForce,
		CohesionForce:         b.CohesionForce,
		VisualRange:           b.VisualRange,
	}
}

func (p Params) behavior() flockcompute.Behavior {
	return flockcompute.Behavior{
		MaxSpeed:              p.MaxSpeed,
		MaxSteeringForce:      p.MaxSteeringForce,
		EdgeAvoidanceForce:    p.EdgeAvoidanceForce,
		SeparationForce:       p.SeparationForce,
		MaxSeparationDistance: p.MaxSeparationDistance,
		AlignmentForce:        p.AlignmentForce,
		CohesionForce:         p.CohesionForce,
		VisualRange:           p.VisualRange,
	}
}

func finite(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Validate reports the first out-of-range field. Every value must be finite
// and non-negative; TriangleSize and MaxSpeed must be positive.
func (p Params) Validate() error {
	fields := []struct {
		name     string
		v        float32
		positive bool
	}{
		{"TriangleSize", p.TriangleSize, true},
		{"MaxSpeed", p.MaxSpeed, true},
		{"MaxSteeringForce", p.MaxSteeringForce, false},
		{"EdgeAvoidanceForce", p.EdgeAvoidanceForce, false},
		{"SeparationForce", p.SeparationForce, false},
		{"MaxSeparationDistance", p.MaxSeparationDistance, false},
		{"AlignmentForce", p.AlignmentForce, false},
		{"CohesionForce", p.CohesionForce, false},
		{"VisualRange", p.VisualRange, false},
	}
	for _, f := range fields {
		switch {
		case !finite(f.v):
			return fmt.Errorf("%w: %s is %v", ErrInvalidParams, f.name, f.v)
		case f.v < 0:
			return fmt.Errorf("%w: %s must not be negative, got %v", ErrInvalidParams, f.name, f.v)
		case f.positive && f.v == 0:
			return fmt.Errorf("%w: %s must be positive", ErrInvalidParams, f.name)
		}
	}
	return nil
}

// ParamUpdate is one change to a parameter group. The implementations are
// RenderShapeUpdate and BehaviorUpdate.
type ParamUpdate interface {
	apply(p *Params)
	paramUpdate()
}

// RenderShapeUpdate replaces the render shape group.
type RenderShapeUpdate struct {
	TriangleSize float32
}

func (RenderShapeUpdate) paramUpdate() {}

func (u RenderShapeUpdate) apply(p *Params) { p.TriangleSize = u.TriangleSize }

// BehaviorUpdate changes any subset of the behavior group. Nil fields keep
// their current value.
//
//	c.SetParameters(boids.BehaviorUpdate{CohesionForce: boids.Set(0.02)})
type BehaviorUpdate struct {
	MaxSpeed              *float32
	MaxSteeringForce      *float32
	EdgeAvoidanceForce    *float32
	SeparationForce       *float32
	MaxSeparationDistance *float32
	AlignmentForce        *float32
	CohesionForce         *float32
	VisualRange           *float32
}

func (BehaviorUpdate) paramUpdate() {}

func (u BehaviorUpdate) apply(p *Params) {
	pairs := []struct {
		src *float32
		dst *float32
	}{
		{u.MaxSpeed, &p.MaxSpeed},
		{u.MaxSteeringForce, &p.MaxSteeringForce},
		{u.EdgeAvoidanceForce, &p.EdgeAvoidanceForce},
		{u.SeparationForce, &p.SeparationForce},
		{u.MaxSeparationDistance, &p.MaxSeparationDistance},
		{u.AlignmentForce, &p.AlignmentForce},
		{u.CohesionForce, &p.CohesionForce},
		{u.VisualRange, &p.VisualRange},
	}
	for _, f := range pairs {
		if f.src != nil {
			*f.dst = *f.src
		}
	}
}

// Set returns a pointer to v, for filling BehaviorUpdate fields.
func Set(v float32) *float32 { return &v }
