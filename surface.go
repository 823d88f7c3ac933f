package boids

import (
	"context"
	"fmt"
	"image"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/boids/internal/gpu"
)

// Surface is the render target a controller draws into each frame. A window
// host implements it over its swapchain; OffscreenSurface renders into a
// texture.
type Surface interface {
	// Size returns the current size in pixels. The controller derives the
	// aspect ratio from it.
	Size() (w, h int)

	// Format is the color format of the views Acquire returns.
	Format() gputypes.TextureFormat

	// Acquire returns the view to draw the next frame into.
	Acquire() (hal.TextureView, error)

	// Present shows the frame drawn into the last acquired view.
	Present() error
}

// OffscreenSurface is a Surface backed by a single texture. Frames can be
// read back with Snapshot.
type OffscreenSurface struct {
	target *gpu.RenderTarget
	frames uint64
}

// NewOffscreenSurface creates a w x h texture surface on dev. An undefined
// format selects BGRA8Unorm.
func NewOffscreenSurface(dev *Device, w, h int, format gputypes.TextureFormat) (*OffscreenSurface, error) {
	if dev == nil {
		return nil, ErrNoDevice
	}
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("boids: invalid surface size %dx%d", w, h)
	}
	target, err := gpu.NewRenderTarget(dev.device, dev.submitter, uint32(w), uint32(h), format)
	if err != nil {
		return nil, err
	}
	return &OffscreenSurface{target: target}, nil
}

// Size returns the texture size in pixels.
func (s *OffscreenSurface) Size() (w, h int) {
	tw, th := s.target.Size()
	return int(tw), int(th)
}

// Format returns the texture format.
func (s *OffscreenSurface) Format() gputypes.TextureFormat { return s.target.Format() }

// Acquire returns the texture view. It fails with ErrNoSurface after Close.
func (s *OffscreenSurface) Acquire() (hal.TextureView, error) {
	if v := s.target.View(); v != nil {
		return v, nil
	}
	return nil, ErrNoSurface
}

// Present counts the frame. The texture keeps its contents until the next
// frame clears it.
func (s *OffscreenSurface) Present() error {
	s.frames++
	return nil
}

// Frames returns the number of presented frames.
func (s *OffscreenSurface) Frames() uint64 { return s.frames }

// Resize reallocates the texture. The next frame picks up the new aspect
// ratio.
func (s *OffscreenSurface) Resize(w, h int) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("boids: invalid surface size %dx%d", w, h)
	}
	return s.target.Resize(uint32(w), uint32(h))
}

// Snapshot reads the last frame back as RGBA. It waits for every submitted
// frame to complete or ctx to be done.
func (s *OffscreenSurface) Snapshot(ctx context.Context) (*image.RGBA, error) {
	return s.target.Read(ctx)
}

// Close destroys the texture once in-flight frames have completed.
func (s *OffscreenSurface) Close() { s.target.Close() }
