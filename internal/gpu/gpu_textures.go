package gpu

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// ErrInvalidTargetSize is returned for a zero-sized render target.
var ErrInvalidTargetSize = errors.New("gpu: invalid render target size")

// copyPitchAlignment is the BytesPerRow alignment of texture-to-buffer copies.
const copyPitchAlignment = 256

// RenderTarget is a single-sample color texture that a draw stage renders
// into and that can be read back. Supported formats are BGRA8Unorm and
// RGBA8Unorm.
type RenderTarget struct {
	device    hal.Device
	submitter *Submitter

	tex    hal.Texture
	view   hal.TextureView
	format gputypes.TextureFormat
	width  uint32
	height uint32
}

// NewRenderTarget creates a w×h render target. A replaced texture is
// destroyed once the submitter reports no in-flight work can use it.
func NewRenderTarget(device hal.Device, submitter *Submitter, w, h uint32, format gputypes.TextureFormat) (*RenderTarget, error) {
	if device == nil {
		return nil, ErrNilDevice
	}
	if submitter == nil {
		return nil, ErrNilSubmitter
	}
	if format == gputypes.TextureFormatUndefined {
		format = gputypes.TextureFormatBGRA8Unorm
	}
	t := &RenderTarget{device: device, submitter: submitter, format: format}
	if err := t.ensure(w, h); err != nil {
		return nil, err
	}
	return t, nil
}

// ensure creates or recreates the texture when the size differs from the
// current one. Matching sizes are a no-op.
func (t *RenderTarget) ensure(w, h uint32) error {
	if w == 0 || h == 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidTargetSize, w, h)
	}
	if t.width == w && t.height == h && t.tex != nil {
		return nil
	}
	t.destroy()

	tex, err := t.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "flock_target",
		Size:          hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        t.format,
		Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		return fmt.Errorf("gpu: create render target texture: %w", err)
	}
	t.tex = tex

	view, err := t.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label: "flock_target_view",
	})
	if err != nil {
		t.destroy()
		return fmt.Errorf("gpu: create render target view: %w", err)
	}
	t.view = view

	t.width = w
	t.height = h
	return nil
}

// Resize recreates the texture at the new size. Previous contents are lost.
func (t *RenderTarget) Resize(w, h uint32) error { return t.ensure(w, h) }

// View returns the color attachment view.
func (t *RenderTarget) View() hal.TextureView { return t.view }

// Size returns the target size in pixels.
func (t *RenderTarget) Size() (w, h uint32) { return t.width, t.height }

// Format returns the texture format.
func (t *RenderTarget) Format() gputypes.TextureFormat { return t.format }

// Read copies the target into a staging buffer, waits for completion and
// returns the pixels as RGBA.
func (t *RenderTarget) Read(ctx context.Context) (*image.RGBA, error) {
	if t.tex == nil {
		return nil, fmt.Errorf("%w: target released", ErrInvalidTargetSize)
	}
	w, h := t.width, t.height
	bytesPerRow := w * 4
	alignedBytesPerRow := (bytesPerRow + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1)
	size := uint64(alignedBytesPerRow) * uint64(h)

	staging, err := t.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "flock_target_staging",
		Size:  size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create staging buffer: %w", err)
	}
	defer t.submitter.Defer(func() { t.device.DestroyBuffer(staging) })

	index, err := t.submitter.Record("flock_target_readback", func(enc hal.CommandEncoder) error {
		enc.TransitionTextures([]hal.TextureBarrier{{
			Texture: t.tex,
			Usage: hal.TextureUsageTransition{
				OldUsage: gputypes.TextureUsageRenderAttachment,
				NewUsage: gputypes.TextureUsageCopySrc,
			},
		}})
		enc.CopyTextureToBuffer(t.tex, staging, []hal.BufferTextureCopy{{
			BufferLayout: hal.ImageDataLayout{BytesPerRow: alignedBytesPerRow, RowsPerImage: h},
			TextureBase:  hal.ImageCopyTexture{Texture: t.tex},
			Size:         hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		}})
		enc.TransitionTextures([]hal.TextureBarrier{{
			Texture: t.tex,
			Usage: hal.TextureUsageTransition{
				OldUsage: gputypes.TextureUsageCopySrc,
				NewUsage: gputypes.TextureUsageRenderAttachment,
			},
		}})
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := t.submitter.Wait(ctx, index); err != nil {
		return nil, err
	}
	raw, err := mapRange(t.device, staging, size)
	if err != nil {
		return nil, err
	}

	img := image.NewRGBA(image.Rect(0, 0, int(w), int(h)))
	for row := 0; row < int(h); row++ {
		src := raw[row*int(alignedBytesPerRow) : row*int(alignedBytesPerRow)+int(bytesPerRow)]
		dst := img.Pix[row*img.Stride : row*img.Stride+int(bytesPerRow)]
		copyPixels(dst, src, t.format)
	}
	return img, nil
}

// copyPixels copies one row into RGBA order.
func copyPixels(dst, src []byte, format gputypes.TextureFormat) {
	if format != gputypes.TextureFormatBGRA8Unorm {
		copy(dst, src)
		return
	}
	for i := 0; i+3 < len(src); i += 4 {
		dst[i+0] = src[i+2]
		dst[i+1] = src[i+1]
		dst[i+2] = src[i+0]
		dst[i+3] = src[i+3]
	}
}

// Close releases the texture and view.
func (t *RenderTarget) Close() { t.destroy() }

func (t *RenderTarget) destroy() {
	view, tex := t.view, t.tex
	t.view, t.tex = nil, nil
	if view != nil || tex != nil {
		t.submitter.Defer(func() {
			if view != nil {
				t.device.DestroyTextureView(view)
			}
			if tex != nil {
				t.device.DestroyTexture(tex)
			}
		})
	}
	t.width = 0
	t.height = 0
}
