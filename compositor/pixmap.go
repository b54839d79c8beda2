// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package compositor

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/gogpu/hwc"
	"github.com/gogpu/hwc/buffer"
)

// Errors returned by PixmapContext.
var (
	ErrContextClosed  = errors.New("compositor: context closed")
	ErrNotCurrent     = errors.New("compositor: context not current")
	ErrForeignTexture = errors.New("compositor: texture not created by this context")
)

// DefaultFramebuffers is the swap chain length of a PixmapContext.
const DefaultFramebuffers = 2

// Option configures a PixmapContext.
type Option func(*pixmapOptions)

type pixmapOptions struct {
	framebuffers int
	interp       xdraw.Interpolator
}

// WithFramebuffers sets the swap chain length. Values below
// DefaultFramebuffers are raised to it.
func WithFramebuffers(n int) Option {
	return func(o *pixmapOptions) {
		o.framebuffers = max(n, DefaultFramebuffers)
	}
}

// WithInterpolator sets the sampler used for scaled and transformed
// draws.
func WithInterpolator(i xdraw.Interpolator) Option {
	return func(o *pixmapOptions) {
		o.interp = i
	}
}

// PixmapContext is a CPU render context. It draws into an *image.RGBA back
// buffer and copies it into one of its framebuffers on SwapBuffers.
//
// Example:
//
//	ctx, _ := compositor.NewPixmapContext(alloc, hwc.Size{Width: 800, Height: 600})
//	_ = compositor.NewFallbackRenderer().Render(rejected, offset, ctx)
//	fb := ctx.LastRenderedBuffer()
type PixmapContext struct {
	id     buffer.ContextID
	size   hwc.Size
	interp xdraw.Interpolator

	mu      sync.Mutex
	img     *image.RGBA
	fbs     []*buffer.Buffer
	next    int
	last    *buffer.Buffer
	current bool
	closed  bool
}

// NewPixmapContext allocates the framebuffers of a context of the given
// size from alloc.
func NewPixmapContext(alloc buffer.Allocator, size hwc.Size, opts ...Option) (*PixmapContext, error) {
	o := pixmapOptions{framebuffers: DefaultFramebuffers, interp: xdraw.ApproxBiLinear}
	for _, opt := range opts {
		opt(&o)
	}
	c := &PixmapContext{
		id:     buffer.NewContextID(),
		size:   size,
		interp: o.interp,
		img:    image.NewRGBA(size.Rect()),
	}
	for i := 0; i < o.framebuffers; i++ {
		fb, err := alloc.AllocFramebuffer(size, gputypes.TextureFormatRGBA8Unorm)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.fbs = append(c.fbs, fb)
	}
	return c, nil
}

// ContextID returns the identity of the context.
func (c *PixmapContext) ContextID() buffer.ContextID { return c.id }

// Size returns the framebuffer size.
func (c *PixmapContext) Size() hwc.Size { return c.size }

// Format returns the pixel format (RGBA8).
func (c *PixmapContext) Format() gputypes.TextureFormat {
	return gputypes.TextureFormatRGBA8Unorm
}

// MakeCurrent starts drawing.
func (c *PixmapContext) MakeCurrent() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrContextClosed
	}
	c.current = true
	return nil
}

// ReleaseCurrent ends drawing.
func (c *PixmapContext) ReleaseCurrent() {
	c.mu.Lock()
	c.current = false
	c.mu.Unlock()
}

// Current reports whether the context is current.
func (c *PixmapContext) Current() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Clear fills the back buffer with transparent black.
func (c *PixmapContext) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.img.Pix)
}

// Image returns the back buffer. It shares memory with the context.
func (c *PixmapContext) Image() *image.RGBA {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.img
}

// TextureCreator returns the context itself.
func (c *PixmapContext) TextureCreator() gpucontext.TextureCreator { return c }

// NewTextureFromRGBA copies data into a texture of this context.
func (c *PixmapContext) NewTextureFromRGBA(width, height int, data []byte) (gpucontext.Texture, error) {
	if width <= 0 || height <= 0 || len(data) != width*height*4 {
		return nil, fmt.Errorf("compositor: texture data is %d bytes, want %dx%dx4", len(data), width, height)
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	copy(img.Pix, data)
	return &pixmapTexture{owner: c, img: img}, nil
}

func (c *PixmapContext) source(tex gpucontext.Texture) (*image.RGBA, error) {
	t, ok := tex.(*pixmapTexture)
	if !ok || t.owner != c {
		return nil, ErrForeignTexture
	}
	return t.image()
}

// DrawTexture draws tex unscaled with its top-left corner at (x, y).
func (c *PixmapContext) DrawTexture(tex gpucontext.Texture, x, y float32) error {
	src, err := c.source(tex)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.current {
		return ErrNotCurrent
	}
	pt := image.Pt(int(x), int(y))
	xdraw.Draw(c.img, src.Bounds().Add(pt), src, image.Point{}, xdraw.Over)
	return nil
}

// DrawTextureTransformed scales tex onto dst, applies m about the center
// of dst and blends with the given alpha.
func (c *PixmapContext) DrawTextureTransformed(tex gpucontext.Texture, dst image.Rectangle, m hwc.Transform, alpha float32) error {
	src, err := c.source(tex)
	if err != nil {
		return err
	}
	if dst.Empty() || alpha <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.current {
		return ErrNotCurrent
	}

	sb := src.Bounds()
	place := hwc.Translate(float64(dst.Min.X), float64(dst.Min.Y)).
		Multiply(hwc.Scale(float64(dst.Dx())/float64(sb.Dx()), float64(dst.Dy())/float64(sb.Dy())))
	cx := float64(dst.Min.X) + float64(dst.Dx())/2
	cy := float64(dst.Min.Y) + float64(dst.Dy())/2
	t := m.About(cx, cy).Multiply(place)

	var opts *xdraw.Options
	if alpha < 1 {
		opts = &xdraw.Options{SrcMask: image.NewUniform(color.Alpha{A: uint8(alpha*255 + 0.5)})}
	}
	if opts == nil && m.IsIdentity() && dst.Size() == sb.Size() {
		xdraw.Draw(c.img, dst, src, sb.Min, xdraw.Over)
		return nil
	}
	c.interp.Transform(c.img, toAff3(t), src, sb, xdraw.Over, opts)
	return nil
}

func toAff3(t hwc.Transform) f64.Aff3 {
	return f64.Aff3{t.A, t.B, t.C, t.D, t.E, t.F}
}

// SwapBuffers copies the back buffer into the next framebuffer, waiting
// until the display stopped reading it.
func (c *PixmapContext) SwapBuffers() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrContextClosed
	}
	fb := c.fbs[c.next]
	if err := fb.Write(c.img.Pix); err != nil {
		return err
	}
	c.last = fb
	c.next = (c.next + 1) % len(c.fbs)
	return nil
}

// LastRenderedBuffer returns the framebuffer written by the last swap.
func (c *PixmapContext) LastRenderedBuffer() *buffer.Buffer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Framebuffers returns the number of framebuffers in the swap chain.
func (c *PixmapContext) Framebuffers() int { return len(c.fbs) }

// Close destroys the images bound for the context and releases its
// framebuffers.
func (c *PixmapContext) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	fbs := c.fbs
	c.fbs = nil
	c.last = nil
	c.mu.Unlock()

	buffer.ReleaseContextImages(c.id)
	for _, fb := range fbs {
		fb.Release()
	}
}

type pixmapTexture struct {
	owner *PixmapContext

	mu        sync.Mutex
	img       *image.RGBA
	destroyed bool
}

func (t *pixmapTexture) Width() int  { return t.img.Bounds().Dx() }
func (t *pixmapTexture) Height() int { return t.img.Bounds().Dy() }

func (t *pixmapTexture) image() (*image.RGBA, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.destroyed {
		return nil, ErrForeignTexture
	}
	return t.img, nil
}

// UpdateData replaces the texture pixels.
func (t *pixmapTexture) UpdateData(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.destroyed {
		return ErrContextClosed
	}
	if len(data) != len(t.img.Pix) {
		return fmt.Errorf("compositor: update is %d bytes, want %d", len(data), len(t.img.Pix))
	}
	copy(t.img.Pix, data)
	return nil
}

func (t *pixmapTexture) Destroy() {
	t.mu.Lock()
	t.destroyed = true
	t.mu.Unlock()
}

var (
	_ RenderContext             = (*PixmapContext)(nil)
	_ TransformDrawer           = (*PixmapContext)(nil)
	_ gpucontext.TextureCreator = (*PixmapContext)(nil)
	_ gpucontext.TextureUpdater = (*pixmapTexture)(nil)
)
