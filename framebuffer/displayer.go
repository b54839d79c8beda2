// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package framebuffer scans buffers out to simple pixel displays.
//
// DisplayerDevice adapts any tinygo drivers.Displayer into the legacy
// framebuffer device used when no hardware composer is available, or
// beside a 1.0 composer for the GPU composited part of a frame.
package framebuffer

import (
	"image"
	"image/color"
	"sync"
	"time"

	"github.com/gogpu/gputypes"
	"tinygo.org/x/drivers"

	"github.com/gogpu/hwc"
	"github.com/gogpu/hwc/buffer"
	"github.com/gogpu/hwc/device"
)

// DefaultBuffers is the number of buffers a displayer suggests.
const DefaultBuffers = 2

// Option configures a DisplayerDevice.
type Option func(*DisplayerDevice)

// WithBuffers sets the suggested number of framebuffers.
func WithBuffers(n int) Option {
	return func(d *DisplayerDevice) { d.buffers = n }
}

// WithRefreshPeriod sets the reported refresh period.
func WithRefreshPeriod(p time.Duration) Option {
	return func(d *DisplayerDevice) { d.period = p }
}

// WithFormat sets the format the device reports for its framebuffers.
func WithFormat(f gputypes.TextureFormat) Option {
	return func(d *DisplayerDevice) { d.format = f }
}

// DisplayerDevice is a framebuffer device writing posted buffers pixel by
// pixel to a drivers.Displayer.
type DisplayerDevice struct {
	disp    drivers.Displayer
	buffers int
	period  time.Duration
	format  gputypes.TextureFormat

	mu    sync.Mutex
	blank bool
	posts int
	last  *image.RGBA
}

// NewDisplayerDevice wraps disp.
func NewDisplayerDevice(disp drivers.Displayer, opts ...Option) *DisplayerDevice {
	d := &DisplayerDevice{
		disp:    disp,
		buffers: DefaultBuffers,
		period:  device.DefaultRefreshPeriod,
		format:  gputypes.TextureFormatRGBA8Unorm,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Size returns the displayer size.
func (d *DisplayerDevice) Size() hwc.Size {
	w, h := d.disp.Size()
	return hwc.Size{Width: int(w), Height: int(h)}
}

func (d *DisplayerDevice) Format() gputypes.TextureFormat { return d.format }
func (d *DisplayerDevice) NumBuffers() int                { return d.buffers }
func (d *DisplayerDevice) RefreshPeriod() time.Duration   { return d.period }

// Post copies b to the displayer and flushes it. A blanked device keeps
// the content and shows it when unblanked.
func (d *DisplayerDevice) Post(b *buffer.Buffer) error {
	img, err := b.RGBA()
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.posts++
	d.last = img
	if d.blank {
		return nil
	}
	return d.show(img, "framebuffer.Post")
}

// show writes img, or black when img is nil, and flushes the displayer.
func (d *DisplayerDevice) show(img *image.RGBA, op string) error {
	w, h := d.disp.Size()
	black := color.RGBA{A: 0xFF}
	for y := int16(0); y < h; y++ {
		for x := int16(0); x < w; x++ {
			c := black
			if img != nil && image.Pt(int(x), int(y)).In(img.Rect) {
				c = img.RGBAAt(int(x), int(y))
			}
			d.disp.SetPixel(x, y, c)
		}
	}
	if err := d.disp.Display(); err != nil {
		return hwc.NewError(hwc.KindTransientCommit, op, err)
	}
	return nil
}

// SetBlank blanks the displayer by filling it black. Unblanking shows the
// last posted buffer again.
func (d *DisplayerDevice) SetBlank(blank bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.blank == blank {
		return nil
	}
	d.blank = blank
	if blank {
		return d.show(nil, "framebuffer.SetBlank")
	}
	return d.show(d.last, "framebuffer.SetBlank")
}

// Blanked reports whether the device is blanked.
func (d *DisplayerDevice) Blanked() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.blank
}

// Posts returns the number of buffers posted.
func (d *DisplayerDevice) Posts() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.posts
}

var _ device.FramebufferDevice = (*DisplayerDevice)(nil)
