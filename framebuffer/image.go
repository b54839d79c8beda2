// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package framebuffer

import (
	"image"
	"image/color"
	"sync"

	"tinygo.org/x/drivers"
)

// ImageDisplay is an in-memory drivers.Displayer. SetPixel draws into a
// back image and Display publishes it as the shown frame.
type ImageDisplay struct {
	mu     sync.Mutex
	back   *image.RGBA
	front  *image.RGBA
	frames int
}

// NewImageDisplay creates a w by h display, initially black.
func NewImageDisplay(w, h int) *ImageDisplay {
	r := image.Rect(0, 0, w, h)
	return &ImageDisplay{back: image.NewRGBA(r), front: image.NewRGBA(r)}
}

// Size implements drivers.Displayer.
func (d *ImageDisplay) Size() (x, y int16) {
	b := d.back.Bounds()
	return int16(b.Dx()), int16(b.Dy()) //nolint:gosec // G115: displays are small
}

// SetPixel implements drivers.Displayer.
func (d *ImageDisplay) SetPixel(x, y int16, c color.RGBA) {
	d.mu.Lock()
	d.back.SetRGBA(int(x), int(y), c)
	d.mu.Unlock()
}

// Display implements drivers.Displayer.
func (d *ImageDisplay) Display() error {
	d.mu.Lock()
	copy(d.front.Pix, d.back.Pix)
	d.frames++
	d.mu.Unlock()
	return nil
}

// Frame returns a copy of the shown frame.
func (d *ImageDisplay) Frame() *image.RGBA {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := image.NewRGBA(d.front.Rect)
	copy(out.Pix, d.front.Pix)
	return out
}

// Frames returns the number of Display calls.
func (d *ImageDisplay) Frames() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frames
}

var _ drivers.Displayer = (*ImageDisplay)(nil)
