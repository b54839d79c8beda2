// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package compositor renders the renderables that overlay planes cannot
// show into one framebuffer, which then becomes the framebuffer target
// layer.
package compositor

import (
	"image"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/hwc"
	"github.com/gogpu/hwc/buffer"
	"github.com/gogpu/hwc/layer"
)

// RenderContext is a rendering context with a swap chain of framebuffers.
// Images bound for one context are cached for its lifetime.
type RenderContext interface {
	gpucontext.TextureDrawer

	// ContextID identifies the context in the image binding cache.
	ContextID() buffer.ContextID

	// MakeCurrent binds the context to the calling goroutine's work.
	MakeCurrent() error

	// ReleaseCurrent undoes MakeCurrent.
	ReleaseCurrent()

	// Clear clears the back buffer to transparent black.
	Clear()

	// SwapBuffers finishes the frame. The back buffer becomes the last
	// rendered buffer.
	SwapBuffers() error

	// LastRenderedBuffer returns the buffer finished by the last swap.
	LastRenderedBuffer() *buffer.Buffer
}

// TransformDrawer is implemented by drawers that can draw a texture into
// a destination rectangle under an affine transform and plane alpha.
type TransformDrawer interface {
	DrawTextureTransformed(tex gpucontext.Texture, dst image.Rectangle, m hwc.Transform, alpha float32) error
}

// Renderer draws rejected renderables into a render context.
type Renderer interface {
	Render(rejected []layer.Renderable, offset hwc.Displacement, ctx RenderContext) error
}

// FallbackRenderer draws renderables in order through one sampling path
// that reads any supported buffer format and writes RGBA.
type FallbackRenderer struct{}

// NewFallbackRenderer creates a renderer.
func NewFallbackRenderer() *FallbackRenderer { return &FallbackRenderer{} }

// Render draws rejected, shifted by the negated offset, into ctx and
// swaps its buffers. The context is released on every return path. Bind
// and draw failures are resource acquisition failures.
func (r *FallbackRenderer) Render(rejected []layer.Renderable, offset hwc.Displacement, ctx RenderContext) error {
	const op = "FallbackRenderer.Render"
	if err := ctx.MakeCurrent(); err != nil {
		return hwc.NewError(hwc.KindResourceAcquisition, op, err)
	}
	defer ctx.ReleaseCurrent()

	ctx.Clear()
	td, transforms := ctx.(TransformDrawer)
	for _, rd := range rejected {
		if rd.Buffer == nil {
			continue
		}
		img, err := rd.Buffer.Bind(ctx)
		if err != nil {
			return err
		}
		dst := offset.Apply(rd.Position)
		if transforms {
			err = td.DrawTextureTransformed(img, dst, rd.Transform, rd.Alpha)
		} else {
			err = ctx.DrawTexture(img, float32(dst.Min.X), float32(dst.Min.Y))
		}
		if err != nil {
			return hwc.NewError(hwc.KindResourceAcquisition, op, err)
		}
	}
	if err := ctx.SwapBuffers(); err != nil {
		return hwc.NewError(hwc.KindResourceAcquisition, op, err)
	}
	return nil
}

var _ Renderer = (*FallbackRenderer)(nil)
