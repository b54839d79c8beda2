// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package layer holds the per-output layer lists of the composition
// pipeline and the policy that splits a frame between overlay planes and
// GPU fallback rendering.
package layer

import (
	"image"
	"sync"

	"github.com/gogpu/hwc"
	"github.com/gogpu/hwc/buffer"
)

// List is the back-to-front layer list of one output. It is rebuilt every
// frame by Update and owned by that output's composition cycle.
type List struct {
	adapter CropAdapter
	offset  hwc.Displacement
	size    hwc.Size

	mu      sync.Mutex
	layers  []*Layer
	target  *Layer
	fb      *buffer.Buffer
	swapped bool
	retire  buffer.Fence
}

// NewList creates an empty list for an output of the given size placed at
// offset in the layout.
func NewList(adapter CropAdapter, offset hwc.Displacement, size hwc.Size) *List {
	l := &List{adapter: adapter, offset: offset, size: size}
	l.Update(nil, nil)
	return l
}

// Offset returns the output's displacement in the layout.
func (l *List) Offset() hwc.Displacement { return l.offset }

// Size returns the output size.
func (l *List) Size() hwc.Size { return l.size }

// Adapter returns the crop adapter of the list.
func (l *List) Adapter() CropAdapter { return l.adapter }

// Update rebuilds the list from one frame. rejected are drawn by the GPU
// into the framebuffer target and overlay are placed above it as overlay
// candidates; both are in back-to-front order.
func (l *List) Update(rejected, overlay []Renderable) {
	layers := make([]*Layer, 0, len(rejected)+len(overlay))
	for _, r := range rejected {
		layers = append(layers, l.newLayer(r, CompositionClient))
	}
	for _, r := range overlay {
		layers = append(layers, l.newLayer(r, CompositionOverlay))
	}

	var target *Layer
	if l.adapter.HasFramebufferTarget() {
		target = &Layer{
			Renderable: Renderable{
				Position:  l.size.Rect(),
				Transform: hwc.Identity(),
				Alpha:     1,
			},
			Native: NativeLayer{
				Composition:  CompositionTarget,
				Blending:     BlendNone,
				DisplayFrame: l.size.Rect(),
				PlaneAlpha:   0xFF,
			},
		}
		l.adapter.SetSourceCrop(&target.Native, l.size.Rect())
	}

	l.mu.Lock()
	l.layers = layers
	l.target = target
	l.fb = nil
	l.swapped = false
	l.mu.Unlock()
}

func (l *List) newLayer(r Renderable, c Composition) *Layer {
	frame := l.offset.Apply(r.Position)
	if !frame.Overlaps(l.size.Rect()) || r.Buffer == nil {
		c = CompositionSkip
	}
	lay := &Layer{
		Renderable: r,
		Native: NativeLayer{
			Composition:  c,
			DisplayFrame: frame,
			PlaneAlpha:   planeAlpha(r.Alpha),
			Blending:     BlendNone,
		},
	}
	if r.Buffer != nil {
		lay.Native.Handle = r.Buffer.Handle()
		if r.Buffer.HasAlpha() || r.Alpha < 1 {
			lay.Native.Blending = BlendPremultiplied
		}
		l.adapter.SetSourceCrop(&lay.Native, r.Buffer.Size().Rect())
	}
	return lay
}

// Layers returns the renderable layers in back-to-front order.
func (l *List) Layers() []*Layer {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.layers
}

// Target returns the framebuffer target layer, or nil when the adapter
// has none.
func (l *List) Target() *Layer {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.target
}

// Native returns the native layers handed to the composer: every layer not
// dropped followed by the framebuffer target.
func (l *List) Native() []*NativeLayer {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*NativeLayer, 0, len(l.layers)+1)
	for _, lay := range l.layers {
		if lay.Native.Composition != CompositionSkip {
			out = append(out, &lay.Native)
		}
	}
	if l.target != nil {
		out = append(out, &l.target.Native)
	}
	return out
}

// Rejected returns the renderables the GPU must draw, in order.
func (l *List) Rejected() []Renderable {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Renderable
	for _, lay := range l.layers {
		if lay.Native.Composition == CompositionClient {
			out = append(out, lay.Renderable)
		}
	}
	return out
}

// NeedsSwapBuffers reports whether the GPU has to render this frame: some
// layer is composited by the GPU or no layer is visible at all.
func (l *List) NeedsSwapBuffers() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	visible := false
	for _, lay := range l.layers {
		switch lay.Native.Composition {
		case CompositionClient:
			return true
		case CompositionOverlay:
			visible = true
		}
	}
	return !visible
}

// SetupFramebuffer makes b, the result of GPU fallback rendering, the
// content of the framebuffer target.
func (l *List) SetupFramebuffer(b *buffer.Buffer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fb = b
	if l.target == nil {
		return
	}
	l.target.Renderable.Buffer = b
	l.target.Native.Handle = b.Handle()
	l.adapter.SetSourceCrop(&l.target.Native, b.Size().Rect())
	l.target.Native.AcquireFence = b.PendingFence()
}

// Framebuffer returns the buffer installed by SetupFramebuffer.
func (l *List) Framebuffer() *buffer.Buffer {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fb
}

// SwapOccurred records that the framebuffer was rendered for this frame.
func (l *List) SwapOccurred() {
	l.mu.Lock()
	l.swapped = true
	l.mu.Unlock()
}

// Swapped reports whether SwapOccurred was called since the last Update.
func (l *List) Swapped() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.swapped
}

// MarkAcquireFences sets the acquire fence of every overlay whose buffer
// is not already on screen and of the framebuffer target.
func (l *List) MarkAcquireFences(p *Planner) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, lay := range l.layers {
		if lay.Native.Composition != CompositionOverlay {
			continue
		}
		lay.Native.AcquireFence = nil
		if !p.OnScreen(lay.Renderable.Buffer) {
			lay.Native.AcquireFence = lay.Renderable.Buffer.PendingFence()
		}
	}
	if l.target != nil && l.fb != nil {
		l.target.Native.AcquireFence = l.fb.PendingFence()
	}
}

// OverlayBuffers returns the buffers composited by overlay planes.
func (l *List) OverlayBuffers() []*buffer.Buffer {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*buffer.Buffer
	for _, lay := range l.layers {
		if lay.Native.Composition == CompositionOverlay {
			out = append(out, lay.Renderable.Buffer)
		}
	}
	return out
}

// ReleaseBuffers hands each buffer read by the hardware the release fence
// the composer returned for it. The next user of the buffer waits on it.
func (l *List) ReleaseBuffers() {
	l.mu.Lock()
	defer l.mu.Unlock()
	release := func(lay *Layer) {
		if lay == nil || lay.Renderable.Buffer == nil || lay.Native.ReleaseFence == nil {
			return
		}
		lay.Renderable.Buffer.AttachFence(lay.Native.ReleaseFence)
		lay.Native.ReleaseFence = nil
	}
	for _, lay := range l.layers {
		if lay.Native.Composition == CompositionOverlay {
			release(lay)
		}
	}
	release(l.target)
}

// RetirementFence returns the fence signaled when the last committed frame
// is replaced on screen.
func (l *List) RetirementFence() buffer.Fence {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.retire
}

// SetRetirementFence records the retirement fence of the committed frame.
func (l *List) SetRetirementFence(f buffer.Fence) {
	l.mu.Lock()
	l.retire = f
	l.mu.Unlock()
}

// Bounds returns the output rectangle in layout coordinates.
func (l *List) Bounds() image.Rectangle {
	return l.size.Rect().Add(l.offset.Point())
}
