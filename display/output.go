// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package display

import (
	"image"
	"sync"

	"github.com/gogpu/hwc"
	"github.com/gogpu/hwc/compositor"
	"github.com/gogpu/hwc/device"
	"github.com/gogpu/hwc/layer"
)

// Output is one display output of a group. It owns the layer list posted
// each frame and the render context GPU fallback draws into.
type Output struct {
	id       device.DisplayID
	policy   *layer.Policy
	control  device.Control
	renderer compositor.Renderer
	ctx      compositor.RenderContext

	mu        sync.Mutex
	list      *layer.List
	power     device.PowerMode
	transform hwc.Transform
	viewport  image.Rectangle
}

// OutputOption configures an Output.
type OutputOption func(*Output)

// WithRenderer replaces the fallback renderer.
func WithRenderer(r compositor.Renderer) OutputOption {
	return func(o *Output) { o.renderer = r }
}

// WithPowerMode sets the initial power mode without going through the
// control. The default is PowerOn.
func WithPowerMode(m device.PowerMode) OutputOption {
	return func(o *Output) { o.power = m }
}

// NewOutput creates the output id showing viewport, in layout
// coordinates. ctx receives the GPU fallback rendering and control
// applies power changes; control may be nil.
func NewOutput(id device.DisplayID, policy *layer.Policy, ctx compositor.RenderContext, control device.Control, viewport image.Rectangle, opts ...OutputOption) *Output {
	o := &Output{
		id:        id,
		policy:    policy,
		control:   control,
		renderer:  compositor.NewFallbackRenderer(),
		ctx:       ctx,
		power:     device.PowerOn,
		transform: hwc.Identity(),
		viewport:  viewport,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.list = newList(policy, viewport)
	return o
}

func newList(policy *layer.Policy, viewport image.Rectangle) *layer.List {
	offset := hwc.Displacement{DX: viewport.Min.X, DY: viewport.Min.Y}
	size := hwc.Size{Width: viewport.Dx(), Height: viewport.Dy()}
	return layer.NewList(policy.CropAdapter(), offset, size)
}

func (o *Output) ID() device.DisplayID { return o.id }

// Context returns the render context of the output.
func (o *Output) Context() compositor.RenderContext { return o.ctx }

// PowerMode returns the current power mode.
func (o *Output) PowerMode() device.PowerMode {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.power
}

// Transform returns the output transform.
func (o *Output) Transform() hwc.Transform {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.transform
}

// Viewport returns the area of the layout the output shows.
func (o *Output) Viewport() image.Rectangle {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.viewport
}

// List returns the layer list of the next frame.
func (o *Output) List() *layer.List {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.list
}

// PostRenderables sets the renderables of the next frame, back to front.
// Renderables the overlay planes cannot show are left for GPU fallback.
// It reports whether the whole list is eligible for overlay planes.
func (o *Output) PostRenderables(rs []layer.Renderable) bool {
	rejected, overlay := o.policy.Partition(rs)
	o.List().Update(rejected, overlay)
	return o.policy.Eligible(rs)
}

// configure applies a power mode, transform and viewport. It reports
// whether the viewport size changed.
func (o *Output) configure(mode device.PowerMode, transform hwc.Transform, viewport image.Rectangle) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if mode != o.power && o.control != nil {
		if err := o.control.PowerMode(o.id, mode); err != nil {
			return false, err
		}
	}
	o.power = mode
	o.transform = transform
	resized := viewport.Size() != o.viewport.Size()
	if viewport != o.viewport {
		o.viewport = viewport
		o.list = newList(o.policy, viewport)
	}
	return resized, nil
}

func (o *Output) contents() device.Contents {
	return device.Contents{
		Name:       o.id,
		List:       o.List(),
		Compositor: o.renderer,
		Context:    o.ctx,
	}
}

// close releases the render context when it can be closed.
func (o *Output) close() {
	if c, ok := o.ctx.(interface{ Close() }); ok {
		c.Close()
	}
}
