// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package layer

import (
	"image"

	"github.com/gogpu/hwc"
	"github.com/gogpu/hwc/buffer"
)

// Decision is how a layer is composited this frame.
type Decision uint8

const (
	// Overlay means a hardware plane scans the buffer out directly.
	Overlay Decision = iota

	// GPUFallback means the GPU draws the layer into the framebuffer
	// target.
	GPUFallback

	// Dropped means the layer is not visible on the output.
	Dropped

	// FramebufferTarget is the flattened result of GPU fallback.
	FramebufferTarget
)

// String returns the decision name.
func (d Decision) String() string {
	switch d {
	case Overlay:
		return "Overlay"
	case GPUFallback:
		return "GPUFallback"
	case Dropped:
		return "Dropped"
	case FramebufferTarget:
		return "FramebufferTarget"
	default:
		return "Unknown"
	}
}

// Composition is the composition type exchanged with the hardware
// composer. Prepare may turn CompositionOverlay into CompositionClient;
// every other value is left alone.
type Composition uint8

const (
	// CompositionOverlay requests a hardware plane.
	CompositionOverlay Composition = iota

	// CompositionClient means the GPU composites the layer.
	CompositionClient

	// CompositionTarget marks the framebuffer target layer.
	CompositionTarget

	// CompositionSkip marks layers the composer must ignore.
	CompositionSkip
)

// Blending is the blend mode of a native layer.
type Blending uint8

const (
	// BlendNone draws the layer opaque.
	BlendNone Blending = iota

	// BlendPremultiplied blends the layer with premultiplied alpha.
	BlendPremultiplied
)

// NativeLayer is the hardware composer's description of a layer.
type NativeLayer struct {
	Composition Composition
	Handle      buffer.Handle
	Blending    Blending

	// SourceCrop is used by integer crop hardware, SourceCropF by float
	// crop hardware. The crop adapter fills the one the hardware reads.
	SourceCrop  image.Rectangle
	SourceCropF hwc.FRect

	DisplayFrame image.Rectangle
	PlaneAlpha   uint8

	// AcquireFence is waited on by the hardware before reading the
	// buffer. ReleaseFence is set by the composer on Set and signals when
	// the hardware stopped reading.
	AcquireFence buffer.Fence
	ReleaseFence buffer.Fence
}

// Layer is a renderable with its composition decision for one frame.
type Layer struct {
	Renderable Renderable
	Native     NativeLayer
}

// Decision returns the current decision for the layer.
func (l *Layer) Decision() Decision {
	switch l.Native.Composition {
	case CompositionOverlay:
		return Overlay
	case CompositionClient:
		return GPUFallback
	case CompositionTarget:
		return FramebufferTarget
	default:
		return Dropped
	}
}

// Buffer returns the buffer of the layer.
func (l *Layer) Buffer() *buffer.Buffer { return l.Renderable.Buffer }

func planeAlpha(a float32) uint8 {
	switch {
	case a <= 0:
		return 0
	case a >= 1:
		return 0xFF
	}
	return uint8(a*255 + 0.5)
}
