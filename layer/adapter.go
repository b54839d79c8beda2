// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package layer

import (
	"image"

	"github.com/gogpu/hwc"
)

// CropAdapter fills the variant specific parts of a native layer.
type CropAdapter interface {
	// Name identifies the adapter in logs.
	Name() string

	// SetSourceCrop stores crop in the representation the hardware reads.
	SetSourceCrop(n *NativeLayer, crop image.Rectangle)

	// HasFramebufferTarget reports whether the GPU result is handed to the
	// composer as a layer. Without it the device posts the result to a
	// framebuffer device.
	HasFramebufferTarget() bool
}

// IntegerCrop is for composers taking pixel-aligned source crops.
type IntegerCrop struct{}

// Name returns the adapter name used in logs.
func (IntegerCrop) Name() string { return "integer-crop" }

// SetSourceCrop sets the pixel-aligned source crop.
func (IntegerCrop) SetSourceCrop(n *NativeLayer, crop image.Rectangle) {
	n.SourceCrop = crop
}

// HasFramebufferTarget reports true.
func (IntegerCrop) HasFramebufferTarget() bool { return true }

// FloatCrop is for composers taking sub-pixel source crops.
type FloatCrop struct{}

// Name returns the adapter name used in logs.
func (FloatCrop) Name() string { return "float-crop" }

// SetSourceCrop sets the crop as a sub-pixel rectangle.
func (FloatCrop) SetSourceCrop(n *NativeLayer, crop image.Rectangle) {
	n.SourceCropF = hwc.FRectFrom(crop)
}

// HasFramebufferTarget reports true.
func (FloatCrop) HasFramebufferTarget() bool { return true }

// LegacyCrop is for the first composer generation, which predates the
// framebuffer target layer.
type LegacyCrop struct{}

// Name returns the adapter name used in logs.
func (LegacyCrop) Name() string { return "legacy" }

// SetSourceCrop sets the pixel-aligned source crop.
func (LegacyCrop) SetSourceCrop(n *NativeLayer, crop image.Rectangle) {
	n.SourceCrop = crop
}

// HasFramebufferTarget reports false: the result goes to the framebuffer
// device.
func (LegacyCrop) HasFramebufferTarget() bool { return false }
