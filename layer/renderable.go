// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package layer

import (
	"image"

	"github.com/gogpu/hwc"
	"github.com/gogpu/hwc/buffer"
)

// Renderable is a read-only snapshot of one surface for one frame.
type Renderable struct {
	// ID identifies the surface across frames.
	ID uint64

	// Buffer holds the surface contents.
	Buffer *buffer.Buffer

	// Position is the screen rectangle in layout coordinates.
	Position image.Rectangle

	// Transform is applied about the center of Position.
	Transform hwc.Transform

	// Alpha is the opacity in [0, 1].
	Alpha float32
}

// OverlayEligible reports whether a plane can scan r out as is: it must be
// opaque within tol and untransformed.
func (r Renderable) OverlayEligible(tol float32) bool {
	return r.Alpha >= 1-tol && r.Transform.IsIdentity()
}
