// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package hwc

import (
	"image"
	"math"
)

// Size is a width and height in pixels.
type Size struct {
	Width, Height int
}

// Empty reports whether either dimension is non-positive.
func (s Size) Empty() bool { return s.Width <= 0 || s.Height <= 0 }

// Rect returns the rectangle of this size anchored at the origin.
func (s Size) Rect() image.Rectangle { return image.Rect(0, 0, s.Width, s.Height) }

// FRect is a rectangle with floating point edges, used by hardware that
// accepts sub-pixel source crops.
type FRect struct {
	Left, Top, Right, Bottom float32
}

// FRectFrom converts an integer rectangle.
func FRectFrom(r image.Rectangle) FRect {
	return FRect{
		Left:   float32(r.Min.X),
		Top:    float32(r.Min.Y),
		Right:  float32(r.Max.X),
		Bottom: float32(r.Max.Y),
	}
}

// Transform is a 2D affine transformation in row-major order:
//
//	| A  B  C |
//	| D  E  F |
//
// which maps x' = A*x + B*y + C and y' = D*x + E*y + F. Renderable
// transforms are applied about the center of the renderable.
type Transform struct {
	A, B, C float64
	D, E, F float64
}

// Identity returns the identity transformation.
func Identity() Transform {
	return Transform{A: 1, E: 1}
}

// Translate creates a translation.
func Translate(x, y float64) Transform {
	return Transform{A: 1, C: x, E: 1, F: y}
}

// Scale creates a scaling transformation.
func Scale(x, y float64) Transform {
	return Transform{A: x, E: y}
}

// Rotate creates a rotation (angle in radians).
func Rotate(angle float64) Transform {
	cos, sin := math.Cos(angle), math.Sin(angle)
	return Transform{A: cos, B: -sin, D: sin, E: cos}
}

// Multiply returns t * other.
func (t Transform) Multiply(other Transform) Transform {
	return Transform{
		A: t.A*other.A + t.B*other.D,
		B: t.A*other.B + t.B*other.E,
		C: t.A*other.C + t.B*other.F + t.C,
		D: t.D*other.A + t.E*other.D,
		E: t.D*other.B + t.E*other.E,
		F: t.D*other.C + t.E*other.F + t.F,
	}
}

// Apply transforms the point (x, y).
func (t Transform) Apply(x, y float64) (float64, float64) {
	return t.A*x + t.B*y + t.C, t.D*x + t.E*y + t.F
}

// IsIdentity reports whether t is exactly the identity. Hardware overlay
// planes cannot express any other transform.
func (t Transform) IsIdentity() bool {
	return t == Identity()
}

// About returns t applied about the point (cx, cy) instead of the origin.
func (t Transform) About(cx, cy float64) Transform {
	return Translate(cx, cy).Multiply(t).Multiply(Translate(-cx, -cy))
}

// Displacement is the offset of an output inside the virtual layout of
// all outputs. Renderables are positioned in layout coordinates and shifted
// by the negated displacement onto the output.
type Displacement struct {
	DX, DY int
}

// Point returns the displacement as an image.Point.
func (d Displacement) Point() image.Point { return image.Pt(d.DX, d.DY) }

// Apply shifts r from layout coordinates into output coordinates.
func (d Displacement) Apply(r image.Rectangle) image.Rectangle {
	return r.Sub(d.Point())
}
