// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package hwc

import (
	"image"
	"math"
	"testing"
)

func TestTransformIsIdentity(t *testing.T) {
	tests := []struct {
		name string
		m    Transform
		want bool
	}{
		{"identity", Identity(), true},
		{"zero value", Transform{}, false},
		{"translate", Translate(1, 0), false},
		{"scale", Scale(2, 2), false},
		{"rotate 0", Rotate(0), true},
		{"rotate 90", Rotate(math.Pi / 2), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.m.IsIdentity(); got != tt.want {
				t.Errorf("IsIdentity() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTransformAbout(t *testing.T) {
	m := Scale(2, 2).About(10, 10)
	x, y := m.Apply(10, 10)
	if x != 10 || y != 10 {
		t.Errorf("center moved to (%v, %v)", x, y)
	}
	x, y = m.Apply(11, 10)
	if x != 12 || y != 10 {
		t.Errorf("Apply(11, 10) = (%v, %v), want (12, 10)", x, y)
	}
}

func TestSizeAndFRect(t *testing.T) {
	s := Size{Width: 4, Height: 3}
	if s.Empty() {
		t.Error("4x3 should not be empty")
	}
	if (Size{Width: 0, Height: 3}).Empty() != true {
		t.Error("0x3 should be empty")
	}
	if s.Rect() != image.Rect(0, 0, 4, 3) {
		t.Errorf("Rect() = %v", s.Rect())
	}
	f := FRectFrom(image.Rect(1, 2, 3, 4))
	if f != (FRect{Left: 1, Top: 2, Right: 3, Bottom: 4}) {
		t.Errorf("FRectFrom() = %+v", f)
	}
}

func TestDisplacementApply(t *testing.T) {
	d := Displacement{DX: 1920, DY: 0}
	got := d.Apply(image.Rect(1920, 10, 2020, 110))
	want := image.Rect(0, 10, 100, 110)
	if got != want {
		t.Errorf("Apply = %v, want %v", got, want)
	}
}
