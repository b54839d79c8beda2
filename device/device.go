// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package device implements the display devices that commit frames to the
// hardware, one per composer generation, and the controls and event
// plumbing around the composer HAL.
//
// Every device runs the same two-phase commit. Prepare asks the hardware
// to validate the layer assignment of each output; after the caller has
// rendered the layers the hardware rejected, Set presents the frame.
package device

import (
	"time"

	"github.com/gogpu/hwc/compositor"
	"github.com/gogpu/hwc/layer"
)

// Contents is the per-output unit of one commit. It is built under the
// output collection lock and used outside of it.
type Contents struct {
	Name       DisplayID
	List       *layer.List
	Compositor compositor.Renderer
	Context    compositor.RenderContext
}

// DisplayDevice commits frames to the hardware.
type DisplayDevice interface {
	// Variant returns the composer generation of the device.
	Variant() Variant

	// Policy returns the overlay policy lists of this device follow.
	Policy() *layer.Policy

	// Prepare validates the layer assignment of every output. Afterwards
	// List.Rejected returns what the GPU must render.
	Prepare(contents []Contents) error

	// Set presents the frame prepared last.
	Set(contents []Contents) error

	// RecommendedSleep is how long the compositor may sleep before
	// starting the next frame without missing vsync.
	RecommendedSleep() time.Duration

	// ContentCleared forgets what is on screen, after a mode change.
	ContentCleared()

	// CanSwapBuffers reports whether GPU output can be presented.
	CanSwapBuffers() bool
}

func composerDisplays(contents []Contents, active func(DisplayID) bool) []*ComposerDisplay {
	out := make([]*ComposerDisplay, 0, len(contents))
	for _, c := range contents {
		if active != nil && !active(c.Name) {
			continue
		}
		out = append(out, &ComposerDisplay{ID: c.Name, Layers: c.List.Native()})
	}
	return out
}

func findContents(contents []Contents, id DisplayID) (Contents, bool) {
	for _, c := range contents {
		if c.Name == id {
			return c, true
		}
	}
	return Contents{}, false
}
