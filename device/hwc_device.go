// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package device

import (
	"sync"
	"time"

	"github.com/gogpu/hwc"
	"github.com/gogpu/hwc/buffer"
	"github.com/gogpu/hwc/layer"
)

// commitState is the part shared by the composer backed devices: the
// resident overlay set and the sleep hint of the last frame.
type commitState struct {
	planner *layer.Planner
	tuning  hwc.Tuning

	mu       sync.Mutex
	overlays bool
	sleep    time.Duration
}

func newCommitState(tuning hwc.Tuning) commitState {
	return commitState{planner: layer.NewPlanner(), tuning: tuning}
}

// prepared records whether the prepared frame is purely overlays.
func (s *commitState) prepared(contents []Contents) {
	overlays := true
	for _, c := range contents {
		if c.List.NeedsSwapBuffers() {
			overlays = false
			break
		}
	}
	s.mu.Lock()
	s.overlays = overlays
	s.mu.Unlock()
}

// markFences sets acquire fences and returns the next resident set.
func (s *commitState) markFences(contents []Contents) []*buffer.Buffer {
	var next []*buffer.Buffer
	for _, c := range contents {
		c.List.MarkAcquireFences(s.planner)
		next = append(next, c.List.OverlayBuffers()...)
	}
	return next
}

// committed swaps the resident set, hands back buffers and records the
// retire fences.
func (s *commitState) committed(contents []Contents, displays []*ComposerDisplay, next []*buffer.Buffer) {
	s.planner.Commit(next)
	for _, c := range contents {
		c.List.ReleaseBuffers()
		for _, d := range displays {
			if d.ID == c.Name {
				c.List.SetRetirementFence(d.RetireFence)
			}
		}
	}
	s.mu.Lock()
	if s.overlays {
		s.sleep = s.tuning.OverlaySleep
	} else {
		s.sleep = 0
	}
	s.mu.Unlock()
}

// RecommendedSleep returns the configured overlay sleep after a frame of
// only overlays and zero after a frame with GPU rendering.
func (s *commitState) RecommendedSleep() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sleep
}

// ContentCleared forgets the resident overlay set.
func (s *commitState) ContentCleared() { s.planner.ContentCleared() }

// HwcDevice drives composers 1.1 to 1.5, which composite the framebuffer
// target as one of their layers.
type HwcDevice struct {
	commitState
	composer Composer
	variant  Variant
	policy   *layer.Policy
}

// NewHwcDevice creates the device for an integer or float crop composer.
func NewHwcDevice(c Composer, variant Variant, tuning hwc.Tuning) (*HwcDevice, error) {
	if variant != VariantIntegerCrop && variant != VariantFloatCrop {
		return nil, hwc.Errorf(hwc.KindUnsupported, "device.NewHwcDevice", "variant %v", variant)
	}
	return &HwcDevice{
		commitState: newCommitState(tuning),
		composer:    c,
		variant:     variant,
		policy:      variant.NewPolicy(c.Capabilities(), tuning),
	}, nil
}

// Variant returns the composer variant the device was created for.
func (d *HwcDevice) Variant() Variant { return d.variant }

// Policy returns the overlay eligibility policy of the variant.
func (d *HwcDevice) Policy() *layer.Policy { return d.policy }

// CanSwapBuffers reports true: GPU output reaches the composer as the
// framebuffer target or through the framebuffer device.
func (d *HwcDevice) CanSwapBuffers() bool { return true }

// Prepare submits every output to the composer for validation.
func (d *HwcDevice) Prepare(contents []Contents) error {
	if err := d.composer.Prepare(composerDisplays(contents, nil)); err != nil {
		return commitError("HwcDevice.Prepare", err)
	}
	d.prepared(contents)
	return nil
}

// Set presents the frame. Overlays whose buffer is already on screen are
// submitted without an acquire fence.
func (d *HwcDevice) Set(contents []Contents) error {
	next := d.markFences(contents)
	displays := composerDisplays(contents, nil)
	if err := d.composer.Set(displays); err != nil {
		return commitError("HwcDevice.Set", err)
	}
	d.committed(contents, displays, next)
	return nil
}

var _ DisplayDevice = (*HwcDevice)(nil)
