// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package device

import (
	"time"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/hwc"
	"github.com/gogpu/hwc/buffer"
	"github.com/gogpu/hwc/layer"
)

// MinFramebuffers is the least number of framebuffers rendered into in
// turn, whatever the framebuffer device reports.
const MinFramebuffers = 2

// FramebufferDevice is a legacy scan-out device showing one buffer at a
// time.
type FramebufferDevice interface {
	Size() hwc.Size
	Format() gputypes.TextureFormat

	// NumBuffers is the number of framebuffers the device suggests.
	NumBuffers() int

	// RefreshPeriod is the display refresh period.
	RefreshPeriod() time.Duration

	// Post shows b on the display.
	Post(b *buffer.Buffer) error

	// SetBlank blanks or unblanks the display.
	SetBlank(blank bool) error
}

// NumFramebuffers returns how many framebuffers to allocate for fb.
func NumFramebuffers(fb FramebufferDevice) int {
	return max(MinFramebuffers, fb.NumBuffers())
}

// postFramebuffer posts the GPU output of the primary output to fb.
func postFramebuffer(op string, fb FramebufferDevice, contents []Contents) error {
	c, ok := findContents(contents, DisplayPrimary)
	if !ok {
		return nil
	}
	b := c.List.Framebuffer()
	if b == nil {
		return nil
	}
	b.EnsureAvailableFor(buffer.AccessGPURead)
	if err := fb.Post(b); err != nil {
		return commitError(op, err)
	}
	return nil
}

// HwcFbDevice drives composer 1.0. The composer places overlays and the
// GPU output is posted to a separate framebuffer device. Only the primary
// display is supported.
type HwcFbDevice struct {
	commitState
	composer Composer
	fb       FramebufferDevice
	policy   *layer.Policy
}

// NewHwcFbDevice creates the device for a 1.0 composer.
func NewHwcFbDevice(c Composer, fb FramebufferDevice, tuning hwc.Tuning) *HwcFbDevice {
	return &HwcFbDevice{
		commitState: newCommitState(tuning),
		composer:    c,
		fb:          fb,
		policy:      VariantOverlayLegacy.NewPolicy(c.Capabilities(), tuning),
	}
}

func primaryOnly(id DisplayID) bool { return id == DisplayPrimary }

func (d *HwcFbDevice) Variant() Variant { return VariantOverlayLegacy }

func (d *HwcFbDevice) Policy() *layer.Policy { return d.policy }

func (d *HwcFbDevice) CanSwapBuffers() bool { return true }

// Prepare validates the primary display.
func (d *HwcFbDevice) Prepare(contents []Contents) error {
	if err := d.composer.Prepare(composerDisplays(contents, primaryOnly)); err != nil {
		return commitError("HwcFbDevice.Prepare", err)
	}
	d.prepared(contents)
	return nil
}

// Set presents the overlays, then posts the GPU output if there is one.
func (d *HwcFbDevice) Set(contents []Contents) error {
	next := d.markFences(contents)
	displays := composerDisplays(contents, primaryOnly)
	if err := d.composer.Set(displays); err != nil {
		return commitError("HwcFbDevice.Set", err)
	}
	if c, ok := findContents(contents, DisplayPrimary); ok && c.List.Swapped() {
		if err := postFramebuffer("HwcFbDevice.Set", d.fb, contents); err != nil {
			return err
		}
	}
	d.committed(contents, displays, next)
	return nil
}

// FBDevice is the fallback when no composer can be opened. Every frame is
// rendered by the GPU and posted to the framebuffer device.
type FBDevice struct {
	fb     FramebufferDevice
	policy *layer.Policy
}

// NewFBDevice creates the framebuffer-only device.
func NewFBDevice(fb FramebufferDevice, tuning hwc.Tuning) *FBDevice {
	return &FBDevice{
		fb:     fb,
		policy: VariantFramebuffer.NewPolicy(Capabilities{}, tuning),
	}
}

func (d *FBDevice) Variant() Variant { return VariantFramebuffer }

func (d *FBDevice) Policy() *layer.Policy { return d.policy }

func (d *FBDevice) CanSwapBuffers() bool { return true }

// Prepare has nothing to validate.
func (d *FBDevice) Prepare([]Contents) error { return nil }

// Set posts the rendered framebuffer of the primary output.
func (d *FBDevice) Set(contents []Contents) error {
	return postFramebuffer("FBDevice.Set", d.fb, contents)
}

// RecommendedSleep is always zero, every frame is GPU rendered.
func (d *FBDevice) RecommendedSleep() time.Duration { return 0 }

func (d *FBDevice) ContentCleared() {}

var (
	_ DisplayDevice = (*HwcFbDevice)(nil)
	_ DisplayDevice = (*FBDevice)(nil)
)
