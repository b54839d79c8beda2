// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package display

import (
	"errors"
	"fmt"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/hwc"
	"github.com/gogpu/hwc/buffer"
	"github.com/gogpu/hwc/compositor"
	"github.com/gogpu/hwc/device"
	"github.com/gogpu/hwc/layer"
)

var errValidate = errors.New("validate display failed")

// fakeDevice fails Set with the queued errors, one per commit.
type fakeDevice struct {
	policy *layer.Policy

	mu        sync.Mutex
	errs      []error
	committed [][]device.DisplayID
	cleared   int
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{policy: device.VariantFloatCrop.NewPolicy(device.Capabilities{DeviceComposition: true}, hwc.DefaultTuning())}
}

func (d *fakeDevice) Variant() device.Variant         { return device.VariantFloatCrop }
func (d *fakeDevice) Policy() *layer.Policy           { return d.policy }
func (d *fakeDevice) Prepare([]device.Contents) error { return nil }
func (d *fakeDevice) RecommendedSleep() time.Duration { return 0 }
func (d *fakeDevice) CanSwapBuffers() bool            { return true }
func (d *fakeDevice) queue(errs ...error)             { d.mu.Lock(); d.errs = append(d.errs, errs...); d.mu.Unlock() }
func (d *fakeDevice) ContentCleared()                 { d.mu.Lock(); d.cleared++; d.mu.Unlock() }

func (d *fakeDevice) Set(contents []device.Contents) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := make([]device.DisplayID, len(contents))
	for i, c := range contents {
		ids[i] = c.Name
	}
	d.committed = append(d.committed, ids)
	if len(d.errs) == 0 {
		return nil
	}
	err := d.errs[0]
	d.errs = d.errs[1:]
	return err
}

func (d *fakeDevice) commits() [][]device.DisplayID {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.committed
}

func (d *fakeDevice) clears() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cleared
}

// fakeControl reports configured displays and records power changes.
type fakeControl struct {
	mu      sync.Mutex
	configs map[device.DisplayID]device.OutputConfig
	calls   []string
}

func newFakeControl() *fakeControl {
	return &fakeControl{configs: map[device.DisplayID]device.OutputConfig{
		device.DisplayPrimary: {
			Connected:   true,
			Size:        hwc.Size{Width: 320, Height: 240},
			Format:      gputypes.TextureFormatRGBA8Unorm,
			VsyncPeriod: 16 * time.Millisecond,
			DPIX:        160,
			DPIY:        160,
		},
	}}
}

func (c *fakeControl) connect(id device.DisplayID, size hwc.Size) {
	c.mu.Lock()
	c.configs[id] = device.OutputConfig{Connected: true, Size: size, Format: gputypes.TextureFormatRGBA8Unorm, VsyncPeriod: 20 * time.Millisecond}
	c.mu.Unlock()
}

func (c *fakeControl) disconnect(id device.DisplayID) {
	c.mu.Lock()
	delete(c.configs, id)
	c.mu.Unlock()
}

func (c *fakeControl) PowerMode(id device.DisplayID, mode device.PowerMode) error {
	c.mu.Lock()
	c.calls = append(c.calls, fmt.Sprintf("%v %v", id, mode))
	c.mu.Unlock()
	return nil
}

func (c *fakeControl) ActiveConfig(id device.DisplayID) (device.OutputConfig, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cfg, ok := c.configs[id]
	if !ok {
		return device.OutputConfig{Format: gputypes.TextureFormatRGBA8Unorm}, nil
	}
	return cfg, nil
}

func (c *fakeControl) powerCalls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

type fakeFactory struct {
	dev     *fakeDevice
	control *fakeControl
	hub     *device.EventHub
	alloc   *buffer.HeapAllocator
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{
		dev:     newFakeDevice(),
		control: newFakeControl(),
		hub:     device.NewEventHub(),
		alloc:   buffer.NewHeapAllocator(),
	}
}

func (f *fakeFactory) DisplayDevice() (device.DisplayDevice, error) { return f.dev, nil }
func (f *fakeFactory) Control() (device.Control, error)             { return f.control, nil }
func (f *fakeFactory) Events() *device.EventHub                     { return f.hub }

func (f *fakeFactory) RenderContext(_ device.DisplayID, size hwc.Size) (compositor.RenderContext, error) {
	return compositor.NewPixmapContext(f.alloc, size)
}

func newTestOutput(t *testing.T, id device.DisplayID, policy *layer.Policy, control device.Control) *Output {
	t.Helper()
	size := hwc.Size{Width: 32, Height: 32}
	ctx, err := compositor.NewPixmapContext(buffer.NewHeapAllocator(), size)
	if err != nil {
		t.Fatalf("NewPixmapContext: %v", err)
	}
	t.Cleanup(ctx.Close)
	return NewOutput(id, policy, ctx, control, size.Rect())
}

func testRenderable(t *testing.T, alpha float32) layer.Renderable {
	t.Helper()
	b, err := buffer.NewHeapAllocator().Alloc(hwc.Size{Width: 8, Height: 8}, gputypes.TextureFormatRGBA8Unorm, gputypes.TextureUsageTextureBinding)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	t.Cleanup(b.Release)
	return layer.Renderable{Buffer: b, Position: image.Rect(0, 0, 8, 8), Transform: hwc.Identity(), Alpha: alpha}
}
