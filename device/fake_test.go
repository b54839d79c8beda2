// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package device

import (
	"fmt"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/hwc"
	"github.com/gogpu/hwc/buffer"
	"github.com/gogpu/hwc/compositor"
	"github.com/gogpu/hwc/layer"
)

type fakeComposer struct {
	mu         sync.Mutex
	caps       Capabilities
	prepareErr error
	setErr     error
	reject     map[buffer.Handle]bool
	calls      []string
	displays   []DisplayID
	attrs      map[DisplayID]Attributes
	hooks      *Hooks
}

func newFakeComposer(v Version) *fakeComposer {
	return &fakeComposer{
		caps:   Capabilities{APIVersion: v.Raw(), DeviceComposition: true},
		reject: make(map[buffer.Handle]bool),
		attrs: map[DisplayID]Attributes{
			DisplayPrimary: {Width: 320, Height: 240, VsyncPeriod: 16 * time.Millisecond, DPIX: 160, DPIY: 160},
		},
	}
}

func (c *fakeComposer) record(format string, args ...any) {
	c.mu.Lock()
	c.calls = append(c.calls, fmt.Sprintf(format, args...))
	c.mu.Unlock()
}

func (c *fakeComposer) Capabilities() Capabilities { return c.caps }

func (c *fakeComposer) Prepare(displays []*ComposerDisplay) error {
	c.record("prepare")
	if c.prepareErr != nil {
		return c.prepareErr
	}
	for _, d := range displays {
		for _, l := range d.Layers {
			if l.Composition == layer.CompositionOverlay && c.reject[l.Handle] {
				l.Composition = layer.CompositionClient
			}
		}
	}
	return nil
}

func (c *fakeComposer) Set(displays []*ComposerDisplay) error {
	c.record("set")
	c.displays = c.displays[:0]
	for _, d := range displays {
		c.displays = append(c.displays, d.ID)
	}
	if c.setErr != nil {
		return c.setErr
	}
	for _, d := range displays {
		for _, l := range d.Layers {
			if l.Composition == layer.CompositionOverlay || l.Composition == layer.CompositionTarget {
				l.ReleaseFence = buffer.SignaledFence()
			}
		}
		d.RetireFence = buffer.SignaledFence()
	}
	return nil
}

func (c *fakeComposer) VsyncSignalOn(id DisplayID) error  { c.record("vsync on %v", id); return nil }
func (c *fakeComposer) VsyncSignalOff(id DisplayID) error { c.record("vsync off %v", id); return nil }

func (c *fakeComposer) DisplayOn(id DisplayID) error {
	if c.caps.APIVersion >= Version20.Raw() {
		return hwc.ErrUnsupported
	}
	c.record("display on %v", id)
	return nil
}

func (c *fakeComposer) DisplayOff(id DisplayID) error {
	if c.caps.APIVersion >= Version20.Raw() {
		return hwc.ErrUnsupported
	}
	c.record("display off %v", id)
	return nil
}

func (c *fakeComposer) SetPowerMode(id DisplayID, mode HWPowerMode) error {
	c.record("power %v %d", id, mode)
	return nil
}

func (c *fakeComposer) RegisterHooks(h *Hooks) { c.hooks = h }

func (c *fakeComposer) DisplayConfigs(id DisplayID) ([]ConfigID, error) {
	if _, ok := c.attrs[id]; !ok {
		return nil, hwc.ErrDisconnected
	}
	return []ConfigID{1}, nil
}

func (c *fakeComposer) DisplayAttributes(id DisplayID, _ ConfigID) (Attributes, error) {
	return c.attrs[id], nil
}

func (c *fakeComposer) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

type fakeFramebuffer struct {
	posted []*buffer.Buffer
	blank  bool
}

func (f *fakeFramebuffer) Size() hwc.Size                 { return hwc.Size{Width: 64, Height: 48} }
func (f *fakeFramebuffer) Format() gputypes.TextureFormat { return gputypes.TextureFormatRGBA8Unorm }
func (f *fakeFramebuffer) NumBuffers() int                { return 1 }
func (f *fakeFramebuffer) RefreshPeriod() time.Duration   { return 0 }
func (f *fakeFramebuffer) Post(b *buffer.Buffer) error    { f.posted = append(f.posted, b); return nil }
func (f *fakeFramebuffer) SetBlank(blank bool) error      { f.blank = blank; return nil }

type output struct {
	contents Contents
	ctx      *compositor.PixmapContext
}

func newOutput(t *testing.T, alloc buffer.Allocator, id DisplayID, policy *layer.Policy, size hwc.Size) *output {
	t.Helper()
	ctx, err := compositor.NewPixmapContext(alloc, size)
	if err != nil {
		t.Fatalf("NewPixmapContext: %v", err)
	}
	t.Cleanup(ctx.Close)
	return &output{
		ctx: ctx,
		contents: Contents{
			Name:       id,
			List:       layer.NewList(policy.CropAdapter(), hwc.Displacement{}, size),
			Compositor: compositor.NewFallbackRenderer(),
			Context:    ctx,
		},
	}
}

func (o *output) post(policy *layer.Policy, rs ...layer.Renderable) {
	rejected, overlay := policy.Partition(rs)
	o.contents.List.Update(rejected, overlay)
}

// commit runs one frame the way a display group does.
func commit(t *testing.T, d DisplayDevice, outs ...*output) error {
	t.Helper()
	contents := make([]Contents, len(outs))
	for i, o := range outs {
		contents[i] = o.contents
	}
	if err := d.Prepare(contents); err != nil {
		return err
	}
	for _, c := range contents {
		if !c.List.NeedsSwapBuffers() {
			continue
		}
		if err := c.Compositor.Render(c.List.Rejected(), c.List.Offset(), c.Context); err != nil {
			return err
		}
		c.List.SetupFramebuffer(c.Context.LastRenderedBuffer())
		c.List.SwapOccurred()
	}
	return d.Set(contents)
}

func renderable(t *testing.T, alloc buffer.Allocator, alpha float32) layer.Renderable {
	t.Helper()
	b, err := alloc.Alloc(hwc.Size{Width: 4, Height: 4}, gputypes.TextureFormatRGBA8Unorm, gputypes.TextureUsageTextureBinding)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	t.Cleanup(b.Release)
	return layer.Renderable{Buffer: b, Position: image.Rect(0, 0, 4, 4), Transform: hwc.Identity(), Alpha: alpha}
}
