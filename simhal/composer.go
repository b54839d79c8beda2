// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package simhal is a simulated display HAL: a scriptable hardware
// composer, a framebuffer device backed by an in-memory display and a
// loader tying them to a heap allocator. It drives the pipeline in tests
// and in the hwcsim tool.
package simhal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/hwc"
	"github.com/gogpu/hwc/buffer"
	"github.com/gogpu/hwc/device"
	"github.com/gogpu/hwc/layer"
)

// DefaultMaxOverlays is the number of overlay planes of a display.
const DefaultMaxOverlays = 4

// ComposerOption configures a Composer.
type ComposerOption func(*Composer)

// WithMaxOverlays sets the overlay planes per display. Overlay layers
// beyond it are changed to client composition, lowest first.
func WithMaxOverlays(n int) ComposerOption {
	return func(c *Composer) { c.maxOverlays = n }
}

// WithoutDeviceComposition makes the composer ask for client
// composition of every layer.
func WithoutDeviceComposition() ComposerOption {
	return func(c *Composer) { c.caps.DeviceComposition = false }
}

// WithDisplay connects display id with attrs.
func WithDisplay(id device.DisplayID, attrs device.Attributes) ComposerOption {
	return func(c *Composer) { c.displays[id] = &simDisplay{attrs: attrs} }
}

// Frame is what the composer showed on one display in one Set.
type Frame struct {
	Display device.DisplayID

	// Layers lists the composition of each submitted layer, back to
	// front, as OV, GL, FB or SKIP.
	Layers []layer.Composition
}

type simDisplay struct {
	attrs   device.Attributes
	vsync   bool
	blanked bool
	power   device.HWPowerMode
	retire  *buffer.SyncFence
	release []*buffer.SyncFence
}

// replace signals the fences of the frame on screen.
func (d *simDisplay) replace() {
	for _, f := range d.release {
		f.Signal()
	}
	d.release = nil
	if d.retire != nil {
		d.retire.Signal()
		d.retire = nil
	}
}

// Composer is a simulated hardware composer. Release and retire fences
// handed out by Set signal when the next frame of that display starts,
// at its Prepare, so the compositor may reuse the buffers of the frame
// before last while it renders the next one.
type Composer struct {
	caps        device.Capabilities
	maxOverlays int

	mu          sync.Mutex
	displays    map[device.DisplayID]*simDisplay
	hooks       *device.Hooks
	prepareErrs []error
	setErrs     []error
	frames      []Frame
	sets        int
}

// NewComposer creates a composer of version v with the primary display
// connected at 1280x720, 60Hz.
func NewComposer(v device.Version, opts ...ComposerOption) *Composer {
	c := &Composer{
		caps:        device.Capabilities{APIVersion: v.Raw(), DeviceComposition: true},
		maxOverlays: DefaultMaxOverlays,
		displays: map[device.DisplayID]*simDisplay{
			device.DisplayPrimary: {attrs: device.Attributes{
				Width:       1280,
				Height:      720,
				VsyncPeriod: device.DefaultRefreshPeriod,
				DPIX:        160,
				DPIY:        160,
			}},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Composer) version() device.Version {
	v, _ := device.VersionFor(c.caps.APIVersion)
	return v
}

func (c *Composer) Capabilities() device.Capabilities { return c.caps }

// FailPrepare queues errors returned by the next calls to Prepare. A nil
// entry lets that call succeed.
func (c *Composer) FailPrepare(errs ...error) {
	c.mu.Lock()
	c.prepareErrs = append(c.prepareErrs, errs...)
	c.mu.Unlock()
}

// FailSet queues errors returned by the next calls to Set.
func (c *Composer) FailSet(errs ...error) {
	c.mu.Lock()
	c.setErrs = append(c.setErrs, errs...)
	c.mu.Unlock()
}

func pop(q *[]error) error {
	if len(*q) == 0 {
		return nil
	}
	err := (*q)[0]
	*q = (*q)[1:]
	return err
}

func (c *Composer) connected(id device.DisplayID) (*simDisplay, error) {
	d, ok := c.displays[id]
	if !ok {
		return nil, fmt.Errorf("simhal: display %v: %w", id, hwc.ErrDisconnected)
	}
	return d, nil
}

// Prepare validates the layers. Without device composition every layer
// is changed to client composition; otherwise overlays beyond the plane
// count are.
func (c *Composer) Prepare(displays []*device.ComposerDisplay) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, disp := range displays {
		if d, ok := c.displays[disp.ID]; ok {
			d.replace()
		}
	}
	if err := pop(&c.prepareErrs); err != nil {
		return err
	}
	for _, disp := range displays {
		if _, err := c.connected(disp.ID); err != nil {
			return err
		}
		overlays := 0
		for _, l := range disp.Layers {
			if l.Composition == layer.CompositionOverlay {
				overlays++
			}
		}
		demote := overlays - c.maxOverlays
		if !c.caps.DeviceComposition {
			demote = overlays
		}
		for _, l := range disp.Layers {
			if demote <= 0 {
				break
			}
			if l.Composition == layer.CompositionOverlay {
				l.Composition = layer.CompositionClient
				demote--
			}
		}
	}
	return nil
}

// Set shows the frame. It waits for the acquire fences, signals the
// fences of the frame it replaces if Prepare has not and hands out new
// ones.
func (c *Composer) Set(displays []*device.ComposerDisplay) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := pop(&c.setErrs); err != nil {
		return err
	}
	for _, disp := range displays {
		if _, err := c.connected(disp.ID); err != nil {
			return err
		}
	}
	c.sets++
	for _, disp := range displays {
		d := c.displays[disp.ID]
		d.replace()

		frame := Frame{Display: disp.ID}
		for _, l := range disp.Layers {
			frame.Layers = append(frame.Layers, l.Composition)
			if l.AcquireFence != nil {
				l.AcquireFence.Wait()
			}
			if l.Composition == layer.CompositionOverlay || l.Composition == layer.CompositionTarget {
				f := buffer.NewSyncFence()
				d.release = append(d.release, f)
				l.ReleaseFence = f
			}
		}
		d.retire = buffer.NewSyncFence()
		disp.RetireFence = d.retire
		c.frames = append(c.frames, frame)
	}
	return nil
}

// Flush signals every outstanding fence, as if the displays went dark.
func (c *Composer) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range c.displays {
		d.replace()
	}
}

func (c *Composer) VsyncSignalOn(id device.DisplayID) error  { return c.setVsync(id, true) }
func (c *Composer) VsyncSignalOff(id device.DisplayID) error { return c.setVsync(id, false) }

func (c *Composer) setVsync(id device.DisplayID, on bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, err := c.connected(id)
	if err != nil {
		return err
	}
	d.vsync = on
	return nil
}

func (c *Composer) DisplayOn(id device.DisplayID) error  { return c.blank(id, false) }
func (c *Composer) DisplayOff(id device.DisplayID) error { return c.blank(id, true) }

func (c *Composer) blank(id device.DisplayID, blanked bool) error {
	if !c.version().Less(device.Version20) {
		return fmt.Errorf("simhal: blanking on composer %v: %w", c.version(), hwc.ErrUnsupported)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	d, err := c.connected(id)
	if err != nil {
		return err
	}
	d.blanked = blanked
	return nil
}

// SetPowerMode changes the power mode of a display. Composers before 1.4
// only blank.
func (c *Composer) SetPowerMode(id device.DisplayID, mode device.HWPowerMode) error {
	if c.version().Less(device.Version14) {
		return fmt.Errorf("simhal: power modes on composer %v: %w", c.version(), hwc.ErrUnsupported)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	d, err := c.connected(id)
	if err != nil {
		return err
	}
	d.power = mode
	d.blanked = mode == device.HWPowerOff
	// Composer 2.0 delivers vsync whenever the display is on.
	if !c.version().Less(device.Version20) {
		d.vsync = mode != device.HWPowerOff
	}
	return nil
}

func (c *Composer) RegisterHooks(h *device.Hooks) {
	c.mu.Lock()
	c.hooks = h
	c.mu.Unlock()
}

func (c *Composer) DisplayConfigs(id device.DisplayID) ([]device.ConfigID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.connected(id); err != nil {
		return nil, err
	}
	return []device.ConfigID{1}, nil
}

func (c *Composer) DisplayAttributes(id device.DisplayID, _ device.ConfigID) (device.Attributes, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, err := c.connected(id)
	if err != nil {
		return device.Attributes{}, err
	}
	return d.attrs, nil
}

func (c *Composer) currentHooks() *device.Hooks {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hooks
}

// Hotplug connects or disconnects display id and notifies the hooks.
// attrs is ignored on disconnect.
func (c *Composer) Hotplug(id device.DisplayID, connected bool, attrs device.Attributes) {
	c.mu.Lock()
	if connected {
		c.displays[id] = &simDisplay{attrs: attrs}
	} else if d, ok := c.displays[id]; ok {
		d.replace()
		delete(c.displays, id)
	}
	c.mu.Unlock()
	if h := c.currentHooks(); h != nil {
		h.Hotplug(id, connected)
	}
}

// Invalidate asks the compositor for a new frame.
func (c *Composer) Invalidate() {
	if h := c.currentHooks(); h != nil {
		h.Invalidate()
	}
}

// Vsync delivers one vsync to every display with vsync enabled.
func (c *Composer) Vsync(timestamp time.Duration) {
	c.mu.Lock()
	var ids []device.DisplayID
	for id, d := range c.displays {
		if d.vsync {
			ids = append(ids, id)
		}
	}
	hooks := c.hooks
	c.mu.Unlock()
	if hooks == nil {
		return
	}
	for _, id := range ids {
		hooks.Vsync(id, timestamp)
	}
}

// RunVsync delivers vsyncs every period until ctx is done.
func (c *Composer) RunVsync(ctx context.Context, period time.Duration) error {
	start := time.Now()
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			c.Vsync(now.Sub(start))
		}
	}
}

// Frames returns the frames shown so far.
func (c *Composer) Frames() []Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Frame(nil), c.frames...)
}

// Sets returns the number of successful Set calls.
func (c *Composer) Sets() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sets
}

// VsyncEnabled reports whether vsync is delivered for display id.
func (c *Composer) VsyncEnabled(id device.DisplayID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.displays[id]
	return ok && d.vsync
}

// Blanked reports whether display id is blanked.
func (c *Composer) Blanked(id device.DisplayID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.displays[id]
	return ok && d.blanked
}

var _ device.Composer = (*Composer)(nil)
