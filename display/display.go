// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package display assembles outputs, the display device and its event
// hub into the commit interface a display server drives once per frame.
//
// The compositor goroutine posts renderables to each output and calls
// Group.Post. Hotplug and vsync notifications arrive on other goroutines
// and update the output set and the frame counters.
//
// Example:
//
//	d, err := display.New(factory)
//	if err != nil {
//		return err
//	}
//	defer d.Close()
//	d.ForEachDisplaySyncGroup(func(g *display.Group) {
//		g.ForEachOutput(func(o *display.Output) { o.PostRenderables(scene) })
//		if err := g.Post(); err != nil {
//			log.Fatal(err)
//		}
//		time.Sleep(g.RecommendedSleep())
//	})
package display

import (
	"image"
	"math"
	"sync"
	"time"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/hwc"
	"github.com/gogpu/hwc/compositor"
	"github.com/gogpu/hwc/device"
)

// ComponentFactory creates the parts of a Display.
type ComponentFactory interface {
	DisplayDevice() (device.DisplayDevice, error)
	Control() (device.Control, error)

	// Events returns the hub composer notifications are delivered to, or
	// nil when the device has none.
	Events() *device.EventHub

	// RenderContext creates the GPU fallback context of an output.
	RenderContext(id device.DisplayID, size hwc.Size) (compositor.RenderContext, error)
}

// Frame counts the vsyncs of one output.
type Frame struct {
	// MSC is the number of vsyncs seen.
	MSC uint64

	// Timestamp is the monotonic time of the last vsync.
	Timestamp time.Duration
}

// Mode is a display mode.
type Mode struct {
	Size        hwc.Size
	RefreshRate float64
}

// OutputInfo describes one output of the display configuration.
type OutputInfo struct {
	ID        device.DisplayID
	Connected bool

	// Used reports whether the output is part of the sync group.
	Used bool

	Modes         []Mode
	PreferredMode int

	// PhysicalSizeMM is derived from the DPI, zero when unknown.
	PhysicalSizeMM hwc.Size
	DPIX, DPIY     float64
	VsyncPeriod    time.Duration
	Format         gputypes.TextureFormat

	PowerMode device.PowerMode
	Transform hwc.Transform
	Viewport  image.Rectangle
}

// Virtual output defaults.
var (
	virtualMode   = Mode{Size: hwc.Size{Width: 1920, Height: 1080}, RefreshRate: 60}
	virtualSizeMM = hwc.Size{Width: 660, Height: 370}
)

// Option configures a Display.
type Option func(*Display)

// WithDisplayTuning sets the tuning passed to the sync group.
func WithDisplayTuning(t hwc.Tuning) Option {
	return func(d *Display) { d.tuning = t }
}

// OnConfigurationChange registers fn to run after hotplug changed the
// output set.
func OnConfigurationChange(fn func()) Option {
	return func(d *Display) { d.onChange = fn }
}

// Display is the commit interface of one display device.
type Display struct {
	factory  ComponentFactory
	dev      device.DisplayDevice
	control  device.Control
	hub      *device.EventHub
	tuning   hwc.Tuning
	onChange func()
	group    *Group

	cfgMu  sync.Mutex
	paused map[device.DisplayID]device.PowerMode

	frameMu sync.Mutex
	frames  map[device.DisplayID]Frame
}

// New assembles a display from factory. The primary output must be
// connected; a connected external output is added too.
func New(factory ComponentFactory, opts ...Option) (*Display, error) {
	d := &Display{
		factory: factory,
		tuning:  hwc.DefaultTuning(),
		frames:  make(map[device.DisplayID]Frame),
	}
	for _, opt := range opts {
		opt(d)
	}

	var err error
	if d.dev, err = factory.DisplayDevice(); err != nil {
		return nil, err
	}
	if d.control, err = factory.Control(); err != nil {
		return nil, err
	}

	primary, err := d.newOutput(device.DisplayPrimary)
	if err != nil {
		return nil, err
	}
	if primary == nil {
		return nil, hwc.Errorf(hwc.KindUnsupported, "display.New", "primary output not connected")
	}
	d.group = NewGroup(d.dev, primary, WithTuning(d.tuning), WithRecoveryHook(d.refresh))

	if ext, err := d.newOutput(device.DisplayExternal); err != nil {
		hwc.Logger().Warn("display: external output unavailable", "err", err)
	} else if ext != nil {
		d.group.Add(ext)
	}

	if d.hub = factory.Events(); d.hub != nil {
		d.hub.Subscribe(d, device.Callbacks{
			Vsync:   d.vsync,
			Hotplug: d.hotplug,
		})
	}
	hwc.Logger().Info("display: ready", "variant", d.dev.Variant(), "outputs", len(d.Outputs()))
	return d, nil
}

// newOutput powers on and creates output id, or returns nil when it is
// not connected.
func (d *Display) newOutput(id device.DisplayID) (*Output, error) {
	cfg, err := d.control.ActiveConfig(id)
	if err != nil {
		return nil, err
	}
	if !cfg.Connected {
		return nil, nil
	}
	if err := d.control.PowerMode(id, device.PowerOn); err != nil {
		return nil, err
	}
	ctx, err := d.factory.RenderContext(id, cfg.Size)
	if err != nil {
		return nil, err
	}
	return NewOutput(id, d.dev.Policy(), ctx, d.control, cfg.Size.Rect()), nil
}

// Close stops receiving notifications and releases the render contexts.
func (d *Display) Close() {
	if d.hub != nil {
		d.hub.Unsubscribe(d)
	}
	for _, id := range []device.DisplayID{device.DisplayPrimary, device.DisplayExternal} {
		if o, ok := d.group.Output(id); ok {
			o.close()
		}
	}
}

// Device returns the display device.
func (d *Display) Device() device.DisplayDevice { return d.dev }

// ForEachDisplaySyncGroup calls fn for every group of outputs committed
// together. There is one group per device.
func (d *Display) ForEachDisplaySyncGroup(fn func(*Group)) { fn(d.group) }

// Configure applies a power mode, transform and viewport to output id.
func (d *Display) Configure(id device.DisplayID, mode device.PowerMode, transform hwc.Transform, viewport image.Rectangle) error {
	d.cfgMu.Lock()
	defer d.cfgMu.Unlock()
	return d.group.Configure(id, mode, transform, viewport)
}

// Pause powers off every output and forgets the resident overlays.
// Resume restores the power modes.
func (d *Display) Pause() error {
	d.cfgMu.Lock()
	defer d.cfgMu.Unlock()
	if d.paused != nil {
		return nil
	}
	d.paused = make(map[device.DisplayID]device.PowerMode)
	for _, o := range d.group.active() {
		d.paused[o.ID()] = o.PowerMode()
		if err := d.group.Configure(o.ID(), device.PowerOff, o.Transform(), o.Viewport()); err != nil {
			return err
		}
	}
	d.dev.ContentCleared()
	return nil
}

// Resume restores the power modes saved by Pause.
func (d *Display) Resume() error {
	d.cfgMu.Lock()
	defer d.cfgMu.Unlock()
	paused := d.paused
	d.paused = nil
	for id, mode := range paused {
		o, ok := d.group.Output(id)
		if !ok {
			continue
		}
		if err := d.group.Configure(id, mode, o.Transform(), o.Viewport()); err != nil {
			return err
		}
	}
	return nil
}

// Paused reports whether the display is paused.
func (d *Display) Paused() bool {
	d.cfgMu.Lock()
	defer d.cfgMu.Unlock()
	return d.paused != nil
}

// Subscribe registers callbacks for composer notifications. It does
// nothing when the device has no event hub.
func (d *Display) Subscribe(token any, cb device.Callbacks) {
	if d.hub != nil {
		d.hub.Subscribe(token, cb)
	}
}

// Unsubscribe removes the callbacks of token. It waits for a callback of
// token that is running.
func (d *Display) Unsubscribe(token any) {
	if d.hub != nil {
		d.hub.Unsubscribe(token)
	}
}

// Outputs describes the primary, external and virtual outputs.
func (d *Display) Outputs() []OutputInfo {
	ids := []device.DisplayID{device.DisplayPrimary, device.DisplayExternal, device.DisplayVirtual}
	out := make([]OutputInfo, 0, len(ids))
	for _, id := range ids {
		if info, ok := d.OutputInfo(id); ok {
			out = append(out, info)
		}
	}
	return out
}

// OutputInfo describes output id.
func (d *Display) OutputInfo(id device.DisplayID) (OutputInfo, bool) {
	if id == device.DisplayVirtual {
		return OutputInfo{
			ID:             id,
			Modes:          []Mode{virtualMode},
			PhysicalSizeMM: virtualSizeMM,
			VsyncPeriod:    time.Second / time.Duration(virtualMode.RefreshRate),
			Format:         gputypes.TextureFormatRGBA8Unorm,
			PowerMode:      device.PowerOff,
			Transform:      hwc.Identity(),
		}, true
	}
	if id != device.DisplayPrimary && id != device.DisplayExternal {
		return OutputInfo{}, false
	}

	cfg, err := d.control.ActiveConfig(id)
	if err != nil {
		hwc.Logger().Warn("display: output query failed", "display", id, "err", err)
		return OutputInfo{}, false
	}
	info := OutputInfo{
		ID:          id,
		Connected:   cfg.Connected,
		DPIX:        cfg.DPIX,
		DPIY:        cfg.DPIY,
		VsyncPeriod: cfg.VsyncPeriod,
		Format:      cfg.Format,
		PowerMode:   device.PowerOff,
		Transform:   hwc.Identity(),
	}
	if cfg.Connected {
		rate := 0.0
		if cfg.VsyncPeriod > 0 {
			rate = float64(time.Second) / float64(cfg.VsyncPeriod)
		}
		info.Modes = []Mode{{Size: cfg.Size, RefreshRate: rate}}
		info.PhysicalSizeMM = hwc.Size{Width: physicalMM(cfg.Size.Width, cfg.DPIX), Height: physicalMM(cfg.Size.Height, cfg.DPIY)}
	}
	if o, ok := d.group.Output(id); ok {
		info.Used = true
		info.PowerMode = o.PowerMode()
		info.Transform = o.Transform()
		info.Viewport = o.Viewport()
	}
	return info, true
}

func physicalMM(px int, dpi float64) int {
	if dpi <= 0 {
		return 0
	}
	return int(math.Round(float64(px) / dpi * 25.4))
}

// LastFrame returns the vsync count of output id.
func (d *Display) LastFrame(id device.DisplayID) Frame {
	d.frameMu.Lock()
	defer d.frameMu.Unlock()
	return d.frames[id]
}

func (d *Display) vsync(id device.DisplayID, timestamp time.Duration) {
	d.frameMu.Lock()
	f := d.frames[id]
	f.MSC++
	f.Timestamp = timestamp
	d.frames[id] = f
	d.frameMu.Unlock()
}

func (d *Display) hotplug(id device.DisplayID, connected bool) {
	if id == device.DisplayPrimary {
		return
	}
	if d.update(id, connected) && d.onChange != nil {
		d.onChange()
	}
}

// update adds or removes output id. It reports whether the output set
// changed.
func (d *Display) update(id device.DisplayID, connected bool) bool {
	d.cfgMu.Lock()
	defer d.cfgMu.Unlock()
	present := d.group.Present(id)
	switch {
	case connected && !present:
		o, err := d.newOutput(id)
		if err != nil || o == nil {
			hwc.Logger().Warn("display: cannot add output", "display", id, "err", err)
			return false
		}
		d.group.Add(o)
		return true
	case !connected && present:
		if err := d.group.Remove(id); err != nil {
			hwc.Logger().Warn("display: cannot remove output", "display", id, "err", err)
			return false
		}
		d.frameMu.Lock()
		delete(d.frames, id)
		d.frameMu.Unlock()
		return true
	}
	return false
}

// refresh re-reads the connection of the external output. It runs after
// a tolerated commit failure, which is often an unnoticed unplug.
func (d *Display) refresh() {
	cfg, err := d.control.ActiveConfig(device.DisplayExternal)
	if err != nil {
		return
	}
	if d.update(device.DisplayExternal, cfg.Connected) && d.onChange != nil {
		d.onChange()
	}
}
