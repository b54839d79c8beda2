// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package platform

import (
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/hwc"
	"github.com/gogpu/hwc/compositor"
	"github.com/gogpu/hwc/device"
	"github.com/gogpu/hwc/display"
)

// ReportMode selects the composer report.
type ReportMode string

const (
	ReportOff ReportMode = "off"
	ReportLog ReportMode = "log"
)

// ParseReportMode parses the hwc-report option.
func ParseReportMode(s string) (ReportMode, error) {
	switch m := ReportMode(s); m {
	case ReportOff, ReportLog:
		return m, nil
	case "":
		return ReportOff, nil
	}
	return "", fmt.Errorf("platform: invalid hwc-report %q (valid options are %q and %q)", s, ReportOff, ReportLog)
}

// NewReport returns the report for mode.
func NewReport(mode ReportMode) device.Report {
	if mode == ReportLog {
		return device.NewLogReport(nil)
	}
	return device.NullReport{}
}

type options struct {
	tuning hwc.Tuning
	report device.Report
	format gputypes.TextureFormat
}

// Option configures a ComponentFactory.
type Option func(*options)

// WithTuning sets the tuning of the created devices.
func WithTuning(t hwc.Tuning) Option {
	return func(o *options) { o.tuning = t }
}

// WithReport sets the composer report.
func WithReport(r device.Report) Option {
	return func(o *options) { o.report = r }
}

// WithFormat sets the pixel format of the displays of a composer that
// does not come with a framebuffer device.
func WithFormat(f gputypes.TextureFormat) Option {
	return func(o *options) { o.format = f }
}

// ComponentFactory creates the display components of one platform. It
// opens the composer once; when that fails the framebuffer device is used
// without overlays.
type ComponentFactory struct {
	loader Loader
	opts   options
	hub    *device.EventHub

	composer device.Composer
	hooks    *device.Hooks
	version  device.Version
	variant  device.Variant
	fb       device.FramebufferDevice
	numFB    int

	mu  sync.Mutex
	dev device.DisplayDevice
}

// NewComponentFactory opens the modules of l.
func NewComponentFactory(l Loader, opts ...Option) (*ComponentFactory, error) {
	const op = "platform.NewComponentFactory"
	f := &ComponentFactory{
		loader: l,
		opts: options{
			tuning: hwc.DefaultTuning(),
			report: device.NullReport{},
			format: gputypes.TextureFormatRGBA8Unorm,
		},
		hub:   device.NewEventHub(),
		numFB: compositor.DefaultFramebuffers,
	}
	for _, opt := range opts {
		opt(&f.opts)
	}
	if err := f.opts.tuning.Validate(); err != nil {
		return nil, hwc.NewError(hwc.KindUnsupported, op, err)
	}

	backup := false
	composer, err := l.OpenComposer()
	if err == nil {
		f.version, err = device.VersionFor(composer.Capabilities().APIVersion)
	}
	if err != nil {
		hwc.Logger().Warn("platform: composer unavailable, falling back to framebuffer", "err", err)
		backup = true
	}

	if backup || f.version == device.Version10 {
		fb, err := l.OpenFramebuffer()
		if err != nil {
			return nil, hwc.NewError(hwc.KindProbe, op, err)
		}
		f.fb = fb
		f.numFB = device.NumFramebuffers(fb)
	}

	if backup {
		f.variant = device.VariantFramebuffer
		return f, nil
	}
	if f.variant, err = device.VariantForVersion(f.version); err != nil {
		return nil, err
	}
	f.opts.report.Version(f.version)
	f.composer = device.WithReport(composer, f.opts.report)
	f.hooks = device.NewHooks(f.hub)
	composer.RegisterHooks(f.hooks)
	return f, nil
}

// Variant returns the variant the factory creates devices for.
func (f *ComponentFactory) Variant() device.Variant { return f.variant }

// Version returns the composer version, zero when there is no composer.
func (f *ComponentFactory) Version() device.Version { return f.version }

// NumFramebuffers returns how many framebuffers each render context
// cycles through.
func (f *ComponentFactory) NumFramebuffers() int { return f.numFB }

// Events returns the hub composer notifications are delivered to.
func (f *ComponentFactory) Events() *device.EventHub { return f.hub }

// DisplayDevice returns the display device of the variant, creating it
// on first use.
func (f *ComponentFactory) DisplayDevice() (device.DisplayDevice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dev != nil {
		return f.dev, nil
	}
	t := f.opts.tuning
	var err error
	switch f.variant {
	case device.VariantFramebuffer:
		f.opts.report.LegacyFramebuffer()
		f.dev = device.NewFBDevice(f.fb, t)
	case device.VariantOverlayLegacy:
		f.dev = device.NewHwcFbDevice(f.composer, f.fb, t)
	case device.VariantIntegerCrop, device.VariantFloatCrop:
		f.dev, err = device.NewHwcDevice(f.composer, f.variant, t)
	case device.VariantV2:
		f.dev = device.NewHwcDevice20(f.composer, f.hub, t)
	default:
		err = hwc.Errorf(hwc.KindUnsupported, "platform.DisplayDevice", "variant %v", f.variant)
	}
	if err != nil {
		return nil, err
	}
	return f.dev, nil
}

// Control returns the power control matching the composer version.
func (f *ComponentFactory) Control() (device.Control, error) {
	if f.variant == device.VariantFramebuffer {
		return device.NewFbControl(f.fb), nil
	}
	if !f.version.Less(device.Version14) {
		return device.NewPowerModeControl(f.composer, f.opts.format), nil
	}
	format := f.opts.format
	if f.version == device.Version10 {
		format = f.fb.Format()
	}
	ctl, err := device.NewBlankingControl(f.composer, format)
	if err != nil {
		return nil, err
	}
	return ctl, nil
}

// RenderContext creates the fallback render context of an output.
func (f *ComponentFactory) RenderContext(_ device.DisplayID, size hwc.Size) (compositor.RenderContext, error) {
	return compositor.NewPixmapContext(f.loader.Allocator(), size, compositor.WithFramebuffers(f.numFB))
}

// Close detaches the composer notifications.
func (f *ComponentFactory) Close() {
	if f.hooks != nil {
		f.hooks.Detach()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.dev.(interface{ Close() }); ok {
		c.Close()
	}
}

var _ display.ComponentFactory = (*ComponentFactory)(nil)
