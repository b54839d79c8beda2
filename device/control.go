// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package device

import (
	"sync"
	"time"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/hwc"
)

// DefaultRefreshPeriod is assumed when a device does not report one.
const DefaultRefreshPeriod = time.Second / 60

// OutputConfig is the active configuration of one display.
type OutputConfig struct {
	Connected   bool
	Size        hwc.Size
	Format      gputypes.TextureFormat
	VsyncPeriod time.Duration
	DPIX, DPIY  float64
}

// Control changes the power state of displays and reports their active
// configuration.
type Control interface {
	PowerMode(id DisplayID, mode PowerMode) error
	ActiveConfig(id DisplayID) (OutputConfig, error)
}

// activeConfig reads the first configuration the composer lists.
func activeConfig(c Composer, id DisplayID, format gputypes.TextureFormat) (OutputConfig, error) {
	cfgs, err := c.DisplayConfigs(id)
	if err != nil || len(cfgs) == 0 {
		return OutputConfig{Connected: false, Format: format}, nil
	}
	attrs, err := c.DisplayAttributes(id, cfgs[0])
	if err != nil {
		return OutputConfig{}, commitError("device.ActiveConfig", err)
	}
	period := attrs.VsyncPeriod
	if period <= 0 {
		period = DefaultRefreshPeriod
	}
	return OutputConfig{
		Connected:   true,
		Size:        attrs.Size(),
		Format:      format,
		VsyncPeriod: period,
		DPIX:        attrs.DPIX,
		DPIY:        attrs.DPIY,
	}, nil
}

// BlankingControl controls composers older than 1.4, which only blank and
// unblank displays.
type BlankingControl struct {
	composer Composer
	format   gputypes.TextureFormat

	mu    sync.Mutex
	modes map[DisplayID]PowerMode
}

// NewBlankingControl creates the control. format is the pixel format of
// the displays. Composer 2.0 cannot blank and is rejected.
func NewBlankingControl(c Composer, format gputypes.TextureFormat) (*BlankingControl, error) {
	v, err := VersionFor(c.Capabilities().APIVersion)
	if err != nil {
		return nil, err
	}
	if !v.Less(Version20) {
		return nil, hwc.Errorf(hwc.KindUnsupported, "device.NewBlankingControl", "composer %v has no blanking", v)
	}
	return &BlankingControl{composer: c, format: format, modes: make(map[DisplayID]PowerMode)}, nil
}

// PowerMode unblanks the display and enables vsync for PowerOn, and
// disables vsync and blanks it for standby, suspend and off.
func (b *BlankingControl) PowerMode(id DisplayID, mode PowerMode) error {
	const op = "BlankingControl.PowerMode"
	b.mu.Lock()
	defer b.mu.Unlock()
	current, known := b.modes[id]
	switch {
	case mode == PowerOn:
		if err := b.composer.DisplayOn(id); err != nil {
			return commitError(op, err)
		}
		if err := b.composer.VsyncSignalOn(id); err != nil {
			return commitError(op, err)
		}
	case !known || current == PowerOn:
		if err := b.composer.VsyncSignalOff(id); err != nil {
			return commitError(op, err)
		}
		if err := b.composer.DisplayOff(id); err != nil {
			return commitError(op, err)
		}
	}
	b.modes[id] = mode
	return nil
}

// ActiveConfig returns the composer's configuration of id.
func (b *BlankingControl) ActiveConfig(id DisplayID) (OutputConfig, error) {
	return activeConfig(b.composer, id, b.format)
}

// PowerModeControl controls composers from 1.4 on through power modes.
type PowerModeControl struct {
	composer Composer
	format   gputypes.TextureFormat
}

// NewPowerModeControl creates the control.
func NewPowerModeControl(c Composer, format gputypes.TextureFormat) *PowerModeControl {
	return &PowerModeControl{composer: c, format: format}
}

func hwPowerMode(m PowerMode) HWPowerMode {
	switch m {
	case PowerOn:
		return HWPowerNormal
	case PowerStandby:
		return HWPowerDoze
	case PowerSuspend:
		return HWPowerDozeSuspend
	default:
		return HWPowerOff
	}
}

// PowerMode maps standby and suspend to the doze modes.
func (p *PowerModeControl) PowerMode(id DisplayID, mode PowerMode) error {
	if err := p.composer.SetPowerMode(id, hwPowerMode(mode)); err != nil {
		return commitError("PowerModeControl.PowerMode", err)
	}
	return nil
}

// ActiveConfig returns the composer's configuration of id.
func (p *PowerModeControl) ActiveConfig(id DisplayID) (OutputConfig, error) {
	return activeConfig(p.composer, id, p.format)
}

// FbControl controls a framebuffer device, which only knows the primary
// display.
type FbControl struct {
	fb FramebufferDevice
}

// NewFbControl creates the control.
func NewFbControl(fb FramebufferDevice) *FbControl { return &FbControl{fb: fb} }

// PowerMode blanks the framebuffer for any mode but PowerOn.
func (f *FbControl) PowerMode(id DisplayID, mode PowerMode) error {
	if id != DisplayPrimary {
		return hwc.Errorf(hwc.KindUnsupported, "FbControl.PowerMode", "display %v", id)
	}
	if err := f.fb.SetBlank(mode != PowerOn); err != nil {
		return commitError("FbControl.PowerMode", err)
	}
	return nil
}

// ActiveConfig reports the framebuffer as the connected primary display.
func (f *FbControl) ActiveConfig(id DisplayID) (OutputConfig, error) {
	if id != DisplayPrimary {
		return OutputConfig{Connected: false, Format: f.fb.Format()}, nil
	}
	period := f.fb.RefreshPeriod()
	if period <= 0 {
		period = DefaultRefreshPeriod
	}
	return OutputConfig{
		Connected:   true,
		Size:        f.fb.Size(),
		Format:      f.fb.Format(),
		VsyncPeriod: period,
	}, nil
}

var (
	_ Control = (*BlankingControl)(nil)
	_ Control = (*PowerModeControl)(nil)
	_ Control = (*FbControl)(nil)
)
