// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package device

import (
	"errors"
	"fmt"
	"time"

	"github.com/gogpu/hwc"
	"github.com/gogpu/hwc/buffer"
	"github.com/gogpu/hwc/layer"
)

// DisplayID names a display of the composer.
type DisplayID uint8

const (
	DisplayPrimary DisplayID = iota
	DisplayExternal
	DisplayVirtual
)

func (id DisplayID) String() string {
	switch id {
	case DisplayPrimary:
		return "primary"
	case DisplayExternal:
		return "external"
	case DisplayVirtual:
		return "virtual"
	default:
		return fmt.Sprintf("display%d", uint8(id))
	}
}

// PowerMode is the power state of an output.
type PowerMode uint8

const (
	PowerOn PowerMode = iota
	PowerStandby
	PowerSuspend
	PowerOff
)

func (m PowerMode) String() string {
	switch m {
	case PowerOn:
		return "on"
	case PowerStandby:
		return "standby"
	case PowerSuspend:
		return "suspend"
	case PowerOff:
		return "off"
	default:
		return fmt.Sprintf("PowerMode(%d)", uint8(m))
	}
}

// HWPowerMode is a composer power mode. Doze modes keep the panel showing
// the last frame at reduced power.
type HWPowerMode uint8

const (
	HWPowerOff HWPowerMode = iota
	HWPowerDoze
	HWPowerNormal
	HWPowerDozeSuspend
)

// ConfigID identifies a display configuration of the composer.
type ConfigID uint32

// Attributes describe one display configuration.
type Attributes struct {
	Width, Height int
	VsyncPeriod   time.Duration

	// DPIX and DPIY are dots per inch, 0 when unknown.
	DPIX, DPIY float64
}

// Size returns the configured resolution.
func (a Attributes) Size() hwc.Size { return hwc.Size{Width: a.Width, Height: a.Height} }

// Capabilities are reported by the composer once when it is opened.
type Capabilities struct {
	// APIVersion is the raw device API version, decoded by VersionFor.
	APIVersion uint32

	// DeviceComposition reports that a 2.0 composer scans layers out
	// itself instead of always asking for client composition.
	DeviceComposition bool
}

// ComposerDisplay is the submission of one display to the composer.
type ComposerDisplay struct {
	ID     DisplayID
	Layers []*layer.NativeLayer

	// RetireFence is set by Set. It signals when this frame is replaced on
	// screen.
	RetireFence buffer.Fence
}

// Composer is the hardware composer HAL.
//
// Prepare may change overlay layers to client composition. Set fills the
// release fence of every layer it scanned out and the retire fence of
// every display. A composer reports an unplugged display by returning an
// error matching hwc.ErrDisconnected.
type Composer interface {
	Capabilities() Capabilities
	Prepare(displays []*ComposerDisplay) error
	Set(displays []*ComposerDisplay) error

	VsyncSignalOn(id DisplayID) error
	VsyncSignalOff(id DisplayID) error

	// DisplayOn and DisplayOff unblank and blank a display. Composer 2.0
	// does not support them and returns hwc.ErrUnsupported.
	DisplayOn(id DisplayID) error
	DisplayOff(id DisplayID) error

	// SetPowerMode is supported from composer 1.4.
	SetPowerMode(id DisplayID, mode HWPowerMode) error

	// RegisterHooks hands the composer the context its notifications are
	// delivered through. A nil hooks unregisters.
	RegisterHooks(h *Hooks)

	DisplayConfigs(id DisplayID) ([]ConfigID, error)
	DisplayAttributes(id DisplayID, cfg ConfigID) (Attributes, error)
}

// commitError classifies a composer failure.
func commitError(op string, err error) error {
	if err == nil {
		return nil
	}
	var he *hwc.Error
	switch {
	case errors.As(err, &he):
		return err
	case errors.Is(err, hwc.ErrDisconnected):
		return hwc.NewError(hwc.KindDisconnected, op, err)
	case errors.Is(err, hwc.ErrUnsupported):
		return hwc.NewError(hwc.KindUnsupported, op, err)
	default:
		return hwc.NewError(hwc.KindTransientCommit, op, err)
	}
}
