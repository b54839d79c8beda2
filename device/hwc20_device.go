// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package device

import (
	"errors"
	"sync"

	"github.com/gogpu/hwc"
	"github.com/gogpu/hwc/buffer"
	"github.com/gogpu/hwc/layer"
)

// HwcDevice20 drives composer 2.0. The composer reports display
// connection through hotplug, and displays not connected are skipped.
// Present failures are logged, not returned, since the next present
// usually succeeds.
type HwcDevice20 struct {
	commitState
	composer Composer
	policy   *layer.Policy
	hub      *EventHub

	mu          sync.Mutex
	active      map[DisplayID]bool
	lastPresent map[DisplayID]buffer.Fence
}

// NewHwcDevice20 creates the device and subscribes it to hotplug
// notifications of hub. The primary display starts active.
func NewHwcDevice20(c Composer, hub *EventHub, tuning hwc.Tuning) *HwcDevice20 {
	d := &HwcDevice20{
		commitState: newCommitState(tuning),
		composer:    c,
		policy:      VariantV2.NewPolicy(c.Capabilities(), tuning),
		hub:         hub,
		active:      map[DisplayID]bool{DisplayPrimary: true},
		lastPresent: make(map[DisplayID]buffer.Fence),
	}
	if hub != nil {
		hub.Subscribe(d, Callbacks{Hotplug: d.hotplug})
	}
	return d
}

// Close stops tracking hotplug notifications.
func (d *HwcDevice20) Close() {
	if d.hub != nil {
		d.hub.Unsubscribe(d)
	}
}

func (d *HwcDevice20) hotplug(id DisplayID, connected bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.active[id] = connected
	if !connected {
		delete(d.lastPresent, id)
	}
}

// Active reports whether display id is connected.
func (d *HwcDevice20) Active(id DisplayID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active[id]
}

func (d *HwcDevice20) Variant() Variant { return VariantV2 }

func (d *HwcDevice20) Policy() *layer.Policy { return d.policy }

func (d *HwcDevice20) CanSwapBuffers() bool { return true }

// Prepare validates the connected displays.
func (d *HwcDevice20) Prepare(contents []Contents) error {
	if err := d.composer.Prepare(composerDisplays(contents, d.Active)); err != nil {
		return commitError("HwcDevice20.Prepare", err)
	}
	d.prepared(contents)
	return nil
}

// Set presents the connected displays. The client target is synchronized
// before presenting, and the present fence of the previous frame is waited
// on before it is replaced.
func (d *HwcDevice20) Set(contents []Contents) error {
	next := d.markFences(contents)
	displays := composerDisplays(contents, d.Active)
	for _, disp := range displays {
		for _, l := range disp.Layers {
			if l.Composition == layer.CompositionTarget && l.AcquireFence != nil {
				l.AcquireFence.Wait()
				l.AcquireFence = nil
			}
		}
	}

	if err := d.composer.Set(displays); err != nil {
		if errors.Is(err, hwc.ErrDisconnected) {
			return commitError("HwcDevice20.Set", err)
		}
		hwc.Logger().Warn("hwc: present failed", "err", err)
	}

	d.mu.Lock()
	var previous []buffer.Fence
	for _, disp := range displays {
		if f := d.lastPresent[disp.ID]; f != nil {
			previous = append(previous, f)
		}
		d.lastPresent[disp.ID] = disp.RetireFence
	}
	d.mu.Unlock()
	for _, f := range previous {
		f.Wait()
	}

	d.committed(contents, displays, next)
	return nil
}

var _ DisplayDevice = (*HwcDevice20)(nil)
