// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package platform probes for a hardware composer and builds the display
// components for the generation it finds.
//
// Loaders are registered by name, typically from an init function of the
// package that talks to the hardware:
//
//	func init() {
//		platform.RegisterLoader("simulated", func() platform.Loader { return simhal.NewLoader() })
//	}
//
// The host process probes every loader, picks the best and creates a
// ComponentFactory from it.
package platform

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/hwc"
	"github.com/gogpu/hwc/buffer"
	"github.com/gogpu/hwc/device"
)

// Priority ranks a platform against the alternatives the host process
// could load.
type Priority int

const (
	PriorityUnsupported Priority = 0
	PrioritySupported   Priority = 128
	PriorityBest        Priority = 256
)

// String returns the priority name.
func (p Priority) String() string {
	switch p {
	case PriorityUnsupported:
		return "unsupported"
	case PrioritySupported:
		return "supported"
	case PriorityBest:
		return "best"
	default:
		return fmt.Sprintf("Priority(%d)", int(p))
	}
}

// Loader opens the hardware modules of a platform.
type Loader interface {
	// FindComposer reports whether a composer module exists without
	// opening it.
	FindComposer() error

	// OpenComposer opens the hardware composer.
	OpenComposer() (device.Composer, error)

	// OpenFramebuffer opens the legacy framebuffer device.
	OpenFramebuffer() (device.FramebufferDevice, error)

	// Allocator returns the buffer allocator of the platform.
	Allocator() buffer.Allocator
}

// Probe reports how well l can drive the displays. It only looks the
// composer module up and never panics; a loader that panics is
// unsupported.
func Probe(l Loader) (p Priority) {
	defer func() {
		if r := recover(); r != nil {
			hwc.Logger().Warn("platform: probe panicked", "panic", r)
			p = PriorityUnsupported
		}
	}()
	if l == nil {
		return PriorityUnsupported
	}
	if err := l.FindComposer(); err != nil {
		hwc.Logger().Info("platform: no composer module", "err", err)
		return PriorityUnsupported
	}
	return PriorityBest
}

var loaders = gpucontext.NewRegistry[Loader]()

// RegisterLoader registers a loader factory under name, replacing an
// earlier one of the same name.
func RegisterLoader(name string, factory func() Loader) {
	loaders.Register(name, factory)
}

// UnregisterLoader removes the loader registered under name.
func UnregisterLoader(name string) { loaders.Unregister(name) }

// Loaders returns the registered loader names, sorted.
func Loaders() []string {
	names := loaders.Available()
	slices.Sort(names)
	return names
}

// LoaderFor creates the loader registered under name.
func LoaderFor(name string) (Loader, error) {
	if !loaders.Has(name) {
		return nil, hwc.Errorf(hwc.KindProbe, "platform.LoaderFor", "no loader %q", name)
	}
	return loaders.Get(name), nil
}

// Candidate is the probe result of one registered loader.
type Candidate struct {
	Name     string
	Priority Priority
}

// ProbeAll probes every registered loader. The result is ordered from
// best to worst, by name within a priority.
func ProbeAll() []Candidate {
	names := Loaders()
	out := make([]Candidate, 0, len(names))
	for _, name := range names {
		out = append(out, Candidate{Name: name, Priority: Probe(loaders.Get(name))})
	}
	slices.SortStableFunc(out, func(a, b Candidate) int { return cmp.Compare(b.Priority, a.Priority) })
	return out
}

// Select returns the best supported loader.
func Select() (string, Loader, error) {
	for _, c := range ProbeAll() {
		if c.Priority > PriorityUnsupported {
			hwc.Logger().Info("platform: selected loader", "name", c.Name, "priority", c.Priority)
			return c.Name, loaders.Get(c.Name), nil
		}
	}
	return "", nil, hwc.Errorf(hwc.KindProbe, "platform.Select", "no supported loader among %v", Loaders())
}
