// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package simhal

import (
	"fmt"
	"sync"

	"github.com/gogpu/hwc"
	"github.com/gogpu/hwc/buffer"
	"github.com/gogpu/hwc/device"
	"github.com/gogpu/hwc/framebuffer"
)

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithVersion sets the composer API version. The default is 1.3.
func WithVersion(v device.Version) LoaderOption {
	return func(l *Loader) { l.version = v }
}

// WithComposerOptions passes opts to the composer the loader opens.
func WithComposerOptions(opts ...ComposerOption) LoaderOption {
	return func(l *Loader) { l.composerOpts = append(l.composerOpts, opts...) }
}

// WithoutComposer makes the platform look like it has no composer
// module: lookup and open both fail.
func WithoutComposer() LoaderOption {
	return func(l *Loader) {
		l.findErr = fmt.Errorf("simhal: composer module: %w", hwc.ErrProbe)
		l.openErr = l.findErr
	}
}

// WithBrokenComposer makes the composer module present but failing to
// open.
func WithBrokenComposer() LoaderOption {
	return func(l *Loader) {
		l.openErr = fmt.Errorf("simhal: open composer: %w", hwc.ErrResourceAcquisition)
	}
}

// WithoutFramebuffer makes the framebuffer device fail to open.
func WithoutFramebuffer() LoaderOption {
	return func(l *Loader) {
		l.fbErr = fmt.Errorf("simhal: open framebuffer: %w", hwc.ErrResourceAcquisition)
	}
}

// WithPanickingProbe makes FindComposer panic.
func WithPanickingProbe() LoaderOption {
	return func(l *Loader) { l.panics = true }
}

// WithFramebufferSize sets the size of the simulated panel.
func WithFramebufferSize(size hwc.Size) LoaderOption {
	return func(l *Loader) { l.fbSize = size }
}

// Loader opens the simulated composer and framebuffer. It hands out the
// same composer and framebuffer on every open so a test can script them.
type Loader struct {
	version      device.Version
	composerOpts []ComposerOption
	findErr      error
	openErr      error
	fbErr        error
	panics       bool
	fbSize       hwc.Size
	alloc        *buffer.HeapAllocator

	mu       sync.Mutex
	composer *Composer
	display  *framebuffer.ImageDisplay
	fb       *framebuffer.DisplayerDevice
}

// NewLoader creates a loader of a 1.3 composer with a 1280x720 panel.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		version: device.Version13,
		fbSize:  hwc.Size{Width: 1280, Height: 720},
		alloc:   buffer.NewHeapAllocator(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Loader) FindComposer() error {
	if l.panics {
		panic("simhal: composer lookup crashed")
	}
	return l.findErr
}

// OpenComposer returns the composer, creating it on first use.
func (l *Loader) OpenComposer() (device.Composer, error) {
	if l.openErr != nil {
		return nil, l.openErr
	}
	return l.Composer(), nil
}

// Composer returns the simulated composer even when opening it is set up
// to fail.
func (l *Loader) Composer() *Composer {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.composer == nil {
		opts := append([]ComposerOption{WithDisplay(device.DisplayPrimary, device.Attributes{
			Width:       l.fbSize.Width,
			Height:      l.fbSize.Height,
			VsyncPeriod: device.DefaultRefreshPeriod,
			DPIX:        160,
			DPIY:        160,
		})}, l.composerOpts...)
		l.composer = NewComposer(l.version, opts...)
	}
	return l.composer
}

// OpenFramebuffer returns the framebuffer device showing into an
// in-memory panel.
func (l *Loader) OpenFramebuffer() (device.FramebufferDevice, error) {
	if l.fbErr != nil {
		return nil, l.fbErr
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fb == nil {
		l.display = framebuffer.NewImageDisplay(l.fbSize.Width, l.fbSize.Height)
		l.fb = framebuffer.NewDisplayerDevice(l.display)
	}
	return l.fb, nil
}

// Panel returns the in-memory panel behind the framebuffer device, nil
// before OpenFramebuffer.
func (l *Loader) Panel() *framebuffer.ImageDisplay {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.display
}

func (l *Loader) Allocator() buffer.Allocator { return l.alloc }
