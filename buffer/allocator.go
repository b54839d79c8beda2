// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package buffer

import (
	"slices"
	"sync"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/hwc"
)

// Allocator creates display buffers.
type Allocator interface {
	// Alloc allocates a buffer for the given usage.
	Alloc(size hwc.Size, format gputypes.TextureFormat, usage gputypes.TextureUsage) (*Buffer, error)

	// AllocFramebuffer allocates a buffer the GPU renders into and the
	// display scans out.
	AllocFramebuffer(size hwc.Size, format gputypes.TextureFormat) (*Buffer, error)

	// SupportedPixelFormats lists the formats Alloc accepts, preferred
	// first.
	SupportedPixelFormats() []gputypes.TextureFormat
}

// FramebufferUsage is the usage of buffers from AllocFramebuffer.
const FramebufferUsage = gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc | gputypes.TextureUsageTextureBinding

// DefaultRowAlignment is the row alignment of HeapAllocator in bytes.
const DefaultRowAlignment = 64

// HeapAllocator allocates buffers in process memory. Rows are padded to
// a fixed alignment the way display allocators pad them for scan-out.
type HeapAllocator struct {
	rowAlign int
	formats  []gputypes.TextureFormat

	mu   sync.Mutex
	live int
}

// HeapOption configures a HeapAllocator.
type HeapOption func(*HeapAllocator)

// WithRowAlignment sets the row alignment in bytes. Values below 1 disable
// padding.
func WithRowAlignment(n int) HeapOption {
	return func(a *HeapAllocator) {
		if n < 1 {
			n = 1
		}
		a.rowAlign = n
	}
}

// WithFormats restricts the supported formats.
func WithFormats(formats ...gputypes.TextureFormat) HeapOption {
	return func(a *HeapAllocator) {
		a.formats = slices.Clone(formats)
	}
}

// NewHeapAllocator creates a heap allocator.
func NewHeapAllocator(opts ...HeapOption) *HeapAllocator {
	a := &HeapAllocator{
		rowAlign: DefaultRowAlignment,
		formats: []gputypes.TextureFormat{
			gputypes.TextureFormatRGBA8Unorm,
			gputypes.TextureFormatBGRA8Unorm,
			gputypes.TextureFormatR8Unorm,
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Alloc allocates a buffer.
func (a *HeapAllocator) Alloc(size hwc.Size, format gputypes.TextureFormat, usage gputypes.TextureUsage) (*Buffer, error) {
	const op = "HeapAllocator.Alloc"
	if !slices.Contains(a.formats, format) {
		return nil, hwc.Errorf(hwc.KindResourceAcquisition, op, "unsupported format %v", format)
	}
	if usage == gputypes.TextureUsageNone || usage.ContainsUnknownBits() {
		return nil, hwc.Errorf(hwc.KindResourceAcquisition, op, "invalid usage %#x", uint64(usage))
	}
	bpp := BytesPerPixel(format)
	if size.Empty() || bpp == 0 {
		return nil, hwc.Errorf(hwc.KindResourceAcquisition, op, "cannot allocate %dx%d %v", size.Width, size.Height, format)
	}
	extent := gputypes.NewExtent2D(uint32(size.Width), uint32(size.Height)) //nolint:gosec // G115: size checked non-empty
	stride := alignUp(int(extent.Width)*bpp, a.rowAlign)

	mem := &heapMemory{pix: make([]byte, stride*int(extent.Height)), owner: a}
	b, err := New(mem, Desc{Size: size, Format: format, Usage: usage, Stride: stride})
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	a.live++
	a.mu.Unlock()
	return b, nil
}

// AllocFramebuffer allocates a render target buffer.
func (a *HeapAllocator) AllocFramebuffer(size hwc.Size, format gputypes.TextureFormat) (*Buffer, error) {
	return a.Alloc(size, format, FramebufferUsage)
}

// SupportedPixelFormats returns the supported formats.
func (a *HeapAllocator) SupportedPixelFormats() []gputypes.TextureFormat {
	return slices.Clone(a.formats)
}

// Live returns the number of buffers not yet freed.
func (a *HeapAllocator) Live() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.live
}

func alignUp(n, align int) int {
	return (n + align - 1) / align * align
}

type heapMemory struct {
	pix   []byte
	owner *HeapAllocator
	freed bool
}

func (m *heapMemory) Map(Access) ([]byte, error) {
	if m.freed {
		return nil, errFreed
	}
	return m.pix, nil
}

func (m *heapMemory) Unmap() {}

func (m *heapMemory) LockGPU() error {
	if m.freed {
		return errFreed
	}
	return nil
}

func (m *heapMemory) UnlockGPU() {}

func (m *heapMemory) Free() {
	if m.freed {
		return
	}
	m.freed = true
	m.pix = nil
	m.owner.mu.Lock()
	m.owner.live--
	m.owner.mu.Unlock()
}

var _ Allocator = (*HeapAllocator)(nil)
