// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package buffer implements display buffers and the fences that order
// access to their memory between producer, compositor and display
// hardware.
//
// A buffer's memory is never guarded by a lock shared between producer and
// consumer. Each access first calls EnsureAvailableFor, which blocks on the
// fence attached by the previous user of the memory.
package buffer

import (
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/hwc"
)

// ErrOutOfBounds is returned when a CPU lock rectangle does not lie inside
// the buffer.
var ErrOutOfBounds = errors.New("buffer: rectangle outside buffer bounds")

// Handle identifies a buffer's native memory. It is immutable for the
// lifetime of the buffer and stays unique after the buffer is destroyed,
// so it is safe to use as a map key across frames.
type Handle uint64

var nextHandle atomic.Uint64

// Memory is allocator-owned storage behind a buffer.
type Memory interface {
	// Map locks the memory for CPU access and returns all of its bytes.
	Map(access Access) ([]byte, error)

	// Unmap ends a CPU access started by Map.
	Unmap()

	// LockGPU locks the memory for hardware use.
	LockGPU() error

	// UnlockGPU ends a hardware access started by LockGPU.
	UnlockGPU()

	// Free returns the memory to the allocator.
	Free()
}

// Desc describes the layout of a buffer.
type Desc struct {
	Size   hwc.Size
	Format gputypes.TextureFormat
	Usage  gputypes.TextureUsage

	// Stride is the number of bytes per row. It may exceed
	// Size.Width * BytesPerPixel(Format).
	Stride int
}

// Buffer is a reference counted display buffer.
type Buffer struct {
	handle Handle
	desc   Desc
	bpp    int
	mem    Memory

	fenceMu sync.Mutex
	fence   Fence

	// content serializes CPU and GPU locks on this buffer.
	content sync.Mutex

	// generation changes every time the CPU writes the memory.
	generation atomic.Uint64

	refs atomic.Int32

	bindMu   sync.Mutex
	contexts map[ContextID]struct{}
}

// New wraps allocator memory in a buffer holding one reference.
func New(mem Memory, desc Desc) (*Buffer, error) {
	bpp := BytesPerPixel(desc.Format)
	switch {
	case desc.Size.Empty():
		return nil, hwc.Errorf(hwc.KindResourceAcquisition, "buffer.New", "empty size %dx%d", desc.Size.Width, desc.Size.Height)
	case bpp == 0:
		return nil, hwc.Errorf(hwc.KindUnsupported, "buffer.New", "format %v", desc.Format)
	case desc.Stride < desc.Size.Width*bpp:
		return nil, hwc.Errorf(hwc.KindResourceAcquisition, "buffer.New", "stride %d below row size %d", desc.Stride, desc.Size.Width*bpp)
	}
	b := &Buffer{
		handle:   Handle(nextHandle.Add(1)),
		desc:     desc,
		bpp:      bpp,
		mem:      mem,
		contexts: make(map[ContextID]struct{}),
	}
	b.refs.Store(1)
	return b, nil
}

// Handle returns the native handle of the buffer.
func (b *Buffer) Handle() Handle { return b.handle }

// Size returns the buffer size in pixels.
func (b *Buffer) Size() hwc.Size { return b.desc.Size }

// Format returns the pixel format.
func (b *Buffer) Format() gputypes.TextureFormat { return b.desc.Format }

// Usage returns the usage the buffer was allocated for.
func (b *Buffer) Usage() gputypes.TextureUsage { return b.desc.Usage }

// Stride returns the number of bytes per row.
func (b *Buffer) Stride() int { return b.desc.Stride }

// BytesPerPixel returns the size of one pixel.
func (b *Buffer) BytesPerPixel() int { return b.bpp }

// HasAlpha reports whether the pixel format carries alpha.
func (b *Buffer) HasAlpha() bool { return HasAlpha(b.desc.Format) }

func (b *Buffer) String() string {
	return fmt.Sprintf("buffer#%d(%dx%d %v)", b.handle, b.desc.Size.Width, b.desc.Size.Height, b.desc.Format)
}

// Acquire adds a reference and returns b.
func (b *Buffer) Acquire() *Buffer {
	b.refs.Add(1)
	return b
}

// Release drops a reference. Dropping the last one destroys every GPU
// image bound to the buffer and frees its memory.
func (b *Buffer) Release() {
	n := b.refs.Add(-1)
	switch {
	case n > 0:
		return
	case n < 0:
		hwc.Logger().Warn("buffer: release of destroyed buffer", "buffer", b.handle)
		return
	}

	b.bindMu.Lock()
	ctxs := b.contexts
	b.contexts = nil
	b.bindMu.Unlock()
	for ctx := range ctxs {
		if bnd, ok := bindings.Delete(bindingKey{ctx: ctx, buf: b.handle}); ok {
			bnd.destroy()
		}
	}
	b.mem.Free()
}

// Refs returns the current reference count.
func (b *Buffer) Refs() int { return int(b.refs.Load()) }

// EnsureAvailableFor blocks until the attached fence, if any, signals.
// It may be called concurrently from several owners.
func (b *Buffer) EnsureAvailableFor(access Access) {
	b.fenceMu.Lock()
	f := b.fence
	b.fenceMu.Unlock()
	if f == nil {
		return
	}
	f.Wait()

	b.fenceMu.Lock()
	if b.fence == f {
		b.fence = nil
	}
	b.fenceMu.Unlock()
}

// AttachFence replaces the pending fence. The caller must already have
// waited on the previous fence. A nil fence clears it.
func (b *Buffer) AttachFence(f Fence) {
	b.fenceMu.Lock()
	b.fence = f
	b.fenceMu.Unlock()
}

// PendingFence returns the attached fence or nil.
func (b *Buffer) PendingFence() Fence {
	b.fenceMu.Lock()
	defer b.fenceMu.Unlock()
	return b.fence
}

// GPULock is a scoped hardware lock on a buffer.
type GPULock struct {
	b    *Buffer
	once sync.Once
}

// Release ends the lock. It is safe to call more than once.
func (l *GPULock) Release() {
	l.once.Do(func() {
		l.b.mem.UnlockGPU()
		l.b.content.Unlock()
	})
}

// LockForGPU waits for the buffer to be available for GPU reads and locks
// it for hardware use.
func (b *Buffer) LockForGPU() (*GPULock, error) {
	b.EnsureAvailableFor(AccessGPURead)
	b.content.Lock()
	if err := b.mem.LockGPU(); err != nil {
		b.content.Unlock()
		return nil, hwc.NewError(hwc.KindResourceAcquisition, "buffer.LockForGPU", err)
	}
	return &GPULock{b: b}, nil
}

// CPUMapping is a scoped CPU view of part of a buffer.
type CPUMapping struct {
	// Rect is the mapped region in buffer coordinates.
	Rect image.Rectangle

	// Stride is the distance in bytes between rows.
	Stride int

	pix    []byte
	bpp    int
	b      *Buffer
	access Access
	once   sync.Once
}

// Row returns the bytes of row y of the mapped region, y counted from
// Rect.Min.Y.
func (m *CPUMapping) Row(y int) []byte {
	off := (m.Rect.Min.Y+y)*m.Stride + m.Rect.Min.X*m.bpp
	return m.pix[off : off+m.Rect.Dx()*m.bpp]
}

// Release unmaps the memory. It is safe to call more than once.
func (m *CPUMapping) Release() {
	m.once.Do(func() {
		if m.access == AccessWrite {
			m.b.generation.Add(1)
		}
		m.b.mem.Unmap()
		m.b.content.Unlock()
	})
}

// LockForCPU waits for the buffer to be available for access and maps
// rect for CPU use.
func (b *Buffer) LockForCPU(access Access, rect image.Rectangle) (*CPUMapping, error) {
	if !rect.In(b.desc.Size.Rect()) || rect.Empty() {
		return nil, fmt.Errorf("%w: %v in %v", ErrOutOfBounds, rect, b.desc.Size.Rect())
	}
	b.EnsureAvailableFor(access)
	b.content.Lock()
	pix, err := b.mem.Map(access)
	if err != nil {
		b.content.Unlock()
		return nil, hwc.NewError(hwc.KindResourceAcquisition, "buffer.LockForCPU", err)
	}
	return &CPUMapping{
		Rect:   rect,
		Stride: b.desc.Stride,
		pix:    pix,
		bpp:    b.bpp,
		b:      b,
		access: access,
	}, nil
}

// Write copies tightly packed rows of pixels into the buffer, honouring
// its stride. The data must be exactly width*height*bpp bytes.
func (b *Buffer) Write(data []byte) error {
	w, h := b.desc.Size.Width, b.desc.Size.Height
	row := w * b.bpp
	if len(data) != row*h {
		return fmt.Errorf("%w: got %d bytes, want %d", hwc.ErrSizeMismatch, len(data), row*h)
	}
	m, err := b.LockForCPU(AccessWrite, b.desc.Size.Rect())
	if err != nil {
		return err
	}
	defer m.Release()
	for y := 0; y < h; y++ {
		copy(m.Row(y), data[y*row:(y+1)*row])
	}
	return nil
}

// Read maps the whole buffer for reading and calls fn with its memory
// and stride. pix must not be retained after fn returns.
func (b *Buffer) Read(fn func(pix []byte, stride int)) error {
	m, err := b.LockForCPU(AccessRead, b.desc.Size.Rect())
	if err != nil {
		return err
	}
	defer m.Release()
	fn(m.pix, m.Stride)
	return nil
}

// Bytes returns a tightly packed copy of the pixels.
func (b *Buffer) Bytes() ([]byte, error) {
	w, h := b.desc.Size.Width, b.desc.Size.Height
	row := w * b.bpp
	out := make([]byte, row*h)
	err := b.Read(func(pix []byte, stride int) {
		for y := 0; y < h; y++ {
			copy(out[y*row:(y+1)*row], pix[y*stride:y*stride+row])
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

var errFreed = errors.New("buffer: memory already freed")
