// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package buffer

import (
	"bytes"
	"errors"
	"image"
	"testing"
	"time"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/hwc"
)

// countingMemory records calls so tests can observe when memory is
// touched.
type countingMemory struct {
	pix     []byte
	maps    int
	unmaps  int
	gpu     int
	freed   int
	lockErr error
}

func (m *countingMemory) Map(Access) ([]byte, error) {
	if m.lockErr != nil {
		return nil, m.lockErr
	}
	m.maps++
	return m.pix, nil
}
func (m *countingMemory) Unmap() { m.unmaps++ }
func (m *countingMemory) LockGPU() error {
	if m.lockErr != nil {
		return m.lockErr
	}
	m.gpu++
	return nil
}
func (m *countingMemory) UnlockGPU() { m.gpu-- }
func (m *countingMemory) Free()      { m.freed++ }

func newCounting(t *testing.T, w, h, stride int) (*Buffer, *countingMemory) {
	t.Helper()
	mem := &countingMemory{pix: make([]byte, stride*h)}
	b, err := New(mem, Desc{
		Size:   hwc.Size{Width: w, Height: h},
		Format: gputypes.TextureFormatRGBA8Unorm,
		Usage:  gputypes.TextureUsageTextureBinding,
		Stride: stride,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return b, mem
}

func TestNewValidates(t *testing.T) {
	tests := []struct {
		name string
		desc Desc
		kind hwc.Kind
	}{
		{"empty", Desc{Format: gputypes.TextureFormatRGBA8Unorm, Stride: 4}, hwc.KindResourceAcquisition},
		{"format", Desc{Size: hwc.Size{Width: 1, Height: 1}, Format: gputypes.TextureFormatDepth24Plus, Stride: 4}, hwc.KindUnsupported},
		{"stride", Desc{Size: hwc.Size{Width: 4, Height: 1}, Format: gputypes.TextureFormatRGBA8Unorm, Stride: 8}, hwc.KindResourceAcquisition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(&countingMemory{}, tt.desc)
			if hwc.KindOf(err) != tt.kind {
				t.Errorf("KindOf(%v) = %v, want %v", err, hwc.KindOf(err), tt.kind)
			}
		})
	}
}

func TestWriteReadRoundTripWithPadding(t *testing.T) {
	const w, h = 5, 3
	alloc := NewHeapAllocator(WithRowAlignment(32))
	b, err := alloc.Alloc(hwc.Size{Width: w, Height: h}, gputypes.TextureFormatRGBA8Unorm, gputypes.TextureUsageCopyDst)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	defer b.Release()
	if b.Stride() != 32 {
		t.Fatalf("Stride() = %d, want 32", b.Stride())
	}

	data := make([]byte, w*h*4)
	for i := range data {
		data[i] = byte(i)
	}
	if err := b.Write(data); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := b.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("round trip mismatch:\n got %v\nwant %v", got, data)
	}

	// Padding bytes stay untouched.
	err = b.Read(func(pix []byte, stride int) {
		for y := 0; y < h; y++ {
			for _, v := range pix[y*stride+w*4 : (y+1)*stride] {
				if v != 0 {
					t.Fatalf("padding of row %d written", y)
				}
			}
		}
	})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
}

func TestWriteRejectsSizeBeforeCopy(t *testing.T) {
	b, mem := newCounting(t, 4, 2, 32)
	for _, n := range []int{0, 4*2*4 - 1, 4*2*4 + 1, 32 * 2} {
		err := b.Write(make([]byte, n))
		if !errors.Is(err, hwc.ErrSizeMismatch) {
			t.Errorf("Write(%d bytes) = %v, want ErrSizeMismatch", n, err)
		}
	}
	if mem.maps != 0 {
		t.Errorf("memory mapped %d times for rejected writes", mem.maps)
	}
	if err := b.Write(make([]byte, 4*2*4)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if mem.maps != 1 || mem.unmaps != 1 {
		t.Errorf("maps/unmaps = %d/%d, want 1/1", mem.maps, mem.unmaps)
	}
}

func TestEnsureAvailableForWaitsOnFence(t *testing.T) {
	b, _ := newCounting(t, 1, 1, 4)
	f := NewSyncFence()
	b.AttachFence(f)

	done := make(chan struct{})
	go func() {
		b.EnsureAvailableFor(AccessRead)
		close(done)
	}()
	select {
	case <-done:
		t.Fatal("EnsureAvailableFor returned before the fence signaled")
	case <-time.After(10 * time.Millisecond):
	}
	f.Signal()
	<-done
	if b.PendingFence() != nil {
		t.Error("signaled fence should be cleared")
	}
}

func TestLockForCPU(t *testing.T) {
	b, mem := newCounting(t, 4, 4, 16)

	if _, err := b.LockForCPU(AccessRead, image.Rect(2, 2, 5, 3)); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("out of bounds lock = %v, want ErrOutOfBounds", err)
	}

	m, err := b.LockForCPU(AccessWrite, image.Rect(1, 2, 3, 4))
	if err != nil {
		t.Fatalf("LockForCPU: %v", err)
	}
	row := m.Row(0)
	if len(row) != 8 {
		t.Errorf("len(Row(0)) = %d, want 8", len(row))
	}
	row[0] = 0xAB
	m.Release()
	m.Release()
	if mem.unmaps != 1 {
		t.Errorf("unmaps = %d, want 1", mem.unmaps)
	}
	if mem.pix[2*16+4] != 0xAB {
		t.Error("Row(0) does not address the rectangle origin")
	}
}

func TestLockFailureIsResourceAcquisition(t *testing.T) {
	b, mem := newCounting(t, 1, 1, 4)
	mem.lockErr = errors.New("allocator exhausted")

	_, err := b.LockForGPU()
	if !errors.Is(err, hwc.ErrResourceAcquisition) {
		t.Errorf("LockForGPU = %v, want ResourceAcquisitionFailure", err)
	}
	_, err = b.LockForCPU(AccessRead, image.Rect(0, 0, 1, 1))
	if !errors.Is(err, hwc.ErrResourceAcquisition) {
		t.Errorf("LockForCPU = %v, want ResourceAcquisitionFailure", err)
	}

	// Failed locks must not leave the content lock held.
	mem.lockErr = nil
	l, err := b.LockForGPU()
	if err != nil {
		t.Fatalf("LockForGPU: %v", err)
	}
	l.Release()
	l.Release()
	if mem.gpu != 0 {
		t.Errorf("gpu lock count = %d after release", mem.gpu)
	}
}

func TestRefCounting(t *testing.T) {
	b, mem := newCounting(t, 1, 1, 4)
	b.Acquire()
	if b.Refs() != 2 {
		t.Fatalf("Refs() = %d, want 2", b.Refs())
	}
	b.Release()
	if mem.freed != 0 {
		t.Fatal("memory freed with a reference left")
	}
	b.Release()
	if mem.freed != 1 {
		t.Fatalf("freed = %d, want 1", mem.freed)
	}
	b.Release()
	if mem.freed != 1 {
		t.Error("extra release freed memory again")
	}
}

func TestHandlesAreUnique(t *testing.T) {
	a, _ := newCounting(t, 1, 1, 4)
	b, _ := newCounting(t, 1, 1, 4)
	if a.Handle() == b.Handle() {
		t.Error("two buffers share a handle")
	}
}
