// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package compositor

import (
	"errors"
	"image"
	"math"
	"testing"

	"github.com/gogpu/gputypes"
	xdraw "golang.org/x/image/draw"

	"github.com/gogpu/hwc"
	"github.com/gogpu/hwc/buffer"
	"github.com/gogpu/hwc/layer"
)

func solid(t *testing.T, alloc buffer.Allocator, w, h int, px [4]byte) *buffer.Buffer {
	t.Helper()
	b, err := alloc.Alloc(hwc.Size{Width: w, Height: h}, gputypes.TextureFormatRGBA8Unorm, gputypes.TextureUsageTextureBinding)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	data := make([]byte, w*h*4)
	for i := 0; i < len(data); i += 4 {
		copy(data[i:], px[:])
	}
	if err := b.Write(data); err != nil {
		t.Fatalf("Write: %v", err)
	}
	t.Cleanup(b.Release)
	return b
}

func newContext(t *testing.T, alloc buffer.Allocator, w, h int, opts ...Option) *PixmapContext {
	t.Helper()
	ctx, err := NewPixmapContext(alloc, hwc.Size{Width: w, Height: h}, opts...)
	if err != nil {
		t.Fatalf("NewPixmapContext: %v", err)
	}
	t.Cleanup(ctx.Close)
	return ctx
}

func pixel(t *testing.T, b *buffer.Buffer, x, y int) [4]byte {
	t.Helper()
	data, err := b.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	off := (y*b.Size().Width + x) * 4
	return [4]byte(data[off : off+4])
}

func TestRenderAtOffset(t *testing.T) {
	alloc := buffer.NewHeapAllocator()
	ctx := newContext(t, alloc, 8, 8)
	red := solid(t, alloc, 2, 2, [4]byte{0xFF, 0, 0, 0xFF})

	r := layer.Renderable{Buffer: red, Position: image.Rect(12, 2, 14, 4), Transform: hwc.Identity(), Alpha: 1}
	if err := NewFallbackRenderer().Render([]layer.Renderable{r}, hwc.Displacement{DX: 10}, ctx); err != nil {
		t.Fatalf("Render: %v", err)
	}
	fb := ctx.LastRenderedBuffer()
	if fb == nil {
		t.Fatal("no rendered buffer")
	}
	if got := pixel(t, fb, 2, 2); got != [4]byte{0xFF, 0, 0, 0xFF} {
		t.Errorf("pixel(2,2) = %v", got)
	}
	if got := pixel(t, fb, 0, 0); got != [4]byte{} {
		t.Errorf("pixel(0,0) = %v, want cleared", got)
	}
	if ctx.Current() {
		t.Error("context left current")
	}
}

func TestRenderAlphaAndRotation(t *testing.T) {
	alloc := buffer.NewHeapAllocator()
	ctx := newContext(t, alloc, 4, 4, WithInterpolator(xdraw.NearestNeighbor))

	half := solid(t, alloc, 4, 4, [4]byte{0xFF, 0xFF, 0xFF, 0xFF})
	r := layer.Renderable{Buffer: half, Position: image.Rect(0, 0, 4, 4), Transform: hwc.Identity(), Alpha: 0.5}
	if err := NewFallbackRenderer().Render([]layer.Renderable{r}, hwc.Displacement{}, ctx); err != nil {
		t.Fatalf("Render: %v", err)
	}
	got := pixel(t, ctx.LastRenderedBuffer(), 1, 1)
	for i, v := range got {
		if v < 126 || v > 130 {
			t.Errorf("channel %d = %d, want about 128", i, v)
		}
	}

	two, err := alloc.Alloc(hwc.Size{Width: 2, Height: 1}, gputypes.TextureFormatRGBA8Unorm, gputypes.TextureUsageTextureBinding)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	defer two.Release()
	if err := two.Write([]byte{0xFF, 0, 0, 0xFF, 0, 0, 0xFF, 0xFF}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	r = layer.Renderable{Buffer: two, Position: image.Rect(0, 0, 2, 1), Transform: hwc.Rotate(math.Pi), Alpha: 1}
	if err := NewFallbackRenderer().Render([]layer.Renderable{r}, hwc.Displacement{}, ctx); err != nil {
		t.Fatalf("Render: %v", err)
	}
	fb := ctx.LastRenderedBuffer()
	if got := pixel(t, fb, 0, 0); got != [4]byte{0, 0, 0xFF, 0xFF} {
		t.Errorf("rotated pixel(0,0) = %v, want blue", got)
	}
	if got := pixel(t, fb, 1, 0); got != [4]byte{0xFF, 0, 0, 0xFF} {
		t.Errorf("rotated pixel(1,0) = %v, want red", got)
	}
}

func TestRenderCachesBindings(t *testing.T) {
	alloc := buffer.NewHeapAllocator()
	ctx := newContext(t, alloc, 4, 4)
	b := solid(t, alloc, 1, 1, [4]byte{1, 2, 3, 4})
	rs := []layer.Renderable{{Buffer: b, Position: image.Rect(0, 0, 1, 1), Transform: hwc.Identity(), Alpha: 1}}

	before := buffer.BindingStats().Creates
	for i := 0; i < 3; i++ {
		if err := NewFallbackRenderer().Render(rs, hwc.Displacement{}, ctx); err != nil {
			t.Fatalf("Render: %v", err)
		}
	}
	if n := buffer.BindingStats().Creates - before; n != 1 {
		t.Errorf("created %d images over three frames, want 1", n)
	}
}

// gray2 is memory for a two channel buffer, which has no sampling path.
type gray2 struct{ pix []byte }

func (m *gray2) Map(buffer.Access) ([]byte, error) { return m.pix, nil }
func (m *gray2) Unmap()                            {}
func (m *gray2) LockGPU() error                    { return nil }
func (m *gray2) UnlockGPU()                        {}
func (m *gray2) Free()                             {}

func TestRenderBindFailure(t *testing.T) {
	ctx := newContext(t, buffer.NewHeapAllocator(), 4, 4)
	b, err := buffer.New(&gray2{pix: make([]byte, 2)}, buffer.Desc{
		Size:   hwc.Size{Width: 1, Height: 1},
		Format: gputypes.TextureFormatRG8Unorm,
		Stride: 2,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer b.Release()

	rs := []layer.Renderable{{Buffer: b, Position: image.Rect(0, 0, 1, 1), Transform: hwc.Identity(), Alpha: 1}}
	err = NewFallbackRenderer().Render(rs, hwc.Displacement{}, ctx)
	if !errors.Is(err, hwc.ErrResourceAcquisition) {
		t.Fatalf("Render = %v, want ResourceAcquisitionFailure", err)
	}
	if ctx.Current() {
		t.Error("context left current after failure")
	}
	if ctx.LastRenderedBuffer() != nil {
		t.Error("failed render must not swap")
	}
}

func TestSwapChain(t *testing.T) {
	alloc := buffer.NewHeapAllocator()
	ctx := newContext(t, alloc, 2, 2, WithFramebuffers(1))
	if ctx.Framebuffers() != DefaultFramebuffers {
		t.Fatalf("Framebuffers() = %d, want %d", ctx.Framebuffers(), DefaultFramebuffers)
	}
	var seen []*buffer.Buffer
	for i := 0; i < 3; i++ {
		if err := NewFallbackRenderer().Render(nil, hwc.Displacement{}, ctx); err != nil {
			t.Fatalf("Render: %v", err)
		}
		seen = append(seen, ctx.LastRenderedBuffer())
	}
	if seen[0] == seen[1] || seen[0] != seen[2] {
		t.Error("framebuffers not used in turn")
	}

	ctx.Close()
	if err := ctx.MakeCurrent(); !errors.Is(err, ErrContextClosed) {
		t.Errorf("MakeCurrent after Close = %v", err)
	}
	if alloc.Live() != 0 {
		t.Errorf("Live() = %d after Close", alloc.Live())
	}
}

func TestForeignTexture(t *testing.T) {
	alloc := buffer.NewHeapAllocator()
	a := newContext(t, alloc, 2, 2)
	b := newContext(t, alloc, 2, 2)
	tex, err := a.NewTextureFromRGBA(1, 1, []byte{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("NewTextureFromRGBA: %v", err)
	}
	if err := b.MakeCurrent(); err != nil {
		t.Fatal(err)
	}
	defer b.ReleaseCurrent()
	if err := b.DrawTexture(tex, 0, 0); !errors.Is(err, ErrForeignTexture) {
		t.Errorf("DrawTexture = %v, want ErrForeignTexture", err)
	}
	if _, err := a.NewTextureFromRGBA(2, 2, []byte{1}); err == nil {
		t.Error("short texture data accepted")
	}
}
