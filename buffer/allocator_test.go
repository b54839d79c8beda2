// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package buffer

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/hwc"
)

func TestHeapAllocatorStride(t *testing.T) {
	tests := []struct {
		name   string
		align  int
		width  int
		format gputypes.TextureFormat
		want   int
	}{
		{"default", DefaultRowAlignment, 10, gputypes.TextureFormatRGBA8Unorm, 64},
		{"exact", DefaultRowAlignment, 16, gputypes.TextureFormatRGBA8Unorm, 64},
		{"gray", 4, 5, gputypes.TextureFormatR8Unorm, 8},
		{"unpadded", 0, 3, gputypes.TextureFormatBGRA8Unorm, 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewHeapAllocator(WithRowAlignment(tt.align))
			b, err := a.Alloc(hwc.Size{Width: tt.width, Height: 2}, tt.format, gputypes.TextureUsageCopyDst)
			if err != nil {
				t.Fatalf("Alloc: %v", err)
			}
			defer b.Release()
			if b.Stride() != tt.want {
				t.Errorf("Stride() = %d, want %d", b.Stride(), tt.want)
			}
		})
	}
}

func TestHeapAllocatorRejects(t *testing.T) {
	a := NewHeapAllocator(WithFormats(gputypes.TextureFormatRGBA8Unorm))
	size := hwc.Size{Width: 4, Height: 4}

	if _, err := a.Alloc(size, gputypes.TextureFormatBGRA8Unorm, gputypes.TextureUsageCopyDst); !errors.Is(err, hwc.ErrResourceAcquisition) {
		t.Errorf("unsupported format: %v", err)
	}
	if _, err := a.Alloc(size, gputypes.TextureFormatRGBA8Unorm, gputypes.TextureUsageNone); !errors.Is(err, hwc.ErrResourceAcquisition) {
		t.Errorf("no usage: %v", err)
	}
	if _, err := a.Alloc(hwc.Size{}, gputypes.TextureFormatRGBA8Unorm, gputypes.TextureUsageCopyDst); !errors.Is(err, hwc.ErrResourceAcquisition) {
		t.Errorf("empty size: %v", err)
	}
	if got := a.SupportedPixelFormats(); len(got) != 1 || got[0] != gputypes.TextureFormatRGBA8Unorm {
		t.Errorf("SupportedPixelFormats() = %v", got)
	}
}

func TestHeapAllocatorFramebuffer(t *testing.T) {
	a := NewHeapAllocator()
	b, err := a.AllocFramebuffer(hwc.Size{Width: 8, Height: 8}, gputypes.TextureFormatRGBA8Unorm)
	if err != nil {
		t.Fatalf("AllocFramebuffer: %v", err)
	}
	if !b.Usage().Contains(gputypes.TextureUsageRenderAttachment) {
		t.Error("framebuffer lacks RenderAttachment usage")
	}
	if a.Live() != 1 {
		t.Errorf("Live() = %d, want 1", a.Live())
	}
	b.Release()
	if a.Live() != 0 {
		t.Errorf("Live() = %d after release, want 0", a.Live())
	}
}
