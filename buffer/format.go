// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package buffer

import "github.com/gogpu/gputypes"

// Access is the intent with which a buffer's memory is about to be used.
type Access uint8

const (
	// AccessRead is CPU read access.
	AccessRead Access = iota + 1

	// AccessWrite is CPU write access, typically by the producer.
	AccessWrite

	// AccessGPURead is sampling by the GPU or scan-out by an overlay plane.
	AccessGPURead
)

// String returns the access name.
func (a Access) String() string {
	switch a {
	case AccessRead:
		return "Read"
	case AccessWrite:
		return "Write"
	case AccessGPURead:
		return "GPURead"
	default:
		return "Unknown"
	}
}

// BytesPerPixel returns the size of one pixel of an uncompressed color
// format, or 0 for formats a display buffer cannot use.
func BytesPerPixel(f gputypes.TextureFormat) int {
	switch f {
	case gputypes.TextureFormatR8Unorm:
		return 1
	case gputypes.TextureFormatRG8Unorm, gputypes.TextureFormatR16Float:
		return 2
	case gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatRGBA8UnormSrgb,
		gputypes.TextureFormatBGRA8Unorm, gputypes.TextureFormatBGRA8UnormSrgb,
		gputypes.TextureFormatRGB10A2Unorm:
		return 4
	case gputypes.TextureFormatRGBA16Float:
		return 8
	case gputypes.TextureFormatRGBA32Float:
		return 16
	default:
		return 0
	}
}

// HasAlpha reports whether the format carries an alpha channel. Overlay
// planes scan out opaque formats without blending.
func HasAlpha(f gputypes.TextureFormat) bool {
	switch f {
	case gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatRGBA8UnormSrgb,
		gputypes.TextureFormatBGRA8Unorm, gputypes.TextureFormatBGRA8UnormSrgb,
		gputypes.TextureFormatRGB10A2Unorm, gputypes.TextureFormatRGBA16Float,
		gputypes.TextureFormatRGBA32Float:
		return true
	default:
		return false
	}
}

// toRGBA converts packed rows of format f into tightly packed RGBA8.
// It returns false when no conversion exists.
func toRGBA(f gputypes.TextureFormat, pix []byte, stride, w, h int) ([]byte, bool) {
	out := make([]byte, w*h*4)
	switch f {
	case gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatRGBA8UnormSrgb:
		for y := 0; y < h; y++ {
			copy(out[y*w*4:(y+1)*w*4], pix[y*stride:y*stride+w*4])
		}
	case gputypes.TextureFormatBGRA8Unorm, gputypes.TextureFormatBGRA8UnormSrgb:
		for y := 0; y < h; y++ {
			src := pix[y*stride : y*stride+w*4]
			dst := out[y*w*4 : (y+1)*w*4]
			for i := 0; i < len(src); i += 4 {
				dst[i+0] = src[i+2]
				dst[i+1] = src[i+1]
				dst[i+2] = src[i+0]
				dst[i+3] = src[i+3]
			}
		}
	case gputypes.TextureFormatR8Unorm:
		for y := 0; y < h; y++ {
			src := pix[y*stride : y*stride+w]
			dst := out[y*w*4 : (y+1)*w*4]
			for x, v := range src {
				dst[x*4+0] = v
				dst[x*4+1] = v
				dst[x*4+2] = v
				dst[x*4+3] = 0xFF
			}
		}
	default:
		return nil, false
	}
	return out, true
}
