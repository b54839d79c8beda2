// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package device

import (
	"fmt"

	"github.com/gogpu/hwc"
	"github.com/gogpu/hwc/layer"
)

// Version is a hardware composer API version.
type Version struct {
	Major, Minor uint8
}

// Known composer API versions.
var (
	Version10 = Version{1, 0}
	Version11 = Version{1, 1}
	Version12 = Version{1, 2}
	Version13 = Version{1, 3}
	Version14 = Version{1, 4}
	Version15 = Version{1, 5}
	Version20 = Version{2, 0}
)

// RawVersion encodes major and minor the way composer modules report
// their device API version.
func RawVersion(major, minor uint8) uint32 {
	return uint32(major)<<24 | uint32(minor)<<16
}

// Raw returns the encoded version.
func (v Version) Raw() uint32 { return RawVersion(v.Major, v.Minor) }

// Less reports whether v is older than o.
func (v Version) Less(o Version) bool {
	if v.Major != o.Major {
		return v.Major < o.Major
	}
	return v.Minor < o.Minor
}

func (v Version) String() string { return fmt.Sprintf("%d.%d", v.Major, v.Minor) }

// VersionFor decodes a reported device API version. The low 16 bits carry
// the header version and are ignored.
func VersionFor(raw uint32) (Version, error) {
	v := Version{Major: uint8(raw >> 24), Minor: uint8(raw >> 16)} //nolint:gosec // G115: byte extraction
	switch v {
	case Version10, Version11, Version12, Version13, Version14, Version15, Version20:
		return v, nil
	}
	return Version{}, hwc.Errorf(hwc.KindUnsupported, "device.VersionFor", "unknown composer version %#08x", raw)
}

// Variant is the closed set of composer generations the pipeline drives.
// A variant is chosen once at startup and never changes.
type Variant uint8

const (
	// VariantOverlayLegacy is composer 1.0: overlays of whole buffers and
	// GPU output posted to a separate framebuffer device.
	VariantOverlayLegacy Variant = iota

	// VariantIntegerCrop is composer 1.1 and 1.2.
	VariantIntegerCrop

	// VariantFloatCrop is composer 1.3 to 1.5.
	VariantFloatCrop

	// VariantV2 is composer 2.0.
	VariantV2

	// VariantFramebuffer is the fallback without any composer.
	VariantFramebuffer
)

// String returns the variant name.
func (v Variant) String() string {
	switch v {
	case VariantOverlayLegacy:
		return "OverlayLegacy"
	case VariantIntegerCrop:
		return "IntegerCrop"
	case VariantFloatCrop:
		return "FloatCrop"
	case VariantV2:
		return "V2"
	case VariantFramebuffer:
		return "Framebuffer"
	default:
		return fmt.Sprintf("Variant(%d)", uint8(v))
	}
}

// Variants lists every variant.
func Variants() []Variant {
	return []Variant{VariantOverlayLegacy, VariantIntegerCrop, VariantFloatCrop, VariantV2, VariantFramebuffer}
}

// VariantForVersion maps a composer version to its variant.
func VariantForVersion(v Version) (Variant, error) {
	switch v {
	case Version10:
		return VariantOverlayLegacy, nil
	case Version11, Version12:
		return VariantIntegerCrop, nil
	case Version13, Version14, Version15:
		return VariantFloatCrop, nil
	case Version20:
		return VariantV2, nil
	}
	return 0, hwc.Errorf(hwc.KindUnsupported, "device.VariantForVersion", "unknown or unsupported composer version %v", v)
}

// CropAdapter returns the crop adapter of the variant.
func (v Variant) CropAdapter() layer.CropAdapter {
	switch v {
	case VariantIntegerCrop:
		return layer.IntegerCrop{}
	case VariantFloatCrop, VariantV2:
		return layer.FloatCrop{}
	default:
		return layer.LegacyCrop{}
	}
}

// PartitionMode returns how the variant splits frames. Composer 2.0 only
// places overlays when it advertises device composition.
func (v Variant) PartitionMode(caps Capabilities) layer.PartitionMode {
	switch v {
	case VariantIntegerCrop, VariantFloatCrop:
		return layer.PartitionPrefix
	case VariantOverlayLegacy:
		return layer.PartitionWholeList
	case VariantV2:
		if caps.DeviceComposition {
			return layer.PartitionPrefix
		}
	}
	return layer.PartitionNever
}

// NewPolicy builds the layer policy of the variant.
func (v Variant) NewPolicy(caps Capabilities, tuning hwc.Tuning) *layer.Policy {
	return layer.NewPolicy(v.PartitionMode(caps), v.CropAdapter(), tuning)
}
