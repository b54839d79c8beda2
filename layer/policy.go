// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package layer

import "github.com/gogpu/hwc"

// PartitionMode is how a variant splits a list that is not fully
// overlay eligible.
type PartitionMode uint8

const (
	// PartitionWholeList sends the whole list to GPU fallback unless every
	// renderable is eligible.
	PartitionWholeList PartitionMode = iota

	// PartitionPrefix sends the back-to-front prefix ending at the topmost
	// ineligible renderable to GPU fallback. The renderables above it stay
	// overlay candidates on top of the framebuffer target.
	PartitionPrefix

	// PartitionNever always sends the whole list to GPU fallback.
	PartitionNever
)

// String returns the mode name.
func (m PartitionMode) String() string {
	switch m {
	case PartitionWholeList:
		return "WholeList"
	case PartitionPrefix:
		return "Prefix"
	case PartitionNever:
		return "Never"
	default:
		return "Unknown"
	}
}

// Policy decides which renderables of a frame may go to overlay planes.
// A device variant owns one policy for its lifetime.
type Policy struct {
	mode    PartitionMode
	adapter CropAdapter
	tuning  hwc.Tuning
}

// NewPolicy creates a policy. With tuning.DisableOverlays set the policy
// never places renderables on overlays.
func NewPolicy(mode PartitionMode, adapter CropAdapter, tuning hwc.Tuning) *Policy {
	if tuning.DisableOverlays {
		mode = PartitionNever
	}
	return &Policy{mode: mode, adapter: adapter, tuning: tuning}
}

// Mode returns the partition mode.
func (p *Policy) Mode() PartitionMode { return p.mode }

// CropAdapter returns the crop adapter of the variant.
func (p *Policy) CropAdapter() CropAdapter { return p.adapter }

// Tuning returns the tuning the policy was built with.
func (p *Policy) Tuning() hwc.Tuning { return p.tuning }

// Eligible reports whether the whole list can be composited by overlay
// planes: it is non-empty and every renderable is opaque and untransformed.
func (p *Policy) Eligible(rs []Renderable) bool {
	if p.mode == PartitionNever || len(rs) == 0 {
		return false
	}
	for _, r := range rs {
		if !r.OverlayEligible(p.tuning.AlphaTolerance) {
			return false
		}
	}
	return true
}

// Partition splits rs into the back-to-front renderables the GPU must
// flatten and the overlay candidates drawn above them. Both results are
// subslices of rs.
func (p *Policy) Partition(rs []Renderable) (rejected, overlay []Renderable) {
	if len(rs) == 0 {
		return nil, nil
	}
	if p.Eligible(rs) {
		return nil, rs
	}
	if p.mode != PartitionPrefix {
		return rs, nil
	}
	top := -1
	for i, r := range rs {
		if !r.OverlayEligible(p.tuning.AlphaTolerance) {
			top = i
		}
	}
	return rs[:top+1], rs[top+1:]
}
