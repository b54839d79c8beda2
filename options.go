// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package hwc

import (
	"fmt"
	"time"
)

// Default tuning values. They were found empirically on shipping devices
// and are exposed through Tuning rather than fixed.
const (
	// DefaultFailureThreshold is the number of consecutive transient
	// commit failures tolerated before the next one is fatal.
	DefaultFailureThreshold = 3

	// DefaultAlphaTolerance is half of one step of an 8-bit plane alpha.
	// A renderable whose alpha is within this distance of 1 is opaque.
	DefaultAlphaTolerance float32 = 1.0 / (2.0 * 255.0)

	// DefaultOverlaySleep is how long the compositor may sleep after a
	// frame made purely of overlays without missing the next vsync.
	DefaultOverlaySleep = 10 * time.Millisecond
)

// Tuning holds the hardware-tuned constants of the pipeline.
type Tuning struct {
	// FailureThreshold is the consecutive commit failure count that may
	// be absorbed. The failure that makes the count exceed it is fatal.
	FailureThreshold int

	// AlphaTolerance is ε in the "fully opaque" test alpha >= 1-ε.
	AlphaTolerance float32

	// OverlaySleep is the recommended sleep after an overlay-only frame.
	OverlaySleep time.Duration

	// DisableOverlays turns off the overlay optimization: every frame is
	// composited by the GPU.
	DisableOverlays bool
}

// DefaultTuning returns the default tuning.
func DefaultTuning() Tuning {
	return Tuning{
		FailureThreshold: DefaultFailureThreshold,
		AlphaTolerance:   DefaultAlphaTolerance,
		OverlaySleep:     DefaultOverlaySleep,
	}
}

// Validate reports an error for values the pipeline cannot use.
func (t Tuning) Validate() error {
	if t.FailureThreshold < 0 {
		return fmt.Errorf("hwc: failure threshold must be >= 0, got %d", t.FailureThreshold)
	}
	if t.AlphaTolerance < 0 || t.AlphaTolerance >= 1 {
		return fmt.Errorf("hwc: alpha tolerance must be in [0, 1), got %v", t.AlphaTolerance)
	}
	if t.OverlaySleep < 0 {
		return fmt.Errorf("hwc: overlay sleep must be >= 0, got %v", t.OverlaySleep)
	}
	return nil
}

// Opaque reports whether alpha counts as fully opaque under t.
func (t Tuning) Opaque(alpha float32) bool {
	return alpha >= 1-t.AlphaTolerance
}
