// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package hwc provides the shared vocabulary of the hwc output pipeline.
//
// # Overview
//
// hwc decides, frame by frame and output by output, which renderable
// surfaces are handed to hardware overlay planes and which are flattened by
// the GPU into a single image, synchronizes buffers between producers, the
// compositor and the display hardware with fences, and commits the frame to
// the display device before the next vsync.
//
// # Packages
//
//   - buffer: native buffers, fences and scoped CPU/GPU access
//   - layer: per-output layer lists and the overlay planner
//   - device: display device variants, one per hardware composer generation
//   - compositor: GPU fallback rendering of rejected renderables
//   - display: the per-frame commit orchestrator with bounded retry
//   - framebuffer: legacy framebuffer devices over a tinygo Displayer
//   - platform: capability probe, loader registry and component factory
//   - simhal: a simulated composer and framebuffer for tests and tools
//
// This package holds what all of them share: classified errors, the
// package-level logger and the hardware tuning constants.
//
// # Errors
//
// Every pipeline error is an *Error carrying a Kind. Only
// KindResourceAcquisition, KindUnsupported and KindFatalCommit propagate to
// the owning process; transient commit failures and disconnects are
// absorbed by the commit orchestrator.
//
// # Logging
//
// hwc is silent by default. Call SetLogger to enable logging:
//
//	hwc.SetLogger(slog.Default())
package hwc
