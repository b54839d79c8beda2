// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package main

import (
	"github.com/gogpu/hwc/internal/config"
	"github.com/gogpu/hwc/platform"
	"github.com/gogpu/hwc/simhal"
)

// simulatedLoader is the registry name of the simulated platform.
const simulatedLoader = "simulated"

// registerSimulated registers a simulated platform shaped by cfg and
// returns the loader it hands out.
func registerSimulated(cfg *config.Config) *simhal.Loader {
	opts := []simhal.LoaderOption{
		simhal.WithFramebufferSize(cfg.Size()),
		simhal.WithComposerOptions(simhal.WithMaxOverlays(cfg.Platform.MaxOverlays)),
	}
	if cfg.HasComposer() {
		v, _ := cfg.Version()
		opts = append(opts, simhal.WithVersion(v))
	} else {
		opts = append(opts, simhal.WithBrokenComposer())
	}
	l := simhal.NewLoader(opts...)
	platform.RegisterLoader(simulatedLoader, func() platform.Loader { return l })
	return l
}

// selectLoader returns the configured loader, or the best one probed.
func selectLoader(cfg *config.Config) (string, platform.Loader, error) {
	if name := cfg.Platform.Loader; name != "" {
		l, err := platform.LoaderFor(name)
		return name, l, err
	}
	return platform.Select()
}
