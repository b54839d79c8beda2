// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Command hwcsim drives the display composition pipeline against the
// simulated display HAL.
//
//	hwcsim variants                 # composer versions and their strategies
//	hwcsim probe                    # probe the registered platforms
//	hwcsim run --frames 120 --hotplug
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
