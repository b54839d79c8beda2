// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/gogpu/hwc/device"
	"github.com/gogpu/hwc/platform"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)

var cellStyle = lipgloss.NewStyle().Padding(0, 1)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

func newProbeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Probe the registered platforms",
		Long:  `Probe every registered platform and show how well it can drive the displays, best first.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			registerSimulated(a.cfg)
			t := newTable("PLATFORM", "PRIORITY", "VARIANT")
			for _, c := range platform.ProbeAll() {
				variant := "-"
				if c.Priority > platform.PriorityUnsupported {
					variant = probeVariant(c.Name)
				}
				t.Row(c.Name, c.Priority.String(), variant)
			}
			fmt.Fprintln(cmd.OutOrStdout(), t.String())
			return nil
		},
	}
}

// probeVariant opens the platform to report the variant it would run.
func probeVariant(name string) string {
	l, err := platform.LoaderFor(name)
	if err != nil {
		return "-"
	}
	f, err := platform.NewComponentFactory(l)
	if err != nil {
		return "error: " + err.Error()
	}
	defer f.Close()
	if f.Variant() == device.VariantFramebuffer {
		return f.Variant().String()
	}
	return fmt.Sprintf("%v (composer %v)", f.Variant(), f.Version())
}

func newVariantsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "variants",
		Short: "List composer versions and how each is driven",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t := newTable("VERSION", "VARIANT", "CROP", "OVERLAYS", "POWER")
			versions := []device.Version{
				device.Version10, device.Version11, device.Version12, device.Version13,
				device.Version14, device.Version15, device.Version20,
			}
			caps := device.Capabilities{DeviceComposition: true}
			for _, v := range versions {
				variant, err := device.VariantForVersion(v)
				if err != nil {
					return err
				}
				power := "blanking"
				if !v.Less(device.Version14) {
					power = "power modes"
				}
				t.Row(v.String(), variant.String(), variant.CropAdapter().Name(), variant.PartitionMode(caps).String(), power)
			}
			fb := device.VariantFramebuffer
			t.Row("none", fb.String(), fb.CropAdapter().Name(), fb.PartitionMode(device.Capabilities{}).String(), "blank")
			fmt.Fprintln(cmd.OutOrStdout(), t.String())
			return nil
		},
	}
}
