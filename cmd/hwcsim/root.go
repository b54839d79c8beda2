// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gogpu/hwc"
	"github.com/gogpu/hwc/internal/config"
)

// app carries the loaded configuration to the subcommands.
type app struct {
	configPath string
	v          *viper.Viper
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "hwcsim",
		Short:         "Run the display composition pipeline on a simulated HAL",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default: hwc.toml in /etc/hwc, ~/.config/hwc or .)")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	flags.String("hwc-report", "", `composer report: "log" or "off"`)
	flags.Bool("disable-overlays", false, "composite every surface on the GPU")
	flags.String("composer", "", `simulated composer version, or "none"`)

	root.AddCommand(newRunCmd(a), newProbeCmd(a), newVariantsCmd())
	return root
}

// load reads the configuration, letting flags that were set win, and
// installs the logger.
func (a *app) load(cmd *cobra.Command) error {
	a.v = config.New(a.configPath)
	flags := cmd.Flags()
	bindings := map[string]string{
		"logging.level":             "log-level",
		"display.hwc-report":        "hwc-report",
		"display.disable-overlays":  "disable-overlays",
		"platform.composer_version": "composer",
	}
	for key, name := range bindings {
		if f := flags.Lookup(name); f != nil && f.Changed {
			if err := a.v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("bind --%s: %w", name, err)
			}
		}
	}
	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg
	return setupLogger(cfg.Logging.Level)
}

func setupLogger(level string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Level:           lvl,
	})
	hwc.SetLogger(slog.New(logger))
	return nil
}
