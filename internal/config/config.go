// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package config loads the settings of the hwcsim tool with Viper: a TOML
// file, HWC_ environment variables and built-in defaults, in that order of
// precedence below explicit flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/gogpu/hwc"
	"github.com/gogpu/hwc/device"
	"github.com/gogpu/hwc/platform"
)

// EnvPrefix prefixes the environment variables overriding settings, as in
// HWC_COMMIT_FAILURE_THRESHOLD.
const EnvPrefix = "HWC"

// Config is the complete tool configuration.
type Config struct {
	Display  DisplayConfig  `mapstructure:"display"`
	Commit   CommitConfig   `mapstructure:"commit"`
	Platform PlatformConfig `mapstructure:"platform"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// DisplayConfig holds the options a display platform accepts.
type DisplayConfig struct {
	HwcReport       string `mapstructure:"hwc-report"` // "log" or "off"
	DisableOverlays bool   `mapstructure:"disable-overlays"`
}

// CommitConfig tunes the commit pipeline.
type CommitConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold"`
	AlphaTolerance   float32       `mapstructure:"alpha_tolerance"`
	OverlaySleep     time.Duration `mapstructure:"overlay_sleep"`
}

// PlatformConfig selects and shapes the platform.
type PlatformConfig struct {
	// Loader names a registered loader. Empty probes them all.
	Loader string `mapstructure:"loader"`

	// ComposerVersion is the version the simulated composer reports, or
	// "none" for a platform without a composer.
	ComposerVersion string `mapstructure:"composer_version"`
	Width           int    `mapstructure:"width"`
	Height          int    `mapstructure:"height"`
	MaxOverlays     int    `mapstructure:"max_overlays"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// Default returns the built-in configuration.
func Default() Config {
	t := hwc.DefaultTuning()
	return Config{
		Display: DisplayConfig{HwcReport: string(platform.ReportOff)},
		Commit: CommitConfig{
			FailureThreshold: t.FailureThreshold,
			AlphaTolerance:   t.AlphaTolerance,
			OverlaySleep:     t.OverlaySleep,
		},
		Platform: PlatformConfig{
			ComposerVersion: device.Version13.String(),
			Width:           1280,
			Height:          720,
			MaxOverlays:     4,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("display.hwc-report", d.Display.HwcReport)
	v.SetDefault("display.disable-overlays", d.Display.DisableOverlays)

	v.SetDefault("commit.failure_threshold", d.Commit.FailureThreshold)
	v.SetDefault("commit.alpha_tolerance", d.Commit.AlphaTolerance)
	v.SetDefault("commit.overlay_sleep", d.Commit.OverlaySleep)

	v.SetDefault("platform.loader", d.Platform.Loader)
	v.SetDefault("platform.composer_version", d.Platform.ComposerVersion)
	v.SetDefault("platform.width", d.Platform.Width)
	v.SetDefault("platform.height", d.Platform.Height)
	v.SetDefault("platform.max_overlays", d.Platform.MaxOverlays)

	v.SetDefault("logging.level", d.Logging.Level)
}

// New returns a Viper instance with the defaults, search paths and
// environment binding of the tool. Flags may be bound to it before Load.
func New(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigName("hwc")
	v.SetConfigType("toml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("/etc/hwc")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "hwc"))
		}
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// Load reads the configuration file, if any, and decodes v.
func Load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read %s: %w", v.ConfigFileUsed(), err)
		}
	}
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile loads the configuration from path, or from the search paths
// when path is empty.
func LoadFile(path string) (*Config, error) { return Load(New(path)) }

// Validate checks every setting.
func (c *Config) Validate() error {
	if _, err := c.ReportMode(); err != nil {
		return err
	}
	if err := c.Tuning().Validate(); err != nil {
		return err
	}
	if _, err := c.Version(); err != nil {
		return err
	}
	if c.Platform.Width <= 0 || c.Platform.Height <= 0 {
		return fmt.Errorf("config: invalid panel size %dx%d", c.Platform.Width, c.Platform.Height)
	}
	return nil
}

// ReportMode returns the parsed hwc-report option.
func (c *Config) ReportMode() (platform.ReportMode, error) {
	return platform.ParseReportMode(c.Display.HwcReport)
}

// Tuning returns the commit pipeline tuning.
func (c *Config) Tuning() hwc.Tuning {
	return hwc.Tuning{
		FailureThreshold: c.Commit.FailureThreshold,
		AlphaTolerance:   c.Commit.AlphaTolerance,
		OverlaySleep:     c.Commit.OverlaySleep,
		DisableOverlays:  c.Display.DisableOverlays,
	}
}

// Version parses the composer version. It is zero for "none".
func (c *Config) Version() (v device.Version, err error) {
	s := c.Platform.ComposerVersion
	if s == "none" {
		return device.Version{}, nil
	}
	var major, minor uint8
	if _, err := fmt.Sscanf(s, "%d.%d", &major, &minor); err != nil {
		return device.Version{}, fmt.Errorf("config: composer version %q: %w", s, err)
	}
	v = device.Version{Major: major, Minor: minor}
	if _, err := device.VariantForVersion(v); err != nil {
		return device.Version{}, fmt.Errorf("config: composer version %q: %w", s, err)
	}
	return v, nil
}

// HasComposer reports whether the simulated platform has a composer.
func (c *Config) HasComposer() bool { return c.Platform.ComposerVersion != "none" }

// Size returns the panel size.
func (c *Config) Size() hwc.Size {
	return hwc.Size{Width: c.Platform.Width, Height: c.Platform.Height}
}
