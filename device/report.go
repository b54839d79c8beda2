// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package device

import (
	"log/slog"
	"strings"

	"github.com/gogpu/hwc"
	"github.com/gogpu/hwc/layer"
)

// Report observes the traffic between the pipeline and the composer.
type Report interface {
	ListSubmittedToPrepare(displays []*ComposerDisplay)
	PrepareDone(displays []*ComposerDisplay)
	SetList(displays []*ComposerDisplay)
	SetDone(displays []*ComposerDisplay)
	VsyncOn(id DisplayID)
	VsyncOff(id DisplayID)
	DisplayOn(id DisplayID)
	DisplayOff(id DisplayID)
	PowerMode(id DisplayID, mode HWPowerMode)
	Version(v Version)
	LegacyFramebuffer()
}

// NullReport discards everything.
type NullReport struct{}

func (NullReport) ListSubmittedToPrepare([]*ComposerDisplay) {}
func (NullReport) PrepareDone([]*ComposerDisplay)            {}
func (NullReport) SetList([]*ComposerDisplay)                {}
func (NullReport) SetDone([]*ComposerDisplay)                {}
func (NullReport) VsyncOn(DisplayID)                         {}
func (NullReport) VsyncOff(DisplayID)                        {}
func (NullReport) DisplayOn(DisplayID)                       {}
func (NullReport) DisplayOff(DisplayID)                      {}
func (NullReport) PowerMode(DisplayID, HWPowerMode)          {}
func (NullReport) Version(Version)                           {}
func (NullReport) LegacyFramebuffer()                        {}

// LogReport writes the report to a structured logger at debug level.
type LogReport struct {
	log *slog.Logger
}

// NewLogReport creates a report writing to l, or to hwc.Logger() when l
// is nil.
func NewLogReport(l *slog.Logger) *LogReport {
	if l == nil {
		l = hwc.Logger()
	}
	return &LogReport{log: l.With("component", "hwc-report")}
}

func (r *LogReport) lists(msg string, displays []*ComposerDisplay) {
	for _, d := range displays {
		r.log.Debug(msg, "display", d.ID, "layers", describe(d.Layers))
	}
}

func (r *LogReport) ListSubmittedToPrepare(d []*ComposerDisplay) { r.lists("before prepare", d) }
func (r *LogReport) PrepareDone(d []*ComposerDisplay)            { r.lists("after prepare", d) }
func (r *LogReport) SetList(d []*ComposerDisplay)                { r.lists("set list", d) }

func (r *LogReport) SetDone(displays []*ComposerDisplay) {
	for _, d := range displays {
		r.log.Debug("set done", "display", d.ID, "retire", d.RetireFence != nil)
	}
}

func (r *LogReport) VsyncOn(id DisplayID)    { r.log.Debug("vsync on", "display", id) }
func (r *LogReport) VsyncOff(id DisplayID)   { r.log.Debug("vsync off", "display", id) }
func (r *LogReport) DisplayOn(id DisplayID)  { r.log.Debug("display on", "display", id) }
func (r *LogReport) DisplayOff(id DisplayID) { r.log.Debug("display off", "display", id) }

func (r *LogReport) PowerMode(id DisplayID, mode HWPowerMode) {
	r.log.Debug("power mode", "display", id, "mode", mode)
}

func (r *LogReport) Version(v Version) { r.log.Info("composer version", "version", v) }

func (r *LogReport) LegacyFramebuffer() { r.log.Info("using legacy framebuffer module") }

func describe(layers []*layer.NativeLayer) string {
	var sb strings.Builder
	for i, l := range layers {
		if i > 0 {
			sb.WriteString(" ")
		}
		switch l.Composition {
		case layer.CompositionOverlay:
			sb.WriteString("OV")
		case layer.CompositionClient:
			sb.WriteString("GL")
		case layer.CompositionTarget:
			sb.WriteString("FB")
		default:
			sb.WriteString("SKIP")
		}
	}
	return sb.String()
}

// reportingComposer forwards to a composer and reports each call.
type reportingComposer struct {
	Composer
	report Report
}

// WithReport wraps c so every call is reported to r. A NullReport returns
// c unchanged.
func WithReport(c Composer, r Report) Composer {
	if _, ok := r.(NullReport); ok || r == nil {
		return c
	}
	return &reportingComposer{Composer: c, report: r}
}

func (c *reportingComposer) Prepare(displays []*ComposerDisplay) error {
	c.report.ListSubmittedToPrepare(displays)
	err := c.Composer.Prepare(displays)
	if err == nil {
		c.report.PrepareDone(displays)
	}
	return err
}

func (c *reportingComposer) Set(displays []*ComposerDisplay) error {
	c.report.SetList(displays)
	err := c.Composer.Set(displays)
	if err == nil {
		c.report.SetDone(displays)
	}
	return err
}

func (c *reportingComposer) VsyncSignalOn(id DisplayID) error {
	err := c.Composer.VsyncSignalOn(id)
	if err == nil {
		c.report.VsyncOn(id)
	}
	return err
}

func (c *reportingComposer) VsyncSignalOff(id DisplayID) error {
	err := c.Composer.VsyncSignalOff(id)
	if err == nil {
		c.report.VsyncOff(id)
	}
	return err
}

func (c *reportingComposer) DisplayOn(id DisplayID) error {
	err := c.Composer.DisplayOn(id)
	if err == nil {
		c.report.DisplayOn(id)
	}
	return err
}

func (c *reportingComposer) DisplayOff(id DisplayID) error {
	err := c.Composer.DisplayOff(id)
	if err == nil {
		c.report.DisplayOff(id)
	}
	return err
}

func (c *reportingComposer) SetPowerMode(id DisplayID, mode HWPowerMode) error {
	err := c.Composer.SetPowerMode(id, mode)
	if err == nil {
		c.report.PowerMode(id, mode)
	}
	return err
}
