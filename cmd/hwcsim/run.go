// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"os/signal"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/gogpu/hwc"
	"github.com/gogpu/hwc/buffer"
	"github.com/gogpu/hwc/device"
	"github.com/gogpu/hwc/display"
	"github.com/gogpu/hwc/layer"
	"github.com/gogpu/hwc/platform"
)

type runOptions struct {
	frames   int
	surfaces int
	hotplug  bool
	failSets int
}

func newRunCmd(a *app) *cobra.Command {
	var o runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Compose and commit frames on the simulated displays",
		Long: `Select a platform, bring up its displays and commit a number of frames
of moving surfaces. With --hotplug an external display is connected halfway
through; --fail-sets injects commit failures to exercise recovery.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			stats, err := a.run(ctx, o)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "platform %s, variant %v: %d frames, %d commits, %d recoveries, outputs in use: %d\n",
				stats.platform, stats.variant, stats.frames, stats.commits, stats.recoveries, stats.outputs)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.IntVar(&o.frames, "frames", 120, "number of frames to commit")
	flags.IntVar(&o.surfaces, "surfaces", 3, "number of surfaces on screen")
	flags.BoolVar(&o.hotplug, "hotplug", false, "connect an external display halfway through")
	flags.IntVar(&o.failSets, "fail-sets", 0, "number of consecutive commit failures to inject")
	return cmd
}

type runStats struct {
	platform   string
	variant    device.Variant
	frames     int
	commits    int
	recoveries int
	outputs    int
}

var errInjected = errors.New("hwcsim: injected commit failure")

func (a *app) run(ctx context.Context, o runOptions) (runStats, error) {
	sim := registerSimulated(a.cfg)
	name, l, err := selectLoader(a.cfg)
	if err != nil {
		return runStats{}, err
	}
	mode, err := a.cfg.ReportMode()
	if err != nil {
		return runStats{}, err
	}
	f, err := platform.NewComponentFactory(l,
		platform.WithTuning(a.cfg.Tuning()),
		platform.WithReport(platform.NewReport(mode)),
	)
	if err != nil {
		return runStats{}, err
	}
	defer f.Close()

	var stats runStats
	d, err := display.New(f,
		display.WithDisplayTuning(a.cfg.Tuning()),
		display.OnConfigurationChange(func() { hwc.Logger().Info("hwcsim: outputs changed") }),
	)
	if err != nil {
		return runStats{}, err
	}
	defer d.Close()

	surfaces, err := newSurfaces(l.Allocator(), o.surfaces)
	if err != nil {
		return runStats{}, err
	}
	defer func() {
		for _, s := range surfaces {
			s.buf.Release()
		}
	}()

	composer := sim.Composer()
	errs := make([]error, o.failSets)
	for i := range errs {
		errs[i] = errInjected
	}
	composer.FailSet(errs...)

	ctx, cancel := context.WithCancel(ctx)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := composer.RunVsync(ctx, device.DefaultRefreshPeriod)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		defer cancel()
		for i := range o.frames {
			if o.hotplug && i == o.frames/2 {
				composer.Hotplug(device.DisplayExternal, true, device.Attributes{
					Width:       a.cfg.Platform.Width,
					Height:      a.cfg.Platform.Height,
					VsyncPeriod: device.DefaultRefreshPeriod,
				})
			}
			sleep, err := commitFrame(d, surfaces, i, &stats)
			if err != nil {
				return err
			}
			stats.frames++
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(sleep):
			}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return stats, err
	}
	composer.Flush()

	stats.platform = name
	stats.variant = d.Device().Variant()
	stats.commits = composer.Sets()
	for _, info := range d.Outputs() {
		if info.Used {
			stats.outputs++
		}
	}
	return stats, nil
}

// commitFrame lays the surfaces out for frame n and commits them to every
// output.
func commitFrame(d *display.Display, surfaces []surface, n int, stats *runStats) (time.Duration, error) {
	var (
		sleep time.Duration
		err   error
	)
	d.ForEachDisplaySyncGroup(func(g *display.Group) {
		before := g.Failures()
		g.ForEachOutput(func(o *display.Output) {
			o.PostRenderables(layout(surfaces, o.Viewport(), n))
		})
		if err = g.Post(); err != nil {
			return
		}
		if g.Failures() > before {
			stats.recoveries++
		}
		sleep = g.RecommendedSleep()
	})
	return sleep, err
}

type surface struct {
	id    uint64
	buf   *buffer.Buffer
	alpha float32
}

var palette = [][4]byte{
	{0xd9, 0x4f, 0x3d, 0xff},
	{0x3d, 0x8b, 0xd9, 0xff},
	{0x5c, 0xb8, 0x5c, 0xff},
	{0xe8, 0xc5, 0x47, 0xff},
}

const surfaceSize = 64

// newSurfaces creates n solid surfaces. Every third one is translucent so
// some frames need GPU composition.
func newSurfaces(alloc buffer.Allocator, n int) ([]surface, error) {
	out := make([]surface, 0, n)
	size := hwc.Size{Width: surfaceSize, Height: surfaceSize}
	for i := range n {
		b, err := alloc.Alloc(size, gputypes.TextureFormatRGBA8Unorm, gputypes.TextureUsageTextureBinding)
		if err != nil {
			for _, s := range out {
				s.buf.Release()
			}
			return nil, err
		}
		c := palette[i%len(palette)]
		pix := make([]byte, surfaceSize*surfaceSize*4)
		for p := 0; p < len(pix); p += 4 {
			copy(pix[p:p+4], c[:])
		}
		if err := b.Write(pix); err != nil {
			b.Release()
			return nil, err
		}
		alpha := float32(1)
		if i%3 == 2 {
			alpha = 0.5
		}
		out = append(out, surface{id: uint64(i + 1), buf: b, alpha: alpha})
	}
	return out, nil
}

// layout places the surfaces on a diagonal that advances with n.
func layout(surfaces []surface, viewport image.Rectangle, n int) []layer.Renderable {
	w := max(viewport.Dx()-surfaceSize, 1)
	h := max(viewport.Dy()-surfaceSize, 1)
	rs := make([]layer.Renderable, 0, len(surfaces))
	for i, s := range surfaces {
		x := (i*surfaceSize + n*4) % w
		y := (i*surfaceSize/2 + n*2) % h
		at := viewport.Min.Add(image.Pt(x, y))
		rs = append(rs, layer.Renderable{
			ID:        s.id,
			Buffer:    s.buf,
			Position:  image.Rectangle{Min: at, Max: at.Add(image.Pt(surfaceSize, surfaceSize))},
			Transform: hwc.Identity(),
			Alpha:     s.alpha,
		})
	}
	return rs
}
