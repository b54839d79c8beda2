// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package display

import (
	"errors"
	"image"
	"slices"
	"testing"

	"github.com/gogpu/hwc"
	"github.com/gogpu/hwc/buffer"
	"github.com/gogpu/hwc/compositor"
	"github.com/gogpu/hwc/device"
	"github.com/gogpu/hwc/layer"
)

func newTestGroup(t *testing.T, opts ...GroupOption) (*Group, *fakeDevice) {
	t.Helper()
	dev := newFakeDevice()
	return NewGroup(dev, newTestOutput(t, device.DisplayPrimary, dev.Policy(), nil), opts...), dev
}

func TestGroupFailureSequence(t *testing.T) {
	disconnected := hwc.NewError(hwc.KindDisconnected, "set", nil)
	transient := hwc.NewError(hwc.KindTransientCommit, "set", errValidate)
	tests := []struct {
		name      string
		results   []error
		fatalAt   int // index of the Post that fails fatally, -1 for none
		recovered int
	}{
		{"fail fail disconnect fail fail fail", []error{transient, transient, disconnected, transient, transient, transient}, -1, 5},
		{"four consecutive", []error{transient, transient, transient, transient}, 3, 3},
		{"success resets", []error{transient, transient, transient, nil, transient, transient}, -1, 5},
		{"unclassified counts as transient", []error{errValidate, errValidate, errValidate, errValidate}, 3, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recovered := 0
			g, dev := newTestGroup(t, WithRecoveryHook(func() { recovered++ }))
			dev.queue(tt.results...)
			for i := range tt.results {
				err := g.Post()
				if i == tt.fatalAt {
					if !errors.Is(err, hwc.ErrFatalCommit) || !hwc.IsFatal(err) {
						t.Fatalf("Post %d = %v, want fatal commit failure", i, err)
					}
					continue
				}
				if err != nil {
					t.Fatalf("Post %d = %v, want nil", i, err)
				}
			}
			if recovered != tt.recovered {
				t.Errorf("recovery hook ran %d times, want %d", recovered, tt.recovered)
			}
			if g.State() != StateIdle {
				t.Errorf("State = %v after Post", g.State())
			}
		})
	}
}

func TestGroupFailureCounter(t *testing.T) {
	g, dev := newTestGroup(t)
	dev.queue(errValidate, errValidate, hwc.ErrDisconnected, errValidate)
	want := []int{1, 2, 0, 1}
	for i, n := range want {
		if err := g.Post(); err != nil {
			t.Fatal(err)
		}
		if g.Failures() != n {
			t.Errorf("after Post %d Failures = %d, want %d", i, g.Failures(), n)
		}
	}
}

func TestGroupThreshold(t *testing.T) {
	tuning := hwc.DefaultTuning()
	tuning.FailureThreshold = 0
	g, dev := newTestGroup(t, WithTuning(tuning))
	dev.queue(errValidate)
	if err := g.Post(); hwc.KindOf(err) != hwc.KindFatalCommit {
		t.Errorf("Post = %v, want fatal at threshold 0", err)
	}
}

func TestGroupPropagatesFatalKinds(t *testing.T) {
	for _, kind := range []hwc.Kind{hwc.KindResourceAcquisition, hwc.KindUnsupported} {
		t.Run(kind.String(), func(t *testing.T) {
			recovered := false
			g, dev := newTestGroup(t, WithRecoveryHook(func() { recovered = true }))
			dev.queue(hwc.NewError(kind, "set", nil))
			err := g.Post()
			if hwc.KindOf(err) != kind {
				t.Errorf("Post = %v, want %v", err, kind)
			}
			if recovered || g.Failures() != 0 {
				t.Error("fatal kind was treated as transient")
			}
		})
	}
}

func TestGroupSkipsPoweredOff(t *testing.T) {
	g, dev := newTestGroup(t)
	g.Add(newTestOutput(t, device.DisplayExternal, dev.Policy(), nil))

	if err := g.Post(); err != nil {
		t.Fatal(err)
	}
	if err := g.Configure(device.DisplayExternal, device.PowerOff, hwc.Identity(), image.Rect(0, 0, 32, 32)); err != nil {
		t.Fatal(err)
	}
	if err := g.Post(); err != nil {
		t.Fatal(err)
	}
	got := dev.commits()
	if !slices.Equal(got[0], []device.DisplayID{device.DisplayPrimary, device.DisplayExternal}) ||
		!slices.Equal(got[1], []device.DisplayID{device.DisplayPrimary}) {
		t.Errorf("committed = %v", got)
	}

	var visited []device.DisplayID
	g.ForEachOutput(func(o *Output) { visited = append(visited, o.ID()) })
	if !slices.Equal(visited, []device.DisplayID{device.DisplayPrimary}) {
		t.Errorf("ForEachOutput visited %v", visited)
	}
}

func TestGroupAddRemove(t *testing.T) {
	g, dev := newTestGroup(t)
	if err := g.Remove(device.DisplayPrimary); !errors.Is(err, ErrRemovePrimary) || !errors.Is(err, hwc.ErrUnsupported) {
		t.Errorf("Remove(primary) = %v", err)
	}
	g.Add(newTestOutput(t, device.DisplayExternal, dev.Policy(), nil))
	if !g.Present(device.DisplayExternal) {
		t.Fatal("external not present after Add")
	}
	if err := g.Remove(device.DisplayExternal); err != nil || g.Present(device.DisplayExternal) {
		t.Errorf("Remove(external) = %v, present = %v", err, g.Present(device.DisplayExternal))
	}
	if err := g.Remove(device.DisplayVirtual); err != nil {
		t.Errorf("Remove(absent) = %v", err)
	}
}

// removingRenderer removes an output of its group before rendering.
type removingRenderer struct {
	g    *Group
	id   device.DisplayID
	next compositor.Renderer
}

func (r *removingRenderer) Render(rejected []layer.Renderable, offset hwc.Displacement, ctx compositor.RenderContext) error {
	if err := r.g.Remove(r.id); err != nil {
		return err
	}
	return r.next.Render(rejected, offset, ctx)
}

func TestGroupRemoveDuringCommit(t *testing.T) {
	g, dev := newTestGroup(t)
	r := &removingRenderer{id: device.DisplayExternal, next: compositor.NewFallbackRenderer()}
	size := hwc.Size{Width: 32, Height: 32}
	ctx, err := compositor.NewPixmapContext(buffer.NewHeapAllocator(), size)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(ctx.Close)
	g.Add(NewOutput(device.DisplayExternal, dev.Policy(), ctx, nil, size.Rect(), WithRenderer(r)))
	r.g = g
	if err := g.Post(); err != nil {
		t.Fatalf("Post with external removed mid-commit = %v", err)
	}
	if g.Present(device.DisplayExternal) {
		t.Error("external present after Remove")
	}
	if err := ctx.MakeCurrent(); !errors.Is(err, compositor.ErrContextClosed) {
		t.Errorf("retired context MakeCurrent = %v, want %v", err, compositor.ErrContextClosed)
	}
	if err := g.Post(); err != nil {
		t.Errorf("next Post = %v", err)
	}
}

func TestGroupConfigureResizeClearsContent(t *testing.T) {
	g, dev := newTestGroup(t)
	if err := g.Configure(device.DisplayPrimary, device.PowerOn, hwc.Identity(), image.Rect(10, 10, 42, 42)); err != nil {
		t.Fatal(err)
	}
	if dev.clears() != 0 {
		t.Error("moving the viewport cleared content")
	}
	if err := g.Configure(device.DisplayPrimary, device.PowerOn, hwc.Rotate(90), image.Rect(0, 0, 64, 32)); err != nil {
		t.Fatal(err)
	}
	if dev.clears() != 1 {
		t.Errorf("ContentCleared called %d times, want 1", dev.clears())
	}
	o, _ := g.Output(device.DisplayPrimary)
	if o.List().Size() != (hwc.Size{Width: 64, Height: 32}) || o.Transform().IsIdentity() {
		t.Errorf("configured list size %v", o.List().Size())
	}
	if err := g.Configure(device.DisplayVirtual, device.PowerOn, hwc.Identity(), image.Rect(0, 0, 1, 1)); err != nil {
		t.Errorf("Configure(absent) = %v", err)
	}
}
