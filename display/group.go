// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package display

import (
	"errors"
	"image"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/hwc"
	"github.com/gogpu/hwc/device"
)

// State is the commit state of a group.
type State uint32

const (
	StateIdle State = iota
	StatePreparing
	StateCommitting
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StatePreparing:
		return "Preparing"
	case StateCommitting:
		return "Committing"
	default:
		return "Unknown"
	}
}

// ErrRemovePrimary is returned when removing the primary output.
var ErrRemovePrimary = errors.New("display: cannot remove primary output")

// GroupOption configures a Group.
type GroupOption func(*Group)

// WithTuning sets the failure threshold the group uses.
func WithTuning(t hwc.Tuning) GroupOption {
	return func(g *Group) { g.tuning = t }
}

// WithRecoveryHook sets the function run after a tolerated commit
// failure, before the next frame.
func WithRecoveryHook(fn func()) GroupOption {
	return func(g *Group) { g.recover = fn }
}

// Group commits the outputs sharing one display device in lockstep.
//
// Post runs on the compositor goroutine only. Add, Remove, Configure and
// the queries may be called from any goroutine; they hold the output lock
// only briefly and never wait for a commit.
type Group struct {
	dev     device.DisplayDevice
	tuning  hwc.Tuning
	recover func()

	state    atomic.Uint32
	failures atomic.Int32

	mu         sync.Mutex
	outputs    map[device.DisplayID]*Output
	committing int // commits in flight

	// retired holds outputs removed during a commit. Their render
	// contexts are closed once the commit is over.
	retired []*Output
}

// NewGroup creates a group driving dev with primary as its first output.
func NewGroup(dev device.DisplayDevice, primary *Output, opts ...GroupOption) *Group {
	g := &Group{
		dev:     dev,
		tuning:  hwc.DefaultTuning(),
		outputs: map[device.DisplayID]*Output{primary.ID(): primary},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Device returns the display device of the group.
func (g *Group) Device() device.DisplayDevice { return g.dev }

// State returns the commit state.
func (g *Group) State() State { return State(g.state.Load()) }

// Failures returns the number of consecutive failed commits.
func (g *Group) Failures() int { return int(g.failures.Load()) }

// Add adds or replaces the output with o's id.
func (g *Group) Add(o *Output) {
	g.mu.Lock()
	old := g.outputs[o.ID()]
	g.outputs[o.ID()] = o
	g.mu.Unlock()
	if old != nil && old != o {
		g.retire(old)
	}
}

// retire closes o, or defers it to the end of the commit in flight.
func (g *Group) retire(o *Output) {
	g.mu.Lock()
	if g.committing > 0 {
		g.retired = append(g.retired, o)
		g.mu.Unlock()
		return
	}
	g.mu.Unlock()
	o.close()
}

// Remove removes and closes the output id. Removing an absent output does
// nothing; the primary output cannot be removed. An output removed while
// a commit is in flight keeps its render context until the commit ends.
func (g *Group) Remove(id device.DisplayID) error {
	if id == device.DisplayPrimary {
		return hwc.NewError(hwc.KindUnsupported, "display.Group.Remove", ErrRemovePrimary)
	}
	g.mu.Lock()
	o := g.outputs[id]
	delete(g.outputs, id)
	g.mu.Unlock()
	if o != nil {
		g.retire(o)
	}
	return nil
}

// Present reports whether the group has output id.
func (g *Group) Present(id device.DisplayID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.outputs[id]
	return ok
}

// Output returns output id.
func (g *Group) Output(id device.DisplayID) (*Output, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	o, ok := g.outputs[id]
	return o, ok
}

// Configure applies a power mode, transform and viewport to output id.
// Configuring an absent output does nothing. A viewport of a new size
// clears the device's resident overlay set.
func (g *Group) Configure(id device.DisplayID, mode device.PowerMode, transform hwc.Transform, viewport image.Rectangle) error {
	g.mu.Lock()
	o := g.outputs[id]
	g.mu.Unlock()
	if o == nil {
		return nil
	}
	resized, err := o.configure(mode, transform, viewport)
	if err != nil {
		return err
	}
	if resized {
		g.dev.ContentCleared()
	}
	return nil
}

// active returns the outputs not powered off, by id.
func (g *Group) active() []*Output {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.activeLocked()
}

func (g *Group) activeLocked() []*Output {
	out := make([]*Output, 0, len(g.outputs))
	for _, id := range slices.Sorted(maps.Keys(g.outputs)) {
		if o := g.outputs[id]; o.PowerMode() != device.PowerOff {
			out = append(out, o)
		}
	}
	return out
}

// ForEachOutput calls fn for every output not powered off.
func (g *Group) ForEachOutput(fn func(*Output)) {
	for _, o := range g.active() {
		fn(o)
	}
}

// Post commits the posted lists of every output not powered off.
//
// A disconnected output during the commit is not an error. Other
// failures are tolerated up to the failure threshold of consecutive
// commits: they are logged and the recovery hook runs. The failure after
// that is returned as a KindFatalCommit error. Resource acquisition and
// unsupported operation failures are returned at once.
func (g *Group) Post() error {
	g.mu.Lock()
	var contents []device.Contents
	for _, o := range g.activeLocked() {
		contents = append(contents, o.contents())
	}
	if len(contents) == 0 {
		g.mu.Unlock()
		return nil
	}
	g.committing++
	g.mu.Unlock()

	err := g.commit(contents)
	g.state.Store(uint32(StateIdle))
	g.endCommit()
	return g.handle(err)
}

// endCommit closes the outputs removed during the commit.
func (g *Group) endCommit() {
	g.mu.Lock()
	g.committing--
	var retired []*Output
	if g.committing == 0 {
		retired, g.retired = g.retired, nil
	}
	g.mu.Unlock()
	for _, o := range retired {
		o.close()
	}
}

func (g *Group) commit(contents []device.Contents) error {
	g.state.Store(uint32(StatePreparing))
	if err := g.dev.Prepare(contents); err != nil {
		return err
	}
	for _, c := range contents {
		if !c.List.NeedsSwapBuffers() {
			continue
		}
		if !g.dev.CanSwapBuffers() {
			return hwc.Errorf(hwc.KindUnsupported, "display.Group.Post", "%v cannot present GPU output", g.dev.Variant())
		}
		if err := c.Compositor.Render(c.List.Rejected(), c.List.Offset(), c.Context); err != nil {
			return err
		}
		c.List.SetupFramebuffer(c.Context.LastRenderedBuffer())
		c.List.SwapOccurred()
	}
	g.state.Store(uint32(StateCommitting))
	return g.dev.Set(contents)
}

func (g *Group) handle(err error) error {
	switch {
	case err == nil:
		g.failures.Store(0)
		return nil
	case errors.Is(err, hwc.ErrDisconnected):
		hwc.Logger().Info("display: output disconnected during commit", "err", err)
		g.failures.Store(0)
		return nil
	case hwc.IsFatal(err):
		return err
	}

	n := int(g.failures.Add(1))
	if n > g.tuning.FailureThreshold {
		hwc.Logger().Error("display: commit failed", "consecutive", n, "err", err)
		return hwc.NewError(hwc.KindFatalCommit, "display.Group.Post", err)
	}
	hwc.Logger().Warn("display: commit failed", "consecutive", n, "err", err)
	if g.recover != nil {
		g.recover()
	}
	return nil
}

// RecommendedSleep returns how long the compositor may sleep before the
// next frame, as reported by the device for the last commit.
func (g *Group) RecommendedSleep() time.Duration { return g.dev.RecommendedSleep() }
