// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package device

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestEventHubDispatch(t *testing.T) {
	hub := NewEventHub()
	var vsyncs, hotplugs, invalidates atomic.Int32
	hub.Subscribe("a", Callbacks{
		Vsync: func(id DisplayID, ts time.Duration) {
			if id == DisplayExternal && ts == time.Second {
				vsyncs.Add(1)
			}
		},
		Hotplug:    func(DisplayID, bool) { hotplugs.Add(1) },
		Invalidate: func() { invalidates.Add(1) },
	})
	hub.Subscribe("b", Callbacks{Vsync: func(DisplayID, time.Duration) { vsyncs.Add(1) }})

	hub.Vsync(DisplayExternal, time.Second)
	hub.Hotplug(DisplayExternal, true)
	hub.Invalidate()
	if vsyncs.Load() != 2 || hotplugs.Load() != 1 || invalidates.Load() != 1 {
		t.Errorf("vsync=%d hotplug=%d invalidate=%d", vsyncs.Load(), hotplugs.Load(), invalidates.Load())
	}

	hub.Unsubscribe("a")
	hub.Unsubscribe("missing")
	hub.Vsync(DisplayPrimary, 0)
	if vsyncs.Load() != 3 || hub.Subscribers() != 1 {
		t.Error("unsubscribed token still called")
	}
}

func TestUnsubscribeDuringCallback(t *testing.T) {
	hub := NewEventHub()
	entered := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	hub.Subscribe("token", Callbacks{Vsync: func(DisplayID, time.Duration) {
		if calls.Add(1) == 1 {
			close(entered)
			<-release
		}
	}})

	go hub.Vsync(DisplayPrimary, 0)
	<-entered

	unsubscribed := make(chan struct{})
	go func() {
		hub.Unsubscribe("token")
		close(unsubscribed)
	}()
	select {
	case <-unsubscribed:
		t.Fatal("Unsubscribe returned while the callback was running")
	case <-time.After(20 * time.Millisecond):
	}

	// A dispatch racing the Unsubscribe must not reach the callback.
	delivered := make(chan struct{})
	go func() {
		hub.Vsync(DisplayPrimary, 1)
		close(delivered)
	}()

	close(release)
	select {
	case <-unsubscribed:
	case <-time.After(time.Second):
		t.Fatal("Unsubscribe deadlocked")
	}
	<-delivered

	hub.Vsync(DisplayPrimary, 2)
	if n := calls.Load(); n != 1 {
		t.Errorf("callback ran %d times, want 1", n)
	}
}

func TestHooksDetach(t *testing.T) {
	hub := NewEventHub()
	var hotplugs atomic.Int32
	hub.Subscribe(1, Callbacks{Hotplug: func(DisplayID, bool) { hotplugs.Add(1) }})

	hooks := NewHooks(hub)
	hooks.Hotplug(DisplayExternal, true)
	hooks.Vsync(DisplayPrimary, 0)
	hooks.Invalidate()
	if !hooks.Attached() || hotplugs.Load() != 1 {
		t.Fatal("hooks did not forward")
	}
	hooks.Detach()
	hooks.Hotplug(DisplayExternal, false)
	if hooks.Attached() || hotplugs.Load() != 1 {
		t.Error("detached hooks still forward")
	}
}
