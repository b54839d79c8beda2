// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package device

import (
	"sync"
	"time"

	"github.com/gogpu/hwc"
)

// Callbacks receive composer notifications. Nil fields are skipped.
type Callbacks struct {
	// Vsync gets the display and a monotonic timestamp.
	Vsync func(id DisplayID, timestamp time.Duration)

	// Hotplug gets the display and whether it is now connected.
	Hotplug func(id DisplayID, connected bool)

	// Invalidate asks for a new frame.
	Invalidate func()
}

type subscription struct {
	// mu is read-held while a callback runs and write-held by Unsubscribe,
	// which therefore waits for callbacks in flight.
	mu     sync.RWMutex
	closed bool
	cb     Callbacks
}

// EventHub dispatches composer notifications to subscribers. The
// notifications arrive on HAL goroutines, independent of the compositor.
type EventHub struct {
	mu   sync.Mutex
	subs map[any]*subscription
}

// NewEventHub creates a hub without subscribers.
func NewEventHub() *EventHub {
	return &EventHub{subs: make(map[any]*subscription)}
}

// Subscribe registers cb under token, replacing an earlier subscription of
// the same token. token must be comparable.
func (h *EventHub) Subscribe(token any, cb Callbacks) {
	h.mu.Lock()
	old := h.subs[token]
	h.subs[token] = &subscription{cb: cb}
	h.mu.Unlock()
	if old != nil {
		old.close()
	}
}

// Unsubscribe removes the subscription of token. It waits for a callback
// of token that is running and guarantees none runs after it returns.
// It must not be called from inside a callback of the same token.
func (h *EventHub) Unsubscribe(token any) {
	h.mu.Lock()
	s := h.subs[token]
	delete(h.subs, token)
	h.mu.Unlock()
	if s != nil {
		s.close()
	}
}

func (s *subscription) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// Subscribers returns the number of subscriptions.
func (h *EventHub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *EventHub) snapshot() []*subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*subscription, 0, len(h.subs))
	for _, s := range h.subs {
		out = append(out, s)
	}
	return out
}

func (h *EventHub) dispatch(call func(cb Callbacks)) {
	for _, s := range h.snapshot() {
		s.mu.RLock()
		if !s.closed {
			call(s.cb)
		}
		s.mu.RUnlock()
	}
}

// Vsync delivers a vsync of display id.
func (h *EventHub) Vsync(id DisplayID, timestamp time.Duration) {
	h.dispatch(func(cb Callbacks) {
		if cb.Vsync != nil {
			cb.Vsync(id, timestamp)
		}
	})
}

// Hotplug delivers a connection change of display id.
func (h *EventHub) Hotplug(id DisplayID, connected bool) {
	hwc.Logger().Info("hwc: hotplug", "display", id, "connected", connected)
	h.dispatch(func(cb Callbacks) {
		if cb.Hotplug != nil {
			cb.Hotplug(id, connected)
		}
	})
}

// Invalidate delivers a request for a new frame.
func (h *EventHub) Invalidate() {
	h.dispatch(func(cb Callbacks) {
		if cb.Invalidate != nil {
			cb.Invalidate()
		}
	})
}

// Hooks is the registration context handed to the composer. The composer
// delivers notifications through it until Detach, after which late
// notifications are dropped.
type Hooks struct {
	mu  sync.RWMutex
	hub *EventHub
}

// NewHooks creates hooks forwarding to hub.
func NewHooks(hub *EventHub) *Hooks {
	return &Hooks{hub: hub}
}

func (k *Hooks) target() (*EventHub, func()) {
	k.mu.RLock()
	if k.hub == nil {
		k.mu.RUnlock()
		return nil, nil
	}
	return k.hub, k.mu.RUnlock
}

// Vsync forwards a vsync notification.
func (k *Hooks) Vsync(id DisplayID, timestamp time.Duration) {
	if hub, done := k.target(); hub != nil {
		defer done()
		hub.Vsync(id, timestamp)
	}
}

// Hotplug forwards a hotplug notification.
func (k *Hooks) Hotplug(id DisplayID, connected bool) {
	if hub, done := k.target(); hub != nil {
		defer done()
		hub.Hotplug(id, connected)
	}
}

// Invalidate forwards an invalidate notification.
func (k *Hooks) Invalidate() {
	if hub, done := k.target(); hub != nil {
		defer done()
		hub.Invalidate()
	}
}

// Detach invalidates the hooks. It waits for notifications being
// delivered and drops every later one.
func (k *Hooks) Detach() {
	k.mu.Lock()
	k.hub = nil
	k.mu.Unlock()
}

// Attached reports whether the hooks still deliver notifications.
func (k *Hooks) Attached() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.hub != nil
}
