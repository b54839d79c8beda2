// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package layer

import (
	"sync"

	"github.com/gogpu/hwc/buffer"
)

// Planner tracks which buffers are resident on overlay planes. Buffers are
// identified by their native handle, not by the layer that carried them,
// so a buffer posted again in the next frame is recognized.
type Planner struct {
	mu       sync.Mutex
	onscreen map[buffer.Handle]*buffer.Buffer
}

// NewPlanner creates a planner with nothing on screen.
func NewPlanner() *Planner {
	return &Planner{onscreen: make(map[buffer.Handle]*buffer.Buffer)}
}

// OnScreen reports whether b was resident after the last commit. Such a
// buffer needs no acquire fence wait.
func (p *Planner) OnScreen(b *buffer.Buffer) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.onscreen[b.Handle()]
	return ok
}

// Commit swaps in next as the resident set. The planner holds a reference
// on every resident buffer and drops the references of the old set.
func (p *Planner) Commit(next []*buffer.Buffer) {
	set := make(map[buffer.Handle]*buffer.Buffer, len(next))
	for _, b := range next {
		if _, dup := set[b.Handle()]; !dup {
			set[b.Handle()] = b.Acquire()
		}
	}
	p.mu.Lock()
	old := p.onscreen
	p.onscreen = set
	p.mu.Unlock()

	for _, b := range old {
		b.Release()
	}
}

// ContentCleared forgets the resident set, forcing fence waits for every
// overlay of the next frame.
func (p *Planner) ContentCleared() {
	p.Commit(nil)
}

// Len returns the number of resident buffers.
func (p *Planner) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.onscreen)
}
