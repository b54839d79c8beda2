// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package buffer

import "sync"

// Fence is an asynchronous completion signal. It tells when a prior
// producer or consumer operation on a buffer's memory has finished.
//
// Waits are unbounded. A fence that never signals means the driver is in
// a broken state; the commit failure counter handles that, not a timeout.
type Fence interface {
	// Wait blocks until the fence signals.
	Wait()

	// Signaled reports whether the fence has signaled, without blocking.
	Signaled() bool
}

// SyncFence is an in-process Fence signaled by calling Signal.
type SyncFence struct {
	once sync.Once
	done chan struct{}
}

// NewSyncFence returns an unsignaled fence.
func NewSyncFence() *SyncFence {
	return &SyncFence{done: make(chan struct{})}
}

// Signal signals the fence. Calling it more than once is a no-op.
func (f *SyncFence) Signal() {
	f.once.Do(func() { close(f.done) })
}

// Wait blocks until Signal is called.
func (f *SyncFence) Wait() { <-f.done }

// Signaled reports whether Signal has been called.
func (f *SyncFence) Signaled() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Done returns a channel closed when the fence signals.
func (f *SyncFence) Done() <-chan struct{} { return f.done }

var signaled = func() *SyncFence {
	f := NewSyncFence()
	f.Signal()
	return f
}()

// SignaledFence returns a fence that has already signaled.
func SignaledFence() Fence { return signaled }

type mergedFence []Fence

func (m mergedFence) Wait() {
	for _, f := range m {
		f.Wait()
	}
}

func (m mergedFence) Signaled() bool {
	for _, f := range m {
		if !f.Signaled() {
			return false
		}
	}
	return true
}

// MergeFences returns a fence that signals once all of fences have
// signaled. Nil fences are ignored. It returns nil when no fence remains.
func MergeFences(fences ...Fence) Fence {
	var out mergedFence
	for _, f := range fences {
		switch f := f.(type) {
		case nil:
		case mergedFence:
			out = append(out, f...)
		default:
			out = append(out, f)
		}
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	}
	return out
}
