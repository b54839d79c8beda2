// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package imagecache provides the sharded binding table that maps a
// (rendering context, buffer) pair to the GPU image created for it.
//
// Entries are never evicted by capacity: an image is created at most once
// per context lifetime per buffer and lives until the buffer or the
// context explicitly drops it.
package imagecache

import (
	"sync"
	"sync/atomic"
)

const (
	// ShardCount is the number of shards. Must be a power of 2.
	ShardCount = 16

	shardMask = ShardCount - 1
)

// Hasher computes the shard hash of a key.
type Hasher[K any] func(K) uint64

// Table is a thread-safe sharded map with create-once semantics.
type Table[K comparable, V any] struct {
	shards [ShardCount]*shard[K, V]
	hasher Hasher[K]

	hits    atomic.Uint64
	misses  atomic.Uint64
	creates atomic.Uint64
}

type shard[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]*entry[V]
}

// entry is a stored value, or a pending one while its create runs.
type entry[V any] struct {
	ready chan struct{}
	done  bool // guarded by the shard lock
	v     V
	err   error
}

func (e *entry[V]) stored() bool { return e.done && e.err == nil }

// Stats is a snapshot of table statistics.
type Stats struct {
	Len     int
	Hits    uint64
	Misses  uint64
	Creates uint64
}

// New creates an empty table.
func New[K comparable, V any](hasher Hasher[K]) *Table[K, V] {
	t := &Table[K, V]{hasher: hasher}
	for i := range t.shards {
		t.shards[i] = &shard[K, V]{entries: make(map[K]*entry[V])}
	}
	return t
}

func (t *Table[K, V]) shardFor(key K) *shard[K, V] {
	return t.shards[t.hasher(key)&shardMask]
}

// GetOrCreate returns the value stored for key, creating it with create on
// a miss. The hit result reports whether the value already existed.
//
// create runs without the shard lock, so a slow create never blocks other
// keys of the shard. Concurrent callers for the same key wait for the
// first one and never create twice. A failed create stores nothing and is
// reported to every caller that waited on it.
func (t *Table[K, V]) GetOrCreate(key K, create func() (V, error)) (v V, hit bool, err error) {
	s := t.shardFor(key)

	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		s.mu.Lock()
		// Re-check after acquiring the write lock.
		if e, ok = s.entries[key]; !ok {
			e = &entry[V]{ready: make(chan struct{})}
			s.entries[key] = e
		}
		s.mu.Unlock()
		if !ok {
			return t.fill(s, key, e, create)
		}
	}

	<-e.ready
	if e.err != nil {
		var zero V
		return zero, false, e.err
	}
	t.hits.Add(1)
	return e.v, true, nil
}

func (t *Table[K, V]) fill(s *shard[K, V], key K, e *entry[V], create func() (V, error)) (V, bool, error) {
	t.misses.Add(1)
	v, err := create()

	s.mu.Lock()
	e.v, e.err, e.done = v, err, true
	if err != nil && s.entries[key] == e {
		delete(s.entries, key)
	}
	s.mu.Unlock()
	close(e.ready)

	if err != nil {
		var zero V
		return zero, false, err
	}
	t.creates.Add(1)
	return v, false, nil
}

// Delete removes key and returns its value. A pending create for key is
// dropped from the table and reports false.
func (t *Table[K, V]) Delete(key K) (V, bool) {
	s := t.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	delete(s.entries, key)
	if !e.stored() {
		var zero V
		return zero, false
	}
	return e.v, true
}

// DeleteFunc removes every entry whose key satisfies pred and returns the
// removed values so the caller can destroy them outside the locks.
func (t *Table[K, V]) DeleteFunc(pred func(K) bool) []V {
	var removed []V
	for _, s := range t.shards {
		s.mu.Lock()
		for k, e := range s.entries {
			if pred(k) {
				if e.stored() {
					removed = append(removed, e.v)
				}
				delete(s.entries, k)
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// Len returns the number of stored values across all shards.
func (t *Table[K, V]) Len() int {
	total := 0
	for _, s := range t.shards {
		s.mu.RLock()
		for _, e := range s.entries {
			if e.stored() {
				total++
			}
		}
		s.mu.RUnlock()
	}
	return total
}

// Stats returns current statistics.
func (t *Table[K, V]) Stats() Stats {
	return Stats{
		Len:     t.Len(),
		Hits:    t.hits.Load(),
		Misses:  t.misses.Load(),
		Creates: t.creates.Load(),
	}
}

// Mix64 is a finalizer-style mixer used to hash composite integer keys.
func Mix64(a, b uint64) uint64 {
	h := a*0x9E3779B97F4A7C15 ^ b
	h ^= h >> 33
	h *= 0xFF51AFD7ED558CCD
	h ^= h >> 33
	return h
}
