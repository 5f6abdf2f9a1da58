package pipeline

import (
	"sync"
	"sync/atomic"
)

// SwapPolicy selects how a store reconciles its buffers at a frame boundary.
// The policy is fixed for the lifetime of a store; mixing policies would let
// the two buffers drift apart silently.
type SwapPolicy uint8

const (
	// SwapDirty copies only keys touched since the last swap. Requires every
	// back-buffer mutation to be reported through MarkDirty.
	SwapDirty SwapPolicy = iota
	// SwapFull rebuilds the stale buffer from the fresh one wholesale. Dirty
	// marks are ignored.
	SwapFull
)

// Store is a double-buffered map from ID to a snapshot value. The consumer
// reads the front buffer while the producer mutates the back buffer; Swap
// reconciles and flips the two under a single lock so readers never observe
// a half-applied frame.
type Store[T any] struct {
	mu      sync.RWMutex
	buffers [2]map[ID]T
	front   int
	dirty   map[ID]struct{}
	policy  SwapPolicy
	domain  Domain
	swaps   atomic.Uint64
}

// NewStore constructs an empty store for the domain using the given policy.
func NewStore[T any](domain Domain, policy SwapPolicy) *Store[T] {
	return &Store[T]{
		buffers: [2]map[ID]T{make(map[ID]T), make(map[ID]T)},
		dirty:   make(map[ID]struct{}),
		policy:  policy,
		domain:  domain,
	}
}

// Domain reports which state domain this store backs.
func (s *Store[T]) Domain() Domain {
	if s == nil {
		return 0
	}
	return s.domain
}

// Put writes a value into the back buffer and marks the key dirty.
func (s *Store[T]) Put(id ID, value T) {
	if s == nil || id == 0 {
		return
	}
	s.mu.Lock()
	s.buffers[s.back()][id] = value
	s.markDirtyLocked(id)
	s.mu.Unlock()
}

// Get reads a value from the back buffer. Producer-side reads see their own
// writes from the current frame; consumers should use Front instead.
func (s *Store[T]) Get(id ID) (T, bool) {
	var zero T
	if s == nil || id == 0 {
		return zero, false
	}
	s.mu.RLock()
	v, ok := s.buffers[s.back()][id]
	s.mu.RUnlock()
	return v, ok
}

// Delete removes a key from the back buffer and marks it dirty so the swap
// propagates the removal to the other buffer.
func (s *Store[T]) Delete(id ID) bool {
	if s == nil || id == 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	back := s.back()
	if _, ok := s.buffers[back][id]; !ok {
		return false
	}
	delete(s.buffers[back], id)
	s.markDirtyLocked(id)
	return true
}

// Front reads a value from the front buffer.
func (s *Store[T]) Front(id ID) (T, bool) {
	var zero T
	if s == nil || id == 0 {
		return zero, false
	}
	s.mu.RLock()
	v, ok := s.buffers[s.front][id]
	s.mu.RUnlock()
	return v, ok
}

// FrontSnapshot returns a copy of the entire front buffer. Values are plain
// value types, so the copy shares no memory with the live buffers.
func (s *Store[T]) FrontSnapshot() map[ID]T {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[ID]T, len(s.buffers[s.front]))
	for id, v := range s.buffers[s.front] {
		out[id] = v
	}
	return out
}

// FrontEach visits every front-buffer value under the read lock. The visitor
// must not call back into the store.
func (s *Store[T]) FrontEach(visit func(ID, T)) {
	if s == nil || visit == nil {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, v := range s.buffers[s.front] {
		visit(id, v)
	}
}

// BackEach visits every back-buffer value under the read lock.
func (s *Store[T]) BackEach(visit func(ID, T)) {
	if s == nil || visit == nil {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, v := range s.buffers[s.back()] {
		visit(id, v)
	}
}

// Len reports the number of keys in the back buffer.
func (s *Store[T]) Len() int {
	if s == nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.buffers[s.back()])
}

// DirtyCount reports how many keys are pending reconciliation.
func (s *Store[T]) DirtyCount() int {
	if s == nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.dirty)
}

// MarkDirty records that a key changed in the back buffer. Put and Delete
// mark automatically; this exists for callers that mutate through BackEach
// visitors or rebuild values in place.
func (s *Store[T]) MarkDirty(id ID) {
	if s == nil || id == 0 || s.policy == SwapFull {
		return
	}
	s.mu.Lock()
	s.markDirtyLocked(id)
	s.mu.Unlock()
}

func (s *Store[T]) markDirtyLocked(id ID) {
	if s.policy == SwapFull {
		return
	}
	s.dirty[id] = struct{}{}
}

// Swap reconciles the stale buffer with the fresh one and flips which buffer
// is the front. Under SwapDirty only dirty keys are copied (absent keys are
// deleted), so the cost scales with the frame's mutation count, not the
// world size. Returns the number of keys reconciled.
func (s *Store[T]) Swap() int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	back := s.back()
	fresh := s.buffers[back]
	stale := s.buffers[s.front]

	var synced int
	switch s.policy {
	case SwapFull:
		clear(stale)
		for id, v := range fresh {
			stale[id] = v
		}
		synced = len(fresh)
	default:
		for id := range s.dirty {
			if v, ok := fresh[id]; ok {
				stale[id] = v
			} else {
				delete(stale, id)
			}
			synced++
		}
		clear(s.dirty)
	}

	s.front = back
	s.swaps.Add(1)
	return synced
}

// Swaps reports how many swaps have completed since construction.
func (s *Store[T]) Swaps() uint64 {
	if s == nil {
		return 0
	}
	return s.swaps.Load()
}

func (s *Store[T]) back() int {
	return 1 - s.front
}
