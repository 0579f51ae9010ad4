// Package handle defines the versioned-slot handle shared by every other
// package in this module: NodeHandle is a (set, index, version) triple,
// and Arena is the generic versioned slot array that hands them out.
//
// A handle is only ever trusted after Arena.Validate confirms its version
// still matches the slot's current occupant; destruction bumps the slot's
// version so stale copies of an old handle compare unequal forever after.
package handle

import "errors"

// ErrInvalidHandle is returned by Arena.Validate when a handle's index is
// out of range, or its version does not match the slot's live occupant.
var ErrInvalidHandle = errors.New("handle: invalid or stale handle")

// NodeHandle identifies a node within a particular Set. Zero value is the
// reserved "invalid" sentinel (Version == 0 never occurs for a live slot).
type NodeHandle struct {
	Set     uint32 // owning Set identifier
	Index   uint32 // slot index within the Set's arena
	Version uint32 // must match the slot's current version to be valid
}

// IsZero reports whether h is the invalid sentinel handle.
func (h NodeHandle) IsZero() bool {
	return h == NodeHandle{}
}

// slot holds one arena entry: the live value (zero value when free) and
// the version a handle must present to be considered valid. version
// starts at 1 on first occupancy; generation 0 is reserved for "slot
// never allocated yet" so the zero handle never validates.
type slot[T any] struct {
	value   T
	version uint32
	free    bool
}

// Arena is a versioned slot array. Index 0 is reserved and never handed
// out, matching the topology/connection convention elsewhere in this
// module where "index zero" doubles as the invalid sentinel.
type Arena[T any] struct {
	setID    uint32
	slots    []slot[T]
	freeList []uint32
}

// NewArena constructs an empty Arena tagged with setID, which is stamped
// into every handle this arena issues.
func NewArena[T any](setID uint32) *Arena[T] {
	a := &Arena[T]{setID: setID}
	// slot 0 is the permanent sentinel; never allocated, never freed.
	a.slots = append(a.slots, slot[T]{})

	return a
}

// Alloc reserves a slot, stores value, and returns its handle.
func (a *Arena[T]) Alloc(value T) NodeHandle {
	var idx uint32
	if n := len(a.freeList); n > 0 {
		idx = a.freeList[n-1]
		a.freeList = a.freeList[:n-1]
		a.slots[idx].value = value
		a.slots[idx].free = false
	} else {
		idx = uint32(len(a.slots))
		a.slots = append(a.slots, slot[T]{value: value, version: 1})
	}

	return NodeHandle{Set: a.setID, Index: idx, Version: a.slots[idx].version}
}

// Validate reports whether h currently refers to a live slot in a.
func (a *Arena[T]) Validate(h NodeHandle) bool {
	if h.Set != a.setID || h.Index == 0 || int(h.Index) >= len(a.slots) {
		return false
	}
	s := &a.slots[h.Index]

	return !s.free && s.version == h.Version
}

// Get returns the value behind h and true, or the zero value and false if
// h does not validate.
func (a *Arena[T]) Get(h NodeHandle) (T, bool) {
	if !a.Validate(h) {
		var zero T
		return zero, false
	}

	return a.slots[h.Index].value, true
}

// Set overwrites the value behind an already-validated handle. Callers
// must check Validate first; Set is a no-op on an invalid handle.
func (a *Arena[T]) Set(h NodeHandle, value T) {
	if !a.Validate(h) {
		return
	}
	a.slots[h.Index].value = value
}

// Free releases the slot behind h, bumping its version so outstanding
// copies of h never validate again. Freeing an already-invalid handle is
// a no-op, matching the teacher's idempotent-removal convention.
func (a *Arena[T]) Free(h NodeHandle) {
	if !a.Validate(h) {
		return
	}
	var zero T
	a.slots[h.Index].value = zero
	a.slots[h.Index].free = true
	a.slots[h.Index].version++
	a.freeList = append(a.freeList, h.Index)
}

// Len reports the number of slots ever allocated, including freed ones;
// used by leak-accounting code that needs an upper bound for iteration.
func (a *Arena[T]) Len() int {
	return len(a.slots)
}

// InUse reports the number of live (non-free) slots, excluding sentinel
// slot 0. Used for leak reports at Set disposal (spec.md §7, §8 scenario 6).
func (a *Arena[T]) InUse() int {
	n := 0
	for i := 1; i < len(a.slots); i++ {
		if !a.slots[i].free {
			n++
		}
	}

	return n
}

// HandleAt reconstructs the current live handle for a slot index. Used by
// callers that only have the bare index (e.g. a topology.VertexID, which
// is defined as a handle's Index) and need the full versioned handle back
// to validate or dereference it.
func (a *Arena[T]) HandleAt(index uint32) (NodeHandle, bool) {
	if index == 0 || int(index) >= len(a.slots) {
		return NodeHandle{}, false
	}
	s := &a.slots[index]
	if s.free {
		return NodeHandle{}, false
	}

	return NodeHandle{Set: a.setID, Index: index, Version: s.version}, true
}

// Range calls fn for every live slot's handle and value, in index order.
// fn returning false stops iteration early.
func (a *Arena[T]) Range(fn func(h NodeHandle, value T) bool) {
	for i := 1; i < len(a.slots); i++ {
		s := &a.slots[i]
		if s.free {
			continue
		}
		h := NodeHandle{Set: a.setID, Index: uint32(i), Version: s.version}
		if !fn(h, s.value) {
			return
		}
	}
}
