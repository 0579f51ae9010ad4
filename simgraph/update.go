package simgraph

import (
	"sort"

	"github.com/katalvlaran/dataflowgraph/errtax"
	"github.com/katalvlaran/dataflowgraph/handle"
)

// updateState is one node's phase in the update-list manager's
// register/unregister state machine (spec.md §4.7).
type updateState uint8

const (
	usInvalid updateState = iota
	usPending
	usActive
	usPendingRemove
)

// updateManager tracks, per node arena index, whether that node's
// UpdateFunc is queued to run, currently runs, or is queued to stop
// running (spec.md §4.7 "Commands are queued... and drained at the end
// of a frame").
type updateManager struct {
	state map[uint32]updateState
}

func newUpdateManager() *updateManager {
	return &updateManager{state: make(map[uint32]updateState)}
}

// register queues idx to join the active set at the next drain. Fails
// if idx is already registered in any phase (spec.md §4.7 "Register of
// an already-registered node fails").
func (u *updateManager) register(idx uint32) error {
	if u.state[idx] != usInvalid {
		return errtax.Wrapf(errtax.ErrAlreadyRegisteredForUpdate, "simgraph: node index %d", idx)
	}
	u.state[idx] = usPending

	return nil
}

// unregister queues idx to leave the active set at the next drain, or
// drops a still-Pending registration outright so a same-frame
// register-then-unregister produces no net effect. Fails if idx is not
// currently registered (spec.md §4.7 "unregister of a non-registered
// node fails").
func (u *updateManager) unregister(idx uint32) error {
	switch u.state[idx] {
	case usActive:
		u.state[idx] = usPendingRemove
	case usPending:
		delete(u.state, idx)
	default:
		return errtax.Wrapf(errtax.ErrNotRegisteredForUpdate, "simgraph: node index %d", idx)
	}

	return nil
}

// forget silently drops idx's registration in any phase (spec.md §4.7
// "Destroying a node silently removes any pending or applied
// registration").
func (u *updateManager) forget(idx uint32) {
	delete(u.state, idx)
}

// active returns every node index whose UpdateFunc should run this
// frame, in ascending index order for deterministic iteration (spec.md
// §4.7 "iterate the free-list's used slots"). A node queued for removal
// this frame still runs once more; drain retires it afterward.
func (u *updateManager) active() []uint32 {
	out := make([]uint32, 0, len(u.state))
	for idx, st := range u.state {
		if st == usActive || st == usPendingRemove {
			out = append(out, idx)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out
}

// drain applies this frame's queued transitions: Pending becomes Active,
// PendingRemove is retired to Invalid (spec.md §4.7, run "at the end of
// a frame").
func (u *updateManager) drain() {
	for idx, st := range u.state {
		switch st {
		case usPending:
			u.state[idx] = usActive
		case usPendingRemove:
			delete(u.state, idx)
		}
	}
}

// RegisterForUpdate queues h to join the update list (spec.md §6
// "register_for_update(handle) ... via the appropriate context"; exposed
// directly on Set too, for callers driving a node from outside its own
// hooks).
func (s *Set) RegisterForUpdate(h handle.NodeHandle) error {
	if !s.nodeArena.Validate(h) {
		return errtax.Wrapf(errtax.ErrInvalidHandle, "simgraph.RegisterForUpdate")
	}

	return s.updates.register(h.Index)
}

// RemoveFromUpdate queues h to leave the update list (spec.md §6
// "remove_from_update(handle)").
func (s *Set) RemoveFromUpdate(h handle.NodeHandle) error {
	if !s.nodeArena.Validate(h) {
		return errtax.Wrapf(errtax.ErrInvalidHandle, "simgraph.RemoveFromUpdate")
	}

	return s.updates.unregister(h.Index)
}

// Update runs one simulation frame (spec.md §6 "update() runs the
// simulation, builds the diff, calls render_graph.copy_worlds, swaps
// graph-value readers, drains the update-request queue"): invoke every
// active node's UpdateFunc, drain buffer-resize requests queued by last
// frame's kernels into this frame's diff, replay the diff into the
// render graph, then drain the update-list manager's transitions.
func (s *Set) Update() error {
	for _, r := range s.render.DrainKernelResizeRequests() {
		s.diffObj.RecordBufferResized(r)
	}

	for _, idx := range s.updates.active() {
		h, ok := s.nodeArena.HandleAt(idx)
		if !ok {
			continue // node destroyed since registering; skip the stale slot.
		}
		rec, ok := s.nodeArena.Get(h)
		if !ok || rec.def.Update == nil {
			continue
		}
		rec.def.Update(&updateContext{set: s, self: h})
	}

	if err := s.render.CopyWorlds(s.diffObj); err != nil {
		return err
	}
	s.diffObj.Reset()

	s.updates.drain()

	return nil
}
