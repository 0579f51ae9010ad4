package simgraph

import (
	"fmt"
	"reflect"

	"github.com/katalvlaran/dataflowgraph/diff"
	"github.com/katalvlaran/dataflowgraph/errtax"
	"github.com/katalvlaran/dataflowgraph/handle"
	"github.com/katalvlaran/dataflowgraph/ndef"
)

// typeIDFor computes the deterministic TypeID a Go type T registers and
// creates under (spec.md §9 "Global traits counter" redesign).
func typeIDFor[T any]() ndef.TypeID {
	return ndef.HashType(reflect.TypeOf((*T)(nil)).Elem())
}

// RegisterDefinition installs def under the TypeID computed for T,
// overwriting def.TypeID (spec.md §6 "get_definition<T>()" presumes one
// definition per Go type, so the id is derived rather than caller-set).
func RegisterDefinition[T any](s *Set, def *ndef.Definition) {
	def.TypeID = typeIDFor[T]()
	s.registry.Register(def)
}

// GetDefinition returns the Definition registered for T, or nil if none
// was registered (spec.md §6 "get_definition<T>()").
func GetDefinition[T any](s *Set) *ndef.Definition {
	return s.registry.Lookup(typeIDFor[T]())
}

// GetDefinitionOf returns the Definition backing a live handle, or nil
// if h does not validate (spec.md §6 "get_definition(handle)").
func GetDefinitionOf(s *Set, h handle.NodeHandle) *ndef.Definition {
	rec, ok := s.nodeArena.Get(h)
	if !ok {
		return nil
	}

	return rec.def
}

// Is reports whether h names a live node of type T (spec.md §6
// "is<T>(handle)").
func Is[T any](s *Set, h handle.NodeHandle) bool {
	rec, ok := s.nodeArena.Get(h)
	if !ok {
		return false
	}

	return rec.def.TypeID == typeIDFor[T]()
}

// GetData returns h's own simulation-side data as *T, or ok=false if h
// does not validate or was not created as a T (spec.md GLOSSARY "Node...
// owns user simulation data"; exposed for callers outside any hook —
// hooks themselves reach the same value through ctx.Data()).
func GetData[T any](s *Set, h handle.NodeHandle) (*T, bool) {
	rec, ok := s.nodeArena.Get(h)
	if !ok || rec.def.TypeID != typeIDFor[T]() {
		return nil, false
	}
	data, ok := rec.data.(*T)

	return data, ok
}

// Cast validates h is both live and of type T, returning it unchanged on
// success (spec.md §6 "cast<T>(handle)"). There is no Go value to
// reinterpret the handle as — a node's user data lives entirely behind
// its hooks — so Cast is Is plus the zero-handle-on-failure convention
// the rest of this package uses.
func Cast[T any](s *Set, h handle.NodeHandle) (handle.NodeHandle, bool) {
	if Is[T](s, h) {
		return h, true
	}

	return handle.NodeHandle{}, false
}

// Create allocates a node of type T, runs its InitFunc (if any), and
// records a NodeCreated diff entry (spec.md §6 "create<T>() → typed
// handle", §3 "Lifecycle").
func Create[T any](s *Set) (handle.NodeHandle, error) {
	id := typeIDFor[T]()
	def := s.registry.Lookup(id)
	if def == nil {
		return handle.NodeHandle{}, fmt.Errorf("simgraph.Create: no definition registered for type %T", *new(T))
	}

	return s.createNode(def, any(new(T)))
}

func (s *Set) createNode(def *ndef.Definition, data interface{}) (handle.NodeHandle, error) {
	rec := &nodeRecord{def: def, data: data}
	h := s.nodeArena.Alloc(rec)
	v := vertexOf(h)
	s.topo.VertexCreated(v)

	if def.Init != nil {
		ctx := &initContext{set: s, self: h}
		if err := def.Init(ctx); err != nil {
			// init failed: the node is destroyed without its user destroy
			// hook (spec.md §9 "Exceptions in init/destroy").
			s.topo.DisconnectAll(v)
			s.topo.VertexDeleted(v)
			s.nodeArena.Free(h)

			return handle.NodeHandle{}, err
		}
	}

	s.diffObj.RecordNodeCreated(diff.NodeCreated{Handle: h, Type: def.TypeID})

	return h, nil
}

// Exists reports whether h still names a live node (spec.md §6
// "exists(handle) → bool").
func (s *Set) Exists(h handle.NodeHandle) bool {
	return s.nodeArena.Validate(h)
}

// Destroy tears h down: runs its DestroyFunc (logging, not propagating,
// a panic — spec.md §7 "throwing from a user-provided destructor...
// the runtime logs it and continues destruction"), removes any update-
// list registration, disconnects every edge, and records a NodeDeleted
// diff entry.
func (s *Set) Destroy(h handle.NodeHandle) error {
	if !s.nodeArena.Validate(h) {
		return errtax.Wrapf(errtax.ErrInvalidHandle, "simgraph.Destroy")
	}
	rec, _ := s.nodeArena.Get(h)
	v := vertexOf(h)

	s.updates.forget(h.Index)

	if rec.def.Destroy != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.logf("simgraph: destroy hook for node %+v panicked: %v (continuing)", h, r)
				}
			}()
			rec.def.Destroy(&destroyContext{set: s, self: h})
		}()
	}

	s.topo.DisconnectAll(v)
	s.topo.VertexDeleted(v)
	s.nodeArena.Free(h)

	s.diffObj.RecordNodeDeleted(diff.NodeDeleted{Handle: h})

	return nil
}
