// Package ndef replaces the source's inheritance-plus-reflection node
// types (spec.md §9 "Heterogeneous nodes") with a tagged-vtable
// NodeDefinition: a per-definition port list built once at registration,
// a handful of function-pointer hooks (init/destroy/update/message/
// kernel), and a deterministic type-id so definition keys can be
// (set, type-id) pairs without a process-global counter.
package ndef

import (
	"fmt"
	"reflect"

	xxhash "github.com/OneOfOne/xxhash"
)

// TypeID deterministically identifies a registered node type within a
// Set. Computed from the Go type's package path and name, so the same
// node type always yields the same id across runs — grounded on
// rockstar-0000-aistore's use of the same hashing package for
// content-addressed identifiers (SPEC_FULL.md DOMAIN STACK).
type TypeID uint64

// HashType computes the deterministic TypeID for a Go type, used at
// registration time so the set doesn't need a monotonic global counter
// (spec.md §9 "Global traits counter" redesign).
func HashType(t reflect.Type) TypeID {
	h := xxhash.New64()
	_, _ = h.Write([]byte(t.PkgPath()))
	_, _ = h.Write([]byte("#"))
	_, _ = h.Write([]byte(t.Name()))

	return TypeID(h.Sum64())
}

// InitFunc runs once when a node of this definition is created. It may
// publish forwarded ports (spec.md §3 "Lifecycle"). Returning an error
// aborts creation: the destroy path runs without the user hook, and the
// error propagates to the caller (spec.md §9 "Exceptions in init/destroy").
type InitFunc func(ctx InitContext) error

// DestroyFunc runs when a node is explicitly destroyed. It cannot fail;
// spec.md §7 defines throwing from it as undefined behavior that the
// runtime logs and continues past.
type DestroyFunc func(ctx DestroyContext)

// UpdateFunc runs once per frame for every node registered in the
// update list (spec.md §4.7).
type UpdateFunc func(ctx UpdateContext)

// MessageFunc handles an inbound message on a Message-category input
// port (spec.md §4.6).
type MessageFunc func(ctx MessageContext, port uint16, value interface{})

// KernelFunc is the data-phase procedure attached to a node's kernel
// (spec.md §4.4 "Kernel calling convention"). Its concrete signature is
// kernelapi.Func; it is stored here as an opaque interface{} so this
// package does not import kernelapi, and rendergraph type-asserts it to
// kernelapi.Func when dispatching.
type KernelFunc interface{}

// InitContext, DestroyContext, UpdateContext, and MessageContext are
// narrow seams the user layer implements against; this package only
// needs their shape to type the hook signatures above. Concrete
// implementations live in simgraph, which is the only package that
// constructs them; kept free of a handle.NodeHandle dependency here (a
// replacement node is named by its arena index, stable for the
// replacement's lifetime) the same way port.ForwardEntry stays generic
// over its handle type, so this leaf package never needs to import
// anything above it.
type InitContext interface {
	Logf(format string, args ...interface{})
	// Data returns the node's own simulation-side user data, a *T
	// allocated when the node was created (spec.md GLOSSARY "Node...
	// owns user simulation data"). Hooks type-assert it back to *T.
	Data() interface{}
	// PublishForward records that originPort (an output port if isInput
	// is false, else an input port) is really the replacementPort of the
	// node at replacementIndex (spec.md §3 "Forwarding table").
	PublishForward(originPort uint16, isInput bool, replacementIndex uint32, replacementPort uint16)
}
type DestroyContext interface {
	Logf(format string, args ...interface{})
	Data() interface{}
}
type UpdateContext interface {
	Logf(format string, args ...interface{})
	Data() interface{}
	EmitMessage(port uint16, value interface{})
	RegisterForUpdate()
	RemoveFromUpdate()
}
type MessageContext interface {
	Logf(format string, args ...interface{})
	Data() interface{}
	EmitMessage(port uint16, value interface{})
}

// DSLHandler is the narrow seam for DomainSpecific ("DSL") ports: the
// core only records the connection and routes through this interface,
// deferring all protocol semantics to the user layer (spec.md §1).
type DSLHandler interface {
	OnConnect(port uint16, other interface{})
	OnDisconnect(port uint16, other interface{})
}

// PortSpec is the registration-time description of one port, named
// distinctly from port.Description to keep this package's dependency on
// package port limited to the fields a definition actually needs to
// declare; simgraph expands a PortSpec into a port.Description when it
// registers ports with the topology-facing layer.
type PortSpec struct {
	Name        string
	Input       bool
	Category    uint8 // mirrors port.Category; kept numeric to avoid the import
	ElementType string
	Array       bool
	Public      bool
	// BufferByteOffsets and BufferStrides list the embedded buffers of a
	// data-output port, one entry per buffer, empty for
	// every other port (spec.md §3 "Ports"). Kept numeric-free (byte
	// offset/stride only) for the same reason Category is numeric here.
	BufferByteOffsets []uintptr
	BufferStrides     []uintptr
}

// Definition is the tagged-vtable node type: a flat, immutable record
// built once when the user layer registers a type, replacing the
// source's reflection-built "traits handle" (spec.md §9).
type Definition struct {
	TypeID      TypeID
	Name        string
	Ports       []PortSpec
	Init        InitFunc
	Destroy     DestroyFunc
	Update      UpdateFunc
	Message     MessageFunc
	Kernel      KernelFunc
	KernelDataSize uintptr
	KernelDataAlign uintptr
}

// Registry holds every Definition known to one Set, keyed by TypeID.
// Definition keys are (set, type-id) pairs per spec.md §9; the Set
// identity is implicit in "one Registry per Set".
type Registry struct {
	byType map[TypeID]*Definition
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byType: make(map[TypeID]*Definition)}
}

// Register installs def, keyed by def.TypeID. Re-registering the same
// TypeID overwrites the previous definition, matching the teacher's
// idempotent-registration convention elsewhere (e.g. core.AddVertex).
func (r *Registry) Register(def *Definition) {
	r.byType[def.TypeID] = def
}

// Lookup returns the Definition for id, or nil if unregistered.
func (r *Registry) Lookup(id TypeID) *Definition {
	return r.byType[id]
}

// MustLookup is Lookup but panics with a descriptive message on miss; used
// only at call sites that have already validated the handle (and
// therefore the type-id) through an arena, where a miss means the
// registry itself is corrupt.
func (r *Registry) MustLookup(id TypeID) *Definition {
	d := r.byType[id]
	if d == nil {
		panic(fmt.Sprintf("ndef: no definition registered for type-id %x", uint64(id)))
	}

	return d
}
