package simgraph

import (
	"fmt"

	"github.com/katalvlaran/dataflowgraph/diff"
	"github.com/katalvlaran/dataflowgraph/errtax"
	"github.com/katalvlaran/dataflowgraph/handle"
	"github.com/katalvlaran/dataflowgraph/kernelapi"
	"github.com/katalvlaran/dataflowgraph/ndef"
	"github.com/katalvlaran/dataflowgraph/port"
	"github.com/katalvlaran/dataflowgraph/rendergraph"
	"github.com/katalvlaran/dataflowgraph/topology"
)

// nodeRecord is the simulation-side record for one live node: its
// definition, and the forwarding/array-size tables spec.md §3 keeps
// per-node ("Forwarding table", "Port arrays").
type nodeRecord struct {
	def  *ndef.Definition
	data interface{} // *T allocated at Create[T], the node's own simulation data

	forwardIn  port.ForwardTable[uint32]
	forwardOut port.ForwardTable[uint32]
	arrayIn    port.ArraySizeList
	arrayOut   port.ArraySizeList
}

// Set is the simulation-side world of spec.md §6: the facade tying node
// lifecycle, topology, messaging, the update list, and the render graph
// together behind one frame driver, Update.
type Set struct {
	id uint32

	registry  *ndef.Registry
	nodeArena *handle.Arena[*nodeRecord]
	topo      *topology.Database
	render    *rendergraph.Graph

	diffObj *diff.Diff
	updates *updateManager

	graphValueCount int

	logf func(format string, args ...interface{})
}

// NewSet constructs an empty Set. setID is stamped into every handle
// this set issues (handle.NodeHandle.Set), the way handle.Arena already
// does for its own slots; model selects the render graph's kernel
// dispatch strategy (spec.md §6 "execution_model... default is
// MaximallyParallel").
func NewSet(setID uint32, model kernelapi.RenderExecutionModel) *Set {
	registry := ndef.NewRegistry()

	return &Set{
		id:        setID,
		registry:  registry,
		nodeArena: handle.NewArena[*nodeRecord](setID),
		topo:      topology.NewDatabase(),
		render:    rendergraph.New(registry, model),
		diffObj:   diff.New(),
		updates:   newUpdateManager(),
		logf:      func(format string, args ...interface{}) { fmt.Printf(format+"\n", args...) },
	}
}

// SetLogf installs a custom logger, replacing the default fmt.Printf
// sink. Passing nil silences logging entirely.
func (s *Set) SetLogf(logf func(format string, args ...interface{})) {
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	s.logf = logf
}

// SetResolver installs the render graph's external ("ECS") port
// resolver (spec.md §4.1 "connect(resolver, ...)").
func (s *Set) SetResolver(r rendergraph.ExternalResolver) { s.render.SetResolver(r) }

// WithMasks overrides the render graph's traversal/alternate edge masks.
func (s *Set) WithMasks(traversalMask, alternateMask topology.EdgeKind) *Set {
	s.render.WithMasks(traversalMask, alternateMask)

	return s
}

// vertexOf maps a node handle to this set's topology.VertexID space,
// mirroring rendergraph.vertexOf: both sides key off the handle's arena
// index, never share a Database instance (spec.md §4.4).
func vertexOf(h handle.NodeHandle) topology.VertexID { return topology.VertexID(h.Index) }

// lookupPort resolves p on h's definition and checks its direction,
// returning errtax.ErrInvalidHandle / errtax.ErrInvalidPort on any
// failure shared by every port-facing API below.
func (s *Set) lookupPort(h handle.NodeHandle, p port.ID, wantInput bool) (*ndef.Definition, ndef.PortSpec, error) {
	if !s.nodeArena.Validate(h) {
		return nil, ndef.PortSpec{}, errtax.Wrapf(errtax.ErrInvalidHandle, "simgraph: handle %+v", h)
	}
	rec, _ := s.nodeArena.Get(h)
	idx := int(p.Index())
	if idx >= len(rec.def.Ports) {
		return nil, ndef.PortSpec{}, errtax.Wrapf(errtax.ErrInvalidPort, "simgraph: port %d on %q", p, rec.def.Name)
	}
	ps := rec.def.Ports[idx]
	if ps.Input != wantInput {
		return nil, ndef.PortSpec{}, errtax.Wrapf(errtax.ErrInvalidPort, "simgraph: port %d direction mismatch on %q", p, rec.def.Name)
	}

	return rec.def, ps, nil
}

// hasDataInput reports whether dstRef already carries any connection at
// all, used to enforce "at most one incoming connection on a data input"
// (spec.md §8's testable property on count_established_connections
// applies the same structural uniqueness).
func (s *Set) hasDataInput(dst handle.NodeHandle, dstRef port.InputPortArrayID) bool {
	v := vertexOf(dst)
	for _, c := range s.topo.InputConnections(v) {
		if c.DestPort == dstRef {
			return true
		}
	}

	return false
}

// ReadDataInput returns the bytes currently patched or retained into a
// data-input port (or port-array element), the same view a kernel's
// kernelapi.KernelPorts.Input would see, for external callers (e.g. test
// harnesses) that need to inspect a node's current input without writing
// a kernel to surface it.
func (s *Set) ReadDataInput(h handle.NodeHandle, p port.ID, idx int32) ([]byte, bool) {
	if !s.nodeArena.Validate(h) {
		return nil, false
	}

	return s.render.ReadInputValue(vertexOf(h), p, idx)
}

// LeakReport summarizes table entries still present at disposal
// (spec.md §7, §8 scenario 6).
type LeakReport struct {
	Nodes            int
	GraphValues      int
	Connections      int
	ForwardEntries   int
	ArraySizeEntries int
}

// String renders the scenario-6 log line: "%d leaked node(s) and %d
// leaked graph value(s)".
func (r LeakReport) String() string {
	return fmt.Sprintf("%d leaked node(s) and %d leaked graph value(s)", r.Nodes, r.GraphValues)
}

// Dispose tears the set down: disposes the render graph's kernel pools
// (joining any outstanding fences) and reports every table entry still
// present, logging one line per leaked category (spec.md §7 "one line
// per leaked node or graph value and one line per leaked internal table
// entry"). Counts are still reported even when zero, matching spec.md
// §8 scenario 6's example log line. Afterwards the node, topology,
// update and graph-value tables are empty.
func (s *Set) Dispose() LeakReport {
	report := LeakReport{
		Nodes:       s.nodeArena.InUse(),
		Connections: s.topo.CountEstablishedConnections(),
		GraphValues: s.graphValueCount,
	}
	s.nodeArena.Range(func(_ handle.NodeHandle, rec *nodeRecord) bool {
		report.ForwardEntries += rec.forwardIn.Len() + rec.forwardOut.Len()
		report.ArraySizeEntries += rec.arrayIn.Len() + rec.arrayOut.Len()

		return true
	})

	s.render.Dispose(s.logf)

	s.logf("simgraph: %s", report.String())
	if report.Connections > 0 {
		s.logf("simgraph: %d leaked connection(s)", report.Connections)
	}
	if report.ForwardEntries > 0 {
		s.logf("simgraph: %d leaked forwarding table entry(ies)", report.ForwardEntries)
	}
	if report.ArraySizeEntries > 0 {
		s.logf("simgraph: %d leaked port-array size entry(ies)", report.ArraySizeEntries)
	}

	s.nodeArena = handle.NewArena[*nodeRecord](s.id)
	s.topo = topology.NewDatabase()
	s.diffObj = diff.New()
	s.updates = newUpdateManager()
	s.graphValueCount = 0

	return report
}
