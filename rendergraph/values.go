package rendergraph

import (
	"github.com/katalvlaran/dataflowgraph/diff"
	"github.com/katalvlaran/dataflowgraph/kernelapi"
	"github.com/katalvlaran/dataflowgraph/port"
	"github.com/katalvlaran/dataflowgraph/topology"
)

// injectValueDependencies implements spec.md §4.4 step 7: for each
// external reader registered into a data-output port this frame, record
// the fence (here, the frame version every kernel in this dispatch ran
// under) that makes that output's memory valid to consume. Because this
// engine's dispatch step fully completes (every errgroup is waited on)
// before this runs, the fence is simply "the current frame version" —
// every kernel that could have written this output already has.
func (g *Graph) injectValueDependencies(d *diff.Diff) {
	fence := g.safety.Current()
	for _, r := range g.pendingGraphValues {
		v := vertexOf(r.Handle)
		g.graphValueFences[portKey{vertex: v, port: r.Port, index: r.Index}] = fence
	}
	g.pendingGraphValues = g.pendingGraphValues[:0]
}

// ReadGraphValue returns the current bytes backing a registered
// graph-value reader, the frame version they became valid at, and
// whether the reader has been resolved at all (false before its first
// CopyWorlds after registration).
func (g *Graph) ReadGraphValue(v topology.VertexID, p port.ID, idx int32) ([]byte, uint64, bool) {
	k := portKey{vertex: v, port: p, index: idx}
	fence, ok := g.graphValueFences[k]
	if !ok {
		return nil, 0, false
	}
	slot := g.outputs[k]
	if slot == nil {
		return nil, fence, false
	}

	return slot.bytes, fence, true
}

// CurrentFrameVersion exposes the render graph's safety-manager frame
// version, for callers (simgraph.GraphValue) that need to detect a stale
// view without going through ReadGraphValue.
func (g *Graph) CurrentFrameVersion() uint64 { return g.safety.Current() }

// Safety exposes the render graph's atomic safety manager, for callers
// that stamp their own kernelapi.BufferView over bytes read through
// ReadGraphValue or ReadInputValue (spec.md §5 "any buffer view handed
// out by RenderContext carries that version").
func (g *Graph) Safety() *kernelapi.SafetyManager { return &g.safety }

// ReadInputValue returns the bytes currently patched into a data-input
// port (or port-array element), the same view a kernel's
// kernelapi.KernelPorts.Input would see, for callers outside a kernel
// dispatch (spec.md §6 "disconnect_and_retain_value" needs to read the
// value about to be retained before the disconnect takes effect).
func (g *Graph) ReadInputValue(v topology.VertexID, p port.ID, idx int32) ([]byte, bool) {
	slot := g.inputs[portKey{vertex: v, port: p, index: idx}]
	if slot == nil {
		return nil, false
	}

	return slot.bytes, true
}
