// Package rendergraph is the render-side execution engine of spec.md
// §4.4–§4.5: its own topology database and traversal cache (kept
// separate from the simulation's, so a half-torn-down simulation graph
// can never corrupt render state mid-frame), a sparse table of kernel
// node instances, and the per-frame CopyWorlds sequence that replays a
// diff, refreshes topology, patches data-input pointers, and dispatches
// kernels under the configured RenderExecutionModel.
package rendergraph

import (
	"github.com/katalvlaran/dataflowgraph/alloc"
	"github.com/katalvlaran/dataflowgraph/diff"
	"github.com/katalvlaran/dataflowgraph/handle"
	"github.com/katalvlaran/dataflowgraph/kernelapi"
	"github.com/katalvlaran/dataflowgraph/ndef"
	"github.com/katalvlaran/dataflowgraph/port"
	"github.com/katalvlaran/dataflowgraph/topology"
	"github.com/katalvlaran/dataflowgraph/traversal"
)

// blankPageSize is large enough to back any single data-input pointer;
// spec.md §4.4 calls for one shared zero-filled page, not a page per
// port, so this just needs to be the largest element type in practice.
const blankPageSize = 4096

// KernelNode is the render-side record for one vertex's kernel instance
// (spec.md §4.4 "a sparse array of KernelNode{instance-pointers,
// traits-handle, validated-handle, last-fence, kernel-data-size}").
type KernelNode struct {
	Handle     handle.NodeHandle // the validated handle this slot currently backs
	Type       ndef.TypeID
	KernelData []byte // the kernel's private state blob
	poolRef    alloc.Ref
	fromPool   *alloc.Pool
	LastFence  uint64 // frame version stamped at last dispatch
}

// ExternalResolver resolves a port reference recorded as "external" (an
// ECS port, spec.md §3) to its current backing bytes. A nil Resolver
// means every external parent patches to the blank page, which is the
// correct behavior in a graph that never registers one (spec.md's
// Non-goals exclude ECS integration beyond this seam).
type ExternalResolver interface {
	Resolve(v topology.VertexID, p port.ID, index int32) ([]byte, bool)
}

// Graph is the render-side world of spec.md §4.4.
type Graph struct {
	db       *topology.Database
	cache    *traversal.Cache
	registry *ndef.Registry
	resolver ExternalResolver

	nodes map[topology.VertexID]*KernelNode
	pools map[ndef.TypeID]*alloc.Pool

	outputs map[portKey]*dataSlot   // data stored at a data-output port/element
	inputs  map[portKey]*dataSlot   // resolved storage for a data-input port/element
	arrays  map[arrayKey]int32      // current port-array size, keyed by (vertex, port)
	buffers map[bufferKey]*dataSlot // embedded buffers inside a data output

	// graphValueFences records, for each registered GraphValue reader, the
	// frame version at which its output became safe to read (spec.md
	// §4.4 step 7 "inject value dependencies").
	graphValueFences map[portKey]uint64

	blankPage []byte
	safety    kernelapi.SafetyManager
	model     kernelapi.RenderExecutionModel
	diffArena *alloc.Arena

	pendingArraySizes  []diff.PortArrayResized
	pendingResizes     []diff.BufferResized
	pendingMessages    []diff.MessageToData
	pendingGraphValues []diff.GraphValueCreated

	kernelResizeRequests []diff.BufferResized

	isRendering bool
	Errors      []error
}

type portKey struct {
	vertex topology.VertexID
	port   port.ID
	index  int32
}

type arrayKey struct {
	vertex topology.VertexID
	port   port.ID
}

type bufferKey struct {
	vertex topology.VertexID
	offset port.BufferOffset
}

// dataSlot is one data-port element's storage and ownership state
// (spec.md §3 "ownership bits").
type dataSlot struct {
	bytes     []byte
	ownership port.Ownership
}

// New constructs an empty render Graph. registry resolves a node's
// Definition (and therefore its kernel function and port layout) by
// TypeID as diff records arrive.
func New(registry *ndef.Registry, model kernelapi.RenderExecutionModel) *Graph {
	db := topology.NewDatabase()

	return &Graph{
		db:               db,
		cache:            traversal.NewCache(db),
		registry:         registry,
		nodes:            make(map[topology.VertexID]*KernelNode),
		pools:            make(map[ndef.TypeID]*alloc.Pool),
		outputs:          make(map[portKey]*dataSlot),
		inputs:           make(map[portKey]*dataSlot),
		arrays:           make(map[arrayKey]int32),
		buffers:          make(map[bufferKey]*dataSlot),
		graphValueFences: make(map[portKey]uint64),
		blankPage:        make([]byte, blankPageSize),
		model:            model,
		diffArena:        alloc.NewArena(0),
	}
}

// SetResolver installs the external/ECS port resolver (spec.md §4.5
// "deferred patch... a follow-up job resolves ECS pointers lazily").
func (g *Graph) SetResolver(r ExternalResolver) { g.resolver = r }

// WithMasks overrides the render graph's traversal/alternate edge masks,
// e.g. to match non-default masks configured on the simulation side.
func (g *Graph) WithMasks(traversalMask, alternateMask topology.EdgeKind) *Graph {
	g.cache.WithMasks(traversalMask, alternateMask)

	return g
}

// IsRendering reports whether a CopyWorlds call is still outstanding.
func (g *Graph) IsRendering() bool { return g.isRendering }

// CopyWorlds runs one frame of the render-side sequence (spec.md §4.4):
// sync, align world from diff, refresh topology, patch data-input
// pointers, dispatch kernels under g's configured model, and inject
// value dependencies. externalDeps are fences that must complete before
// any kernel in this frame may run (e.g. a prior frame's outstanding
// work under a job system the caller layers on top).
func (g *Graph) CopyWorlds(d *diff.Diff, externalDeps ...func() error) error {
	g.sync()

	g.alignWorld(d)

	g.cache.Refresh()
	if len(g.cache.Errors) > 0 {
		g.Errors = append(g.Errors, g.cache.Errors...)
	}

	changed := g.changedVertices()

	if err := g.resizeBuffers(d); err != nil {
		return err
	}
	if err := g.applyInputUpdates(d); err != nil {
		return err
	}

	if err := g.patchPorts(changed); err != nil {
		return err
	}

	if err := g.dispatch(externalDeps); err != nil {
		return err
	}

	g.injectValueDependencies(d)

	g.safety.Bump()
	g.isRendering = true

	return nil
}

// sync waits for the previous frame (no-op here: dispatch already
// blocks until its errgroup completes, so by the time CopyWorlds is
// called again every fence from the prior frame is already resolved)
// and bumps the temporary-handle version per spec.md §4.4 step 1.
func (g *Graph) sync() {
	g.safety.Bump()
	g.Errors = g.Errors[:0]
}

// SyncAnyRendering joins all outstanding fences, bumps the temporary
// handle version, clears error queues, and marks rendering false
// (spec.md §4.4). Since this engine's dispatch is synchronous-return
// (errgroup.Wait completes before CopyWorlds returns), there is nothing
// outstanding to join. Dispose calls it; CopyWorlds's own sync step does
// the same bump and error reset without clearing the rendering flag.
func (g *Graph) SyncAnyRendering() {
	g.safety.Bump()
	g.Errors = g.Errors[:0]
	g.isRendering = false
}

// changedVertices collects every vertex whose group was newly created or
// rebuilt this refresh (spec.md §4.4 step 4 "Analyse live nodes").
func (g *Graph) changedVertices() []topology.VertexID {
	var out []topology.VertexID
	seen := make(map[topology.GroupID]bool)
	for id := range g.cache.Refreshed {
		seen[id] = true
	}
	for v := range g.nodes {
		if seen[g.db.GroupOf(v)] {
			out = append(out, v)
		}
	}

	return out
}

// Dispose releases every kernel instance back to its pool and reports
// leaks the way alloc.Pool.Dispose does, per spec.md §7's "one line per
// leaked internal table entry".
func (g *Graph) Dispose(logf func(format string, args ...interface{})) {
	g.SyncAnyRendering()
	for _, p := range g.pools {
		p.Dispose(logf)
	}
	if n := len(g.nodes); n > 0 && logf != nil {
		logf("rendergraph: disposed with %d kernel node(s) still allocated", n)
	}
	g.nodes = make(map[topology.VertexID]*KernelNode)
}
