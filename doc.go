// Package dataflowgraph is a general-purpose dataflow graph runtime: nodes
// with typed input/output ports are wired into an acyclic computation graph
// that is executed every frame.
//
// A simulation phase (simgraph) delivers messages between nodes on the
// scheduling thread and records an ordered diff (diff) of whatever changed.
// A render phase (rendergraph) applies that diff to its own double-buffered
// world, resolves every data-port pointer against a topologically ordered
// traversal cache (traversal, built incrementally from topology), resizes
// buffers, and dispatches kernels under one of four scheduling models
// (kernelapi.RenderExecutionModel) with no data races.
//
// Subpackages, leaves first:
//
//	handle/      — versioned slot arenas and (set, index, version) handles
//	port/        — port descriptions, port-arrays, buffer descriptors, forwarding
//	errtax/      — the Shape/Resource/Graph/Logic error taxonomy
//	ndef/        — node definitions (tagged vtable: init/destroy/update/message/kernel)
//	topology/    — the connectivity store and incremental group tracking
//	traversal/   — the group-partitioned topological traversal cache
//	diff/        — the ordered simulation-to-render mutation log
//	alloc/       — the managed-object pool allocator and the frame-scratch arena
//	kernelapi/   — the kernel calling convention and atomic safety stamping
//	rendergraph/ — the render-side execution engine
//	simgraph/    — node lifecycle, messaging, the update list, and Set.Update
//
// This package itself holds no code; start at simgraph.Set.
package dataflowgraph
