// Package simgraph is the simulation core of spec.md §3 and §6: node
// lifecycle, connection validation, synchronous messaging, the
// update-list manager, and the frame driver that turns one tick of
// simulation-side mutation into a diff.Diff and hands it to a
// rendergraph.Graph.
//
// Set owns the simulation-side topology.Database (kept entirely
// separate from the render graph's own copy, per spec.md §4.4) plus a
// handle.Arena of node records keyed by the same index space the render
// graph uses for its own topology.VertexID. Node type identity and port
// layout are described once per type by an ndef.Definition, registered
// with RegisterDefinition before any Create call for that type.
package simgraph
