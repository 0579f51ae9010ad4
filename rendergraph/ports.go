package rendergraph

import (
	"github.com/katalvlaran/dataflowgraph/diff"
	"github.com/katalvlaran/dataflowgraph/port"
	"github.com/katalvlaran/dataflowgraph/topology"
)

// nodePorts is the per-dispatch kernelapi.KernelPorts view handed to one
// vertex's kernel function: reads and writes go straight through to the
// render graph's port storage maps, scoped to this vertex by closing over
// it.
type nodePorts struct {
	g *Graph
	v topology.VertexID
}

// Input returns the bytes currently patched into a data-input port (or
// port-array element), or the blank page if unconnected — whatever
// patchPorts last resolved for this slot.
func (p *nodePorts) Input(portID uint16, arrayIndex int32) []byte {
	k := portKey{vertex: p.v, port: port.ID(portID), index: arrayIndex}
	if slot := p.g.inputs[k]; slot != nil {
		return slot.bytes
	}

	return p.g.blankPage
}

// Output returns the writable bytes backing a data-output port (or
// port-array element), allocating an empty slot on first access.
func (p *nodePorts) Output(portID uint16, arrayIndex int32) []byte {
	k := portKey{vertex: p.v, port: port.ID(portID), index: arrayIndex}
	slot := p.g.outputs[k]
	if slot == nil {
		slot = &dataSlot{}
		p.g.outputs[k] = slot
	}

	return slot.bytes
}

// ResizeBuffer queues a buffer-resize request a kernel made during this
// frame's execution, applied by replaying it as a BufferResized diff
// record at the start of next frame (spec.md §4.4 "Kernel calling
// convention": "the kernel may... resize its own private buffers by
// asking for a size change in the next frame's diff").
func (p *nodePorts) ResizeBuffer(outputPort uint16, bufferIndex int, newSize int) {
	p.g.kernelResizeRequests = append(p.g.kernelResizeRequests, diff.BufferResized{
		Owner: p.g.nodes[p.v].Handle,
		Offset: port.BufferOffset{
			ByteOffset: uintptr(bufferIndex),
		},
		NewSize: newSize,
	})
}

// DrainKernelResizeRequests returns and clears every buffer-resize
// request queued by kernels during the frame just dispatched; the
// caller (simgraph) folds these into the next frame's diff.
func (g *Graph) DrainKernelResizeRequests() []diff.BufferResized {
	out := g.kernelResizeRequests
	g.kernelResizeRequests = nil

	return out
}
