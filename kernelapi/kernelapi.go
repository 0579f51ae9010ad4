// Package kernelapi defines the render-side kernel calling convention
// (spec.md §4.4 "Kernel calling convention"): the RenderExecutionModel a
// render graph is configured with, the RenderContext every kernel
// receives, and the atomic safety stamping that keeps a buffer view
// handed out during one frame from being dereferenced after that frame
// has moved on.
package kernelapi

import (
	"fmt"
	"sync/atomic"
)

// RenderExecutionModel selects how kernels are dispatched per frame
// (spec.md §4.4 step 6). Default, per spec.md §6, is MaximallyParallel.
type RenderExecutionModel uint8

const (
	// Synchronous runs every kernel inline on the calling goroutine, in
	// group/vertex order, after completing external dependencies.
	Synchronous RenderExecutionModel = iota
	// SingleThreaded schedules one job for the whole frame, still
	// visiting vertices in the same order as Synchronous.
	SingleThreaded
	// Islands schedules one concurrent task per traversal group.
	Islands
	// MaximallyParallel schedules one concurrent task per vertex, each
	// fenced on its parents' tasks (or external deps if it has none).
	MaximallyParallel
)

// String renders a RenderExecutionModel for logs and config validation
// errors.
func (m RenderExecutionModel) String() string {
	switch m {
	case Synchronous:
		return "Synchronous"
	case SingleThreaded:
		return "SingleThreaded"
	case Islands:
		return "Islands"
	case MaximallyParallel:
		return "MaximallyParallel"
	default:
		return fmt.Sprintf("RenderExecutionModel(%d)", uint8(m))
	}
}

// SafetyManager stamps a monotonically increasing frame version on every
// sync, so a BufferView handed out to a kernel during frame N fails once
// sync has moved the world to frame N+1 (spec.md §4.4: "an atomic safety
// manager that stamps a monotonically increasing temporary handle
// version per frame so borrows handed out by kernels cannot outlive the
// frame"). Safe for concurrent use: Bump/Current are used across the
// parallel kernel tasks of a single CopyWorlds call.
type SafetyManager struct {
	version atomic.Uint64
}

// Bump advances the frame version and returns the new value. Called at
// the start of Sync and at Dispose (spec.md §4.4 step 1 and
// "sync_any_rendering... bumps the temporary handle version").
func (s *SafetyManager) Bump() uint64 {
	return s.version.Add(1)
}

// Current returns the frame version current views should be stamped
// with.
func (s *SafetyManager) Current() uint64 {
	return s.version.Load()
}

// BufferView is a borrowed view into a data buffer, valid only for the
// frame version it was stamped with.
type BufferView struct {
	data    []byte
	version uint64
	safety  *SafetyManager
}

// NewBufferView stamps data with safety's current frame version.
func NewBufferView(safety *SafetyManager, data []byte) BufferView {
	return BufferView{data: data, version: safety.Current(), safety: safety}
}

// Bytes returns the underlying bytes, or an error if safety's frame
// version has advanced past the version this view was stamped with.
func (v BufferView) Bytes() ([]byte, error) {
	if v.safety == nil {
		return nil, fmt.Errorf("kernelapi: nil buffer view")
	}
	if v.safety.Current() != v.version {
		return nil, fmt.Errorf("kernelapi: buffer view stale: stamped at frame %d, current frame %d", v.version, v.safety.Current())
	}

	return v.data, nil
}

// KernelPorts is the narrow, render-side view of one kernel node's input
// and output port storage, indexed by the port.ID the node's Definition
// declared. Concrete storage lives in rendergraph; this interface is
// the seam kernel functions are written against so package kernelapi
// does not need to import rendergraph (avoiding a cycle: rendergraph
// depends on kernelapi for the calling convention, not the reverse).
type KernelPorts interface {
	// Input returns the raw bytes currently patched into a data input
	// port (or one element of a port-array input), or the blank page if
	// unconnected.
	Input(port uint16, arrayIndex int32) []byte
	// Output returns the writable bytes backing a data output port (or
	// one element of a port-array output).
	Output(port uint16, arrayIndex int32) []byte
	// ResizeBuffer requests a resize of a buffer embedded in a data
	// output, applied at the start of next frame's diff replay (spec.md
	// §4.4: "the kernel may... resize its own private buffers by asking
	// for a size change in the next frame's diff").
	ResizeBuffer(outputPort uint16, bufferIndex int, newSize int)
}

// RenderContext is what every kernel function receives (spec.md §4.4
// "Kernel calling convention"): atomic-safety stamping for any buffer
// view it hands out, plus the kernel's own data blob and ports.
type RenderContext struct {
	Safety *SafetyManager
	Ports  KernelPorts
	// KernelData is the kernel's private state blob, sized and aligned
	// per its Definition (ndef.Definition.KernelDataSize/Align).
	KernelData []byte
}

// View wraps a byte slice as a BufferView stamped with this context's
// current frame version, for a kernel that wants to hand a borrowed
// slice to code outside the render graph (e.g. a graph-value reader).
func (c *RenderContext) View(data []byte) BufferView {
	return NewBufferView(c.Safety, data)
}

// Func is the concrete kernel function signature completing
// ndef.KernelFunc: the data-phase procedure every node with a kernel
// runs once per frame under the node's group/vertex ordering.
type Func func(ctx *RenderContext)
