package simgraph

import (
	"github.com/katalvlaran/dataflowgraph/diff"
	"github.com/katalvlaran/dataflowgraph/errtax"
	"github.com/katalvlaran/dataflowgraph/handle"
	"github.com/katalvlaran/dataflowgraph/port"
)

// SizeRequest encodes a whole-buffer resize request using the negative-
// size convention of spec.md §6: "size_request is either a whole-T size
// or a nested struct whose buffer fields each carry SizeRequest(n)
// (encoded as negative size)".
func SizeRequest(n int) int { return -(n + 1) }

// DecodeSizeRequest reverses SizeRequest. ok is false for a plain
// non-negative absolute size, which callers should use as-is.
func DecodeSizeRequest(encoded int) (n int, ok bool) {
	if encoded >= 0 {
		return 0, false
	}

	return -encoded - 1, true
}

// SetBufferSize queues a resize of one of outputPort's embedded buffers
// (spec.md §6 "set_buffer_size(handle, output_port, size_request)"),
// applied at the next Update's CopyWorlds. bufferIndex selects the
// buffer by its position in the port's declared BufferByteOffsets; an
// index past the end targets a kernel-private buffer instead (spec.md
// §4.4 "Kernel calling convention": "the kernel may... resize its own
// private buffers").
func (s *Set) SetBufferSize(h handle.NodeHandle, outputPort port.ID, bufferIndex int, elementType string, sizeRequest int) error {
	_, ps, err := s.lookupPort(h, outputPort, false)
	if err != nil {
		return err
	}
	if port.Category(ps.Category) != port.Data {
		return errtax.Wrapf(errtax.ErrNotADataPort, "simgraph.SetBufferSize: port %d", outputPort)
	}

	n := sizeRequest
	if decoded, ok := DecodeSizeRequest(sizeRequest); ok {
		n = decoded
	}

	isKernelPrivate := bufferIndex >= len(ps.BufferByteOffsets)
	offset := port.BufferOffset{IsKernelPrivate: isKernelPrivate}
	byteSize := n
	if isKernelPrivate {
		offset.ByteOffset = uintptr(bufferIndex)
	} else {
		offset.ByteOffset = ps.BufferByteOffsets[bufferIndex]
		offset.ElementStride = ps.BufferStrides[bufferIndex]
		if offset.ElementStride > 0 {
			byteSize = n * int(offset.ElementStride)
		}
	}

	s.diffObj.RecordBufferResized(diff.BufferResized{
		Owner: h, Offset: offset, ElementType: elementType, NewSize: byteSize,
	})

	return nil
}
