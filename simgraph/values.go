package simgraph

import (
	"github.com/katalvlaran/dataflowgraph/diff"
	"github.com/katalvlaran/dataflowgraph/errtax"
	"github.com/katalvlaran/dataflowgraph/handle"
	"github.com/katalvlaran/dataflowgraph/kernelapi"
	"github.com/katalvlaran/dataflowgraph/port"
	"github.com/katalvlaran/dataflowgraph/topology"
)

// GraphValue is a typed external reader into a data-output port's
// current value, resolved once per frame after its dependency fence is
// injected (spec.md §4.4 step 7, §4.3 GraphValueCreated; elevated to a
// first-class exported type per SPEC_FULL.md's domain-knowledge
// supplement, since spec.md names "swap graph-value readers" without
// otherwise defining the reader).
type GraphValue[T any] struct {
	set    *Set
	vertex topology.VertexID
	port   port.ID
	index  int32
}

// NewGraphValue registers an external reader into h's outputPort. The
// reader has no resolvable value until the next Update call completes.
func NewGraphValue[T any](s *Set, h handle.NodeHandle, outputPort port.ID) (*GraphValue[T], error) {
	_, ps, err := s.lookupPort(h, outputPort, false)
	if err != nil {
		return nil, err
	}
	if port.Category(ps.Category) != port.Data {
		return nil, errtax.Wrapf(errtax.ErrNotADataPort, "simgraph.NewGraphValue: port %d", outputPort)
	}

	gv := &GraphValue[T]{set: s, vertex: vertexOf(h), port: outputPort, index: port.NoIndex}
	s.diffObj.RecordGraphValueCreated(diff.GraphValueCreated{Handle: h, Port: outputPort, Index: port.NoIndex})
	s.graphValueCount++

	return gv, nil
}

// View returns a kernelapi.BufferView over the reader's current bytes,
// stamped with the render graph's frame version so a stale dereference
// after the next sync fails cleanly (spec.md §5 "any buffer view handed
// out by RenderContext carries that version").
func (gv *GraphValue[T]) View() (kernelapi.BufferView, error) {
	raw, _, ok := gv.set.render.ReadGraphValue(gv.vertex, gv.port, gv.index)
	if !ok {
		return kernelapi.BufferView{}, errtax.Wrapf(errtax.ErrInvalidHandle, "simgraph.GraphValue: not yet resolved")
	}

	return kernelapi.NewBufferView(gv.set.render.Safety(), raw), nil
}

// Read decodes the reader's current bytes into T.
func (gv *GraphValue[T]) Read() (T, error) {
	var zero T
	view, err := gv.View()
	if err != nil {
		return zero, err
	}
	raw, err := view.Bytes()
	if err != nil {
		return zero, err
	}

	return decodeValue[T](raw)
}
