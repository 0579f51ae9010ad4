package rendergraph

import (
	"github.com/katalvlaran/dataflowgraph/errtax"
	"github.com/katalvlaran/dataflowgraph/port"
	"github.com/katalvlaran/dataflowgraph/topology"
	"github.com/katalvlaran/dataflowgraph/traversal"
)

// patchPorts implements spec.md §4.5 for every vertex whose group changed
// this frame: for each data-input port (or port-array element) it looks
// up the single parent on the alternate hierarchy and patches the
// input's storage slot to point at that parent's output value, or the
// blank page if there is none. Port ID i for definition def is
// port.NewID(uint16(i)), the position of the PortSpec within def.Ports —
// the convention simgraph uses when it registers a node's ports with the
// topology database, so the index used here to recover a port.ID from a
// PortSpec always agrees with what Connect was called with.
func (g *Graph) patchPorts(changed []topology.VertexID) error {
	for _, v := range changed {
		kn := g.nodes[v]
		if kn == nil {
			continue
		}
		def := g.registry.Lookup(kn.Type)
		if def == nil {
			continue
		}
		grp := g.cache.GroupOf(v)

		for i, ps := range def.Ports {
			if !ps.Input || ps.Category != uint8(port.Data) {
				continue
			}
			pid := port.NewID(uint16(i))
			if ps.Array {
				size := g.arrays[arrayKey{vertex: v, port: pid}]
				for idx := int32(0); idx < size; idx++ {
					if err := g.patchOneInput(v, grp, pid, idx); err != nil {
						return err
					}
				}

				continue
			}
			if err := g.patchOneInput(v, grp, pid, port.NoIndex); err != nil {
				return err
			}
		}
	}

	return nil
}

// patchOneInput patches a single data-input slot (spec.md §4.5 "Rules for
// a data input"). grp may be nil (vertex has no traversal group yet,
// e.g. was just created and not reachable from a refreshed group), in
// which case the port has no parents by definition.
func (g *Graph) patchOneInput(v topology.VertexID, grp *traversal.Group, p port.ID, idx int32) error {
	var parents []topology.Connection
	if grp != nil {
		for _, c := range grp.Parents(v, true) {
			if c.DestPort.Port == p && c.DestPort.Index == idx && c.Category == port.Data {
				parents = append(parents, c)
			}
		}
	}

	k := portKey{vertex: v, port: p, index: idx}
	slot := g.inputs[k]
	if slot == nil {
		slot = &dataSlot{bytes: g.blankPage}
		g.inputs[k] = slot
	}

	if len(parents) > 1 {
		return errtax.Wrapf(errtax.ErrMultipleDataInputs, "rendergraph.patchPorts: vertex %d port %d index %d", v, p, idx)
	}

	if len(parents) == 0 {
		if slot.ownership == port.None {
			slot.bytes = g.blankPage
		}

		return nil
	}

	c := parents[0]
	if c.SourcePort.Port.IsExternal() {
		if g.resolver != nil {
			if buf, ok := g.resolver.Resolve(c.SourceVertex, c.SourcePort.Port, c.SourcePort.Index); ok {
				slot.ownership = port.None
				slot.bytes = buf

				return nil
			}
		}
		// Unresolved external reference is caught as a None patch rather
		// than an error (spec.md §4.5).
		slot.ownership = port.None
		slot.bytes = g.blankPage

		return nil
	}

	if slot.ownership == port.OwnedByPort {
		slot.ownership = port.None
	}
	if out := g.outputs[portKey{vertex: c.SourceVertex, port: c.SourcePort.Port, index: c.SourcePort.Index}]; out != nil {
		slot.bytes = out.bytes
	} else {
		slot.bytes = g.blankPage
	}

	return nil
}
