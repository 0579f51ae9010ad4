package e2e_test

import (
	"encoding/binary"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/katalvlaran/dataflowgraph/kernelapi"
	"github.com/katalvlaran/dataflowgraph/ndef"
	"github.com/katalvlaran/dataflowgraph/port"
	"github.com/katalvlaran/dataflowgraph/simgraph"
	"github.com/katalvlaran/dataflowgraph/topology"
)

// retainSourceNode carries a single int32 data output entirely backed by
// one embedded buffer, the same whole-output convention as the data
// pipeline scenario.
type retainSourceNode struct{}

// retainSinkNode has no kernel; its data input is read directly through
// Set.ReadDataInput, the way the pipeline scenario inspects a node's
// patched/retained bytes without a kernel to surface them.
type retainSinkNode struct{}

func retainSourceDefinition() *ndef.Definition {
	return &ndef.Definition{
		Name: "retainSource",
		Ports: []ndef.PortSpec{
			{
				Name: "out", Input: false, Category: uint8(port.Data), ElementType: "int32",
				BufferByteOffsets: []uintptr{0}, BufferStrides: []uintptr{4},
			},
		},
	}
}

func retainSinkDefinition() *ndef.Definition {
	return &ndef.Definition{
		Name: "retainSink",
		Ports: []ndef.PortSpec{
			{Name: "in", Input: true, Category: uint8(port.Data), ElementType: "int32"},
		},
	}
}

var _ = Describe("disconnect and retain value", func() {
	It("keeps the last patched value readable, owned by the port, after the edge is gone", func() {
		s := simgraph.NewSet(5, kernelapi.Synchronous)
		simgraph.RegisterDefinition[retainSourceNode](s, retainSourceDefinition())
		simgraph.RegisterDefinition[retainSinkNode](s, retainSinkDefinition())

		a, err := simgraph.Create[retainSourceNode](s)
		Expect(err).NotTo(HaveOccurred())
		b, err := simgraph.Create[retainSinkNode](s)
		Expect(err).NotTo(HaveOccurred())

		outPort, inPort := port.NewID(0), port.NewID(0)
		Expect(s.Connect(a, port.OutputPortArrayID{Port: outPort, Index: port.NoIndex},
			b, port.InputPortArrayID{Port: inPort, Index: port.NoIndex}, topology.KindNormal)).To(Succeed())

		Expect(s.SetBufferSize(a, outPort, 0, "int32", simgraph.SizeRequest(1))).To(Succeed())
		Expect(s.Update()).To(Succeed())

		view, ok := s.ReadDataInput(b, inPort, port.NoIndex)
		Expect(ok).To(BeTrue())
		binary.LittleEndian.PutUint32(view, 7)
		Expect(s.Update()).To(Succeed())

		Expect(s.DisconnectAndRetainValue(a, port.OutputPortArrayID{Port: outPort, Index: port.NoIndex},
			b, port.InputPortArrayID{Port: inPort, Index: port.NoIndex})).To(Succeed())
		Expect(s.Update()).To(Succeed())

		retained, ok := s.ReadDataInput(b, inPort, port.NoIndex)
		Expect(ok).To(BeTrue())
		Expect(binary.LittleEndian.Uint32(retained[:4])).To(Equal(uint32(7)))

		Expect(simgraph.SetData[int32](s, b, inPort, int32(9))).To(Succeed())
		Expect(s.Update()).To(Succeed())

		overwritten, ok := s.ReadDataInput(b, inPort, port.NoIndex)
		Expect(ok).To(BeTrue())
		Expect(int32(binary.LittleEndian.Uint32(overwritten[:4]))).To(Equal(int32(9)))
	})
})
