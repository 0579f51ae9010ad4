package e2e_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/katalvlaran/dataflowgraph/kernelapi"
	"github.com/katalvlaran/dataflowgraph/ndef"
	"github.com/katalvlaran/dataflowgraph/port"
	"github.com/katalvlaran/dataflowgraph/simgraph"
	"github.com/katalvlaran/dataflowgraph/topology"
)

// producerNode's single data output is entirely backed by one embedded
// buffer (BufferByteOffsets[0] == 0), the whole-output convention
// set_buffer_size relies on (spec.md §6).
type producerNode struct{}

// consumerNode has no kernel of its own; its input simply gets patched
// to whatever bytes the producer's buffer currently holds, the same way
// any real kernel's KernelPorts.Input would see it.
type consumerNode struct{}

func producerDefinition() *ndef.Definition {
	return &ndef.Definition{
		Name: "producer",
		Ports: []ndef.PortSpec{
			{
				Name: "out", Input: false, Category: uint8(port.Data), ElementType: "float32", Public: true,
				BufferByteOffsets: []uintptr{0}, BufferStrides: []uintptr{4},
			},
		},
	}
}

func consumerDefinition() *ndef.Definition {
	return &ndef.Definition{
		Name: "consumer",
		Ports: []ndef.PortSpec{
			{Name: "in", Input: true, Category: uint8(port.Data), ElementType: "float32", Public: true},
		},
	}
}

var _ = Describe("data pipeline with resize", func() {
	It("grows the consumer's patched view to match a buffer resize, and reuses storage when unchanged", func() {
		s := simgraph.NewSet(2, kernelapi.Synchronous)
		simgraph.RegisterDefinition[producerNode](s, producerDefinition())
		simgraph.RegisterDefinition[consumerNode](s, consumerDefinition())

		p, err := simgraph.Create[producerNode](s)
		Expect(err).NotTo(HaveOccurred())
		q, err := simgraph.Create[consumerNode](s)
		Expect(err).NotTo(HaveOccurred())

		outPort, inPort := port.NewID(0), port.NewID(0)
		Expect(s.Connect(p, port.OutputPortArrayID{Port: outPort, Index: port.NoIndex},
			q, port.InputPortArrayID{Port: inPort, Index: port.NoIndex}, topology.KindNormal)).To(Succeed())

		Expect(s.SetBufferSize(p, outPort, 0, "float32", simgraph.SizeRequest(8))).To(Succeed())
		Expect(s.Update()).To(Succeed())

		view, ok := s.ReadDataInput(q, inPort, port.NoIndex)
		Expect(ok).To(BeTrue())
		Expect(view).To(HaveLen(8 * 4))

		Expect(s.SetBufferSize(p, outPort, 0, "float32", simgraph.SizeRequest(8))).To(Succeed())
		Expect(s.Update()).To(Succeed())

		viewAgain, ok := s.ReadDataInput(q, inPort, port.NoIndex)
		Expect(ok).To(BeTrue())
		Expect(viewAgain).To(HaveLen(8 * 4))
	})
})
