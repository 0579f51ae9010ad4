package e2e_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/katalvlaran/dataflowgraph/errtax"
	"github.com/katalvlaran/dataflowgraph/kernelapi"
	"github.com/katalvlaran/dataflowgraph/ndef"
	"github.com/katalvlaran/dataflowgraph/port"
	"github.com/katalvlaran/dataflowgraph/simgraph"
	"github.com/katalvlaran/dataflowgraph/topology"
)

// arraySourceNode drives two scalar Message outputs used to target
// distinct elements of a downstream port-array input.
type arraySourceNode struct{}

// arraySinkNode exposes a single port-array Message input (spec.md §3
// "Port arrays").
type arraySinkNode struct{}

func arraySourceDefinition() *ndef.Definition {
	return &ndef.Definition{
		Name: "arraySource",
		Ports: []ndef.PortSpec{
			{Name: "outA", Input: false, Category: uint8(port.Message), ElementType: "int32"},
			{Name: "outB", Input: false, Category: uint8(port.Message), ElementType: "int32"},
		},
	}
}

func arraySinkDefinition() *ndef.Definition {
	return &ndef.Definition{
		Name: "arraySink",
		Ports: []ndef.PortSpec{
			{Name: "ins", Input: true, Category: uint8(port.Message), ElementType: "int32", Array: true},
		},
	}
}

var _ = Describe("port-array downsize guard", func() {
	It("refuses to shrink below the highest connected index, then succeeds once that edge is gone", func() {
		s := simgraph.NewSet(4, kernelapi.Synchronous)
		simgraph.RegisterDefinition[arraySourceNode](s, arraySourceDefinition())
		simgraph.RegisterDefinition[arraySinkNode](s, arraySinkDefinition())

		src, err := simgraph.Create[arraySourceNode](s)
		Expect(err).NotTo(HaveOccurred())
		n, err := simgraph.Create[arraySinkNode](s)
		Expect(err).NotTo(HaveOccurred())

		outA, outB, ins := port.NewID(0), port.NewID(1), port.NewID(0)

		Expect(s.SetPortArraySize(n, ins, 4)).To(Succeed())
		size, ok := s.PortArraySize(n, ins)
		Expect(ok).To(BeTrue())
		Expect(size).To(Equal(uint16(4)))

		Expect(s.Connect(src, port.OutputPortArrayID{Port: outA, Index: port.NoIndex},
			n, port.InputPortArrayID{Port: ins, Index: 0}, topology.KindNormal)).To(Succeed())
		Expect(s.Connect(src, port.OutputPortArrayID{Port: outB, Index: port.NoIndex},
			n, port.InputPortArrayID{Port: ins, Index: 3}, topology.KindNormal)).To(Succeed())

		err = s.SetPortArraySize(n, ins, 2)
		Expect(err).To(HaveOccurred())
		Expect(errors.Is(err, errtax.ErrIndexOutOfRange)).To(BeTrue())

		size, ok = s.PortArraySize(n, ins)
		Expect(ok).To(BeTrue())
		Expect(size).To(Equal(uint16(4)), "size must be left unchanged by a refused downsize")

		Expect(s.Disconnect(src, port.OutputPortArrayID{Port: outB, Index: port.NoIndex},
			n, port.InputPortArrayID{Port: ins, Index: 3}, topology.KindNormal)).To(Succeed())

		Expect(s.SetPortArraySize(n, ins, 2)).To(Succeed())
		size, ok = s.PortArraySize(n, ins)
		Expect(ok).To(BeTrue())
		Expect(size).To(Equal(uint16(2)))
	})
})
