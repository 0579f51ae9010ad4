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

// senderNode exposes one Message output; its own simulation data is
// unused but still allocated, matching every node's Create[T] contract.
type senderNode struct{}

// receiverNode records every value it is sent, in delivery order, into
// its own simulation data (ndef's Data() accessor).
type receiverNode struct {
	Received []int32
}

func senderDefinition() *ndef.Definition {
	return &ndef.Definition{
		Name: "sender",
		Ports: []ndef.PortSpec{
			{Name: "drive", Input: false, Category: uint8(port.Message), ElementType: "int32", Public: true},
		},
	}
}

func receiverDefinition() *ndef.Definition {
	return &ndef.Definition{
		Name: "receiver",
		Ports: []ndef.PortSpec{
			{Name: "in", Input: true, Category: uint8(port.Message), ElementType: "int32", Public: true},
		},
		Message: func(ctx ndef.MessageContext, p uint16, value interface{}) {
			rec := ctx.Data().(*receiverNode)
			rec.Received = append(rec.Received, value.(int32))
		},
	}
}

var _ = Describe("message fan-out", func() {
	It("delivers a sent value to every connected receiver, in connection order", func() {
		s := simgraph.NewSet(1, kernelapi.Synchronous)
		simgraph.RegisterDefinition[senderNode](s, senderDefinition())
		simgraph.RegisterDefinition[receiverNode](s, receiverDefinition())

		a, err := simgraph.Create[senderNode](s)
		Expect(err).NotTo(HaveOccurred())
		b, err := simgraph.Create[receiverNode](s)
		Expect(err).NotTo(HaveOccurred())
		c, err := simgraph.Create[receiverNode](s)
		Expect(err).NotTo(HaveOccurred())

		drivePort := port.NewID(0)
		Expect(s.Connect(a, port.OutputPortArrayID{Port: drivePort, Index: port.NoIndex},
			b, port.InputPortArrayID{Port: drivePort, Index: port.NoIndex}, topology.KindNormal)).To(Succeed())
		Expect(s.Connect(a, port.OutputPortArrayID{Port: drivePort, Index: port.NoIndex},
			c, port.InputPortArrayID{Port: drivePort, Index: port.NoIndex}, topology.KindNormal)).To(Succeed())

		Expect(simgraph.SendMessage[int32](s, a, drivePort, 42)).To(Succeed())

		bData, ok := simgraph.GetData[receiverNode](s, b)
		Expect(ok).To(BeTrue())
		cData, ok := simgraph.GetData[receiverNode](s, c)
		Expect(ok).To(BeTrue())
		Expect(bData.Received).To(Equal([]int32{42}))
		Expect(cData.Received).To(Equal([]int32{42}))
	})
})
