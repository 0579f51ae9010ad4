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

// feedbackXNode forwards an externally driven int32 value to its
// downstream neighbor every frame, and separately echoes whatever it
// observes on its own feedback input into a dedicated output so the
// scenario can read that observation without racing the same frame's
// write into the aliased feedback source.
type feedbackXNode struct{}

// feedbackYNode passes its input straight through to its output, the
// role of the "downstream" half of the feedback pair.
type feedbackYNode struct{}

func feedbackXDefinition() *ndef.Definition {
	return &ndef.Definition{
		Name: "feedbackX",
		Ports: []ndef.PortSpec{
			{Name: "in", Input: true, Category: uint8(port.Data), ElementType: "int32"},
			{Name: "fb", Input: true, Category: uint8(port.Data), ElementType: "int32"},
			{
				Name: "out", Input: false, Category: uint8(port.Data), ElementType: "int32",
				BufferByteOffsets: []uintptr{0}, BufferStrides: []uintptr{4},
			},
			{
				Name: "fbEcho", Input: false, Category: uint8(port.Data), ElementType: "int32",
				BufferByteOffsets: []uintptr{0}, BufferStrides: []uintptr{4},
			},
		},
		Kernel: kernelapi.Func(func(ctx *kernelapi.RenderContext) {
			inRaw := ctx.Ports.Input(0, port.NoIndex)
			var driven int32
			if len(inRaw) >= 4 {
				driven = int32(binary.LittleEndian.Uint32(inRaw[:4]))
			}
			binary.LittleEndian.PutUint32(ctx.Ports.Output(2, port.NoIndex), uint32(driven))
			copy(ctx.Ports.Output(3, port.NoIndex), ctx.Ports.Input(1, port.NoIndex))
		}),
	}
}

func feedbackYDefinition() *ndef.Definition {
	return &ndef.Definition{
		Name: "feedbackY",
		Ports: []ndef.PortSpec{
			{Name: "in", Input: true, Category: uint8(port.Data), ElementType: "int32"},
			{
				Name: "out", Input: false, Category: uint8(port.Data), ElementType: "int32",
				BufferByteOffsets: []uintptr{0}, BufferStrides: []uintptr{4},
			},
		},
		Kernel: kernelapi.Func(func(ctx *kernelapi.RenderContext) {
			copy(ctx.Ports.Output(1, port.NoIndex), ctx.Ports.Input(0, port.NoIndex))
		}),
	}
}

var _ = Describe("feedback", func() {
	It("delivers the downstream node's previous-frame output on the upstream node's feedback input", func() {
		s := simgraph.NewSet(3, kernelapi.Synchronous)
		simgraph.RegisterDefinition[feedbackXNode](s, feedbackXDefinition())
		simgraph.RegisterDefinition[feedbackYNode](s, feedbackYDefinition())

		x, err := simgraph.Create[feedbackXNode](s)
		Expect(err).NotTo(HaveOccurred())
		y, err := simgraph.Create[feedbackYNode](s)
		Expect(err).NotTo(HaveOccurred())

		xIn, xFb, xOut, xFbEcho := port.NewID(0), port.NewID(1), port.NewID(2), port.NewID(3)
		yIn, yOut := port.NewID(0), port.NewID(1)

		Expect(s.Connect(x, port.OutputPortArrayID{Port: xOut, Index: port.NoIndex},
			y, port.InputPortArrayID{Port: yIn, Index: port.NoIndex}, topology.KindNormal)).To(Succeed())
		Expect(s.Connect(y, port.OutputPortArrayID{Port: yOut, Index: port.NoIndex},
			x, port.InputPortArrayID{Port: xFb, Index: port.NoIndex}, topology.KindFeedback)).To(Succeed())

		Expect(s.SetBufferSize(x, xOut, 0, "int32", simgraph.SizeRequest(1))).To(Succeed())
		Expect(s.SetBufferSize(x, xFbEcho, 0, "int32", simgraph.SizeRequest(1))).To(Succeed())
		Expect(s.SetBufferSize(y, yOut, 0, "int32", simgraph.SizeRequest(1))).To(Succeed())

		echo, err := simgraph.NewGraphValue[int32](s, x, xFbEcho)
		Expect(err).NotTo(HaveOccurred())

		inputs := []int32{1, 2, 3}
		var observedFeedback []int32
		var observedByY []int32

		for _, driven := range inputs {
			Expect(simgraph.SetData[int32](s, x, xIn, driven)).To(Succeed())
			Expect(s.Update()).To(Succeed())

			yRaw, ok := s.ReadDataInput(y, yIn, port.NoIndex)
			Expect(ok).To(BeTrue())
			observedByY = append(observedByY, int32(binary.LittleEndian.Uint32(yRaw[:4])))

			view, err := echo.View()
			Expect(err).NotTo(HaveOccurred())
			fbRaw, err := view.Bytes()
			Expect(err).NotTo(HaveOccurred())
			observedFeedback = append(observedFeedback, int32(binary.LittleEndian.Uint32(fbRaw[:4])))
		}

		Expect(observedByY).To(Equal([]int32{1, 2, 3}))
		Expect(observedFeedback).To(Equal([]int32{0, 1, 2}))
	})
})
