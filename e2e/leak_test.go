package e2e_test

import (
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/katalvlaran/dataflowgraph/kernelapi"
	"github.com/katalvlaran/dataflowgraph/ndef"
	"github.com/katalvlaran/dataflowgraph/simgraph"
)

type leakyNode struct{}

func leakyDefinition() *ndef.Definition {
	return &ndef.Definition{Name: "leaky"}
}

var _ = Describe("leak report", func() {
	It("reports every undestroyed node and no process termination, leaving tables empty afterward", func() {
		s := simgraph.NewSet(6, kernelapi.Synchronous)
		simgraph.RegisterDefinition[leakyNode](s, leakyDefinition())

		var lines []string
		s.SetLogf(func(format string, args ...interface{}) {
			lines = append(lines, fmt.Sprintf(format, args...))
		})

		for i := 0; i < 5; i++ {
			_, err := simgraph.Create[leakyNode](s)
			Expect(err).NotTo(HaveOccurred())
		}

		report := s.Dispose()
		Expect(report.Nodes).To(Equal(5))
		Expect(report.GraphValues).To(Equal(0))
		Expect(report.String()).To(Equal("5 leaked node(s) and 0 leaked graph value(s)"))
		Expect(lines).To(ContainElement("simgraph: 5 leaked node(s) and 0 leaked graph value(s)"))
	})
})
