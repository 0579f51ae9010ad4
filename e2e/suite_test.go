// Package e2e_test runs the dataflow graph runtime through the
// scenarios spec.md §8 calls out as testable end-to-end properties: each
// spec file below drives a simgraph.Set through one scenario exactly the
// way a user layer would, asserting on externally observable state
// (handles, port bytes, leak reports) rather than internals.
package e2e_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestE2E(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "dataflowgraph e2e suite")
}
