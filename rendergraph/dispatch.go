package rendergraph

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/katalvlaran/dataflowgraph/errtax"
	"github.com/katalvlaran/dataflowgraph/kernelapi"
	"github.com/katalvlaran/dataflowgraph/topology"
	"github.com/katalvlaran/dataflowgraph/traversal"
)

// defaultMaxParallelTasks bounds how many MaximallyParallel vertex tasks
// may run concurrently (spec.md's semaphore-bounded job system); grounded
// on rockstar-0000-aistore's jogger-per-mountpath fan-out, generalized
// here to a fixed semaphore weight instead of one goroutine per disk.
const defaultMaxParallelTasks = 32

// dispatch runs step 6 of spec.md §4.4: complete externalDeps, then
// invoke every kernel function in the order its configured
// RenderExecutionModel requires.
func (g *Graph) dispatch(externalDeps []func() error) error {
	for _, dep := range externalDeps {
		if dep == nil {
			continue
		}
		if err := dep(); err != nil {
			return err
		}
	}

	switch g.model {
	case kernelapi.Synchronous, kernelapi.SingleThreaded:
		return g.dispatchSequential()
	case kernelapi.Islands:
		return g.dispatchIslands()
	case kernelapi.MaximallyParallel:
		return g.dispatchParallel()
	default:
		return fmt.Errorf("rendergraph: unsupported execution model %s", g.model)
	}
}

// groupedVertices partitions every currently live vertex by its current
// group id.
func (g *Graph) groupedVertices() map[topology.GroupID][]topology.VertexID {
	out := make(map[topology.GroupID][]topology.VertexID)
	for v := range g.nodes {
		gid := g.db.GroupOf(v)
		out[gid] = append(out[gid], v)
	}

	return out
}

// orderFor returns grp.Order if grp is non-nil, else the unordered
// fallback vertices (a vertex whose group has no materialized Group, e.g.
// after a cycle error cleared the traversal cache, runs with no ordering
// guarantee relative to the other vertices of its group).
func orderFor(grp *traversal.Group, fallback []topology.VertexID) []topology.VertexID {
	if grp != nil {
		return grp.Order
	}

	return fallback
}

// dispatchSequential covers Synchronous and SingleThreaded (spec.md §4.4
// step 6): both iterate groups and vertices in topological order on a
// single goroutine; the two differ only in whether a caller-level job
// system already moved that goroutine off the calling thread, which is
// outside this package's concern.
func (g *Graph) dispatchSequential() error {
	for gid, verts := range g.groupedVertices() {
		order := orderFor(g.cache.Group(gid), verts)
		for _, v := range order {
			kn := g.nodes[v]
			if kn == nil {
				continue
			}
			if err := g.runKernel(v, kn); err != nil {
				return err
			}
		}
	}

	return nil
}

// dispatchIslands runs one parallel-for task per group (spec.md §4.4
// step 6 "Islands"); groups are independent connected components, so no
// cross-group fence is needed.
func (g *Graph) dispatchIslands() error {
	var eg errgroup.Group
	for gid, verts := range g.groupedVertices() {
		gid, verts := gid, verts
		eg.Go(func() error {
			order := orderFor(g.cache.Group(gid), verts)
			for _, v := range order {
				kn := g.nodes[v]
				if kn == nil {
					continue
				}
				if err := g.runKernel(v, kn); err != nil {
					return err
				}
			}

			return nil
		})
	}

	return eg.Wait()
}

// dispatchParallel schedules one task per vertex, fenced on its parents
// under the main traversal hierarchy (spec.md §4.4 step 6
// "MaximallyParallel"). Within a group, vertices are organized into
// dependency levels (a vertex's level is one past its deepest parent's);
// levels run strictly in sequence, but every vertex within a level runs
// concurrently, bounded by a semaphore the way rockstar-0000-aistore
// bounds its own concurrent fan-outs.
func (g *Graph) dispatchParallel() error {
	sem := semaphore.NewWeighted(defaultMaxParallelTasks)
	ctx := context.Background()

	var outer errgroup.Group
	for gid, verts := range g.groupedVertices() {
		gid, verts := gid, verts
		outer.Go(func() error {
			grp := g.cache.Group(gid)
			if grp == nil {
				for _, v := range verts {
					if kn := g.nodes[v]; kn != nil {
						if err := g.runKernelBounded(ctx, sem, v, kn); err != nil {
							return err
						}
					}
				}

				return nil
			}
			for _, level := range levelsOf(grp) {
				var eg errgroup.Group
				for _, v := range level {
					v := v
					kn := g.nodes[v]
					if kn == nil {
						continue
					}
					eg.Go(func() error {
						return g.runKernelBounded(ctx, sem, v, kn)
					})
				}
				if err := eg.Wait(); err != nil {
					return err
				}
			}

			return nil
		})
	}

	return outer.Wait()
}

// levelsOf buckets grp's vertices into dependency levels under the main
// traversal hierarchy: level 0 has no parents in the group, level N+1 is
// one past the deepest parent.
func levelsOf(grp *traversal.Group) [][]topology.VertexID {
	level := make(map[topology.VertexID]int, len(grp.Order))
	maxLevel := 0
	for _, v := range grp.Order {
		l := 0
		for _, pc := range grp.Parents(v, false) {
			if pl := level[pc.SourceVertex] + 1; pl > l {
				l = pl
			}
		}
		level[v] = l
		if l > maxLevel {
			maxLevel = l
		}
	}
	levels := make([][]topology.VertexID, maxLevel+1)
	for _, v := range grp.Order {
		l := level[v]
		levels[l] = append(levels[l], v)
	}

	return levels
}

func (g *Graph) runKernelBounded(ctx context.Context, sem *semaphore.Weighted, v topology.VertexID, kn *KernelNode) error {
	if err := sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer sem.Release(1)

	return g.runKernel(v, kn)
}

// runKernel invokes one node's kernel function, if it has one, passing a
// RenderContext scoped to that vertex's ports (spec.md §4.4 "Kernel
// calling convention").
func (g *Graph) runKernel(v topology.VertexID, kn *KernelNode) error {
	def := g.registry.Lookup(kn.Type)
	if def == nil || def.Kernel == nil {
		return nil
	}
	fn, ok := def.Kernel.(kernelapi.Func)
	if !ok {
		return errtax.Logic(errtax.ErrBrokenList, fmt.Sprintf("rendergraph: kernel for type %x is not a kernelapi.Func", uint64(kn.Type)))
	}

	ctx := &kernelapi.RenderContext{
		Safety:     &g.safety,
		Ports:      &nodePorts{g: g, v: v},
		KernelData: kn.KernelData,
	}
	fn(ctx)
	kn.LastFence = g.safety.Current()

	return nil
}
