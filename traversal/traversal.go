// Package traversal turns a topology.Database into an ordered execution
// plan: a pool of Group values, each a topologically sorted vertex list
// for one connected component, annotated with parent/child edge tables
// under two configurable bit-masks (spec.md §4.2).
//
// The topological sort itself is the teacher's own algorithm
// (dfs.TopologicalSort: white/gray/black DFS, post-order reversed),
// generalized here to run per-group; the first group that can't be
// sorted reports Cycles, clears the whole cache and ends the refresh.
package traversal

import (
	"github.com/katalvlaran/dataflowgraph/errtax"
	"github.com/katalvlaran/dataflowgraph/topology"
)

// visit states for the per-group DFS, named after the teacher's dfs
// package (white/gray/black) rather than the generic 0/1/2 this module
// could otherwise get away with.
const (
	white = iota
	gray
	black
)

// Group is a group-partitioned, topologically ordered view of one
// connected component.
type Group struct {
	ID    topology.GroupID
	Order []topology.VertexID // topological order under the traversal mask

	parentsMain  map[topology.VertexID][]topology.Connection
	childrenMain map[topology.VertexID][]topology.Connection
	parentsAlt   map[topology.VertexID][]topology.Connection
	childrenAlt  map[topology.VertexID][]topology.Connection

	Roots  []topology.VertexID // no parents under the traversal mask
	Leaves []topology.VertexID // no children under the traversal mask
}

// Parents enumerates v's parents in the group. useAlternate selects the
// alternate hierarchy (e.g. reversed feedback edges, used when patching
// data ports) instead of the main traversal hierarchy.
func (g *Group) Parents(v topology.VertexID, useAlternate bool) []topology.Connection {
	if useAlternate {
		return g.parentsAlt[v]
	}

	return g.parentsMain[v]
}

// Children enumerates v's children in the group, under the same
// hierarchy selection as Parents.
func (g *Group) Children(v topology.VertexID, useAlternate bool) []topology.Connection {
	if useAlternate {
		return g.childrenAlt[v]
	}

	return g.childrenMain[v]
}

// Cache is the group-partitioned traversal cache of spec.md §4.2.
type Cache struct {
	db            *topology.Database
	traversalMask topology.EdgeKind
	alternateMask topology.EdgeKind

	groups map[topology.GroupID]*Group

	NewGroups     map[topology.GroupID]struct{}
	DeletedGroups map[topology.GroupID]struct{}
	// Refreshed holds every group id rebuilt during the most recent
	// Refresh, new or not — the set rendergraph's "Analyse live nodes"
	// step (spec.md §4.4 step 4) needs to find every node whose group
	// was touched, not only ones that got a brand new id.
	Refreshed map[topology.GroupID]struct{}
	Errors    []error
}

// NewCache builds a Cache over db. Default masks match spec.md §4.1's
// feedback/back convention: the traversal hierarchy follows Normal and
// the synthetic Back edges (so a feedback pair never creates a cycle),
// while the alternate hierarchy follows Normal and the user-visible
// Feedback edges (so patching a data input walks back to its true
// producer, one frame stale on a feedback edge).
func NewCache(db *topology.Database) *Cache {
	return &Cache{
		db:            db,
		traversalMask: topology.KindNormal | topology.KindBack,
		alternateMask: topology.KindNormal | topology.KindFeedback,
		groups:        make(map[topology.GroupID]*Group),
	}
}

// WithMasks overrides the traversal/alternate masks; it must be called
// before the first Refresh.
func (c *Cache) WithMasks(traversalMask, alternateMask topology.EdgeKind) *Cache {
	c.traversalMask = traversalMask
	c.alternateMask = alternateMask

	return c
}

// Group returns the cached Group for id, or nil if id has no materialized
// group (e.g. it was never touched, or is the orphan group before its
// first vertex arrives).
func (c *Cache) Group(id topology.GroupID) *Group {
	return c.groups[id]
}

// GroupOf is a convenience wrapper returning the Group containing v.
func (c *Cache) GroupOf(v topology.VertexID) *Group {
	return c.groups[c.db.GroupOf(v)]
}

// Refresh drains the topology database's changed-group queue and
// rebuilds each affected group: splits are detected by recomputing
// connectivity from the current connection lists, merges were already
// folded into a single group id eagerly by topology.Database.Connect.
//
// A cycle in any group clears the whole cache and aborts the refresh,
// per spec.md §4.2 ("Cycles error, clear the whole cache, and return").
func (c *Cache) Refresh() {
	c.NewGroups = make(map[topology.GroupID]struct{})
	c.DeletedGroups = make(map[topology.GroupID]struct{})
	c.Refreshed = make(map[topology.GroupID]struct{})

	for _, g := range c.db.DrainChanged() {
		if !c.refreshGroup(g) {
			return
		}
	}
}

// refreshGroup rebuilds group g. It returns false if a cycle was found,
// signaling the caller to stop processing further changed groups this
// Refresh (the whole cache was just cleared).
func (c *Cache) refreshGroup(g topology.GroupID) bool {
	members := c.db.Members(g)
	if len(members) == 0 {
		if _, existed := c.groups[g]; existed {
			delete(c.groups, g)
			c.DeletedGroups[g] = struct{}{}
		}

		return true
	}

	for i, comp := range c.connectedComponents(members) {
		var id topology.GroupID
		if i == 0 {
			id = g
			c.db.Reassign(id, comp)
		} else {
			id = c.db.AllocGroupFor(comp)
			c.NewGroups[id] = struct{}{}
		}
		if !c.rebuildOne(id, comp) {
			return false
		}
	}

	return true
}

// connectedComponents splits members into weakly connected components
// under topology.GroupingMask, using only edges whose endpoints are
// both within members (cross-group bridges can't exist here: Connect
// already unions eagerly, so by the time a group is "changed" here, the
// only way it differs from a single component is a prior Disconnect
// having split it).
func (c *Cache) connectedComponents(members []topology.VertexID) [][]topology.VertexID {
	inSet := make(map[topology.VertexID]bool, len(members))
	for _, v := range members {
		inSet[v] = true
	}
	visited := make(map[topology.VertexID]bool, len(members))
	var comps [][]topology.VertexID

	for _, seed := range members {
		if visited[seed] {
			continue
		}
		var comp []topology.VertexID
		stack := []topology.VertexID{seed}
		visited[seed] = true
		for len(stack) > 0 {
			v := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			comp = append(comp, v)
			for _, conn := range c.db.OutputConnections(v) {
				if conn.Kind&topology.GroupingMask == 0 {
					continue
				}
				if nb := conn.DestVertex; inSet[nb] && !visited[nb] {
					visited[nb] = true
					stack = append(stack, nb)
				}
			}
			for _, conn := range c.db.InputConnections(v) {
				if conn.Kind&topology.GroupingMask == 0 {
					continue
				}
				if nb := conn.SourceVertex; inSet[nb] && !visited[nb] {
					visited[nb] = true
					stack = append(stack, nb)
				}
			}
		}
		comps = append(comps, comp)
	}

	return comps
}

// rebuildOne runs the local topological sort and builds the parent/
// child edge tables for one (possibly freshly split) group. Returns
// false on a cycle, after clearing the whole cache.
func (c *Cache) rebuildOne(id topology.GroupID, members []topology.VertexID) bool {
	if len(members) == 1 && len(c.db.OutputConnections(members[0])) == 0 && len(c.db.InputConnections(members[0])) == 0 {
		c.db.MoveToOrphanGroup(members[0])
		id = topology.OrphanGroup
		members = c.db.Members(id)
	}
	c.Refreshed[id] = struct{}{}

	order, ok := c.topoSort(members)
	if !ok {
		c.clearAll()
		c.Errors = append(c.Errors, errtax.ErrCycles)

		return false
	}

	g := &Group{
		ID:           id,
		Order:        order,
		parentsMain:  map[topology.VertexID][]topology.Connection{},
		childrenMain: map[topology.VertexID][]topology.Connection{},
		parentsAlt:   map[topology.VertexID][]topology.Connection{},
		childrenAlt:  map[topology.VertexID][]topology.Connection{},
	}

	reachable := make(map[topology.VertexID]bool, len(order))
	for _, v := range order {
		reachable[v] = true
	}

	for _, v := range order {
		for _, conn := range c.db.InputConnections(v) {
			if conn.Kind&c.traversalMask != 0 {
				g.parentsMain[v] = append(g.parentsMain[v], conn)
			}
			if conn.Kind&c.alternateMask != 0 {
				g.parentsAlt[v] = append(g.parentsAlt[v], conn)
				if !reachable[conn.SourceVertex] {
					c.Errors = append(c.Errors, errtax.ErrUnrelatedHierarchy)
				}
			}
		}
		for _, conn := range c.db.OutputConnections(v) {
			if conn.Kind&c.traversalMask != 0 {
				g.childrenMain[v] = append(g.childrenMain[v], conn)
			}
			if conn.Kind&c.alternateMask != 0 {
				g.childrenAlt[v] = append(g.childrenAlt[v], conn)
				if !reachable[conn.DestVertex] {
					c.Errors = append(c.Errors, errtax.ErrUnrelatedHierarchy)
				}
			}
		}
		if len(g.parentsMain[v]) == 0 {
			g.Roots = append(g.Roots, v)
		}
		if len(g.childrenMain[v]) == 0 {
			g.Leaves = append(g.Leaves, v)
		}
	}

	c.groups[id] = g

	return true
}

// topoSort runs a white/gray/black DFS over members, following only
// output edges whose Kind intersects c.traversalMask, the same
// algorithm shape as dfs.TopologicalSort in the teacher repo adapted to
// operate over topology.VertexID and a bounded member set instead of an
// entire core.Graph.
func (c *Cache) topoSort(members []topology.VertexID) ([]topology.VertexID, bool) {
	state := make(map[topology.VertexID]int, len(members))
	order := make([]topology.VertexID, 0, len(members))

	var visit func(v topology.VertexID) bool
	visit = func(v topology.VertexID) bool {
		switch state[v] {
		case gray:
			return false // back-edge: cycle
		case black:
			return true
		}
		state[v] = gray
		for _, conn := range c.db.OutputConnections(v) {
			if conn.Kind&c.traversalMask == 0 {
				continue
			}
			if !visit(conn.DestVertex) {
				return false
			}
		}
		state[v] = black
		order = append(order, v)

		return true
	}

	for _, v := range members {
		if state[v] == white {
			if !visit(v) {
				return nil, false
			}
		}
	}

	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}

	return order, true
}

// clearAll wipes every materialized group, per spec.md §4.2's "Cycles
// error, clear the whole cache, and return".
func (c *Cache) clearAll() {
	for id := range c.groups {
		c.DeletedGroups[id] = struct{}{}
	}
	c.groups = make(map[topology.GroupID]*Group)
}
