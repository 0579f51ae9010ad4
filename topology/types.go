// Package topology is the connectivity store of the dataflow graph
// runtime (spec.md §4.1): a flat slot array of connections threaded
// through per-vertex singly-linked input/output lists, plus incremental,
// lazily-resolved tracking of which connected components ("groups")
// changed and need the traversal cache to re-sort them.
//
// Vertex identity here is a bare VertexID (an index the owning layer —
// simgraph on the simulation side, rendergraph on the render side —
// assigns and validates before calling in; topology itself trusts its
// caller the same way core.Graph trusts caller-supplied vertex IDs).
package topology

import (
	"github.com/katalvlaran/dataflowgraph/errtax"
	"github.com/katalvlaran/dataflowgraph/handle"
	"github.com/katalvlaran/dataflowgraph/port"
)

// VertexID identifies a vertex within one Database. Zero is never a
// valid vertex; callers reserve it the way handle.NodeHandle reserves
// index 0.
type VertexID uint32

// EdgeKind distinguishes the three edge shapes of spec.md §3: an
// ordinary edge, the user-visible half of a feedback pair, and the
// synthetic reverse half that lets the topological sort still succeed.
// Stored as independent bits so a traversal/alternate mask can select a
// subset with a single bitwise AND, per spec.md §4.2.
type EdgeKind uint8

const (
	KindNormal   EdgeKind = 1 << iota // ordinary edge
	KindFeedback                     // user-visible forward half: logical edge dest→source
	KindBack                         // synthetic reverse of a Feedback edge: source→dest
)

// GroupingMask selects the edge kinds that define connected-component
// membership (spec.md §4.2: "weakly connected components under the
// traversal mask"). Every Feedback connection is always created
// alongside its synthetic Back counterpart (see Database.Connect),
// so grouping never needs KindFeedback directly: the Back edge already
// ties the same two vertices together under this mask.
const GroupingMask = KindNormal | KindBack

// GroupID names a connected component. Zero is reserved ("no group").
type GroupID uint32

// Connection is one edge record (spec.md §3 "Connection"). Self is a
// versioned handle into the Database's own connection arena; reusing
// handle.Arena gives Connection and array-size handles the same
// "zero = invalid" sentinel convention spec.md calls for, and makes the
// testable "c.valid is true" property simply "Arena.Validate(c.Self)".
type Connection struct {
	Self handle.NodeHandle // this connection's own handle into the Database's arena

	SourceVertex VertexID
	SourcePort   port.OutputPortArrayID
	DestVertex   VertexID
	DestPort     port.InputPortArrayID
	Category     port.Category
	Kind         EdgeKind

	nextInInput  handle.NodeHandle // next connection in DestVertex's input list
	nextInOutput handle.NodeHandle // next connection in SourceVertex's output list
}

// vertexRecord is the per-vertex topology record of spec.md §3: two
// intrusive list heads/tails and the vertex's current group.
type vertexRecord struct {
	exists bool

	inputHead, inputTail   handle.NodeHandle
	outputHead, outputTail handle.NodeHandle

	group GroupID
}

// Database is the connectivity store for one side of the runtime (the
// simulation holds one, the render graph holds its own separate copy,
// per spec.md §4.4).
type Database struct {
	conns *handle.Arena[Connection]
	verts []vertexRecord // indexed by VertexID; verts[0] unused (sentinel)

	members   map[GroupID]map[VertexID]struct{}
	changed   map[GroupID]struct{}
	nextGroup GroupID
	freeGroups []GroupID
}

// NewDatabase constructs an empty topology Database.
func NewDatabase() *Database {
	return &Database{
		conns:   handle.NewArena[Connection](0),
		verts:   make([]vertexRecord, 1), // slot 0 reserved
		members: make(map[GroupID]map[VertexID]struct{}),
		changed: make(map[GroupID]struct{}),
	}
}

func (db *Database) ensure(v VertexID) {
	for uint32(len(db.verts)) <= uint32(v) {
		db.verts = append(db.verts, vertexRecord{})
	}
}

func (db *Database) allocGroup() GroupID {
	if n := len(db.freeGroups); n > 0 {
		g := db.freeGroups[n-1]
		db.freeGroups = db.freeGroups[:n-1]

		return g
	}
	db.nextGroup++

	return db.nextGroup
}

// OrphanGroup is the reserved group id for vertices with no
// traversal-mask-relevant edges (spec.md §4.2: "Orphans ... all live in
// group-id 0; this group accumulates — it is never cleared except by
// explicit reset — so that orphaning a vertex does not cost a group
// reallocation").
const OrphanGroup GroupID = 0

// VertexCreated registers v as a fresh, edge-free vertex. It starts in
// OrphanGroup, the same way every vertex does until its first edge
// moves it into a group of its own (spec.md §4.2).
func (db *Database) VertexCreated(v VertexID) {
	db.ensure(v)
	db.verts[v] = vertexRecord{exists: true, group: OrphanGroup}
	if db.members[OrphanGroup] == nil {
		db.members[OrphanGroup] = make(map[VertexID]struct{})
	}
	db.members[OrphanGroup][v] = struct{}{}
	db.changed[OrphanGroup] = struct{}{}
}

// VertexDeleted removes v's topology record. Callers must have already
// disconnected every edge touching v (DisconnectAll); VertexDeleted only
// retires the now-empty group if v was its sole member (OrphanGroup is
// never retired).
func (db *Database) VertexDeleted(v VertexID) {
	if int(v) >= len(db.verts) || !db.verts[v].exists {
		return
	}
	g := db.verts[v].group
	delete(db.members[g], v)
	db.verts[v] = vertexRecord{}
	if g != OrphanGroup && len(db.members[g]) == 0 {
		delete(db.members, g)
		delete(db.changed, g)
		db.freeGroups = append(db.freeGroups, g)
	} else {
		db.changed[g] = struct{}{}
	}
}

// leaveOrphanGroup detaches v from OrphanGroup and gives it a fresh
// singleton group, run just before Connect unions v into whatever group
// its new edge's peer belongs to. A no-op if v is not currently an
// orphan.
func (db *Database) leaveOrphanGroup(v VertexID) {
	if db.verts[v].group != OrphanGroup {
		return
	}
	delete(db.members[OrphanGroup], v)
	db.changed[OrphanGroup] = struct{}{}
	g := db.allocGroup()
	db.verts[v].group = g
	db.members[g] = map[VertexID]struct{}{v: {}}
}

// MoveToOrphanGroup reassigns v back into OrphanGroup — used by the
// traversal cache when a recompute discovers v has become isolated
// (spec.md §4.2's "does not cost a group reallocation" applies equally
// in reverse: vertices falling idle rejoin the shared group rather than
// keeping a dedicated id around).
func (db *Database) MoveToOrphanGroup(v VertexID) {
	old := db.verts[v].group
	if old == OrphanGroup {
		return
	}
	delete(db.members[old], v)
	if len(db.members[old]) == 0 {
		delete(db.members, old)
		db.freeGroups = append(db.freeGroups, old)
	}
	db.verts[v].group = OrphanGroup
	if db.members[OrphanGroup] == nil {
		db.members[OrphanGroup] = make(map[VertexID]struct{})
	}
	db.members[OrphanGroup][v] = struct{}{}
	db.changed[OrphanGroup] = struct{}{}
}

// Members returns the current membership of group g.
func (db *Database) Members(g GroupID) []VertexID {
	out := make([]VertexID, 0, len(db.members[g]))
	for v := range db.members[g] {
		out = append(out, v)
	}

	return out
}

// Reassign overwrites group g's membership to exactly vertices,
// updating each vertex's group field. Used by the traversal cache when
// a recompute confirms a (possibly shrunk) component still anchors g.
func (db *Database) Reassign(g GroupID, vertices []VertexID) {
	db.members[g] = make(map[VertexID]struct{}, len(vertices))
	for _, v := range vertices {
		db.members[g][v] = struct{}{}
		db.verts[v].group = g
	}
}

// AllocGroupFor allocates a fresh group id for vertices, stamping each
// one's group field, and returns the new id. Used by the traversal
// cache when a recompute finds a changed group has split.
func (db *Database) AllocGroupFor(vertices []VertexID) GroupID {
	g := db.allocGroup()
	db.Reassign(g, vertices)

	return g
}

// ConnectionExists reports whether an identical connection (same
// endpoints, ports, and kind) already exists.
func (db *Database) ConnectionExists(kind EdgeKind, src VertexID, srcPort port.OutputPortArrayID, dst VertexID, dstPort port.InputPortArrayID) bool {
	_, ok := db.FindConnection(kind, src, srcPort, dst, dstPort)

	return ok
}

// FindConnection walks dst's input list for the matching edge, avoiding
// the common "missing" branch needing an error: the ok result plays the
// role of spec.md's "valid flag" on the returned reference.
func (db *Database) FindConnection(kind EdgeKind, src VertexID, srcPort port.OutputPortArrayID, dst VertexID, dstPort port.InputPortArrayID) (handle.NodeHandle, bool) {
	if int(dst) >= len(db.verts) {
		return handle.NodeHandle{}, false
	}
	ref := db.verts[dst].inputHead
	for !ref.IsZero() {
		c, ok := db.conns.Get(ref)
		if !ok {
			break
		}
		if c.Kind == kind && c.SourceVertex == src && c.SourcePort == srcPort && c.DestPort == dstPort {
			return ref, true
		}
		ref = c.nextInInput
	}

	return handle.NodeHandle{}, false
}

// Connect appends a new connection to both intrusive lists and updates
// the group partition (spec.md §4.1). Fails with errtax.ErrConnectionExists
// if an identical connection is already present.
func (db *Database) Connect(kind EdgeKind, category port.Category, src VertexID, srcPort port.OutputPortArrayID, dst VertexID, dstPort port.InputPortArrayID) (handle.NodeHandle, error) {
	db.ensure(src)
	db.ensure(dst)
	if db.ConnectionExists(kind, src, srcPort, dst, dstPort) {
		return handle.NodeHandle{}, errtax.Wrapf(errtax.ErrConnectionExists, "topology.Connect(%d,%d)", src, dst)
	}

	ref := db.conns.Alloc(Connection{
		SourceVertex: src,
		SourcePort:   srcPort,
		DestVertex:   dst,
		DestPort:     dstPort,
		Category:     category,
		Kind:         kind,
	})
	c, _ := db.conns.Get(ref)
	c.Self = ref
	db.conns.Set(ref, c)

	// append to src's output list
	sv := &db.verts[src]
	if sv.outputHead.IsZero() {
		sv.outputHead = ref
	} else {
		tail, _ := db.conns.Get(sv.outputTail)
		tail.nextInOutput = ref
		db.conns.Set(sv.outputTail, tail)
	}
	sv.outputTail = ref

	// append to dst's input list
	dv := &db.verts[dst]
	if dv.inputHead.IsZero() {
		dv.inputHead = ref
	} else {
		tail, _ := db.conns.Get(dv.inputTail)
		tail.nextInInput = ref
		db.conns.Set(dv.inputTail, tail)
	}
	dv.inputTail = ref

	if kind&GroupingMask != 0 {
		db.leaveOrphanGroup(src)
		db.leaveOrphanGroup(dst)
		db.union(src, dst)
	} else {
		db.changed[db.verts[src].group] = struct{}{}
		db.changed[db.verts[dst].group] = struct{}{}
	}

	return ref, nil
}

// union merges the groups of a and b (small-into-large), marking the
// surviving group changed and recycling the absorbed group id.
func (db *Database) union(a, b VertexID) {
	ga, gb := db.verts[a].group, db.verts[b].group
	if ga == gb {
		db.changed[ga] = struct{}{}
		return
	}
	keep, absorb := ga, gb
	if len(db.members[absorb]) > len(db.members[keep]) {
		keep, absorb = absorb, keep
	}
	for v := range db.members[absorb] {
		db.verts[v].group = keep
		db.members[keep][v] = struct{}{}
	}
	delete(db.members, absorb)
	delete(db.changed, absorb)
	db.freeGroups = append(db.freeGroups, absorb)
	db.changed[keep] = struct{}{}
}

// DisconnectAndRelease is the fast path for a caller that already
// resolved a connection reference: it unlinks it from both intrusive
// lists and releases the slot. The group it belonged to is marked
// changed (it may have split; traversal.Cache.Refresh resolves that
// lazily).
func (db *Database) DisconnectAndRelease(ref handle.NodeHandle) error {
	c, ok := db.conns.Get(ref)
	if !ok {
		return errtax.Wrapf(errtax.ErrConnectionMissing, "topology.DisconnectAndRelease")
	}

	unlink(db, c.DestVertex, ref, true)
	unlink(db, c.SourceVertex, ref, false)

	g := db.verts[c.SourceVertex].group
	db.changed[g] = struct{}{}
	db.conns.Free(ref)

	return nil
}

// unlink removes ref from vertex v's input (isInput=true) or output
// list, walking from the appropriate head — O(degree) worst case, per
// spec.md §4.1.
func unlink(db *Database, v VertexID, ref handle.NodeHandle, isInput bool) {
	rec := &db.verts[v]
	var head, tail *handle.NodeHandle
	if isInput {
		head, tail = &rec.inputHead, &rec.inputTail
	} else {
		head, tail = &rec.outputHead, &rec.outputTail
	}

	if *head == ref {
		c, _ := db.conns.Get(ref)
		if isInput {
			*head = c.nextInInput
		} else {
			*head = c.nextInOutput
		}
		if *head == (handle.NodeHandle{}) {
			*tail = handle.NodeHandle{}
		}

		return
	}

	prev := *head
	for !prev.IsZero() {
		pc, _ := db.conns.Get(prev)
		next := pc.nextInOutput
		if isInput {
			next = pc.nextInInput
		}
		if next == ref {
			nc, _ := db.conns.Get(ref)
			if isInput {
				pc.nextInInput = nc.nextInInput
			} else {
				pc.nextInOutput = nc.nextInOutput
			}
			db.conns.Set(prev, pc)
			if *tail == ref {
				*tail = prev
			}

			return
		}
		prev = next
	}
}

// Disconnect is the safe path: it finds the connection then releases it.
// Fails with errtax.ErrConnectionMissing if no such connection exists.
func (db *Database) Disconnect(kind EdgeKind, src VertexID, srcPort port.OutputPortArrayID, dst VertexID, dstPort port.InputPortArrayID) error {
	ref, ok := db.FindConnection(kind, src, srcPort, dst, dstPort)
	if !ok {
		return errtax.Wrapf(errtax.ErrConnectionMissing, "topology.Disconnect(%d,%d)", src, dst)
	}

	return db.DisconnectAndRelease(ref)
}

// DisconnectAll unlinks every connection touching v (both as source and
// as destination) and returns the number of disconnections performed.
func (db *Database) DisconnectAll(v VertexID) int {
	if int(v) >= len(db.verts) || !db.verts[v].exists {
		return 0
	}
	n := 0
	for ref := db.verts[v].inputHead; !ref.IsZero(); {
		c, _ := db.conns.Get(ref)
		next := c.nextInInput
		_ = db.DisconnectAndRelease(ref)
		ref = next
		n++
	}
	for ref := db.verts[v].outputHead; !ref.IsZero(); {
		c, ok := db.conns.Get(ref)
		if !ok {
			break
		}
		next := c.nextInOutput
		_ = db.DisconnectAndRelease(ref)
		ref = next
		n++
	}

	return n
}

// CountEstablishedConnections is O(N) over the connection slot array;
// used only for leak checks (spec.md §4.1).
func (db *Database) CountEstablishedConnections() int {
	n := 0
	db.conns.Range(func(handle.NodeHandle, Connection) bool {
		n++
		return true
	})

	return n
}

// InputConnections enumerates every connection in v's input list, in
// list order (insertion order, since Connect appends).
func (db *Database) InputConnections(v VertexID) []Connection {
	return db.walk(v, true)
}

// OutputConnections enumerates every connection in v's output list, in
// list order.
func (db *Database) OutputConnections(v VertexID) []Connection {
	return db.walk(v, false)
}

func (db *Database) walk(v VertexID, isInput bool) []Connection {
	if int(v) >= len(db.verts) {
		return nil
	}
	var ref handle.NodeHandle
	if isInput {
		ref = db.verts[v].inputHead
	} else {
		ref = db.verts[v].outputHead
	}
	var out []Connection
	for !ref.IsZero() {
		c, ok := db.conns.Get(ref)
		if !ok {
			break
		}
		out = append(out, c)
		if isInput {
			ref = c.nextInInput
		} else {
			ref = c.nextInOutput
		}
	}

	return out
}

// GroupOf returns v's current group id.
func (db *Database) GroupOf(v VertexID) GroupID {
	if int(v) >= len(db.verts) {
		return 0
	}

	return db.verts[v].group
}

// DrainChanged returns every group id marked changed since the last
// drain, clearing the queue.
func (db *Database) DrainChanged() []GroupID {
	out := make([]GroupID, 0, len(db.changed))
	for g := range db.changed {
		out = append(out, g)
	}
	db.changed = make(map[GroupID]struct{})

	return out
}
