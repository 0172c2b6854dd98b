package memcheck

import (
	"fmt"

	"golang.org/x/tools/container/intsets"

	"github.com/wrybill/memcheck/ir"
)

// NodeID indexes the nodes of the place-flow graph.
type NodeID int

// dropEvent records one destruction point observed on a node. Block is a
// program-global basic block id (see blockGraph).
type dropEvent struct {
	block    int
	span     ir.Span
	scopeEnd bool
}

// useEvent records a dereferencing use of a node, to be checked against the
// drops of every object the node may point to.
type useEvent struct {
	node  NodeID
	block int
	span  ir.Span
}

// node is one place-flow graph node: a (context, function, variable slot,
// projection path) tuple with its points-to set and outgoing flow edges.
type node struct {
	id   NodeID
	ctx  *Context
	fn   string
	v    ir.VarID
	path ir.Path

	pts    intsets.Sparse
	succs  []NodeID
	edgeTo map[NodeID]bool
	drops  []dropEvent
}

func (n *node) String() string {
	return fmt.Sprintf("%s/%d%s%s", n.fn, int(n.v), n.path, n.ctx)
}

type nodeKey struct {
	ctx  int
	fn   string
	v    ir.VarID
	path string
}

type varKey struct {
	ctx int
	fn  string
	v   ir.VarID
}

// pfg is the place-flow graph. Nodes are created on demand and never
// removed; projection paths are truncated at maxDepth so the node space
// stays finite.
type pfg struct {
	nodes    []*node
	index    map[nodeKey]NodeID
	byVar    map[varKey][]NodeID
	maxDepth int
}

func newPFG(maxDepth int) *pfg {
	return &pfg{
		index:    make(map[nodeKey]NodeID),
		byVar:    make(map[varKey][]NodeID),
		maxDepth: maxDepth,
	}
}

func (g *pfg) node(id NodeID) *node { return g.nodes[id] }

func (g *pfg) count() int { return len(g.nodes) }

// ensure returns the node for the given tuple, creating it if necessary.
// The second result reports whether the node was just created.
func (g *pfg) ensure(ctx *Context, fn string, v ir.VarID, path ir.Path) (NodeID, bool) {
	if len(path) > g.maxDepth {
		path = path[:g.maxDepth]
	}
	key := nodeKey{ctx: ctx.id, fn: fn, v: v, path: path.String()}
	if id, ok := g.index[key]; ok {
		return id, false
	}

	n := &node{
		id:     NodeID(len(g.nodes)),
		ctx:    ctx,
		fn:     fn,
		v:      v,
		path:   path,
		edgeTo: make(map[NodeID]bool),
	}
	g.nodes = append(g.nodes, n)
	g.index[key] = n.id

	vk := varKey{ctx: ctx.id, fn: fn, v: v}
	g.byVar[vk] = append(g.byVar[vk], n.id)

	return n.id, true
}

// varNodes returns all nodes rooted at the given variable slot, in creation
// order.
func (g *pfg) varNodes(ctx *Context, fn string, v ir.VarID) []NodeID {
	return g.byVar[varKey{ctx: ctx.id, fn: fn, v: v}]
}

// addEdge inserts a flow edge src → dst. Reports whether the edge is new.
func (g *pfg) addEdge(src, dst NodeID) bool {
	if src == dst {
		return false
	}
	n := g.nodes[src]
	if n.edgeTo[dst] {
		return false
	}
	n.edgeTo[dst] = true
	n.succs = append(n.succs, dst)
	return true
}
