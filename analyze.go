// Package memcheck implements a whole-program, flow-insensitive pointer and
// ownership analysis that finds places where a destroyed resource may be
// destroyed again or dereferenced afterwards.
//
// The engine interleaves call-graph discovery with points-to propagation on
// a single worklist. Function bodies are visited once per analysis context;
// visiting a body contributes flow edges and destruction events to the
// place-flow graph, and points-to deltas diffuse through the edges until a
// fixpoint. Classification runs afterwards on the converged store.
package memcheck

import (
	"errors"

	"github.com/sirupsen/logrus"
	"golang.org/x/tools/container/intsets"

	"github.com/wrybill/memcheck/internal/queue"
	"github.com/wrybill/memcheck/ir"
)

// AnalysisConfig are the inputs to Analyze. Only Program is mandatory;
// zero bounds select the defaults below.
type AnalysisConfig struct {
	Program *ir.Program

	// Entries are the root functions. When empty, the program's own entry
	// list is used.
	Entries []string

	// ContextDepth is the maximum call-string length (default 2).
	ContextDepth int
	// MaxContextsPerFunc bounds the distinct contexts minted per function
	// before widening to a collapsed context (default 64).
	MaxContextsPerFunc int
	// MaxProjectionDepth truncates projection paths of flow-graph nodes
	// (default 8).
	MaxProjectionDepth int

	Logger logrus.FieldLogger
}

const (
	defaultContextDepth       = 2
	defaultMaxContextsPerFunc = 64
	defaultMaxProjectionDepth = 8
)

// ErrNoEntries is returned by Analyze when no entry function resolves to a
// function body in the program.
var ErrNoEntries = errors.New("no entry function resolvable")

type workItem interface{ work() }

// discoverItem schedules the first visit of a function body in a context.
type discoverItem struct {
	ctx *Context
	fn  *ir.Function
}

// ptsItem schedules merging a points-to delta into a node.
type ptsItem struct {
	node  NodeID
	delta *intsets.Sparse
}

func (discoverItem) work() {}
func (ptsItem) work()      {}

type visitKey struct {
	ctx int
	fn  string
}

type siteKey struct {
	fn    string
	block int
	stmt  int
}

type engine struct {
	prog *ir.Program
	log  logrus.FieldLogger

	cm     *contextManager
	graph  *pfg
	objs   *objectTable
	blocks *blockGraph
	cg     *CallGraph

	work    queue.Queue[workItem]
	visited map[visitKey]bool
	checked map[string]error // function name -> validation outcome

	uses []useEvent

	sites    map[siteKey]SiteID
	nextSite SiteID
}

// Analyze runs the whole-program analysis described in the package comment.
// It fails only when no entry function resolves; malformed functions are
// skipped with a warning and reported in Result.Skipped.
func Analyze(cfg AnalysisConfig) (*Result, error) {
	if cfg.ContextDepth <= 0 {
		cfg.ContextDepth = defaultContextDepth
	}
	if cfg.MaxContextsPerFunc <= 0 {
		cfg.MaxContextsPerFunc = defaultMaxContextsPerFunc
	}
	if cfg.MaxProjectionDepth <= 0 {
		cfg.MaxProjectionDepth = defaultMaxProjectionDepth
	}
	if cfg.Logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		cfg.Logger = l
	}
	if cfg.Program == nil {
		return nil, ErrNoEntries
	}

	entries := cfg.Entries
	if len(entries) == 0 {
		entries = cfg.Program.Entries
	}

	e := &engine{
		prog:    cfg.Program,
		log:     cfg.Logger,
		cm:      newContextManager(cfg.ContextDepth, cfg.MaxContextsPerFunc),
		graph:   newPFG(cfg.MaxProjectionDepth),
		objs:    &objectTable{},
		blocks:  newBlockGraph(cfg.Program),
		cg:      newCallGraph(),
		visited: make(map[visitKey]bool),
		checked: make(map[string]error),
		sites:   make(map[siteKey]SiteID),
	}

	root := e.cm.Root()
	resolved := 0
	for _, name := range entries {
		f := e.prog.Func(name)
		if f == nil {
			e.log.Warnf("entry %q does not resolve to a function body", name)
			continue
		}
		resolved++
		e.discover(root, f)
	}
	if resolved == 0 {
		return nil, ErrNoEntries
	}

	for !e.work.Empty() {
		switch item := e.work.Pop().(type) {
		case discoverItem:
			e.processFunc(item.ctx, item.fn)
		case ptsItem:
			e.merge(item)
		}
	}

	e.log.Debugf("fixpoint: %d nodes, %d objects, %d contexts",
		e.graph.count(), e.objs.count(), e.cm.count())

	uaf, multi := e.classify()

	res := &Result{
		CallGraph: e.cg,
		Skipped:   make(map[string]error),
		uaf:       uaf,
		multi:     multi,
		graph:     e.graph,
		objs:      e.objs,
		prog:      e.prog,
		summary: Summary{
			Entries:      resolved,
			Functions:    len(e.cg.funcs),
			Contexts:     e.cm.count(),
			Objects:      e.objs.count(),
			UseAfterFree: len(uaf),
			MultiDrop:    len(multi),
		},
	}
	for name, err := range e.checked {
		if err != nil {
			res.Skipped[name] = err
		}
	}
	return res, nil
}

// discover schedules (ctx, fn) for processing once.
func (e *engine) discover(ctx *Context, fn *ir.Function) {
	key := visitKey{ctx: ctx.id, fn: fn.Name}
	if e.visited[key] {
		return
	}
	e.visited[key] = true
	e.work.Push(discoverItem{ctx: ctx, fn: fn})
}

func (e *engine) push(id NodeID, delta *intsets.Sparse) {
	d := new(intsets.Sparse)
	d.Copy(delta)
	e.work.Push(ptsItem{node: id, delta: d})
}

// nodeAt returns the node for the tuple, creating it if needed. A freshly
// created node with a non-empty path inherits the facts of its projection
// prefixes, so late materialization never loses earlier deltas.
func (e *engine) nodeAt(ctx *Context, fn string, v ir.VarID, path ir.Path) NodeID {
	id, isNew := e.graph.ensure(ctx, fn, v, path)
	if !isNew {
		return id
	}
	n := e.graph.node(id)
	for _, mid := range e.graph.varNodes(ctx, fn, v) {
		if mid == id {
			continue
		}
		m := e.graph.node(mid)
		if len(m.path) < len(n.path) && n.path.HasPrefix(m.path) && !m.pts.IsEmpty() {
			e.push(id, &m.pts)
		}
	}
	return id
}

func (e *engine) nodeFor(ctx *Context, fn *ir.Function, p ir.Place) NodeID {
	return e.nodeAt(ctx, fn.Name, p.Var, p.Path)
}

func concatPath(a, b ir.Path) ir.Path {
	out := make(ir.Path, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}

// connect adds a flow edge and flushes the facts already known at the source
// (and at its projection descendants, shifted by the residual suffix) to the
// destination.
func (e *engine) connect(src, dst NodeID) {
	if !e.graph.addEdge(src, dst) {
		return
	}
	s := e.graph.node(src)
	d := e.graph.node(dst)
	if !s.pts.IsEmpty() {
		e.push(dst, &s.pts)
	}
	for _, mid := range e.graph.varNodes(s.ctx, s.fn, s.v) {
		if mid == src {
			continue
		}
		m := e.graph.node(mid)
		if len(m.path) > len(s.path) && m.path.HasPrefix(s.path) && !m.pts.IsEmpty() {
			residual := m.path[len(s.path):]
			tid := e.nodeAt(d.ctx, d.fn, d.v, concatPath(d.path, residual))
			e.push(tid, &m.pts)
		}
	}
}

// merge folds a delta into a node and diffuses the growth: along the node's
// own edges, down to projection descendants (destroying a whole destroys its
// parts), and through edges attached to projection prefixes with the
// residual suffix re-applied on the far side.
func (e *engine) merge(item ptsItem) {
	n := e.graph.node(item.node)

	var diff intsets.Sparse
	diff.Difference(item.delta, &n.pts)
	if diff.IsEmpty() {
		return
	}
	n.pts.UnionWith(&diff)

	for _, s := range n.succs {
		e.push(s, &diff)
	}

	for _, mid := range e.graph.varNodes(n.ctx, n.fn, n.v) {
		if mid == n.id {
			continue
		}
		m := e.graph.node(mid)
		switch {
		case len(m.path) > len(n.path) && m.path.HasPrefix(n.path):
			e.push(mid, &diff)
		case len(m.path) < len(n.path) && n.path.HasPrefix(m.path):
			residual := n.path[len(m.path):]
			for _, t := range m.succs {
				tn := e.graph.node(t)
				tid := e.nodeAt(tn.ctx, tn.fn, tn.v, concatPath(tn.path, residual))
				e.push(tid, &diff)
			}
		}
	}
}

// siteID interns a stable id per call statement.
func (e *engine) siteID(fn string, block, stmt int) SiteID {
	key := siteKey{fn: fn, block: block, stmt: stmt}
	if id, ok := e.sites[key]; ok {
		return id
	}
	id := e.nextSite
	e.nextSite++
	e.sites[key] = id
	return id
}
