package memcheck

import (
	"fmt"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"golang.org/x/tools/container/intsets"

	"github.com/wrybill/memcheck/ir"
)

// MultiDropRecord reports that the same abstract object may be destroyed
// twice: once at FirstDrop and again at ThenDrop. Var names are the declared
// names of the dropped places and may be empty for temporaries.
type MultiDropRecord struct {
	Object    ir.Span
	FirstDrop ir.Span
	ThenDrop  ir.Span
	FirstVar  string
	ThenVar   string
}

func (r MultiDropRecord) String() string {
	return fmt.Sprintf("double drop: first at %s, again at %s", r.FirstDrop, r.ThenDrop)
}

// UseAfterFreeRecord reports a dereference at UseSpan of storage that may
// already have been destroyed at DropSpan.
type UseAfterFreeRecord struct {
	DropSpan ir.Span
	UseSpan  ir.Span
	DropVar  string
	UseVar   string
}

func (r UseAfterFreeRecord) String() string {
	return fmt.Sprintf("use after free: dropped at %s, used at %s", r.DropSpan, r.UseSpan)
}

// Summary aggregates counts for the end-of-run summary line.
type Summary struct {
	Entries      int
	Functions    int
	Contexts     int
	Objects      int
	UseAfterFree int
	MultiDrop    int
}

// CallEdge is one resolved call-site edge of the discovered call graph.
type CallEdge struct {
	Caller    string
	Callee    string
	CallerCtx *Context
	CalleeCtx *Context
	Site      ir.Span
	External  bool
}

// CallGraph holds the (context, function) pairs that were analyzed and the
// call-site edges between them.
type CallGraph struct {
	edges []CallEdge
	funcs map[string]bool
}

func newCallGraph() *CallGraph {
	return &CallGraph{funcs: make(map[string]bool)}
}

func (cg *CallGraph) addFunc(name string) { cg.funcs[name] = true }
func (cg *CallGraph) addEdge(e CallEdge)  { cg.edges = append(cg.edges, e) }
func (cg *CallGraph) Edges() []CallEdge   { return cg.edges }

// Functions returns the names of all analyzed functions in sorted order.
func (cg *CallGraph) Functions() []string {
	names := maps.Keys(cg.funcs)
	slices.Sort(names)
	return names
}

// Callees returns the sorted, deduplicated callee names of fn.
func (cg *CallGraph) Callees(fn string) []string {
	seen := make(map[string]bool)
	for _, e := range cg.edges {
		if e.Caller == fn {
			seen[e.Callee] = true
		}
	}
	names := maps.Keys(seen)
	slices.Sort(names)
	return names
}

// Result is the outcome of one analysis run. The classifier outputs are
// fixed once Analyze returns; the query methods are read-only.
type Result struct {
	CallGraph *CallGraph

	// Skipped maps function names to the validation error that excluded
	// them from the analysis.
	Skipped map[string]error

	uaf     []UseAfterFreeRecord
	multi   []MultiDropRecord
	summary Summary

	graph *pfg
	objs  *objectTable
	prog  *ir.Program
}

// UseAfterFree returns the use-after-free findings, sorted and deduplicated
// by span pair.
func (r *Result) UseAfterFree() []UseAfterFreeRecord { return r.uaf }

// MultiDrops returns the double-drop findings, sorted and deduplicated by
// span pair.
func (r *Result) MultiDrops() []MultiDropRecord { return r.multi }

func (r *Result) Summary() Summary { return r.summary }

// Pointer is a query handle over the converged points-to store for one named
// variable, unioned across all analysis contexts.
type Pointer struct {
	pts  intsets.Sparse
	objs *objectTable
}

// Pointer looks up the variable named varName in function fn. The second
// result is false when no such variable was reached by the analysis.
func (r *Result) Pointer(fn, varName string) (*Pointer, bool) {
	f := r.prog.Func(fn)
	if f == nil {
		return nil, false
	}
	v := ir.VarID(-1)
	for i := range f.Vars {
		if f.Vars[i].Name == varName {
			v = ir.VarID(i)
			break
		}
	}
	if v < 0 {
		return nil, false
	}

	p := &Pointer{objs: r.objs}
	found := false
	for _, n := range r.graph.nodes {
		if n.fn == fn && n.v == v && len(n.path) == 0 {
			p.pts.UnionWith(&n.pts)
			found = true
		}
	}
	if !found {
		return nil, false
	}
	return p, true
}

// PointsTo returns the allocation sites of the objects the pointer may refer
// to, in span order.
func (p *Pointer) PointsTo() []ir.Span {
	ids := p.pts.AppendTo(nil)
	spans := make([]ir.Span, 0, len(ids))
	for _, id := range ids {
		spans = append(spans, p.objs.get(ObjectID(id)).site)
	}
	slices.SortFunc(spans, func(a, b ir.Span) bool { return a.Compare(b) < 0 })
	return spans
}

// MayAlias reports whether the two pointers may refer to the same object.
func (p *Pointer) MayAlias(o *Pointer) bool {
	return p.pts.Intersects(&o.pts)
}
