package memcheck

import (
	"github.com/yourbasic/graph"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"golang.org/x/tools/container/intsets"

	"github.com/wrybill/memcheck/ir"
)

// blockGraph holds every basic block of the program under a single global
// numbering, with intraprocedural successor edges plus call and return edges
// added as the call graph is discovered. Classifiers query reachability on
// it after the flow fixpoint has converged.
type blockGraph struct {
	g    *graph.Mutable
	base map[string]int // function name -> global id of its block 0

	reach map[int]*intsets.Sparse
}

func newBlockGraph(prog *ir.Program) *blockGraph {
	names := maps.Keys(prog.Funcs)
	slices.Sort(names)

	bg := &blockGraph{
		base:  make(map[string]int, len(names)),
		reach: make(map[int]*intsets.Sparse),
	}

	total := 0
	for _, name := range names {
		bg.base[name] = total
		total += len(prog.Funcs[name].Blocks)
	}
	bg.g = graph.New(total)

	for _, name := range names {
		f := prog.Funcs[name]
		for bi, b := range f.Blocks {
			for _, s := range b.Succs {
				bg.g.Add(bg.base[name]+bi, bg.base[name]+int(s))
			}
		}
	}
	return bg
}

// globalID maps a function-local block id to the global numbering.
func (bg *blockGraph) globalID(fn string, b ir.BlockID) int {
	return bg.base[fn] + int(b)
}

// addCallEdges wires a resolved call site into the graph: control flows from
// the calling block into the callee's entry, and from every exit block of
// the callee back to the calling block's intraprocedural successors.
func (bg *blockGraph) addCallEdges(caller *ir.Function, callBlock ir.BlockID, callee *ir.Function) {
	bg.g.Add(bg.globalID(caller.Name, callBlock), bg.base[callee.Name])

	var rets []int
	for bi, b := range callee.Blocks {
		if len(b.Succs) == 0 {
			rets = append(rets, bg.globalID(callee.Name, ir.BlockID(bi)))
		}
	}
	for _, s := range caller.Blocks[callBlock].Succs {
		to := bg.globalID(caller.Name, s)
		for _, r := range rets {
			bg.g.Add(r, to)
		}
	}
}

// canReach reports whether control starting in global block from may arrive
// at global block to. Reachability is reflexive. Results are memoized per
// source block; callers must not add edges after the first query.
func (bg *blockGraph) canReach(from, to int) bool {
	if from == to {
		return true
	}
	set, ok := bg.reach[from]
	if !ok {
		set = new(intsets.Sparse)
		graph.BFS(bg.g, from, func(_, w int, _ int64) {
			set.Insert(w)
		})
		bg.reach[from] = set
	}
	return set.Has(to)
}
