package memcheck

import (
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/wrybill/memcheck/ir"
)

// objDrop is one destruction event attributed to an abstract object: some
// node whose points-to set contains the object carries a drop at this block.
type objDrop struct {
	block   int
	span    ir.Span
	varName string
}

// classify runs the two read-only passes over the converged store. Both are
// pure functions of the store and the block graph, so running them again
// yields the same records.
func (e *engine) classify() ([]UseAfterFreeRecord, []MultiDropRecord) {
	drops := e.collectDrops()
	return e.checkUses(drops), e.checkMultiDrops(drops)
}

// collectDrops attributes every destruction event to the droppable objects
// the dropped place may hold. Node order is creation order, which makes the
// per-object event lists deterministic.
func (e *engine) collectDrops() map[ObjectID][]objDrop {
	drops := make(map[ObjectID][]objDrop)
	for _, n := range e.graph.nodes {
		if len(n.drops) == 0 {
			continue
		}
		name := e.varName(n.fn, n.v)
		for _, id := range n.pts.AppendTo(nil) {
			obj := ObjectID(id)
			if !e.objs.get(obj).droppable {
				continue
			}
			for _, ev := range n.drops {
				drops[obj] = append(drops[obj], objDrop{
					block:   ev.block,
					span:    ev.span,
					varName: name,
				})
			}
		}
	}
	return drops
}

func (e *engine) varName(fn string, v ir.VarID) string {
	f := e.prog.Func(fn)
	if f == nil {
		return ""
	}
	if vr := f.Var(v); vr != nil {
		return vr.Name
	}
	return ""
}

type spanPair struct {
	a, b ir.Span
}

// checkMultiDrops reports objects with two destruction events where control
// can flow from one to the other. Either direction suffices; the record
// orders the events along that flow.
func (e *engine) checkMultiDrops(drops map[ObjectID][]objDrop) []MultiDropRecord {
	best := make(map[spanPair]MultiDropRecord)

	objs := maps.Keys(drops)
	slices.Sort(objs)
	for _, obj := range objs {
		evs := drops[obj]
		site := e.objs.get(obj).site
		for i := 0; i < len(evs); i++ {
			for j := i + 1; j < len(evs); j++ {
				first, then := evs[i], evs[j]
				switch {
				case e.blocks.canReach(first.block, then.block):
					// ordered as is
				case e.blocks.canReach(then.block, first.block):
					first, then = then, first
				default:
					continue
				}
				if first.span == then.span {
					continue
				}
				rec := MultiDropRecord{
					Object:    site,
					FirstDrop: first.span,
					ThenDrop:  then.span,
					FirstVar:  first.varName,
					ThenVar:   then.varName,
				}
				keep(best, spanPair{rec.FirstDrop, rec.ThenDrop}, rec,
					rec.FirstVar != "" || rec.ThenVar != "")
			}
		}
	}

	out := maps.Values(best)
	slices.SortFunc(out, func(a, b MultiDropRecord) bool {
		if c := a.FirstDrop.Compare(b.FirstDrop); c != 0 {
			return c < 0
		}
		return a.ThenDrop.Compare(b.ThenDrop) < 0
	})
	return out
}

// checkUses pairs every recorded dereference with the destruction events of
// the objects the dereferenced pointer may hold. Events in the same block as
// the use are skipped: statement order inside a block is not modeled, and
// the common pattern there is the use preceding the drop.
func (e *engine) checkUses(drops map[ObjectID][]objDrop) []UseAfterFreeRecord {
	best := make(map[spanPair]UseAfterFreeRecord)

	for _, use := range e.uses {
		n := e.graph.node(use.node)
		useVar := e.varName(n.fn, n.v)
		for _, id := range n.pts.AppendTo(nil) {
			obj := ObjectID(id)
			if !e.objs.get(obj).droppable {
				continue
			}
			for _, ev := range drops[obj] {
				if ev.block == use.block || !e.blocks.canReach(ev.block, use.block) {
					continue
				}
				rec := UseAfterFreeRecord{
					DropSpan: ev.span,
					UseSpan:  use.span,
					DropVar:  ev.varName,
					UseVar:   useVar,
				}
				keep(best, spanPair{rec.DropSpan, rec.UseSpan}, rec,
					rec.DropVar != "" || rec.UseVar != "")
			}
		}
	}

	out := maps.Values(best)
	slices.SortFunc(out, func(a, b UseAfterFreeRecord) bool {
		if c := a.DropSpan.Compare(b.DropSpan); c != 0 {
			return c < 0
		}
		return a.UseSpan.Compare(b.UseSpan) < 0
	})
	return out
}

// keep deduplicates records by span pair, preferring a record that names at
// least one variable over one that names none.
func keep[R any](best map[spanPair]R, key spanPair, rec R, named bool) {
	if _, ok := best[key]; !ok || named {
		best[key] = rec
	}
}
