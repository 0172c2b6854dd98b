package memcheck

import (
	"golang.org/x/tools/container/intsets"

	"github.com/wrybill/memcheck/ir"
)

// processFunc visits a function body once per context: it mints the abstract
// objects owned by the body's slots, contributes flow edges for every
// statement, records destruction and dereference events, and schedules the
// local callees it resolves.
func (e *engine) processFunc(ctx *Context, fn *ir.Function) {
	if err := e.validate(fn); err != nil {
		return
	}
	e.cg.addFunc(fn.Name)

	for i := range fn.Vars {
		v := &fn.Vars[i]
		if !v.NeedsDrop && !v.PointerLike {
			continue
		}
		obj := e.objs.mint(ctx, fn, ir.VarID(i))
		e.seedObject(ctx, fn.Name, ir.VarID(i), obj)
	}

	for bi := range fn.Blocks {
		for si, st := range fn.Blocks[bi].Stmts {
			switch s := st.(type) {
			case *ir.Assign:
				e.assign(ctx, fn, ir.BlockID(bi), s)
			case *ir.Drop:
				e.drop(ctx, fn, ir.BlockID(bi), s)
			case *ir.Call:
				e.call(ctx, fn, ir.BlockID(bi), si, s)
			}
		}
	}
}

// validate caches the structural check per function name.
func (e *engine) validate(fn *ir.Function) error {
	if err, ok := e.checked[fn.Name]; ok {
		return err
	}
	err := ir.Validate(fn)
	e.checked[fn.Name] = err
	if err != nil {
		e.log.Warnf("skipping %s: %v", fn.Name, err)
	}
	return err
}

func (e *engine) seedObject(ctx *Context, fn string, v ir.VarID, obj *Object) {
	id := e.nodeAt(ctx, fn, v, nil)
	var seed intsets.Sparse
	seed.Insert(int(obj.id))
	e.push(id, &seed)
}

// flowsAliases reports whether an operation of the given kind propagates
// object identity from the source slot. Moves and borrows always do; plain
// value copies only matter when the copied slot can hold a resource.
func flowsAliases(op ir.OpKind, src *ir.Var) bool {
	if op != ir.Copy {
		return true
	}
	return src != nil && (src.PointerLike || src.NeedsDrop)
}

// derefBase trims a place to the pointer actually being dereferenced: the
// projection prefix before the first dereference selector.
func derefBase(p ir.Place) ir.Place {
	for i, sel := range p.Path {
		if sel.Kind == ir.Deref {
			return ir.Place{Var: p.Var, Path: p.Path[:i]}
		}
	}
	return p
}

func (e *engine) recordUse(ctx *Context, fn *ir.Function, p ir.Place, b ir.BlockID, span ir.Span) {
	base := derefBase(p)
	e.uses = append(e.uses, useEvent{
		node:  e.nodeFor(ctx, fn, base),
		block: e.blocks.globalID(fn.Name, b),
		span:  span,
	})
}

func (e *engine) assign(ctx *Context, fn *ir.Function, b ir.BlockID, s *ir.Assign) {
	if s.Dst.Path.ContainsDeref() {
		e.recordUse(ctx, fn, s.Dst, b, s.Span)
	}
	if s.Const {
		return
	}
	if s.Src.Path.ContainsDeref() {
		e.recordUse(ctx, fn, s.Src, b, s.Span)
	}
	if flowsAliases(s.Op, fn.Var(s.Src.Var)) {
		e.connect(e.nodeFor(ctx, fn, s.Src), e.nodeFor(ctx, fn, s.Dst))
	}
}

func (e *engine) drop(ctx *Context, fn *ir.Function, b ir.BlockID, s *ir.Drop) {
	id := e.nodeFor(ctx, fn, s.Place)
	n := e.graph.node(id)
	n.drops = append(n.drops, dropEvent{
		block:    e.blocks.globalID(fn.Name, b),
		span:     s.Span,
		scopeEnd: s.ScopeEnd,
	})
}

func (e *engine) call(ctx *Context, fn *ir.Function, b ir.BlockID, si int, s *ir.Call) {
	for _, a := range s.Args {
		if !a.Const && a.Place.Path.ContainsDeref() {
			e.recordUse(ctx, fn, a.Place, b, s.Span)
		}
	}
	if s.HasDst && s.Dst.Path.ContainsDeref() {
		e.recordUse(ctx, fn, s.Dst, b, s.Span)
	}

	// A malformed callee is summarized like an external one so the caller
	// analysis can continue.
	callee := e.prog.Func(s.Callee)
	if callee == nil || e.validate(callee) != nil {
		e.externalCall(ctx, fn, s)
		return
	}

	site := e.siteID(fn.Name, int(b), si)
	cctx := e.cm.Select(ctx, site, callee.Name)
	e.cg.addEdge(CallEdge{
		Caller:    fn.Name,
		Callee:    callee.Name,
		CallerCtx: ctx,
		CalleeCtx: cctx,
		Site:      s.Span,
	})
	e.discover(cctx, callee)
	e.blocks.addCallEdges(fn, b, callee)

	nargs := len(s.Args)
	if nargs != len(callee.Params) {
		e.log.Warnf("%s: call to %s passes %d args for %d params",
			fn.Name, callee.Name, nargs, len(callee.Params))
		if len(callee.Params) < nargs {
			nargs = len(callee.Params)
		}
	}
	for i := 0; i < nargs; i++ {
		a := s.Args[i]
		if a.Const || !flowsAliases(a.Mode, fn.Var(a.Place.Var)) {
			continue
		}
		param := e.nodeAt(cctx, callee.Name, callee.Params[i], nil)
		e.connect(e.nodeFor(ctx, fn, a.Place), param)
	}
	if s.HasDst && callee.HasRet {
		ret := e.nodeAt(cctx, callee.Name, callee.Ret, nil)
		e.connect(ret, e.nodeFor(ctx, fn, s.Dst))
	}
}

// externalCall summarizes a callee without a body: object identity may flow
// from every pointer-carrying argument into the result.
func (e *engine) externalCall(ctx *Context, fn *ir.Function, s *ir.Call) {
	e.cg.addEdge(CallEdge{
		Caller:    fn.Name,
		Callee:    s.Callee,
		CallerCtx: ctx,
		CalleeCtx: ctx,
		Site:      s.Span,
		External:  true,
	})
	if !s.HasDst {
		return
	}
	dst := e.nodeFor(ctx, fn, s.Dst)
	for _, a := range s.Args {
		if a.Const || !flowsAliases(a.Mode, fn.Var(a.Place.Var)) {
			continue
		}
		e.connect(e.nodeFor(ctx, fn, a.Place), dst)
	}
}
