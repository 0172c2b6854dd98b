package memcheck

import (
	"fmt"

	"github.com/wrybill/memcheck/ir"
)

// ObjectID indexes the table of abstract objects. Each object stands for the
// droppable resource owned by one variable slot in one analysis context.
type ObjectID int

// Object is one abstract resource. Objects are minted for droppable slots
// and for pointer-holding slots; only droppable objects feed the
// classifiers, the rest exist for alias queries.
type Object struct {
	id        ObjectID
	ctx       *Context
	fn        string
	v         ir.VarID
	name      string  // declared variable name, may be empty
	site      ir.Span // declaration site, or the function span as fallback
	droppable bool
}

func (o *Object) Site() ir.Span { return o.site }

func (o *Object) String() string {
	if o.name != "" {
		return fmt.Sprintf("obj(%s.%s)", o.fn, o.name)
	}
	return fmt.Sprintf("obj(%s._%d)", o.fn, int(o.v))
}

type objectTable struct {
	objects []*Object
}

func (t *objectTable) mint(ctx *Context, fn *ir.Function, v ir.VarID) *Object {
	vr := fn.Var(v)
	site := vr.Decl
	if !site.IsValid() {
		site = fn.Span
	}
	o := &Object{
		id:        ObjectID(len(t.objects)),
		ctx:       ctx,
		fn:        fn.Name,
		v:         v,
		name:      vr.Name,
		site:      site,
		droppable: vr.NeedsDrop,
	}
	t.objects = append(t.objects, o)
	return o
}

func (t *objectTable) get(id ObjectID) *Object { return t.objects[id] }

func (t *objectTable) count() int { return len(t.objects) }
