// Package ir defines the program model consumed by the analysis engine.
//
// A front-end lowers each source function into an ordered list of basic
// blocks containing statements. Every statement is tagged with an operation
// kind (move, copy, ref, addr-of, call or drop), carries its operand places
// (variable slot plus projection path) and a source span. The engine never
// inspects source text; everything it needs is in this representation.
package ir

import (
	"fmt"
	"strings"
)

// Span is a source position reported back in diagnostics.
type Span struct {
	File string `yaml:"file,omitempty"`
	Line int    `yaml:"line"`
	Col  int    `yaml:"col"`
}

func (s Span) IsValid() bool { return s.Line > 0 }

func (s Span) String() string {
	return fmt.Sprintf("%s:%d:%d", s.File, s.Line, s.Col)
}

// Compare orders spans by (file, line, col).
func (s Span) Compare(o Span) int {
	if c := strings.Compare(s.File, o.File); c != 0 {
		return c
	}
	if s.Line != o.Line {
		if s.Line < o.Line {
			return -1
		}
		return 1
	}
	if s.Col != o.Col {
		if s.Col < o.Col {
			return -1
		}
		return 1
	}
	return 0
}

// OpKind classifies how a value moves between places.
type OpKind int

const (
	Move OpKind = iota
	Copy
	Ref
	AddrOf
)

func (op OpKind) String() string {
	switch op {
	case Move:
		return "move"
	case Copy:
		return "copy"
	case Ref:
		return "ref"
	case AddrOf:
		return "addrof"
	default:
		return fmt.Sprintf("op(%d)", int(op))
	}
}

// SelKind is the kind of a single projection selector.
type SelKind int

const (
	Deref SelKind = iota
	Field
	Index
)

// Selector is one element of a projection path. Index is only meaningful
// for Field selectors.
type Selector struct {
	Kind  SelKind
	Index int
}

func (s Selector) String() string {
	switch s.Kind {
	case Deref:
		return "*"
	case Field:
		return fmt.Sprintf(".%d", s.Index)
	case Index:
		return "[]"
	default:
		return "?"
	}
}

// Path is an ordered projection applied to a variable slot.
type Path []Selector

func (p Path) Equal(q Path) bool {
	if len(p) != len(q) {
		return false
	}
	for i := range p {
		if p[i] != q[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether q is a (possibly equal) prefix of p.
func (p Path) HasPrefix(q Path) bool {
	if len(q) > len(p) {
		return false
	}
	for i := range q {
		if p[i] != q[i] {
			return false
		}
	}
	return true
}

func (p Path) ContainsDeref() bool {
	for _, s := range p {
		if s.Kind == Deref {
			return true
		}
	}
	return false
}

func (p Path) String() string {
	var b strings.Builder
	for _, s := range p {
		b.WriteString(s.String())
	}
	return b.String()
}

// VarID indexes a function's variable slots.
type VarID int

// BlockID indexes a function's basic blocks. Block 0 is the entry block.
type BlockID int

// Place is a variable slot with a projection applied to it.
type Place struct {
	Var  VarID
	Path Path
}

func (p Place) String() string {
	return fmt.Sprintf("%d%s", int(p.Var), p.Path)
}

// Var is a function-local or parameter slot.
//
// NeedsDrop marks slots whose type requires a destruction action when the
// slot goes out of scope; such slots own a droppable resource. PointerLike
// marks slots whose static shape is a pointer or reference, so that value
// copies of them still propagate aliasing.
type Var struct {
	Name        string
	NeedsDrop   bool
	PointerLike bool
	Decl        Span
}

// Stmt is one statement in a basic block. The concrete types are Assign,
// Call and Drop.
type Stmt interface {
	Pos() Span
	stmt()
}

// Assign moves, copies or takes a reference/address from Src into Dst.
// If Const is set the right-hand side is a constant and Src is meaningless.
type Assign struct {
	Dst   Place
	Src   Place
	Op    OpKind
	Const bool
	Span  Span
}

func (a *Assign) Pos() Span { return a.Span }
func (a *Assign) stmt()     {}

// Arg is one actual argument at a call site.
type Arg struct {
	Place Place
	Mode  OpKind
	Const bool
}

// Call invokes Callee with Args. If HasDst is set the call result is stored
// into Dst. The callee is resolved by name against the program; names that
// do not resolve denote externally-defined functions.
type Call struct {
	Callee string
	Args   []Arg
	Dst    Place
	HasDst bool
	Span   Span
}

func (c *Call) Pos() Span { return c.Span }
func (c *Call) stmt()     {}

// Drop records a destruction point for the resource reachable from Place.
// ScopeEnd distinguishes implicit scope-exit drops from explicit ones.
type Drop struct {
	Place    Place
	ScopeEnd bool
	Span     Span
}

func (d *Drop) Pos() Span { return d.Span }
func (d *Drop) stmt()     {}

// Block is a basic block: statements plus successor edges.
type Block struct {
	Succs []BlockID
	Stmts []Stmt
}

// Function is one analyzable function body.
type Function struct {
	Name   string
	Vars   []Var
	Params []VarID
	Ret    VarID
	HasRet bool
	Blocks []Block
	Span   Span
}

func (f *Function) String() string { return f.Name }

// Var returns the variable slot for id, or nil if out of range.
func (f *Function) Var(id VarID) *Var {
	if id < 0 || int(id) >= len(f.Vars) {
		return nil
	}
	return &f.Vars[id]
}

// Program is the whole-program model handed to the engine. Functions absent
// from Funcs are external: only their call sites are known.
type Program struct {
	Funcs   map[string]*Function
	Entries []string
}

func NewProgram() *Program {
	return &Program{Funcs: make(map[string]*Function)}
}

func (p *Program) AddFunc(f *Function) {
	p.Funcs[f.Name] = f
}

// Func returns the local function with the given name, or nil if the name
// denotes an external function.
func (p *Program) Func(name string) *Function {
	return p.Funcs[name]
}
