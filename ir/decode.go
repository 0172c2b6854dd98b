package ir

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// The on-disk program model is YAML. Places are written compactly as a
// variable slot number followed by projection selectors, e.g. "2", "2*",
// "0.1*" (slot 0, field 1, deref) or "3[]".

// ParsePlace parses the textual place encoding used by the codec.
func ParsePlace(s string) (Place, error) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 {
		return Place{}, fmt.Errorf("place %q: missing variable slot", s)
	}
	v, err := strconv.Atoi(s[:i])
	if err != nil {
		return Place{}, fmt.Errorf("place %q: %w", s, err)
	}

	p := Place{Var: VarID(v)}
	for i < len(s) {
		switch {
		case s[i] == '*':
			p.Path = append(p.Path, Selector{Kind: Deref})
			i++
		case s[i] == '.':
			j := i + 1
			for j < len(s) && s[j] >= '0' && s[j] <= '9' {
				j++
			}
			if j == i+1 {
				return Place{}, fmt.Errorf("place %q: field selector without index", s)
			}
			f, _ := strconv.Atoi(s[i+1 : j])
			p.Path = append(p.Path, Selector{Kind: Field, Index: f})
			i = j
		case strings.HasPrefix(s[i:], "[]"):
			p.Path = append(p.Path, Selector{Kind: Index})
			i += 2
		default:
			return Place{}, fmt.Errorf("place %q: unexpected selector at %q", s, s[i:])
		}
	}
	return p, nil
}

type fileArg struct {
	Place string `yaml:"place,omitempty"`
	Mode  string `yaml:"mode,omitempty"`
	Const bool   `yaml:"const,omitempty"`
}

type fileStmt struct {
	Op   string `yaml:"op"`
	Span Span   `yaml:"span,omitempty"`

	// assignments
	Dst   string `yaml:"dst,omitempty"`
	Src   string `yaml:"src,omitempty"`
	Const bool   `yaml:"const,omitempty"`

	// calls
	Callee string    `yaml:"callee,omitempty"`
	Args   []fileArg `yaml:"args,omitempty"`

	// drops
	Place string `yaml:"place,omitempty"`
	Scope bool   `yaml:"scope,omitempty"`
}

type fileBlock struct {
	Succs []int      `yaml:"succs,omitempty"`
	Stmts []fileStmt `yaml:"stmts,omitempty"`
}

type fileVar struct {
	Name string `yaml:"name,omitempty"`
	Drop bool   `yaml:"drop,omitempty"`
	Ptr  bool   `yaml:"ptr,omitempty"`
	Decl Span   `yaml:"decl,omitempty"`
}

type fileFunction struct {
	Name   string      `yaml:"name"`
	Span   Span        `yaml:"span,omitempty"`
	Vars   []fileVar   `yaml:"vars,omitempty"`
	Params []int       `yaml:"params,omitempty"`
	Ret    *int        `yaml:"ret,omitempty"`
	Blocks []fileBlock `yaml:"blocks"`
}

type fileProgram struct {
	Entries   []string       `yaml:"entries,omitempty"`
	Functions []fileFunction `yaml:"functions"`
}

func parseOp(s string) (OpKind, error) {
	switch s {
	case "move":
		return Move, nil
	case "copy":
		return Copy, nil
	case "ref":
		return Ref, nil
	case "addrof":
		return AddrOf, nil
	default:
		return 0, fmt.Errorf("unknown operation kind %q", s)
	}
}

func (ff *fileFunction) function() (*Function, error) {
	f := &Function{Name: ff.Name, Span: ff.Span}

	for _, fv := range ff.Vars {
		f.Vars = append(f.Vars, Var{
			Name:        fv.Name,
			NeedsDrop:   fv.Drop,
			PointerLike: fv.Ptr,
			Decl:        fv.Decl,
		})
	}
	for _, p := range ff.Params {
		f.Params = append(f.Params, VarID(p))
	}
	if ff.Ret != nil {
		f.HasRet = true
		f.Ret = VarID(*ff.Ret)
	}

	for bi, fb := range ff.Blocks {
		var b Block
		for _, s := range fb.Succs {
			b.Succs = append(b.Succs, BlockID(s))
		}
		for si, fs := range fb.Stmts {
			st, err := fs.statement()
			if err != nil {
				return nil, fmt.Errorf("%s: block %d stmt %d: %w", ff.Name, bi, si, err)
			}
			b.Stmts = append(b.Stmts, st)
		}
		f.Blocks = append(f.Blocks, b)
	}

	return f, nil
}

func (fs *fileStmt) statement() (Stmt, error) {
	switch fs.Op {
	case "call":
		c := &Call{Callee: fs.Callee, Span: fs.Span}
		for _, fa := range fs.Args {
			mode := Move
			if fa.Mode != "" {
				var err error
				if mode, err = parseOp(fa.Mode); err != nil {
					return nil, err
				}
			}
			arg := Arg{Mode: mode, Const: fa.Const}
			if !fa.Const {
				p, err := ParsePlace(fa.Place)
				if err != nil {
					return nil, err
				}
				arg.Place = p
			}
			c.Args = append(c.Args, arg)
		}
		if fs.Dst != "" {
			p, err := ParsePlace(fs.Dst)
			if err != nil {
				return nil, err
			}
			c.Dst, c.HasDst = p, true
		}
		return c, nil

	case "drop":
		p, err := ParsePlace(fs.Place)
		if err != nil {
			return nil, err
		}
		return &Drop{Place: p, ScopeEnd: fs.Scope, Span: fs.Span}, nil

	default:
		op, err := parseOp(fs.Op)
		if err != nil {
			return nil, err
		}
		a := &Assign{Op: op, Const: fs.Const, Span: fs.Span}
		if a.Dst, err = ParsePlace(fs.Dst); err != nil {
			return nil, err
		}
		if !a.Const {
			if a.Src, err = ParsePlace(fs.Src); err != nil {
				return nil, err
			}
		}
		return a, nil
	}
}

// Decode reads a YAML-encoded program model.
func Decode(r io.Reader) (*Program, error) {
	var fp fileProgram
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&fp); err != nil {
		return nil, fmt.Errorf("decoding program: %w", err)
	}

	prog := NewProgram()
	prog.Entries = fp.Entries
	for i := range fp.Functions {
		f, err := fp.Functions[i].function()
		if err != nil {
			return nil, err
		}
		if prog.Func(f.Name) != nil {
			return nil, fmt.Errorf("duplicate function %q", f.Name)
		}
		prog.AddFunc(f)
	}
	return prog, nil
}

// DecodeFile reads a YAML-encoded program model from a file.
func DecodeFile(path string) (*Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}
