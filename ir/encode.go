package ir

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Encode writes the program model in the YAML form read by Decode.
// Functions are emitted in name order so the output is stable.
func Encode(w io.Writer, prog *Program) error {
	var fp fileProgram
	fp.Entries = prog.Entries

	names := maps.Keys(prog.Funcs)
	slices.Sort(names)
	for _, name := range names {
		ff, err := encodeFunction(prog.Funcs[name])
		if err != nil {
			return err
		}
		fp.Functions = append(fp.Functions, ff)
	}

	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(&fp)
}

func encodeFunction(f *Function) (fileFunction, error) {
	ff := fileFunction{Name: f.Name, Span: f.Span}

	for _, v := range f.Vars {
		ff.Vars = append(ff.Vars, fileVar{
			Name: v.Name,
			Drop: v.NeedsDrop,
			Ptr:  v.PointerLike,
			Decl: v.Decl,
		})
	}
	for _, p := range f.Params {
		ff.Params = append(ff.Params, int(p))
	}
	if f.HasRet {
		ret := int(f.Ret)
		ff.Ret = &ret
	}

	for _, b := range f.Blocks {
		var fb fileBlock
		for _, s := range b.Succs {
			fb.Succs = append(fb.Succs, int(s))
		}
		for _, st := range b.Stmts {
			fs, err := encodeStmt(st)
			if err != nil {
				return ff, fmt.Errorf("%s: %w", f.Name, err)
			}
			fb.Stmts = append(fb.Stmts, fs)
		}
		ff.Blocks = append(ff.Blocks, fb)
	}

	return ff, nil
}

func encodeStmt(st Stmt) (fileStmt, error) {
	switch s := st.(type) {
	case *Assign:
		fs := fileStmt{Op: s.Op.String(), Dst: s.Dst.String(), Const: s.Const, Span: s.Span}
		if !s.Const {
			fs.Src = s.Src.String()
		}
		return fs, nil
	case *Call:
		fs := fileStmt{Op: "call", Callee: s.Callee, Span: s.Span}
		for _, a := range s.Args {
			fa := fileArg{Mode: a.Mode.String(), Const: a.Const}
			if !a.Const {
				fa.Place = a.Place.String()
			}
			fs.Args = append(fs.Args, fa)
		}
		if s.HasDst {
			fs.Dst = s.Dst.String()
		}
		return fs, nil
	case *Drop:
		return fileStmt{Op: "drop", Place: s.Place.String(), Scope: s.ScopeEnd, Span: s.Span}, nil
	default:
		return fileStmt{}, fmt.Errorf("unknown statement type %T", st)
	}
}
