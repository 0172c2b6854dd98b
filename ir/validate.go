package ir

import (
	"errors"
	"fmt"
)

var ErrNoBlocks = errors.New("function has no basic blocks")

// Validate performs the structural checks the engine relies on: every block
// successor is in range and every place references a declared variable slot.
// A function that fails validation is skipped by the engine rather than
// aborting the whole run.
func Validate(f *Function) error {
	if len(f.Blocks) == 0 {
		return fmt.Errorf("%s: %w", f.Name, ErrNoBlocks)
	}

	checkPlace := func(p Place, what string) error {
		if f.Var(p.Var) == nil {
			return fmt.Errorf("%s: %s references undeclared variable %d", f.Name, what, int(p.Var))
		}
		return nil
	}

	for _, v := range f.Params {
		if f.Var(v) == nil {
			return fmt.Errorf("%s: parameter slot %d undeclared", f.Name, int(v))
		}
	}
	if f.HasRet && f.Var(f.Ret) == nil {
		return fmt.Errorf("%s: return slot %d undeclared", f.Name, int(f.Ret))
	}

	for bi, block := range f.Blocks {
		for _, succ := range block.Succs {
			if succ < 0 || int(succ) >= len(f.Blocks) {
				return fmt.Errorf("%s: block %d has out-of-range successor %d", f.Name, bi, int(succ))
			}
		}

		for si, st := range block.Stmts {
			where := fmt.Sprintf("block %d stmt %d", bi, si)
			switch s := st.(type) {
			case *Assign:
				if err := checkPlace(s.Dst, where); err != nil {
					return err
				}
				if !s.Const {
					if err := checkPlace(s.Src, where); err != nil {
						return err
					}
				}
			case *Call:
				if s.Callee == "" {
					return fmt.Errorf("%s: %s names no callee", f.Name, where)
				}
				for _, a := range s.Args {
					if a.Const {
						continue
					}
					if err := checkPlace(a.Place, where); err != nil {
						return err
					}
				}
				if s.HasDst {
					if err := checkPlace(s.Dst, where); err != nil {
						return err
					}
				}
			case *Drop:
				if err := checkPlace(s.Place, where); err != nil {
					return err
				}
			default:
				return fmt.Errorf("%s: %s has unknown statement type %T", f.Name, where, st)
			}
		}
	}

	return nil
}
