package back

import (
	"github.com/slowlang/isac/compiler/asm"
	"github.com/slowlang/isac/compiler/ast"
)

// branchIfNot is the jump taken when the condition is false.
var branchIfNot = map[ast.RelOp]string{
	ast.Ne: "je",
	ast.Eq: "jne",
	ast.Lt: "jae",
	ast.Le: "ja",
	ast.Gt: "jbe",
	ast.Ge: "jb",
}

func (f *funContext) block(list []ast.Stmt) error {
	for _, s := range list {
		err := f.stmt(s)
		if err != nil {
			return err
		}
	}

	return nil
}

func (f *funContext) stmt(s ast.Stmt) (err error) {
	f.tr.V("stmt").Printw("stmt", "type", tlogType(s), "free", f.syms.pool.Free())

	switch s := s.(type) {
	case *ast.VarDecl:
		sym, err := f.syms.Declare(s.Name, s.Mutable)
		if err != nil {
			return err
		}

		return f.assign(sym.Reg, s.Init)
	case *ast.Assign:
		sym, err := f.mutable(s.Name, s.Pos)
		if err != nil {
			return err
		}

		op, ok := s.Op.BinOp()
		if !ok {
			return f.assign(sym.Reg, s.Value)
		}

		r, err := f.operand(s.Value)
		if err != nil {
			return err
		}

		defer f.release(r)

		return f.binary(sym.Reg, op, variable(sym.Reg), r, s.Pos)
	case *ast.IncDec:
		sym, err := f.mutable(s.Name, s.Pos)
		if err != nil {
			return err
		}

		op := ast.Add
		if s.Dec {
			op = ast.Sub
		}

		return f.binary(sym.Reg, op, variable(sym.Reg), constant(1), s.Pos)
	case *ast.Output:
		o, err := f.output(s)
		if err != nil {
			return err
		}

		f.release(o)

		return nil
	case *ast.Continue:
		if len(f.loops) == 0 {
			return &LoopContextError{Pos: s.Pos}
		}

		return f.jump("jmp", f.loops[len(f.loops)-1].cont)
	case *ast.While:
		loopL := f.newLabel()
		exit := f.newLabel()

		f.label(loopL)

		err = f.cond(s.Cond, exit)
		if err != nil {
			return err
		}

		err = f.loop(loopL, exit, s.Body)
		if err != nil {
			return err
		}

		err = f.jump("jmp", loopL)
		if err != nil {
			return err
		}

		f.label(exit)

		return nil
	case *ast.DoWhile:
		loopL := f.newLabel()
		condL := f.newLabel()
		exit := f.newLabel()

		f.label(loopL)

		err = f.loop(condL, exit, s.Body)
		if err != nil {
			return err
		}

		f.label(condL)

		err = f.cond(s.Cond, exit)
		if err != nil {
			return err
		}

		err = f.jump("jmp", loopL)
		if err != nil {
			return err
		}

		f.label(exit)

		return nil
	case *ast.If:
		elseL := f.newLabel()
		end := elseL

		if s.Else != nil {
			end = f.newLabel()
		}

		err = f.cond(s.Cond, elseL)
		if err != nil {
			return err
		}

		err = f.block(s.Then)
		if err != nil {
			return err
		}

		if s.Else == nil {
			f.label(elseL)
			return nil
		}

		err = f.jump("jmp", end)
		if err != nil {
			return err
		}

		f.label(elseL)

		err = f.block(s.Else)
		if err != nil {
			return err
		}

		f.label(end)

		return nil
	default:
		return unsupported(pos(s), "statement %T", s)
	}
}

func (f *funContext) loop(cont, exit asm.Label, body []ast.Stmt) error {
	f.loops = append(f.loops, loop{cont: cont, exit: exit})
	defer func() {
		f.loops = f.loops[:len(f.loops)-1]
	}()

	return f.block(body)
}

// cond jumps to exit if c is false.
func (f *funContext) cond(c ast.Expr, exit asm.Label) (err error) {
	switch c := c.(type) {
	case *ast.Bool:
		if c.Value {
			return nil
		}

		return unsupported(c.Pos, "condition false")
	case *ast.Rel:
		m, ok := branchIfNot[c.Op]
		if !ok {
			return unsupported(c.Pos, "relation %v", c.Op)
		}

		l, err := f.operand(c.Left)
		if err != nil {
			return err
		}

		defer f.release(l)

		r, err := f.operand(c.Right)
		if err != nil {
			return err
		}

		defer f.release(r)

		err = f.binary(asm.Reg{}, ast.Sub, l, r, c.Pos)
		if err != nil {
			return err
		}

		return f.jump(m, exit)
	default:
		return unsupported(pos(c), "condition %T", c)
	}
}

func (f *funContext) mutable(name string, p int) (*Symbol, error) {
	sym, err := f.syms.Require(name)
	if err != nil {
		return nil, err
	}

	if !sym.Mutable {
		return nil, unsupported(p, "assignment to val %q", name)
	}

	return sym, nil
}

func tlogType(x any) string {
	switch x.(type) {
	case *ast.VarDecl:
		return "var"
	case *ast.Assign:
		return "assign"
	case *ast.IncDec:
		return "incdec"
	case *ast.Output:
		return "output"
	case *ast.Continue:
		return "continue"
	case *ast.While:
		return "while"
	case *ast.DoWhile:
		return "do_while"
	case *ast.If:
		return "if"
	default:
		return "unknown"
	}
}
