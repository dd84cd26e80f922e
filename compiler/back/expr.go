package back

import (
	"github.com/slowlang/isac/compiler/asm"
	"github.com/slowlang/isac/compiler/ast"
)

type (
	// operand is a resolved sub-expression: a register or a constant.
	operand struct {
		Reg   asm.Reg
		Val   int32
		Const bool

		temp bool
	}
)

func variable(r asm.Reg) operand { return operand{Reg: r} }
func constant(v int32) operand   { return operand{Val: v, Const: true} }

// operand resolves e to a variable or a constant.
// Anything more complex is computed into a temporary register
// which the caller must release.
func (f *funContext) operand(e ast.Expr) (o operand, err error) {
	switch e := e.(type) {
	case *ast.Int:
		return constant(e.Value), nil
	case *ast.Ident:
		sym, err := f.syms.Require(e.Name)
		if err != nil {
			return o, err
		}

		return variable(sym.Reg), nil
	case *ast.Binary:
		if f.mulByAdd(e.Op) {
			// the product register is taken before the multiplicand is computed
			return f.temp(e)
		}

		l, r, err := f.operands(e)
		if err != nil {
			return o, err
		}

		defer f.release(l)
		defer f.release(r)

		if l.Const && r.Const {
			return constant(fold(e.Op, l.Val, r.Val)), nil
		}

		t, err := f.syms.Acquire()
		if err != nil {
			return o, err
		}

		err = f.binary(t, e.Op, l, r, e.Pos)
		if err != nil {
			f.syms.Release(t)
			return o, err
		}

		return operand{Reg: t, temp: true}, nil
	case *ast.Input:
		return f.temp(e)
	case *ast.Output:
		return f.output(e)
	case *ast.Rel, *ast.Bool:
		return o, unsupported(pos(e), "condition in value position")
	default:
		return o, unsupported(pos(e), "expression %T", e)
	}
}

func (f *funContext) temp(e ast.Expr) (o operand, err error) {
	t, err := f.syms.Acquire()
	if err != nil {
		return o, err
	}

	err = f.assign(t, e)
	if err != nil {
		f.syms.Release(t)
		return o, err
	}

	return operand{Reg: t, temp: true}, nil
}

func (f *funContext) operands(b *ast.Binary) (l, r operand, err error) {
	l, err = f.operand(b.Left)
	if err != nil {
		return
	}

	r, err = f.operand(b.Right)
	if err != nil {
		f.release(l)
		return
	}

	return l, r, nil
}

func (f *funContext) release(o operand) {
	if o.temp {
		f.syms.Release(o.Reg)
	}
}

// assign computes e into dst.
func (f *funContext) assign(dst asm.Reg, e ast.Expr) (err error) {
	switch e := e.(type) {
	case *ast.Int:
		return f.materialize(dst, asm.Imm(e.Value))
	case *ast.Ident:
		sym, err := f.syms.Require(e.Name)
		if err != nil {
			return err
		}

		return f.move(dst, sym.Reg)
	case *ast.Binary:
		l, r, err := f.operands(e)
		if err != nil {
			return err
		}

		defer f.release(l)
		defer f.release(r)

		return f.binary(dst, e.Op, l, r, e.Pos)
	case *ast.Input:
		in := f.Special.In
		if !in.Valid() {
			return unsupported(e.Pos, "input: dialect %v has no input register", f.Name)
		}

		return f.move(dst, in)
	case *ast.Output:
		o, err := f.output(e)
		if err != nil {
			return err
		}

		defer f.release(o)

		return f.load(dst, o)
	case *ast.Rel, *ast.Bool:
		return unsupported(pos(e), "condition in value position")
	default:
		return unsupported(pos(e), "expression %T", e)
	}
}

// output writes the value of e to the output register and returns it.
func (f *funContext) output(e *ast.Output) (o operand, err error) {
	out := f.Special.Out
	if !out.Valid() {
		return o, unsupported(e.Pos, "output: dialect %v has no output register", f.Name)
	}

	o, err = f.operand(e.Value)
	if err != nil {
		return o, err
	}

	err = f.load(out, o)
	if err != nil {
		f.release(o)
		return o, err
	}

	return o, nil
}

// load puts operand into dst.
func (f *funContext) load(dst asm.Reg, o operand) error {
	if o.Const {
		return f.materialize(dst, asm.Imm(o.Val))
	}

	return f.move(dst, o.Reg)
}

// binary computes l op r into dst.
// If dst is not Valid the result is discarded and only the instruction side effects remain.
func (f *funContext) binary(dst asm.Reg, op ast.BinOp, l, r operand, p int) (err error) {
	if l.Const && r.Const && dst.Valid() {
		return f.materialize(dst, asm.Imm(fold(op, l.Val, r.Val)))
	}

	if f.mulByAdd(op) {
		return f.mulAdd(dst, l, r, p)
	}

	m := op.Mnemonic()

	if !f.HasInstruction(m) {
		return unsupported(p, "operator %v in dialect %v", m, f.Name)
	}

	res, temps, err := f.emitBinary(m, l, r, dst, p)
	defer f.releaseRegs(temps)
	if err != nil {
		return err
	}

	if !dst.Valid() {
		return nil
	}

	return f.move(dst, res)
}

// emitBinary emits one instruction computing l m r using the first overload of a supported shape:
// fixed form (no operands), (result, lhs, rhs) or (result, rhs) where result is also the left source.
// hint is the preferred result register if the dialect has no result preference.
// temps must be released after the result is consumed.
func (f *funContext) emitBinary(m string, l, r operand, hint asm.Reg, p int) (res asm.Reg, temps []asm.Reg, err error) {
	def := f.binaryForm(m)
	if def == nil {
		return res, nil, unsupported(p, "operator %v: no register or fixed form in dialect %v", m, f.Name)
	}

	switch len(def.Operands) {
	case 0:
		lhs, rhs, out := f.Prefs.LHS, f.Prefs.RHS, f.Prefs.Result
		if !lhs.Valid() || !rhs.Valid() || !out.Valid() {
			return res, nil, unsupported(p, "operator %v: fixed form needs lhs, rhs and result registers", m)
		}

		if err = f.load(lhs, l); err != nil {
			return res, nil, err
		}

		if err = f.load(rhs, r); err != nil {
			return res, nil, err
		}

		return out, nil, f.emit(m)
	case 3:
		a, t, err := f.slot(f.Prefs.LHS, l)
		temps = append(temps, t...)
		if err != nil {
			return res, temps, err
		}

		b, t, err := f.slot(f.Prefs.RHS, r)
		temps = append(temps, t...)
		if err != nil {
			return res, temps, err
		}

		res, t, err = f.result(hint)
		temps = append(temps, t...)
		if err != nil {
			return res, temps, err
		}

		return res, temps, f.emit(m, res, a, b)
	case 2:
		b, t, err := f.slot(f.Prefs.RHS, r)
		temps = append(temps, t...)
		if err != nil {
			return res, temps, err
		}

		res, t, err = f.result(hint)
		temps = append(temps, t...)
		if err != nil {
			return res, temps, err
		}

		if res.Same(b) && (l.Const || !l.Reg.Same(b)) {
			// loading left would overwrite right
			res, err = f.syms.Acquire()
			if err != nil {
				return res, temps, err
			}

			temps = append(temps, res)
		}

		if err = f.load(res, l); err != nil {
			return res, temps, err
		}

		return res, temps, f.emit(m, res, b)
	default:
		panic(def.Syntax)
	}
}

// binaryForm finds the first overload of m with a shape emitBinary can fill.
func (f *funContext) binaryForm(m string) *asm.Def {
	for _, def := range f.Defs(m) {
		switch {
		case def.Fixed():
			return def
		case len(def.Operands) == 2 || len(def.Operands) == 3:
			ok := true

			for _, o := range def.Operands {
				ok = ok && o.Kinds.Has(asm.KindReg)
			}

			if ok {
				return def
			}
		}
	}

	return nil
}

// slot returns the register holding o for an explicit operand.
// The preferred register is used if the dialect has one.
// Otherwise variables are used in place and constants go to a temporary.
func (f *funContext) slot(pref asm.Reg, o operand) (r asm.Reg, temps []asm.Reg, err error) {
	if pref.Valid() {
		return pref, nil, f.load(pref, o)
	}

	if !o.Const {
		return o.Reg, nil, nil
	}

	r, err = f.syms.Acquire()
	if err != nil {
		return r, nil, err
	}

	return r, []asm.Reg{r}, f.materialize(r, asm.Imm(o.Val))
}

func (f *funContext) result(hint asm.Reg) (r asm.Reg, temps []asm.Reg, err error) {
	if r := f.Prefs.Result; r.Valid() {
		return r, nil, nil
	}

	if hint.Valid() {
		return hint, nil, nil
	}

	r, err = f.syms.Acquire()
	if err != nil {
		return r, nil, err
	}

	return r, []asm.Reg{r}, nil
}

func (f *funContext) releaseRegs(regs []asm.Reg) {
	for _, r := range regs {
		f.syms.Release(r)
	}
}

func (f *funContext) mulByAdd(op ast.BinOp) bool {
	return op == ast.Mul && !f.HasInstruction("mul")
}

// mulAdd multiplies by a constant with repeated addition.
// Negative multiplier subtracts the multiplicand instead.
func (f *funContext) mulAdd(dst asm.Reg, l, r operand, p int) (err error) {
	var x operand
	var n int64

	switch {
	case r.Const:
		x, n = l, int64(r.Val)
	case l.Const:
		x, n = r, int64(l.Val)
	default:
		return unsupported(p, "multiplication of two variables: dialect %v has no mul", f.Name)
	}

	m := "add"

	if n < 0 {
		m, n = "sub", -n
	}

	if n != 0 && !f.HasInstruction(m) {
		return unsupported(p, "multiplication by addition: dialect %v has no %v", f.Name, m)
	}

	acc := f.Prefs.Result
	if !acc.Valid() {
		acc, err = f.syms.Acquire()
		if err != nil {
			return err
		}

		defer f.syms.Release(acc)
	}

	err = f.materialize(acc, asm.Imm(0))
	if err != nil {
		return err
	}

	for i := int64(0); i < n; i++ {
		var res asm.Reg
		var temps []asm.Reg

		if m == "add" {
			res, temps, err = f.emitBinary(m, x, variable(acc), acc, p)
		} else {
			res, temps, err = f.emitBinary(m, variable(acc), x, acc, p)
		}

		if err == nil {
			err = f.move(acc, res)
		}

		f.releaseRegs(temps)

		if err != nil {
			return err
		}
	}

	if !dst.Valid() {
		return nil
	}

	return f.move(dst, acc)
}

// fold computes the operation on constants with 32-bit wraparound.
func fold(op ast.BinOp, l, r int32) int32 {
	switch op {
	case ast.Add:
		return l + r
	case ast.Sub:
		return l - r
	case ast.Mul:
		return l * r
	case ast.And:
		return l & r
	case ast.Or:
		return l | r
	case ast.Nor:
		return ^(l | r)
	case ast.Nand:
		return ^(l & r)
	default:
		panic(op)
	}
}

func pos(n ast.Node) int {
	if s, ok := n.(interface{ Span() (int, int) }); ok {
		p, _ := s.Span()
		return p
	}

	return -1
}
