package opt

import (
	"context"

	"tlog.app/go/tlog"
	"tlog.app/go/tlog/tlwire"

	"github.com/slowlang/isac/compiler/asm"
	"github.com/slowlang/isac/compiler/isa"
)

type (
	Stats struct {
		Rounds    int
		Converged bool

		Moves      int // elided moves
		Immediates int // elided immediate loads
	}

	optimizer struct {
		*isa.Dialect

		tr tlog.Span

		// labels control can reach other than by falling through
		targets map[asm.Label]struct{}

		st Stats
	}

	scan int
)

// MaxRounds caps the fixed-point loop.
const MaxRounds = 5

const (
	scanNext scan = iota
	scanSafe
	scanUnsafe
)

// Optimize applies peephole passes until the stream stops changing.
// code is not modified. Labels are kept as is.
//
// A label is a join point if some instruction refers to it
// or it's one of entries, the labels entered from outside of the stream.
// Other labels are only reached by falling through and are skipped.
func Optimize(ctx context.Context, d *isa.Dialect, code []asm.Elem, entries ...asm.Label) (res []asm.Elem, st Stats) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "opt: optimize", "elems", len(code), "dialect", d.Name)
	defer tr.Finish("stats", &st)

	o := &optimizer{
		Dialect: d,
		tr:      tr,
		targets: targets(code, entries),
	}

	tr.V("opt").Printw("join points", "labels", len(o.targets))

	res = append([]asm.Elem{}, code...)

	for o.st.Rounds < MaxRounds {
		o.st.Rounds++

		var changed bool

		res, changed = o.moves(res)

		var c bool
		res, c = o.immediates(res)
		changed = changed || c

		if !changed {
			o.st.Converged = true
			break
		}
	}

	if !o.st.Converged {
		tr.Printw("optimizer did not converge", "rounds", o.st.Rounds, "elems", len(res))
	}

	return res, o.st
}

// moves rewrites
//
//	mov A, B
//	mov C, A
//
// into mov C, B if A is overwritten before it's read again.
func (o *optimizer) moves(code []asm.Elem) (_ []asm.Elem, changed bool) {
	for i := 0; i+1 < len(code); {
		a, b, ok := o.regMove(code[i])
		if !ok {
			i++
			continue
		}

		j := o.next(code, i+1)
		if j == len(code) {
			break
		}

		second, _ := code[j].(*asm.Instr)

		c, src, ok := o.regMove(second)
		if !ok || !src.Same(a) || c.Same(a) || c.Same(b) {
			i++
			continue
		}

		if o.readLater(code[j+1:], a) {
			i++
			continue
		}

		x := second.With(1, b)

		o.tr.V("opt").Printw("move elided", "i", i, "first", code[i], "second", second, "new", x)

		code[j] = x
		code = append(code[:i], code[i+1:]...)

		o.st.Moves++
		changed = true
	}

	return code, changed
}

// next skips fall-through labels starting at i.
func (o *optimizer) next(code []asm.Elem, i int) int {
	for i < len(code) {
		l, ok := code[i].(asm.Label)
		if !ok || o.joins(l) {
			break
		}

		i++
	}

	return i
}

func (o *optimizer) joins(l asm.Label) bool {
	_, ok := o.targets[l]
	return ok
}

// readLater reports whether r may be read before it's overwritten.
func (o *optimizer) readLater(code []asm.Elem, r asm.Reg) bool {
	for _, e := range code {
		switch o.reads(e, r) {
		case scanSafe:
			return false
		case scanUnsafe:
			return true
		}
	}

	return false
}

func (o *optimizer) reads(e asm.Elem, r asm.Reg) scan {
	if l, ok := e.(asm.Label); ok {
		if o.joins(l) {
			// control may come from elsewhere
			return scanUnsafe
		}

		return scanNext
	}

	x, ok := e.(*asm.Instr)
	if !ok {
		return scanUnsafe
	}

	for _, a := range x.Args {
		if _, ok := a.(asm.LabelRef); ok {
			return scanUnsafe
		}
	}

	if o.IsImmediateLoad(x) {
		if r.Same(o.Special.Immediate) {
			return scanSafe
		}

		return scanNext
	}

	if x.Def.Fixed() {
		for _, q := range o.RoleRegisters() {
			if q.Same(r) {
				return scanUnsafe
			}
		}

		return scanNext
	}

	if x.Mnemonic() != "mov" || len(x.Args) != 2 {
		if x.Names(r) {
			return scanUnsafe
		}

		return scanNext
	}

	if q, ok := x.Reg(1); ok && q.Same(r) {
		return scanUnsafe
	}

	if dst, ok := x.Reg(0); ok && dst.Same(r) {
		return scanSafe
	}

	return scanNext
}

// regMove returns dst and src of a register to register mov.
func (o *optimizer) regMove(e asm.Elem) (dst, src asm.Reg, ok bool) {
	x, _ := e.(*asm.Instr)
	if x == nil || x.Mnemonic() != "mov" || len(x.Args) != 2 {
		return
	}

	dst, ok = x.Reg(0)
	if !ok {
		return
	}

	src, ok = x.Reg(1)

	return
}

// immediates removes a load of the value the immediate register already holds.
func (o *optimizer) immediates(code []asm.Elem) (_ []asm.Elem, changed bool) {
	imm := o.Special.Immediate
	if !imm.Valid() || o.ImmediateLoadDef() == nil {
		return code, false
	}

	var cur asm.Arg

	for i := 0; i < len(code); {
		x, ok := code[i].(*asm.Instr)

		switch {
		case !ok:
			if l, ok := code[i].(asm.Label); !ok || o.joins(l) {
				cur = nil
			}
		case o.IsImmediateLoad(x):
			v := x.Arg(0)

			if cur != nil && asm.SameArg(cur, v) {
				o.tr.V("opt").Printw("immediate load elided", "i", i, "instr", x)

				code = append(code[:i], code[i+1:]...)

				o.st.Immediates++
				changed = true

				continue
			}

			cur = v
		case o.clobbers(x, imm):
			cur = nil
		}

		i++
	}

	return code, changed
}

func (o *optimizer) clobbers(x *asm.Instr, r asm.Reg) bool {
	if x.Mnemonic() == "mov" {
		dst, ok := x.Reg(0)

		return ok && dst.Same(r)
	}

	if x.Def.Fixed() {
		return r.Same(o.Prefs.Result)
	}

	return x.Names(r)
}

// targets collects labels referred to by instructions plus entries.
func targets(code []asm.Elem, entries []asm.Label) map[asm.Label]struct{} {
	m := make(map[asm.Label]struct{}, len(entries))

	for _, l := range entries {
		m[l] = struct{}{}
	}

	for _, e := range code {
		x, ok := e.(*asm.Instr)
		if !ok {
			continue
		}

		for _, a := range x.Args {
			if l, ok := a.(asm.LabelRef); ok {
				m[asm.Label(l)] = struct{}{}
			}
		}
	}

	return m
}

func (s Stats) TlogAppend(b []byte) []byte {
	var e tlwire.Encoder

	b = e.AppendMap(b, 4)

	b = e.AppendKeyInt(b, "rounds", s.Rounds)
	b = e.AppendKeyValue(b, "converged", s.Converged)
	b = e.AppendKeyInt(b, "moves", s.Moves)
	b = e.AppendKeyInt(b, "immediates", s.Immediates)

	return b
}
