package back

import (
	"context"
	"fmt"

	"tlog.app/go/errors"
	"tlog.app/go/loc"
	"tlog.app/go/tlog"

	"github.com/slowlang/isac/compiler/asm"
	"github.com/slowlang/isac/compiler/ast"
	"github.com/slowlang/isac/compiler/isa"
)

type (
	// Compiler lowers functions into instruction stream of one dialect.
	// It holds no state between functions and may be used concurrently.
	Compiler struct {
		Dialect *isa.Dialect
	}

	funContext struct {
		*isa.Dialect

		tr tlog.Span

		name   string
		code   []asm.Elem
		labels int

		syms  *Symbols
		loops []loop
	}

	loop struct {
		cont asm.Label
		exit asm.Label
	}
)

func New(d *isa.Dialect) *Compiler {
	return &Compiler{Dialect: d}
}

// CompileProgram compiles functions in source order and concatenates the results.
func (c *Compiler) CompileProgram(ctx context.Context, p *ast.Program) (code []asm.Elem, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "back: compile program", "funcs", len(p.Funcs), "dialect", c.Dialect.Name)
	defer tr.Finish("err", &err)

	for _, fn := range p.Funcs {
		fc, err := c.CompileFunc(ctx, fn)
		if err != nil {
			return nil, errors.Wrap(err, "func %v", fn.Name)
		}

		code = append(code, fc...)
	}

	return code, nil
}

// CompileFunc lowers one function.
// Nothing is returned on error.
func (c *Compiler) CompileFunc(ctx context.Context, fn *ast.Func) (code []asm.Elem, err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "back: compile func", "name", fn.Name, "stmts", len(fn.Body))
	defer tr.Finish("err", &err)

	if r, ok := c.Dialect.AnyRegister(); ok {
		tr.V("regs").Printw("register pool", "first", r.Name, "size", len(c.Dialect.Registers()))
	} else {
		tr.Printw("dialect declares no general-purpose registers", "dialect", c.Dialect.Name)
	}

	pool := NewRegPool(c.Dialect.Name, c.Dialect.Registers())

	f := &funContext{
		Dialect: c.Dialect,
		tr:      tr,
		name:    fn.Name,
		syms:    NewSymbols(pool),
	}

	f.label(asm.Label(fn.Name))

	for i, s := range fn.Body {
		f.label(f.newLabel())

		err = f.stmt(s)
		if err != nil {
			return nil, errors.Wrap(err, "statement %d", i)
		}
	}

	f.label(f.newLabel())

	if f.HasInstruction("ret") {
		err = f.emit("ret")
		if err != nil {
			return nil, err
		}

		f.label(f.newLabel())
	}

	tr.Printw("func compiled", "elems", len(f.code), "vars", len(f.syms.Declared()), "pool", pool)

	if tr.If("dump_vars") {
		for _, sym := range f.syms.Declared() {
			tr.Printw("var", "sym", sym)
		}
	}

	return f.code, nil
}

func (f *funContext) newLabel() asm.Label {
	l := asm.Label(fmt.Sprintf("L%d_%s", f.labels, f.name))
	f.labels++

	return l
}

func (f *funContext) label(l asm.Label) {
	f.code = append(f.code, l)

	f.tr.V("emit").Printw("label", "i", len(f.code)-1, "label", l, "from", loc.Caller(1))
}

func (f *funContext) emit(m string, args ...asm.Arg) error {
	x, err := f.Instruction(m, args...)
	if err != nil {
		return err
	}

	f.code = append(f.code, x)

	f.tr.V("emit").Printw("instr", "i", len(f.code)-1, "instr", x, "from", loc.Caller(1))

	return nil
}

func (f *funContext) emitInstr(x *asm.Instr) {
	f.code = append(f.code, x)

	f.tr.V("emit").Printw("instr", "i", len(f.code)-1, "instr", x, "from", loc.Caller(1))
}

// move emits register copy unless src is dst.
func (f *funContext) move(dst, src asm.Reg) error {
	if dst.Same(src) {
		return nil
	}

	return f.emit("mov", dst, src)
}

// materialize loads an immediate or a label into dst.
// The load-immediate instruction is preferred, followed by a copy out of the immediate register.
func (f *funContext) materialize(dst asm.Reg, v asm.Arg) error {
	if imm := f.Special.Immediate; imm.Valid() {
		if x, ok := f.ImmediateLoad(v); ok {
			f.emitInstr(x)

			return f.move(dst, imm)
		}
	}

	return f.emit("mov", dst, v)
}

// jump emits mnemonic m targeting l.
// A label operand is used if the dialect has such an overload,
// otherwise the label is loaded into the jump register first.
func (f *funContext) jump(m string, l asm.Label) error {
	ref := asm.LabelRef(l)

	if x, err := f.Instruction(m, ref); err == nil {
		f.emitInstr(x)
		return nil
	}

	jr, ok := f.JumpRegister()
	if !ok {
		return unsupported(-1, "jump %v: no label operand and no jump register in dialect %v", m, f.Name)
	}

	err := f.materialize(jr, ref)
	if err != nil {
		return err
	}

	return f.emit(m)
}
