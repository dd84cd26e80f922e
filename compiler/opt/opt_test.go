package opt

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/isac/compiler/asm"
	"github.com/slowlang/isac/compiler/back"
	"github.com/slowlang/isac/compiler/front"
	"github.com/slowlang/isac/compiler/isa"
)

type stream struct {
	t testing.TB
	d *isa.Dialect
}

func overture(t testing.TB) stream {
	t.Helper()

	d, err := isa.ParseFile(context.Background(), "../isa/testdata/overture.isa")
	require.NoError(t, err)

	return stream{t: t, d: d}
}

func (s stream) reg(name string) asm.Reg {
	r, ok := s.d.Register(name)
	require.True(s.t, ok, "register %v", name)

	return r
}

func (s stream) instr(m string, args ...asm.Arg) *asm.Instr {
	x, err := s.d.Instruction(m, args...)
	require.NoError(s.t, err)

	return x
}

func (s stream) mov(dst, src string) *asm.Instr {
	return s.instr("mov", s.reg(dst), s.reg(src))
}

func (s stream) im(v asm.Arg) *asm.Instr { return s.instr("im", v) }

func listing(code []asm.Elem) (l []string) {
	for _, e := range code {
		l = append(l, e.String())
	}

	return l
}

func TestRedundantMove(t *testing.T) {
	s := overture(t)

	code := []asm.Elem{
		s.mov("r5", "r0"),
		s.mov("out", "r5"),
	}

	res, st := Optimize(context.Background(), s.d, code)

	assert.Equal(t, []string{"mov out, r0"}, listing(res))
	assert.Equal(t, Stats{Rounds: 2, Converged: true, Moves: 1}, st)

	assert.Len(t, code, 2)
	assert.Equal(t, "mov r5, r0", code[0].String())
}

func TestRedundantMoveOverwritten(t *testing.T) {
	s := overture(t)

	code := []asm.Elem{
		s.mov("r4", "in"),
		s.mov("r1", "r4"),
		s.im(asm.Imm(5)),
		s.mov("r2", "r0"),
		s.instr("add"),
		s.mov("r4", "r3"),
		s.mov("out", "r4"),
	}

	res, st := Optimize(context.Background(), s.d, code)

	assert.Equal(t, []string{
		"mov r1, in",
		"im 5",
		"mov r2, r0",
		"add",
		"mov out, r3",
	}, listing(res))
	assert.Equal(t, 2, st.Moves)
	assert.True(t, st.Converged)
}

func TestRedundantMoveUnsafe(t *testing.T) {
	s := overture(t)

	for _, tc := range []struct {
		name string
		tmp  string
		tail []asm.Elem
	}{
		{"read_by_mov", "r5", []asm.Elem{s.mov("r1", "r5")}},
		{"read_by_fixed", "r1", []asm.Elem{s.instr("add")}}, // r1 is an implicit operand of add
		{"jump_target", "r5", []asm.Elem{asm.Label("L0_f"), s.mov("r5", "r3"), s.im(asm.LabelRef("L0_f")), s.instr("jmp")}},
		{"jump", "r5", []asm.Elem{s.im(asm.LabelRef("L0_f")), s.instr("jmp")}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			code := []asm.Elem{
				s.mov(tc.tmp, "r3"),
				s.mov("out", tc.tmp),
			}

			code = append(code, tc.tail...)

			res, st := Optimize(context.Background(), s.d, code)

			assert.Equal(t, listing(code), listing(res))
			assert.Equal(t, Stats{Rounds: 1, Converged: true}, st)
		})
	}
}

func TestFallThroughLabel(t *testing.T) {
	s := overture(t)

	code := []asm.Elem{
		s.mov("r5", "r3"),
		asm.Label("L0_f"),
		s.mov("out", "r5"),
		asm.Label("L1_f"),
	}

	res, st := Optimize(context.Background(), s.d, code)

	assert.Equal(t, []string{"L0_f:", "mov out, r3", "L1_f:"}, listing(res))
	assert.Equal(t, 1, st.Moves)

	res, st = Optimize(context.Background(), s.d, code, "L1_f")

	assert.Equal(t, []string{"L0_f:", "mov out, r3", "L1_f:"}, listing(res))
	assert.Equal(t, 1, st.Moves)

	res, st = Optimize(context.Background(), s.d, code, "L0_f")

	assert.Equal(t, listing(code), listing(res))
	assert.Equal(t, 0, st.Moves)
}

func TestIrregularMov(t *testing.T) {
	s := overture(t)

	unary := &asm.Instr{
		Def: &asm.Def{
			Mnemonic: "mov",
			Syntax:   "mov %a(register)",
			Operands: []asm.Operand{{ID: "a", Kinds: asm.KindsOf(asm.KindReg)}},
		},
		Args: []asm.Arg{s.reg("r5")},
	}

	bare := &asm.Instr{Def: s.mov("r1", "r2").Def}

	for _, tc := range []struct {
		name  string
		tail  *asm.Instr
		moves int
	}{
		{"unary", unary, 0},
		{"no_args", bare, 1},
	} {
		t.Run(tc.name, func(t *testing.T) {
			code := []asm.Elem{
				s.mov("r5", "r3"),
				s.mov("out", "r5"),
				tc.tail,
				s.im(asm.Imm(1)),
			}

			var res []asm.Elem
			var st Stats

			assert.NotPanics(t, func() {
				res, st = Optimize(context.Background(), s.d, code)
			})

			assert.Len(t, res, len(code)-tc.moves)
			assert.Equal(t, tc.moves, st.Moves)
			assert.Same(t, tc.tail, res[len(res)-2])
		})
	}
}

func TestDuplicateImmediate(t *testing.T) {
	s := overture(t)

	code := []asm.Elem{
		s.im(asm.Imm(2)),
		s.mov("out", "r0"),
		s.im(asm.Imm(2)),
		s.mov("out", "r0"),
		s.im(asm.Imm(2)),
		s.mov("out", "r0"),
	}

	res, st := Optimize(context.Background(), s.d, code)

	assert.Equal(t, []string{
		"im 2",
		"mov out, r0",
		"mov out, r0",
		"mov out, r0",
	}, listing(res))
	assert.Equal(t, 2, st.Immediates)
}

func TestDuplicateImmediateClobbered(t *testing.T) {
	s := overture(t)

	for _, tc := range []struct {
		name    string
		between asm.Elem
		keep    bool
	}{
		{"jump_target", asm.Label("L1_f"), true},
		{"fall_through", asm.Label("L2_f"), false},
		{"mov_into", s.mov("r0", "r5"), true},
		{"other_value", s.im(asm.Imm(3)), true},
		{"mov_from", s.mov("r5", "r0"), false},
		{"fixed", s.instr("add"), false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			code := []asm.Elem{
				s.im(asm.Imm(2)),
				tc.between,
				s.im(asm.Imm(2)),
				s.im(asm.LabelRef("L1_f")),
				s.instr("jmp"),
			}

			res, _ := Optimize(context.Background(), s.d, code)

			if tc.keep {
				assert.Len(t, res, len(code))
			} else {
				assert.Len(t, res, len(code)-1)
			}
		})
	}
}

func compile(t testing.TB, d *isa.Dialect, src string) []asm.Elem {
	t.Helper()

	fr := front.New()
	fr.AddFile(context.Background(), "a.kt", []byte(src))

	p, err := fr.Parse(context.Background())
	require.NoError(t, err)

	code, err := back.New(d).CompileProgram(context.Background(), p)
	require.NoError(t, err)

	return code
}

func TestOptimizePrograms(t *testing.T) {
	s := overture(t)

	for _, tc := range []struct {
		name string
		src  string
		exp  []string
		st   Stats
	}{
		{"add_input", `fun main() { output(input() + 5) }`, []string{
			"main:",
			"L0_main:",
			"mov r1, in",
			"im 5",
			"mov r2, r0",
			"add",
			"mov out, r3",
			"L1_main:",
		}, Stats{Rounds: 2, Converged: true, Moves: 2}},
		{"same_constant", `fun main() { output(2); output(2); output(2) }`, []string{
			"main:",
			"L0_main:",
			"im 2",
			"mov out, r0",
			"L1_main:",
			"mov out, r0",
			"L2_main:",
			"mov out, r0",
			"L3_main:",
		}, Stats{Rounds: 2, Converged: true, Immediates: 2}},
		{"copy_chain", `fun main() { var a = input(); var b = a; output(b) }`, []string{
			"main:",
			"L0_main:",
			"L1_main:",
			"mov out, in",
			"L2_main:",
			"L3_main:",
		}, Stats{Rounds: 2, Converged: true, Moves: 2}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			code := compile(t, s.d, tc.src)

			res, st := Optimize(context.Background(), s.d, code, "main")

			assert.Equal(t, tc.exp, listing(res))
			assert.Equal(t, tc.st, st)
		})
	}
}

func TestOptimizeCompiled(t *testing.T) {
	s := overture(t)

	for _, src := range []string{
		`fun main() { var a = input(); a += 5; output(a) }`,
		`fun main() { while (true) { var cell = input(); if (cell == 1) { output(4); output(2); continue }; if (cell == 0) { output(1); output(0) } } }`,
		`fun main() { output(input() * 6) }`,
		`fun main() { var a = 0; do { a++ } while (input() != 37); output(a) }`,
	} {
		code := compile(t, s.d, src)

		once, st := Optimize(context.Background(), s.d, code, "main")
		assert.True(t, st.Converged)

		twice, st := Optimize(context.Background(), s.d, once, "main")
		assert.Equal(t, listing(once), listing(twice), "src: %v", src)
		assert.Equal(t, Stats{Rounds: 1, Converged: true}, st)

		assert.Equal(t, labels(code), labels(once))

		for _, e := range once {
			if x, ok := e.(*asm.Instr); ok {
				assert.True(t, x.Def.Matches(x.Args), "%v", x)
			}
		}
	}
}

func labels(code []asm.Elem) (l []asm.Label) {
	for _, e := range code {
		if x, ok := e.(asm.Label); ok {
			l = append(l, x)
		}
	}

	return l
}
