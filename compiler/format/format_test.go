package format

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/isac/compiler/asm"
	"github.com/slowlang/isac/compiler/ast"
	"github.com/slowlang/isac/compiler/front"
	"github.com/slowlang/isac/compiler/isa"
)

func parse(t *testing.T, src string) *ast.Program {
	t.Helper()

	s := front.New()
	s.AddFile(context.Background(), "a.kt", []byte(src))

	p, err := s.Parse(context.Background())
	require.NoError(t, err)

	return p
}

func TestFormat(t *testing.T) {
	ctx := context.Background()

	p := parse(t, `fun main() { var a = input(); a += 5 * (2 - a); if (a != 3) output(a) else { continue }; while (true) a--; do { a++ } while (a < 1) }
fun f() { val b = 1 nand -2 }`)

	b, err := Format(ctx, nil, p)
	require.NoError(t, err)

	exp := `fun main() {
	var a = input()
	a += 5 * (2 - a)
	if (a != 3) {
		output(a)
	} else {
		continue
	}
	while (true) {
		a--
	}
	do {
		a++
	} while (a < 1)
}

fun f() {
	val b = 1 nand -2
}
`

	assert.Equal(t, exp, string(b))

	b2, err := Format(ctx, nil, parse(t, string(b)))
	require.NoError(t, err)
	assert.Equal(t, string(b), string(b2))
}

func TestFormatExpr(t *testing.T) {
	b, err := Format(context.Background(), nil, &ast.Binary{
		Op:    ast.Nor,
		Left:  &ast.Output{Value: &ast.Int{Value: 1}},
		Right: &ast.Binary{Op: ast.Add, Left: &ast.Ident{Name: "x"}, Right: &ast.Input{}},
	})
	require.NoError(t, err)

	assert.Equal(t, "output(1) nor (x + input())", string(b))

	_, err = Format(context.Background(), nil, 5)
	assert.Error(t, err)
}

func overture(t *testing.T) *isa.Dialect {
	t.Helper()

	d, err := isa.ParseFile(context.Background(), "../isa/testdata/overture.isa")
	require.NoError(t, err)

	return d
}

func TestListing(t *testing.T) {
	d := overture(t)

	instr := func(m string, args ...asm.Arg) *asm.Instr {
		x, err := d.Instruction(m, args...)
		require.NoError(t, err)

		return x
	}

	r5, _ := d.Register("r5")
	r0, _ := d.Register("r0")

	code := []asm.Elem{
		asm.Label("main"),
		instr("im", asm.Imm(5)),
		instr("mov", r5, r0),
		asm.Label("L0_main"),
		instr("im", asm.LabelRef("L0_main")),
		instr("jmp"),
		asm.Label("L1_main"),
	}

	b, err := Listing(context.Background(), nil, d, code, ListingOptions{Header: "isac: overture"})
	require.NoError(t, err)

	assert.Equal(t, `; isac: overture
main:
	im 5
	mov r5, r0
L0_main:
	im L0_main
	jmp
L1_main:
`, string(b))

	b, err = Listing(context.Background(), nil, d, code, ListingOptions{
		Labels: LabelsUsed,
		Keep:   []asm.Label{"main"},
	})
	require.NoError(t, err)

	assert.Equal(t, `main:
	im 5
	mov r5, r0
L0_main:
	im L0_main
	jmp
`, string(b))
}

func TestDialect(t *testing.T) {
	d := overture(t)

	b := Dialect(nil, d)

	l := strings.Split(string(b), "\n")

	assert.Equal(t, "dialect overture", l[0])
	assert.Contains(t, l, "\tregisters\tr4 r5")
	assert.Contains(t, l, "\treserved\tr0 r1 r2 r3 in out")
	assert.Contains(t, l, "\trole\tlhs = r1")
	assert.Contains(t, l, "\trole\timmediate = r0")
	assert.Contains(t, l, "\timmediate\tim %a(immediate|label)")

	var order []string

	for i, x := range l {
		if x == "instructions" {
			order = l[i+1:]
			break
		}
	}

	require.Len(t, order, 16) // 15 overloads and trailing newline

	mnemonic := func(s string) string {
		f := strings.Split(s, "\t")
		m, _, _ := strings.Cut(f[2], " ")

		return m
	}

	assert.Equal(t, "im", mnemonic(order[0]))
	assert.Equal(t, "or", mnemonic(order[1]))
	assert.Equal(t, "sub", mnemonic(order[6]))
	assert.Equal(t, "mov", mnemonic(order[7]))
	assert.Equal(t, "je", mnemonic(order[8]))
	assert.Equal(t, "ja", mnemonic(order[14]))
}
