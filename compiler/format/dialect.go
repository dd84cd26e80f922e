package format

import (
	"sort"
	"strings"

	"github.com/samber/lo"
	"nikand.dev/go/heap"

	"github.com/slowlang/isac/compiler/asm"
	"github.com/slowlang/isac/compiler/isa"
)

type (
	overload struct {
		def  *asm.Def
		bits string
		seq  int
	}

	overloads struct {
		heap.Heap[overload]
	}
)

// Dialect renders the parsed catalog: settings, registers, roles and overloads.
// Overloads are ordered by bit pattern, so encoding clashes are next to each other.
func Dialect(b []byte, d *isa.Dialect) []byte {
	s := d.Settings

	b = app(b, 0, "dialect %v\n", d.Name)
	b = app(b, 1, "variant\t%v\n", s.Variant)
	b = app(b, 1, "endianness\t%v\n", s.Endianness)
	b = app(b, 1, "comments\t%s\n", strings.Join(s.LineComments, " "))

	for _, c := range s.BlockComments {
		b = app(b, 1, "block\t%s %s\n", c.Open, c.Close)
	}

	b = app(b, 1, "registers\t%s\n", names(d.Registers()))

	reserved := lo.Filter(d.Catalog(), func(r asm.Reg, _ int) bool { return d.Reserved(r) })
	b = app(b, 1, "reserved\t%s\n", names(reserved))

	for _, r := range roles(d) {
		b = app(b, 1, "role\t%v = %v\n", r.A, r.B.Name)
	}

	if def := d.ImmediateLoadDef(); def != nil {
		b = app(b, 1, "immediate\t%v\n", def.Syntax)
	}

	b = app(b, 0, "instructions\n")

	q := overloads{Heap: heap.Heap[overload]{Less: overloadLess}}

	for _, m := range d.Mnemonics() {
		for _, def := range d.Defs(m) {
			q.Push(overload{
				def:  def,
				bits: strings.ReplaceAll(def.Bits, " ", ""),
				seq:  q.Len(),
			})
		}
	}

	for q.Len() != 0 {
		o := q.Pop()

		b = app(b, 1, "%s\t%s", o.def.Bits, o.def.Syntax)

		if o.def.Desc != "" {
			b = app(b, 0, "\t%s", o.def.Desc)
		}

		b = append(b, '\n')
	}

	return b
}

func overloadLess(d []overload, i, j int) bool {
	if d[i].bits != d[j].bits {
		return d[i].bits < d[j].bits
	}

	return d[i].seq < d[j].seq
}

func roles(d *isa.Dialect) []lo.Tuple2[string, asm.Reg] {
	l := []lo.Tuple2[string, asm.Reg]{
		lo.T2("lhs", d.Prefs.LHS),
		lo.T2("rhs", d.Prefs.RHS),
		lo.T2("result", d.Prefs.Result),
		lo.T2("zr", d.Special.Zero),
		lo.T2("sp", d.Special.SP),
		lo.T2("flags", d.Special.Flags),
		lo.T2("immediate", d.Special.Immediate),
		lo.T2("in", d.Special.In),
		lo.T2("out", d.Special.Out),
	}

	keys := lo.Keys(d.Special.Custom)
	sort.Strings(keys)

	for _, k := range keys {
		l = append(l, lo.T2(k, d.Special.Custom[k]))
	}

	return lo.Filter(l, func(t lo.Tuple2[string, asm.Reg], _ int) bool { return t.B.Valid() })
}

func names(regs []asm.Reg) string {
	return strings.Join(lo.Map(regs, func(r asm.Reg, _ int) string { return r.Name }), " ")
}
