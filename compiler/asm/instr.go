package asm

import (
	"strings"

	"tlog.app/go/tlog/tlwire"
)

type (
	// Def is one overload of a mnemonic as declared by a dialect.
	Def struct {
		Mnemonic string // lower case
		Syntax   string
		Operands []Operand

		Bits string // not interpreted
		Desc string
	}

	Operand struct {
		ID    string
		Kinds Kinds
	}

	// Placeholder is one %id(kinds) occurrence in a syntax template.
	Placeholder struct {
		ID    string
		Kinds string

		Pos, End int
	}

	// Elem is an element of the instruction stream: Label or *Instr.
	Elem interface {
		AppendTo(b []byte) []byte
		String() string

		elem()
	}

	Label string

	Instr struct {
		Def  *Def
		Args []Arg // in Def.Operands order
	}
)

// Placeholders finds all %id(kinds) occurrences in syntax in order.
// Id is a run of letters, digits and underscores starting with a letter.
func Placeholders(syntax string) (ps []Placeholder) {
	for i := 0; i < len(syntax); i++ {
		if syntax[i] != '%' {
			continue
		}

		p, ok := placeholderAt(syntax, i)
		if !ok {
			continue
		}

		ps = append(ps, p)
		i = p.End - 1
	}

	return ps
}

func placeholderAt(s string, st int) (p Placeholder, ok bool) {
	i := st + 1

	if i == len(s) || !isLetter(s[i]) {
		return p, false
	}

	for i < len(s) && (isLetter(s[i]) || s[i] >= '0' && s[i] <= '9' || s[i] == '_') {
		i++
	}

	id := s[st+1 : i]

	if i == len(s) || s[i] != '(' {
		return p, false
	}

	end := strings.IndexByte(s[i:], ')')
	if end < 0 {
		return p, false
	}

	return Placeholder{
		ID:    id,
		Kinds: s[i+1 : i+end],
		Pos:   st,
		End:   i + end + 1,
	}, true
}

func isLetter(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

// ParseKinds parses "register|immediate" list.
// Empty list or an unknown kind name accepts anything.
func ParseKinds(s string) Kinds {
	var ks Kinds

	for _, n := range strings.Split(s, "|") {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" {
			continue
		}

		k, ok := ParseKind(n)
		if !ok {
			return AnyKind
		}

		ks |= KindsOf(k)
	}

	if ks == 0 {
		return AnyKind
	}

	return ks
}

func (o Operand) Accepts(a Arg) bool {
	return a != nil && o.Kinds.Has(a.Kind())
}

// Fixed reports whether the instruction takes no explicit operands.
func (d *Def) Fixed() bool { return len(d.Operands) == 0 }

// Matches checks arity and every argument kind.
func (d *Def) Matches(args []Arg) bool {
	if len(args) != len(d.Operands) {
		return false
	}

	for i, o := range d.Operands {
		if !o.Accepts(args[i]) {
			return false
		}
	}

	return true
}

// ImmediateLoad reports whether d looks like load-immediate:
// one operand accepting immediates and nothing but immediates and labels.
func (d *Def) ImmediateLoad() bool {
	if len(d.Operands) != 1 {
		return false
	}

	ks := d.Operands[0].Kinds

	return ks.Has(KindImm) && ks.Only(KindsOf(KindImm, KindLabel))
}

func (d *Def) operand(id string) int {
	for i, o := range d.Operands {
		if o.ID == id {
			return i
		}
	}

	return -1
}

// AppendFormat renders the syntax template substituting placeholders with args.
func (d *Def) AppendFormat(b []byte, args []Arg) []byte {
	s := d.Syntax
	last := 0

	for _, p := range Placeholders(s) {
		b = append(b, s[last:p.Pos]...)
		last = p.End

		i := d.operand(p.ID)
		if i < 0 || i >= len(args) || args[i] == nil {
			b = append(b, s[p.Pos:p.End]...)
			continue
		}

		b = args[i].AppendTo(b)
	}

	return append(b, s[last:]...)
}

func (d *Def) String() string { return d.Syntax }

func (x *Instr) Mnemonic() string { return x.Def.Mnemonic }

// Arg returns i-th argument or nil.
func (x *Instr) Arg(i int) Arg {
	if i < 0 || i >= len(x.Args) {
		return nil
	}

	return x.Args[i]
}

// Binding returns the argument bound to placeholder id.
func (x *Instr) Binding(id string) (Arg, bool) {
	i := x.Def.operand(id)
	if i < 0 || i >= len(x.Args) {
		return nil, false
	}

	return x.Args[i], true
}

// Reg returns i-th argument if it's a register.
func (x *Instr) Reg(i int) (Reg, bool) {
	r, ok := x.Arg(i).(Reg)
	return r, ok
}

// With returns a copy of x with i-th argument replaced.
// It panics if a doesn't fit the operand.
func (x *Instr) With(i int, a Arg) *Instr {
	if !x.Def.Operands[i].Accepts(a) {
		panic("argument kind doesn't fit operand")
	}

	args := append([]Arg{}, x.Args...)
	args[i] = a

	return &Instr{Def: x.Def, Args: args}
}

// Names reports whether any argument is register r.
func (x *Instr) Names(r Reg) bool {
	for _, a := range x.Args {
		if q, ok := a.(Reg); ok && q.Same(r) {
			return true
		}
	}

	return false
}

func (x *Instr) AppendTo(b []byte) []byte { return x.Def.AppendFormat(b, x.Args) }
func (x *Instr) String() string           { return string(x.AppendTo(nil)) }

func (x *Instr) TlogAppend(b []byte) []byte {
	var e tlwire.LowEncoder

	return e.AppendString(b, x.String())
}

func (l Label) AppendTo(b []byte) []byte { return append(append(b, l...), ':') }
func (l Label) String() string           { return string(l) + ":" }

func (l Label) TlogAppend(b []byte) []byte {
	var e tlwire.LowEncoder

	return e.AppendString(b, string(l))
}

func (*Instr) elem() {}
func (Label) elem()  {}
