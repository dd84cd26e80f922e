package asm

import (
	"strconv"

	"github.com/nikandfor/hacked/hfmt"
)

type (
	Kind  uint8
	Kinds uint8

	// Arg is an instruction operand value.
	// It's one of Reg, Imm, LabelRef or Addr.
	Arg interface {
		Kind() Kind
		AppendTo(b []byte) []byte
		String() string

		arg()
	}

	Reg struct {
		Name string
		Code string // bit pattern from the register catalog, opaque
	}

	Imm int32

	LabelRef string

	Addr int
)

const (
	KindReg Kind = iota
	KindImm
	KindLabel
	KindAddr

	numKinds
)

const AnyKind = Kinds(1<<numKinds - 1)

var kindNames = [...]string{
	KindReg:   "register",
	KindImm:   "immediate",
	KindLabel: "label",
	KindAddr:  "address",
}

func ParseKind(s string) (Kind, bool) {
	for k, n := range kindNames {
		if n == s {
			return Kind(k), true
		}
	}

	return 0, false
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}

	return "kind(" + strconv.Itoa(int(k)) + ")"
}

func KindsOf(ks ...Kind) (s Kinds) {
	for _, k := range ks {
		s |= 1 << k
	}

	return s
}

func (s Kinds) Has(k Kind) bool { return s&(1<<k) != 0 }

// Only reports whether s is not empty and contains nothing but of.
func (s Kinds) Only(of Kinds) bool { return s != 0 && s&^of == 0 }

func (s Kinds) String() string {
	if s == AnyKind {
		return "any"
	}

	var b []byte

	for k := Kind(0); k < numKinds; k++ {
		if !s.Has(k) {
			continue
		}

		if len(b) != 0 {
			b = append(b, '|')
		}

		b = append(b, k.String()...)
	}

	return string(b)
}

func (Reg) Kind() Kind      { return KindReg }
func (Imm) Kind() Kind      { return KindImm }
func (LabelRef) Kind() Kind { return KindLabel }
func (Addr) Kind() Kind     { return KindAddr }

func (r Reg) AppendTo(b []byte) []byte      { return append(b, r.Name...) }
func (x Imm) AppendTo(b []byte) []byte      { return strconv.AppendInt(b, int64(x), 10) }
func (l LabelRef) AppendTo(b []byte) []byte { return append(b, l...) }
func (a Addr) AppendTo(b []byte) []byte     { return hfmt.Appendf(b, "[%d]", int(a)) }

func (r Reg) String() string      { return r.Name }
func (x Imm) String() string      { return strconv.Itoa(int(x)) }
func (l LabelRef) String() string { return string(l) }
func (a Addr) String() string     { return string(a.AppendTo(nil)) }

// Same compares registers by name. Catalog codes are not considered.
func (r Reg) Same(x Reg) bool { return r.Name == x.Name }

func (Reg) arg()      {}
func (Imm) arg()      {}
func (LabelRef) arg() {}
func (Addr) arg()     {}

// SameArg compares two arguments by kind and payload.
func SameArg(x, y Arg) bool {
	switch x := x.(type) {
	case Reg:
		y, ok := y.(Reg)
		return ok && x.Same(y)
	case Imm:
		y, ok := y.(Imm)
		return ok && x == y
	case LabelRef:
		y, ok := y.(LabelRef)
		return ok && x == y
	case Addr:
		y, ok := y.(Addr)
		return ok && x == y
	case nil:
		return y == nil
	default:
		panic(x)
	}
}

// Valid reports whether r names a register. Zero Reg means none.
func (r Reg) Valid() bool { return r.Name != "" }
