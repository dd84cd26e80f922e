package isa

import (
	"sort"
	"strings"

	"github.com/samber/lo"
	"tlog.app/go/tlog/tlwire"

	"github.com/slowlang/isac/compiler/asm"
)

type (
	// Dialect is a parsed ISA specification.
	// It's immutable after New and safe for concurrent use.
	Dialect struct {
		Name     string
		Settings Settings

		Fields       map[string]*Field     // by lower-case name
		Instructions map[string][]*asm.Def // by lower-case mnemonic, overloads in declaration order

		Prefs   RegisterPrefs
		Special SpecialRegisters

		order    []string // mnemonics in declaration order
		catalog  []asm.Reg
		byName   map[string]asm.Reg
		reserved map[string]struct{}
		regs     []asm.Reg
		immLoad  *asm.Def
	}

	Endianness int

	Settings struct {
		Variant       string
		Endianness    Endianness
		LineComments  []string
		BlockComments []BlockComment

		Extra map[string]string
	}

	BlockComment struct {
		Open, Close string
	}

	Field struct {
		Name    string
		Entries []Entry

		index map[string]int
	}

	Entry struct {
		Symbol string
		Bits   string
	}

	// RegisterPrefs are fixed operand slots.
	// Zero asm.Reg means the dialect has no preference.
	RegisterPrefs struct {
		LHS    asm.Reg
		RHS    asm.Reg
		Result asm.Reg
	}

	SpecialRegisters struct {
		Zero      asm.Reg
		SP        asm.Reg
		Flags     asm.Reg
		Immediate asm.Reg
		In        asm.Reg
		Out       asm.Reg

		Custom map[string]asm.Reg
	}
)

const (
	BigEndian Endianness = iota
	LittleEndian
)

// JumpRole is the custom special register key naming the jump target register.
const JumpRole = "jump"

func DefaultSettings() Settings {
	return Settings{
		Endianness:    BigEndian,
		LineComments:  []string{";", "//"},
		BlockComments: []BlockComment{{Open: "/*", Close: "*/"}},
	}
}

// New builds a dialect and its lookup caches.
// defs are in declaration order.
func New(name string, s Settings, fields []*Field, defs []*asm.Def, prefs RegisterPrefs, special SpecialRegisters) *Dialect {
	d := &Dialect{
		Name:         name,
		Settings:     s,
		Fields:       make(map[string]*Field, len(fields)),
		Instructions: make(map[string][]*asm.Def),
		Prefs:        prefs,
		Special:      special,
		byName:       make(map[string]asm.Reg),
		reserved:     make(map[string]struct{}),
	}

	for _, f := range fields {
		d.Fields[strings.ToLower(f.Name)] = f
	}

	for _, def := range defs {
		m := strings.ToLower(def.Mnemonic)

		if _, ok := d.Instructions[m]; !ok {
			d.order = append(d.order, m)
		}

		d.Instructions[m] = append(d.Instructions[m], def)

		if d.immLoad == nil && def.ImmediateLoad() {
			d.immLoad = def
		}
	}

	if f, ok := d.Fields["register"]; ok {
		for _, e := range f.Entries {
			r := asm.Reg{Name: e.Symbol, Code: e.Bits}

			d.catalog = append(d.catalog, r)
			d.byName[strings.ToLower(e.Symbol)] = r
		}
	}

	for _, r := range d.roles() {
		d.reserved[strings.ToLower(r.Name)] = struct{}{}
	}

	d.regs = lo.Filter(d.catalog, func(r asm.Reg, _ int) bool {
		return !d.Reserved(r)
	})

	return d
}

func (d *Dialect) roles() []asm.Reg {
	l := []asm.Reg{
		d.Prefs.LHS, d.Prefs.RHS, d.Prefs.Result,
		d.Special.Zero, d.Special.SP, d.Special.Flags,
		d.Special.Immediate, d.Special.In, d.Special.Out,
	}

	keys := lo.Keys(d.Special.Custom)
	sort.Strings(keys)

	for _, k := range keys {
		l = append(l, d.Special.Custom[k])
	}

	return lo.Filter(l, func(r asm.Reg, _ int) bool { return r.Valid() })
}

// Registers returns general-purpose registers in catalog order.
func (d *Dialect) Registers() []asm.Reg {
	return append([]asm.Reg{}, d.regs...)
}

// Catalog returns all registers including role-bound ones.
func (d *Dialect) Catalog() []asm.Reg {
	return append([]asm.Reg{}, d.catalog...)
}

// AnyRegister returns the first general-purpose register.
func (d *Dialect) AnyRegister() (asm.Reg, bool) {
	if len(d.regs) == 0 {
		return asm.Reg{}, false
	}

	return d.regs[0], true
}

// Register finds a catalog register by name, case-insensitive.
func (d *Dialect) Register(name string) (asm.Reg, bool) {
	r, ok := d.byName[strings.ToLower(name)]
	return r, ok
}

// Reserved reports whether r is bound to a preference or a special role.
func (d *Dialect) Reserved(r asm.Reg) bool {
	_, ok := d.reserved[strings.ToLower(r.Name)]
	return ok
}

// RoleRegisters returns every register bound to a preference or a special role.
func (d *Dialect) RoleRegisters() []asm.Reg {
	return lo.UniqBy(d.roles(), func(r asm.Reg) string { return r.Name })
}

func (d *Dialect) Mnemonics() []string {
	return append([]string{}, d.order...)
}

func (d *Dialect) HasInstruction(m string) bool {
	_, ok := d.Instructions[strings.ToLower(m)]
	return ok
}

// Defs returns overloads of the mnemonic in declaration order.
func (d *Dialect) Defs(m string) []*asm.Def {
	return d.Instructions[strings.ToLower(m)]
}

// Instruction resolves the first overload matching args kinds and binds args to it.
func (d *Dialect) Instruction(m string, args ...asm.Arg) (*asm.Instr, error) {
	defs, ok := d.Instructions[strings.ToLower(m)]
	if !ok {
		return nil, &InstructionOverloadError{Dialect: d.Name, Mnemonic: m, Args: args, Unknown: true}
	}

	for _, def := range defs {
		if def.Matches(args) {
			return &asm.Instr{Def: def, Args: append([]asm.Arg{}, args...)}, nil
		}
	}

	return nil, &InstructionOverloadError{Dialect: d.Name, Mnemonic: m, Args: args}
}

// ImmediateLoadDef is the load-immediate overload or nil.
func (d *Dialect) ImmediateLoadDef() *asm.Def {
	return d.immLoad
}

// ImmediateLoad binds v to the load-immediate overload.
// It reports false if the dialect has none or it doesn't take v.
func (d *Dialect) ImmediateLoad(v asm.Arg) (*asm.Instr, bool) {
	if d.immLoad == nil || !d.immLoad.Matches([]asm.Arg{v}) {
		return nil, false
	}

	return &asm.Instr{Def: d.immLoad, Args: []asm.Arg{v}}, true
}

// IsImmediateLoad reports whether x is an instance of the load-immediate overload.
func (d *Dialect) IsImmediateLoad(x *asm.Instr) bool {
	return d.immLoad != nil && x.Def == d.immLoad
}

// JumpRegister is where jump targets are loaded for operand-less jumps.
func (d *Dialect) JumpRegister() (asm.Reg, bool) {
	if r, ok := d.Special.Custom[JumpRole]; ok {
		return r, true
	}

	return d.Special.Immediate, d.Special.Immediate.Valid()
}

// Entry finds field entry by symbol, case-insensitive.
func (f *Field) Entry(sym string) (Entry, bool) {
	if f.index == nil {
		for _, e := range f.Entries {
			if strings.EqualFold(e.Symbol, sym) {
				return e, true
			}
		}

		return Entry{}, false
	}

	i, ok := f.index[strings.ToLower(sym)]
	if !ok {
		return Entry{}, false
	}

	return f.Entries[i], true
}

func (f *Field) add(e Entry) {
	if f.index == nil {
		f.index = make(map[string]int)
	}

	k := strings.ToLower(e.Symbol)

	if i, ok := f.index[k]; ok {
		f.Entries[i] = e
		return
	}

	f.index[k] = len(f.Entries)
	f.Entries = append(f.Entries, e)
}

func (e Endianness) String() string {
	if e == LittleEndian {
		return "little"
	}

	return "big"
}

func (d *Dialect) TlogAppend(b []byte) []byte {
	var e tlwire.Encoder

	b = e.AppendMap(b, 4)

	b = e.AppendKeyString(b, "name", d.Name)
	b = e.AppendKeyInt(b, "registers", len(d.regs))
	b = e.AppendKeyInt(b, "mnemonics", len(d.order))
	b = e.AppendKeyString(b, "variant", d.Settings.Variant)

	return b
}
