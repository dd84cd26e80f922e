package isa

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/isac/compiler/asm"
)

func TestParseFieldsAndInstructions(t *testing.T) {
	spec := `
[fields]

register
r0 000
r1 001

[instructions]

mov %a(register), %b(register)
00aaabbb
Move
`

	d, err := Parse(context.Background(), "test", []byte(spec))
	require.NoError(t, err)

	require.Contains(t, d.Fields, "register")
	require.True(t, d.HasInstruction("mov"))

	defs := d.Defs("mov")
	require.Len(t, defs, 1)
	assert.Len(t, defs[0].Operands, 2)
	assert.Equal(t, "00aaabbb", defs[0].Bits)
	assert.Equal(t, "Move", defs[0].Desc)

	assert.Equal(t, BigEndian, d.Settings.Endianness)
	assert.Equal(t, []string{";", "//"}, d.Settings.LineComments)
}

func TestParseOverture(t *testing.T) {
	d, err := ParseFile(context.Background(), "testdata/overture.isa")
	require.NoError(t, err)

	assert.Equal(t, "overture", d.Name)
	assert.Equal(t, "overture", d.Settings.Variant)
	assert.Equal(t, LittleEndian, d.Settings.Endianness)
	assert.Equal(t, []BlockComment{{Open: "/*", Close: "*/"}}, d.Settings.BlockComments)

	assert.Equal(t, "r1", d.Prefs.LHS.Name)
	assert.Equal(t, "r2", d.Prefs.RHS.Name)
	assert.Equal(t, "r3", d.Prefs.Result.Name)
	assert.Equal(t, "001", d.Prefs.LHS.Code)

	assert.Equal(t, "r0", d.Special.Immediate.Name)
	assert.Equal(t, "in", d.Special.In.Name)
	assert.Equal(t, "out", d.Special.Out.Name)
	assert.False(t, d.Special.Zero.Valid())

	assert.Equal(t, []asm.Reg{{Name: "r4", Code: "100"}, {Name: "r5", Code: "101"}}, d.Registers())

	assert.Equal(t, []string{"im", "mov", "or", "nand", "nor", "and", "add", "sub", "jmp", "je", "jne", "jb", "jae", "jbe", "ja"}, d.Mnemonics())

	require.NotNil(t, d.ImmediateLoadDef())
	assert.Equal(t, "im", d.ImmediateLoadDef().Mnemonic)

	r, ok := d.JumpRegister()
	require.True(t, ok)
	assert.Equal(t, "r0", r.Name)
}

func TestParseRisc(t *testing.T) {
	d, err := ParseFile(context.Background(), "testdata/risc.isa")
	require.NoError(t, err)

	assert.Equal(t, []string{"#"}, d.Settings.LineComments)
	assert.Nil(t, d.ImmediateLoadDef())
	assert.Len(t, d.Defs("MOV"), 2)
	assert.Equal(t, "0001 dddd dvvv vvvv", d.Defs("mov")[1].Bits)

	cond, ok := d.Fields["cond"]
	require.True(t, ok)
	assert.Len(t, cond.Entries, 2)

	assert.Equal(t, "zero", d.Special.Zero.Name)
	assert.Equal(t, "io", d.Special.In.Name)

	regs := d.Registers()
	require.Len(t, regs, 7)
	assert.Equal(t, "x1", regs[0].Name)
	assert.Equal(t, "x7", regs[6].Name)

	_, ok = d.JumpRegister()
	assert.False(t, ok)
}

func TestParseSpecialRegisters(t *testing.T) {
	spec := `
[fields]
register
a 00
b 01
c 10
d 11

[register_prefs]
lhs = A
rhs = nosuch

[special_registers]
flags = b
jump = c
scratch = missing
`

	d, err := Parse(context.Background(), "custom", []byte(spec))
	require.NoError(t, err)

	assert.Equal(t, "a", d.Prefs.LHS.Name)
	assert.False(t, d.Prefs.RHS.Valid())
	assert.Equal(t, "b", d.Special.Flags.Name)
	assert.Equal(t, map[string]asm.Reg{"jump": {Name: "c", Code: "10"}}, d.Special.Custom)

	r, ok := d.JumpRegister()
	require.True(t, ok)
	assert.Equal(t, "c", r.Name)

	assert.Equal(t, []asm.Reg{{Name: "d", Code: "11"}}, d.Registers())
	assert.True(t, d.Reserved(asm.Reg{Name: "C"}))
	assert.Len(t, d.RoleRegisters(), 3)
}

func TestParseSettings(t *testing.T) {
	spec := `
[settings]
variant = "x"
line_comments = "#", "--", "#"
block_comments = {"(*":"*)", "{-":"-}"}
word_size = 16
endianness = Middle
`

	d, err := Parse(context.Background(), "s", []byte(spec))
	require.NoError(t, err)

	assert.Equal(t, BigEndian, d.Settings.Endianness)

	assert.Equal(t, "x", d.Settings.Variant)
	assert.Equal(t, []string{"#", "--"}, d.Settings.LineComments)
	assert.Equal(t, []BlockComment{{Open: "(*", Close: "*)"}, {Open: "{-", Close: "-}"}}, d.Settings.BlockComments)
	assert.Equal(t, map[string]string{"word_size": "16"}, d.Settings.Extra)
}

func TestParseEndianness(t *testing.T) {
	for _, tc := range []struct {
		val string
		exp Endianness
	}{
		{`"little"`, LittleEndian},
		{"LITTLE", LittleEndian},
		{"big", BigEndian},
		{"middle", BigEndian},
		{`""`, BigEndian},
	} {
		d, err := Parse(context.Background(), "e", []byte("[settings]\nendianness = "+tc.val+"\n"))
		require.NoError(t, err)

		assert.Equal(t, tc.exp, d.Settings.Endianness, "value: %v", tc.val)
	}
}

func TestAnyRegister(t *testing.T) {
	d, err := ParseFile(context.Background(), "testdata/overture.isa")
	require.NoError(t, err)

	r, ok := d.AnyRegister()
	require.True(t, ok)
	assert.Equal(t, asm.Reg{Name: "r4", Code: "100"}, r)

	spec := `
[fields]
register
a 0
b 1

[register_prefs]
lhs = a

[special_registers]
immediate = b
`

	d, err = Parse(context.Background(), "bound", []byte(spec))
	require.NoError(t, err)

	_, ok = d.AnyRegister()
	assert.False(t, ok)
	assert.Empty(t, d.Registers())
}

func TestParseOverloads(t *testing.T) {
	spec := `
[fields]
register
r0 0
r1 1

[instructions]
ld %a(register), %b(immediate)
01

ld %a(register), %b(address)
10

ld %a(register), %b(register)
11
`

	d, err := Parse(context.Background(), "o", []byte(spec))
	require.NoError(t, err)

	r0, _ := d.Register("R0")
	r1, _ := d.Register("r1")

	x, err := d.Instruction("LD", r0, asm.Addr(4))
	require.NoError(t, err)
	assert.Equal(t, "10", x.Def.Bits)
	assert.Equal(t, "ld r0, [4]", x.String())

	x, err = d.Instruction("ld", r0, r1)
	require.NoError(t, err)
	assert.Equal(t, "11", x.Def.Bits)

	_, err = d.Instruction("ld", r0, asm.LabelRef("l"))
	var oe *InstructionOverloadError
	require.True(t, errors.As(err, &oe))
	assert.False(t, oe.Unknown)

	_, err = d.Instruction("st", r0)
	require.True(t, errors.As(err, &oe))
	assert.True(t, oe.Unknown)
	assert.Contains(t, err.Error(), "unknown mnemonic")
}

func TestParseErrors(t *testing.T) {
	for _, tc := range []struct {
		name, spec string
		line       int
		reason     string
	}{
		{"no_section", "r0 000\n", 1, "content before any section header"},
		{"unknown_section", "[registers]\nr0 000\n", 1, "unknown section"},
		{"missing_bits", "[instructions]\nadd\n\nsub\n0101\n", 2, "missing bit pattern"},
		{"missing_bits_eof", "[instructions]\nadd", 2, "missing bit pattern"},
		{"malformed_setting", "[settings]\nvariant\n", 2, "malformed key=value"},
		{"malformed_pref", "[register_prefs]\n=r1\n", 2, "malformed key=value"},
		{"entry_outside_field", "[fields]\nr0 000\n", 2, "field entry outside of a field"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(context.Background(), tc.name, []byte(tc.spec))

			var se *SpecFormatError
			require.True(t, errors.As(err, &se), "err: %v", err)
			assert.Equal(t, tc.line, se.Line)
			assert.Equal(t, tc.reason, se.Reason)
		})
	}
}
